package common

import (
	"errors"
	"testing"
)

func TestGuardNilViewAllowsEverything(t *testing.T) {
	if err := Guard(nil, "oracle"); err != nil {
		t.Fatalf("nil view: %v", err)
	}
	if err := Guard(NewPauses(), ""); err != nil {
		t.Fatalf("empty module: %v", err)
	}
}

func TestGuardBlocksPausedModule(t *testing.T) {
	pauses := NewPauses("oracle")
	if err := Guard(pauses, "oracle"); !errors.Is(err, ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused, got %v", err)
	}
	if err := Guard(pauses, "assets"); err != nil {
		t.Fatalf("unpaused module: %v", err)
	}

	pauses.Set("oracle", false)
	if err := Guard(pauses, "oracle"); err != nil {
		t.Fatalf("after unpause: %v", err)
	}
}

func TestPausesCaseInsensitive(t *testing.T) {
	pauses := NewPauses()
	pauses.Set("  Oracle ", true)
	if !pauses.IsPaused("ORACLE") {
		t.Fatalf("pause lookup should ignore case and whitespace")
	}
}
