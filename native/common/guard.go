package common

import (
	"errors"
	"strings"
	"sync"
)

var ErrModulePaused = errors.New("module paused")

// PauseView reports whether a module's externally visible operations are
// currently halted by the operator.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard returns ErrModulePaused when the named module is paused. A nil view
// means pausing is not wired and every operation proceeds.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}

// Pauses is a mutable PauseView used by the daemon. Module names are
// case-insensitive.
type Pauses struct {
	mu      sync.RWMutex
	modules map[string]bool
}

func NewPauses(paused ...string) *Pauses {
	p := &Pauses{modules: make(map[string]bool, len(paused))}
	for _, module := range paused {
		p.Set(module, true)
	}
	return p
}

func (p *Pauses) Set(module string, paused bool) {
	if p == nil {
		return
	}
	normalized := strings.ToLower(strings.TrimSpace(module))
	if normalized == "" {
		return
	}
	p.mu.Lock()
	if p.modules == nil {
		p.modules = make(map[string]bool)
	}
	p.modules[normalized] = paused
	p.mu.Unlock()
}

func (p *Pauses) IsPaused(module string) bool {
	if p == nil {
		return false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.modules[strings.ToLower(strings.TrimSpace(module))]
}
