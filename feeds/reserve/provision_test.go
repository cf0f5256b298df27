package reserve

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"collend/storage"
)

var testAsset = common.HexToAddress("0x00000000000000000000000000000000000000AA")

func TestProvisionReserveFeedIdempotent(t *testing.T) {
	p := NewProvisioner(storage.NewMemDB())
	first := time.Unix(1_700_000_000, 0)
	p.SetNowFunc(func() time.Time { return first })

	if err := p.ProvisionReserveFeed(testAsset); err != nil {
		t.Fatalf("provision: %v", err)
	}
	ok, err := p.Provisioned(testAsset)
	if err != nil || !ok {
		t.Fatalf("provisioned = %v, %v", ok, err)
	}

	// A later repeat call must not overwrite the original receipt.
	p.SetNowFunc(func() time.Time { return first.Add(time.Hour) })
	if err := p.ProvisionReserveFeed(testAsset); err != nil {
		t.Fatalf("repeat provision: %v", err)
	}

	record, err := p.Feed(testAsset)
	if err != nil {
		t.Fatalf("load feed: %v", err)
	}
	if record == nil || record.Asset != testAsset {
		t.Fatalf("record = %+v", record)
	}
	if !record.ProvisionedAt.Equal(first.UTC()) {
		t.Fatalf("provisioned at %s, want %s", record.ProvisionedAt, first.UTC())
	}
}

func TestFeedMissing(t *testing.T) {
	p := NewProvisioner(storage.NewMemDB())
	record, err := p.Feed(testAsset)
	if err != nil {
		t.Fatalf("load feed: %v", err)
	}
	if record != nil {
		t.Fatalf("expected nil record, got %+v", record)
	}
	ok, err := p.Provisioned(testAsset)
	if err != nil || ok {
		t.Fatalf("provisioned = %v, %v", ok, err)
	}
}
