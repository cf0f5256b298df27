// Package reserve manages proof-of-reserve feed handles for listed assets.
package reserve

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"collend/storage"
)

const keyPrefix = "reserve/feeds/"

// Record is the stored provisioning receipt for an asset's reserve feed.
type Record struct {
	Asset         common.Address `json:"asset"`
	ProvisionedAt time.Time      `json:"provisionedAt"`
}

// Provisioner creates and tracks proof-of-reserve feeds. Provisioning is
// idempotent per asset: a second call for an already-provisioned asset is a
// no-op.
type Provisioner struct {
	db     storage.Database
	nowFn  func() time.Time
	logger *slog.Logger
}

func NewProvisioner(db storage.Database) *Provisioner {
	return &Provisioner{db: db, nowFn: time.Now}
}

func (p *Provisioner) SetNowFunc(now func() time.Time) {
	if p == nil || now == nil {
		return
	}
	p.nowFn = now
}

func (p *Provisioner) SetLogger(logger *slog.Logger) {
	if p == nil {
		return
	}
	p.logger = logger
}

// ProvisionReserveFeed records a reserve feed handle for asset. Called by the
// registry exactly once on first listing; repeated calls are harmless.
func (p *Provisioner) ProvisionReserveFeed(asset common.Address) error {
	if p == nil || p.db == nil {
		return fmt.Errorf("reserve: provisioner not initialised")
	}
	key := feedKey(asset)
	exists, err := p.db.Has(key)
	if err != nil {
		return fmt.Errorf("reserve: check feed for %s: %w", asset.Hex(), err)
	}
	if exists {
		return nil
	}
	record := Record{Asset: asset, ProvisionedAt: p.nowFn().UTC()}
	encoded, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("reserve: encode feed record: %w", err)
	}
	if err := p.db.Put(key, encoded); err != nil {
		return fmt.Errorf("reserve: store feed for %s: %w", asset.Hex(), err)
	}
	if p.logger != nil {
		p.logger.Info("reserve feed provisioned", "asset", asset.Hex())
	}
	return nil
}

// Provisioned reports whether asset already has a reserve feed.
func (p *Provisioner) Provisioned(asset common.Address) (bool, error) {
	if p == nil || p.db == nil {
		return false, fmt.Errorf("reserve: provisioner not initialised")
	}
	return p.db.Has(feedKey(asset))
}

// Feed loads the provisioning receipt for asset, or nil when none exists.
func (p *Provisioner) Feed(asset common.Address) (*Record, error) {
	if p == nil || p.db == nil {
		return nil, fmt.Errorf("reserve: provisioner not initialised")
	}
	raw, err := p.db.Get(feedKey(asset))
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("reserve: load feed for %s: %w", asset.Hex(), err)
	}
	var record Record
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("reserve: decode feed record: %w", err)
	}
	return &record, nil
}

func feedKey(asset common.Address) []byte {
	return append([]byte(keyPrefix), asset.Bytes()...)
}
