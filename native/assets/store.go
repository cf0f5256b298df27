package assets

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"collend/storage"
)

// Key layout within the shared key-value store.
var (
	assetConfigPrefix = []byte("assets/config/")
	assetIndexKey     = []byte("assets/index")
	tierRatesPrefix   = []byte("assets/tiers/")
)

// Store persists registry state in a storage.Database. Asset configs are JSON
// encoded; the insertion-ordered listing lives under a single index key.
type Store struct {
	db storage.Database
}

func NewStore(db storage.Database) *Store {
	return &Store{db: db}
}

func assetConfigKey(asset common.Address) []byte {
	return append(append([]byte(nil), assetConfigPrefix...), asset.Bytes()...)
}

func tierRatesKey(tier Tier) []byte {
	return append(append([]byte(nil), tierRatesPrefix...), byte(tier))
}

func (s *Store) GetAsset(asset common.Address) (*AssetConfig, error) {
	raw, err := s.db.Get(assetConfigKey(asset))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	cfg := new(AssetConfig)
	if err := json.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("decode asset config: %w", err)
	}
	return cfg, nil
}

func (s *Store) PutAsset(asset common.Address, cfg *AssetConfig) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode asset config: %w", err)
	}
	return s.db.Put(assetConfigKey(asset), raw)
}

func (s *Store) ListAssets() ([]common.Address, error) {
	raw, err := s.db.Get(assetIndexKey)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return []common.Address{}, nil
	}
	if err != nil {
		return nil, err
	}
	var index []common.Address
	if err := json.Unmarshal(raw, &index); err != nil {
		return nil, fmt.Errorf("decode asset index: %w", err)
	}
	return index, nil
}

func (s *Store) AppendAsset(asset common.Address) error {
	index, err := s.ListAssets()
	if err != nil {
		return err
	}
	for _, existing := range index {
		if existing == asset {
			return nil
		}
	}
	index = append(index, asset)
	raw, err := json.Marshal(index)
	if err != nil {
		return fmt.Errorf("encode asset index: %w", err)
	}
	return s.db.Put(assetIndexKey, raw)
}

func (s *Store) GetTierRates(tier Tier) (*TierRates, error) {
	raw, err := s.db.Get(tierRatesKey(tier))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rates := new(TierRates)
	if err := json.Unmarshal(raw, rates); err != nil {
		return nil, fmt.Errorf("decode tier rates: %w", err)
	}
	return rates, nil
}

func (s *Store) PutTierRates(tier Tier, rates TierRates) error {
	raw, err := json.Marshal(rates)
	if err != nil {
		return fmt.Errorf("encode tier rates: %w", err)
	}
	return s.db.Put(tierRatesKey(tier), raw)
}
