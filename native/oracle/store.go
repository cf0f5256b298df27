package oracle

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"

	"collend/storage"
)

var breakerPrefix = []byte("oracle/breaker/")

// Store persists the per-asset circuit-breaker flag in a storage.Database.
// The flag is created implicitly as "not broken" and is never deleted, only
// flipped.
type Store struct {
	db storage.Database
}

func NewStore(db storage.Database) *Store {
	return &Store{db: db}
}

func breakerKey(asset common.Address) []byte {
	return append(append([]byte(nil), breakerPrefix...), asset.Bytes()...)
}

func (s *Store) Broken(asset common.Address) (bool, error) {
	raw, err := s.db.Get(breakerKey(asset))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return len(raw) == 1 && raw[0] == 1, nil
}

func (s *Store) SetBroken(asset common.Address, broken bool) error {
	value := []byte{0}
	if broken {
		value[0] = 1
	}
	return s.db.Put(breakerKey(asset), value)
}
