package account

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/spotmatch/pkg/app/core/asset"
)

// Store persists committed ledger balances for point queries by tooling.
// It is written once per committed block and never read by the state machine.
type Store struct {
	db *pebble.DB
}

// NewStore opens a Pebble database at the given path
func NewStore(dbPath string) (*Store, error) {
	opts := &pebble.Options{
		Cache:        pebble.NewCache(16 << 20),
		MemTableSize: 16 << 20,
		MaxOpenFiles: 1000,
	}

	db, err := pebble.Open(dbPath, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble db at %s: %w", dbPath, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SaveState replaces the stored ledger with st as of height, atomically.
func (s *Store) SaveState(height uint64, st State) error {
	batch := s.db.NewBatch()
	defer batch.Close()

	prefix := []byte(prefixBalance)
	if err := batch.DeleteRange(prefix, keyUpperBound(prefix), nil); err != nil {
		return fmt.Errorf("failed to clear balances: %w", err)
	}
	for _, as := range st.Accounts {
		for _, bs := range as.Balances {
			data, err := json.Marshal(Balance{Available: int64(bs.Available), Locked: int64(bs.Locked)})
			if err != nil {
				return fmt.Errorf("failed to marshal balance: %w", err)
			}
			if err := batch.Set(balanceKey(as.Address, bs.Asset), data, nil); err != nil {
				return fmt.Errorf("failed to save balance: %w", err)
			}
		}
	}

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], height)
	if err := batch.Set([]byte(keyHeight), buf[:], nil); err != nil {
		return fmt.Errorf("failed to save height: %w", err)
	}

	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("failed to commit ledger: %w", err)
	}
	return nil
}

// Height returns the height of the stored ledger, or false if nothing was saved.
func (s *Store) Height() (uint64, bool, error) {
	data, closer, err := s.db.Get([]byte(keyHeight))
	if err == pebble.ErrNotFound {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get height: %w", err)
	}
	defer closer.Close()

	if len(data) != 8 {
		return 0, false, fmt.Errorf("corrupt height record: %d bytes", len(data))
	}
	return binary.BigEndian.Uint64(data), true, nil
}

// LoadBalance returns the stored balance of id for addr.
func (s *Store) LoadBalance(addr common.Address, id asset.ID) (Balance, error) {
	data, closer, err := s.db.Get(balanceKey(addr, id))
	if err == pebble.ErrNotFound {
		return Balance{}, nil
	}
	if err != nil {
		return Balance{}, fmt.Errorf("failed to get balance: %w", err)
	}
	defer closer.Close()

	var b Balance
	if err := json.Unmarshal(data, &b); err != nil {
		return Balance{}, fmt.Errorf("failed to unmarshal balance: %w", err)
	}
	return b, nil
}

// LoadAccount returns every stored balance of addr.
func (s *Store) LoadAccount(addr common.Address) (*Account, error) {
	prefix := balancePrefix(addr)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open iterator: %w", err)
	}
	defer iter.Close()

	acc := NewAccount(addr)
	for iter.First(); iter.Valid(); iter.Next() {
		_, id, err := parseBalanceKey(iter.Key())
		if err != nil {
			return nil, err
		}
		var b Balance
		if err := json.Unmarshal(iter.Value(), &b); err != nil {
			return nil, fmt.Errorf("failed to unmarshal balance: %w", err)
		}
		acc.Balances[id] = &b
	}
	return acc, nil
}
