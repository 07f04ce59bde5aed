package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/spotmatch/pkg/app/spot"
)

// Block is a committed block as replayed: its transactions in order and the
// app hash they produced.
type Block struct {
	Height    uint64
	Timestamp uint64
	Payload   []byte // abci.EncodePayload of the txs
	AppHash   common.Hash
}

type PebbleStore struct {
	db *pebble.DB
}

func NewPebbleStore(path string) (*PebbleStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble at %s: %w", path, err)
	}
	return &PebbleStore{db: db}, nil
}
func (s *PebbleStore) Close() error { return s.db.Close() }

// keys: b:<8-byte-height>, s:<8-byte-height>, cm:committed height
func kBlock(h uint64) []byte    { return heightKey("b:", h) }
func kSnapshot(h uint64) []byte { return heightKey("s:", h) }
func kCommitted() []byte        { return []byte("cm") }

func (s *PebbleStore) get(key []byte, v any) (bool, error) {
	val, closer, err := s.db.Get(key)
	if err != nil {
		if err == pebble.ErrNotFound {
			return false, nil
		}
		return false, err
	}
	defer closer.Close()
	if err := decodeRLP(val, v); err != nil {
		return false, fmt.Errorf("decode %q: %w", key, err)
	}
	return true, nil
}

// SaveBlock records a committed block and advances the committed height in
// one batch.
func (s *PebbleStore) SaveBlock(b Block) error {
	val, err := encodeRLP(b)
	if err != nil {
		return fmt.Errorf("encode block: %w", err)
	}

	batch := s.db.NewBatch()
	defer batch.Close()

	if err := batch.Set(kBlock(b.Height), val, nil); err != nil {
		return err
	}
	var h [8]byte
	binary.BigEndian.PutUint64(h[:], b.Height)
	if err := batch.Set(kCommitted(), h[:], nil); err != nil {
		return err
	}
	return batch.Commit(pebble.Sync)
}

func (s *PebbleStore) GetBlock(height uint64) (Block, bool, error) {
	var out Block
	ok, err := s.get(kBlock(height), &out)
	return out, ok, err
}

// Committed returns the height of the last saved block.
func (s *PebbleStore) Committed() (uint64, bool, error) {
	val, closer, err := s.db.Get(kCommitted())
	if err != nil {
		if err == pebble.ErrNotFound {
			return 0, false, nil
		}
		return 0, false, err
	}
	defer closer.Close()
	if len(val) != 8 {
		return 0, false, fmt.Errorf("corrupt committed height: %d bytes", len(val))
	}
	return binary.BigEndian.Uint64(val), true, nil
}

// SaveSnapshot stores a full state machine snapshot under its height.
func (s *PebbleStore) SaveSnapshot(st spot.State) error {
	val, err := encodeRLP(st)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return s.db.Set(kSnapshot(st.Height), val, pebble.Sync)
}

// LatestSnapshot returns the snapshot with the greatest height.
func (s *PebbleStore) LatestSnapshot() (spot.State, bool, error) {
	prefix := []byte("s:")
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: []byte("s;"),
	})
	if err != nil {
		return spot.State{}, false, err
	}
	defer iter.Close()

	if !iter.Last() {
		return spot.State{}, false, nil
	}
	var st spot.State
	if err := decodeRLP(iter.Value(), &st); err != nil {
		return spot.State{}, false, fmt.Errorf("decode snapshot: %w", err)
	}
	return st, true, nil
}

// PruneSnapshots deletes every snapshot below height.
func (s *PebbleStore) PruneSnapshots(height uint64) error {
	return s.db.DeleteRange(kSnapshot(0), kSnapshot(height), pebble.Sync)
}
