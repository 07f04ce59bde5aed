package spot

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/uhyunpark/spotmatch/pkg/app/core/account"
	"github.com/uhyunpark/spotmatch/pkg/app/core/matching"
)

// State is everything needed to resume the state machine: the last committed
// block, its app hash, the book and the ledger. It is RLP-encodable.
type State struct {
	Height    uint64
	Timestamp uint64
	AppHash   common.Hash
	Engine    matching.State
	Ledger    account.State
}

// hashedState is what the app hash commits to.
type hashedState struct {
	Height    uint64
	Timestamp uint64
	Engine    matching.State
	Ledger    account.State
}

func (a *App) checkpoint() State {
	return State{
		Height:    a.height,
		Timestamp: uint64(a.timestamp),
		AppHash:   a.appHash,
		Engine:    a.engine.Snapshot(),
		Ledger:    a.ledger.Snapshot(),
	}
}

func (a *App) restore(s State) error {
	if err := a.engine.Restore(s.Engine); err != nil {
		return fmt.Errorf("restore engine: %w", err)
	}
	if err := a.ledger.Restore(s.Ledger); err != nil {
		return fmt.Errorf("restore ledger: %w", err)
	}
	a.height = s.Height
	a.timestamp = int64(s.Timestamp)
	a.appHash = s.AppHash
	return nil
}

// Snapshot returns the committed state.
func (a *App) Snapshot() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.checkpoint()
}

// Restore loads a committed state and checks it against its recorded hash.
func (a *App) Restore(s State) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	want := hashState(s.Height, s.Timestamp, s.Engine, s.Ledger)
	if want != s.AppHash {
		return fmt.Errorf("state at height %d hashes to %s, recorded %s", s.Height, want.Hex(), s.AppHash.Hex())
	}
	prev := a.checkpoint()
	if err := a.restore(s); err != nil {
		if rerr := a.restore(prev); rerr != nil {
			return fmt.Errorf("%v; rollback: %w", err, rerr)
		}
		return err
	}
	return nil
}

// computeStateHash is Keccak256 over the RLP encoding of the block position,
// every resting order sorted by id and every non-empty balance sorted by
// (address, asset). Equal states always hash equally.
func (a *App) computeStateHash() common.Hash {
	return hashState(a.height, uint64(a.timestamp), a.engine.Snapshot(), a.ledger.Snapshot())
}

func hashState(height, timestamp uint64, e matching.State, l account.State) common.Hash {
	enc, err := rlp.EncodeToBytes(hashedState{Height: height, Timestamp: timestamp, Engine: e, Ledger: l})
	if err != nil {
		// only unsupported types fail to encode
		panic(fmt.Sprintf("encode state: %v", err))
	}
	return crypto.Keccak256Hash(enc)
}
