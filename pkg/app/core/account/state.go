package account

import (
	"fmt"
	"math"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/spotmatch/pkg/app/core/asset"
)

// BalanceState is the RLP form of one non-empty balance.
type BalanceState struct {
	Asset     asset.ID
	Available uint64
	Locked    uint64
}

type AccountState struct {
	Address  common.Address
	Balances []BalanceState
}

// State is the whole ledger, accounts sorted by address and balances by
// asset id. Empty balances and accounts are omitted.
type State struct {
	Accounts []AccountState
}

func (am *AccountManager) Snapshot() State {
	am.mu.RLock()
	defer am.mu.RUnlock()

	s := State{Accounts: []AccountState{}}
	for _, addr := range am.addressesLocked() {
		acc := am.accounts[addr]
		ids := acc.Assets()
		if len(ids) == 0 {
			continue
		}
		as := AccountState{Address: addr, Balances: make([]BalanceState, 0, len(ids))}
		for _, id := range ids {
			b := acc.Balances[id]
			as.Balances = append(as.Balances, BalanceState{
				Asset:     id,
				Available: uint64(b.Available),
				Locked:    uint64(b.Locked),
			})
		}
		s.Accounts = append(s.Accounts, as)
	}
	return s
}

// Restore replaces the ledger with s. On error the ledger is unchanged.
func (am *AccountManager) Restore(s State) error {
	accounts := make(map[common.Address]*Account, len(s.Accounts))
	for _, as := range s.Accounts {
		if _, dup := accounts[as.Address]; dup {
			return fmt.Errorf("duplicate account %s", as.Address.Hex())
		}
		acc := NewAccount(as.Address)
		for _, bs := range as.Balances {
			if bs.Available > math.MaxInt64 || bs.Locked > math.MaxInt64 {
				return fmt.Errorf("%s asset %d: balance out of range", as.Address.Hex(), bs.Asset)
			}
			if _, dup := acc.Balances[bs.Asset]; dup {
				return fmt.Errorf("%s: duplicate asset %d", as.Address.Hex(), bs.Asset)
			}
			acc.Balances[bs.Asset] = &Balance{Available: int64(bs.Available), Locked: int64(bs.Locked)}
		}
		accounts[as.Address] = acc
	}

	am.mu.Lock()
	am.accounts = accounts
	am.mu.Unlock()
	return nil
}
