package account

import (
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/spotmatch/pkg/app/core/asset"
)

// Balance of one asset. Locked is escrowed by resting or in-flight orders.
type Balance struct {
	Available int64 `json:"available"`
	Locked    int64 `json:"locked"`
}

// Total returns Available + Locked.
func (b Balance) Total() int64 {
	return b.Available + b.Locked
}

func (b Balance) IsZero() bool {
	return b.Available == 0 && b.Locked == 0
}

// Account holds every asset balance of one address.
type Account struct {
	Address  common.Address
	Balances map[asset.ID]*Balance
}

// NewAccount creates a new account with no balances
func NewAccount(addr common.Address) *Account {
	return &Account{
		Address:  addr,
		Balances: make(map[asset.ID]*Balance),
	}
}

// balance returns the balance record for id, creating it when missing.
func (a *Account) balance(id asset.ID) *Balance {
	b, ok := a.Balances[id]
	if !ok {
		b = &Balance{}
		a.Balances[id] = b
	}
	return b
}

// Assets returns the ids of non-empty balances, sorted.
func (a *Account) Assets() []asset.ID {
	ids := make([]asset.ID, 0, len(a.Balances))
	for id, b := range a.Balances {
		if !b.IsZero() {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Validate checks account invariants
func (a *Account) Validate() error {
	for id, b := range a.Balances {
		if b.Available < 0 {
			return fmt.Errorf("%s: negative available balance of asset %d: %d", a.Address.Hex(), id, b.Available)
		}
		if b.Locked < 0 {
			return fmt.Errorf("%s: negative locked balance of asset %d: %d", a.Address.Hex(), id, b.Locked)
		}
	}
	return nil
}
