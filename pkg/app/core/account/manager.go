package account

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/spotmatch/pkg/app/core/asset"
	"github.com/uhyunpark/spotmatch/pkg/app/core/matching"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrBalanceOverflow     = errors.New("balance overflow")
)

// AccountManager is the balance ledger the matching engine settles against.
// Orders escrow their sell amount on submission; transfers move escrow to the
// counterparty and refunds release it back to the owner.
type AccountManager struct {
	mu       sync.RWMutex
	accounts map[common.Address]*Account
}

func NewAccountManager() *AccountManager {
	return &AccountManager{
		accounts: make(map[common.Address]*Account),
	}
}

// getAccountLocked returns the account for addr, creating it (assumes lock is held)
func (am *AccountManager) getAccountLocked(addr common.Address) *Account {
	acc, ok := am.accounts[addr]
	if !ok {
		acc = NewAccount(addr)
		am.accounts[addr] = acc
	}
	return acc
}

// lookupLocked returns addr's balance of id without creating it, or nil
// (assumes lock is held).
func (am *AccountManager) lookupLocked(addr common.Address, id asset.ID) *Balance {
	acc, ok := am.accounts[addr]
	if !ok {
		return nil
	}
	return acc.Balances[id]
}

func add(a, b int64) (int64, error) {
	if b > 0 && a > math.MaxInt64-b {
		return 0, fmt.Errorf("%w: %d + %d", ErrBalanceOverflow, a, b)
	}
	return a + b, nil
}

// Balance returns the balance of id held by addr.
func (am *AccountManager) Balance(addr common.Address, id asset.ID) Balance {
	am.mu.RLock()
	defer am.mu.RUnlock()

	acc, ok := am.accounts[addr]
	if !ok {
		return Balance{}
	}
	if b, ok := acc.Balances[id]; ok {
		return *b
	}
	return Balance{}
}

// Deposit credits amount of id to addr's available balance (genesis funding).
func (am *AccountManager) Deposit(addr common.Address, id asset.ID, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("deposit amount must be positive: %d", amount)
	}

	am.mu.Lock()
	defer am.mu.Unlock()

	b := am.getAccountLocked(addr).balance(id)
	v, err := add(b.Available, amount)
	if err != nil {
		return err
	}
	b.Available = v
	return nil
}

// Escrow moves amount of id from available to locked.
func (am *AccountManager) Escrow(addr common.Address, id asset.ID, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("escrow amount must be positive: %d", amount)
	}

	am.mu.Lock()
	defer am.mu.Unlock()

	b := am.lookupLocked(addr, id)
	if b == nil || b.Available < amount {
		var have int64
		if b != nil {
			have = b.Available
		}
		return fmt.Errorf("%w: %s has %d of asset %d, needs %d", ErrInsufficientBalance, addr.Hex(), have, id, amount)
	}
	b.Available -= amount
	b.Locked += amount
	return nil
}

// release takes amount out of addr's locked balance (assumes lock is held).
func (am *AccountManager) release(addr common.Address, id asset.ID, amount int64) error {
	b := am.lookupLocked(addr, id)
	if b == nil || amount <= 0 || b.Locked < amount {
		var locked int64
		if b != nil {
			locked = b.Locked
		}
		return fmt.Errorf("release %d of asset %d from %s: locked is %d", amount, id, addr.Hex(), locked)
	}
	b.Locked -= amount
	return nil
}

func (am *AccountManager) credit(addr common.Address, id asset.ID, amount int64) error {
	b := am.getAccountLocked(addr).balance(id)
	v, err := add(b.Available, amount)
	if err != nil {
		return err
	}
	b.Available = v
	return nil
}

// ApplyTransfers settles fills: each amount leaves the payer's escrow and is
// credited to the receiver. The caller restores a snapshot if this fails.
func (am *AccountManager) ApplyTransfers(ts []matching.TransferInstruction) error {
	am.mu.Lock()
	defer am.mu.Unlock()

	for _, t := range ts {
		if err := am.release(t.From, t.Asset, t.Amount); err != nil {
			return fmt.Errorf("%s: %w", t, err)
		}
		if err := am.credit(t.To, t.Asset, t.Amount); err != nil {
			return fmt.Errorf("%s: %w", t, err)
		}
	}
	return nil
}

// ApplyRefunds returns escrow to order owners.
func (am *AccountManager) ApplyRefunds(rs []matching.RefundInstruction) error {
	am.mu.Lock()
	defer am.mu.Unlock()

	for _, r := range rs {
		if err := am.release(r.Owner, r.Asset, r.Amount); err != nil {
			return fmt.Errorf("refund order %d (%s): %w", r.OrderID, r.Reason, err)
		}
		if err := am.credit(r.Owner, r.Asset, r.Amount); err != nil {
			return fmt.Errorf("refund order %d (%s): %w", r.OrderID, r.Reason, err)
		}
	}
	return nil
}

// Supply returns the total of id held across all accounts, available and locked.
func (am *AccountManager) Supply(id asset.ID) int64 {
	am.mu.RLock()
	defer am.mu.RUnlock()

	var total int64
	for _, acc := range am.accounts {
		if b, ok := acc.Balances[id]; ok {
			total += b.Total()
		}
	}
	return total
}

// Addresses returns every known address in byte order.
func (am *AccountManager) Addresses() []common.Address {
	am.mu.RLock()
	defer am.mu.RUnlock()

	return am.addressesLocked()
}

func (am *AccountManager) addressesLocked() []common.Address {
	out := make([]common.Address, 0, len(am.accounts))
	for addr := range am.accounts {
		out = append(out, addr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Cmp(out[j]) < 0 })
	return out
}

// Validate checks every account's invariants.
func (am *AccountManager) Validate() error {
	am.mu.RLock()
	defer am.mu.RUnlock()

	for _, addr := range am.addressesLocked() {
		if err := am.accounts[addr].Validate(); err != nil {
			return err
		}
	}
	return nil
}
