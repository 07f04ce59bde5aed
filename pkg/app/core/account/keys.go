package account

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/spotmatch/pkg/app/core/asset"
)

// Pebble key schema
// 1. Prefix-based for range scans (all balances of an account)
// 2. Asset id zero-padded so balances iterate in id order

const (
	prefixBalance = "bal:"   // Balance per (account, asset)
	keyHeight     = "height" // Height the stored ledger corresponds to
)

// balanceKey returns the key for one balance
// Format: "bal:{address}:{asset id, 10 digits}"
// Example: "bal:0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb0:0000000001"
func balanceKey(addr common.Address, id asset.ID) []byte {
	return []byte(fmt.Sprintf("%s%s:%010d", prefixBalance, addr.Hex(), id))
}

// balancePrefix returns the prefix for all balances of an account
// Format: "bal:{address}:"
func balancePrefix(addr common.Address) []byte {
	return []byte(fmt.Sprintf("%s%s:", prefixBalance, addr.Hex()))
}

// keyUpperBound returns the exclusive upper bound for a prefix scan
// Example: prefix "bal:0x123:" -> upper bound "bal:0x123;" (next byte after ':')
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}

// parseBalanceKey is the inverse of balanceKey.
func parseBalanceKey(key []byte) (common.Address, asset.ID, error) {
	rest := strings.TrimPrefix(string(key), prefixBalance)
	if len(rest) == len(key) {
		return common.Address{}, 0, fmt.Errorf("not a balance key: %q", key)
	}
	addrHex, idStr, ok := strings.Cut(rest, ":")
	if !ok || !common.IsHexAddress(addrHex) {
		return common.Address{}, 0, fmt.Errorf("invalid balance key: %q", key)
	}
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil {
		return common.Address{}, 0, fmt.Errorf("invalid asset id in key %q: %w", key, err)
	}
	return common.HexToAddress(addrHex), asset.ID(id), nil
}
