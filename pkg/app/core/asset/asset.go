package asset

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ID identifies an asset. Raw amounts are always integers in the asset's
// smallest indivisible unit.
type ID uint32

// CoreID is the chain's native asset.
const CoreID ID = 0

// MaxPrecision bounds the number of decimal places an asset may declare.
const MaxPrecision = 12

// Asset is immutable metadata used only to interpret raw integer amounts.
// Matching never reads it.
type Asset struct {
	ID        ID
	Symbol    string
	Precision uint8 // decimal places of one whole unit
}

func (a Asset) String() string {
	return fmt.Sprintf("%s(%d)", a.Symbol, a.ID)
}

// Validate checks descriptor invariants.
func (a Asset) Validate() error {
	if a.Symbol == "" {
		return fmt.Errorf("asset %d: empty symbol", a.ID)
	}
	if strings.ContainsAny(a.Symbol, " \t\n:") {
		return fmt.Errorf("asset %d: invalid symbol %q", a.ID, a.Symbol)
	}
	if a.Precision > MaxPrecision {
		return fmt.Errorf("asset %s: precision %d exceeds %d", a.Symbol, a.Precision, MaxPrecision)
	}
	return nil
}

// FormatAmount renders a raw amount as a decimal string, e.g. 12345 with
// precision 2 becomes "123.45".
func (a Asset) FormatAmount(raw int64) string {
	return decimal.New(raw, -int32(a.Precision)).StringFixed(int32(a.Precision))
}

// ParseAmount converts a decimal string into raw units. Amounts with more
// fractional digits than the asset's precision are rejected, never rounded.
func (a Asset) ParseAmount(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse %s amount %q: %w", a.Symbol, s, err)
	}
	scaled := d.Shift(int32(a.Precision))
	if !scaled.IsInteger() {
		return 0, fmt.Errorf("%s amount %q has more than %d decimal places", a.Symbol, s, a.Precision)
	}
	if !scaled.BigInt().IsInt64() {
		return 0, fmt.Errorf("%s amount %q out of range", a.Symbol, s)
	}
	return scaled.IntPart(), nil
}
