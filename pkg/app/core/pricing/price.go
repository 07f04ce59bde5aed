// Package pricing holds the pure integer arithmetic of the exchange: exact
// price comparison by cross-multiplication and the per-ruleset fill rules.
// Nothing here allocates state, reads a clock or uses floating point.
package pricing

import (
	"fmt"
	"math"

	"github.com/cockroachdb/errors"
	"github.com/holiman/uint256"
)

// MaxAmount is the largest raw amount an order may carry (the maximum share
// supply of any asset).
const MaxAmount int64 = 1_000_000_000_000_000

var (
	ErrArithmeticOverflow = errors.New("arithmetic overflow")
	ErrInvalidPrice       = errors.New("invalid price")
	ErrInvalidAmount      = errors.New("invalid amount")
)

// Price is an order's exchange ratio: Sell units of its sell asset for
// Receive units of its receive asset. It is derived from the order's original
// amounts and never stored as a fraction.
type Price struct {
	Sell    int64
	Receive int64
}

func (p Price) String() string {
	return fmt.Sprintf("%d:%d", p.Sell, p.Receive)
}

// Validate reports ErrInvalidPrice unless both sides are positive and within MaxAmount.
func (p Price) Validate() error {
	if p.Sell <= 0 || p.Receive <= 0 {
		return errors.Wrapf(ErrInvalidPrice, "non-positive price %s", p)
	}
	if p.Sell > MaxAmount || p.Receive > MaxAmount {
		return errors.Wrapf(ErrInvalidPrice, "price %s exceeds max amount", p)
	}
	return nil
}

// Invert returns the same ratio seen from the counter-asset.
func (p Price) Invert() Price {
	return Price{Sell: p.Receive, Receive: p.Sell}
}

func u256(v int64) *uint256.Int {
	return uint256.NewInt(uint64(v))
}

// mul returns a*b. Operands are validated non-negative int64 values, so the
// product is below 2^126; the overflow flag is still checked.
func mul(a, b int64) (*uint256.Int, error) {
	p, overflow := new(uint256.Int).MulOverflow(u256(a), u256(b))
	if overflow {
		return nil, errors.Wrapf(ErrArithmeticOverflow, "%d * %d", a, b)
	}
	return p, nil
}

// cmpProducts compares a*b with c*d. Four 63-bit operands cannot overflow
// 256 bits, so the comparison is always exact.
func cmpProducts(a, b, c, d int64) int {
	lhs := new(uint256.Int).Mul(u256(a), u256(b))
	rhs := new(uint256.Int).Mul(u256(c), u256(d))
	return lhs.Cmp(rhs)
}

// Compare orders two prices of orders selling the same asset: it returns -1
// when a asks for less per unit sold than b (a is the better offer for a
// counterparty), 0 when the ratios are equal and +1 otherwise.
func Compare(a, b Price) int {
	// a.Receive/a.Sell vs b.Receive/b.Sell
	return cmpProducts(a.Receive, b.Sell, b.Receive, a.Sell)
}

// Crosses reports whether an incoming order at price incoming can trade with
// a resting order at price resting (selling the incoming order's receive
// asset). The resting order gives resting.Sell per resting.Receive; the
// incoming order demands at least incoming.Receive per incoming.Sell:
//
//	resting.Sell / resting.Receive >= incoming.Receive / incoming.Sell
func Crosses(incoming, resting Price) bool {
	return cmpProducts(resting.Sell, incoming.Sell, incoming.Receive, resting.Receive) >= 0
}

// toInt64 narrows a 256-bit result. Anything above math.MaxInt64 is an
// ErrArithmeticOverflow, never a wrapped or saturated value.
func toInt64(v *uint256.Int) (int64, error) {
	if !v.IsUint64() || v.Uint64() > math.MaxInt64 {
		return 0, errors.Wrapf(ErrArithmeticOverflow, "value %s exceeds int64", v.Dec())
	}
	return int64(v.Uint64()), nil
}
