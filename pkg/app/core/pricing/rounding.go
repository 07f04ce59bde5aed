package pricing

import (
	"github.com/cockroachdb/errors"
	"github.com/holiman/uint256"
)

type Rounding uint8

const (
	RoundDown Rounding = iota
	RoundUp
)

func (r Rounding) String() string {
	if r == RoundUp {
		return "up"
	}
	return "down"
}

// mulDiv computes a*b/c in 256 bits, rounded as requested.
func mulDiv(a, b, c int64, r Rounding) (*uint256.Int, error) {
	if a < 0 || b < 0 {
		return nil, errors.Wrapf(ErrInvalidAmount, "negative operand %d * %d", a, b)
	}
	if c <= 0 {
		return nil, errors.Wrapf(ErrInvalidPrice, "non-positive divisor %d", c)
	}
	p, err := mul(a, b)
	if err != nil {
		return nil, err
	}
	q, m := new(uint256.Int).DivMod(p, u256(c), new(uint256.Int))
	if r == RoundUp && !m.IsZero() {
		q.AddUint64(q, 1)
	}
	return q, nil
}

// MulDiv computes a*b/c with the given rounding. The result must fit in an
// int64; otherwise ErrArithmeticOverflow is returned.
func MulDiv(a, b, c int64, r Rounding) (int64, error) {
	q, err := mulDiv(a, b, c, r)
	if err != nil {
		return 0, err
	}
	return toInt64(q)
}

// Convert returns the amount of p's receive asset that amount units of its
// sell asset are worth at p.
func Convert(amount int64, p Price, r Rounding) (int64, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	return MulDiv(amount, p.Receive, p.Sell, r)
}

// IsDust reports whether forSale units offered at p are worth less than one
// indivisible unit of the receive asset.
func IsDust(forSale int64, p Price) (bool, error) {
	if err := p.Validate(); err != nil {
		return false, err
	}
	v, err := mulDiv(forSale, p.Receive, p.Sell, RoundDown)
	if err != nil {
		return false, err
	}
	return v.IsZero(), nil
}
