package pricing

import (
	"github.com/cockroachdb/errors"

	"github.com/uhyunpark/spotmatch/params"
)

// Fill is the outcome of crossing a taker against one maker. TakerPays moves
// the taker's sell asset to the maker's owner and MakerPays moves the maker's
// sell asset to the taker's owner; both legs come out of a single integer
// computation.
type Fill struct {
	TakerPays int64
	MakerPays int64

	// MakerDust: the maker's remainder is worth less than one unit of what it
	// wants. It must be removed and refunded; no transfer happens.
	MakerDust bool
	// TakerDust: the taker's remainder cannot buy one unit at the trade price.
	// Matching stops and the remainder is refunded.
	TakerDust bool
}

// Degenerate reports whether the step exchanged nothing.
func (f Fill) Degenerate() bool {
	return f.MakerDust || f.TakerDust
}

// Match computes one matching step under the given ruleset. takerForSale and
// makerForSale are the remaining amounts; taker and maker are the orders'
// original prices. The caller has already established that the two orders
// cross.
//
// Legacy fills trade at the maker's price. Metal-exchange fills trade at the
// taker's price, which crossing guarantees is at least as good for the maker
// as its own.
func Match(rs params.Ruleset, takerForSale, makerForSale int64, taker, maker Price) (Fill, error) {
	if takerForSale <= 0 || makerForSale <= 0 {
		return Fill{}, errors.AssertionFailedf("match with non-positive for_sale: taker=%d maker=%d", takerForSale, makerForSale)
	}
	if err := maker.Validate(); err != nil {
		return Fill{}, err
	}
	if err := taker.Validate(); err != nil {
		return Fill{}, err
	}

	var (
		f   Fill
		err error
	)
	switch rs {
	case params.RulesetLegacy:
		f, err = matchLegacy(takerForSale, makerForSale, maker)
	case params.RulesetMetalExchange:
		f, err = matchMetalExchange(takerForSale, makerForSale, taker, maker)
	default:
		return Fill{}, errors.AssertionFailedf("unknown ruleset %s", rs)
	}
	if err != nil {
		return Fill{}, err
	}

	if f.TakerPays < 0 || f.TakerPays > takerForSale || f.MakerPays < 0 || f.MakerPays > makerForSale {
		return Fill{}, errors.AssertionFailedf("fill %+v exceeds remaining taker=%d maker=%d", f, takerForSale, makerForSale)
	}
	return f, nil
}

// matchLegacy is the pre-fork rule. Both conversions round down at the
// maker's price, so a taker may pay for nothing and a maker may sell for
// nothing; replays depend on it.
func matchLegacy(t, f int64, maker Price) (Fill, error) {
	// taker's whole remainder expressed in the maker's sell asset
	q, err := mulDiv(t, maker.Sell, maker.Receive, RoundDown)
	if err != nil {
		return Fill{}, err
	}

	if q.Cmp(u256(f)) <= 0 {
		got, err := toInt64(q)
		if err != nil {
			return Fill{}, err
		}
		return Fill{TakerPays: t, MakerPays: got}, nil
	}

	pays, err := MulDiv(f, maker.Receive, maker.Sell, RoundDown)
	if err != nil {
		return Fill{}, err
	}
	return Fill{TakerPays: pays, MakerPays: f}, nil
}

// matchMetalExchange trades at the taker's price. The amount the taker
// receives rounds down, the amount it pays rounds up, and neither leg is ever
// zero. A maker worth less than one unit at its own price is culled first.
func matchMetalExchange(t, f int64, taker, maker Price) (Fill, error) {
	worth, err := mulDiv(f, maker.Receive, maker.Sell, RoundDown)
	if err != nil {
		return Fill{}, err
	}
	if worth.IsZero() {
		return Fill{MakerDust: true}, nil
	}

	// what the taker's remainder buys at its own price, in the maker's asset
	q, err := mulDiv(t, taker.Receive, taker.Sell, RoundDown)
	if err != nil {
		return Fill{}, err
	}
	if q.IsZero() {
		return Fill{TakerDust: true}, nil
	}

	got := f
	if q.Cmp(u256(f)) < 0 {
		if got, err = toInt64(q); err != nil {
			return Fill{}, err
		}
	}
	// got <= t*taker.Receive/taker.Sell, so the ceiling never exceeds t
	pays, err := MulDiv(got, taker.Sell, taker.Receive, RoundUp)
	if err != nil {
		return Fill{}, err
	}
	return Fill{TakerPays: pays, MakerPays: got}, nil
}
