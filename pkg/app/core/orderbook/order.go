package orderbook

import (
	"fmt"
	"math"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/spotmatch/pkg/app/core/asset"
	"github.com/uhyunpark/spotmatch/pkg/app/core/pricing"
)

// NoExpiration marks an order that stays on the book until filled or cancelled.
const NoExpiration int64 = math.MaxInt64

// Order is one resting limit order.
type Order struct {
	ID    uint64
	Owner common.Address

	SellAsset    asset.ID
	ReceiveAsset asset.ID

	// ForSale is the remaining amount of SellAsset. It only ever decreases.
	ForSale int64
	// Price holds the original for_sale and amount_to_receive; it is frozen
	// at creation and is the only source of the order's exchange ratio.
	Price pricing.Price

	// Expiration is a unix timestamp (seconds); the order is removed once the
	// block time reaches it.
	Expiration int64
	// Sequence is the insertion order and the final tie-break at equal price.
	Sequence uint64

	sidePos   int
	expiryPos int
}

func (o *Order) String() string {
	return fmt.Sprintf("order#%d{%d/%d for_sale=%d price=%s seq=%d}",
		o.ID, o.SellAsset, o.ReceiveAsset, o.ForSale, o.Price, o.Sequence)
}

// Expired reports whether the order is past its expiration at now.
func (o *Order) Expired(now int64) bool {
	return o.Expiration <= now
}

// AmountToReceive is the original amount of ReceiveAsset the order demanded.
func (o *Order) AmountToReceive() int64 {
	return o.Price.Receive
}

// Pair is an unordered trading pair, normalised so that Base < Quote.
type Pair struct {
	Base  asset.ID
	Quote asset.ID
}

func NewPair(a, b asset.ID) Pair {
	if a > b {
		a, b = b, a
	}
	return Pair{Base: a, Quote: b}
}

func (p Pair) String() string {
	return fmt.Sprintf("%d/%d", p.Base, p.Quote)
}

// Other returns the asset of the pair that is not id.
func (p Pair) Other(id asset.ID) asset.ID {
	if id == p.Base {
		return p.Quote
	}
	return p.Base
}

// Has reports whether id is one of the pair's assets.
func (p Pair) Has(id asset.ID) bool {
	return id == p.Base || id == p.Quote
}

// better is the side ordering: cheaper asks first, then lower sequence.
// It is total because sequences are unique.
func better(a, b *Order) bool {
	if c := pricing.Compare(a.Price, b.Price); c != 0 {
		return c < 0
	}
	return a.Sequence < b.Sequence
}

// expiresFirst orders the expiry index by (expiration, id).
func expiresFirst(a, b *Order) bool {
	if a.Expiration != b.Expiration {
		return a.Expiration < b.Expiration
	}
	return a.ID < b.ID
}
