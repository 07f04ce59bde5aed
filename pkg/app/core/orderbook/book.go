package orderbook

import (
	"sort"

	"github.com/cockroachdb/errors"

	"github.com/uhyunpark/spotmatch/pkg/app/core/asset"
)

var ErrOrderNotFound = errors.New("order not found")

// Book holds the resting orders of one unordered asset pair. Orders selling
// Pair.Base and orders selling Pair.Quote live on separate sides, each ordered
// best price first and oldest first at equal price.
type Book struct {
	pair   Pair
	base   *orderHeap // orders selling pair.Base
	quote  *orderHeap // orders selling pair.Quote
	expiry *orderHeap
	orders map[uint64]*Order
}

func NewBook(pair Pair) *Book {
	return &Book{
		pair:   pair,
		base:   newSideHeap(),
		quote:  newSideHeap(),
		expiry: newExpiryHeap(),
		orders: make(map[uint64]*Order),
	}
}

func (b *Book) Pair() Pair { return b.pair }

// Len returns the number of resting orders on both sides.
func (b *Book) Len() int { return len(b.orders) }

func (b *Book) side(sell asset.ID) *orderHeap {
	switch sell {
	case b.pair.Base:
		return b.base
	case b.pair.Quote:
		return b.quote
	}
	return nil
}

// Insert places o on the side selling o.SellAsset. The book keeps its own
// copy of the order.
func (b *Book) Insert(o Order) error {
	if o.ForSale <= 0 {
		return errors.AssertionFailedf("insert %s with non-positive for_sale", &o)
	}
	if o.SellAsset == o.ReceiveAsset || !b.pair.Has(o.SellAsset) || !b.pair.Has(o.ReceiveAsset) {
		return errors.AssertionFailedf("insert %s into book %s", &o, b.pair)
	}
	if _, dup := b.orders[o.ID]; dup {
		return errors.AssertionFailedf("duplicate order id %d", o.ID)
	}

	ord := o
	ord.sidePos, ord.expiryPos = -1, -1
	b.side(ord.SellAsset).add(&ord)
	b.expiry.add(&ord)
	b.orders[ord.ID] = &ord
	return nil
}

// Best returns the best order selling the given asset.
func (b *Book) Best(sell asset.ID) (Order, bool) {
	h := b.side(sell)
	if h == nil {
		return Order{}, false
	}
	top := h.Peek()
	if top == nil {
		return Order{}, false
	}
	return *top, true
}

// Get returns a copy of the resting order with the given id.
func (b *Book) Get(id uint64) (Order, bool) {
	o, ok := b.orders[id]
	if !ok {
		return Order{}, false
	}
	return *o, true
}

// ReduceOrRemove sets the remaining for_sale of order id. A zero remainder
// removes the order. The remainder may never grow. Reducing does not change
// the order's position: its price and sequence are fixed.
func (b *Book) ReduceOrRemove(id uint64, forSale int64) (removed bool, err error) {
	o, ok := b.orders[id]
	if !ok {
		return false, errors.Wrapf(ErrOrderNotFound, "reduce order %d", id)
	}
	if forSale < 0 || forSale > o.ForSale {
		return false, errors.AssertionFailedf("order %d for_sale %d -> %d", id, o.ForSale, forSale)
	}
	if forSale == 0 {
		b.remove(o)
		return true, nil
	}
	o.ForSale = forSale
	return false, nil
}

// Remove takes order id off the book and returns it as it was.
func (b *Book) Remove(id uint64) (Order, bool) {
	o, ok := b.orders[id]
	if !ok {
		return Order{}, false
	}
	b.remove(o)
	return *o, true
}

func (b *Book) remove(o *Order) {
	b.side(o.SellAsset).remove(o)
	b.expiry.remove(o)
	delete(b.orders, o.ID)
}

// SweepExpired removes every order with Expiration <= now, in order of
// (expiration, id).
func (b *Book) SweepExpired(now int64) []Order {
	var out []Order
	for {
		top := b.expiry.Peek()
		if top == nil || !top.Expired(now) {
			return out
		}
		b.remove(top)
		out = append(out, *top)
	}
}

// NextExpiration returns the earliest expiration on the book.
func (b *Book) NextExpiration() (int64, bool) {
	top := b.expiry.Peek()
	if top == nil {
		return 0, false
	}
	return top.Expiration, true
}

// Depth returns up to limit orders selling the given asset, best first.
// A non-positive limit returns the whole side.
func (b *Book) Depth(sell asset.ID, limit int) []Order {
	h := b.side(sell)
	if h == nil || h.Len() == 0 {
		return nil
	}
	out := make([]Order, 0, h.Len())
	for _, o := range h.orders {
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return better(&out[i], &out[j]) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Orders returns every resting order sorted by id.
func (b *Book) Orders() []Order {
	out := make([]Order, 0, len(b.orders))
	for _, o := range b.orders {
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
