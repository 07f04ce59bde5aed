package orderbook

import (
	"sort"

	"github.com/cockroachdb/errors"

	"github.com/uhyunpark/spotmatch/pkg/app/core/asset"
)

// Books indexes every pair's book and maps order ids to their pair.
// It is not safe for concurrent use; the engine serialises access.
type Books struct {
	books map[Pair]*Book
	index map[uint64]Pair
}

func NewBooks() *Books {
	return &Books{
		books: make(map[Pair]*Book),
		index: make(map[uint64]Pair),
	}
}

// Book returns the book for the pair of a and b, or nil if nothing ever
// rested there.
func (bs *Books) Book(a, b asset.ID) *Book {
	return bs.books[NewPair(a, b)]
}

func (bs *Books) getOrCreate(p Pair) *Book {
	bk, ok := bs.books[p]
	if !ok {
		bk = NewBook(p)
		bs.books[p] = bk
	}
	return bk
}

// Insert rests o on its pair's book.
func (bs *Books) Insert(o Order) error {
	if _, dup := bs.index[o.ID]; dup {
		return errors.AssertionFailedf("duplicate order id %d", o.ID)
	}
	p := NewPair(o.SellAsset, o.ReceiveAsset)
	if err := bs.getOrCreate(p).Insert(o); err != nil {
		return err
	}
	bs.index[o.ID] = p
	return nil
}

// BestCounter returns the best resting order that sells what an order selling
// sell wants to receive.
func (bs *Books) BestCounter(sell, receive asset.ID) (Order, bool) {
	bk := bs.Book(sell, receive)
	if bk == nil {
		return Order{}, false
	}
	return bk.Best(receive)
}

func (bs *Books) Get(id uint64) (Order, bool) {
	p, ok := bs.index[id]
	if !ok {
		return Order{}, false
	}
	return bs.books[p].Get(id)
}

func (bs *Books) ReduceOrRemove(id uint64, forSale int64) (bool, error) {
	p, ok := bs.index[id]
	if !ok {
		return false, errors.Wrapf(ErrOrderNotFound, "reduce order %d", id)
	}
	removed, err := bs.books[p].ReduceOrRemove(id, forSale)
	if err != nil {
		return false, err
	}
	if removed {
		delete(bs.index, id)
	}
	return removed, nil
}

func (bs *Books) Remove(id uint64) (Order, bool) {
	p, ok := bs.index[id]
	if !ok {
		return Order{}, false
	}
	o, ok := bs.books[p].Remove(id)
	if ok {
		delete(bs.index, id)
	}
	return o, ok
}

// SweepExpired removes expired orders from every book. The result is ordered
// by (expiration, id) across all pairs.
func (bs *Books) SweepExpired(now int64) []Order {
	var out []Order
	for _, p := range bs.Pairs() {
		for _, o := range bs.books[p].SweepExpired(now) {
			delete(bs.index, o.ID)
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return expiresFirst(&out[i], &out[j]) })
	return out
}

// Pairs lists the pairs that have resting orders, sorted.
func (bs *Books) Pairs() []Pair {
	out := make([]Pair, 0, len(bs.books))
	for p, bk := range bs.books {
		if bk.Len() > 0 {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Base != out[j].Base {
			return out[i].Base < out[j].Base
		}
		return out[i].Quote < out[j].Quote
	})
	return out
}

// Len is the number of resting orders across all pairs.
func (bs *Books) Len() int { return len(bs.index) }

// Orders returns every resting order sorted by id.
func (bs *Books) Orders() []Order {
	out := make([]Order, 0, len(bs.index))
	for _, bk := range bs.books {
		out = append(out, bk.Orders()...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
