package orderbook

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"

	"github.com/uhyunpark/spotmatch/pkg/app/core/asset"
	"github.com/uhyunpark/spotmatch/pkg/app/core/pricing"
)

const (
	core asset.ID = 0
	test asset.ID = 1
)

func ask(id, seq uint64, forSale, receive int64) Order {
	return Order{
		ID:           id,
		SellAsset:    core,
		ReceiveAsset: test,
		ForSale:      forSale,
		Price:        pricing.Price{Sell: forSale, Receive: receive},
		Expiration:   NoExpiration,
		Sequence:     seq,
	}
}

func ids(orders []Order) []uint64 {
	out := make([]uint64, len(orders))
	for i, o := range orders {
		out[i] = o.ID
	}
	return out
}

func TestBookPriceTimePriority(t *testing.T) {
	b := NewBook(NewPair(test, core))

	require.NoError(t, b.Insert(ask(1, 1, 100, 400))) // 4 T per C
	require.NoError(t, b.Insert(ask(2, 2, 100, 300))) // 3 T per C
	require.NoError(t, b.Insert(ask(3, 3, 200, 600))) // 3 T per C, later
	require.NoError(t, b.Insert(ask(4, 4, 100, 500))) // 5 T per C

	best, ok := b.Best(core)
	require.True(t, ok)
	require.Equal(t, uint64(2), best.ID)

	require.Equal(t, []uint64{2, 3, 1, 4}, ids(b.Depth(core, 0)))
	require.Equal(t, []uint64{2, 3}, ids(b.Depth(core, 2)))

	_, ok = b.Best(test)
	require.False(t, ok, "nothing sells TEST")
}

func TestBookReduceKeepsPosition(t *testing.T) {
	b := NewBook(NewPair(core, test))
	require.NoError(t, b.Insert(ask(1, 1, 100, 300)))
	require.NoError(t, b.Insert(ask(2, 2, 100, 300)))

	removed, err := b.ReduceOrRemove(1, 10)
	require.NoError(t, err)
	require.False(t, removed)

	best, _ := b.Best(core)
	require.Equal(t, uint64(1), best.ID, "partial fill keeps time priority")
	require.Equal(t, int64(10), best.ForSale)
	require.Equal(t, pricing.Price{Sell: 100, Receive: 300}, best.Price, "price is frozen")

	removed, err = b.ReduceOrRemove(1, 0)
	require.NoError(t, err)
	require.True(t, removed)
	require.Equal(t, 1, b.Len())

	best, _ = b.Best(core)
	require.Equal(t, uint64(2), best.ID)
}

func TestBookReduceRejectsGrowth(t *testing.T) {
	b := NewBook(NewPair(core, test))
	require.NoError(t, b.Insert(ask(1, 1, 100, 300)))

	_, err := b.ReduceOrRemove(1, 101)
	require.True(t, errors.HasAssertionFailure(err))

	_, err = b.ReduceOrRemove(1, -1)
	require.True(t, errors.HasAssertionFailure(err))

	_, err = b.ReduceOrRemove(9, 1)
	require.True(t, errors.Is(err, ErrOrderNotFound))
}

func TestBookInsertRejects(t *testing.T) {
	b := NewBook(NewPair(core, test))

	require.True(t, errors.HasAssertionFailure(b.Insert(ask(1, 1, 0, 300))))

	wrongPair := ask(2, 2, 100, 300)
	wrongPair.ReceiveAsset = 5
	require.True(t, errors.HasAssertionFailure(b.Insert(wrongPair)))

	require.NoError(t, b.Insert(ask(3, 3, 100, 300)))
	require.True(t, errors.HasAssertionFailure(b.Insert(ask(3, 4, 100, 300))))
}

func TestBookRemove(t *testing.T) {
	b := NewBook(NewPair(core, test))
	require.NoError(t, b.Insert(ask(1, 1, 100, 300)))
	require.NoError(t, b.Insert(ask(2, 2, 100, 200)))

	o, ok := b.Remove(2)
	require.True(t, ok)
	require.Equal(t, int64(100), o.ForSale)

	_, ok = b.Remove(2)
	require.False(t, ok)

	best, _ := b.Best(core)
	require.Equal(t, uint64(1), best.ID)
	_, ok = b.Get(2)
	require.False(t, ok)
}

func TestBookSweepExpired(t *testing.T) {
	b := NewBook(NewPair(core, test))

	o1 := ask(1, 1, 100, 300)
	o1.Expiration = 50
	o2 := ask(2, 2, 100, 300)
	o2.Expiration = 20
	o3 := ask(3, 3, 100, 300)
	o3.Expiration = 50
	o4 := ask(4, 4, 100, 300)
	for _, o := range []Order{o1, o2, o3, o4} {
		require.NoError(t, b.Insert(o))
	}

	next, ok := b.NextExpiration()
	require.True(t, ok)
	require.Equal(t, int64(20), next)

	require.Empty(t, b.SweepExpired(19))
	require.Equal(t, []uint64{2}, ids(b.SweepExpired(20)), "expires at its own timestamp")
	require.Equal(t, []uint64{1, 3}, ids(b.SweepExpired(1000)))
	require.Equal(t, 1, b.Len())

	best, _ := b.Best(core)
	require.Equal(t, uint64(4), best.ID)
}

func TestBooksIndex(t *testing.T) {
	bs := NewBooks()

	bid := Order{
		ID: 1, SellAsset: test, ReceiveAsset: core,
		ForSale: 400, Price: pricing.Price{Sell: 400, Receive: 100},
		Expiration: 30, Sequence: 1,
	}
	other := Order{
		ID: 2, SellAsset: 3, ReceiveAsset: 2,
		ForSale: 10, Price: pricing.Price{Sell: 10, Receive: 10},
		Expiration: 10, Sequence: 2,
	}
	require.NoError(t, bs.Insert(bid))
	require.NoError(t, bs.Insert(other))
	require.True(t, errors.HasAssertionFailure(bs.Insert(bid)))

	require.Equal(t, []Pair{{Base: 0, Quote: 1}, {Base: 2, Quote: 3}}, bs.Pairs())

	// an order selling CORE for TEST meets the bid
	got, ok := bs.BestCounter(core, test)
	require.True(t, ok)
	require.Equal(t, uint64(1), got.ID)

	_, ok = bs.BestCounter(test, core)
	require.False(t, ok)

	swept := bs.SweepExpired(100)
	require.Equal(t, []uint64{2, 1}, ids(swept))
	require.Equal(t, 0, bs.Len())
	require.Empty(t, bs.Pairs())

	_, ok = bs.Get(1)
	require.False(t, ok)
}

func TestBooksReduceAndRemove(t *testing.T) {
	bs := NewBooks()
	require.NoError(t, bs.Insert(ask(1, 1, 100, 300)))
	require.NoError(t, bs.Insert(ask(2, 2, 50, 300)))

	removed, err := bs.ReduceOrRemove(1, 0)
	require.NoError(t, err)
	require.True(t, removed)
	_, ok := bs.Get(1)
	require.False(t, ok)

	_, err = bs.ReduceOrRemove(1, 0)
	require.True(t, errors.Is(err, ErrOrderNotFound))

	o, ok := bs.Remove(2)
	require.True(t, ok)
	require.Equal(t, int64(50), o.ForSale)
	require.Zero(t, bs.Len())
}

func TestPair(t *testing.T) {
	p := NewPair(7, 3)
	require.Equal(t, Pair{Base: 3, Quote: 7}, p)
	require.Equal(t, NewPair(3, 7), p)
	require.Equal(t, asset.ID(3), p.Other(7))
	require.True(t, p.Has(7))
	require.False(t, p.Has(1))
	require.Equal(t, "3/7", p.String())
}
