package matching

import (
	"math"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/spotmatch/pkg/app/core/asset"
	"github.com/uhyunpark/spotmatch/pkg/app/core/orderbook"
	"github.com/uhyunpark/spotmatch/pkg/app/core/pricing"
)

// OrderState is the RLP form of a resting order. Signed fields are stored
// unsigned; every one of them is non-negative.
type OrderState struct {
	ID           uint64
	Owner        common.Address
	SellAsset    asset.ID
	ReceiveAsset asset.ID
	ForSale      uint64
	PriceSell    uint64
	PriceReceive uint64
	Expiration   uint64
	Sequence     uint64
}

// State is the full engine state: id counters plus every resting order
// sorted by id. Equal engines produce byte-identical encodings.
type State struct {
	NextID  uint64
	NextSeq uint64
	Orders  []OrderState
}

// Snapshot captures the engine state.
func (e *Engine) Snapshot() State {
	orders := e.books.Orders()
	s := State{
		NextID:  e.nextID,
		NextSeq: e.nextSeq,
		Orders:  make([]OrderState, 0, len(orders)),
	}
	for _, o := range orders {
		s.Orders = append(s.Orders, OrderState{
			ID:           o.ID,
			Owner:        o.Owner,
			SellAsset:    o.SellAsset,
			ReceiveAsset: o.ReceiveAsset,
			ForSale:      uint64(o.ForSale),
			PriceSell:    uint64(o.Price.Sell),
			PriceReceive: uint64(o.Price.Receive),
			Expiration:   uint64(o.Expiration),
			Sequence:     o.Sequence,
		})
	}
	return s
}

func toSigned(field string, id, v uint64) (int64, error) {
	if v > math.MaxInt64 {
		return 0, errors.AssertionFailedf("order %d: %s %d out of range", id, field, v)
	}
	return int64(v), nil
}

// Restore replaces the engine state with s. On error the engine is left
// unchanged.
func (e *Engine) Restore(s State) error {
	books := orderbook.NewBooks()
	for _, st := range s.Orders {
		if st.ID >= s.NextID || st.Sequence >= s.NextSeq {
			return errors.AssertionFailedf("order %d (seq %d) beyond counters %d/%d", st.ID, st.Sequence, s.NextID, s.NextSeq)
		}
		forSale, err := toSigned("for_sale", st.ID, st.ForSale)
		if err != nil {
			return err
		}
		sell, err := toSigned("price_sell", st.ID, st.PriceSell)
		if err != nil {
			return err
		}
		receive, err := toSigned("price_receive", st.ID, st.PriceReceive)
		if err != nil {
			return err
		}
		exp, err := toSigned("expiration", st.ID, st.Expiration)
		if err != nil {
			return err
		}
		price := pricing.Price{Sell: sell, Receive: receive}
		if err := price.Validate(); err != nil {
			return errors.Wrapf(err, "order %d", st.ID)
		}
		if forSale > sell {
			return errors.AssertionFailedf("order %d: for_sale %d above original %d", st.ID, forSale, sell)
		}
		err = books.Insert(orderbook.Order{
			ID:           st.ID,
			Owner:        st.Owner,
			SellAsset:    st.SellAsset,
			ReceiveAsset: st.ReceiveAsset,
			ForSale:      forSale,
			Price:        price,
			Expiration:   exp,
			Sequence:     st.Sequence,
		})
		if err != nil {
			return err
		}
	}

	e.books = books
	e.nextID = s.NextID
	e.nextSeq = s.NextSeq
	return nil
}
