// Package matching crosses incoming limit orders against the resting book under
// the ruleset active at the block height, and reports the resulting balance
// movements as transfer and refund instructions.
package matching

import (
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/uhyunpark/spotmatch/params"
	"github.com/uhyunpark/spotmatch/pkg/app/core/asset"
	"github.com/uhyunpark/spotmatch/pkg/app/core/orderbook"
	"github.com/uhyunpark/spotmatch/pkg/app/core/pricing"
	"github.com/uhyunpark/spotmatch/pkg/util"
)

// AssetLookup is the part of the asset registry the engine needs.
type AssetLookup interface {
	Exists(id asset.ID) bool
}

// Engine owns every order book. It has a single thread of control: callers
// must serialise SubmitOrder, CancelOrder and ProcessExpirations.
//
// After a fatal error (see IsFatal) the engine's state is undefined until the
// caller restores a snapshot taken before the failing call.
type Engine struct {
	books  *orderbook.Books
	forks  params.Forks
	assets AssetLookup

	nextID  uint64
	nextSeq uint64

	log *zap.SugaredLogger
}

// New creates an empty engine. assets may be nil, in which case any asset id
// is accepted.
func New(forks params.Forks, assets AssetLookup, log *zap.SugaredLogger) *Engine {
	return &Engine{
		books:   orderbook.NewBooks(),
		forks:   forks,
		assets:  assets,
		nextID:  1,
		nextSeq: 1,
		log:     util.OrNop(log),
	}
}

// Books exposes the resting orders for read-only queries.
func (e *Engine) Books() *orderbook.Books { return e.books }

// Order returns the resting order with the given id.
func (e *Engine) Order(id uint64) (orderbook.Order, bool) {
	return e.books.Get(id)
}

func (e *Engine) validate(req SubmitRequest) error {
	if req.ForSale <= 0 || req.Receive <= 0 {
		return invalid("amounts must be positive: for_sale=%d receive=%d", req.ForSale, req.Receive)
	}
	if req.ForSale > pricing.MaxAmount || req.Receive > pricing.MaxAmount {
		return invalid("amount exceeds %d: for_sale=%d receive=%d", pricing.MaxAmount, req.ForSale, req.Receive)
	}
	if req.SellAsset == req.ReceiveAsset {
		return invalid("sell and receive asset are both %d", req.SellAsset)
	}
	if e.assets != nil {
		if !e.assets.Exists(req.SellAsset) {
			return invalid("unknown sell asset %d", req.SellAsset)
		}
		if !e.assets.Exists(req.ReceiveAsset) {
			return invalid("unknown receive asset %d", req.ReceiveAsset)
		}
	}
	if req.Expiration <= req.Now {
		return invalid("order expired at %d, now %d", req.Expiration, req.Now)
	}
	return nil
}

// SubmitOrder validates req, matches it against the book and rests or refunds
// whatever is left. The caller has escrowed req.ForSale of req.SellAsset from
// req.Owner; every unit of it is accounted for by the returned transfers,
// refunds and Remaining.
func (e *Engine) SubmitOrder(req SubmitRequest) (Result, error) {
	rs := e.forks.ActiveRuleset(req.Height)
	if err := e.validate(req); err != nil {
		return Result{Status: StatusRejected, Ruleset: rs}, err
	}

	id := e.nextID
	e.nextID++

	in := orderbook.Order{
		ID:           id,
		Owner:        req.Owner,
		SellAsset:    req.SellAsset,
		ReceiveAsset: req.ReceiveAsset,
		ForSale:      req.ForSale,
		Price:        pricing.Price{Sell: req.ForSale, Receive: req.Receive},
		Expiration:   req.Expiration,
	}
	res := Result{OrderID: id, Ruleset: rs}

	if err := e.match(rs, &in, req.Now, &res); err != nil {
		return res, err
	}

	switch {
	case in.ForSale == 0 && res.Status == StatusRefunded:
		// taker dust already refunded
	case in.ForSale == 0:
		res.Status = StatusFullyFilled
	default:
		if err := e.rest(rs, in, &res); err != nil {
			return res, err
		}
	}

	e.log.Debugw("order_submitted",
		"id", id, "ruleset", rs, "status", res.Status,
		"paid", res.Paid, "received", res.Received, "remaining", res.Remaining)
	return res, nil
}

// match runs the crossing loop until the incoming order is exhausted, stops
// crossing, or its remainder becomes dust.
func (e *Engine) match(rs params.Ruleset, in *orderbook.Order, now int64, res *Result) error {
	for in.ForSale > 0 {
		maker, ok := e.books.BestCounter(in.SellAsset, in.ReceiveAsset)
		if !ok {
			return nil
		}
		if maker.Expired(now) {
			if err := e.drop(maker, RefundExpired, res); err != nil {
				return err
			}
			continue
		}
		if !pricing.Crosses(in.Price, maker.Price) {
			return nil
		}

		f, err := pricing.Match(rs, in.ForSale, maker.ForSale, in.Price, maker.Price)
		if err != nil {
			return errors.Wrapf(err, "match order %d against %d", in.ID, maker.ID)
		}

		if f.MakerDust {
			if err := e.drop(maker, RefundDust, res); err != nil {
				return err
			}
			continue
		}
		if f.TakerDust {
			res.Refunds = append(res.Refunds, RefundInstruction{
				OrderID: in.ID, Owner: in.Owner, Asset: in.SellAsset,
				Amount: in.ForSale, Reason: RefundDust,
			})
			in.ForSale = 0
			res.Status = StatusRefunded
			return nil
		}

		if f.MakerPays > 0 {
			res.Transfers = append(res.Transfers, TransferInstruction{
				OrderID: maker.ID, From: maker.Owner, To: in.Owner,
				Asset: maker.SellAsset, Amount: f.MakerPays,
			})
		}
		if f.TakerPays > 0 {
			res.Transfers = append(res.Transfers, TransferInstruction{
				OrderID: in.ID, From: in.Owner, To: maker.Owner,
				Asset: in.SellAsset, Amount: f.TakerPays,
			})
		}

		removed, err := e.books.ReduceOrRemove(maker.ID, maker.ForSale-f.MakerPays)
		if err != nil {
			return err
		}
		in.ForSale -= f.TakerPays
		res.Paid += f.TakerPays
		res.Received += f.MakerPays

		e.log.Debugw("fill",
			"taker", in.ID, "maker", maker.ID, "ruleset", rs,
			"taker_pays", f.TakerPays, "maker_pays", f.MakerPays, "maker_removed", removed)

		if f.TakerPays == 0 && f.MakerPays == 0 {
			return errors.AssertionFailedf("order %d made no progress against %d", in.ID, maker.ID)
		}
	}
	return nil
}

// rest inserts the remainder of in with a fresh sequence, unless the ruleset
// culls it as dust.
func (e *Engine) rest(rs params.Ruleset, in orderbook.Order, res *Result) error {
	if rs == params.RulesetMetalExchange {
		dust, err := pricing.IsDust(in.ForSale, in.Price)
		if err != nil {
			return err
		}
		if dust {
			res.Refunds = append(res.Refunds, RefundInstruction{
				OrderID: in.ID, Owner: in.Owner, Asset: in.SellAsset,
				Amount: in.ForSale, Reason: RefundDust,
			})
			res.Status = StatusRefunded
			return nil
		}
	}

	in.Sequence = e.nextSeq
	e.nextSeq++
	if err := e.books.Insert(in); err != nil {
		return err
	}
	res.Status = StatusResting
	res.Remaining = in.ForSale
	return nil
}

// drop removes a resting order that can no longer trade and refunds it.
func (e *Engine) drop(o orderbook.Order, reason RefundReason, res *Result) error {
	if _, ok := e.books.Remove(o.ID); !ok {
		return errors.AssertionFailedf("best order %d missing from book", o.ID)
	}
	res.Refunds = append(res.Refunds, refundOf(o, reason))
	e.log.Debugw("order_dropped", "id", o.ID, "reason", reason, "for_sale", o.ForSale)
	return nil
}

func refundOf(o orderbook.Order, reason RefundReason) RefundInstruction {
	return RefundInstruction{
		OrderID: o.ID,
		Owner:   o.Owner,
		Asset:   o.SellAsset,
		Amount:  o.ForSale,
		Reason:  reason,
	}
}

// CancelOrder removes a resting order and refunds its remainder. Ownership is
// checked by the caller.
func (e *Engine) CancelOrder(id uint64) (RefundInstruction, error) {
	o, ok := e.books.Remove(id)
	if !ok {
		return RefundInstruction{}, invalid("order %d is not resting", id)
	}
	e.log.Debugw("order_cancelled", "id", id, "for_sale", o.ForSale)
	return refundOf(o, RefundCancelled), nil
}

// ProcessExpirations removes every order whose expiration is at or before now
// and refunds it, ordered by (expiration, id).
func (e *Engine) ProcessExpirations(now int64) []RefundInstruction {
	expired := e.books.SweepExpired(now)
	if len(expired) == 0 {
		return nil
	}
	out := make([]RefundInstruction, 0, len(expired))
	for _, o := range expired {
		out = append(out, refundOf(o, RefundExpired))
	}
	e.log.Debugw("orders_expired", "now", now, "count", len(out))
	return out
}
