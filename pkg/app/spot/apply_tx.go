package spot

import (
	"fmt"

	"github.com/uhyunpark/spotmatch/pkg/abci"
	"github.com/uhyunpark/spotmatch/pkg/app/core/matching"
	"github.com/uhyunpark/spotmatch/pkg/app/core/transaction"
)

func rejected(code uint32, format string, args ...interface{}) abci.TxResult {
	return abci.TxResult{Code: code, Log: fmt.Sprintf(format, args...), Status: matching.StatusRejected}
}

// applyTx runs one transaction. A returned error is fatal for the block;
// recoverable failures come back as a TxResult with a non-zero code and no
// state change.
func (a *App) applyTx(raw []byte, now int64, height uint64) (abci.TxResult, error) {
	tx, err := transaction.Deserialize(raw)
	if err != nil {
		a.log.Debugw("tx_malformed", "err", err)
		return rejected(abci.CodeMalformed, "%v", err), nil
	}

	switch tx.Type {
	case transaction.TxTypeOrder:
		return a.applyOrder(tx.Order, now, height)
	case transaction.TxTypeCancel:
		return a.applyCancel(tx.Cancel)
	default:
		return rejected(abci.CodeMalformed, "unsupported transaction type: %s", tx.Type), nil
	}
}

func (a *App) applyOrder(o *transaction.OrderPayload, now int64, height uint64) (abci.TxResult, error) {
	req, err := o.Request(now, height)
	if err != nil {
		return rejected(abci.CodeMalformed, "%v", err), nil
	}

	if req.ForSale <= 0 {
		return rejected(abci.CodeRejected, "for_sale must be positive: %d", req.ForSale), nil
	}
	if err := a.ledger.Escrow(req.Owner, req.SellAsset, req.ForSale); err != nil {
		return rejected(abci.CodeRejected, "%v", err), nil
	}

	res, err := a.engine.SubmitOrder(req)
	if matching.IsValidation(err) {
		// undo the escrow; the engine did not touch the book
		undo := []matching.RefundInstruction{{
			Owner: req.Owner, Asset: req.SellAsset, Amount: req.ForSale, Reason: matching.RefundCancelled,
		}}
		if uerr := a.ledger.ApplyRefunds(undo); uerr != nil {
			return abci.TxResult{}, fmt.Errorf("release escrow: %w", uerr)
		}
		a.log.Debugw("order_rejected", "owner", req.Owner.Hex(), "err", err)
		return rejected(abci.CodeRejected, "%v", err), nil
	}
	if err != nil {
		return abci.TxResult{}, err
	}

	if err := a.settle(res.Transfers, res.Refunds); err != nil {
		return abci.TxResult{}, fmt.Errorf("settle order %d: %w", res.OrderID, err)
	}

	return abci.TxResult{
		Code:      abci.CodeOK,
		OrderID:   res.OrderID,
		Status:    res.Status,
		Transfers: res.Transfers,
		Refunds:   res.Refunds,
	}, nil
}

func (a *App) applyCancel(c *transaction.CancelPayload) (abci.TxResult, error) {
	id, err := c.ID()
	if err != nil {
		return rejected(abci.CodeMalformed, "%v", err), nil
	}

	o, ok := a.engine.Order(id)
	if !ok {
		return rejected(abci.CodeRejected, "order %d is not resting", id), nil
	}
	if o.Owner != c.OwnerAddress() {
		return rejected(abci.CodeRejected, "order %d is not owned by %s", id, c.Owner), nil
	}

	refund, err := a.engine.CancelOrder(id)
	if err != nil {
		return abci.TxResult{}, err
	}
	refunds := []matching.RefundInstruction{refund}
	if err := a.settle(nil, refunds); err != nil {
		return abci.TxResult{}, fmt.Errorf("settle cancel %d: %w", id, err)
	}

	return abci.TxResult{Code: abci.CodeOK, OrderID: id, Status: matching.StatusRefunded, Refunds: refunds}, nil
}

// settle applies the engine's instructions to the ledger. Failure means
// the ledger and the book disagree, which is fatal.
func (a *App) settle(ts []matching.TransferInstruction, rs []matching.RefundInstruction) error {
	if err := a.ledger.ApplyTransfers(ts); err != nil {
		return err
	}
	return a.ledger.ApplyRefunds(rs)
}
