package matching

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/spotmatch/params"
	"github.com/uhyunpark/spotmatch/pkg/app/core/asset"
)

// SubmitRequest is a new limit order: sell ForSale of SellAsset for at least
// Receive of ReceiveAsset.
type SubmitRequest struct {
	Owner        common.Address
	SellAsset    asset.ID
	ReceiveAsset asset.ID
	ForSale      int64
	Receive      int64
	Expiration   int64

	// Now is the block timestamp and Height the block height the order is
	// applied at.
	Now    int64
	Height uint64
}

// TransferInstruction moves Amount of Asset, already escrowed from From's
// order OrderID, to To.
type TransferInstruction struct {
	OrderID uint64
	From    common.Address
	To      common.Address
	Asset   asset.ID
	Amount  int64
}

func (t TransferInstruction) String() string {
	return fmt.Sprintf("transfer{order=%d %s->%s asset=%d amount=%d}",
		t.OrderID, t.From.Hex(), t.To.Hex(), t.Asset, t.Amount)
}

type RefundReason uint8

const (
	RefundExpired RefundReason = iota + 1
	RefundCancelled
	// RefundDust: the remainder was worth less than one unit of the asset it
	// wanted and could neither trade nor rest.
	RefundDust
)

func (r RefundReason) String() string {
	switch r {
	case RefundExpired:
		return "expired"
	case RefundCancelled:
		return "cancelled"
	case RefundDust:
		return "dust"
	default:
		return fmt.Sprintf("RefundReason(%d)", uint8(r))
	}
}

// RefundInstruction returns an order's unfilled escrow to its owner.
type RefundInstruction struct {
	OrderID uint64
	Owner   common.Address
	Asset   asset.ID
	Amount  int64
	Reason  RefundReason
}

type Status uint8

const (
	StatusRejected Status = iota
	StatusResting
	StatusFullyFilled
	StatusRefunded
)

func (s Status) String() string {
	switch s {
	case StatusRejected:
		return "rejected"
	case StatusResting:
		return "resting"
	case StatusFullyFilled:
		return "fully_filled"
	case StatusRefunded:
		return "refunded"
	default:
		return fmt.Sprintf("Status(%d)", uint8(s))
	}
}

// Result describes what one submission did. Transfers and Refunds are in
// emission order and must be applied together by the caller.
type Result struct {
	OrderID uint64
	Status  Status
	Ruleset params.Ruleset

	// Paid and Received are the incoming order's totals across all fills.
	Paid     int64
	Received int64
	// Remaining is the amount left resting; zero unless Status is StatusResting.
	Remaining int64

	Transfers []TransferInstruction
	Refunds   []RefundInstruction
}
