package transaction

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/spotmatch/pkg/app/core/asset"
	"github.com/uhyunpark/spotmatch/pkg/app/core/matching"
	"github.com/uhyunpark/spotmatch/pkg/app/core/orderbook"
)

// TxType represents the type of transaction
type TxType string

const (
	TxTypeOrder  TxType = "order"  // Submit limit order
	TxTypeCancel TxType = "cancel" // Cancel resting order
)

// Transaction is the JSON envelope applied by the state machine. Signatures
// are checked before a transaction reaches the block, so none is carried.
type Transaction struct {
	Type   TxType         `json:"type"`
	Order  *OrderPayload  `json:"order,omitempty"`  // if type=order
	Cancel *CancelPayload `json:"cancel,omitempty"` // if type=cancel
}

// OrderPayload offers ForSale of SellAsset for at least Receive of
// ReceiveAsset. Amounts are raw integers in the asset's smallest unit.
type OrderPayload struct {
	Owner        string `json:"owner"`         // Ethereum address (0x...)
	SellAsset    uint32 `json:"sell_asset"`    // asset id
	ReceiveAsset uint32 `json:"receive_asset"` // asset id
	ForSale      string `json:"for_sale"`      // BigInt as string
	Receive      string `json:"receive"`       // BigInt as string
	Deadline     string `json:"deadline"`      // Unix timestamp (0 = no expiry)
}

// CancelPayload contains order cancellation data
type CancelPayload struct {
	Owner   string `json:"owner"`    // Ethereum address
	OrderID string `json:"order_id"` // decimal order id
}

func NewOrder(owner common.Address, sell asset.ID, forSale int64, receive asset.ID, want int64, deadline int64) *Transaction {
	return &Transaction{
		Type: TxTypeOrder,
		Order: &OrderPayload{
			Owner:        owner.Hex(),
			SellAsset:    uint32(sell),
			ReceiveAsset: uint32(receive),
			ForSale:      fmt.Sprint(forSale),
			Receive:      fmt.Sprint(want),
			Deadline:     fmt.Sprint(deadline),
		},
	}
}

func NewCancel(owner common.Address, orderID uint64) *Transaction {
	return &Transaction{
		Type:   TxTypeCancel,
		Cancel: &CancelPayload{Owner: owner.Hex(), OrderID: fmt.Sprint(orderID)},
	}
}

// Serialize converts Transaction to JSON bytes
func (tx *Transaction) Serialize() ([]byte, error) {
	return json.Marshal(tx)
}

// Deserialize parses and validates JSON bytes into a Transaction
func Deserialize(data []byte) (*Transaction, error) {
	var tx Transaction
	if err := json.Unmarshal(data, &tx); err != nil {
		return nil, fmt.Errorf("failed to unmarshal transaction: %w", err)
	}
	if err := tx.Validate(); err != nil {
		return nil, err
	}
	return &tx, nil
}

// Validate performs basic validation on transaction structure
func (tx *Transaction) Validate() error {
	switch tx.Type {
	case TxTypeOrder:
		if tx.Order == nil {
			return fmt.Errorf("order type requires order payload")
		}
		if !common.IsHexAddress(tx.Order.Owner) {
			return fmt.Errorf("invalid order owner %q", tx.Order.Owner)
		}

	case TxTypeCancel:
		if tx.Cancel == nil {
			return fmt.Errorf("cancel type requires cancel payload")
		}
		if !common.IsHexAddress(tx.Cancel.Owner) {
			return fmt.Errorf("invalid cancel owner %q", tx.Cancel.Owner)
		}
		if tx.Cancel.OrderID == "" {
			return fmt.Errorf("missing cancel order ID")
		}

	case "":
		return fmt.Errorf("missing transaction type")

	default:
		return fmt.Errorf("unsupported transaction type: %s", tx.Type)
	}
	return nil
}

// parseInt64 parses a decimal BigInt string that must fit in int64.
func parseInt64(field, s string) (int64, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return 0, fmt.Errorf("invalid %s: %q", field, s)
	}
	if !v.IsInt64() {
		return 0, fmt.Errorf("%s out of range: %s", field, s)
	}
	return v.Int64(), nil
}

// Request converts the payload into a matching request applied at the given
// block time and height. A zero deadline never expires.
func (o *OrderPayload) Request(now int64, height uint64) (matching.SubmitRequest, error) {
	forSale, err := parseInt64("for_sale", o.ForSale)
	if err != nil {
		return matching.SubmitRequest{}, err
	}
	receive, err := parseInt64("receive", o.Receive)
	if err != nil {
		return matching.SubmitRequest{}, err
	}
	deadline, err := parseInt64("deadline", o.Deadline)
	if err != nil {
		return matching.SubmitRequest{}, err
	}
	if deadline == 0 {
		deadline = orderbook.NoExpiration
	}

	return matching.SubmitRequest{
		Owner:        common.HexToAddress(o.Owner),
		SellAsset:    asset.ID(o.SellAsset),
		ReceiveAsset: asset.ID(o.ReceiveAsset),
		ForSale:      forSale,
		Receive:      receive,
		Expiration:   deadline,
		Now:          now,
		Height:       height,
	}, nil
}

func (c *CancelPayload) OwnerAddress() common.Address {
	return common.HexToAddress(c.Owner)
}

func (c *CancelPayload) ID() (uint64, error) {
	v, ok := new(big.Int).SetString(c.OrderID, 10)
	if !ok || !v.IsUint64() {
		return 0, fmt.Errorf("invalid order id: %q", c.OrderID)
	}
	return v.Uint64(), nil
}
