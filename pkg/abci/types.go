// Package abci is the boundary between a block driver and the state machine.
package abci

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/spotmatch/pkg/app/core/matching"
)

type RequestPrepareProposal struct {
	Height     uint64
	MaxTxBytes int64
}
type ResponsePrepareProposal struct{ Txs [][]byte }
type RequestProcessProposal struct {
	Height uint64
	Txs    [][]byte
}
type ResponseProcessProposal struct{ Accept bool }
type RequestFinalizeBlock struct {
	Height    uint64
	Timestamp int64 // Unix timestamp in seconds
	Txs       [][]byte
}

// Result codes for individual transactions. A non-zero code means the
// transaction was skipped; the block still commits.
const (
	CodeOK uint32 = iota
	CodeMalformed
	CodeRejected
)

type TxResult struct {
	Code    uint32
	Log     string
	OrderID uint64
	Status  matching.Status

	Transfers []matching.TransferInstruction
	Refunds   []matching.RefundInstruction
}

type ResponseFinalizeBlock struct {
	TxResults []TxResult
	// Expired holds the refunds of orders swept at the block timestamp,
	// before any transaction ran.
	Expired []matching.RefundInstruction
	AppHash common.Hash // Hash of application state after execution
}

// Application is implemented by the state machine. FinalizeBlock applies a
// block atomically: on error no state from the block is kept.
type Application interface {
	PrepareProposal(RequestPrepareProposal) ResponsePrepareProposal
	ProcessProposal(RequestProcessProposal) ResponseProcessProposal
	FinalizeBlock(RequestFinalizeBlock) (ResponseFinalizeBlock, error)
}
