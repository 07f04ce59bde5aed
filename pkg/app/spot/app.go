// Package spot is the replicated state machine hosting the matching engine.
package spot

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/uhyunpark/spotmatch/params"
	"github.com/uhyunpark/spotmatch/pkg/abci"
	"github.com/uhyunpark/spotmatch/pkg/app/core/account"
	"github.com/uhyunpark/spotmatch/pkg/app/core/asset"
	"github.com/uhyunpark/spotmatch/pkg/app/core/matching"
	"github.com/uhyunpark/spotmatch/pkg/app/core/mempool"
	"github.com/uhyunpark/spotmatch/pkg/util"
)

var _ abci.Application = (*App)(nil)

type App struct {
	mu sync.Mutex

	mempool  *mempool.Mempool
	registry *asset.Registry
	engine   *matching.Engine
	ledger   *account.AccountManager

	height    uint64
	timestamp int64
	appHash   common.Hash

	log *zap.SugaredLogger
}

// NewApp creates a state machine over an already funded ledger.
func NewApp(forks params.Forks, registry *asset.Registry, ledger *account.AccountManager, log *zap.SugaredLogger) *App {
	log = util.OrNop(log)
	a := &App{
		mempool:  mempool.NewMempool(),
		registry: registry,
		engine:   matching.New(forks, registry, log.Named("matching")),
		ledger:   ledger,
		log:      log,
	}
	a.appHash = a.computeStateHash()
	return a
}

func (a *App) PushTx(b []byte) error { return a.mempool.PushRaw(b) }

// Engine and Ledger expose state for queries; callers must not mutate it.
func (a *App) Engine() *matching.Engine        { return a.engine }
func (a *App) Ledger() *account.AccountManager { return a.ledger }
func (a *App) Registry() *asset.Registry       { return a.registry }

func (a *App) Height() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.height
}

func (a *App) AppHash() common.Hash {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.appHash
}

func (a *App) PrepareProposal(req abci.RequestPrepareProposal) abci.ResponsePrepareProposal {
	txs := a.mempool.SelectForProposal(req.MaxTxBytes)
	return abci.ResponsePrepareProposal{Txs: txs}
}

// ProcessProposal accepts a block whose transactions all decode. Rejection
// by validation happens per transaction at FinalizeBlock.
func (a *App) ProcessProposal(req abci.RequestProcessProposal) abci.ResponseProcessProposal {
	for _, tx := range req.Txs {
		if mempool.ClassifyRaw(tx) == mempool.TxInvalid {
			return abci.ResponseProcessProposal{Accept: false}
		}
	}
	return abci.ResponseProcessProposal{Accept: true}
}

// FinalizeBlock sweeps expirations at the block timestamp, then applies the
// transactions in order. Transactions that fail validation are skipped with
// a non-zero code. A fatal error rolls the whole block back.
func (a *App) FinalizeBlock(req abci.RequestFinalizeBlock) (abci.ResponseFinalizeBlock, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.height != 0 && req.Height <= a.height {
		return abci.ResponseFinalizeBlock{}, fmt.Errorf("block height %d not above %d", req.Height, a.height)
	}
	if req.Timestamp < a.timestamp {
		return abci.ResponseFinalizeBlock{}, fmt.Errorf("block time %d before %d", req.Timestamp, a.timestamp)
	}

	cp := a.checkpoint()
	resp, err := a.finalize(req)
	if err != nil {
		if rerr := a.restore(cp); rerr != nil {
			return abci.ResponseFinalizeBlock{}, fmt.Errorf("rollback after %v failed: %w", err, rerr)
		}
		a.log.Errorw("block_rolled_back", "height", req.Height, "err", err)
		return abci.ResponseFinalizeBlock{}, fmt.Errorf("block %d: %w", req.Height, err)
	}

	a.height = req.Height
	a.timestamp = req.Timestamp
	a.appHash = a.computeStateHash()
	resp.AppHash = a.appHash

	// Quiet logging: only log non-empty blocks
	if len(req.Txs) > 0 || len(resp.Expired) > 0 {
		a.log.Infow("block_finalized",
			"height", req.Height, "txs", len(req.Txs), "expired", len(resp.Expired),
			"resting", a.engine.Books().Len(), "app_hash", a.appHash.Hex())
	}
	return resp, nil
}

func (a *App) finalize(req abci.RequestFinalizeBlock) (abci.ResponseFinalizeBlock, error) {
	var resp abci.ResponseFinalizeBlock

	resp.Expired = a.engine.ProcessExpirations(req.Timestamp)
	if err := a.ledger.ApplyRefunds(resp.Expired); err != nil {
		return resp, fmt.Errorf("expiry refunds: %w", err)
	}

	resp.TxResults = make([]abci.TxResult, 0, len(req.Txs))
	for i, tx := range req.Txs {
		res, err := a.applyTx(tx, req.Timestamp, req.Height)
		if err != nil {
			return resp, fmt.Errorf("tx %d: %w", i, err)
		}
		resp.TxResults = append(resp.TxResults, res)
	}
	return resp, nil
}
