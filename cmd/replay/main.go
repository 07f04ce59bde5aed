package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/uhyunpark/spotmatch/params"
	"github.com/uhyunpark/spotmatch/pkg/abci"
	"github.com/uhyunpark/spotmatch/pkg/app/core/account"
	"github.com/uhyunpark/spotmatch/pkg/app/core/matching"
	"github.com/uhyunpark/spotmatch/pkg/app/spot"
	"github.com/uhyunpark/spotmatch/pkg/storage"
	"github.com/uhyunpark/spotmatch/pkg/util"
)

// blockResult is one journal line per replayed block.
type blockResult struct {
	Height    uint64                       `json:"height"`
	AppHash   common.Hash                  `json:"app_hash"`
	Expired   []matching.RefundInstruction `json:"expired,omitempty"`
	TxResults []abci.TxResult              `json:"tx_results"`
}

type replayer struct {
	cfg     params.Config
	app     *spot.App
	store   *storage.PebbleStore
	ledger  *account.Store
	journal storage.Journal
	clock   util.Clock
	log     *zap.SugaredLogger
}

// progressInterval is how many replayed blocks pass between progress lines.
const progressInterval = 1000

func main() {
	// ENV > .env > defaults
	cfg := params.LoadFromEnv("")

	logger, err := util.NewLoggerWithFile(cfg.Node.LogFile, cfg.Node.Verbose)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	genesisPath := getEnv("GENESIS_FILE", "genesis.yaml")
	blocksPath := getEnv("BLOCKS_FILE", "blocks.jsonl")
	sugar.Infow("replay_starting",
		"genesis", genesisPath, "blocks", blocksPath, "data_dir", cfg.Node.DataDir,
		"metal_exchange_height", cfg.Forks.MetalExchangeHeight)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r, err := newReplayer(cfg, genesisPath, sugar)
	if err != nil {
		sugar.Fatalw("replay_init_failed", "err", err)
	}
	defer r.close()

	if err := r.run(ctx, blocksPath); err != nil {
		sugar.Errorw("replay_failed", "err", err)
		r.close()
		os.Exit(1)
	}
}

func newReplayer(cfg params.Config, genesisPath string, sugar *zap.SugaredLogger) (*replayer, error) {
	g, err := spot.LoadGenesis(genesisPath)
	if err != nil {
		return nil, err
	}
	reg, ledger, err := g.Build()
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.Node.DataDir, 0o755); err != nil {
		return nil, err
	}
	store, err := storage.NewPebbleStore(filepath.Join(cfg.Node.DataDir, "chain"))
	if err != nil {
		return nil, err
	}
	accounts, err := account.NewStore(filepath.Join(cfg.Node.DataDir, "accounts"))
	if err != nil {
		store.Close()
		return nil, err
	}
	journal, err := storage.NewFileJournal(filepath.Join(cfg.Node.DataDir, "results.jsonl"))
	if err != nil {
		store.Close()
		accounts.Close()
		return nil, err
	}

	r := &replayer{
		cfg:     cfg,
		app:     spot.NewApp(cfg.Forks, reg, ledger, sugar.Named("app")),
		store:   store,
		ledger:  accounts,
		journal: journal,
		clock:   util.RealClock{},
		log:     sugar,
	}

	st, ok, err := store.LatestSnapshot()
	if err != nil {
		r.close()
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	if ok {
		if err := r.app.Restore(st); err != nil {
			r.close()
			return nil, fmt.Errorf("resume from snapshot %d: %w", st.Height, err)
		}
		sugar.Infow("resumed_from_snapshot", "height", st.Height, "app_hash", st.AppHash.Hex())
	}
	return r, nil
}

func (r *replayer) run(ctx context.Context, blocksPath string) error {
	br, err := storage.OpenBlockReader(blocksPath)
	if err != nil {
		return err
	}
	defer br.Close()

	start := r.clock.Now()
	var replayed, skipped int
	for {
		if err := ctx.Err(); err != nil {
			r.log.Warnw("replay_interrupted", "height", r.app.Height())
			break
		}
		rec, err := br.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}

		// already covered by the snapshot we resumed from
		if rec.Height <= r.app.Height() {
			skipped++
			continue
		}
		if err := r.apply(rec); err != nil {
			return err
		}
		replayed++
		if replayed%progressInterval == 0 {
			r.log.Infow("replay_progress", "height", rec.Height, "replayed", replayed)
		}
	}

	if err := r.snapshot(); err != nil {
		return err
	}
	elapsed := r.clock.Now().Sub(start)
	var rate float64
	if elapsed > 0 {
		rate = float64(replayed) / elapsed.Seconds()
	}
	r.log.Infow("replay_done",
		"height", r.app.Height(), "app_hash", r.app.AppHash().Hex(),
		"replayed", replayed, "skipped", skipped,
		"resting_orders", r.app.Engine().Books().Len(),
		"elapsed_ms", elapsed.Milliseconds(), "blocks_per_sec", rate)
	return nil
}

func (r *replayer) apply(rec storage.BlockRecord) error {
	txs := rec.RawTxs()
	if !r.app.ProcessProposal(abci.RequestProcessProposal{Height: rec.Height, Txs: txs}).Accept {
		return fmt.Errorf("block %d: proposal rejected", rec.Height)
	}
	resp, err := r.app.FinalizeBlock(abci.RequestFinalizeBlock{
		Height:    rec.Height,
		Timestamp: rec.Timestamp,
		Txs:       txs,
	})
	if err != nil {
		return err
	}
	// the state already moved in memory; nothing of this block is persisted
	if rec.AppHash != nil && *rec.AppHash != resp.AppHash {
		return fmt.Errorf("block %d: app hash %s, recorded %s", rec.Height, resp.AppHash.Hex(), rec.AppHash.Hex())
	}

	if err := r.store.SaveBlock(storage.Block{
		Height:    rec.Height,
		Timestamp: uint64(rec.Timestamp),
		Payload:   abci.EncodePayload(txs),
		AppHash:   resp.AppHash,
	}); err != nil {
		return fmt.Errorf("save block %d: %w", rec.Height, err)
	}
	if err := r.journal.Append(blockResult{
		Height:    rec.Height,
		AppHash:   resp.AppHash,
		Expired:   resp.Expired,
		TxResults: resp.TxResults,
	}); err != nil {
		return err
	}

	if iv := r.cfg.Node.SnapshotInterval; iv > 0 && rec.Height%iv == 0 {
		return r.snapshot()
	}
	return nil
}

// snapshot persists the state machine and the ledger's balance table, then
// drops older snapshots.
func (r *replayer) snapshot() error {
	st := r.app.Snapshot()
	if st.Height == 0 {
		return nil
	}
	if err := r.store.SaveSnapshot(st); err != nil {
		return fmt.Errorf("save snapshot %d: %w", st.Height, err)
	}
	if err := r.ledger.SaveState(st.Height, st.Ledger); err != nil {
		return fmt.Errorf("save balances %d: %w", st.Height, err)
	}
	if err := r.store.PruneSnapshots(st.Height); err != nil {
		return fmt.Errorf("prune snapshots: %w", err)
	}
	r.log.Debugw("snapshot_saved", "height", st.Height, "app_hash", st.AppHash.Hex())
	return nil
}

func (r *replayer) close() {
	if r == nil || r.store == nil {
		return
	}
	if err := r.journal.Close(); err != nil {
		r.log.Warnw("journal_close_failed", "err", err)
	}
	if err := r.ledger.Close(); err != nil {
		r.log.Warnw("balance_store_close_failed", "err", err)
	}
	if err := r.store.Close(); err != nil {
		r.log.Warnw("store_close_failed", "err", err)
	}
	r.store = nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
