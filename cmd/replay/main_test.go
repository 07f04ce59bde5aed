package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/uhyunpark/spotmatch/params"
	"github.com/uhyunpark/spotmatch/pkg/abci"
	"github.com/uhyunpark/spotmatch/pkg/app/core/asset"
	"github.com/uhyunpark/spotmatch/pkg/app/spot"
	"github.com/uhyunpark/spotmatch/pkg/storage"
	"github.com/uhyunpark/spotmatch/pkg/util"
)

// writeStream writes a genesis and n generated blocks into dir and returns
// the app hash after the last block.
func writeStream(t *testing.T, dir string, n int, forks params.Forks, corruptAt uint64) common.Hash {
	t.Helper()

	g := &spot.Genesis{Assets: []spot.GenesisAsset{
		{ID: 0, Symbol: "CORE", Precision: 5},
		{ID: 1, Symbol: "TEST", Precision: 2},
	}}
	gen := spot.NewTxGenerator(7, 5, []asset.ID{0, 1})
	for _, addr := range gen.Traders() {
		g.Balances = append(g.Balances,
			spot.GenesisBalance{Address: addr.Hex(), Asset: "CORE", Amount: "1000"},
			spot.GenesisBalance{Address: addr.Hex(), Asset: "TEST", Amount: "1000"},
		)
	}
	require.NoError(t, g.Save(filepath.Join(dir, "genesis.yaml")))

	reg, ledger, err := g.Build()
	require.NoError(t, err)
	app := spot.NewApp(forks, reg, ledger, nil)

	w, err := storage.CreateBlockWriter(filepath.Join(dir, "blocks.jsonl"))
	require.NoError(t, err)
	for i := 1; i <= n; i++ {
		rec := storage.BlockRecord{Height: uint64(i), Timestamp: 1_700_000_000 + int64(i)*60}
		batch := gen.GenerateBatch(10, rec.Timestamp)
		for _, tx := range batch {
			rec.Txs = append(rec.Txs, json.RawMessage(tx))
		}
		resp, err := app.FinalizeBlock(abci.RequestFinalizeBlock{Height: rec.Height, Timestamp: rec.Timestamp, Txs: batch})
		require.NoError(t, err)

		h := resp.AppHash
		if rec.Height == corruptAt {
			h[0] ^= 0xff
		}
		rec.AppHash = &h
		require.NoError(t, w.Write(rec))
	}
	require.NoError(t, w.Close())
	return app.AppHash()
}

func testConfig(dir string) params.Config {
	cfg := params.Default()
	cfg.Forks.MetalExchangeHeight = 6
	cfg.Node.DataDir = filepath.Join(dir, "data")
	cfg.Node.SnapshotInterval = 5
	return cfg
}

func TestReplayAndResume(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	want := writeStream(t, dir, 12, cfg.Forks, 0)
	logger := zap.NewNop().Sugar()

	r, err := newReplayer(cfg, filepath.Join(dir, "genesis.yaml"), logger)
	require.NoError(t, err)
	r.clock = &util.FixedClock{T: time.Unix(0, 0), Step: time.Second}
	require.NoError(t, r.run(context.Background(), filepath.Join(dir, "blocks.jsonl")))
	require.Equal(t, uint64(12), r.app.Height())
	require.Equal(t, want, r.app.AppHash())

	committed, ok, err := r.store.Committed()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(12), committed)
	r.close()

	// a second run resumes from the final snapshot and replays nothing
	r, err = newReplayer(cfg, filepath.Join(dir, "genesis.yaml"), logger)
	require.NoError(t, err)
	defer r.close()
	require.Equal(t, uint64(12), r.app.Height())
	require.Equal(t, want, r.app.AppHash())
	require.NoError(t, r.run(context.Background(), filepath.Join(dir, "blocks.jsonl")))
	require.Equal(t, want, r.app.AppHash())

	h, ok, err := r.ledger.Height()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(12), h)
}

func TestReplayDetectsHashMismatch(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	writeStream(t, dir, 8, cfg.Forks, 7)

	r, err := newReplayer(cfg, filepath.Join(dir, "genesis.yaml"), zap.NewNop().Sugar())
	require.NoError(t, err)
	defer r.close()

	err = r.run(context.Background(), filepath.Join(dir, "blocks.jsonl"))
	require.ErrorContains(t, err, "block 7")
	require.Equal(t, uint64(7), r.app.Height(), "the mismatching block was applied before the check")

	_, ok, err := r.store.GetBlock(7)
	require.NoError(t, err)
	require.False(t, ok, "the mismatching block is not saved")
	committed, ok, err := r.store.Committed()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(6), committed)

	st, ok, err := r.store.LatestSnapshot()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(5), st.Height)
}

func TestReplayRejectsUndecodableBlock(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	writeStream(t, dir, 3, cfg.Forks, 0)

	// append a block whose only tx is not a transaction
	f, err := os.OpenFile(filepath.Join(dir, "blocks.jsonl"), os.O_APPEND|os.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = f.WriteString(`{"height":4,"timestamp":1700000240,"txs":[{"type":"bogus"}]}` + "\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	r, err := newReplayer(cfg, filepath.Join(dir, "genesis.yaml"), zap.NewNop().Sugar())
	require.NoError(t, err)
	defer r.close()

	err = r.run(context.Background(), filepath.Join(dir, "blocks.jsonl"))
	require.ErrorContains(t, err, "block 4: proposal rejected")
	require.Equal(t, uint64(3), r.app.Height(), "a rejected block is never executed")

	_, ok, err := r.store.GetBlock(4)
	require.NoError(t, err)
	require.False(t, ok)
}
