package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/uhyunpark/spotmatch/params"
	"github.com/uhyunpark/spotmatch/pkg/abci"
	"github.com/uhyunpark/spotmatch/pkg/app/core/asset"
	"github.com/uhyunpark/spotmatch/pkg/app/spot"
	"github.com/uhyunpark/spotmatch/pkg/storage"
)

type genOptions struct {
	outDir      string
	seed        int64
	accounts    int
	blocks      int
	txsPerBlock int
	startHeight uint64
	startTime   int64
	blockTime   int64
	fund        string
	withHashes  bool
}

var opts genOptions

var rootCmd = &cobra.Command{
	Use:   "gen-replay",
	Short: "Generate a genesis file and a deterministic block stream",
	Long: `Generate genesis.yaml and blocks.jsonl for the replay command. The same
seed always produces the same stream. With --hashes every block also records
the app hash it must produce, computed with the fork heights from the
environment.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return generate(opts, params.LoadFromEnv("").Forks)
	},
}

func init() {
	f := rootCmd.Flags()
	f.StringVarP(&opts.outDir, "out", "o", ".", "output directory")
	f.Int64Var(&opts.seed, "seed", 1, "random seed")
	f.IntVar(&opts.accounts, "accounts", 50, "number of traders")
	f.IntVar(&opts.blocks, "blocks", 1000, "number of blocks")
	f.IntVar(&opts.txsPerBlock, "txs", 20, "transactions per block")
	f.Uint64Var(&opts.startHeight, "start-height", 1, "height of the first block")
	f.Int64Var(&opts.startTime, "start-time", 1_700_000_000, "timestamp of the first block")
	f.Int64Var(&opts.blockTime, "block-time", 2, "seconds between blocks")
	f.StringVar(&opts.fund, "fund", "1000000", "opening balance of every trader in every asset")
	f.BoolVar(&opts.withHashes, "hashes", true, "record expected app hashes")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

var genesisAssets = []spot.GenesisAsset{
	{ID: uint32(asset.CoreID), Symbol: "CORE", Precision: 5},
	{ID: 1, Symbol: "TEST", Precision: 2},
	{ID: 2, Symbol: "USD", Precision: 4},
}

func generate(o genOptions, forks params.Forks) error {
	if o.accounts < 1 || o.blocks < 0 || o.txsPerBlock < 0 {
		return fmt.Errorf("accounts must be positive, blocks and txs non-negative")
	}
	if err := os.MkdirAll(o.outDir, 0o755); err != nil {
		return err
	}

	ids := make([]asset.ID, len(genesisAssets))
	for i, a := range genesisAssets {
		ids[i] = asset.ID(a.ID)
	}
	gen := spot.NewTxGenerator(o.seed, o.accounts, ids)

	g := &spot.Genesis{Assets: genesisAssets}
	for _, addr := range gen.Traders() {
		for _, a := range genesisAssets {
			g.Balances = append(g.Balances, spot.GenesisBalance{Address: addr.Hex(), Asset: a.Symbol, Amount: o.fund})
		}
	}
	if err := g.Save(filepath.Join(o.outDir, "genesis.yaml")); err != nil {
		return err
	}

	var app *spot.App
	if o.withHashes {
		reg, ledger, err := g.Build()
		if err != nil {
			return err
		}
		app = spot.NewApp(forks, reg, ledger, nil)
	}

	w, err := storage.CreateBlockWriter(filepath.Join(o.outDir, "blocks.jsonl"))
	if err != nil {
		return err
	}

	for i := 0; i < o.blocks; i++ {
		rec := storage.BlockRecord{
			Height:    o.startHeight + uint64(i),
			Timestamp: o.startTime + int64(i)*o.blockTime,
		}
		batch := gen.GenerateBatch(o.txsPerBlock, rec.Timestamp)
		rec.Txs = make([]json.RawMessage, len(batch))
		for j, tx := range batch {
			rec.Txs[j] = json.RawMessage(tx)
		}

		if app != nil {
			resp, err := app.FinalizeBlock(abci.RequestFinalizeBlock{Height: rec.Height, Timestamp: rec.Timestamp, Txs: batch})
			if err != nil {
				w.Close()
				return fmt.Errorf("block %d: %w", rec.Height, err)
			}
			h := resp.AppHash
			rec.AppHash = &h
		}
		if err := w.Write(rec); err != nil {
			w.Close()
			return err
		}
	}
	if err := w.Close(); err != nil {
		return err
	}

	fmt.Printf("wrote %d blocks (%d txs each) for %d traders to %s\n", o.blocks, o.txsPerBlock, o.accounts, o.outDir)
	return nil
}
