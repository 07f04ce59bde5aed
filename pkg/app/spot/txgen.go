package spot

import (
	"fmt"
	"math/rand"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/uhyunpark/spotmatch/pkg/app/core/asset"
	"github.com/uhyunpark/spotmatch/pkg/app/core/transaction"
)

// TxGenerator creates random but reproducible trading transactions: the
// same seed always yields the same stream.
type TxGenerator struct {
	traders []common.Address
	assets  []asset.ID
	orders  uint64 // orders generated so far, for picking cancel targets
	rng     *rand.Rand
}

// TraderAddress derives the i-th simulated trader address.
func TraderAddress(i int) common.Address {
	return common.BytesToAddress(crypto.Keccak256([]byte(fmt.Sprintf("trader_%d", i+1))))
}

// NewTxGenerator creates a generator over numAccounts traders and the given
// assets (at least two).
func NewTxGenerator(seed int64, numAccounts int, assets []asset.ID) *TxGenerator {
	traders := make([]common.Address, numAccounts)
	for i := range traders {
		traders[i] = TraderAddress(i)
	}
	return &TxGenerator{
		traders: traders,
		assets:  append([]asset.ID(nil), assets...),
		rng:     rand.New(rand.NewSource(seed)),
	}
}

func (g *TxGenerator) Traders() []common.Address {
	return append([]common.Address(nil), g.traders...)
}

func (g *TxGenerator) encode(tx *transaction.Transaction) []byte {
	b, err := tx.Serialize()
	if err != nil {
		panic(fmt.Sprintf("serialize generated tx: %v", err))
	}
	return b
}

// GenerateOrder creates a random order priced within ±20% of one unit for
// one unit, so that orders cross often.
func (g *TxGenerator) GenerateOrder(now int64) []byte {
	owner := g.traders[g.rng.Intn(len(g.traders))]

	i := g.rng.Intn(len(g.assets))
	j := g.rng.Intn(len(g.assets) - 1)
	if j >= i {
		j++
	}
	sell, receive := g.assets[i], g.assets[j]

	forSale := int64(g.rng.Intn(10_000) + 1)
	want := forSale * int64(80+g.rng.Intn(41)) / 100
	if want < 1 {
		want = 1
	}

	// 30% of orders expire within ten minutes
	var deadline int64
	if g.rng.Intn(100) < 30 {
		deadline = now + int64(g.rng.Intn(600)+1)
	}

	g.orders++
	return g.encode(transaction.NewOrder(owner, sell, forSale, receive, want, deadline))
}

// GenerateCancel cancels one of the last 100 generated orders on behalf of a
// random trader; most such cancels are rejected as not owned.
func (g *TxGenerator) GenerateCancel() []byte {
	owner := g.traders[g.rng.Intn(len(g.traders))]

	id := int64(g.orders) - int64(g.rng.Intn(100))
	if id < 1 {
		id = 1
	}
	return g.encode(transaction.NewCancel(owner, uint64(id)))
}

// GenerateMix creates a random transaction (90% orders, 10% cancels)
func (g *TxGenerator) GenerateMix(now int64) []byte {
	if g.rng.Intn(100) < 90 {
		return g.GenerateOrder(now)
	}
	return g.GenerateCancel()
}

// GenerateBatch creates count random transactions for a block at now.
func (g *TxGenerator) GenerateBatch(count int, now int64) [][]byte {
	batch := make([][]byte, count)
	for i := range batch {
		batch[i] = g.GenerateMix(now)
	}
	return batch
}
