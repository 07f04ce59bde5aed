package matching

import (
	"reflect"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"pgregory.net/rapid"

	"github.com/uhyunpark/spotmatch/params"
	"github.com/uhyunpark/spotmatch/pkg/app/core/asset"
	"github.com/uhyunpark/spotmatch/pkg/app/core/orderbook"
)

var traders = []common.Address{alice, bob, carol}

type step struct {
	cancel  bool
	target  uint64
	req     SubmitRequest
	advance int64
}

// drawSteps builds a random session over one pair with small amounts so that
// crossing, partial fills and dust all happen often.
func drawSteps(t *rapid.T) []step {
	n := rapid.IntRange(1, 60).Draw(t, "steps")
	now := int64(1000)
	height := rapid.Uint64Range(forkHeight-20, forkHeight+20).Draw(t, "height")

	steps := make([]step, 0, n)
	for i := 0; i < n; i++ {
		now += rapid.Int64Range(0, 5).Draw(t, "advance")
		height++
		if rapid.IntRange(0, 9).Draw(t, "kind") == 0 {
			steps = append(steps, step{cancel: true, target: rapid.Uint64Range(1, uint64(n)).Draw(t, "target"), advance: now})
			continue
		}
		sell, receive := assetC, assetT
		if rapid.Bool().Draw(t, "flip") {
			sell, receive = receive, sell
		}
		exp := orderbook.NoExpiration
		if rapid.Bool().Draw(t, "expires") {
			exp = now + rapid.Int64Range(1, 30).Draw(t, "ttl")
		}
		steps = append(steps, step{
			req: SubmitRequest{
				Owner:        rapid.SampledFrom(traders).Draw(t, "owner"),
				SellAsset:    sell,
				ReceiveAsset: receive,
				ForSale:      rapid.Int64Range(1, 1000).Draw(t, "for_sale"),
				Receive:      rapid.Int64Range(1, 1000).Draw(t, "receive"),
				Expiration:   exp,
				Now:          now,
				Height:       height,
			},
			advance: now,
		})
	}
	return steps
}

type session struct {
	results  []Result
	refunds  [][]RefundInstruction
	final    State
	escrowed map[uint64]int64
	spent    map[uint64]int64
	received map[uint64]int64
	assetOf  map[uint64]asset.ID
}

func play(t *rapid.T, steps []step) session {
	e := newEngine()
	s := session{
		escrowed: map[uint64]int64{},
		spent:    map[uint64]int64{},
		received: map[uint64]int64{},
		assetOf:  map[uint64]asset.ID{},
	}

	account := func(ts []TransferInstruction, rs []RefundInstruction) {
		for _, tr := range ts {
			if tr.Amount <= 0 {
				t.Fatalf("non-positive transfer %s", tr)
			}
			if s.assetOf[tr.OrderID] != tr.Asset {
				t.Fatalf("%s moves the wrong asset", tr)
			}
			s.spent[tr.OrderID] += tr.Amount
		}
		for _, r := range rs {
			if r.Amount <= 0 {
				t.Fatalf("non-positive refund %+v", r)
			}
			s.spent[r.OrderID] += r.Amount
		}
	}

	for _, st := range steps {
		before := e.Snapshot()

		expired := e.ProcessExpirations(st.advance)
		account(nil, expired)
		s.refunds = append(s.refunds, expired)

		if st.cancel {
			r, err := e.CancelOrder(st.target)
			if err == nil {
				account(nil, []RefundInstruction{r})
				s.refunds = append(s.refunds, []RefundInstruction{r})
			} else if IsFatal(err) {
				t.Fatalf("cancel: %v", err)
			}
			continue
		}

		res, err := e.SubmitOrder(st.req)
		if err != nil {
			t.Fatalf("submit %+v: %v", st.req, err)
		}
		s.escrowed[res.OrderID] = st.req.ForSale
		s.assetOf[res.OrderID] = st.req.SellAsset
		account(res.Transfers, res.Refunds)
		for _, tr := range res.Transfers {
			if tr.OrderID != res.OrderID {
				s.received[res.OrderID] += tr.Amount
			}
		}
		if s.received[res.OrderID] != res.Received {
			t.Fatalf("order %d received %d, transfers say %d", res.OrderID, res.Received, s.received[res.OrderID])
		}
		s.results = append(s.results, res)

		checkDepletion(t, before, e.Snapshot())
	}

	s.final = e.Snapshot()
	for _, o := range s.final.Orders {
		s.spent[o.ID] += int64(o.ForSale)
	}
	return s
}

// checkDepletion: surviving orders only ever shrink and never reach zero.
func checkDepletion(t *rapid.T, before, after State) {
	prev := make(map[uint64]OrderState, len(before.Orders))
	for _, o := range before.Orders {
		prev[o.ID] = o
	}
	for _, o := range after.Orders {
		if o.ForSale == 0 {
			t.Fatalf("order %d rests with nothing for sale", o.ID)
		}
		p, ok := prev[o.ID]
		if !ok {
			continue
		}
		if o.ForSale > p.ForSale {
			t.Fatalf("order %d grew from %d to %d", o.ID, p.ForSale, o.ForSale)
		}
		if o.PriceSell != p.PriceSell || o.PriceReceive != p.PriceReceive || o.Sequence != p.Sequence {
			t.Fatalf("order %d changed price or sequence", o.ID)
		}
	}
}

func TestPropertyConservation(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := play(t, drawSteps(t))
		for id, in := range s.escrowed {
			if out := s.spent[id]; out != in {
				t.Fatalf("order %d escrowed %d but accounted for %d", id, in, out)
			}
		}
	})
}

func TestPropertyDeterminism(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		steps := drawSteps(t)
		a, b := play(t, steps), play(t, steps)
		if !reflect.DeepEqual(a.results, b.results) {
			t.Fatalf("results diverged")
		}
		if !reflect.DeepEqual(a.refunds, b.refunds) {
			t.Fatalf("refunds diverged")
		}
		if !reflect.DeepEqual(a.final, b.final) {
			t.Fatalf("final state diverged")
		}
	})
}

func TestPropertyMetalExchangeMakersPaidInFull(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		steps := drawSteps(t)
		for i := range steps {
			steps[i].req.Height = forkHeight + uint64(i)
		}
		s := play(t, steps)
		for _, res := range s.results {
			if res.Ruleset != params.RulesetMetalExchange {
				t.Fatalf("ruleset %s above the fork", res.Ruleset)
			}
			for _, tr := range res.Transfers {
				if tr.Amount == 0 {
					t.Fatalf("zero-amount transfer %s", tr)
				}
			}
			if res.Paid > 0 && res.Received == 0 {
				t.Fatalf("order %d paid %d for nothing", res.OrderID, res.Paid)
			}
		}
	})
}
