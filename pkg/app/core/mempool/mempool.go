package mempool

import (
	"fmt"
	"sync"

	"github.com/uhyunpark/spotmatch/pkg/app/core/transaction"
)

// TxType classifies transactions into proposal buckets.
type TxType int

const (
	TxInvalid TxType = iota
	TxCancel
	TxOrder
)

func (t TxType) String() string {
	switch t {
	case TxCancel:
		return "cancel"
	case TxOrder:
		return "order"
	default:
		return "invalid"
	}
}

// ClassifyRaw classifies a raw transaction by parsing its JSON envelope.
//
//	{"type": "order", ...}   -> TxOrder
//	{"type": "cancel", ...}  -> TxCancel
//
// Anything that does not deserialize is TxInvalid.
func ClassifyRaw(b []byte) TxType {
	tx, err := transaction.Deserialize(b)
	if err != nil {
		return TxInvalid
	}
	switch tx.Type {
	case transaction.TxTypeCancel:
		return TxCancel
	case transaction.TxTypeOrder:
		return TxOrder
	default:
		return TxInvalid
	}
}

// Mempool keeps two FIFO queues: cancels are proposed before orders so that
// a cancel and a crossing order admitted together resolve in the
// canceller's favour.
type Mempool struct {
	mu     sync.Mutex
	cancel [][]byte
	orders [][]byte
}

func NewMempool() *Mempool {
	return &Mempool{}
}

// PushRaw classifies and enqueues a tx. Invalid transactions are refused.
func (m *Mempool) PushRaw(b []byte) error {
	typ := ClassifyRaw(b)
	if typ == TxInvalid {
		return fmt.Errorf("rejected malformed transaction (%d bytes)", len(b))
	}

	cp := append([]byte(nil), b...)
	m.mu.Lock()
	defer m.mu.Unlock()
	if typ == TxCancel {
		m.cancel = append(m.cancel, cp)
	} else {
		m.orders = append(m.orders, cp)
	}
	return nil
}

// SelectForProposal returns up to maxBytes worth of txs, cancels first,
// removing selected txs from the mempool. maxBytes <= 0 means no limit.
func (m *Mempool) SelectForProposal(maxBytes int64) [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out [][]byte
	var used int64

	pull := func(q *[][]byte) {
		for len(*q) > 0 {
			tx := (*q)[0]
			n := int64(len(tx))
			if maxBytes > 0 && used+n > maxBytes {
				return
			}
			out = append(out, tx)
			used += n
			*q = (*q)[1:]
		}
	}

	pull(&m.cancel)
	pull(&m.orders)

	return out
}

// Len returns total pending txs.
func (m *Mempool) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.cancel) + len(m.orders)
}
