package storage

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ethereum/go-ethereum/common"
)

const maxRecordSize = 64 << 20

// BlockRecord is one line of a replay stream. AppHash is optional; when set,
// the replayer checks the state it computes against it.
type BlockRecord struct {
	Height    uint64            `json:"height"`
	Timestamp int64             `json:"timestamp"`
	Txs       []json.RawMessage `json:"txs"`
	AppHash   *common.Hash      `json:"app_hash,omitempty"`
}

func (r BlockRecord) RawTxs() [][]byte {
	out := make([][]byte, len(r.Txs))
	for i, tx := range r.Txs {
		out[i] = []byte(tx)
	}
	return out
}

// BlockReader reads a JSON-lines replay stream.
type BlockReader struct {
	f    *os.File
	sc   *bufio.Scanner
	line int
}

func OpenBlockReader(path string) (*BlockReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 1<<20), maxRecordSize)
	return &BlockReader{f: f, sc: sc}, nil
}

// Next returns the next record, or io.EOF at the end of the stream. Blank
// lines are skipped.
func (r *BlockReader) Next() (BlockRecord, error) {
	for r.sc.Scan() {
		r.line++
		b := r.sc.Bytes()
		if len(b) == 0 {
			continue
		}
		var rec BlockRecord
		if err := json.Unmarshal(b, &rec); err != nil {
			return BlockRecord{}, fmt.Errorf("line %d: %w", r.line, err)
		}
		return rec, nil
	}
	if err := r.sc.Err(); err != nil {
		return BlockRecord{}, fmt.Errorf("line %d: %w", r.line+1, err)
	}
	return BlockRecord{}, io.EOF
}

func (r *BlockReader) Close() error { return r.f.Close() }

// BlockWriter writes a replay stream.
type BlockWriter struct {
	f   *os.File
	w   *bufio.Writer
	enc *json.Encoder
}

func CreateBlockWriter(path string) (*BlockWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w := bufio.NewWriter(f)
	return &BlockWriter{f: f, w: w, enc: json.NewEncoder(w)}, nil
}

func (w *BlockWriter) Write(rec BlockRecord) error {
	for i, tx := range rec.Txs {
		if !json.Valid(tx) {
			return fmt.Errorf("block %d tx %d is not JSON", rec.Height, i)
		}
	}
	return w.enc.Encode(rec)
}

func (w *BlockWriter) Close() error {
	return errors.Join(w.w.Flush(), w.f.Close())
}
