package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// Journal receives one record per committed block for offline inspection.
type Journal interface {
	Append(v any) error
	Close() error
}

type NopJournal struct{}

func NewNopJournal() *NopJournal         { return &NopJournal{} }
func (j *NopJournal) Append(_ any) error { return nil }
func (j *NopJournal) Close() error       { return nil }

// FileJournal appends JSON lines to a file.
type FileJournal struct {
	mu  sync.Mutex
	f   *os.File
	enc *json.Encoder
}

func NewFileJournal(path string) (*FileJournal, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &FileJournal{f: f, enc: json.NewEncoder(f)}, nil
}

func (j *FileJournal) Append(v any) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.enc.Encode(v); err != nil {
		return fmt.Errorf("journal append: %w", err)
	}
	return nil
}

func (j *FileJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.f.Close()
}

var _ Journal = (*NopJournal)(nil)
var _ Journal = (*FileJournal)(nil)
