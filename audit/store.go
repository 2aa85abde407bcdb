package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
)

// ErrQueryUnsupported is returned by write-only stores.
var ErrQueryUnsupported = errors.New("audit: store does not support queries")

// Store is the append-only log the recorder writes to. Implementations never
// expose update or delete.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	Query(ctx context.Context, q Query) ([]Entry, error)
}

// MemoryStore keeps entries in process. It is meant for tests and
// single-process tools.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry.Clone())
	return nil
}

func (s *MemoryStore) Query(_ context.Context, q Query) ([]Entry, error) {
	q = q.Normalized()

	s.mu.RLock()
	matched := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		if q.Matches(e) {
			matched = append(matched, e.Clone())
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})
	return page(matched, q), nil
}

// Entries returns a copy of every entry in insertion order.
func (s *MemoryStore) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entry, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.Clone()
	}
	return out
}

// JSONWriterStore writes one JSON object per line. It is write-only.
type JSONWriterStore struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterStore(w io.Writer) *JSONWriterStore {
	return &JSONWriterStore{writer: w}
}

func (s *JSONWriterStore) Append(_ context.Context, entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("audit: encode entry: %w", err)
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.writer.Write(data); err != nil {
		return fmt.Errorf("audit: write entry: %w", err)
	}
	return nil
}

func (s *JSONWriterStore) Query(context.Context, Query) ([]Entry, error) {
	return nil, ErrQueryUnsupported
}
