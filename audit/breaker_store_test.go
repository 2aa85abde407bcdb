package audit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
)

type flakyStore struct {
	calls int
	err   error
}

func (s *flakyStore) Append(context.Context, Entry) error {
	s.calls++
	return s.err
}

func (s *flakyStore) Query(context.Context, Query) ([]Entry, error) {
	s.calls++
	return nil, s.err
}

func TestBreakerStoreOpensAfterConsecutiveFailures(t *testing.T) {
	inner := &flakyStore{err: errors.New("timeout")}
	cfg := BreakerConfig{Name: "test", ConsecutiveFailures: 3, OpenTimeout: time.Hour, HalfOpenRequests: 1}
	store := NewBreakerStore(inner, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()
	e := Authentication(uuid.New(), "a@x.com", true, "")

	for i := 0; i < 3; i++ {
		if err := store.Append(ctx, e); err == nil {
			t.Fatalf("attempt %d: expected inner error", i)
		}
	}
	if store.State() != gobreaker.StateOpen {
		t.Fatalf("expected open breaker, got %s", store.State())
	}

	err := store.Append(ctx, e)
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if inner.calls != 3 {
		t.Fatalf("open breaker should not reach the store, calls=%d", inner.calls)
	}
}

func TestBreakerStoreIgnoresUnsupportedQuery(t *testing.T) {
	inner := &flakyStore{err: ErrQueryUnsupported}
	store := NewBreakerStore(inner, BreakerConfig{ConsecutiveFailures: 1, OpenTimeout: time.Hour}, nil)

	for i := 0; i < 3; i++ {
		if _, err := store.Query(context.Background(), Query{}); !errors.Is(err, ErrQueryUnsupported) {
			t.Fatalf("expected ErrQueryUnsupported, got %v", err)
		}
	}
	if store.State() != gobreaker.StateClosed {
		t.Fatalf("expected closed breaker, got %s", store.State())
	}
}

func TestBreakerStorePassesThrough(t *testing.T) {
	mem := NewMemoryStore()
	store := NewBreakerStore(mem, DefaultBreakerConfig(), nil)
	ctx := context.Background()

	if err := store.Append(ctx, Authentication(uuid.New(), "a@x.com", true, "")); err != nil {
		t.Fatalf("append: %v", err)
	}
	got, err := store.Query(ctx, Query{})
	if err != nil || len(got) != 1 {
		t.Fatalf("unexpected query result %v %v", got, err)
	}
}
