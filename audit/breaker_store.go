package audit

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
)

// ErrCircuitOpen is returned while the breaker rejects calls.
var ErrCircuitOpen = gobreaker.ErrOpenState

// BreakerConfig tunes a BreakerStore.
type BreakerConfig struct {
	Name                string        `yaml:"name"`
	ConsecutiveFailures uint32        `yaml:"consecutive_failures"`
	OpenTimeout         time.Duration `yaml:"open_timeout"`
	HalfOpenRequests    uint32        `yaml:"half_open_requests"`
}

// DefaultBreakerConfig trips after five consecutive failures and probes
// again after thirty seconds.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:                "audit-store",
		ConsecutiveFailures: 5,
		OpenTimeout:         30 * time.Second,
		HalfOpenRequests:    1,
	}
}

// BreakerStore guards a remote store with a circuit breaker so a dead
// backend fails fast instead of stalling every request on its timeout.
type BreakerStore struct {
	next    Store
	breaker *gobreaker.CircuitBreaker[[]Entry]
}

func NewBreakerStore(next Store, cfg BreakerConfig, logger *slog.Logger) *BreakerStore {
	if logger == nil {
		logger = slog.Default()
	}
	threshold := cfg.ConsecutiveFailures
	if threshold == 0 {
		threshold = 5
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.HalfOpenRequests,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// A query on a write-only store is a caller mistake, not an outage.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrQueryUnsupported)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("audit store breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	}

	return &BreakerStore{
		next:    next,
		breaker: gobreaker.NewCircuitBreaker[[]Entry](settings),
	}
}

func (s *BreakerStore) Append(ctx context.Context, entry Entry) error {
	_, err := s.breaker.Execute(func() ([]Entry, error) {
		return nil, s.next.Append(ctx, entry)
	})
	return err
}

func (s *BreakerStore) Query(ctx context.Context, q Query) ([]Entry, error) {
	return s.breaker.Execute(func() ([]Entry, error) {
		return s.next.Query(ctx, q)
	})
}

// State returns the breaker state.
func (s *BreakerStore) State() gobreaker.State {
	return s.breaker.State()
}
