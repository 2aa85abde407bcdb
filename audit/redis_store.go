package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	defaultStreamKey = "medauth:audit"
	entryField       = "entry"
	scanBatch        = 256
)

// ErrStoreUnavailable wraps transport failures of networked stores.
var ErrStoreUnavailable = errors.New("audit: store unavailable")

// RedisStore appends entries to a Redis stream. The stream is never trimmed;
// retention is managed outside this package.
type RedisStore struct {
	redis redis.UniversalClient
	key   string
}

// NewRedisStore returns a store writing to the stream at key.
func NewRedisStore(client redis.UniversalClient, key string) *RedisStore {
	if key == "" {
		key = defaultStreamKey
	}
	return &RedisStore{redis: client, key: key}
}

func (s *RedisStore) Append(ctx context.Context, entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("audit: encode entry: %w", err)
	}

	err = s.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: s.key,
		Values: map[string]interface{}{
			entryField: data,
			"action":   entry.Action.String(),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Query walks the stream newest first and filters in process.
func (s *RedisStore) Query(ctx context.Context, q Query) ([]Entry, error) {
	q = q.Normalized()
	want := q.Offset + q.Limit

	var (
		matched []Entry
		end     = "+"
		lastID  string
	)
	for len(matched) < want {
		msgs, err := s.redis.XRevRangeN(ctx, s.key, end, "-", scanBatch).Result()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}

		progressed := false
		for _, msg := range msgs {
			if msg.ID == lastID {
				continue
			}
			progressed = true
			lastID = msg.ID

			entry, err := decodeStreamEntry(msg)
			if err != nil {
				return nil, err
			}
			if q.Matches(entry) {
				matched = append(matched, entry)
			}
		}

		if !progressed || len(msgs) < scanBatch {
			break
		}
		end = lastID
	}

	return page(matched, q), nil
}

func decodeStreamEntry(msg redis.XMessage) (Entry, error) {
	raw, ok := msg.Values[entryField].(string)
	if !ok {
		return Entry{}, fmt.Errorf("audit: stream message %s has no entry field", msg.ID)
	}

	var entry Entry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return Entry{}, fmt.Errorf("audit: decode stream message %s: %w", msg.ID, err)
	}
	return entry, nil
}
