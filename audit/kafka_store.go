package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// MessageWriter is the subset of *kafka.Writer the store uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaConfig configures NewKafkaWriter.
type KafkaConfig struct {
	Brokers      []string      `yaml:"brokers" env:"BROKERS" envSeparator:","`
	Topic        string        `yaml:"topic" env:"TOPIC"`
	BatchTimeout time.Duration `yaml:"batch_timeout" env:"BATCH_TIMEOUT"`
}

// NewKafkaWriter returns a synchronous writer that waits for all in-sync
// replicas before acknowledging.
func NewKafkaWriter(cfg KafkaConfig) *kafka.Writer {
	timeout := cfg.BatchTimeout
	if timeout <= 0 {
		timeout = 10 * time.Millisecond
	}
	return &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: timeout,
		RequiredAcks: kafka.RequireAll,
	}
}

// KafkaStore publishes every entry to a topic for downstream retention. It
// is write-only; consumers own querying.
type KafkaStore struct {
	writer MessageWriter
}

func NewKafkaStore(w MessageWriter) *KafkaStore {
	return &KafkaStore{writer: w}
}

// Append publishes entry keyed by actor id so one user's events stay in a
// single partition.
func (s *KafkaStore) Append(ctx context.Context, entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("audit: encode entry: %w", err)
	}

	key := entry.ID.String()
	if entry.Actor != nil {
		key = entry.Actor.ID.String()
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: data,
		Time:  entry.Timestamp,
		Headers: []kafka.Header{
			{Key: "action", Value: []byte(entry.Action.String())},
			{Key: "severity", Value: []byte(entry.Severity.String())},
		},
	}
	if entry.RequestID != "" {
		msg.Headers = append(msg.Headers, kafka.Header{Key: "request_id", Value: []byte(entry.RequestID)})
	}

	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("%w: publish audit entry: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *KafkaStore) Query(context.Context, Query) ([]Entry, error) {
	return nil, ErrQueryUnsupported
}
