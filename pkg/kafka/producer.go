// Package kafka publishes vecta's activity events with segmentio/kafka-go.
// Values travel as JSON; the event type rides in a header so consumers can
// route without decoding.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/vecta/pkg/config"
)

const (
	HeaderEventType   = "vecta-event-type"
	HeaderContentType = "content-type"
)

// Event is one message. Key picks the partition, so events about the same
// index stay ordered.
type Event struct {
	Key   string
	Type  string
	Value any
}

// MessageWriter is the subset of *kafka.Writer the producer uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	writer MessageWriter
	topic  string
	now    func() time.Time
	logger *slog.Logger
}

// NewProducer writes to topic on cfg.Brokers. Writes are synchronous and
// snappy-compressed; the topic is created on first use when the broker
// allows it.
func NewProducer(cfg config.KafkaConfig, topic string) *Producer {
	return newProducer(&kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		MaxAttempts:            3,
		RequiredAcks:           kafka.RequireOne,
		Compression:            kafka.Snappy,
		AllowAutoTopicCreation: true,
	}, topic)
}

func newProducer(w MessageWriter, topic string) *Producer {
	return &Producer{
		writer: w,
		topic:  topic,
		now:    time.Now,
		logger: slog.Default().With("component", "kafka-producer", "topic", topic),
	}
}

// Publish writes events in one request. Nothing is written if any value
// fails to encode.
func (p *Producer) Publish(ctx context.Context, events ...Event) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, len(events))
	for i, e := range events {
		value, err := json.Marshal(e.Value)
		if err != nil {
			return fmt.Errorf("encoding %s event: %w", e.Type, err)
		}
		msgs[i] = kafka.Message{
			Key:   []byte(e.Key),
			Value: value,
			Time:  p.now(),
			Headers: []kafka.Header{
				{Key: HeaderEventType, Value: []byte(e.Type)},
				{Key: HeaderContentType, Value: []byte("application/json")},
			},
		}
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publishing %d event(s) to %s: %w", len(msgs), p.topic, err)
	}
	p.logger.Debug("published", "count", len(msgs))
	return nil
}

// Close flushes pending writes.
func (p *Producer) Close() error {
	return p.writer.Close()
}
