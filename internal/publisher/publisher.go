// Package publisher emits reference-rate events to downstream consumers.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"RateSentinel/internal/model"

	"github.com/segmentio/kafka-go"
)

// Publisher sends reference recomputation events.
type Publisher interface {
	PublishReference(ctx context.Context, evt model.ReferenceEvent) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events as JSON messages keyed by cycle id.
type KafkaPublisher struct {
	writer messageWriter
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 50 * time.Millisecond,
		},
	}
}

func (k *KafkaPublisher) PublishReference(ctx context.Context, evt model.ReferenceEvent) error {
	msg, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	if err := k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(evt.CycleID),
		Value: msg,
		Time:  evt.ComputedAt,
	}); err != nil {
		return fmt.Errorf("publish reference event: %w", err)
	}
	return nil
}

func (k *KafkaPublisher) Close() error {
	return k.writer.Close()
}

// NoopPublisher is used when no brokers are configured.
type NoopPublisher struct{}

func (NoopPublisher) PublishReference(context.Context, model.ReferenceEvent) error { return nil }
func (NoopPublisher) Close() error                                                 { return nil }
