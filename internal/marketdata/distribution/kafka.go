package distribution

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Aidin1998/pincex_fixmd/internal/marketdata"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageWriter is the subset of *kafka.Writer the publisher uses
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events as JSON to one topic. Messages are keyed by
// symbol so each symbol stays on one partition in order.
type KafkaPublisher struct {
	writer MessageWriter
	logger *zap.Logger
}

// NewKafkaPublisher creates a publisher with a hash-balanced writer
func NewKafkaPublisher(brokers []string, topic string, logger *zap.Logger) *KafkaPublisher {
	return NewKafkaPublisherWithWriter(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
	}, logger)
}

// NewKafkaPublisherWithWriter wraps an existing writer
func NewKafkaPublisherWithWriter(writer MessageWriter, logger *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{writer: writer, logger: logger.Named("kafka")}
}

// Name implements EventWriter
func (p *KafkaPublisher) Name() string { return "kafka" }

// MessageKey is the partition key for ev
func MessageKey(ev marketdata.Event) string {
	if sym := ev.Symbol(); sym != "" {
		return sym
	}
	return string(ev.Kind)
}

// Write implements EventWriter
func (p *KafkaPublisher) Write(ctx context.Context, ev marketdata.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(MessageKey(ev)),
		Value: data,
		Time:  ev.Time,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(ev.Kind)},
			{Key: "event_id", Value: []byte(ev.ID.String())},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write %s to kafka: %w", ev.Kind, err)
	}
	return nil
}

// Close implements EventWriter
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
