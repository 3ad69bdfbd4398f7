package events

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/segmentio/kafka-go"
)

// KafkaWriter is the subset of *kafka.Writer the publisher needs.
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher emits outcomes as JSON messages keyed by client id, so a
// consumer sees each client's outcomes in order.
type KafkaPublisher struct {
	writer KafkaWriter
}

// NewKafkaPublisher wraps a configured writer.
func NewKafkaPublisher(writer KafkaWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: writer}
}

// Publish encodes and writes the outcome.
func (p *KafkaPublisher) Publish(ctx context.Context, o Outcome) error {
	msg, err := Message(o)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, msg)
}

// Close flushes and closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Message builds the Kafka message for an outcome.
func Message(o Outcome) (kafka.Message, error) {
	data, err := json.Marshal(o)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(strconv.FormatUint(uint64(o.Client), 10)),
		Value: data,
		Time:  o.OccurredAt,
	}, nil
}
