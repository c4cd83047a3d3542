package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaMirror copies published events onto a Kafka topic for external
// consumers. Writes are best-effort: a broker outage degrades the
// mirror, never the bus.
type KafkaMirror struct {
	writer *kafka.Writer
}

// NewKafkaMirror builds a mirror targeting the given brokers and topic.
func NewKafkaMirror(brokers []string, topic string) *KafkaMirror {
	return &KafkaMirror{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
			Async:        true,
		},
	}
}

// Attach subscribes the mirror to all bus events.
func (m *KafkaMirror) Attach(b *Bus) {
	b.SubscribeAll(func(e Event) {
		value, err := json.Marshal(e)
		if err != nil {
			slog.Warn("event not serializable for kafka", "type", e.Type, "error", err)
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		msg := kafka.Message{
			Key:   []byte(e.Type),
			Value: value,
			Time:  e.Timestamp,
		}
		if err := m.writer.WriteMessages(ctx, msg); err != nil {
			slog.Warn("kafka event mirror write failed", "type", e.Type, "error", err)
		}
	})
}

func (m *KafkaMirror) Close() error { return m.writer.Close() }
