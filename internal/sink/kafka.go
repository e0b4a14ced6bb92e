package sink

import (
	"context"
	"encoding/json"
	"fmt"

	"sitesight/internal/pipeline"

	"github.com/segmentio/kafka-go"
)

// MessageWriter is satisfied by *kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// NewKafkaWriter builds a synchronous writer that waits for the leader ack.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}
}

// Kafka publishes one message per ranked site keyed by SiteName, so a
// compacted topic holds the latest ranking of every site.
type Kafka struct {
	writer MessageWriter
}

func NewKafka(w MessageWriter) *Kafka {
	return &Kafka{writer: w}
}

func (k *Kafka) Name() string { return "kafka" }

func (k *Kafka) Write(ctx context.Context, run *pipeline.Run) error {
	docs := documents(run)
	if len(docs) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(docs))
	for _, doc := range docs {
		value, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("encode %s: %w", doc.SiteName, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(doc.SiteName),
			Value: value,
			Headers: []kafka.Header{
				{Key: "run-id", Value: []byte(run.RunID)},
			},
		})
	}

	if err := k.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish %d messages: %w", len(msgs), err)
	}
	return nil
}
