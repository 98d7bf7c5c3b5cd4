package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// DefaultTopic is the Kafka topic change events are written to.
const DefaultTopic = "ledger_document_changed"

// batchTimeout bounds how long Publish waits to fill a batch. Publish runs
// inside a ledger commit, so it must not linger for the one second default.
const batchTimeout = 5 * time.Millisecond

// KafkaPublisher writes change events to a Kafka topic, keyed by document key.
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher creates a publisher for brokers and topic.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	if topic == "" {
		topic = DefaultTopic
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: batchTimeout,
		},
	}
}

// Publish implements Publisher.
func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(e.Key), Value: data}); err != nil {
		return fmt.Errorf("publishing event for %s: %w", e.Key, err)
	}
	return nil
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// KafkaRelay forwards events from a Kafka topic into a local Publisher
// (usually a Hub), so views in this process hear about writes made by others.
type KafkaRelay struct {
	reader *kafka.Reader
	origin string
}

// NewKafkaRelay creates a relay reading topic with its own consumer group.
// Events whose Origin equals origin are skipped.
func NewKafkaRelay(brokers []string, topic, groupID, origin string) *KafkaRelay {
	if topic == "" {
		topic = DefaultTopic
	}
	return &KafkaRelay{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers: brokers,
			Topic:   topic,
			GroupID: groupID,
		}),
		origin: origin,
	}
}

// Run forwards events to dst until ctx is cancelled.
func (r *KafkaRelay) Run(ctx context.Context, dst Publisher) error {
	for {
		msg, err := r.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return fmt.Errorf("reading change events: %w", err)
		}
		e, ok := decodeEvent(msg.Value)
		if !ok {
			slog.Warn("dropping malformed change event", "offset", msg.Offset)
			continue
		}
		if e.Origin == r.origin {
			continue
		}
		if err := dst.Publish(ctx, e); err != nil {
			slog.Warn("relaying change event", "key", e.Key, "error", err)
		}
	}
}

// Close closes the reader.
func (r *KafkaRelay) Close() error {
	return r.reader.Close()
}

func decodeEvent(data []byte) (Event, bool) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil || e.Key == "" {
		return Event{}, false
	}
	return e, true
}
