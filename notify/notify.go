// Package notify provides auth.Notifier and auth.ActivitySink
// implementations: a development log notifier, a Kafka publisher, a
// circuit breaker wrapper and a template renderer for message bodies.
package notify

import (
	"context"
	"encoding/json"

	goerrors "github.com/goliatone/go-errors"
	"github.com/segmentio/kafka-go"

	auth "github.com/rideshare/go-rideshare-auth"
)

// MessageWriter is the subset of *kafka.Writer used by the publishers.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafkaWriter returns a synchronous writer that waits for all replicas.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
	}
}

// LogNotifier writes messages to the log instead of delivering them. It is
// meant for local development.
type LogNotifier struct {
	logger auth.Logger
}

func NewLogNotifier(logger auth.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Send(_ context.Context, msg auth.Message) error {
	if n.logger == nil {
		return nil
	}
	n.logger.Info("notification",
		"kind", msg.Kind,
		"to", msg.To,
		"subject", msg.Subject,
		"url", msg.Data[auth.MessageDataURL],
	)
	return nil
}

// KafkaNotifier publishes messages as JSON for a delivery service to
// consume. Messages are keyed by recipient so retries stay ordered.
type KafkaNotifier struct {
	writer MessageWriter
}

func NewKafkaNotifier(writer MessageWriter) *KafkaNotifier {
	return &KafkaNotifier{writer: writer}
}

func (n *KafkaNotifier) Send(ctx context.Context, msg auth.Message) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "encode notification")
	}

	record := kafka.Message{
		Key:   []byte(msg.To),
		Value: b,
		Time:  msg.QueuedAt,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(msg.Kind)},
		},
	}
	if err := n.writer.WriteMessages(ctx, record); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "publish notification").
			WithMetadata(map[string]any{"kind": msg.Kind})
	}
	return nil
}

func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}
