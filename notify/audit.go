package notify

import (
	"context"
	"encoding/json"

	goerrors "github.com/goliatone/go-errors"
	"github.com/segmentio/kafka-go"

	auth "github.com/rideshare/go-rideshare-auth"
	"github.com/rideshare/go-rideshare-auth/activitymap"
)

// AuditPublisher is an auth.ActivitySink that publishes normalized activity
// records to Kafka.
type AuditPublisher struct {
	writer MessageWriter
	opts   []activitymap.Option
}

func NewAuditPublisher(writer MessageWriter, opts ...activitymap.Option) *AuditPublisher {
	return &AuditPublisher{writer: writer, opts: opts}
}

func (p *AuditPublisher) Record(ctx context.Context, event auth.ActivityEvent) error {
	record := activitymap.Normalize(event, p.opts...)

	b, err := json.Marshal(record)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "encode activity")
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(record.ActorID),
		Value: b,
		Time:  record.OccurredAt,
	})
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "publish activity").
			WithMetadata(map[string]any{"verb": record.Verb})
	}
	return nil
}

func (p *AuditPublisher) Close() error {
	return p.writer.Close()
}
