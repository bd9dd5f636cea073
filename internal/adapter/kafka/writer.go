package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/foot-traffic-etl/internal/config"
	"github.com/couchcryptid/foot-traffic-etl/internal/domain"
)

// Writer publishes store update notifications to a Kafka topic.
// It implements pipeline.UpdateNotifier.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// NotifyUpdate serializes a committed store update and publishes it keyed by
// store location.
func (w *Writer) NotifyUpdate(ctx context.Context, update domain.StoreUpdate) error {
	msg, err := serializeToMessage(update)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish store update: %w", err)
	}
	w.logger.Debug("store update published", "store", update.Store, "dates", update.Dates)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a StoreUpdate into a Kafka message.
func serializeToMessage(update domain.StoreUpdate) (kafkago.Message, error) {
	data, err := json.Marshal(update)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize store update: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(update.Store),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "dates", Value: []byte(strings.Join(update.Dates, ","))},
			{Key: "updated_at", Value: []byte(update.UpdatedAt.Format(time.RFC3339))},
		},
	}, nil
}
