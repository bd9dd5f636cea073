package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/foot-traffic-etl/internal/config"
	"github.com/couchcryptid/foot-traffic-etl/internal/domain"
)

// Message headers understood by the reader.
const (
	HeaderSentAt   = "sent_at"
	HeaderFilename = "filename"
	HeaderDataDate = "data_date"
)

// maxPayloadBytes bounds a single fetched message; report workbooks are
// a few hundred KB.
const maxPayloadBytes = 16 << 20

// localLayouts are sent_at forms without an offset. They are read in the
// reference zone.
var localLayouts = []string{
	"2006-01-02T15:04:05",
	time.DateTime,
}

// Reader consumes spreadsheet payloads from a Kafka topic.
// It implements pipeline.BatchExtractor.
type Reader struct {
	reader        *kafkago.Reader
	flushInterval time.Duration
	zone          *time.Location
	logger        *slog.Logger
}

// NewReader creates a consumer-group reader for the configured source topic.
func NewReader(cfg *config.Config, logger *slog.Logger) *Reader {
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:  cfg.KafkaBrokers,
		GroupID:  cfg.KafkaGroupID,
		Topic:    cfg.KafkaSourceTopic,
		MinBytes: 1,
		MaxBytes: maxPayloadBytes,
	})
	zone := domain.NewDateResolver(cfg.ReferenceZone).Zone()
	return &Reader{reader: r, flushInterval: cfg.BatchFlushInterval, zone: zone, logger: logger}
}

// ExtractBatch blocks until the first message arrives, then collects up to
// batchSize messages or until the flush interval elapses. Offsets are not
// committed here; each item carries its own Commit.
func (r *Reader) ExtractBatch(ctx context.Context, batchSize int) ([]domain.Item, error) {
	first, err := r.reader.FetchMessage(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch message: %w", err)
	}
	items := []domain.Item{r.toItem(first)}

	flushCtx, cancel := context.WithTimeout(ctx, r.flushInterval)
	defer cancel()

	for len(items) < batchSize {
		msg, err := r.reader.FetchMessage(flushCtx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				break
			}
			if ctx.Err() != nil {
				return items, nil
			}
			return items, fmt.Errorf("fetch message: %w", err)
		}
		items = append(items, r.toItem(msg))
	}
	return items, nil
}

func (r *Reader) toItem(msg kafkago.Message) domain.Item {
	item := mapMessageToItem(msg, r.zone)
	if h := header(msg, HeaderSentAt); h != "" && item.Timestamp.IsZero() {
		r.logger.Warn("unparseable sent_at header", "source", item.Source, "sent_at", h)
	}
	item.Commit = func(ctx context.Context) error {
		return r.reader.CommitMessages(ctx, msg)
	}
	return item
}

// Close shuts down the consumer.
func (r *Reader) Close() error {
	return r.reader.Close()
}

// mapMessageToItem converts a Kafka message into an engine item. The broker
// timestamp becomes the fallback modification time.
func mapMessageToItem(msg kafkago.Message, zone *time.Location) domain.Item {
	item := domain.Item{
		Payload: msg.Value,
		ModTime: msg.Time,
		Source:  header(msg, HeaderFilename),
	}
	if item.Source == "" {
		item.Source = fmt.Sprintf("%s/%d/%d", msg.Topic, msg.Partition, msg.Offset)
	}
	if ts, ok := parseSentAt(header(msg, HeaderSentAt), zone); ok {
		item.Timestamp = ts
	}
	if d, err := domain.ParseDate(header(msg, HeaderDataDate)); err == nil {
		item.DataDate = d
	}
	return item
}

// parseSentAt accepts RFC 3339 timestamps, offset-less local timestamps in
// zone, and RFC 5322 mail dates.
func parseSentAt(s string, zone *time.Location) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, true
	}
	for _, layout := range localLayouts {
		if ts, err := time.ParseInLocation(layout, s, zone); err == nil {
			return ts, true
		}
	}
	if ts, err := mail.ParseDate(s); err == nil {
		return ts, true
	}
	return time.Time{}, false
}

func header(msg kafkago.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
