//go:build integration

package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"path/filepath"
	"strconv"
	"testing"
	"time"
	_ "time/tzdata"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/couchcryptid/foot-traffic-etl/internal/adapter/kafka"
	"github.com/couchcryptid/foot-traffic-etl/internal/config"
	"github.com/couchcryptid/foot-traffic-etl/internal/domain"
	"github.com/couchcryptid/foot-traffic-etl/internal/observability"
	"github.com/couchcryptid/foot-traffic-etl/internal/pipeline"
	"github.com/couchcryptid/foot-traffic-etl/internal/spreadsheet"
	"github.com/couchcryptid/foot-traffic-etl/internal/store"
)

const (
	testSourceTopic = "test-traffic-reports"
	testSinkTopic   = "test-store-updates"
)

func discardLogger() *slog.Logger { return slog.New(slog.DiscardHandler) }

// startKafka runs a single-node KRaft broker and returns its address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("foot-traffic-test"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	ctrl, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer ctrl.Close()

	require.NoError(t, ctrl.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

func testConfig(broker, group string) *config.Config {
	return &config.Config{
		KafkaBrokers:       []string{broker},
		KafkaSourceTopic:   testSourceTopic,
		KafkaSinkTopic:     testSinkTopic,
		KafkaGroupID:       fmt.Sprintf("%s-%d", group, time.Now().UnixNano()),
		BatchFlushInterval: 5 * time.Second,
	}
}

// reportMessage renders a one-day positional workbook as a source message.
func reportMessage(t *testing.T, date time.Time, sentAt string, entering float64) kafkago.Message {
	t.Helper()
	var rows []domain.RawRow
	for hour := 12; hour <= 14; hour++ {
		for _, v := range domain.Venues {
			rows = append(rows, domain.RawRow{Date: date, Hour: hour, Venue: v, Entering: entering, Inside: entering / 2})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, spreadsheet.WriteReport(&buf, date, domain.Venues, rows))
	return kafkago.Message{
		Value: buf.Bytes(),
		Headers: []kafkago.Header{
			{Key: kafka.HeaderSentAt, Value: []byte(sentAt)},
			{Key: kafka.HeaderFilename, Value: []byte("traffic_" + date.Format(time.DateOnly) + ".xlsx")},
		},
	}
}

func newRunner(t *testing.T, st *store.Store) *pipeline.Runner {
	t.Helper()
	loc, err := time.LoadLocation(domain.DefaultReferenceZone)
	require.NoError(t, err)
	return pipeline.NewRunner(
		domain.NewDateResolver(loc),
		spreadsheet.NewExtractor(domain.Venues, discardLogger()),
		domain.NewEnricher(domain.DefaultEnteringMultiplier, domain.DefaultOperatingHours()),
		st,
		2,
		discardLogger(),
		observability.NewMetricsForTesting(),
	)
}

func readUpdate(ctx context.Context, t *testing.T, consumer *kafkago.Reader) (domain.StoreUpdate, kafkago.Message) {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from sink topic")

	var update domain.StoreUpdate
	require.NoError(t, json.Unmarshal(msg.Value, &update), "unmarshal store update")
	return update, msg
}

// TestKafkaReaderWriter verifies that a report round-trips through the reader
// and that the writer publishes a store update.
func TestKafkaReaderWriter(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSourceTopic)
	createTopic(t, broker, testSinkTopic)
	cfg := testConfig(broker, "test-reader")

	producer := &kafkago.Writer{Addr: kafkago.TCP(broker), Topic: testSourceTopic}
	t.Cleanup(func() { _ = producer.Close() })

	jan2 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	msg := reportMessage(t, jan2, "2024-01-03T09:00:00+11:00", 20)
	require.NoError(t, producer.WriteMessages(ctx, msg))

	// Retry because the consumer group may need time to rebalance before
	// partitions are assigned and messages become available.
	reader := kafka.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })

	var batch []domain.Item
	for len(batch) == 0 {
		var err error
		batch, err = reader.ExtractBatch(ctx, 1)
		require.NoError(t, err)
		if ctx.Err() != nil {
			t.Fatal("timed out waiting for message from source topic")
		}
	}
	require.Len(t, batch, 1)
	item := batch[0]
	assert.Equal(t, msg.Value, item.Payload)
	assert.Equal(t, "traffic_2024-01-02.xlsx", item.Source)
	assert.True(t, item.Timestamp.Equal(time.Date(2024, 1, 2, 22, 0, 0, 0, time.UTC)))
	require.NotNil(t, item.Commit, "commit callback should be set")
	require.NoError(t, item.Commit(ctx))

	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	sent := domain.StoreUpdate{Dates: []string{"2024-01-02"}, Inserted: 6, Total: 6, Store: "memory", UpdatedAt: time.Now().UTC().Truncate(time.Second)}
	require.NoError(t, writer.NotifyUpdate(ctx, sent))

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testSinkTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	got, raw := readUpdate(ctx, t, consumer)
	assert.Equal(t, sent, got)
	assert.Equal(t, []byte("memory"), raw.Key)
}

// TestPipelineEndToEnd wires reader, runner, parquet store and writer with
// real Kafka. Two reports for the same data date collapse to the newest, and
// a corrupt payload does not stop the batch.
func TestPipelineEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSourceTopic)
	createTopic(t, broker, testSinkTopic)
	cfg := testConfig(broker, "test-pipeline")

	producer := &kafkago.Writer{Addr: kafkago.TCP(broker), Topic: testSourceTopic}
	t.Cleanup(func() { _ = producer.Close() })

	jan1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	jan2 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	require.NoError(t, producer.WriteMessages(ctx,
		reportMessage(t, jan1, "Tue, 02 Jan 2024 09:00:00 +1100", 10),
		reportMessage(t, jan2, "2024-01-03T08:00:00+11:00", 1),
		kafkago.Message{Value: []byte("not a workbook"), Headers: []kafkago.Header{
			{Key: kafka.HeaderSentAt, Value: []byte("2024-01-05T09:00:00+11:00")},
		}},
		reportMessage(t, jan2, "2024-01-03T10:00:00+11:00", 40),
	))

	backend, err := store.NewFileBackend(filepath.Join(t.TempDir(), "hourly_foot_traffic.parquet"))
	require.NoError(t, err)
	st := store.New(backend, discardLogger())

	reader := kafka.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })
	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	p := pipeline.New(reader, newRunner(t, st), writer, discardLogger(), observability.NewMetricsForTesting(), 50)

	pipelineCtx, pipelineCancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(pipelineCtx) }()

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testSinkTopic,
		GroupID:     fmt.Sprintf("test-sink-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	// Messages may be split across batches; wait until both dates landed.
	dates := map[string]bool{}
	for len(dates) < 2 {
		update, _ := readUpdate(ctx, t, consumer)
		for _, d := range update.Dates {
			dates[d] = true
		}
	}

	pipelineCancel()
	require.NoError(t, <-errCh)
	assert.True(t, p.Ready())

	records, err := st.Load(ctx)
	require.NoError(t, err)
	require.Len(t, records, 12)
	for _, r := range records {
		if r.Date.Equal(jan2) {
			assert.InDelta(t, 38.0, r.Entering, 1e-9, "newest report for the date wins")
		} else {
			assert.InDelta(t, 9.5, r.Entering, 1e-9)
		}
	}
}
