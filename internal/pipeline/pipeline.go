package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/foot-traffic-etl/internal/domain"
	"github.com/couchcryptid/foot-traffic-etl/internal/observability"
)

// BatchExtractor reads up to batchSize spreadsheet payloads from the source.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]domain.Item, error)
}

// Processor runs one batch through to a single store upsert.
type Processor interface {
	Process(ctx context.Context, items []domain.Item) (Report, error)
	Location() string
}

// UpdateNotifier announces committed store updates downstream.
type UpdateNotifier interface {
	NotifyUpdate(ctx context.Context, update domain.StoreUpdate) error
}

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// Pipeline orchestrates the extract-process-commit loop for streaming sources.
type Pipeline struct {
	extractor BatchExtractor
	processor Processor
	notifier  UpdateNotifier
	logger    *slog.Logger
	metrics   *observability.Metrics
	ready     atomic.Bool
	batchSize int

	mu         sync.Mutex
	lastUpdate *domain.StoreUpdate
}

// New creates a Pipeline. notifier may be nil.
func New(e BatchExtractor, p Processor, n UpdateNotifier, logger *slog.Logger, metrics *observability.Metrics, batchSize int) *Pipeline {
	return &Pipeline{
		extractor: e,
		processor: p,
		notifier:  n,
		logger:    logger,
		metrics:   metrics,
		batchSize: batchSize,
	}
}

// CheckReadiness returns nil once the pipeline has committed an upsert,
// or an error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not committed any store update yet")
	}
	return nil
}

// Ready reports whether an upsert has been committed.
func (p *Pipeline) Ready() bool { return p.ready.Load() }

// LastUpdate returns the most recent committed store update.
func (p *Pipeline) LastUpdate() (domain.StoreUpdate, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.lastUpdate == nil {
		return domain.StoreUpdate{}, false
	}
	return *p.lastUpdate, true
}

// Run executes the batch loop until the context is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "batch_size", p.batchSize, "store", p.processor.Location())
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	backoff := initialBackoff
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		default:
		}

		if !p.processBatch(ctx, &backoff) {
			return nil
		}
	}
}

// processBatch runs one extract-process-commit cycle. Returns false if the
// pipeline should stop.
func (p *Pipeline) processBatch(ctx context.Context, backoff *time.Duration) bool {
	items, err := p.extractor.ExtractBatch(ctx, p.batchSize)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		p.logger.Error("extract batch failed", "error", err)
		return backoffOrStop(ctx, backoff)
	}
	if len(items) == 0 {
		return ctx.Err() == nil
	}
	p.metrics.BatchSize.Observe(float64(len(items)))
	*backoff = initialBackoff

	// Offsets are committed only after the batch reached the store.
	for {
		report, err := p.processor.Process(ctx, items)
		if err == nil {
			p.commit(ctx, items)
			p.afterRun(ctx, report)
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		p.logger.Error("run failed, retrying batch", "error", err, "batch_size", len(items), "backoff", *backoff)
		if !backoffOrStop(ctx, backoff) {
			return false
		}
	}
}

func (p *Pipeline) afterRun(ctx context.Context, report Report) {
	p.logger.Info("batch processed",
		"items", report.Items,
		"skipped", report.Skipped,
		"failed", report.Failed,
		"records", report.Records,
		"committed", report.Committed,
	)
	if !report.Committed {
		return
	}
	p.ready.Store(true)

	update := report.Update(p.processor.Location(), domain.Clock().Now().UTC())
	p.mu.Lock()
	p.lastUpdate = &update
	p.mu.Unlock()

	if p.notifier == nil {
		return
	}
	if err := p.notifier.NotifyUpdate(ctx, update); err != nil {
		p.logger.Warn("store update notification failed", "error", err, "dates", update.Dates)
	}
}

// commit acknowledges every item of the batch, skipped and failed ones
// included.
func (p *Pipeline) commit(ctx context.Context, items []domain.Item) {
	for _, item := range items {
		if item.Commit == nil {
			continue
		}
		if err := item.Commit(ctx); err != nil {
			p.logger.Warn("commit offset failed", "error", err, "source", item.Source)
		}
	}
}

// backoffOrStop sleeps with the current backoff and advances it. Returns
// false if the context ended first.
func backoffOrStop(ctx context.Context, backoff *time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if !sleepWithContext(ctx, *backoff) {
		return false
	}
	*backoff = nextBackoff(*backoff, maxBackoff)
	return true
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
