package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/foot-traffic-etl/internal/domain"
	"github.com/couchcryptid/foot-traffic-etl/internal/observability"
	"github.com/couchcryptid/foot-traffic-etl/internal/spreadsheet"
	"github.com/couchcryptid/foot-traffic-etl/internal/store"
)

// Skip and failure reasons, used as log attributes and metric labels.
const (
	ReasonNoTimestamp = "no_timestamp"
	ReasonSuperseded  = "superseded"
	ReasonDecode      = "decode"
	ReasonHeader      = "header"
)

// Upserter merges enriched records into the persisted table.
type Upserter interface {
	Upsert(ctx context.Context, records []domain.Record) (store.UpsertResult, error)
	Location() string
}

// Report summarizes one run.
type Report struct {
	Items       int
	Skipped     int
	Failed      int
	Rows        int
	SkippedRows int
	Records     int
	// Committed is false when the run produced no records, in which case
	// the store was not touched.
	Committed bool
	Upsert    store.UpsertResult
}

// Update describes the committed upsert for downstream consumers.
func (r Report) Update(location string, at time.Time) domain.StoreUpdate {
	return domain.StoreUpdate{
		Dates:     r.Upsert.Dates,
		Inserted:  r.Upsert.Inserted,
		Replaced:  r.Upsert.Replaced,
		Total:     r.Upsert.Total,
		Store:     location,
		UpdatedAt: at,
	}
}

// Runner turns a batch of spreadsheet payloads into exactly one store upsert.
type Runner struct {
	resolver  domain.DateResolver
	extractor *spreadsheet.Extractor
	enricher  domain.Enricher
	store     Upserter
	workers   int
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewRunner creates a Runner. workers bounds concurrent spreadsheet
// extraction.
func NewRunner(
	resolver domain.DateResolver,
	extractor *spreadsheet.Extractor,
	enricher domain.Enricher,
	st Upserter,
	workers int,
	logger *slog.Logger,
	metrics *observability.Metrics,
) *Runner {
	if workers <= 0 {
		workers = 1
	}
	return &Runner{
		resolver:  resolver,
		extractor: extractor,
		enricher:  enricher,
		store:     st,
		workers:   workers,
		logger:    logger,
		metrics:   metrics,
	}
}

// Location names the store the runner writes to.
func (r *Runner) Location() string { return r.store.Location() }

type job struct {
	item domain.Item
	attr domain.Attribution
}

type extraction struct {
	rows    []domain.RawRow
	skipped int
	failed  bool
}

// Process resolves, extracts and enriches every item and upserts the result.
// Per-item problems are logged and counted; only a store failure or context
// cancellation is returned as an error.
func (r *Runner) Process(ctx context.Context, items []domain.Item) (Report, error) {
	start := domain.Clock().Now()
	report := Report{Items: len(items)}
	r.metrics.ItemsReceived.Add(float64(len(items)))

	jobs := r.resolve(items, &report)

	results := make([]extraction, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i, j := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = r.extract(j)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}

	var rows []domain.RawRow
	for _, res := range results {
		if res.failed {
			report.Failed++
			continue
		}
		report.SkippedRows += res.skipped
		rows = append(rows, res.rows...)
	}
	report.Rows = len(rows)
	r.metrics.RowsExtracted.Add(float64(report.Rows))
	r.metrics.RowsSkipped.Add(float64(report.SkippedRows))

	records := r.enricher.Enrich(rows)
	report.Records = len(records)
	if len(records) == 0 {
		r.logger.Warn("no records extracted, store left untouched",
			"items", report.Items, "skipped", report.Skipped, "failed", report.Failed)
		r.metrics.Upserts.WithLabelValues(observability.OutcomeEmpty).Inc()
		return report, nil
	}

	res, err := r.store.Upsert(ctx, records)
	if err != nil {
		r.metrics.Upserts.WithLabelValues(observability.OutcomeFailed).Inc()
		return report, fmt.Errorf("upsert %d records: %w", len(records), err)
	}
	report.Committed = true
	report.Upsert = res

	r.metrics.Upserts.WithLabelValues(observability.OutcomeCommitted).Inc()
	r.metrics.RecordsUpserted.Add(float64(res.Inserted))
	r.metrics.StoreRows.Set(float64(res.Total))
	r.metrics.RunDuration.Observe(domain.Clock().Since(start).Seconds())
	return report, nil
}

// resolve attributes every item to a data date and keeps, per date, only the
// item with the newest signal. Later items win ties.
func (r *Runner) resolve(items []domain.Item, report *Report) []job {
	var jobs []job
	byDate := make(map[time.Time]int)

	for _, item := range items {
		attr, err := r.resolver.Resolve(item)
		if err != nil {
			r.logger.Warn("skipping item", "source", item.Source, "reason", ReasonNoTimestamp, "error", err)
			r.metrics.ItemsSkipped.WithLabelValues(ReasonNoTimestamp).Inc()
			report.Skipped++
			continue
		}
		if attr.Fallback() {
			r.logger.Info("data date attributed from modification time",
				"source", item.Source, "mod_time", attr.At, "data_date", attr.DataDate.Format(time.DateOnly))
		}

		next := job{item: item, attr: attr}
		i, seen := byDate[attr.DataDate]
		if !seen {
			byDate[attr.DataDate] = len(jobs)
			jobs = append(jobs, next)
			continue
		}

		loser := next
		if !attr.At.Before(jobs[i].attr.At) {
			loser = jobs[i]
			jobs[i] = next
		}
		r.logger.Warn("skipping item", "source", loser.item.Source, "reason", ReasonSuperseded,
			"data_date", attr.DataDate.Format(time.DateOnly), "kept", jobs[i].item.Source)
		r.metrics.ItemsSkipped.WithLabelValues(ReasonSuperseded).Inc()
		report.Skipped++
	}
	return jobs
}

func (r *Runner) extract(j job) extraction {
	date := j.attr.DataDate
	table, err := spreadsheet.DecodeBytes(j.item.Payload)
	if err != nil {
		r.logger.Warn("failed to read workbook", "source", j.item.Source, "reason", ReasonDecode, "error", err)
		r.metrics.FilesFailed.WithLabelValues(ReasonDecode).Inc()
		return extraction{failed: true}
	}

	res, err := r.extractor.Extract(table, date, j.item.Source)
	if errors.Is(err, spreadsheet.ErrHeaderNotFound) {
		r.logger.Warn("could not find header row", "source", j.item.Source, "reason", ReasonHeader,
			"sheet", table.Sheet, "data_date", date.Format(time.DateOnly))
		r.metrics.FilesFailed.WithLabelValues(ReasonHeader).Inc()
		return extraction{failed: true}
	}
	if err != nil {
		r.logger.Warn("failed to extract rows", "source", j.item.Source, "error", err)
		r.metrics.FilesFailed.WithLabelValues(ReasonDecode).Inc()
		return extraction{failed: true}
	}

	r.logger.Info("extracted workbook",
		"source", j.item.Source,
		"data_date", date.Format(time.DateOnly),
		"signal", j.attr.Signal,
		"layout", res.Layout.String(),
		"rows", len(res.Rows),
		"skipped_rows", res.SkippedRows,
	)
	return extraction{rows: res.Rows, skipped: res.SkippedRows}
}
