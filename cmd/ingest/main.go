// Command ingest runs the traffic engine once over a local folder of report
// workbooks or an exported mailbox and upserts the result into the store.
//
// Usage:
//
//	go run ./cmd/ingest -source dir -path ./reports
//	go run ./cmd/ingest -source mailbox -path ./inbox -backfill 30
//	go run ./cmd/ingest -source dir -path ./reports -data-date 2024-01-02
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/foot-traffic-etl/internal/config"
	"github.com/couchcryptid/foot-traffic-etl/internal/domain"
	"github.com/couchcryptid/foot-traffic-etl/internal/observability"
	"github.com/couchcryptid/foot-traffic-etl/internal/pipeline"
	"github.com/couchcryptid/foot-traffic-etl/internal/source"
	"github.com/couchcryptid/foot-traffic-etl/internal/spreadsheet"
	"github.com/couchcryptid/foot-traffic-etl/internal/store"
)

type options struct {
	source   string
	path     string
	backfill int
	dataDate string
	sender   string
}

func main() {
	var opts options
	flag.StringVar(&opts.source, "source", "dir", "payload source: dir or mailbox")
	flag.StringVar(&opts.path, "path", "", "folder of report workbooks or exported .eml messages")
	flag.IntVar(&opts.backfill, "backfill", 30, "mailbox only: days of messages to consider (0 = all)")
	flag.StringVar(&opts.dataDate, "data-date", "", "override the data date (YYYY-MM-DD); requires exactly one report in -path")
	flag.StringVar(&opts.sender, "sender", "", "mailbox only: sender filter (default TRAFFIC_SENDER)")
	flag.Parse()

	if opts.path == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, opts, logger, observability.NewMetrics(), os.Stdout); err != nil {
		logger.Error("ingest failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, opts options, logger *slog.Logger, metrics *observability.Metrics, out io.Writer) error {
	src, err := newSource(cfg, opts, logger)
	if err != nil {
		return err
	}

	items, err := src.Items(ctx)
	if err != nil {
		return fmt.Errorf("collect items: %w", err)
	}
	if opts.dataDate != "" {
		date, err := domain.ParseDate(opts.dataDate)
		if err != nil {
			return fmt.Errorf("invalid -data-date %q: %w", opts.dataDate, err)
		}
		// Dates replace whole; a shared override would keep only one report.
		if len(items) > 1 {
			return fmt.Errorf("-data-date applies to a single report, found %d", len(items))
		}
		for i := range items {
			items[i].DataDate = date
		}
	}

	st, err := store.Open(ctx, cfg.Store, logger)
	if err != nil {
		return err
	}

	runner := pipeline.NewRunner(
		domain.NewDateResolver(cfg.ReferenceZone),
		spreadsheet.NewExtractor(domain.Venues, logger),
		domain.NewEnricher(cfg.EnteringMultiplier, cfg.Hours),
		st,
		cfg.ExtractWorkers,
		logger,
		metrics,
	)

	report, err := runner.Process(ctx, items)
	if err != nil {
		return err
	}
	return printSummary(ctx, out, st, report)
}

func newSource(cfg *config.Config, opts options, logger *slog.Logger) (source.Source, error) {
	switch opts.source {
	case "dir":
		return source.LocalDir{Dir: opts.path, Logger: logger}, nil
	case "mailbox":
		sender := opts.sender
		if sender == "" {
			sender = cfg.TrafficSender
		}
		return source.Mailbox{
			Dir:      opts.path,
			Sender:   sender,
			Backfill: opts.backfill,
			Clock:    clockwork.NewRealClock(),
			Logger:   logger,
		}, nil
	default:
		return nil, errors.New("-source must be dir or mailbox")
	}
}

func printSummary(ctx context.Context, out io.Writer, st *store.Store, report pipeline.Report) error {
	fmt.Fprintf(out, "items: %d (skipped %d, failed %d)\n", report.Items, report.Skipped, report.Failed)
	fmt.Fprintf(out, "rows: %d extracted, %d skipped\n", report.Rows, report.SkippedRows)
	if !report.Committed {
		fmt.Fprintln(out, "no records extracted; store unchanged")
		return nil
	}
	fmt.Fprintf(out, "upserted dates: %v (inserted %d, replaced %d)\n",
		report.Upsert.Dates, report.Upsert.Inserted, report.Upsert.Replaced)

	records, err := st.Load(ctx)
	if err != nil {
		return fmt.Errorf("reload store: %w", err)
	}
	var venues []string
	for _, r := range records {
		if !slices.Contains(venues, string(r.Venue)) {
			venues = append(venues, string(r.Venue))
		}
	}
	slices.Sort(venues)
	fmt.Fprintf(out, "store: %s\n", st.Location())
	if len(records) > 0 {
		first, last := records[0].Date, records[0].Date
		for _, r := range records {
			if r.Date.Before(first) {
				first = r.Date
			}
			if r.Date.After(last) {
				last = r.Date
			}
		}
		fmt.Fprintf(out, "date range: %s to %s\n", first.Format(time.DateOnly), last.Format(time.DateOnly))
	}
	fmt.Fprintf(out, "total rows: %d\n", len(records))
	fmt.Fprintf(out, "venues: %v\n", venues)
	return nil
}
