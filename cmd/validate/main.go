// Command validate performs data integrity checks on the hourly foot traffic
// store: value ranges, key uniqueness, sort order, opening-hours consistency
// and finite counts. Negative counts are stored as reported by the vendor, so
// that check is an advisory business audit and never fails the run.
//
// Usage:
//
//	go run ./cmd/validate -store data/hourly_foot_traffic.parquet
//	go run ./cmd/validate -store data/hourly_foot_traffic.parquet -hours config/venue_hours.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"slices"
	"time"
	_ "time/tzdata"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/foot-traffic-etl/internal/config"
	"github.com/couchcryptid/foot-traffic-etl/internal/domain"
	"github.com/couchcryptid/foot-traffic-etl/internal/store"
)

// phase tracks pass/fail for a validation phase. Advisory phases report
// WARN instead of FAIL and do not affect the exit code.
type phase struct {
	name     string
	advisory bool
	errors   []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// maxReported caps the detailed errors printed per phase.
const maxReported = 20

func main() {
	storePath := flag.String("store", sharedcfg.EnvOrDefault("STORE_PATH", "hourly_foot_traffic.parquet"), "path to the parquet store")
	hoursPath := flag.String("hours", os.Getenv("VENUE_HOURS_FILE"), "optional YAML operating-hours override")
	flag.Parse()

	if code := run(context.Background(), *storePath, *hoursPath, os.Stdout); code != 0 {
		os.Exit(code)
	}
}

func run(ctx context.Context, storePath, hoursPath string, out io.Writer) int {
	hours := domain.DefaultOperatingHours()
	if hoursPath != "" {
		var err error
		if hours, err = config.LoadOperatingHours(hoursPath, hours); err != nil {
			fmt.Fprintf(out, "FATAL: load hours: %v\n", err)
			return 1
		}
	}

	backend, err := store.NewFileBackend(storePath)
	if err != nil {
		fmt.Fprintf(out, "FATAL: open store: %v\n", err)
		return 1
	}
	records, err := store.New(backend, slog.New(slog.DiscardHandler)).Load(ctx)
	if err != nil {
		fmt.Fprintf(out, "FATAL: load store: %v\n", err)
		return 1
	}

	fmt.Fprintln(out, "=== Foot Traffic Store Validation ===")
	fmt.Fprintf(out, "Store: %s (%d records)\n\n", backend.Describe(), len(records))

	phases := []*phase{
		validateRanges(records, hours),
		validateUniqueKeys(records),
		validateSortOrder(records),
		validateOpenFlags(records, hours),
		validateFiniteCounts(records),
		auditNegativeCounts(records),
	}
	return report(out, phases)
}

func report(out io.Writer, phases []*phase) int {
	allPassed := true
	warnings := 0
	for _, p := range phases {
		status := "PASS"
		switch {
		case p.passed():
		case p.advisory:
			status = fmt.Sprintf("WARN (%d rows)", len(p.errors))
			warnings++
		default:
			status = fmt.Sprintf("FAIL (%d errors)", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(out, "  %-32s %s\n", p.name, status)
	}

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			if i == maxReported {
				fmt.Fprintf(out, "  ... %d more\n", len(p.errors)-maxReported)
				break
			}
			fmt.Fprintf(out, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(out, "\nAll validations passed.")
		if warnings > 0 {
			fmt.Fprintf(out, "%d advisory phase(s) reported warnings.\n", warnings)
		}
		return 0
	}
	fmt.Fprintln(out, "\nValidation FAILED.")
	return 1
}

// ── Phases ──

func validateRanges(records []domain.Record, hours domain.OperatingHours) *phase {
	p := &phase{name: "Schema ranges"}
	known := hours.Venues()
	for i, r := range records {
		if r.Hour < domain.MinHour || r.Hour > domain.MaxHour {
			p.errorf("row %d: hour %d out of range", i, r.Hour)
		}
		if !slices.Contains(known, r.Venue) {
			p.errorf("row %d: unknown venue %q", i, r.Venue)
		}
		if !r.Date.Equal(domain.DateOf(r.Date)) {
			p.errorf("row %d: date %s is not midnight", i, r.Date.Format(time.RFC3339))
		}
		if want := domain.DateTimeOf(r.Date, r.Hour); !r.DateTime.Equal(want) {
			p.errorf("row %d: date_time %s, want %s", i, r.DateTime.Format(time.DateTime), want.Format(time.DateTime))
		}
	}
	return p
}

func validateUniqueKeys(records []domain.Record) *phase {
	p := &phase{name: "Unique (date, hour, venue)"}
	seen := make(map[domain.Key]int, len(records))
	for i, r := range records {
		if first, dup := seen[r.Key()]; dup {
			p.errorf("row %d duplicates row %d: %s hour %d %s", i, first, r.Date.Format(time.DateOnly), r.Hour, r.Venue)
			continue
		}
		seen[r.Key()] = i
	}
	return p
}

func validateSortOrder(records []domain.Record) *phase {
	p := &phase{name: "Sort order"}
	sorted := slices.Clone(records)
	domain.SortRecords(sorted)
	for i := range records {
		if records[i].Key() != sorted[i].Key() {
			p.errorf("row %d: %s hour %d %s out of order", i,
				records[i].Date.Format(time.DateOnly), records[i].Hour, records[i].Venue)
			break
		}
	}
	return p
}

func validateOpenFlags(records []domain.Record, hours domain.OperatingHours) *phase {
	p := &phase{name: "IsOpen matches operating hours"}
	for i, r := range records {
		if want := hours.IsOpen(r.Date, r.Hour, r.Venue); r.IsOpen != want {
			p.errorf("row %d: %s %s hour %d is_open=%t, want %t", i,
				r.Venue, r.Date.Format(time.DateOnly), r.Hour, r.IsOpen, want)
		}
	}
	return p
}

func validateFiniteCounts(records []domain.Record) *phase {
	p := &phase{name: "Counts finite"}
	for i, r := range records {
		for name, v := range map[string]float64{"entering": r.Entering, "inside": r.Inside} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				p.errorf("row %d: %s=%v", i, name, v)
			}
		}
	}
	return p
}

// auditNegativeCounts flags negative counts. The extractor keeps the sign the
// vendor reported, so these rows are valid store data but worth a look.
func auditNegativeCounts(records []domain.Record) *phase {
	p := &phase{name: "Counts non-negative (business audit)", advisory: true}
	for i, r := range records {
		for name, v := range map[string]float64{"entering": r.Entering, "inside": r.Inside} {
			if v < 0 {
				p.errorf("row %d: %s %s hour %d %s=%v", i,
					r.Venue, r.Date.Format(time.DateOnly), r.Hour, name, v)
			}
		}
	}
	return p
}
