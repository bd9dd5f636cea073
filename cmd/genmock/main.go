// Command genmock writes deterministic daily foot traffic report workbooks in
// the vendor's positional layout. Each file's modification time is set to the
// morning after its data date, matching how reports arrive.
//
// Usage:
//
//	go run ./cmd/genmock -out data/mock -from 2024-01-01 -days 7
package main

import (
	"bytes"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"time"
	_ "time/tzdata"

	"github.com/couchcryptid/foot-traffic-etl/internal/domain"
	"github.com/couchcryptid/foot-traffic-etl/internal/spreadsheet"
)

// deliveryHour is the local hour at which mock reports "arrive".
const deliveryHour = 9

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	outDir := flag.String("out", "", "output directory for xlsx fixtures")
	from := flag.String("from", "", "first data date (YYYY-MM-DD)")
	days := flag.Int("days", 7, "number of consecutive days to generate")
	flag.Parse()

	if *outDir == "" || *from == "" || *days <= 0 {
		flag.Usage()
		return fmt.Errorf("missing required flags: -out, -from")
	}

	start, err := domain.ParseDate(*from)
	if err != nil {
		return fmt.Errorf("invalid -from %q: %w", *from, err)
	}
	zone, err := time.LoadLocation(domain.DefaultReferenceZone)
	if err != nil {
		return fmt.Errorf("load reference zone: %w", err)
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	for i := range *days {
		date := start.AddDate(0, 0, i)
		path, err := writeDay(*outDir, date, zone)
		if err != nil {
			return fmt.Errorf("day %s: %w", date.Format(time.DateOnly), err)
		}
		log.Printf("wrote %s", path)
	}
	return nil
}

func writeDay(dir string, date time.Time, zone *time.Location) (string, error) {
	var buf bytes.Buffer
	if err := spreadsheet.WriteReport(&buf, date, domain.Venues, mockRows(date)); err != nil {
		return "", err
	}

	path := filepath.Join(dir, fmt.Sprintf("daily_traffic_%s.xlsx", date.Format("20060102")))
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil { //nolint:gosec // fixtures are not secret
		return "", err
	}

	y, m, d := date.AddDate(0, 0, 1).Date()
	arrived := time.Date(y, m, d, deliveryHour, 0, 0, 0, zone)
	if err := os.Chtimes(path, arrived, arrived); err != nil {
		return "", err
	}
	return path, nil
}

// mockRows builds a plausible day: a bell-shaped curve peaking in the early
// evening, scaled per venue and weekday. Values depend only on the inputs.
func mockRows(date time.Time) []domain.RawRow {
	weekday := domain.WeekdayIndex(date.Weekday())
	dayScale := 1.0 + 0.15*float64(weekday)

	var rows []domain.RawRow
	for hour := 10; hour <= 25; hour++ {
		shape := math.Exp(-math.Pow(float64(hour)-19, 2) / 12)
		for i, v := range domain.Venues {
			venueScale := 120.0 - 40*float64(i)
			entering := math.Round(venueScale * dayScale * shape)
			rows = append(rows, domain.RawRow{
				Date:     date,
				Hour:     hour,
				Venue:    v,
				Entering: entering,
				Inside:   math.Round(entering * 1.6),
			})
		}
	}
	return rows
}
