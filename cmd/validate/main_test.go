package main

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/foot-traffic-etl/internal/domain"
	"github.com/couchcryptid/foot-traffic-etl/internal/store"
)

func enrichedDay(date time.Time) []domain.Record {
	e := domain.NewEnricher(domain.DefaultEnteringMultiplier, domain.DefaultOperatingHours())
	var rows []domain.RawRow
	for hour := 0; hour <= 25; hour++ {
		for _, v := range domain.Venues {
			rows = append(rows, domain.RawRow{Date: date, Hour: hour, Venue: v, Entering: 10, Inside: 4})
		}
	}
	return e.Enrich(rows)
}

func writeStore(t *testing.T, records []domain.Record) string {
	t.Helper()
	data, err := store.EncodeParquet(records)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "hourly_foot_traffic.parquet")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestRun_ValidStorePasses(t *testing.T) {
	records := append(enrichedDay(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
		enrichedDay(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))...)
	domain.SortRecords(records)
	path := writeStore(t, records)

	var out bytes.Buffer
	assert.Equal(t, 0, run(context.Background(), path, "", &out))
	assert.Contains(t, out.String(), "All validations passed.")
}

func TestRun_CorruptedStoreFails(t *testing.T) {
	records := enrichedDay(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	records[3].Entering = math.NaN()
	records[4].IsOpen = !records[4].IsOpen
	records = append(records, records[0])
	path := writeStore(t, records)

	var out bytes.Buffer
	assert.Equal(t, 1, run(context.Background(), path, "", &out))
	assert.Contains(t, out.String(), "Validation FAILED.")
	assert.Contains(t, out.String(), "--- Unique (date, hour, venue) ---")
	assert.Contains(t, out.String(), "--- IsOpen matches operating hours ---")
	assert.Contains(t, out.String(), "--- Counts finite ---")
	assert.Contains(t, out.String(), "--- Sort order ---")
}

func TestRun_NegativeCountsWarnOnly(t *testing.T) {
	records := enrichedDay(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	records[3].Entering = -5
	path := writeStore(t, records)

	var out bytes.Buffer
	assert.Equal(t, 0, run(context.Background(), path, "", &out))
	assert.Contains(t, out.String(), "WARN (1 rows)")
	assert.Contains(t, out.String(), "--- Counts non-negative (business audit) ---")
	assert.Contains(t, out.String(), "entering=-5")
	assert.Contains(t, out.String(), "All validations passed.")
	assert.Contains(t, out.String(), "1 advisory phase(s) reported warnings.")
}

func TestValidateRanges(t *testing.T) {
	date := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	records := []domain.Record{
		{Date: date, Hour: 27, Venue: domain.Melbourne, DateTime: domain.DateTimeOf(date, 27)},
		{Date: date, Hour: 5, Venue: "Perth", DateTime: domain.DateTimeOf(date, 5)},
		{Date: date, Hour: 6, Venue: domain.Sydney, DateTime: domain.DateTimeOf(date, 7)},
	}

	p := validateRanges(records, domain.DefaultOperatingHours())
	assert.Len(t, p.errors, 3)
}
