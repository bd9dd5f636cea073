package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/foot-traffic-etl/internal/config"
	"github.com/couchcryptid/foot-traffic-etl/internal/domain"
	"github.com/couchcryptid/foot-traffic-etl/internal/observability"
	"github.com/couchcryptid/foot-traffic-etl/internal/spreadsheet"
)

func testConfig(t *testing.T, storePath string) *config.Config {
	t.Helper()
	loc, err := time.LoadLocation(domain.DefaultReferenceZone)
	require.NoError(t, err)
	return &config.Config{
		Store:              config.StoreConfig{Driver: config.StoreDriverFS, Path: storePath},
		ReferenceZone:      loc,
		EnteringMultiplier: domain.DefaultEnteringMultiplier,
		Hours:              domain.DefaultOperatingHours(),
		ExtractWorkers:     2,
		TrafficSender:      "no-reply@vemcount.com",
	}
}

func writeFixture(t *testing.T, dir, name string, date time.Time) {
	t.Helper()
	var rows []domain.RawRow
	for hour := 10; hour <= 12; hour++ {
		for _, v := range domain.Venues {
			rows = append(rows, domain.RawRow{Date: date, Hour: hour, Venue: v, Entering: 20, Inside: 10})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, spreadsheet.WriteReport(&buf, date, domain.Venues, rows))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
	mtime := date.AddDate(0, 0, 1).Add(2 * time.Hour)
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func TestRun_LocalDir(t *testing.T) {
	reports := t.TempDir()
	writeFixture(t, reports, "traffic_2024-01-01.xlsx", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	writeFixture(t, reports, "traffic_2024-01-02.xlsx", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))
	storePath := filepath.Join(t.TempDir(), "hourly_foot_traffic.parquet")

	var out bytes.Buffer
	err := run(context.Background(), testConfig(t, storePath), options{source: "dir", path: reports},
		slog.New(slog.DiscardHandler), observability.NewMetricsForTesting(), &out)
	require.NoError(t, err)

	assert.FileExists(t, storePath)
	assert.Contains(t, out.String(), "date range: 2024-01-01 to 2024-01-02")
	assert.Contains(t, out.String(), "total rows: 12")
	assert.Contains(t, out.String(), "venues: [Melbourne Sydney]")
}

func TestRun_DataDateOverride(t *testing.T) {
	reports := t.TempDir()
	writeFixture(t, reports, "traffic.xlsx", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	storePath := filepath.Join(t.TempDir(), "hourly_foot_traffic.parquet")

	var out bytes.Buffer
	err := run(context.Background(), testConfig(t, storePath),
		options{source: "dir", path: reports, dataDate: "2023-12-25"},
		slog.New(slog.DiscardHandler), observability.NewMetricsForTesting(), &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "date range: 2023-12-25 to 2023-12-25")
}

func TestRun_DataDateRejectsMultipleReports(t *testing.T) {
	reports := t.TempDir()
	writeFixture(t, reports, "traffic_2024-01-01.xlsx", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	writeFixture(t, reports, "traffic_2024-01-02.xlsx", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))
	storePath := filepath.Join(t.TempDir(), "hourly_foot_traffic.parquet")

	err := run(context.Background(), testConfig(t, storePath),
		options{source: "dir", path: reports, dataDate: "2023-12-25"},
		slog.New(slog.DiscardHandler), observability.NewMetricsForTesting(), &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "found 2")
	assert.NoFileExists(t, storePath)
}

func TestRun_EmptyFolderLeavesStoreUntouched(t *testing.T) {
	storePath := filepath.Join(t.TempDir(), "hourly_foot_traffic.parquet")

	var out bytes.Buffer
	err := run(context.Background(), testConfig(t, storePath), options{source: "dir", path: t.TempDir()},
		slog.New(slog.DiscardHandler), observability.NewMetricsForTesting(), &out)
	require.NoError(t, err)

	assert.NoFileExists(t, storePath)
	assert.Contains(t, out.String(), "store unchanged")
}

func TestRun_InvalidOptions(t *testing.T) {
	cfg := testConfig(t, filepath.Join(t.TempDir(), "s.parquet"))
	logger := slog.New(slog.DiscardHandler)

	err := run(context.Background(), cfg, options{source: "ftp", path: t.TempDir()}, logger, observability.NewMetricsForTesting(), &bytes.Buffer{})
	require.Error(t, err)

	err = run(context.Background(), cfg, options{source: "dir", path: t.TempDir(), dataDate: "01/02/2024"}, logger, observability.NewMetricsForTesting(), &bytes.Buffer{})
	require.Error(t, err)
}
