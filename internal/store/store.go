// Package store persists hourly traffic records as a single parquet table and
// merges new batches into it one calendar date at a time.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/couchcryptid/foot-traffic-etl/internal/domain"
)

var (
	// ErrNotExist is returned by a Backend when no table has been persisted.
	ErrNotExist = errors.New("store table does not exist")
	// ErrLocked is returned when another writer holds the store lock.
	ErrLocked = errors.New("store is locked by another writer")
	// ErrSchema is returned when a persisted table does not match the record
	// layout.
	ErrSchema = errors.New("unexpected table schema")
)

// Backend reads and replaces the serialized table. Write must be atomic:
// readers observe either the previous table or the new one.
type Backend interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	// Lock acquires exclusive write access. The returned func releases it.
	Lock(ctx context.Context) (func() error, error)
	// Describe names the table location for logs and update notices.
	Describe() string
}

// UpsertResult summarizes one merge.
type UpsertResult struct {
	// Dates are the distinct data dates of the merged batch, ascending.
	Dates    []string
	Inserted int
	// Replaced is the number of persisted rows dropped because their date
	// was present in the batch.
	Replaced   int
	Duplicates int
	Total      int
	Created    bool
}

// Store merges record batches into the table held by its Backend. At most one
// upsert runs at a time per Store; cross-process exclusion is up to Backend.Lock.
type Store struct {
	backend Backend
	logger  *slog.Logger
	mu      sync.Mutex
}

// New creates a Store over the given backend.
func New(backend Backend, logger *slog.Logger) *Store {
	return &Store{backend: backend, logger: logger}
}

// Location describes where the table lives.
func (s *Store) Location() string {
	return s.backend.Describe()
}

// Load reads the full table. A missing table yields no records and no error.
func (s *Store) Load(ctx context.Context) ([]domain.Record, error) {
	data, err := s.backend.Read(ctx)
	if errors.Is(err, ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read store: %w", err)
	}
	records, err := DecodeParquet(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("decode store: %w", err)
	}
	return records, nil
}

// Upsert replaces every persisted row whose date appears in records with the
// new rows and persists the sorted result. On error the previous table is
// left untouched.
func (s *Store) Upsert(ctx context.Context, records []domain.Record) (UpsertResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	unlock, err := s.backend.Lock(ctx)
	if err != nil {
		return UpsertResult{}, fmt.Errorf("lock store: %w", err)
	}
	defer func() {
		if err := unlock(); err != nil {
			s.logger.Warn("failed to release store lock", "store", s.backend.Describe(), "error", err)
		}
	}()

	data, err := s.backend.Read(ctx)
	created := errors.Is(err, ErrNotExist)
	if err != nil && !created {
		return UpsertResult{}, fmt.Errorf("read store: %w", err)
	}

	var existing []domain.Record
	if !created {
		if existing, err = DecodeParquet(ctx, data); err != nil {
			return UpsertResult{}, fmt.Errorf("decode store: %w", err)
		}
	}

	merged, res := Merge(existing, records)
	res.Created = created
	if res.Duplicates > 0 {
		s.logger.Warn("duplicate records collapsed to last occurrence",
			"store", s.backend.Describe(), "duplicates", res.Duplicates)
	}

	out, err := EncodeParquet(merged)
	if err != nil {
		return UpsertResult{}, fmt.Errorf("encode store: %w", err)
	}
	if err := s.backend.Write(ctx, out); err != nil {
		return UpsertResult{}, fmt.Errorf("write store: %w", err)
	}

	s.logger.Info("store updated",
		"store", s.backend.Describe(),
		"dates", res.Dates,
		"inserted", res.Inserted,
		"replaced", res.Replaced,
		"total", res.Total,
	)
	return res, nil
}

// Merge drops every existing row sharing a date with incoming, appends the
// incoming rows and sorts the result. Duplicate keys within incoming collapse
// to their last occurrence.
func Merge(existing, incoming []domain.Record) ([]domain.Record, UpsertResult) {
	var res UpsertResult

	positions := make(map[domain.Key]int, len(incoming))
	batch := make([]domain.Record, 0, len(incoming))
	dates := make(map[string]struct{})
	for _, r := range incoming {
		r.Date = domain.DateOf(r.Date)
		dates[r.Date.Format(time.DateOnly)] = struct{}{}
		if i, ok := positions[r.Key()]; ok {
			batch[i] = r
			res.Duplicates++
			continue
		}
		positions[r.Key()] = len(batch)
		batch = append(batch, r)
	}

	merged := make([]domain.Record, 0, len(existing)+len(batch))
	for _, r := range existing {
		if _, ok := dates[domain.DateOf(r.Date).Format(time.DateOnly)]; ok {
			res.Replaced++
			continue
		}
		merged = append(merged, r)
	}
	merged = append(merged, batch...)
	domain.SortRecords(merged)

	for d := range dates {
		res.Dates = append(res.Dates, d)
	}
	slices.Sort(res.Dates)
	res.Inserted = len(batch)
	res.Total = len(merged)
	return merged, res
}
