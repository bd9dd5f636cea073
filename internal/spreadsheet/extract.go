package spreadsheet

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/couchcryptid/foot-traffic-etl/internal/domain"
)

// ErrHeaderNotFound is returned when no row of the sheet looks like the
// report header. The file yields no records.
var ErrHeaderNotFound = errors.New("header row not found")

// Layout identifies how the count columns of a report are arranged.
type Layout int

const (
	// LayoutPositional: column 0 is the time, columns 1-4 are inside and
	// entering counts for the first and second venue.
	LayoutPositional Layout = iota + 1
	// LayoutLabeled: columns are found by their header labels.
	LayoutLabeled
)

func (l Layout) String() string {
	switch l {
	case LayoutPositional:
		return "positional"
	case LayoutLabeled:
		return "labeled"
	default:
		return "unknown"
	}
}

// Result holds the normalized tuples extracted from one report.
type Result struct {
	Rows        []domain.RawRow
	Layout      Layout
	HeaderRow   int
	SkippedRows int
}

// columns locates the time cell and per-venue count cells of a data row.
type columns struct {
	time   int
	venues []venueColumns
}

type venueColumns struct {
	venue    domain.Venue
	entering int // -1 when absent
	inside   int // -1 when absent
}

// Extractor turns decoded report tables into raw tuples.
type Extractor struct {
	venues []domain.Venue
	logger *slog.Logger
}

// NewExtractor creates an Extractor for the given venues. In positional
// layouts the first two venues own columns 1-2 and 3-4.
func NewExtractor(venues []domain.Venue, logger *slog.Logger) *Extractor {
	if len(venues) == 0 {
		venues = domain.Venues
	}
	return &Extractor{venues: venues, logger: logger}
}

// Extract locates the header row, selects the layout and emits one tuple per
// venue for every valid data row. Malformed rows are skipped; malformed count
// cells read as zero.
func (e *Extractor) Extract(table Table, date time.Time, source string) (Result, error) {
	header, layout, ok := e.findHeader(table.Rows)
	if !ok {
		return Result{}, ErrHeaderNotFound
	}

	cols := e.columnsFor(table.Rows[header], layout, source)
	res := Result{Layout: layout, HeaderRow: header}
	date = domain.DateOf(date)

	for _, row := range table.Rows[header+1:] {
		tc := row.At(cols.time)
		if tc.Empty() || isSummary(tc) {
			continue
		}
		hour, ok := parseHour(tc)
		if !ok || hour < domain.MinHour || hour > domain.MaxHour {
			res.SkippedRows++
			continue
		}
		for _, vc := range cols.venues {
			res.Rows = append(res.Rows, domain.RawRow{
				Date:     date,
				Hour:     hour,
				Venue:    vc.venue,
				Entering: countAt(row, vc.entering),
				Inside:   countAt(row, vc.inside),
			})
		}
	}
	return res, nil
}

func countAt(row Row, col int) float64 {
	if col < 0 {
		return 0
	}
	return parseCount(row.At(col))
}

// findHeader returns the index of the header row and the layout it implies.
// The vendor's header starts with "Date / time"; positional layout is assumed
// unless a header cell names a venue count column. Sheets lacking that header
// are accepted when some row carries such columns.
func (e *Extractor) findHeader(rows []Row) (int, Layout, bool) {
	for i, row := range rows {
		first := row.At(0)
		if first.Kind != CellText {
			continue
		}
		if strings.Contains(first.Text, "Date") && strings.Contains(first.Text, "time") {
			if e.hasCountLabels(row) {
				return i, LayoutLabeled, true
			}
			return i, LayoutPositional, true
		}
	}
	for i, row := range rows {
		if e.hasCountLabels(row) {
			return i, LayoutLabeled, true
		}
	}
	return 0, 0, false
}

// hasCountLabels reports whether some cell names a venue together with an
// entering or inside count.
func (e *Extractor) hasCountLabels(row Row) bool {
	for _, c := range row {
		if c.Kind != CellText || !e.venueIn(c.Text) {
			continue
		}
		label := strings.ToLower(c.Text)
		if strings.Contains(label, "entering") || strings.Contains(label, "inside") {
			return true
		}
	}
	return false
}

func (e *Extractor) venueIn(text string) bool {
	label := strings.ToLower(text)
	for _, v := range e.venues {
		if strings.Contains(label, strings.ToLower(string(v))) {
			return true
		}
	}
	return false
}

func (e *Extractor) columnsFor(header Row, layout Layout, source string) columns {
	if layout == LayoutLabeled {
		return e.labeledColumns(header, source)
	}
	return e.positionalColumns()
}

func (e *Extractor) positionalColumns() columns {
	cols := columns{time: 0}
	for i, v := range e.venues {
		if i >= 2 {
			break
		}
		cols.venues = append(cols.venues, venueColumns{
			venue:    v,
			inside:   1 + 2*i,
			entering: 2 + 2*i,
		})
	}
	return cols
}

func (e *Extractor) labeledColumns(header Row, source string) columns {
	cols := columns{time: -1}
	for i, c := range header {
		label := strings.ToLower(c.String())
		if strings.Contains(label, "time") || strings.Contains(label, "hour") || strings.Contains(label, "date") {
			cols.time = i
			break
		}
	}
	if cols.time < 0 {
		cols.time = 0
	}

	for _, v := range e.venues {
		vc := venueColumns{venue: v, entering: -1, inside: -1}
		name := strings.ToLower(string(v))
		for i, c := range header {
			label := strings.ToLower(c.String())
			if !strings.Contains(label, name) {
				continue
			}
			switch {
			case strings.Contains(label, "entering"):
				vc.entering = i
			case strings.Contains(label, "inside"):
				vc.inside = i
			}
		}
		if vc.entering < 0 && vc.inside < 0 {
			e.logger.Warn("venue columns not found", "source", source, "venue", v)
			continue
		}
		cols.venues = append(cols.venues, vc)
	}
	return cols
}
