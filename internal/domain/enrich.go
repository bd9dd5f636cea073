package domain

import (
	"sort"
)

// Enricher turns raw extractor tuples into fully populated records.
type Enricher struct {
	Multiplier float64
	Hours      OperatingHours
}

// NewEnricher returns an Enricher with the given multiplier and hours table.
func NewEnricher(multiplier float64, hours OperatingHours) Enricher {
	return Enricher{Multiplier: multiplier, Hours: hours}
}

// Enrich applies the entering correction, derives the date-time key and the
// open flag, and returns the records sorted by (DateTime, Venue).
func (e Enricher) Enrich(rows []RawRow) []Record {
	out := make([]Record, 0, len(rows))
	for _, row := range rows {
		out = append(out, e.EnrichRow(row))
	}
	SortRecords(out)
	return out
}

// EnrichRow enriches a single tuple. Inside counts are never corrected.
func (e Enricher) EnrichRow(row RawRow) Record {
	date := DateOf(row.Date)
	return Record{
		DateTime: DateTimeOf(date, row.Hour),
		Date:     date,
		Hour:     row.Hour,
		Venue:    row.Venue,
		Entering: row.Entering * e.Multiplier,
		Inside:   row.Inside,
		IsOpen:   e.Hours.IsOpen(date, row.Hour, row.Venue),
	}
}

// SortRecords orders records by (DateTime, Venue). Hour 24 of one day and
// hour 0 of the next share a DateTime; Date breaks that tie.
func SortRecords(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if !a.DateTime.Equal(b.DateTime) {
			return a.DateTime.Before(b.DateTime)
		}
		if a.Venue != b.Venue {
			return a.Venue < b.Venue
		}
		return a.Date.Before(b.Date)
	})
}
