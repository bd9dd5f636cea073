package domain

import (
	"context"
	"time"
)

// Venue identifies a physical location tracked independently for traffic counts.
type Venue string

const (
	Melbourne Venue = "Melbourne"
	Sydney    Venue = "Sydney"
)

// Venues lists the tracked venues in the column order used by positional
// report layouts: the first venue occupies columns 1-2, the second 3-4.
var Venues = []Venue{Melbourne, Sydney}

// Hour bounds accepted from source reports. Hours 24-26 belong to the same
// operating day for venues open past midnight.
const (
	MinHour = 0
	MaxHour = 26
)

// DefaultEnteringMultiplier corrects the over-count of the entry sensors.
const DefaultEnteringMultiplier = 0.95

// Item is one raw spreadsheet payload handed to the engine by a source
// (local folder, mailbox export, Kafka).
type Item struct {
	Payload []byte
	// Timestamp is the authoritative send time of the payload. Zero when the
	// source cannot provide one.
	Timestamp time.Time
	// ModTime is the fallback signal, e.g. file modification time.
	ModTime time.Time
	// DataDate, when set, is an operator-supplied data date used verbatim.
	DataDate time.Time
	Source   string
	Commit   func(ctx context.Context) error
}

// RawRow is a normalized tuple emitted by the spreadsheet extractor before
// enrichment.
type RawRow struct {
	Date     time.Time
	Hour     int
	Venue    Venue
	Entering float64
	Inside   float64
}

// Record is the canonical hourly traffic record persisted in the merge store.
type Record struct {
	DateTime time.Time `json:"date_time"`
	Date     time.Time `json:"date"`
	Hour     int       `json:"hour"`
	Venue    Venue     `json:"venue"`
	Entering float64   `json:"entering"`
	Inside   float64   `json:"inside"`
	IsOpen   bool      `json:"is_open"`
}

// Key uniquely identifies a record within the store.
type Key struct {
	Date  time.Time
	Hour  int
	Venue Venue
}

// Key returns the (date, hour, venue) identity of the record.
func (r Record) Key() Key {
	return Key{Date: r.Date, Hour: r.Hour, Venue: r.Venue}
}

// StoreUpdate describes a committed upsert, published to downstream consumers.
type StoreUpdate struct {
	Dates     []string  `json:"dates"`
	Inserted  int       `json:"inserted"`
	Replaced  int       `json:"replaced"`
	Total     int       `json:"total"`
	Store     string    `json:"store"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DateOf truncates t to its calendar date, keeping t's wall clock fields, and
// returns it as midnight UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DateTimeOf returns the naive date-time key: date plus hour hours. Hours past
// 23 land on the following calendar day.
func DateTimeOf(date time.Time, hour int) time.Time {
	return DateOf(date).Add(time.Duration(hour) * time.Hour)
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(time.DateOnly, s, time.UTC)
}
