package domain

import (
	"errors"
	"time"
)

// DefaultReferenceZone is the timezone in which report send times are read.
const DefaultReferenceZone = "Australia/Melbourne"

// ErrNoTimestamp is returned when an item carries neither a send time, a
// fallback modification time nor an explicit data date.
var ErrNoTimestamp = errors.New("no timestamp available")

// Signal names the input an attribution was derived from.
type Signal string

const (
	SignalOverride  Signal = "override"
	SignalTimestamp Signal = "timestamp"
	SignalModTime   Signal = "mod_time"
)

// Attribution is the resolved data date for one item.
type Attribution struct {
	DataDate time.Time
	Signal   Signal
	// At is the instant the date was derived from (zero for overrides).
	At time.Time
}

// Fallback reports whether the date came from the modification-time fallback.
func (a Attribution) Fallback() bool {
	return a.Signal == SignalModTime
}

// DateResolver attributes payloads to the calendar date their data describes.
// A report arriving on day N always contains day N-1's data.
type DateResolver struct {
	Location *time.Location
}

// NewDateResolver returns a resolver for the given reference zone. A nil
// location means UTC.
func NewDateResolver(loc *time.Location) DateResolver {
	if loc == nil {
		loc = time.UTC
	}
	return DateResolver{Location: loc}
}

// DataDate converts ts to the reference zone and steps back one calendar day.
func (r DateResolver) DataDate(ts time.Time) time.Time {
	local := ts.In(r.location())
	y, m, d := local.Date()
	return time.Date(y, m, d-1, 0, 0, 0, 0, time.UTC)
}

// Resolve picks the best signal on the item: an explicit data date, then the
// send timestamp, then the modification time.
func (r DateResolver) Resolve(item Item) (Attribution, error) {
	switch {
	case !item.DataDate.IsZero():
		return Attribution{DataDate: DateOf(item.DataDate), Signal: SignalOverride}, nil
	case !item.Timestamp.IsZero():
		return Attribution{DataDate: r.DataDate(item.Timestamp), Signal: SignalTimestamp, At: item.Timestamp}, nil
	case !item.ModTime.IsZero():
		return Attribution{DataDate: r.DataDate(item.ModTime), Signal: SignalModTime, At: item.ModTime}, nil
	default:
		return Attribution{}, ErrNoTimestamp
	}
}

// Zone returns the reference zone. Zone-less timestamps are parsed in it.
func (r DateResolver) Zone() *time.Location {
	return r.location()
}

func (r DateResolver) location() *time.Location {
	if r.Location == nil {
		return time.UTC
	}
	return r.Location
}
