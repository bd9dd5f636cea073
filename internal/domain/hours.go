package domain

import (
	"slices"
	"time"
)

// Window is an (open, close) hour pair for one weekday. Close may exceed 24
// to express closing after midnight.
type Window struct {
	Open  int
	Close int
}

// WeeklyHours maps a weekday index (0=Monday..6=Sunday) to its window.
type WeeklyHours map[int]Window

// OperatingHours is the per-venue weekly operating-hours table. It is treated
// as immutable once built.
type OperatingHours map[Venue]WeeklyHours

// DefaultOperatingHours returns the built-in table: noon to 23:00 most days,
// to midnight on Fridays and 01:00 on Saturdays.
func DefaultOperatingHours() OperatingHours {
	week := func() WeeklyHours {
		return WeeklyHours{
			0: {Open: 12, Close: 23},
			1: {Open: 12, Close: 23},
			2: {Open: 12, Close: 23},
			3: {Open: 12, Close: 23},
			4: {Open: 12, Close: 24},
			5: {Open: 12, Close: 25},
			6: {Open: 12, Close: 23},
		}
	}
	return OperatingHours{
		Melbourne: week(),
		Sydney:    week(),
	}
}

// WeekdayIndex converts a time.Weekday to the Monday-based index used by the
// operating-hours table.
func WeekdayIndex(d time.Weekday) int {
	return (int(d) + 6) % 7
}

// IsOpen reports whether venue is open at hour on date's weekday. Unknown
// venues and weekdays without a window are closed.
func (h OperatingHours) IsOpen(date time.Time, hour int, venue Venue) bool {
	week, ok := h[venue]
	if !ok {
		return false
	}
	w := week[WeekdayIndex(date.Weekday())]

	if w.Close > 24 {
		return hour >= w.Open || hour < w.Close-24
	}
	return w.Open <= hour && hour < w.Close
}

// Venues returns the venues present in the table in the canonical order,
// followed by any others.
func (h OperatingHours) Venues() []Venue {
	out := make([]Venue, 0, len(h))
	seen := make(map[Venue]bool, len(h))
	for _, v := range Venues {
		if _, ok := h[v]; ok {
			out = append(out, v)
			seen[v] = true
		}
	}
	var extra []Venue
	for v := range h {
		if !seen[v] {
			extra = append(extra, v)
		}
	}
	slices.Sort(extra)
	return append(out, extra...)
}
