package config

import (
	"fmt"
	"maps"
	"strconv"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/couchcryptid/foot-traffic-etl/internal/domain"
)

// maxCloseHour bounds the close hour of an overnight window.
const maxCloseHour = 48

type hoursFile struct {
	// venue -> weekday index ("0" = Monday) -> [open, close]
	Venues map[string]map[string][]int `koanf:"venues"`
}

// LoadOperatingHours reads a YAML hours file and overlays it on base. Each
// entry replaces the window of one venue and weekday; venues absent from base
// are added.
//
//	venues:
//	  Melbourne:
//	    "0": [12, 23]
//	    "5": [12, 25]
func LoadOperatingHours(path string, base domain.OperatingHours) (domain.OperatingHours, error) {
	k := koanf.New("::")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var hf hoursFile
	if err := k.Unmarshal("", &hf); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	out := make(domain.OperatingHours, len(base)+len(hf.Venues))
	for v, week := range base {
		out[v] = maps.Clone(week)
	}

	for name, days := range hf.Venues {
		venue := domain.Venue(name)
		week := out[venue]
		if week == nil {
			week = make(domain.WeeklyHours, len(days))
			out[venue] = week
		}
		for day, window := range days {
			idx, err := strconv.Atoi(day)
			if err != nil || idx < 0 || idx > 6 {
				return nil, fmt.Errorf("venue %s: invalid weekday %q: want 0 (Monday) to 6 (Sunday)", name, day)
			}
			w, err := parseWindow(window)
			if err != nil {
				return nil, fmt.Errorf("venue %s weekday %d: %w", name, idx, err)
			}
			week[idx] = w
		}
	}
	return out, nil
}

func parseWindow(v []int) (domain.Window, error) {
	if len(v) != 2 {
		return domain.Window{}, fmt.Errorf("want [open, close], got %v", v)
	}
	open, closeHour := v[0], v[1]
	if open < 0 || open > 23 {
		return domain.Window{}, fmt.Errorf("open hour %d out of range 0-23", open)
	}
	if closeHour < open || closeHour > maxCloseHour {
		return domain.Window{}, fmt.Errorf("close hour %d out of range %d-%d", closeHour, open, maxCloseHour)
	}
	return domain.Window{Open: open, Close: closeHour}, nil
}
