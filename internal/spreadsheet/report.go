package spreadsheet

import (
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/couchcryptid/foot-traffic-etl/internal/domain"
)

// WriteReport renders raw rows as a positional vendor report: a title block,
// a venue banner, the "Date / time" header, one row per hour and a Total row.
// Only the first two venues of venues are written. Hours past 23 are written
// as "HH:00" text since they have no time-of-day representation.
func WriteReport(w io.Writer, date time.Time, venues []domain.Venue, rows []domain.RawRow) error {
	if len(venues) > 2 {
		venues = venues[:2]
	}
	date = domain.DateOf(date)

	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck // in-memory workbook

	if err := f.SetSheetName("Sheet1", PreferredSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	timeStyle, err := f.NewStyle(&excelize.Style{NumFmt: 22})
	if err != nil {
		return fmt.Errorf("create time style: %w", err)
	}

	byHour := make(map[int][4]float64)
	for _, r := range rows {
		col := slices.Index(venues, r.Venue)
		if col < 0 {
			continue
		}
		v := byHour[r.Hour]
		v[2*col] += r.Inside
		v[2*col+1] += r.Entering
		byHour[r.Hour] = v
	}
	hours := make([]int, 0, len(byHour))
	for h := range byHour {
		hours = append(hours, h)
	}
	slices.Sort(hours)

	banner := []any{nil}
	for _, v := range venues {
		banner = append(banner, string(v), nil)
	}
	header := []any{"Date / time"}
	for range venues {
		header = append(header, "Visitors inside", "Visitors entering")
	}

	sheet := PreferredSheet
	put := func(row int, values []any) error {
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		return f.SetSheetRow(sheet, cell, &values)
	}
	if err := put(1, []any{"Foot traffic report", date.Format(time.DateOnly)}); err != nil {
		return fmt.Errorf("write title: %w", err)
	}
	if err := put(3, banner); err != nil {
		return fmt.Errorf("write banner: %w", err)
	}
	if err := put(4, header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	var total [4]float64
	row := 5
	for _, h := range hours {
		counts := byHour[h]
		values := []any{nil}
		for i := 0; i < 2*len(venues); i++ {
			values = append(values, counts[i])
			total[i] += counts[i]
		}
		if err := put(row, values); err != nil {
			return fmt.Errorf("write hour %d: %w", h, err)
		}
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if h <= 23 {
			if err := f.SetCellValue(sheet, cell, domain.DateTimeOf(date, h)); err != nil {
				return fmt.Errorf("write hour %d: %w", h, err)
			}
			if err := f.SetCellStyle(sheet, cell, cell, timeStyle); err != nil {
				return fmt.Errorf("style hour %d: %w", h, err)
			}
		} else if err := f.SetCellStr(sheet, cell, fmt.Sprintf("%02d:00", h)); err != nil {
			return fmt.Errorf("write hour %d: %w", h, err)
		}
		row++
	}

	totals := []any{"Total"}
	for i := 0; i < 2*len(venues); i++ {
		totals = append(totals, total[i])
	}
	if err := put(row, totals); err != nil {
		return fmt.Errorf("write total: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
