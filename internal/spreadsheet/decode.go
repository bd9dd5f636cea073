package spreadsheet

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// PreferredSheet is read when present; otherwise the first sheet is used.
const PreferredSheet = "Yesterday"

// ErrNoSheets is returned for workbooks without any worksheet.
var ErrNoSheets = errors.New("workbook has no sheets")

// builtInDateFormats are the SpreadsheetML number format IDs that render a
// serial number as a date and/or time.
var builtInDateFormats = map[int]bool{
	14: true, 15: true, 16: true, 17: true, 18: true, 19: true, 20: true, 21: true, 22: true,
	27: true, 28: true, 29: true, 30: true, 31: true, 32: true, 33: true, 34: true, 35: true, 36: true,
	45: true, 46: true, 47: true,
	50: true, 51: true, 52: true, 53: true, 54: true, 55: true, 56: true, 57: true, 58: true,
}

// DecodeBytes is Decode over an in-memory payload.
func DecodeBytes(payload []byte) (Table, error) {
	return Decode(bytes.NewReader(payload))
}

// Decode reads an xlsx workbook and returns its report sheet as typed cells.
// Numeric cells with a date or time number format become CellTime.
func Decode(r io.Reader) (Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return Table{}, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only workbook

	sheet := pickSheet(f.GetSheetList())
	if sheet == "" {
		return Table{}, ErrNoSheets
	}

	raw, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return Table{}, fmt.Errorf("read sheet %q: %w", sheet, err)
	}

	d := &decoder{f: f, sheet: sheet, dateStyles: make(map[int]bool)}
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		d.date1904 = *props.Date1904
	}
	table := Table{Sheet: sheet, Rows: make([]Row, len(raw))}
	for i, cols := range raw {
		row := make(Row, len(cols))
		for j, value := range cols {
			row[j] = d.cell(i, j, value)
		}
		table.Rows[i] = row
	}
	return table, nil
}

func pickSheet(sheets []string) string {
	for _, s := range sheets {
		if s == PreferredSheet {
			return s
		}
	}
	if len(sheets) == 0 {
		return ""
	}
	return sheets[0]
}

type decoder struct {
	f          *excelize.File
	sheet      string
	date1904   bool
	dateStyles map[int]bool
}

func (d *decoder) cell(row, col int, value string) Cell {
	if value == "" {
		return Cell{}
	}
	name, err := excelize.CoordinatesToCellName(col+1, row+1)
	if err != nil {
		return Text(value)
	}
	typ, err := d.f.GetCellType(d.sheet, name)
	if err != nil {
		return Text(value)
	}

	switch typ {
	case excelize.CellTypeBool:
		return Cell{Kind: CellBool, Bool: value == "1" || strings.EqualFold(value, "true")}
	case excelize.CellTypeDate:
		if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
			return Time(t)
		}
		return Text(value)
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString, excelize.CellTypeError:
		return Text(value)
	}

	// Unset, number and formula cells: numeric when the value parses.
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return Text(value)
	}
	if d.isDateStyled(name) {
		if t, err := excelize.ExcelDateToTime(v, d.date1904); err == nil {
			return Time(t.Round(time.Second))
		}
	}
	return Number(v)
}

func (d *decoder) isDateStyled(cell string) bool {
	id, err := d.f.GetCellStyle(d.sheet, cell)
	if err != nil || id == 0 {
		return false
	}
	if known, ok := d.dateStyles[id]; ok {
		return known
	}

	isDate := false
	if style, err := d.f.GetStyle(id); err == nil && style != nil {
		isDate = builtInDateFormats[style.NumFmt]
		if !isDate && style.CustomNumFmt != nil {
			isDate = isDateFormatCode(*style.CustomNumFmt)
		}
	}
	d.dateStyles[id] = isDate
	return isDate
}

// isDateFormatCode reports whether a custom number format renders dates or
// times: it contains a y, d, h or s token outside quoted literals and
// bracketed sections.
func isDateFormatCode(code string) bool {
	inQuote, inBracket := false, false
	for i := 0; i < len(code); i++ {
		c := code[i]
		switch {
		case c == '\\':
			i++
		case c == '"':
			inQuote = !inQuote
		case inQuote:
		case c == '[':
			inBracket = true
		case c == ']':
			inBracket = false
		case inBracket:
		default:
			switch c | 0x20 {
			case 'y', 'd', 'h', 's':
				return true
			}
		}
	}
	return false
}
