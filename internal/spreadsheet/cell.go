package spreadsheet

import (
	"strconv"
	"strings"
	"time"
)

// CellKind tags the type of a decoded cell.
type CellKind int

const (
	CellEmpty CellKind = iota
	CellText
	CellNumber
	CellTime
	CellBool
)

func (k CellKind) String() string {
	switch k {
	case CellText:
		return "text"
	case CellNumber:
		return "number"
	case CellTime:
		return "time"
	case CellBool:
		return "bool"
	default:
		return "empty"
	}
}

// Cell is one untyped spreadsheet value. Exactly one of the value fields is
// meaningful, selected by Kind.
type Cell struct {
	Kind   CellKind
	Text   string
	Number float64
	Time   time.Time
	Bool   bool
}

// Text returns a text cell.
func Text(s string) Cell { return Cell{Kind: CellText, Text: s} }

// Number returns a numeric cell.
func Number(v float64) Cell { return Cell{Kind: CellNumber, Number: v} }

// Time returns a date/time cell.
func Time(t time.Time) Cell { return Cell{Kind: CellTime, Time: t} }

// Empty reports whether the cell holds no value.
func (c Cell) Empty() bool {
	return c.Kind == CellEmpty || (c.Kind == CellText && strings.TrimSpace(c.Text) == "")
}

// String renders the cell the way a spreadsheet user would read it.
func (c Cell) String() string {
	switch c.Kind {
	case CellText:
		return c.Text
	case CellNumber:
		return strconv.FormatFloat(c.Number, 'f', -1, 64)
	case CellTime:
		return c.Time.Format(time.DateTime)
	case CellBool:
		return strconv.FormatBool(c.Bool)
	default:
		return ""
	}
}

// Row is one spreadsheet row. Trailing empty cells may be absent.
type Row []Cell

// At returns the cell at column i, or an empty cell when the row is shorter.
func (r Row) At(i int) Cell {
	if i < 0 || i >= len(r) {
		return Cell{}
	}
	return r[i]
}

// Table is a whole sheet as rows of cells, with no assumed types.
type Table struct {
	Sheet string
	Rows  []Row
}
