// =============================================================================
// Ticket Reconciler - Shared Types
// =============================================================================
//
// This package contains the sheet-level types shared by the ingestion,
// classification, matching and export packages. Keeping them here avoids
// import cycles between:
//   - classifier
//   - matcher
//   - reconciliation
//   - xlsxparser / csvparser / xlsxwriter
//
// =============================================================================

package types

import (
	"fmt"
	"strconv"
	"strings"
)

// =============================================================================
// HEADERS
// =============================================================================

// Header describes one column of a sheet.
type Header struct {
	// Name is the header text as it appears in the header row.
	Name string `json:"name" yaml:"name"`

	// Index is the physical, 0-based column position. Unique within a sheet.
	Index int `json:"index" yaml:"index"`
}

// HeadersFromRow builds headers from a header row, one per cell.
func HeadersFromRow(row Row) []Header {
	headers := make([]Header, len(row.Cells))
	for i, cell := range row.Cells {
		headers[i] = Header{Name: cell.String(), Index: i}
	}
	return headers
}

// =============================================================================
// CELLS
// =============================================================================

// CellKind tells which of the Cell fields is meaningful.
type CellKind int

const (
	// CellEmpty is a blank cell.
	CellEmpty CellKind = iota
	// CellText holds a string value.
	CellText
	// CellNumber holds a numeric value.
	CellNumber
)

// Cell is a single spreadsheet value: text, number or empty.
type Cell struct {
	Kind   CellKind
	Text   string
	Number float64
}

// TextCell returns a text cell. A blank string yields an empty cell.
func TextCell(s string) Cell {
	if s == "" {
		return Cell{Kind: CellEmpty}
	}
	return Cell{Kind: CellText, Text: s}
}

// NumberCell returns a numeric cell.
func NumberCell(n float64) Cell {
	return Cell{Kind: CellNumber, Number: n}
}

// IsEmpty reports whether the cell carries no value after trimming.
func (c Cell) IsEmpty() bool {
	switch c.Kind {
	case CellText:
		return strings.TrimSpace(c.Text) == ""
	case CellNumber:
		return false
	default:
		return true
	}
}

// String renders the cell the way a spreadsheet would display it.
// Numbers use the shortest exact representation, so 1001.0 becomes "1001".
func (c Cell) String() string {
	switch c.Kind {
	case CellText:
		return c.Text
	case CellNumber:
		return strconv.FormatFloat(c.Number, 'f', -1, 64)
	default:
		return ""
	}
}

// MarshalText lets cells serialize as their display value in JSON/YAML.
func (c Cell) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// =============================================================================
// ROWS
// =============================================================================

// Row is an ordered sequence of cells plus its 1-based physical row number.
type Row struct {
	Number int
	Cells  []Cell
}

// Cell returns the cell at the given column, or an empty cell when the row
// is shorter than the column index.
func (r Row) Cell(index int) Cell {
	if index < 0 || index >= len(r.Cells) {
		return Cell{}
	}
	return r.Cells[index]
}

// Values returns the display values of all cells.
func (r Row) Values() []string {
	out := make([]string, len(r.Cells))
	for i, c := range r.Cells {
		out[i] = c.String()
	}
	return out
}

// IsEmpty reports whether every cell in the row is empty.
func (r Row) IsEmpty() bool {
	for _, c := range r.Cells {
		if !c.IsEmpty() {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the row.
func (r Row) Clone() Row {
	cells := make([]Cell, len(r.Cells))
	copy(cells, r.Cells)
	return Row{Number: r.Number, Cells: cells}
}

// RowFromStrings builds a row of text cells.
func RowFromStrings(number int, values []string) Row {
	cells := make([]Cell, len(values))
	for i, v := range values {
		cells[i] = TextCell(v)
	}
	return Row{Number: number, Cells: cells}
}

// =============================================================================
// ROW RANGES
// =============================================================================

// RowRange is an inclusive, 1-based range of physical row numbers.
type RowRange struct {
	Start int `json:"start" yaml:"start"`
	End   int `json:"end" yaml:"end"`
}

// Contains reports whether the row number falls inside the range.
func (r RowRange) Contains(number int) bool {
	return number >= r.Start && number <= r.End
}

func (r RowRange) String() string {
	return fmt.Sprintf("%d-%d", r.Start, r.End)
}

// InRange filters rows to those inside rng. A nil range keeps every row.
func InRange(rows []Row, rng *RowRange) []Row {
	if rng == nil {
		return rows
	}
	out := make([]Row, 0, len(rows))
	for _, row := range rows {
		if rng.Contains(row.Number) {
			out = append(out, row)
		}
	}
	return out
}

// =============================================================================
// SHEETS
// =============================================================================

// Sheet is a raw cell grid read from one worksheet or CSV file.
type Sheet struct {
	// Path is the source file path.
	Path string

	// Name is the worksheet name. CSV sheets use the file base name.
	Name string

	// Rows holds every row of the sheet in physical order, header included.
	Rows []Row
}

// Width returns the number of columns of the widest row.
func (s *Sheet) Width() int {
	width := 0
	for _, row := range s.Rows {
		if len(row.Cells) > width {
			width = len(row.Cells)
		}
	}
	return width
}

// Row returns the row with the given physical number, if present.
func (s *Sheet) Row(number int) (Row, bool) {
	for _, row := range s.Rows {
		if row.Number == number {
			return row, true
		}
	}
	return Row{}, false
}
