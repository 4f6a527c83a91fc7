// =============================================================================
// Ticket Reconciler - XLSX Sheet Reader
// =============================================================================
//
// This module reads one worksheet of an XLSX workbook into a raw cell grid.
// The reader does not interpret headers or footers: rows are returned in
// physical order with their 1-based row numbers, header rows included.
//
// CELL TYPES:
//   | Stored as                        | Becomes     |
//   |----------------------------------|-------------|
//   | number (no type attribute, "n")  | CellNumber  |
//   | shared / inline string           | CellText    |
//   | boolean, error, formula string   | CellText    |
//   | blank                            | CellEmpty   |
//
// Numbers are read from the raw stored value, so a ticket number typed as
// 1001 renders as "1001" regardless of the cell's number format. Formulas
// are not evaluated; the cached value is used.
//
// =============================================================================

package xlsxparser

import (
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/ticket-reconciler/internal/types"
)

// ReadSheet reads the named worksheet. An empty name selects the first sheet.
func ReadSheet(path, sheet string) (*types.Sheet, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	return readSheet(f, path, sheet)
}

// SheetNames lists the worksheets of a workbook in tab order.
func SheetNames(path string) ([]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	return f.GetSheetList(), nil
}

func readSheet(f *excelize.File, path, sheet string) (*types.Sheet, error) {
	if sheet == "" {
		sheet = f.GetSheetName(0)
		if sheet == "" {
			return nil, fmt.Errorf("workbook has no sheets")
		}
	}
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return nil, fmt.Errorf("sheet %q not found", sheet)
	}

	raw, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}

	out := &types.Sheet{Path: path, Name: sheet, Rows: make([]types.Row, len(raw))}
	for r, values := range raw {
		cells := make([]types.Cell, len(values))
		for c, v := range values {
			cells[c] = readCell(f, sheet, c+1, r+1, v)
		}
		out.Rows[r] = types.Row{Number: r + 1, Cells: cells}
	}
	return out, nil
}

// readCell decides the kind of one cell. Only values that parse as numbers
// need the type lookup; a shared string "00123" must stay text.
func readCell(f *excelize.File, sheet string, col, row int, value string) types.Cell {
	if value == "" {
		return types.Cell{}
	}
	n, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return types.TextCell(value)
	}
	axis, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return types.TextCell(value)
	}
	typ, err := f.GetCellType(sheet, axis)
	if err != nil {
		return types.TextCell(value)
	}
	switch typ {
	case excelize.CellTypeUnset, excelize.CellTypeNumber:
		return types.NumberCell(n)
	default:
		return types.TextCell(value)
	}
}
