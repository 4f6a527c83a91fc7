// =============================================================================
// Ticket Reconciler - Workbook Exporter
// =============================================================================
//
// This module writes the two artifacts of a reconciliation run:
//
//   1. The annotated master: every master row with its match or no-match
//      sentence in the result column.
//   2. The unmatched workbook: the master header row followed by every
//      master row that found no match, in master row order.
//
// When the master is itself a workbook, the annotated copy is written on
// top of it so formatting, other sheets and column widths survive. Other
// sources are rebuilt from the cell grid.
//
// Every write goes through utils.WriteFileAtomic.
//
// =============================================================================

package xlsxwriter

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/ticket-reconciler/internal/reconciliation"
	"github.com/ginjaninja78/ticket-reconciler/internal/types"
	"github.com/ginjaninja78/ticket-reconciler/pkg/utils"
)

// DefaultSheetName is used for workbooks built from scratch.
const DefaultSheetName = "Sheet1"

// AnnotateOptions control the annotated master export.
type AnnotateOptions struct {
	// ResultColumn is the 0-based column receiving the labels. -1 appends
	// a column after the widest row.
	ResultColumn int

	// HeaderRow is the 1-based header row; 0 when the sheet has none.
	HeaderRow int

	// ResultHeader is written into the header row of an appended column.
	// Default: "Result"
	ResultHeader string
}

// WriteAnnotated writes master with every verdict's label in the result
// column and returns the column that was used.
func WriteAnnotated(path string, master *types.Sheet, verdicts []reconciliation.Verdict, opts AnnotateOptions) (int, error) {
	f, sheet, err := openBase(master)
	if err != nil {
		return -1, err
	}
	defer f.Close()

	col := opts.ResultColumn
	if col < 0 {
		col = master.Width()
		header := opts.ResultHeader
		if header == "" {
			header = "Result"
		}
		if opts.HeaderRow > 0 {
			if err := setCell(f, sheet, col, opts.HeaderRow, types.TextCell(header)); err != nil {
				return -1, err
			}
		}
	}

	for _, v := range verdicts {
		if err := setCell(f, sheet, col, v.Row.Number, types.TextCell(v.Label)); err != nil {
			return -1, err
		}
	}

	if err := save(f, path); err != nil {
		return -1, err
	}
	return col, nil
}

// WriteUnmatched writes the header row (if any) and the unmatched rows to a
// new workbook, renumbered from the top.
func WriteUnmatched(path string, header *types.Row, rows []types.Row) error {
	f := excelize.NewFile()
	defer f.Close()

	next := 1
	if header != nil {
		if err := writeRow(f, DefaultSheetName, next, *header); err != nil {
			return err
		}
		next++
	}
	for _, row := range rows {
		if err := writeRow(f, DefaultSheetName, next, row); err != nil {
			return err
		}
		next++
	}
	return save(f, path)
}

// openBase opens the master workbook when it is one, else builds a new
// workbook from its rows.
func openBase(master *types.Sheet) (*excelize.File, string, error) {
	if master == nil {
		return nil, "", fmt.Errorf("no master sheet to annotate")
	}
	switch strings.ToLower(filepath.Ext(master.Path)) {
	case ".xlsx", ".xlsm":
		f, err := excelize.OpenFile(master.Path)
		if err != nil {
			return nil, "", fmt.Errorf("failed to open master workbook: %w", err)
		}
		if idx, err := f.GetSheetIndex(master.Name); err != nil || idx < 0 {
			f.Close()
			return nil, "", fmt.Errorf("sheet %q not found in %s", master.Name, master.Path)
		}
		return f, master.Name, nil
	}

	f := excelize.NewFile()
	for _, row := range master.Rows {
		if err := writeRow(f, DefaultSheetName, row.Number, row); err != nil {
			f.Close()
			return nil, "", err
		}
	}
	return f, DefaultSheetName, nil
}

func writeRow(f *excelize.File, sheet string, number int, row types.Row) error {
	for c, cell := range row.Cells {
		if cell.IsEmpty() {
			continue
		}
		if err := setCell(f, sheet, c, number, cell); err != nil {
			return err
		}
	}
	return nil
}

func setCell(f *excelize.File, sheet string, col, row int, cell types.Cell) error {
	axis, err := excelize.CoordinatesToCellName(col+1, row)
	if err != nil {
		return fmt.Errorf("invalid cell position: %w", err)
	}
	switch cell.Kind {
	case types.CellNumber:
		err = f.SetCellFloat(sheet, axis, cell.Number, -1, 64)
	default:
		err = f.SetCellStr(sheet, axis, cell.String())
	}
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", axis, err)
	}
	return nil
}

func save(f *excelize.File, path string) error {
	return utils.WriteFileAtomic(path, func(w io.Writer) error {
		if _, err := f.WriteTo(w); err != nil {
			return fmt.Errorf("failed to write workbook: %w", err)
		}
		return nil
	})
}
