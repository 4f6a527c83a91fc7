package xlsxparser

import (
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/ticket-reconciler/internal/classifier"
	"github.com/ginjaninja78/ticket-reconciler/internal/types"
)

// writeWorkbook saves rows to Sheet1 of a new workbook, starting at A1.
func writeWorkbook(t *testing.T, rows [][]interface{}) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatal(err)
		}
		r := row
		if err := f.SetSheetRow("Sheet1", cell, &r); err != nil {
			t.Fatalf("SetSheetRow: %v", err)
		}
	}
	path := filepath.Join(t.TempDir(), "report.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}
	return path
}

func reportRows() [][]interface{} {
	return [][]interface{}{
		{"Harbour Civil delivery report"},
		{},
		{"Ticket #", "Description", "Qty", "Customer"},
		{"T1001", "Crushed 10mm", 12.5, "Acme"},
		{1002, "Base 20mm", 8, "00123"},
		{"Total", "", 20.5},
	}
}

func TestReadSheet_CellKinds(t *testing.T) {
	sheet, err := ReadSheet(writeWorkbook(t, reportRows()), "")
	if err != nil {
		t.Fatalf("ReadSheet: %v", err)
	}
	if sheet.Name != "Sheet1" || len(sheet.Rows) != 6 {
		t.Fatalf("unexpected sheet %s with %d rows", sheet.Name, len(sheet.Rows))
	}
	if !sheet.Rows[1].IsEmpty() || sheet.Rows[1].Number != 2 {
		t.Fatalf("row 2 should be empty, got %+v", sheet.Rows[1])
	}

	row5 := sheet.Rows[4]
	if c := row5.Cell(0); c.Kind != types.CellNumber || c.String() != "1002" {
		t.Fatalf("A5 = %+v, want number 1002", c)
	}
	if c := row5.Cell(3); c.Kind != types.CellText || c.String() != "00123" {
		t.Fatalf("D5 = %+v, want text 00123", c)
	}
	if c := sheet.Rows[3].Cell(2); c.Kind != types.CellNumber || c.Number != 12.5 {
		t.Fatalf("C4 = %+v, want 12.5", c)
	}
}

func TestReadSheet_UnknownSheet(t *testing.T) {
	if _, err := ReadSheet(writeWorkbook(t, reportRows()), "Invoices"); err == nil {
		t.Fatal("expected error for a missing sheet")
	}
	if _, err := ReadSheet(filepath.Join(t.TempDir(), "none.xlsx"), ""); err == nil {
		t.Fatal("expected error for a missing file")
	}
}

func TestPreview_DetectsHeaderFooterAndColumn(t *testing.T) {
	sheet, err := ReadSheet(writeWorkbook(t, reportRows()), "Sheet1")
	if err != nil {
		t.Fatalf("ReadSheet: %v", err)
	}

	res := Preview(sheet, classifier.Default(), PreviewOptions{})
	if !res.Success {
		t.Fatalf("preview failed: %s", res.Error)
	}
	if res.HeaderRow != 3 || res.FooterStartRow != 6 || res.SuggestedColumn != 0 {
		t.Fatalf("header=%d footer=%d column=%d", res.HeaderRow, res.FooterStartRow, res.SuggestedColumn)
	}
	if res.SuggestedRowRange == nil || *res.SuggestedRowRange != (types.RowRange{Start: 4, End: 5}) {
		t.Fatalf("row range = %+v, want 4-5", res.SuggestedRowRange)
	}
	if res.RowCount != 6 || len(res.Data) != 6 || res.Data[4][0] != "1002" {
		t.Fatalf("unexpected data %v", res.Data)
	}
	if m, ok := res.Roles.Get(classifier.RoleQuantity); !ok || m.Column != 2 {
		t.Fatalf("quantity role = %+v, %v", m, ok)
	}
}

func TestPreview_FallsBackToFirstNonEmptyRow(t *testing.T) {
	sheet := &types.Sheet{Rows: []types.Row{
		types.RowFromStrings(1, nil),
		types.RowFromStrings(2, []string{"alpha", "beta"}),
		types.RowFromStrings(3, []string{"1", "2"}),
	}}
	res := Preview(sheet, nil, PreviewOptions{MaxRows: 2})
	if res.HeaderRow != 2 || res.SuggestedColumn != -1 {
		t.Fatalf("header=%d column=%d", res.HeaderRow, res.SuggestedColumn)
	}
	if len(res.Data) != 2 || res.RowCount != 3 {
		t.Fatalf("MaxRows not applied: %d rows of %d", len(res.Data), res.RowCount)
	}
	if res.FooterStartRow != 0 || *res.SuggestedRowRange != (types.RowRange{Start: 3, End: 3}) {
		t.Fatalf("footer=%d range=%+v", res.FooterStartRow, res.SuggestedRowRange)
	}
}

func TestPreview_EmptySheet(t *testing.T) {
	res := Preview(&types.Sheet{}, nil, PreviewOptions{})
	if !res.Success || res.HeaderRow != 0 || res.SuggestedRowRange != nil {
		t.Fatalf("unexpected preview of empty sheet: %+v", res)
	}
	if res := Preview(nil, nil, PreviewOptions{}); res.Success || res.Error == "" {
		t.Fatalf("nil sheet should fail: %+v", res)
	}
}
