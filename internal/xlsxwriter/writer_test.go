package xlsxwriter

import (
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/ticket-reconciler/internal/reconciliation"
	"github.com/ginjaninja78/ticket-reconciler/internal/types"
	"github.com/ginjaninja78/ticket-reconciler/internal/xlsxparser"
)

func cellValue(t *testing.T, path, sheet, axis string) string {
	t.Helper()
	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	v, err := f.GetCellValue(sheet, axis)
	if err != nil {
		t.Fatalf("GetCellValue %s: %v", axis, err)
	}
	return v
}

func ledger() *types.Sheet {
	return &types.Sheet{Path: "/in/ledger.csv", Name: "ledger.csv", Rows: []types.Row{
		types.RowFromStrings(1, []string{"Ticket", "Qty"}),
		{Number: 2, Cells: []types.Cell{types.TextCell("T1"), types.NumberCell(4)}},
		{Number: 3, Cells: []types.Cell{types.TextCell("T2"), types.NumberCell(2.5)}},
	}}
}

func TestWriteAnnotated_AppendsResultColumn(t *testing.T) {
	master := ledger()
	verdicts := []reconciliation.Verdict{
		{Row: master.Rows[1], Label: "Found - Acme"},
		{Row: master.Rows[2], Label: "Missing"},
	}
	out := filepath.Join(t.TempDir(), "annotated.xlsx")

	col, err := WriteAnnotated(out, master, verdicts, AnnotateOptions{ResultColumn: -1, HeaderRow: 1})
	if err != nil {
		t.Fatalf("WriteAnnotated: %v", err)
	}
	if col != 2 {
		t.Fatalf("result column = %d, want 2", col)
	}
	for axis, want := range map[string]string{
		"A1": "Ticket", "C1": "Result", "C2": "Found - Acme", "C3": "Missing", "B3": "2.5",
	} {
		if got := cellValue(t, out, DefaultSheetName, axis); got != want {
			t.Errorf("%s = %q, want %q", axis, got, want)
		}
	}
}

func TestWriteAnnotated_KeepsWorkbookContent(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "ledger.xlsx")
	f := excelize.NewFile()
	f.SetSheetRow("Sheet1", "A1", &[]interface{}{"Ticket", "Status"})
	f.SetSheetRow("Sheet1", "A2", &[]interface{}{"T1", ""})
	f.NewSheet("Notes")
	f.SetCellStr("Notes", "A1", "keep me")
	if err := f.SaveAs(src); err != nil {
		t.Fatal(err)
	}
	f.Close()

	master, err := xlsxparser.ReadSheet(src, "Sheet1")
	if err != nil {
		t.Fatalf("ReadSheet: %v", err)
	}
	out := filepath.Join(dir, "annotated.xlsx")
	verdicts := []reconciliation.Verdict{{Row: master.Rows[1], Label: "Found"}}
	if _, err := WriteAnnotated(out, master, verdicts, AnnotateOptions{ResultColumn: 1, HeaderRow: 1}); err != nil {
		t.Fatalf("WriteAnnotated: %v", err)
	}

	if got := cellValue(t, out, "Sheet1", "B2"); got != "Found" {
		t.Fatalf("B2 = %q", got)
	}
	if got := cellValue(t, out, "Sheet1", "B1"); got != "Status" {
		t.Fatalf("header overwritten: %q", got)
	}
	if got := cellValue(t, out, "Notes", "A1"); got != "keep me" {
		t.Fatalf("other sheet lost: %q", got)
	}
}

func TestWriteUnmatched(t *testing.T) {
	master := ledger()
	out := filepath.Join(t.TempDir(), "unmatched.xlsx")
	header := master.Rows[0]
	if err := WriteUnmatched(out, &header, []types.Row{master.Rows[2]}); err != nil {
		t.Fatalf("WriteUnmatched: %v", err)
	}

	sheet, err := xlsxparser.ReadSheet(out, "")
	if err != nil {
		t.Fatalf("ReadSheet: %v", err)
	}
	if len(sheet.Rows) != 2 {
		t.Fatalf("expected header plus one row, got %d", len(sheet.Rows))
	}
	if got := sheet.Rows[1].Values(); got[0] != "T2" || got[1] != "2.5" {
		t.Fatalf("unexpected row %v", got)
	}
	if c := sheet.Rows[1].Cell(1); c.Kind != types.CellNumber {
		t.Fatalf("quantity should stay numeric, got %+v", c)
	}
}
