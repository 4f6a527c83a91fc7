package matcher

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/ginjaninja78/ticket-reconciler/internal/reconciliation"
	"github.com/ginjaninja78/ticket-reconciler/internal/types"
	"github.com/ginjaninja78/ticket-reconciler/internal/validation"
)

// sheetRows builds rows numbered from 2, as if row 1 were the header.
func sheetRows(values ...string) []types.Row {
	rows := make([]types.Row, len(values))
	for i, v := range values {
		rows[i] = types.RowFromStrings(i+2, []string{v})
	}
	return rows
}

func newEngine(t *testing.T, opts Options) *Engine {
	t.Helper()
	e, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func checkInvariant(t *testing.T, res *reconciliation.Result) {
	t.Helper()
	if err := res.Check(); err != nil {
		t.Fatalf("invariant violated: %v", err)
	}
}

func TestReconcile_FirstTargetFileWins(t *testing.T) {
	e := newEngine(t, Options{})
	master := Master{Rows: sheetRows("T1001"), IDColumns: []int{0}}
	targets := []Target{
		{FilePath: "/in/a.xlsx", Rows: sheetRows("T1001"), MatchColumns: []int{0}},
		{FilePath: "/in/b.xlsx", Rows: sheetRows("T1001"), MatchColumns: []int{0}},
	}

	res, err := e.Reconcile(context.Background(), master, targets, Sentences{Match: "Found", NoMatch: "Missing"})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	checkInvariant(t, res)

	recs := res.Records()
	if len(recs) != 1 || recs[0].SourceFile != "/in/a.xlsx" {
		t.Fatalf("expected match attributed to a.xlsx, got %+v", recs)
	}
	a, _ := res.FileStats("/in/a.xlsx")
	b, _ := res.FileStats("/in/b.xlsx")
	if a.Matched != 1 || b.Matched != 0 {
		t.Fatalf("expected a=1 b=0, got a=%d b=%d", a.Matched, b.Matched)
	}
}

func TestReconcile_FirstRowInFileWins(t *testing.T) {
	e := newEngine(t, Options{})
	master := Master{Rows: sheetRows("T7"), IDColumns: []int{0}}
	targets := []Target{
		{FilePath: "a.xlsx", Rows: sheetRows("x", "t7", "T7"), MatchColumns: []int{0}},
	}

	res, err := e.Reconcile(context.Background(), master, targets, Sentences{})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if got := res.Records()[0].TargetRowNumber; got != 3 {
		t.Fatalf("expected target row 3, got %d", got)
	}
}

func TestReconcile_LabelsAndStats(t *testing.T) {
	e := newEngine(t, Options{})
	master := Master{Rows: sheetRows(" t1 ", "T2", "", "T4"), IDColumns: []int{0}}
	targets := []Target{
		{FilePath: "a.xlsx", Rows: sheetRows("T1", "T9"), MatchColumns: []int{0}, MatchLabel: "Acme"},
		{FilePath: "b.xlsx", Rows: sheetRows("T4", "", ""), MatchColumns: []int{0}},
	}

	res, err := e.Reconcile(context.Background(), master, targets, Sentences{Match: "Invoiced", NoMatch: "Not invoiced"})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	checkInvariant(t, res)

	s := res.Stats()
	if s.TotalMasterRows != 4 || s.MatchedMasterRows != 2 || s.UnmatchedMasterRows != 2 || s.MatchPercentage != 50 {
		t.Fatalf("unexpected stats %+v", s)
	}

	labels := []string{}
	for _, v := range res.Verdicts() {
		labels = append(labels, v.Label)
	}
	want := []string{"Invoiced - Acme", "Not invoiced", "Not invoiced", "Invoiced"}
	if !reflect.DeepEqual(labels, want) {
		t.Fatalf("labels = %v, want %v", labels, want)
	}

	b, _ := res.FileStats("b.xlsx")
	if b.Total != 3 || b.Matched != 1 || b.Percentage != 33 {
		t.Fatalf("unexpected stats for b: %+v", b)
	}
}

func TestReconcile_EmptyKeysNeverMatch(t *testing.T) {
	e := newEngine(t, Options{})
	master := Master{Rows: sheetRows("", "  "), IDColumns: []int{0}}
	targets := []Target{{FilePath: "a.xlsx", Rows: sheetRows("", " "), MatchColumns: []int{0}}}

	res, err := e.Reconcile(context.Background(), master, targets, Sentences{})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if res.Stats().MatchedMasterRows != 0 {
		t.Fatalf("expected no matches on empty keys, got %+v", res.Stats())
	}
}

func TestReconcile_CompositeKeys(t *testing.T) {
	e := newEngine(t, Options{})
	master := Master{
		Rows: []types.Row{
			types.RowFromStrings(2, []string{"A", "100", "x"}),
			types.RowFromStrings(3, []string{"A", "200", "y"}),
		},
		IDColumns: []int{0, 1},
	}
	targets := []Target{{
		FilePath: "a.xlsx",
		Rows: []types.Row{
			{Number: 5, Cells: []types.Cell{types.NumberCell(200), types.TextCell("a")}},
		},
		MatchColumns: []int{1, 0},
	}}

	res, err := e.Reconcile(context.Background(), master, targets, Sentences{})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	recs := res.Records()
	if recs[0].Matched || !recs[1].Matched || recs[1].TargetRowNumber != 5 {
		t.Fatalf("unexpected records %+v", recs)
	}
}

func TestReconcile_RowRanges(t *testing.T) {
	e := newEngine(t, Options{})
	// Rows 2..6; only 3..4 of the master and 2..2 of the target participate.
	master := Master{
		Rows:      sheetRows("T1", "T2", "T3", "T4", "TOTAL"),
		IDColumns: []int{0},
		Range:     &types.RowRange{Start: 3, End: 4},
	}
	targets := []Target{{
		FilePath:     "a.xlsx",
		Rows:         sheetRows("T2", "T3"),
		MatchColumns: []int{0},
		Range:        &types.RowRange{Start: 2, End: 2},
	}}

	res, err := e.Reconcile(context.Background(), master, targets, Sentences{})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	checkInvariant(t, res)

	if s := res.Stats(); s.TotalMasterRows != 2 || s.MatchedMasterRows != 1 {
		t.Fatalf("unexpected stats %+v", s)
	}
	if fs, _ := res.FileStats("a.xlsx"); fs.Total != 1 {
		t.Fatalf("expected 1 target row considered, got %+v", fs)
	}
	unmatched := res.UnmatchedRows()
	if len(unmatched) != 1 || unmatched[0].Number != 4 {
		t.Fatalf("expected row 4 (T3) unmatched, got %+v", unmatched)
	}
}

func TestReconcile_InvalidRangeFailsBeforeProcessing(t *testing.T) {
	e := newEngine(t, Options{})
	master := Master{Rows: sheetRows("T1"), IDColumns: []int{0}, Range: &types.RowRange{Start: 9, End: 3}}

	_, err := e.Reconcile(context.Background(), master, nil, Sentences{})
	if !errors.Is(err, validation.ErrInvalidRowRange) {
		t.Fatalf("expected ErrInvalidRowRange, got %v", err)
	}

	master.Range = nil
	master.IDColumns = nil
	_, err = e.Reconcile(context.Background(), master, nil, Sentences{})
	if !errors.Is(err, validation.ErrNoColumns) {
		t.Fatalf("expected ErrNoColumns, got %v", err)
	}
}

func TestReconcile_DuplicateTargetRejected(t *testing.T) {
	e := newEngine(t, Options{})
	master := Master{Rows: sheetRows("T1"), IDColumns: []int{0}}
	targets := []Target{
		{FilePath: "a.xlsx", Rows: sheetRows("T1"), MatchColumns: []int{0}},
		{FilePath: "a.xlsx", Rows: sheetRows("T1"), MatchColumns: []int{0}},
	}

	res, err := e.Reconcile(context.Background(), master, targets, Sentences{})
	if !errors.Is(err, validation.ErrInvalidValue) {
		t.Fatalf("expected ErrInvalidValue, got %v", err)
	}
	if res != nil {
		t.Fatalf("expected no result, got %+v", res)
	}
}

func TestReconcile_FailurePolicySkip(t *testing.T) {
	e := newEngine(t, Options{FailurePolicy: FailureSkip})
	master := Master{Rows: sheetRows("T1", "T2"), IDColumns: []int{0}}
	targets := []Target{
		{FilePath: "broken.xlsx", Err: errors.New("permission denied")},
		{FilePath: "ok.xlsx", Rows: sheetRows("T2"), MatchColumns: []int{0}},
	}

	res, err := e.Reconcile(context.Background(), master, targets, Sentences{})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	checkInvariant(t, res)

	if f := res.Failures(); len(f) != 1 || f[0].FilePath != "broken.xlsx" {
		t.Fatalf("expected one recorded failure, got %+v", f)
	}
	if res.Stats().MatchedMasterRows != 1 {
		t.Fatalf("expected remaining file to contribute, got %+v", res.Stats())
	}
	if fs, _ := res.FileStats("broken.xlsx"); fs.Total != 0 || fs.Percentage != 0 {
		t.Fatalf("expected zero-row failed file, got %+v", fs)
	}
}

func TestReconcile_FailurePolicyAbort(t *testing.T) {
	e := newEngine(t, Options{FailurePolicy: FailureAbort})
	master := Master{Rows: sheetRows("T1"), IDColumns: []int{0}}
	targets := []Target{
		{FilePath: "ok.xlsx", Rows: sheetRows("T1"), MatchColumns: []int{0}},
		{FilePath: "broken.xlsx", Err: errors.New("permission denied")},
	}

	res, err := e.Reconcile(context.Background(), master, targets, Sentences{})
	if !errors.Is(err, ErrTargetFailed) {
		t.Fatalf("expected ErrTargetFailed, got %v", err)
	}
	if res != nil {
		t.Fatalf("expected no result on abort")
	}
}

func TestNew_RejectsUnknownPolicy(t *testing.T) {
	if _, err := New(Options{FailurePolicy: "retry"}); err == nil {
		t.Fatalf("expected error for unknown policy")
	}
}

func TestReconcile_CancelledContextReturnsNoResult(t *testing.T) {
	e := newEngine(t, Options{BatchSize: 1})
	master := Master{Rows: sheetRows("T1", "T2"), IDColumns: []int{0}}
	targets := []Target{{FilePath: "a.xlsx", Rows: sheetRows("T1"), MatchColumns: []int{0}}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := e.Reconcile(ctx, master, targets, Sentences{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if res != nil {
		t.Fatalf("expected nil result")
	}
}

func TestReconcile_ParallelMatchesSequential(t *testing.T) {
	var masterVals []string
	for i := 0; i < 300; i++ {
		masterVals = append(masterVals, fmt.Sprintf("T%d", i))
	}
	targets := make([]Target, 6)
	for f := range targets {
		var vals []string
		for i := f * 20; i < 300; i += 3 + f {
			vals = append(vals, fmt.Sprintf("t%d", i))
		}
		targets[f] = Target{FilePath: fmt.Sprintf("file-%d.xlsx", f), Rows: sheetRows(vals...), MatchColumns: []int{0}}
	}
	master := Master{Rows: sheetRows(masterVals...), IDColumns: []int{0}}

	seq, err := newEngine(t, Options{Concurrency: 1, BatchSize: 7}).Reconcile(context.Background(), master, targets, Sentences{})
	if err != nil {
		t.Fatalf("sequential: %v", err)
	}
	for run := 0; run < 5; run++ {
		par, err := newEngine(t, Options{Concurrency: 4, BatchSize: 7}).Reconcile(context.Background(), master, targets, Sentences{})
		if err != nil {
			t.Fatalf("parallel: %v", err)
		}
		if !reflect.DeepEqual(seq.Records(), par.Records()) {
			t.Fatalf("parallel run %d changed the match assignment", run)
		}
		if !reflect.DeepEqual(seq.PerFileStats(), par.PerFileStats()) {
			t.Fatalf("parallel run %d changed per-file stats", run)
		}
	}
	checkInvariant(t, seq)
}

func TestReconcile_NormalizersApplyToBothSides(t *testing.T) {
	e := newEngine(t, Options{Normalizers: []Action{
		{Type: "strip_non_alnum"},
		{Type: "regex_replace", Find: `^t0*`, Value: "t"},
	}})
	master := Master{Rows: sheetRows("T-0042"), IDColumns: []int{0}}
	targets := []Target{{FilePath: "a.xlsx", Rows: sheetRows("t42"), MatchColumns: []int{0}}}

	res, err := e.Reconcile(context.Background(), master, targets, Sentences{})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if res.Stats().MatchedMasterRows != 1 {
		t.Fatalf("expected normalized keys to match, got %+v", res.Stats())
	}
}
