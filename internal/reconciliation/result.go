// =============================================================================
// Ticket Reconciler - Reconciliation Result
// =============================================================================
//
// A Result is the write-once output of one matching run. It is produced by a
// Builder, and once built nothing can change it: every field is unexported
// and every accessor returns a copy. Results can therefore be handed to the
// report writer, the CLI and any other reader concurrently.
//
// INVARIANTS:
//   - MatchedMasterRows + UnmatchedMasterRows == TotalMasterRows
//   - MatchPercentage == round(matched / total * 100), 0 when total == 0
//   - At most one verdict per master row
//
// =============================================================================

package reconciliation

import (
	"fmt"
	"math"
	"path/filepath"

	"github.com/ginjaninja78/ticket-reconciler/internal/types"
)

// =============================================================================
// VALUE TYPES
// =============================================================================

// Stats are the run-level counters.
type Stats struct {
	TotalMasterRows     int `json:"totalMasterRows"`
	MatchedMasterRows   int `json:"matchedMasterRows"`
	UnmatchedMasterRows int `json:"unmatchedMasterRows"`
	MatchPercentage     int `json:"matchPercentage"`
}

// FileStats are the counters of one target file.
type FileStats struct {
	FilePath   string `json:"filePath"`
	FileName   string `json:"fileName"`
	Total      int    `json:"total"`
	Matched    int    `json:"matched"`
	Percentage int    `json:"percentage"`
}

// MatchRecord is the verdict for one master row.
type MatchRecord struct {
	SourceFile      string `json:"sourceFile,omitempty"`
	MasterRowNumber int    `json:"masterRowNumber"`
	TargetRowNumber int    `json:"targetRowNumber,omitempty"`
	Matched         bool   `json:"matched"`
}

// Verdict pairs a master row with its record and display label.
type Verdict struct {
	Record MatchRecord
	Row    types.Row

	// Label is the match or no-match sentence, with the target's display
	// string appended for matched rows when one is configured.
	Label string
}

// MatchedRow is a master row that found a match.
type MatchedRow struct {
	SourceFile      string    `json:"sourceFile"`
	Data            types.Row `json:"-"`
	RowNumber       int       `json:"rowNumber"`
	TargetRowNumber int       `json:"targetRowNumber"`
}

// SourceFailure records a target file that could not be loaded.
type SourceFailure struct {
	FilePath string `json:"filePath"`
	FileName string `json:"fileName"`
	Error    string `json:"error"`
}

// =============================================================================
// RESULT
// =============================================================================

// Result is an immutable reconciliation outcome.
type Result struct {
	runID         string
	stats         Stats
	perFile       []FileStats
	verdicts      []Verdict
	failures      []SourceFailure
	unmatchedPath string
}

// RunID identifies the run that produced the result.
func (r *Result) RunID() string { return r.runID }

// Stats returns the run-level counters.
func (r *Result) Stats() Stats { return r.stats }

// UnmatchedPath is where the unmatched rows were exported, if anywhere.
func (r *Result) UnmatchedPath() string { return r.unmatchedPath }

// PerFileStats returns the counters of every target file in configured order.
func (r *Result) PerFileStats() []FileStats {
	out := make([]FileStats, len(r.perFile))
	copy(out, r.perFile)
	return out
}

// FileStats returns the counters of one target file.
func (r *Result) FileStats(path string) (FileStats, bool) {
	for _, fs := range r.perFile {
		if fs.FilePath == path {
			return fs, true
		}
	}
	return FileStats{}, false
}

// Failures returns the target files that could not be loaded.
func (r *Result) Failures() []SourceFailure {
	out := make([]SourceFailure, len(r.failures))
	copy(out, r.failures)
	return out
}

// Verdicts returns one verdict per master row, in master row order.
func (r *Result) Verdicts() []Verdict {
	out := make([]Verdict, len(r.verdicts))
	for i, v := range r.verdicts {
		out[i] = Verdict{Record: v.Record, Row: v.Row.Clone(), Label: v.Label}
	}
	return out
}

// Records returns the match records in master row order.
func (r *Result) Records() []MatchRecord {
	out := make([]MatchRecord, len(r.verdicts))
	for i, v := range r.verdicts {
		out[i] = v.Record
	}
	return out
}

// MatchedRows returns the master rows that found a match.
func (r *Result) MatchedRows() []MatchedRow {
	out := make([]MatchedRow, 0, r.stats.MatchedMasterRows)
	for _, v := range r.verdicts {
		if !v.Record.Matched {
			continue
		}
		out = append(out, MatchedRow{
			SourceFile:      v.Record.SourceFile,
			Data:            v.Row.Clone(),
			RowNumber:       v.Record.MasterRowNumber,
			TargetRowNumber: v.Record.TargetRowNumber,
		})
	}
	return out
}

// UnmatchedRows returns the master rows without a match.
func (r *Result) UnmatchedRows() []types.Row {
	out := make([]types.Row, 0, r.stats.UnmatchedMasterRows)
	for _, v := range r.verdicts {
		if !v.Record.Matched {
			out = append(out, v.Row.Clone())
		}
	}
	return out
}

// WithUnmatchedPath returns a copy of the result that records where the
// unmatched rows were exported. The receiver is left untouched.
func (r *Result) WithUnmatchedPath(path string) *Result {
	cp := *r
	cp.unmatchedPath = path
	return &cp
}

// Check verifies the result invariants.
func (r *Result) Check() error {
	s := r.stats
	if s.MatchedMasterRows+s.UnmatchedMasterRows != s.TotalMasterRows {
		return fmt.Errorf("matched (%d) + unmatched (%d) != total (%d)",
			s.MatchedMasterRows, s.UnmatchedMasterRows, s.TotalMasterRows)
	}
	if len(r.verdicts) != s.TotalMasterRows {
		return fmt.Errorf("expected %d verdicts, got %d", s.TotalMasterRows, len(r.verdicts))
	}
	seen := make(map[int]bool, len(r.verdicts))
	for _, v := range r.verdicts {
		if seen[v.Record.MasterRowNumber] {
			return fmt.Errorf("master row %d has more than one verdict", v.Record.MasterRowNumber)
		}
		seen[v.Record.MasterRowNumber] = true
	}
	return nil
}

// Percentage returns round(part/total*100), or 0 when total is 0.
func Percentage(part, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(total) * 100))
}

// =============================================================================
// BUILDER
// =============================================================================

// Builder collects a run's verdicts and produces the immutable Result.
// A Builder is owned by a single goroutine.
type Builder struct {
	runID    string
	files    []FileStats
	fileIdx  map[string]int
	verdicts []Verdict
	failures []SourceFailure
	built    bool
}

// NewBuilder starts a result for the given run.
func NewBuilder(runID string) *Builder {
	return &Builder{runID: runID, fileIdx: make(map[string]int)}
}

// AddFile registers a target file with the number of rows considered from it.
// Files must be added in configured order.
func (b *Builder) AddFile(path string, total int) {
	if _, ok := b.fileIdx[path]; ok {
		return
	}
	b.fileIdx[path] = len(b.files)
	b.files = append(b.files, FileStats{
		FilePath: path,
		FileName: filepath.Base(path),
		Total:    total,
	})
}

// Fail records a target file that could not be loaded. The file still
// appears in the per-file stats with zero rows.
func (b *Builder) Fail(path string, err error) {
	b.AddFile(path, 0)
	b.failures = append(b.failures, SourceFailure{
		FilePath: path,
		FileName: filepath.Base(path),
		Error:    err.Error(),
	})
}

// Match records a matched master row.
func (b *Builder) Match(row types.Row, sourceFile string, targetRow int, label string) {
	b.verdicts = append(b.verdicts, Verdict{
		Record: MatchRecord{
			SourceFile:      sourceFile,
			MasterRowNumber: row.Number,
			TargetRowNumber: targetRow,
			Matched:         true,
		},
		Row:   row.Clone(),
		Label: label,
	})
	if i, ok := b.fileIdx[sourceFile]; ok {
		b.files[i].Matched++
	}
}

// Miss records an unmatched master row.
func (b *Builder) Miss(row types.Row, label string) {
	b.verdicts = append(b.verdicts, Verdict{
		Record: MatchRecord{MasterRowNumber: row.Number},
		Row:    row.Clone(),
		Label:  label,
	})
}

// Build computes the statistics and returns the Result. The builder must not
// be used afterwards.
func (b *Builder) Build() *Result {
	if b.built {
		panic("reconciliation: Builder.Build called twice")
	}
	b.built = true

	var stats Stats
	stats.TotalMasterRows = len(b.verdicts)
	for _, v := range b.verdicts {
		if v.Record.Matched {
			stats.MatchedMasterRows++
		}
	}
	stats.UnmatchedMasterRows = stats.TotalMasterRows - stats.MatchedMasterRows
	stats.MatchPercentage = Percentage(stats.MatchedMasterRows, stats.TotalMasterRows)

	for i := range b.files {
		b.files[i].Percentage = Percentage(b.files[i].Matched, b.files[i].Total)
	}

	return &Result{
		runID:    b.runID,
		stats:    stats,
		perFile:  b.files,
		verdicts: b.verdicts,
		failures: b.failures,
	}
}
