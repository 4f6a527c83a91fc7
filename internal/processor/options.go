package processor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ginjaninja78/ticket-reconciler/internal/reconciliation"
	"github.com/ginjaninja78/ticket-reconciler/internal/types"
	"github.com/ginjaninja78/ticket-reconciler/internal/validation"
)

// =============================================================================
// REQUEST
// =============================================================================

// ProcessExcelOptions is one reconciliation request. Maps keyed by file
// path use the exact strings listed in TargetPaths.
type ProcessExcelOptions struct {
	MasterPath  string   `json:"masterPath" yaml:"master_path"`
	MasterSheet string   `json:"masterSheet,omitempty" yaml:"master_sheet,omitempty"`
	TargetPaths []string `json:"targetPaths" yaml:"target_paths"`

	// TargetSheets picks a worksheet per target; the first sheet otherwise.
	TargetSheets map[string]string `json:"targetSheets,omitempty" yaml:"target_sheets,omitempty"`

	MasterColIndices     []int `json:"masterColIndices" yaml:"master_col_indices"`
	MasterResultColIndex int   `json:"masterResultColIndex" yaml:"master_result_col_index"`

	TargetMatchColIndices map[string][]int `json:"targetMatchColIndices" yaml:"target_match_col_indices"`

	// TargetMatchStrings are display labels appended to the match sentence.
	TargetMatchStrings map[string]string `json:"targetMatchStrings,omitempty" yaml:"target_match_strings,omitempty"`

	MatchSentence   string `json:"matchSentence" yaml:"match_sentence"`
	NoMatchSentence string `json:"noMatchSentence" yaml:"no_match_sentence"`

	// OutputPath receives the annotated master. The unmatched workbook is
	// written next to it.
	OutputPath string `json:"outputPath" yaml:"output_path"`

	MasterRowRange  *types.RowRange           `json:"masterRowRange,omitempty" yaml:"master_row_range,omitempty"`
	TargetRowRanges map[string]types.RowRange `json:"targetRowRanges,omitempty" yaml:"target_row_ranges,omitempty"`

	// MasterHeaderRow is the 1-based header row of the master; rows up to
	// it never take part. 0 means the sheet has no header.
	MasterHeaderRow int `json:"masterHeaderRow" yaml:"master_header_row"`

	// TargetHeaderRows overrides the header row per target; 1 otherwise.
	TargetHeaderRows map[string]int `json:"targetHeaderRows,omitempty" yaml:"target_header_rows,omitempty"`
}

// DefaultOptions returns a request with the non-zero defaults set: the
// result column is unset (-1, append) and the header is on row 1.
func DefaultOptions() ProcessExcelOptions {
	return ProcessExcelOptions{
		MasterResultColIndex: -1,
		MasterHeaderRow:      1,
		MatchSentence:        "Matched",
		NoMatchSentence:      "Not found",
	}
}

// LoadJob reads a job file. Fields the file leaves out keep the values of
// DefaultOptions, and relative paths resolve against the job file.
func LoadJob(path string) (ProcessExcelOptions, error) {
	opts := DefaultOptions()

	data, err := os.ReadFile(path)
	if err != nil {
		return opts, fmt.Errorf("failed to read job file: %w", err)
	}
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return opts, fmt.Errorf("failed to parse job file: %w", err)
	}

	base := filepath.Dir(path)
	opts.MasterPath = resolve(base, opts.MasterPath)
	opts.OutputPath = resolve(base, opts.OutputPath)
	opts.rekey(func(p string) string { return resolve(base, p) })
	return opts, nil
}

func resolve(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// rekey rewrites every target path, keeping the per-target maps in step.
func (o *ProcessExcelOptions) rekey(fn func(string) string) {
	for i, p := range o.TargetPaths {
		o.TargetPaths[i] = fn(p)
	}
	o.TargetSheets = rekeyMap(o.TargetSheets, fn)
	o.TargetMatchColIndices = rekeyMap(o.TargetMatchColIndices, fn)
	o.TargetMatchStrings = rekeyMap(o.TargetMatchStrings, fn)
	o.TargetRowRanges = rekeyMap(o.TargetRowRanges, fn)
	o.TargetHeaderRows = rekeyMap(o.TargetHeaderRows, fn)
}

func rekeyMap[V any](m map[string]V, fn func(string) string) map[string]V {
	if m == nil {
		return nil
	}
	out := make(map[string]V, len(m))
	for k, v := range m {
		out[fn(k)] = v
	}
	return out
}

// Validate checks the request before any file is opened.
func (o ProcessExcelOptions) Validate() error {
	v := validation.New()
	v.Path("masterPath", o.MasterPath)
	v.Path("outputPath", o.OutputPath)
	v.Columns("masterColIndices", o.MasterColIndices)
	v.Column("masterResultColIndex", o.MasterResultColIndex)
	v.RowRange("masterRowRange", o.MasterRowRange)

	if len(o.TargetPaths) == 0 {
		v.Add("targetPaths", "", validation.ErrMissingPath, "at least one target file is required")
	}
	if o.MasterHeaderRow < 0 {
		v.Add("masterHeaderRow", fmt.Sprint(o.MasterHeaderRow), validation.ErrInvalidValue, "header row must not be negative")
	}
	if o.OutputPath != "" && sameFile(o.OutputPath, o.MasterPath) {
		v.Add("outputPath", o.OutputPath, validation.ErrInvalidValue, "output must not overwrite the master file")
	}
	if ext := strings.ToLower(filepath.Ext(o.OutputPath)); o.OutputPath != "" && ext != ".xlsx" {
		v.Add("outputPath", o.OutputPath, validation.ErrInvalidValue, "output must be an .xlsx file")
	}

	seen := make(map[string]bool, len(o.TargetPaths))
	for _, p := range o.TargetPaths {
		field := fmt.Sprintf("targetMatchColIndices[%s]", p)
		v.Path("targetPaths", p)
		if seen[p] {
			v.Add("targetPaths", p, validation.ErrInvalidValue, "target file listed twice")
		}
		seen[p] = true
		v.Columns(field, o.TargetMatchColIndices[p])
		if rng, ok := o.TargetRowRanges[p]; ok {
			v.RowRange(fmt.Sprintf("targetRowRanges[%s]", p), &rng)
		}
		if h, ok := o.TargetHeaderRows[p]; ok && h < 0 {
			v.Add(fmt.Sprintf("targetHeaderRows[%s]", p), fmt.Sprint(h), validation.ErrInvalidValue, "header row must not be negative")
		}
	}
	return v.Err()
}

func sameFile(a, b string) bool {
	aa, err1 := filepath.Abs(a)
	bb, err2 := filepath.Abs(b)
	return err1 == nil && err2 == nil && aa == bb
}

func (o ProcessExcelOptions) targetHeaderRow(path string) int {
	if h, ok := o.TargetHeaderRows[path]; ok {
		return h
	}
	return 1
}

// =============================================================================
// RESPONSE
// =============================================================================

// ProcessExcelResult is the structured outcome of Process. Failures are
// reported through Success and Error, never by panicking.
type ProcessExcelResult struct {
	Success bool   `json:"success"`
	RunID   string `json:"runId,omitempty"`

	Stats        *reconciliation.Stats      `json:"stats,omitempty"`
	PerFileStats []reconciliation.FileStats `json:"perFileStats,omitempty"`
	MatchedRows  []MatchedRow               `json:"matchedRows,omitempty"`

	OutputPath    string `json:"outputPath,omitempty"`
	UnmatchedPath string `json:"unmatchedPath,omitempty"`
	SummaryPath   string `json:"summaryPath,omitempty"`

	// Failures lists target files skipped under the skip policy.
	Failures []reconciliation.SourceFailure `json:"failures,omitempty"`

	Error string `json:"error,omitempty"`
}

// MatchedRow is a matched master row in display form.
type MatchedRow struct {
	SourceFile string   `json:"sourceFile"`
	Data       []string `json:"data"`
	RowNumber  int      `json:"rowNumber"`
}

func failed(err error) ProcessExcelResult {
	return ProcessExcelResult{Error: err.Error()}
}
