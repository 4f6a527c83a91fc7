// =============================================================================
// Ticket Reconciler - Processor Module
// =============================================================================
//
// This module runs one reconciliation request end to end. It is the only
// place where the pure engine meets the file system.
//
// PROCESSING PIPELINE:
//   1. Validate the request (no file is opened for a bad request)
//   2. Load the master sheet
//   3. Load every target sheet concurrently; a failed load is carried to
//      the engine, which applies the failure policy
//   4. Run the match engine
//   5. Write the annotated master and the unmatched workbook
//   6. Write the run summary (and an error log when targets failed)
//
// CANCELLATION:
//   The context is honoured by the engine and checked again before any
//   artifact is written, so a cancelled run leaves nothing behind.
//
// =============================================================================

package processor

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ginjaninja78/ticket-reconciler/internal/config"
	"github.com/ginjaninja78/ticket-reconciler/internal/csvparser"
	"github.com/ginjaninja78/ticket-reconciler/internal/logging"
	"github.com/ginjaninja78/ticket-reconciler/internal/matcher"
	"github.com/ginjaninja78/ticket-reconciler/internal/reconciliation"
	"github.com/ginjaninja78/ticket-reconciler/internal/types"
	"github.com/ginjaninja78/ticket-reconciler/internal/xlsxparser"
	"github.com/ginjaninja78/ticket-reconciler/internal/xlsxwriter"
	"github.com/ginjaninja78/ticket-reconciler/pkg/utils"
)

// =============================================================================
// PROCESSOR STRUCTURE
// =============================================================================

// Processor runs reconciliation requests. It is safe for concurrent use.
type Processor struct {
	cfg    *config.MainConfig
	engine *matcher.Engine
	log    *slog.Logger

	// WriteSummary controls the run summary file. Default: true
	WriteSummary bool
}

// New creates a Processor from the main configuration. A nil logger
// discards output.
func New(cfg *config.MainConfig, log *slog.Logger) (*Processor, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if log == nil {
		log = logging.Discard()
	}
	opts := cfg.EngineOptions()
	opts.Logger = log
	engine, err := matcher.New(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create match engine: %w", err)
	}
	return &Processor{cfg: cfg, engine: engine, log: log.With("component", "processor"), WriteSummary: true}, nil
}

// =============================================================================
// SHEET LOADING
// =============================================================================

// Open reads a sheet, choosing the reader by file extension.
func Open(path, sheet string, csv config.CSVSettings) (*types.Sheet, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return xlsxparser.ReadSheet(path, sheet)
	case ".csv", ".txt", ".tsv":
		if strings.EqualFold(filepath.Ext(path), ".tsv") && csv.Delimiter == "," {
			csv.Delimiter = "\t"
		}
		return csvparser.ReadSheet(path, csv)
	default:
		return nil, fmt.Errorf("unsupported file type %q", filepath.Ext(path))
	}
}

// dataRows drops everything up to and including the header row.
func dataRows(sheet *types.Sheet, headerRow int) []types.Row {
	out := make([]types.Row, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		if row.Number > headerRow {
			out = append(out, row)
		}
	}
	return out
}

// loadTargets reads the targets concurrently, one goroutine per file up to
// MaxConcurrency, and returns them in request order.
func (p *Processor) loadTargets(ctx context.Context, opts ProcessExcelOptions) []matcher.Target {
	targets := make([]matcher.Target, len(opts.TargetPaths))
	limit := p.cfg.MaxConcurrency
	if limit < 1 {
		limit = 1
	}
	sem := make(chan struct{}, limit)

	var wg sync.WaitGroup
	for i, path := range opts.TargetPaths {
		wg.Add(1)
		go func(i int, path string) {
			defer wg.Done()

			t := matcher.Target{
				FilePath:     path,
				MatchColumns: opts.TargetMatchColIndices[path],
				MatchLabel:   opts.TargetMatchStrings[path],
			}
			if rng, ok := opts.TargetRowRanges[path]; ok {
				t.Range = &rng
			}

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				t.Err = ctx.Err()
				targets[i] = t
				return
			}
			defer func() { <-sem }()

			sheet, err := Open(path, opts.TargetSheets[path], p.cfg.CSV)
			if err != nil {
				p.log.Warn("failed to load target file", "file", path, "error", err)
				t.Err = err
			} else {
				t.Rows = dataRows(sheet, opts.targetHeaderRow(path))
				p.log.Debug("loaded target file", "file", path, "rows", len(t.Rows))
			}
			targets[i] = t
		}(i, path)
	}
	wg.Wait()
	return targets
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

// Process executes the reconciliation pipeline for one request.
func (p *Processor) Process(ctx context.Context, opts ProcessExcelOptions) ProcessExcelResult {
	start := time.Now()

	// =========================================================================
	// STEP 1: VALIDATE REQUEST
	// =========================================================================

	if err := opts.Validate(); err != nil {
		return failed(err)
	}

	// =========================================================================
	// STEP 2: LOAD SHEETS
	// =========================================================================

	master, err := Open(opts.MasterPath, opts.MasterSheet, p.cfg.CSV)
	if err != nil {
		return failed(fmt.Errorf("failed to load master file: %w", err))
	}
	p.log.Info("loaded master file", "file", opts.MasterPath, "rows", len(master.Rows))

	targets := p.loadTargets(ctx, opts)
	if err := ctx.Err(); err != nil {
		return failed(err)
	}

	// =========================================================================
	// STEP 3: MATCH
	// =========================================================================

	res, err := p.engine.Reconcile(ctx, matcher.Master{
		Rows:         dataRows(master, opts.MasterHeaderRow),
		IDColumns:    opts.MasterColIndices,
		ResultColumn: opts.MasterResultColIndex,
		Range:        opts.MasterRowRange,
	}, targets, matcher.Sentences{Match: opts.MatchSentence, NoMatch: opts.NoMatchSentence})
	if err != nil {
		return failed(err)
	}

	// =========================================================================
	// STEP 4: WRITE ARTIFACTS
	// =========================================================================

	if err := ctx.Err(); err != nil {
		return failed(err)
	}
	res, err = p.writeArtifacts(opts, master, res)
	if err != nil {
		return failed(err)
	}

	out := buildResult(res)
	out.OutputPath = opts.OutputPath

	if p.WriteSummary {
		summaryPath, err := p.writeLogs(opts, res, start)
		if err != nil {
			// The artifacts are complete; a missing summary does not fail the run.
			p.log.Warn("failed to write run summary", "error", err)
		}
		out.SummaryPath = summaryPath
	}

	stats := res.Stats()
	p.log.Info("reconciliation complete",
		"run_id", res.RunID(),
		"matched", stats.MatchedMasterRows,
		"unmatched", stats.UnmatchedMasterRows,
		"percentage", stats.MatchPercentage,
		"elapsed", time.Since(start))
	return out
}

func (p *Processor) writeArtifacts(opts ProcessExcelOptions, master *types.Sheet, res *reconciliation.Result) (*reconciliation.Result, error) {
	var header *types.Row
	if opts.MasterHeaderRow > 0 {
		if row, ok := master.Row(opts.MasterHeaderRow); ok {
			header = &row
		}
	}

	col, err := xlsxwriter.WriteAnnotated(opts.OutputPath, master, res.Verdicts(), xlsxwriter.AnnotateOptions{
		ResultColumn: opts.MasterResultColIndex,
		HeaderRow:    opts.MasterHeaderRow,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to write annotated master: %w", err)
	}
	p.log.Debug("wrote annotated master", "file", opts.OutputPath, "result_column", col)

	unmatched := res.UnmatchedRows()
	if len(unmatched) == 0 {
		return res, nil
	}
	name := utils.GenerateOutputFileName("unmatched_{original}_{uuid}", ".xlsx", map[string]string{
		"original": opts.MasterPath,
	})
	path := filepath.Join(filepath.Dir(opts.OutputPath), name)
	if err := xlsxwriter.WriteUnmatched(path, header, unmatched); err != nil {
		return nil, fmt.Errorf("failed to write unmatched rows: %w", err)
	}
	p.log.Debug("wrote unmatched rows", "file", path, "rows", len(unmatched))
	return res.WithUnmatchedPath(path), nil
}

func (p *Processor) writeLogs(opts ProcessExcelOptions, res *reconciliation.Result, start time.Time) (string, error) {
	dir := filepath.Dir(opts.OutputPath)
	stats := res.Stats()
	summary := utils.RunSummary{
		RunID:         res.RunID(),
		StartTime:     start,
		EndTime:       time.Now(),
		MasterFile:    opts.MasterPath,
		OutputFile:    opts.OutputPath,
		UnmatchedFile: res.UnmatchedPath(),
		TotalRows:     stats.TotalMasterRows,
		Matched:       stats.MatchedMasterRows,
		Unmatched:     stats.UnmatchedMasterRows,
		Percentage:    stats.MatchPercentage,
	}
	for _, fs := range res.PerFileStats() {
		summary.Files = append(summary.Files, utils.FileSummary{
			InputFile: fs.FilePath, Total: fs.Total, Matched: fs.Matched, Percentage: fs.Percentage,
		})
	}

	var entries []utils.ErrorLogEntry
	for _, f := range res.Failures() {
		summary.FailedFiles = append(summary.FailedFiles, utils.FailedFileInfo{InputFile: f.FilePath, ErrorMessage: f.Error})
		entries = append(entries, utils.ErrorLogEntry{
			Timestamp: summary.EndTime, FileName: f.FilePath, ErrorType: "load", ErrorMessage: f.Error,
		})
	}
	if _, err := utils.WriteErrorLog(entries, dir, res.RunID()); err != nil {
		return "", err
	}
	return utils.WriteSummaryLog(summary, dir)
}

func buildResult(res *reconciliation.Result) ProcessExcelResult {
	stats := res.Stats()
	out := ProcessExcelResult{
		Success:       true,
		RunID:         res.RunID(),
		Stats:         &stats,
		PerFileStats:  res.PerFileStats(),
		UnmatchedPath: res.UnmatchedPath(),
		Failures:      res.Failures(),
	}
	for _, m := range res.MatchedRows() {
		out.MatchedRows = append(out.MatchedRows, MatchedRow{
			SourceFile: m.SourceFile,
			Data:       m.Data.Values(),
			RowNumber:  m.RowNumber,
		})
	}
	return out
}
