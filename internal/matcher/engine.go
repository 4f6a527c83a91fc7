// =============================================================================
// Ticket Reconciler - Match Engine
// =============================================================================
//
// The engine decides, for every master row, whether a target file contains
// the same identifier and which one.
//
// MATCHING RULE:
//   For each master row (row order), target files are tried in configured
//   order and, inside a file, rows in row order. The first target row with a
//   non-empty identical key wins and the search stops for that master row.
//
// EXECUTION:
//   1. Validate every row range and column selection
//   2. Apply the failure policy to targets that could not be loaded
//   3. Index every target file concurrently: key -> first row number
//   4. Scan the master rows and probe the indexes in configured file order
//   5. Build the immutable Result
//
//   Because each index keeps only the first row per key and the probe order
//   is fixed, the outcome is identical to a nested sequential scan no matter
//   how the indexing goroutines are scheduled.
//
// CANCELLATION:
//   The context is checked before each target file, between row batches
//   while indexing, and between master row batches. A cancelled run returns
//   the context error and no Result.
//
// =============================================================================

package matcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/ginjaninja78/ticket-reconciler/internal/reconciliation"
	"github.com/ginjaninja78/ticket-reconciler/internal/types"
	"github.com/ginjaninja78/ticket-reconciler/internal/validation"
)

// =============================================================================
// INPUTS
// =============================================================================

// Master is the authoritative ledger to reconcile.
type Master struct {
	// Rows are the sheet rows; only those inside Range take part.
	Rows []types.Row

	// IDColumns are the identifier columns, concatenated in this order.
	IDColumns []int

	// ResultColumn is where the exporter writes the label; -1 when unset.
	// The engine does not interpret it.
	ResultColumn int

	// Range restricts the participating rows. nil means every row.
	Range *types.RowRange
}

// Target is one customer-supplied sheet.
type Target struct {
	FilePath     string
	Rows         []types.Row
	MatchColumns []int

	// MatchLabel is an opaque display string appended to the match
	// sentence of rows matched in this file.
	MatchLabel string

	Range *types.RowRange

	// Err is set when the file could not be loaded. Rows are ignored then.
	Err error
}

// Sentences are the display labels written for each verdict.
type Sentences struct {
	Match   string
	NoMatch string
}

// =============================================================================
// OPTIONS
// =============================================================================

// FailurePolicy decides what a target load failure does to the run.
type FailurePolicy string

const (
	// FailureSkip records the failure and continues with zero rows from the file.
	FailureSkip FailurePolicy = "skip"

	// FailureAbort fails the whole run.
	FailureAbort FailurePolicy = "abort"
)

// ParseFailurePolicy reads a policy name. An empty name is FailureSkip.
func ParseFailurePolicy(name string) (FailurePolicy, error) {
	switch p := FailurePolicy(strings.ToLower(strings.TrimSpace(name))); p {
	case "":
		return FailureSkip, nil
	case FailureSkip, FailureAbort:
		return p, nil
	default:
		return "", fmt.Errorf("unknown failure policy %q", name)
	}
}

// ErrTargetFailed wraps a target load failure under FailureAbort.
var ErrTargetFailed = errors.New("target file failed to load")

// Options configure an Engine.
type Options struct {
	// Concurrency bounds how many target files are indexed at once.
	// Values below 1 mean 1.
	Concurrency int

	// BatchSize is the number of rows scanned between cancellation checks.
	// Values below 1 mean 500.
	BatchSize int

	// FailurePolicy defaults to FailureSkip.
	FailurePolicy FailurePolicy

	// Normalizers are applied to every key part after trim and lower-case.
	Normalizers []Action

	// Logger defaults to a discarding logger.
	Logger *slog.Logger
}

const defaultBatchSize = 500

// =============================================================================
// ENGINE
// =============================================================================

// Engine runs reconciliations. It holds no per-run state and is safe for
// concurrent use.
type Engine struct {
	opts  Options
	keyer *Keyer
	log   *slog.Logger
}

// New validates the options and returns an Engine.
func New(opts Options) (*Engine, error) {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.BatchSize < 1 {
		opts.BatchSize = defaultBatchSize
	}
	policy, err := ParseFailurePolicy(string(opts.FailurePolicy))
	if err != nil {
		return nil, err
	}
	opts.FailurePolicy = policy
	keyer, err := NewKeyer(opts.Normalizers)
	if err != nil {
		return nil, err
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Engine{opts: opts, keyer: keyer, log: log.With("component", "matcher")}, nil
}

// targetIndex is the scan result of one target file.
type targetIndex struct {
	total int
	first map[string]int
}

// Reconcile matches the master rows against the targets.
func (e *Engine) Reconcile(ctx context.Context, master Master, targets []Target, s Sentences) (*reconciliation.Result, error) {
	if err := validateInputs(master, targets); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	log := e.log.With("run_id", runID)
	log.Debug("starting reconciliation", "targets", len(targets), "master_rows", len(master.Rows))

	for _, t := range targets {
		if t.Err != nil && e.opts.FailurePolicy == FailureAbort {
			return nil, fmt.Errorf("%w: %s: %v", ErrTargetFailed, t.FilePath, t.Err)
		}
	}

	indexes, err := e.indexTargets(ctx, targets)
	if err != nil {
		return nil, err
	}

	b := reconciliation.NewBuilder(runID)
	for i, t := range targets {
		if t.Err != nil {
			log.Warn("skipping target file", "file", t.FilePath, "error", t.Err)
			b.Fail(t.FilePath, t.Err)
			continue
		}
		b.AddFile(t.FilePath, indexes[i].total)
	}

	rows := types.InRange(master.Rows, master.Range)
	for n, row := range rows {
		if n%e.opts.BatchSize == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		key := e.keyer.Key(row, master.IDColumns)
		if key == "" {
			b.Miss(row, s.NoMatch)
			continue
		}

		matched := false
		for i, t := range targets {
			if indexes[i] == nil {
				continue
			}
			if targetRow, ok := indexes[i].first[key]; ok {
				b.Match(row, t.FilePath, targetRow, matchLabel(s.Match, t.MatchLabel))
				matched = true
				break
			}
		}
		if !matched {
			b.Miss(row, s.NoMatch)
		}
	}

	res := b.Build()
	st := res.Stats()
	log.Info("reconciliation complete",
		"total", st.TotalMasterRows,
		"matched", st.MatchedMasterRows,
		"unmatched", st.UnmatchedMasterRows,
		"percentage", st.MatchPercentage,
		"failed_targets", len(res.Failures()),
	)
	return res, nil
}

// indexTargets scans every loadable target concurrently. The returned slice
// is aligned with targets; failed targets have a nil entry.
func (e *Engine) indexTargets(ctx context.Context, targets []Target) ([]*targetIndex, error) {
	indexes := make([]*targetIndex, len(targets))
	errs := make([]error, len(targets))

	sem := make(chan struct{}, e.opts.Concurrency)
	var wg sync.WaitGroup

	for i := range targets {
		if targets[i].Err != nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			errs[i] = err
			break
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			indexes[i], errs[i] = e.indexTarget(ctx, targets[i])
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return indexes, nil
}

func (e *Engine) indexTarget(ctx context.Context, t Target) (*targetIndex, error) {
	rows := types.InRange(t.Rows, t.Range)
	idx := &targetIndex{total: len(rows), first: make(map[string]int, len(rows))}

	for n, row := range rows {
		if n%e.opts.BatchSize == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		key := e.keyer.Key(row, t.MatchColumns)
		if key == "" {
			continue
		}
		if _, seen := idx.first[key]; !seen {
			idx.first[key] = row.Number
		}
	}
	return idx, nil
}

func validateInputs(master Master, targets []Target) error {
	v := validation.New()
	v.RowRange("masterRowRange", master.Range)
	v.Columns("masterColIndices", master.IDColumns)
	v.Column("masterResultColIndex", master.ResultColumn)
	seen := make(map[string]bool, len(targets))
	for _, t := range targets {
		v.Path("targetPaths", t.FilePath)
		if seen[t.FilePath] {
			v.Add("targetPaths", t.FilePath, validation.ErrInvalidValue, "target file listed twice")
		}
		seen[t.FilePath] = true
		v.RowRange(fmt.Sprintf("targetRowRanges[%s]", t.FilePath), t.Range)
		if t.Err == nil {
			v.Columns(fmt.Sprintf("targetMatchColIndices[%s]", t.FilePath), t.MatchColumns)
		}
	}
	return v.Err()
}

func matchLabel(sentence, label string) string {
	if label == "" {
		return sentence
	}
	if sentence == "" {
		return label
	}
	return sentence + " - " + label
}
