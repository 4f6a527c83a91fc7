// =============================================================================
// Ticket Reconciler - Match Command
// =============================================================================
//
// This file defines the 'match' command, which runs one reconciliation job.
//
// COMMAND USAGE:
//   recon match --job job.yaml [flags]
//
// FLAGS:
//   --job     : Path to the job file (YAML, see processor.ProcessExcelOptions)
//   --output  : Override the annotated master path from the job
//   --json    : Print the full result as JSON instead of a summary
//
// OUTPUT PATH:
//   When neither the job nor --output names an output path, the annotated
//   master is written to output_dir as annotated_<master>_<timestamp>.xlsx.
//
// An invalid job is rejected before any file is opened and its problems
// are listed on stderr.
//
// CANCELLATION:
//   Ctrl+C cancels the run. A cancelled run writes no artifacts.
//
// =============================================================================

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/ticket-reconciler/internal/processor"
	"github.com/ginjaninja78/ticket-reconciler/internal/validation"
	"github.com/ginjaninja78/ticket-reconciler/pkg/utils"
)

var (
	jobFile    string
	outputPath string
	jsonOutput bool
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Reconcile a master ledger against target files",
	Long: `The match command loads the master ledger and every target file named in
the job, finds each master ticket in the first target file that contains it,
and writes:

  - the annotated master, with a match or no-match sentence per row
  - a workbook of unmatched master rows next to it
  - a run summary, plus an error log when target files failed to load

Target files that fail to load are skipped or abort the run depending on
failure_policy in the main configuration.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		return runMatch(ctx, cmd)
	},
}

func init() {
	rootCmd.AddCommand(matchCmd)

	matchCmd.Flags().StringVar(&jobFile, "job", "", "Path to the reconciliation job file")
	matchCmd.Flags().StringVar(&outputPath, "output", "", "Path of the annotated master workbook")
	matchCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the result as JSON")
	matchCmd.MarkFlagRequired("job")
}

func runMatch(ctx context.Context, cmd *cobra.Command) error {
	cfg, log, err := loadRuntime(cmd)
	if err != nil {
		return err
	}

	opts, err := processor.LoadJob(jobFile)
	if err != nil {
		return err
	}
	if outputPath != "" {
		opts.OutputPath = outputPath
	}
	if opts.OutputPath == "" {
		name := utils.GenerateOutputFileName("annotated_{original}_{timestamp}", ".xlsx", map[string]string{
			"original": opts.MasterPath,
		})
		opts.OutputPath = filepath.Join(cfg.OutputDir, name)
	}
	if err := opts.Validate(); err != nil {
		fmt.Fprint(cmd.ErrOrStderr(), validation.FormatErrors(validation.AsErrors(err)))
		return fmt.Errorf("invalid job %s: %w", jobFile, err)
	}

	p, err := processor.New(cfg, log)
	if err != nil {
		return err
	}
	res := p.Process(ctx, opts)

	out := cmd.OutOrStdout()
	if jsonOutput {
		if err := printJSON(out, res); err != nil {
			return err
		}
	} else {
		printMatchSummary(out, res)
	}
	if !res.Success {
		if ctx.Err() != nil {
			return errors.New("reconciliation cancelled")
		}
		return fmt.Errorf("reconciliation failed: %s", res.Error)
	}
	return nil
}

func printMatchSummary(w io.Writer, res processor.ProcessExcelResult) {
	fmt.Fprintln(w, "=== Ticket Reconciler ===")
	if !res.Success {
		fmt.Fprintf(w, "  ✗ %s\n", res.Error)
		return
	}
	for _, fs := range res.PerFileStats {
		fmt.Fprintf(w, "  ✓ %-30s %d/%d matched (%d%%)\n", fs.FileName, fs.Matched, fs.Total, fs.Percentage)
	}
	for _, f := range res.Failures {
		fmt.Fprintf(w, "  ✗ %-30s %s\n", f.FileName, f.Error)
	}

	fmt.Fprintln(w, "\n=== Reconciliation Complete ===")
	fmt.Fprintf(w, "Master rows:     %d\n", res.Stats.TotalMasterRows)
	fmt.Fprintf(w, "Matched:         %d\n", res.Stats.MatchedMasterRows)
	fmt.Fprintf(w, "Unmatched:       %d\n", res.Stats.UnmatchedMasterRows)
	fmt.Fprintf(w, "Match rate:      %d%%\n", res.Stats.MatchPercentage)
	fmt.Fprintf(w, "Annotated:       %s\n", res.OutputPath)
	if res.UnmatchedPath != "" {
		fmt.Fprintf(w, "Unmatched rows:  %s\n", res.UnmatchedPath)
	}
	if res.SummaryPath != "" {
		fmt.Fprintf(w, "Summary:         %s\n", res.SummaryPath)
	}
}
