// =============================================================================
// Ticket Reconciler - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. Every subcommand
// reads the main configuration and builds its logger through loadRuntime.
//
// COBRA CLI STRUCTURE:
//   rootCmd (recon)
//   ├── previewCmd  (recon preview)
//   ├── classifyCmd (recon classify)
//   ├── matchCmd    (recon match)
//   ├── invoiceCmd  (recon invoice)
//   └── versionCmd  (recon version)
//
// OUTPUT:
//   Command results are printed to stdout as indented JSON. Logs go to
//   stderr so the two never mix.
//
// =============================================================================

package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/ticket-reconciler/internal/classifier"
	"github.com/ginjaninja78/ticket-reconciler/internal/config"
	"github.com/ginjaninja78/ticket-reconciler/internal/logging"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the main configuration file. A missing file
// means the built-in defaults.
var cfgFile string

// verbose forces debug logging.
var verbose bool

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

var rootCmd = &cobra.Command{
	Use:   "recon",
	Short: "Ticket Reconciler - Match ledger tickets against customer exports",
	Long: `Ticket Reconciler compares a master ledger of ticket numbers against one
or more customer-supplied spreadsheets and reports, row by row, which tickets
were found and where.

Key Features:
  - XLSX and CSV inputs with header and footer detection
  - Header classification to suggest the identifier column
  - First-file-wins matching across several target files
  - Annotated master and unmatched-rows workbooks
  - Invoice line editing with 10mm/20mm excess surcharges

Example Usage:
  recon preview --file ledger.xlsx       # Inspect a sheet before matching
  recon match --job job.yaml             # Run a reconciliation job
  recon invoice --file draft.yaml        # Apply an edit script to an invoice`,

	SilenceUsage:  true,
	SilenceErrors: true,

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute runs the root command. It is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"config.yaml",
		"Path to the main configuration file (default is config.yaml)",
	)

	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable verbose output for debugging",
	)
}

// =============================================================================
// SHARED HELPERS
// =============================================================================

// loadRuntime loads the main configuration and builds the logger for a
// command. Logs are written to the command's stderr.
func loadRuntime(cmd *cobra.Command) (*config.MainConfig, *slog.Logger, error) {
	cfg, err := config.LoadMainConfig(cfgFile)
	if err != nil {
		return nil, nil, err
	}
	log, err := logging.New(cmd.ErrOrStderr(), logging.Options{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Verbose: verbose,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("invalid logging configuration: %w", err)
	}
	return cfg, log, nil
}

// newClassifier builds a classifier from the keyword overrides in cfg.
func newClassifier(cfg *config.MainConfig) *classifier.Classifier {
	kw := make(classifier.Keywords, len(cfg.Classifier.Keywords))
	for role, words := range cfg.Classifier.Keywords {
		kw[classifier.Role(role)] = words
	}
	return classifier.New(kw)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
