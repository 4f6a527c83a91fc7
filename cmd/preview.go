// =============================================================================
// Ticket Reconciler - Preview and Classify Commands
// =============================================================================
//
// COMMAND USAGE:
//   recon preview  --file ledger.xlsx [--sheet Sheet1] [--max-rows 50]
//   recon preview  --file ledger.xlsx --list-sheets
//   recon classify --file ledger.xlsx [--sheet Sheet1]
//
// preview prints the sheet grid together with the detected header row,
// footer row, suggested identifier column and data row range. classify
// prints the column proposed for each role and the roles left unassigned.
//
// =============================================================================

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/ticket-reconciler/internal/classifier"
	"github.com/ginjaninja78/ticket-reconciler/internal/config"
	"github.com/ginjaninja78/ticket-reconciler/internal/processor"
	"github.com/ginjaninja78/ticket-reconciler/internal/types"
	"github.com/ginjaninja78/ticket-reconciler/internal/xlsxparser"
)

var (
	previewFile    string
	previewSheet   string
	previewMaxRows int
	listSheets     bool

	classifyFile  string
	classifySheet string
)

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Show a sheet with its detected header, footer and identifier column",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadRuntime(cmd)
		if err != nil {
			return err
		}
		if listSheets {
			names, err := xlsxparser.SheetNames(previewFile)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), names)
		}

		sheet, err := processor.Open(previewFile, previewSheet, cfg.CSV)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", previewFile, err)
		}
		res := xlsxparser.Preview(sheet, newClassifier(cfg), xlsxparser.PreviewOptions{
			ScanRows: cfg.HeaderScanRows,
			MaxRows:  previewMaxRows,
		})
		log.Debug("previewed sheet", "file", previewFile, "header_row", res.HeaderRow, "column", res.SuggestedColumn)
		return printJSON(cmd.OutOrStdout(), res)
	},
}

// classifyReport is the output of the classify command.
type classifyReport struct {
	HeaderRow     int                       `json:"headerRow"`
	Headers       []types.Header            `json:"headers"`
	Roles         classifier.Assignment     `json:"roles"`
	Unassigned    []classifier.Role         `json:"unassigned,omitempty"`
	SharedColumns map[int][]classifier.Role `json:"sharedColumns,omitempty"`
}

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Propose a column for each role from a sheet's header row",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadRuntime(cmd)
		if err != nil {
			return err
		}
		report, err := classifySheetFile(cfg, classifyFile, classifySheet)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), report)
	},
}

func classifySheetFile(cfg *config.MainConfig, path, sheetName string) (*classifyReport, error) {
	sheet, err := processor.Open(path, sheetName, cfg.CSV)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	c := newClassifier(cfg)
	preview := xlsxparser.Preview(sheet, c, xlsxparser.PreviewOptions{ScanRows: cfg.HeaderScanRows, MaxRows: 1})
	if !preview.Success {
		return nil, fmt.Errorf("failed to preview %s: %s", path, preview.Error)
	}

	report := &classifyReport{HeaderRow: preview.HeaderRow, Roles: classifier.Assignment{}}
	header, ok := sheet.Row(preview.HeaderRow)
	if !ok {
		report.Unassigned = classifier.Roles
		return report, nil
	}
	report.Headers = types.HeadersFromRow(header)
	report.Roles = c.Classify(report.Headers)
	report.Unassigned = report.Roles.Unassigned()
	if shared := report.Roles.SharedColumns(); len(shared) > 0 {
		report.SharedColumns = shared
	}
	return report, nil
}

func init() {
	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(classifyCmd)

	previewCmd.Flags().StringVar(&previewFile, "file", "", "Path to the XLSX or CSV file to preview")
	previewCmd.Flags().StringVar(&previewSheet, "sheet", "", "Worksheet name (default is the first sheet)")
	previewCmd.Flags().IntVar(&previewMaxRows, "max-rows", 50, "Maximum number of rows to print (0 prints all)")
	previewCmd.Flags().BoolVar(&listSheets, "list-sheets", false, "List the worksheets of an XLSX workbook and exit")
	previewCmd.MarkFlagRequired("file")

	classifyCmd.Flags().StringVar(&classifyFile, "file", "", "Path to the XLSX or CSV file to classify")
	classifyCmd.Flags().StringVar(&classifySheet, "sheet", "", "Worksheet name (default is the first sheet)")
	classifyCmd.MarkFlagRequired("file")
}
