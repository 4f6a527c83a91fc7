// =============================================================================
// Ticket Reconciler - Invoice Command
// =============================================================================
//
// This file defines the 'invoice' command, which applies the edit script of
// an invoice file to its draft and prints the resulting items and totals.
//
// COMMAND USAGE:
//   recon invoice --file draft.yaml [--tax-rate 0.15] [--save edited.yaml]
//
// FLAGS:
//   --file      : Invoice file (see config.InvoiceFile)
//   --tax-rate  : Flat tax rate as a fraction; overrides invoice.tax_rate
//   --save      : Write the edited invoice back out as YAML
//
// An edit that fails stops the script; the invoice is printed as it was
// before that edit and the command exits with the edit's error.
//
// =============================================================================

package cmd

import (
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ginjaninja78/ticket-reconciler/internal/config"
	"github.com/ginjaninja78/ticket-reconciler/internal/invoice"
	"github.com/ginjaninja78/ticket-reconciler/pkg/utils"
)

var (
	invoicePath    string
	invoiceTaxRate string
	invoiceSave    string
)

// invoiceReport is the output of the invoice command.
type invoiceReport struct {
	Invoice invoice.Invoice `json:"invoice"`
	Totals  invoice.Totals  `json:"totals"`
	Error   string          `json:"error,omitempty"`
}

var invoiceCmd = &cobra.Command{
	Use:   "invoice",
	Short: "Apply an edit script to a draft invoice",
	Long: `The invoice command loads a draft invoice and its edits, applies them in
order and prints the items and totals.

When 10mm and 20mm items are both present and the 10mm share of their
combined quantity exceeds 40%, an "Excess 10mm" surcharge line is kept in
step with the items after every edit.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadRuntime(cmd)
		if err != nil {
			return err
		}

		rate := cfg.Invoice.TaxRate
		if invoiceTaxRate != "" {
			if rate, err = decimal.NewFromString(invoiceTaxRate); err != nil {
				return fmt.Errorf("invalid --tax-rate %q: %w", invoiceTaxRate, err)
			}
		}

		file, err := config.LoadInvoiceFile(invoicePath)
		if err != nil {
			return err
		}
		edits, err := file.ParsedEdits()
		if err != nil {
			return err
		}

		ed := invoice.NewEditor(invoice.FlatRate{Rate: rate}, log)
		inv, totals, applyErr := ed.Apply(file.Invoice, edits...)

		report := invoiceReport{Invoice: inv, Totals: totals}
		if applyErr != nil {
			report.Error = applyErr.Error()
		}
		if err := printJSON(cmd.OutOrStdout(), report); err != nil {
			return err
		}
		if applyErr != nil {
			return applyErr
		}

		if invoiceSave != "" {
			out := config.InvoiceFile{Invoice: inv}
			if err := utils.WriteFileAtomic(invoiceSave, func(w io.Writer) error {
				enc := yaml.NewEncoder(w)
				enc.SetIndent(2)
				if err := enc.Encode(out); err != nil {
					return err
				}
				return enc.Close()
			}); err != nil {
				return fmt.Errorf("failed to save invoice: %w", err)
			}
			log.Info("saved edited invoice", "file", invoiceSave, "items", len(inv.Items))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(invoiceCmd)

	invoiceCmd.Flags().StringVar(&invoicePath, "file", "", "Path to the invoice file")
	invoiceCmd.Flags().StringVar(&invoiceTaxRate, "tax-rate", "", "Flat tax rate as a fraction, e.g. 0.15")
	invoiceCmd.Flags().StringVar(&invoiceSave, "save", "", "Write the edited invoice to this YAML file")
	invoiceCmd.MarkFlagRequired("file")
}
