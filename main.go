// =============================================================================
// Ticket Reconciler - Main Entry Point
// =============================================================================
//
// USAGE:
//   recon preview    - Inspect a sheet and suggest the identifier column
//   recon classify   - Score a sheet's headers against the column roles
//   recon match      - Run a reconciliation job
//   recon invoice    - Apply an edit script to a draft invoice
//   recon version    - Display the application version
//
// ARCHITECTURE:
//   - cmd/           : CLI command definitions (Cobra)
//   - internal/      : Core logic (matching, invoices, readers, writers)
//   - pkg/           : Shared file utilities
//
// =============================================================================

package main

import (
	"github.com/ginjaninja78/ticket-reconciler/cmd"
)

func main() {
	cmd.Execute()
}
