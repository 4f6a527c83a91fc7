// =============================================================================
// Ticket Reconciler - File Management Utilities
// =============================================================================
//
// This module provides the file operations shared by the exporters and the
// processor:
//   - Creating output directories
//   - Generating output file names (uuid, timestamp, original name)
//   - Writing files atomically (temp file + rename)
//   - Writing the per-run summary and error logs
//
// ATOMIC WRITES:
//   Every artifact is written to a temporary file in the destination
//   directory and renamed into place once complete. A cancelled or failed
//   write leaves no partial file behind.
//
// =============================================================================

package utils

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// DIRECTORIES AND NAMES
// =============================================================================

// EnsureDir creates dir and its parents if missing.
func EnsureDir(dir string) error {
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

// GenerateOutputFileName expands a file name format.
//
// Placeholders:
//
//	{uuid}      - A random UUID
//	{timestamp} - Current timestamp (YYYYMMDD_HHMMSS)
//	{date}      - Current date (YYYYMMDD)
//	{time}      - Current time (HHMMSS)
//	{original}  - params["original"] without its extension
//
// Any other params["key"] fills {key}. ext is appended when the result does
// not already end with it.
//
// Example:
//
//	GenerateOutputFileName("unmatched_{original}_{uuid}", ".xlsx",
//	    map[string]string{"original": "ledger.xlsx"})
//	=> "unmatched_ledger_a1b2c3d4-e5f6-7890-abcd-ef1234567890.xlsx"
func GenerateOutputFileName(format, ext string, params map[string]string) string {
	now := time.Now()

	replacements := map[string]string{
		"{uuid}":      uuid.New().String(),
		"{timestamp}": now.Format("20060102_150405"),
		"{date}":      now.Format("20060102"),
		"{time}":      now.Format("150405"),
	}
	for key, value := range params {
		if key == "original" {
			base := filepath.Base(value)
			value = strings.TrimSuffix(base, filepath.Ext(base))
		}
		replacements["{"+key+"}"] = value
	}

	result := format
	for placeholder, value := range replacements {
		result = strings.ReplaceAll(result, placeholder, value)
	}

	if ext != "" && !strings.HasSuffix(strings.ToLower(result), strings.ToLower(ext)) {
		result += ext
	}
	return result
}

// FileExists reports whether path names an existing file.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// =============================================================================
// ATOMIC WRITES
// =============================================================================

// WriteFileAtomic streams write's output into path. The destination only
// appears once write returned nil and the data reached the disk.
func WriteFileAtomic(path string, write func(w io.Writer) error) (err error) {
	dir := filepath.Dir(path)
	if err := EnsureDir(dir); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	bw := bufio.NewWriter(tmp)
	if err = write(bw); err != nil {
		return err
	}
	if err = bw.Flush(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync %s: %w", path, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to move %s into place: %w", path, err)
	}
	return nil
}

// =============================================================================
// ERROR LOG GENERATION
// =============================================================================

// ErrorLogEntry represents a single error log entry.
type ErrorLogEntry struct {
	Timestamp    time.Time
	FileName     string
	ErrorType    string
	ErrorMessage string
}

// WriteErrorLog writes error entries to a log file in outputDir. Nothing is
// written for an empty list and the returned path is empty.
func WriteErrorLog(entries []ErrorLogEntry, outputDir, runID string) (string, error) {
	if len(entries) == 0 {
		return "", nil
	}

	logPath := filepath.Join(outputDir, fmt.Sprintf("error_log_%s.txt", runID))
	err := WriteFileAtomic(logPath, func(w io.Writer) error {
		fmt.Fprintf(w, "Ticket Reconciler - Error Log\n"+
			"Run:          %s\n"+
			"Total Errors: %d\n"+
			"================================================================================\n\n",
			runID, len(entries))
		for i, e := range entries {
			fmt.Fprintf(w, "Error #%d\n", i+1)
			fmt.Fprintf(w, "  Time:    %s\n", e.Timestamp.Format("2006-01-02 15:04:05"))
			fmt.Fprintf(w, "  File:    %s\n", e.FileName)
			fmt.Fprintf(w, "  Type:    %s\n", e.ErrorType)
			_, err := fmt.Fprintf(w, "  Message: %s\n\n", e.ErrorMessage)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to write error log: %w", err)
	}
	return logPath, nil
}

// =============================================================================
// SUMMARY LOG GENERATION
// =============================================================================

// RunSummary contains the outcome of one reconciliation run.
type RunSummary struct {
	RunID     string
	StartTime time.Time
	EndTime   time.Time

	MasterFile    string
	OutputFile    string
	UnmatchedFile string

	TotalRows  int
	Matched    int
	Unmatched  int
	Percentage int

	Files       []FileSummary
	FailedFiles []FailedFileInfo
}

// FileSummary holds the counters of one target file.
type FileSummary struct {
	InputFile  string
	Total      int
	Matched    int
	Percentage int
}

// FailedFileInfo contains information about a target that failed to load.
type FailedFileInfo struct {
	InputFile    string
	ErrorMessage string
}

// WriteSummaryLog writes a run summary to outputDir and returns its path.
func WriteSummaryLog(summary RunSummary, outputDir string) (string, error) {
	name := fmt.Sprintf("reconciliation_summary_%s.txt", summary.RunID)
	if summary.RunID == "" {
		name = fmt.Sprintf("reconciliation_summary_%s.txt", time.Now().Format("20060102_150405"))
	}
	summaryPath := filepath.Join(outputDir, name)

	err := WriteFileAtomic(summaryPath, func(w io.Writer) error {
		duration := summary.EndTime.Sub(summary.StartTime)
		fmt.Fprintf(w, "Ticket Reconciler - Run Summary\n"+
			"================================================================================\n\n"+
			"Run Information:\n"+
			"  Run ID:         %s\n"+
			"  Start Time:     %s\n"+
			"  End Time:       %s\n"+
			"  Duration:       %s\n\n"+
			"Files:\n"+
			"  Master:         %s\n"+
			"  Annotated:      %s\n"+
			"  Unmatched:      %s\n\n"+
			"Statistics:\n"+
			"  Master Rows:    %d\n"+
			"  Matched:        %d\n"+
			"  Unmatched:      %d\n"+
			"  Match Rate:     %d%%\n\n",
			summary.RunID,
			summary.StartTime.Format("2006-01-02 15:04:05"),
			summary.EndTime.Format("2006-01-02 15:04:05"),
			duration.String(),
			summary.MasterFile,
			summary.OutputFile,
			orNone(summary.UnmatchedFile),
			summary.TotalRows,
			summary.Matched,
			summary.Unmatched,
			summary.Percentage)

		if len(summary.Files) > 0 {
			fmt.Fprintf(w, "Target Files:\n")
			fmt.Fprintf(w, "--------------------------------------------------------------------------------\n")
			for _, f := range summary.Files {
				fmt.Fprintf(w, "  %-40s %6d of %6d (%d%%)\n", filepath.Base(f.InputFile), f.Matched, f.Total, f.Percentage)
			}
			fmt.Fprintf(w, "\n")
		}

		if len(summary.FailedFiles) > 0 {
			fmt.Fprintf(w, "Failed Files:\n")
			fmt.Fprintf(w, "--------------------------------------------------------------------------------\n")
			for _, ff := range summary.FailedFiles {
				fmt.Fprintf(w, "  File:  %s\n", ff.InputFile)
				fmt.Fprintf(w, "  Error: %s\n\n", ff.ErrorMessage)
			}
		}

		_, err := fmt.Fprintf(w, "================================================================================\n"+
			"End of Summary\n")
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to write summary file: %w", err)
	}
	return summaryPath, nil
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
