// =============================================================================
// Ticket Reconciler - CSV Sheet Reader
// =============================================================================
//
// This module reads CSV exports into the same raw cell grid the XLSX reader
// produces, so the rest of the pipeline never knows where a sheet came from.
//
// FEATURES:
//   - Different delimiters (comma, pipe, tab, semicolon)
//   - UTF-8 (with or without BOM), ISO-8859-1 and Windows-1252 input
//   - Ragged rows: rows may have different field counts
//   - Row numbers are the physical line a record starts on, so blank
//     lines leave gaps rather than shifting later rows
//
// CSV carries no cell types, so every non-blank field becomes a text cell.
// Keys are compared on display values, which makes "1001" in a CSV equal to
// the number 1001 in a workbook.
//
// =============================================================================

package csvparser

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/ginjaninja78/ticket-reconciler/internal/config"
	"github.com/ginjaninja78/ticket-reconciler/internal/types"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadSheet reads a CSV file. The sheet name is the file's base name.
func ReadSheet(filePath string, settings config.CSVSettings) (*types.Sheet, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	rows, err := Read(file, settings)
	if err != nil {
		return nil, err
	}
	return &types.Sheet{Path: filePath, Name: filepath.Base(filePath), Rows: rows}, nil
}

// Read parses CSV records from r.
func Read(r io.Reader, settings config.CSVSettings) ([]types.Row, error) {
	decoded, err := decode(r, settings.Encoding)
	if err != nil {
		return nil, err
	}

	csvReader := csv.NewReader(decoded)
	configureReader(csvReader, settings)

	var rows []types.Row
	for {
		record, err := csvReader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV: %w", err)
		}
		line, _ := csvReader.FieldPos(0)
		rows = append(rows, types.RowFromStrings(line, record))
	}
	return trimTrailingEmpty(rows), nil
}

// decode wraps r so it yields UTF-8.
func decode(r io.Reader, encoding string) (io.Reader, error) {
	switch strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(encoding), "_", "-")) {
	case "", "UTF-8", "UTF8":
		br := bufio.NewReader(r)
		if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
			_, _ = br.Discard(len(utf8BOM))
		}
		return br, nil
	case "ISO-8859-1", "LATIN1", "LATIN-1":
		return transform.NewReader(r, charmap.ISO8859_1.NewDecoder()), nil
	case "WINDOWS-1252", "CP1252":
		return transform.NewReader(r, charmap.Windows1252.NewDecoder()), nil
	default:
		return nil, fmt.Errorf("unsupported encoding %q", encoding)
	}
}

// configureReader configures the CSV reader based on the settings.
func configureReader(reader *csv.Reader, settings config.CSVSettings) {
	switch settings.Delimiter {
	case "\\t", "\t", "tab", "TAB":
		reader.Comma = '\t'
	case "|", "pipe", "PIPE":
		reader.Comma = '|'
	case ";", "semicolon":
		reader.Comma = ';'
	default:
		if r := []rune(settings.Delimiter); len(r) > 0 {
			reader.Comma = r[0]
		} else {
			reader.Comma = ','
		}
	}

	// Ragged exports are common; keep every field we get.
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
}

func trimTrailingEmpty(rows []types.Row) []types.Row {
	end := len(rows)
	for end > 0 && rows[end-1].IsEmpty() {
		end--
	}
	return rows[:end]
}
