package xlsxparser

import (
	"strings"

	"github.com/ginjaninja78/ticket-reconciler/internal/classifier"
	"github.com/ginjaninja78/ticket-reconciler/internal/types"
)

// DefaultScanRows is how many leading rows are inspected for a header.
const DefaultScanRows = 10

var footerPrefixes = []string{"grand total", "subtotal", "sub total", "total"}

// PreviewResult is what the column picker shows for one sheet.
type PreviewResult struct {
	Success bool `json:"success"`

	// Data holds the display values of every row, header included.
	Data     [][]string `json:"data,omitempty"`
	RowCount int        `json:"rowCount"`

	// HeaderRow is the 1-based header row; 0 when the sheet is empty.
	HeaderRow int `json:"headerRow"`

	// FooterStartRow is the first totals row after the header; 0 when absent.
	FooterStartRow int `json:"footerStartRow"`

	// SuggestedColumn is the identifier column, -1 when none was confident.
	SuggestedColumn int `json:"suggestedColumn"`

	// SuggestedRowRange spans the data rows between header and footer.
	SuggestedRowRange *types.RowRange `json:"suggestedRowRange,omitempty"`

	// Roles holds every confident column proposal of the header row.
	Roles classifier.Assignment `json:"roles,omitempty"`

	Error string `json:"error,omitempty"`
}

// PreviewOptions tune header detection.
type PreviewOptions struct {
	// ScanRows defaults to DefaultScanRows.
	ScanRows int

	// MaxRows caps Data; 0 keeps every row.
	MaxRows int
}

// Preview locates the header, footer and identifier column of a sheet.
// The header is the leading row on which the classifier is confident about
// the most roles, else the first non-empty row.
func Preview(sheet *types.Sheet, c *classifier.Classifier, opts PreviewOptions) PreviewResult {
	res := PreviewResult{Success: true, SuggestedColumn: -1}
	if sheet == nil {
		return PreviewResult{SuggestedColumn: -1, Error: "no sheet to preview"}
	}
	if c == nil {
		c = classifier.Default()
	}
	if opts.ScanRows <= 0 {
		opts.ScanRows = DefaultScanRows
	}

	res.RowCount = len(sheet.Rows)
	for i, row := range sheet.Rows {
		if opts.MaxRows > 0 && i >= opts.MaxRows {
			break
		}
		res.Data = append(res.Data, row.Values())
	}

	header, roles := detectHeader(sheet.Rows, c, opts.ScanRows)
	if header == nil {
		return res
	}
	res.HeaderRow = header.Number
	res.Roles = roles
	if m, ok := roles.Get(classifier.RoleID); ok {
		res.SuggestedColumn = m.Column
	}

	last := 0
	for _, row := range sheet.Rows {
		if row.Number <= header.Number || row.IsEmpty() {
			continue
		}
		if isFooter(row) {
			res.FooterStartRow = row.Number
			break
		}
		last = row.Number
	}
	if last > 0 {
		res.SuggestedRowRange = &types.RowRange{Start: header.Number + 1, End: last}
	}
	return res
}

// detectHeader picks the leading row with the most confident roles, the
// earliest on ties. Title rows like "Customer statement" score one role at
// most, so a real header row beats them.
func detectHeader(rows []types.Row, c *classifier.Classifier, scan int) (*types.Row, classifier.Assignment) {
	var (
		best      *types.Row
		bestRoles classifier.Assignment
		fallback  *types.Row
	)
	for i := range rows {
		row := &rows[i]
		if row.IsEmpty() {
			continue
		}
		if fallback == nil {
			fallback = row
		}
		if i >= scan {
			break
		}
		if roles := c.Classify(types.HeadersFromRow(*row)); len(roles) > len(bestRoles) {
			best, bestRoles = row, roles
		}
	}
	if best != nil {
		return best, bestRoles
	}
	if fallback == nil {
		return nil, nil
	}
	return fallback, classifier.Assignment{}
}

func isFooter(row types.Row) bool {
	for _, cell := range row.Cells {
		if cell.IsEmpty() {
			continue
		}
		v := strings.ToLower(strings.TrimSpace(cell.String()))
		for _, p := range footerPrefixes {
			if strings.HasPrefix(v, p) {
				return true
			}
		}
		return false
	}
	return false
}
