// =============================================================================
// Ticket Reconciler - Column Classifier
// =============================================================================
//
// This module proposes which spreadsheet column plays which role in a
// reconciliation run. Every header name is scored against a keyword list per
// role:
//
//   | Score | Condition                                              |
//   |-------|--------------------------------------------------------|
//   | 1.0   | normalized header equals a normalized keyword          |
//   | 0.8   | normalized header contains a normalized keyword        |
//   | 0.0   | otherwise                                              |
//
// Each role is scored in its own pass. The best header wins (first column on
// ties) and the role is assigned only when the best score exceeds Threshold.
// Because the passes are independent, the same column may be proposed for
// more than one role. Callers that need a one-to-one mapping must resolve
// that themselves; unassigned roles require a manual column selection.
//
// =============================================================================

package classifier

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/ginjaninja78/ticket-reconciler/internal/types"
)

// =============================================================================
// ROLES
// =============================================================================

// Role is the purpose a column serves in a reconciliation run.
type Role string

const (
	RoleID          Role = "id"
	RoleDescription Role = "description"
	RoleQuantity    Role = "quantity"
	RoleCustomer    Role = "customer"
	RoleResult      Role = "result"
)

// Roles lists every role in display order.
var Roles = []Role{RoleID, RoleDescription, RoleQuantity, RoleCustomer, RoleResult}

// Threshold is the confidence a role's best header must exceed to be assigned.
const Threshold = 0.4

const (
	exactScore     = 1.0
	substringScore = 0.8
)

// Keywords maps each role to the header names that identify it.
type Keywords map[Role][]string

// DefaultKeywords returns the built-in keyword lists.
func DefaultKeywords() Keywords {
	return Keywords{
		RoleID: {
			"ticket", "ticket no", "ticket number", "docket", "docket no",
			"reference", "ref", "transaction id", "delivery no", "id",
		},
		RoleDescription: {
			"description", "desc", "product", "material", "item",
		},
		RoleQuantity: {
			"quantity", "qty", "tonnes", "tons", "tonnage", "net weight", "weight",
		},
		RoleCustomer: {
			"customer", "customer name", "client", "account", "company",
		},
		RoleResult: {
			"result", "status", "match", "reconciled", "remarks",
		},
	}
}

// =============================================================================
// ASSIGNMENT
// =============================================================================

// Match is the proposed column for one role.
type Match struct {
	Column     int     `json:"columnIndex"`
	Header     string  `json:"header"`
	Confidence float64 `json:"confidence"`
}

// Assignment holds only the roles whose best score exceeded Threshold.
type Assignment map[Role]Match

// Get returns the match for a role and whether it was assigned.
func (a Assignment) Get(role Role) (Match, bool) {
	m, ok := a[role]
	return m, ok
}

// Unassigned lists the roles that need a manual column selection, in
// display order.
func (a Assignment) Unassigned() []Role {
	var out []Role
	for _, r := range Roles {
		if _, ok := a[r]; !ok {
			out = append(out, r)
		}
	}
	return out
}

// SharedColumns returns the columns proposed for more than one role, with
// the roles that share each of them.
func (a Assignment) SharedColumns() map[int][]Role {
	byColumn := make(map[int][]Role)
	for _, r := range Roles {
		if m, ok := a[r]; ok {
			byColumn[m.Column] = append(byColumn[m.Column], r)
		}
	}
	for col, roles := range byColumn {
		if len(roles) < 2 {
			delete(byColumn, col)
		}
	}
	return byColumn
}

// =============================================================================
// CLASSIFIER
// =============================================================================

// Classifier scores headers against normalized keyword lists.
type Classifier struct {
	keywords map[Role][]string
}

// New builds a Classifier. Roles missing from kw fall back to the built-in
// keywords, so callers can override only the roles they care about.
func New(kw Keywords) *Classifier {
	defaults := DefaultKeywords()
	c := &Classifier{keywords: make(map[Role][]string, len(Roles))}
	for _, r := range Roles {
		list, ok := kw[r]
		if !ok || list == nil {
			list = defaults[r]
		}
		c.keywords[r] = normalizeAll(list)
	}
	return c
}

// Default returns a Classifier using the built-in keywords.
func Default() *Classifier {
	return New(nil)
}

// Classify proposes a column for every role it is confident about.
func (c *Classifier) Classify(headers []types.Header) Assignment {
	out := make(Assignment)
	for _, r := range Roles {
		best, ok := c.Best(r, headers)
		if ok && best.Confidence > Threshold {
			out[r] = best
		}
	}
	return out
}

// Best returns the highest-scoring header for a role regardless of the
// threshold. The first header wins ties. ok is false when headers is empty.
func (c *Classifier) Best(role Role, headers []types.Header) (Match, bool) {
	if len(headers) == 0 {
		return Match{}, false
	}
	best := Match{Column: headers[0].Index, Header: headers[0].Name, Confidence: -1}
	for _, h := range headers {
		score := c.Score(role, h.Name)
		if score > best.Confidence {
			best = Match{Column: h.Index, Header: h.Name, Confidence: score}
		}
	}
	return best, true
}

// Score returns the confidence that a header name identifies the role.
func (c *Classifier) Score(role Role, header string) float64 {
	name := Normalize(header)
	if name == "" {
		return 0
	}
	score := 0.0
	for _, kw := range c.keywords[role] {
		if kw == "" {
			continue
		}
		if name == kw {
			return exactScore
		}
		if strings.Contains(name, kw) {
			score = substringScore
		}
	}
	return score
}

// Keywords returns the normalized keyword list of a role, sorted.
func (c *Classifier) Keywords(role Role) []string {
	out := append([]string(nil), c.keywords[role]...)
	sort.Strings(out)
	return out
}

// =============================================================================
// NORMALIZATION
// =============================================================================

// Normalize folds compatibility characters (full-width digits, ligatures),
// lower-cases, and drops everything that is not a letter or digit.
// "Ticket #" becomes "ticket".
func Normalize(s string) string {
	s = norm.NFKC.String(s)
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

func normalizeAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if n := Normalize(v); n != "" {
			out = append(out, n)
		}
	}
	return out
}
