// =============================================================================
// Ticket Reconciler - Match Key Normalization
// =============================================================================
//
// A match key is built from one or more configured columns of a row. Every
// column value is trimmed and lower-cased, then run through the configured
// normalizer actions in order, and the parts are concatenated in column
// order.
//
// SUPPORTED ACTIONS:
//   - "trim"                : Remove leading and trailing whitespace
//   - "lowercase"           : Convert to lowercase
//   - "uppercase"           : Convert to uppercase
//   - "strip_non_alnum"     : Drop every rune that is not a letter or digit
//   - "strip_leading_zeros" : "000123" -> "123" (a lone "0" is kept)
//   - "replace"             : Replace Find with Value
//   - "regex_replace"       : Replace regular expression Find with Value
//   - "prepend_string"      : Add Value to the beginning
//   - "append_string"       : Add Value to the end
//   - "pad_zeros_to_length" : Left-pad with zeros to the length in Value
//
// The same actions apply to master and target keys, so two ledgers that
// format ticket numbers differently ("T-0042" vs "t42") can still match.
//
// =============================================================================

package matcher

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/ginjaninja78/ticket-reconciler/internal/types"
)

// Action is one key normalization step.
type Action struct {
	// Type selects the action. See the package comment for the list.
	Type string `yaml:"type" json:"type"`

	// Value is the action parameter (replacement, affix or target length).
	Value string `yaml:"value,omitempty" json:"value,omitempty"`

	// Find is the substring or pattern for "replace" and "regex_replace".
	Find string `yaml:"find,omitempty" json:"find,omitempty"`
}

type stepFunc func(string) string

// Keyer extracts normalized match keys from rows.
type Keyer struct {
	steps []stepFunc
}

// NewKeyer compiles the actions. Unknown action types and invalid patterns
// are reported here so a bad configuration fails before any row is scanned.
func NewKeyer(actions []Action) (*Keyer, error) {
	k := &Keyer{}
	for i, a := range actions {
		step, err := compileAction(a)
		if err != nil {
			return nil, fmt.Errorf("key normalizer %d (%s): %w", i+1, a.Type, err)
		}
		k.steps = append(k.steps, step)
	}
	return k, nil
}

// Normalize applies the base normalization and every configured action to
// one value.
func (k *Keyer) Normalize(value string) string {
	v := strings.ToLower(strings.TrimSpace(value))
	for _, step := range k.steps {
		v = step(v)
	}
	return v
}

// Key returns the concatenated key of the row for the given columns. A row
// whose every part normalizes to "" has an empty key and never matches.
func (k *Keyer) Key(row types.Row, columns []int) string {
	if len(columns) == 1 {
		return k.Normalize(row.Cell(columns[0]).String())
	}
	var sb strings.Builder
	for _, col := range columns {
		sb.WriteString(k.Normalize(row.Cell(col).String()))
	}
	return sb.String()
}

func compileAction(a Action) (stepFunc, error) {
	switch a.Type {
	case "trim":
		return strings.TrimSpace, nil

	case "lowercase":
		return strings.ToLower, nil

	case "uppercase":
		return strings.ToUpper, nil

	case "strip_non_alnum":
		return func(s string) string {
			return strings.Map(func(r rune) rune {
				if unicode.IsLetter(r) || unicode.IsDigit(r) {
					return r
				}
				return -1
			}, s)
		}, nil

	case "strip_leading_zeros":
		return func(s string) string {
			trimmed := strings.TrimLeft(s, "0")
			if trimmed == "" && s != "" {
				return "0"
			}
			return trimmed
		}, nil

	case "replace":
		if a.Find == "" {
			return nil, fmt.Errorf("find must not be empty")
		}
		find, repl := a.Find, a.Value
		return func(s string) string { return strings.ReplaceAll(s, find, repl) }, nil

	case "regex_replace":
		re, err := regexp.Compile(a.Find)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern: %w", err)
		}
		repl := a.Value
		return func(s string) string { return re.ReplaceAllString(s, repl) }, nil

	case "prepend_string":
		prefix := a.Value
		return func(s string) string {
			if s == "" {
				return s
			}
			return prefix + s
		}, nil

	case "append_string":
		suffix := a.Value
		return func(s string) string {
			if s == "" {
				return s
			}
			return s + suffix
		}, nil

	case "pad_zeros_to_length":
		n, err := strconv.Atoi(a.Value)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("value must be a positive length, got %q", a.Value)
		}
		return func(s string) string {
			if s == "" || len(s) >= n {
				return s
			}
			return strings.Repeat("0", n-len(s)) + s
		}, nil

	default:
		return nil, fmt.Errorf("unknown action type")
	}
}
