// =============================================================================
// Ticket Reconciler - Invoice Line Items
// =============================================================================
//
// Line items carry an explicit kind instead of encoding their role in the id
// or the description:
//
//   | Kind    | Meaning                                            |
//   |---------|----------------------------------------------------|
//   | regular | an ordinary priced line                            |
//   | split   | one half of a split line; Split names base and half|
//   | excess  | the derived 10mm excess surcharge                  |
//
// Quantities, rates and amounts are decimals. Every mutation keeps
// Amount == round(Quantity * UnitPrice, 2).
//
// =============================================================================

package invoice

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// KIND
// =============================================================================

// Kind is the tagged variant of a line item.
type Kind int

const (
	KindRegular Kind = iota
	KindSplit
	KindExcess
)

func (k Kind) String() string {
	switch k {
	case KindRegular:
		return "regular"
	case KindSplit:
		return "split"
	case KindExcess:
		return "excess"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. An empty value is regular.
func (k *Kind) UnmarshalText(b []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(b))) {
	case "", "regular":
		*k = KindRegular
	case "split":
		*k = KindSplit
	case "excess":
		*k = KindExcess
	default:
		return fmt.Errorf("unknown item kind %q", string(b))
	}
	return nil
}

// SplitRef identifies which half of which base item a split line is.
type SplitRef struct {
	BaseID string `json:"baseId" yaml:"base_id"`
	Half   int    `json:"half" yaml:"half"`
}

// =============================================================================
// ITEM
// =============================================================================

// Item is one invoice line.
type Item struct {
	ID          string          `json:"id" yaml:"id"`
	Description string          `json:"description" yaml:"description"`
	Quantity    decimal.Decimal `json:"quantity" yaml:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice" yaml:"unit_price"`
	Amount      decimal.Decimal `json:"amount" yaml:"amount"`

	// Type is the optional product type, e.g. "10mm" or "20mm".
	Type string `json:"type,omitempty" yaml:"type,omitempty"`

	Kind  Kind      `json:"kind" yaml:"kind"`
	Split *SplitRef `json:"split,omitempty" yaml:"split,omitempty"`
}

// NewItem returns a regular item with its amount computed.
func NewItem(id, description string, quantity, unitPrice decimal.Decimal) Item {
	it := Item{ID: id, Description: description, Quantity: quantity, UnitPrice: unitPrice}
	it.Amount = LineAmount(quantity, unitPrice)
	return it
}

// LineAmount returns round(quantity * unitPrice, 2).
func LineAmount(quantity, unitPrice decimal.Decimal) decimal.Decimal {
	return quantity.Mul(unitPrice).Round(2)
}

// Reprice recomputes the amount from quantity and unit price.
func (it *Item) Reprice() {
	it.Amount = LineAmount(it.Quantity, it.UnitPrice)
}

// IsExcess reports whether the item is the derived surcharge line.
func (it Item) IsExcess() bool {
	return it.Kind == KindExcess
}

// IsSplit reports whether the item is one half of a split line.
func (it Item) IsSplit() bool {
	return it.Kind == KindSplit && it.Split != nil
}

// =============================================================================
// MATERIAL
// =============================================================================

// Material is the aggregate size a line is counted towards.
type Material int

const (
	MaterialOther Material = iota
	Material10mm
	Material20mm
)

var (
	re10mm = regexp.MustCompile(`(?i)(^|[^0-9.])10\s*mm`)
	re20mm = regexp.MustCompile(`(?i)(^|[^0-9.])20\s*mm`)
)

// MaterialOf classifies an item by its Type, falling back to the description.
func MaterialOf(it Item) Material {
	if it.Type != "" {
		if m := materialFromText(it.Type); m != MaterialOther {
			return m
		}
	}
	return materialFromText(it.Description)
}

func materialFromText(s string) Material {
	switch {
	case re10mm.MatchString(s):
		return Material10mm
	case re20mm.MatchString(s):
		return Material20mm
	default:
		return MaterialOther
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func cloneItems(items []Item) []Item {
	out := make([]Item, len(items))
	for i, it := range items {
		out[i] = it
		if it.Split != nil {
			ref := *it.Split
			out[i].Split = &ref
		}
	}
	return out
}

func indexOf(items []Item, id string) int {
	for i, it := range items {
		if it.ID == id {
			return i
		}
	}
	return -1
}
