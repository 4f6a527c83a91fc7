package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/ginjaninja78/ticket-reconciler/internal/invoice"
)

// InvoiceFile is a draft invoice together with the edits to apply to it.
//
// Example:
//
//	invoice:
//	  id: INV-0042
//	  items:
//	    - id: a
//	      description: Crushed 10mm
//	      quantity: 50
//	      unit_price: 30
//	edits:
//	  - op: split
//	    item: a
//	  - op: set_quantity
//	    item: a-split-1
//	    quantity: 20
type InvoiceFile struct {
	Invoice invoice.Invoice `yaml:"invoice"`
	Edits   []EditSpec      `yaml:"edits"`
}

// EditSpec is the YAML form of one invoice edit.
//
// Supported ops:
//   - "split"           : toggle a split on or off (item)
//   - "set_quantity"    : item, quantity
//   - "set_rate"        : item, rate
//   - "set_description" : item, description
//   - "add"             : new
//   - "remove"          : item
type EditSpec struct {
	Op          string           `yaml:"op"`
	Item        string           `yaml:"item,omitempty"`
	Quantity    *decimal.Decimal `yaml:"quantity,omitempty"`
	Rate        *decimal.Decimal `yaml:"rate,omitempty"`
	Description *string          `yaml:"description,omitempty"`
	New         *invoice.Item    `yaml:"new,omitempty"`
}

// LoadInvoiceFile reads an invoice file. Item amounts are recomputed from
// quantity and rate, so files may leave them out, and lines without a kind
// get it back from their id (see invoice.Invoice.RestoreKinds).
func LoadInvoiceFile(path string) (*InvoiceFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read invoice file: %w", err)
	}

	var f InvoiceFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse invoice file: %w", err)
	}
	f.Invoice.RestoreKinds()
	for i := range f.Invoice.Items {
		f.Invoice.Items[i].Reprice()
	}
	return &f, nil
}

// ParsedEdits converts every EditSpec, reporting the first malformed one.
func (f *InvoiceFile) ParsedEdits() ([]invoice.Edit, error) {
	edits := make([]invoice.Edit, 0, len(f.Edits))
	for i, spec := range f.Edits {
		e, err := spec.Edit()
		if err != nil {
			return nil, fmt.Errorf("edit %d: %w", i+1, err)
		}
		edits = append(edits, e)
	}
	return edits, nil
}

// Edit converts the EditSpec into an invoice edit.
func (s EditSpec) Edit() (invoice.Edit, error) {
	op := strings.ToLower(strings.TrimSpace(s.Op))
	if op != "add" && s.Item == "" {
		return nil, fmt.Errorf("op %q needs an item", s.Op)
	}

	switch op {
	case "split", "toggle_split":
		return invoice.ToggleSplit{ItemID: s.Item}, nil
	case "set_quantity":
		if s.Quantity == nil {
			return nil, fmt.Errorf("set_quantity needs a quantity")
		}
		return invoice.SetQuantity{ItemID: s.Item, Quantity: *s.Quantity}, nil
	case "set_rate":
		if s.Rate == nil {
			return nil, fmt.Errorf("set_rate needs a rate")
		}
		return invoice.SetRate{ItemID: s.Item, Rate: *s.Rate}, nil
	case "set_description":
		if s.Description == nil {
			return nil, fmt.Errorf("set_description needs a description")
		}
		return invoice.SetDescription{ItemID: s.Item, Description: *s.Description}, nil
	case "add":
		if s.New == nil {
			return nil, fmt.Errorf("add needs a new item")
		}
		return invoice.AddItem{Item: *s.New}, nil
	case "remove":
		return invoice.RemoveItem{ItemID: s.Item}, nil
	default:
		return nil, fmt.Errorf("unknown edit op %q", s.Op)
	}
}
