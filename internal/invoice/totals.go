package invoice

import "github.com/shopspring/decimal"

// Totals are the invoice sums derived from the line items.
type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal" yaml:"subtotal"`
	Tax      decimal.Decimal `json:"tax" yaml:"tax"`
	Total    decimal.Decimal `json:"total" yaml:"total"`
}

// TaxPolicy computes the tax owed on a subtotal.
type TaxPolicy interface {
	Tax(subtotal decimal.Decimal) decimal.Decimal
}

// FlatRate charges Rate (a fraction, 0.15 for 15%) on the subtotal,
// rounded to cents.
type FlatRate struct {
	Rate decimal.Decimal
}

// Tax implements TaxPolicy.
func (f FlatRate) Tax(subtotal decimal.Decimal) decimal.Decimal {
	return subtotal.Mul(f.Rate).Round(2)
}

// NoTax is a TaxPolicy that never charges tax.
type NoTax struct{}

// Tax implements TaxPolicy.
func (NoTax) Tax(decimal.Decimal) decimal.Decimal { return decimal.Zero }

// RecalculateTotals sums the item amounts and applies the tax policy.
// A nil policy charges no tax.
func RecalculateTotals(items []Item, policy TaxPolicy) Totals {
	if policy == nil {
		policy = NoTax{}
	}
	subtotal := decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(it.Amount)
	}
	tax := policy.Tax(subtotal)
	return Totals{Subtotal: subtotal, Tax: tax, Total: subtotal.Add(tax)}
}
