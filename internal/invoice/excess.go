package invoice

import "github.com/shopspring/decimal"

const (
	// ExcessItemID is the id given to the derived surcharge line.
	ExcessItemID = "excess-10mm-charge"

	// ExcessDescription is the description of the derived surcharge line.
	ExcessDescription = "Excess 10mm (>40%)"
)

var (
	excessThreshold = decimal.NewFromInt(40)
	excessShare     = decimal.NewFromFloat(0.4)
	hundred         = decimal.NewFromInt(100)
	tolerance       = decimal.NewFromFloat(0.01)
)

// Analysis is the 10mm/20mm ratio check over the regular lines.
type Analysis struct {
	Total10mm decimal.Decimal `json:"total10mm"`
	Total20mm decimal.Decimal `json:"total20mm"`

	// Ratio10mm is total10mm / (total10mm + total20mm) * 100; 0 without quantities.
	Ratio10mm decimal.Decimal `json:"ratio10mm"`

	HasExcess10mm bool `json:"hasExcess10mm"`

	// ExcessQty is round(total10mm - (total10mm+total20mm)*0.4, 2) when
	// HasExcess10mm, else 0.
	ExcessQty decimal.Decimal `json:"excessQty"`

	// DefaultRate is the unit price of the first regular 10mm line.
	DefaultRate decimal.Decimal `json:"defaultRate"`
}

// Analyze computes the ratio check. Excess lines never count towards it.
func Analyze(items []Item) Analysis {
	var a Analysis
	rateFound := false
	for _, it := range items {
		if it.IsExcess() {
			continue
		}
		switch MaterialOf(it) {
		case Material10mm:
			a.Total10mm = a.Total10mm.Add(it.Quantity)
			if !rateFound {
				a.DefaultRate = it.UnitPrice
				rateFound = true
			}
		case Material20mm:
			a.Total20mm = a.Total20mm.Add(it.Quantity)
		}
	}

	sum := a.Total10mm.Add(a.Total20mm)
	if sum.IsZero() {
		return a
	}
	a.Ratio10mm = a.Total10mm.Div(sum).Mul(hundred)
	a.HasExcess10mm = a.Ratio10mm.GreaterThan(excessThreshold)
	if a.HasExcess10mm {
		a.ExcessQty = a.Total10mm.Sub(sum.Mul(excessShare)).Round(2)
	}
	return a
}

// Transition names what MaintainExcess did to the item list.
type Transition int

const (
	ExcessUnchanged Transition = iota
	ExcessInserted
	ExcessUpdated
	ExcessRemoved

	// ExcessSkipped means an excess exists but no positive 10mm rate is set,
	// so no surcharge line could be priced.
	ExcessSkipped
)

func (t Transition) String() string {
	switch t {
	case ExcessInserted:
		return "inserted"
	case ExcessUpdated:
		return "updated"
	case ExcessRemoved:
		return "removed"
	case ExcessSkipped:
		return "skipped"
	default:
		return "unchanged"
	}
}

// MaintainExcess inserts, updates or removes the surcharge line so it agrees
// with the current ratio. The input slice is not modified. An updated line
// keeps its position and id. When the excess persists but the 10mm rate is
// no longer positive, an existing line keeps its rate and only its quantity
// follows.
func MaintainExcess(items []Item) ([]Item, Transition) {
	a := Analyze(items)

	existing := -1
	out := make([]Item, 0, len(items)+1)
	for _, it := range cloneItems(items) {
		if it.IsExcess() {
			if existing >= 0 {
				continue // only one surcharge line is kept
			}
			existing = len(out)
		}
		out = append(out, it)
	}

	switch {
	case !a.HasExcess10mm && existing < 0:
		return out, ExcessUnchanged

	case !a.HasExcess10mm:
		return append(out[:existing], out[existing+1:]...), ExcessRemoved

	case existing < 0:
		if !a.DefaultRate.IsPositive() {
			return out, ExcessSkipped
		}
		line := Item{
			ID:          ExcessItemID,
			Description: ExcessDescription,
			Quantity:    a.ExcessQty,
			UnitPrice:   a.DefaultRate,
			Kind:        KindExcess,
		}
		line.Reprice()
		return append(out, line), ExcessInserted
	}

	line := &out[existing]
	rate := line.UnitPrice
	if a.DefaultRate.IsPositive() {
		rate = a.DefaultRate
	}
	want := LineAmount(a.ExcessQty, rate)
	if differs(line.Quantity, a.ExcessQty) || differs(line.UnitPrice, rate) || differs(line.Amount, want) {
		line.Quantity = a.ExcessQty
		line.UnitPrice = rate
		line.Amount = want
		return out, ExcessUpdated
	}
	return out, ExcessUnchanged
}

func differs(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().GreaterThan(tolerance)
}
