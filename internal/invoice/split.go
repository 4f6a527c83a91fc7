package invoice

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// SplitState is the transient editing state of a split line. The second
// half's quantity is always OriginalQty - FirstQty and is not stored.
type SplitState struct {
	ItemID      string          `json:"itemId" yaml:"item_id"`
	OriginalQty decimal.Decimal `json:"originalQty" yaml:"original_qty"`
	FirstQty    decimal.Decimal `json:"firstQty" yaml:"first_qty"`
	FirstRate   decimal.Decimal `json:"firstRate" yaml:"first_rate"`
	SecondRate  decimal.Decimal `json:"secondRate" yaml:"second_rate"`
}

// SecondQty derives the second half's quantity.
func (s SplitState) SecondQty() decimal.Decimal {
	return s.OriginalQty.Sub(s.FirstQty)
}

// SplitID returns the id of one half of a split base item.
func SplitID(baseID string, half int) string {
	return fmt.Sprintf("%s-split-%d", baseID, half)
}

const splitMarker = "-split-"

// parseSplitID reverses SplitID.
func parseSplitID(id string) (base string, half int, ok bool) {
	i := strings.LastIndex(id, splitMarker)
	if i <= 0 {
		return "", 0, false
	}
	switch id[i+len(splitMarker):] {
	case "1":
		return id[:i], 1, true
	case "2":
		return id[:i], 2, true
	}
	return "", 0, false
}

var two = decimal.NewFromInt(2)

// SplitItem replaces the regular item id with two halves at the same
// position. The first half gets round(q/2, 2), the second the remainder;
// both keep the original rate.
func SplitItem(items []Item, id string) ([]Item, SplitState, error) {
	i := indexOf(items, id)
	if i < 0 {
		return nil, SplitState{}, fmt.Errorf("%w: %s", ErrItemNotFound, id)
	}
	base := items[i]
	if base.Kind != KindRegular {
		return nil, SplitState{}, fmt.Errorf("%w: %s is a %s line", ErrNotSplittable, id, base.Kind)
	}
	for n := 1; n <= 2; n++ {
		if indexOf(items, SplitID(id, n)) >= 0 {
			return nil, SplitState{}, fmt.Errorf("%w: %s", ErrDuplicateItem, SplitID(id, n))
		}
	}

	firstQty := base.Quantity.Div(two).Round(2)
	state := SplitState{
		ItemID:      base.ID,
		OriginalQty: base.Quantity,
		FirstQty:    firstQty,
		FirstRate:   base.UnitPrice,
		SecondRate:  base.UnitPrice,
	}

	first := half(base, 1, firstQty, base.UnitPrice)
	second := half(base, 2, state.SecondQty(), base.UnitPrice)

	out := make([]Item, 0, len(items)+1)
	out = append(out, cloneItems(items[:i])...)
	out = append(out, first, second)
	out = append(out, cloneItems(items[i+1:])...)
	return out, state, nil
}

func half(base Item, n int, qty, rate decimal.Decimal) Item {
	it := Item{
		ID:          SplitID(base.ID, n),
		Description: base.Description,
		Quantity:    qty,
		UnitPrice:   rate,
		Type:        base.Type,
		Kind:        KindSplit,
		Split:       &SplitRef{BaseID: base.ID, Half: n},
	}
	it.Reprice()
	return it
}

// MergeItem joins both halves of a split back into one regular item at the
// first half's position. The quantity is the sum of both halves and the
// rate is the first half's rate: a different second rate is discarded.
func MergeItem(items []Item, state SplitState) ([]Item, error) {
	i1 := indexOf(items, SplitID(state.ItemID, 1))
	i2 := indexOf(items, SplitID(state.ItemID, 2))
	if i1 < 0 || i2 < 0 {
		return nil, fmt.Errorf("%w: split halves of %s", ErrItemNotFound, state.ItemID)
	}
	first, second := items[i1], items[i2]

	merged := Item{
		ID:          state.ItemID,
		Description: first.Description,
		Quantity:    first.Quantity.Add(second.Quantity),
		UnitPrice:   state.FirstRate,
		Type:        first.Type,
		Kind:        KindRegular,
	}
	merged.Reprice()

	out := make([]Item, 0, len(items)-1)
	for i, it := range cloneItems(items) {
		switch i {
		case i1:
			out = append(out, merged)
		case i2:
		default:
			out = append(out, it)
		}
	}
	return out, nil
}
