// =============================================================================
// Ticket Reconciler - Invoice Editing
// =============================================================================
//
// Every change to a draft invoice goes through one reducer:
//
//   Reduce(invoice, edit) -> (invoice', transition, error)
//
// The reducer never touches its input: it works on copies of the item list
// and the split states. After each edit the excess surcharge is brought back
// in line with the 10mm ratio, so the result never depends on the order in
// which edits arrive. Totals are computed on demand from the item list.
//
// An invoice is owned by one caller at a time; different invoices share no
// state and can be edited concurrently.
//
// =============================================================================

package invoice

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/ticket-reconciler/internal/validation"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrLocked is returned for edits on an invoice that is no longer a draft.
	ErrLocked = errors.New("invoice is locked")

	// ErrItemNotFound is returned when an edit names an unknown item id.
	ErrItemNotFound = errors.New("item not found")

	// ErrDerivedItem is returned for edits on the derived surcharge line.
	ErrDerivedItem = errors.New("item is derived and cannot be edited")

	// ErrNotSplittable is returned when a split is requested on a non-regular line.
	ErrNotSplittable = errors.New("item cannot be split")

	// ErrDuplicateItem is returned when an added item reuses an existing id.
	ErrDuplicateItem = errors.New("duplicate item id")

	// ErrReservedID is returned when an added item takes the surcharge id or
	// the id shape of a split half.
	ErrReservedID = errors.New("item id is reserved")
)

// =============================================================================
// INVOICE
// =============================================================================

// Status is the lifecycle state of an invoice.
type Status string

const (
	StatusDraft  Status = "draft"
	StatusIssued Status = "issued"
	StatusPaid   Status = "paid"
	StatusVoid   Status = "void"
)

// Invoice is a customer invoice with its line items. The zero Status is
// treated as a draft.
type Invoice struct {
	ID       string `json:"id" yaml:"id"`
	Customer string `json:"customer" yaml:"customer"`
	Status   Status `json:"status" yaml:"status"`
	Items    []Item `json:"items" yaml:"items"`

	// Splits holds the editing state of split lines, keyed by base item id.
	Splits map[string]SplitState `json:"splits,omitempty" yaml:"splits,omitempty"`
}

// Editable reports whether line items may still change.
func (inv Invoice) Editable() bool {
	return inv.Status == "" || inv.Status == StatusDraft
}

// Totals recomputes subtotal, tax and total from the items.
func (inv Invoice) Totals(policy TaxPolicy) Totals {
	return RecalculateTotals(inv.Items, policy)
}

// RestoreKinds re-tags lines whose kind was lost on the way in, e.g. from a
// hand-written file. The surcharge id or description marks an excess line;
// a split id whose base has a Splits entry marks a split half.
func (inv *Invoice) RestoreKinds() {
	for i := range inv.Items {
		it := &inv.Items[i]
		if it.ID == ExcessItemID || strings.EqualFold(strings.TrimSpace(it.Description), ExcessDescription) {
			it.Kind = KindExcess
			it.Split = nil
			continue
		}
		if it.Kind == KindExcess || it.IsSplit() {
			continue
		}
		if base, n, ok := parseSplitID(it.ID); ok {
			if _, tracked := inv.Splits[base]; tracked {
				it.Kind = KindSplit
				it.Split = &SplitRef{BaseID: base, Half: n}
			}
		}
	}
}

func (inv Invoice) clone() Invoice {
	cp := inv
	cp.Items = cloneItems(inv.Items)
	cp.Splits = make(map[string]SplitState, len(inv.Splits))
	for k, v := range inv.Splits {
		cp.Splits[k] = v
	}
	return cp
}

// =============================================================================
// EDITS
// =============================================================================

// Edit is one change to a draft invoice.
type Edit interface {
	edit()
}

// ToggleSplit splits a regular line, or merges a split line back when
// ItemID names either half or the base id of an active split.
type ToggleSplit struct{ ItemID string }

// SetQuantity changes a line's quantity. On a split half the sibling absorbs
// the difference so the pair keeps the quantity captured at split time.
type SetQuantity struct {
	ItemID   string
	Quantity decimal.Decimal
}

// SetRate changes a line's unit price.
type SetRate struct {
	ItemID string
	Rate   decimal.Decimal
}

// SetDescription rewrites a line's description.
type SetDescription struct {
	ItemID      string
	Description string
}

// AddItem appends a regular line.
type AddItem struct{ Item Item }

// RemoveItem deletes a line. Naming a split half removes the whole pair.
type RemoveItem struct{ ItemID string }

func (ToggleSplit) edit()    {}
func (SetQuantity) edit()    {}
func (SetRate) edit()        {}
func (SetDescription) edit() {}
func (AddItem) edit()        {}
func (RemoveItem) edit()     {}

// =============================================================================
// REDUCER
// =============================================================================

// Reduce applies one edit and re-derives the surcharge line.
func Reduce(inv Invoice, e Edit) (Invoice, Transition, error) {
	if !inv.Editable() {
		return inv, ExcessUnchanged, fmt.Errorf("%w: status %s", ErrLocked, inv.Status)
	}

	next := inv.clone()
	var err error
	switch e := e.(type) {
	case ToggleSplit:
		err = next.toggleSplit(e.ItemID)
	case SetQuantity:
		err = next.setQuantity(e.ItemID, e.Quantity)
	case SetRate:
		err = next.setRate(e.ItemID, e.Rate)
	case SetDescription:
		err = next.setDescription(e.ItemID, e.Description)
	case AddItem:
		err = next.addItem(e.Item)
	case RemoveItem:
		err = next.removeItem(e.ItemID)
	default:
		err = fmt.Errorf("unsupported edit %T", e)
	}
	if err != nil {
		return inv, ExcessUnchanged, err
	}

	var tr Transition
	next.Items, tr = MaintainExcess(next.Items)
	return next, tr, nil
}

// Apply is Reduce without the transition.
func Apply(inv Invoice, e Edit) (Invoice, error) {
	next, _, err := Reduce(inv, e)
	return next, err
}

// lookup finds an editable item.
func (inv *Invoice) lookup(id string) (int, error) {
	i := indexOf(inv.Items, id)
	if i < 0 {
		return -1, fmt.Errorf("%w: %s", ErrItemNotFound, id)
	}
	if inv.Items[i].IsExcess() {
		return -1, fmt.Errorf("%w: %s", ErrDerivedItem, id)
	}
	return i, nil
}

func (inv *Invoice) toggleSplit(id string) error {
	if st, ok := inv.Splits[id]; ok {
		return inv.merge(st)
	}
	i, err := inv.lookup(id)
	if err != nil {
		return err
	}
	if it := inv.Items[i]; it.IsSplit() {
		st, ok := inv.Splits[it.Split.BaseID]
		if !ok {
			return fmt.Errorf("%w: no split state for %s", ErrItemNotFound, it.Split.BaseID)
		}
		return inv.merge(st)
	}

	items, st, err := SplitItem(inv.Items, id)
	if err != nil {
		return err
	}
	inv.Items = items
	inv.Splits[id] = st
	return nil
}

func (inv *Invoice) merge(st SplitState) error {
	items, err := MergeItem(inv.Items, st)
	if err != nil {
		return err
	}
	inv.Items = items
	delete(inv.Splits, st.ItemID)
	return nil
}

func (inv *Invoice) setQuantity(id string, qty decimal.Decimal) error {
	if qty.IsNegative() {
		return &validation.ValidationError{Field: "quantity", Value: qty.String(),
			Rule: validation.ErrInvalidValue, Message: "quantity must not be negative"}
	}
	i, err := inv.lookup(id)
	if err != nil {
		return err
	}
	it := &inv.Items[i]
	if !it.IsSplit() {
		it.Quantity = qty
		it.Reprice()
		return nil
	}

	ref := *it.Split
	st, ok := inv.Splits[ref.BaseID]
	if !ok {
		return fmt.Errorf("%w: no split state for %s", ErrItemNotFound, ref.BaseID)
	}
	if qty.GreaterThan(st.OriginalQty) {
		return &validation.ValidationError{Field: "quantity", Value: qty.String(),
			Rule: validation.ErrInvalidValue,
			Message: fmt.Sprintf("split quantity must not exceed %s", st.OriginalQty)}
	}

	sibling := indexOf(inv.Items, SplitID(ref.BaseID, 3-ref.Half))
	if sibling < 0 {
		return fmt.Errorf("%w: sibling of %s", ErrItemNotFound, id)
	}
	rest := st.OriginalQty.Sub(qty)

	it.Quantity = qty
	it.Reprice()
	inv.Items[sibling].Quantity = rest
	inv.Items[sibling].Reprice()

	if ref.Half == 1 {
		st.FirstQty = qty
	} else {
		st.FirstQty = rest
	}
	inv.Splits[ref.BaseID] = st
	return nil
}

func (inv *Invoice) setRate(id string, rate decimal.Decimal) error {
	if rate.IsNegative() {
		return &validation.ValidationError{Field: "unitPrice", Value: rate.String(),
			Rule: validation.ErrInvalidValue, Message: "rate must not be negative"}
	}
	i, err := inv.lookup(id)
	if err != nil {
		return err
	}
	it := &inv.Items[i]
	it.UnitPrice = rate
	it.Reprice()

	if it.IsSplit() {
		if st, ok := inv.Splits[it.Split.BaseID]; ok {
			if it.Split.Half == 1 {
				st.FirstRate = rate
			} else {
				st.SecondRate = rate
			}
			inv.Splits[it.Split.BaseID] = st
		}
	}
	return nil
}

func (inv *Invoice) setDescription(id, desc string) error {
	i, err := inv.lookup(id)
	if err != nil {
		return err
	}
	inv.Items[i].Description = desc
	return nil
}

func (inv *Invoice) addItem(it Item) error {
	if strings.TrimSpace(it.ID) == "" {
		return &validation.ValidationError{Field: "id", Rule: validation.ErrInvalidValue,
			Message: "item id is required"}
	}
	if _, _, split := parseSplitID(it.ID); split || it.ID == ExcessItemID {
		return fmt.Errorf("%w: %s", ErrReservedID, it.ID)
	}
	if indexOf(inv.Items, it.ID) >= 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateItem, it.ID)
	}
	if it.Quantity.IsNegative() || it.UnitPrice.IsNegative() {
		return &validation.ValidationError{Field: "item", Value: it.ID,
			Rule: validation.ErrInvalidValue, Message: "quantity and rate must not be negative"}
	}
	it.Kind = KindRegular
	it.Split = nil
	it.Reprice()
	inv.Items = append(inv.Items, it)
	return nil
}

func (inv *Invoice) removeItem(id string) error {
	i, err := inv.lookup(id)
	if err != nil {
		return err
	}
	if it := inv.Items[i]; it.IsSplit() {
		base := it.Split.BaseID
		kept := inv.Items[:0]
		for _, other := range inv.Items {
			if other.IsSplit() && other.Split.BaseID == base {
				continue
			}
			kept = append(kept, other)
		}
		inv.Items = kept
		delete(inv.Splits, base)
		return nil
	}
	inv.Items = append(inv.Items[:i], inv.Items[i+1:]...)
	return nil
}

// =============================================================================
// EDITOR
// =============================================================================

// Editor wraps Reduce with logging and a tax policy.
type Editor struct {
	policy TaxPolicy
	log    *slog.Logger
}

// NewEditor returns an Editor. A nil logger discards output.
func NewEditor(policy TaxPolicy, log *slog.Logger) *Editor {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Editor{policy: policy, log: log.With("component", "invoice")}
}

// Apply runs every edit in order and returns the final invoice with its
// totals. It stops at the first failing edit and returns the invoice as it
// was before that edit.
func (ed *Editor) Apply(inv Invoice, edits ...Edit) (Invoice, Totals, error) {
	if len(edits) == 0 {
		// Loaded invoices may predate the current ratio; re-derive once.
		if inv.Editable() {
			items, tr := MaintainExcess(inv.Items)
			inv = inv.clone()
			inv.Items = items
			ed.logTransition(inv.ID, tr)
		}
		return inv, inv.Totals(ed.policy), nil
	}
	for n, e := range edits {
		next, tr, err := Reduce(inv, e)
		if err != nil {
			return inv, inv.Totals(ed.policy), fmt.Errorf("edit %d (%T): %w", n+1, e, err)
		}
		ed.logTransition(inv.ID, tr)
		inv = next
	}
	return inv, inv.Totals(ed.policy), nil
}

func (ed *Editor) logTransition(invoiceID string, tr Transition) {
	switch tr {
	case ExcessUnchanged:
	case ExcessSkipped:
		ed.log.Debug("excess surcharge not inserted: no positive 10mm rate", "invoice", invoiceID)
	default:
		ed.log.Debug("excess surcharge "+tr.String(), "invoice", invoiceID)
	}
}
