package validation

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/ginjaninja78/ticket-reconciler/internal/types"
)

func TestRowRange(t *testing.T) {
	cases := []struct {
		name    string
		rng     *types.RowRange
		wantErr bool
	}{
		{"nil range", nil, false},
		{"single row", &types.RowRange{Start: 3, End: 3}, false},
		{"normal", &types.RowRange{Start: 2, End: 40}, false},
		{"start after end", &types.RowRange{Start: 10, End: 2}, true},
		{"start zero", &types.RowRange{Start: 0, End: 2}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := New()
			v.RowRange("masterRowRange", tc.rng)
			err := v.Err()
			if (err != nil) != tc.wantErr {
				t.Fatalf("expected error=%v, got %v", tc.wantErr, err)
			}
			if err != nil && !errors.Is(err, ErrInvalidRowRange) {
				t.Fatalf("expected ErrInvalidRowRange, got %v", err)
			}
		})
	}
}

func TestColumnsCollectsEveryError(t *testing.T) {
	v := New()
	v.Columns("masterColIndices", nil)
	v.Columns("targetMatchColIndices[a.xlsx]", []int{0, -2})
	v.Column("masterResultColIndex", -5)

	errs := AsErrors(v.Err())
	if len(errs) != 3 {
		t.Fatalf("expected 3 errors, got %d: %v", len(errs), errs)
	}

	err := v.Err()
	if !errors.Is(err, ErrNoColumns) {
		t.Fatalf("expected ErrNoColumns in %v", err)
	}
	if !errors.Is(err, ErrInvalidColumn) {
		t.Fatalf("expected ErrInvalidColumn in %v", err)
	}

	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected a *ValidationError in %v", err)
	}
	if ve.Field != "masterColIndices" {
		t.Fatalf("expected first field masterColIndices, got %q", ve.Field)
	}
}

func TestFormatErrors(t *testing.T) {
	if got := FormatErrors(nil); got != "No validation errors." {
		t.Fatalf("unexpected text %q", got)
	}

	v := New()
	v.Path("masterPath", " ")
	out := FormatErrors(AsErrors(v.Err()))
	if !strings.Contains(out, "masterPath") || !strings.Contains(out, "1 validation error") {
		t.Fatalf("unexpected text %q", out)
	}
}

func TestAsErrors(t *testing.T) {
	if got := AsErrors(nil); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}

	v := New()
	v.Path("masterPath", "")
	v.Column("masterResultColIndex", -3)
	wrapped := fmt.Errorf("job rejected: %w", v.Err())

	errs := AsErrors(wrapped)
	if len(errs) != 2 || errs[0].Field != "masterPath" || errs[1].Field != "masterResultColIndex" {
		t.Fatalf("unexpected errors %v", errs)
	}
	if got := AsErrors(errors.New("plain")); len(got) != 0 {
		t.Fatalf("expected no validation errors, got %v", got)
	}
}
