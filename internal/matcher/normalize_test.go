package matcher

import (
	"testing"

	"github.com/ginjaninja78/ticket-reconciler/internal/types"
)

func TestKeyer_BaseNormalization(t *testing.T) {
	k, err := NewKeyer(nil)
	if err != nil {
		t.Fatalf("NewKeyer: %v", err)
	}
	row := types.Row{Number: 2, Cells: []types.Cell{types.TextCell("  T1001 "), types.NumberCell(42)}}

	if got := k.Key(row, []int{0}); got != "t1001" {
		t.Fatalf("expected t1001, got %q", got)
	}
	if got := k.Key(row, []int{0, 1}); got != "t100142" {
		t.Fatalf("expected composite t100142, got %q", got)
	}
	if got := k.Key(row, []int{1, 0}); got != "42t1001" {
		t.Fatalf("expected column order to be respected, got %q", got)
	}
	if got := k.Key(row, []int{9}); got != "" {
		t.Fatalf("expected empty key for missing column, got %q", got)
	}
}

func TestKeyer_Actions(t *testing.T) {
	cases := []struct {
		name    string
		actions []Action
		in      string
		want    string
	}{
		{"strip non alnum", []Action{{Type: "strip_non_alnum"}}, "T-0042", "t0042"},
		{"strip zeros after prefix removal", []Action{
			{Type: "regex_replace", Find: `^t-?`, Value: ""},
			{Type: "strip_leading_zeros"},
		}, "T-0042", "42"},
		{"lone zero kept", []Action{{Type: "strip_leading_zeros"}}, "000", "0"},
		{"replace", []Action{{Type: "replace", Find: "/", Value: "-"}}, "a/b", "a-b"},
		{"pad", []Action{{Type: "pad_zeros_to_length", Value: "6"}}, "123", "000123"},
		{"prepend skips empty", []Action{{Type: "prepend_string", Value: "x"}}, "  ", ""},
		{"append", []Action{{Type: "append_string", Value: "!"}}, "a", "a!"},
		{"uppercase", []Action{{Type: "uppercase"}}, "abc", "ABC"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			k, err := NewKeyer(tc.actions)
			if err != nil {
				t.Fatalf("NewKeyer: %v", err)
			}
			if got := k.Normalize(tc.in); got != tc.want {
				t.Fatalf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestNewKeyer_RejectsBadActions(t *testing.T) {
	bad := [][]Action{
		{{Type: "shout"}},
		{{Type: "regex_replace", Find: "("}},
		{{Type: "replace"}},
		{{Type: "pad_zeros_to_length", Value: "x"}},
	}
	for _, actions := range bad {
		if _, err := NewKeyer(actions); err == nil {
			t.Errorf("expected error for %+v", actions)
		}
	}
}
