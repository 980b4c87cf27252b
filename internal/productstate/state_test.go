package productstate

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	domain "github.com/storefront/customizer/internal/domain"
)

func TestMergeAddsNewKeys(t *testing.T) {
	prev := New(map[string]string{"a": "1"}, nil)
	next := Merge(prev, Update{Values: map[string]string{"b": "2"}})

	want := map[string]string{"a": "1", "b": "2"}
	if diff := cmp.Diff(want, next.Values()); diff != "" {
		t.Fatalf("unexpected values (-want +got):\n%s", diff)
	}
}

func TestMergeOverwritesExistingKeys(t *testing.T) {
	prev := New(map[string]string{"a": "1"}, nil)
	next := Merge(prev, Update{Values: map[string]string{"a": "2"}})

	want := map[string]string{"a": "2"}
	if diff := cmp.Diff(want, next.Values()); diff != "" {
		t.Fatalf("unexpected values (-want +got):\n%s", diff)
	}
}

func TestMergeDoesNotMutatePrevious(t *testing.T) {
	prev := New(map[string]string{"color": "red"}, &domain.TextCustomization{Line1: "One"})
	_ = Merge(prev, Update{
		Values:        map[string]string{"color": "blue", "size": "L"},
		Customization: &domain.TextCustomization{Line1: "Two"},
	})

	if prev.Option("color") != "red" {
		t.Fatalf("previous color mutated to %q", prev.Option("color"))
	}
	if _, ok := prev.Value("size"); ok {
		t.Fatalf("previous gained size key")
	}
	c, _ := prev.Customization()
	if c.Line1 != "One" {
		t.Fatalf("previous customization mutated to %q", c.Line1)
	}
}

func TestMergeReplacesCustomizationWholesale(t *testing.T) {
	prev := New(nil, &domain.TextCustomization{Line1: "Go Team", Line2: "2024"})
	next := Merge(prev, CustomizationUpdate(domain.TextCustomization{Line1: "Champions"}))

	c, ok := next.Customization()
	if !ok {
		t.Fatalf("expected customization")
	}
	if c.Line1 != "Champions" || c.Line2 != "" {
		t.Fatalf("expected wholesale replacement, got %#v", c)
	}
}

func TestMergeWithoutCustomizationKeepsPrevious(t *testing.T) {
	prev := New(nil, &domain.TextCustomization{Line1: "Keep"})
	next := Merge(prev, OptionUpdate("color", "black"))

	c, ok := next.Customization()
	if !ok || c.Line1 != "Keep" {
		t.Fatalf("expected customization to survive option update, got %#v (ok=%v)", c, ok)
	}
	if next.Option("color") != "black" {
		t.Fatalf("expected color black, got %q", next.Option("color"))
	}
}

func TestMergeIgnoresRawCustomizationString(t *testing.T) {
	next := Merge(State{}, Update{Values: map[string]string{KeyCustomization: "oops", "size": "M"}})
	if _, ok := next.Value(KeyCustomization); ok {
		t.Fatalf("raw customization key must not be stored")
	}
	if _, ok := next.Customization(); ok {
		t.Fatalf("customization slot must stay empty")
	}
	if next.Option("size") != "M" {
		t.Fatalf("expected size M")
	}
}

func TestImageUpdate(t *testing.T) {
	next := Merge(New(map[string]string{"color": "red"}, nil), ImageUpdate("3"))
	image, ok := next.Image()
	if !ok || image != "3" {
		t.Fatalf("expected image 3, got %q (ok=%v)", image, ok)
	}
}

func TestStateEqual(t *testing.T) {
	a := New(map[string]string{"a": "1"}, &domain.TextCustomization{Line1: "x"})
	b := Merge(New(nil, nil), Update{Values: map[string]string{"a": "1"}, Customization: &domain.TextCustomization{Line1: "x"}})
	if !a.Equal(b) {
		t.Fatalf("expected states to be equal")
	}
	if a.Equal(New(map[string]string{"a": "1"}, nil)) {
		t.Fatalf("expected customization difference to matter")
	}
	if a.Len() != 2 {
		t.Fatalf("expected len 2, got %d", a.Len())
	}
}

func TestUpdateIsEmpty(t *testing.T) {
	if !(Update{}).IsEmpty() {
		t.Fatalf("zero update should be empty")
	}
	if OptionUpdate("size", "S").IsEmpty() {
		t.Fatalf("option update should not be empty")
	}
}

func TestUpdateFoldLines(t *testing.T) {
	base := customizationFixture("Go", "Team")
	tests := []struct {
		name       string
		update     Update
		base       *domain.TextCustomization
		wantValues map[string]string
		want       *domain.TextCustomization
	}{
		{
			name:       "no line keys",
			update:     OptionUpdate("color", "red"),
			base:       &base,
			wantValues: map[string]string{"color": "red"},
		},
		{
			name:       "line1 without base",
			update:     Update{Values: map[string]string{"line1": "Hi", "size": "M"}},
			wantValues: map[string]string{"size": "M"},
			want:       &domain.TextCustomization{Line1: "Hi"},
		},
		{
			name:   "line2 overlays base",
			update: Update{Values: map[string]string{"line2": "Crew"}},
			base:   &base,
			want:   &domain.TextCustomization{Line1: "Go", Line2: "Crew"},
		},
		{
			name: "typed customization wins",
			update: Update{
				Values:        map[string]string{"line1": "Flat"},
				Customization: &domain.TextCustomization{Line1: "Typed"},
			},
			want: &domain.TextCustomization{Line1: "Typed"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.update.FoldLines(tt.base)
			if diff := cmp.Diff(tt.wantValues, got.Values); diff != "" {
				t.Fatalf("unexpected values (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.want, got.Customization); diff != "" {
				t.Fatalf("unexpected customization (-want +got):\n%s", diff)
			}
		})
	}
	if base != customizationFixture("Go", "Team") {
		t.Fatalf("base customization must not be modified")
	}
}
