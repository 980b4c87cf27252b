package productstate

import (
	"net/url"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFromQuerySeedsCustomization(t *testing.T) {
	query := url.Values{
		"color": {"red"},
		"line1": {"Go Team"},
		"line2": {"2024"},
	}
	state := FromQuery(query)

	c, ok := state.Customization()
	if !ok {
		t.Fatalf("expected customization from query")
	}
	if c.Line1 != "Go Team" || c.Line2 != "2024" {
		t.Fatalf("unexpected customization %#v", c)
	}
	if state.Option("color") != "red" {
		t.Fatalf("expected color red")
	}
}

func TestFromQueryWithoutLine1(t *testing.T) {
	state := FromQuery(url.Values{"line2": {"only"}, "size": {"M"}})
	if _, ok := state.Customization(); ok {
		t.Fatalf("line2 alone must not create a customization")
	}
	if state.Option("line2") != "only" {
		t.Fatalf("expected line2 to stay as a free-form value")
	}
}

func TestFromQueryLastValueWins(t *testing.T) {
	state := FromQuery(url.Values{"size": {"S", "L"}})
	if got := state.Option("size"); got != "L" {
		t.Fatalf("expected last value L, got %q", got)
	}
}

func TestFromQueryDropsEmptyLine2(t *testing.T) {
	state := FromQuery(url.Values{"line1": {"Hi"}, "line2": {""}})
	c, ok := state.Customization()
	if !ok || c.HasLine2() {
		t.Fatalf("expected customization without line2, got %#v", c)
	}
}

func TestToQuery(t *testing.T) {
	base := url.Values{"line2": {"stale"}, "ref": {"ad"}}
	state := Merge(FromQuery(url.Values{"color": {"blue"}}), CustomizationUpdate(customizationFixture("Hello", "")))

	got := ToQuery(base, state)
	want := url.Values{
		"color": {"blue"},
		"line1": {"Hello"},
		"ref":   {"ad"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected query (-want +got):\n%s", diff)
	}
	if base.Get("line2") != "stale" {
		t.Fatalf("base query must not be modified")
	}
}

func TestQueryRoundTrip(t *testing.T) {
	original := url.Values{"color": {"red"}, "line1": {"A"}, "line2": {"B"}, "image": {"2"}}
	state := FromQuery(original)
	again := FromQuery(ToQuery(nil, state))
	if !state.Equal(again) {
		t.Fatalf("expected round trip to preserve state")
	}
}
