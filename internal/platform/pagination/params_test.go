package pagination

import (
	"errors"
	"net/url"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		values  url.Values
		opts    Options
		want    Params
		wantErr error
	}{
		{name: "defaults", values: url.Values{}, want: Params{PageSize: DefaultPageSize}},
		{name: "explicit size", values: url.Values{"pageSize": {"5"}}, want: Params{PageSize: 5}},
		{name: "clamped", values: url.Values{"pageSize": {"500"}}, opts: Options{MaxPageSize: 50}, want: Params{PageSize: 50}},
		{name: "token", values: url.Values{"pageToken": {EncodeToken("classic-tee")}}, want: Params{PageSize: DefaultPageSize, After: "classic-tee"}},
		{name: "zero size", values: url.Values{"pageSize": {"0"}}, wantErr: ErrInvalidPageSize},
		{name: "garbage size", values: url.Values{"pageSize": {"ten"}}, wantErr: ErrInvalidPageSize},
		{name: "garbage token", values: url.Values{"pageToken": {"%%%"}}, wantErr: ErrInvalidPageToken},
		{name: "empty cursor", values: url.Values{"pageToken": {"e30"}}, wantErr: ErrInvalidPageToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.values, tt.opts)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("unexpected params (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPageWalksAllItems(t *testing.T) {
	items := []string{"a", "b", "c", "d", "e"}
	identity := func(s string) string { return s }

	var seen []string
	params := Params{PageSize: 2}
	for i := 0; i < 5; i++ {
		page, next := Page(items, params, identity)
		seen = append(seen, page...)
		if next == "" {
			break
		}
		after, err := DecodeToken(next)
		if err != nil {
			t.Fatalf("DecodeToken: %v", err)
		}
		params.After = after
	}
	if diff := cmp.Diff(items, seen); diff != "" {
		t.Fatalf("unexpected walk (-want +got):\n%s", diff)
	}
}

func TestPagePastEnd(t *testing.T) {
	page, next := Page([]string{"a", "b"}, Params{PageSize: 2, After: "z"}, func(s string) string { return s })
	if len(page) != 0 || next != "" {
		t.Fatalf("expected empty final page, got %v next=%q", page, next)
	}
}
