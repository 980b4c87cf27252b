package pagination

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const (
	// DefaultPageSize is used when the client omits pageSize.
	DefaultPageSize = 20
	// DefaultMaxPageSize caps pageSize.
	DefaultMaxPageSize = 100
)

var (
	ErrInvalidPageSize  = errors.New("pagination: invalid pageSize")
	ErrInvalidPageToken = errors.New("pagination: invalid pageToken")
)

// Params is a parsed page request. After is the sort key of the last item on
// the previous page, empty for the first page.
type Params struct {
	PageSize int
	After    string
}

// Options bound the accepted page size.
type Options struct {
	DefaultPageSize int
	MaxPageSize     int
}

// FromRequest parses pageSize and pageToken from the request query.
func FromRequest(r *http.Request, opts Options) (Params, error) {
	if r == nil {
		return Params{}, errors.New("pagination: nil request")
	}
	return Parse(r.URL.Query(), opts)
}

// Parse reads pageSize and pageToken from values.
func Parse(values url.Values, opts Options) (Params, error) {
	def := opts.DefaultPageSize
	if def <= 0 {
		def = DefaultPageSize
	}
	limit := opts.MaxPageSize
	if limit <= 0 {
		limit = DefaultMaxPageSize
	}

	params := Params{PageSize: def}
	if raw := strings.TrimSpace(values.Get("pageSize")); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil || size <= 0 {
			return Params{}, fmt.Errorf("%w: must be a positive integer", ErrInvalidPageSize)
		}
		if size > limit {
			size = limit
		}
		params.PageSize = size
	}

	after, err := DecodeToken(values.Get("pageToken"))
	if err != nil {
		return Params{}, err
	}
	params.After = after
	return params, nil
}

// Page slices the items sorted ascending by key, returning the page after
// p.After and the token for the next page, empty when none remain.
func Page[T any](items []T, p Params, key func(T) string) ([]T, string) {
	start := 0
	if p.After != "" {
		start = len(items)
		for i, item := range items {
			if key(item) > p.After {
				start = i
				break
			}
		}
	}
	size := p.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}
	end := start + size
	if end >= len(items) {
		return items[start:], ""
	}
	page := items[start:end]
	return page, EncodeToken(key(page[len(page)-1]))
}
