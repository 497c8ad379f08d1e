package pagination

import (
	"context"
	"iter"
)

// Driver iterates a paginated MCP list endpoint by threading cursors: the
// initial cursor is empty, each page's returned cursor becomes the next
// request's cursor, and the sequence terminates the first time a page comes
// back with an empty (null) cursor. No pagination state is persisted beyond
// the single in-flight cursor; consumers may stop iterating at any time.
type Driver[Params any, Result any, Item any] struct {
	fetch       func(ctx context.Context, params Params) (Result, error)
	buildParams func(cursor string) Params
	extract     func(result Result) (items []Item, nextCursor string)
}

// New builds a Driver around:
//   - fetch: performs one list request/response round trip.
//   - buildParams: constructs the method's params object for a given cursor
//     ("" for the first page).
//   - extract: pulls the item slice and nextCursor out of a page's result.
func New[Params any, Result any, Item any](
	fetch func(ctx context.Context, params Params) (Result, error),
	buildParams func(cursor string) Params,
	extract func(result Result) ([]Item, string),
) *Driver[Params, Result, Item] {
	return &Driver[Params, Result, Item]{fetch: fetch, buildParams: buildParams, extract: extract}
}

// Iterate returns a lazy sequence of pages. Range over it with the standard
// two-value range-over-func form:
//
//	for items, err := range d.Iterate(ctx) {
//	    if err != nil { ... break }
//	    use(items)
//	}
//
// Any server error aborts the sequence with that error as the final yielded
// value; the sequence does not yield again afterward.
func (d *Driver[Params, Result, Item]) Iterate(ctx context.Context) iter.Seq2[[]Item, error] {
	return func(yield func([]Item, error) bool) {
		cursor := ""
		for {
			params := d.buildParams(cursor)
			result, err := d.fetch(ctx, params)
			if err != nil {
				yield(nil, err)
				return
			}

			items, nextCursor := d.extract(result)
			if !yield(items, nil) {
				return
			}

			if nextCursor == "" {
				return
			}
			cursor = nextCursor
		}
	}
}

// Collect drains the driver to completion, concatenating every page's items.
// It stops and returns early on the first error.
func Collect[Params any, Result any, Item any](ctx context.Context, d *Driver[Params, Result, Item]) ([]Item, error) {
	var all []Item
	for items, err := range d.Iterate(ctx) {
		if err != nil {
			return all, err
		}
		all = append(all, items...)
	}
	return all, nil
}
