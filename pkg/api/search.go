package api

import (
	"context"
	"encoding/json"
)

// Page is one skip/limit window of a paginated search.
type Page struct {
	Skip  int
	Limit int
}

// SearchFunc adapts a function to Searchable.
type SearchFunc func(ctx context.Context, p Page) (json.RawMessage, error)

// Search calls f.
func (f SearchFunc) Search(ctx context.Context, p Page) (json.RawMessage, error) {
	return f(ctx, p)
}

// SearchAPI is the base search capability. Concrete endpoints bind the request
// that performs one page of search; without one, Search fails.
type SearchAPI struct {
	Base
	search SearchFunc
}

// NewSearchAPI creates a SearchAPI. fn should issue its request through Base.Send
// so it runs behind the guard; a nil fn leaves search unimplemented.
func NewSearchAPI(g *Guard, endpoint string, fn func(ctx context.Context, b Base, p Page) (json.RawMessage, error)) *SearchAPI {
	a := &SearchAPI{Base: NewBase(g, endpoint)}
	if fn != nil {
		a.search = func(ctx context.Context, p Page) (json.RawMessage, error) {
			return fn(ctx, a.Base, p)
		}
	}
	return a
}

// Search issues one page request.
func (a *SearchAPI) Search(ctx context.Context, p Page) (json.RawMessage, error) {
	if a.search == nil {
		return nil, ErrSearchNotImplemented
	}
	return a.search(ctx, p)
}

// Iterator returns a fresh cursor over every search result.
func (a *SearchAPI) Iterator(opts ...IteratorOption) *Iterator {
	return NewIterator(a, opts...)
}
