package api

import (
	"context"
	"encoding/json"
)

// Readable endpoints can fetch one object or the whole collection.
type Readable interface {
	Get(ctx context.Context, id string, opts ...RequestOption) (json.RawMessage, error)
	List(ctx context.Context, opts ...RequestOption) (json.RawMessage, error)
}

// Writable endpoints can create, update and delete objects.
type Writable interface {
	Create(ctx context.Context, id string, data any, opts ...RequestOption) (json.RawMessage, error)
	Update(ctx context.Context, id string, data any, opts ...RequestOption) (json.RawMessage, error)
	Delete(ctx context.Context, id string, opts ...RequestOption) (json.RawMessage, error)
}

// Searchable endpoints return one skip/limit page of results per call. The response
// is a JSON object with "data" and, for paging, "limit" and "total".
type Searchable interface {
	Search(ctx context.Context, p Page) (json.RawMessage, error)
}

var (
	_ Readable   = (*ReadAPI)(nil)
	_ Readable   = (*CRUDAPI)(nil)
	_ Writable   = (*CRUDAPI)(nil)
	_ Searchable = (*SearchAPI)(nil)
	_ Searchable = SearchFunc(nil)
)
