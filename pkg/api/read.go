package api

import (
	"context"
	"encoding/json"
	"net/http"
)

// Base binds an endpoint to a guarded transport.
type Base struct {
	guard    *Guard
	endpoint string
}

// NewBase creates a Base for endpoint.
func NewBase(g *Guard, endpoint string) Base {
	return Base{guard: g, endpoint: endpoint}
}

// Endpoint returns the resource collection path.
func (b Base) Endpoint() string {
	return b.endpoint
}

// Path builds a relative path under the endpoint.
func (b Base) Path(parts PathParts) string {
	return BuildPath(b.endpoint, parts)
}

// Send issues a guarded request. Concrete endpoints use it for their own methods.
func (b Base) Send(ctx context.Context, method, path string, data any, opts ...RequestOption) (json.RawMessage, error) {
	return Guarded(ctx, b.guard, func(ctx context.Context) (json.RawMessage, error) {
		return b.guard.Transport().Send(ctx, method, path, data, opts...)
	})
}

// ReadAPI is the generic read-only capability.
type ReadAPI struct {
	Base
}

// NewReadAPI creates a ReadAPI for endpoint.
func NewReadAPI(g *Guard, endpoint string) *ReadAPI {
	return &ReadAPI{Base: NewBase(g, endpoint)}
}

// Call reads one object when id is present, otherwise the whole collection.
func (a *ReadAPI) Call(ctx context.Context, id string, opts ...RequestOption) (json.RawMessage, error) {
	if id != "" {
		return a.Get(ctx, id, opts...)
	}
	return a.List(ctx, opts...)
}

// Get reads one object by identifier.
func (a *ReadAPI) Get(ctx context.Context, id string, opts ...RequestOption) (json.RawMessage, error) {
	return a.Send(ctx, http.MethodGet, a.Path(PathParts{Identifier: id}), nil, opts...)
}

// List reads the whole collection.
func (a *ReadAPI) List(ctx context.Context, opts ...RequestOption) (json.RawMessage, error) {
	return a.Send(ctx, http.MethodGet, a.Path(PathParts{}), nil, opts...)
}
