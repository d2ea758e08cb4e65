package api

import (
	"context"
	"encoding/json"
	"net/http"
)

// CRUDAPI adds create, update and delete to ReadAPI.
type CRUDAPI struct {
	ReadAPI
}

// NewCRUDAPI creates a CRUDAPI for endpoint.
func NewCRUDAPI(g *Guard, endpoint string) *CRUDAPI {
	return &CRUDAPI{ReadAPI: ReadAPI{Base: NewBase(g, endpoint)}}
}

// Create posts data to the object path.
func (a *CRUDAPI) Create(ctx context.Context, id string, data any, opts ...RequestOption) (json.RawMessage, error) {
	return a.Send(ctx, http.MethodPost, a.Path(PathParts{Identifier: id}), data, opts...)
}

// Update puts data to the object path.
func (a *CRUDAPI) Update(ctx context.Context, id string, data any, opts ...RequestOption) (json.RawMessage, error) {
	return a.Send(ctx, http.MethodPut, a.Path(PathParts{Identifier: id}), data, opts...)
}

// Delete removes the object. No body is sent.
func (a *CRUDAPI) Delete(ctx context.Context, id string, opts ...RequestOption) (json.RawMessage, error) {
	return a.Send(ctx, http.MethodDelete, a.Path(PathParts{Identifier: id}), nil, opts...)
}
