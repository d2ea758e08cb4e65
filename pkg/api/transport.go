package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// TokenState exposes the expiry state of the installed auth token.
type TokenState interface {
	IsExpired() bool
	NeedRefresh() bool
}

// Transport is the collaborator every endpoint talks through.
// Implementations own the HTTP client and the token store; see pkg/transport.
type Transport interface {
	// Send issues one request and returns the raw JSON response body.
	// It returns an *Error on a non-success status or transport failure.
	Send(ctx context.Context, method, path string, data any, opts ...RequestOption) (json.RawMessage, error)

	// IsAuthTokenSet reports whether an auth token is installed for outgoing requests.
	IsAuthTokenSet() bool

	// SetAuthToken obtains the current auth token if needed and installs it.
	SetAuthToken(ctx context.Context) error

	// RefreshToken exchanges the refresh token for a new auth token.
	RefreshToken(ctx context.Context) error

	// AuthToken returns the state of the current auth token.
	AuthToken() TokenState
}

// RequestOptions carries per-request extras passed through to the transport.
type RequestOptions struct {
	Params url.Values
	Header http.Header
}

// RequestOption mutates RequestOptions.
type RequestOption func(*RequestOptions)

// WithParams merges query parameters into the request.
func WithParams(params url.Values) RequestOption {
	return func(o *RequestOptions) {
		if o.Params == nil {
			o.Params = url.Values{}
		}
		for k, vs := range params {
			for _, v := range vs {
				o.Params.Add(k, v)
			}
		}
	}
}

// WithParam sets a single query parameter.
func WithParam(key, value string) RequestOption {
	return func(o *RequestOptions) {
		if o.Params == nil {
			o.Params = url.Values{}
		}
		o.Params.Set(key, value)
	}
}

// WithHeader sets a request header.
func WithHeader(key, value string) RequestOption {
	return func(o *RequestOptions) {
		if o.Header == nil {
			o.Header = http.Header{}
		}
		o.Header.Set(key, value)
	}
}

// ApplyOptions folds opts into a RequestOptions value.
func ApplyOptions(opts ...RequestOption) RequestOptions {
	var o RequestOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// Decode unmarshals a raw response body into T.
func Decode[T any](raw json.RawMessage) (T, error) {
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode response: %w", err)
	}
	return out, nil
}
