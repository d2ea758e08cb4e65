package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ─── Paths ───────────────────────────────────────────────────────────────────

func TestBuildPath(t *testing.T) {
	tests := []struct {
		name  string
		parts PathParts
		want  string
	}{
		{"endpoint only", PathParts{}, "e"},
		{"identifier", PathParts{Identifier: "id"}, "e/id"},
		{"identifier and method", PathParts{Identifier: "id", Method: "m"}, "e/id/m"},
		{"custom segments", PathParts{Custom: []string{"a", "b"}}, "e/a/b"},
		{"method then custom", PathParts{Method: "search", Custom: []string{"c"}}, "e/search/c"},
		{"empty identifier is absent", PathParts{Identifier: "", Method: "m"}, "e/m"},
		{"zero identifier is present", PathParts{Identifier: "0"}, "e/0"},
		{"empty custom skipped", PathParts{Custom: []string{"", "c"}}, "e/c"},
		{"no escaping", PathParts{Identifier: "a b/c"}, "e/a b/c"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildPath("e", tt.parts))
		})
	}
}

func TestID(t *testing.T) {
	assert.Equal(t, "0", ID(0))
	assert.Equal(t, "e/0", BuildPath("e", PathParts{Identifier: ID(0)}))
	assert.Equal(t, "-12", ID(-12))
}

// ─── Verb mapping ────────────────────────────────────────────────────────────

func TestCRUD_VerbMapping(t *testing.T) {
	tr := newFakeTransport()
	a := NewCRUDAPI(NewGuard(tr, nil), "campaigns")
	ctx := context.Background()
	payload := map[string]string{"name": "spring"}

	_, err := a.Create(ctx, "7", payload)
	require.NoError(t, err)
	assert.Equal(t, sentCall{Method: http.MethodPost, Path: "campaigns/7", Data: payload}, tr.lastCall())

	_, err = a.Update(ctx, "7", payload)
	require.NoError(t, err)
	assert.Equal(t, sentCall{Method: http.MethodPut, Path: "campaigns/7", Data: payload}, tr.lastCall())

	_, err = a.Delete(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, sentCall{Method: http.MethodDelete, Path: "campaigns/7"}, tr.lastCall())

	_, err = a.Get(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, sentCall{Method: http.MethodGet, Path: "campaigns/7"}, tr.lastCall())

	_, err = a.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, sentCall{Method: http.MethodGet, Path: "campaigns"}, tr.lastCall())
}

func TestCreate_WithoutIdentifierPostsToCollection(t *testing.T) {
	tr := newFakeTransport()
	a := NewCRUDAPI(NewGuard(tr, nil), "campaigns")

	_, err := a.Create(context.Background(), "", map[string]int{"x": 1})
	require.NoError(t, err)
	assert.Equal(t, "campaigns", tr.lastCall().Path)
}

func TestRead_CallDispatch(t *testing.T) {
	tr := newFakeTransport()
	a := NewReadAPI(NewGuard(tr, nil), "items")
	ctx := context.Background()

	_, err := a.Call(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "items", tr.lastCall().Path)

	_, err = a.Call(ctx, "0")
	require.NoError(t, err)
	assert.Equal(t, "items/0", tr.lastCall().Path)
}

func TestRead_OptionsPassThrough(t *testing.T) {
	tr := newFakeTransport()
	a := NewReadAPI(NewGuard(tr, nil), "items")

	_, err := a.List(context.Background(), WithParams(url.Values{"tag": {"a", "b"}}), WithHeader("X-Trace", "t"))
	require.NoError(t, err)

	opts := tr.lastCall().Opts
	assert.Equal(t, []string{"a", "b"}, opts.Params["tag"])
	assert.Equal(t, "t", opts.Header.Get("X-Trace"))
}

func TestRead_TransportErrorUnchanged(t *testing.T) {
	tr := newFakeTransport()
	apiErr := NewError(http.StatusNotFound, "missing")
	tr.reply = func(sentCall) (json.RawMessage, error) { return nil, apiErr }
	a := NewReadAPI(NewGuard(tr, nil), "items")

	_, err := a.Get(context.Background(), "1")
	assert.Same(t, apiErr, err)
}

func TestRead_GuardFailureSkipsSend(t *testing.T) {
	tr := newFakeTransport()
	tr.installed = false
	tr.noInstall = true
	a := NewCRUDAPI(NewGuard(tr, nil), "items")

	_, err := a.Delete(context.Background(), "1")
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, 0, tr.count("send"))
}

// ─── Errors and decoding ─────────────────────────────────────────────────────

func TestError_Formatting(t *testing.T) {
	assert.Equal(t, "recommend api 404: missing", NewError(404, "missing").Error())
	assert.Equal(t, "recommend api: empty result", (&Error{Message: "empty result"}).Error())

	cause := errors.New("dial tcp")
	wrapped := WrapError("request failed", cause)
	assert.Equal(t, "recommend api: request failed: dial tcp", wrapped.Error())
	assert.ErrorIs(t, wrapped, cause)
	assert.Equal(t, 0, StatusCode(wrapped))
	assert.Equal(t, 0, StatusCode(cause))
	assert.False(t, IsAPIError(cause))
}

func TestDecode(t *testing.T) {
	ch, err := Decode[EmailChannel]([]byte(`{"id":"c1","email":"a@x.io","subscription_status":"subscribed"}`))
	require.NoError(t, err)
	assert.Equal(t, EmailChannel{ID: "c1", Email: "a@x.io", SubscriptionStatus: "subscribed"}, ch)

	_, err = Decode[EmailChannel]([]byte(`[`))
	assert.Error(t, err)
}
