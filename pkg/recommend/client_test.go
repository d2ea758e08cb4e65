package recommend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Checker-Finance/recommend-go/pkg/api"
	"github.com/Checker-Finance/recommend-go/pkg/secrets"
	"github.com/Checker-Finance/recommend-go/pkg/transport"
)

// newServer serves auth plus a paginated email channel search over total items.
func newServer(t *testing.T, total int, logins *atomic.Int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, _ *http.Request) {
		logins.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "tok", "refresh_token": "r", "expires_in": 3600})
	})
	mux.HandleFunc("POST /messaging/channel/email/search", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		skip, _ := strconv.Atoi(r.URL.Query().Get("skip"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		remaining := total - skip
		n := min(limit, max(remaining, 0))
		data := make([]map[string]string, n)
		for i := range data {
			data[i] = map[string]string{"id": strconv.Itoa(skip + i), "email": fmt.Sprintf("u%d@x.io", skip+i)}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": data, "limit": limit, "total": remaining})
	})
	mux.HandleFunc("GET /messaging/smart_campaign", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[{"id":1}]`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	tr, err := transport.New(transport.Config{BaseURL: srv.URL, Account: "acme"},
		secrets.Static{Username: "u", Password: "p"}, transport.WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return New(tr, nil)
}

func TestClient_IteratesAllEmailChannels(t *testing.T) {
	var logins atomic.Int32
	c := newClient(t, newServer(t, 25, &logins))

	it := c.ChannelEmail.Iterator(api.EmailSearch{}, api.WithPageSize(10))
	var ids []string
	for it.Next(context.Background()) {
		ch, err := api.Decode[api.EmailChannel](it.Item())
		require.NoError(t, err)
		ids = append(ids, ch.ID)
	}
	require.NoError(t, it.Err())
	assert.Len(t, ids, 25)
	assert.Equal(t, "0", ids[0])
	assert.Equal(t, "24", ids[24])
	assert.EqualValues(t, 1, logins.Load())
}

func TestClient_LoginAndTypedEndpoint(t *testing.T) {
	var logins atomic.Int32
	c := newClient(t, newServer(t, 0, &logins))
	ctx := context.Background()

	require.NoError(t, c.Login(ctx))
	raw, err := c.Messaging.SmartCampaign(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":1}]`, string(raw))
	assert.EqualValues(t, 1, logins.Load())
	assert.True(t, c.Transport().IsAuthTokenSet())
}

func TestClient_GenericEndpointsShareGuard(t *testing.T) {
	var logins atomic.Int32
	c := newClient(t, newServer(t, 0, &logins))

	_, err := c.Read("messaging").Get(context.Background(), "smart_campaign")
	require.NoError(t, err)
	_, err = c.CRUD("messaging").Get(context.Background(), "smart_campaign")
	require.NoError(t, err)
	assert.EqualValues(t, 1, logins.Load())
	assert.NotNil(t, c.Guard())
}

func TestClient_LoginFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	err := newClient(t, srv).Login(context.Background())
	assert.ErrorIs(t, err, api.ErrUnauthorized)
	assert.Equal(t, http.StatusUnauthorized, api.StatusCode(err))
}
