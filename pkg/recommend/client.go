// Package recommend is the entry point for the recommendation API client.
// A Client binds every endpoint to one transport and one token guard.
package recommend

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/Checker-Finance/recommend-go/pkg/api"
)

// Client groups the API endpoints over a shared transport.
type Client struct {
	transport api.Transport
	guard     *api.Guard
	logger    *zap.Logger

	Messaging    *api.MessagingAPI
	ChannelBatch *api.ChannelBatchAPI
	ChannelEmail *api.ChannelEmailAPI
	ChannelPush  *api.ChannelPushAPI
}

// New creates a Client over t. A nil logger discards output.
func New(t api.Transport, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := api.NewGuard(t, logger)
	return &Client{
		transport:    t,
		guard:        g,
		logger:       logger,
		Messaging:    api.NewMessagingAPI(g),
		ChannelBatch: api.NewChannelBatchAPI(g),
		ChannelEmail: api.NewChannelEmailAPI(g),
		ChannelPush:  api.NewChannelPushAPI(g),
	}
}

// Guard returns the guard shared by the client's endpoints.
func (c *Client) Guard() *api.Guard {
	return c.guard
}

// Transport returns the underlying transport.
func (c *Client) Transport() api.Transport {
	return c.transport
}

// Read returns a read-only API for an endpoint not covered by the typed fields.
func (c *Client) Read(endpoint string) *api.ReadAPI {
	return api.NewReadAPI(c.guard, endpoint)
}

// CRUD returns a read/write API for endpoint.
func (c *Client) CRUD(endpoint string) *api.CRUDAPI {
	return api.NewCRUDAPI(c.guard, endpoint)
}

// Search returns a search API for endpoint whose pages are fetched by fn.
func (c *Client) Search(endpoint string, fn func(ctx context.Context, b api.Base, p api.Page) (json.RawMessage, error)) *api.SearchAPI {
	return api.NewSearchAPI(c.guard, endpoint, fn)
}

// Login installs a token ahead of the first call so credential problems surface
// at startup.
func (c *Client) Login(ctx context.Context) error {
	if err := c.guard.Ensure(ctx); err != nil {
		c.logger.Error("recommend.client.login_failed", zap.Error(err))
		return err
	}
	return nil
}
