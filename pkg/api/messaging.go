package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
)

const (
	EndpointMessaging    = "messaging"
	EndpointChannelBatch = "messaging/channel/batch"
	EndpointChannelEmail = "messaging/channel/email"
	EndpointChannelPush  = "messaging/channel/push"
)

// MessagingAPI exposes messaging-level operations.
type MessagingAPI struct {
	Base
}

func NewMessagingAPI(g *Guard) *MessagingAPI {
	return &MessagingAPI{Base: NewBase(g, EndpointMessaging)}
}

// SmartCampaign returns the configured smart campaigns.
// GET messaging/smart_campaign
func (a *MessagingAPI) SmartCampaign(ctx context.Context, opts ...RequestOption) (json.RawMessage, error) {
	return a.Send(ctx, http.MethodGet, a.Path(PathParts{Method: "smart_campaign"}), nil, opts...)
}

// ChannelBatchAPI uploads contact batches.
type ChannelBatchAPI struct {
	Base
}

func NewChannelBatchAPI(g *Guard) *ChannelBatchAPI {
	return &ChannelBatchAPI{Base: NewBase(g, EndpointChannelBatch)}
}

// Email uploads a batch of email contacts.
// POST messaging/channel/batch/email
func (a *ChannelBatchAPI) Email(ctx context.Context, data any, opts ...RequestOption) (json.RawMessage, error) {
	return a.Send(ctx, http.MethodPost, a.Path(PathParts{Method: "email"}), data, opts...)
}

// PushToken uploads a batch of push tokens.
// POST messaging/channel/batch/push_token
func (a *ChannelBatchAPI) PushToken(ctx context.Context, data any, opts ...RequestOption) (json.RawMessage, error) {
	return a.Send(ctx, http.MethodPost, a.Path(PathParts{Method: "push_token"}), data, opts...)
}

// EmailSearch filters email channels. Zero-valued fields are not sent.
type EmailSearch struct {
	FromDate int64 // unix seconds, inclusive
	ToDate   int64 // unix seconds
	Skip     int
	Limit    int

	// SubscriptionStatuses restricts the statuses returned; empty means all.
	SubscriptionStatuses []string
	Emails               []string
}

type emailSearchBody struct {
	SubscriptionStatuses []string `json:"subscription_statuses"`
	Emails               []string `json:"emails,omitempty"`
}

// EmailChannel is the typed view of one email channel search item.
type EmailChannel struct {
	ID                 string `json:"id"`
	Email              string `json:"email"`
	SubscriptionStatus string `json:"subscription_status"`
}

// ChannelEmailAPI reads and searches email channels.
type ChannelEmailAPI struct {
	ReadAPI
}

func NewChannelEmailAPI(g *Guard) *ChannelEmailAPI {
	return &ChannelEmailAPI{ReadAPI: ReadAPI{Base: NewBase(g, EndpointChannelEmail)}}
}

// Search returns one page of email channels.
// POST messaging/channel/email/search
func (a *ChannelEmailAPI) Search(ctx context.Context, q EmailSearch, opts ...RequestOption) (json.RawMessage, error) {
	reqOpts := append([]RequestOption{}, opts...)
	if q.FromDate != 0 {
		reqOpts = append(reqOpts, WithParam("from_date", strconv.FormatInt(q.FromDate, 10)))
	}
	if q.ToDate != 0 {
		reqOpts = append(reqOpts, WithParam("to_date", strconv.FormatInt(q.ToDate, 10)))
	}
	if q.Skip != 0 {
		reqOpts = append(reqOpts, WithParam("skip", strconv.Itoa(q.Skip)))
	}
	if q.Limit != 0 {
		reqOpts = append(reqOpts, WithParam("limit", strconv.Itoa(q.Limit)))
	}

	body := emailSearchBody{
		SubscriptionStatuses: q.SubscriptionStatuses,
		Emails:               q.Emails,
	}
	if body.SubscriptionStatuses == nil {
		body.SubscriptionStatuses = []string{}
	}

	return a.Send(ctx, http.MethodPost, a.Path(PathParts{Method: "search"}), body, reqOpts...)
}

// Searcher binds filter so the result can drive an Iterator. The page window
// replaces the filter's Skip and Limit.
func (a *ChannelEmailAPI) Searcher(filter EmailSearch, opts ...RequestOption) Searchable {
	return SearchFunc(func(ctx context.Context, p Page) (json.RawMessage, error) {
		q := filter
		q.Skip = p.Skip
		q.Limit = p.Limit
		return a.Search(ctx, q, opts...)
	})
}

// Iterator walks every email channel matching filter.
func (a *ChannelEmailAPI) Iterator(filter EmailSearch, opts ...IteratorOption) *Iterator {
	return NewIterator(a.Searcher(filter), opts...)
}

// ChannelPushAPI searches push notification subscriptions.
type ChannelPushAPI struct {
	*SearchAPI
}

func NewChannelPushAPI(g *Guard, opts ...RequestOption) *ChannelPushAPI {
	return &ChannelPushAPI{SearchAPI: NewSearchAPI(g, EndpointChannelPush,
		func(ctx context.Context, b Base, p Page) (json.RawMessage, error) {
			reqOpts := append([]RequestOption{}, opts...)
			if p.Skip != 0 {
				reqOpts = append(reqOpts, WithParam("skip", strconv.Itoa(p.Skip)))
			}
			if p.Limit != 0 {
				reqOpts = append(reqOpts, WithParam("limit", strconv.Itoa(p.Limit)))
			}
			// POST messaging/channel/push/search
			return b.Send(ctx, http.MethodPost, b.Path(PathParts{Method: "search"}), nil, reqOpts...)
		})}
}

var (
	_ Readable   = (*ChannelEmailAPI)(nil)
	_ Searchable = (*ChannelPushAPI)(nil)
)
