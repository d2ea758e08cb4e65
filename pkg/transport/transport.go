package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Checker-Finance/recommend-go/internal/httpclient"
	"github.com/Checker-Finance/recommend-go/internal/rate"
	"github.com/Checker-Finance/recommend-go/pkg/api"
	"github.com/Checker-Finance/recommend-go/pkg/secrets"
	"github.com/Checker-Finance/recommend-go/pkg/tokens"
)

// Config configures an HTTPTransport.
type Config struct {
	BaseURL           string
	Account           string // scopes the rate limiter and the shared token cache
	Timeout           time.Duration
	RetryMax          int
	RequestsPerSecond float64 // 0 disables rate limiting
	Burst             int
	RefreshWindow     time.Duration
	BreakerFailures   uint32 // 0 disables the circuit breaker
	BreakerTimeout    time.Duration
}

// TokenCache shares token bundles between processes. See tokens.RedisCache.
type TokenCache interface {
	Get(ctx context.Context, account string) (tokens.Bundle, bool, error)
	Set(ctx context.Context, account string, b tokens.Bundle) error
	Delete(ctx context.Context, account string) error
}

// Option customizes an HTTPTransport.
type Option func(*HTTPTransport)

func WithLogger(l *zap.Logger) Option {
	return func(t *HTTPTransport) {
		if l != nil {
			t.logger = l
		}
	}
}

// WithHTTPClient replaces the default client; Config.Timeout is then ignored.
func WithHTTPClient(c *http.Client) Option {
	return func(t *HTTPTransport) { t.httpClient = c }
}

func WithTokenCache(c TokenCache) Option {
	return func(t *HTTPTransport) { t.cache = c }
}

// WithExecutorOptions passes options through to the underlying executor.
func WithExecutorOptions(opts ...httpclient.Option) Option {
	return func(t *HTTPTransport) { t.execOpts = append(t.execOpts, opts...) }
}

// HTTPTransport talks JSON over HTTP to the recommendation API and owns the
// account's token lifecycle. It implements api.Transport.
type HTTPTransport struct {
	logger     *zap.Logger
	baseURL    string
	account    string
	rateKey    string
	creds      secrets.CredentialsSource
	store      *tokens.Store
	cache      TokenCache
	httpClient *http.Client
	execOpts   []httpclient.Option
	exec       *httpclient.Executor

	mu        sync.RWMutex
	installed tokens.Token
}

var _ api.Transport = (*HTTPTransport)(nil)

// New creates a transport. Nothing is sent until the first call.
func New(cfg Config, creds secrets.CredentialsSource, opts ...Option) (*HTTPTransport, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", cfg.BaseURL)
	}
	if creds == nil {
		return nil, errors.New("credentials source is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	t := &HTTPTransport{
		logger:  zap.NewNop(),
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		account: cfg.Account,
		rateKey: strings.ToLower(u.Host + "|" + cfg.Account),
		creds:   creds,
		store:   tokens.NewStore(cfg.RefreshWindow),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.httpClient == nil {
		t.httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	var rateMgr *rate.Manager
	if cfg.RequestsPerSecond > 0 {
		rateMgr = rate.NewManager(rate.Config{RequestsPerSecond: cfg.RequestsPerSecond, Burst: cfg.Burst})
	}
	execOpts := t.execOpts
	if cfg.BreakerFailures > 0 {
		execOpts = append(execOpts, httpclient.WithCircuitBreaker(cfg.BreakerFailures, cfg.BreakerTimeout))
	}
	t.exec = httpclient.New(t.logger, rateMgr, t.httpClient, cfg.RetryMax, "recommend", errorFromResponse, execOpts...)
	return t, nil
}

// Send issues one request. data, when non-nil, is sent as a JSON body.
// Failures are returned as *api.Error except context cancellation.
func (t *HTTPTransport) Send(ctx context.Context, method, path string, data any, opts ...api.RequestOption) (json.RawMessage, error) {
	o := api.ApplyOptions(opts...)
	req, err := t.newRequest(ctx, method, path, data, o)
	if err != nil {
		return nil, api.WrapError("build request", err)
	}
	if tok := t.installedToken(); tok.Value != "" {
		req.Header.Set("Authorization", "Bearer "+tok.Value)
	}

	var raw json.RawMessage
	if err := t.exec.DoJSON(ctx, req, t.rateKey, &raw); err != nil {
		return nil, t.mapError(ctx, err)
	}
	return raw, nil
}

func (t *HTTPTransport) newRequest(ctx context.Context, method, path string, data any, o api.RequestOptions) (*http.Request, error) {
	u, err := url.Parse(t.baseURL + "/" + strings.TrimLeft(path, "/"))
	if err != nil {
		return nil, err
	}
	if len(o.Params) > 0 {
		q := u.Query()
		for k, vs := range o.Params {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	var req *http.Request
	if data != nil {
		body, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("encode body: %w", err)
		}
		req, err = http.NewRequestWithContext(ctx, method, u.String(), bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
	} else {
		req, err = http.NewRequestWithContext(ctx, method, u.String(), nil)
		if err != nil {
			return nil, err
		}
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	for k, vs := range o.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	return req, nil
}

// mapError turns executor failures into *api.Error. Context errors pass through
// so callers can stop.
func (t *HTTPTransport) mapError(ctx context.Context, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if api.IsAPIError(err) {
		return err
	}
	var se *httpclient.StatusError
	if errors.As(err, &se) {
		return &api.Error{StatusCode: se.Status, Message: messageFromBody(se.Status, se.Body), Body: se.Body, Err: err}
	}
	return api.WrapError("request failed", err)
}

// errorFromResponse is the executor's 4xx handler.
func errorFromResponse(status int, body []byte) error {
	return &api.Error{StatusCode: status, Message: messageFromBody(status, body), Body: body}
}

// messageFromBody picks a human message from common error payload shapes.
func messageFromBody(status int, body []byte) string {
	var payload map[string]any
	if json.Unmarshal(body, &payload) == nil {
		for _, k := range []string{"message", "detail", "error"} {
			if s, ok := payload[k].(string); ok && s != "" {
				return s
			}
		}
	}
	return http.StatusText(status)
}

func (t *HTTPTransport) installedToken() tokens.Token {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.installed
}
