package transport

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/Checker-Finance/recommend-go/internal/metrics"
	"github.com/Checker-Finance/recommend-go/pkg/api"
	"github.com/Checker-Finance/recommend-go/pkg/tokens"
)

const (
	loginPath   = "auth/login"
	refreshPath = "auth/refresh"
)

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// IsAuthTokenSet reports whether a token is installed on outgoing requests.
func (t *HTTPTransport) IsAuthTokenSet() bool {
	return t.installedToken().Value != ""
}

// AuthToken returns the installed token.
func (t *HTTPTransport) AuthToken() api.TokenState {
	return t.installedToken()
}

// SetAuthToken installs the stored token, obtaining one first from the shared
// cache or by logging in when the store is empty.
func (t *HTTPTransport) SetAuthToken(ctx context.Context) error {
	b, ok := t.store.Get()
	if !ok {
		var err error
		if b, err = t.obtain(ctx); err != nil {
			return err
		}
	}

	t.mu.Lock()
	t.installed = b.Access(t.store.Window())
	t.mu.Unlock()
	return nil
}

// RefreshToken exchanges the stored refresh token for a new bundle. Without a
// refresh token it logs in again. A rejected refresh token is dropped so the next
// attempt logs in.
func (t *HTTPTransport) RefreshToken(ctx context.Context) error {
	rt := t.store.RefreshToken()
	if rt == "" {
		_, err := t.login(ctx)
		return err
	}

	b, err := t.authenticate(ctx, refreshPath, map[string]string{"refresh_token": rt})
	if err != nil {
		metrics.IncTokenOperation("remote_refresh", "error")
		if s := api.StatusCode(err); s == http.StatusUnauthorized || s == http.StatusForbidden {
			t.logger.Warn("recommend.transport.refresh_rejected",
				zap.String("account", t.account),
				zap.Int("status", s))
			t.store.Clear()
			if t.cache != nil {
				_ = t.cache.Delete(ctx, t.account)
			}
		}
		return err
	}
	if b.RefreshToken == "" {
		b.RefreshToken = rt
	}
	t.save(ctx, b)
	metrics.IncTokenOperation("remote_refresh", "ok")

	t.logger.Info("recommend.transport.refresh_success",
		zap.String("account", t.account),
		zap.Time("expires_at", b.ExpiresAt()))
	return nil
}

func (t *HTTPTransport) obtain(ctx context.Context) (tokens.Bundle, error) {
	if t.cache != nil {
		b, ok, err := t.cache.Get(ctx, t.account)
		switch {
		case err != nil:
			t.logger.Warn("recommend.transport.token_cache_get_failed", zap.Error(err))
		case ok && !b.Access(t.store.Window()).IsExpired():
			t.store.Set(b)
			t.logger.Debug("recommend.transport.token_from_cache", zap.String("account", t.account))
			return b, nil
		}
	}
	return t.login(ctx)
}

func (t *HTTPTransport) login(ctx context.Context) (tokens.Bundle, error) {
	creds, err := t.creds.Credentials(ctx)
	if err != nil {
		metrics.IncTokenOperation("login", "error")
		return tokens.Bundle{}, err
	}

	b, err := t.authenticate(ctx, loginPath, map[string]string{
		"username": creds.Username,
		"password": creds.Password,
	})
	if err != nil {
		metrics.IncTokenOperation("login", "error")
		t.logger.Error("recommend.transport.login_failed",
			zap.String("account", t.account),
			zap.String("user", creds.Username),
			zap.Error(err))
		return tokens.Bundle{}, err
	}
	t.save(ctx, b)
	metrics.IncTokenOperation("login", "ok")

	t.logger.Info("recommend.transport.login_success",
		zap.String("account", t.account),
		zap.String("user", creds.Username),
		zap.Time("expires_at", b.ExpiresAt()))
	return b, nil
}

// authenticate posts to an auth endpoint without the installed bearer token.
func (t *HTTPTransport) authenticate(ctx context.Context, path string, payload map[string]string) (tokens.Bundle, error) {
	req, err := t.newRequest(ctx, http.MethodPost, path, payload, api.RequestOptions{})
	if err != nil {
		return tokens.Bundle{}, api.WrapError("build auth request", err)
	}

	var resp tokenResponse
	if err := t.exec.DoJSON(ctx, req, t.rateKey, &resp); err != nil {
		return tokens.Bundle{}, t.mapError(ctx, err)
	}
	if resp.AccessToken == "" {
		return tokens.Bundle{}, api.NewError(0, path+" returned empty access_token")
	}
	return tokens.NewBundle(resp.AccessToken, resp.RefreshToken, resp.ExpiresIn), nil
}

func (t *HTTPTransport) save(ctx context.Context, b tokens.Bundle) {
	t.store.Set(b)
	if t.cache == nil {
		return
	}
	cctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := t.cache.Set(cctx, t.account, b); err != nil {
		t.logger.Warn("recommend.transport.token_cache_set_failed", zap.Error(err))
	}
}
