package api

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/Checker-Finance/recommend-go/internal/metrics"
)

// Guard makes sure a usable auth token is installed on the transport before an
// authenticated call runs. One Guard should be shared by every endpoint using the
// same transport so token maintenance is serialized.
type Guard struct {
	transport Transport
	logger    *zap.Logger
	mu        sync.Mutex
}

// NewGuard creates a guard over t. A nil logger discards output.
func NewGuard(t Transport, logger *zap.Logger) *Guard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Guard{transport: t, logger: logger}
}

// Transport returns the guarded transport.
func (g *Guard) Transport() Transport {
	return g.transport
}

// Ensure runs the token checks in order: install when missing, refresh when
// expired, proactively refresh when close to expiry, then fail closed when nothing
// is installed. A failed proactive refresh is logged and the current token is kept.
func (g *Guard) Ensure(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	t := g.transport

	if !t.IsAuthTokenSet() {
		if err := t.SetAuthToken(ctx); err != nil {
			metrics.IncTokenOperation("install", "error")
			return fmt.Errorf("%w: %w", ErrUnauthorized, err)
		}
		metrics.IncTokenOperation("install", "ok")
	}

	if tok := t.AuthToken(); tok != nil && tok.IsExpired() {
		g.logger.Info("recommend.guard.token_expired")
		if err := g.refreshAndInstall(ctx); err != nil {
			metrics.IncTokenOperation("refresh", "error")
			return err
		}
		metrics.IncTokenOperation("refresh", "ok")
	}

	if tok := t.AuthToken(); tok != nil && tok.NeedRefresh() {
		if err := g.refreshAndInstall(ctx); err != nil {
			if !IsAPIError(err) {
				return err
			}
			metrics.IncTokenOperation("proactive_refresh", "suppressed")
			g.logger.Warn("recommend.guard.proactive_refresh_failed", zap.Error(err))
		} else {
			metrics.IncTokenOperation("proactive_refresh", "ok")
		}
	}

	if !t.IsAuthTokenSet() {
		metrics.IncTokenOperation("install", "missing")
		return ErrUnauthorized
	}
	return nil
}

func (g *Guard) refreshAndInstall(ctx context.Context) error {
	if err := g.transport.RefreshToken(ctx); err != nil {
		return fmt.Errorf("refresh token: %w", err)
	}
	if err := g.transport.SetAuthToken(ctx); err != nil {
		return fmt.Errorf("set auth token: %w", err)
	}
	return nil
}

// Guarded runs fn after g.Ensure succeeds and passes its result through untouched.
// The guard is a precondition only; fn is never retried.
func Guarded[T any](ctx context.Context, g *Guard, fn func(context.Context) (T, error)) (T, error) {
	if err := g.Ensure(ctx); err != nil {
		var zero T
		return zero, err
	}
	return fn(ctx)
}

// Do runs fn after g.Ensure succeeds.
func (g *Guard) Do(ctx context.Context, fn func(context.Context) error) error {
	if err := g.Ensure(ctx); err != nil {
		return err
	}
	return fn(ctx)
}
