package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/Checker-Finance/recommend-go/internal/metrics"
	"github.com/Checker-Finance/recommend-go/internal/rate"
)

// Backoff returns the retry sleep duration for the given attempt number.
func Backoff(attempt int) time.Duration {
	switch attempt {
	case 0:
		return 100 * time.Millisecond
	case 1:
		return 250 * time.Millisecond
	default:
		return 500 * time.Millisecond
	}
}

// StatusError is returned for failure responses when no error handler is set.
type StatusError struct {
	Status int
	Body   []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Status)
}

// ErrCircuitOpen is returned while the breaker rejects requests.
var ErrCircuitOpen = errors.New("circuit breaker open")

// Option customizes an Executor.
type Option func(*Executor)

// WithBackoff replaces the retry delay schedule.
func WithBackoff(fn func(attempt int) time.Duration) Option {
	return func(e *Executor) { e.backoff = fn }
}

// WithCircuitBreaker trips after maxFailures consecutive failed executions and
// rejects calls for openTimeout. Client errors (4xx) do not count as failures.
func WithCircuitBreaker(maxFailures uint32, openTimeout time.Duration) Option {
	return func(e *Executor) {
		e.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
			Name:    e.tag,
			Timeout: openTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= maxFailures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				e.logger.Warn(e.tag+".circuit_state_changed",
					zap.String("name", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()))
			},
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, errClientSide)
			},
		})
	}
}

// errClientSide marks 4xx outcomes so they pass through the breaker as successes.
var errClientSide = errors.New("client-side failure")

type clientSideError struct{ err error }

func (c *clientSideError) Error() string   { return c.err.Error() }
func (c *clientSideError) Unwrap() []error { return []error{c.err, errClientSide} }

// Executor handles rate-limited, retrying HTTP execution with JSON decoding.
type Executor struct {
	logger       *zap.Logger
	rateMgr      *rate.Manager
	http         *http.Client
	retryMax     int
	tag          string
	errorHandler func(status int, body []byte) error
	backoff      func(attempt int) time.Duration
	breaker      *gobreaker.CircuitBreaker[[]byte]
}

// New creates an Executor. errorHandler is called on 4xx failure responses to produce an
// API-specific error. If nil, a *StatusError is returned.
func New(
	logger *zap.Logger,
	rateMgr *rate.Manager,
	httpClient *http.Client,
	retryMax int,
	tag string,
	errorHandler func(status int, body []byte) error,
	opts ...Option,
) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if retryMax < 0 {
		retryMax = 0
	}
	e := &Executor{
		logger:       logger,
		rateMgr:      rateMgr,
		http:         httpClient,
		retryMax:     retryMax,
		tag:          tag,
		errorHandler: errorHandler,
		backoff:      Backoff,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// DoJSON executes req with rate limiting, retries and the optional circuit breaker,
// then JSON-decodes the response into out. Request bodies are re-sent on retry via
// req.GetBody. rateLimitKey scopes the rate limiter.
func (e *Executor) DoJSON(ctx context.Context, req *http.Request, rateLimitKey string, out any) error {
	if e.rateMgr != nil {
		if err := e.rateMgr.Wait(ctx, rateLimitKey); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
	}

	var (
		body []byte
		err  error
	)
	if e.breaker != nil {
		body, err = e.breaker.Execute(func() ([]byte, error) {
			return e.doWithRetry(ctx, req)
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			e.logger.Warn(e.tag+".circuit_rejected",
				zap.String("url", req.URL.String()),
				zap.Error(err))
			return fmt.Errorf("%s: %w", e.tag, ErrCircuitOpen)
		}
	} else {
		body, err = e.doWithRetry(ctx, req)
	}
	if err != nil {
		var cs *clientSideError
		if errors.As(err, &cs) {
			return cs.err
		}
		return err
	}

	if out != nil && len(body) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			e.logger.Warn(e.tag+".decode_failed",
				zap.Error(err),
				zap.String("url", req.URL.String()),
				zap.String("body", string(body)))
			return fmt.Errorf("decode failed: %w", err)
		}
	}
	return nil
}

func (e *Executor) doWithRetry(ctx context.Context, req *http.Request) ([]byte, error) {
	var (
		attempt int
		body    []byte
		lastErr error
	)
	b := retry.WithMaxRetries(uint64(e.retryMax), retry.BackoffFunc(func() (time.Duration, bool) { // #nosec G115 - retryMax >= 0
		return e.backoff(attempt - 1), false
	}))

	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		var retryable bool
		body, retryable, lastErr = e.once(ctx, req, attempt-1)
		if lastErr != nil && retryable {
			return retry.RetryableError(lastErr)
		}
		return lastErr
	})
	if err == nil {
		return body, nil
	}
	var cs *clientSideError
	if errors.As(err, &cs) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil, err
	}
	return nil, fmt.Errorf("%s request failed after %d attempts: %w", e.tag, attempt, lastErr)
}

// once performs a single attempt and reports whether a failure may be retried.
func (e *Executor) once(ctx context.Context, req *http.Request, attempt int) ([]byte, bool, error) {
	attemptReq := req.Clone(ctx)
	if req.GetBody != nil {
		rc, err := req.GetBody()
		if err != nil {
			return nil, false, fmt.Errorf("rewind request body: %w", err)
		}
		attemptReq.Body = rc
	}

	start := time.Now()
	resp, err := e.http.Do(attemptReq)
	if err != nil {
		metrics.IncRequest(req.Method, "transport_error")
		e.logger.Warn(e.tag+".http_failed",
			zap.String("url", req.URL.String()),
			zap.Error(err),
			zap.Int("attempt", attempt))
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		return nil, true, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(resp.Body)
	elapsed := time.Since(start)
	metrics.IncRequest(req.Method, fmt.Sprintf("%d", resp.StatusCode))
	metrics.RequestDuration.WithLabelValues(req.Method).Observe(elapsed.Seconds())

	if resp.StatusCode >= 500 {
		e.logger.Warn(e.tag+".server_error",
			zap.Int("status", resp.StatusCode),
			zap.String("url", req.URL.String()),
			zap.Duration("latency", elapsed),
			zap.Int("attempt", attempt))
		return nil, true, &StatusError{Status: resp.StatusCode, Body: body}
	}

	if resp.StatusCode >= 400 {
		var err error
		if e.errorHandler != nil {
			err = e.errorHandler(resp.StatusCode, body)
		} else {
			err = &StatusError{Status: resp.StatusCode, Body: body}
		}
		return nil, false, &clientSideError{err: err}
	}

	e.logger.Debug(e.tag+".http_success",
		zap.String("url", req.URL.String()),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", elapsed))

	return body, false, nil
}
