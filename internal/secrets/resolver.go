package secrets

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	pkgsecrets "github.com/Checker-Finance/recommend-go/pkg/secrets"
)

// Resolver resolves per-account configuration from a secrets Provider and caches
// the parsed value locally.
//
// Secret naming convention: {env}/{account}/{service}
type Resolver[T any] struct {
	logger   *zap.Logger
	env      string
	service  string
	provider pkgsecrets.Provider
	cache    *pkgsecrets.Cache[T]
	parse    func(map[string]string) (T, error)
}

// NewResolver constructs a resolver. parse extracts T from the raw secret map and
// should validate required fields.
func NewResolver[T any](
	logger *zap.Logger,
	env string,
	service string,
	provider pkgsecrets.Provider,
	cache *pkgsecrets.Cache[T],
	parse func(map[string]string) (T, error),
) *Resolver[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver[T]{
		logger:   logger,
		env:      env,
		service:  service,
		provider: provider,
		cache:    cache,
		parse:    parse,
	}
}

func (r *Resolver[T]) cacheKey(account string) string {
	return strings.ToLower(fmt.Sprintf("%s|%s", account, r.service))
}

// SecretName builds the provider key for an account.
func (r *Resolver[T]) SecretName(account string) string {
	return strings.ToLower(fmt.Sprintf("%s/%s/%s", r.env, account, r.service))
}

// Resolve returns the cached value for account or fetches and parses it.
func (r *Resolver[T]) Resolve(ctx context.Context, account string) (T, error) {
	key := r.cacheKey(account)

	if v, ok := r.cache.Get(key); ok {
		return v, nil
	}

	secretName := r.SecretName(account)
	secretMap, err := r.provider.GetSecret(ctx, secretName)
	if err != nil {
		r.logger.Warn("secrets.fetch_failed",
			zap.String("key", secretName),
			zap.Error(err))
		var zero T
		return zero, fmt.Errorf("resolve %s config for %q: %w", r.service, account, err)
	}

	v, err := r.parse(secretMap)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("parse secret %q: %w", secretName, err)
	}

	r.cache.Put(key, v)

	r.logger.Info("secrets.config_resolved",
		zap.String("account", account),
		zap.String("service", r.service))
	return v, nil
}

// Invalidate drops the cached value so the next Resolve refetches it.
func (r *Resolver[T]) Invalidate(account string) {
	r.cache.Bust(r.cacheKey(account))
}

// DiscoverAccounts lists the accounts that have a secret for this service.
// It matches names "{env}/{account}/{service}" and extracts the middle segment.
func (r *Resolver[T]) DiscoverAccounts(ctx context.Context) ([]string, error) {
	prefix := strings.ToLower(r.env + "/")
	suffix := "/" + strings.ToLower(r.service)

	names, err := r.provider.ListSecrets(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("discover accounts: %w", err)
	}

	var accounts []string
	for _, name := range names {
		lower := strings.ToLower(name)
		if !strings.HasPrefix(lower, prefix) || !strings.HasSuffix(lower, suffix) {
			continue
		}
		trimmed := strings.TrimSuffix(strings.TrimPrefix(lower, prefix), suffix)
		if trimmed != "" && !strings.Contains(trimmed, "/") {
			accounts = append(accounts, trimmed)
		}
	}

	r.logger.Info("secrets.accounts_discovered",
		zap.Int("count", len(accounts)),
		zap.Strings("accounts", accounts))
	return accounts, nil
}

// AccountCredentials binds a credentials resolver to one account so it can be
// handed to the transport as a CredentialsSource.
type AccountCredentials struct {
	Resolver *Resolver[pkgsecrets.Credentials]
	Account  string
}

func (a AccountCredentials) Credentials(ctx context.Context) (pkgsecrets.Credentials, error) {
	return a.Resolver.Resolve(ctx, a.Account)
}

var _ pkgsecrets.CredentialsSource = AccountCredentials{}
