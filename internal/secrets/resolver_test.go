package secrets

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgsecrets "github.com/Checker-Finance/recommend-go/pkg/secrets"
)

type fakeProvider struct {
	secrets map[string]map[string]string
	names   []string
	gets    int
	err     error
}

func (f *fakeProvider) GetSecret(_ context.Context, key string) (map[string]string, error) {
	f.gets++
	if f.err != nil {
		return nil, f.err
	}
	m, ok := f.secrets[key]
	if !ok {
		return nil, errors.New("not found")
	}
	return m, nil
}

func (f *fakeProvider) ListSecrets(_ context.Context, _ string) ([]string, error) {
	return f.names, f.err
}

func newCredsResolver(p pkgsecrets.Provider) *Resolver[pkgsecrets.Credentials] {
	return NewResolver(nil, "prod", "recommend", p,
		pkgsecrets.NewCache[pkgsecrets.Credentials](time.Hour), pkgsecrets.ParseCredentials)
}

func TestResolver_FetchesThenCaches(t *testing.T) {
	p := &fakeProvider{secrets: map[string]map[string]string{
		"prod/acme/recommend": {"username": "u", "password": "p"},
	}}
	r := newCredsResolver(p)

	c, err := r.Resolve(context.Background(), "ACME")
	require.NoError(t, err)
	assert.Equal(t, pkgsecrets.Credentials{Username: "u", Password: "p"}, c)

	_, err = r.Resolve(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, 1, p.gets, "second resolve must hit the cache")
}

func TestResolver_InvalidateRefetches(t *testing.T) {
	p := &fakeProvider{secrets: map[string]map[string]string{
		"prod/acme/recommend": {"username": "u", "password": "p"},
	}}
	r := newCredsResolver(p)

	_, err := r.Resolve(context.Background(), "acme")
	require.NoError(t, err)
	r.Invalidate("acme")
	_, err = r.Resolve(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, 2, p.gets)
}

func TestResolver_ParseErrorNotCached(t *testing.T) {
	p := &fakeProvider{secrets: map[string]map[string]string{
		"prod/acme/recommend": {"username": "u"},
	}}
	r := newCredsResolver(p)

	_, err := r.Resolve(context.Background(), "acme")
	require.Error(t, err)
	assert.ErrorIs(t, err, pkgsecrets.ErrMissingCredentials)

	_, _ = r.Resolve(context.Background(), "acme")
	assert.Equal(t, 2, p.gets)
}

func TestResolver_ProviderError(t *testing.T) {
	r := newCredsResolver(&fakeProvider{err: errors.New("aws down")})
	_, err := r.Resolve(context.Background(), "acme")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "aws down")
}

func TestResolver_DiscoverAccounts(t *testing.T) {
	p := &fakeProvider{names: []string{
		"prod/acme/recommend",
		"prod/Globex/recommend",
		"prod/acme/other",
		"prod/a/b/recommend",
		"dev/acme/recommend",
	}}
	r := newCredsResolver(p)

	accounts, err := r.DiscoverAccounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"acme", "globex"}, accounts)
}

func TestAccountCredentials(t *testing.T) {
	p := &fakeProvider{secrets: map[string]map[string]string{
		"prod/acme/recommend": {"username": "u", "password": "p"},
	}}
	src := AccountCredentials{Resolver: newCredsResolver(p), Account: "acme"}

	c, err := src.Credentials(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "u", c.Username)
}
