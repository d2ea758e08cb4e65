package tokens

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freezeClock(t *testing.T, at time.Time) {
	t.Helper()
	prev := now
	now = func() time.Time { return at }
	t.Cleanup(func() { now = prev })
}

func signedJWT(t *testing.T, exp time.Time) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "svc",
		"exp": exp.Unix(),
	}).SignedString([]byte("test-key"))
	require.NoError(t, err)
	return s
}

// ─── Token state ─────────────────────────────────────────────────────────────

func TestToken_ZeroValueIsExpired(t *testing.T) {
	var tok Token
	assert.True(t, tok.IsExpired())
	assert.False(t, tok.NeedRefresh())
}

func TestToken_States(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	freezeClock(t, base)

	fresh := Token{Value: "a", ExpiresAt: base.Add(time.Hour), RefreshWindow: 5 * time.Minute}
	assert.False(t, fresh.IsExpired())
	assert.False(t, fresh.NeedRefresh())

	closing := Token{Value: "a", ExpiresAt: base.Add(2 * time.Minute), RefreshWindow: 5 * time.Minute}
	assert.False(t, closing.IsExpired())
	assert.True(t, closing.NeedRefresh())

	expired := Token{Value: "a", ExpiresAt: base, RefreshWindow: 5 * time.Minute}
	assert.True(t, expired.IsExpired())
	assert.False(t, expired.NeedRefresh(), "expired tokens report expiry, not refresh")
}

// ─── Bundle expiry sources ───────────────────────────────────────────────────

func TestNewBundle_ExpiryFromJWT(t *testing.T) {
	exp := time.Now().Add(30 * time.Minute).Truncate(time.Second)
	access := signedJWT(t, exp)

	b := NewBundle(access, "r1", 7200)
	assert.Equal(t, exp.Unix(), b.Exp, "jwt exp wins over expires_in")
	assert.Equal(t, "r1", b.RefreshToken)
}

func TestNewBundle_ExpiryFromExpiresIn(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	freezeClock(t, base)

	b := NewBundle("opaque-token", "", 600)
	assert.Equal(t, base.Add(10*time.Minute).Unix(), b.Exp)
}

func TestNewBundle_DefaultTTL(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	freezeClock(t, base)

	b := NewBundle("opaque-token", "", 0)
	assert.Equal(t, base.Add(DefaultTTL).Unix(), b.Exp)
}

// ─── Store ───────────────────────────────────────────────────────────────────

func TestStore_SetGetClear(t *testing.T) {
	s := NewStore(0)
	assert.Equal(t, DefaultRefreshWindow, s.Window())

	_, ok := s.Get()
	assert.False(t, ok)
	assert.True(t, s.Access().IsExpired())

	s.Set(Bundle{AccessToken: "a", RefreshToken: "r", Exp: time.Now().Add(time.Hour).Unix()})
	b, ok := s.Get()
	require.True(t, ok)
	assert.Equal(t, "a", b.AccessToken)
	assert.Equal(t, "r", s.RefreshToken())
	assert.False(t, s.Access().IsExpired())

	s.Clear()
	_, ok = s.Get()
	assert.False(t, ok)
	assert.Empty(t, s.RefreshToken())
}

func TestStore_ConcurrentAccess(t *testing.T) {
	s := NewStore(time.Minute)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.Set(Bundle{AccessToken: "a", Exp: time.Now().Add(time.Hour).Unix()})
		}()
		go func() {
			defer wg.Done()
			_ = s.Access().IsExpired()
		}()
	}
	wg.Wait()
	_, ok := s.Get()
	assert.True(t, ok)
}

// ─── Redis cache ─────────────────────────────────────────────────────────────

func newRedisCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCache(client, "", nil), mr
}

func TestRedisCache_RoundTrip(t *testing.T) {
	c, mr := newRedisCache(t)
	ctx := context.Background()

	in := Bundle{AccessToken: "a", RefreshToken: "r", Exp: time.Now().Add(10 * time.Minute).Unix()}
	require.NoError(t, c.Set(ctx, "acct", in))

	assert.True(t, mr.Exists("recommend:token:acct"))
	ttl := mr.TTL("recommend:token:acct")
	assert.Greater(t, ttl, 9*time.Minute)
	assert.LessOrEqual(t, ttl, 10*time.Minute)

	out, ok, err := c.Get(ctx, "acct")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, in, out)
}

func TestRedisCache_Miss(t *testing.T) {
	c, _ := newRedisCache(t)
	_, ok, err := c.Get(context.Background(), "nobody")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisCache_ExpiredBundleNotStored(t *testing.T) {
	c, mr := newRedisCache(t)
	require.NoError(t, c.Set(context.Background(), "acct", Bundle{AccessToken: "a", Exp: time.Now().Add(-time.Minute).Unix()}))
	assert.False(t, mr.Exists("recommend:token:acct"))
}

func TestRedisCache_ExpiresWithToken(t *testing.T) {
	c, mr := newRedisCache(t)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "acct", Bundle{AccessToken: "a", Exp: time.Now().Add(time.Minute).Unix()}))

	mr.FastForward(2 * time.Minute)

	_, ok, err := c.Get(ctx, "acct")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisCache_CorruptEntryIsMiss(t *testing.T) {
	c, mr := newRedisCache(t)
	require.NoError(t, mr.Set("recommend:token:acct", "not-json"))

	_, ok, err := c.Get(context.Background(), "acct")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisCache_Delete(t *testing.T) {
	c, mr := newRedisCache(t)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "acct", Bundle{AccessToken: "a", Exp: time.Now().Add(time.Hour).Unix()}))
	require.NoError(t, c.Delete(ctx, "acct"))
	assert.False(t, mr.Exists("recommend:token:acct"))
}
