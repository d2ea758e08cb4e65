package tokens

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// DefaultRefreshWindow is how long before expiry a token asks to be refreshed.
	DefaultRefreshWindow = 5 * time.Minute
	// DefaultTTL is assumed when neither the token nor the server reports an expiry.
	DefaultTTL = time.Hour
)

// now is swapped in tests.
var now = time.Now

// Token is an access token with its expiry. The zero Token is expired.
type Token struct {
	Value         string
	ExpiresAt     time.Time
	RefreshWindow time.Duration
}

// IsExpired reports whether the token can no longer be used.
func (t Token) IsExpired() bool {
	return t.Value == "" || !now().Before(t.ExpiresAt)
}

// NeedRefresh reports whether the token is still valid but inside its refresh window.
func (t Token) NeedRefresh() bool {
	if t.IsExpired() {
		return false
	}
	return !now().Before(t.ExpiresAt.Add(-t.RefreshWindow))
}

// Bundle is the access/refresh pair returned by the auth endpoints.
type Bundle struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	Exp          int64  `json:"exp"` // Unix timestamp
}

// NewBundle builds a Bundle, taking the expiry from the access token's "exp" claim
// when it is a JWT, else from expiresIn seconds, else DefaultTTL.
func NewBundle(access, refresh string, expiresIn int64) Bundle {
	b := Bundle{AccessToken: access, RefreshToken: refresh}
	switch {
	case jwtExpiry(access) > 0:
		b.Exp = jwtExpiry(access)
	case expiresIn > 0:
		b.Exp = now().Add(time.Duration(expiresIn) * time.Second).Unix()
	default:
		b.Exp = now().Add(DefaultTTL).Unix()
	}
	return b
}

// ExpiresAt returns the bundle expiry as a time.
func (b Bundle) ExpiresAt() time.Time {
	return time.Unix(b.Exp, 0)
}

// Access returns the access token with the given refresh window.
func (b Bundle) Access(window time.Duration) Token {
	return Token{Value: b.AccessToken, ExpiresAt: b.ExpiresAt(), RefreshWindow: window}
}

// jwtExpiry reads the exp claim without verifying the signature; the server that
// issued the token is the one that checks it.
func jwtExpiry(value string) int64 {
	if value == "" {
		return 0
	}
	tok, _, err := jwt.NewParser().ParseUnverified(value, jwt.MapClaims{})
	if err != nil {
		return 0
	}
	exp, err := tok.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return 0
	}
	return exp.Unix()
}
