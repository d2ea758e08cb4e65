package secrets

import (
	"context"
	"errors"
)

// Provider defines a generic secrets manager interface.
type Provider interface {
	// GetSecret retrieves a secret by key/path and returns a key-value map.
	GetSecret(ctx context.Context, key string) (map[string]string, error)

	// ListSecrets returns the names of all secrets whose name matches the given prefix.
	ListSecrets(ctx context.Context, prefix string) ([]string, error)
}

// Credentials are the username/password used to log in to the recommendation API.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// ErrMissingCredentials is returned when a secret lacks username or password.
var ErrMissingCredentials = errors.New("credentials: username and password are required")

// Validate checks that both fields are set.
func (c Credentials) Validate() error {
	if c.Username == "" || c.Password == "" {
		return ErrMissingCredentials
	}
	return nil
}

// CredentialsSource yields login credentials on demand. Implementations may cache.
type CredentialsSource interface {
	Credentials(ctx context.Context) (Credentials, error)
}

// Static is a CredentialsSource backed by fixed values (e.g. from the environment).
type Static Credentials

func (s Static) Credentials(context.Context) (Credentials, error) {
	c := Credentials(s)
	if err := c.Validate(); err != nil {
		return Credentials{}, err
	}
	return c, nil
}

// ParseCredentials extracts Credentials from a raw secret map.
func ParseCredentials(m map[string]string) (Credentials, error) {
	c := Credentials{Username: m["username"], Password: m["password"]}
	if err := c.Validate(); err != nil {
		return Credentials{}, err
	}
	return c, nil
}
