package tokens

import (
	"sync"
	"time"
)

// Store holds the current token bundle for one account. Safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	bundle Bundle
	window time.Duration
}

// NewStore creates an empty store. A non-positive window uses DefaultRefreshWindow.
func NewStore(window time.Duration) *Store {
	if window <= 0 {
		window = DefaultRefreshWindow
	}
	return &Store{window: window}
}

// Get returns the stored bundle and whether one is present.
func (s *Store) Get() (Bundle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bundle, s.bundle.AccessToken != ""
}

// Set replaces the stored bundle.
func (s *Store) Set(b Bundle) {
	s.mu.Lock()
	s.bundle = b
	s.mu.Unlock()
}

// Clear drops the stored bundle.
func (s *Store) Clear() {
	s.mu.Lock()
	s.bundle = Bundle{}
	s.mu.Unlock()
}

// Access returns the stored access token.
func (s *Store) Access() Token {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bundle.Access(s.window)
}

// RefreshToken returns the stored refresh token, or "".
func (s *Store) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bundle.RefreshToken
}

// Window returns the refresh window applied to stored tokens.
func (s *Store) Window() time.Duration {
	return s.window
}
