package rate

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Config defines request pacing for one API account.
type Config struct {
	RequestsPerSecond float64
	Burst             int
}

// Manager holds one token bucket per key (typically base URL + account).
// A zero RequestsPerSecond disables limiting.
type Manager struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
	defaults Config
}

func NewManager(defaults Config) *Manager {
	if defaults.Burst <= 0 {
		defaults.Burst = 1
	}
	return &Manager{
		limiters: make(map[string]*rate.Limiter),
		defaults: defaults,
	}
}

// GetLimiter returns the limiter for key, creating it on first use.
func (m *Manager) GetLimiter(key string) *rate.Limiter {
	m.mu.RLock()
	if lim, ok := m.limiters[key]; ok {
		m.mu.RUnlock()
		return lim
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if lim, ok := m.limiters[key]; ok {
		return lim
	}
	limit := rate.Limit(m.defaults.RequestsPerSecond)
	if m.defaults.RequestsPerSecond <= 0 {
		limit = rate.Inf
	}
	lim := rate.NewLimiter(limit, m.defaults.Burst)
	m.limiters[key] = lim
	return lim
}

// Wait blocks until key may send another request or ctx is done.
func (m *Manager) Wait(ctx context.Context, key string) error {
	return m.GetLimiter(key).Wait(ctx)
}
