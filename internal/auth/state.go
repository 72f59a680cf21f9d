package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// DefaultStateTTL bounds how long a user may take on GitHub's consent screen.
const DefaultStateTTL = 10 * time.Minute

// StateStore holds pending OAuth authorizations. A state is single use:
// Consume reports true at most once per saved state, and never after it
// expired.
type StateStore interface {
	Save(ctx context.Context, state string, expiresAt time.Time) error
	Consume(ctx context.Context, state string) (bool, error)
}

// NewState returns an unguessable state token.
func NewState() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("auth: generating state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// MemoryStateStore keeps states in process memory. Suitable for a single
// instance; use the SQLite store when several instances share a database.
type MemoryStateStore struct {
	mu    sync.Mutex
	cache *cache.Cache
}

// NewMemoryStateStore creates a store whose expired entries are purged every
// cleanup interval.
func NewMemoryStateStore(cleanup time.Duration) *MemoryStateStore {
	if cleanup <= 0 {
		cleanup = time.Minute
	}
	return &MemoryStateStore{cache: cache.New(DefaultStateTTL, cleanup)}
}

func (s *MemoryStateStore) Save(_ context.Context, state string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return fmt.Errorf("auth: state already expired")
	}
	s.cache.Set(state, struct{}{}, ttl)
	return nil
}

func (s *MemoryStateStore) Consume(_ context.Context, state string) (bool, error) {
	if state == "" {
		return false, nil
	}

	// Get and Delete must be atomic so a replayed callback loses the race.
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.cache.Get(state); !ok {
		return false, nil
	}
	s.cache.Delete(state)
	return true, nil
}
