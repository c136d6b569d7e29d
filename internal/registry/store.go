package registry

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store holds the sim registry and its logs. All access goes through
// Snapshot and Mutate.
type Store struct {
	mu    sync.RWMutex
	state State
	nowFn func() time.Time
	idFn  func() string
}

// Option customises a Store.
type Option func(*Store)

// WithClock overrides the time source used for entry timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.nowFn = now
		}
	}
}

// WithIDs overrides the id generator used for new entries.
func WithIDs(fn func() string) Option {
	return func(s *Store) {
		if fn != nil {
			s.idFn = fn
		}
	}
}

// NewStore creates a store populated from seed.
func NewStore(seed Seed, opts ...Option) *Store {
	s := &Store{
		nowFn: func() time.Time { return time.Now().UTC() },
		idFn:  func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	s.state = State{
		sims:       append([]Sim(nil), seed.Sims...),
		registered: append([]RegisteredNumber(nil), seed.Registered...),
		nowFn:      s.nowFn,
		idFn:       s.idFn,
	}
	if seed.ReadyMessage != "" {
		s.state.AppendAlert(seed.ReadyMessage, LevelInfo)
	}
	return s
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.snapshot()
}

// Collections returns a copy of the sims and registered numbers only.
func (s *Store) Collections() Collections {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.collections()
}

// Mutate runs fn against a private copy of the state under the write lock.
// The copy replaces the live state only when fn returns nil, so a failed
// mutation leaves every collection untouched.
func (s *Store) Mutate(fn func(*State) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.state.clone()
	if err := fn(&next); err != nil {
		return err
	}
	s.state = next
	return nil
}

// View runs fn against a read-only copy of the state.
func (s *Store) View(fn func(*State) error) error {
	s.mu.RLock()
	view := s.state.clone()
	s.mu.RUnlock()
	return fn(&view)
}
