// Package bandit selects among slate-composition policies per request and
// tracks per-policy reward statistics. Statistics live behind a Store
// interface so the selector never owns process-global mutable state.
package bandit

import (
	"context"
	"errors"
	"sync"
	"time"
)

// successThreshold is the reward at or above which a trial counts as a
// success for the Beta-like Thompson approximation.
const successThreshold = 0.5

// ErrUnknownPolicy is returned when recording an outcome for a policy the
// store has never been told about.
var ErrUnknownPolicy = errors.New("unknown policy")

// Stats holds per-policy reward statistics. Mutated only through
// Store.Update; read by selection.
type Stats struct {
	Policy      string    `json:"policy"`
	Trials      int64     `json:"trials"`
	Successes   int64     `json:"successes"`
	TotalReward float64   `json:"total_reward"`
	LastUsed    time.Time `json:"last_used"`
}

// AverageReward returns the observed mean reward, zero before any trials.
func (s Stats) AverageReward() float64 {
	if s.Trials == 0 {
		return 0
	}
	return s.TotalReward / float64(s.Trials)
}

// clampReward clamps a reward to [0, 1] before recording.
func clampReward(r float64) float64 {
	if r < 0 {
		return 0
	}
	if r > 1 {
		return 1
	}
	return r
}

// Store persists bandit statistics. Implementations must be safe for
// concurrent use: every request records outcomes.
type Store interface {
	// Get returns stats for one policy, or ErrUnknownPolicy.
	Get(ctx context.Context, policy string) (Stats, error)

	// List returns stats for all registered policies in registration order.
	List(ctx context.Context) ([]Stats, error)

	// Update records one reward (clamped to [0, 1]) for a policy.
	Update(ctx context.Context, policy string, reward float64) error

	// Touch records that a policy was just selected.
	Touch(ctx context.Context, policy string) error
}

// MemoryStore implements Store with mutex-guarded in-memory statistics.
type MemoryStore struct {
	mu       sync.RWMutex
	order    []string
	stats    map[string]*Stats
	now      func() time.Time
}

// NewMemoryStore creates a MemoryStore pre-registered with the given
// policy names.
func NewMemoryStore(policies ...string) *MemoryStore {
	s := &MemoryStore{
		stats: make(map[string]*Stats, len(policies)),
		now:   time.Now,
	}
	for _, p := range policies {
		s.order = append(s.order, p)
		s.stats[p] = &Stats{Policy: p}
	}
	return s
}

// SetNow overrides the clock, for tests.
func (s *MemoryStore) SetNow(now func() time.Time) { s.now = now }

// Get returns stats for one policy.
func (s *MemoryStore) Get(_ context.Context, policy string) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.stats[policy]
	if !ok {
		return Stats{}, ErrUnknownPolicy
	}
	return *st, nil
}

// List returns stats for all registered policies in registration order.
func (s *MemoryStore) List(_ context.Context) ([]Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Stats, 0, len(s.order))
	for _, p := range s.order {
		out = append(out, *s.stats[p])
	}
	return out, nil
}

// Update records one reward for a policy.
func (s *MemoryStore) Update(_ context.Context, policy string, reward float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.stats[policy]
	if !ok {
		return ErrUnknownPolicy
	}
	reward = clampReward(reward)
	st.Trials++
	st.TotalReward += reward
	if reward >= successThreshold {
		st.Successes++
	}
	return nil
}

// Touch records that a policy was just selected.
func (s *MemoryStore) Touch(_ context.Context, policy string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.stats[policy]
	if !ok {
		return ErrUnknownPolicy
	}
	st.LastUsed = s.now()
	return nil
}
