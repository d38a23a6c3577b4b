package bandit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store over per-policy redis hashes, so bandit
// statistics survive restarts and are shared across replicas. Updates use
// atomic hash increments rather than read-modify-write, so concurrent
// requests cannot lose rewards.
type RedisStore struct {
	client   *redis.Client
	policies []string
	now      func() time.Time
}

const banditKeyFmt = "bandit:%s"

// NewRedisStore creates a redis-backed bandit store registered with the
// given policy names.
func NewRedisStore(client *redis.Client, policies ...string) *RedisStore {
	return &RedisStore{client: client, policies: policies, now: time.Now}
}

// SetNow overrides the clock, for tests.
func (s *RedisStore) SetNow(now func() time.Time) { s.now = now }

func (s *RedisStore) registered(policy string) bool {
	for _, p := range s.policies {
		if p == policy {
			return true
		}
	}
	return false
}

// Get returns stats for one policy.
func (s *RedisStore) Get(ctx context.Context, policy string) (Stats, error) {
	if !s.registered(policy) {
		return Stats{}, ErrUnknownPolicy
	}

	fields, err := s.client.HGetAll(ctx, fmt.Sprintf(banditKeyFmt, policy)).Result()
	if err != nil {
		return Stats{}, fmt.Errorf("get bandit stats for %s: %w", policy, err)
	}
	return statsFromHash(policy, fields), nil
}

// List returns stats for all registered policies in registration order.
func (s *RedisStore) List(ctx context.Context) ([]Stats, error) {
	out := make([]Stats, 0, len(s.policies))
	for _, p := range s.policies {
		st, err := s.Get(ctx, p)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

// Update records one reward for a policy via atomic hash increments.
func (s *RedisStore) Update(ctx context.Context, policy string, reward float64) error {
	if !s.registered(policy) {
		return ErrUnknownPolicy
	}
	reward = clampReward(reward)
	key := fmt.Sprintf(banditKeyFmt, policy)

	pipe := s.client.TxPipeline()
	pipe.HIncrBy(ctx, key, "trials", 1)
	pipe.HIncrByFloat(ctx, key, "total_reward", reward)
	if reward >= successThreshold {
		pipe.HIncrBy(ctx, key, "successes", 1)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("update bandit stats for %s: %w", policy, err)
	}
	return nil
}

// Touch records that a policy was just selected.
func (s *RedisStore) Touch(ctx context.Context, policy string) error {
	if !s.registered(policy) {
		return ErrUnknownPolicy
	}
	key := fmt.Sprintf(banditKeyFmt, policy)
	err := s.client.HSet(ctx, key, "last_used", s.now().UTC().Format(time.RFC3339)).Err()
	if err != nil {
		return fmt.Errorf("touch bandit stats for %s: %w", policy, err)
	}
	return nil
}

func statsFromHash(policy string, fields map[string]string) Stats {
	st := Stats{Policy: policy}
	if v, ok := fields["trials"]; ok {
		st.Trials, _ = strconv.ParseInt(v, 10, 64)
	}
	if v, ok := fields["successes"]; ok {
		st.Successes, _ = strconv.ParseInt(v, 10, 64)
	}
	if v, ok := fields["total_reward"]; ok {
		st.TotalReward, _ = strconv.ParseFloat(v, 64)
	}
	if v, ok := fields["last_used"]; ok {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			st.LastUsed = t
		}
	}
	return st
}
