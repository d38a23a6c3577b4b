package ads

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// FrequencyCapper tracks impressions per (campaign, session) over a
// trailing 24 hours.
type FrequencyCapper interface {
	// Count returns impressions served to the session for the campaign
	// in the last 24 hours.
	Count(ctx context.Context, campaignID, sessionID string) (int, error)
	// Record adds one impression to the pair's counter.
	Record(ctx context.Context, campaignID, sessionID string) error
}

// CheckFrequencyCap admits a campaign only while the session is under its
// cap. The campaign's own cap wins, then the deployment default, then the
// package default. A capper error fails open: a miscounted extra impression
// is cheaper than dropping sponsorship revenue for the whole request.
func CheckFrequencyCap(ctx context.Context, capper FrequencyCapper, c *Campaign, sessionID string, defaultCap int) bool {
	if capper == nil || sessionID == "" {
		return true
	}
	count, err := capper.Count(ctx, c.ID, sessionID)
	if err != nil {
		return true
	}
	limit := c.FrequencyCap
	if limit <= 0 {
		limit = defaultCap
	}
	if limit <= 0 {
		limit = DefaultFrequencyCap
	}
	return count < limit
}

// RedisFrequencyCapper counts impressions in hourly redis buckets so the
// trailing window slides without per-impression timestamps.
type RedisFrequencyCapper struct {
	client *redis.Client
}

// NewRedisFrequencyCapper creates a redis-backed frequency capper.
func NewRedisFrequencyCapper(client *redis.Client) *RedisFrequencyCapper {
	return &RedisFrequencyCapper{client: client}
}

const freqBucketTTL = 25 * time.Hour

func freqKey(campaignID, sessionID string, t time.Time) string {
	return fmt.Sprintf("freq:%s:%s:%s", campaignID, sessionID, t.UTC().Format("2006010215"))
}

// Count sums the trailing 24 hourly buckets for the pair.
func (f *RedisFrequencyCapper) Count(ctx context.Context, campaignID, sessionID string) (int, error) {
	now := time.Now()
	keys := make([]string, 0, 24)
	for h := 0; h < 24; h++ {
		keys = append(keys, freqKey(campaignID, sessionID, now.Add(-time.Duration(h)*time.Hour)))
	}
	vals, err := f.client.MGet(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("read frequency buckets: %w", err)
	}
	total := 0
	for _, v := range vals {
		if s, ok := v.(string); ok {
			var n int
			if _, err := fmt.Sscanf(s, "%d", &n); err == nil {
				total += n
			}
		}
	}
	return total, nil
}

// Record increments the current hourly bucket.
func (f *RedisFrequencyCapper) Record(ctx context.Context, campaignID, sessionID string) error {
	key := freqKey(campaignID, sessionID, time.Now())
	pipe := f.client.TxPipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, freqBucketTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record frequency: %w", err)
	}
	return nil
}

// MemoryFrequencyCapper implements FrequencyCapper with in-memory storage.
type MemoryFrequencyCapper struct {
	mu          sync.Mutex
	impressions map[string][]time.Time
	now         func() time.Time
}

// NewMemoryFrequencyCapper creates a new in-memory frequency capper.
func NewMemoryFrequencyCapper() *MemoryFrequencyCapper {
	return &MemoryFrequencyCapper{
		impressions: make(map[string][]time.Time),
		now:         time.Now,
	}
}

// SetNow overrides the clock for tests.
func (f *MemoryFrequencyCapper) SetNow(now func() time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = now
}

func pairKey(campaignID, sessionID string) string {
	return campaignID + ":" + sessionID
}

// Count returns the pair's impressions within the trailing 24 hours.
func (f *MemoryFrequencyCapper) Count(_ context.Context, campaignID, sessionID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	cutoff := f.now().Add(-24 * time.Hour)
	count := 0
	for _, t := range f.impressions[pairKey(campaignID, sessionID)] {
		if t.After(cutoff) {
			count++
		}
	}
	return count, nil
}

// Record adds an impression timestamp, pruning entries past the window.
func (f *MemoryFrequencyCapper) Record(_ context.Context, campaignID, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := pairKey(campaignID, sessionID)
	cutoff := f.now().Add(-24 * time.Hour)
	kept := f.impressions[key][:0]
	for _, t := range f.impressions[key] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	f.impressions[key] = append(kept, f.now())
	return nil
}
