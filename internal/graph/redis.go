package graph

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis key layout:
//
//	heat:{event}:{kind}:{yyyymmddhh}   hourly engagement bucket (counter)
//	cats:{user}                        hash of category -> interaction count
//	venues:{user}                      set of visited venue ids
//	friends:{user}                     set of friend user ids
//	attendees:{event}                  set of engaged user ids
//	eventmeta:{event}                  hash with category and venue_id
const (
	heatKeyFmt      = "heat:%s:%s:%s"
	catsKeyFmt      = "cats:%s"
	venuesKeyFmt    = "venues:%s"
	friendsKeyFmt   = "friends:%s"
	attendeesKeyFmt = "attendees:%s"
	eventMetaKeyFmt = "eventmeta:%s"
)

// heatBucketTTL keeps hourly buckets around slightly longer than the widest
// supported lookback window.
const heatBucketTTL = 8 * 24 * time.Hour

// RedisProvider implements Provider over windowed redis counters and sets
// populated by the ingestion/interaction pipeline.
type RedisProvider struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisProvider creates a redis-backed graph provider.
func NewRedisProvider(client *redis.Client) *RedisProvider {
	return &RedisProvider{client: client, now: time.Now}
}

// SetNow overrides the clock, for tests.
func (p *RedisProvider) SetNow(now func() time.Time) { p.now = now }

func hourBucket(t time.Time) string {
	return t.UTC().Format("2006010215")
}

// RecordActivity increments the current hourly heat bucket for an event and,
// when the user is known, updates the familiarity and attendee structures.
func (p *RedisProvider) RecordActivity(ctx context.Context, userID, eventID string, kind ActivityKind) error {
	bucket := fmt.Sprintf(heatKeyFmt, eventID, string(kind), hourBucket(p.now()))

	pipe := p.client.Pipeline()
	pipe.Incr(ctx, bucket)
	pipe.Expire(ctx, bucket, heatBucketTTL)
	if userID != "" {
		pipe.SAdd(ctx, fmt.Sprintf(attendeesKeyFmt, eventID), userID)

		meta, err := p.client.HGetAll(ctx, fmt.Sprintf(eventMetaKeyFmt, eventID)).Result()
		if err == nil {
			if cat := meta["category"]; cat != "" {
				pipe.HIncrBy(ctx, fmt.Sprintf(catsKeyFmt, userID), cat, 1)
			}
			if venue := meta["venue_id"]; venue != "" {
				pipe.SAdd(ctx, fmt.Sprintf(venuesKeyFmt, userID), venue)
			}
		}
	}

	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("record activity: %w", err)
	}
	return nil
}

// Novelty scores how unlike the user's history each event is.
func (p *RedisProvider) Novelty(ctx context.Context, userID string, ids []string) (map[string]float64, error) {
	out := make(map[string]float64, len(ids))
	if userID == "" {
		for _, id := range ids {
			out[id] = NeutralNovelty
		}
		return out, nil
	}

	cats, err := p.client.HGetAll(ctx, fmt.Sprintf(catsKeyFmt, userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("novelty categories: %w", err)
	}

	for _, id := range ids {
		meta, err := p.client.HGetAll(ctx, fmt.Sprintf(eventMetaKeyFmt, id)).Result()
		if err != nil || len(meta) == 0 {
			out[id] = NeutralNovelty
			continue
		}

		if venue := meta["venue_id"]; venue != "" {
			seen, err := p.client.SIsMember(ctx, fmt.Sprintf(venuesKeyFmt, userID), venue).Result()
			if err == nil && seen {
				out[id] = venueRepeatNovelty
				continue
			}
		}

		count := 0
		if raw, ok := cats[meta["category"]]; ok {
			count, _ = strconv.Atoi(raw)
		}
		familiarity := float64(count) / familiarCategoryCount
		if familiarity > 1 {
			familiarity = 1
		}
		out[id] = 1 - familiarity
	}
	return out, nil
}

// FriendOverlap counts the user's friends engaged with each event via set
// intersection cardinality.
func (p *RedisProvider) FriendOverlap(ctx context.Context, userID string, ids []string) (map[string]int, error) {
	out := make(map[string]int, len(ids))
	if userID == "" {
		for _, id := range ids {
			out[id] = 0
		}
		return out, nil
	}

	friendsKey := fmt.Sprintf(friendsKeyFmt, userID)
	for _, id := range ids {
		n, err := p.client.SInterCard(ctx, 0, friendsKey, fmt.Sprintf(attendeesKeyFmt, id)).Result()
		if err != nil {
			return nil, fmt.Errorf("friend overlap for %s: %w", id, err)
		}
		out[id] = int(n)
	}
	return out, nil
}

// SocialHeat sums weighted hourly buckets over the trailing window and
// normalizes by the batch maximum.
func (p *RedisProvider) SocialHeat(ctx context.Context, ids []string, hoursBack int) (map[string]float64, error) {
	now := p.now()
	kinds := []struct {
		kind   ActivityKind
		weight float64
	}{
		{ActivityView, ViewWeight},
		{ActivitySave, SaveWeight},
		{ActivityShare, ShareWeight},
	}

	raw := make(map[string]float64, len(ids))
	for _, id := range ids {
		keys := make([]string, 0, hoursBack*len(kinds))
		weights := make([]float64, 0, hoursBack*len(kinds))
		for h := 0; h < hoursBack; h++ {
			bucket := hourBucket(now.Add(-time.Duration(h) * time.Hour))
			for _, k := range kinds {
				keys = append(keys, fmt.Sprintf(heatKeyFmt, id, string(k.kind), bucket))
				weights = append(weights, k.weight)
			}
		}

		vals, err := p.client.MGet(ctx, keys...).Result()
		if err != nil {
			return nil, fmt.Errorf("social heat for %s: %w", id, err)
		}

		var total float64
		for i, v := range vals {
			s, ok := v.(string)
			if !ok {
				continue
			}
			if n, err := strconv.ParseFloat(s, 64); err == nil {
				total += n * weights[i]
			}
		}
		raw[id] = total
	}
	return normalizeHeat(raw), nil
}

// Engagement sums the raw per-kind hourly buckets over the trailing window.
func (p *RedisProvider) Engagement(ctx context.Context, ids []string, hoursBack int) (map[string]Engagement, error) {
	now := p.now()
	out := make(map[string]Engagement, len(ids))
	for _, id := range ids {
		var eng Engagement
		for _, kind := range []ActivityKind{ActivityView, ActivitySave, ActivityShare} {
			keys := make([]string, 0, hoursBack)
			for h := 0; h < hoursBack; h++ {
				bucket := hourBucket(now.Add(-time.Duration(h) * time.Hour))
				keys = append(keys, fmt.Sprintf(heatKeyFmt, id, string(kind), bucket))
			}

			vals, err := p.client.MGet(ctx, keys...).Result()
			if err != nil {
				return nil, fmt.Errorf("engagement for %s: %w", id, err)
			}

			total := 0
			for _, v := range vals {
				s, ok := v.(string)
				if !ok {
					continue
				}
				if n, err := strconv.Atoi(s); err == nil {
					total += n
				}
			}
			switch kind {
			case ActivitySave:
				eng.Saves = total
			case ActivityShare:
				eng.Shares = total
			default:
				eng.Views = total
			}
		}
		out[id] = eng
	}
	return out, nil
}
