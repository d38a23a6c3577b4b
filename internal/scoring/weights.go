// Package scoring provides the deterministic fit scorer that turns an event,
// an intention, and retrieval similarities into a single explainable score.
package scoring

import (
	"math"
	"time"

	"github.com/citypulse/citypulse/internal/event"
	"github.com/citypulse/citypulse/internal/intention"
)

// clamp01 clamps a value to the [0, 1] range.
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// SimilarityWeight combines textual and semantic similarity into one
// component. Semantic similarity dominates when both are present; either
// alone is used as-is. Inputs are expected in [0, 1] and are clamped.
func SimilarityWeight(textScore, semanticScore float64) float64 {
	text := clamp01(textScore)
	semantic := clamp01(semanticScore)
	if text == 0 {
		return semantic
	}
	if semantic == 0 {
		return text
	}
	return clamp01(0.6*semantic + 0.4*text)
}

// moodAffinity maps a mood to per-category affinity. Categories absent from
// a mood's row score the neutral defaultAffinity.
var moodAffinity = map[string]map[event.Category]float64{
	"electric": {event.CategoryMusic: 1.0, event.CategoryNightlife: 0.9, event.CategorySports: 0.5, event.CategoryArts: 0.4},
	"chill":    {event.CategoryArts: 0.8, event.CategoryFood: 0.7, event.CategoryOutdoors: 0.7, event.CategoryLearning: 0.6},
	"curious":  {event.CategoryLearning: 1.0, event.CategoryArts: 0.8, event.CategoryCommunity: 0.6},
	"social":   {event.CategoryCommunity: 1.0, event.CategoryNightlife: 0.8, event.CategoryFood: 0.7},
	"romantic": {event.CategoryArts: 0.9, event.CategoryFood: 0.9, event.CategoryMusic: 0.6},
	"active":   {event.CategorySports: 1.0, event.CategoryOutdoors: 0.9, event.CategoryMusic: 0.4},
	"artsy":    {event.CategoryArts: 1.0, event.CategoryMusic: 0.7, event.CategoryLearning: 0.5},
	"hungry":   {event.CategoryFood: 1.0, event.CategoryCommunity: 0.5, event.CategoryNightlife: 0.4},
}

const (
	defaultAffinity = 0.3
	neutralAffinity = 0.5
)

// MoodWeight scores how well an event category fits a mood.
// An empty or unknown mood is neutral rather than penalizing.
func MoodWeight(mood string, category event.Category) float64 {
	row, ok := moodAffinity[mood]
	if !ok {
		return neutralAffinity
	}
	if affinity, ok := row[category]; ok {
		return affinity
	}
	return defaultAffinity
}

// PriceWeight scores how well a price fits a budget tier.
// Free events always score 1.0. Within the tier's ceiling the score decays
// linearly from 1.0 to 0.5; beyond the ceiling it decays toward zero.
// A splurge budget (no ceiling) accepts any price at full score.
func PriceWeight(price float64, budget intention.BudgetTier) float64 {
	if price <= 0 {
		return 1.0
	}

	ceiling := budget.PriceCeiling()
	if ceiling < 0 {
		return 1.0
	}
	if ceiling == 0 {
		// Free budget but a priced event: steep decay, cheap events retain
		// a little score so they can still surface when nothing free exists.
		return clamp01(0.3 - price/100.0)
	}

	ratio := price / ceiling
	if ratio <= 1 {
		return 1.0 - 0.5*ratio
	}
	return clamp01(0.5 - 0.5*(ratio-1))
}

// RecencyWeight scores the event's start time against the intention's time
// window. Events already underway score 1.0. With no window constraint,
// events within the next 24h decay hyperbolically; beyond that, gently to 0.
func RecencyWeight(start time.Time, now time.Time, windowEnd time.Time) float64 {
	untilStart := start.Sub(now)
	if untilStart <= 0 {
		return 1.0
	}

	if !windowEnd.IsZero() {
		span := windowEnd.Sub(now)
		if span <= 0 {
			return 1.0
		}
		if untilStart >= span {
			return 0.0
		}
		return clamp01(1.0 - float64(untilStart)/float64(span))
	}

	// No explicit window: 1.0 now, 0.5 at 24h out, decaying beyond.
	days := untilStart.Hours() / 24.0
	return clamp01(1.0 / (1.0 + days))
}

// DistanceWeight converts distance into a proximity score using a hyperbolic
// decay scaled by the requested range: an event at exactly the requested
// distance scores 0.5. When no range was requested a 5 km scale applies.
func DistanceWeight(distanceKm float64, requestedKm float64) float64 {
	if distanceKm < 0 {
		distanceKm = 0
	}
	scale := requestedKm
	if scale <= 0 {
		scale = 5.0
	}
	return 1.0 / (1.0 + distanceKm/scale)
}

// SocialProof holds raw engagement counts for an event.
type SocialProof struct {
	Views  int
	Saves  int
	Shares int
}

// weighted returns the engagement total with saves counted twice and
// shares three times.
func (s SocialProof) weighted() float64 {
	return float64(s.Views) + 2.0*float64(s.Saves) + 3.0*float64(s.Shares)
}

// socialSaturation is the weighted engagement count at which the social
// proof score saturates at 1.0.
const socialSaturation = 1000.0

// SocialWeight log-scales weighted engagement counts into [0, 1].
func SocialWeight(proof SocialProof) float64 {
	w := proof.weighted()
	if w <= 0 {
		return 0
	}
	return clamp01(math.Log1p(w) / math.Log1p(socialSaturation))
}
