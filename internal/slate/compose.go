package slate

import (
	"math"
	"sort"

	"github.com/citypulse/citypulse/internal/event"
	"github.com/citypulse/citypulse/internal/graph"
	"github.com/citypulse/citypulse/internal/scoring"
)

// trendingHeat is the social-heat level at or above which an item earns a
// "trending" reason.
const trendingHeat = 0.7

// maxReasonsPerItem caps the reasons attached to a slate item.
const maxReasonsPerItem = 3

// Candidate is a scored, signal-enriched event entering slate composition.
type Candidate struct {
	Event      *event.Event
	Fit        scoring.FitScoreResult
	Signals    graph.Signals
	DistanceKm *float64
}

// Item is the externally visible ranked unit. Read-only downstream: the
// serving layer sets sponsorship after the ad auction and nothing else
// mutates it.
type Item struct {
	Event             *event.Event `json:"event"`
	FitScore          float64      `json:"fit_score"`
	MoodScore         float64      `json:"mood_score"`
	SocialHeat        float64      `json:"social_heat"`
	Novelty           float64      `json:"novelty"`
	FriendOverlap     int          `json:"friend_overlap"`
	Reasons           []string     `json:"reasons"`
	Sponsored         bool         `json:"sponsored"`
	SponsorCampaignID string       `json:"sponsor_campaign_id,omitempty"`
	SocialPreviewID   string       `json:"social_preview_id,omitempty"`
}

// Slates is the three-way partition produced by composition. Slates need not
// be disjoint; an event may legitimately appear in more than one.
type Slates struct {
	Best      []Item `json:"best"`
	Wildcard  []Item `json:"wildcard"`
	CloseEasy []Item `json:"close_easy"`
}

// Compose partitions candidates into the three slates under a policy.
func Compose(candidates []Candidate, policy Policy) Slates {
	byFit := make([]Candidate, len(candidates))
	copy(byFit, candidates)
	sort.SliceStable(byFit, func(a, b int) bool {
		if byFit[a].Fit.Total != byFit[b].Fit.Total {
			return byFit[a].Fit.Total > byFit[b].Fit.Total
		}
		return byFit[a].Event.ID < byFit[b].Event.ID
	})

	best := byFit
	if policy.Diversify {
		best = diversify(byFit, policy.BestTopK, policy.DiversityWeight)
	}
	best = truncate(best, policy.BestTopK)

	return Slates{
		Best:      toItems(best, "best"),
		Wildcard:  toItems(wildcard(byFit, policy), "wildcard"),
		CloseEasy: toItems(closeEasy(byFit, policy), "close_easy"),
	}
}

// Ranked returns every candidate as a ranked item, best fit first, with
// generic reasons. Used for the flat paginated listing alongside the slates.
func Ranked(candidates []Candidate) []Item {
	byFit := make([]Candidate, len(candidates))
	copy(byFit, candidates)
	sort.SliceStable(byFit, func(a, b int) bool {
		if byFit[a].Fit.Total != byFit[b].Fit.Total {
			return byFit[a].Fit.Total > byFit[b].Fit.Total
		}
		return byFit[a].Event.ID < byFit[b].Event.ID
	})
	return toItems(byFit, "")
}

// wildcard selects novel candidates with acceptable fit, most novel first.
func wildcard(byFit []Candidate, policy Policy) []Candidate {
	var picked []Candidate
	for _, c := range byFit {
		if c.Signals.Novelty >= policy.NoveltyThreshold && c.Fit.Total >= policy.WildcardFitFloor {
			picked = append(picked, c)
		}
	}
	sort.SliceStable(picked, func(a, b int) bool {
		if picked[a].Signals.Novelty != picked[b].Signals.Novelty {
			return picked[a].Signals.Novelty > picked[b].Signals.Novelty
		}
		return picked[a].Fit.Total > picked[b].Fit.Total
	})
	return truncate(picked, policy.WildcardTopK)
}

// closeEasy selects affordable candidates with acceptable fit, cheapest
// first, then nearest. Candidates without a known distance sort last.
func closeEasy(byFit []Candidate, policy Policy) []Candidate {
	var picked []Candidate
	for _, c := range byFit {
		if c.Event.EffectivePrice() <= policy.CloseEasyPriceCap && c.Fit.Total >= policy.CloseEasyFitFloor {
			picked = append(picked, c)
		}
	}
	sort.SliceStable(picked, func(a, b int) bool {
		pa, pb := picked[a].Event.EffectivePrice(), picked[b].Event.EffectivePrice()
		if pa != pb {
			return pa < pb
		}
		return distanceOr(picked[a], math.Inf(1)) < distanceOr(picked[b], math.Inf(1))
	})
	return truncate(picked, policy.CloseEasyTopK)
}

func distanceOr(c Candidate, fallback float64) float64 {
	if c.DistanceKm == nil {
		return fallback
	}
	return *c.DistanceKm
}

func truncate(cs []Candidate, k int) []Candidate {
	if k < 0 {
		k = 0
	}
	if len(cs) > k {
		return cs[:k]
	}
	return cs
}

// toItems converts candidates to ranked items with slate-appropriate reasons.
func toItems(cs []Candidate, slateName string) []Item {
	items := make([]Item, 0, len(cs))
	for _, c := range cs {
		items = append(items, Item{
			Event:         c.Event,
			FitScore:      c.Fit.Total,
			MoodScore:     c.Fit.MoodScore,
			SocialHeat:    c.Signals.SocialHeat,
			Novelty:       c.Signals.Novelty,
			FriendOverlap: c.Signals.FriendOverlap,
			Reasons:       itemReasons(c, slateName),
		})
	}
	return items
}

// itemReasons generates up to maxReasonsPerItem reasons: distance bucket,
// price bucket, trending, and a slate-specific reason when applicable.
// Slate-specific reasons come first so they survive the cap.
func itemReasons(c Candidate, slateName string) []string {
	var reasons []string

	switch slateName {
	case "wildcard":
		reasons = append(reasons, "novel discovery")
	case "close_easy":
		reasons = append(reasons, "low effort, low cost")
	}

	if c.Signals.SocialHeat >= trendingHeat {
		reasons = append(reasons, "trending")
	}
	if c.DistanceKm != nil {
		reasons = append(reasons, scoring.DistanceBucket(*c.DistanceKm))
	}
	reasons = append(reasons, scoring.PriceBucket(c.Event.EffectivePrice()))

	if len(reasons) > maxReasonsPerItem {
		reasons = reasons[:maxReasonsPerItem]
	}
	return reasons
}

// Diversity penalties against already-selected items.
const (
	sameCategoryPenalty = 0.3
	sameVenuePenalty    = 0.5
	samePricePenalty    = 0.2
	priceEpsilon        = 2.0
)

// diversify greedily re-selects up to k candidates: the top-scored item is
// always kept, then each round picks the remaining candidate maximizing
// (1-w)*score + w*diversity, where diversity starts at 1.0 and loses
// sameCategoryPenalty / sameVenuePenalty / samePricePenalty for overlaps
// with the already-selected set. O(n*k) and deliberately greedy: k is small
// and scores dominate the objective.
func diversify(byFit []Candidate, k int, w float64) []Candidate {
	if len(byFit) == 0 || k <= 0 {
		return nil
	}
	if w <= 0 {
		return byFit
	}

	selected := []Candidate{byFit[0]}
	remaining := make([]Candidate, len(byFit)-1)
	copy(remaining, byFit[1:])

	for len(selected) < k && len(remaining) > 0 {
		bestIdx, bestObj := 0, math.Inf(-1)
		for i, c := range remaining {
			obj := (1-w)*c.Fit.Total + w*diversityFrom(c, selected)
			if obj > bestObj {
				bestIdx, bestObj = i, obj
			}
		}
		selected = append(selected, remaining[bestIdx])
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}
	return selected
}

// diversityFrom scores how different a candidate is from the selected set.
func diversityFrom(c Candidate, selected []Candidate) float64 {
	div := 1.0
	var sameCategory, sameVenue, samePrice bool
	for _, s := range selected {
		if s.Event.Category == c.Event.Category {
			sameCategory = true
		}
		if s.Event.VenueID != "" && s.Event.VenueID == c.Event.VenueID {
			sameVenue = true
		}
		if math.Abs(s.Event.EffectivePrice()-c.Event.EffectivePrice()) <= priceEpsilon {
			samePrice = true
		}
	}
	if sameCategory {
		div -= sameCategoryPenalty
	}
	if sameVenue {
		div -= sameVenuePenalty
	}
	if samePrice {
		div -= samePricePenalty
	}
	if div < 0 {
		div = 0
	}
	return div
}
