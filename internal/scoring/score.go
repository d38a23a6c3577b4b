package scoring

import (
	"fmt"
	"sort"

	"github.com/citypulse/citypulse/internal/event"
	"github.com/citypulse/citypulse/internal/intention"
)

// Input carries everything the fit scorer needs for one (event, intention)
// pair. Nil pointer fields mean the signal is unavailable: DistanceKm when
// distance is unknown, TasteAffinity when the user has no taste vector or
// the event no embedding, Social when no engagement data exists.
type Input struct {
	Event         *event.Event
	Intention     intention.Intention
	TextScore     float64
	SemanticScore float64
	DistanceKm    *float64
	TasteAffinity *float64
	Social        *SocialProof
}

// Component is one itemized weighted contribution to a fit score.
type Component struct {
	Name     string  `json:"name"`
	Raw      float64 `json:"raw"`
	Weight   float64 `json:"weight"`
	Weighted float64 `json:"weighted"`
}

// FitScoreResult is the explainable output of the fit scorer.
// Total, MoodScore, and SocialScore are all in [0, 1]. Reasons are ordered
// by contribution magnitude, largest first, with duplicates removed.
type FitScoreResult struct {
	Total       float64     `json:"total"`
	MoodScore   float64     `json:"mood_score"`
	SocialScore float64     `json:"social_score"`
	Reasons     []string    `json:"reasons"`
	Components  []Component `json:"components"`
}

// reasoned pairs a candidate reason with the contribution that earned it, so
// reasons can be ordered by how much they mattered.
type reasoned struct {
	text   string
	weight float64
	order  int
}

// CalculateFitScore computes the fit of an event for an intention.
// It is a pure function: identical inputs always produce identical outputs.
// A nil weights argument uses DefaultWeights.
func CalculateFitScore(in Input, weights *Weights) FitScoreResult {
	if weights == nil {
		weights = DefaultWeights()
	}

	e := in.Event
	it := in.Intention

	similarity := SimilarityWeight(in.TextScore, in.SemanticScore)
	mood := MoodWeight(it.Mood, e.Category)
	price := PriceWeight(e.EffectivePrice(), it.Budget)
	recency := RecencyWeight(e.StartTime, it.Now, it.Window())

	components := []Component{
		{Name: "similarity", Raw: similarity, Weight: weights.Similarity, Weighted: similarity * weights.Similarity},
		{Name: "mood", Raw: mood, Weight: weights.Mood, Weighted: mood * weights.Mood},
		{Name: "price", Raw: price, Weight: weights.Price, Weighted: price * weights.Price},
		{Name: "recency", Raw: recency, Weight: weights.Recency, Weighted: recency * weights.Recency},
	}

	if in.DistanceKm != nil {
		distance := DistanceWeight(*in.DistanceKm, it.DistanceKm)
		components = append(components, Component{
			Name: "distance", Raw: distance, Weight: weights.Distance, Weighted: distance * weights.Distance,
		})
	}

	if in.TasteAffinity != nil {
		affinity := clamp01(*in.TasteAffinity)
		components = append(components, Component{
			Name: "taste", Raw: affinity, Weight: weights.Taste, Weighted: affinity * weights.Taste,
		})
	}

	var weightedSum, weightSum float64
	for _, c := range components {
		weightedSum += c.Weighted
		weightSum += c.Weight
	}

	base := 0.0
	if weightSum > 0 {
		base = weightedSum / weightSum
	}

	social := 0.0
	if in.Social != nil {
		social = SocialWeight(*in.Social)
		components = append(components, Component{
			Name: "social", Raw: social, Weight: weights.SocialBoost, Weighted: social * weights.SocialBoost,
		})
	}

	total := clamp01(base + social*weights.SocialBoost)

	return FitScoreResult{
		Total:       total,
		MoodScore:   mood,
		SocialScore: social,
		Reasons:     buildReasons(in, components),
		Components:  components,
	}
}

// reasonThreshold is the minimum raw component score that earns a reason.
const reasonThreshold = 0.5

// buildReasons turns strong components into human-readable reasons, ordered
// by weighted contribution (largest first) and deduplicated.
func buildReasons(in Input, components []Component) []string {
	e := in.Event
	var candidates []reasoned

	for i, c := range components {
		if c.Raw < reasonThreshold {
			continue
		}
		var text string
		switch c.Name {
		case "similarity":
			text = "strong match for your search"
		case "mood":
			if in.Intention.Mood != "" {
				text = fmt.Sprintf("fits your %s mood", in.Intention.Mood)
			}
		case "price":
			text = PriceBucket(e.EffectivePrice())
		case "recency":
			text = "happening soon"
		case "distance":
			if in.DistanceKm != nil {
				text = DistanceBucket(*in.DistanceKm)
			}
		case "taste":
			text = "matches your taste"
		case "social":
			text = "popular right now"
		}
		if text == "" {
			continue
		}
		candidates = append(candidates, reasoned{text: text, weight: c.Weighted, order: i})
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		if candidates[a].weight != candidates[b].weight {
			return candidates[a].weight > candidates[b].weight
		}
		return candidates[a].order < candidates[b].order
	})

	seen := make(map[string]bool, len(candidates))
	reasons := make([]string, 0, len(candidates))
	for _, r := range candidates {
		if seen[r.text] {
			continue
		}
		seen[r.text] = true
		reasons = append(reasons, r.text)
	}
	return reasons
}

// PriceBucket renders a price as a short human-readable bucket label.
func PriceBucket(price float64) string {
	switch {
	case price <= 0:
		return "free"
	case price <= 15:
		return "cheap night out"
	case price <= 40:
		return fmt.Sprintf("around $%.0f", price)
	default:
		return "worth the splurge"
	}
}

// DistanceBucket renders a distance as a short human-readable bucket label.
func DistanceBucket(km float64) string {
	switch {
	case km <= 1.5:
		return "walkable"
	case km <= 5:
		return fmt.Sprintf("close by (%.1f km)", km)
	case km <= 12:
		return "a short ride away"
	default:
		return "further afield"
	}
}
