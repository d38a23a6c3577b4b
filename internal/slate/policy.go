// Package slate partitions scored, signal-enriched candidates into the three
// serving slates (Best, Wildcard, Close&Easy) under a named policy, with
// optional greedy diversification.
package slate

// Policy is a named parameter bundle controlling slate sizes, thresholds,
// and diversification. Policies are data, not code: swapping policies never
// changes composition logic.
type Policy struct {
	Name string `json:"name"`

	BestTopK      int `json:"best_top_k"`
	WildcardTopK  int `json:"wildcard_top_k"`
	CloseEasyTopK int `json:"close_easy_top_k"`

	// Wildcard admission: novelty at or above the threshold AND fit at or
	// above the floor.
	NoveltyThreshold float64 `json:"novelty_threshold"`
	WildcardFitFloor float64 `json:"wildcard_fit_floor"`

	// Close&Easy admission: price at or below the cap AND fit at or above
	// the floor.
	CloseEasyPriceCap float64 `json:"close_easy_price_cap"`
	CloseEasyFitFloor float64 `json:"close_easy_fit_floor"`

	// Diversify enables greedy re-selection of the Best slate;
	// DiversityWeight is the w in (1-w)*score + w*diversity.
	Diversify       bool    `json:"diversify"`
	DiversityWeight float64 `json:"diversity_weight"`
}

// Canonical policy names.
const (
	PolicyBalanced  = "balanced"
	PolicySafeNovel = "80safe-20novel"
)

// BalancedPolicy returns the default exploratory policy.
func BalancedPolicy() Policy {
	return Policy{
		Name:              PolicyBalanced,
		BestTopK:          8,
		WildcardTopK:      4,
		CloseEasyTopK:     4,
		NoveltyThreshold:  0.6,
		WildcardFitFloor:  0.45,
		CloseEasyPriceCap: 20,
		CloseEasyFitFloor: 0.4,
		Diversify:         true,
		DiversityWeight:   0.3,
	}
}

// SafeNovelPolicy returns the conservative policy: a larger Best slate and a
// stricter, smaller Wildcard.
func SafeNovelPolicy() Policy {
	return Policy{
		Name:              PolicySafeNovel,
		BestTopK:          10,
		WildcardTopK:      2,
		CloseEasyTopK:     4,
		NoveltyThreshold:  0.75,
		WildcardFitFloor:  0.55,
		CloseEasyPriceCap: 15,
		CloseEasyFitFloor: 0.5,
		Diversify:         false,
		DiversityWeight:   0.25,
	}
}

// CanonicalPolicies returns the two canonical policies the bandit selects
// among.
func CanonicalPolicies() []Policy {
	return []Policy{BalancedPolicy(), SafeNovelPolicy()}
}

// PolicyByName looks up a canonical policy. The second return is false for
// unknown names.
func PolicyByName(name string) (Policy, bool) {
	for _, p := range CanonicalPolicies() {
		if p.Name == name {
			return p, true
		}
	}
	return Policy{}, false
}
