package slate

import (
	"fmt"
	"testing"

	"github.com/citypulse/citypulse/internal/event"
	"github.com/citypulse/citypulse/internal/scoring"
)

func floatPtr(f float64) *float64 { return &f }

func cand(id string, fit float64, opts ...func(*Candidate)) Candidate {
	c := Candidate{
		Event: &event.Event{ID: id, Category: event.CategoryMusic, VenueID: "v-" + id},
		Fit:   scoring.FitScoreResult{Total: fit},
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

func withNovelty(n float64) func(*Candidate) {
	return func(c *Candidate) { c.Signals.Novelty = n }
}

func withHeat(h float64) func(*Candidate) {
	return func(c *Candidate) { c.Signals.SocialHeat = h }
}

func withPrice(p float64) func(*Candidate) {
	return func(c *Candidate) { c.Event.Price = &p }
}

func withDistance(km float64) func(*Candidate) {
	return func(c *Candidate) { c.DistanceKm = floatPtr(km) }
}

func withCategory(cat event.Category) func(*Candidate) {
	return func(c *Candidate) { c.Event.Category = cat }
}

// TestComposeBestOrdering verifies Best is top-K by fit descending.
func TestComposeBestOrdering(t *testing.T) {
	policy := SafeNovelPolicy() // no diversification
	policy.BestTopK = 3

	cands := []Candidate{
		cand("a", 0.5), cand("b", 0.9), cand("c", 0.7), cand("d", 0.3), cand("e", 0.8),
	}

	slates := Compose(cands, policy)
	if len(slates.Best) != 3 {
		t.Fatalf("best size = %d, want 3", len(slates.Best))
	}
	wantOrder := []string{"b", "e", "c"}
	for i, want := range wantOrder {
		if slates.Best[i].Event.ID != want {
			t.Errorf("best[%d] = %s, want %s", i, slates.Best[i].Event.ID, want)
		}
	}
}

// TestComposeSlateSizeBounds verifies no slate exceeds its policy topK.
func TestComposeSlateSizeBounds(t *testing.T) {
	var cands []Candidate
	for i := 0; i < 50; i++ {
		cands = append(cands, cand(fmt.Sprintf("e%02d", i), 0.9,
			withNovelty(0.9), withPrice(5), withDistance(1)))
	}

	for _, policy := range CanonicalPolicies() {
		slates := Compose(cands, policy)
		if len(slates.Best) > policy.BestTopK {
			t.Errorf("%s: best %d > topK %d", policy.Name, len(slates.Best), policy.BestTopK)
		}
		if len(slates.Wildcard) > policy.WildcardTopK {
			t.Errorf("%s: wildcard %d > topK %d", policy.Name, len(slates.Wildcard), policy.WildcardTopK)
		}
		if len(slates.CloseEasy) > policy.CloseEasyTopK {
			t.Errorf("%s: close&easy %d > topK %d", policy.Name, len(slates.CloseEasy), policy.CloseEasyTopK)
		}
	}
}

// TestComposeWildcardAdmission verifies the novelty threshold and fit floor,
// and novelty-descending order.
func TestComposeWildcardAdmission(t *testing.T) {
	policy := BalancedPolicy()

	cands := []Candidate{
		cand("novel-good", 0.6, withNovelty(0.8)),
		cand("novel-better", 0.6, withNovelty(0.95)),
		cand("novel-poor-fit", 0.2, withNovelty(0.9)),  // below fit floor
		cand("familiar", 0.9, withNovelty(0.3)),        // below novelty threshold
	}

	slates := Compose(cands, policy)
	if len(slates.Wildcard) != 2 {
		t.Fatalf("wildcard size = %d, want 2: %+v", len(slates.Wildcard), slates.Wildcard)
	}
	if slates.Wildcard[0].Event.ID != "novel-better" || slates.Wildcard[1].Event.ID != "novel-good" {
		t.Errorf("wildcard should sort by novelty desc, got %s then %s",
			slates.Wildcard[0].Event.ID, slates.Wildcard[1].Event.ID)
	}
	for _, item := range slates.Wildcard {
		if item.Reasons[0] != "novel discovery" {
			t.Errorf("wildcard items should lead with the slate reason, got %v", item.Reasons)
		}
	}
}

// TestComposeCloseEasyOrdering verifies price cap, fit floor, and
// price-then-distance ordering with unknown distance last.
func TestComposeCloseEasyOrdering(t *testing.T) {
	policy := BalancedPolicy()

	cands := []Candidate{
		cand("pricey", 0.9, withPrice(50)),                             // above cap
		cand("cheap-far", 0.6, withPrice(5), withDistance(9)),
		cand("cheap-near", 0.6, withPrice(5), withDistance(1)),
		cand("free-unknown-distance", 0.6),
		cand("free-near", 0.6, withDistance(2)),
		cand("cheap-bad-fit", 0.1, withPrice(5)),                       // below floor
	}

	slates := Compose(cands, policy)
	wantOrder := []string{"free-near", "free-unknown-distance", "cheap-near", "cheap-far"}
	if len(slates.CloseEasy) != len(wantOrder) {
		t.Fatalf("close&easy size = %d, want %d", len(slates.CloseEasy), len(wantOrder))
	}
	for i, want := range wantOrder {
		if slates.CloseEasy[i].Event.ID != want {
			t.Errorf("close&easy[%d] = %s, want %s", i, slates.CloseEasy[i].Event.ID, want)
		}
	}
}

// TestComposeItemsMayAppearInMultipleSlates verifies slates are not forced
// to be disjoint.
func TestComposeItemsMayAppearInMultipleSlates(t *testing.T) {
	policy := BalancedPolicy()
	policy.Diversify = false

	cands := []Candidate{
		cand("everything", 0.9, withNovelty(0.9), withPrice(5), withDistance(1)),
	}

	slates := Compose(cands, policy)
	if len(slates.Best) != 1 || len(slates.Wildcard) != 1 || len(slates.CloseEasy) != 1 {
		t.Errorf("a strong candidate may appear in all slates: best=%d wildcard=%d close=%d",
			len(slates.Best), len(slates.Wildcard), len(slates.CloseEasy))
	}
}

// TestComposeReasons verifies trending and bucket reasons with the cap of 3.
func TestComposeReasons(t *testing.T) {
	policy := SafeNovelPolicy()
	cands := []Candidate{
		cand("hot", 0.9, withHeat(0.8), withDistance(1), withPrice(0)),
	}

	slates := Compose(cands, policy)
	if len(slates.Best) != 1 {
		t.Fatalf("best size = %d, want 1", len(slates.Best))
	}
	reasons := slates.Best[0].Reasons
	if len(reasons) > 3 {
		t.Errorf("at most 3 reasons, got %v", reasons)
	}
	if reasons[0] != "trending" {
		t.Errorf("hot item should carry a trending reason first, got %v", reasons)
	}
	found := map[string]bool{}
	for _, r := range reasons {
		found[r] = true
	}
	if !found["walkable"] || !found["free"] {
		t.Errorf("expected distance and price buckets, got %v", reasons)
	}
}

// TestDiversifyKeepsTopAndSpreads verifies the greedy re-selection keeps the
// top-scored item and prefers a diverse runner-up over a marginally better
// clone of the leader.
func TestDiversifyKeepsTopAndSpreads(t *testing.T) {
	policy := BalancedPolicy()
	policy.BestTopK = 2
	policy.DiversityWeight = 0.4

	leader := cand("leader", 0.95, withCategory(event.CategoryMusic), withPrice(10))
	clone := cand("clone", 0.90, withCategory(event.CategoryMusic), withPrice(10))
	clone.Event.VenueID = leader.Event.VenueID
	different := cand("different", 0.80, withCategory(event.CategoryArts), withPrice(40))

	slates := Compose([]Candidate{leader, clone, different}, policy)
	if slates.Best[0].Event.ID != "leader" {
		t.Fatalf("top-scored item must always be kept, got %s", slates.Best[0].Event.ID)
	}
	if slates.Best[1].Event.ID != "different" {
		t.Errorf("diversification should prefer the different candidate, got %s",
			slates.Best[1].Event.ID)
	}
}
