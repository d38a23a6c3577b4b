package scoring

import (
	"reflect"
	"testing"
	"time"

	"github.com/citypulse/citypulse/internal/event"
	"github.com/citypulse/citypulse/internal/intention"
)

func floatPtr(f float64) *float64 { return &f }

func testIntention(now time.Time) intention.Intention {
	return intention.Intention{
		City:       "portland",
		Now:        now,
		Mood:       "electric",
		DistanceKm: 5,
		Budget:     intention.BudgetCasual,
		Source:     intention.SourceInline,
	}
}

// TestCalculateFitScoreScenario runs the canonical two-event comparison:
// a free nearby music event must outscore a pricey distant arts event for
// an electric mood on a casual budget.
func TestCalculateFitScoreScenario(t *testing.T) {
	now := time.Date(2026, 3, 14, 19, 0, 0, 0, time.UTC)
	it := testIntention(now)

	eventX := &event.Event{
		ID: "x", Category: event.CategoryMusic, City: "portland",
		StartTime: now.Add(time.Hour),
	}
	eventY := &event.Event{
		ID: "y", Category: event.CategoryArts, City: "portland",
		Price: floatPtr(50), StartTime: now.Add(time.Hour),
	}

	resX := CalculateFitScore(Input{
		Event: eventX, Intention: it,
		TextScore: 0.7, SemanticScore: 0.7,
		DistanceKm: floatPtr(1),
	}, nil)
	resY := CalculateFitScore(Input{
		Event: eventY, Intention: it,
		TextScore: 0.7, SemanticScore: 0.7,
		DistanceKm: floatPtr(8),
	}, nil)

	if resX.Total <= resY.Total {
		t.Errorf("music event should outscore arts event: X=%f Y=%f", resX.Total, resY.Total)
	}

	wantFree, wantDistance := false, false
	for _, r := range resX.Reasons {
		if r == "free" {
			wantFree = true
		}
		if r == "walkable" {
			wantDistance = true
		}
	}
	if !wantFree {
		t.Errorf("reasons for free event should include \"free\", got %v", resX.Reasons)
	}
	if !wantDistance {
		t.Errorf("reasons for 1km event should include a distance bucket, got %v", resX.Reasons)
	}
}

// TestCalculateFitScoreDeterminism verifies identical inputs produce
// identical outputs across repeated calls.
func TestCalculateFitScoreDeterminism(t *testing.T) {
	now := time.Date(2026, 3, 14, 19, 0, 0, 0, time.UTC)
	in := Input{
		Event: &event.Event{
			ID: "e1", Category: event.CategoryNightlife,
			Price: floatPtr(12), StartTime: now.Add(30 * time.Minute),
		},
		Intention:  testIntention(now),
		TextScore:  0.4,
		SemanticScore: 0.9,
		DistanceKm: floatPtr(2.2),
		Social:     &SocialProof{Views: 80, Saves: 10, Shares: 3},
	}

	first := CalculateFitScore(in, nil)
	for i := 0; i < 10; i++ {
		again := CalculateFitScore(in, nil)
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d differs: %+v vs %+v", i, first, again)
		}
	}
}

// TestCalculateFitScoreBounds verifies the total stays in [0, 1] across a
// spread of extreme inputs.
func TestCalculateFitScoreBounds(t *testing.T) {
	now := time.Date(2026, 3, 14, 19, 0, 0, 0, time.UTC)

	inputs := []Input{
		{
			Event:     &event.Event{Category: event.CategoryMusic, StartTime: now.Add(-time.Hour)},
			Intention: testIntention(now),
			TextScore: 1.0, SemanticScore: 1.0,
			DistanceKm: floatPtr(0),
			Social:     &SocialProof{Views: 100000, Saves: 50000, Shares: 50000},
		},
		{
			Event:     &event.Event{Category: event.CategoryFood, Price: floatPtr(10000), StartTime: now.Add(1000 * time.Hour)},
			Intention: testIntention(now),
		},
		{
			Event:     &event.Event{Category: event.CategoryArts, StartTime: now},
			Intention: intention.Intention{Now: now},
		},
	}

	for i, in := range inputs {
		res := CalculateFitScore(in, nil)
		if res.Total < 0 || res.Total > 1 {
			t.Errorf("input %d: total %f out of [0,1]", i, res.Total)
		}
		if res.MoodScore < 0 || res.MoodScore > 1 {
			t.Errorf("input %d: mood score %f out of [0,1]", i, res.MoodScore)
		}
		if res.SocialScore < 0 || res.SocialScore > 1 {
			t.Errorf("input %d: social score %f out of [0,1]", i, res.SocialScore)
		}
	}
}

// TestCalculateFitScoreMissingDistanceIsNeutral verifies an event without a
// known distance is not penalized relative to its own base components.
func TestCalculateFitScoreMissingDistanceIsNeutral(t *testing.T) {
	now := time.Date(2026, 3, 14, 19, 0, 0, 0, time.UTC)
	it := testIntention(now)
	e := &event.Event{ID: "e", Category: event.CategoryMusic, StartTime: now}

	withFar := CalculateFitScore(Input{
		Event: e, Intention: it, SemanticScore: 0.8, DistanceKm: floatPtr(40),
	}, nil)
	without := CalculateFitScore(Input{
		Event: e, Intention: it, SemanticScore: 0.8,
	}, nil)

	if without.Total <= withFar.Total {
		t.Errorf("missing distance should be neutral, not a penalty: without=%f withFar=%f",
			without.Total, withFar.Total)
	}

	for _, c := range without.Components {
		if c.Name == "distance" {
			t.Error("distance component should be absent when distance is unknown")
		}
	}
}

// TestCalculateFitScoreTasteAffinity verifies taste affinity lifts matching
// events, drags opposed ones, and stays absent when no taste signal exists.
func TestCalculateFitScoreTasteAffinity(t *testing.T) {
	now := time.Date(2026, 3, 14, 19, 0, 0, 0, time.UTC)
	it := testIntention(now)
	e := &event.Event{ID: "e", Category: event.CategoryMusic, StartTime: now.Add(time.Hour)}

	without := CalculateFitScore(Input{Event: e, Intention: it, SemanticScore: 0.6}, nil)
	matched := CalculateFitScore(Input{Event: e, Intention: it, SemanticScore: 0.6, TasteAffinity: floatPtr(1.0)}, nil)
	opposed := CalculateFitScore(Input{Event: e, Intention: it, SemanticScore: 0.6, TasteAffinity: floatPtr(0.0)}, nil)

	if matched.Total <= without.Total {
		t.Errorf("matching taste should lift the score: matched=%f without=%f", matched.Total, without.Total)
	}
	if opposed.Total >= without.Total {
		t.Errorf("opposed taste should drag the score: opposed=%f without=%f", opposed.Total, without.Total)
	}
	for _, c := range without.Components {
		if c.Name == "taste" {
			t.Error("taste component should be absent without an affinity")
		}
	}

	var reasoned bool
	for _, r := range matched.Reasons {
		if r == "matches your taste" {
			reasoned = true
		}
	}
	if !reasoned {
		t.Errorf("strong taste match should earn a reason, got %v", matched.Reasons)
	}
}

// TestReasonsOrderedAndDeduplicated verifies reason ordering follows
// contribution magnitude and that duplicates collapse.
func TestReasonsOrderedAndDeduplicated(t *testing.T) {
	now := time.Date(2026, 3, 14, 19, 0, 0, 0, time.UTC)
	res := CalculateFitScore(Input{
		Event: &event.Event{
			ID: "e", Category: event.CategoryMusic, StartTime: now,
		},
		Intention:  testIntention(now),
		TextScore:  1.0,
		SemanticScore: 1.0,
		DistanceKm: floatPtr(1),
		Social:     &SocialProof{Views: 2000},
	}, nil)

	if len(res.Reasons) == 0 {
		t.Fatal("expected reasons for a strong candidate")
	}

	// Similarity carries the largest weight, so it must lead.
	if res.Reasons[0] != "strong match for your search" {
		t.Errorf("largest contribution should lead reasons, got %v", res.Reasons)
	}

	seen := make(map[string]bool)
	for _, r := range res.Reasons {
		if seen[r] {
			t.Errorf("duplicate reason %q", r)
		}
		seen[r] = true
	}
}
