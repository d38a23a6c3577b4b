// Package graph supplies per-candidate social signals from a graph store:
// novelty relative to a user's history, friend overlap, and recency-weighted
// social heat. The Provider interface keeps the underlying engine swappable
// and mockable; implementations must treat all lookups as read-only.
package graph

import "context"

// NeutralNovelty is the novelty returned when no user history is available:
// neither familiar nor novel.
const NeutralNovelty = 0.5

// Heat weighting: saves count double and shares triple relative to views.
const (
	ViewWeight  = 1.0
	SaveWeight  = 2.0
	ShareWeight = 3.0
)

// Provider supplies graph-derived signals keyed by candidate id.
type Provider interface {
	// Novelty scores how unlike the user's history each event is
	// (0 = familiar, 1 = novel). An empty userID yields NeutralNovelty
	// for every id.
	Novelty(ctx context.Context, userID string, ids []string) (map[string]float64, error)

	// FriendOverlap counts the user's friends engaged with each event.
	// An empty userID yields zero for every id.
	FriendOverlap(ctx context.Context, userID string, ids []string) (map[string]int, error)

	// SocialHeat aggregates views/saves/shares over the trailing hoursBack
	// window, weighted and normalized by the maximum observed in the batch,
	// so results are in [0, 1] with at least one 1.0 when any activity exists.
	SocialHeat(ctx context.Context, ids []string, hoursBack int) (map[string]float64, error)

	// Engagement returns the raw per-kind counts behind SocialHeat for the
	// same trailing window, unweighted and unnormalized. Scoring consumes
	// these directly as social proof.
	Engagement(ctx context.Context, ids []string, hoursBack int) (map[string]Engagement, error)
}

// Engagement is the raw engagement counts for one candidate.
type Engagement struct {
	Views  int
	Saves  int
	Shares int
}

// Signals bundles the graph signals for one candidate.
type Signals struct {
	Novelty       float64
	FriendOverlap int
	SocialHeat    float64
	Engagement    Engagement
}

// Collect fetches every signal for a batch of ids and merges them into
// per-id Signals. Individual lookup failures surface as errors; callers on
// the serving path treat them as empty contributions.
func Collect(ctx context.Context, p Provider, userID string, ids []string, hoursBack int) (map[string]Signals, error) {
	novelty, err := p.Novelty(ctx, userID, ids)
	if err != nil {
		return nil, err
	}
	overlap, err := p.FriendOverlap(ctx, userID, ids)
	if err != nil {
		return nil, err
	}
	heat, err := p.SocialHeat(ctx, ids, hoursBack)
	if err != nil {
		return nil, err
	}
	engagement, err := p.Engagement(ctx, ids, hoursBack)
	if err != nil {
		return nil, err
	}

	out := make(map[string]Signals, len(ids))
	for _, id := range ids {
		out[id] = Signals{
			Novelty:       novelty[id],
			FriendOverlap: overlap[id],
			SocialHeat:    heat[id],
			Engagement:    engagement[id],
		}
	}
	return out, nil
}

// normalizeHeat divides each raw heat value by the batch maximum, producing
// values in [0, 1]. A batch with no activity stays all-zero.
func normalizeHeat(raw map[string]float64) map[string]float64 {
	var max float64
	for _, v := range raw {
		if v > max {
			max = v
		}
	}
	out := make(map[string]float64, len(raw))
	if max <= 0 {
		for id := range raw {
			out[id] = 0
		}
		return out
	}
	for id, v := range raw {
		out[id] = v / max
	}
	return out
}
