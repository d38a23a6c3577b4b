package taste

import (
	"context"
	"errors"
	"fmt"

	"github.com/citypulse/citypulse/internal/retrieval"
)

// Scorer computes per-candidate taste affinity on the serving path. It
// resolves the user's taste vector once per batch, then scores each
// candidate's stored embedding against it.
type Scorer struct {
	tastes     Store
	embeddings retrieval.EmbeddingStore
}

// NewScorer creates a taste affinity scorer over a taste store and an
// embedding store.
func NewScorer(tastes Store, embeddings retrieval.EmbeddingStore) *Scorer {
	return &Scorer{tastes: tastes, embeddings: embeddings}
}

// Affinities returns affinity in [0, 1] keyed by event id. An anonymous
// request or a user without a taste vector yields a nil map, and events
// without a stored embedding are absent from the result, so callers treat
// missing entries as no signal.
func (s *Scorer) Affinities(ctx context.Context, userID string, ids []string) (map[string]float64, error) {
	if userID == "" {
		return nil, nil
	}
	v, err := s.tastes.Get(ctx, userID)
	if errors.Is(err, ErrTasteNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load taste vector: %w", err)
	}

	out := make(map[string]float64, len(ids))
	for _, id := range ids {
		emb, err := s.embeddings.EmbeddingByID(ctx, id)
		if errors.Is(err, retrieval.ErrEmbeddingNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("embedding for %s: %w", id, err)
		}
		out[id] = Affinity(v.Embedding, emb)
	}
	return out, nil
}
