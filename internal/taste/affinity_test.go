package taste

import (
	"context"
	"math"
	"testing"

	"github.com/citypulse/citypulse/internal/retrieval"
)

// TestScorerAffinities verifies batch affinity scoring against a stored
// taste vector, skipping events without embeddings.
func TestScorerAffinities(t *testing.T) {
	ctx := context.Background()
	tastes := NewMemoryStore()
	embeddings := retrieval.NewMemoryEmbeddingStore()
	embeddings.Put("match", []float32{1, 0})
	embeddings.Put("opposite", []float32{-1, 0})

	if _, err := tastes.Update(ctx, "alice", []float32{1, 0}, true); err != nil {
		t.Fatalf("seed taste: %v", err)
	}

	s := NewScorer(tastes, embeddings)
	out, err := s.Affinities(ctx, "alice", []string{"match", "opposite", "no-embedding"})
	if err != nil {
		t.Fatalf("Affinities: %v", err)
	}

	if math.Abs(out["match"]-1.0) > 0.001 {
		t.Errorf("affinity for matching event = %f, want 1.0", out["match"])
	}
	if math.Abs(out["opposite"]-0.0) > 0.001 {
		t.Errorf("affinity for opposite event = %f, want 0.0", out["opposite"])
	}
	if _, ok := out["no-embedding"]; ok {
		t.Error("event without an embedding should be absent from the result")
	}
}

// TestScorerNoSignal verifies anonymous users and users without a taste
// vector yield no affinities at all.
func TestScorerNoSignal(t *testing.T) {
	ctx := context.Background()
	embeddings := retrieval.NewMemoryEmbeddingStore()
	embeddings.Put("e1", []float32{1, 0})
	s := NewScorer(NewMemoryStore(), embeddings)

	anon, err := s.Affinities(ctx, "", []string{"e1"})
	if err != nil {
		t.Fatalf("Affinities: %v", err)
	}
	if anon != nil {
		t.Errorf("anonymous request should yield nil, got %v", anon)
	}

	fresh, err := s.Affinities(ctx, "nobody", []string{"e1"})
	if err != nil {
		t.Fatalf("Affinities: %v", err)
	}
	if fresh != nil {
		t.Errorf("user without a taste vector should yield nil, got %v", fresh)
	}
}
