package taste

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"
)

// TestMemoryStoreFirstUpdate verifies the first liked interaction seeds the
// vector with the (normalized) event embedding.
func TestMemoryStoreFirstUpdate(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	v, err := s.Update(ctx, "alice", []float32{3, 4}, true)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	if v.UpdateCount != 1 {
		t.Errorf("update count = %d, want 1", v.UpdateCount)
	}
	// 3-4-5 triangle normalizes to (0.6, 0.8).
	if math.Abs(float64(v.Embedding[0])-0.6) > 0.001 || math.Abs(float64(v.Embedding[1])-0.8) > 0.001 {
		t.Errorf("embedding = %v, want [0.6 0.8]", v.Embedding)
	}
}

// TestMemoryStoreEMAConverges verifies repeated likes of the same embedding
// pull the taste vector toward it.
func TestMemoryStoreEMAConverges(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if _, err := s.Update(ctx, "alice", []float32{1, 0}, true); err != nil {
		t.Fatalf("seed: %v", err)
	}

	target := []float32{0, 1}
	var prev float64 = -1
	for i := 0; i < 20; i++ {
		v, err := s.Update(ctx, "alice", target, true)
		if err != nil {
			t.Fatalf("Update %d: %v", i, err)
		}
		sim := Cosine(v.Embedding, target)
		if sim < prev {
			t.Fatalf("similarity should be non-decreasing: %f then %f", prev, sim)
		}
		prev = sim
	}

	if prev < 0.95 {
		t.Errorf("taste should converge toward repeated likes, similarity = %f", prev)
	}
}

// TestMemoryStoreDislikeMovesAway verifies disliked interactions reduce
// similarity with the disliked embedding.
func TestMemoryStoreDislikeMovesAway(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if _, err := s.Update(ctx, "alice", []float32{1, 1}, true); err != nil {
		t.Fatalf("seed: %v", err)
	}
	before, _ := s.Get(ctx, "alice")
	disliked := []float32{1, 0}
	simBefore := Cosine(before.Embedding, disliked)

	after, err := s.Update(ctx, "alice", disliked, false)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if Cosine(after.Embedding, disliked) >= simBefore {
		t.Errorf("dislike should move taste away: before=%f after=%f",
			simBefore, Cosine(after.Embedding, disliked))
	}
}

// TestMemoryStoreDimensionMismatch verifies a mismatched embedding is rejected.
func TestMemoryStoreDimensionMismatch(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if _, err := s.Update(ctx, "alice", []float32{1, 0, 0}, true); err != nil {
		t.Fatalf("seed: %v", err)
	}
	_, err := s.Update(ctx, "alice", []float32{1, 0}, true)
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}

// TestMemoryStoreGetMissing verifies the not-found sentinel.
func TestMemoryStoreGetMissing(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.Get(context.Background(), "nobody")
	if !errors.Is(err, ErrTasteNotFound) {
		t.Errorf("expected ErrTasteNotFound, got %v", err)
	}
}

// TestMemoryStoreCopyIsolation verifies returned vectors cannot mutate
// stored state.
func TestMemoryStoreCopyIsolation(t *testing.T) {
	s := NewMemoryStore()
	s.SetNow(func() time.Time { return time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC) })
	ctx := context.Background()

	v, _ := s.Update(ctx, "alice", []float32{1, 0}, true)
	v.Embedding[0] = 42

	stored, _ := s.Get(ctx, "alice")
	if stored.Embedding[0] == 42 {
		t.Error("mutating a returned vector should not affect the store")
	}
}

// TestCosineAndAffinity tests the similarity helpers.
func TestCosineAndAffinity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{name: "identical", a: []float32{1, 0}, b: []float32{1, 0}, want: 1},
		{name: "orthogonal", a: []float32{1, 0}, b: []float32{0, 1}, want: 0},
		{name: "opposite", a: []float32{1, 0}, b: []float32{-1, 0}, want: -1},
		{name: "zero vector", a: []float32{0, 0}, b: []float32{1, 0}, want: 0},
		{name: "dimension mismatch", a: []float32{1}, b: []float32{1, 0}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Cosine(tt.a, tt.b); math.Abs(got-tt.want) > 0.001 {
				t.Errorf("Cosine = %f, want %f", got, tt.want)
			}
			wantAffinity := (tt.want + 1) / 2
			if got := Affinity(tt.a, tt.b); math.Abs(got-wantAffinity) > 0.001 {
				t.Errorf("Affinity = %f, want %f", got, wantAffinity)
			}
		})
	}
}
