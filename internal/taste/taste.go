// Package taste maintains per-user preference embeddings, updated by an
// exponential moving average on every liked or disliked interaction. The
// vectors are an optional scoring input; scoring never mutates them.
package taste

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// DefaultDecayRate is the EMA step size: how far one interaction moves the
// taste vector toward (or away from) an event embedding.
const DefaultDecayRate = 0.2

// ErrTasteNotFound is returned when no taste vector exists for a user.
var ErrTasteNotFound = errors.New("taste vector not found")

// ErrDimensionMismatch is returned when an update embedding has a different
// dimension than the stored vector.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Vector is a per-user taste embedding with update metadata.
type Vector struct {
	UserID      string
	Embedding   []float32
	UpdateCount int
	DecayRate   float64
	UpdatedAt   time.Time
}

// apply folds one interaction into the taste embedding.
// Liked interactions pull the vector toward the event embedding; disliked
// interactions push it away. The result is re-normalized to unit length so
// cosine similarity against it stays well-behaved.
func (v *Vector) apply(embedding []float32, liked bool, now time.Time) error {
	if len(v.Embedding) == 0 {
		v.Embedding = make([]float32, len(embedding))
		copy(v.Embedding, embedding)
		if !liked {
			for i := range v.Embedding {
				v.Embedding[i] = -v.Embedding[i]
			}
		}
		normalize(v.Embedding)
		v.UpdateCount++
		v.UpdatedAt = now
		return nil
	}

	if len(embedding) != len(v.Embedding) {
		return fmt.Errorf("%w: have %d, got %d", ErrDimensionMismatch, len(v.Embedding), len(embedding))
	}

	alpha := v.DecayRate
	if alpha <= 0 || alpha > 1 {
		alpha = DefaultDecayRate
	}
	sign := float32(1)
	if !liked {
		sign = -1
	}

	for i := range v.Embedding {
		v.Embedding[i] = (1-float32(alpha))*v.Embedding[i] + float32(alpha)*sign*embedding[i]
	}
	normalize(v.Embedding)
	v.UpdateCount++
	v.UpdatedAt = now
	return nil
}

// normalize scales a vector to unit length in place. Zero vectors are left
// untouched.
func normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
}

// Cosine returns the cosine similarity of two vectors in [-1, 1], or 0 when
// either vector is zero or the dimensions differ.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Affinity maps cosine similarity into [0, 1] for use as a scoring input.
func Affinity(taste, embedding []float32) float64 {
	return (Cosine(taste, embedding) + 1) / 2
}
