package taste

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// Store owns taste vector persistence. Scoring reads via Get; only Update
// mutates.
type Store interface {
	// Get retrieves a user's taste vector, or ErrTasteNotFound.
	Get(ctx context.Context, userID string) (*Vector, error)

	// Update folds one liked/disliked interaction into the user's taste
	// vector, creating it on first use, and returns the updated vector.
	Update(ctx context.Context, userID string, embedding []float32, liked bool) (*Vector, error)
}

// MemoryStore implements Store with in-memory storage.
// Used for testing and development.
type MemoryStore struct {
	mu      sync.RWMutex
	vectors map[string]*Vector
	now     func() time.Time
}

// NewMemoryStore creates a new in-memory taste store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		vectors: make(map[string]*Vector),
		now:     time.Now,
	}
}

// SetNow overrides the clock, for tests.
func (s *MemoryStore) SetNow(now func() time.Time) { s.now = now }

// Get retrieves a user's taste vector.
func (s *MemoryStore) Get(_ context.Context, userID string) (*Vector, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vectors[userID]
	if !ok {
		return nil, ErrTasteNotFound
	}
	return copyVector(v), nil
}

// Update folds one interaction into the user's taste vector.
func (s *MemoryStore) Update(_ context.Context, userID string, embedding []float32, liked bool) (*Vector, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.vectors[userID]
	if !ok {
		v = &Vector{UserID: userID, DecayRate: DefaultDecayRate}
		s.vectors[userID] = v
	}
	if err := v.apply(embedding, liked, s.now()); err != nil {
		return nil, err
	}
	return copyVector(v), nil
}

func copyVector(v *Vector) *Vector {
	copied := *v
	copied.Embedding = make([]float32, len(v.Embedding))
	copy(copied.Embedding, v.Embedding)
	return &copied
}

// PostgresStore implements Store backed by a pgvector column.
type PostgresStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewPostgresStore creates a pgvector-backed taste store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, now: time.Now}
}

// Get retrieves a user's taste vector.
func (s *PostgresStore) Get(ctx context.Context, userID string) (*Vector, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT embedding, update_count, decay_rate, updated_at
		 FROM taste_vectors WHERE user_id = $1`, userID)

	var emb pgvector.Vector
	v := Vector{UserID: userID}
	err := row.Scan(&emb, &v.UpdateCount, &v.DecayRate, &v.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTasteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get taste vector: %w", err)
	}
	v.Embedding = emb.Slice()
	return &v, nil
}

// Update folds one interaction into the user's taste vector inside a
// transaction, so concurrent updates for the same user serialize on the row.
func (s *PostgresStore) Update(ctx context.Context, userID string, embedding []float32, liked bool) (*Vector, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin taste update: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	v := &Vector{UserID: userID, DecayRate: DefaultDecayRate}
	var emb pgvector.Vector
	row := tx.QueryRow(ctx,
		`SELECT embedding, update_count, decay_rate, updated_at
		 FROM taste_vectors WHERE user_id = $1 FOR UPDATE`, userID)
	err = row.Scan(&emb, &v.UpdateCount, &v.DecayRate, &v.UpdatedAt)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("load taste vector: %w", err)
	}
	v.Embedding = emb.Slice()

	if err := v.apply(embedding, liked, s.now()); err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO taste_vectors (user_id, embedding, update_count, decay_rate, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (user_id) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			update_count = EXCLUDED.update_count,
			decay_rate = EXCLUDED.decay_rate,
			updated_at = EXCLUDED.updated_at`,
		userID, pgvector.NewVector(v.Embedding), v.UpdateCount, v.DecayRate, v.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("store taste vector: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit taste update: %w", err)
	}
	return v, nil
}
