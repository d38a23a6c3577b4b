package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// ErrEmbeddingNotFound is returned when no embedding exists for an event.
var ErrEmbeddingNotFound = errors.New("embedding not found")

// EmbeddingStore fetches stored event embeddings. Taste updates read the
// event's embedding through this interface.
type EmbeddingStore interface {
	// EmbeddingByID returns the embedding for an event, or
	// ErrEmbeddingNotFound.
	EmbeddingByID(ctx context.Context, eventID string) ([]float32, error)
}

// PgEmbeddingStore reads embeddings from the event_embeddings table.
type PgEmbeddingStore struct {
	pool *pgxpool.Pool
}

// NewPgEmbeddingStore creates a Postgres-backed embedding store.
func NewPgEmbeddingStore(pool *pgxpool.Pool) *PgEmbeddingStore {
	return &PgEmbeddingStore{pool: pool}
}

// EmbeddingByID returns the stored embedding for an event.
func (s *PgEmbeddingStore) EmbeddingByID(ctx context.Context, eventID string) ([]float32, error) {
	var emb pgvector.Vector
	row := s.pool.QueryRow(ctx,
		`SELECT embedding FROM event_embeddings WHERE id = $1`, eventID)
	if err := row.Scan(&emb); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEmbeddingNotFound
		}
		return nil, fmt.Errorf("get embedding: %w", err)
	}
	return emb.Slice(), nil
}

// MemoryEmbeddingStore implements EmbeddingStore with in-memory storage.
// Used for testing and development.
type MemoryEmbeddingStore struct {
	mu         sync.RWMutex
	embeddings map[string][]float32
}

// NewMemoryEmbeddingStore creates an in-memory embedding store.
func NewMemoryEmbeddingStore() *MemoryEmbeddingStore {
	return &MemoryEmbeddingStore{embeddings: make(map[string][]float32)}
}

// Put stores an embedding for an event.
func (s *MemoryEmbeddingStore) Put(eventID string, embedding []float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]float32, len(embedding))
	copy(cp, embedding)
	s.embeddings[eventID] = cp
}

// EmbeddingByID returns the stored embedding for an event.
func (s *MemoryEmbeddingStore) EmbeddingByID(_ context.Context, eventID string) ([]float32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	emb, ok := s.embeddings[eventID]
	if !ok {
		return nil, ErrEmbeddingNotFound
	}
	cp := make([]float32, len(emb))
	copy(cp, emb)
	return cp, nil
}
