// Package retrieval fans a query out to a vector-similarity backend and a
// keyword-search backend, unions the results, and optionally reranks them.
// Retrieval never fails a request: backend errors degrade to empty
// contributions and a fully failed fanout yields an empty candidate set.
package retrieval

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// SourceTag identifies which backend produced a candidate.
type SourceTag string

const (
	SourceVector  SourceTag = "vector"
	SourceKeyword SourceTag = "keyword"
	SourceBoth    SourceTag = "both"
)

// Candidate is a retrieval-stage record, discarded after scoring.
type Candidate struct {
	ID            string    `cbor:"1,keyasint"`
	TextScore     float64   `cbor:"2,keyasint"`
	SemanticScore float64   `cbor:"3,keyasint"`
	Source        SourceTag `cbor:"4,keyasint"`
}

// Score collapses the candidate's similarity signals into one value for
// pre-rerank ordering. Semantic similarity dominates when both are present.
func (c Candidate) Score() float64 {
	switch {
	case c.SemanticScore > 0 && c.TextScore > 0:
		return 0.6*c.SemanticScore + 0.4*c.TextScore
	case c.SemanticScore > 0:
		return c.SemanticScore
	default:
		return c.TextScore
	}
}

// Filter narrows a backend search. City is required on the serving path.
type Filter struct {
	City string
}

// Backend is a retrieval engine: vector or keyword, both with the same
// contract. Implementations must honor ctx cancellation.
type Backend interface {
	Search(ctx context.Context, query string, filter Filter, topK int) ([]Candidate, error)
}

// Encoder turns query text into an embedding for vector search.
type Encoder interface {
	Encode(ctx context.Context, text string) ([]float32, error)
}

// PgVectorBackend searches event embeddings by cosine distance.
type PgVectorBackend struct {
	pool    *pgxpool.Pool
	encoder Encoder
}

// NewPgVectorBackend creates a pgvector-backed semantic search backend.
func NewPgVectorBackend(pool *pgxpool.Pool, encoder Encoder) *PgVectorBackend {
	return &PgVectorBackend{pool: pool, encoder: encoder}
}

// Search encodes the query and returns the nearest event embeddings in the
// requested city. Scores are cosine similarities mapped to [0, 1].
func (b *PgVectorBackend) Search(ctx context.Context, query string, filter Filter, topK int) ([]Candidate, error) {
	embedding, err := b.encoder.Encode(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}

	rows, err := b.pool.Query(ctx,
		`SELECT id, 1 - (embedding <=> $1) AS similarity
		 FROM event_embeddings
		 WHERE city = $2
		 ORDER BY embedding <=> $1
		 LIMIT $3`,
		pgvector.NewVector(embedding), filter.City, topK)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	var out []Candidate
	for rows.Next() {
		c := Candidate{Source: SourceVector}
		if err := rows.Scan(&c.ID, &c.SemanticScore); err != nil {
			return nil, fmt.Errorf("scan vector hit: %w", err)
		}
		if c.SemanticScore < 0 {
			c.SemanticScore = 0
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// KeywordBackend searches event text via Postgres full-text search.
type KeywordBackend struct {
	pool *pgxpool.Pool
}

// NewKeywordBackend creates a full-text keyword search backend.
func NewKeywordBackend(pool *pgxpool.Pool) *KeywordBackend {
	return &KeywordBackend{pool: pool}
}

// Search runs a websearch-style full-text query in the requested city.
// ts_rank scores are normalized (0-limit mode 32) into [0, 1].
func (b *KeywordBackend) Search(ctx context.Context, query string, filter Filter, topK int) ([]Candidate, error) {
	rows, err := b.pool.Query(ctx,
		`SELECT id, ts_rank(search_tsv, q, 32) AS rank
		 FROM events, websearch_to_tsquery('english', $1) q
		 WHERE search_tsv @@ q AND city = $2
		 ORDER BY rank DESC
		 LIMIT $3`,
		query, filter.City, topK)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	defer rows.Close()

	var out []Candidate
	for rows.Next() {
		c := Candidate{Source: SourceKeyword}
		if err := rows.Scan(&c.ID, &c.TextScore); err != nil {
			return nil, fmt.Errorf("scan keyword hit: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
