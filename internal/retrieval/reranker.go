package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Reranker rescores a unioned candidate set against the original query.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []Candidate) ([]Candidate, error)
}

// HTTPReranker calls an external cross-encoder endpoint, wrapped in a
// circuit breaker so a flapping reranker fails fast instead of eating the
// retrieval timeout on every request.
type HTTPReranker struct {
	endpoint string
	client   *http.Client
	breaker  *gobreaker.CircuitBreaker[[]Candidate]
}

// NewHTTPReranker creates a reranker client for the given endpoint.
func NewHTTPReranker(endpoint string, timeout time.Duration) *HTTPReranker {
	return &HTTPReranker{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker[[]Candidate](gobreaker.Settings{
			Name:    "reranker",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
		}),
	}
}

type rerankRequest struct {
	Query      string   `json:"query"`
	IDs        []string `json:"ids"`
}

type rerankResponse struct {
	Scores map[string]float64 `json:"scores"`
}

// Rerank posts the query and candidate ids to the reranker and maps the
// returned scores back onto the candidates, best first. Candidates the
// reranker does not score keep their original score.
func (r *HTTPReranker) Rerank(ctx context.Context, query string, candidates []Candidate) ([]Candidate, error) {
	return r.breaker.Execute(func() ([]Candidate, error) {
		ids := make([]string, len(candidates))
		for i, c := range candidates {
			ids[i] = c.ID
		}

		body, err := json.Marshal(rerankRequest{Query: query, IDs: ids})
		if err != nil {
			return nil, fmt.Errorf("marshal rerank request: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("build rerank request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := r.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("call reranker: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("reranker returned status %d", resp.StatusCode)
		}

		var parsed rerankResponse
		if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
			return nil, fmt.Errorf("decode rerank response: %w", err)
		}

		out := make([]Candidate, len(candidates))
		copy(out, candidates)
		for i := range out {
			if score, ok := parsed.Scores[out[i].ID]; ok {
				out[i].SemanticScore = score
			}
		}
		sortByScore(out)
		return out, nil
	})
}
