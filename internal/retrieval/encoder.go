package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPEncoder calls an external embedding endpoint to turn query text into
// a vector. A failure here only disables the vector backend for the request;
// the keyword backend still serves.
type HTTPEncoder struct {
	endpoint string
	client   *http.Client
}

// NewHTTPEncoder creates an encoder client for the given endpoint.
func NewHTTPEncoder(endpoint string, timeout time.Duration) *HTTPEncoder {
	return &HTTPEncoder{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

type encodeRequest struct {
	Text string `json:"text"`
}

type encodeResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Encode posts the text to the embedder and returns its vector.
func (e *HTTPEncoder) Encode(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(encodeRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("marshal encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build encode request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call embedder: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedder returned status %d", resp.StatusCode)
	}

	var parsed encodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode embedder response: %w", err)
	}
	if len(parsed.Embedding) == 0 {
		return nil, fmt.Errorf("embedder returned empty embedding")
	}

	return parsed.Embedding, nil
}
