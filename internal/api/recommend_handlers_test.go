package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/citypulse/citypulse/internal/ads"
	"github.com/citypulse/citypulse/internal/agent"
	"github.com/citypulse/citypulse/internal/event"
	"github.com/citypulse/citypulse/internal/retrieval"
	"github.com/citypulse/citypulse/internal/scoring"
	"github.com/citypulse/citypulse/internal/slate"
)

// stubRetriever returns a fixed candidate set for every query.
type stubRetriever struct {
	candidates []retrieval.Candidate
}

func (r *stubRetriever) Retrieve(_ context.Context, _ string, _ retrieval.Filter, _ string) []retrieval.Candidate {
	return r.candidates
}

func newTestPipeline(t *testing.T, eventCount int) *agent.Pipeline {
	t.Helper()

	repo := event.NewInMemoryRepository()
	var candidates []retrieval.Candidate
	for i := 0; i < eventCount; i++ {
		id := fmt.Sprintf("ev-%d", i)
		repo.Put(&event.Event{
			ID:        id,
			Title:     "Event " + id,
			Category:  event.CategoryMusic,
			City:      "austin",
			StartTime: time.Now().Add(4 * time.Hour),
			EndTime:   time.Now().Add(6 * time.Hour),
		})
		candidates = append(candidates, retrieval.Candidate{
			ID:            id,
			SemanticScore: 0.9 - float64(i)*0.05,
			Source:        retrieval.SourceVector,
		})
	}

	return agent.NewPipeline(&stubRetriever{candidates: candidates}, repo, nil, nil,
		scoring.DefaultWeights(), nil, nil)
}

func postJSON(t *testing.T, handler http.HandlerFunc, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler(w, req)
	return w
}

func TestRecommend_Success(t *testing.T) {
	handlers := NewRecommendHandlers(newTestPipeline(t, 5))

	w := postJSON(t, handlers.Recommend, "/recommend", RecommendRequest{
		UserID: "user-1",
		City:   "austin",
		Tokens: []string{"mood=music"},
	})

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp agent.Response
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if len(resp.Items) != 5 {
		t.Errorf("expected 5 items, got %d", len(resp.Items))
	}
	if resp.Policy == "" {
		t.Error("expected a policy name in the response")
	}
	if resp.Slates == nil {
		t.Error("expected slates in the response")
	}
}

func TestRecommend_MissingCity(t *testing.T) {
	handlers := NewRecommendHandlers(newTestPipeline(t, 1))

	w := postJSON(t, handlers.Recommend, "/recommend", RecommendRequest{
		UserID: "user-1",
	})

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}

	var resp ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	if resp.Error.Code != ErrCodeMissingCity {
		t.Errorf("expected code %s, got %s", ErrCodeMissingCity, resp.Error.Code)
	}
}

func TestRecommend_InvalidJSON(t *testing.T) {
	handlers := NewRecommendHandlers(newTestPipeline(t, 1))

	req := httptest.NewRequest(http.MethodPost, "/recommend", bytes.NewReader([]byte("{not json")))
	w := httptest.NewRecorder()
	handlers.Recommend(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", w.Code)
	}
}

func TestRecommend_MethodNotAllowed(t *testing.T) {
	handlers := NewRecommendHandlers(newTestPipeline(t, 1))

	req := httptest.NewRequest(http.MethodGet, "/recommend", nil)
	w := httptest.NewRecorder()
	handlers.Recommend(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status 405, got %d", w.Code)
	}
}

func TestRecommend_LimitTooLarge(t *testing.T) {
	handlers := NewRecommendHandlers(newTestPipeline(t, 1))

	w := postJSON(t, handlers.Recommend, "/recommend", RecommendRequest{
		City:  "austin",
		Limit: 500,
	})

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}

	var resp ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	if resp.Error.Code != ErrCodeValidation {
		t.Errorf("expected code %s, got %s", ErrCodeValidation, resp.Error.Code)
	}
}

func TestRecommend_Pagination(t *testing.T) {
	handlers := NewRecommendHandlers(newTestPipeline(t, 7))

	w := postJSON(t, handlers.Recommend, "/recommend", RecommendRequest{
		City:  "austin",
		Page:  1,
		Limit: 3,
	})

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp agent.Response
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if len(resp.Items) != 3 {
		t.Errorf("expected 3 items on page 1, got %d", len(resp.Items))
	}
	if !resp.HasMore {
		t.Error("expected has_more on a middle page")
	}
}

func newSponsorshipEngine(t *testing.T, eventID string) (*ads.Engine, *ads.MemoryStore) {
	t.Helper()
	store := ads.NewMemoryStore()
	store.PutCampaign(&ads.Campaign{
		ID:          "camp-native",
		Name:        "camp-native",
		Status:      ads.StatusActive,
		BidAmount:   5,
		TotalBudget: 100,
		QualityBase: 1.0,
		Targeting:   ads.Targeting{Cities: []string{"austin"}},
	})
	store.PutCreative(&ads.Creative{
		CampaignID: "camp-native",
		Headline:   "House Event",
		Format:     ads.FormatNative,
		EventID:    eventID,
	})
	return ads.NewEngine(store, ads.NewMemoryFrequencyCapper(), ads.NewTokenSigner("test-secret"), ads.EngineConfig{}, nil, nil), store
}

func sponsorshipResponse(fit float64) *agent.Response {
	items := []slate.Item{
		{Event: &event.Event{ID: "ev-1", City: "austin"}, FitScore: fit},
		{Event: &event.Event{ID: "ev-2", City: "austin"}, FitScore: 0.9},
	}
	return &agent.Response{
		Items:  items,
		Slates: &slate.Slates{Best: append([]slate.Item(nil), items...)},
	}
}

func TestRecommend_SponsorshipMarksWinningEvent(t *testing.T) {
	engine, _ := newSponsorshipEngine(t, "ev-1")
	handlers := NewRecommendHandlers(newTestPipeline(t, 0)).WithAds(engine)

	resp := sponsorshipResponse(0.8)
	handlers.markSponsorship(context.Background(), resp, RecommendRequest{
		SessionID: "sess-1",
		City:      "austin",
	})

	if !resp.Items[0].Sponsored || resp.Items[0].SponsorCampaignID != "camp-native" {
		t.Errorf("ev-1 should be sponsored by camp-native, got %+v", resp.Items[0])
	}
	if resp.Items[1].Sponsored {
		t.Error("ev-2 has no matching creative and must stay organic")
	}
	if !resp.Slates.Best[0].Sponsored {
		t.Error("sponsorship must be reflected inside slates as well")
	}
}

func TestRecommend_SponsorshipRespectsFitFloor(t *testing.T) {
	engine, store := newSponsorshipEngine(t, "ev-1")
	handlers := NewRecommendHandlers(newTestPipeline(t, 0)).WithAds(engine)

	resp := sponsorshipResponse(ads.MinSponsorshipFit - 0.01)
	handlers.markSponsorship(context.Background(), resp, RecommendRequest{
		SessionID: "sess-1",
		City:      "austin",
	})

	if resp.Items[0].Sponsored {
		t.Error("item below the sponsorship fit floor must stay organic")
	}
	c, err := store.GetCampaign(context.Background(), "camp-native")
	if err != nil {
		t.Fatalf("GetCampaign: %v", err)
	}
	if c.Spent != 0 {
		t.Errorf("campaign charged %v without an attachable item", c.Spent)
	}
}
