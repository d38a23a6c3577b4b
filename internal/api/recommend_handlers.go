package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/citypulse/citypulse/internal/ads"
	"github.com/citypulse/citypulse/internal/agent"
	"github.com/citypulse/citypulse/internal/intention"
	"github.com/citypulse/citypulse/internal/middleware"
	"github.com/citypulse/citypulse/internal/slate"
)

// RecommendRequest is the request body for POST /recommend.
type RecommendRequest struct {
	UserID    string   `json:"user_id"`
	SessionID string   `json:"session_id"`
	City      string   `json:"city" validate:"required"`
	Tokens    []string `json:"tokens" validate:"max=32,dive,max=128"`
	Source    string   `json:"source" validate:"omitempty,oneof=cookie profile inline inferred"`
	Lat       float64  `json:"lat" validate:"omitempty,min=-90,max=90"`
	Lng       float64  `json:"lng" validate:"omitempty,min=-180,max=180"`
	// ExplicitIDs bypass retrieval and score exactly these events.
	ExplicitIDs []string `json:"explicit_ids" validate:"max=100"`
	Diversify   *bool    `json:"diversify"`
	Page        int      `json:"page" validate:"min=0"`
	Limit       int      `json:"limit" validate:"min=0,max=50"`
}

// RecommendHandlers holds dependencies for recommendation HTTP handlers.
type RecommendHandlers struct {
	pipeline *agent.Pipeline
	engine   *ads.Engine
	validate *validator.Validate
}

// NewRecommendHandlers creates a new RecommendHandlers instance.
func NewRecommendHandlers(pipeline *agent.Pipeline) *RecommendHandlers {
	return &RecommendHandlers{
		pipeline: pipeline,
		validate: validator.New(),
	}
}

// WithAds attaches the ad engine so recommend responses can carry native
// sponsorship. Without it items are never marked sponsored.
func (h *RecommendHandlers) WithAds(engine *ads.Engine) *RecommendHandlers {
	h.engine = engine
	return h
}

// Recommend handles POST /recommend - runs the decision pipeline and returns
// ranked items plus the composed slates.
func (h *RecommendHandlers) Recommend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	var req RecommendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		if req.City == "" {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeMissingCity)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeMissingCity, "city is required")
			return
		}
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "Invalid request: "+err.Error())
		return
	}

	source := intention.Source(req.Source)
	if req.Source == "" {
		source = intention.SourceInline
	}

	resp, err := h.pipeline.Run(r.Context(), agent.Request{
		UserID:      req.UserID,
		SessionID:   req.SessionID,
		City:        req.City,
		Tokens:      req.Tokens,
		Source:      source,
		Lat:         req.Lat,
		Lng:         req.Lng,
		ExplicitIDs: req.ExplicitIDs,
		Diversify:   req.Diversify,
		Page:        req.Page,
		Limit:       req.Limit,
	})
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Recommendation failed")
		return
	}

	if h.engine != nil {
		h.markSponsorship(r.Context(), resp, req)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode recommend response", "error", err)
	}
}

// markSponsorship runs a native-only auction over the events that cleared
// the sponsorship fit floor and flags the winner's event across the
// response. Auction failures leave the response organic.
func (h *RecommendHandlers) markSponsorship(ctx context.Context, resp *agent.Response, req RecommendRequest) {
	eligible := make(map[string]bool)
	collect := func(items []slate.Item) {
		for _, item := range items {
			if item.Event != nil && item.FitScore >= ads.MinSponsorshipFit {
				eligible[item.Event.ID] = true
			}
		}
	}
	collect(resp.Items)
	if resp.Slates != nil {
		collect(resp.Slates.Best)
		collect(resp.Slates.Wildcard)
		collect(resp.Slates.CloseEasy)
	}

	served, err := h.engine.ServeNative(ctx, ads.RequestContext{
		SessionID: req.SessionID,
		UserID:    req.UserID,
		City:      req.City,
	}, eligible)
	if err != nil {
		slog.WarnContext(ctx, "native sponsorship auction failed", "error", err)
		return
	}
	if served.Ad == nil {
		return
	}

	eventID := served.Ad.Creative.EventID
	campaignID := served.Ad.Campaign.ID
	mark := func(items []slate.Item) {
		for i := range items {
			if items[i].Event != nil && items[i].Event.ID == eventID {
				items[i].Sponsored = true
				items[i].SponsorCampaignID = campaignID
			}
		}
	}
	mark(resp.Items)
	if resp.Slates != nil {
		mark(resp.Slates.Best)
		mark(resp.Slates.Wildcard)
		mark(resp.Slates.CloseEasy)
	}
}
