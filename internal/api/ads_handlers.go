package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/citypulse/citypulse/internal/ads"
	"github.com/citypulse/citypulse/internal/middleware"
)

// ServeAdRequest is the request body for POST /ads/serve.
type ServeAdRequest struct {
	SessionID    string  `json:"session_id"`
	UserID       string  `json:"user_id"`
	City         string  `json:"city" validate:"required"`
	Neighborhood string  `json:"neighborhood"`
	Category     string  `json:"category"`
	Query        string  `json:"query" validate:"max=512"`
	PriceContext float64 `json:"price_context" validate:"min=0"`
}

// AdPayload is the creative surface returned to the client. Bid and
// settlement internals never leave the server.
type AdPayload struct {
	CampaignID string `json:"campaign_id"`
	Headline   string `json:"headline"`
	Body       string `json:"body,omitempty"`
	ImageURL   string `json:"image_url,omitempty"`
	TargetURL  string `json:"target_url,omitempty"`
	Format     string `json:"format"`
	EventID    string `json:"event_id,omitempty"`
}

// ServeAdResponse is the response body for POST /ads/serve.
// Ad is null when no campaign cleared admission; the scores and settlement
// price accompany a non-null ad.
type ServeAdResponse struct {
	Ad              *AdPayload `json:"ad"`
	ImpressionID    string     `json:"impression_id,omitempty"`
	TrackToken      string     `json:"track_token,omitempty"`
	TargetingScore  float64    `json:"targeting_score,omitempty"`
	QualityScore    float64    `json:"quality_score,omitempty"`
	SettlementPrice float64    `json:"settlement_price,omitempty"`
}

// TrackAdRequest is the request body for POST /ads/track.
type TrackAdRequest struct {
	Token          string  `json:"token" validate:"required"`
	EventType      string  `json:"event_type" validate:"required,oneof=CLICK VIEWABLE CONVERSION"`
	ConversionType string  `json:"conversion_type" validate:"max=64"`
	EventID        string  `json:"event_id" validate:"max=128"`
	Value          float64 `json:"value" validate:"min=0"`
}

// TrackAdResponse is the response body for POST /ads/track.
type TrackAdResponse struct {
	Recorded   bool   `json:"recorded"`
	Attributed bool   `json:"attributed"`
	// AttributedTo names the credited touchpoint for conversions.
	AttributedTo string `json:"attributed_to,omitempty"`
}

// AdsHandlers holds dependencies for sponsored-content HTTP handlers.
type AdsHandlers struct {
	engine   *ads.Engine
	signer   *ads.TokenSigner
	validate *validator.Validate
}

// NewAdsHandlers creates a new AdsHandlers instance.
func NewAdsHandlers(engine *ads.Engine, signer *ads.TokenSigner) *AdsHandlers {
	return &AdsHandlers{
		engine:   engine,
		signer:   signer,
		validate: validator.New(),
	}
}

// ServeAd handles POST /ads/serve - runs admission and the auction, returns
// the winning creative with a tracking token, or a null ad.
func (h *AdsHandlers) ServeAd(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	var req ServeAdRequest
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

	result, err := h.engine.Serve(r.Context(), ads.RequestContext{
		SessionID:    req.SessionID,
		UserID:       req.UserID,
		City:         req.City,
		Neighborhood: req.Neighborhood,
		Category:     req.Category,
		Query:        req.Query,
		PriceContext: req.PriceContext,
		Now:          time.Now(),
	})
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Ad serving failed")
		return
	}

	resp := ServeAdResponse{}
	if result.Ad != nil {
		resp.Ad = &AdPayload{
			CampaignID: result.Ad.Campaign.ID,
			Headline:   result.Ad.Creative.Headline,
			Body:       result.Ad.Creative.Body,
			ImageURL:   result.Ad.Creative.ImageURL,
			TargetURL:  result.Ad.Creative.TargetURL,
			Format:     string(result.Ad.Creative.Format),
			EventID:    result.Ad.Creative.EventID,
		}
		resp.ImpressionID = result.ImpressionID
		resp.TrackToken = result.TrackToken
		resp.TargetingScore = result.TargetingScore
		resp.QualityScore = result.QualityScore
		resp.SettlementPrice = result.SettlementPrice
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode serve response", "error", err)
	}
}

// TrackAd handles POST /ads/track - verifies the tracking token and records
// a click, viewable, or conversion against its impression.
func (h *AdsHandlers) TrackAd(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	var req TrackAdRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "Invalid request: "+err.Error())
		return
	}

	claims, err := h.signer.Verify(req.Token)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInvalidTrackToken)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeInvalidTrackToken, "Tracking token failed verification")
		return
	}

	result, err := h.engine.Track(r.Context(), claims, ads.EventType(req.EventType),
		req.ConversionType, req.EventID, req.Value)
	if err != nil {
		switch {
		case errors.Is(err, ads.ErrInvalidTrackToken):
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeInvalidTrackToken)
			WriteError(w, ctx, http.StatusUnauthorized, ErrCodeInvalidTrackToken, "Tracking token does not match its impression")
		case errors.Is(err, ads.ErrImpressionNotFound):
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Impression not found")
		default:
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
			WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Event tracking failed")
		}
		return
	}

	resp := TrackAdResponse{
		Recorded:     result.Recorded,
		Attributed:   result.Attributed,
		AttributedTo: string(result.AttributedTo),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode track response", "error", err)
	}
}
