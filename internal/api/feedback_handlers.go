package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/citypulse/citypulse/internal/bandit"
	"github.com/citypulse/citypulse/internal/middleware"
	"github.com/citypulse/citypulse/internal/retrieval"
	"github.com/citypulse/citypulse/internal/slate"
	"github.com/citypulse/citypulse/internal/taste"
)

// FeedbackRequest is the request body for POST /feedback. Liked is a pointer
// so an absent value is distinguishable from an explicit dislike.
type FeedbackRequest struct {
	UserID  string `json:"user_id" validate:"required"`
	EventID string `json:"event_id" validate:"required"`
	Liked   *bool  `json:"liked" validate:"required"`
	// Policy credits the serving policy that produced this interaction.
	// Empty skips the bandit update.
	Policy string `json:"policy" validate:"max=64"`
	// Reward overrides the default reward (1 for liked, 0 for disliked).
	Reward *float64 `json:"reward" validate:"omitempty,min=0,max=1"`
}

// FeedbackResponse is the response body for POST /feedback.
type FeedbackResponse struct {
	TasteUpdated bool `json:"taste_updated"`
	// UpdateCount is the number of interactions folded into the user's
	// taste vector so far, zero when no update happened.
	UpdateCount    int  `json:"update_count,omitempty"`
	PolicyCredited bool `json:"policy_credited"`
}

// FeedbackHandlers holds dependencies for feedback HTTP handlers.
type FeedbackHandlers struct {
	tastes     taste.Store
	embeddings retrieval.EmbeddingStore
	selector   *bandit.Selector
	validate   *validator.Validate
}

// NewFeedbackHandlers creates a new FeedbackHandlers instance.
func NewFeedbackHandlers(tastes taste.Store, embeddings retrieval.EmbeddingStore, selector *bandit.Selector) *FeedbackHandlers {
	return &FeedbackHandlers{
		tastes:     tastes,
		embeddings: embeddings,
		selector:   selector,
		validate:   validator.New(),
	}
}

// Feedback handles POST /feedback - folds a liked/disliked interaction into
// the user's taste vector and credits the serving policy's bandit arm.
func (h *FeedbackHandlers) Feedback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	var req FeedbackRequest
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

	if req.Policy != "" {
		if _, ok := slate.PolicyByName(req.Policy); !ok {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeUnknownPolicy)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeUnknownPolicy, "Unknown policy: "+req.Policy)
			return
		}
	}

	resp := FeedbackResponse{}

	// Taste update degrades when the event has no embedding: the policy
	// credit below still lands.
	embedding, err := h.embeddings.EmbeddingByID(r.Context(), req.EventID)
	switch {
	case errors.Is(err, retrieval.ErrEmbeddingNotFound):
		slog.InfoContext(r.Context(), "no embedding for feedback event", "event_id", req.EventID)
	case err != nil:
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Feedback processing failed")
		return
	default:
		v, err := h.tastes.Update(r.Context(), req.UserID, embedding, *req.Liked)
		if err != nil {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
			WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Taste update failed")
			return
		}
		resp.TasteUpdated = true
		resp.UpdateCount = v.UpdateCount
	}

	if req.Policy != "" && h.selector != nil {
		reward := 0.0
		if *req.Liked {
			reward = 1.0
		}
		if req.Reward != nil {
			reward = *req.Reward
		}
		if err := h.selector.RecordOutcome(r.Context(), req.Policy, reward); err != nil {
			// Bandit state is advisory, log and keep the response
			slog.WarnContext(r.Context(), "bandit outcome record failed",
				"policy", req.Policy, "error", err)
		} else {
			resp.PolicyCredited = true
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode feedback response", "error", err)
	}
}
