package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/citypulse/citypulse/internal/middleware"
	"github.com/citypulse/citypulse/internal/slate"
)

// PolicyListResponse is the response body for GET /policies.
type PolicyListResponse struct {
	Policies []slate.Policy `json:"policies"`
	// Active is the operator-pinned policy name, empty when the bandit
	// chooses per user.
	Active string `json:"active,omitempty"`
}

// PolicyHandlers holds dependencies for policy HTTP handlers.
type PolicyHandlers struct {
	activePolicy string
}

// NewPolicyHandlers creates a new PolicyHandlers instance. activePolicy is
// the operator override, empty when the bandit selects.
func NewPolicyHandlers(activePolicy string) *PolicyHandlers {
	return &PolicyHandlers{activePolicy: activePolicy}
}

// ListPolicies handles GET /policies - returns the canonical policy bundles
// and which one is pinned, if any.
func (h *PolicyHandlers) ListPolicies(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	resp := PolicyListResponse{
		Policies: slate.CanonicalPolicies(),
		Active:   h.activePolicy,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode policy list", "error", err)
	}
}
