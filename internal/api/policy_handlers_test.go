package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/citypulse/citypulse/internal/slate"
)

func TestListPolicies(t *testing.T) {
	handlers := NewPolicyHandlers("")

	req := httptest.NewRequest(http.MethodGet, "/policies", nil)
	w := httptest.NewRecorder()
	handlers.ListPolicies(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var resp PolicyListResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if len(resp.Policies) != 2 {
		t.Fatalf("expected 2 canonical policies, got %d", len(resp.Policies))
	}

	names := map[string]bool{}
	for _, p := range resp.Policies {
		names[p.Name] = true
	}
	if !names[slate.PolicyBalanced] || !names[slate.PolicySafeNovel] {
		t.Errorf("expected balanced and safe-novel policies, got %v", names)
	}
	if resp.Active != "" {
		t.Errorf("expected no pinned policy, got %s", resp.Active)
	}
}

func TestListPolicies_PinnedActive(t *testing.T) {
	handlers := NewPolicyHandlers(slate.PolicySafeNovel)

	req := httptest.NewRequest(http.MethodGet, "/policies", nil)
	w := httptest.NewRecorder()
	handlers.ListPolicies(w, req)

	var resp PolicyListResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Active != slate.PolicySafeNovel {
		t.Errorf("expected pinned policy %s, got %s", slate.PolicySafeNovel, resp.Active)
	}
}

func TestListPolicies_MethodNotAllowed(t *testing.T) {
	handlers := NewPolicyHandlers("")

	req := httptest.NewRequest(http.MethodPost, "/policies", nil)
	w := httptest.NewRecorder()
	handlers.ListPolicies(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status 405, got %d", w.Code)
	}
}
