package api

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/citypulse/citypulse/internal/middleware"
)

func TestWriteErrorEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, context.Background(), http.StatusNotFound, ErrCodeNotFound, "campaign not found")

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, "application/json") {
		t.Errorf("Content-Type = %q, want JSON", ct)
	}

	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse body %q: %v", rec.Body.String(), err)
	}
	if resp.Error.Code != ErrCodeNotFound || resp.Error.Message != "campaign not found" {
		t.Errorf("envelope = %+v, want code/message preserved", resp.Error)
	}
}

func TestWriteErrorReachesAccessLog(t *testing.T) {
	// WriteError must push the tagged context back through the writer
	// chain so the logging middleware records error_code.
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	handler := middleware.Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeMissingCity)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeMissingCity, "city is required")
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/recommend", nil))

	var line struct {
		ErrorCode string `json:"error_code"`
		Status    int    `json:"status"`
	}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("parse access log: %v", err)
	}
	if line.ErrorCode != ErrCodeMissingCity {
		t.Errorf("logged error_code = %q, want %q", line.ErrorCode, ErrCodeMissingCity)
	}
	if line.Status != http.StatusBadRequest {
		t.Errorf("logged status = %d, want 400", line.Status)
	}
}

func TestStatusCodeMapping(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{code: ErrCodeValidation, want: http.StatusBadRequest},
		{code: ErrCodeBadRequest, want: http.StatusBadRequest},
		{code: ErrCodeMissingCity, want: http.StatusBadRequest},
		{code: ErrCodeUnknownEventType, want: http.StatusBadRequest},
		{code: ErrCodeUnknownPolicy, want: http.StatusBadRequest},
		{code: ErrCodeAuthFailed, want: http.StatusUnauthorized},
		{code: ErrCodeInvalidTrackToken, want: http.StatusUnauthorized},
		{code: ErrCodeNotFound, want: http.StatusNotFound},
		{code: ErrCodeRateLimited, want: http.StatusTooManyRequests},
		{code: ErrCodeInternal, want: http.StatusInternalServerError},
		{code: "something_new", want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if got := StatusCodeMapping(tt.code); got != tt.want {
				t.Errorf("StatusCodeMapping(%q) = %d, want %d", tt.code, got, tt.want)
			}
		})
	}
}
