package middleware

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/citypulse/citypulse/internal/idempotency"
)

// IdempotencyKeyHeader carries the client-chosen retry key.
const IdempotencyKeyHeader = "Idempotency-Key"

type idempotencyKeyContextKey struct{}

// SetIdempotencyKey stores the idempotency key in the context.
func SetIdempotencyKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, idempotencyKeyContextKey{}, key)
}

// GetIdempotencyKey returns the idempotency key from the context, or "".
func GetIdempotencyKey(ctx context.Context) string {
	key, _ := ctx.Value(idempotencyKeyContextKey{}).(string)
	return key
}

// recordingWriter tees the response into a buffer so successful responses
// can be cached for replay.
type recordingWriter struct {
	http.ResponseWriter
	status int
	buf    bytes.Buffer
	wrote  bool
}

func (w *recordingWriter) WriteHeader(status int) {
	if !w.wrote {
		w.status = status
		w.wrote = true
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *recordingWriter) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

// Unwrap exposes the underlying writer for UpdateResponseContext traversal.
func (w *recordingWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// writeIdempotencyError writes a JSON error response and records the error
// code in the request context for logging.
func writeIdempotencyError(w http.ResponseWriter, ctx context.Context, status int, code, message string) {
	UpdateResponseContext(w, SetErrorCode(ctx, code))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	io.WriteString(w, `{"error":"`+code+`","message":"`+message+`"}`)
}

// IdempotencyMiddleware requires an Idempotency-Key header on POSTs to the
// listed routes, replays the cached response for a repeated key, and caches
// successful responses for future retries.
func IdempotencyMiddleware(repo idempotency.Repository, routes map[string]bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !routes[r.URL.Path] || r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}

			key := r.Header.Get(IdempotencyKeyHeader)
			if key == "" {
				writeIdempotencyError(w, r.Context(), http.StatusBadRequest,
					"missing_idempotency_key", "Idempotency-Key header is required for this request")
				return
			}
			if err := idempotency.ValidateKey(key); err != nil {
				code, message := "invalid_idempotency_key", "Invalid Idempotency-Key format"
				if errors.Is(err, idempotency.ErrKeyTooLong) {
					code, message = "idempotency_key_too_long", "Idempotency-Key exceeds maximum length of 64 characters"
				}
				writeIdempotencyError(w, r.Context(), http.StatusBadRequest, code, message)
				return
			}

			ctx := SetIdempotencyKey(r.Context(), key)
			r = r.WithContext(ctx)

			switch cached, err := repo.Get(key); {
			case err == nil:
				replay(ctx, w, key, cached)
				return
			case !errors.Is(err, idempotency.ErrKeyNotFound):
				// Storage trouble degrades to a plain request rather
				// than failing the feedback.
				slog.ErrorContext(ctx, "failed to check idempotency key", "key", key, "error", err)
				next.ServeHTTP(w, r)
				return
			}

			rec := &recordingWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			cacheResponse(ctx, repo, key, r, rec)
		})
	}
}

func replay(ctx context.Context, w http.ResponseWriter, key string, cached *idempotency.Record) {
	slog.InfoContext(ctx, "idempotency key found, returning cached response",
		"key", key, "status", cached.ResponseStatusCode)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(cached.ResponseStatusCode)
	io.WriteString(w, cached.ResponseBody)
}

// cacheResponse stores a successful response for later replay. A failed
// request should be retried for real, so non-2xx responses are not cached.
func cacheResponse(ctx context.Context, repo idempotency.Repository, key string, r *http.Request, rec *recordingWriter) {
	if rec.status < 200 || rec.status >= 300 {
		return
	}
	body := rec.buf.String()
	err := repo.Store(&idempotency.Record{
		Key:                key,
		Method:             r.Method,
		Route:              r.URL.Path,
		Status:             idempotency.StatusCompleted,
		ResponseStatusCode: rec.status,
		ResponseBody:       body,
		ResponseHash:       idempotency.ComputeResponseHash(body),
	})
	if err != nil {
		// Response already went out; log only.
		slog.ErrorContext(ctx, "failed to store idempotency key", "key", key, "error", err)
	}
}
