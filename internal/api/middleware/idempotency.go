package middleware

import (
	"context"
	"net/http"
	"strings"
)

const (
	HeaderIdempotencyKey = "Idempotency-Key"
	maxKeyLength         = 255
)

type idempotencyKeyCtx struct{}

// Idempotency lifts the Idempotency-Key header of state-changing requests into
// the request context. The use case owns lookup and binding.
func Idempotency(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Only apply to state-changing methods
		if r.Method != http.MethodPost && r.Method != http.MethodPut && r.Method != http.MethodPatch {
			next.ServeHTTP(w, r)
			return
		}

		key := strings.TrimSpace(r.Header.Get(HeaderIdempotencyKey))
		if key == "" {
			next.ServeHTTP(w, r)
			return
		}
		if len(key) > maxKeyLength {
			w.Header().Set("Content-Type", "application/problem+json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"type":"urn:problem:validation","title":"Bad Request","status":400,"detail":"Idempotency-Key is too long"}`))
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), idempotencyKeyCtx{}, key)))
	})
}

// IdempotencyKey returns the key stored by Idempotency, or "".
func IdempotencyKey(ctx context.Context) string {
	key, _ := ctx.Value(idempotencyKeyCtx{}).(string)
	return key
}
