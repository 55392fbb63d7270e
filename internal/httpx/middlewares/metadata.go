package middlewares

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/voyago/travel-sagas/internal/pkg/requestmeta"
)

// AttachRequestMetadata lifts the chi request id and the caller's
// X-Idempotency-Key header into typed context values so handlers and the
// orchestrator read them without touching http.Request.
func AttachRequestMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestmeta.WithRequestID(r.Context(), middleware.GetReqID(r.Context()))
		ctx = requestmeta.WithIdempotencyKey(ctx, r.Header.Get(requestmeta.HeaderIdempotencyKey))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
