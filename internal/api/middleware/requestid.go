package middleware

import (
	"context"
	"net/http"

	"github.com/ConflictingTheories/meme-citadel-sub000/internal/domain"
	"github.com/google/uuid"
)

type contextKey string

const (
	RequestIDHeader = "X-Request-ID"
	IdentityHeader  = "X-Citadel-Identity"

	requestIDKey = contextKey("request_id")
	identityKey  = contextKey("identity")
)

func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// IdentityFromContext returns the caller resolved by RequireIdentity, or nil.
func IdentityFromContext(ctx context.Context) *domain.Identity {
	i, _ := ctx.Value(identityKey).(*domain.Identity)
	return i
}

func WithIdentity(ctx context.Context, i *domain.Identity) context.Context {
	return context.WithValue(ctx, identityKey, i)
}

// RequestID propagates an incoming X-Request-ID or assigns a fresh one, and
// echoes it on the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}
