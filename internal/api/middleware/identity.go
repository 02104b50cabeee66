package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ConflictingTheories/meme-citadel-sub000/internal/domain"
	"go.uber.org/zap"
)

type IdentityResolver interface {
	GetIdentity(ctx context.Context, publicID string) (*domain.Identity, error)
}

// RequireIdentity resolves the X-Citadel-Identity header to a stored
// identity. Requests without a known identity are rejected.
func RequireIdentity(resolver IdentityResolver, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			publicID := strings.TrimSpace(r.Header.Get(IdentityHeader))
			if publicID == "" {
				writeError(w, http.StatusUnauthorized, "missing "+IdentityHeader+" header", "IdentityRequired")
				return
			}

			identity, err := resolver.GetIdentity(r.Context(), publicID)
			if err != nil {
				if errors.Is(err, domain.ErrIdentityNotFound) {
					writeError(w, http.StatusUnauthorized, "unknown identity", "IdentityNotFound")
					return
				}
				logger.Error("identity lookup failed", zap.String("identity", publicID), zap.Error(err))
				writeError(w, http.StatusInternalServerError, "identity lookup failed", "Internal")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

func writeError(w http.ResponseWriter, status int, msg, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg, "code": code})
}
