package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

// Middleware rejects requests without a valid admin session and stores the
// identity in the request context.
func Middleware(v Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFromRequest(r)
			if token == "" {
				writeError(w, http.StatusUnauthorized, "Authentication required", "unauthorized")
				return
			}

			id, err := v.VerifyAdminIdentity(r.Context(), token)
			if err != nil {
				if errors.Is(err, ErrUnauthorized) {
					writeError(w, http.StatusUnauthorized, "Invalid or expired token", "unauthorized")
					return
				}
				log.Error().Err(err).Str("request_id", middleware.GetReqID(r.Context())).Msg("auth: session verification failed")
				writeError(w, http.StatusInternalServerError, "Internal server error", "internal")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

func writeError(w http.ResponseWriter, code int, msg, kind string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg, "kind": kind})
}
