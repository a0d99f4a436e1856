package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

var ErrUnauthorized = errors.New("unauthorized")

// AdminIdentity is the admin bound to a valid session token.
type AdminIdentity struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// Verifier resolves a session token to an admin identity. Unknown, expired or
// empty tokens yield ErrUnauthorized.
type Verifier interface {
	VerifyAdminIdentity(ctx context.Context, token string) (*AdminIdentity, error)
}

type VerifierFunc func(ctx context.Context, token string) (*AdminIdentity, error)

func (f VerifierFunc) VerifyAdminIdentity(ctx context.Context, token string) (*AdminIdentity, error) {
	return f(ctx, token)
}

// TokenFromRequest reads the session token from the token query or form
// parameter, falling back to the Authorization header.
func TokenFromRequest(r *http.Request) string {
	if t := strings.TrimSpace(r.URL.Query().Get("token")); t != "" {
		return t
	}
	if r.Method == http.MethodPost {
		if t := strings.TrimSpace(r.PostFormValue("token")); t != "" {
			return t
		}
	}

	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return h
}

type ctxKey struct{}

func WithIdentity(ctx context.Context, id *AdminIdentity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func IdentityFromContext(ctx context.Context) (*AdminIdentity, bool) {
	id, ok := ctx.Value(ctxKey{}).(*AdminIdentity)
	return id, ok && id != nil
}
