package auth_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/print-admin/internal/auth"
)

func TestTokenFromRequest(t *testing.T) {
	tests := []struct {
		name string
		req  func() *http.Request
		want string
	}{
		{
			name: "bearer header",
			req: func() *http.Request {
				r := httptest.NewRequest(http.MethodGet, "/admin/orders", nil)
				r.Header.Set("Authorization", "Bearer tok-1")
				return r
			},
			want: "tok-1",
		},
		{
			name: "raw header",
			req: func() *http.Request {
				r := httptest.NewRequest(http.MethodGet, "/admin/orders", nil)
				r.Header.Set("Authorization", "tok-raw")
				return r
			},
			want: "tok-raw",
		},
		{
			name: "query parameter wins",
			req: func() *http.Request {
				r := httptest.NewRequest(http.MethodGet, "/admin/orders?token=tok-q", nil)
				r.Header.Set("Authorization", "Bearer tok-h")
				return r
			},
			want: "tok-q",
		},
		{
			name: "form parameter",
			req: func() *http.Request {
				body := url.Values{"token": {"tok-f"}}.Encode()
				r := httptest.NewRequest(http.MethodPost, "/admin/orders/x/status", strings.NewReader(body))
				r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
				return r
			},
			want: "tok-f",
		},
		{
			name: "none",
			req: func() *http.Request {
				return httptest.NewRequest(http.MethodGet, "/admin/orders", nil)
			},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, auth.TokenFromRequest(tt.req()))
		})
	}
}

func TestMiddleware(t *testing.T) {
	admin := &auth.AdminIdentity{ID: 7, Username: "root", Email: "root@example.com", Role: "admin"}

	verifier := auth.VerifierFunc(func(_ context.Context, token string) (*auth.AdminIdentity, error) {
		switch token {
		case "good":
			return admin, nil
		case "broken":
			return nil, errors.New("connection reset")
		default:
			return nil, auth.ErrUnauthorized
		}
	})

	var seen *auth.AdminIdentity
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = auth.IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	h := auth.Middleware(verifier)(next)

	tests := []struct {
		name     string
		header   string
		wantCode int
		wantKind string
	}{
		{name: "valid", header: "Bearer good", wantCode: http.StatusNoContent},
		{name: "missing", header: "", wantCode: http.StatusUnauthorized, wantKind: "unauthorized"},
		{name: "expired", header: "Bearer stale", wantCode: http.StatusUnauthorized, wantKind: "unauthorized"},
		{name: "backend failure", header: "Bearer broken", wantCode: http.StatusInternalServerError, wantKind: "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest(http.MethodGet, "/admin/orders", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()

			h.ServeHTTP(rr, req)

			require.Equal(t, tt.wantCode, rr.Code)
			if tt.wantKind == "" {
				assert.Equal(t, admin, seen)
				return
			}
			assert.Nil(t, seen)

			var body map[string]string
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.Equal(t, tt.wantKind, body["kind"])
			assert.NotEmpty(t, body["error"])
			assert.NotContains(t, body["error"], "connection reset")
		})
	}
}

func TestIdentityFromContext_Empty(t *testing.T) {
	_, ok := auth.IdentityFromContext(context.Background())
	assert.False(t, ok)

	_, ok = auth.IdentityFromContext(auth.WithIdentity(context.Background(), nil))
	assert.False(t, ok)
}
