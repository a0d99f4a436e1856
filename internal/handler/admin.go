package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/vasiliy-maslov/print-admin/internal/auth"
)

// PingFunc checks connectivity of an external store.
type PingFunc func(ctx context.Context) error

type SessionResponse struct {
	Success bool                `json:"success"`
	Admin   *auth.AdminIdentity `json:"admin"`
}

type HealthResponse struct {
	Success   bool   `json:"success"`
	Status    string `json:"status"`
	LatencyMS int64  `json:"latency_ms,omitempty"`
}

// AdminHandler serves session echo and the document-store health check.
type AdminHandler struct {
	docstorePing PingFunc
}

// NewAdminHandler builds the handler. A nil ping means the document store is
// disabled.
func NewAdminHandler(docstorePing PingFunc) *AdminHandler {
	return &AdminHandler{docstorePing: docstorePing}
}

func (h *AdminHandler) RegisterRoutes(router chi.Router) {
	router.Get("/session", h.handleSession)
	router.Get("/docstore/health", h.handleDocstoreHealth)
}

func (h *AdminHandler) handleSession(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, KindUnauthorized, "Authentication required")
		return
	}
	respondWithJSON(w, http.StatusOK, SessionResponse{Success: true, Admin: id})
}

func (h *AdminHandler) handleDocstoreHealth(w http.ResponseWriter, r *http.Request) {
	if h.docstorePing == nil {
		respondWithJSON(w, http.StatusOK, HealthResponse{Success: true, Status: "disabled"})
		return
	}

	start := time.Now()
	if err := h.docstorePing(r.Context()); err != nil {
		respondWithServiceError(w, r, err, "Document collection not found")
		return
	}
	respondWithJSON(w, http.StatusOK, HealthResponse{
		Success:   true,
		Status:    "ok",
		LatencyMS: time.Since(start).Milliseconds(),
	})
}
