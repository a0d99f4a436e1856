package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/print-admin/internal/auth"
	"github.com/vasiliy-maslov/print-admin/internal/docstore"
	"github.com/vasiliy-maslov/print-admin/internal/order"
	"github.com/vasiliy-maslov/print-admin/internal/user"
)

// Error kinds reported in the "kind" field of error responses.
const (
	KindValidation       = "validation"
	KindUnauthorized     = "unauthorized"
	KindNotFound         = "not_found"
	KindStoreUnavailable = "store_unavailable"
	KindConfiguration    = "configuration"
	KindInternal         = "internal"
)

type ErrorResponse struct {
	Error   string            `json:"error"`
	Kind    string            `json:"kind"`
	Details map[string]string `json:"details,omitempty"`
}

// respondWithError отправляет JSON ошибку
func respondWithError(w http.ResponseWriter, code int, kind, message string) {
	respondWithJSON(w, code, ErrorResponse{Error: message, Kind: kind})
}

// respondWithJSON отправляет JSON ответ
func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("handler: failed to marshal JSON response")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Failed to marshal JSON response","kind":"internal"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(response); err != nil {
		log.Error().Err(err).Msg("handler: failed to write JSON response")
	}
}

// mapErrorToStatusCode classifies err into an HTTP status and error kind.
func mapErrorToStatusCode(err error) (int, string) {
	switch {
	case errors.Is(err, order.ErrValidation):
		return http.StatusBadRequest, KindValidation
	case errors.Is(err, auth.ErrUnauthorized):
		return http.StatusUnauthorized, KindUnauthorized
	case errors.Is(err, order.ErrOrderNotFound),
		errors.Is(err, user.ErrUserNotFound),
		errors.Is(err, docstore.ErrNotFound):
		return http.StatusNotFound, KindNotFound
	case errors.Is(err, docstore.ErrUnavailable),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, KindStoreUnavailable
	case errors.Is(err, docstore.ErrConfiguration):
		return http.StatusInternalServerError, KindConfiguration
	default:
		return http.StatusInternalServerError, KindInternal
	}
}

// respondWithServiceError logs err and writes a classified response. Only
// validation messages reach the client verbatim.
func respondWithServiceError(w http.ResponseWriter, r *http.Request, err error, notFoundMsg string) {
	code, kind := mapErrorToStatusCode(err)

	var msg string
	switch kind {
	case KindValidation:
		msg = strings.TrimPrefix(err.Error(), order.ErrValidation.Error()+": ")
	case KindUnauthorized:
		msg = "Invalid or expired token"
	case KindNotFound:
		msg = notFoundMsg
	case KindStoreUnavailable:
		msg = "Store temporarily unavailable"
	case KindConfiguration:
		msg = "Service is misconfigured"
	default:
		msg = "Internal server error"
	}

	ev := log.Warn()
	if code >= http.StatusInternalServerError {
		ev = log.Error()
	}
	ev.Err(err).Str("method", r.Method).Str("path", r.URL.Path).Int("code", code).Msg("handler: request failed")

	respondWithError(w, code, kind, msg)
}

func formatValidationErrors(errs validator.ValidationErrors) map[string]string {
	details := make(map[string]string, len(errs))
	for _, fe := range errs {
		switch fe.Tag() {
		case "required":
			details[fe.Field()] = "is required"
		case "oneof":
			details[fe.Field()] = "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
		default:
			details[fe.Field()] = "failed on " + fe.Tag()
		}
	}
	return details
}
