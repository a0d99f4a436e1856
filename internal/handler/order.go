package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/print-admin/internal/order"
)

type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=Pending Printing Ready Completed Cancelled"`
}

type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

type ListOrdersResponse struct {
	Success    bool          `json:"success"`
	Source     order.Source  `json:"source"`
	Orders     []order.Order `json:"orders"`
	Pagination Pagination    `json:"pagination"`
}

type OrderResponse struct {
	Success bool         `json:"success"`
	Order   *order.Order `json:"order"`
}

type OrdersResponse struct {
	Success bool          `json:"success"`
	Orders  []order.Order `json:"orders"`
	Count   int           `json:"count"`
}

type UpdateStatusResponse struct {
	Success           bool           `json:"success"`
	Message           string         `json:"message"`
	OrderID           string         `json:"order_id"`
	NewStatus         order.Status   `json:"new_status"`
	ChangedAt         time.Time      `json:"changed_at"`
	CompletedAt       *time.Time     `json:"completed_at,omitempty"`
	RelationalUpdated bool           `json:"relational_updated"`
	Mirror            MirrorResponse `json:"mirror"`
}

// MirrorResponse exposes only the mirror outcome; error details stay in logs
// and status events.
type MirrorResponse struct {
	Outcome order.MirrorOutcome `json:"outcome"`
}

type StatsResponse struct {
	Success bool         `json:"success"`
	Stats   *order.Stats `json:"stats"`
}

type OrderHandler struct {
	service  order.Service
	validate *validator.Validate
}

func NewOrderHandler(service order.Service) *OrderHandler {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &OrderHandler{
		service:  service,
		validate: validate,
	}
}

func (h *OrderHandler) RegisterRoutes(router chi.Router) {
	router.Get("/orders", h.handleListOrders)
	router.Get("/orders/search", h.handleSearchOrders)
	router.Get("/orders/by-status/{status}", h.handleListByStatus)
	router.Get("/orders/{orderID}", h.handleGetOrder)
	router.Post("/orders/{orderID}/status", h.handleUpdateStatus)
	router.Get("/stats", h.handleStats)
}

func (h *OrderHandler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	page, err := intQuery(r, "page")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, KindValidation, err.Error())
		return
	}
	limit, err := intQuery(r, "limit")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, KindValidation, err.Error())
		return
	}

	result, err := h.service.ListOrders(r.Context(), page, limit)
	if err != nil {
		respondWithServiceError(w, r, err, "Orders not found")
		return
	}

	orders := result.Orders
	if orders == nil {
		orders = []order.Order{}
	}

	respondWithJSON(w, http.StatusOK, ListOrdersResponse{
		Success: true,
		Source:  result.Source,
		Orders:  orders,
		Pagination: Pagination{
			Page:  result.Page,
			Limit: result.Limit,
			Total: result.Total,
			Pages: result.Pages(),
		},
	})
}

func (h *OrderHandler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		respondWithError(w, http.StatusBadRequest, KindValidation, "Order ID is required")
		return
	}

	o, err := h.service.GetOrder(r.Context(), orderID)
	if err != nil {
		respondWithServiceError(w, r, err, "Order not found")
		return
	}

	respondWithJSON(w, http.StatusOK, OrderResponse{Success: true, Order: o})
}

func (h *OrderHandler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		respondWithError(w, http.StatusBadRequest, KindValidation, "Order ID is required")
		return
	}

	var requestPayload UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&requestPayload); err != nil {
		log.Warn().Err(err).Str("order_id", orderID).Msg("handler: failed to decode status request")
		respondWithError(w, http.StatusBadRequest, KindValidation, "Invalid request payload")
		return
	}

	if err := h.validate.Struct(requestPayload); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			respondWithJSON(w, http.StatusBadRequest, ErrorResponse{
				Error:   "Validation failed",
				Kind:    KindValidation,
				Details: formatValidationErrors(validationErrors),
			})
			return
		}
		log.Error().Err(err).Type("validation_error_type", err).Msg("handler: unexpected error type during validation")
		respondWithError(w, http.StatusInternalServerError, KindInternal, "Internal validation error")
		return
	}

	res, err := h.service.SetStatus(r.Context(), orderID, order.Status(requestPayload.Status))
	if err != nil {
		respondWithServiceError(w, r, err, "Order not found")
		return
	}

	msg := "Order status updated successfully"
	if !res.Primary.Matched {
		msg = "Order status mirrored; no relational row matched"
	}

	respondWithJSON(w, http.StatusOK, UpdateStatusResponse{
		Success:           true,
		Message:           msg,
		OrderID:           res.OrderID,
		NewStatus:         res.Status,
		ChangedAt:         res.ChangedAt,
		CompletedAt:       res.Primary.CompletedAt,
		RelationalUpdated: res.Primary.Matched,
		Mirror:            MirrorResponse{Outcome: res.Secondary.Outcome},
	})
}

func (h *OrderHandler) handleSearchOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := order.SearchFilter{
		OrderID: strings.TrimSpace(q.Get("order_id")),
		Status:  order.Status(strings.TrimSpace(q.Get("status"))),
		UserID:  strings.TrimSpace(q.Get("user_id")),
	}

	var err error
	if filter.DateFrom, err = dateQuery(r, "date_from"); err != nil {
		respondWithError(w, http.StatusBadRequest, KindValidation, err.Error())
		return
	}
	if filter.DateTo, err = dateQuery(r, "date_to"); err != nil {
		respondWithError(w, http.StatusBadRequest, KindValidation, err.Error())
		return
	}

	orders, err := h.service.SearchOrders(r.Context(), filter)
	if err != nil {
		respondWithServiceError(w, r, err, "Orders not found")
		return
	}
	respondWithOrders(w, orders)
}

func (h *OrderHandler) handleListByStatus(w http.ResponseWriter, r *http.Request) {
	status := order.Status(chi.URLParam(r, "status"))

	orders, err := h.service.ListByStatus(r.Context(), status)
	if err != nil {
		respondWithServiceError(w, r, err, "Orders not found")
		return
	}
	respondWithOrders(w, orders)
}

func (h *OrderHandler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		respondWithServiceError(w, r, err, "Statistics not found")
		return
	}
	respondWithJSON(w, http.StatusOK, StatsResponse{Success: true, Stats: stats})
}

func respondWithOrders(w http.ResponseWriter, orders []order.Order) {
	if orders == nil {
		orders = []order.Order{}
	}
	respondWithJSON(w, http.StatusOK, OrdersResponse{Success: true, Orders: orders, Count: len(orders)})
}

// intQuery returns 0 for an absent parameter so the service applies its default.
func intQuery(r *http.Request, name string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return n, nil
}

func dateQuery(r *http.Request, name string) (*time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, fmt.Errorf("%s must be a date (YYYY-MM-DD)", name)
	}
	return &t, nil
}
