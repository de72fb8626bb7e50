package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/HijosDelDiablo/food-orders/internal/core/domain"
	"github.com/HijosDelDiablo/food-orders/internal/core/service"
)

// The HTTP layer is a thin collaborator surface over the order engine. It
// performs no authentication: the upstream gateway injects the already
// authenticated actor through the X-User-ID and X-User-Role headers.
const (
	headerUserID         = "X-User-ID"
	headerUserRole       = "X-User-Role"
	headerIdempotencyKey = "Idempotency-Key"
)

type actorKey struct{}

type HTTPHandler struct {
	orders *service.OrderService
	logger *zap.Logger
}

func NewHTTPHandler(orders *service.OrderService, logger *zap.Logger) *HTTPHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPHandler{orders: orders, logger: logger}
}

func (h *HTTPHandler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", h.HealthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Use(h.withActor)

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", h.CreateOrder)
			r.Get("/", h.ListMyOrders)
			r.Get("/latest", h.MostRecentOrder)
			r.Get("/{id}", h.GetMyOrder)
			r.Post("/{id}/cancel", h.CancelOrder)
			r.Patch("/{id}/status", h.UpdateStatus)
		})

		r.Route("/seller/orders", func(r chi.Router) {
			r.Get("/", h.ListAssigned)
			r.Get("/{id}", h.GetAssignedOrder)
		})

		r.Route("/admin/orders", func(r chi.Router) {
			r.Get("/assignable", h.ListAssignable)
			r.Post("/{id}/assign", h.AssignOrder)
		})
	})

	return r
}

// withActor extracts the authenticated actor from the gateway headers.
func (h *HTTPHandler) withActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerUserID)
		role := domain.Role(r.Header.Get(headerUserRole))

		switch role {
		case domain.RoleCustomer, domain.RoleSeller, domain.RoleAdmin:
		default:
			writeError(w, http.StatusUnauthorized, "unauthenticated", "missing or unknown actor role")
			return
		}
		if id == "" {
			writeError(w, http.StatusUnauthorized, "unauthenticated", "missing actor identity")
			return
		}

		ctx := context.WithValue(r.Context(), actorKey{}, domain.Actor{ID: id, Role: role})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func actorFrom(r *http.Request) domain.Actor {
	actor, _ := r.Context().Value(actorKey{}).(domain.Actor)
	return actor
}

type orderItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type createOrderRequest struct {
	Items []orderItemRequest `json:"items"`
}

type assignOrderRequest struct {
	SellerID string `json:"seller_id"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type lineItemResponse struct {
	ProductID       string          `json:"product_id"`
	ProductName     string          `json:"product_name"`
	Quantity        int             `json:"quantity"`
	PriceAtPurchase decimal.Decimal `json:"price_at_purchase"`
}

type orderResponse struct {
	ID         string             `json:"id"`
	CustomerID string             `json:"customer_id"`
	SellerID   string             `json:"seller_id,omitempty"`
	Status     domain.OrderStatus `json:"status"`
	Items      []lineItemResponse `json:"items"`
	Total      decimal.Decimal    `json:"total"`
	CreatedAt  time.Time          `json:"created_at"`
	UpdatedAt  time.Time          `json:"updated_at"`
}

func toOrderResponse(o *domain.Order) orderResponse {
	items := make([]lineItemResponse, 0, len(o.Items))
	for _, li := range o.Items {
		items = append(items, lineItemResponse{
			ProductID:       li.ProductID,
			ProductName:     li.ProductName,
			Quantity:        li.Quantity,
			PriceAtPurchase: li.PriceAtPurchase,
		})
	}
	return orderResponse{
		ID:         o.ID,
		CustomerID: o.CustomerID,
		SellerID:   o.SellerID,
		Status:     o.Status,
		Items:      items,
		Total:      o.Total,
		CreatedAt:  o.CreatedAt,
		UpdatedAt:  o.UpdatedAt,
	}
}

func toOrderListResponse(orders []domain.Order) []orderResponse {
	out := make([]orderResponse, 0, len(orders))
	for i := range orders {
		out = append(out, toOrderResponse(&orders[i]))
	}
	return out
}

func (h *HTTPHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}

	items := make([]domain.ItemRequest, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, domain.ItemRequest{ProductID: it.ProductID, Quantity: it.Quantity})
	}

	order, err := h.orders.CreateOrder(r.Context(), actor.ID, items, r.Header.Get(headerIdempotencyKey))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderResponse(order))
}

func (h *HTTPHandler) ListMyOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListMyOrders(r.Context(), actorFrom(r).ID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderListResponse(orders))
}

func (h *HTTPHandler) GetMyOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.GetOrderForCustomer(r.Context(), chi.URLParam(r, "id"), actorFrom(r).ID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *HTTPHandler) MostRecentOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.FindMostRecentForCustomer(r.Context(), actorFrom(r).ID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if order == nil {
		writeError(w, http.StatusNotFound, "not_found", "no orders yet")
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *HTTPHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.CancelAsCustomer(r.Context(), chi.URLParam(r, "id"), actorFrom(r).ID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *HTTPHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}
	status := domain.OrderStatus(req.Status)
	if !domain.ValidStatus(status) {
		writeError(w, http.StatusBadRequest, "bad_request", "unknown order status")
		return
	}

	order, err := h.orders.UpdateStatus(r.Context(), chi.URLParam(r, "id"), status, actorFrom(r))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *HTTPHandler) ListAssigned(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListAssignedToSeller(r.Context(), actorFrom(r).ID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderListResponse(orders))
}

func (h *HTTPHandler) GetAssignedOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.GetOrderForSeller(r.Context(), chi.URLParam(r, "id"), actorFrom(r).ID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *HTTPHandler) ListAssignable(w http.ResponseWriter, r *http.Request) {
	if actorFrom(r).Role != domain.RoleAdmin {
		writeError(w, http.StatusForbidden, "forbidden", "admin only")
		return
	}
	orders, err := h.orders.ListAssignable(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderListResponse(orders))
}

func (h *HTTPHandler) AssignOrder(w http.ResponseWriter, r *http.Request) {
	var req assignOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SellerID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "seller_id is required")
		return
	}

	order, err := h.orders.AssignToSeller(r.Context(), chi.URLParam(r, "id"), req.SellerID, actorFrom(r))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (h *HTTPHandler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidItems):
		writeError(w, http.StatusBadRequest, "invalid_items", err.Error())
	case errors.Is(err, service.ErrDuplicateRequest):
		writeError(w, http.StatusConflict, "duplicate_request", err.Error())
	case errors.Is(err, domain.ErrProductNotFound):
		writeError(w, http.StatusNotFound, "product_not_found", err.Error())
	case errors.Is(err, domain.ErrInsufficientStock):
		writeError(w, http.StatusConflict, "insufficient_stock", err.Error())
	case errors.Is(err, domain.ErrOrderNotFound):
		writeError(w, http.StatusNotFound, "order_not_found", err.Error())
	case errors.Is(err, domain.ErrInvalidSeller):
		writeError(w, http.StatusNotFound, "invalid_seller", err.Error())
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, domain.ErrIllegalTransition):
		writeError(w, http.StatusBadRequest, "illegal_transition", err.Error())
	case errors.Is(err, domain.ErrVersionConflict):
		writeError(w, http.StatusConflict, "version_conflict", err.Error())
	default:
		h.logger.Error("unhandled service error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: code, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
