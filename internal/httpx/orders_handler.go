package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"github.com/ariefcatur/storefront-fulfillment/internal/orders"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"net/http"
	"strconv"
	"time"
)

// Engine is the fulfillment surface the handlers call.
type Engine interface {
	CreateOrder(ctx context.Context, ownerID string, lines []orders.ReservationLine, addr orders.ShippingAddress) (orders.Order, error)
	MarkPaid(ctx context.Context, orderID, paymentRef string) (orders.Order, error)
	TransitionStatus(ctx context.Context, orderID string, target orders.Status) (orders.Order, error)
	CancelOrder(ctx context.Context, orderID, requestorID string, privileged bool, reason string) (orders.Order, error)
	GetOrderFor(ctx context.Context, orderID, requestorID string, privileged bool) (orders.Order, error)
	ListOrders(ctx context.Context, f orders.ListFilter) (orders.Page, error)
	CreatePaymentIntent(ctx context.Context, orderID, requestorID string, privileged bool) (orders.PaymentIntent, error)
}

type OrdersHandler struct {
	Engine Engine
	Log    *zap.Logger
}

type CreateOrderReq struct {
	Items           []orders.ReservationLine `json:"items"`
	ShippingAddress orders.ShippingAddress   `json:"shipping_address"`
}

type CancelOrderReq struct {
	Reason string `json:"reason"`
}

type TransitionReq struct {
	Status orders.Status `json:"status"`
}

type PaymentIntentReq struct {
	OrderID string `json:"order_id"`
}

type ConfirmPaymentReq struct {
	OrderID    string `json:"order_id"`
	PaymentRef string `json:"payment_ref"`
}

type errorResp struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(Authenticated)
		r.Post("/orders", h.createOrder)
		r.Get("/orders", h.listMyOrders)
		r.Get("/orders/{id}", h.getOrder)
		r.Post("/orders/{id}/cancel", h.cancelOrder)
		r.Post("/payments/intent", h.createPaymentIntent)
		r.Post("/payments/confirm", h.confirmPayment)

		r.With(AdminOnly).Post("/orders/{id}/status", h.transitionStatus)
		r.With(AdminOnly).Get("/admin/orders", h.listAllOrders)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, errCode, msg string) {
	writeJSON(w, code, errorResp{Code: errCode, Message: msg})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return false
	}
	return true
}

// fail maps engine errors onto HTTP status codes.
func (h *OrdersHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var (
		insufficient *orders.InsufficientStockError
		illegal      *orders.IllegalTransitionError
		ownership    *orders.OwnershipError
		mismatch     *orders.PaymentReferenceMismatchError
	)
	switch {
	case errors.Is(err, orders.ErrValidation):
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, orders.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, orders.ErrAlreadyPaid):
		writeError(w, http.StatusConflict, "ALREADY_PAID", err.Error())
	case errors.As(err, &insufficient):
		writeJSON(w, http.StatusConflict, errorResp{
			Code:    "INSUFFICIENT_STOCK",
			Message: err.Error(),
			Details: map[string]any{"item_id": insufficient.ItemID, "requested": insufficient.Requested},
		})
	case errors.As(err, &illegal):
		writeJSON(w, http.StatusConflict, errorResp{
			Code:    "ILLEGAL_TRANSITION",
			Message: err.Error(),
			Details: map[string]any{"from": illegal.From, "to": illegal.To, "allowed": illegal.Allowed},
		})
	case errors.As(err, &ownership):
		writeError(w, http.StatusForbidden, "FORBIDDEN", "order belongs to another user")
	case errors.As(err, &mismatch):
		writeError(w, http.StatusConflict, "PAYMENT_REFERENCE_MISMATCH", err.Error())
	default:
		log := h.Log
		if log == nil {
			log = zap.NewNop()
		}
		log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
	}
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderReq
	if !decode(w, r, &req) {
		return
	}
	id := identityFrom(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	o, err := h.Engine.CreateOrder(ctx, id.UserID, req.Items, req.ShippingAddress)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Engine.GetOrderFor(ctx, chi.URLParam(r, "id"), id.UserID, id.Admin)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) listMyOrders(w http.ResponseWriter, r *http.Request) {
	f, ok := listFilter(w, r)
	if !ok {
		return
	}
	f.OwnerID = identityFrom(r.Context()).UserID
	h.list(w, r, f)
}

func (h *OrdersHandler) listAllOrders(w http.ResponseWriter, r *http.Request) {
	f, ok := listFilter(w, r)
	if !ok {
		return
	}
	f.OwnerID = r.URL.Query().Get("owner_id")
	h.list(w, r, f)
}

func (h *OrdersHandler) list(w http.ResponseWriter, r *http.Request, f orders.ListFilter) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	page, err := h.Engine.ListOrders(ctx, f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func listFilter(w http.ResponseWriter, r *http.Request) (orders.ListFilter, bool) {
	q := r.URL.Query()
	f := orders.ListFilter{Status: orders.Status(q.Get("status"))}
	for name, dst := range map[string]*int{"page": &f.Page, "limit": &f.Limit} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", name+" must be an integer")
			return orders.ListFilter{}, false
		}
		*dst = n
	}
	return f, true
}

func (h *OrdersHandler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	var req CancelOrderReq
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}
	id := identityFrom(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	o, err := h.Engine.CancelOrder(ctx, chi.URLParam(r, "id"), id.UserID, id.Admin, req.Reason)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) transitionStatus(w http.ResponseWriter, r *http.Request) {
	var req TransitionReq
	if !decode(w, r, &req) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	o, err := h.Engine.TransitionStatus(ctx, chi.URLParam(r, "id"), req.Status)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) createPaymentIntent(w http.ResponseWriter, r *http.Request) {
	var req PaymentIntentReq
	if !decode(w, r, &req) {
		return
	}
	id := identityFrom(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	pi, err := h.Engine.CreatePaymentIntent(ctx, req.OrderID, id.UserID, id.Admin)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, pi)
}

// confirmPayment is the synchronous twin of the payment.succeeded consumer.
func (h *OrdersHandler) confirmPayment(w http.ResponseWriter, r *http.Request) {
	var req ConfirmPaymentReq
	if !decode(w, r, &req) {
		return
	}
	id := identityFrom(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if _, err := h.Engine.GetOrderFor(ctx, req.OrderID, id.UserID, id.Admin); err != nil {
		h.fail(w, r, err)
		return
	}
	o, err := h.Engine.MarkPaid(ctx, req.OrderID, req.PaymentRef)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}
