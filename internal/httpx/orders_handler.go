package httpx

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/ariefcatur/go-storefront-orders/internal/workflow"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

const HeaderIdempotencyKey = "Idempotency-Key"

// OrderService is the customer side of the order workflow.
type OrderService interface {
	Create(ctx context.Context, in orders.PlaceOrder) (orders.Order, error)
	Cancel(ctx context.Context, userID string, orderID uuid.UUID) (orders.Order, error)
	Get(ctx context.Context, userID string, orderID uuid.UUID) (orders.Order, error)
	List(ctx context.Context, userID string) ([]orders.Order, error)
	Status(ctx context.Context, userID string, orderID uuid.UUID) (orders.StatusSnapshot, error)
}

type ProductLister interface {
	ListProducts(ctx context.Context) ([]orders.Product, error)
}

type OrdersHandler struct {
	Orders   OrderService
	Products ProductLister
	Log      *slog.Logger
}

type CreateOrderReq struct {
	Items           []orders.ItemInput `json:"items"`
	ShippingAddress string             `json:"shipping_address"`
	Phone           string             `json:"phone"`
	Notes           *string            `json:"notes"`
}

type productView struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Slug  string `json:"slug"`
	Price string `json:"price"`
	Stock int    `json:"stock"`
}

func newProductView(p orders.Product) productView {
	return productView{ID: p.ID.String(), Name: p.Name, Slug: p.Slug, Price: p.Price.StringFixed(2), Stock: p.Stock}
}

type statusView struct {
	OrderID    string        `json:"order_id"`
	Status     orders.Status `json:"status"`
	StatusText string        `json:"status_text"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Get("/products", h.listProducts)

	r.Group(func(r chi.Router) {
		r.Use(RequireUser)
		r.Get("/orders", h.listOrders)
		r.Post("/orders", h.createOrder)
		r.Get("/orders/{id}", h.getOrder)
		r.Get("/orders/{id}/status", h.getStatus)
		r.Post("/orders/{id}/cancel", h.cancelOrder)
	})
}

func (h *OrdersHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Products.ListProducts(ctx)
	if err != nil {
		h.logError(r, "list products", err)
		fail(w, http.StatusInternalServerError, "Error al obtener productos")
		return
	}

	out := make([]productView, 0, len(ps))
	for _, p := range ps {
		out = append(out, newProductView(p))
	}
	respond(w, http.StatusOK, "", out)
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, "JSON inválido")
		return
	}

	id, _ := identityFrom(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	ctx = workflow.ContextWithTraceID(ctx, middleware.GetReqID(r.Context()))

	o, err := h.Orders.Create(ctx, orders.PlaceOrder{
		UserID:          id.UserID,
		Items:           req.Items,
		ShippingAddress: req.ShippingAddress,
		Phone:           req.Phone,
		Notes:           req.Notes,
		IdempotencyKey:  strings.TrimSpace(r.Header.Get(HeaderIdempotencyKey)),
	})
	if err != nil {
		h.logError(r, "create order", err)
		respondError(w, err, "Error al crear pedido")
		return
	}

	respond(w, http.StatusCreated, "Pedido creado exitosamente", map[string]any{"order": orders.NewOrderView(o)})
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	list, err := h.Orders.List(ctx, id.UserID)
	if err != nil {
		h.logError(r, "list orders", err)
		respondError(w, err, "Error al obtener pedidos")
		return
	}
	respond(w, http.StatusOK, "", orders.NewOrderViews(list))
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}
	id, _ := identityFrom(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Orders.Get(ctx, id.UserID, orderID)
	if err != nil {
		h.logError(r, "get order", err)
		respondError(w, err, "Error al obtener pedido")
		return
	}
	respond(w, http.StatusOK, "", orders.NewOrderView(o))
}

func (h *OrdersHandler) getStatus(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}
	id, _ := identityFrom(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	snap, err := h.Orders.Status(ctx, id.UserID, orderID)
	if err != nil {
		h.logError(r, "order status", err)
		respondError(w, err, "Error al obtener pedido")
		return
	}
	respond(w, http.StatusOK, "", statusView{
		OrderID:    snap.OrderID,
		Status:     snap.Status,
		StatusText: orders.StatusText(snap.Status),
		UpdatedAt:  snap.UpdatedAt,
	})
}

func (h *OrdersHandler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}
	id, _ := identityFrom(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	ctx = workflow.ContextWithTraceID(ctx, middleware.GetReqID(r.Context()))

	o, err := h.Orders.Cancel(ctx, id.UserID, orderID)
	if err != nil {
		h.logError(r, "cancel order", err)
		respondError(w, err, "Error al cancelar pedido")
		return
	}

	respond(w, http.StatusOK, "Pedido cancelado exitosamente", map[string]any{
		"order_id":    o.ID.String(),
		"status":      o.Status,
		"status_text": orders.StatusText(o.Status),
	})
}

// orderIDParam writes a 404 for ids that cannot name an order.
func orderIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		fail(w, http.StatusNotFound, "Pedido no encontrado")
		return uuid.Nil, false
	}
	return id, true
}

func (h *OrdersHandler) logError(r *http.Request, op string, err error) {
	logRequestError(h.Log, r, op, err)
}
