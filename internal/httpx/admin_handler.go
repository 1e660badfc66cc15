package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/ariefcatur/go-storefront-orders/internal/workflow"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const maxAdminPageSize = 200

type AdminOrderService interface {
	AdminGet(ctx context.Context, orderID uuid.UUID) (orders.Order, error)
	AdminList(ctx context.Context, filter orders.OrderFilter) ([]orders.Order, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, status string) (orders.Order, error)
}

// ProductAdmin is the catalog write side. InsertProduct derives the slug
// from the name when none is given.
type ProductAdmin interface {
	InsertProduct(ctx context.Context, product orders.Product) (orders.Product, error)
	SoftDeleteProduct(ctx context.Context, productID uuid.UUID) error
}

type DashboardReader interface {
	Dashboard(ctx context.Context, lowStockThreshold int) (orders.Dashboard, error)
}

type AdminHandler struct {
	Orders            AdminOrderService
	Products          ProductAdmin
	Reports           DashboardReader
	LowStockThreshold int
	Log               *slog.Logger
}

type UpdateStatusReq struct {
	Status string `json:"status"`
}

type CreateProductReq struct {
	Name       string          `json:"name"`
	Slug       string          `json:"slug"`
	CategoryID *uuid.UUID      `json:"category_id"`
	Price      decimal.Decimal `json:"price"`
	Stock      int             `json:"stock"`
}

type dashboardView struct {
	TotalProducts    int                   `json:"total_products"`
	TotalOrders      int                   `json:"total_orders"`
	TotalCustomers   int                   `json:"total_customers"`
	TotalRevenue     string                `json:"total_revenue"`
	OrdersByStatus   map[orders.Status]int `json:"orders_by_status"`
	LowStockProducts int                   `json:"low_stock_products"`
	TopProducts      []orders.TopProduct   `json:"top_products"`
}

func (h *AdminHandler) Register(r chi.Router) {
	r.Route("/admin", func(r chi.Router) {
		r.Use(RequireUser, RequireAdmin)
		r.Get("/dashboard", h.dashboard)
		r.Get("/orders", h.listOrders)
		r.Get("/orders/{id}", h.getOrder)
		r.Patch("/orders/{id}/status", h.updateStatus)
		r.Post("/products", h.createProduct)
		r.Delete("/products/{id}", h.deleteProduct)
	})
}

func (h *AdminHandler) dashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	d, err := h.Reports.Dashboard(ctx, h.LowStockThreshold)
	if err != nil {
		logRequestError(h.Log, r, "dashboard", err)
		fail(w, http.StatusInternalServerError, "Error al obtener estadísticas")
		return
	}

	top := d.TopProducts
	if top == nil {
		top = []orders.TopProduct{}
	}
	respond(w, http.StatusOK, "", dashboardView{
		TotalProducts:    d.TotalProducts,
		TotalOrders:      d.TotalOrders,
		TotalCustomers:   d.TotalCustomers,
		TotalRevenue:     d.TotalRevenue.StringFixed(2),
		OrdersByStatus:   d.OrdersByStatus,
		LowStockProducts: d.LowStockProducts,
		TopProducts:      top,
	})
}

// listOrders accepts ?status=a,b&user_id=u&sort=oldest&limit=n.
func (h *AdminHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	filter, err := parseOrderFilter(r)
	if err != nil {
		respondError(w, err, "")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	list, err := h.Orders.AdminList(ctx, filter)
	if err != nil {
		logRequestError(h.Log, r, "admin list orders", err)
		respondError(w, err, "Error al obtener pedidos")
		return
	}
	respond(w, http.StatusOK, "", orders.NewOrderViews(list))
}

func (h *AdminHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Orders.AdminGet(ctx, orderID)
	if err != nil {
		logRequestError(h.Log, r, "admin get order", err)
		respondError(w, err, "Error al obtener pedido")
		return
	}
	respond(w, http.StatusOK, "", orders.NewOrderView(o))
}

func (h *AdminHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	var req UpdateStatusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, "JSON inválido")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	ctx = workflow.ContextWithTraceID(ctx, middleware.GetReqID(r.Context()))

	o, err := h.Orders.UpdateStatus(ctx, orderID, req.Status)
	if err != nil {
		logRequestError(h.Log, r, "update status", err)
		respondError(w, err, "Error al actualizar estado")
		return
	}
	respond(w, http.StatusOK, "Estado del pedido actualizado", orders.NewOrderView(o))
}

func (h *AdminHandler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req CreateProductReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, "JSON inválido")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := h.Products.InsertProduct(ctx, orders.Product{
		CategoryID: req.CategoryID,
		Name:       strings.TrimSpace(req.Name),
		Slug:       strings.TrimSpace(req.Slug),
		Price:      req.Price,
		Stock:      req.Stock,
	})
	if err != nil {
		logRequestError(h.Log, r, "create product", err)
		respondError(w, err, "Error al crear producto")
		return
	}
	respond(w, http.StatusCreated, "Producto creado exitosamente", newProductView(p))
}

func (h *AdminHandler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	productID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		fail(w, http.StatusNotFound, "Producto no encontrado")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.Products.SoftDeleteProduct(ctx, productID); err != nil {
		logRequestError(h.Log, r, "delete product", err)
		respondError(w, err, "Error al eliminar producto")
		return
	}
	respond(w, http.StatusOK, "Producto eliminado exitosamente", nil)
}

func parseOrderFilter(r *http.Request) (orders.OrderFilter, error) {
	q := r.URL.Query()
	var f orders.OrderFilter

	for _, raw := range q["status"] {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s == "" {
				continue
			}
			status, err := orders.ParseStatus(s)
			if err != nil {
				return f, err
			}
			f.Statuses = append(f.Statuses, status)
		}
	}

	f.UserID = strings.TrimSpace(q.Get("user_id"))

	switch q.Get("sort") {
	case "", "newest":
	case "oldest":
		f.Oldest = true
	default:
		return f, &orders.ValidationError{Field: "sort", Reason: "must be newest or oldest"}
	}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxAdminPageSize {
			return f, &orders.ValidationError{Field: "limit", Reason: "must be between 1 and " + strconv.Itoa(maxAdminPageSize)}
		}
		f.Limit = n
	}

	return f, nil
}

func logRequestError(log *slog.Logger, r *http.Request, op string, err error) {
	if log == nil {
		return
	}

	level := slog.LevelWarn
	msg := err.Error()
	var pErr *orders.PersistenceError
	if errors.As(err, &pErr) {
		level = slog.LevelError
		msg = pErr.Detail()
	}
	log.Log(r.Context(), level, op+" failed",
		"request_id", middleware.GetReqID(r.Context()), "path", r.URL.Path, "error", msg)
}
