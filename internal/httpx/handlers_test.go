package httpx_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ariefcatur/go-storefront-orders/internal/httpx"
	"github.com/ariefcatur/go-storefront-orders/internal/metrics"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubOrders struct {
	create func(in orders.PlaceOrder) (orders.Order, error)
	cancel func(userID string, id uuid.UUID) (orders.Order, error)
	get    func(userID string, id uuid.UUID) (orders.Order, error)
	list   func(filter orders.OrderFilter) ([]orders.Order, error)
	update func(id uuid.UUID, status string) (orders.Order, error)
}

func (s *stubOrders) Create(_ context.Context, in orders.PlaceOrder) (orders.Order, error) {
	return s.create(in)
}

func (s *stubOrders) Cancel(_ context.Context, userID string, id uuid.UUID) (orders.Order, error) {
	return s.cancel(userID, id)
}

func (s *stubOrders) Get(_ context.Context, userID string, id uuid.UUID) (orders.Order, error) {
	return s.get(userID, id)
}

func (s *stubOrders) List(_ context.Context, userID string) ([]orders.Order, error) {
	return s.list(orders.OrderFilter{UserID: userID})
}

func (s *stubOrders) Status(_ context.Context, userID string, id uuid.UUID) (orders.StatusSnapshot, error) {
	o, err := s.get(userID, id)
	return orders.SnapshotFromOrder(o), err
}

func (s *stubOrders) AdminGet(_ context.Context, id uuid.UUID) (orders.Order, error) {
	return s.get("", id)
}

func (s *stubOrders) AdminList(_ context.Context, f orders.OrderFilter) ([]orders.Order, error) {
	return s.list(f)
}

func (s *stubOrders) UpdateStatus(_ context.Context, id uuid.UUID, status string) (orders.Order, error) {
	return s.update(id, status)
}

type stubProducts struct {
	products []orders.Product
	deleted  []uuid.UUID
}

func (s *stubProducts) ListProducts(context.Context) ([]orders.Product, error) {
	return s.products, nil
}

func (s *stubProducts) InsertProduct(_ context.Context, p orders.Product) (orders.Product, error) {
	if p.Name == "" {
		return p, &orders.ValidationError{Field: "name", Reason: "is required"}
	}
	p.ID = uuid.New()
	if p.Slug == "" {
		p.Slug = strings.ToLower(p.Name)
	}
	s.products = append(s.products, p)
	return p, nil
}

func (s *stubProducts) SoftDeleteProduct(_ context.Context, id uuid.UUID) error {
	for _, p := range s.products {
		if p.ID == id {
			s.deleted = append(s.deleted, id)
			return nil
		}
	}
	return orders.ProductNotFound(id)
}

type stubReports struct{ threshold int }

func (s *stubReports) Dashboard(_ context.Context, threshold int) (orders.Dashboard, error) {
	s.threshold = threshold
	return orders.Dashboard{
		TotalOrders:    4,
		TotalRevenue:   decimal.RequireFromString("120.5"),
		OrdersByStatus: map[orders.Status]int{orders.StatusPending: 4},
	}, nil
}

type response struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Data    json.RawMessage     `json:"data"`
	Errors  map[string][]string `json:"errors"`
}

func newServer(t *testing.T, svc *stubOrders, products *stubProducts, reports *stubReports) (http.Handler, *metrics.ServerMetrics) {
	t.Helper()

	reg := prometheus.NewRegistry()
	m := metrics.NewServerMetrics(reg, "test")
	r := httpx.NewRouter(httpx.RouterDeps{Metrics: m, Gatherer: reg})
	(&httpx.OrdersHandler{Orders: svc, Products: products}).Register(r)
	(&httpx.AdminHandler{Orders: svc, Products: products, Reports: reports, LowStockThreshold: 7}).Register(r)
	return r, m
}

func do(t *testing.T, h http.Handler, method, path, body string, headers map[string]string) (*httptest.ResponseRecorder, response) {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp response
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func sampleOrder(userID string) orders.Order {
	pid := uuid.New()
	return orders.Order{
		ID:              uuid.New(),
		UserID:          userID,
		Status:          orders.StatusPending,
		ShippingAddress: "Calle 5",
		Phone:           "555",
		Total:           decimal.RequireFromString("20"),
		CreatedAt:       time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		Items:           []orders.OrderItem{{ID: uuid.New(), ProductID: pid, ProductName: "Taza", Quantity: 2, Price: decimal.RequireFromString("10")}},
	}
}

var customer = map[string]string{httpx.HeaderUserID: "user-1"}

func TestCreateOrder(t *testing.T) {
	pid := uuid.New()

	tests := []struct {
		name       string
		body       string
		headers    map[string]string
		err        error
		wantCode   int
		wantErrKey string
	}{
		{name: "created", body: `{"items":[{"product_id":"` + pid.String() + `","quantity":2}],"shipping_address":"Calle 5","phone":"555"}`, headers: customer, wantCode: http.StatusCreated},
		{name: "anonymous", body: `{}`, wantCode: http.StatusUnauthorized},
		{name: "malformed json", body: `{`, headers: customer, wantCode: http.StatusBadRequest},
		{name: "validation", body: `{}`, headers: customer, err: &orders.ValidationError{Field: "items", Reason: "at least one item is required"}, wantCode: http.StatusUnprocessableEntity, wantErrKey: "items"},
		{name: "out of stock", body: `{}`, headers: customer, err: &orders.InsufficientStockError{ProductID: pid, Requested: 3, Available: 2}, wantCode: http.StatusConflict, wantErrKey: "items"},
		{name: "unknown product", body: `{}`, headers: customer, err: orders.ProductNotFound(pid), wantCode: http.StatusNotFound},
		{name: "storage failure", body: `{}`, headers: customer, err: &orders.PersistenceError{Op: "create", Err: errors.New("pq: secret detail")}, wantCode: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got orders.PlaceOrder
			svc := &stubOrders{create: func(in orders.PlaceOrder) (orders.Order, error) {
				got = in
				if tt.err != nil {
					return orders.Order{}, tt.err
				}
				return sampleOrder(in.UserID), nil
			}}
			h, _ := newServer(t, svc, &stubProducts{}, &stubReports{})

			headers := map[string]string{httpx.HeaderIdempotencyKey: " key-1 "}
			for k, v := range tt.headers {
				headers[k] = v
			}
			rec, resp := do(t, h, http.MethodPost, "/orders", tt.body, headers)

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantCode < 300, resp.Success)
			assert.NotContains(t, rec.Body.String(), "secret detail")
			if tt.wantErrKey != "" {
				assert.Contains(t, resp.Errors, tt.wantErrKey)
			}
			if tt.wantCode == http.StatusCreated {
				assert.Equal(t, "user-1", got.UserID)
				assert.Equal(t, "key-1", got.IdempotencyKey)
				assert.Equal(t, []orders.ItemInput{{ProductID: pid, Quantity: 2}}, got.Items)
				assert.Contains(t, string(resp.Data), `"status_text":"Pendiente"`)
				assert.Contains(t, string(resp.Data), `"subtotal":"20.00"`)
			}
		})
	}
}

func TestCancelOrder(t *testing.T) {
	o := sampleOrder("user-1")

	svc := &stubOrders{cancel: func(userID string, id uuid.UUID) (orders.Order, error) {
		if userID != o.UserID || id != o.ID {
			return orders.Order{}, orders.OrderNotFound(id)
		}
		c := o
		c.Status = orders.StatusCancelled
		return c, nil
	}}
	h, _ := newServer(t, svc, &stubProducts{}, &stubReports{})

	rec, resp := do(t, h, http.MethodPost, "/orders/"+o.ID.String()+"/cancel", "", customer)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"order_id":"`+o.ID.String()+`","status":"cancelled","status_text":"Cancelado"}`, string(resp.Data))

	rec, _ = do(t, h, http.MethodPost, "/orders/"+o.ID.String()+"/cancel", "", map[string]string{httpx.HeaderUserID: "user-2"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = do(t, h, http.MethodPost, "/orders/not-a-uuid/cancel", "", customer)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	svc.cancel = func(string, uuid.UUID) (orders.Order, error) {
		return orders.Order{}, &orders.InvalidStateTransitionError{From: orders.StatusCompleted, To: orders.StatusCancelled}
	}
	rec, resp = do(t, h, http.MethodPost, "/orders/"+o.ID.String()+"/cancel", "", customer)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Solo se pueden cancelar pedidos pendientes", resp.Message)
}

func TestCustomerReads(t *testing.T) {
	o := sampleOrder("user-1")
	svc := &stubOrders{
		get: func(userID string, id uuid.UUID) (orders.Order, error) {
			if id != o.ID || (userID != "" && userID != o.UserID) {
				return orders.Order{}, orders.OrderNotFound(id)
			}
			return o, nil
		},
		list: func(f orders.OrderFilter) ([]orders.Order, error) {
			if f.UserID == o.UserID {
				return []orders.Order{o}, nil
			}
			return nil, nil
		},
	}
	products := &stubProducts{products: []orders.Product{{ID: uuid.New(), Name: "Taza", Slug: "taza", Price: decimal.RequireFromString("3.5"), Stock: 4}}}
	h, _ := newServer(t, svc, products, &stubReports{})

	rec, resp := do(t, h, http.MethodGet, "/products", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(resp.Data), `"price":"3.50"`)

	rec, resp = do(t, h, http.MethodGet, "/orders", "", customer)
	require.Equal(t, http.StatusOK, rec.Code)
	var views []orders.OrderView
	require.NoError(t, json.Unmarshal(resp.Data, &views))
	require.Len(t, views, 1)
	assert.Equal(t, o.ID.String(), views[0].ID)

	rec, resp = do(t, h, http.MethodGet, "/orders", "", map[string]string{httpx.HeaderUserID: "user-9"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, string(resp.Data))

	rec, _ = do(t, h, http.MethodGet, "/orders/"+o.ID.String(), "", customer)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, resp = do(t, h, http.MethodGet, "/orders/"+o.ID.String()+"/status", "", customer)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(resp.Data), `"status_text":"Pendiente"`)

	rec, resp = do(t, h, http.MethodGet, "/orders/"+o.ID.String(), "", map[string]string{httpx.HeaderUserID: "user-2"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Pedido no encontrado", resp.Message)
}

func TestAdminRoutes(t *testing.T) {
	o := sampleOrder("user-1")
	var gotFilter orders.OrderFilter
	svc := &stubOrders{
		get: func(_ string, id uuid.UUID) (orders.Order, error) {
			if id != o.ID {
				return orders.Order{}, orders.OrderNotFound(id)
			}
			return o, nil
		},
		list: func(f orders.OrderFilter) ([]orders.Order, error) {
			gotFilter = f
			return []orders.Order{o}, nil
		},
		update: func(id uuid.UUID, status string) (orders.Order, error) {
			s, err := orders.ParseStatus(status)
			if err != nil {
				return orders.Order{}, err
			}
			u := o
			u.Status = s
			return u, nil
		},
	}
	products := &stubProducts{products: []orders.Product{{ID: uuid.New()}}}
	reports := &stubReports{}
	h, m := newServer(t, svc, products, reports)

	admin := map[string]string{httpx.HeaderUserID: "boss", httpx.HeaderUserRole: "admin"}

	rec, _ := do(t, h, http.MethodGet, "/admin/dashboard", "", customer)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, resp := do(t, h, http.MethodGet, "/admin/dashboard", "", admin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 7, reports.threshold)
	assert.Contains(t, string(resp.Data), `"total_revenue":"120.50"`)
	assert.Contains(t, string(resp.Data), `"top_products":[]`)

	rec, _ = do(t, h, http.MethodGet, "/admin/orders?status=pending,completed&user_id=user-1&sort=oldest&limit=10", "", admin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, orders.OrderFilter{
		Statuses: []orders.Status{orders.StatusPending, orders.StatusCompleted},
		UserID:   "user-1",
		Oldest:   true,
		Limit:    10,
	}, gotFilter)

	for _, q := range []string{"status=shipped", "sort=random", "limit=0", "limit=1000"} {
		rec, _ = do(t, h, http.MethodGet, "/admin/orders?"+q, "", admin)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, q)
	}

	rec, _ = do(t, h, http.MethodGet, "/admin/orders/"+o.ID.String(), "", admin)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, resp = do(t, h, http.MethodPatch, "/admin/orders/"+o.ID.String()+"/status", `{"status":"completed"}`, admin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(resp.Data), `"status":"completed"`)

	rec, resp = do(t, h, http.MethodPatch, "/admin/orders/"+o.ID.String()+"/status", `{"status":"lost"}`, admin)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, resp.Errors, "status")

	rec, _ = do(t, h, http.MethodDelete, "/admin/products/"+products.products[0].ID.String(), "", admin)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []uuid.UUID{products.products[0].ID}, products.deleted)

	rec, _ = do(t, h, http.MethodDelete, "/admin/products/"+uuid.NewString(), "", admin)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, resp = do(t, h, http.MethodPost, "/admin/products", `{"name":" Taza ","price":"12.5","stock":4}`, admin)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, string(resp.Data), `"slug":"taza"`)
	assert.Contains(t, string(resp.Data), `"price":"12.50"`)
	require.Len(t, products.products, 2)
	assert.Equal(t, 4, products.products[1].Stock)

	rec, resp = do(t, h, http.MethodPost, "/admin/products", `{"price":1}`, admin)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, resp.Errors, "name")

	rec, _ = do(t, h, http.MethodPost, "/admin/products", `{"name":"Taza"}`, customer)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	assert.Equal(t, float64(1), promtest.ToFloat64(m.Requests.WithLabelValues("GET /admin/orders/{id}", "200")))

	rec, _ = do(t, h, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "storefront_http_requests_total")
}
