// Package workflow orchestrates order placement, cancellation and admin
// status changes over a transactional store.
//
// Every mutating operation runs in exactly one transaction obtained from the
// port.UnitOfWork. Validation happens before any write; reservations, order
// rows and status writes either all commit or all roll back. Events and
// status cache writes happen only after commit and never fail the call.
package workflow

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/ariefcatur/go-storefront-orders/internal/kafka"
	"github.com/ariefcatur/go-storefront-orders/internal/metrics"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/ariefcatur/go-storefront-orders/internal/port"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

type Engine struct {
	uow       port.UnitOfWork
	publisher port.EventPublisher
	cache     port.StatusCache
	metrics   *metrics.OrderMetrics
	log       *slog.Logger
	service   string
	now       func() time.Time
}

type Option func(*Engine)

func WithPublisher(p port.EventPublisher) Option { return func(e *Engine) { e.publisher = p } }

func WithStatusCache(c port.StatusCache) Option { return func(e *Engine) { e.cache = c } }

func WithMetrics(m *metrics.OrderMetrics) Option { return func(e *Engine) { e.metrics = m } }

func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.log = l } }

func WithServiceName(s string) Option { return func(e *Engine) { e.service = s } }

func New(uow port.UnitOfWork, opts ...Option) *Engine {
	e := &Engine{
		uow:     uow,
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		service: "storefront-api",
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Create validates the cart, prices it, reserves stock and stores the order
// with its items in one transaction.
func (e *Engine) Create(ctx context.Context, in orders.PlaceOrder) (orders.Order, error) {
	if err := in.Validate(); err != nil {
		e.rejected(err)
		return orders.Order{}, err
	}

	if in.IdempotencyKey != "" {
		existing, found, err := e.findReplay(ctx, in)
		if err != nil {
			return orders.Order{}, err
		}
		if found {
			return existing, nil
		}
	}

	var created orders.Order

	err := e.uow.WithinTx(ctx, func(ctx context.Context, repos port.TxRepositories) error {
		lines, err := priceCart(ctx, repos.Catalog, in.Items)
		if err != nil {
			return err
		}

		for _, mv := range stockMoves(lo.Map(lines, func(l orders.Line, _ int) orders.ItemInput {
			return orders.ItemInput{ProductID: l.Product.ID, Quantity: l.Quantity}
		})) {
			if err := repos.Ledger.Reserve(ctx, mv.ProductID, mv.Quantity); err != nil {
				return fmt.Errorf("ledger.Reserve[%s]: %w", mv.ProductID, err)
			}
		}

		created, err = repos.Orders.InsertOrder(ctx, newPendingOrder(in, lines))
		if err != nil {
			return fmt.Errorf("orders.InsertOrder: %w", err)
		}

		return nil
	})
	if err != nil {
		// lost a race against a concurrent create with the same key
		if in.IdempotencyKey != "" && errors.Is(err, orders.ErrDuplicateOrder) {
			existing, found, ferr := e.findReplay(ctx, in)
			if ferr == nil && found {
				return existing, nil
			}
		}

		err = e.domainError("create", err)
		e.rejected(err)
		return orders.Order{}, err
	}

	e.log.InfoContext(ctx, "order created",
		"order_id", created.ID.String(), "user_id", created.UserID,
		"total", created.Total.StringFixed(2), "items", len(created.Items))
	if e.metrics != nil {
		e.metrics.Created.Inc()
	}
	e.afterCommit(ctx, created, orders.EventOrderCreated, orders.CreatedPayload(created))

	return created, nil
}

// Cancel returns the stock of every item and moves the order to cancelled.
// Only pending orders owned by userID can be cancelled.
func (e *Engine) Cancel(ctx context.Context, userID string, orderID uuid.UUID) (orders.Order, error) {
	var cancelled orders.Order

	err := e.uow.WithinTx(ctx, func(ctx context.Context, repos port.TxRepositories) error {
		o, err := repos.Orders.LockOrder(ctx, orderID)
		if err != nil {
			return fmt.Errorf("orders.LockOrder: %w", err)
		}
		if o.UserID != userID {
			return orders.OrderNotFound(orderID)
		}
		if !orders.CanCancel(o.Status) {
			return &orders.InvalidStateTransitionError{From: o.Status, To: orders.StatusCancelled}
		}

		for _, mv := range stockMoves(lo.Map(o.Items, func(it orders.OrderItem, _ int) orders.ItemInput {
			return orders.ItemInput{ProductID: it.ProductID, Quantity: it.Quantity}
		})) {
			if err := repos.Ledger.Release(ctx, mv.ProductID, mv.Quantity); err != nil {
				return fmt.Errorf("ledger.Release[%s]: %w", mv.ProductID, err)
			}
		}

		if err := repos.Orders.UpdateOrderStatus(ctx, o.ID, orders.StatusCancelled); err != nil {
			return fmt.Errorf("orders.UpdateOrderStatus: %w", err)
		}

		cancelled, err = repos.Orders.GetOrder(ctx, o.ID)
		if err != nil {
			return fmt.Errorf("orders.GetOrder: %w", err)
		}

		return nil
	})
	if err != nil {
		return orders.Order{}, e.domainError("cancel", err)
	}

	e.log.InfoContext(ctx, "order cancelled", "order_id", cancelled.ID.String(), "user_id", userID)
	if e.metrics != nil {
		e.metrics.Cancelled.Inc()
	}
	e.afterCommit(ctx, cancelled, orders.EventOrderCancelled, orders.CancelledPayload(cancelled))

	return cancelled, nil
}

// UpdateStatus overwrites the status of any order. It is the admin escape
// hatch: only the value is validated, the lifecycle graph is not enforced and
// stock is never touched.
func (e *Engine) UpdateStatus(ctx context.Context, orderID uuid.UUID, status string) (orders.Order, error) {
	to, err := orders.ParseStatus(status)
	if err != nil {
		return orders.Order{}, err
	}

	var (
		updated orders.Order
		from    orders.Status
	)

	err = e.uow.WithinTx(ctx, func(ctx context.Context, repos port.TxRepositories) error {
		o, err := repos.Orders.LockOrder(ctx, orderID)
		if err != nil {
			return fmt.Errorf("orders.LockOrder: %w", err)
		}
		from = o.Status

		if err := repos.Orders.UpdateOrderStatus(ctx, orderID, to); err != nil {
			return fmt.Errorf("orders.UpdateOrderStatus: %w", err)
		}

		updated, err = repos.Orders.GetOrder(ctx, orderID)
		if err != nil {
			return fmt.Errorf("orders.GetOrder: %w", err)
		}

		return nil
	})
	if err != nil {
		return orders.Order{}, e.domainError("update status", err)
	}

	// overrides outside the lifecycle graph are allowed but stay visible
	override := from != to && !orders.CanTransition(from, to)
	level := slog.LevelInfo
	if override {
		level = slog.LevelWarn
	}
	e.log.Log(ctx, level, "order status set",
		"order_id", orderID.String(), "from", from, "to", to,
		"override", override, "reopened", override && orders.IsTerminal(from))
	if e.metrics != nil {
		e.metrics.StatusChanged.WithLabelValues(string(to)).Inc()
	}
	if from != to {
		e.afterCommit(ctx, updated, orders.EventOrderStatusChanged, orders.OrderStatusChangedPayload{
			OrderID:   updated.ID.String(),
			UserID:    updated.UserID,
			From:      from,
			To:        to,
			UpdatedAt: updated.UpdatedAt,
		})
	}

	return updated, nil
}

// Get returns an order owned by userID. Orders of other users are reported
// as not found.
func (e *Engine) Get(ctx context.Context, userID string, orderID uuid.UUID) (orders.Order, error) {
	o, err := e.AdminGet(ctx, orderID)
	if err != nil {
		return o, err
	}
	if o.UserID != userID {
		return orders.Order{}, orders.OrderNotFound(orderID)
	}
	return o, nil
}

func (e *Engine) List(ctx context.Context, userID string) ([]orders.Order, error) {
	if userID == "" {
		return nil, &orders.ValidationError{Field: "user_id", Reason: "is required"}
	}
	list, err := e.uow.Orders().ListOrdersForUser(ctx, userID)
	if err != nil {
		return nil, e.domainError("list", err)
	}
	return list, nil
}

func (e *Engine) AdminGet(ctx context.Context, orderID uuid.UUID) (orders.Order, error) {
	o, err := e.uow.Orders().GetOrder(ctx, orderID)
	if err != nil {
		return orders.Order{}, e.domainError("get", err)
	}
	return o, nil
}

func (e *Engine) AdminList(ctx context.Context, filter orders.OrderFilter) ([]orders.Order, error) {
	list, err := e.uow.Orders().SearchOrders(ctx, filter)
	if err != nil {
		return nil, e.domainError("search", err)
	}
	return list, nil
}

// Status serves the owner's order status from the cache when possible and
// falls back to the database, refreshing the cache.
func (e *Engine) Status(ctx context.Context, userID string, orderID uuid.UUID) (orders.StatusSnapshot, error) {
	if e.cache != nil {
		snap, ok, err := e.cache.GetStatus(ctx, orderID.String())
		if err != nil {
			e.log.WarnContext(ctx, "status cache read failed", "order_id", orderID.String(), "error", err)
		}
		if ok && snap.UserID == userID {
			return snap, nil
		}
	}

	o, err := e.Get(ctx, userID, orderID)
	if err != nil {
		return orders.StatusSnapshot{}, err
	}

	snap := orders.SnapshotFromOrder(o)
	e.cacheStatus(ctx, snap)
	return snap, nil
}

func (e *Engine) findReplay(ctx context.Context, in orders.PlaceOrder) (orders.Order, bool, error) {
	existing, err := e.uow.Orders().FindByIdempotencyKey(ctx, in.UserID, in.IdempotencyKey)
	if err == nil {
		e.log.InfoContext(ctx, "idempotent replay", "order_id", existing.ID.String(), "user_id", in.UserID)
		return existing, true, nil
	}
	if errors.Is(err, orders.ErrNotFound) {
		return orders.Order{}, false, nil
	}
	return orders.Order{}, false, e.domainError("find replay", err)
}

// priceCart reads every product in submission order and checks the
// cumulative quantity requested per product against its stock. Nothing is
// written here.
func priceCart(ctx context.Context, catalog port.Catalog, items []orders.ItemInput) ([]orders.Line, error) {
	products := make(map[uuid.UUID]orders.Product, len(items))
	requested := make(map[uuid.UUID]int, len(items))
	lines := make([]orders.Line, 0, len(items))

	for _, it := range items {
		p, ok := products[it.ProductID]
		if !ok {
			var err error
			p, err = catalog.GetProduct(ctx, it.ProductID)
			if err != nil {
				return nil, fmt.Errorf("catalog.GetProduct: %w", err)
			}
			products[it.ProductID] = p
		}

		requested[it.ProductID] += it.Quantity
		if p.Stock < requested[it.ProductID] {
			return nil, &orders.InsufficientStockError{
				ProductID: p.ID,
				Requested: requested[it.ProductID],
				Available: p.Stock,
			}
		}

		lines = append(lines, orders.SnapshotLine(p, it.Quantity))
	}

	return lines, nil
}

// stockMoves sums quantities per product and sorts by product id. Touching
// product rows in one global order keeps concurrent orders with overlapping
// carts from deadlocking.
func stockMoves(items []orders.ItemInput) []orders.ItemInput {
	sums := make(map[uuid.UUID]int, len(items))
	for _, it := range items {
		sums[it.ProductID] += it.Quantity
	}

	moves := make([]orders.ItemInput, 0, len(sums))
	for id, qty := range sums {
		moves = append(moves, orders.ItemInput{ProductID: id, Quantity: qty})
	}
	slices.SortFunc(moves, func(a, b orders.ItemInput) int {
		return bytes.Compare(a.ProductID[:], b.ProductID[:])
	})
	return moves
}

func newPendingOrder(in orders.PlaceOrder, lines []orders.Line) orders.Order {
	o := orders.Order{
		UserID:          in.UserID,
		Status:          orders.StatusPending,
		ShippingAddress: in.ShippingAddress,
		Phone:           in.Phone,
		Notes:           in.Notes,
		Total:           orders.Total(lines),
		Items:           make([]orders.OrderItem, 0, len(lines)),
	}
	if in.IdempotencyKey != "" {
		key := in.IdempotencyKey
		o.IdempotencyKey = &key
	}

	for _, l := range lines {
		o.Items = append(o.Items, orders.OrderItem{
			ProductID:   l.Product.ID,
			ProductName: l.Product.Name,
			Quantity:    l.Quantity,
			Price:       l.UnitPrice,
		})
	}

	return o
}

func (e *Engine) afterCommit(ctx context.Context, o orders.Order, eventType string, payload any) {
	e.cacheStatus(ctx, orders.SnapshotFromOrder(o))

	if e.publisher == nil {
		return
	}

	env := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    e.now().UTC(),
		Producer:      e.service,
		TraceID:       traceID(ctx),
		CorrelationID: o.ID.String(),
		Payload:       kafka.MustMarshal(payload),
	}
	if err := e.publisher.Publish(ctx, env); err != nil {
		e.log.ErrorContext(ctx, "publish event failed",
			"order_id", o.ID.String(), "event_type", eventType, "error", err)
	}
}

func (e *Engine) cacheStatus(ctx context.Context, snap orders.StatusSnapshot) {
	if e.cache == nil {
		return
	}
	if err := e.cache.SetStatus(ctx, snap); err != nil {
		e.log.WarnContext(ctx, "status cache write failed", "order_id", snap.OrderID, "error", err)
	}
}

// domainError unwraps the first typed domain error in the chain. Anything
// else is a storage failure and is wrapped so its detail stays internal.
func (e *Engine) domainError(op string, err error) error {
	var (
		vErr  *orders.ValidationError
		nfErr *orders.NotFoundError
		isErr *orders.InsufficientStockError
		stErr *orders.InvalidStateTransitionError
		pErr  *orders.PersistenceError
	)

	switch {
	case errors.As(err, &vErr):
		return vErr
	case errors.As(err, &nfErr):
		return nfErr
	case errors.As(err, &isErr):
		return isErr
	case errors.As(err, &stErr):
		return stErr
	case errors.As(err, &pErr):
		return pErr
	}

	e.log.Error("storage failure", "op", op, "error", err)
	return &orders.PersistenceError{Op: op, Err: err}
}

func (e *Engine) rejected(err error) {
	if e.metrics == nil {
		return
	}
	e.metrics.Rejected.WithLabelValues(rejectReason(err)).Inc()
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, orders.ErrValidation):
		return "validation"
	case errors.Is(err, orders.ErrNotFound):
		return "not_found"
	case errors.Is(err, orders.ErrInsufficientStock):
		return "insufficient_stock"
	default:
		return "persistence"
	}
}

type traceKey struct{}

// ContextWithTraceID attaches the request id propagated into event envelopes.
func ContextWithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceKey{}, id)
}

func traceID(ctx context.Context) string {
	id, _ := ctx.Value(traceKey{}).(string)
	return id
}
