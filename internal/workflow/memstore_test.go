package workflow_test

import (
	"context"
	"errors"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/ariefcatur/go-storefront-orders/internal/port"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// memStore is an in-memory port.UnitOfWork. Transactions are serialized and
// roll back by restoring a snapshot taken when they began.
type memStore struct {
	mu       sync.Mutex
	products map[uuid.UUID]orders.Product
	orders   map[uuid.UUID]orders.Order
	clock    time.Time

	// failInsert makes the next InsertOrder fail after reservations ran.
	failInsert error
}

func newMemStore() *memStore {
	return &memStore{
		products: map[uuid.UUID]orders.Product{},
		orders:   map[uuid.UUID]orders.Order{},
		clock:    time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (s *memStore) addProduct(name, price string, stock int) orders.Product {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := orders.Product{
		ID:    uuid.New(),
		Name:  name,
		Price: decimal.RequireFromString(price),
		Stock: stock,
	}
	s.products[p.ID] = p
	return p
}

func (s *memStore) deleteProduct(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.products[id]
	now := s.clock
	p.DeletedAt = &now
	s.products[id] = p
}

func (s *memStore) stock(id uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products[id].Stock
}

func (s *memStore) orderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

func (s *memStore) WithinTx(ctx context.Context, fn func(ctx context.Context, repos port.TxRepositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	products := cloneMap(s.products)
	saved := cloneMap(s.orders)

	r := &memRepos{s: s}
	if err := fn(ctx, port.TxRepositories{Catalog: r, Ledger: r, Orders: r}); err != nil {
		s.products, s.orders = products, saved
		return err
	}
	return nil
}

func (s *memStore) Orders() port.OrderRepository {
	return &lockedOrders{s: s}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// memRepos runs inside WithinTx with the store lock held.
type memRepos struct {
	s *memStore
}

func (r *memRepos) GetProduct(_ context.Context, id uuid.UUID) (orders.Product, error) {
	p, ok := r.s.products[id]
	if !ok || p.DeletedAt != nil {
		return orders.Product{}, orders.ProductNotFound(id)
	}
	return p, nil
}

func (r *memRepos) Reserve(_ context.Context, id uuid.UUID, qty int) error {
	p, ok := r.s.products[id]
	if !ok || p.DeletedAt != nil {
		return orders.ProductNotFound(id)
	}
	if p.Stock < qty {
		return &orders.InsufficientStockError{ProductID: id, Requested: qty, Available: p.Stock}
	}
	p.Stock -= qty
	r.s.products[id] = p
	return nil
}

func (r *memRepos) Release(_ context.Context, id uuid.UUID, qty int) error {
	p, ok := r.s.products[id]
	if !ok {
		return orders.ProductNotFound(id)
	}
	p.Stock += qty
	r.s.products[id] = p
	return nil
}

func (r *memRepos) InsertOrder(_ context.Context, o orders.Order) (orders.Order, error) {
	if err := r.s.failInsert; err != nil {
		r.s.failInsert = nil
		return orders.Order{}, err
	}
	if o.IdempotencyKey != nil {
		for _, existing := range r.s.orders {
			if existing.UserID == o.UserID && existing.IdempotencyKey != nil && *existing.IdempotencyKey == *o.IdempotencyKey {
				return orders.Order{}, orders.ErrDuplicateOrder
			}
		}
	}

	r.s.clock = r.s.clock.Add(time.Second)
	o.ID = uuid.New()
	o.CreatedAt, o.UpdatedAt = r.s.clock, r.s.clock
	o.Items = slices.Clone(o.Items)
	for i := range o.Items {
		o.Items[i].ID = uuid.New()
		o.Items[i].OrderID = o.ID
		o.Items[i].CreatedAt = r.s.clock
	}
	r.s.orders[o.ID] = o
	return o, nil
}

func (r *memRepos) GetOrder(_ context.Context, id uuid.UUID) (orders.Order, error) {
	o, ok := r.s.orders[id]
	if !ok {
		return orders.Order{}, orders.OrderNotFound(id)
	}
	return o, nil
}

func (r *memRepos) LockOrder(ctx context.Context, id uuid.UUID) (orders.Order, error) {
	return r.GetOrder(ctx, id)
}

func (r *memRepos) FindByIdempotencyKey(_ context.Context, userID, key string) (orders.Order, error) {
	for _, o := range r.s.orders {
		if o.UserID == userID && o.IdempotencyKey != nil && *o.IdempotencyKey == key {
			return o, nil
		}
	}
	return orders.Order{}, &orders.NotFoundError{Resource: "order", ID: key}
}

func (r *memRepos) ListOrdersForUser(ctx context.Context, userID string) ([]orders.Order, error) {
	if userID == "" {
		return nil, errors.New("userID is empty")
	}
	return r.SearchOrders(ctx, orders.OrderFilter{UserID: userID})
}

func (r *memRepos) SearchOrders(_ context.Context, f orders.OrderFilter) ([]orders.Order, error) {
	var out []orders.Order
	for _, o := range r.s.orders {
		if f.UserID != "" && o.UserID != f.UserID {
			continue
		}
		if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, o.Status) {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool {
		if f.Oldest {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *memRepos) UpdateOrderStatus(_ context.Context, id uuid.UUID, status orders.Status) error {
	o, ok := r.s.orders[id]
	if !ok {
		return orders.OrderNotFound(id)
	}
	r.s.clock = r.s.clock.Add(time.Second)
	o.Status = status
	o.UpdatedAt = r.s.clock
	r.s.orders[id] = o
	return nil
}

// lockedOrders serves reads outside a transaction.
type lockedOrders struct {
	s *memStore
}

func (l *lockedOrders) with(fn func(r *memRepos) error) error {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	return fn(&memRepos{s: l.s})
}

func (l *lockedOrders) InsertOrder(ctx context.Context, o orders.Order) (out orders.Order, err error) {
	err = l.with(func(r *memRepos) error { out, err = r.InsertOrder(ctx, o); return err })
	return out, err
}

func (l *lockedOrders) GetOrder(ctx context.Context, id uuid.UUID) (out orders.Order, err error) {
	err = l.with(func(r *memRepos) error { out, err = r.GetOrder(ctx, id); return err })
	return out, err
}

func (l *lockedOrders) LockOrder(ctx context.Context, id uuid.UUID) (orders.Order, error) {
	return l.GetOrder(ctx, id)
}

func (l *lockedOrders) FindByIdempotencyKey(ctx context.Context, userID, key string) (out orders.Order, err error) {
	err = l.with(func(r *memRepos) error { out, err = r.FindByIdempotencyKey(ctx, userID, key); return err })
	return out, err
}

func (l *lockedOrders) ListOrdersForUser(ctx context.Context, userID string) (out []orders.Order, err error) {
	err = l.with(func(r *memRepos) error { out, err = r.ListOrdersForUser(ctx, userID); return err })
	return out, err
}

func (l *lockedOrders) SearchOrders(ctx context.Context, f orders.OrderFilter) (out []orders.Order, err error) {
	err = l.with(func(r *memRepos) error { out, err = r.SearchOrders(ctx, f); return err })
	return out, err
}

func (l *lockedOrders) UpdateOrderStatus(ctx context.Context, id uuid.UUID, status orders.Status) error {
	return l.with(func(r *memRepos) error { return r.UpdateOrderStatus(ctx, id, status) })
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []orders.Envelope
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, env orders.Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, env)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType)
	}
	return out
}

type mapCache struct {
	mu    sync.Mutex
	snaps map[string]orders.StatusSnapshot
}

func newMapCache() *mapCache {
	return &mapCache{snaps: map[string]orders.StatusSnapshot{}}
}

func (c *mapCache) SetStatus(_ context.Context, snap orders.StatusSnapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snaps[snap.OrderID] = snap
	return nil
}

func (c *mapCache) GetStatus(_ context.Context, orderID string) (orders.StatusSnapshot, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.snaps[orderID]
	return s, ok, nil
}
