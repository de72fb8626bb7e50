package service

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/HijosDelDiablo/food-orders/internal/core/domain"
	"github.com/HijosDelDiablo/food-orders/internal/port"
)

// memStore is an in-memory stand-in for the MySQL repositories. Its mutex
// serializes CreateOrder and CancelOrder the way the database transaction
// does, so the engine's concurrency properties can be exercised without a
// database.
type memStore struct {
	mu       sync.Mutex
	products map[string]*domain.Product
	orders   map[string]*domain.Order
	users    map[string]*domain.User

	createErr error // injected failure for CreateOrder
	cancelErr error // injected failure for CancelOrder
}

func newMemStore() *memStore {
	return &memStore{
		products: make(map[string]*domain.Product),
		orders:   make(map[string]*domain.Order),
		users:    make(map[string]*domain.User),
	}
}

func (m *memStore) addProduct(p domain.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := p
	m.products[p.ID] = &cp
}

func (m *memStore) addUser(u domain.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := u
	m.users[u.ID] = &cp
}

func (m *memStore) productStock(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.products[id].Stock
}

func (m *memStore) setPrice(id string, price decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[id].Price = price
}

func copyOrder(o *domain.Order) *domain.Order {
	cp := *o
	cp.Items = append([]domain.LineItem(nil), o.Items...)
	return &cp
}

func (m *memStore) CreateOrder(ctx context.Context, order *domain.Order, items []domain.ItemRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.createErr != nil {
		return m.createErr
	}

	// validate every item before mutating anything, like the transaction
	for _, req := range items {
		p, ok := m.products[req.ProductID]
		if !ok {
			return &domain.ProductNotFoundError{ProductID: req.ProductID}
		}
		if p.Stock < req.Quantity {
			return &domain.InsufficientStockError{
				ProductName: p.Name,
				Requested:   req.Quantity,
				Available:   p.Stock,
			}
		}
	}

	order.Items = order.Items[:0]
	for _, req := range items {
		p := m.products[req.ProductID]
		p.Stock -= req.Quantity
		p.Version++
		order.Items = append(order.Items, domain.LineItem{
			ProductID:       p.ID,
			ProductName:     p.Name,
			Quantity:        req.Quantity,
			PriceAtPurchase: p.Price,
		})
	}
	order.Total = order.ComputeTotal()
	m.orders[order.ID] = copyOrder(order)
	return nil
}

func (m *memStore) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, nil
	}
	return copyOrder(o), nil
}

func (m *memStore) GetOrderForCustomer(ctx context.Context, id, customerID string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || o.CustomerID != customerID {
		return nil, nil
	}
	return copyOrder(o), nil
}

func (m *memStore) GetOrderForSeller(ctx context.Context, id, sellerID string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || o.SellerID != sellerID {
		return nil, nil
	}
	return copyOrder(o), nil
}

func (m *memStore) ListByCustomer(ctx context.Context, customerID string) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Order
	for _, o := range m.orders {
		if o.CustomerID == customerID {
			out = append(out, *copyOrder(o))
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (m *memStore) ListAssignedToSeller(ctx context.Context, sellerID string) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Order
	for _, o := range m.orders {
		if o.SellerID == sellerID && o.Status == domain.OrderStatusAssigned {
			out = append(out, *copyOrder(o))
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (m *memStore) ListAssignable(ctx context.Context) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Order
	for _, o := range m.orders {
		if o.SellerID == "" &&
			(o.Status == domain.OrderStatusPending || o.Status == domain.OrderStatusConfirmed) {
			out = append(out, *copyOrder(o))
		}
	}
	sortOldestFirst(out)
	return out, nil
}

func (m *memStore) MostRecentForCustomer(ctx context.Context, customerID string) (*domain.Order, error) {
	orders, _ := m.ListByCustomer(ctx, customerID)
	if len(orders) == 0 {
		return nil, nil
	}
	return &orders[0], nil
}

func (m *memStore) AssignSeller(ctx context.Context, orderID, sellerID string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return nil, nil
	}
	o.SellerID = sellerID
	o.Status = domain.OrderStatusAssigned
	o.Version++
	return copyOrder(o), nil
}

func (m *memStore) UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus, version int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok || o.Version != version {
		return domain.ErrVersionConflict
	}
	o.Status = status
	o.Version++
	return nil
}

func (m *memStore) CancelOrder(ctx context.Context, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancelErr != nil {
		return m.cancelErr
	}

	stored, ok := m.orders[order.ID]
	if !ok || stored.Version != order.Version {
		return domain.ErrVersionConflict
	}
	for _, li := range order.Items {
		if p, ok := m.products[li.ProductID]; ok {
			p.Stock += li.Quantity
			p.Version++
		}
	}
	stored.Status = domain.OrderStatusCancelled
	stored.Version++
	order.Status = domain.OrderStatusCancelled
	order.Version++
	return nil
}

func (m *memStore) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) ListProducts(ctx context.Context) ([]domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Product
	for _, p := range m.products {
		out = append(out, *p)
	}
	return out, nil
}

func (m *memStore) GetUser(ctx context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func sortNewestFirst(orders []domain.Order) {
	for i := 0; i < len(orders); i++ {
		for j := i + 1; j < len(orders); j++ {
			if orders[j].CreatedAt.After(orders[i].CreatedAt) ||
				(orders[j].CreatedAt.Equal(orders[i].CreatedAt) && orders[j].ID > orders[i].ID) {
				orders[i], orders[j] = orders[j], orders[i]
			}
		}
	}
}

func sortOldestFirst(orders []domain.Order) {
	for i := 0; i < len(orders); i++ {
		for j := i + 1; j < len(orders); j++ {
			if orders[j].CreatedAt.Before(orders[i].CreatedAt) ||
				(orders[j].CreatedAt.Equal(orders[i].CreatedAt) && orders[j].ID < orders[i].ID) {
				orders[i], orders[j] = orders[j], orders[i]
			}
		}
	}
}

// mockCacheRepo mirrors the Redis stock cache: per-product counts, unknown
// when unwarmed, plus the idempotency key set.
type mockCacheRepo struct {
	mu             sync.Mutex
	stock          map[string]int
	idempotencySet map[string]bool
}

func newMockCacheRepo() *mockCacheRepo {
	return &mockCacheRepo{
		stock:          make(map[string]int),
		idempotencySet: make(map[string]bool),
	}
}

func (m *mockCacheRepo) DecrementStock(ctx context.Context, productID string, quantity int) (port.StockReply, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.stock[productID]
	if !ok {
		return port.StockUnknown, nil
	}
	if current >= quantity {
		m.stock[productID] = current - quantity
		return port.StockReserved, nil
	}
	return port.StockInsufficient, nil
}

func (m *mockCacheRepo) IncrementStock(ctx context.Context, productID string, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.stock[productID]; ok {
		m.stock[productID] += quantity
	}
	return nil
}

func (m *mockCacheRepo) SetStock(ctx context.Context, productID string, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stock[productID] = quantity
	return nil
}

func (m *mockCacheRepo) SetIdempotency(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.idempotencySet[key] {
		return false, nil
	}
	m.idempotencySet[key] = true
	return true, nil
}

func (m *mockCacheRepo) cachedStock(productID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stock[productID]
}
