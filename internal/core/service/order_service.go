package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/HijosDelDiablo/food-orders/internal/core/domain"
	"github.com/HijosDelDiablo/food-orders/internal/port"
)

var ErrDuplicateRequest = errors.New("duplicate request")

// OrderService drives the order lifecycle: creation with stock reservation,
// role-gated status transitions, and compensating restock on cancellation.
// The Redis cache is a fast-fail tier in front of the database; the database
// transaction is the authoritative reservation.
type OrderService struct {
	orders   port.OrderRepository
	products port.ProductRepository
	users    port.UserRepository
	cache    port.CacheRepository
	logger   *zap.Logger
}

func NewOrderService(
	orders port.OrderRepository,
	products port.ProductRepository,
	users port.UserRepository,
	cache port.CacheRepository,
	logger *zap.Logger,
) *OrderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderService{
		orders:   orders,
		products: products,
		users:    users,
		cache:    cache,
		logger:   logger,
	}
}

// CreateOrder validates the requested items, reserves stock, and persists a
// new PENDING order. Reservation and order insert are atomic: a failure on
// any item leaves inventory untouched. requestID, when non-empty, is an
// idempotency token; a repeated token is rejected without touching stock.
func (s *OrderService) CreateOrder(ctx context.Context, customerID string, items []domain.ItemRequest, requestID string) (*domain.Order, error) {
	if len(items) == 0 {
		return nil, domain.ErrInvalidItems
	}
	for _, item := range items {
		if item.ProductID == "" || item.Quantity < 1 {
			return nil, domain.ErrInvalidItems
		}
	}

	if requestID != "" {
		key := fmt.Sprintf("order:%s:%s", customerID, requestID)
		ok, err := s.cache.SetIdempotency(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("idempotency check failed: %w", err)
		}
		if !ok {
			return nil, ErrDuplicateRequest
		}
	}

	// Fast path: fail sold-out requests against the cache before opening a
	// database transaction. A cold key falls through; the database decides.
	reserved := make([]domain.ItemRequest, 0, len(items))
	rollbackCache := func() {
		for _, r := range reserved {
			if err := s.cache.IncrementStock(ctx, r.ProductID, r.Quantity); err != nil {
				s.logger.Error("cache stock rollback failed",
					zap.String("product_id", r.ProductID),
					zap.Int("quantity", r.Quantity),
					zap.Error(err))
			}
		}
	}

	for _, item := range items {
		reply, err := s.cache.DecrementStock(ctx, item.ProductID, item.Quantity)
		if err != nil {
			rollbackCache()
			return nil, fmt.Errorf("stock reservation failed: %w", err)
		}
		switch reply {
		case port.StockReserved:
			reserved = append(reserved, item)
		case port.StockInsufficient:
			rollbackCache()
			return nil, s.insufficientStock(ctx, item)
		case port.StockUnknown:
			// unwarmed product, the transaction below is the only check
		}
	}

	now := time.Now()
	order := &domain.Order{
		ID:         ulid.Make().String(),
		CustomerID: customerID,
		Status:     domain.OrderStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.orders.CreateOrder(ctx, order, items); err != nil {
		rollbackCache()
		return nil, err
	}

	s.logger.Info("order created",
		zap.String("order_id", order.ID),
		zap.String("customer_id", customerID),
		zap.Int("items", len(order.Items)),
		zap.String("total", order.Total.String()))

	return order, nil
}

// insufficientStock builds the typed error for a cache-tier rejection,
// reporting the product's name and currently available stock.
func (s *OrderService) insufficientStock(ctx context.Context, item domain.ItemRequest) error {
	product, err := s.products.GetProduct(ctx, item.ProductID)
	if err != nil || product == nil {
		return &domain.InsufficientStockError{
			ProductName: item.ProductID,
			Requested:   item.Quantity,
		}
	}
	return &domain.InsufficientStockError{
		ProductName: product.Name,
		Requested:   item.Quantity,
		Available:   product.Stock,
	}
}

// AssignToSeller assigns an order to a seller and moves it to ASSIGNED.
// Admin only; assignment is not constrained by the transition table, so
// re-assigning an already-assigned order is permitted.
func (s *OrderService) AssignToSeller(ctx context.Context, orderID, sellerID string, actor domain.Actor) (*domain.Order, error) {
	if actor.Role != domain.RoleAdmin {
		return nil, domain.ErrForbidden
	}

	seller, err := s.users.GetUser(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	if seller == nil || seller.Role != domain.RoleSeller {
		return nil, fmt.Errorf("user %q: %w", sellerID, domain.ErrInvalidSeller)
	}

	order, err := s.orders.AssignSeller(ctx, orderID, sellerID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrOrderNotFound
	}

	s.logger.Info("order assigned",
		zap.String("order_id", orderID),
		zap.String("seller_id", sellerID),
		zap.String("admin_id", actor.ID))

	return order, nil
}

// UpdateStatus moves an order to the target status. Admins may set any
// status; sellers are limited to the transition table and to orders assigned
// to them; everyone else is rejected. The write is version-checked, so a
// concurrent transition on the same order fails with ErrVersionConflict
// instead of silently losing an update.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID string, target domain.OrderStatus, actor domain.Actor) (*domain.Order, error) {
	log := s.logger.With(
		zap.String("order_id", orderID),
		zap.String("target_status", string(target)),
		zap.String("actor_id", actor.ID),
		zap.String("actor_role", string(actor.Role)))
	log.Info("status update requested")

	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		log.Warn("order not found")
		return nil, domain.ErrOrderNotFound
	}

	if !domain.ValidStatus(target) {
		return nil, &domain.IllegalTransitionError{From: order.Status, To: target}
	}

	switch actor.Role {
	case domain.RoleAdmin:
		// operational override: any target, from any state
	case domain.RoleSeller:
		if order.SellerID == "" || order.SellerID != actor.ID {
			log.Warn("seller is not assigned to this order",
				zap.String("assigned_seller", order.SellerID))
			return nil, domain.ErrForbidden
		}
		if !domain.CanTransition(actor.Role, order.Status, target) {
			log.Warn("transition not permitted",
				zap.String("current_status", string(order.Status)))
			return nil, &domain.IllegalTransitionError{From: order.Status, To: target}
		}
	default:
		return nil, domain.ErrForbidden
	}

	if err := s.orders.UpdateStatus(ctx, orderID, target, order.Version); err != nil {
		return nil, err
	}

	order.Status = target
	order.Version++
	log.Info("status updated", zap.String("status", string(target)))
	return order, nil
}

// CancelAsCustomer cancels a PENDING order and restocks every line item.
// The lookup is scoped to the owning customer, so an order belonging to
// someone else is indistinguishable from a missing one.
func (s *OrderService) CancelAsCustomer(ctx context.Context, orderID, customerID string) (*domain.Order, error) {
	order, err := s.orders.GetOrderForCustomer(ctx, orderID, customerID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrOrderNotFound
	}

	if order.Status != domain.OrderStatusPending {
		return nil, &domain.IllegalTransitionError{From: order.Status, To: domain.OrderStatusCancelled}
	}

	if err := s.orders.CancelOrder(ctx, order); err != nil {
		return nil, err
	}

	// Keep the cache tier in step with the restock. A failure here only
	// under-reports cached stock; the database already holds the truth.
	for _, li := range order.Items {
		if err := s.cache.IncrementStock(ctx, li.ProductID, li.Quantity); err != nil {
			s.logger.Warn("cache restock failed",
				zap.String("order_id", orderID),
				zap.String("product_id", li.ProductID),
				zap.Error(err))
		}
	}

	s.logger.Info("order cancelled",
		zap.String("order_id", orderID),
		zap.String("customer_id", customerID))

	return order, nil
}

// Read-only projections used by the engine's collaborators.

func (s *OrderService) ListMyOrders(ctx context.Context, customerID string) ([]domain.Order, error) {
	return s.orders.ListByCustomer(ctx, customerID)
}

func (s *OrderService) GetOrderForCustomer(ctx context.Context, orderID, customerID string) (*domain.Order, error) {
	order, err := s.orders.GetOrderForCustomer(ctx, orderID, customerID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrOrderNotFound
	}
	return order, nil
}

func (s *OrderService) GetOrderForSeller(ctx context.Context, orderID, sellerID string) (*domain.Order, error) {
	order, err := s.orders.GetOrderForSeller(ctx, orderID, sellerID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrOrderNotFound
	}
	return order, nil
}

func (s *OrderService) ListAssignedToSeller(ctx context.Context, sellerID string) ([]domain.Order, error) {
	return s.orders.ListAssignedToSeller(ctx, sellerID)
}

func (s *OrderService) ListAssignable(ctx context.Context) ([]domain.Order, error) {
	return s.orders.ListAssignable(ctx)
}

// FindMostRecentForCustomer returns the customer's newest order, or nil when
// they have none.
func (s *OrderService) FindMostRecentForCustomer(ctx context.Context, customerID string) (*domain.Order, error) {
	return s.orders.MostRecentForCustomer(ctx, customerID)
}
