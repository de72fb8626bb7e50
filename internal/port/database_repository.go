package port

import (
	"context"

	"github.com/HijosDelDiablo/food-orders/internal/core/domain"
)

// OrderRepository is the authoritative order store. Implementations must make
// CreateOrder and CancelOrder atomic: either every inventory mutation and the
// order write land together, or none do.
type OrderRepository interface {
	// CreateOrder reserves stock for every requested item and persists the
	// order in a single transaction. The order is submitted as a skeleton
	// (id, customer, status, timestamps); the implementation fills Items and
	// Total from in-transaction product snapshots. Fails with
	// domain.ProductNotFoundError or domain.InsufficientStockError.
	CreateOrder(ctx context.Context, order *domain.Order, items []domain.ItemRequest) error

	// GetOrder retrieves an order by id; nil when absent.
	GetOrder(ctx context.Context, id string) (*domain.Order, error)

	// GetOrderForCustomer retrieves an order scoped to its owner; nil when
	// absent or owned by someone else.
	GetOrderForCustomer(ctx context.Context, id, customerID string) (*domain.Order, error)

	// GetOrderForSeller retrieves an order scoped to its assigned seller.
	GetOrderForSeller(ctx context.Context, id, sellerID string) (*domain.Order, error)

	// ListByCustomer returns a customer's orders, newest first.
	ListByCustomer(ctx context.Context, customerID string) ([]domain.Order, error)

	// ListAssignedToSeller returns a seller's in-progress assigned orders.
	ListAssignedToSeller(ctx context.Context, sellerID string) ([]domain.Order, error)

	// ListAssignable returns unassigned orders in PENDING or CONFIRMED,
	// oldest first.
	ListAssignable(ctx context.Context) ([]domain.Order, error)

	// MostRecentForCustomer returns the customer's newest order; nil when none.
	MostRecentForCustomer(ctx context.Context, customerID string) (*domain.Order, error)

	// AssignSeller sets the order's seller and flips it to ASSIGNED,
	// regardless of current status. Returns the updated order, nil when the
	// order does not exist.
	AssignSeller(ctx context.Context, orderID, sellerID string) (*domain.Order, error)

	// UpdateStatus writes the target status with an optimistic version
	// check; fails with domain.ErrVersionConflict on a stale version.
	UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus, version int) error

	// CancelOrder restocks every line item and flips the order to CANCELLED
	// in a single transaction, with a version check on the status write.
	CancelOrder(ctx context.Context, order *domain.Order) error
}

// ProductRepository exposes catalog lookups the engine needs.
type ProductRepository interface {
	// GetProduct retrieves a product by id; nil when absent.
	GetProduct(ctx context.Context, id string) (*domain.Product, error)

	// ListProducts returns the full catalog (used to warm the stock cache).
	ListProducts(ctx context.Context) ([]domain.Product, error)
}

// UserRepository confirms identities and roles for assignment validation.
type UserRepository interface {
	// GetUser retrieves a user by id; nil when absent.
	GetUser(ctx context.Context, id string) (*domain.User, error)
}
