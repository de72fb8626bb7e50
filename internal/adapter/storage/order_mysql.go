package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/HijosDelDiablo/food-orders/internal/core/domain"
)

type MySQLOrderRepository struct {
	db *sql.DB
}

func NewMySQLOrderRepository(db *sql.DB) *MySQLOrderRepository {
	return &MySQLOrderRepository{db: db}
}

// CreateOrder reserves stock and records the order as a single durable unit.
// Each product row is locked before its stock check so two concurrent
// creations cannot both pass the check; the conditional decrement is the
// backstop that keeps stock non-negative either way.
func (m *MySQLOrderRepository) CreateOrder(ctx context.Context, order *domain.Order, items []domain.ItemRequest) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	order.Items = order.Items[:0]
	for _, req := range items {
		var li domain.LineItem
		var stock int
		err := tx.QueryRowContext(ctx, `
			SELECT id, name, price, stock
			FROM products WHERE id = ? FOR UPDATE`, req.ProductID,
		).Scan(&li.ProductID, &li.ProductName, &li.PriceAtPurchase, &stock)
		if errors.Is(err, sql.ErrNoRows) {
			return &domain.ProductNotFoundError{ProductID: req.ProductID}
		}
		if err != nil {
			return fmt.Errorf("query product: %w", err)
		}

		if stock < req.Quantity {
			return &domain.InsufficientStockError{
				ProductName: li.ProductName,
				Requested:   req.Quantity,
				Available:   stock,
			}
		}

		result, err := tx.ExecContext(ctx, `
			UPDATE products
			SET stock = stock - ?, version = version + 1, updated_at = NOW()
			WHERE id = ? AND stock >= ?`,
			req.Quantity, req.ProductID, req.Quantity,
		)
		if err != nil {
			return fmt.Errorf("update product stock: %w", err)
		}
		rows, _ := result.RowsAffected()
		if rows == 0 {
			return &domain.InsufficientStockError{
				ProductName: li.ProductName,
				Requested:   req.Quantity,
				Available:   stock,
			}
		}

		li.Quantity = req.Quantity
		order.Items = append(order.Items, li)
	}

	order.Total = order.ComputeTotal()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, customer_id, seller_id, status, total, version, created_at, updated_at)
		VALUES (?, ?, NULL, ?, ?, ?, ?, ?)`,
		order.ID, order.CustomerID, order.Status, order.Total, order.Version,
		order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for _, li := range order.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, product_id, product_name, quantity, price_at_purchase)
			VALUES (?, ?, ?, ?, ?)`,
			order.ID, li.ProductID, li.ProductName, li.Quantity, li.PriceAtPurchase,
		)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	return tx.Commit()
}

const orderColumns = `id, customer_id, seller_id, status, total, version, created_at, updated_at`

func (m *MySQLOrderRepository) scanOrder(row *sql.Row) (*domain.Order, error) {
	var o domain.Order
	var sellerID sql.NullString
	err := row.Scan(&o.ID, &o.CustomerID, &sellerID, &o.Status, &o.Total,
		&o.Version, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}
	o.SellerID = sellerID.String
	return &o, nil
}

func (m *MySQLOrderRepository) loadItems(ctx context.Context, o *domain.Order) error {
	rows, err := m.db.QueryContext(ctx, `
		SELECT product_id, product_name, quantity, price_at_purchase
		FROM order_items WHERE order_id = ?`, o.ID)
	if err != nil {
		return fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var li domain.LineItem
		if err := rows.Scan(&li.ProductID, &li.ProductName, &li.Quantity, &li.PriceAtPurchase); err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		o.Items = append(o.Items, li)
	}
	return rows.Err()
}

func (m *MySQLOrderRepository) getOne(ctx context.Context, query string, args ...any) (*domain.Order, error) {
	o, err := m.scanOrder(m.db.QueryRowContext(ctx, query, args...))
	if o == nil || err != nil {
		return nil, err
	}
	if err := m.loadItems(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (m *MySQLOrderRepository) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	return m.getOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id)
}

func (m *MySQLOrderRepository) GetOrderForCustomer(ctx context.Context, id, customerID string) (*domain.Order, error) {
	return m.getOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ? AND customer_id = ?`, id, customerID)
}

func (m *MySQLOrderRepository) GetOrderForSeller(ctx context.Context, id, sellerID string) (*domain.Order, error) {
	return m.getOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ? AND seller_id = ?`, id, sellerID)
}

func (m *MySQLOrderRepository) list(ctx context.Context, query string, args ...any) ([]domain.Order, error) {
	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		var o domain.Order
		var sellerID sql.NullString
		if err := rows.Scan(&o.ID, &o.CustomerID, &sellerID, &o.Status, &o.Total,
			&o.Version, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		o.SellerID = sellerID.String
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range orders {
		if err := m.loadItems(ctx, &orders[i]); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

func (m *MySQLOrderRepository) ListByCustomer(ctx context.Context, customerID string) ([]domain.Order, error) {
	return m.list(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE customer_id = ? ORDER BY created_at DESC`, customerID)
}

func (m *MySQLOrderRepository) ListAssignedToSeller(ctx context.Context, sellerID string) ([]domain.Order, error) {
	return m.list(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE seller_id = ? AND status = ? ORDER BY created_at DESC`,
		sellerID, domain.OrderStatusAssigned)
}

func (m *MySQLOrderRepository) ListAssignable(ctx context.Context) ([]domain.Order, error) {
	return m.list(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE status IN (?, ?) AND seller_id IS NULL ORDER BY created_at ASC`,
		domain.OrderStatusPending, domain.OrderStatusConfirmed)
}

func (m *MySQLOrderRepository) MostRecentForCustomer(ctx context.Context, customerID string) (*domain.Order, error) {
	return m.getOne(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE customer_id = ? ORDER BY created_at DESC LIMIT 1`, customerID)
}

func (m *MySQLOrderRepository) AssignSeller(ctx context.Context, orderID, sellerID string) (*domain.Order, error) {
	result, err := m.db.ExecContext(ctx, `
		UPDATE orders
		SET seller_id = ?, status = ?, version = version + 1, updated_at = NOW()
		WHERE id = ?`,
		sellerID, domain.OrderStatusAssigned, orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("assign seller: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return nil, nil
	}
	return m.GetOrder(ctx, orderID)
}

func (m *MySQLOrderRepository) UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus, version int) error {
	result, err := m.db.ExecContext(ctx, `
		UPDATE orders
		SET status = ?, version = version + 1, updated_at = NOW()
		WHERE id = ? AND version = ?`,
		status, orderID, version,
	)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrVersionConflict
	}
	return nil
}

// CancelOrder restocks every line item and flips the order to CANCELLED in
// one transaction: either all compensating increments land with the status
// change, or none do.
func (m *MySQLOrderRepository) CancelOrder(ctx context.Context, order *domain.Order) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, li := range order.Items {
		_, err := tx.ExecContext(ctx, `
			UPDATE products
			SET stock = stock + ?, version = version + 1, updated_at = NOW()
			WHERE id = ?`,
			li.Quantity, li.ProductID,
		)
		if err != nil {
			return fmt.Errorf("restock product %s: %w", li.ProductID, err)
		}
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET status = ?, version = version + 1, updated_at = NOW()
		WHERE id = ? AND version = ?`,
		domain.OrderStatusCancelled, order.ID, order.Version,
	)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrVersionConflict
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	order.Status = domain.OrderStatusCancelled
	order.Version++
	return nil
}
