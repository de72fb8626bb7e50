package port

import "context"

// StockReply is the outcome of a cache-tier stock reservation.
type StockReply int

const (
	// StockReserved means the cache held enough stock and was decremented.
	StockReserved StockReply = iota
	// StockInsufficient means the cached count could not cover the request.
	StockInsufficient
	// StockUnknown means the product has no cached count; the caller must
	// fall through to the authoritative store.
	StockUnknown
)

type CacheRepository interface {
	// DecrementStock atomically decreases cached stock for a product.
	DecrementStock(ctx context.Context, productID string, quantity int) (StockReply, error)

	// IncrementStock restores cached stock (compensation on failure or
	// cancellation). A missing key is left untouched.
	IncrementStock(ctx context.Context, productID string, quantity int) error

	// SetStock seeds the cached count for a product.
	SetStock(ctx context.Context, productID string, quantity int) error

	// SetIdempotency sets a key for idempotency check, returns false if already exists
	SetIdempotency(ctx context.Context, key string) (bool, error)
}
