package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product carries the current catalog price and stock count. Stock is mutated
// only through the storage layer's conditional decrement/increment, never by
// direct assignment, so it stays non-negative.
type Product struct {
	ID          string
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int
	ImageURL    string
	Version     int // optimistic locking
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
