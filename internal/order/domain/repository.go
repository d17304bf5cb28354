package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, order *Order) error
	FindByOrderID(ctx context.Context, db *gorm.DB, orderID string) (*Order, error)
	List(ctx context.Context, db *gorm.DB, filter ListOrderFilter) ([]Order, error)
	// UpdateStatus moves the order to status when its current status is one
	// of from (any status when from is empty). It reports whether a row changed.
	UpdateStatus(ctx context.Context, db *gorm.DB, orderID string, to Status, from ...Status) (bool, error)
	Transaction(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error
}
