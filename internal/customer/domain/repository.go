package domain

import (
	"context"
	"regexp"

	"gorm.io/gorm"
)

type Repository interface {
	// ReadMaxSequentialID returns the largest numeric suffix among identifiers
	// matching pattern, or 0 when none match. pattern must capture the digits.
	ReadMaxSequentialID(ctx context.Context, db *gorm.DB, prefix string, pattern *regexp.Regexp) (int64, error)
	SetCounter(ctx context.Context, db *gorm.DB, name string, seq int64) error
	// IncrementCounter atomically adds one to the counter, creating it when
	// missing. ok is false when the post-increment value could not be read.
	IncrementCounter(ctx context.Context, db *gorm.DB, name string) (seq int64, ok bool, err error)
	ReadCounter(ctx context.Context, db *gorm.DB, name string) (int64, error)

	// InsertCustomer returns ErrDuplicateKey on a uniqueness violation.
	InsertCustomer(ctx context.Context, db *gorm.DB, customer *Customer) error
	FindByClienteID(ctx context.Context, db *gorm.DB, clienteID string) (*Customer, error)
	FindByEmail(ctx context.Context, db *gorm.DB, email string) (*Customer, error)
	FindByDocument(ctx context.Context, db *gorm.DB, document string) (*Customer, error)
	List(ctx context.Context, db *gorm.DB, filter ListCustomerFilter, limit int) ([]*Customer, error)

	// Transaction runs fn in one unit of work. It returns
	// ErrTransactionsUnsupported when the store cannot group statements.
	Transaction(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error
}
