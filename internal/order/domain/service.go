package domain

import (
	"context"
	"errors"
	"io"
)

type ItemInput struct {
	ProductID string
	Name      string
	Quantity  int64
	UnitPrice *int64
}

type CreateOrderRequest struct {
	Items         []ItemInput
	CustomerName  string
	CustomerEmail string
	// IdempotencyKey deduplicates retried submissions when set.
	IdempotencyKey string
}

type CreateOrderResult struct {
	Order    Order
	Replayed bool
}

type ListOrderFilter struct {
	Status Status
}

type UpdateStatusRequest struct {
	OrderID string
	Status  Status
}

type Service interface {
	Create(ctx context.Context, req CreateOrderRequest) (CreateOrderResult, error)
	Get(ctx context.Context, orderID string) (Order, error)
	List(ctx context.Context, filter ListOrderFilter) ([]Order, error)
	Cancel(ctx context.Context, orderID string) (Order, error)
	UpdateStatus(ctx context.Context, req UpdateStatusRequest) (Order, error)
	Receipt(ctx context.Context, orderID string) (io.Reader, error)
	Export(ctx context.Context, filter ListOrderFilter) ([]byte, error)
}

var (
	ErrInvalidItems    = errors.New("invalid_items")
	ErrInvalidStatus   = errors.New("invalid_status")
	ErrInvalidOrderID  = errors.New("invalid_order_id")
	ErrNotFound        = errors.New("not_found")
	ErrNotCancelable   = errors.New("not_cancelable")
	ErrRequestInFlight = errors.New("request_in_flight")

	ErrInvalidIdempotencyKey = errors.New("invalid_idempotency_key")

	// ErrTransactionsUnsupported is returned by Repository.Transaction when
	// the store runs without transactions.
	ErrTransactionsUnsupported = errors.New("transactions_unsupported")
)
