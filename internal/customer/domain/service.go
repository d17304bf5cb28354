package domain

import (
	"context"
	"errors"
	"fmt"

	"github.com/smallbiznis/panucci/pkg/db/pagination"
)

// AllocateRequest carries the caller supplied customer fields. The
// identifier is always assigned by the allocator.
type AllocateRequest struct {
	Name  string
	Email string
}

type ListCustomerRequest struct {
	PageToken string
	PageSize  int32
	Name      string
	Email     string
	Active    *bool
}

type ListCustomerFilter struct {
	Name   string
	Email  string
	Active *bool
	// BeforeID resumes a newest-first listing below the given primary key.
	BeforeID int64
}

type ListCustomerResponse struct {
	pagination.PageInfo
	Customers []Customer `json:"customers"`
}

// Allocator issues sequential customer identifiers and persists the record.
type Allocator interface {
	Allocate(ctx context.Context, req AllocateRequest) (Customer, error)
	// Reconcile sets the counter to the largest identifier in use and
	// returns it.
	Reconcile(ctx context.Context) (int64, error)
}

type Service interface {
	Allocator
	GetByClienteID(ctx context.Context, clienteID string) (Customer, error)
	FindByEmail(ctx context.Context, email string) (*Customer, error)
	List(ctx context.Context, req ListCustomerRequest) (ListCustomerResponse, error)
}

var (
	ErrInvalidName  = errors.New("invalid_name")
	ErrInvalidEmail = errors.New("invalid_email")
	ErrInvalidID    = errors.New("invalid_id")
	ErrNotFound     = errors.New("not_found")

	ErrDuplicateKey            = errors.New("duplicate_key")
	ErrTransactionsUnsupported = errors.New("transactions_unsupported")
	ErrAllocationExhausted     = errors.New("allocation_exhausted")
)

// AllocationExhaustedError is returned when every attempt collided.
type AllocationExhaustedError struct {
	Attempts int
	Err      error
}

func (e *AllocationExhaustedError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("allocation exhausted after %d attempts", e.Attempts)
	}
	return fmt.Sprintf("allocation exhausted after %d attempts: %v", e.Attempts, e.Err)
}

func (e *AllocationExhaustedError) Unwrap() error { return e.Err }

func (e *AllocationExhaustedError) Is(target error) bool {
	return target == ErrAllocationExhausted
}
