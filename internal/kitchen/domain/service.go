package domain

import (
	"context"
	"errors"
	"io"
)

type ListTicketFilter struct {
	Status Status
}

type Service interface {
	Get(ctx context.Context, orderRef string) (Ticket, error)
	List(ctx context.Context, filter ListTicketFilter) ([]Ticket, error)
	// PrintTicket renders the ticket as a PDF for the kitchen printer.
	PrintTicket(ctx context.Context, orderRef string) (io.Reader, error)
}

var (
	ErrInvalidOrderRef = errors.New("invalid_order_ref")
	ErrNotFound        = errors.New("not_found")
)
