package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	// Upsert writes the ticket keyed by OrderRef.
	Upsert(ctx context.Context, db *gorm.DB, ticket *Ticket) error
	FindByOrderRef(ctx context.Context, db *gorm.DB, orderRef string) (*Ticket, error)
	List(ctx context.Context, db *gorm.DB, filter ListTicketFilter) ([]Ticket, error)
}
