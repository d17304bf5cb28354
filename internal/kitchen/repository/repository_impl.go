package repository

import (
	"context"
	"errors"

	"github.com/smallbiznis/panucci/internal/kitchen/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, ticket *domain.Ticket) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "order_ref"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"kitchen_order_id",
				"status",
				"products",
				"assigned_at",
				"updated_at",
			}),
		}).
		Create(ticket).Error
}

func (r *repo) FindByOrderRef(ctx context.Context, db *gorm.DB, orderRef string) (*domain.Ticket, error) {
	var ticket domain.Ticket
	err := db.WithContext(ctx).
		Where("order_ref = ?", orderRef).
		Take(&ticket).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListTicketFilter) ([]domain.Ticket, error) {
	var tickets []domain.Ticket
	stmt := db.WithContext(ctx).Model(&domain.Ticket{})
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if err := stmt.Order("assigned_at asc").Order("id asc").Find(&tickets).Error; err != nil {
		return nil, err
	}
	return tickets, nil
}
