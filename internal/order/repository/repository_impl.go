package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/smallbiznis/panucci/internal/config"
	"github.com/smallbiznis/panucci/internal/order/domain"
	pkgdb "github.com/smallbiznis/panucci/pkg/db"
	"gorm.io/gorm"
)

type repo struct {
	transactions bool
}

func Provide(cfg config.Config) domain.Repository {
	return New(cfg.DBTransactions)
}

func New(transactions bool) domain.Repository {
	return &repo{transactions: transactions}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, order *domain.Order) error {
	return db.WithContext(ctx).Create(order).Error
}

func (r *repo) FindByOrderID(ctx context.Context, db *gorm.DB, orderID string) (*domain.Order, error) {
	var order domain.Order
	err := db.WithContext(ctx).
		Preload("Items", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("line_number asc")
		}).
		Where("order_id = ?", orderID).
		Take(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListOrderFilter) ([]domain.Order, error) {
	var orders []domain.Order
	stmt := db.WithContext(ctx).
		Model(&domain.Order{}).
		Preload("Items", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("line_number asc")
		})
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	err := stmt.
		Order("created_at desc").
		Order("id desc").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, orderID string, to domain.Status, from ...domain.Status) (bool, error) {
	stmt := db.WithContext(ctx).
		Model(&domain.Order{}).
		Where("order_id = ?", orderID)
	if len(from) > 0 {
		stmt = stmt.Where("status IN ?", from)
	}
	res := stmt.Updates(map[string]any{
		"status":     to,
		"updated_at": time.Now().UTC(),
	})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) Transaction(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	if !r.transactions {
		return domain.ErrTransactionsUnsupported
	}
	err := db.WithContext(ctx).Transaction(fn)
	if err != nil && pkgdb.IsTransactionUnsupportedErr(err) {
		return fmt.Errorf("%w: %v", domain.ErrTransactionsUnsupported, err)
	}
	return err
}
