package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/smallbiznis/panucci/internal/config"
	"github.com/smallbiznis/panucci/internal/customer/domain"
	pkgdb "github.com/smallbiznis/panucci/pkg/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct {
	transactions bool
}

func Provide(cfg config.Config) domain.Repository {
	return New(cfg.DBTransactions)
}

// New builds the gorm repository. When transactions is false every call to
// Transaction reports domain.ErrTransactionsUnsupported.
func New(transactions bool) domain.Repository {
	return &repo{transactions: transactions}
}

func (r *repo) ReadMaxSequentialID(ctx context.Context, db *gorm.DB, prefix string, pattern *regexp.Regexp) (int64, error) {
	var ids []string
	err := db.WithContext(ctx).
		Model(&domain.Customer{}).
		Where("cliente_id LIKE ?", prefix+"%").
		Pluck("cliente_id", &ids).Error
	if err != nil {
		return 0, err
	}

	var max int64
	for _, id := range ids {
		match := pattern.FindStringSubmatch(id)
		if len(match) < 2 {
			continue
		}
		n, err := strconv.ParseInt(match[1], 10, 64)
		if err != nil {
			continue
		}
		if n > max {
			max = n
		}
	}
	return max, nil
}

func (r *repo) SetCounter(ctx context.Context, db *gorm.DB, name string, seq int64) error {
	row := domain.SequenceCounter{
		Name:      name,
		Seq:       seq,
		UpdatedAt: time.Now().UTC(),
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"seq", "updated_at"}),
		}).
		Create(&row).Error
}

func (r *repo) IncrementCounter(ctx context.Context, db *gorm.DB, name string) (int64, bool, error) {
	now := time.Now().UTC()
	db = db.WithContext(ctx)

	switch db.Dialector.Name() {
	case "postgres", "sqlite":
		var out struct{ Seq int64 }
		res := db.Raw(
			`INSERT INTO sequence_counters (name, seq, updated_at) VALUES (?, 1, ?)
			 ON CONFLICT (name) DO UPDATE SET seq = sequence_counters.seq + 1, updated_at = excluded.updated_at
			 RETURNING seq`,
			name,
			now,
		).Scan(&out)
		if res.Error != nil {
			return 0, false, res.Error
		}
		return out.Seq, res.RowsAffected > 0, nil
	default:
		err := db.Exec(
			`INSERT INTO sequence_counters (name, seq, updated_at) VALUES (?, 1, ?)
			 ON DUPLICATE KEY UPDATE seq = seq + 1, updated_at = VALUES(updated_at)`,
			name,
			now,
		).Error
		if err != nil {
			return 0, false, err
		}
		var rows []domain.SequenceCounter
		if err := db.Where("name = ?", name).Limit(1).Find(&rows).Error; err != nil {
			return 0, false, err
		}
		if len(rows) == 0 {
			return 0, false, nil
		}
		return rows[0].Seq, true, nil
	}
}

func (r *repo) ReadCounter(ctx context.Context, db *gorm.DB, name string) (int64, error) {
	var rows []domain.SequenceCounter
	err := db.WithContext(ctx).
		Where("name = ?", name).
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].Seq, nil
}

func (r *repo) InsertCustomer(ctx context.Context, db *gorm.DB, customer *domain.Customer) error {
	err := db.WithContext(ctx).Create(customer).Error
	if err == nil {
		return nil
	}
	if pkgdb.IsDuplicateKeyErr(err) {
		return fmt.Errorf("%w: %v", domain.ErrDuplicateKey, err)
	}
	return err
}

func (r *repo) FindByClienteID(ctx context.Context, db *gorm.DB, clienteID string) (*domain.Customer, error) {
	return r.findOne(ctx, db, "cliente_id = ?", clienteID)
}

func (r *repo) FindByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.Customer, error) {
	return r.findOne(ctx, db, "email = ?", email)
}

func (r *repo) FindByDocument(ctx context.Context, db *gorm.DB, document string) (*domain.Customer, error) {
	return r.findOne(ctx, db, "document = ?", document)
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, query string, arg any) (*domain.Customer, error) {
	var customer domain.Customer
	err := db.WithContext(ctx).Where(query, arg).Take(&customer).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListCustomerFilter, limit int) ([]*domain.Customer, error) {
	var customers []*domain.Customer
	stmt := db.WithContext(ctx).Model(&domain.Customer{})
	if filter.Name != "" {
		stmt = stmt.Where("name = ?", filter.Name)
	}
	if filter.Email != "" {
		stmt = stmt.Where("email = ?", filter.Email)
	}
	if filter.Active != nil {
		stmt = stmt.Where("active = ?", *filter.Active)
	}
	if filter.BeforeID > 0 {
		stmt = stmt.Where("id < ?", filter.BeforeID)
	}
	if limit > 0 {
		stmt = stmt.Limit(limit)
	}
	err := stmt.
		Order("id desc").
		Find(&customers).Error
	if err != nil {
		return nil, err
	}
	return customers, nil
}

func (r *repo) Transaction(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	if !r.transactions {
		return domain.ErrTransactionsUnsupported
	}

	err := db.WithContext(ctx).Transaction(fn)
	if err == nil || errors.Is(err, domain.ErrDuplicateKey) {
		return err
	}
	if errors.Is(err, domain.ErrTransactionsUnsupported) {
		return err
	}
	if pkgdb.IsTransactionUnsupportedErr(err) {
		return fmt.Errorf("%w: %v", domain.ErrTransactionsUnsupported, err)
	}
	return err
}
