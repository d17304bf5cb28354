package seed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/panucci/internal/config"
	customerdomain "github.com/smallbiznis/panucci/internal/customer/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type bootReconciler interface {
	ReconcileOnBoot(ctx context.Context) (int64, error)
}

// Bootstrap prepares a freshly migrated store: the operator record and a
// counter that matches the identifiers already issued.
func Bootstrap(ctx context.Context, db *gorm.DB, genID *snowflake.Node, repo customerdomain.Repository, cfg config.BootstrapConfig, customers customerdomain.Allocator, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("seed")

	if cfg.EnsureAdmin {
		created, err := EnsureAdmin(ctx, db, genID, repo, cfg)
		if err != nil {
			return err
		}
		if created {
			log.Info("operator record created", zap.String("cliente_id", customerdomain.AdminClienteID))
		}
	}

	if cfg.ResyncOnStart && customers != nil {
		seq, err := reconcile(ctx, customers)
		if err != nil {
			return err
		}
		log.Info("customer counter synchronized", zap.Int64("seq", seq))
	}
	return nil
}

func reconcile(ctx context.Context, customers customerdomain.Allocator) (int64, error) {
	if r, ok := customers.(bootReconciler); ok {
		return r.ReconcileOnBoot(ctx)
	}
	return customers.Reconcile(ctx)
}

// EnsureAdmin inserts the ADMIN customer when neither its identifier nor its
// document is on record. It reports whether a row was created.
func EnsureAdmin(ctx context.Context, db *gorm.DB, genID *snowflake.Node, repo customerdomain.Repository, cfg config.BootstrapConfig) (bool, error) {
	if db == nil || genID == nil || repo == nil {
		return false, errors.New("seed requires a database handle, repository and id generator")
	}

	doc := strings.TrimSpace(cfg.AdminDocument)
	created := false
	ensure := func(tx *gorm.DB) error {
		created = false
		existing, err := repo.FindByClienteID(ctx, tx, customerdomain.AdminClienteID)
		if err != nil {
			return err
		}
		if existing != nil {
			return nil
		}
		if doc != "" {
			holder, err := repo.FindByDocument(ctx, tx, doc)
			if err != nil {
				return err
			}
			if holder != nil {
				return nil
			}
		}

		now := time.Now().UTC()
		admin := customerdomain.Customer{
			ID:           genID.Generate(),
			ClienteID:    customerdomain.AdminClienteID,
			Name:         defaultString(cfg.AdminName, "administrador"),
			Email:        strings.ToLower(defaultString(cfg.AdminEmail, "admin@admin.com")),
			RegisteredAt: now,
			Active:       true,
			UpdatedAt:    now,
		}
		if doc != "" {
			admin.Document = &doc
		}
		if err := repo.InsertCustomer(ctx, tx, &admin); err != nil {
			return err
		}
		created = true
		return nil
	}

	err := repo.Transaction(ctx, db, ensure)
	if errors.Is(err, customerdomain.ErrTransactionsUnsupported) {
		err = ensure(db)
	}
	// Another instance seeded the record first.
	if errors.Is(err, customerdomain.ErrDuplicateKey) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("ensure admin: %w", err)
	}
	return created, nil
}

func defaultString(v, def string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return def
}
