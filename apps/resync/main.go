package main

import (
	"context"
	"os"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/panucci/internal/clock"
	"github.com/smallbiznis/panucci/internal/config"
	"github.com/smallbiznis/panucci/internal/customer"
	customerdomain "github.com/smallbiznis/panucci/internal/customer/domain"
	"github.com/smallbiznis/panucci/internal/observability"
	"github.com/smallbiznis/panucci/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// resync realigns the customer identifier counter with the rows in the
// store and exits. It is safe to run next to a live service.
func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		customer.Module,
		fx.Invoke(func(svc customerdomain.Service, log *zap.Logger) error {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			seq, err := svc.Reconcile(ctx)
			if err != nil {
				log.Error("counter resync failed", zap.Error(err))
				return err
			}
			log.Info("counter resynced", zap.Int64("seq", seq))
			return nil
		}),
		fx.NopLogger,
	)

	startCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		os.Exit(1)
	}
	_ = app.Stop(context.Background())
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}
