package migration

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/panucci/internal/config"
	customerdomain "github.com/smallbiznis/panucci/internal/customer/domain"
	"github.com/smallbiznis/panucci/internal/seed"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, genID *snowflake.Node, cfg config.Config, repo customerdomain.Repository, customers customerdomain.Service, log *zap.Logger) error {
		if err := Apply(conn); err != nil {
			return err
		}
		return seed.Bootstrap(context.Background(), conn, genID, repo, cfg.Bootstrap, customers, log)
	}),
)
