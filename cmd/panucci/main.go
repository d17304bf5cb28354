package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/panucci/internal/clock"
	"github.com/smallbiznis/panucci/internal/config"
	"github.com/smallbiznis/panucci/internal/observability"
	"github.com/smallbiznis/panucci/internal/server"
	"github.com/smallbiznis/panucci/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}
