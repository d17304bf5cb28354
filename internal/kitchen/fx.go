package kitchen

import (
	"github.com/smallbiznis/panucci/internal/kitchen/repository"
	"github.com/smallbiznis/panucci/internal/kitchen/service"
	"go.uber.org/fx"
)

var Module = fx.Module("kitchen.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
