package catalog

import (
	"github.com/glitchidea/glichflow/internal/catalog/repository"
	"github.com/glitchidea/glichflow/internal/catalog/service"
	"go.uber.org/fx"
)

var Module = fx.Module("catalog.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
