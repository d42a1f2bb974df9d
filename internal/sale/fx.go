package sale

import (
	"github.com/glitchidea/glichflow/internal/sale/repository"
	"github.com/glitchidea/glichflow/internal/sale/service"
	"go.uber.org/fx"
)

var Module = fx.Module("sale.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
