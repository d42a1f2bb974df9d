package user

import (
	"github.com/glitchidea/glichflow/internal/user/repository"
	"github.com/glitchidea/glichflow/internal/user/service"
	"go.uber.org/fx"
)

var Module = fx.Module("user.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
