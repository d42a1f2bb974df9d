package task

import (
	"github.com/glitchidea/glichflow/internal/task/repository"
	"github.com/glitchidea/glichflow/internal/task/service"
	"go.uber.org/fx"
)

var Module = fx.Module("task.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
