package communication

import (
	commdomain "github.com/glitchidea/glichflow/internal/communication/domain"
	"github.com/glitchidea/glichflow/internal/communication/repository"
	"github.com/glitchidea/glichflow/internal/communication/service"
	store "github.com/glitchidea/glichflow/pkg/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("communication.service",
	fx.Provide(repository.Provide),
	fx.Provide(store.ProvideStore[commdomain.Notification]),
	fx.Provide(service.New),
)
