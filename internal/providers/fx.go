package providers

import (
	"github.com/glitchidea/glichflow/internal/providers/pdf"
	"go.uber.org/fx"
)

var Module = fx.Module("providers",
	pdf.Module,
)
