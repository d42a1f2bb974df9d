package observability

import (
	"github.com/glitchidea/glichflow/internal/observability/logger"
	"github.com/glitchidea/glichflow/internal/observability/metrics"
	"github.com/glitchidea/glichflow/internal/observability/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
)

var Module = fx.Module("observability",
	fx.Provide(
		LoadConfig,
		Config.Logger,
		Config.Tracing,
		Config.Metrics,
		logger.New,
		tracing.NewProvider,
		metrics.NewProvider,
		metrics.New,
		metrics.NewHTTPMetrics,
		metrics.GitHub,
	),
	// Both have side effects only: the global tracer provider and the
	// scheduler collectors on the default registry.
	fx.Invoke(func(*sdktrace.TracerProvider) {}),
	fx.Invoke(metrics.SchedulerWithConfig),
)
