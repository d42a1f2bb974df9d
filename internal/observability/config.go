package observability

import (
	"strings"

	"github.com/glitchidea/glichflow/internal/config"
	"github.com/glitchidea/glichflow/internal/observability/logger"
	"github.com/glitchidea/glichflow/internal/observability/metrics"
	"github.com/glitchidea/glichflow/internal/observability/tracing"
)

// Config is the slice of application configuration the telemetry stack
// needs, resolved once so the logger, tracer and meter agree on identity.
type Config struct {
	ServiceName string
	Environment string
	Version     string
	Development bool

	Telemetry config.TelemetryConfig
}

func LoadConfig(cfg config.Config) Config {
	name := strings.TrimSpace(cfg.AppName)
	if name == "" {
		name = "glichflow"
	}
	return Config{
		ServiceName: name,
		Environment: strings.TrimSpace(cfg.Environment),
		Version:     strings.TrimSpace(cfg.AppVersion),
		Development: cfg.IsDevelopment(),
		Telemetry:   cfg.Telemetry,
	}
}

// Debug turns on console-friendly logs and gin debug mode.
func (c Config) Debug() bool {
	return c.Development || c.Telemetry.LogLevel == "debug"
}

func (c Config) Logger() logger.Config {
	return logger.Config{
		ServiceName:         c.ServiceName,
		Environment:         c.Environment,
		Version:             c.Version,
		Level:               c.Telemetry.LogLevel,
		Format:              c.Telemetry.LogFormat,
		Debug:               c.Debug(),
		IncludeCaller:       true,
		IncludeStackOnError: c.Debug(),
	}
}

func (c Config) Tracing() tracing.Config {
	return tracing.Config{
		Enabled:          c.Telemetry.OTLPEnabled,
		ServiceName:      c.ServiceName,
		ServiceVersion:   c.Version,
		Environment:      c.Environment,
		ExporterEndpoint: c.Telemetry.OTLPEndpoint,
		ExporterProtocol: c.Telemetry.OTLPProtocol,
		SamplingRatio:    c.Telemetry.SamplingRatio,
	}
}

func (c Config) Metrics() metrics.Config {
	return metrics.Config{
		Enabled:          c.Telemetry.OTLPEnabled,
		ExporterEndpoint: c.Telemetry.OTLPEndpoint,
		ExporterProtocol: c.Telemetry.OTLPProtocol,
		ServiceName:      c.ServiceName,
		Environment:      c.Environment,
	}
}
