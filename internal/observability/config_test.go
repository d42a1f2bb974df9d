package observability

import (
	"testing"

	"github.com/glitchidea/glichflow/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestLoadConfig(t *testing.T) {
	cfg := LoadConfig(config.Config{
		Environment: "production",
		AppVersion:  " 1.2.0 ",
		Telemetry: config.TelemetryConfig{
			LogLevel:      "info",
			OTLPEnabled:   true,
			OTLPEndpoint:  "otel:4317",
			OTLPProtocol:  "grpc",
			SamplingRatio: 0.25,
		},
	})

	assert.Equal(t, "glichflow", cfg.ServiceName)
	assert.Equal(t, "1.2.0", cfg.Version)
	assert.False(t, cfg.Debug())

	tr := cfg.Tracing()
	assert.True(t, tr.Enabled)
	assert.Equal(t, "otel:4317", tr.ExporterEndpoint)
	assert.InDelta(t, 0.25, tr.SamplingRatio, 1e-9)
	assert.Equal(t, cfg.ServiceName, cfg.Metrics().ServiceName)

	dev := LoadConfig(config.Config{AppName: "glichflow-api", Environment: "local"})
	assert.True(t, dev.Debug())
	assert.True(t, dev.Logger().IncludeStackOnError)
	assert.Equal(t, "glichflow-api", dev.Logger().ServiceName)
}
