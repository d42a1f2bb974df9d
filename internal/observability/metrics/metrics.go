package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	quotesComputed   metric.Int64Counter
	saleRecomputes   metric.Int64Counter
	githubSyncs      metric.Int64Counter
	messagesMirrored metric.Int64Counter
	webhookEvents    metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "glichflow"
	}
	meter := provider.Meter(name)

	quotesComputed, err := meter.Int64Counter("glichflow_quotes_computed_total")
	if err != nil {
		return nil, err
	}
	saleRecomputes, err := meter.Int64Counter("glichflow_sale_recomputes_total")
	if err != nil {
		return nil, err
	}
	githubSyncs, err := meter.Int64Counter("glichflow_github_syncs_total")
	if err != nil {
		return nil, err
	}
	messagesMirrored, err := meter.Int64Counter("glichflow_messages_mirrored_total")
	if err != nil {
		return nil, err
	}
	webhookEvents, err := meter.Int64Counter("glichflow_github_webhook_events_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		quotesComputed:   quotesComputed,
		saleRecomputes:   saleRecomputes,
		githubSyncs:      githubSyncs,
		messagesMirrored: messagesMirrored,
		webhookEvents:    webhookEvents,
	}, nil
}

// NewNop returns instruments backed by the noop provider. Handy in tests.
func NewNop() *Metrics {
	m, _ := New(Config{}, noop.NewMeterProvider())
	return m
}

// RecordQuoteComputed counts quote previews.
func (m *Metrics) RecordQuoteComputed(ctx context.Context) {
	if m == nil {
		return
	}
	m.quotesComputed.Add(ctx, 1)
}

// RecordSaleRecompute counts totals recomputations by the child that triggered it.
func (m *Metrics) RecordSaleRecompute(ctx context.Context, source string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("source", strings.TrimSpace(source)))
	m.saleRecomputes.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordGitHubSync counts reconciler operations by outcome.
func (m *Metrics) RecordGitHubSync(ctx context.Context, operation string, success bool) {
	if m == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	attrs := FilterAttributes(
		attribute.String("operation", strings.TrimSpace(operation)),
		attribute.String("outcome", outcome),
	)
	m.githubSyncs.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordMessageMirrored counts local messages pushed to GitHub as comments.
func (m *Metrics) RecordMessageMirrored(ctx context.Context) {
	if m == nil {
		return
	}
	m.messagesMirrored.Add(ctx, 1)
}

// RecordWebhookEvent counts accepted webhook deliveries by event type.
func (m *Metrics) RecordWebhookEvent(ctx context.Context, eventType string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("event_type", strings.TrimSpace(eventType)))
	m.webhookEvents.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"source":      {},
	"operation":   {},
	"outcome":     {},
	"event_type":  {},
	"status_code": {},
	"endpoint":    {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
