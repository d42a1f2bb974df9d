package storage

import (
	"context"
	"time"

	"github.com/glitchidea/glichflow/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("storage",
	fx.Provide(New),
)

// New picks MinIO when an endpoint is configured and falls back to the
// in-process store otherwise.
func New(cfg config.Config, log *zap.Logger) (ObjectStore, error) {
	log = log.Named("storage")
	if cfg.Storage.Endpoint == "" {
		if cfg.IsProduction() {
			log.Warn("object storage endpoint not configured, files are kept in memory")
		}
		return NewMemoryStore(), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return NewMinIOStore(ctx, cfg.Storage, log)
}
