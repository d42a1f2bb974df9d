package migration

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/glitchidea/glichflow/internal/config"
	"github.com/glitchidea/glichflow/internal/seed"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, node *snowflake.Node, log *zap.Logger) error {
		if err := Apply(conn, cfg.DBType); err != nil {
			return err
		}
		if err := seed.EnsureDefaultTags(conn, node); err != nil {
			return err
		}
		if err := seed.EnsureAdmin(conn, node, cfg.Bootstrap); err != nil {
			return err
		}
		log.Info("schema ready", zap.String("db_type", cfg.DBType))
		return nil
	}),
)

// Apply migrates the schema for the given dialect.
func Apply(conn *gorm.DB, dbType string) error {
	switch strings.ToLower(strings.TrimSpace(dbType)) {
	case "", "postgres", "postgresql":
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	default:
		return AutoMigrate(conn)
	}
}
