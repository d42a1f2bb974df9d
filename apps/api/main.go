package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/glitchidea/glichflow/internal/authorization"
	"github.com/glitchidea/glichflow/internal/catalog"
	"github.com/glitchidea/glichflow/internal/clock"
	"github.com/glitchidea/glichflow/internal/communication"
	"github.com/glitchidea/glichflow/internal/config"
	"github.com/glitchidea/glichflow/internal/events"
	"github.com/glitchidea/glichflow/internal/github"
	"github.com/glitchidea/glichflow/internal/migration"
	"github.com/glitchidea/glichflow/internal/observability"
	"github.com/glitchidea/glichflow/internal/providers"
	"github.com/glitchidea/glichflow/internal/ratelimit"
	"github.com/glitchidea/glichflow/internal/sale"
	"github.com/glitchidea/glichflow/internal/server"
	"github.com/glitchidea/glichflow/internal/storage"
	"github.com/glitchidea/glichflow/internal/task"
	"github.com/glitchidea/glichflow/internal/user"
	"github.com/glitchidea/glichflow/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		events.Module,
		migration.Module,

		// Webhook throttling and uploads
		ratelimit.Module,
		storage.Module,
		providers.Module,

		user.Module,
		authorization.Module,
		catalog.Module,
		sale.Module,
		task.Module,
		communication.Module,
		github.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
