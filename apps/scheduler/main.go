package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/glitchidea/glichflow/internal/clock"
	"github.com/glitchidea/glichflow/internal/communication"
	"github.com/glitchidea/glichflow/internal/config"
	"github.com/glitchidea/glichflow/internal/events"
	"github.com/glitchidea/glichflow/internal/github"
	"github.com/glitchidea/glichflow/internal/observability"
	"github.com/glitchidea/glichflow/internal/ratelimit"
	"github.com/glitchidea/glichflow/internal/scheduler"
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

		// Job locks across replicas
		ratelimit.Module,

		// Domain services required by scheduler
		user.Module,
		task.Module,
		communication.Module,
		github.Module,

		// No server module!
		scheduler.Module,
	)
	app.Run()
}

// Node 2 keeps scheduler-generated IDs disjoint from the API process.
func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(2)
	if err != nil {
		panic(err)
	}
	return node
}
