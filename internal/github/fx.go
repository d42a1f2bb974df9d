package github

import (
	"github.com/glitchidea/glichflow/internal/events"
	githubdomain "github.com/glitchidea/glichflow/internal/github/domain"
	"github.com/glitchidea/glichflow/internal/github/repository"
	"github.com/glitchidea/glichflow/internal/github/service"
	"go.uber.org/fx"
)

var Module = fx.Module("github.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Invoke(subscribeMirror),
)

func subscribeMirror(sub events.Subscriber, svc githubdomain.Service) error {
	return sub.Subscribe(events.TopicMessageCreated, "github.mirror", svc.MirrorMessage)
}
