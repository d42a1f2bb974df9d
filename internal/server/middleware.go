package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/glitchidea/glichflow/internal/authorization"
	obscontext "github.com/glitchidea/glichflow/internal/observability/context"
	"github.com/glitchidea/glichflow/internal/observability/logger"
	"go.uber.org/zap"
)

const (
	contextUserIDKey = "user_id"
	bearerPrefix     = "bearer "
)

// Authenticated resolves the bearer token to a user and stores the user's
// capability set on the request context.
func (s *Server) Authenticated() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		ctx := c.Request.Context()
		user, err := s.userSvc.Authenticate(ctx, token)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		if !user.IsActive {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		caps, err := s.resolver.Resolve(ctx, user.ID)
		if err != nil {
			logger.FromContext(ctx).Error("resolve capabilities", zap.String("user_id", user.ID.String()), zap.Error(err))
			AbortWithError(c, err)
			return
		}

		ctx = authorization.WithCapabilities(ctx, caps)
		ctx = obscontext.WithActor(ctx, obscontext.ActorTypeUser, user.ID.String())
		c.Request = c.Request.WithContext(ctx)
		c.Set(contextUserIDKey, user.ID.String())
		c.Next()
	}
}

// RequireCapability rejects the request unless every capability is held.
func RequireCapability(caps ...authorization.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		set := authorization.CapabilitiesFromContext(c.Request.Context())
		if err := set.Require(caps...); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if len(header) <= len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	return token, token != ""
}

func currentUserID(c *gin.Context) (snowflake.ID, error) {
	raw := strings.TrimSpace(c.GetString(contextUserIDKey))
	if raw == "" {
		return 0, ErrUnauthorized
	}
	id, err := snowflake.ParseString(raw)
	if err != nil || id == 0 {
		return 0, ErrUnauthorized
	}
	return id, nil
}

func hasCapability(c *gin.Context, capability authorization.Capability) bool {
	return authorization.CapabilitiesFromContext(c.Request.Context()).Has(capability)
}
