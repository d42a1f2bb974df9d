package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	githubdomain "github.com/glitchidea/glichflow/internal/github/domain"
	"github.com/glitchidea/glichflow/internal/github/webhook"
	obscontext "github.com/glitchidea/glichflow/internal/observability/context"
	"github.com/glitchidea/glichflow/internal/observability/logger"
	"go.uber.org/zap"
)

// maxWebhookBytes matches GitHub's own payload cap.
const maxWebhookBytes = 25 << 20

type webhookRateLimitKey struct {
	Repository webhook.Repository `json:"repository"`
}

// WebhookRateLimit throttles signed deliveries per repository. Bodies without
// a repository (ping from an org hook) pass through. Unsigned or forged
// deliveries never spend a token.
func (s *Server) WebhookRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := readWebhookBody(c)
		if err != nil {
			AbortWithError(c, webhookReadError(err))
			return
		}
		if s.limiter == nil {
			c.Next()
			return
		}

		owner, name := webhookRepository(body)
		if owner == "" || name == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		if err := webhook.Verify(s.cfg.GitHub.WebhookSecret, c.GetHeader(webhook.SignatureHeader), body); err != nil {
			logger.FromContext(ctx).Warn("webhook signature rejected before rate limit", zap.Error(err))
			AbortWithError(c, githubdomain.ErrInvalidSignature)
			return
		}

		result, err := s.limiter.AllowRepository(ctx, owner, name)
		if err != nil {
			logger.FromContext(ctx).Warn("webhook rate limit check failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if !result.Allowed {
			logger.FromContext(ctx).Warn("webhook rate limit exceeded",
				zap.String("owner", owner),
				zap.String("repository", name),
			)
			retry := int(math.Ceil(result.RetryAfter.Seconds()))
			if retry < 1 {
				retry = 1
			}
			c.Header("Retry-After", strconv.Itoa(retry))
			AbortWithError(c, ErrRateLimited)
			return
		}

		c.Next()
	}
}

// HandleGitHubWebhook answers 200 for every verified delivery, including
// ignored events, so GitHub does not retry them.
func (s *Server) HandleGitHubWebhook(c *gin.Context) {
	body, err := readWebhookBody(c)
	if err != nil {
		AbortWithError(c, webhookReadError(err))
		return
	}

	ctx := obscontext.WithActor(c.Request.Context(), obscontext.ActorTypeWebhook, "github")
	result, err := s.githubSvc.HandleWebhook(ctx, githubdomain.WebhookRequest{
		Event:      strings.TrimSpace(c.GetHeader(webhook.EventHeader)),
		DeliveryID: strings.TrimSpace(c.GetHeader(webhook.DeliveryHeader)),
		Signature:  strings.TrimSpace(c.GetHeader(webhook.SignatureHeader)),
		Body:       body,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

// readWebhookBody reads the body once and puts it back for the next reader.
func readWebhookBody(c *gin.Context) ([]byte, error) {
	if c.Request.Body == nil {
		return nil, nil
	}
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBytes))
	if err != nil {
		return nil, err
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(body))
	return body, nil
}

func webhookReadError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return ErrPayloadTooLarge
	}
	return invalidRequestError()
}

func webhookRepository(body []byte) (string, string) {
	if len(body) == 0 {
		return "", ""
	}
	var payload webhookRateLimitKey
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", ""
	}
	return strings.TrimSpace(payload.Repository.Owner.Login), strings.TrimSpace(payload.Repository.Name)
}
