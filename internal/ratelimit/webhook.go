package ratelimit

import (
	"context"
	"fmt"
	"strings"

	"github.com/glitchidea/glichflow/internal/config"
	redis "github.com/redis/go-redis/v9"
)

const keyWebhookRepository = "glichflow:webhook:repo:%s"

// WebhookLimiter throttles GitHub deliveries per repository so a burst of
// events for one repository cannot starve the others.
type WebhookLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
}

// NewWebhookLimiter returns nil when redis is missing or the configured rate
// is not positive; a nil limiter allows everything.
func NewWebhookLimiter(client *redis.Client, cfg config.Config) *WebhookLimiter {
	limitCfg := cfg.RateLimit
	if client == nil || limitCfg.WebhookRate <= 0 || limitCfg.WebhookBurst <= 0 {
		return nil
	}
	return &WebhookLimiter{
		bucket: NewTokenBucket(client),
		rate:   limitCfg.WebhookRate,
		burst:  limitCfg.WebhookBurst,
	}
}

func (l *WebhookLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

// AllowRepository consumes one token for owner/name.
func (l *WebhookLimiter) AllowRepository(ctx context.Context, owner, name string) (*RateLimitResult, error) {
	if !l.Enabled() {
		return &RateLimitResult{Allowed: true}, nil
	}
	return l.bucket.Take(ctx, WebhookRepositoryKey(owner, name), l.rate, l.burst)
}

func WebhookRepositoryKey(owner, name string) string {
	repository := strings.ToLower(strings.TrimSpace(owner) + "/" + strings.TrimSpace(name))
	return fmt.Sprintf(keyWebhookRepository, repository)
}
