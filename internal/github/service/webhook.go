package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	githubdomain "github.com/glitchidea/glichflow/internal/github/domain"
	"github.com/glitchidea/glichflow/internal/github/webhook"
	"go.uber.org/zap"
)

// HandleWebhook verifies the delivery signature before decoding anything and
// then routes the event through the same upsert paths as a pull sync.
func (s *Service) HandleWebhook(ctx context.Context, req githubdomain.WebhookRequest) (githubdomain.Result, error) {
	log := s.log.With(zap.String("event", req.Event), zap.String("delivery_id", req.DeliveryID))
	if err := webhook.Verify(s.cfg.WebhookSecret, req.Signature, req.Body); err != nil {
		log.Warn("webhook rejected", zap.Error(err))
		return githubdomain.Result{}, githubdomain.ErrInvalidSignature
	}

	event := strings.ToLower(strings.TrimSpace(req.Event))
	s.metrics.RecordWebhookEvent(ctx, event)

	switch event {
	case webhook.EventPing:
		return githubdomain.Ok("pong"), nil
	case webhook.EventIssues:
		var payload webhook.IssuesPayload
		if err := json.Unmarshal(req.Body, &payload); err != nil {
			return githubdomain.Result{}, githubdomain.ErrInvalidPayload
		}
		return s.handleIssueEvent(ctx, payload)
	case webhook.EventIssueComment:
		var payload webhook.IssueCommentPayload
		if err := json.Unmarshal(req.Body, &payload); err != nil {
			return githubdomain.Result{}, githubdomain.ErrInvalidPayload
		}
		return s.handleCommentEvent(ctx, payload)
	case webhook.EventPush:
		var payload webhook.PushPayload
		if err := json.Unmarshal(req.Body, &payload); err != nil {
			return githubdomain.Result{}, githubdomain.ErrInvalidPayload
		}
		repository, err := s.repo.FindRepositoryByName(ctx, s.db, payload.Repository.Owner.Login, payload.Repository.Name)
		if err != nil {
			return githubdomain.Result{}, err
		}
		if repository == nil {
			return githubdomain.Ok("repository not tracked"), nil
		}
		if err := s.repo.TouchRepository(ctx, s.db, repository.ID, s.clock.Now()); err != nil {
			return githubdomain.Result{}, err
		}
		return githubdomain.Ok("repository touched"), nil
	default:
		log.Debug("webhook event ignored")
		return githubdomain.Ok("event ignored"), nil
	}
}

func (s *Service) handleIssueEvent(ctx context.Context, payload webhook.IssuesPayload) (githubdomain.Result, error) {
	repository, err := s.repo.FindRepositoryByName(ctx, s.db, payload.Repository.Owner.Login, payload.Repository.Name)
	if err != nil {
		return githubdomain.Result{}, err
	}
	if repository == nil {
		return githubdomain.Ok("repository not tracked"), nil
	}
	if payload.Issue.Number <= 0 {
		return githubdomain.Result{}, githubdomain.ErrInvalidPayload
	}
	if payload.Issue.IsPullRequest() {
		return githubdomain.Ok("pull request ignored"), nil
	}
	if payload.Action == "deleted" {
		return githubdomain.Ok("issue deletion ignored"), nil
	}

	outcome, err := s.upsertIssue(ctx, repository, &payload.Issue)
	if err != nil {
		return githubdomain.Result{}, err
	}
	s.publishStatusChange(ctx, outcome.change)
	if outcome.created {
		return githubdomain.Ok(fmt.Sprintf("imported %s#%d", repository.FullName(), payload.Issue.Number)), nil
	}
	return githubdomain.Ok(fmt.Sprintf("updated %s#%d", repository.FullName(), payload.Issue.Number)), nil
}

func (s *Service) handleCommentEvent(ctx context.Context, payload webhook.IssueCommentPayload) (githubdomain.Result, error) {
	repository, err := s.repo.FindRepositoryByName(ctx, s.db, payload.Repository.Owner.Login, payload.Repository.Name)
	if err != nil {
		return githubdomain.Result{}, err
	}
	if repository == nil {
		return githubdomain.Ok("repository not tracked"), nil
	}
	if payload.Issue.Number <= 0 || payload.Comment.ID <= 0 {
		return githubdomain.Result{}, githubdomain.ErrInvalidPayload
	}
	if payload.Issue.IsPullRequest() {
		return githubdomain.Ok("pull request ignored"), nil
	}
	if payload.Action == "deleted" {
		return githubdomain.Ok("comment deletion ignored"), nil
	}

	issue, err := s.repo.FindIssueByNumber(ctx, s.db, repository.ID, payload.Issue.Number)
	if err != nil {
		return githubdomain.Result{}, err
	}
	if issue == nil {
		outcome, err := s.upsertIssue(ctx, repository, &payload.Issue)
		if err != nil {
			return githubdomain.Result{}, err
		}
		issue = outcome.issue
	}

	thread, err := s.issueThread(ctx, issue)
	if err != nil {
		return githubdomain.Result{}, err
	}
	outcome, err := s.upsertComment(ctx, issue, thread, &payload.Comment)
	if err != nil {
		return githubdomain.Result{}, err
	}
	switch {
	case outcome.created:
		s.publishImported(ctx, thread, outcome.message)
		return githubdomain.Ok("comment imported"), nil
	case outcome.updated:
		return githubdomain.Ok("comment updated"), nil
	}
	return githubdomain.Ok("comment unchanged"), nil
}
