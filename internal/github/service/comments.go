package service

import (
	"context"
	"fmt"
	"time"

	commdomain "github.com/glitchidea/glichflow/internal/communication/domain"
	commservice "github.com/glitchidea/glichflow/internal/communication/service"
	"github.com/glitchidea/glichflow/internal/events"
	"github.com/glitchidea/glichflow/internal/github/client"
	githubdomain "github.com/glitchidea/glichflow/internal/github/domain"
	"github.com/glitchidea/glichflow/pkg/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	opSyncComments = "sync_comments"
	opMirror       = "mirror_message"
)

type commentOutcome struct {
	created bool
	updated bool
	message *commdomain.Message
}

func (s *Service) SyncIssueComments(ctx context.Context, issueID string) (githubdomain.CommentSummary, githubdomain.Result) {
	var summary githubdomain.CommentSummary

	id, err := parseID(issueID)
	if err != nil {
		return summary, githubdomain.Fail("invalid issue id")
	}
	issue, err := s.repo.FindIssueByID(ctx, s.db, id)
	if err != nil {
		return summary, s.record(ctx, opSyncComments, githubdomain.Fail("load issue: "+err.Error()))
	}
	if issue == nil {
		return summary, githubdomain.Fail("issue not found")
	}
	repository, err := s.repo.FindRepositoryByID(ctx, s.db, issue.RepositoryID)
	if err != nil || repository == nil {
		return summary, s.record(ctx, opSyncComments, githubdomain.Fail("repository of issue not found"))
	}
	thread, err := s.issueThread(ctx, issue)
	if err != nil {
		return summary, s.record(ctx, opSyncComments, githubdomain.Fail("load task thread: "+err.Error()))
	}
	cl, err := s.clientFor(ctx, repository, nil)
	if err != nil {
		return summary, s.record(ctx, opSyncComments, githubdomain.Fail(err.Error()))
	}

	comments, err := s.fetchComments(ctx, cl, repository, issue.IssueNumber)
	if err != nil {
		return summary, s.record(ctx, opSyncComments, githubdomain.Fail(fmt.Sprintf("list comments of #%d: %v", issue.IssueNumber, err)))
	}

	for i := range comments {
		outcome, err := s.upsertComment(ctx, issue, thread, &comments[i])
		if err != nil {
			summary.Failed++
			s.log.Error("sync comment failed",
				zap.String("issue_id", issue.ID.String()),
				zap.Int64("comment_id", comments[i].ID),
				zap.Error(err),
			)
			continue
		}
		switch {
		case outcome.created:
			summary.Created++
			s.publishImported(ctx, thread, outcome.message)
		case outcome.updated:
			summary.Updated++
		default:
			summary.Unchanged++
		}
	}

	now := s.clock.Now()
	issue.LastSyncedAt = &now
	issue.UpdatedAt = now
	if err := s.repo.UpdateIssue(ctx, s.db, issue); err != nil {
		s.log.Warn("touch issue failed", zap.String("issue_id", issue.ID.String()), zap.Error(err))
	}

	message := fmt.Sprintf("comments of %s#%d: %d created, %d updated, %d unchanged, %d failed",
		repository.FullName(), issue.IssueNumber, summary.Created, summary.Updated, summary.Unchanged, summary.Failed)
	if summary.Failed > 0 {
		return summary, s.record(ctx, opSyncComments, githubdomain.Fail(message))
	}
	return summary, s.record(ctx, opSyncComments, githubdomain.Ok(message))
}

func (s *Service) fetchComments(ctx context.Context, cl *client.Client, repository *githubdomain.Repository, number int) ([]client.Comment, error) {
	perPage := s.syncCfg.Get().ImportPageSize
	var comments []client.Comment
	for page := 1; page <= maxImportPages; page++ {
		batch, err := cl.ListComments(ctx, repository.Owner, repository.Name, number, page, perPage)
		if err != nil {
			return nil, err
		}
		comments = append(comments, batch...)
		if len(batch) < perPage {
			break
		}
	}
	return comments, nil
}

func (s *Service) issueThread(ctx context.Context, issue *githubdomain.Issue) (*commdomain.Thread, error) {
	task, err := s.taskRepo.FindTaskByID(ctx, s.db, issue.TaskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, fmt.Errorf("task %s not found", issue.TaskID)
	}
	return commservice.EnsureTaskThread(ctx, s.db, s.commRepo, s.genID, task, s.clock)
}

// upsertComment mirrors one remote comment into the task thread. New comments
// append a message; edited comments rewrite the message body in place.
func (s *Service) upsertComment(ctx context.Context, issue *githubdomain.Issue, thread *commdomain.Thread, remote *client.Comment) (commentOutcome, error) {
	var out commentOutcome
	remoteUpdated := remote.UpdatedAt.UTC()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		out = commentOutcome{}
		now := s.clock.Now()

		existing, err := s.repo.FindComment(ctx, tx, issue.ID, remote.ID)
		if err != nil {
			return err
		}
		if existing == nil {
			adopted, err := s.adoptPending(ctx, tx, issue, remote, now)
			if err != nil || adopted != nil {
				return err
			}
			row := &githubdomain.IssueComment{
				ID:              s.genID.Generate(),
				GitHubIssueID:   issue.ID,
				CommentID:       remote.ID,
				MessageID:       s.genID.Generate(),
				AuthorLogin:     remote.User.Login,
				RemoteUpdatedAt: &remoteUpdated,
				CreatedAt:       now,
				UpdatedAt:       now,
			}
			inserted, err := s.repo.InsertComment(ctx, tx, row)
			if err != nil {
				return err
			}
			if inserted {
				msg := &commdomain.Message{
					ID:         row.MessageID,
					ThreadID:   thread.ID,
					SenderName: remote.User.Login,
					Body:       remote.Body,
					Source:     events.MessageSourceGitHub,
					CreatedAt:  now,
					UpdatedAt:  now,
				}
				if err := s.commRepo.InsertMessage(ctx, tx, msg); err != nil {
					return err
				}
				out.created = true
				out.message = msg
				return nil
			}
			existing, err = s.repo.FindComment(ctx, tx, issue.ID, remote.ID)
			if err != nil {
				return err
			}
			if existing == nil {
				return fmt.Errorf("comment %d not found after conflict", remote.ID)
			}
		}

		if !commentChanged(existing, remoteUpdated) {
			return nil
		}
		msg, err := s.commRepo.FindMessageByID(ctx, tx, existing.MessageID)
		if err != nil {
			return err
		}
		if msg != nil {
			msg.Body = remote.Body
			msg.UpdatedAt = now
			if err := s.commRepo.UpdateMessageBody(ctx, tx, msg); err != nil {
				return err
			}
		}
		existing.AuthorLogin = remote.User.Login
		existing.RemoteUpdatedAt = &remoteUpdated
		existing.UpdatedAt = now
		out.updated = true
		return s.repo.UpdateComment(ctx, tx, existing)
	})
	return out, err
}

func mirrorBody(sender, body string) string {
	return fmt.Sprintf("**%s** wrote:\n\n%s", sender, body)
}

// adoptPending binds remote to a mirror claim on the same issue whose message
// renders to the same body. It returns nil when no claim matches.
func (s *Service) adoptPending(ctx context.Context, tx *gorm.DB, issue *githubdomain.Issue, remote *client.Comment, now time.Time) (*githubdomain.IssueComment, error) {
	pending, err := s.repo.ListPendingComments(ctx, tx, issue.ID)
	if err != nil || len(pending) == 0 {
		return nil, err
	}
	for i := range pending {
		msg, err := s.commRepo.FindMessageByID(ctx, tx, pending[i].MessageID)
		if err != nil {
			return nil, err
		}
		if msg == nil || mirrorBody(msg.SenderName, msg.Body) != remote.Body {
			continue
		}
		remoteUpdated := remote.UpdatedAt.UTC()
		link := pending[i]
		link.CommentID = remote.ID
		link.AuthorLogin = remote.User.Login
		link.RemoteUpdatedAt = &remoteUpdated
		link.UpdatedAt = now
		if err := s.repo.UpdateComment(ctx, tx, &link); err != nil {
			return nil, err
		}
		return &link, nil
	}
	return nil, nil
}

func commentChanged(existing *githubdomain.IssueComment, remoteUpdated time.Time) bool {
	if existing.RemoteUpdatedAt == nil {
		return true
	}
	return remoteUpdated.After(*existing.RemoteUpdatedAt)
}

func (s *Service) publishImported(ctx context.Context, thread *commdomain.Thread, msg *commdomain.Message) {
	if msg == nil {
		return
	}
	s.events.Publish(ctx, events.MessageCreated{
		MessageID: msg.ID,
		ThreadID:  msg.ThreadID,
		TaskID:    thread.TaskID,
		Sender:    msg.SenderName,
		Body:      msg.Body,
		Source:    msg.Source,
	})
}

// MirrorMessage posts a local message from a task thread as a comment on the
// linked issue. Messages that came from GitHub are never sent back.
func (s *Service) MirrorMessage(ctx context.Context, env events.Envelope) error {
	event, ok := env.Event.(events.MessageCreated)
	if !ok || event.Source == events.MessageSourceGitHub || event.TaskID == nil {
		return nil
	}

	issue, err := s.repo.FindIssueByTask(ctx, s.db, *event.TaskID)
	if err != nil {
		return err
	}
	if issue == nil {
		return nil
	}
	mirrored, err := s.repo.FindCommentByMessage(ctx, s.db, event.MessageID)
	if err != nil {
		return err
	}
	if mirrored != nil {
		return nil
	}

	repository, err := s.repo.FindRepositoryByID(ctx, s.db, issue.RepositoryID)
	if err != nil || repository == nil {
		return err
	}
	cl, err := s.clientFor(ctx, repository, nil)
	if err != nil {
		s.record(ctx, opMirror, githubdomain.Fail(err.Error()))
		return nil
	}

	// Claim the link before posting so an issue_comment delivery racing the
	// POST adopts this row instead of importing our own comment.
	now := s.clock.Now()
	link := &githubdomain.IssueComment{
		ID:            s.genID.Generate(),
		GitHubIssueID: issue.ID,
		CommentID:     githubdomain.PendingCommentID(event.MessageID),
		MessageID:     event.MessageID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	claimed, err := s.repo.InsertComment(ctx, s.db, link)
	if err != nil && !db.IsDuplicateKeyErr(err) {
		return fmt.Errorf("claim mirrored comment: %w", err)
	}
	if !claimed {
		return nil
	}

	remote, err := cl.CreateComment(ctx, repository.Owner, repository.Name, issue.IssueNumber, mirrorBody(event.Sender, event.Body))
	if err != nil {
		if delErr := s.repo.DeleteComment(ctx, s.db, link.ID); delErr != nil {
			s.log.Warn("release mirror claim failed", zap.String("message_id", event.MessageID.String()), zap.Error(delErr))
		}
		s.record(ctx, opMirror, githubdomain.Fail(fmt.Sprintf("comment on #%d: %v", issue.IssueNumber, err)))
		return nil
	}

	remoteUpdated := remote.UpdatedAt.UTC()
	link.CommentID = remote.ID
	link.AuthorLogin = remote.User.Login
	link.RemoteUpdatedAt = &remoteUpdated
	link.UpdatedAt = s.clock.Now()
	if err := s.repo.UpdateComment(ctx, s.db, link); err != nil {
		return fmt.Errorf("save mirrored comment: %w", err)
	}
	s.metrics.RecordMessageMirrored(ctx)
	s.record(ctx, opMirror, githubdomain.Ok("mirrored"))
	return nil
}
