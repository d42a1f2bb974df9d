package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glitchidea/glichflow/internal/events"
	"github.com/glitchidea/glichflow/internal/github/client"
	githubdomain "github.com/glitchidea/glichflow/internal/github/domain"
	taskdomain "github.com/glitchidea/glichflow/internal/task/domain"
	"github.com/glitchidea/glichflow/pkg/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const opSyncTask = "sync_task"

// SyncTaskWithIssue reconciles one task with its linked issue. A closed
// remote issue completes the task, reopening it moves a completed task back
// to in_progress, and otherwise the local title and description are pushed
// when they differ from the remote ones.
func (s *Service) SyncTaskWithIssue(ctx context.Context, taskID, credentialID string, createIfMissing bool) githubdomain.Result {
	id, err := parseID(taskID)
	if err != nil {
		return githubdomain.Fail("invalid task id")
	}
	var override *snowflake.ID
	if strings.TrimSpace(credentialID) != "" {
		credID, err := parseID(credentialID)
		if err != nil {
			return githubdomain.Fail("invalid credential id")
		}
		override = &credID
	}

	task, err := s.taskRepo.FindTaskByID(ctx, s.db, id)
	if err != nil {
		return s.record(ctx, opSyncTask, githubdomain.Fail("load task: "+err.Error()))
	}
	if task == nil {
		return githubdomain.Fail("task not found")
	}

	issue, err := s.repo.FindIssueByTask(ctx, s.db, task.ID)
	if err != nil {
		return s.record(ctx, opSyncTask, githubdomain.Fail("load issue link: "+err.Error()))
	}
	if issue == nil {
		if !createIfMissing {
			return githubdomain.Fail("task is not linked to a GitHub issue")
		}
		return s.record(ctx, opSyncTask, s.createIssueForTask(ctx, task, override))
	}
	return s.record(ctx, opSyncTask, s.syncLinkedTask(ctx, task, issue, override))
}

func (s *Service) syncLinkedTask(ctx context.Context, task *taskdomain.Task, issue *githubdomain.Issue, override *snowflake.ID) githubdomain.Result {
	repository, err := s.repo.FindRepositoryByID(ctx, s.db, issue.RepositoryID)
	if err != nil || repository == nil {
		return githubdomain.Fail("repository of linked issue not found")
	}
	cl, err := s.clientFor(ctx, repository, override)
	if err != nil {
		return githubdomain.Fail(err.Error())
	}

	remote, err := cl.GetIssue(ctx, repository.Owner, repository.Name, issue.IssueNumber)
	if err != nil {
		return githubdomain.Fail(fmt.Sprintf("fetch issue #%d: %v", issue.IssueNumber, err))
	}

	next, changed := remoteStatus(task.Status, remote.State)
	if !changed && remote.Title == task.Title && remote.Body == task.Description {
		if err := s.touchIssue(ctx, s.db, issue, remote); err != nil {
			return githubdomain.Fail("save issue link: " + err.Error())
		}
		return githubdomain.Ok(fmt.Sprintf("%s#%d already in sync", repository.FullName(), issue.IssueNumber))
	}
	if !changed {
		updated, err := cl.UpdateIssue(ctx, repository.Owner, repository.Name, issue.IssueNumber, client.IssueInput{
			Title: task.Title,
			Body:  task.Description,
		})
		if err != nil {
			return githubdomain.Fail(fmt.Sprintf("update issue #%d: %v", issue.IssueNumber, err))
		}
		if err := s.touchIssue(ctx, s.db, issue, updated); err != nil {
			return githubdomain.Fail("save issue link: " + err.Error())
		}
		return githubdomain.Ok(fmt.Sprintf("pushed task to %s#%d", repository.FullName(), issue.IssueNumber))
	}

	var change *events.TaskStatusChanged
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.taskRepo.FindTaskByID(ctx, tx, task.ID)
		if err != nil {
			return err
		}
		if current == nil {
			return fmt.Errorf("task %s disappeared", task.ID)
		}
		from := current.Status
		if current.SetStatus(next, s.clock.Now()) {
			if err := s.taskRepo.UpdateTask(ctx, tx, current); err != nil {
				return err
			}
			change = &events.TaskStatusChanged{TaskID: current.ID, From: string(from), To: string(next)}
		}
		return s.touchIssue(ctx, tx, issue, remote)
	})
	if err != nil {
		return githubdomain.Fail("save task: " + err.Error())
	}
	s.publishStatusChange(ctx, change)
	return githubdomain.Ok(fmt.Sprintf("task moved to %s from %s#%d", next, repository.FullName(), issue.IssueNumber))
}

func (s *Service) createIssueForTask(ctx context.Context, task *taskdomain.Task, override *snowflake.ID) githubdomain.Result {
	repository, err := s.repo.FindRepositoryByProject(ctx, s.db, task.ProjectID)
	if err != nil {
		return githubdomain.Fail("load repository: " + err.Error())
	}
	if repository == nil {
		return githubdomain.Fail("project has no linked GitHub repository")
	}
	cl, err := s.clientFor(ctx, repository, override)
	if err != nil {
		return githubdomain.Fail(err.Error())
	}

	remote, err := cl.CreateIssue(ctx, repository.Owner, repository.Name, client.IssueInput{
		Title: task.Title,
		Body:  task.Description,
	})
	if err != nil {
		return githubdomain.Fail("create issue: " + err.Error())
	}

	now := s.clock.Now()
	issue := &githubdomain.Issue{
		ID:           s.genID.Generate(),
		RepositoryID: repository.ID,
		IssueNumber:  remote.Number,
		TaskID:       task.ID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	applyRemote(issue, remote, now)
	inserted, err := s.repo.InsertIssue(ctx, s.db, issue)
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			s.log.Warn("task was linked concurrently, remote issue left unlinked",
				zap.String("task_id", task.ID.String()),
				zap.Int("issue_number", remote.Number),
			)
			return githubdomain.Ok("task already linked")
		}
		return githubdomain.Fail("save issue link: " + err.Error())
	}
	if !inserted {
		return githubdomain.Fail(fmt.Sprintf("issue #%d is already linked to another task", remote.Number))
	}
	return githubdomain.Ok(fmt.Sprintf("created %s#%d", repository.FullName(), remote.Number))
}

func (s *Service) touchIssue(ctx context.Context, tx *gorm.DB, issue *githubdomain.Issue, remote *client.Issue) error {
	now := s.clock.Now()
	applyRemote(issue, remote, now)
	issue.UpdatedAt = now
	return s.repo.UpdateIssue(ctx, tx, issue)
}

// remoteStatus maps the remote issue state onto the local task status.
func remoteStatus(local taskdomain.Status, remoteState string) (taskdomain.Status, bool) {
	switch strings.ToLower(remoteState) {
	case githubdomain.StateClosed:
		if local != taskdomain.StatusCompleted {
			return taskdomain.StatusCompleted, true
		}
	case githubdomain.StateOpen:
		if local == taskdomain.StatusCompleted {
			return taskdomain.StatusInProgress, true
		}
	}
	return local, false
}

func applyRemote(issue *githubdomain.Issue, remote *client.Issue, now time.Time) {
	if remote == nil {
		return
	}
	issue.State = strings.ToLower(remote.State)
	issue.Title = remote.Title
	issue.HTMLURL = remote.HTMLURL
	if !remote.UpdatedAt.IsZero() {
		updated := remote.UpdatedAt.UTC()
		issue.RemoteUpdatedAt = &updated
	}
	issue.LastSyncedAt = &now
}
