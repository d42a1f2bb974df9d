package scheduler

import (
	"context"
	"errors"
	"fmt"

	commdomain "github.com/glitchidea/glichflow/internal/communication/domain"
	"github.com/glitchidea/glichflow/internal/scheduler/guard"
	"go.uber.org/zap"
)

// GitHubResyncJob re-imports every repository with auto_sync enabled.
func (s *Scheduler) GitHubResyncJob(ctx context.Context) error {
	ctx, run, finish := s.startRun(ctx, JobGitHubResync)
	defer finish()

	synced, err := s.githubSvc.ResyncAutoSyncRepositories(ctx)
	run.add(synced)
	run.fail("scheduler.github.resync.failed", err)
	return err
}

// GitHubStaleIssuesJob refreshes one batch of links not synced within
// sync.staleAfter.
func (s *Scheduler) GitHubStaleIssuesJob(ctx context.Context) error {
	ctx, run, finish := s.startRun(ctx, JobGitHubStaleIssues)
	defer finish()

	synced, err := s.githubSvc.ResyncStaleIssues(ctx, s.cfg.BatchSize)
	run.add(synced)
	run.fail("scheduler.github.stale.failed", err)
	return err
}

// DeadlineNotificationsJob notifies the assignee of every open task due
// within sync.deadlineWindow. Notifications are unique per task so repeated
// runs inside the window do not notify twice.
func (s *Scheduler) DeadlineNotificationsJob(ctx context.Context) error {
	ctx, run, finish := s.startRun(ctx, JobDeadlineNotifications)
	defer finish()

	now := s.clock.Now()
	window := s.syncCfg.Get().DeadlineWindow
	tasks, err := s.taskRepo.ListDueBetween(ctx, s.db, now, now.Add(window))
	if err != nil {
		run.fail("scheduler.deadline.list.failed", err)
		return err
	}

	var (
		jobErr  error
		created int
	)
	for _, task := range tasks {
		if err := ctx.Err(); err != nil {
			return errors.Join(jobErr, err)
		}
		if err := guard.EnsureDeadlineReminderDue(task.Status, task.DueDate, task.AssigneeID, now, window); err != nil {
			run.log.Debug("scheduler.deadline.skipped",
				zap.String("task_id", task.ID.String()),
				zap.String("reason", err.Error()),
			)
			continue
		}

		ok, err := s.commSvc.Notify(ctx, commdomain.NotifyRequest{
			UserID:      *task.AssigneeID,
			Kind:        commdomain.NotificationKindDeadline,
			SubjectType: commdomain.SubjectTask,
			SubjectID:   task.ID,
			Message:     fmt.Sprintf("%q is due %s", task.Title, task.DueDate.UTC().Format("2006-01-02 15:04 MST")),
		})
		if err != nil {
			jobErr = errors.Join(jobErr, err)
			run.fail("scheduler.deadline.notify.failed", err, zap.String("task_id", task.ID.String()))
			continue
		}
		if ok {
			created++
		}
	}

	run.add(created)
	return jobErr
}

// DirectMessageCleanupJob folds duplicate conversations for the same user pair
// into the oldest one. Rows written before the ordered-pair constraint
// existed are the only source of duplicates, so most runs find nothing.
func (s *Scheduler) DirectMessageCleanupJob(ctx context.Context) error {
	ctx, run, finish := s.startRun(ctx, JobDirectMessageCleanup)
	defer finish()

	report, err := s.commSvc.MergeDuplicateDirectMessages(ctx)
	if err != nil {
		run.fail("scheduler.direct_messages.merge.failed", err)
		return err
	}
	run.add(report.Removed)
	return nil
}
