package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glitchidea/glichflow/internal/events"
	"github.com/glitchidea/glichflow/internal/github/client"
	githubdomain "github.com/glitchidea/glichflow/internal/github/domain"
	taskdomain "github.com/glitchidea/glichflow/internal/task/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	opImport       = "import_issues"
	opResync       = "resync_repository"
	maxImportPages = 50
)

type issueOutcome struct {
	issue   *githubdomain.Issue
	created bool
	change  *events.TaskStatusChanged
}

func (s *Service) ImportIssues(ctx context.Context, repositoryID string, filter githubdomain.ImportFilter) (githubdomain.ImportSummary, githubdomain.Result) {
	id, err := parseID(repositoryID)
	if err != nil {
		return githubdomain.ImportSummary{}, githubdomain.Fail("invalid repository id")
	}
	repository, err := s.repo.FindRepositoryByID(ctx, s.db, id)
	if err != nil {
		return githubdomain.ImportSummary{}, s.record(ctx, opImport, githubdomain.Fail("load repository: "+err.Error()))
	}
	if repository == nil {
		return githubdomain.ImportSummary{}, githubdomain.Fail("repository not found")
	}
	summary, res := s.importIssues(ctx, repository, filter)
	return summary, s.record(ctx, opImport, res)
}

func (s *Service) importIssues(ctx context.Context, repository *githubdomain.Repository, filter githubdomain.ImportFilter) (githubdomain.ImportSummary, githubdomain.Result) {
	var summary githubdomain.ImportSummary

	state := strings.ToLower(strings.TrimSpace(filter.State))
	switch state {
	case "":
		state = githubdomain.StateAll
	case githubdomain.StateAll, githubdomain.StateOpen:
	default:
		return summary, githubdomain.Fail("state must be all or open")
	}

	cl, err := s.clientFor(ctx, repository, nil)
	if err != nil {
		return summary, githubdomain.Fail(err.Error())
	}

	remotes, err := s.fetchIssues(ctx, cl, repository, state, filter.Numbers)
	if err != nil {
		return summary, githubdomain.Fail(fmt.Sprintf("list issues of %s: %v", repository.FullName(), err))
	}

	for i := range remotes {
		remote := &remotes[i]
		if remote.IsPullRequest() {
			summary.Skipped++
			continue
		}
		outcome, err := s.upsertIssue(ctx, repository, remote)
		if err != nil {
			summary.Failed++
			s.log.Error("import issue failed",
				zap.String("repository", repository.FullName()),
				zap.Int("issue_number", remote.Number),
				zap.Error(err),
			)
			continue
		}
		if outcome.created {
			summary.Created++
		} else {
			summary.Updated++
		}
		s.publishStatusChange(ctx, outcome.change)
	}

	if err := s.repo.TouchRepository(ctx, s.db, repository.ID, s.clock.Now()); err != nil {
		s.log.Warn("touch repository failed", zap.String("repository", repository.FullName()), zap.Error(err))
	}

	message := fmt.Sprintf("imported %s: %d created, %d updated, %d skipped, %d failed",
		repository.FullName(), summary.Created, summary.Updated, summary.Skipped, summary.Failed)
	if summary.Failed > 0 {
		return summary, githubdomain.Fail(message)
	}
	return summary, githubdomain.Ok(message)
}

func (s *Service) fetchIssues(ctx context.Context, cl *client.Client, repository *githubdomain.Repository, state string, numbers []int) ([]client.Issue, error) {
	if len(numbers) > 0 {
		issues := make([]client.Issue, 0, len(numbers))
		for _, number := range numbers {
			if number <= 0 {
				continue
			}
			issue, err := cl.GetIssue(ctx, repository.Owner, repository.Name, number)
			if err != nil {
				if errors.Is(err, client.ErrNotFound) {
					continue
				}
				return nil, err
			}
			if state == githubdomain.StateOpen && !strings.EqualFold(issue.State, githubdomain.StateOpen) {
				continue
			}
			issues = append(issues, *issue)
		}
		return issues, nil
	}

	perPage := s.syncCfg.Get().ImportPageSize
	var issues []client.Issue
	for page := 1; page <= maxImportPages; page++ {
		batch, err := cl.ListIssues(ctx, repository.Owner, repository.Name, client.ListIssuesOptions{
			State:   state,
			Page:    page,
			PerPage: perPage,
		})
		if err != nil {
			return nil, err
		}
		issues = append(issues, batch...)
		if len(batch) < perPage {
			break
		}
	}
	return issues, nil
}

// upsertIssue writes the issue link and its task in one transaction. The
// link row is claimed first with ON CONFLICT DO NOTHING so two concurrent
// imports of the same issue end up with a single task.
func (s *Service) upsertIssue(ctx context.Context, repository *githubdomain.Repository, remote *client.Issue) (issueOutcome, error) {
	var out issueOutcome
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		out = issueOutcome{}
		now := s.clock.Now()

		existing, err := s.repo.FindIssueByNumber(ctx, tx, repository.ID, remote.Number)
		if err != nil {
			return err
		}
		if existing == nil {
			issue := &githubdomain.Issue{
				ID:           s.genID.Generate(),
				RepositoryID: repository.ID,
				IssueNumber:  remote.Number,
				TaskID:       s.genID.Generate(),
				CreatedAt:    now,
				UpdatedAt:    now,
			}
			applyRemote(issue, remote, now)
			inserted, err := s.repo.InsertIssue(ctx, tx, issue)
			if err != nil {
				return err
			}
			if inserted {
				out.issue = issue
				out.created = true
				return s.taskRepo.InsertTask(ctx, tx, newTaskFromIssue(issue.TaskID, repository.ProjectID, remote, now))
			}
			existing, err = s.repo.FindIssueByNumber(ctx, tx, repository.ID, remote.Number)
			if err != nil {
				return err
			}
			if existing == nil {
				return fmt.Errorf("issue #%d not found after conflict", remote.Number)
			}
		}

		out.issue = existing
		task, err := s.taskRepo.FindTaskByID(ctx, tx, existing.TaskID)
		if err != nil {
			return err
		}
		if task == nil {
			return fmt.Errorf("task %s of issue #%d not found", existing.TaskID, remote.Number)
		}

		from := task.Status
		task.Title = issueTitle(remote)
		task.Description = remote.Body
		task.UpdatedAt = now
		if next, changed := remoteStatus(task.Status, remote.State); changed {
			task.SetStatus(next, now)
			out.change = &events.TaskStatusChanged{TaskID: task.ID, From: string(from), To: string(next)}
		}
		if err := s.taskRepo.UpdateTask(ctx, tx, task); err != nil {
			return err
		}

		applyRemote(existing, remote, now)
		existing.UpdatedAt = now
		return s.repo.UpdateIssue(ctx, tx, existing)
	})
	return out, err
}

func newTaskFromIssue(taskID, projectID snowflake.ID, remote *client.Issue, now time.Time) *taskdomain.Task {
	task := &taskdomain.Task{
		ID:          taskID,
		ProjectID:   projectID,
		Title:       issueTitle(remote),
		Description: remote.Body,
		Status:      taskdomain.StatusTodo,
		Priority:    taskdomain.PriorityMedium,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if strings.EqualFold(remote.State, githubdomain.StateClosed) {
		task.SetStatus(taskdomain.StatusCompleted, now)
	}
	return task
}

func issueTitle(remote *client.Issue) string {
	title := strings.TrimSpace(remote.Title)
	if title == "" {
		title = fmt.Sprintf("GitHub issue #%d", remote.Number)
	}
	return title
}

// ResyncRepository imports the open issues of a repository and then pulls
// the comments of every linked issue.
func (s *Service) ResyncRepository(ctx context.Context, repositoryID snowflake.ID) githubdomain.Result {
	repository, err := s.repo.FindRepositoryByID(ctx, s.db, repositoryID)
	if err != nil {
		return s.record(ctx, opResync, githubdomain.Fail("load repository: "+err.Error()))
	}
	if repository == nil {
		return githubdomain.Fail("repository not found")
	}

	summary, res := s.importIssues(ctx, repository, githubdomain.ImportFilter{State: githubdomain.StateOpen})
	if !res.Success && summary.Created+summary.Updated == 0 {
		return s.record(ctx, opResync, res)
	}

	issues, err := s.repo.ListIssuesByRepository(ctx, s.db, repository.ID)
	if err != nil {
		return s.record(ctx, opResync, githubdomain.Fail("list linked issues: "+err.Error()))
	}
	failed := 0
	for _, issue := range issues {
		if issue.State != githubdomain.StateOpen {
			continue
		}
		if _, commentRes := s.SyncIssueComments(ctx, issue.ID.String()); !commentRes.Success {
			failed++
		}
	}

	message := fmt.Sprintf("%s; comment sync failed for %d issues", res.Message, failed)
	if failed > 0 || !res.Success {
		return s.record(ctx, opResync, githubdomain.Fail(message))
	}
	return s.record(ctx, opResync, githubdomain.Ok(message))
}

func (s *Service) ResyncAutoSyncRepositories(ctx context.Context) (int, error) {
	repositories, err := s.repo.ListRepositories(ctx, s.db, true)
	if err != nil {
		return 0, err
	}
	var (
		synced int
		errs   []error
	)
	for _, repository := range repositories {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		res := s.ResyncRepository(ctx, repository.ID)
		if !res.Success {
			errs = append(errs, fmt.Errorf("%s: %s", repository.FullName(), res.Message))
			continue
		}
		synced++
	}
	return synced, errors.Join(errs...)
}

// ResyncStaleIssues refreshes up to limit links that were not synced within
// the configured StaleAfter window.
func (s *Service) ResyncStaleIssues(ctx context.Context, limit int) (int, error) {
	cutoff := s.clock.Now().Add(-s.syncCfg.Get().StaleAfter)
	issues, err := s.repo.ListIssuesSyncedBefore(ctx, s.db, cutoff, limit)
	if err != nil {
		return 0, err
	}
	var (
		synced int
		errs   []error
	)
	for _, issue := range issues {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if res := s.SyncTaskWithIssue(ctx, issue.TaskID.String(), "", false); !res.Success {
			errs = append(errs, fmt.Errorf("issue %s: %s", issue.ID, res.Message))
			continue
		}
		if _, res := s.SyncIssueComments(ctx, issue.ID.String()); !res.Success {
			errs = append(errs, fmt.Errorf("issue %s comments: %s", issue.ID, res.Message))
			continue
		}
		synced++
	}
	return synced, errors.Join(errs...)
}
