package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glitchidea/glichflow/internal/clock"
	commdomain "github.com/glitchidea/glichflow/internal/communication/domain"
	"github.com/glitchidea/glichflow/internal/config"
	githubdomain "github.com/glitchidea/glichflow/internal/github/domain"
	obsmetrics "github.com/glitchidea/glichflow/internal/observability/metrics"
	"github.com/glitchidea/glichflow/internal/ratelimit"
	taskdomain "github.com/glitchidea/glichflow/internal/task/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	JobGitHubResync          = "github_resync"
	JobGitHubStaleIssues     = "github_stale_issues"
	JobDeadlineNotifications = "deadline_notifications"
	JobDirectMessageCleanup  = "direct_message_cleanup"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

// JobLocker keeps a job on a single worker when several scheduler processes
// share one database.
type JobLocker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	Release(ctx context.Context, key, token string) error
}

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	GitHubSvc  githubdomain.Service
	CommSvc    commdomain.Service
	TaskRepo   taskdomain.Repository
	SyncConfig *config.SyncConfigHolder
	Locker     *ratelimit.Locker `optional:"true"`
	Config     Config            `optional:"true"`
}

type Scheduler struct {
	db        *gorm.DB
	log       *zap.Logger
	cfg       Config
	genID     *snowflake.Node
	clock     clock.Clock
	githubSvc githubdomain.Service
	commSvc   commdomain.Service
	taskRepo  taskdomain.Repository
	syncCfg   *config.SyncConfigHolder
	locker    JobLocker
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.GenID == nil || p.Clock == nil || p.GitHubSvc == nil || p.CommSvc == nil || p.TaskRepo == nil || p.SyncConfig == nil {
		return nil, ErrInvalidConfig
	}
	s := &Scheduler{
		db:        p.DB,
		log:       p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:       p.Config.withDefaults(),
		genID:     p.GenID,
		clock:     p.Clock,
		githubSvc: p.GitHubSvc,
		commSvc:   p.CommSvc,
		taskRepo:  p.TaskRepo,
		syncCfg:   p.SyncConfig,
	}
	if p.Locker != nil {
		s.locker = p.Locker
	}
	return s, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	schedMetrics := obsmetrics.Scheduler()

	release, acquired, err := s.acquireJobLock(parent, name, timeout)
	if err != nil {
		schedMetrics.IncJobError(name, err)
		return fmt.Errorf("%s: acquire lock: %w", name, err)
	}
	if !acquired {
		schedMetrics.IncJobSkipped(name, obsmetrics.SchedulerSkipReasonLockHeld)
		s.log.Debug("scheduler.job.skipped", zap.String("job", name), zap.String("reason", obsmetrics.SchedulerSkipReasonLockHeld))
		return nil
	}
	defer release()

	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run, finish := s.startRun(ctx, name)
	schedMetrics.IncJobRun(name)

	err = fn(ctx)
	schedMetrics.ObserveJobDuration(name, s.clock.Now().Sub(start))
	if err != nil && run.failures == 0 {
		run.failures++
	}
	finish()
	if err == nil {
		return nil
	}

	// A deadline is a soft timeout: the next tick picks up the rest.
	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		schedMetrics.IncJobTimeout(name)
	}
	schedMetrics.IncJobError(name, err)
	if isTimeout {
		run.log.Warn("scheduler.job.timeout",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name string
		Run  func(context.Context) error
	}{
		{JobGitHubResync, s.GitHubResyncJob},
		{JobGitHubStaleIssues, s.GitHubStaleIssuesJob},
		{JobDeadlineNotifications, s.DeadlineNotificationsJob},
		{JobDirectMessageCleanup, s.DirectMessageCleanupJob},
	}

	for _, job := range jobs {
		if !s.isJobEnabled(job.Name) {
			obsmetrics.Scheduler().IncJobSkipped(job.Name, obsmetrics.SchedulerSkipReasonDisabled)
			continue
		}
		err = errors.Join(err, s.runJob(parent, job.Name, s.cfg.JobTimeout, job.Run))
	}

	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := s.clock.Now()
	schedMetrics := obsmetrics.Scheduler()

	for {
		if runLag := s.clock.Now().Sub(nextRun); runLag > 0 {
			schedMetrics.ObserveRunLoopLag(runLag)
		}
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
		nextRun = nextRun.Add(s.cfg.RunInterval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// isJobEnabled reads sync.yml on every call so jobs can be toggled without a
// restart. An empty list enables every job.
func (s *Scheduler) isJobEnabled(jobName string) bool {
	enabled := s.syncCfg.Get().EnabledJobs
	if len(enabled) == 0 {
		return true
	}
	for _, name := range enabled {
		if strings.EqualFold(strings.TrimSpace(name), jobName) {
			return true
		}
	}
	return false
}
