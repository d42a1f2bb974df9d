package scheduler

import (
	"context"
	"time"

	obscontext "github.com/glitchidea/glichflow/internal/observability/context"
	obslogger "github.com/glitchidea/glichflow/internal/observability/logger"
	obsmetrics "github.com/glitchidea/glichflow/internal/observability/metrics"
	"go.uber.org/zap"
)

// jobUnits names what a job's processed count measures.
var jobUnits = map[string]string{
	JobGitHubResync:          "repositories",
	JobGitHubStaleIssues:     "issues",
	JobDeadlineNotifications: "notifications",
	JobDirectMessageCleanup:  "threads",
}

// jobRun is one execution of a job, carried in the context so the job body
// and runJob report into the same log line.
type jobRun struct {
	job       string
	id        string
	unit      string
	started   time.Time
	processed int
	failures  int
	log       *zap.Logger
}

type jobRunKey struct{}

// startRun reuses the run already attached to ctx. Otherwise it starts a new
// one, and the returned finish func must be called once the job returns.
func (s *Scheduler) startRun(ctx context.Context, job string) (context.Context, *jobRun, func()) {
	if run, ok := ctx.Value(jobRunKey{}).(*jobRun); ok && run != nil {
		return ctx, run, func() {}
	}

	id := s.genID.Generate().String()
	ctx = obscontext.WithActor(ctx, obscontext.ActorTypeScheduler, job)
	ctx = obscontext.WithRequestID(ctx, id)

	run := &jobRun{
		job:     job,
		id:      id,
		unit:    jobUnits[job],
		started: s.clock.Now(),
	}
	run.log = obslogger.WithContext(ctx, s.log).With(
		zap.String("job", job),
		zap.String("run_id", id),
	)
	run.log.Info("scheduler.job.start", zap.String("unit", run.unit))

	return context.WithValue(ctx, jobRunKey{}, run), run, func() { s.finishRun(run) }
}

func (s *Scheduler) finishRun(run *jobRun) {
	fields := []zap.Field{
		zap.Int64("duration_ms", s.clock.Now().Sub(run.started).Milliseconds()),
		zap.Int("processed", run.processed),
		zap.String("unit", run.unit),
		zap.Int("failures", run.failures),
	}
	if run.failures > 0 {
		run.log.Warn("scheduler.job.finish", fields...)
		return
	}
	run.log.Info("scheduler.job.finish", fields...)
}

func (r *jobRun) add(n int) {
	if n <= 0 {
		return
	}
	r.processed += n
	obsmetrics.Scheduler().AddBatchProcessed(r.job, r.unit, n)
}

func (r *jobRun) fail(msg string, err error, fields ...zap.Field) {
	if err == nil {
		return
	}
	r.failures++
	r.log.Error(msg, append([]zap.Field{
		zap.String("reason", obsmetrics.ClassifySchedulerJobReason(err)),
		zap.Error(err),
	}, fields...)...)
}
