package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glitchidea/glichflow/internal/clock"
	"github.com/glitchidea/glichflow/internal/config"
	obsmetrics "github.com/glitchidea/glichflow/internal/observability/metrics"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"go.uber.org/zap"
)

func TestRunJobTimeoutDoesNotReturnErrorAndIncrementsTimeout(t *testing.T) {
	registry := useTestMetrics(t)

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}

	s := &Scheduler{log: zap.NewNop(), genID: node, clock: clock.NewFakeClock(time.Time{})}
	err = s.runJob(context.Background(), "timeout_job", 5*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	labels := map[string]string{
		"service": "glichflow",
		"env":     "test",
		"job":     "timeout_job",
	}
	if got := getCounterValue(t, registry, "glichflow_scheduler_job_timeouts_total", labels); got != 1 {
		t.Fatalf("expected timeout count 1, got %v", got)
	}

	errorLabels := map[string]string{
		"service": "glichflow",
		"env":     "test",
		"job":     "timeout_job",
		"reason":  obsmetrics.SchedulerJobReasonDeadlineExceeded,
	}
	if got := getCounterValue(t, registry, "glichflow_scheduler_job_errors_total", errorLabels); got != 1 {
		t.Fatalf("expected error count 1, got %v", got)
	}
}

type fakeLocker struct {
	held     map[string]bool
	err      error
	released []string
}

func (l *fakeLocker) TryLock(_ context.Context, key string, _ time.Duration) (string, bool, error) {
	if l.err != nil {
		return "", false, l.err
	}
	if l.held[key] {
		return "", false, nil
	}
	l.held[key] = true
	return "token-" + key, true, nil
}

func (l *fakeLocker) Release(_ context.Context, key, token string) error {
	if token == "token-"+key {
		delete(l.held, key)
		l.released = append(l.released, key)
	}
	return nil
}

func TestRunJobSkipsWhenLockHeld(t *testing.T) {
	registry := useTestMetrics(t)

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	locker := &fakeLocker{held: map[string]bool{"glichflow:lock:job:github_resync": true}}
	s := &Scheduler{log: zap.NewNop(), genID: node, clock: clock.NewFakeClock(time.Time{}), locker: locker, cfg: DefaultConfig()}

	ran := false
	err = s.runJob(context.Background(), JobGitHubResync, time.Second, func(context.Context) error {
		ran = true
		return nil
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if ran {
		t.Fatal("job ran while the lock was held elsewhere")
	}
	skipped := map[string]string{
		"service": "glichflow",
		"env":     "test",
		"job":     JobGitHubResync,
		"reason":  obsmetrics.SchedulerSkipReasonLockHeld,
	}
	if got := getCounterValue(t, registry, "glichflow_scheduler_job_skipped_total", skipped); got != 1 {
		t.Fatalf("expected skipped count 1, got %v", got)
	}

	delete(locker.held, "glichflow:lock:job:github_resync")
	err = s.runJob(context.Background(), JobGitHubResync, time.Second, func(context.Context) error {
		ran = true
		return nil
	})
	if err != nil || !ran {
		t.Fatalf("expected job to run, ran=%v err=%v", ran, err)
	}
	if len(locker.released) != 1 || len(locker.held) != 0 {
		t.Fatalf("expected lock released once, got %v held=%v", locker.released, locker.held)
	}

	locker.err = errors.New("redis down")
	if err := s.runJob(context.Background(), JobGitHubResync, time.Second, func(context.Context) error { return nil }); err == nil {
		t.Fatal("expected lock error to surface")
	}
}

func TestIsJobEnabledFollowsSyncConfig(t *testing.T) {
	cfg := config.DefaultSyncConfig()
	s := &Scheduler{syncCfg: config.NewStaticSyncConfigHolder(cfg)}
	if !s.isJobEnabled(JobDeadlineNotifications) {
		t.Fatal("empty list should enable every job")
	}

	cfg.EnabledJobs = []string{" GitHub_Resync "}
	s.syncCfg = config.NewStaticSyncConfigHolder(cfg)
	if !s.isJobEnabled(JobGitHubResync) {
		t.Fatal("expected github_resync enabled")
	}
	if s.isJobEnabled(JobGitHubStaleIssues) {
		t.Fatal("expected github_stale_issues disabled")
	}
}

func useTestMetrics(t *testing.T) *prometheus.Registry {
	t.Helper()
	registry := prometheus.NewRegistry()
	restore := swapPrometheusRegistry(registry)
	t.Cleanup(restore)

	obsmetrics.ResetSchedulerMetricsForTest()
	obsmetrics.SchedulerWithConfig(obsmetrics.Config{
		ServiceName: "glichflow",
		Environment: "test",
	})
	return registry
}

func swapPrometheusRegistry(registry *prometheus.Registry) func() {
	oldRegisterer := prometheus.DefaultRegisterer
	oldGatherer := prometheus.DefaultGatherer
	prometheus.DefaultRegisterer = registry
	prometheus.DefaultGatherer = registry
	return func() {
		prometheus.DefaultRegisterer = oldRegisterer
		prometheus.DefaultGatherer = oldGatherer
		obsmetrics.ResetSchedulerMetricsForTest()
	}
}

func getCounterValue(t *testing.T, registry *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	metricFamilies, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metricFamilies {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.Metric {
			if !labelsMatch(metric, labels) {
				continue
			}
			if metric.Counter == nil {
				t.Fatalf("metric %s is not a counter", name)
			}
			return metric.GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func labelsMatch(metric *dto.Metric, labels map[string]string) bool {
	if len(metric.Label) != len(labels) {
		return false
	}
	for _, label := range metric.Label {
		if labels[label.GetName()] != label.GetValue() {
			return false
		}
	}
	return true
}
