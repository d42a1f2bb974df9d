package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/glitchidea/glichflow/internal/clock"
	commdomain "github.com/glitchidea/glichflow/internal/communication/domain"
	commrepo "github.com/glitchidea/glichflow/internal/communication/repository"
	commservice "github.com/glitchidea/glichflow/internal/communication/service"
	"github.com/glitchidea/glichflow/internal/config"
	"github.com/glitchidea/glichflow/internal/events"
	githubdomain "github.com/glitchidea/glichflow/internal/github/domain"
	schedtesting "github.com/glitchidea/glichflow/internal/scheduler/testing"
	taskdomain "github.com/glitchidea/glichflow/internal/task/domain"
	taskrepo "github.com/glitchidea/glichflow/internal/task/repository"
	userrepo "github.com/glitchidea/glichflow/internal/user/repository"
	store "github.com/glitchidea/glichflow/pkg/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// stubGitHub records the batch calls the jobs make; every other method
// panics through the nil embedded interface.
type stubGitHub struct {
	githubdomain.Service
	resyncCalls int
	staleLimits []int
	resyncErr   error
}

func (s *stubGitHub) ResyncAutoSyncRepositories(context.Context) (int, error) {
	s.resyncCalls++
	return 2, s.resyncErr
}

func (s *stubGitHub) ResyncStaleIssues(_ context.Context, limit int) (int, error) {
	s.staleLimits = append(s.staleLimits, limit)
	return 3, nil
}

type jobFixture struct {
	sched  *Scheduler
	db     *gorm.DB
	node   *snowflake.Node
	clock  *clock.FakeClock
	github *stubGitHub
}

func setupJobs(t *testing.T, syncCfg config.SyncConfig) *jobFixture {
	t.Helper()
	useTestMetrics(t)

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&taskdomain.Project{},
		&taskdomain.Task{},
		&commdomain.Thread{},
		&commdomain.Message{},
		&commdomain.Notification{},
		&commdomain.DirectMessage{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC))

	comm := commservice.New(commservice.Params{
		DB:            db,
		Log:           zap.NewNop(),
		GenID:         node,
		Repo:          commrepo.Provide(),
		Notifications: store.ProvideStore[commdomain.Notification](db),
		TaskRepo:      taskrepo.Provide(),
		UserRepo:      userrepo.Provide(),
		Events:        events.NewSyncBus(zap.NewNop()),
		Clock:         clk,
	})

	gh := &stubGitHub{}
	sched, err := New(Params{
		DB:         db,
		Log:        zap.NewNop(),
		GenID:      node,
		Clock:      clk,
		GitHubSvc:  gh,
		CommSvc:    comm,
		TaskRepo:   taskrepo.Provide(),
		SyncConfig: config.NewStaticSyncConfigHolder(syncCfg),
		Config:     Config{BatchSize: 10},
	})
	require.NoError(t, err)

	return &jobFixture{sched: sched, db: db, node: node, clock: clk, github: gh}
}

func (f *jobFixture) addTask(t *testing.T, title string, status taskdomain.Status, assignee *snowflake.ID, dueIn *time.Duration) *taskdomain.Task {
	t.Helper()
	task := &taskdomain.Task{
		ID:         f.node.Generate(),
		ProjectID:  f.node.Generate(),
		Title:      title,
		Status:     status,
		Priority:   taskdomain.PriorityMedium,
		AssigneeID: assignee,
		CreatedAt:  f.clock.Now(),
		UpdatedAt:  f.clock.Now(),
	}
	require.NoError(t, f.db.Create(task).Error)
	if dueIn != nil {
		require.NoError(t, schedtesting.NewTimeAccelerator(f.db).DueIn(context.Background(), task.ID, f.clock.Now(), *dueIn))
	}
	return task
}

func (f *jobFixture) notifications(t *testing.T) []commdomain.Notification {
	t.Helper()
	var rows []commdomain.Notification
	require.NoError(t, f.db.Order("id ASC").Find(&rows).Error)
	return rows
}

func TestDeadlineNotificationsJobNotifiesOncePerTask(t *testing.T) {
	f := setupJobs(t, config.DefaultSyncConfig())
	ctx := context.Background()

	alice := f.node.Generate()
	soon, later, overdue := 3*time.Hour, 48*time.Hour, -2*time.Hour
	dueSoon := f.addTask(t, "Send invoice", taskdomain.StatusInProgress, &alice, &soon)
	f.addTask(t, "Quarterly report", taskdomain.StatusTodo, &alice, &later)
	f.addTask(t, "Already shipped", taskdomain.StatusCompleted, &alice, &soon)
	f.addTask(t, "Unassigned", taskdomain.StatusTodo, nil, &soon)
	f.addTask(t, "Missed", taskdomain.StatusTodo, &alice, &overdue)

	require.NoError(t, f.sched.DeadlineNotificationsJob(ctx))
	rows := f.notifications(t)
	require.Len(t, rows, 1)
	assert.Equal(t, alice, rows[0].UserID)
	assert.Equal(t, commdomain.NotificationKindDeadline, rows[0].Kind)
	assert.Equal(t, commdomain.SubjectTask, rows[0].SubjectType)
	assert.Equal(t, dueSoon.ID, rows[0].SubjectID)
	assert.Contains(t, rows[0].Message, "Send invoice")

	f.clock.Advance(time.Hour)
	require.NoError(t, f.sched.DeadlineNotificationsJob(ctx))
	assert.Len(t, f.notifications(t), 1)

	// The 48h task enters the window a day later.
	f.clock.Advance(24 * time.Hour)
	require.NoError(t, f.sched.DeadlineNotificationsJob(ctx))
	assert.Len(t, f.notifications(t), 2)
}

func TestRunOnceHonoursEnabledJobs(t *testing.T) {
	cfg := config.DefaultSyncConfig()
	cfg.EnabledJobs = []string{JobGitHubStaleIssues}
	f := setupJobs(t, cfg)

	require.NoError(t, f.sched.RunOnce(context.Background()))
	assert.Equal(t, 0, f.github.resyncCalls)
	assert.Equal(t, []int{10}, f.github.staleLimits)
	assert.Empty(t, f.notifications(t))
}

func TestRunOnceJoinsJobErrors(t *testing.T) {
	f := setupJobs(t, config.DefaultSyncConfig())
	f.github.resyncErr = errors.New("acme/web: list issues failed")

	err := f.sched.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), JobGitHubResync)
	assert.Equal(t, 1, f.github.resyncCalls)
	assert.Len(t, f.github.staleLimits, 1)
}

func TestDirectMessageCleanupJobMergesDuplicates(t *testing.T) {
	f := setupJobs(t, config.DefaultSyncConfig())
	ctx := context.Background()
	repo := commrepo.Provide()
	low, high := commdomain.OrderedPair(f.node.Generate(), f.node.Generate())

	for i, pair := range [][2]snowflake.ID{{high, low}, {low, high}} {
		at := f.clock.Now().Add(time.Duration(i) * time.Minute)
		thread := &commdomain.Thread{ID: f.node.Generate(), Title: "direct", IsDirect: true, CreatedAt: at, UpdatedAt: at}
		require.NoError(t, repo.InsertThread(ctx, f.db, thread))
		require.NoError(t, repo.InsertDirectMessage(ctx, f.db, &commdomain.DirectMessage{
			ID: f.node.Generate(), User1ID: pair[0], User2ID: pair[1], ThreadID: thread.ID, CreatedAt: at,
		}))
	}

	require.NoError(t, f.sched.DirectMessageCleanupJob(ctx))
	var count int64
	require.NoError(t, f.db.Model(&commdomain.DirectMessage{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	require.NoError(t, f.sched.DirectMessageCleanupJob(ctx))
}
