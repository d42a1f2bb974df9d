package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/glitchidea/glichflow/internal/clock"
	"github.com/glitchidea/glichflow/internal/events"
	taskdomain "github.com/glitchidea/glichflow/internal/task/domain"
	"github.com/glitchidea/glichflow/internal/task/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type recorder struct {
	mu     sync.Mutex
	events []events.TaskStatusChanged
}

func (r *recorder) handle(_ context.Context, env events.Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, env.Event.(events.TaskStatusChanged))
	return nil
}

func setupService(t *testing.T) (taskdomain.Service, *recorder, *clock.FakeClock, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&taskdomain.Project{}, &taskdomain.Task{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	bus := events.NewSyncBus(zap.NewNop())
	rec := &recorder{}
	require.NoError(t, bus.Subscribe(events.TopicTaskStatusChanged, "test", rec.handle))

	clk := clock.NewFakeClock(time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC))
	svc := New(Params{DB: db, Log: zap.NewNop(), GenID: node, Repo: repository.Provide(), Events: bus, Clock: clk})
	return svc, rec, clk, db
}

func TestTaskLifecycle(t *testing.T) {
	svc, rec, _, _ := setupService(t)
	ctx := context.Background()

	project, err := svc.CreateProject(ctx, taskdomain.ProjectRequest{Name: "Website"})
	require.NoError(t, err)

	_, err = svc.CreateTask(ctx, taskdomain.CreateTaskRequest{ProjectID: project.ID, Title: " "})
	assert.ErrorIs(t, err, taskdomain.ErrInvalidTitle)
	_, err = svc.CreateTask(ctx, taskdomain.CreateTaskRequest{ProjectID: "999", Title: "x"})
	assert.ErrorIs(t, err, taskdomain.ErrInvalidProject)
	_, err = svc.CreateTask(ctx, taskdomain.CreateTaskRequest{ProjectID: project.ID, Title: "x", Priority: "whenever"})
	assert.ErrorIs(t, err, taskdomain.ErrInvalidPriority)

	task, err := svc.CreateTask(ctx, taskdomain.CreateTaskRequest{ProjectID: project.ID, Title: "Build header", AssigneeID: "77"})
	require.NoError(t, err)
	assert.Equal(t, "todo", task.Status)
	assert.Equal(t, "medium", task.Priority)
	require.NotNil(t, task.AssigneeID)

	done, err := svc.ChangeStatus(ctx, task.ID, "completed")
	require.NoError(t, err)
	require.NotNil(t, done.CompletedAt)

	_, err = svc.ChangeStatus(ctx, task.ID, "completed")
	require.NoError(t, err)

	reopened, err := svc.ChangeStatus(ctx, task.ID, "in_progress")
	require.NoError(t, err)
	assert.Nil(t, reopened.CompletedAt)

	require.Len(t, rec.events, 2)
	assert.Equal(t, "todo", rec.events[0].From)
	assert.Equal(t, "completed", rec.events[0].To)
	assert.Equal(t, "in_progress", rec.events[1].To)

	_, err = svc.ChangeStatus(ctx, task.ID, "blocked")
	assert.ErrorIs(t, err, taskdomain.ErrInvalidStatus)
}

func TestListDueBetween(t *testing.T) {
	svc, _, clk, db := setupService(t)
	ctx := context.Background()
	now := clk.Now()

	project, err := svc.CreateProject(ctx, taskdomain.ProjectRequest{Name: "App"})
	require.NoError(t, err)

	soon := now.Add(3 * time.Hour)
	later := now.Add(72 * time.Hour)
	for _, tc := range []struct {
		title    string
		due      *time.Time
		assignee string
	}{
		{"due soon", &soon, "5"},
		{"due soon unassigned", &soon, ""},
		{"due later", &later, "5"},
		{"no due date", nil, "5"},
	} {
		_, err := svc.CreateTask(ctx, taskdomain.CreateTaskRequest{ProjectID: project.ID, Title: tc.title, DueDate: tc.due, AssigneeID: tc.assignee})
		require.NoError(t, err)
	}
	completed, err := svc.CreateTask(ctx, taskdomain.CreateTaskRequest{ProjectID: project.ID, Title: "done", DueDate: &soon, AssigneeID: "5"})
	require.NoError(t, err)
	_, err = svc.ChangeStatus(ctx, completed.ID, "completed")
	require.NoError(t, err)

	tasks, err := repository.Provide().ListDueBetween(ctx, db, now, now.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "due soon", tasks[0].Title)

	list, err := svc.ListTasks(ctx, taskdomain.ListTasksRequest{ProjectID: project.ID, Status: "todo"})
	require.NoError(t, err)
	assert.Len(t, list, 4)
}
