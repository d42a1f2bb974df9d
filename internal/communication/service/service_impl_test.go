package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/glitchidea/glichflow/internal/authorization"
	"github.com/glitchidea/glichflow/internal/clock"
	commdomain "github.com/glitchidea/glichflow/internal/communication/domain"
	"github.com/glitchidea/glichflow/internal/communication/repository"
	"github.com/glitchidea/glichflow/internal/events"
	taskdomain "github.com/glitchidea/glichflow/internal/task/domain"
	taskrepo "github.com/glitchidea/glichflow/internal/task/repository"
	userdomain "github.com/glitchidea/glichflow/internal/user/domain"
	userrepo "github.com/glitchidea/glichflow/internal/user/repository"
	"github.com/glitchidea/glichflow/pkg/db/pagination"
	store "github.com/glitchidea/glichflow/pkg/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) handle(_ context.Context, env events.Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, env.Event)
	return nil
}

type fixture struct {
	svc   commdomain.Service
	db    *gorm.DB
	node  *snowflake.Node
	clock *clock.FakeClock
	rec   *recorder
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&commdomain.Thread{},
		&commdomain.Message{},
		&commdomain.DirectMessage{},
		&commdomain.Notification{},
		&taskdomain.Project{},
		&taskdomain.Task{},
		&userdomain.User{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	bus := events.NewSyncBus(zap.NewNop())
	rec := &recorder{}
	require.NoError(t, bus.Subscribe(events.TopicMessageCreated, "test", rec.handle))
	require.NoError(t, bus.Subscribe(events.TopicDirectMessageMerge, "test", rec.handle))

	clk := clock.NewFakeClock(time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC))
	svc := New(Params{
		DB:            db,
		Log:           zap.NewNop(),
		GenID:         node,
		Repo:          repository.Provide(),
		Notifications: store.ProvideStore[commdomain.Notification](db),
		TaskRepo:      taskrepo.Provide(),
		UserRepo:      userrepo.Provide(),
		Events:        bus,
		Clock:         clk,
	})
	return &fixture{svc: svc, db: db, node: node, clock: clk, rec: rec}
}

func (f *fixture) user(t *testing.T, username string) snowflake.ID {
	t.Helper()
	u := &userdomain.User{ID: f.node.Generate(), Username: username, Email: username + "@example.com", IsActive: true}
	require.NoError(t, f.db.Create(u).Error)
	return u.ID
}

func (f *fixture) task(t *testing.T, title string, assignee *snowflake.ID) *taskdomain.Task {
	t.Helper()
	project := &taskdomain.Project{ID: f.node.Generate(), Name: "p-" + title}
	require.NoError(t, f.db.Create(project).Error)
	task := &taskdomain.Task{
		ID:         f.node.Generate(),
		ProjectID:  project.ID,
		Title:      title,
		Status:     taskdomain.StatusTodo,
		Priority:   taskdomain.PriorityMedium,
		AssigneeID: assignee,
	}
	require.NoError(t, f.db.Create(task).Error)
	return task
}

func TestTaskThreadIsCreatedOnce(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	task := f.task(t, "Landing page", nil)

	first, err := f.svc.TaskThread(ctx, task.ID.String())
	require.NoError(t, err)
	second, err := f.svc.TaskThread(ctx, task.ID.String())
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	require.NotNil(t, first.TaskID)
	assert.Equal(t, task.ID.String(), *first.TaskID)

	_, err = f.svc.CreateThread(ctx, commdomain.ThreadRequest{TaskID: task.ID.String(), Title: "again"})
	assert.ErrorIs(t, err, commdomain.ErrThreadExists)

	_, err = f.svc.TaskThread(ctx, "42")
	assert.ErrorIs(t, err, commdomain.ErrNotFound)
}

func TestPostMessagePublishesAndNotifiesAssignee(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	task := f.task(t, "Checkout flow", &bob)

	thread, err := f.svc.TaskThread(ctx, task.ID.String())
	require.NoError(t, err)

	msg, err := f.svc.PostMessage(ctx, thread.ID, commdomain.PostMessageRequest{SenderID: alice.String(), Body: "  ready for review  "})
	require.NoError(t, err)
	assert.Equal(t, "ready for review", msg.Body)
	assert.Equal(t, "alice", msg.SenderName)
	assert.Equal(t, events.MessageSourceLocal, msg.Source)

	require.Len(t, f.rec.events, 1)
	created := f.rec.events[0].(events.MessageCreated)
	assert.Equal(t, msg.ID, created.MessageID.String())
	require.NotNil(t, created.TaskID)
	assert.Equal(t, task.ID, *created.TaskID)

	count, err := f.svc.UnreadCount(ctx, bob.String())
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	// The assignee writing in their own task thread does not notify them.
	_, err = f.svc.PostMessage(ctx, thread.ID, commdomain.PostMessageRequest{SenderID: bob.String(), Body: "thanks"})
	require.NoError(t, err)
	count, err = f.svc.UnreadCount(ctx, bob.String())
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestPostMessageValidation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	alice := f.user(t, "alice")
	thread, err := f.svc.CreateThread(ctx, commdomain.ThreadRequest{Title: "general"})
	require.NoError(t, err)

	_, err = f.svc.PostMessage(ctx, thread.ID, commdomain.PostMessageRequest{SenderID: alice.String(), Body: "   "})
	assert.ErrorIs(t, err, commdomain.ErrEmptyMessage)

	_, err = f.svc.PostMessage(ctx, thread.ID, commdomain.PostMessageRequest{SenderID: alice.String(), Body: strings.Repeat("a", MaxMessageLength+1)})
	assert.ErrorIs(t, err, commdomain.ErrMessageTooLong)

	_, err = f.svc.PostMessage(ctx, "12345", commdomain.PostMessageRequest{SenderID: alice.String(), Body: "hi"})
	assert.ErrorIs(t, err, commdomain.ErrNotFound)

	_, err = f.svc.PostMessage(ctx, thread.ID, commdomain.PostMessageRequest{SenderID: "", Body: "hi"})
	assert.ErrorIs(t, err, commdomain.ErrInvalidID)

	_, err = f.svc.CreateThread(ctx, commdomain.ThreadRequest{Title: " "})
	assert.ErrorIs(t, err, commdomain.ErrInvalidTitle)
}

func TestListMessagesAfter(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	alice := f.user(t, "alice")
	thread, err := f.svc.CreateThread(ctx, commdomain.ThreadRequest{Title: "general"})
	require.NoError(t, err)

	var ids []string
	for _, body := range []string{"one", "two", "three"} {
		msg, err := f.svc.PostMessage(ctx, thread.ID, commdomain.PostMessageRequest{SenderID: alice.String(), Body: body})
		require.NoError(t, err)
		ids = append(ids, msg.ID)
	}

	all, err := f.svc.ListMessages(ctx, alice.String(), thread.ID, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "one", all[0].Body)

	newer, err := f.svc.ListMessages(ctx, alice.String(), thread.ID, ids[0], 0)
	require.NoError(t, err)
	require.Len(t, newer, 2)
	assert.Equal(t, "two", newer[0].Body)
	assert.Equal(t, "three", newer[1].Body)

	limited, err := f.svc.ListMessages(ctx, alice.String(), thread.ID, "", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	_, err = f.svc.ListMessages(ctx, alice.String(), thread.ID, "not-a-number", 0)
	assert.ErrorIs(t, err, commdomain.ErrInvalidCursor)
}

func TestGetOrCreateDirectMessageIsOrderIndependent(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")

	first, err := f.svc.GetOrCreateDirectMessage(ctx, bob.String(), alice.String())
	require.NoError(t, err)
	assert.True(t, first.Created)
	low, high := commdomain.OrderedPair(alice, bob)
	assert.Equal(t, low.String(), first.User1ID)
	assert.Equal(t, high.String(), first.User2ID)

	second, err := f.svc.GetOrCreateDirectMessage(ctx, alice.String(), bob.String())
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.ThreadID, second.ThreadID)

	var count int64
	require.NoError(t, f.db.Model(&commdomain.DirectMessage{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	_, err = f.svc.GetOrCreateDirectMessage(ctx, alice.String(), alice.String())
	assert.ErrorIs(t, err, commdomain.ErrSelfMessage)

	_, err = f.svc.GetOrCreateDirectMessage(ctx, alice.String(), "777")
	assert.ErrorIs(t, err, commdomain.ErrNotFound)
}

func TestDirectThreadIsLimitedToParticipants(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	mallory := f.user(t, "mallory")

	dm, err := f.svc.GetOrCreateDirectMessage(ctx, alice.String(), bob.String())
	require.NoError(t, err)
	_, err = f.svc.PostMessage(ctx, dm.ThreadID, commdomain.PostMessageRequest{SenderID: alice.String(), Body: "private salary talk"})
	require.NoError(t, err)

	msgs, err := f.svc.ListMessages(ctx, bob.String(), dm.ThreadID, "", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	thread, err := f.svc.GetThread(ctx, bob.String(), dm.ThreadID)
	require.NoError(t, err)
	assert.True(t, thread.IsDirect)

	_, err = f.svc.GetThread(ctx, mallory.String(), dm.ThreadID)
	assert.ErrorIs(t, err, authorization.ErrForbidden)
	_, err = f.svc.ListMessages(ctx, mallory.String(), dm.ThreadID, "", 0)
	assert.ErrorIs(t, err, authorization.ErrForbidden)
	_, err = f.svc.PostMessage(ctx, dm.ThreadID, commdomain.PostMessageRequest{SenderID: mallory.String(), Body: "hi"})
	assert.ErrorIs(t, err, authorization.ErrForbidden)

	var count int64
	require.NoError(t, f.db.Model(&commdomain.Message{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestMergeDuplicateDirectMessages(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	repo := repository.Provide()
	low, high := commdomain.OrderedPair(f.user(t, "alice"), f.user(t, "bob"))

	insertConversation := func(u1, u2 snowflake.ID, at time.Time, bodies ...string) *commdomain.DirectMessage {
		thread := &commdomain.Thread{ID: f.node.Generate(), Title: "direct", IsDirect: true, CreatedAt: at, UpdatedAt: at}
		require.NoError(t, repo.InsertThread(ctx, f.db, thread))
		dm := &commdomain.DirectMessage{ID: f.node.Generate(), User1ID: u1, User2ID: u2, ThreadID: thread.ID, CreatedAt: at}
		require.NoError(t, repo.InsertDirectMessage(ctx, f.db, dm))
		for _, body := range bodies {
			require.NoError(t, repo.InsertMessage(ctx, f.db, &commdomain.Message{
				ID: f.node.Generate(), ThreadID: thread.ID, Body: body, Source: events.MessageSourceLocal, CreatedAt: at, UpdatedAt: at,
			}))
		}
		return dm
	}

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	oldest := insertConversation(high, low, base, "hello", "are you there")
	newer := insertConversation(low, high, base.Add(time.Hour), "yes")

	report, err := f.svc.MergeDuplicateDirectMessages(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Groups)
	assert.Equal(t, 1, report.Removed)
	assert.Equal(t, int64(1), report.MessagesMoved)

	kept, err := repo.FindDirectMessage(ctx, f.db, low, high)
	require.NoError(t, err)
	require.NotNil(t, kept)
	assert.Equal(t, oldest.ID, kept.ID)

	msgs, err := repo.ListMessagesAfter(ctx, f.db, oldest.ThreadID, 0, 10)
	require.NoError(t, err)
	assert.Len(t, msgs, 3)

	gone, err := repo.FindThreadByID(ctx, f.db, newer.ThreadID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	require.Len(t, f.rec.events, 1)
	mergedEvent := f.rec.events[0].(events.DirectMessagesMerged)
	assert.Equal(t, oldest.ID, mergedEvent.KeptID)
	assert.Equal(t, []snowflake.ID{newer.ID}, mergedEvent.RemovedID)

	again, err := f.svc.MergeDuplicateDirectMessages(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Groups)
}

func TestNotificationsAreIdempotentAndPaginated(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	alice := f.user(t, "alice")

	var subjects []snowflake.ID
	for i := 0; i < 3; i++ {
		subject := f.node.Generate()
		subjects = append(subjects, subject)
		created, err := f.svc.Notify(ctx, commdomain.NotifyRequest{
			UserID: alice, Kind: commdomain.NotificationKindDeadline, SubjectType: commdomain.SubjectTask, SubjectID: subject, Message: "due soon",
		})
		require.NoError(t, err)
		assert.True(t, created)
	}

	created, err := f.svc.Notify(ctx, commdomain.NotifyRequest{
		UserID: alice, Kind: commdomain.NotificationKindDeadline, SubjectType: commdomain.SubjectTask, SubjectID: subjects[0], Message: "due soon",
	})
	require.NoError(t, err)
	assert.False(t, created)

	count, err := f.svc.UnreadCount(ctx, alice.String())
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	page, err := f.svc.ListNotifications(ctx, alice.String(), pagination.Pagination{PageSize: 2})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.True(t, page.PageInfo.HasMore)
	assert.Equal(t, subjects[2].String(), page.Items[0].SubjectID)

	rest, err := f.svc.ListNotifications(ctx, alice.String(), pagination.Pagination{PageSize: 2, PageToken: page.PageInfo.NextPageToken})
	require.NoError(t, err)
	require.Len(t, rest.Items, 1)
	assert.False(t, rest.PageInfo.HasMore)
	assert.Equal(t, subjects[0].String(), rest.Items[0].SubjectID)

	require.NoError(t, f.svc.MarkRead(ctx, alice.String(), rest.Items[0].ID))
	require.NoError(t, f.svc.MarkRead(ctx, alice.String(), rest.Items[0].ID))
	count, err = f.svc.UnreadCount(ctx, alice.String())
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	bob := f.user(t, "bob")
	err = f.svc.MarkRead(ctx, bob.String(), page.Items[0].ID)
	assert.ErrorIs(t, err, commdomain.ErrNotFound)

	_, err = f.svc.ListNotifications(ctx, alice.String(), pagination.Pagination{PageToken: "!!"})
	assert.ErrorIs(t, err, commdomain.ErrInvalidCursor)
}
