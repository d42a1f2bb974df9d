package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/bwmarrin/snowflake"
	"github.com/glitchidea/glichflow/internal/authorization"
	"github.com/glitchidea/glichflow/internal/clock"
	commdomain "github.com/glitchidea/glichflow/internal/communication/domain"
	"github.com/glitchidea/glichflow/internal/events"
	taskdomain "github.com/glitchidea/glichflow/internal/task/domain"
	userdomain "github.com/glitchidea/glichflow/internal/user/domain"
	"github.com/glitchidea/glichflow/pkg/db"
	store "github.com/glitchidea/glichflow/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	MaxMessageLength    = 10000
	defaultMessageLimit = 50
	maxMessageLimit     = 200
)

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Repo          commdomain.Repository
	Notifications store.Repository[commdomain.Notification]
	TaskRepo      taskdomain.Repository
	UserRepo      userdomain.Repository
	Events        events.Publisher
	Clock         clock.Clock `optional:"true"`
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	repo          commdomain.Repository
	notifications store.Repository[commdomain.Notification]
	taskRepo      taskdomain.Repository
	userRepo      userdomain.Repository
	events        events.Publisher
	clock         clock.Clock
}

func New(p Params) commdomain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("communication.service"),
		genID:         p.GenID,
		repo:          p.Repo,
		notifications: p.Notifications,
		taskRepo:      p.TaskRepo,
		userRepo:      p.UserRepo,
		events:        p.Events,
		clock:         clk,
	}
}

func (s *Service) CreateThread(ctx context.Context, req commdomain.ThreadRequest) (*commdomain.ThreadResponse, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, commdomain.ErrInvalidTitle
	}

	var taskID *snowflake.ID
	if strings.TrimSpace(req.TaskID) != "" {
		id, err := parseID(req.TaskID)
		if err != nil {
			return nil, err
		}
		task, err := s.taskRepo.FindTaskByID(ctx, s.db, id)
		if err != nil {
			return nil, err
		}
		if task == nil {
			return nil, commdomain.ErrNotFound
		}
		taskID = &id
	}

	thread := s.newThread(title, taskID, false)
	if err := s.repo.InsertThread(ctx, s.db, thread); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, commdomain.ErrThreadExists
		}
		return nil, err
	}
	return toThreadResponse(thread), nil
}

func (s *Service) GetThread(ctx context.Context, actorID, id string) (*commdomain.ThreadResponse, error) {
	actor, err := parseID(actorID)
	if err != nil {
		return nil, err
	}
	threadID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	thread, err := s.repo.FindThreadByID(ctx, s.db, threadID)
	if err != nil {
		return nil, err
	}
	if thread == nil {
		return nil, commdomain.ErrNotFound
	}
	if err := s.requireParticipant(ctx, s.db, thread, actor); err != nil {
		return nil, err
	}
	return toThreadResponse(thread), nil
}

// requireParticipant closes direct threads to everyone but their two users.
// Task and free-standing threads stay open to any messaging actor.
func (s *Service) requireParticipant(ctx context.Context, tx *gorm.DB, thread *commdomain.Thread, actor snowflake.ID) error {
	if !thread.IsDirect {
		return nil
	}
	dm, err := s.repo.FindDirectMessageByThread(ctx, tx, thread.ID)
	if err != nil {
		return err
	}
	if dm == nil || (dm.User1ID != actor && dm.User2ID != actor) {
		return authorization.ErrForbidden
	}
	return nil
}

func (s *Service) TaskThread(ctx context.Context, taskID string) (*commdomain.ThreadResponse, error) {
	id, err := parseID(taskID)
	if err != nil {
		return nil, err
	}
	task, err := s.taskRepo.FindTaskByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, commdomain.ErrNotFound
	}

	thread, err := EnsureTaskThread(ctx, s.db, s.repo, s.genID, task, s.clock)
	if err != nil {
		return nil, err
	}
	return toThreadResponse(thread), nil
}

// EnsureTaskThread returns the thread bound to task, inserting it when
// missing. A concurrent insert is resolved by re-reading the winner.
func EnsureTaskThread(ctx context.Context, tx *gorm.DB, repo commdomain.Repository, genID *snowflake.Node, task *taskdomain.Task, clk clock.Clock) (*commdomain.Thread, error) {
	thread, err := repo.FindThreadByTask(ctx, tx, task.ID)
	if err != nil || thread != nil {
		return thread, err
	}

	now := clk.Now()
	taskID := task.ID
	thread = &commdomain.Thread{
		ID:        genID.Generate(),
		TaskID:    &taskID,
		Title:     task.Title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := repo.InsertThread(ctx, tx, thread); err != nil {
		if !db.IsDuplicateKeyErr(err) {
			return nil, err
		}
		existing, findErr := repo.FindThreadByTask(ctx, tx, task.ID)
		if findErr != nil {
			return nil, findErr
		}
		if existing == nil {
			return nil, err
		}
		return existing, nil
	}
	return thread, nil
}

func (s *Service) PostMessage(ctx context.Context, threadID string, req commdomain.PostMessageRequest) (*commdomain.MessageResponse, error) {
	id, err := parseID(threadID)
	if err != nil {
		return nil, err
	}
	senderID, err := parseID(req.SenderID)
	if err != nil {
		return nil, err
	}
	body := strings.TrimSpace(req.Body)
	if body == "" {
		return nil, commdomain.ErrEmptyMessage
	}
	if utf8.RuneCountInString(body) > MaxMessageLength {
		return nil, commdomain.ErrMessageTooLong
	}

	sender, err := s.userRepo.FindByID(ctx, s.db, senderID)
	if err != nil {
		return nil, err
	}
	if sender == nil {
		return nil, commdomain.ErrNotFound
	}

	var (
		thread *commdomain.Thread
		msg    *commdomain.Message
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		thread, err = s.repo.FindThreadByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if thread == nil {
			return commdomain.ErrNotFound
		}
		if err := s.requireParticipant(ctx, tx, thread, senderID); err != nil {
			return err
		}

		now := s.clock.Now()
		msg = &commdomain.Message{
			ID:         s.genID.Generate(),
			ThreadID:   thread.ID,
			SenderID:   &senderID,
			SenderName: sender.Username,
			Body:       body,
			Source:     events.MessageSourceLocal,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := s.repo.InsertMessage(ctx, tx, msg); err != nil {
			return err
		}
		return s.notifyTaskAssignee(ctx, tx, thread, msg)
	})
	if err != nil {
		return nil, err
	}

	s.events.Publish(ctx, events.MessageCreated{
		MessageID: msg.ID,
		ThreadID:  msg.ThreadID,
		TaskID:    thread.TaskID,
		SenderID:  msg.SenderID,
		Sender:    msg.SenderName,
		Body:      msg.Body,
		Source:    msg.Source,
	})

	return toMessageResponse(msg), nil
}

func (s *Service) notifyTaskAssignee(ctx context.Context, tx *gorm.DB, thread *commdomain.Thread, msg *commdomain.Message) error {
	if thread.TaskID == nil {
		return nil
	}
	task, err := s.taskRepo.FindTaskByID(ctx, tx, *thread.TaskID)
	if err != nil || task == nil || task.AssigneeID == nil {
		return err
	}
	if msg.SenderID != nil && *msg.SenderID == *task.AssigneeID {
		return nil
	}
	_, err = s.repo.InsertNotification(ctx, tx, &commdomain.Notification{
		ID:          s.genID.Generate(),
		UserID:      *task.AssigneeID,
		Kind:        commdomain.NotificationKindMessage,
		SubjectType: commdomain.SubjectMessage,
		SubjectID:   msg.ID,
		Message:     msg.SenderName + " commented on " + task.Title,
		CreatedAt:   msg.CreatedAt,
	})
	return err
}

func (s *Service) ListMessages(ctx context.Context, actorID, threadID string, after string, limit int) ([]commdomain.MessageResponse, error) {
	actor, err := parseID(actorID)
	if err != nil {
		return nil, err
	}
	id, err := parseID(threadID)
	if err != nil {
		return nil, err
	}
	var afterID snowflake.ID
	if strings.TrimSpace(after) != "" {
		afterID, err = parseID(after)
		if err != nil {
			return nil, commdomain.ErrInvalidCursor
		}
	}
	if limit <= 0 {
		limit = defaultMessageLimit
	}
	if limit > maxMessageLimit {
		limit = maxMessageLimit
	}

	thread, err := s.repo.FindThreadByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if thread == nil {
		return nil, commdomain.ErrNotFound
	}
	if err := s.requireParticipant(ctx, s.db, thread, actor); err != nil {
		return nil, err
	}

	msgs, err := s.repo.ListMessagesAfter(ctx, s.db, id, afterID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]commdomain.MessageResponse, 0, len(msgs))
	for i := range msgs {
		out = append(out, *toMessageResponse(&msgs[i]))
	}
	return out, nil
}

func (s *Service) newThread(title string, taskID *snowflake.ID, direct bool) *commdomain.Thread {
	now := s.clock.Now()
	return &commdomain.Thread{
		ID:        s.genID.Generate(),
		TaskID:    taskID,
		Title:     title,
		IsDirect:  direct,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, commdomain.ErrInvalidID
	}
	return id, nil
}

func toThreadResponse(thread *commdomain.Thread) *commdomain.ThreadResponse {
	resp := &commdomain.ThreadResponse{
		ID:        thread.ID.String(),
		Title:     thread.Title,
		IsDirect:  thread.IsDirect,
		CreatedAt: thread.CreatedAt,
	}
	if thread.TaskID != nil {
		taskID := thread.TaskID.String()
		resp.TaskID = &taskID
	}
	return resp
}

func toMessageResponse(msg *commdomain.Message) *commdomain.MessageResponse {
	resp := &commdomain.MessageResponse{
		ID:         msg.ID.String(),
		ThreadID:   msg.ThreadID.String(),
		SenderName: msg.SenderName,
		Body:       msg.Body,
		Source:     msg.Source,
		CreatedAt:  msg.CreatedAt,
	}
	if msg.SenderID != nil {
		senderID := msg.SenderID.String()
		resp.SenderID = &senderID
	}
	return resp
}
