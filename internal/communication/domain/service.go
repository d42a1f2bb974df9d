package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glitchidea/glichflow/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	InsertThread(ctx context.Context, db *gorm.DB, thread *Thread) error
	FindThreadByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Thread, error)
	FindThreadByTask(ctx context.Context, db *gorm.DB, taskID snowflake.ID) (*Thread, error)

	InsertMessage(ctx context.Context, db *gorm.DB, msg *Message) error
	UpdateMessageBody(ctx context.Context, db *gorm.DB, msg *Message) error
	FindMessageByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Message, error)
	ListMessagesAfter(ctx context.Context, db *gorm.DB, threadID, afterID snowflake.ID, limit int) ([]Message, error)
	MoveMessages(ctx context.Context, db *gorm.DB, fromThread, toThread snowflake.ID) (int64, error)

	InsertDirectMessage(ctx context.Context, db *gorm.DB, dm *DirectMessage) error
	FindDirectMessage(ctx context.Context, db *gorm.DB, user1, user2 snowflake.ID) (*DirectMessage, error)
	FindDirectMessageByThread(ctx context.Context, db *gorm.DB, threadID snowflake.ID) (*DirectMessage, error)
	ListDirectMessages(ctx context.Context, db *gorm.DB) ([]DirectMessage, error)
	UpdateDirectMessagePair(ctx context.Context, db *gorm.DB, id, user1, user2 snowflake.ID) error
	DeleteDirectMessage(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	DeleteThread(ctx context.Context, db *gorm.DB, id snowflake.ID) error

	// InsertNotification is idempotent on (user, kind, subject). created is
	// false when the row already existed.
	InsertNotification(ctx context.Context, db *gorm.DB, n *Notification) (created bool, err error)
}

type Service interface {
	CreateThread(ctx context.Context, req ThreadRequest) (*ThreadResponse, error)
	// GetThread and ListMessages answer authorization.ErrForbidden when actorID
	// is not one of the two users of a direct thread.
	GetThread(ctx context.Context, actorID, id string) (*ThreadResponse, error)
	// TaskThread returns the discussion thread of a task, creating it on first use.
	TaskThread(ctx context.Context, taskID string) (*ThreadResponse, error)
	PostMessage(ctx context.Context, threadID string, req PostMessageRequest) (*MessageResponse, error)
	ListMessages(ctx context.Context, actorID, threadID string, after string, limit int) ([]MessageResponse, error)

	GetOrCreateDirectMessage(ctx context.Context, userA, userB string) (*DirectMessageResponse, error)
	MergeDuplicateDirectMessages(ctx context.Context) (*MergeReport, error)

	Notify(ctx context.Context, req NotifyRequest) (bool, error)
	ListNotifications(ctx context.Context, userID string, page pagination.Pagination) (*NotificationPage, error)
	UnreadCount(ctx context.Context, userID string) (int64, error)
	MarkRead(ctx context.Context, userID, notificationID string) error
}

type ThreadRequest struct {
	TaskID string `json:"task_id"`
	Title  string `json:"title"`
}

type ThreadResponse struct {
	ID        string    `json:"id"`
	TaskID    *string   `json:"task_id"`
	Title     string    `json:"title"`
	IsDirect  bool      `json:"is_direct"`
	CreatedAt time.Time `json:"created_at"`
}

type PostMessageRequest struct {
	SenderID string `json:"-"`
	Body     string `json:"body"`
}

type MessageResponse struct {
	ID         string    `json:"id"`
	ThreadID   string    `json:"thread_id"`
	SenderID   *string   `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	Body       string    `json:"body"`
	Source     string    `json:"source"`
	CreatedAt  time.Time `json:"created_at"`
}

type DirectMessageResponse struct {
	ID       string `json:"id"`
	User1ID  string `json:"user1_id"`
	User2ID  string `json:"user2_id"`
	ThreadID string `json:"thread_id"`
	Created  bool   `json:"created"`
}

type MergeReport struct {
	Groups        int   `json:"groups"`
	Removed       int   `json:"removed"`
	MessagesMoved int64 `json:"messages_moved"`
}

type NotifyRequest struct {
	UserID      snowflake.ID
	Kind        string
	SubjectType string
	SubjectID   snowflake.ID
	Message     string
}

type NotificationResponse struct {
	ID          string     `json:"id"`
	Kind        string     `json:"kind"`
	SubjectType string     `json:"subject_type"`
	SubjectID   string     `json:"subject_id"`
	Message     string     `json:"message"`
	ReadAt      *time.Time `json:"read_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

type NotificationPage struct {
	Items    []NotificationResponse `json:"items"`
	PageInfo *pagination.PageInfo   `json:"page_info"`
}

var (
	ErrInvalidID      = errors.New("invalid_id")
	ErrInvalidTitle   = errors.New("invalid_title")
	ErrEmptyMessage   = errors.New("empty_message")
	ErrMessageTooLong = errors.New("message_too_long")
	ErrSelfMessage    = errors.New("self_direct_message")
	ErrInvalidCursor  = errors.New("invalid_cursor")
	ErrThreadExists   = errors.New("thread_exists")
	ErrNotFound       = errors.New("not_found")
)
