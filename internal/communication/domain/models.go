package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Thread struct {
	ID        snowflake.ID  `gorm:"primaryKey"`
	TaskID    *snowflake.ID `gorm:"column:task_id;uniqueIndex:ux_threads_task"`
	Title     string        `gorm:"type:text;not null"`
	IsDirect  bool          `gorm:"column:is_direct;not null;default:false"`
	CreatedAt time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Thread) TableName() string { return "threads" }

// Message belongs to a thread. SenderID is nil for messages imported from
// GitHub; SenderName then carries the GitHub login.
type Message struct {
	ID         snowflake.ID  `gorm:"primaryKey"`
	ThreadID   snowflake.ID  `gorm:"column:thread_id;not null;index:ix_messages_thread,priority:1"`
	SenderID   *snowflake.ID `gorm:"column:sender_id"`
	SenderName string        `gorm:"column:sender_name;type:text"`
	Body       string        `gorm:"type:text;not null"`
	Source     string        `gorm:"type:text;not null"`
	CreatedAt  time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP;index:ix_messages_thread,priority:2"`
	UpdatedAt  time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Message) TableName() string { return "messages" }

// DirectMessage pairs two users with one thread. The pair is stored ordered
// (User1ID < User2ID) so the unique index covers both directions.
type DirectMessage struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	User1ID   snowflake.ID `gorm:"column:user1_id;not null;uniqueIndex:ux_direct_messages_pair,priority:1"`
	User2ID   snowflake.ID `gorm:"column:user2_id;not null;uniqueIndex:ux_direct_messages_pair,priority:2"`
	ThreadID  snowflake.ID `gorm:"column:thread_id;not null"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (DirectMessage) TableName() string { return "direct_messages" }

// OrderedPair returns the two ids smallest first.
func OrderedPair(a, b snowflake.ID) (snowflake.ID, snowflake.ID) {
	if a > b {
		return b, a
	}
	return a, b
}

type Notification struct {
	ID          snowflake.ID `gorm:"primaryKey"`
	UserID      snowflake.ID `gorm:"column:user_id;not null;uniqueIndex:ux_notifications_subject,priority:1"`
	Kind        string       `gorm:"type:text;not null;uniqueIndex:ux_notifications_subject,priority:2"`
	SubjectType string       `gorm:"column:subject_type;type:text;not null;uniqueIndex:ux_notifications_subject,priority:3"`
	SubjectID   snowflake.ID `gorm:"column:subject_id;not null;uniqueIndex:ux_notifications_subject,priority:4"`
	Message     string       `gorm:"type:text;not null"`
	ReadAt      *time.Time   `gorm:"column:read_at"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Notification) TableName() string { return "notifications" }

const (
	NotificationKindMessage     = "message"
	NotificationKindDeadline    = "deadline"
	NotificationKindGitHubError = "github_sync_failed"

	SubjectTask    = "task"
	SubjectMessage = "message"
)
