package events

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Topic string

const (
	TopicMessageCreated     Topic = "message.created"
	TopicTaskStatusChanged  Topic = "task.status_changed"
	TopicDirectMessageMerge Topic = "direct_message.merged"
)

// Event is anything the bus can carry.
type Event interface {
	Topic() Topic
}

// Envelope wraps a published event with delivery metadata.
type Envelope struct {
	ID            string
	CorrelationID string
	PublishedAt   time.Time
	Event         Event
}

const (
	MessageSourceLocal  = "local"
	MessageSourceGitHub = "github"
)

// MessageCreated fires after a message is committed to a thread.
type MessageCreated struct {
	MessageID snowflake.ID
	ThreadID  snowflake.ID
	TaskID    *snowflake.ID
	SenderID  *snowflake.ID
	Sender    string
	Body      string
	Source    string
}

func (MessageCreated) Topic() Topic { return TopicMessageCreated }

// TaskStatusChanged fires after a task moves between statuses.
type TaskStatusChanged struct {
	TaskID snowflake.ID
	From   string
	To     string
}

func (TaskStatusChanged) Topic() Topic { return TopicTaskStatusChanged }

// DirectMessagesMerged fires after duplicate conversations were folded into one.
type DirectMessagesMerged struct {
	KeptID    snowflake.ID
	RemovedID []snowflake.ID
}

func (DirectMessagesMerged) Topic() Topic { return TopicDirectMessageMerge }
