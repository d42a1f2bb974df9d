package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusReview     Status = "review"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// Open reports whether the task still needs work.
func (s Status) Open() bool {
	return s != StatusCompleted && s != StatusCancelled
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

type Project struct {
	ID          snowflake.ID `gorm:"primaryKey"`
	Name        string       `gorm:"type:text;not null"`
	Description string       `gorm:"type:text"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Project) TableName() string { return "projects" }

type Task struct {
	ID          snowflake.ID  `gorm:"primaryKey"`
	ProjectID   snowflake.ID  `gorm:"column:project_id;not null;index"`
	Title       string        `gorm:"type:text;not null"`
	Description string        `gorm:"type:text"`
	Status      Status        `gorm:"type:text;not null;index"`
	Priority    Priority      `gorm:"type:text;not null"`
	DueDate     *time.Time    `gorm:"column:due_date;index"`
	CompletedAt *time.Time    `gorm:"column:completed_at"`
	AssigneeID  *snowflake.ID `gorm:"column:assignee_id;index"`
	CreatedAt   time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Task) TableName() string { return "tasks" }

// SetStatus moves the task and keeps CompletedAt in step. It returns false
// when nothing changed.
func (t *Task) SetStatus(next Status, now time.Time) bool {
	if t.Status == next {
		return false
	}
	t.Status = next
	if next == StatusCompleted {
		t.CompletedAt = &now
	} else {
		t.CompletedAt = nil
	}
	t.UpdatedAt = now
	return true
}
