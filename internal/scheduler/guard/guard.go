package guard

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	taskdomain "github.com/glitchidea/glichflow/internal/task/domain"
)

var (
	ErrTaskClosed      = errors.New("task_closed")
	ErrMissingDueDate  = errors.New("task_missing_due_date")
	ErrMissingAssignee = errors.New("task_missing_assignee")
	ErrAlreadyOverdue  = errors.New("task_already_overdue")
	ErrNotDueYet       = errors.New("task_not_due_yet")
)

// EnsureDeadlineReminderDue reports why a task should not get a deadline
// reminder at now, or nil when it should.
func EnsureDeadlineReminderDue(status taskdomain.Status, dueDate *time.Time, assigneeID *snowflake.ID, now time.Time, window time.Duration) error {
	if status == taskdomain.StatusCompleted || status == taskdomain.StatusCancelled {
		return ErrTaskClosed
	}
	if dueDate == nil {
		return ErrMissingDueDate
	}
	if assigneeID == nil || *assigneeID == 0 {
		return ErrMissingAssignee
	}
	if dueDate.Before(now) {
		return ErrAlreadyOverdue
	}
	if !dueDate.Before(now.Add(window)) {
		return ErrNotDueYet
	}
	return nil
}
