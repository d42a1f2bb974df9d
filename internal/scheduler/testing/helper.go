// Package testing moves stored timestamps so scheduler jobs can be exercised
// against a real database without waiting for wall time.
package testing

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	taskdomain "github.com/glitchidea/glichflow/internal/task/domain"
	"gorm.io/gorm"
)

type TimeAccelerator struct {
	db *gorm.DB
}

func NewTimeAccelerator(db *gorm.DB) *TimeAccelerator {
	return &TimeAccelerator{db: db}
}

// DueIn moves a task's due date to now+d.
func (ta *TimeAccelerator) DueIn(ctx context.Context, taskID snowflake.ID, now time.Time, d time.Duration) error {
	return ta.db.WithContext(ctx).Exec(
		`UPDATE tasks
		 SET due_date = ?, updated_at = ?
		 WHERE id = ?`,
		now.Add(d).UTC(),
		now.UTC(),
		taskID,
	).Error
}

// AgeIssueLinks pushes last_synced_at of every link of a repository back by d.
func (ta *TimeAccelerator) AgeIssueLinks(ctx context.Context, repositoryID snowflake.ID, now time.Time, d time.Duration) (int64, error) {
	result := ta.db.WithContext(ctx).Exec(
		`UPDATE github_issues
		 SET last_synced_at = ?
		 WHERE repository_id = ?`,
		now.Add(-d).UTC(),
		repositoryID,
	)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// TaskInfo shows the deadline state of a task for debugging.
type TaskInfo struct {
	ID           snowflake.ID
	Status       taskdomain.Status
	DueDate      *time.Time
	TimeUntilDue time.Duration
	Overdue      bool
}

func (ta *TimeAccelerator) GetTaskInfo(ctx context.Context, taskID snowflake.ID, now time.Time) (*TaskInfo, error) {
	var task struct {
		ID      snowflake.ID
		Status  taskdomain.Status
		DueDate *time.Time
	}
	err := ta.db.WithContext(ctx).Raw(
		`SELECT id, status, due_date
		 FROM tasks
		 WHERE id = ?`,
		taskID,
	).Scan(&task).Error
	if err != nil {
		return nil, err
	}

	info := &TaskInfo{ID: task.ID, Status: task.Status, DueDate: task.DueDate}
	if task.DueDate != nil {
		info.TimeUntilDue = task.DueDate.Sub(now)
		info.Overdue = now.After(*task.DueDate)
	}
	return info, nil
}
