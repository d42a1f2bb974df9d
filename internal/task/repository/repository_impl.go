package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	taskdomain "github.com/glitchidea/glichflow/internal/task/domain"
	"gorm.io/gorm"
)

const taskColumns = `id, project_id, title, description, status, priority, due_date, completed_at,
	assignee_id, created_at, updated_at`

type repo struct{}

func Provide() taskdomain.Repository {
	return &repo{}
}

func (r *repo) InsertProject(ctx context.Context, db *gorm.DB, project *taskdomain.Project) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO projects (id, name, description, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		project.ID,
		project.Name,
		project.Description,
		project.CreatedAt,
		project.UpdatedAt,
	).Error
}

func (r *repo) FindProjectByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*taskdomain.Project, error) {
	var project taskdomain.Project
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, description, created_at, updated_at FROM projects WHERE id = ?`,
		id,
	).Scan(&project).Error
	if err != nil {
		return nil, err
	}
	if project.ID == 0 {
		return nil, nil
	}
	return &project, nil
}

func (r *repo) ListProjects(ctx context.Context, db *gorm.DB) ([]taskdomain.Project, error) {
	var projects []taskdomain.Project
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, description, created_at, updated_at FROM projects ORDER BY name ASC`,
	).Scan(&projects).Error
	if err != nil {
		return nil, err
	}
	return projects, nil
}

func (r *repo) InsertTask(ctx context.Context, db *gorm.DB, task *taskdomain.Task) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO tasks (`+taskColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID,
		task.ProjectID,
		task.Title,
		task.Description,
		task.Status,
		task.Priority,
		task.DueDate,
		task.CompletedAt,
		task.AssigneeID,
		task.CreatedAt,
		task.UpdatedAt,
	).Error
}

func (r *repo) UpdateTask(ctx context.Context, db *gorm.DB, task *taskdomain.Task) error {
	return db.WithContext(ctx).Exec(
		`UPDATE tasks
		 SET title = ?, description = ?, status = ?, priority = ?, due_date = ?, completed_at = ?,
		     assignee_id = ?, updated_at = ?
		 WHERE id = ?`,
		task.Title,
		task.Description,
		task.Status,
		task.Priority,
		task.DueDate,
		task.CompletedAt,
		task.AssigneeID,
		task.UpdatedAt,
		task.ID,
	).Error
}

func (r *repo) FindTaskByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*taskdomain.Task, error) {
	var task taskdomain.Task
	err := db.WithContext(ctx).Raw(
		`SELECT `+taskColumns+` FROM tasks WHERE id = ?`,
		id,
	).Scan(&task).Error
	if err != nil {
		return nil, err
	}
	if task.ID == 0 {
		return nil, nil
	}
	return &task, nil
}

func (r *repo) ListTasks(ctx context.Context, db *gorm.DB, filter taskdomain.TaskFilter) ([]taskdomain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE 1 = 1`
	args := []any{}
	if filter.ProjectID != 0 {
		query += ` AND project_id = ?`
		args = append(args, filter.ProjectID)
	}
	if filter.AssigneeID != 0 {
		query += ` AND assignee_id = ?`
		args = append(args, filter.AssigneeID)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	var tasks []taskdomain.Task
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

func (r *repo) ListDueBetween(ctx context.Context, db *gorm.DB, from, to time.Time) ([]taskdomain.Task, error) {
	var tasks []taskdomain.Task
	err := db.WithContext(ctx).Raw(
		`SELECT `+taskColumns+`
		 FROM tasks
		 WHERE due_date >= ? AND due_date < ?
		   AND status NOT IN (?, ?)
		   AND assignee_id IS NOT NULL
		 ORDER BY due_date ASC, id ASC`,
		from,
		to,
		taskdomain.StatusCompleted,
		taskdomain.StatusCancelled,
	).Scan(&tasks).Error
	if err != nil {
		return nil, err
	}
	return tasks, nil
}
