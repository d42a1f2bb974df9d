package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type TaskFilter struct {
	ProjectID  snowflake.ID
	AssigneeID snowflake.ID
	Status     Status
}

type Repository interface {
	InsertProject(ctx context.Context, db *gorm.DB, project *Project) error
	FindProjectByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Project, error)
	ListProjects(ctx context.Context, db *gorm.DB) ([]Project, error)

	InsertTask(ctx context.Context, db *gorm.DB, task *Task) error
	UpdateTask(ctx context.Context, db *gorm.DB, task *Task) error
	FindTaskByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Task, error)
	ListTasks(ctx context.Context, db *gorm.DB, filter TaskFilter) ([]Task, error)
	// ListDueBetween returns open, assigned tasks due in [from, to).
	ListDueBetween(ctx context.Context, db *gorm.DB, from, to time.Time) ([]Task, error)
}

type Service interface {
	CreateProject(ctx context.Context, req ProjectRequest) (*ProjectResponse, error)
	GetProject(ctx context.Context, id string) (*ProjectResponse, error)
	ListProjects(ctx context.Context) ([]ProjectResponse, error)

	CreateTask(ctx context.Context, req CreateTaskRequest) (*TaskResponse, error)
	GetTask(ctx context.Context, id string) (*TaskResponse, error)
	ListTasks(ctx context.Context, req ListTasksRequest) ([]TaskResponse, error)
	UpdateTask(ctx context.Context, id string, req UpdateTaskRequest) (*TaskResponse, error)
	ChangeStatus(ctx context.Context, id string, status string) (*TaskResponse, error)
}

type ProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type ProjectResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

type CreateTaskRequest struct {
	ProjectID   string     `json:"project_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Priority    string     `json:"priority"`
	DueDate     *time.Time `json:"due_date"`
	AssigneeID  string     `json:"assignee_id"`
}

type UpdateTaskRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Priority    *string    `json:"priority"`
	DueDate     *time.Time `json:"due_date"`
	AssigneeID  *string    `json:"assignee_id"`
}

type ListTasksRequest struct {
	ProjectID  string
	AssigneeID string
	Status     string
}

type TaskResponse struct {
	ID          string     `json:"id"`
	ProjectID   string     `json:"project_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	DueDate     *time.Time `json:"due_date"`
	CompletedAt *time.Time `json:"completed_at"`
	AssigneeID  *string    `json:"assignee_id"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

var (
	ErrInvalidID       = errors.New("invalid_id")
	ErrInvalidName     = errors.New("invalid_name")
	ErrInvalidTitle    = errors.New("invalid_title")
	ErrInvalidProject  = errors.New("invalid_project")
	ErrInvalidStatus   = errors.New("invalid_status")
	ErrInvalidPriority = errors.New("invalid_priority")
	ErrInvalidAssignee = errors.New("invalid_assignee")
	ErrNotFound        = errors.New("not_found")
)
