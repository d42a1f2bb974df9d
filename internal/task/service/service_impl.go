package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glitchidea/glichflow/internal/clock"
	"github.com/glitchidea/glichflow/internal/events"
	taskdomain "github.com/glitchidea/glichflow/internal/task/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Repo   taskdomain.Repository
	Events events.Publisher
	Clock  clock.Clock `optional:"true"`
}

type Service struct {
	db     *gorm.DB
	log    *zap.Logger
	repo   taskdomain.Repository
	genID  *snowflake.Node
	events events.Publisher
	clock  clock.Clock
}

func New(p Params) taskdomain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &Service{
		db:     p.DB,
		log:    p.Log.Named("task.service"),
		repo:   p.Repo,
		genID:  p.GenID,
		events: p.Events,
		clock:  clk,
	}
}

func (s *Service) CreateProject(ctx context.Context, req taskdomain.ProjectRequest) (*taskdomain.ProjectResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, taskdomain.ErrInvalidName
	}
	now := s.clock.Now()
	project := &taskdomain.Project{
		ID:          s.genID.Generate(),
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.InsertProject(ctx, s.db, project); err != nil {
		return nil, err
	}
	return toProjectResponse(project), nil
}

func (s *Service) GetProject(ctx context.Context, id string) (*taskdomain.ProjectResponse, error) {
	projectID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	project, err := s.repo.FindProjectByID(ctx, s.db, projectID)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, taskdomain.ErrNotFound
	}
	return toProjectResponse(project), nil
}

func (s *Service) ListProjects(ctx context.Context) ([]taskdomain.ProjectResponse, error) {
	projects, err := s.repo.ListProjects(ctx, s.db)
	if err != nil {
		return nil, err
	}
	resp := make([]taskdomain.ProjectResponse, 0, len(projects))
	for i := range projects {
		resp = append(resp, *toProjectResponse(&projects[i]))
	}
	return resp, nil
}

func (s *Service) CreateTask(ctx context.Context, req taskdomain.CreateTaskRequest) (*taskdomain.TaskResponse, error) {
	projectID, err := parseID(req.ProjectID)
	if err != nil {
		return nil, taskdomain.ErrInvalidProject
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, taskdomain.ErrInvalidTitle
	}
	priority, err := taskdomain.ParsePriority(req.Priority)
	if err != nil {
		return nil, err
	}

	project, err := s.repo.FindProjectByID(ctx, s.db, projectID)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, taskdomain.ErrInvalidProject
	}

	now := s.clock.Now()
	task := &taskdomain.Task{
		ID:          s.genID.Generate(),
		ProjectID:   project.ID,
		Title:       title,
		Description: strings.TrimSpace(req.Description),
		Status:      taskdomain.StatusTodo,
		Priority:    priority,
		DueDate:     utcPtr(req.DueDate),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if strings.TrimSpace(req.AssigneeID) != "" {
		assignee, err := parseID(req.AssigneeID)
		if err != nil {
			return nil, taskdomain.ErrInvalidAssignee
		}
		task.AssigneeID = &assignee
	}

	if err := s.repo.InsertTask(ctx, s.db, task); err != nil {
		return nil, err
	}
	return toTaskResponse(task), nil
}

func (s *Service) GetTask(ctx context.Context, id string) (*taskdomain.TaskResponse, error) {
	task, err := s.findTask(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	return toTaskResponse(task), nil
}

func (s *Service) ListTasks(ctx context.Context, req taskdomain.ListTasksRequest) ([]taskdomain.TaskResponse, error) {
	var filter taskdomain.TaskFilter
	if strings.TrimSpace(req.ProjectID) != "" {
		id, err := parseID(req.ProjectID)
		if err != nil {
			return nil, err
		}
		filter.ProjectID = id
	}
	if strings.TrimSpace(req.AssigneeID) != "" {
		id, err := parseID(req.AssigneeID)
		if err != nil {
			return nil, err
		}
		filter.AssigneeID = id
	}
	if strings.TrimSpace(req.Status) != "" {
		status, err := taskdomain.ParseStatus(req.Status)
		if err != nil {
			return nil, err
		}
		filter.Status = status
	}

	tasks, err := s.repo.ListTasks(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}
	resp := make([]taskdomain.TaskResponse, 0, len(tasks))
	for i := range tasks {
		resp = append(resp, *toTaskResponse(&tasks[i]))
	}
	return resp, nil
}

func (s *Service) UpdateTask(ctx context.Context, id string, req taskdomain.UpdateTaskRequest) (*taskdomain.TaskResponse, error) {
	task, err := s.findTask(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if req.Title != nil {
		task.Title = strings.TrimSpace(*req.Title)
		if task.Title == "" {
			return nil, taskdomain.ErrInvalidTitle
		}
	}
	if req.Description != nil {
		task.Description = strings.TrimSpace(*req.Description)
	}
	if req.Priority != nil {
		priority, err := taskdomain.ParsePriority(*req.Priority)
		if err != nil {
			return nil, err
		}
		task.Priority = priority
	}
	if req.DueDate != nil {
		task.DueDate = utcPtr(req.DueDate)
	}
	if req.AssigneeID != nil {
		if strings.TrimSpace(*req.AssigneeID) == "" {
			task.AssigneeID = nil
		} else {
			assignee, err := parseID(*req.AssigneeID)
			if err != nil {
				return nil, taskdomain.ErrInvalidAssignee
			}
			task.AssigneeID = &assignee
		}
	}
	task.UpdatedAt = s.clock.Now()

	if err := s.repo.UpdateTask(ctx, s.db, task); err != nil {
		return nil, err
	}
	return toTaskResponse(task), nil
}

// ChangeStatus publishes TaskStatusChanged once the update is committed.
func (s *Service) ChangeStatus(ctx context.Context, id string, status string) (*taskdomain.TaskResponse, error) {
	next, err := taskdomain.ParseStatus(status)
	if err != nil {
		return nil, err
	}

	var (
		task     *taskdomain.Task
		previous taskdomain.Status
		changed  bool
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		task, err = s.findTask(ctx, tx, id)
		if err != nil {
			return err
		}
		previous = task.Status
		changed = task.SetStatus(next, s.clock.Now())
		if !changed {
			return nil
		}
		return s.repo.UpdateTask(ctx, tx, task)
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.events.Publish(ctx, events.TaskStatusChanged{
			TaskID: task.ID,
			From:   string(previous),
			To:     string(next),
		})
	}
	return toTaskResponse(task), nil
}

func (s *Service) findTask(ctx context.Context, db *gorm.DB, id string) (*taskdomain.Task, error) {
	taskID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	task, err := s.repo.FindTaskByID(ctx, db, taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, taskdomain.ErrNotFound
	}
	return task, nil
}

func toProjectResponse(p *taskdomain.Project) *taskdomain.ProjectResponse {
	return &taskdomain.ProjectResponse{
		ID:          p.ID.String(),
		Name:        p.Name,
		Description: p.Description,
		CreatedAt:   p.CreatedAt,
	}
}

func toTaskResponse(t *taskdomain.Task) *taskdomain.TaskResponse {
	resp := &taskdomain.TaskResponse{
		ID:          t.ID.String(),
		ProjectID:   t.ProjectID.String(),
		Title:       t.Title,
		Description: t.Description,
		Status:      string(t.Status),
		Priority:    string(t.Priority),
		DueDate:     t.DueDate,
		CompletedAt: t.CompletedAt,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
	if t.AssigneeID != nil {
		v := t.AssigneeID.String()
		resp.AssigneeID = &v
	}
	return resp
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, taskdomain.ErrInvalidID
	}
	return id, nil
}
