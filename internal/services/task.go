package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tasktracker/backend/internal/models"
	"github.com/tasktracker/backend/pkg/logger"
	"github.com/tasktracker/backend/pkg/response"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TaskService struct {
	db *gorm.DB
}

func NewTaskService(db *gorm.DB) *TaskService {
	return &TaskService{db: db}
}

type TaskListFilter struct {
	ProjectID  string `form:"project_id"`
	Status     string `form:"status"`
	AssigneeID string `form:"assignee_id"`
}

type TasksByProjectsRequest struct {
	ProjectIDs []string `json:"project_ids"`
}

type CreateTaskRequest struct {
	Title       string             `json:"title" binding:"required"`
	Description *string            `json:"description"`
	Status      *models.TaskStatus `json:"status"`
	Priority    *models.Priority   `json:"priority"`
	Deadline    *string            `json:"deadline"`
	ProjectID   *string            `json:"project_id"`
	AssigneeID  *string            `json:"assignee_id"`
	TagIDs      []string           `json:"tag_ids"`
	NewTagName  string             `json:"new_tag_name"`
}

// UpdateTaskRequest is a partial update. Absent fields are left alone; an
// explicit null clears description, deadline, project_id and assignee_id.
// Omitting tag_ids keeps the current tags, while new_tag_name is still
// added when given.
type UpdateTaskRequest struct {
	Title       *string            `json:"title"`
	Description Nullable[string]   `json:"description"`
	Status      *models.TaskStatus `json:"status"`
	Priority    *models.Priority   `json:"priority"`
	Deadline    Nullable[string]   `json:"deadline"`
	ProjectID   Nullable[string]   `json:"project_id"`
	AssigneeID  Nullable[string]   `json:"assignee_id"`
	TagIDs      *[]string          `json:"tag_ids"`
	NewTagName  string             `json:"new_tag_name"`
}

// withTaskRelations preloads what every task response carries.
func withTaskRelations(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Project").
		Preload("Assignee").
		Preload("Creator").
		Preload("Tags", func(db *gorm.DB) *gorm.DB {
			return db.Order("tags.name ASC")
		})
}

// List returns the actor's own tasks, newest first. Filters are ANDed.
func (s *TaskService) List(ctx context.Context, actorID string, filter *TaskListFilter) ([]models.Task, error) {
	query := s.db.WithContext(ctx).
		Scopes(withTaskRelations).
		Where("tasks.creator_id = ?", actorID)

	if filter != nil {
		if filter.ProjectID != "" {
			query = query.Where("tasks.project_id = ?", filter.ProjectID)
		}
		if filter.Status != "" {
			status, err := models.ParseTaskStatus(filter.Status)
			if err != nil {
				return nil, response.NewValidation("%s", err.Error())
			}
			query = query.Where("tasks.status = ?", status)
		}
		if filter.AssigneeID != "" {
			query = query.Where("tasks.assignee_id = ?", filter.AssigneeID)
		}
	}

	tasks := []models.Task{}
	if err := query.Order("tasks.created_at DESC").Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// ListByProjects returns every task in the given projects whoever created
// it. The ids are taken as given; callers pass projects the actor already
// has access to.
func (s *TaskService) ListByProjects(ctx context.Context, actorID string, projectIDs []string) ([]models.Task, error) {
	tasks := []models.Task{}
	if len(projectIDs) == 0 {
		return tasks, nil
	}

	err := s.db.WithContext(ctx).
		Scopes(withTaskRelations).
		Where("tasks.project_id IN ?", projectIDs).
		Order("tasks.created_at DESC").
		Find(&tasks).Error
	if err != nil {
		return nil, err
	}

	logger.Debug().Str("actor_id", actorID).
		Int("projects", len(projectIDs)).
		Int("tasks", len(tasks)).
		Msg("listed tasks by project")
	return tasks, nil
}

// GetByID returns a task visible to the actor: its creator, its assignee,
// or anyone with access to its project. Anything else is NOT_FOUND.
func (s *TaskService) GetByID(ctx context.Context, actorID, id string) (*models.Task, error) {
	var task models.Task
	err := s.db.WithContext(ctx).
		Scopes(withTaskRelations).
		Preload("Project.Members").
		Where("id = ?", id).
		Take(&task).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, AuthorizeTask(actorID, nil, OpRead)
	}
	if err != nil {
		return nil, fmt.Errorf("load task: %w", err)
	}
	if err := AuthorizeTask(actorID, &task, OpRead); err != nil {
		return nil, err
	}
	if task.Project != nil {
		task.Project.Members = nil
	}
	return &task, nil
}

// Create creates a task owned by actorID.
func (s *TaskService) Create(ctx context.Context, actorID string, req *CreateTaskRequest) (*models.Task, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, response.NewValidation("task title is required")
	}

	task := models.Task{
		Title:       title,
		Description: req.Description,
		Status:      models.StatusTodo,
		Priority:    models.PriorityMedium,
		CreatorID:   actorID,
	}
	if req.Status != nil {
		task.Status = *req.Status
	}
	if req.Priority != nil {
		task.Priority = *req.Priority
	}
	if req.Deadline != nil {
		deadline, err := parseDeadline(*req.Deadline)
		if err != nil {
			return nil, err
		}
		task.Deadline = &deadline
	}
	if req.ProjectID != nil && *req.ProjectID != "" {
		task.ProjectID = req.ProjectID
	}
	if req.AssigneeID != nil && *req.AssigneeID != "" {
		task.AssigneeID = req.AssigneeID
	}

	var created *models.Task
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if task.ProjectID != nil {
			if err := requireProject(tx, *task.ProjectID); err != nil {
				return err
			}
		}
		if task.AssigneeID != nil {
			if err := requireUsers(tx, []string{*task.AssigneeID}); err != nil {
				return err
			}
		}

		if err := tx.Omit(clause.Associations).Create(&task).Error; err != nil {
			return fmt.Errorf("create task: %w", err)
		}

		desired := append([]string{}, req.TagIDs...)
		diff, err := PlanTagSync(tx, task.ID, desired, req.NewTagName)
		if err != nil {
			return err
		}
		if err := ApplyTagDiff(tx, task.ID, diff); err != nil {
			return err
		}

		created, err = loadTask(tx, task.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Info().
		Str("task_id", created.ID).
		Str("actor_id", actorID).
		Int("tags", len(created.Tags)).
		Msg("task created")
	return created, nil
}

// Update applies a partial update. Only the creator may update.
func (s *TaskService) Update(ctx context.Context, actorID, id string, req *UpdateTaskRequest) (*models.Task, error) {
	updates := make(map[string]interface{})
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, response.NewValidation("task title cannot be empty")
		}
		updates["title"] = title
	}
	if req.Description.Set {
		updates["description"] = req.Description.Ptr()
	}
	if req.Status != nil {
		updates["status"] = *req.Status
	}
	if req.Priority != nil {
		updates["priority"] = *req.Priority
	}
	if req.Deadline.Set {
		if req.Deadline.Null {
			updates["deadline"] = nil
		} else {
			deadline, err := parseDeadline(req.Deadline.Value)
			if err != nil {
				return nil, err
			}
			updates["deadline"] = deadline
		}
	}

	var updated *models.Task
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		task, err := findTask(tx, id)
		if err != nil {
			return err
		}
		if err := AuthorizeTask(actorID, task, OpUpdate); err != nil {
			return err
		}

		if req.ProjectID.Set {
			switch {
			case req.ProjectID.Null:
				updates["project_id"] = nil
			case req.ProjectID.Value != "":
				if err := requireProject(tx, req.ProjectID.Value); err != nil {
					return err
				}
				updates["project_id"] = req.ProjectID.Value
			}
		}
		if req.AssigneeID.Set {
			switch {
			case req.AssigneeID.Null:
				updates["assignee_id"] = nil
			case req.AssigneeID.Value != "":
				if err := requireUsers(tx, []string{req.AssigneeID.Value}); err != nil {
					return err
				}
				updates["assignee_id"] = req.AssigneeID.Value
			}
		}

		if len(updates) > 0 {
			if err := tx.Model(task).Updates(updates).Error; err != nil {
				return fmt.Errorf("update task: %w", err)
			}
		}

		if req.TagIDs != nil || req.NewTagName != "" {
			var desired []string
			if req.TagIDs != nil {
				desired = append([]string{}, (*req.TagIDs)...)
			}
			diff, err := PlanTagSync(tx, id, desired, req.NewTagName)
			if err != nil {
				return err
			}
			if err := ApplyTagDiff(tx, id, diff); err != nil {
				return err
			}
			// Column updates already move updated_at.
			if !diff.Empty() && len(updates) == 0 {
				if err := tx.Model(task).Update("updated_at", time.Now()).Error; err != nil {
					return fmt.Errorf("touch task: %w", err)
				}
			}
			if !diff.Empty() {
				logger.Debug().Str("task_id", id).
					Strs("connect", diff.ToConnect).
					Strs("disconnect", diff.ToDisconnect).
					Msg("task tags synced")
			}
		}

		updated, err = loadTask(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Debug().Str("task_id", id).Str("actor_id", actorID).Msg("task updated")
	return updated, nil
}

// Delete soft-deletes a task. Only the creator may delete.
func (s *TaskService) Delete(ctx context.Context, actorID, id string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		task, err := findTask(tx, id)
		if err != nil {
			return err
		}
		if err := AuthorizeTask(actorID, task, OpDelete); err != nil {
			return err
		}
		if err := tx.Delete(task).Error; err != nil {
			return fmt.Errorf("delete task: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info().Str("task_id", id).Str("actor_id", actorID).Msg("task deleted")
	return nil
}

// parseDeadline accepts an RFC 3339 date-time and returns it in UTC.
func parseDeadline(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, response.NewValidation("deadline must be an RFC 3339 date-time, got %q", s)
	}
	return t.UTC(), nil
}

// findTask returns (nil, nil) for a missing task.
func findTask(tx *gorm.DB, id string) (*models.Task, error) {
	var t models.Task
	err := tx.Where("id = ?", id).Take(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load task: %w", err)
	}
	return &t, nil
}

func loadTask(tx *gorm.DB, id string) (*models.Task, error) {
	var t models.Task
	if err := tx.Scopes(withTaskRelations).Where("id = ?", id).Take(&t).Error; err != nil {
		return nil, fmt.Errorf("reload task: %w", err)
	}
	return &t, nil
}

func requireProject(tx *gorm.DB, id string) error {
	var count int64
	if err := tx.Model(&models.Project{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return fmt.Errorf("lookup project: %w", err)
	}
	if count == 0 {
		return response.NewNotFound("project not found")
	}
	return nil
}
