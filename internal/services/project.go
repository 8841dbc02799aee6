package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tasktracker/backend/internal/models"
	"github.com/tasktracker/backend/pkg/logger"
	"github.com/tasktracker/backend/pkg/response"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProjectService struct {
	db *gorm.DB
}

func NewProjectService(db *gorm.DB) *ProjectService {
	return &ProjectService{db: db}
}

type CreateProjectRequest struct {
	Name        string   `json:"name" binding:"required"`
	Description *string  `json:"description"`
	Members     []string `json:"members"`
}

type UpdateProjectRequest struct {
	Name        *string          `json:"name"`
	Description Nullable[string] `json:"description"`
}

type AddMemberRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

// ListAccessible returns the projects actorID created or belongs to, newest first
func (s *ProjectService) ListAccessible(ctx context.Context, actorID string) ([]models.Project, error) {
	projects := []models.Project{}
	err := s.db.WithContext(ctx).
		Scopes(accessibleProjects(actorID)).
		Preload("Creator").
		Preload("Members").
		Order("projects.created_at DESC").
		Find(&projects).Error
	if err != nil {
		return nil, err
	}
	return projects, nil
}

// GetByID returns a project with its creator, members and tasks.
// Missing and inaccessible projects are both NOT_FOUND.
func (s *ProjectService) GetByID(ctx context.Context, actorID, id string) (*models.Project, error) {
	project, err := findProject(s.db.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	if err := AuthorizeProject(actorID, project, OpRead); err != nil {
		return nil, err
	}

	var full models.Project
	err = s.db.WithContext(ctx).
		Preload("Creator").
		Preload("Members").
		Preload("Tasks", func(db *gorm.DB) *gorm.DB {
			return db.Order("tasks.created_at DESC")
		}).
		Preload("Tasks.Assignee").
		Preload("Tasks.Tags").
		Where("id = ?", id).
		Take(&full).Error
	if err != nil {
		return nil, fmt.Errorf("load project: %w", err)
	}
	return &full, nil
}

// Create creates a project owned by actorID. The creator is always a member.
func (s *ProjectService) Create(ctx context.Context, actorID string, req *CreateProjectRequest) (*models.Project, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, response.NewValidation("project name is required")
	}

	memberIDs := []string{actorID}
	for _, id := range req.Members {
		if id != "" && !containsID(memberIDs, id) {
			memberIDs = append(memberIDs, id)
		}
	}

	var project *models.Project
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireUsers(tx, memberIDs[1:]); err != nil {
			return err
		}

		p := models.Project{
			Name:        name,
			Description: req.Description,
			CreatorID:   actorID,
		}
		if err := tx.Omit(clause.Associations).Create(&p).Error; err != nil {
			return fmt.Errorf("create project: %w", err)
		}
		if err := addMembers(tx, p.ID, memberIDs...); err != nil {
			return err
		}

		var err error
		project, err = loadProject(tx, p.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Info().
		Str("project_id", project.ID).
		Str("actor_id", actorID).
		Int("members", len(project.Members)).
		Msg("project created")
	return project, nil
}

// Update applies a partial update. Only the creator may update.
func (s *ProjectService) Update(ctx context.Context, actorID, id string, req *UpdateProjectRequest) (*models.Project, error) {
	updates := make(map[string]interface{})
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, response.NewValidation("project name cannot be empty")
		}
		updates["name"] = name
	}
	if req.Description.Set {
		updates["description"] = req.Description.Ptr()
	}

	var project *models.Project
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := findProject(tx, id)
		if err != nil {
			return err
		}
		if err := AuthorizeProject(actorID, p, OpUpdate); err != nil {
			return err
		}

		if len(updates) > 0 {
			if err := tx.Model(&models.Project{ID: p.ID}).Updates(updates).Error; err != nil {
				return fmt.Errorf("update project: %w", err)
			}
		}

		project, err = loadProject(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Debug().Str("project_id", id).Str("actor_id", actorID).Int("fields", len(updates)).Msg("project updated")
	return project, nil
}

// AddMember connects userID to the project. Adding an existing member is a no-op.
func (s *ProjectService) AddMember(ctx context.Context, actorID, projectID, userID string) (*models.Project, error) {
	var project *models.Project
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := findProject(tx, projectID)
		if err != nil {
			return err
		}
		if err := AuthorizeProject(actorID, p, OpAddMember); err != nil {
			return err
		}
		if err := requireUsers(tx, []string{userID}); err != nil {
			return err
		}
		if err := addMembers(tx, projectID, userID); err != nil {
			return err
		}

		project, err = loadProject(tx, projectID)
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Info().Str("project_id", projectID).Str("user_id", userID).Str("actor_id", actorID).Msg("project member added")
	return project, nil
}

// RemoveMember disconnects userID from the project. The creator can never be
// removed, whoever asks; removing a non-member is a no-op.
func (s *ProjectService) RemoveMember(ctx context.Context, actorID, projectID, userID string) (*models.Project, error) {
	var project *models.Project
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := findProject(tx, projectID)
		if err != nil {
			return err
		}
		if err := CheckMemberRemoval(p, userID); err != nil {
			return err
		}
		if err := AuthorizeProject(actorID, p, OpRemoveMember); err != nil {
			return err
		}

		err = tx.Where("project_id = ? AND user_id = ?", projectID, userID).
			Delete(&models.ProjectMember{}).Error
		if err != nil {
			return fmt.Errorf("remove member: %w", err)
		}

		project, err = loadProject(tx, projectID)
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Info().Str("project_id", projectID).Str("user_id", userID).Str("actor_id", actorID).Msg("project member removed")
	return project, nil
}

// Delete soft-deletes the project. Its tasks keep their project_id.
func (s *ProjectService) Delete(ctx context.Context, actorID, id string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := findProject(tx, id)
		if err != nil {
			return err
		}
		if err := AuthorizeProject(actorID, p, OpDelete); err != nil {
			return err
		}
		if err := tx.Delete(&models.Project{ID: p.ID}).Error; err != nil {
			return fmt.Errorf("delete project: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info().Str("project_id", id).Str("actor_id", actorID).Msg("project deleted")
	return nil
}

// findProject loads a project with its members. A missing project yields
// (nil, nil) so the access rules decide how to report it.
func findProject(tx *gorm.DB, id string) (*models.Project, error) {
	var p models.Project
	err := tx.Preload("Members").Where("id = ?", id).Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load project: %w", err)
	}
	return &p, nil
}

func loadProject(tx *gorm.DB, id string) (*models.Project, error) {
	var p models.Project
	err := tx.Preload("Creator").Preload("Members").Where("id = ?", id).Take(&p).Error
	if err != nil {
		return nil, fmt.Errorf("reload project: %w", err)
	}
	return &p, nil
}

// addMembers inserts membership rows, skipping users already in the project.
func addMembers(tx *gorm.DB, projectID string, userIDs ...string) error {
	if len(userIDs) == 0 {
		return nil
	}
	rows := make([]models.ProjectMember, 0, len(userIDs))
	for _, uid := range userIDs {
		rows = append(rows, models.ProjectMember{ProjectID: projectID, UserID: uid})
	}
	err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
	if err != nil {
		return fmt.Errorf("add members: %w", err)
	}
	return nil
}

// requireUsers fails with NOT_FOUND naming the first id that has no user row.
func requireUsers(tx *gorm.DB, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	var found []string
	if err := tx.Model(&models.User{}).Where("id IN ?", ids).Pluck("id", &found).Error; err != nil {
		return fmt.Errorf("lookup users: %w", err)
	}
	for _, id := range ids {
		if !containsID(found, id) {
			return response.NewNotFound(fmt.Sprintf("user %s not found", id))
		}
	}
	return nil
}
