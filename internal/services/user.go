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
)

type UserService struct {
	db *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

type UpdateProfileRequest struct {
	Name *string `json:"name"`
}

// List returns the user directory ordered by name.
func (s *UserService) List(ctx context.Context) ([]models.User, error) {
	users := []models.User{}
	if err := s.db.WithContext(ctx).Order("name ASC").Order("id ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (s *UserService) GetProfile(ctx context.Context, actorID string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("id = ?", actorID).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, response.NewNotFound("user not found")
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateProfile changes the actor's display name. A blank name clears it.
func (s *UserService) UpdateProfile(ctx context.Context, actorID string, req *UpdateProfileRequest) (*models.User, error) {
	user, err := s.GetProfile(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if req.Name == nil {
		return user, nil
	}

	var name *string
	if trimmed := strings.TrimSpace(*req.Name); trimmed != "" {
		name = &trimmed
	}
	if err := s.db.WithContext(ctx).Model(user).Update("name", name).Error; err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	user.Name = name

	logger.Debug().Str("user_id", actorID).Msg("profile updated")
	return user, nil
}

// AssignedTasks returns the tasks assigned to the actor, newest first.
func (s *UserService) AssignedTasks(ctx context.Context, actorID string) ([]models.Task, error) {
	tasks := []models.Task{}
	err := s.db.WithContext(ctx).
		Scopes(withTaskRelations).
		Where("tasks.assignee_id = ?", actorID).
		Order("tasks.created_at DESC").
		Find(&tasks).Error
	if err != nil {
		return nil, err
	}
	return tasks, nil
}
