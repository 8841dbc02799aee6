package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/tasktracker/backend/internal/models"
	"github.com/tasktracker/backend/pkg/logger"
	"github.com/tasktracker/backend/pkg/response"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TagService struct {
	db *gorm.DB
}

func NewTagService(db *gorm.DB) *TagService {
	return &TagService{db: db}
}

type CreateTagRequest struct {
	Name string `json:"name" binding:"required"`
}

// NormalizeTagName trims surrounding whitespace and enforces the 1-50
// character bound.
func NormalizeTagName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", response.NewValidation("tag name is required")
	}
	if utf8.RuneCountInString(name) > models.TagNameMaxLen {
		return "", response.NewValidation("tag name must be at most %d characters", models.TagNameMaxLen)
	}
	return name, nil
}

// ResolveTag returns the tag called name, creating it when absent. The
// insert ignores a name conflict and the row is re-read, so two callers
// racing on the same new name both end up with the one stored tag.
// name must already be normalized.
func ResolveTag(tx *gorm.DB, name string) (*models.Tag, error) {
	var tag models.Tag
	err := tx.Where("name = ?", name).Take(&tag).Error
	if err == nil {
		return &tag, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("lookup tag %q: %w", name, err)
	}

	candidate := models.Tag{Name: name}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}).Create(&candidate).Error; err != nil {
		return nil, fmt.Errorf("create tag %q: %w", name, err)
	}

	if err := tx.Where("name = ?", name).Take(&tag).Error; err != nil {
		return nil, fmt.Errorf("reload tag %q: %w", name, err)
	}
	if tag.ID == candidate.ID {
		logger.Debug().Str("tag_id", tag.ID).Str("name", name).Msg("tag created")
	}
	return &tag, nil
}

// List returns every tag ordered by name.
func (s *TagService) List(ctx context.Context) ([]models.Tag, error) {
	tags := []models.Tag{}
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&tags).Error; err != nil {
		return nil, err
	}
	return tags, nil
}

// Create is idempotent by name: an existing tag is returned as is.
func (s *TagService) Create(ctx context.Context, req *CreateTagRequest) (*models.Tag, error) {
	name, err := NormalizeTagName(req.Name)
	if err != nil {
		return nil, err
	}

	var tag *models.Tag
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		tag, err = ResolveTag(tx, name)
		return err
	})
	if err != nil {
		return nil, err
	}
	return tag, nil
}

// Delete removes a tag and detaches it from every task. Tags have no owner,
// so any authenticated user may delete one; a missing tag is reported as
// forbidden.
func (s *TagService) Delete(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var tag models.Tag
		if err := tx.Where("id = ?", id).Take(&tag).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return response.NewForbidden("not authorized to delete this tag")
			}
			return err
		}

		if err := tx.Exec("DELETE FROM task_tags WHERE tag_id = ?", tag.ID).Error; err != nil {
			return fmt.Errorf("detach tag: %w", err)
		}
		if err := tx.Delete(&tag).Error; err != nil {
			return fmt.Errorf("delete tag: %w", err)
		}

		logger.Info().Str("tag_id", tag.ID).Str("name", tag.Name).Msg("tag deleted")
		return nil
	})
}
