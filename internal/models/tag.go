package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const TagNameMaxLen = 50

// Tag is a global label. Names are unique; tags are hard-deleted.
type Tag struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Name      string    `gorm:"uniqueIndex;size:50;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

func (Tag) TableName() string { return "tags" }

func (t *Tag) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}
