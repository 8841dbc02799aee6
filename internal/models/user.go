package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is an account. Only id, name and email are ever serialized, so a
// User doubles as the public user summary.
type User struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Name      *string   `gorm:"size:100" json:"name"`
	Email     *string   `gorm:"uniqueIndex;size:255" json:"email"`
	Password  string    `gorm:"size:255" json:"-"` // bcrypt hash, empty for externally provisioned users
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

func (User) TableName() string { return "users" }

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}
