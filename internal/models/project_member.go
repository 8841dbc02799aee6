package models

import "time"

// ProjectMember is the join row behind Project.Members. Registered with
// SetupJoinTable so membership records when the user joined.
type ProjectMember struct {
	ProjectID string    `gorm:"primaryKey;size:36" json:"project_id"`
	UserID    string    `gorm:"primaryKey;size:36;index" json:"user_id"`
	CreatedAt time.Time `json:"joined_at"`
}

func (ProjectMember) TableName() string { return "project_members" }
