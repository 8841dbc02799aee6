package services

import (
	"github.com/tasktracker/backend/internal/models"
	"github.com/tasktracker/backend/pkg/response"
	"gorm.io/gorm"
)

// Operation names an action checked by the access rules.
type Operation string

const (
	OpRead         Operation = "read"
	OpUpdate       Operation = "update"
	OpDelete       Operation = "delete"
	OpAddMember    Operation = "add_member"
	OpRemoveMember Operation = "remove_member"
)

// AuthorizeProject returns nil when actorID may perform op on p.
// p may be nil for a project that does not exist; mutations on a missing
// project are reported the same way as mutations on someone else's.
// OpRead needs p.Members loaded.
func AuthorizeProject(actorID string, p *models.Project, op Operation) error {
	if op == OpRead {
		if p == nil || (p.CreatorID != actorID && !p.HasMember(actorID)) {
			return response.NewNotFound("project not found")
		}
		return nil
	}

	if p != nil && p.CreatorID == actorID {
		return nil
	}
	switch op {
	case OpAddMember:
		return response.NewForbidden("only the project creator can add members")
	case OpRemoveMember:
		return response.NewForbidden("only the project creator can remove members")
	case OpDelete:
		return response.NewForbidden("not authorized to delete this project")
	default:
		return response.NewForbidden("not authorized to update this project")
	}
}

// CheckMemberRemoval rejects removing the creator from p, whoever asks.
func CheckMemberRemoval(p *models.Project, userID string) error {
	if p != nil && p.CreatorID == userID {
		return response.NewBadRequest("cannot remove the project creator")
	}
	return nil
}

// AuthorizeTask returns nil when actorID may perform op on t.
// Mutations are creator-only. Reads are also open to the assignee and to
// the creator or members of the task's project, which must be loaded with
// its Members for that case.
func AuthorizeTask(actorID string, t *models.Task, op Operation) error {
	if op == OpRead {
		if t == nil {
			return response.NewNotFound("task not found")
		}
		if t.CreatorID == actorID || (t.AssigneeID != nil && *t.AssigneeID == actorID) {
			return nil
		}
		if t.Project != nil && (t.Project.CreatorID == actorID || t.Project.HasMember(actorID)) {
			return nil
		}
		return response.NewNotFound("task not found")
	}

	if t != nil && t.CreatorID == actorID {
		return nil
	}
	if op == OpDelete {
		return response.NewForbidden("not authorized to delete this task")
	}
	return response.NewForbidden("not authorized to update this task")
}

// accessibleProjects scopes a projects query to those actorID created or
// belongs to.
func accessibleProjects(actorID string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		members := db.Session(&gorm.Session{NewDB: true}).
			Model(&models.ProjectMember{}).
			Select("project_id").
			Where("user_id = ?", actorID)
		return db.Where("projects.creator_id = ? OR projects.id IN (?)", actorID, members)
	}
}
