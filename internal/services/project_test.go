package services

import (
	"testing"

	"github.com/tasktracker/backend/internal/models"
	"github.com/tasktracker/backend/pkg/response"
	"gorm.io/gorm"
)

func memberIDs(p *models.Project) map[string]bool {
	ids := make(map[string]bool, len(p.Members))
	for _, m := range p.Members {
		ids[m.ID] = true
	}
	return ids
}

func countMembers(t *testing.T, db *gorm.DB, projectID string) int64 {
	t.Helper()
	var n int64
	db.Model(&models.ProjectMember{}).Where("project_id = ?", projectID).Count(&n)
	return n
}

func TestProjectService_CreateAddsCreator(t *testing.T) {
	db := openTestDB(t)
	svc := NewProjectService(db)
	u1 := createUser(t, db, "u1")
	u2 := createUser(t, db, "u2")

	tests := []struct {
		name    string
		members []string
		want    int
	}{
		{"no members", nil, 1},
		{"creator omitted", []string{u2.ID}, 2},
		{"creator duplicated", []string{u1.ID, u2.ID, u1.ID, u2.ID}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := svc.Create(ctx, u1.ID, &CreateProjectRequest{Name: "Launch", Members: tt.members})
			if err != nil {
				t.Fatalf("Create() error = %v", err)
			}
			if p.CreatorID != u1.ID {
				t.Errorf("CreatorID = %q, expected %q", p.CreatorID, u1.ID)
			}
			if !memberIDs(p)[u1.ID] {
				t.Error("creator should be a member")
			}
			if len(p.Members) != tt.want {
				t.Errorf("len(Members) = %d, expected %d", len(p.Members), tt.want)
			}
			if p.Creator == nil || p.Creator.ID != u1.ID {
				t.Error("creator summary should be loaded")
			}
		})
	}
}

func TestProjectService_CreateValidation(t *testing.T) {
	db := openTestDB(t)
	svc := NewProjectService(db)
	u1 := createUser(t, db, "u1")

	_, err := svc.Create(ctx, u1.ID, &CreateProjectRequest{Name: "   "})
	expectErr(t, err, response.ErrValidation)

	_, err = svc.Create(ctx, u1.ID, &CreateProjectRequest{Name: "Launch", Members: []string{"ghost"}})
	expectErr(t, err, response.ErrNotFound)

	var n int64
	db.Model(&models.Project{}).Count(&n)
	if n != 0 {
		t.Errorf("failed creates should not leave projects behind, found %d", n)
	}
}

func TestProjectService_LaunchVisibility(t *testing.T) {
	db := openTestDB(t)
	svc := NewProjectService(db)
	u1 := createUser(t, db, "u1")
	u2 := createUser(t, db, "u2")

	launch, err := svc.Create(ctx, u1.ID, &CreateProjectRequest{Name: "Launch"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	mine, err := svc.ListAccessible(ctx, u1.ID)
	if err != nil {
		t.Fatalf("ListAccessible() error = %v", err)
	}
	if len(mine) != 1 || mine[0].Name != "Launch" {
		t.Errorf("U1 should see Launch, got %+v", mine)
	}

	theirs, err := svc.ListAccessible(ctx, u2.ID)
	if err != nil {
		t.Fatalf("ListAccessible() error = %v", err)
	}
	if len(theirs) != 0 {
		t.Errorf("U2 should see no projects, got %d", len(theirs))
	}

	_, err = svc.GetByID(ctx, u2.ID, launch.ID)
	expectErr(t, err, response.ErrNotFound)

	_, err = svc.GetByID(ctx, u1.ID, "missing")
	expectErr(t, err, response.ErrNotFound)
}

func TestProjectService_MemberSeesSharedProject(t *testing.T) {
	db := openTestDB(t)
	svc := NewProjectService(db)
	owner := createUser(t, db, "owner")
	member := createUser(t, db, "member")

	p, _ := svc.Create(ctx, owner.ID, &CreateProjectRequest{Name: "Shared", Members: []string{member.ID}})

	list, err := svc.ListAccessible(ctx, member.ID)
	if err != nil {
		t.Fatalf("ListAccessible() error = %v", err)
	}
	if len(list) != 1 || list[0].ID != p.ID {
		t.Fatalf("member should see the shared project, got %+v", list)
	}
	if len(list[0].Members) != 2 || list[0].Creator == nil {
		t.Error("listing should carry creator and member summaries")
	}

	got, err := svc.GetByID(ctx, member.ID, p.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Name != "Shared" {
		t.Errorf("Name = %q, expected %q", got.Name, "Shared")
	}
}

func TestProjectService_GetByIDIncludesTasks(t *testing.T) {
	db := openTestDB(t)
	svc := NewProjectService(db)
	owner := createUser(t, db, "owner")
	p, _ := svc.Create(ctx, owner.ID, &CreateProjectRequest{Name: "With tasks"})

	db.Create(&models.Task{Title: "one", CreatorID: owner.ID, ProjectID: &p.ID})
	db.Create(&models.Task{Title: "two", CreatorID: owner.ID, ProjectID: &p.ID})

	got, err := svc.GetByID(ctx, owner.ID, p.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if len(got.Tasks) != 2 {
		t.Errorf("len(Tasks) = %d, expected 2", len(got.Tasks))
	}
}

func TestProjectService_UpdateIsCreatorOnly(t *testing.T) {
	db := openTestDB(t)
	svc := NewProjectService(db)
	owner := createUser(t, db, "owner")
	member := createUser(t, db, "member")
	desc := "first"
	p, _ := svc.Create(ctx, owner.ID, &CreateProjectRequest{Name: "Alpha", Description: &desc, Members: []string{member.ID}})

	_, err := svc.Update(ctx, member.ID, p.ID, &UpdateProjectRequest{Name: strPtr("Hijacked")})
	expectErr(t, err, response.ErrForbidden)

	_, err = svc.Update(ctx, owner.ID, "missing", &UpdateProjectRequest{Name: strPtr("x")})
	expectErr(t, err, response.ErrForbidden)

	_, err = svc.Update(ctx, owner.ID, p.ID, &UpdateProjectRequest{Name: strPtr(" ")})
	expectErr(t, err, response.ErrValidation)

	got, err := svc.Update(ctx, owner.ID, p.ID, &UpdateProjectRequest{Name: strPtr("Beta")})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if got.Name != "Beta" {
		t.Errorf("Name = %q, expected %q", got.Name, "Beta")
	}
	if got.Description == nil || *got.Description != "first" {
		t.Error("absent description should be left unchanged")
	}

	got, err = svc.Update(ctx, owner.ID, p.ID, &UpdateProjectRequest{Description: Null[string]()})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if got.Description != nil {
		t.Errorf("Description = %q, expected nil", *got.Description)
	}
	if got.Name != "Beta" {
		t.Errorf("Name = %q, expected %q", got.Name, "Beta")
	}
}

// countCreates counts INSERT statements issued against db after the call.
func countCreates(t *testing.T, db *gorm.DB) *int {
	t.Helper()
	n := new(int)
	name := "test:count_creates:" + t.Name()
	err := db.Callback().Create().After("gorm:create").Register(name, func(tx *gorm.DB) {
		*n++
	})
	if err != nil {
		t.Fatalf("register callback: %v", err)
	}
	t.Cleanup(func() { db.Callback().Create().Remove(name) })
	return n
}

func TestProjectService_UpdateAndDeleteLeaveMembersAlone(t *testing.T) {
	db := openTestDB(t)
	svc := NewProjectService(db)
	owner := createUser(t, db, "owner")
	member := createUser(t, db, "member")
	p, _ := svc.Create(ctx, owner.ID, &CreateProjectRequest{Name: "Team", Members: []string{member.ID}})

	creates := countCreates(t, db)
	if _, err := svc.Update(ctx, owner.ID, p.ID, &UpdateProjectRequest{Name: strPtr("Renamed")}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if err := svc.Delete(ctx, owner.ID, p.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if *creates != 0 {
		t.Errorf("update and delete issued %d inserts, expected none", *creates)
	}
	if n := countMembers(t, db, p.ID); n != 2 {
		t.Errorf("membership rows = %d, expected 2", n)
	}
}

func TestProjectService_AddMember(t *testing.T) {
	db := openTestDB(t)
	svc := NewProjectService(db)
	owner := createUser(t, db, "owner")
	guest := createUser(t, db, "guest")
	other := createUser(t, db, "other")
	p, _ := svc.Create(ctx, owner.ID, &CreateProjectRequest{Name: "Team"})

	_, err := svc.AddMember(ctx, guest.ID, p.ID, other.ID)
	expectErr(t, err, response.ErrForbidden)

	_, err = svc.AddMember(ctx, owner.ID, p.ID, "ghost")
	expectErr(t, err, response.ErrNotFound)

	for i := 0; i < 2; i++ {
		got, err := svc.AddMember(ctx, owner.ID, p.ID, guest.ID)
		if err != nil {
			t.Fatalf("AddMember() #%d error = %v", i+1, err)
		}
		if !memberIDs(got)[guest.ID] {
			t.Error("guest should be a member")
		}
	}
	if n := countMembers(t, db, p.ID); n != 2 {
		t.Errorf("membership rows = %d, expected 2", n)
	}
}

func TestProjectService_RemoveCreatorIsBadRequest(t *testing.T) {
	db := openTestDB(t)
	svc := NewProjectService(db)
	owner := createUser(t, db, "owner")
	member := createUser(t, db, "member")
	outsider := createUser(t, db, "outsider")
	p, _ := svc.Create(ctx, owner.ID, &CreateProjectRequest{Name: "Guarded", Members: []string{member.ID}})

	for _, actor := range []*models.User{owner, member, outsider} {
		t.Run(*actor.Name, func(t *testing.T) {
			_, err := svc.RemoveMember(ctx, actor.ID, p.ID, owner.ID)
			expectErr(t, err, response.ErrBadRequest)
			if n := countMembers(t, db, p.ID); n != 2 {
				t.Errorf("membership rows = %d, expected 2", n)
			}
		})
	}
}

func TestProjectService_RemoveMember(t *testing.T) {
	db := openTestDB(t)
	svc := NewProjectService(db)
	owner := createUser(t, db, "owner")
	member := createUser(t, db, "member")
	p, _ := svc.Create(ctx, owner.ID, &CreateProjectRequest{Name: "Team", Members: []string{member.ID}})

	_, err := svc.RemoveMember(ctx, member.ID, p.ID, member.ID)
	expectErr(t, err, response.ErrForbidden)

	_, err = svc.RemoveMember(ctx, owner.ID, "missing", member.ID)
	expectErr(t, err, response.ErrForbidden)

	for i := 0; i < 2; i++ {
		got, err := svc.RemoveMember(ctx, owner.ID, p.ID, member.ID)
		if err != nil {
			t.Fatalf("RemoveMember() #%d error = %v", i+1, err)
		}
		if memberIDs(got)[member.ID] {
			t.Error("member should have been removed")
		}
	}

	_, err = svc.GetByID(ctx, member.ID, p.ID)
	expectErr(t, err, response.ErrNotFound)
}

func TestProjectService_Delete(t *testing.T) {
	db := openTestDB(t)
	svc := NewProjectService(db)
	owner := createUser(t, db, "owner")
	member := createUser(t, db, "member")
	p, _ := svc.Create(ctx, owner.ID, &CreateProjectRequest{Name: "Doomed", Members: []string{member.ID}})
	task := models.Task{Title: "orphan-to-be", CreatorID: owner.ID, ProjectID: &p.ID}
	db.Create(&task)

	expectErr(t, svc.Delete(ctx, member.ID, p.ID), response.ErrForbidden)
	expectErr(t, svc.Delete(ctx, owner.ID, "missing"), response.ErrForbidden)

	if err := svc.Delete(ctx, owner.ID, p.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	list, _ := svc.ListAccessible(ctx, owner.ID)
	if len(list) != 0 {
		t.Errorf("deleted project should not be listed, got %d", len(list))
	}
	_, err := svc.GetByID(ctx, owner.ID, p.ID)
	expectErr(t, err, response.ErrNotFound)

	var kept models.Task
	if err := db.Preload("Project").Take(&kept, "id = ?", task.ID).Error; err != nil {
		t.Fatalf("task should survive project deletion: %v", err)
	}
	if kept.ProjectID == nil || *kept.ProjectID != p.ID {
		t.Error("task should keep its project_id")
	}
	if kept.Project != nil {
		t.Error("dangling project should not preload")
	}
}
