package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/tasktracker/backend/internal/config"
	"github.com/tasktracker/backend/internal/middleware"
	"github.com/tasktracker/backend/internal/models"
	"github.com/tasktracker/backend/internal/utils"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
	utils.SetJWTSecret("handler-test-secret")
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	t      *testing.T
	db     *gorm.DB
	router *gin.Engine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	if err := models.Migrate(db); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	cfg := config.DefaultConfig()
	r := gin.New()
	r.GET("/health", NewHealthHandler(db).CheckHealth)

	authHandler := NewAuthHandler(db, cfg)
	r.POST("/api/auth/register", authHandler.Register)
	r.POST("/api/auth/login", authHandler.Login)

	api := r.Group("/api", middleware.AuthRequired())
	projects := NewProjectHandler(db)
	api.GET("/projects", projects.List)
	api.POST("/projects", projects.Create)
	api.GET("/projects/:id", projects.GetByID)
	api.PUT("/projects/:id", projects.Update)
	api.DELETE("/projects/:id", projects.Delete)
	api.POST("/projects/:id/members", projects.AddMember)
	api.DELETE("/projects/:id/members/:userId", projects.RemoveMember)

	tasks := NewTaskHandler(db)
	api.GET("/tasks", tasks.List)
	api.POST("/tasks", tasks.Create)
	api.POST("/tasks/by-projects", tasks.ListByProjects)
	api.GET("/tasks/:id", tasks.GetByID)
	api.PUT("/tasks/:id", tasks.Update)
	api.DELETE("/tasks/:id", tasks.Delete)

	tags := NewTagHandler(db)
	api.GET("/tags", tags.List)
	api.POST("/tags", tags.Create)
	api.DELETE("/tags/:id", tags.Delete)

	users := NewUserHandler(db)
	api.GET("/users", users.List)
	api.GET("/users/me", users.GetProfile)
	api.PUT("/users/me", users.UpdateProfile)
	api.GET("/users/me/tasks", users.AssignedTasks)

	return &testServer{t: t, db: db, router: r}
}

// register creates an account and returns its id and a bearer token.
func (s *testServer) register(email string) (string, string) {
	s.t.Helper()
	var user models.User
	s.do("POST", "/api/auth/register", "", gin.H{"email": email, "password": "secret1"}, http.StatusCreated, &user)

	var login struct {
		Token string `json:"token"`
	}
	s.do("POST", "/api/auth/login", "", gin.H{"email": email, "password": "secret1"}, http.StatusOK, &login)
	return user.ID, login.Token
}

func (s *testServer) do(method, path, token string, body interface{}, wantStatus int, out interface{}) envelope {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			json.NewEncoder(&buf).Encode(b)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	if w.Code != wantStatus {
		s.t.Fatalf("%s %s: status = %d, expected %d (body %s)", method, path, w.Code, wantStatus, w.Body.String())
	}
	var env envelope
	json.Unmarshal(w.Body.Bytes(), &env)
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			s.t.Fatalf("decode data: %v", err)
		}
	}
	return env
}

func TestRoutes_RequireAuth(t *testing.T) {
	s := newTestServer(t)
	for _, path := range []string{"/api/projects", "/api/tasks", "/api/tags", "/api/users/me"} {
		s.do("GET", path, "", nil, http.StatusUnauthorized, nil)
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))
	if w.Code != http.StatusOK {
		t.Errorf("GET /health = %d, expected 200", w.Code)
	}
}

func TestAuth_DuplicateAndBadLogin(t *testing.T) {
	s := newTestServer(t)
	s.register("ann@example.com")

	s.do("POST", "/api/auth/register", "", gin.H{"email": "ann@example.com", "password": "secret1"}, http.StatusConflict, nil)
	s.do("POST", "/api/auth/register", "", gin.H{"email": "not-an-email", "password": "secret1"}, http.StatusUnprocessableEntity, nil)
	s.do("POST", "/api/auth/login", "", gin.H{"email": "ann@example.com", "password": "wrong!"}, http.StatusUnauthorized, nil)
}

func TestProjects_LaunchVisibility(t *testing.T) {
	s := newTestServer(t)
	u1, tok1 := s.register("u1@example.com")
	_, tok2 := s.register("u2@example.com")

	var launch models.Project
	s.do("POST", "/api/projects", tok1, gin.H{"name": "Launch"}, http.StatusCreated, &launch)
	if launch.CreatorID != u1 || len(launch.Members) != 1 {
		t.Errorf("created project = %+v", launch)
	}

	var mine, theirs []models.Project
	s.do("GET", "/api/projects", tok1, nil, http.StatusOK, &mine)
	s.do("GET", "/api/projects", tok2, nil, http.StatusOK, &theirs)
	if len(mine) != 1 || len(theirs) != 0 {
		t.Errorf("U1 sees %d, U2 sees %d; expected 1 and 0", len(mine), len(theirs))
	}

	s.do("GET", "/api/projects/"+launch.ID, tok2, nil, http.StatusNotFound, nil)
	s.do("PUT", "/api/projects/"+launch.ID, tok2, gin.H{"name": "x"}, http.StatusForbidden, nil)
	s.do("DELETE", "/api/projects/"+launch.ID+"/members/"+u1, tok2, nil, http.StatusBadRequest, nil)
	s.do("DELETE", "/api/projects/"+launch.ID+"/members/"+u1, tok1, nil, http.StatusBadRequest, nil)

	env := s.do("DELETE", "/api/projects/"+launch.ID, tok1, nil, http.StatusOK, nil)
	if !bytes.Contains(env.Data, []byte("project deleted")) {
		t.Errorf("delete response data = %s", env.Data)
	}
}

func TestProjects_Membership(t *testing.T) {
	s := newTestServer(t)
	_, tok1 := s.register("owner@example.com")
	u2, tok2 := s.register("guest@example.com")

	var p models.Project
	s.do("POST", "/api/projects", tok1, gin.H{"name": "Team"}, http.StatusCreated, &p)

	s.do("POST", "/api/projects/"+p.ID+"/members", tok1, gin.H{}, http.StatusUnprocessableEntity, nil)
	s.do("POST", "/api/projects/"+p.ID+"/members", tok2, gin.H{"user_id": u2}, http.StatusForbidden, nil)
	s.do("POST", "/api/projects/"+p.ID+"/members", tok1, gin.H{"user_id": u2}, http.StatusOK, &p)
	if len(p.Members) != 2 {
		t.Errorf("len(Members) = %d, expected 2", len(p.Members))
	}

	s.do("GET", "/api/projects/"+p.ID, tok2, nil, http.StatusOK, nil)
	s.do("DELETE", "/api/projects/"+p.ID+"/members/"+u2, tok1, nil, http.StatusOK, &p)
	s.do("GET", "/api/projects/"+p.ID, tok2, nil, http.StatusNotFound, nil)
}

func TestTasks_Lifecycle(t *testing.T) {
	s := newTestServer(t)
	_, tok1 := s.register("u1@example.com")
	_, tok2 := s.register("u2@example.com")

	var p models.Project
	s.do("POST", "/api/projects", tok1, gin.H{"name": "Launch"}, http.StatusCreated, &p)

	var task models.Task
	s.do("POST", "/api/tasks", tok1, gin.H{
		"title":        "Write docs",
		"tag_ids":      []string{},
		"new_tag_name": "urgent",
		"project_id":   p.ID,
		"deadline":     "2026-11-01T10:00:00Z",
	}, http.StatusCreated, &task)
	if len(task.Tags) != 1 || task.Tags[0].Name != "urgent" {
		t.Fatalf("Tags = %+v", task.Tags)
	}
	if task.Status != models.StatusTodo || task.Priority != models.PriorityMedium {
		t.Errorf("defaults = %s/%s", task.Status, task.Priority)
	}

	s.do("POST", "/api/tasks", tok1, `{"title":"bad","status":"FINISHED"}`, http.StatusUnprocessableEntity, nil)
	s.do("POST", "/api/tasks", tok1, gin.H{"title": "bad", "deadline": "tomorrow"}, http.StatusUnprocessableEntity, nil)

	s.do("PUT", "/api/tasks/"+task.ID, tok2, gin.H{"title": "stolen"}, http.StatusForbidden, nil)
	s.do("DELETE", "/api/tasks/"+task.ID, tok2, nil, http.StatusForbidden, nil)
	s.do("GET", "/api/tasks/"+task.ID, tok2, nil, http.StatusNotFound, nil)

	var updated models.Task
	s.do("PUT", "/api/tasks/"+task.ID, tok1, `{"status":"DONE","project_id":null,"deadline":null}`, http.StatusOK, &updated)
	if updated.Status != models.StatusDone || updated.ProjectID != nil || updated.Deadline != nil {
		t.Errorf("updated = status %s project %v deadline %v", updated.Status, updated.ProjectID, updated.Deadline)
	}
	if len(updated.Tags) != 1 {
		t.Errorf("tags should be untouched without tag_ids, got %d", len(updated.Tags))
	}

	var list []models.Task
	s.do("GET", "/api/tasks?status=DONE", tok1, nil, http.StatusOK, &list)
	if len(list) != 1 {
		t.Errorf("len(list) = %d, expected 1", len(list))
	}
	s.do("GET", "/api/tasks", tok2, nil, http.StatusOK, &list)
	if len(list) != 0 {
		t.Errorf("U2 should have no tasks, got %d", len(list))
	}
	s.do("GET", "/api/tasks?status=bogus", tok1, nil, http.StatusUnprocessableEntity, nil)

	s.do("DELETE", "/api/tasks/"+task.ID, tok1, nil, http.StatusOK, nil)
	s.do("GET", "/api/tasks/"+task.ID, tok1, nil, http.StatusNotFound, nil)
}

func TestTasks_ByProjects(t *testing.T) {
	s := newTestServer(t)
	_, tok1 := s.register("owner@example.com")
	u2, tok2 := s.register("member@example.com")

	var p models.Project
	s.do("POST", "/api/projects", tok1, gin.H{"name": "Shared", "members": []string{u2}}, http.StatusCreated, &p)
	s.do("POST", "/api/tasks", tok1, gin.H{"title": "owner task", "project_id": p.ID}, http.StatusCreated, nil)

	var tasks []models.Task
	s.do("POST", "/api/tasks/by-projects", tok2, gin.H{"project_ids": []string{p.ID}}, http.StatusOK, &tasks)
	if len(tasks) != 1 {
		t.Errorf("member should see the owner's task in the shared project, got %d", len(tasks))
	}

	_, tok3 := s.register("outsider@example.com")
	s.do("POST", "/api/tasks/by-projects", tok3, gin.H{"project_ids": []string{p.ID}}, http.StatusOK, &tasks)
	if len(tasks) != 1 {
		t.Errorf("listing by project ids is not scoped to the caller, got %d tasks", len(tasks))
	}
}

func TestTags_Routes(t *testing.T) {
	s := newTestServer(t)
	_, tok := s.register("tagger@example.com")

	var first, second models.Tag
	s.do("POST", "/api/tags", tok, gin.H{"name": "x"}, http.StatusOK, &first)
	s.do("POST", "/api/tags", tok, gin.H{"name": "x"}, http.StatusOK, &second)
	if first.ID == "" || first.ID != second.ID {
		t.Errorf("tag create should be idempotent: %s vs %s", first.ID, second.ID)
	}
	s.do("POST", "/api/tags", tok, gin.H{"name": ""}, http.StatusUnprocessableEntity, nil)

	var tags []models.Tag
	s.do("GET", "/api/tags", tok, nil, http.StatusOK, &tags)
	if len(tags) != 1 {
		t.Errorf("len(tags) = %d, expected 1", len(tags))
	}

	s.do("DELETE", "/api/tags/"+first.ID, tok, nil, http.StatusOK, nil)
	s.do("DELETE", "/api/tags/"+first.ID, tok, nil, http.StatusForbidden, nil)
}

func TestUsers_Routes(t *testing.T) {
	s := newTestServer(t)
	id, tok := s.register("me@example.com")

	var me models.User
	s.do("GET", "/api/users/me", tok, nil, http.StatusOK, &me)
	if me.ID != id {
		t.Errorf("profile id = %q, expected %q", me.ID, id)
	}

	s.do("PUT", "/api/users/me", tok, gin.H{"name": "Me"}, http.StatusOK, &me)
	if me.Name == nil || *me.Name != "Me" {
		t.Errorf("Name = %v, expected Me", me.Name)
	}

	var users []models.User
	s.do("GET", "/api/users", tok, nil, http.StatusOK, &users)
	if len(users) != 1 {
		t.Errorf("len(users) = %d, expected 1", len(users))
	}

	var assigned []models.Task
	s.do("GET", "/api/users/me/tasks", tok, nil, http.StatusOK, &assigned)
	if len(assigned) != 0 {
		t.Errorf("len(assigned) = %d, expected 0", len(assigned))
	}
}
