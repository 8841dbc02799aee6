package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/tasktracker/backend/internal/middleware"
	"github.com/tasktracker/backend/internal/services"
	"github.com/tasktracker/backend/pkg/response"
	"gorm.io/gorm"
)

type TaskHandler struct {
	taskService *services.TaskService
}

func NewTaskHandler(db *gorm.DB) *TaskHandler {
	return &TaskHandler{
		taskService: services.NewTaskService(db),
	}
}

// List returns the caller's tasks
// GET /api/tasks?project_id=&status=&assignee_id=
func (h *TaskHandler) List(c *gin.Context) {
	var filter services.TaskListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.Validation(c, err.Error())
		return
	}

	tasks, err := h.taskService.List(c.Request.Context(), middleware.GetUserID(c), &filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, tasks)
}

// ListByProjects returns every task in the given projects
// POST /api/tasks/by-projects
func (h *TaskHandler) ListByProjects(c *gin.Context) {
	var req services.TasksByProjectsRequest
	if !bindJSON(c, &req, true) {
		return
	}

	tasks, err := h.taskService.ListByProjects(c.Request.Context(), middleware.GetUserID(c), req.ProjectIDs)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, tasks)
}

// GetByID returns a task by ID
// GET /api/tasks/:id
func (h *TaskHandler) GetByID(c *gin.Context) {
	task, err := h.taskService.GetByID(c.Request.Context(), middleware.GetUserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, task)
}

// Create creates a new task
// POST /api/tasks
func (h *TaskHandler) Create(c *gin.Context) {
	var req services.CreateTaskRequest
	if !bindJSON(c, &req, false) {
		return
	}

	task, err := h.taskService.Create(c.Request.Context(), middleware.GetUserID(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, task)
}

// Update updates a task
// PUT /api/tasks/:id
func (h *TaskHandler) Update(c *gin.Context) {
	var req services.UpdateTaskRequest
	if !bindJSON(c, &req, true) {
		return
	}

	task, err := h.taskService.Update(c.Request.Context(), middleware.GetUserID(c), c.Param("id"), &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, task)
}

// Delete deletes a task
// DELETE /api/tasks/:id
func (h *TaskHandler) Delete(c *gin.Context) {
	if err := h.taskService.Delete(c.Request.Context(), middleware.GetUserID(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{"message": "task deleted"})
}
