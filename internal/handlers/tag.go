package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/tasktracker/backend/internal/services"
	"github.com/tasktracker/backend/pkg/response"
	"gorm.io/gorm"
)

type TagHandler struct {
	tagService *services.TagService
}

func NewTagHandler(db *gorm.DB) *TagHandler {
	return &TagHandler{
		tagService: services.NewTagService(db),
	}
}

// List returns all tags
// GET /api/tags
func (h *TagHandler) List(c *gin.Context) {
	tags, err := h.tagService.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, tags)
}

// Create returns the tag with the given name, creating it if needed
// POST /api/tags
func (h *TagHandler) Create(c *gin.Context) {
	var req services.CreateTagRequest
	if !bindJSON(c, &req, false) {
		return
	}

	tag, err := h.tagService.Create(c.Request.Context(), &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, tag)
}

// Delete
// DELETE /api/tags/:id
func (h *TagHandler) Delete(c *gin.Context) {
	if err := h.tagService.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{"message": "tag deleted"})
}
