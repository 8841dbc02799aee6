package handlers

import (
	"errors"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/tasktracker/backend/pkg/response"
)

// bindJSON decodes the request body into req, answering 422 on failure.
// An empty body is accepted when allowEmpty is set.
func bindJSON(c *gin.Context, req interface{}, allowEmpty bool) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return true
		}
		response.Validation(c, err.Error())
		return false
	}
	return true
}
