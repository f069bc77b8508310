package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type createProjectRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleCreateProject(c *gin.Context) {
	var req createProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "invalid_body", err.Error())

		return
	}

	if req.Name == "" {
		abortError(c, http.StatusBadRequest, "invalid_body", "name is required")

		return
	}

	projectID, err := s.projects.CreateProject(c.Request.Context(), currentUserID(c), req.Name)
	if err != nil {
		abortError(c, http.StatusInternalServerError, "storage_error", err.Error())

		return
	}

	c.JSON(http.StatusCreated, gin.H{"projectId": projectID})
}

func (s *Server) handleListProjects(c *gin.Context) {
	projects, err := s.projects.ListProjects(c.Request.Context(), currentUserID(c))
	if err != nil {
		abortError(c, http.StatusInternalServerError, "storage_error", err.Error())

		return
	}

	items := make([]gin.H, 0, len(projects))
	for _, p := range projects {
		items = append(items, gin.H{
			"id":        p.ID,
			"name":      p.Name,
			"createdAt": p.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{"items": items})
}
