package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/truthlab/content-radar/internal/storage"
)

type createGroupRequest struct {
	Name       string   `json:"name"`
	CaptureIDs []string `json:"captureIds"`
}

func (s *Server) handleCreateGroup(c *gin.Context) {
	projectID, ok := mustProjectID(c)
	if !ok {
		return
	}

	var req createGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "invalid_body", err.Error())

		return
	}

	if req.Name == "" {
		abortError(c, http.StatusBadRequest, "invalid_body", "name is required")

		return
	}

	groupID, err := s.groups.CreateGroup(c.Request.Context(), projectID, currentUserID(c), req.Name)
	if err != nil {
		abortError(c, http.StatusInternalServerError, "storage_error", err.Error())

		return
	}

	if len(req.CaptureIDs) > 0 {
		if err := s.groups.AddGroupItems(c.Request.Context(), groupID, req.CaptureIDs); err != nil {
			abortError(c, http.StatusInternalServerError, "storage_error", err.Error())

			return
		}
	}

	c.JSON(http.StatusCreated, gin.H{"groupId": groupID})
}

func (s *Server) handleGetGroup(c *gin.Context) {
	group, ok := s.loadOwnedGroup(c, c.Param("id"))
	if !ok {
		return
	}

	captures, err := s.groups.ListGroupCaptures(c.Request.Context(), group.ID)
	if err != nil {
		abortError(c, http.StatusInternalServerError, "storage_error", err.Error())

		return
	}

	capturesJSON := make([]gin.H, 0, len(captures))
	for _, capture := range captures {
		capturesJSON = append(capturesJSON, gin.H{
			"captureId": capture.CaptureID,
			"position":  capture.Position,
			"title":     capture.Title,
			"url":       capture.URL,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"group": gin.H{
			"id":        group.ID,
			"projectId": group.ProjectID,
			"name":      group.Name,
			"status":    group.Status,
			"createdAt": group.CreatedAt,
		},
		"captures": capturesJSON,
	})
}

type addGroupItemsRequest struct {
	CaptureIDs []string `json:"captureIds"`
}

func (s *Server) handleAddGroupItems(c *gin.Context) {
	group, ok := s.loadOwnedGroup(c, c.Param("id"))
	if !ok {
		return
	}

	var req addGroupItemsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "invalid_body", err.Error())

		return
	}

	if len(req.CaptureIDs) == 0 {
		abortError(c, http.StatusBadRequest, "invalid_body", "captureIds is required")

		return
	}

	if err := s.groups.AddGroupItems(c.Request.Context(), group.ID, req.CaptureIDs); err != nil {
		abortError(c, http.StatusInternalServerError, "storage_error", err.Error())

		return
	}

	c.JSON(http.StatusOK, gin.H{"groupId": group.ID, "added": len(req.CaptureIDs)})
}

// handleAnalyzeGroup queues background analysis for the group. Queueing is
// idempotent while a job for the group is in flight.
func (s *Server) handleAnalyzeGroup(c *gin.Context) {
	group, ok := s.loadOwnedGroup(c, c.Param("id"))
	if !ok {
		return
	}

	jobID, err := s.groups.EnqueueAnalysisJob(c.Request.Context(), storage.JobTargetGroup, group.ID)
	if err != nil {
		abortError(c, http.StatusInternalServerError, "storage_error", err.Error())

		return
	}

	resp := gin.H{"groupId": group.ID, "queued": jobID != ""}
	if jobID != "" {
		resp["jobId"] = jobID
	}

	c.JSON(http.StatusAccepted, resp)
}

func (s *Server) loadOwnedGroup(c *gin.Context, id string) (*storage.CaptureGroup, bool) {
	group, err := s.groups.GetGroup(c.Request.Context(), id)
	if err != nil {
		abortError(c, http.StatusInternalServerError, "storage_error", err.Error())

		return nil, false
	}

	if group == nil {
		abortError(c, http.StatusNotFound, "not_found", "group not found")

		return nil, false
	}

	if group.UserID != "" && group.UserID != currentUserID(c) {
		abortError(c, http.StatusForbidden, "forbidden", "group belongs to another user")

		return nil, false
	}

	return group, true
}
