package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/truthlab/content-radar/internal/storage"
)

type createCaptureRequest struct {
	Title     string `json:"title"`
	URL       string `json:"url"`
	Text      string `json:"text"`
	OCRText   string `json:"ocrText"`
	SourceTag string `json:"sourceTag"`
}

func (s *Server) handleCreateCapture(c *gin.Context) {
	projectID, ok := mustProjectID(c)
	if !ok {
		return
	}

	var req createCaptureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "invalid_body", err.Error())

		return
	}

	if req.Text == "" && req.URL == "" && req.OCRText == "" {
		abortError(c, http.StatusBadRequest, "invalid_body", "at least one of text, url, or ocrText is required")

		return
	}

	captureID, err := s.captures.InsertCapture(c.Request.Context(), storage.Capture{
		ProjectID: projectID,
		UserID:    currentUserID(c),
		Title:     req.Title,
		URL:       req.URL,
		Text:      req.Text,
		OCRText:   req.OCRText,
		SourceTag: req.SourceTag,
	})
	if err != nil {
		abortError(c, http.StatusInternalServerError, "storage_error", err.Error())

		return
	}

	c.JSON(http.StatusCreated, gin.H{"captureId": captureID})
}

func (s *Server) handleListCaptures(c *gin.Context) {
	limit := s.cfg.TriagePageLimit
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= limit {
			limit = parsed
		}
	}

	offset := 0
	if raw := c.Query("offset"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	captures, err := s.captures.ListCaptures(c.Request.Context(), currentProjectID(c), limit, offset)
	if err != nil {
		abortError(c, http.StatusInternalServerError, "storage_error", err.Error())

		return
	}

	items := make([]gin.H, 0, len(captures))
	for _, capture := range captures {
		items = append(items, captureJSON(&capture))
	}

	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (s *Server) handleGetCapture(c *gin.Context) {
	capture, err := s.captures.GetCapture(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortError(c, http.StatusInternalServerError, "storage_error", err.Error())

		return
	}

	if capture == nil {
		abortError(c, http.StatusNotFound, "not_found", "capture not found")

		return
	}

	if capture.UserID != "" && capture.UserID != currentUserID(c) {
		abortError(c, http.StatusForbidden, "forbidden", "capture belongs to another user")

		return
	}

	c.JSON(http.StatusOK, gin.H{"capture": captureJSON(capture)})
}

func captureJSON(capture *storage.Capture) gin.H {
	return gin.H{
		"id":        capture.ID,
		"projectId": capture.ProjectID,
		"title":     capture.Title,
		"url":       capture.URL,
		"text":      capture.Text,
		"ocrText":   capture.OCRText,
		"sourceTag": capture.SourceTag,
		"createdAt": capture.CreatedAt,
	}
}
