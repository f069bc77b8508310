package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/truthlab/content-radar/internal/core/signals"
	"github.com/truthlab/content-radar/internal/core/truth"
	"github.com/truthlab/content-radar/internal/storage"
)

type checkJSON struct {
	ID              string          `json:"id"`
	UserID          string          `json:"userId"`
	ProjectID       string          `json:"projectId,omitempty"`
	GroupID         string          `json:"groupId,omitempty"`
	Title           string          `json:"title,omitempty"`
	Result          json.RawMessage `json:"result"`
	Confidence      *float64        `json:"confidence,omitempty"`
	ModelConfidence *float64        `json:"modelConfidence,omitempty"`
	Status          string          `json:"status"`
	ReviewStatus    string          `json:"reviewStatus"`
	TriageLabel     string          `json:"triageLabel"`
	TriageReasons   []string        `json:"triageReasons"`
	Error           string          `json:"error,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	CompletedAt     *time.Time      `json:"completedAt,omitempty"`
}

func toCheckJSON(c *storage.TruthCheck) checkJSON {
	result := c.Result
	if len(result) == 0 {
		result = []byte("{}")
	}

	reasons := c.TriageReasons
	if reasons == nil {
		reasons = []string{}
	}

	return checkJSON{
		ID:              c.ID,
		UserID:          c.UserID,
		ProjectID:       c.ProjectID,
		GroupID:         c.GroupID,
		Title:           c.Title,
		Result:          json.RawMessage(result),
		Confidence:      c.Confidence,
		ModelConfidence: c.ModelConfidence,
		Status:          c.Status,
		ReviewStatus:    c.ReviewStatus,
		TriageLabel:     c.TriageLabel,
		TriageReasons:   reasons,
		Error:           c.Error,
		CreatedAt:       c.CreatedAt,
		CompletedAt:     c.CompletedAt,
	}
}

type analyzeTextRequest struct {
	Text  string `json:"text"`
	Title string `json:"title"`
}

func (s *Server) handleAnalyzeText(c *gin.Context) {
	var req analyzeTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "invalid_body", err.Error())

		return
	}

	s.runAnalysis(c, storage.NewTruthCheck{
		UserID:    currentUserID(c),
		ProjectID: currentProjectID(c),
		Title:     req.Title,
		InputText: req.Text,
	})
}

type analyzeBundleRequest struct {
	Title           string   `json:"title"`
	Text            string   `json:"text"`
	URLs            []string `json:"urls"`
	ImageURLs       []string `json:"imageUrls"`
	CaptureSnippets []string `json:"captureSnippets"`
}

func (s *Server) handleAnalyzeBundle(c *gin.Context) {
	var req analyzeBundleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "invalid_body", err.Error())

		return
	}

	s.runAnalysis(c, storage.NewTruthCheck{
		UserID:      currentUserID(c),
		ProjectID:   currentProjectID(c),
		Title:       req.Title,
		InputText:   truth.FoldSnippets(req.Text, req.CaptureSnippets),
		InputURLs:   req.URLs,
		InputImages: req.ImageURLs,
	})
}

// runAnalysis inserts the check and drives the pipeline synchronously.
// Empty input is the caller's fault (400); a degraded model response still
// returns 200 with the errored check attached.
func (s *Server) runAnalysis(c *gin.Context, in storage.NewTruthCheck) {
	checkID, err := s.checks.InsertTruthCheck(c.Request.Context(), in)
	if err != nil {
		abortError(c, http.StatusInternalServerError, "storage_error", err.Error())

		return
	}

	check, err := s.pipeline.Run(c.Request.Context(), checkID)
	if err != nil {
		if errors.Is(err, truth.ErrNoAnalyzableInput) {
			abortError(c, http.StatusBadRequest, "no_analyzable_input", "no analyzable input after merging text, urls, and images")

			return
		}

		abortError(c, http.StatusBadGateway, "analysis_failed", err.Error())

		return
	}

	c.JSON(http.StatusOK, gin.H{
		"truthCheckId": check.ID,
		"result":       toCheckJSON(check),
	})
}

func (s *Server) handleGetCheck(c *gin.Context) {
	check, ok := s.loadOwnedCheck(c, c.Param("id"))
	if !ok {
		return
	}

	evidence, err := s.checks.ListEvidence(c.Request.Context(), check.ID)
	if err != nil {
		abortError(c, http.StatusInternalServerError, "storage_error", err.Error())

		return
	}

	evidenceJSON := make([]gin.H, 0, len(evidence))
	for _, ev := range evidence {
		payload := ev.Payload
		if len(payload) == 0 {
			payload = []byte("{}")
		}

		evidenceJSON = append(evidenceJSON, gin.H{
			"id":      ev.ID,
			"quote":   ev.Quote,
			"url":     ev.URL,
			"source":  ev.Source,
			"payload": json.RawMessage(payload),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"check":    toCheckJSON(check),
		"evidence": evidenceJSON,
	})
}

func (s *Server) handleListTriage(c *gin.Context) {
	limit := s.cfg.TriagePageLimit
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= limit {
			limit = parsed
		}
	}

	filter := storage.TriageFilter{
		ProjectID: currentProjectID(c),
		Label:     c.Query("label"),
		Limit:     limit,
	}

	if cursor := c.Query("cursor"); cursor != "" {
		createdAt, id, err := decodeCursor(cursor)
		if err != nil {
			abortError(c, http.StatusBadRequest, "invalid_cursor", err.Error())

			return
		}

		filter.CursorCreatedAt = createdAt
		filter.CursorID = id
	}

	items, err := s.checks.ListTriage(c.Request.Context(), filter)
	if err != nil {
		abortError(c, http.StatusInternalServerError, "storage_error", err.Error())

		return
	}

	itemsJSON := make([]checkJSON, 0, len(items))
	for i := range items {
		itemsJSON = append(itemsJSON, toCheckJSON(&items[i]))
	}

	resp := gin.H{"items": itemsJSON}
	if len(items) == filter.Limit && filter.Limit > 0 {
		last := items[len(items)-1]
		resp["nextCursor"] = encodeCursor(last.CreatedAt, last.ID)
	}

	c.JSON(http.StatusOK, resp)
}

type reviewRequest struct {
	Status string `json:"status"`
	Note   string `json:"note"`
}

func (s *Server) handleReviewCheck(c *gin.Context) {
	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "invalid_body", err.Error())

		return
	}

	check, ok := s.loadOwnedCheck(c, c.Param("checkId"))
	if !ok {
		return
	}

	updated, err := s.signals.ReviewCheck(c.Request.Context(), check.ID, currentUserID(c), req.Status, req.Note)
	if err != nil {
		switch {
		case errors.Is(err, signals.ErrInvalidReviewStatus):
			abortError(c, http.StatusBadRequest, "invalid_status", "status must be confirmed or needs_edit")
		case errors.Is(err, signals.ErrNotFound):
			abortError(c, http.StatusNotFound, "not_found", "check not found")
		default:
			abortError(c, http.StatusInternalServerError, "storage_error", err.Error())
		}

		return
	}

	c.JSON(http.StatusOK, gin.H{"check": toCheckJSON(updated)})
}

// loadOwnedCheck fetches a check and enforces ownership: 404 when absent,
// 403 when owned by someone else.
func (s *Server) loadOwnedCheck(c *gin.Context, id string) (*storage.TruthCheck, bool) {
	check, err := s.checks.GetTruthCheck(c.Request.Context(), id)
	if err != nil {
		abortError(c, http.StatusInternalServerError, "storage_error", err.Error())

		return nil, false
	}

	if check == nil {
		abortError(c, http.StatusNotFound, "not_found", "check not found")

		return nil, false
	}

	if check.UserID != "" && check.UserID != currentUserID(c) {
		abortError(c, http.StatusForbidden, "forbidden", "check belongs to another user")

		return nil, false
	}

	return check, true
}

const cursorSeparator = "|"

func encodeCursor(createdAt time.Time, id string) string {
	return createdAt.UTC().Format(time.RFC3339Nano) + cursorSeparator + id
}

func decodeCursor(cursor string) (time.Time, string, error) {
	ts, id, ok := strings.Cut(cursor, cursorSeparator)
	if !ok {
		return time.Time{}, "", errors.New("cursor must be <timestamp>|<id>")
	}

	createdAt, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return time.Time{}, "", err
	}

	return createdAt, id, nil
}
