package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/truthlab/content-radar/internal/core/signals"
	"github.com/truthlab/content-radar/internal/storage"
)

type signalJSON struct {
	ID                  string          `json:"id"`
	ProjectID           string          `json:"projectId"`
	CreatedBy           string          `json:"createdBy"`
	SourceCaptureIDs    []string        `json:"sourceCaptureIds"`
	TruthCheckID        string          `json:"truthCheckId,omitempty"`
	Title               string          `json:"title"`
	Summary             string          `json:"summary"`
	TruthFact           string          `json:"truthFact,omitempty"`
	TruthObservation    string          `json:"truthObservation,omitempty"`
	TruthInsight        string          `json:"truthInsight,omitempty"`
	TruthHumanTruth     string          `json:"truthHumanTruth,omitempty"`
	TruthCulturalMoment string          `json:"truthCulturalMoment,omitempty"`
	StrategicMoves      []string        `json:"strategicMoves"`
	Cohorts             []string        `json:"cohorts"`
	Receipts            json.RawMessage `json:"receipts"`
	Confidence          *float64        `json:"confidence,omitempty"`
	WhySurfaced         string          `json:"whySurfaced,omitempty"`
	Origin              string          `json:"origin"`
	Status              string          `json:"status"`
	CreatedAt           time.Time       `json:"createdAt"`
	UpdatedAt           time.Time       `json:"updatedAt"`
}

func toSignalJSON(sig *storage.Signal) signalJSON {
	receipts := sig.Receipts
	if len(receipts) == 0 {
		receipts = []byte("[]")
	}

	return signalJSON{
		ID:                  sig.ID,
		ProjectID:           sig.ProjectID,
		CreatedBy:           sig.CreatedBy,
		SourceCaptureIDs:    emptyIfNil(sig.SourceCaptureIDs),
		TruthCheckID:        sig.TruthCheckID,
		Title:               sig.Title,
		Summary:             sig.Summary,
		TruthFact:           sig.TruthFact,
		TruthObservation:    sig.TruthObservation,
		TruthInsight:        sig.TruthInsight,
		TruthHumanTruth:     sig.TruthHumanTruth,
		TruthCulturalMoment: sig.TruthCulturalMoment,
		StrategicMoves:      emptyIfNil(sig.StrategicMoves),
		Cohorts:             emptyIfNil(sig.Cohorts),
		Receipts:            json.RawMessage(receipts),
		Confidence:          sig.Confidence,
		WhySurfaced:         sig.WhySurfaced,
		Origin:              sig.Origin,
		Status:              sig.Status,
		CreatedAt:           sig.CreatedAt,
		UpdatedAt:           sig.UpdatedAt,
	}
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}

	return s
}

type createSignalRequest struct {
	Title               string   `json:"title"`
	Summary             string   `json:"summary"`
	TruthFact           string   `json:"truthFact"`
	TruthObservation    string   `json:"truthObservation"`
	TruthInsight        string   `json:"truthInsight"`
	TruthHumanTruth     string   `json:"truthHumanTruth"`
	TruthCulturalMoment string   `json:"truthCulturalMoment"`
	StrategicMoves      []string `json:"strategicMoves"`
	Cohorts             []string `json:"cohorts"`
	SourceCaptureIDs    []string `json:"sourceCaptureIds"`
	SourceTag           string   `json:"sourceTag"`
}

func (s *Server) handleCreateSignal(c *gin.Context) {
	projectID, ok := mustProjectID(c)
	if !ok {
		return
	}

	var req createSignalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "invalid_body", err.Error())

		return
	}

	if req.Title == "" || req.Summary == "" {
		abortError(c, http.StatusBadRequest, "invalid_body", "title and summary are required")

		return
	}

	outcome, err := s.signals.CreateManual(c.Request.Context(), storage.Signal{
		ProjectID:           projectID,
		CreatedBy:           currentUserID(c),
		SourceCaptureIDs:    req.SourceCaptureIDs,
		Title:               req.Title,
		Summary:             req.Summary,
		TruthFact:           req.TruthFact,
		TruthObservation:    req.TruthObservation,
		TruthInsight:        req.TruthInsight,
		TruthHumanTruth:     req.TruthHumanTruth,
		TruthCulturalMoment: req.TruthCulturalMoment,
		StrategicMoves:      req.StrategicMoves,
		Cohorts:             req.Cohorts,
		SourceTag:           req.SourceTag,
	})
	if err != nil {
		abortError(c, http.StatusInternalServerError, "storage_error", err.Error())

		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"signalId": outcome.SignalID,
		"created":  !outcome.Merged,
	})
}

func (s *Server) handleListSignals(c *gin.Context) {
	items, err := s.signals.List(c.Request.Context(), storage.SignalFilter{
		ProjectID: currentProjectID(c),
		Status:    c.Query("status"),
		Limit:     s.cfg.TriagePageLimit,
	})
	if err != nil {
		abortError(c, http.StatusInternalServerError, "storage_error", err.Error())

		return
	}

	itemsJSON := make([]signalJSON, 0, len(items))
	for i := range items {
		itemsJSON = append(itemsJSON, toSignalJSON(&items[i]))
	}

	c.JSON(http.StatusOK, gin.H{"items": itemsJSON})
}

func (s *Server) handleConfirmSignal(c *gin.Context) {
	s.reviewSignal(c, storage.SignalStatusConfirmed)
}

func (s *Server) handleNeedsEditSignal(c *gin.Context) {
	s.reviewSignal(c, storage.SignalStatusNeedsEdit)
}

type signalReviewRequest struct {
	Note string `json:"note"`
}

func (s *Server) reviewSignal(c *gin.Context, status string) {
	var req signalReviewRequest
	// Body is optional for signal review actions.
	_ = c.ShouldBindJSON(&req)

	sig, err := s.signals.ReviewSignal(c.Request.Context(), c.Param("id"), currentUserID(c), status, req.Note)
	if err != nil {
		switch {
		case errors.Is(err, signals.ErrNotFound):
			abortError(c, http.StatusNotFound, "not_found", "signal not found")
		case errors.Is(err, signals.ErrInvalidReviewStatus):
			abortError(c, http.StatusBadRequest, "invalid_status", "invalid review status")
		default:
			abortError(c, http.StatusInternalServerError, "storage_error", err.Error())
		}

		return
	}

	c.JSON(http.StatusOK, gin.H{"signal": toSignalJSON(sig)})
}
