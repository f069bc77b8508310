package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/truthlab/content-radar/internal/core/signals"
	"github.com/truthlab/content-radar/internal/core/truth"
	"github.com/truthlab/content-radar/internal/storage"
)

// fakeBackend implements every storage surface the server touches.
type fakeBackend struct {
	checks   map[string]*storage.TruthCheck
	signals  map[string]*storage.Signal
	groups   map[string]*storage.CaptureGroup
	evidence map[string][]storage.Evidence
	triage   []storage.TruthCheck
	feedback []storage.SignalFeedback
	jobs     []string
	captures []storage.Capture
	feeds    []storage.Feed

	pipelineErr      error
	nextID           int
	lastInserted     storage.NewTruthCheck
	lastTriageFilter storage.TriageFilter
	promoteMerged    bool
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		checks:   map[string]*storage.TruthCheck{},
		signals:  map[string]*storage.Signal{},
		groups:   map[string]*storage.CaptureGroup{},
		evidence: map[string][]storage.Evidence{},
	}
}

func (f *fakeBackend) InsertTruthCheck(_ context.Context, in storage.NewTruthCheck) (string, error) {
	f.nextID++
	f.lastInserted = in
	id := "check-1"
	f.checks[id] = &storage.TruthCheck{
		ID:          id,
		UserID:      in.UserID,
		ProjectID:   in.ProjectID,
		Title:       in.Title,
		InputText:   in.InputText,
		InputURLs:   in.InputURLs,
		InputImages: in.InputImages,
		Status:      storage.CheckStatusPending,
		CreatedAt:   time.Now(),
	}

	return id, nil
}

func (f *fakeBackend) GetTruthCheck(_ context.Context, id string) (*storage.TruthCheck, error) {
	c, ok := f.checks[id]
	if !ok {
		return nil, nil
	}

	copied := *c

	return &copied, nil
}

func (f *fakeBackend) ListTriage(_ context.Context, filter storage.TriageFilter) ([]storage.TruthCheck, error) {
	f.lastTriageFilter = filter

	return f.triage, nil
}

func (f *fakeBackend) ListEvidence(_ context.Context, id string) ([]storage.Evidence, error) {
	return f.evidence[id], nil
}

func (f *fakeBackend) UpdateCheckReview(_ context.Context, id, reviewStatus, triageLabel string) error {
	f.checks[id].ReviewStatus = reviewStatus
	f.checks[id].TriageLabel = triageLabel

	return nil
}

func (f *fakeBackend) PromoteSignal(_ context.Context, sig storage.Signal, _ time.Duration) (*storage.PromoteOutcome, error) {
	id := "signal-1"
	stored := sig
	stored.ID = id
	f.signals[id] = &stored

	return &storage.PromoteOutcome{SignalID: id, Merged: f.promoteMerged}, nil
}

func (f *fakeBackend) GetSignal(_ context.Context, id string) (*storage.Signal, error) {
	sig, ok := f.signals[id]
	if !ok {
		return nil, nil
	}

	copied := *sig

	return &copied, nil
}

func (f *fakeBackend) ListSignals(_ context.Context, _ storage.SignalFilter) ([]storage.Signal, error) {
	items := []storage.Signal{}
	for _, sig := range f.signals {
		items = append(items, *sig)
	}

	return items, nil
}

func (f *fakeBackend) UpdateSignalStatus(_ context.Context, id, status string) error {
	f.signals[id].Status = status

	return nil
}

func (f *fakeBackend) InsertSignalFeedback(_ context.Context, fb storage.SignalFeedback) (string, error) {
	f.feedback = append(f.feedback, fb)

	return "fb-1", nil
}

func (f *fakeBackend) CreateGroup(_ context.Context, projectID, userID, name string) (string, error) {
	id := "group-1"
	f.groups[id] = &storage.CaptureGroup{ID: id, ProjectID: projectID, UserID: userID, Name: name, Status: storage.GroupStatusDraft}

	return id, nil
}

func (f *fakeBackend) GetGroup(_ context.Context, id string) (*storage.CaptureGroup, error) {
	g, ok := f.groups[id]
	if !ok {
		return nil, nil
	}

	copied := *g

	return &copied, nil
}

func (f *fakeBackend) AddGroupItems(_ context.Context, _ string, _ []string) error {
	return nil
}

func (f *fakeBackend) ListGroupCaptures(_ context.Context, _ string) ([]storage.GroupCapture, error) {
	return nil, nil
}

func (f *fakeBackend) EnqueueAnalysisJob(_ context.Context, targetType, targetID string) (string, error) {
	f.jobs = append(f.jobs, targetType+":"+targetID)

	return "job-1", nil
}

func (f *fakeBackend) InsertCapture(_ context.Context, capture storage.Capture) (string, error) {
	f.captures = append(f.captures, capture)

	return "cap-1", nil
}

func (f *fakeBackend) GetCapture(_ context.Context, _ string) (*storage.Capture, error) {
	return nil, nil
}

func (f *fakeBackend) ListCaptures(_ context.Context, _ string, _, _ int) ([]storage.Capture, error) {
	return f.captures, nil
}

func (f *fakeBackend) AddFeed(_ context.Context, projectID, url, title string) (string, error) {
	f.feeds = append(f.feeds, storage.Feed{ProjectID: projectID, URL: url, Title: title})

	return "feed-1", nil
}

func (f *fakeBackend) ListFeeds(_ context.Context) ([]storage.Feed, error) {
	return f.feeds, nil
}

func (f *fakeBackend) CreateProject(_ context.Context, _, _ string) (string, error) {
	return "project-1", nil
}

func (f *fakeBackend) ListProjects(_ context.Context, _ string) ([]storage.Project, error) {
	return nil, nil
}

// Run fakes the pipeline: it completes the inserted check in place.
func (f *fakeBackend) Run(_ context.Context, checkID string) (*storage.TruthCheck, error) {
	if f.pipelineErr != nil {
		return nil, f.pipelineErr
	}

	c := f.checks[checkID]
	c.Status = storage.CheckStatusComplete
	c.TriageLabel = truth.LabelNone
	c.Result = []byte(`{"headline":"done"}`)
	copied := *c

	return &copied, nil
}

func newTestServer(t *testing.T, backend *fakeBackend, jwtSecret string) *gin.Engine {
	t.Helper()

	nop := zerolog.Nop()
	sigs := signals.NewService(backend, 14*24*time.Hour, &nop)
	stores := Stores{Checks: backend, Groups: backend, Projects: backend, Captures: backend, Feeds: backend}
	srv := New(Config{Port: 0, JWTSecret: jwtSecret, TriagePageLimit: 2}, stores, backend, sigs, &nop)

	return srv.Router()
}

func doRequest(router *gin.Engine, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	return w
}

func userHeaders(userID string) map[string]string {
	return map[string]string{"X-User-ID": userID, "X-Project-ID": "11111111-1111-1111-1111-111111111111"}
}

func TestAnalyzeTextSuccess(t *testing.T) {
	backend := newFakeBackend()
	router := newTestServer(t, backend, "")

	w := doRequest(router, http.MethodPost, "/api/truth/analyze-text",
		gin.H{"text": "something worth analyzing", "title": "t"}, userHeaders("u1"))

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		TruthCheckID string    `json:"truthCheckId"`
		Result       checkJSON `json:"result"`
	}

	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "check-1", resp.TruthCheckID)
	assert.Equal(t, storage.CheckStatusComplete, resp.Result.Status)
	assert.Equal(t, "u1", backend.lastInserted.UserID)
}

func TestAnalyzeTextNoInputIs400(t *testing.T) {
	backend := newFakeBackend()
	backend.pipelineErr = truth.ErrNoAnalyzableInput
	router := newTestServer(t, backend, "")

	w := doRequest(router, http.MethodPost, "/api/truth/analyze-text", gin.H{"text": ""}, userHeaders("u1"))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "no_analyzable_input")
}

func TestAnalyzeTextUpstreamFailureIs502(t *testing.T) {
	backend := newFakeBackend()
	backend.pipelineErr = errors.New("provider down")
	router := newTestServer(t, backend, "")

	w := doRequest(router, http.MethodPost, "/api/truth/analyze-text", gin.H{"text": "x"}, userHeaders("u1"))

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "analysis_failed")
}

func TestAnalyzeBundleFoldsSnippets(t *testing.T) {
	backend := newFakeBackend()
	router := newTestServer(t, backend, "")

	w := doRequest(router, http.MethodPost, "/api/truth/analyze-bundle",
		gin.H{"text": "lead", "captureSnippets": []string{"snippet one"}}, userHeaders("u1"))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, backend.lastInserted.InputText, "[CAPTURE]\nsnippet one")
}

func TestGetCheckNotFound(t *testing.T) {
	router := newTestServer(t, newFakeBackend(), "")

	w := doRequest(router, http.MethodGet, "/api/truth/check/missing", nil, userHeaders("u1"))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetCheckForbiddenForOtherUser(t *testing.T) {
	backend := newFakeBackend()
	backend.checks["check-1"] = &storage.TruthCheck{ID: "check-1", UserID: "owner"}
	router := newTestServer(t, backend, "")

	w := doRequest(router, http.MethodGet, "/api/truth/check/check-1", nil, userHeaders("intruder"))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestGetCheckWithEvidence(t *testing.T) {
	backend := newFakeBackend()
	backend.checks["check-1"] = &storage.TruthCheck{ID: "check-1", UserID: "u1", Result: []byte(`{"headline":"h"}`)}
	backend.evidence["check-1"] = []storage.Evidence{{ID: "ev-1", Quote: "q", Payload: []byte(`{"captureIds":[]}`)}}
	router := newTestServer(t, backend, "")

	w := doRequest(router, http.MethodGet, "/api/truth/check/check-1", nil, userHeaders("u1"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"evidence"`)
	assert.Contains(t, w.Body.String(), "ev-1")
}

func TestReviewCheckConfirmed(t *testing.T) {
	backend := newFakeBackend()
	backend.checks["check-1"] = &storage.TruthCheck{ID: "check-1", UserID: "u1", TriageLabel: "needs_review"}
	router := newTestServer(t, backend, "")

	w := doRequest(router, http.MethodPost, "/api/truth/check-1/review",
		gin.H{"status": "confirmed", "note": "verified"}, userHeaders("u1"))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, storage.ReviewStatusConfirmed, backend.checks["check-1"].ReviewStatus)
	assert.Equal(t, truth.LabelResolved, backend.checks["check-1"].TriageLabel)
	require.Len(t, backend.feedback, 1)
	assert.Equal(t, "verified", backend.feedback[0].Notes)
}

func TestReviewCheckInvalidStatus(t *testing.T) {
	backend := newFakeBackend()
	backend.checks["check-1"] = &storage.TruthCheck{ID: "check-1", UserID: "u1"}
	router := newTestServer(t, backend, "")

	w := doRequest(router, http.MethodPost, "/api/truth/check-1/review",
		gin.H{"status": "approved"}, userHeaders("u1"))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_status")
}

func TestListTriagePagination(t *testing.T) {
	backend := newFakeBackend()
	now := time.Now()
	backend.triage = []storage.TruthCheck{
		{ID: "a", CreatedAt: now},
		{ID: "b", CreatedAt: now.Add(-time.Minute)},
	}
	router := newTestServer(t, backend, "")

	w := doRequest(router, http.MethodGet, "/api/truth/triage", nil, userHeaders("u1"))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Items      []checkJSON `json:"items"`
		NextCursor string      `json:"nextCursor"`
	}

	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Items, 2)
	assert.NotEmpty(t, resp.NextCursor)

	createdAt, id, err := decodeCursor(resp.NextCursor)
	require.NoError(t, err)
	assert.Equal(t, "b", id)
	assert.WithinDuration(t, now.Add(-time.Minute), createdAt, time.Second)
}

func TestListTriageLimitParam(t *testing.T) {
	backend := newFakeBackend()
	router := newTestServer(t, backend, "")

	// Server is configured with a page limit of 2.
	w := doRequest(router, http.MethodGet, "/api/truth/triage?limit=1", nil, userHeaders("u1"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, backend.lastTriageFilter.Limit)

	// Out-of-range and garbage values fall back to the configured limit.
	w = doRequest(router, http.MethodGet, "/api/truth/triage?limit=99", nil, userHeaders("u1"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, backend.lastTriageFilter.Limit)

	w = doRequest(router, http.MethodGet, "/api/truth/triage?limit=abc", nil, userHeaders("u1"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, backend.lastTriageFilter.Limit)
}

func TestListTriageInvalidCursor(t *testing.T) {
	router := newTestServer(t, newFakeBackend(), "")

	w := doRequest(router, http.MethodGet, "/api/truth/triage?cursor=garbage", nil, userHeaders("u1"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_cursor")
}

func TestCreateSignalRequiresProject(t *testing.T) {
	router := newTestServer(t, newFakeBackend(), "")

	w := doRequest(router, http.MethodPost, "/api/signals",
		gin.H{"title": "t", "summary": "s"}, map[string]string{"X-User-ID": "u1"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "missing_project_scope")
}

func TestCreateAndConfirmSignal(t *testing.T) {
	backend := newFakeBackend()
	router := newTestServer(t, backend, "")

	w := doRequest(router, http.MethodPost, "/api/signals",
		gin.H{"title": "Manual", "summary": "Typed in."}, userHeaders("u1"))
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"created":true`)

	w = doRequest(router, http.MethodPost, "/api/signals/signal-1/confirm", nil, userHeaders("u1"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, storage.SignalStatusConfirmed, backend.signals["signal-1"].Status)
}

func TestAnalyzeGroupEnqueuesJob(t *testing.T) {
	backend := newFakeBackend()
	backend.groups["group-1"] = &storage.CaptureGroup{ID: "group-1", UserID: "u1"}
	router := newTestServer(t, backend, "")

	w := doRequest(router, http.MethodPost, "/api/groups/group-1/analyze", nil, userHeaders("u1"))
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, []string{"group:group-1"}, backend.jobs)
}

func TestCreateCapture(t *testing.T) {
	backend := newFakeBackend()
	router := newTestServer(t, backend, "")

	w := doRequest(router, http.MethodPost, "/api/captures",
		gin.H{"title": "Thread", "text": "body", "sourceTag": "reddit"}, userHeaders("u1"))

	require.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, backend.captures, 1)
	assert.Equal(t, "reddit", backend.captures[0].SourceTag)
	assert.Equal(t, "u1", backend.captures[0].UserID)
}

func TestCreateCaptureRejectsEmptyContent(t *testing.T) {
	router := newTestServer(t, newFakeBackend(), "")

	w := doRequest(router, http.MethodPost, "/api/captures",
		gin.H{"title": "only a title"}, userHeaders("u1"))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAddFeedValidatesURL(t *testing.T) {
	backend := newFakeBackend()
	router := newTestServer(t, backend, "")

	w := doRequest(router, http.MethodPost, "/api/feeds", gin.H{"url": "not-a-url"}, userHeaders("u1"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(router, http.MethodPost, "/api/feeds",
		gin.H{"url": "https://example.com/rss.xml", "title": "Example"}, userHeaders("u1"))
	require.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, backend.feeds, 1)
	assert.Equal(t, "https://example.com/rss.xml", backend.feeds[0].URL)
}

func TestAuthRejectsMissingToken(t *testing.T) {
	router := newTestServer(t, newFakeBackend(), "test-secret")

	w := doRequest(router, http.MethodGet, "/api/truth/triage", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthAcceptsValidToken(t *testing.T) {
	secret := "test-secret"
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   "user-42",
		"email": "u@example.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})

	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)

	router := newTestServer(t, newFakeBackend(), secret)

	w := doRequest(router, http.MethodGet, "/api/truth/triage", nil,
		map[string]string{"Authorization": "Bearer " + signed})
	assert.Equal(t, http.StatusOK, w.Code)
}
