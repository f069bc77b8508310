package signals

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/truthlab/content-radar/internal/core/truth"
	"github.com/truthlab/content-radar/internal/storage"
)

type fakeStore struct {
	promoted []storage.Signal
	windows  []time.Duration
	outcome  storage.PromoteOutcome
	checks   map[string]*storage.TruthCheck
	signals  map[string]*storage.Signal
	feedback []storage.SignalFeedback
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		outcome: storage.PromoteOutcome{SignalID: "sig-1"},
		checks:  map[string]*storage.TruthCheck{},
		signals: map[string]*storage.Signal{},
	}
}

func (s *fakeStore) PromoteSignal(_ context.Context, sig storage.Signal, window time.Duration) (*storage.PromoteOutcome, error) {
	s.promoted = append(s.promoted, sig)
	s.windows = append(s.windows, window)
	out := s.outcome

	return &out, nil
}

func (s *fakeStore) GetSignal(_ context.Context, id string) (*storage.Signal, error) {
	sig, ok := s.signals[id]
	if !ok {
		return nil, nil
	}

	copied := *sig

	return &copied, nil
}

func (s *fakeStore) ListSignals(_ context.Context, _ storage.SignalFilter) ([]storage.Signal, error) {
	return nil, nil
}

func (s *fakeStore) UpdateSignalStatus(_ context.Context, id, status string) error {
	s.signals[id].Status = status

	return nil
}

func (s *fakeStore) InsertSignalFeedback(_ context.Context, fb storage.SignalFeedback) (string, error) {
	s.feedback = append(s.feedback, fb)

	return "fb-1", nil
}

func (s *fakeStore) GetTruthCheck(_ context.Context, id string) (*storage.TruthCheck, error) {
	c, ok := s.checks[id]
	if !ok {
		return nil, nil
	}

	copied := *c

	return &copied, nil
}

func (s *fakeStore) UpdateCheckReview(_ context.Context, id, reviewStatus, triageLabel string) error {
	s.checks[id].ReviewStatus = reviewStatus
	s.checks[id].TriageLabel = triageLabel

	return nil
}

func newService(store Store) *Service {
	nop := zerolog.Nop()

	return NewService(store, 14*24*time.Hour, &nop)
}

func sampleResult() *truth.Result {
	return &truth.Result{
		Headline: "Quiet launch",
		Summary:  "Usage tripled without an announcement.",
		Chain: truth.Chain{
			Fact:           "Usage tripled in one week",
			Observation:    "No announcement happened",
			Insight:        "Discovery was peer to peer",
			HumanTruth:     "Recommendations beat marketing",
			CulturalMoment: "Organic growth as credibility",
		},
		Confidence: 0.8,
		Receipts:   []truth.Receipt{{Quote: "usage tripled"}},
	}
}

func TestPromoteAnalysisBuildsSignal(t *testing.T) {
	store := newFakeStore()
	svc := newService(store)

	check := &storage.TruthCheck{ID: "c1", UserID: "u1", ProjectID: "p1", Title: "fallback"}
	require.NoError(t, svc.PromoteAnalysis(context.Background(), check, sampleResult()))

	require.Len(t, store.promoted, 1)
	sig := store.promoted[0]
	assert.Equal(t, "p1", sig.ProjectID)
	assert.Equal(t, "u1", sig.CreatedBy)
	assert.Equal(t, "Quiet launch", sig.Title)
	assert.Equal(t, "Usage tripled in one week", sig.TruthFact)
	assert.Equal(t, "c1", sig.TruthCheckID)
	assert.Equal(t, storage.SignalOriginAnalysis, sig.Origin)
	assert.NotEmpty(t, sig.ContentHash)
	assert.Equal(t, 14*24*time.Hour, store.windows[0])
}

func TestPromoteAnalysisSkipsWithoutProject(t *testing.T) {
	store := newFakeStore()
	svc := newService(store)

	check := &storage.TruthCheck{ID: "c1", UserID: "u1"}
	require.NoError(t, svc.PromoteAnalysis(context.Background(), check, sampleResult()))
	assert.Empty(t, store.promoted)
}

func TestHashSignalDeterministicAndProjectScoped(t *testing.T) {
	result := sampleResult()

	assert.Equal(t, HashSignal("p1", "t", result), HashSignal("p1", "t", result))
	assert.NotEqual(t, HashSignal("p1", "t", result), HashSignal("p2", "t", result))
}

func TestReviewCheckConfirmed(t *testing.T) {
	store := newFakeStore()
	store.checks["c1"] = &storage.TruthCheck{ID: "c1", TriageLabel: "needs_review", ReviewStatus: storage.ReviewStatusUnreviewed}
	svc := newService(store)

	check, err := svc.ReviewCheck(context.Background(), "c1", "u1", "confirmed", "looks right")
	require.NoError(t, err)
	assert.Equal(t, storage.ReviewStatusConfirmed, check.ReviewStatus)
	assert.Equal(t, truth.LabelResolved, check.TriageLabel)

	require.Len(t, store.feedback, 1)
	assert.Equal(t, "c1", store.feedback[0].TruthCheckID)
	assert.Equal(t, "confirmed", store.feedback[0].Action)
	assert.Equal(t, "looks right", store.feedback[0].Notes)
}

func TestReviewCheckNeedsEdit(t *testing.T) {
	store := newFakeStore()
	store.checks["c1"] = &storage.TruthCheck{ID: "c1", TriageLabel: "needs_review"}
	svc := newService(store)

	check, err := svc.ReviewCheck(context.Background(), "c1", "u1", "needs_edit", "")
	require.NoError(t, err)
	assert.Equal(t, storage.ReviewStatusNeedsEdit, check.ReviewStatus)
	assert.Equal(t, truth.LabelInReview, check.TriageLabel)
}

func TestReviewCheckIdempotent(t *testing.T) {
	store := newFakeStore()
	store.checks["c1"] = &storage.TruthCheck{ID: "c1"}
	svc := newService(store)

	_, err := svc.ReviewCheck(context.Background(), "c1", "u1", "confirmed", "")
	require.NoError(t, err)

	check, err := svc.ReviewCheck(context.Background(), "c1", "u1", "confirmed", "")
	require.NoError(t, err)
	assert.Equal(t, storage.ReviewStatusConfirmed, check.ReviewStatus)
	assert.Len(t, store.feedback, 2)
}

func TestReviewCheckInvalidStatus(t *testing.T) {
	svc := newService(newFakeStore())

	_, err := svc.ReviewCheck(context.Background(), "c1", "u1", "approved", "")
	assert.ErrorIs(t, err, ErrInvalidReviewStatus)
}

func TestReviewCheckNotFound(t *testing.T) {
	svc := newService(newFakeStore())

	_, err := svc.ReviewCheck(context.Background(), "missing", "u1", "confirmed", "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReviewSignal(t *testing.T) {
	store := newFakeStore()
	store.signals["s1"] = &storage.Signal{ID: "s1", Status: storage.SignalStatusUnreviewed}
	svc := newService(store)

	sig, err := svc.ReviewSignal(context.Background(), "s1", "u1", storage.SignalStatusNeedsEdit, "tighten summary")
	require.NoError(t, err)
	assert.Equal(t, storage.SignalStatusNeedsEdit, sig.Status)
	require.Len(t, store.feedback, 1)
	assert.Equal(t, "s1", store.feedback[0].SignalID)
}

func TestCreateManualSetsOrigin(t *testing.T) {
	store := newFakeStore()
	svc := newService(store)

	_, err := svc.CreateManual(context.Background(), storage.Signal{
		ProjectID: "p1",
		CreatedBy: "u1",
		Title:     "Manual insight",
		Summary:   "Typed in by hand.",
	})
	require.NoError(t, err)
	require.Len(t, store.promoted, 1)
	assert.Equal(t, storage.SignalOriginManual, store.promoted[0].Origin)
	assert.NotEmpty(t, store.promoted[0].ContentHash)
}
