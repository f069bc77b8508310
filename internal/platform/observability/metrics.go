package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TruthChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "radar_truth_checks_total",
		Help: "Total number of truth check pipeline runs by terminal status",
	}, []string{"status"})

	TriageLabelsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "radar_triage_labels_total",
		Help: "Total number of triage labels assigned by the scorer",
	}, []string{"label"})

	LLMRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "radar_llm_request_duration_seconds",
		Help:    "Duration of LLM analysis requests",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 90},
	}, []string{"model"})

	SignalPromotionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "radar_signal_promotions_total",
		Help: "Total number of signal promotions by outcome (created or merged)",
	}, []string{"outcome"})

	ReviewActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "radar_review_actions_total",
		Help: "Total number of human review actions",
	}, []string{"action"})

	GroupJobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "radar_group_jobs_total",
		Help: "Total number of group analysis jobs by terminal status",
	}, []string{"status"})

	AnalysisJobsPending = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "radar_analysis_jobs_pending",
		Help: "Current number of pending group analysis jobs",
	})

	GroupJobDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "radar_group_job_duration_seconds",
		Help:    "Duration of a single group analysis job",
		Buckets: []float64{1, 2, 5, 10, 20, 30, 60, 120, 300},
	})

	URLExtractionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "radar_url_extractions_total",
		Help: "Total number of URL extraction attempts in the input merger",
	}, []string{"status"})

	FeedEntriesIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "radar_feed_entries_ingested_total",
		Help: "Total number of feed entries materialized into captures",
	}, []string{"feed"})
)
