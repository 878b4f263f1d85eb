// Package metrics defines the Prometheus collectors of the listing relay and
// the HTTP server exposing them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ListingsProcessed counts listings by final outcome
	// (published, duplicate, failed, cancelled).
	ListingsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "listingbot_listings_processed_total",
		Help: "Listings that went through the publish pipeline, by outcome",
	}, []string{"outcome"})

	// StageDuration measures each pipeline step.
	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "listingbot_stage_duration_seconds",
		Help:    "Duration of pipeline stages in seconds",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"stage"})

	// Retries counts retried collaborator calls by operation and error class.
	Retries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "listingbot_retries_total",
		Help: "Retried collaborator calls",
	}, []string{"operation", "reason"})

	// MediaUploads counts single-photo uploads to the media store.
	MediaUploads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "listingbot_media_uploads_total",
		Help: "Photo uploads to the media store, by result",
	}, []string{"result"})

	// OrphanedPublications counts listings published to the channel whose
	// record could not be saved. Each one needs a manual look.
	OrphanedPublications = promauto.NewCounter(prometheus.CounterOpts{
		Name: "listingbot_orphaned_publications_total",
		Help: "Published listings that failed to persist",
	})

	// SourceMessagesRecorded counts channel posts written to the source table.
	SourceMessagesRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "listingbot_source_messages_recorded_total",
		Help: "Source channel messages recorded for ingestion",
	})

	// IngestRuns counts ingestion runs by status.
	IngestRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "listingbot_ingest_runs_total",
		Help: "Ingestion runs, by status",
	}, []string{"status"})

	// IngestCursor is the last source message id consumed per chat.
	IngestCursor = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "listingbot_ingest_cursor",
		Help: "Last source message id consumed by ingestion",
	}, []string{"chat_id"})

	// BreakerState reports circuit breaker state (0 closed, 1 half-open, 2 open).
	BreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "listingbot_circuit_breaker_state",
		Help: "Circuit breaker state per collaborator",
	}, []string{"name"})

	// MarkupPercent is the markup currently applied to prices.
	MarkupPercent = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "listingbot_markup_percent",
		Help: "Price markup percentage in effect",
	})
)
