package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Ingestion pipeline counters. The daemon is headless, so these and the logs
// are its only operational surface.
var (
	EventsReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hashtagd_events_received_total",
		Help: "Stream messages of type \"message\" received.",
	})

	EventsMalformed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hashtagd_events_malformed_total",
		Help: "Stream messages skipped because the payload failed to decode or lacked an rc_id.",
	})

	HashtagsMatched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hashtagd_hashtags_matched_total",
		Help: "Hashtag candidates that passed validity filtering.",
	})

	DuplicatesSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hashtagd_duplicates_skipped_total",
		Help: "(hashtag, rc_id) pairs skipped by the duplicate guard or by the insert-time uniqueness fallback.",
	})

	RowsInserted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hashtagd_rows_inserted_total",
		Help: "Hashtag rows written to the store.",
	})

	EnrichmentFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hashtagd_enrichment_failures_total",
		Help: "Media lookups that failed and degraded to no-media flags.",
	})

	StreamReconnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hashtagd_stream_reconnects_total",
		Help: "Reconnect attempts against the event stream.",
	})
)
