// Package metrics holds the daemon's prometheus collectors. Everything is
// registered on the default registry and served by the control router's
// /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FactsMerged counts facts accepted by the round store, by kind and rank.
	FactsMerged = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "plonkdeck",
		Name:      "facts_merged_total",
		Help:      "Facts merged into round records, by kind and source rank.",
	}, []string{"kind", "rank"})

	// FactsDropped counts facts rejected by dedup or the rank policy.
	FactsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "plonkdeck",
		Name:      "facts_dropped_total",
		Help:      "Facts dropped before merging, by reason.",
	}, []string{"reason"})

	// LifecycleTransitions counts state machine transitions.
	LifecycleTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "plonkdeck",
		Name:      "lifecycle_transitions_total",
		Help:      "Round lifecycle transitions, by target state.",
	}, []string{"to"})

	// GeocodeResolutions counts pipeline outcomes.
	GeocodeResolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "plonkdeck",
		Name:      "geocode_resolutions_total",
		Help:      "Country resolution outcomes (override, geocoded, failed).",
	}, []string{"outcome"})

	// GeocodeLatency tracks reverse-geocoding round trips.
	GeocodeLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "plonkdeck",
		Name:      "geocode_latency_seconds",
		Help:      "Reverse geocoding request latency.",
		Buckets:   prometheus.DefBuckets,
	})

	// CardsCreated counts flashcards submitted to the flashcard program.
	CardsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "plonkdeck",
		Name:      "cards_created_total",
		Help:      "Flashcards created, by outcome.",
	}, []string{"outcome"})
)
