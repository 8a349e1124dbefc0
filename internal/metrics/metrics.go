// Package metrics provides Prometheus instrumentation for the responder: how
// inbound messages were answered, which table layer matched, and how often the
// backing files were reloaded.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// MessagesTotal counts inbound text messages by outcome:
	// "reply", "warning", or "none".
	MessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "autoresponder_messages_total",
		Help: "Total number of inbound text messages processed",
	}, []string{"outcome"})

	// MatchesTotal counts resolved replies by table layer.
	MatchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "autoresponder_matches_total",
		Help: "Total number of replies resolved, by matching layer",
	}, []string{"layer"})

	// ResolveLatency records time spent in moderation plus reply resolution.
	ResolveLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "autoresponder_resolve_latency_seconds",
		Help:    "Moderation and reply resolution latency in seconds",
		Buckets: []float64{.0001, .0005, .001, .005, .01, .025, .05, .1},
	})

	// FileReloadsTotal counts backing-file reloads by file and result.
	FileReloadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "autoresponder_file_reloads_total",
		Help: "Total number of reply table and moderation policy reloads",
	}, []string{"file", "result"}) // result = "ok", "error"

	// RepliesSent counts outbound send attempts by result.
	RepliesSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "autoresponder_replies_sent_total",
		Help: "Total number of outbound replies attempted",
	}, []string{"result"}) // result = "ok", "error"

	// AdminChanges counts successful admin edits by operation.
	AdminChanges = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "autoresponder_admin_changes_total",
		Help: "Total number of reply table edits made through the admin API",
	}, []string{"op"})
)

func init() {
	prometheus.MustRegister(
		MessagesTotal,
		MatchesTotal,
		ResolveLatency,
		FileReloadsTotal,
		RepliesSent,
		AdminChanges,
	)
}

// ObserveResolve records the outcome of one message.
func ObserveResolve(outcome, layer string, started time.Time) {
	MessagesTotal.WithLabelValues(outcome).Inc()
	if layer != "" {
		MatchesTotal.WithLabelValues(layer).Inc()
	}
	ResolveLatency.Observe(time.Since(started).Seconds())
}

// ReloadHook returns a load hook for a cached file that counts reloads.
func ReloadHook(file string) func(error) {
	return func(err error) {
		result := "ok"
		if err != nil {
			result = "error"
		}
		FileReloadsTotal.WithLabelValues(file, result).Inc()
	}
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
