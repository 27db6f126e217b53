package wanderbites

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds the application's Prometheus collectors. Each App has its own
// registry so several apps (tests) can live in one process.
type Metrics struct {
	Registry       *prometheus.Registry
	SearchRequests *prometheus.CounterVec
	SearchResults  prometheus.Histogram
	ContactSubmits *prometheus.CounterVec
}

func newMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		SearchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wanderbites_search_requests_total",
			Help: "Search requests by outcome (success, empty, error).",
		}, []string{"status"}),
		SearchResults: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "wanderbites_search_results",
			Help:    "Number of posts returned per successful search.",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50},
		}),
		ContactSubmits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wanderbites_contact_submissions_total",
			Help: "Contact form submissions by outcome (sent, invalid, failed, limited).",
		}, []string{"status"}),
	}
	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.SearchRequests,
		m.SearchResults,
		m.ContactSubmits,
	)
	return m
}
