package metrics

import (
	"net/http"
	"time"

	"walletbot/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	requests      *prometheus.CounterVec
	fetchDuration prometheus.Histogram
	swapsFetched  prometheus.Histogram
	skipped       *prometheus.CounterVec
}

// New registers the bot collectors plus go/process collectors on a private registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "walletbot_requests_total",
			Help: "Wallet report requests by source and outcome.",
		}, []string{"source", "outcome"}),
		fetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "walletbot_fetch_duration_seconds",
			Help:    "Duration of the swaps query to the indexing API.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 9),
		}),
		swapsFetched: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "walletbot_swaps_fetched",
			Help:    "Swap records returned per successful fetch.",
			Buckets: []float64{0, 1, 10, 50, 100, 250, 500, 1000},
		}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "walletbot_updates_skipped_total",
			Help: "Telegram updates dropped before reaching the report pipeline.",
		}, []string{"reason"}),
	}

	reg.MustRegister(m.requests, m.fetchDuration, m.swapsFetched, m.skipped)

	return m
}

func (m *Metrics) ObserveRequest(source domain.Source, outcome domain.Outcome) {
	m.requests.WithLabelValues(string(source), string(outcome)).Inc()
}

func (m *Metrics) ObserveFetch(d time.Duration, swaps int) {
	m.fetchDuration.Observe(d.Seconds())
	if swaps >= 0 {
		m.swapsFetched.Observe(float64(swaps))
	}
}

func (m *Metrics) ObserveSkipped(reason string) {
	m.skipped.WithLabelValues(reason).Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
