// Package metrics exposes Prometheus collectors for the starwatch crawler.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	crawlPagesTotal       *prometheus.CounterVec
	crawlReposTotal       *prometheus.CounterVec
	crawlRunsTotal        *prometheus.CounterVec
	checkpointWritesTotal *prometheus.CounterVec
	apiRequestsTotal      *prometheus.CounterVec
	apiRetriesTotal       prometheus.Counter
	budgetWaitSeconds     *prometheus.HistogramVec
	rateRemaining         *prometheus.GaugeVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		crawlPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "starwatch_pages_total",
				Help: "Total number of search pages fetched, labeled by stream.",
			},
			[]string{"stream"},
		)

		crawlReposTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "starwatch_repos_total",
				Help: "Total number of repositories sunk, labeled by stream.",
			},
			[]string{"stream"},
		)

		crawlRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "starwatch_runs_total",
				Help: "Total number of crawl runs, labeled by stream and terminal status.",
			},
			[]string{"stream", "status"},
		)

		checkpointWritesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "starwatch_checkpoint_writes_total",
				Help: "Total number of checkpoint cursor advances, labeled by stream.",
			},
			[]string{"stream"},
		)

		apiRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "starwatch_api_requests_total",
				Help: "Total number of search API requests, labeled by HTTP status code.",
			},
			[]string{"code"},
		)

		apiRetriesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "starwatch_api_retries_total",
				Help: "Total number of retried search API requests.",
			},
		)

		budgetWaitSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "starwatch_budget_wait_seconds",
				Help:    "Histogram of pauses taken to let the API rate budget recover.",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 900},
			},
			[]string{"stream"},
		)

		rateRemaining = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "starwatch_rate_remaining",
				Help: "Most recently reported API rate budget remaining, labeled by stream.",
			},
			[]string{"stream"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePage increments the fetched page counter for the stream.
func ObservePage(stream string) {
	crawlPagesTotal.WithLabelValues(stream).Inc()
}

// ObserveRepos adds the number of repositories sunk for the stream.
func ObserveRepos(stream string, count int) {
	if count > 0 {
		crawlReposTotal.WithLabelValues(stream).Add(float64(count))
	}
}

// ObserveRun increments the run counter for the given terminal status.
func ObserveRun(stream string, status string) {
	crawlRunsTotal.WithLabelValues(stream, status).Inc()
}

// ObserveCheckpoint increments the checkpoint write counter for the stream.
func ObserveCheckpoint(stream string) {
	checkpointWritesTotal.WithLabelValues(stream).Inc()
}

// ObserveAPIRequest increments the API request counter for the status code.
// Code zero is recorded as a network failure.
func ObserveAPIRequest(code int) {
	label := "network_error"
	if code > 0 {
		label = strconv.Itoa(code)
	}
	apiRequestsTotal.WithLabelValues(label).Inc()
}

// ObserveAPIRetry increments the retried request counter.
func ObserveAPIRetry() {
	apiRetriesTotal.Inc()
}

// ObserveBudgetWait records the duration of a rate budget pause.
func ObserveBudgetWait(stream string, duration time.Duration) {
	budgetWaitSeconds.WithLabelValues(stream).Observe(duration.Seconds())
}

// SetRateRemaining records the latest reported remaining budget.
func SetRateRemaining(stream string, remaining int) {
	rateRemaining.WithLabelValues(stream).Set(float64(remaining))
}
