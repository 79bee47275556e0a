package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vesselworks/vesselctl/pkg/models"
)

// Collector tracks client-side counters for submissions, poll cycles,
// and job outcomes. It registers on its own registry so library users
// never collide with the default one.
type Collector struct {
	registry *prometheus.Registry

	submissions  *prometheus.CounterVec
	polls        *prometheus.CounterVec
	pollTimeouts prometheus.Counter
	results      *prometheus.CounterVec
	jobCostUSD   prometheus.Counter
	waitSeconds  prometheus.Histogram
}

// NewCollector creates a collector with all metrics registered
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Collector{
		registry: registry,
		submissions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vessel_submissions_total",
			Help: "Job submissions by outcome",
		}, []string{"outcome"}),
		polls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vessel_polls_total",
			Help: "Status fetches by observed job status",
		}, []string{"status"}),
		pollTimeouts: factory.NewCounter(prometheus.CounterOpts{
			Name: "vessel_poll_timeouts_total",
			Help: "Poll loops that exceeded their deadline",
		}),
		results: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vessel_results_total",
			Help: "Terminal job records by result subtype",
		}, []string{"subtype"}),
		jobCostUSD: factory.NewCounter(prometheus.CounterOpts{
			Name: "vessel_job_cost_usd_total",
			Help: "Accumulated reported job cost in USD",
		}),
		waitSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "vessel_wait_duration_seconds",
			Help:    "Wall-clock time spent waiting for completion",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
	}
}

// Handler exposes the registry in Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RecordSubmission counts one submission attempt
func (c *Collector) RecordSubmission(err error) {
	outcome := "accepted"
	if err != nil {
		outcome = "rejected"
	}
	c.submissions.WithLabelValues(outcome).Inc()
}

// PollTick counts one status fetch; implements incubate.PollObserver
func (c *Collector) PollTick(jobID string, status models.JobStatus) {
	c.polls.WithLabelValues(string(status)).Inc()
}

// PollTimeout counts one expired poll loop; implements incubate.PollObserver
func (c *Collector) PollTimeout(jobID string) {
	c.pollTimeouts.Inc()
}

// RecordResult counts a flattened terminal record and its reported cost
func (c *Collector) RecordResult(flat models.FlatResult, waited time.Duration) {
	subtype := flat.ResultSubtype
	if subtype == "" {
		subtype = "none"
	}
	c.results.WithLabelValues(subtype).Inc()
	if flat.TotalCostUSD != nil {
		c.jobCostUSD.Add(*flat.TotalCostUSD)
	}
	c.waitSeconds.Observe(waited.Seconds())
}
