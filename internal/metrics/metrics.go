// Package metrics exposes Prometheus counters for the planning and publishing pipeline.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/kiranshivaraju/contentpilot/pkg/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "contentpilot"

// Metrics owns a private registry so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	repairStages *prometheus.CounterVec
	responses    *prometheus.CounterVec
	generations  *prometheus.CounterVec
	polls        *prometheus.CounterVec
	pollAttempts prometheus.Histogram
	posts        *prometheus.CounterVec
	sweeps       *prometheus.CounterVec
	httpRequests *prometheus.CounterVec
}

// New creates and registers every collector, plus the Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		repairStages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "repair_parse_total",
			Help:      "Model outputs parsed, by the repair stage that succeeded (or failed).",
		}, []string{"stage"}),
		responses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assistant_responses_total",
			Help:      "Assistant responses, by kind.",
		}, []string{"kind"}),
		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "media_generations_total",
			Help:      "Media generation requests, by mode and result.",
		}, []string{"mode", "result"}),
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_polls_total",
			Help:      "Completed poll watches, by outcome.",
		}, []string{"outcome"}),
		pollAttempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_poll_attempts",
			Help:      "Checks made by a poll watch before it ended.",
			Buckets:   []float64{1, 2, 5, 10, 20, 30, 40},
		}),
		posts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "push_live_posts_total",
			Help:      "Posts handed to the publishing provider during push-live, by result.",
		}, []string{"result"}),
		sweeps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recovery_failed_jobs_total",
			Help:      "Jobs forced to failed by the recovery sweep, by subsystem.",
		}, []string{"subsystem"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served, by method and status code.",
		}, []string{"method", "code"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.repairStages, m.responses, m.generations, m.polls, m.pollAttempts,
		m.posts, m.sweeps, m.httpRequests,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveRepair(stage string) {
	m.repairStages.WithLabelValues(stage).Inc()
}

func (m *Metrics) ObserveResponse(kind string) {
	m.responses.WithLabelValues(kind).Inc()
}

// ObserveGeneration records one orchestrator run. mode is sync or async.
func (m *Metrics) ObserveGeneration(mode, result string) {
	m.generations.WithLabelValues(mode, result).Inc()
}

func (m *Metrics) ObservePoll(outcome string, attempts int) {
	m.polls.WithLabelValues(outcome).Inc()
	m.pollAttempts.Observe(float64(attempts))
}

func (m *Metrics) ObservePushLive(scheduled, failed int) {
	m.posts.WithLabelValues("scheduled").Add(float64(scheduled))
	m.posts.WithLabelValues("failed").Add(float64(failed))
}

func (m *Metrics) ObserveSweep(r models.RecoverySweepResult) {
	m.sweeps.WithLabelValues("tasks").Add(float64(r.Tasks))
	m.sweeps.WithLabelValues("preview_jobs").Add(float64(r.PreviewJobs))
	m.sweeps.WithLabelValues("schedule_items").Add(float64(r.ScheduleItems))
}

func (m *Metrics) ObserveHTTP(method string, status int) {
	m.httpRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
}
