// Package metrics exposes Prometheus collectors for indicator service traffic.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samvad-hq/indicator-client/pkg/indicatorclient"
)

// Metrics holds the collectors and implements indicatorclient.Observer.
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec   // labels: method, route, code
	RequestDuration *prometheus.HistogramVec // labels: method, route
	TaskPolls       *prometheus.CounterVec   // labels: status
	JobRuns         *prometheus.CounterVec   // labels: mode, outcome
	EventsPublished prometheus.Counter
}

// New registers all collectors on a dedicated registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "indicator_client_requests_total",
			Help: "HTTP round trips to the indicator service",
		}, []string{"method", "route", "code"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "indicator_client_request_duration_seconds",
			Help:    "Latency of HTTP round trips to the indicator service",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		TaskPolls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "indicator_client_task_polls_total",
			Help: "Async task status polls by reported status",
		}, []string{"status"}),
		JobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "indicator_runner_job_runs_total",
			Help: "Runner job executions by mode and outcome",
		}, []string{"mode", "outcome"}),
		EventsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "indicator_runner_events_published_total",
			Help: "Result events accepted by at least one sink",
		}),
	}

	m.registry.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.TaskPolls,
		m.JobRuns,
		m.EventsPublished,
	)
	return m
}

// ObserveRequest records one round trip. A zero code is reported as "error".
func (m *Metrics) ObserveRequest(method, path string, code int, elapsed time.Duration, _ error) {
	route := Route(path)
	label := "error"
	if code > 0 {
		label = strconv.Itoa(code)
	}
	m.RequestsTotal.WithLabelValues(method, route, label).Inc()
	m.RequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObservePoll records one status poll.
func (m *Metrics) ObservePoll(_ indicatorclient.TaskHandle, status indicatorclient.TaskStatus) {
	s := string(status)
	if s == "" {
		s = "unknown"
	}
	m.TaskPolls.WithLabelValues(s).Inc()
}

// JobFinished records a runner job outcome.
func (m *Metrics) JobFinished(mode string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.JobRuns.WithLabelValues(mode, outcome).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Route collapses task ids so label cardinality stays bounded.
func Route(path string) string {
	const prefix = "/async/task/"
	if !strings.HasPrefix(path, prefix) {
		return path
	}
	if strings.HasSuffix(path, "/result") {
		return prefix + "{id}/result"
	}
	return prefix + "{id}"
}
