package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	syncsTotal      *prometheus.CounterVec
	postsChanged    *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Tracks the number of HTTP requests.",
		}, []string{"route", "code"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Tracks the latencies for HTTP requests.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		syncsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mathblog_syncs_total",
			Help: "Imports of the posts directory, by outcome.",
		}, []string{"result"}),
		postsChanged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mathblog_posts_changed_total",
			Help: "Posts written or removed by imports.",
		}, []string{"change"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requestsTotal,
		m.requestDuration,
		m.syncsTotal,
		m.postsChanged,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveRequest(route string, code int, elapsed time.Duration) {
	m.requestsTotal.WithLabelValues(route, strconv.Itoa(code)).Inc()
	m.requestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// ObserveSync records one import; err is nil on success.
func (m *Metrics) ObserveSync(added, updated, removed int, err error) {
	if err != nil {
		m.syncsTotal.WithLabelValues("error").Inc()
		return
	}
	m.syncsTotal.WithLabelValues("ok").Inc()
	m.postsChanged.WithLabelValues("added").Add(float64(added))
	m.postsChanged.WithLabelValues("updated").Add(float64(updated))
	m.postsChanged.WithLabelValues("removed").Add(float64(removed))
}
