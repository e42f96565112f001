package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service collectors on a private registry.
type Metrics struct {
	registry  *prometheus.Registry
	requests  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	rows      prometheus.Counter
	relations prometheus.Counter
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "jsonrel",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "jsonrel",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		rows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "jsonrel",
			Name:      "rows_total",
			Help:      "Rows produced by normalization.",
		}),
		relations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "jsonrel",
			Name:      "relations_total",
			Help:      "Relations produced by normalization.",
		}),
	}
	m.registry.MustRegister(m.requests, m.duration, m.rows, m.relations)
	return m
}

// Observe records the row and relation counts of one normalization.
func (m *Metrics) Observe(relations, rows int) {
	m.relations.Add(float64(relations))
	m.rows.Add(float64(rows))
}

// Middleware counts requests and measures latency per matched route.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.requests.WithLabelValues(route, strconv.Itoa(c.Writer.Status())).Inc()
		m.duration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
