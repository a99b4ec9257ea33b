package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"clan-backend/internal/authz"
)

// Metrics: метрики Prometheus сервиса.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	AccessDecisionsTotal   *prometheus.CounterVec
	AccessDecisionDuration *prometheus.HistogramVec

	AccessCacheHitsTotal   *prometheus.CounterVec
	AccessCacheMissesTotal *prometheus.CounterVec
}

func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clan_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "clan_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		AccessDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "access_decisions_total",
				Help: "Access decisions by resource type, verb and outcome",
			},
			[]string{"resource", "verb", "outcome"},
		),
		AccessDecisionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "access_decision_duration_seconds",
				Help:    "Time spent computing an access decision",
				Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5},
			},
			[]string{"resource"},
		),
		AccessCacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "access_cache_hits_total",
				Help: "Access snapshot cache hits",
			},
			[]string{"kind"},
		),
		AccessCacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "access_cache_misses_total",
				Help: "Access snapshot cache misses",
			},
			[]string{"kind"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.AccessDecisionsTotal,
		m.AccessDecisionDuration,
		m.AccessCacheHitsTotal,
		m.AccessCacheMissesTotal,
	)
	return m
}

// ObserveDecision реализует authz.DecisionObserver.
func (m *Metrics) ObserveDecision(resource authz.ResourceType, verb authz.Verb, outcome string, elapsed time.Duration) {
	m.AccessDecisionsTotal.WithLabelValues(string(resource), string(verb), outcome).Inc()
	m.AccessDecisionDuration.WithLabelValues(string(resource)).Observe(elapsed.Seconds())
}

func (m *Metrics) CacheHit(kind string)  { m.AccessCacheHitsTotal.WithLabelValues(kind).Inc() }
func (m *Metrics) CacheMiss(kind string) { m.AccessCacheMissesTotal.WithLabelValues(kind).Inc() }

// HTTPMiddleware считает запросы echo. path это шаблон маршрута, а не сырой URI.
func HTTPMiddleware(m *Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				} else if status < http.StatusBadRequest {
					status = http.StatusInternalServerError
				}
			}
			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			m.HTTPRequestsTotal.WithLabelValues(c.Request().Method, path, strconv.Itoa(status)).Inc()
			m.HTTPRequestDuration.WithLabelValues(c.Request().Method, path).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// Handler: эндпоинт /metrics.
func Handler(registry *prometheus.Registry) echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
