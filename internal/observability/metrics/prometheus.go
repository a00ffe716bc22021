package metrics

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics records request counts and latency for the gin router.
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// EngineMetrics records completion outcomes and the time spent holding the per-user lock.
type EngineMetrics struct {
	completions *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	lockWait    prometheus.Histogram
	unlocks     prometheus.Counter
}

func NewHTTPMetrics() *HTTPMetrics {
	return NewHTTPMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func NewHTTPMetricsWithRegisterer(reg prometheus.Registerer) *HTTPMetrics {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "habitquest_http_requests_total",
		Help: "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "habitquest_http_request_duration_seconds",
		Help:    "HTTP request latency by method and route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	return &HTTPMetrics{
		requests: register(reg, requests),
		duration: register(reg, duration),
	}
}

func NewEngineMetrics() *EngineMetrics {
	return NewEngineMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func NewEngineMetricsWithRegisterer(reg prometheus.Registerer) *EngineMetrics {
	completions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "habitquest_completions_total",
		Help: "Completion attempts by kind and outcome.",
	}, []string{"kind", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "habitquest_completion_duration_seconds",
		Help:    "End-to-end completion transaction latency.",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"kind"})
	lockWait := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "habitquest_user_lock_wait_seconds",
		Help:    "Time spent waiting for the per-user completion lock.",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	})
	unlocks := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "habitquest_engine_reward_unlocks_total",
		Help: "Rewards unlocked by committed completions.",
	})

	return &EngineMetrics{
		completions: register(reg, completions),
		duration:    register(reg, duration),
		lockWait:    register(reg, lockWait),
		unlocks:     register(reg, unlocks),
	}
}

// ObserveCompletion records one completion attempt.
func (m *EngineMetrics) ObserveCompletion(kind, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.completions.WithLabelValues(kind, outcome).Inc()
	m.duration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

func (m *EngineMetrics) ObserveLockWait(elapsed time.Duration) {
	if m == nil {
		return
	}
	if elapsed < 0 {
		elapsed = 0
	}
	m.lockWait.Observe(elapsed.Seconds())
}

func (m *EngineMetrics) AddUnlocks(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.unlocks.Add(float64(count))
}

// GinMiddleware records request metrics once the handler chain completes.
func GinMiddleware(m *HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := strings.TrimSpace(c.FullPath())
		if route == "" {
			route = "unknown"
		}
		method := c.Request.Method
		m.requests.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.duration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}

// register tolerates a collector that was already registered by an earlier fx graph.
func register[T prometheus.Collector](reg prometheus.Registerer, collector T) T {
	if reg == nil {
		return collector
	}
	if err := reg.Register(collector); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(T); ok {
				return existing
			}
		}
		panic(err)
	}
	return collector
}
