// Package metrics exposes reconciliation and HTTP counters over Prometheus.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder implements the reconciliation counters backed by Prometheus.
type Recorder struct {
	cyclesTotal     prometheus.Counter
	cyclesSkipped   prometheus.Counter
	cycleDuration   prometheus.Histogram
	fetchFailures   prometheus.Counter
	intentsExpired  prometheus.Counter
	paymentsMatched *prometheus.CounterVec
	paymentsDeduped prometheus.Counter
}

// NewRecorder creates a recorder and registers its collectors with reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		cyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reconcile_cycles_total",
			Help: "Total completed reconciliation cycles",
		}),
		cyclesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reconcile_cycles_skipped_total",
			Help: "Cycles skipped because the previous one was still running",
		}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "reconcile_cycle_duration_seconds",
			Help:    "Duration of reconciliation cycles",
			Buckets: prometheus.DefBuckets,
		}),
		fetchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "statement_fetch_failures_total",
			Help: "Statement feed fetches where every endpoint candidate failed",
		}),
		intentsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "payment_intents_expired_total",
			Help: "Pending payments removed after their window elapsed",
		}),
		paymentsMatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payments_matched_total",
			Help: "Payments matched against statement lines and fulfilled",
		}, []string{"kind"}),
		paymentsDeduped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "payments_deduplicated_total",
			Help: "Matches dropped because the statement reference was already processed",
		}),
	}

	reg.MustRegister(
		r.cyclesTotal,
		r.cyclesSkipped,
		r.cycleDuration,
		r.fetchFailures,
		r.intentsExpired,
		r.paymentsMatched,
		r.paymentsDeduped,
	)
	return r
}

func (r *Recorder) CycleCompleted(duration time.Duration) {
	r.cyclesTotal.Inc()
	r.cycleDuration.Observe(duration.Seconds())
}

func (r *Recorder) CycleSkipped() { r.cyclesSkipped.Inc() }

func (r *Recorder) FetchFailed() { r.fetchFailures.Inc() }

func (r *Recorder) IntentExpired() { r.intentsExpired.Inc() }

func (r *Recorder) PaymentMatched(kind string) {
	r.paymentsMatched.WithLabelValues(kind).Inc()
}

func (r *Recorder) PaymentDeduplicated() { r.paymentsDeduped.Inc() }

// Handler serves the metrics registered with reg on the /metrics route.
func Handler(reg *prometheus.Registry) gin.HandlerFunc {
	h := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// HTTPMiddleware measures request latency per route, method and status.
func HTTPMiddleware(reg prometheus.Registerer) gin.HandlerFunc {
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_requests_latency_seconds",
		Help:    "Latency of HTTP requests.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
	reg.MustRegister(latency)

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		latency.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
