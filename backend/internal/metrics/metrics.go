package metrics

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Standard Prometheus collectors for the brain service
var (
	// kaos_requests_total{outcome=success|error}
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kaos_requests_total",
		Help: "Total number of analyze requests handled",
	}, []string{"outcome"})

	// kaos_request_latency_seconds (histogram): analyze duration
	LatencyHistogram = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "kaos_request_latency_seconds",
		Help:    "Analyze request latency in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// kaos_decision_count{risk=SAFE|MEDIUM|HIGH|CRITICAL, tool_type=...}
	DecisionCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kaos_decision_count",
		Help: "Classification decisions by risk tier and tool type",
	}, []string{"risk", "tool_type"})

	// kaos_llm_latency_seconds (histogram): one attempt against the reasoning service
	LLMLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "kaos_llm_latency_seconds",
		Help:    "Latency of individual reasoning service attempts",
		Buckets: prometheus.DefBuckets,
	})

	// kaos_augmentation_total{result=success|fallback}
	AugmentationTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kaos_augmentation_total",
		Help: "Augmentation outcomes",
	}, []string{"result"})

	// kaos_llm_retries_total: attempts beyond the first
	LLMRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kaos_llm_retries_total",
		Help: "Reasoning service attempts made after a connectivity failure",
	})

	// kaos_llm_failures_total{kind=connectivity|timeout|application|malformed|breaker}
	LLMFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kaos_llm_failures_total",
		Help: "Failed reasoning service attempts by error kind",
	}, []string{"kind"})
)

// Recorder receives pipeline events. Implementations must be safe for
// concurrent use.
type Recorder interface {
	RecordRequest(d time.Duration, success bool)
	RecordDecision(risk, toolType string)
	RecordLLMQuery(latency time.Duration)
	RecordLLMFailure(kind string)
	RecordRetry()
	RecordAugmentation(success bool)
}

// Noop discards everything.
type Noop struct{}

func (Noop) RecordRequest(time.Duration, bool) {}
func (Noop) RecordDecision(string, string)     {}
func (Noop) RecordLLMQuery(time.Duration)      {}
func (Noop) RecordLLMFailure(string)           {}
func (Noop) RecordRetry()                      {}
func (Noop) RecordAugmentation(bool)           {}

// Collector keeps atomic totals for the JSON snapshot and mirrors every
// event into the Prometheus collectors above.
type Collector struct {
	start time.Time

	requestsTotal   atomic.Int64
	requestsSuccess atomic.Int64
	requestsError   atomic.Int64
	requestNanos    atomic.Int64

	llmQueries  atomic.Int64
	llmNanos    atomic.Int64
	llmFailures atomic.Int64
	llmRetries  atomic.Int64
	augmentOK   atomic.Int64
	fallbacks   atomic.Int64
}

// NewCollector creates a Collector whose uptime starts now.
func NewCollector() *Collector {
	return &Collector{start: time.Now()}
}

func (c *Collector) RecordRequest(d time.Duration, success bool) {
	c.requestsTotal.Add(1)
	c.requestNanos.Add(int64(d))
	outcome := "success"
	if success {
		c.requestsSuccess.Add(1)
	} else {
		c.requestsError.Add(1)
		outcome = "error"
	}
	RequestsTotal.WithLabelValues(outcome).Inc()
	LatencyHistogram.Observe(d.Seconds())
}

func (c *Collector) RecordDecision(risk, toolType string) {
	DecisionCount.WithLabelValues(risk, toolType).Inc()
}

func (c *Collector) RecordLLMQuery(latency time.Duration) {
	c.llmQueries.Add(1)
	c.llmNanos.Add(int64(latency))
	LLMLatency.Observe(latency.Seconds())
}

func (c *Collector) RecordLLMFailure(kind string) {
	c.llmFailures.Add(1)
	LLMFailures.WithLabelValues(kind).Inc()
}

func (c *Collector) RecordRetry() {
	c.llmRetries.Add(1)
	LLMRetries.Inc()
}

func (c *Collector) RecordAugmentation(success bool) {
	if success {
		c.augmentOK.Add(1)
		AugmentationTotal.WithLabelValues("success").Inc()
		return
	}
	c.fallbacks.Add(1)
	AugmentationTotal.WithLabelValues("fallback").Inc()
}

// Snapshot is the JSON body of /api/v1/metrics.
type Snapshot struct {
	UptimeSeconds float64          `json:"uptime_seconds"`
	Requests      RequestSnapshot  `json:"requests"`
	LLM           LLMSnapshot      `json:"llm"`
	Fallback      FallbackSnapshot `json:"fallback"`
}

type RequestSnapshot struct {
	Total         int64   `json:"total"`
	Success       int64   `json:"success"`
	Error         int64   `json:"error"`
	ErrorRate     float64 `json:"error_rate"`
	AvgDurationMs float64 `json:"avg_duration_ms"`
}

type LLMSnapshot struct {
	QueriesTotal  int64   `json:"queries_total"`
	FailuresTotal int64   `json:"failures_total"`
	Retries       int64   `json:"retries"`
	Augmented     int64   `json:"augmented"`
	AvgLatencyMs  float64 `json:"avg_latency_ms"`
}

type FallbackSnapshot struct {
	Activations  int64   `json:"activations"`
	FallbackRate float64 `json:"fallback_rate"`
}

// Snapshot reads the counters. Individual fields are consistent; the set as a
// whole is not taken under a lock.
func (c *Collector) Snapshot() Snapshot {
	total := c.requestsTotal.Load()
	queries := c.llmQueries.Load()
	fallbacks := c.fallbacks.Load()

	return Snapshot{
		UptimeSeconds: time.Since(c.start).Seconds(),
		Requests: RequestSnapshot{
			Total:         total,
			Success:       c.requestsSuccess.Load(),
			Error:         c.requestsError.Load(),
			ErrorRate:     ratio(c.requestsError.Load(), total),
			AvgDurationMs: avgMillis(c.requestNanos.Load(), total),
		},
		LLM: LLMSnapshot{
			QueriesTotal:  queries,
			FailuresTotal: c.llmFailures.Load(),
			Retries:       c.llmRetries.Load(),
			Augmented:     c.augmentOK.Load(),
			AvgLatencyMs:  avgMillis(c.llmNanos.Load(), queries),
		},
		Fallback: FallbackSnapshot{
			Activations:  fallbacks,
			FallbackRate: ratio(fallbacks, total),
		},
	}
}

func ratio(n, d int64) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}

func avgMillis(nanos, n int64) float64 {
	if n == 0 {
		return 0
	}
	return float64(nanos) / float64(n) / float64(time.Millisecond)
}
