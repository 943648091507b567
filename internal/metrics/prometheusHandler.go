package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var HttpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "http_requests_total",
	Help: "Total number of requests labelled by path and status",
}, []string{"path", "status"})

var engineQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "engine_queue_depth",
	Help: "Number of requests waiting for the single engine slot",
})

var cacheBuildsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "cache_builds_total",
	Help: "KV cache build attempts labelled by outcome",
}, []string{"outcome"})

var queriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "cag_queries_total",
	Help: "Cache queries labelled by mode (single/multi) and outcome",
}, []string{"mode", "outcome"})

var evictedBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "evicted_cache_bytes_total",
	Help: "Bytes of KV cache artifacts reclaimed by the eviction advisor",
})

var engineInvocationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "engine_invocation_duration_seconds",
	Help:    "Wall time spent inside llama.cpp invocations.",
	Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
}, []string{"op"})

var queryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "query_duration_seconds",
	Help:    "End to end query processing time.",
	Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
}, []string{"mode"})

type HttpStatusRecorder struct {
	http.ResponseWriter
	Status int
}

func (r *HttpStatusRecorder) WriteHeader(code int) {
	r.Status = code
	r.ResponseWriter.WriteHeader(code)
}

func IncrementEngineQueueDepth() {
	engineQueueDepth.Inc()
}

func DecrementEngineQueueDepth() {
	engineQueueDepth.Dec()
}

func CaptureEngineInvocation(op string, elapsed time.Duration) {
	engineInvocationDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

func CaptureBuildOutcome(outcome string) {
	cacheBuildsTotal.WithLabelValues(outcome).Inc()
}

func CaptureQueryOutcome(mode string, outcome string, elapsed time.Duration) {
	queriesTotal.WithLabelValues(mode, outcome).Inc()
	queryDuration.WithLabelValues(mode).Observe(elapsed.Seconds())
}

func CaptureEvictedBytes(n int64) {
	evictedBytesTotal.Add(float64(n))
}
