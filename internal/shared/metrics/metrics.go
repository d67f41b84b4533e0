package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

var (
	correctionStartedTotal   atomic.Uint64
	correctionCompletedTotal atomic.Uint64
	correctionPartialTotal   atomic.Uint64
	correctionFailedTotal    atomic.Uint64
	agentFallbackTotal       atomic.Uint64
	agentErrorTotal          atomic.Uint64

	correctionDuration = newHistogram([]float64{250, 500, 1000, 2000, 5000, 10000, 20000, 60000, 120000})
	agentDuration      = newHistogram([]float64{100, 250, 500, 1000, 2000, 5000, 10000, 15000, 20000})
)

// IncCorrectionStarted increments the started counter.
func IncCorrectionStarted() {
	correctionStartedTotal.Add(1)
}

// IncCorrectionCompleted increments the completed counter.
func IncCorrectionCompleted() {
	correctionCompletedTotal.Add(1)
}

// IncCorrectionPartial increments the partial counter.
func IncCorrectionPartial() {
	correctionPartialTotal.Add(1)
}

// IncCorrectionFailed increments the failed counter.
func IncCorrectionFailed() {
	correctionFailedTotal.Add(1)
}

// IncAgentFallback increments the fallback counter.
func IncAgentFallback() {
	agentFallbackTotal.Add(1)
}

// IncAgentError increments the agent error counter.
func IncAgentError() {
	agentErrorTotal.Add(1)
}

// ObserveCorrectionDurationMs records a full-run duration in milliseconds.
func ObserveCorrectionDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	correctionDuration.Observe(value)
}

// ObserveAgentDurationMs records a single agent execution duration in milliseconds.
func ObserveAgentDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	agentDuration.Observe(value)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "correction_started_total", "Total correction runs started", correctionStartedTotal.Load())
	writeCounter(&buf, "correction_completed_total", "Total correction runs completed", correctionCompletedTotal.Load())
	writeCounter(&buf, "correction_partial_total", "Total correction runs finished partial", correctionPartialTotal.Load())
	writeCounter(&buf, "correction_failed_total", "Total correction runs failed", correctionFailedTotal.Load())
	writeCounter(&buf, "agent_fallback_total", "Total agent results replaced by a fallback", agentFallbackTotal.Load())
	writeCounter(&buf, "agent_error_total", "Total agent executions that errored", agentErrorTotal.Load())
	writeHistogram(&buf, "correction_duration_ms", "Correction run duration in milliseconds", correctionDuration.Snapshot())
	writeHistogram(&buf, "agent_duration_ms", "Agent execution duration in milliseconds", agentDuration.Snapshot())
	return buf.String()
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}
