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
	scanRunsTotal           atomic.Uint64
	documentsProcessedTotal atomic.Uint64
	documentsFailedTotal    atomic.Uint64
	documentsSkippedTotal   atomic.Uint64
	jobRunsTotal            atomic.Uint64
	jobFailuresTotal        atomic.Uint64

	scanDuration = newHistogram([]float64{100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000, 300000})
)

// IncScanRuns counts one tenant scan.
func IncScanRuns() {
	scanRunsTotal.Add(1)
}

// AddDocumentsProcessed counts committed records.
func AddDocumentsProcessed(n int) {
	if n > 0 {
		documentsProcessedTotal.Add(uint64(n))
	}
}

// AddDocumentsFailed counts per-candidate faults.
func AddDocumentsFailed(n int) {
	if n > 0 {
		documentsFailedTotal.Add(uint64(n))
	}
}

// AddDocumentsSkipped counts candidates already on record.
func AddDocumentsSkipped(n int) {
	if n > 0 {
		documentsSkippedTotal.Add(uint64(n))
	}
}

// IncJobRuns counts one scheduled or manual job execution.
func IncJobRuns() {
	jobRunsTotal.Add(1)
}

// IncJobFailures counts one job execution that returned an error or panicked.
func IncJobFailures() {
	jobFailuresTotal.Add(1)
}

// ObserveScanDurationMs records a tenant scan duration in milliseconds.
func ObserveScanDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	scanDuration.Observe(value)
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
	writeCounter(&buf, "scan_runs_total", "Total tenant scans", scanRunsTotal.Load())
	writeCounter(&buf, "documents_processed_total", "Total documents summarized and stored", documentsProcessedTotal.Load())
	writeCounter(&buf, "documents_failed_total", "Total candidate documents that failed", documentsFailedTotal.Load())
	writeCounter(&buf, "documents_skipped_total", "Total candidate documents already on record", documentsSkippedTotal.Load())
	writeCounter(&buf, "job_runs_total", "Total scheduler job executions", jobRunsTotal.Load())
	writeCounter(&buf, "job_failures_total", "Total scheduler job executions that failed", jobFailuresTotal.Load())
	writeHistogram(&buf, "scan_duration_ms", "Tenant scan duration in milliseconds", scanDuration.Snapshot())
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

// Observe adds value to the first bucket whose bound holds it; Render
// accumulates buckets.
func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
			break
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
