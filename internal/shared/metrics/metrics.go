package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
)

var (
	ocrStartedTotal   atomic.Uint64
	ocrCompletedTotal atomic.Uint64
	ocrFallbackTotal  atomic.Uint64

	exportRunsTotal       atomic.Uint64
	exportRunsFailedTotal atomic.Uint64
	exportRowsTotal       atomic.Uint64

	ocrDuration = newHistogram([]float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000, 60000})
)

// IncOCRStarted increments the started counter.
func IncOCRStarted() {
	ocrStartedTotal.Add(1)
}

// IncOCRCompleted increments the completed counter.
func IncOCRCompleted() {
	ocrCompletedTotal.Add(1)
}

// IncOCRFallback increments the manual-entry fallback counter.
func IncOCRFallback() {
	ocrFallbackTotal.Add(1)
}

// IncExportRun increments the export run counter.
func IncExportRun() {
	exportRunsTotal.Add(1)
}

// IncExportRunFailed increments the failed export run counter.
func IncExportRunFailed() {
	exportRunsFailedTotal.Add(1)
}

// AddExportRows adds to the exported row counter.
func AddExportRows(n int) {
	if n <= 0 {
		return
	}
	exportRowsTotal.Add(uint64(n))
}

// ObserveOCRDurationMs records an OCR run duration in milliseconds.
func ObserveOCRDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	ocrDuration.Observe(value)
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
	writeCounter(&buf, "ocr_started_total", "Total OCR runs started", ocrStartedTotal.Load())
	writeCounter(&buf, "ocr_completed_total", "Total OCR runs completed", ocrCompletedTotal.Load())
	writeCounter(&buf, "ocr_fallback_total", "Total OCR runs that fell back to manual entry", ocrFallbackTotal.Load())
	writeCounter(&buf, "export_runs_total", "Total batch export runs", exportRunsTotal.Load())
	writeCounter(&buf, "export_runs_failed_total", "Total failed batch export runs", exportRunsFailedTotal.Load())
	writeCounter(&buf, "export_rows_total", "Total rows written by batch exports", exportRowsTotal.Load())
	writeHistogram(&buf, "ocr_duration_ms", "OCR run duration in milliseconds", ocrDuration.Snapshot())
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
	out := histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
	return out
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

// NowMillis returns current time in milliseconds, useful for callers without time utilities.
func NowMillis() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Millisecond)
}
