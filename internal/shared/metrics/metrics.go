// Package metrics keeps the storage service counters and renders them in the
// Prometheus text format.
package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

var (
	sectionCreated  = newLabeledCounter()
	sectionRejected = newLabeledCounter()
	sectionNotFound = newLabeledCounter()

	submissionsRateLimited atomic.Uint64

	requestDuration = newHistogram([]float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500})
)

// Rejection reasons.
const (
	ReasonValidation = "validation"
	ReasonChain      = "chain"
)

// IncSectionCreated counts a stored record of section n.
func IncSectionCreated(n int) {
	sectionCreated.inc(sectionLabel(n))
}

// IncSectionRejected counts a refused submission of section n.
func IncSectionRejected(n int, reason string) {
	sectionRejected.inc(sectionLabel(n) + `,reason="` + reason + `"`)
}

// IncSectionNotFound counts a lookup of section n that matched no record.
func IncSectionNotFound(n int) {
	sectionNotFound.inc(sectionLabel(n))
}

// IncRateLimited counts a submission refused by the rate limiter.
func IncRateLimited() {
	submissionsRateLimited.Add(1)
}

// ObserveRequestDurationMs records a request duration in milliseconds.
func ObserveRequestDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	requestDuration.Observe(value)
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
	writeLabeled(&buf, "survey_section_created_total", "Section records created", sectionCreated.snapshot())
	writeLabeled(&buf, "survey_section_rejected_total", "Section submissions rejected", sectionRejected.snapshot())
	writeLabeled(&buf, "survey_section_not_found_total", "Section lookups without a record", sectionNotFound.snapshot())
	writeLabeled(&buf, "survey_submissions_rate_limited_total", "Submissions refused by the rate limiter", map[string]uint64{"": submissionsRateLimited.Load()})
	writeHistogram(&buf, "survey_request_duration_ms", "Storage service request duration in milliseconds", requestDuration.Snapshot())
	return buf.String()
}

func sectionLabel(n int) string {
	return `section="section` + strconv.Itoa(n) + `"`
}

// labeledCounter is a counter family keyed by its rendered label set.
type labeledCounter struct {
	mu     sync.Mutex
	values map[string]uint64
}

func newLabeledCounter() *labeledCounter {
	return &labeledCounter{values: map[string]uint64{}}
}

func (c *labeledCounter) inc(labels string) {
	c.mu.Lock()
	c.values[labels]++
	c.mu.Unlock()
}

func (c *labeledCounter) snapshot() map[string]uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]uint64, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}
	return out
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

// writeLabeled renders a counter family. An empty family still emits the
// HELP and TYPE lines so scrapers see the metric.
func writeLabeled(buf *bytes.Buffer, name, help string, values map[string]uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if k == "" {
			fmt.Fprintf(buf, "%s %d\n", name, values[k])
			continue
		}
		fmt.Fprintf(buf, "%s{%s} %d\n", name, k, values[k])
	}
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
