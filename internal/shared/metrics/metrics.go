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
	pipelineStartedTotal    atomic.Uint64
	pipelineCompletedTotal  atomic.Uint64
	pipelineFailedTotal     atomic.Uint64
	transcriptFallbackTotal atomic.Uint64
	briefingDegradedTotal   atomic.Uint64

	jobsReceivedTotal             atomic.Uint64
	jobsCompletedTotal            atomic.Uint64
	jobsFailedTotal               atomic.Uint64
	jobsDeletedUnrecoverableTotal atomic.Uint64

	pipelineDuration   = newHistogram([]float64{1000, 5000, 15000, 30000, 60000, 120000, 300000, 600000})
	synthesisDuration  = newHistogram([]float64{250, 500, 1000, 2000, 5000, 10000, 30000, 60000})
	transcribeDuration = newHistogram([]float64{1000, 5000, 15000, 30000, 60000, 120000, 300000, 600000})
)

// IncPipelineStarted increments the started counter.
func IncPipelineStarted() { pipelineStartedTotal.Add(1) }

// IncPipelineCompleted increments the completed counter.
func IncPipelineCompleted() { pipelineCompletedTotal.Add(1) }

// IncPipelineFailed increments the failed counter.
func IncPipelineFailed() { pipelineFailedTotal.Add(1) }

// IncTranscriptFallback counts runs that completed with the fallback transcript.
func IncTranscriptFallback() { transcriptFallbackTotal.Add(1) }

// IncBriefingDegraded counts runs that completed without an audio briefing.
func IncBriefingDegraded() { briefingDegradedTotal.Add(1) }

// IncAnalysisJobsReceived counts queue messages picked up by the worker.
func IncAnalysisJobsReceived() { jobsReceivedTotal.Add(1) }

// IncAnalysisJobsCompleted counts queue jobs processed and deleted.
func IncAnalysisJobsCompleted() { jobsCompletedTotal.Add(1) }

// IncAnalysisJobsFailed counts queue jobs left for redelivery after a failure.
func IncAnalysisJobsFailed() { jobsFailedTotal.Add(1) }

// IncAnalysisJobsDeletedUnrecoverable counts malformed messages dropped outright.
func IncAnalysisJobsDeletedUnrecoverable() { jobsDeletedUnrecoverableTotal.Add(1) }

// ObservePipelineDurationMs records a full pipeline duration in milliseconds.
func ObservePipelineDurationMs(value float64) { pipelineDuration.Observe(nonNegative(value)) }

// ObserveSynthesisDurationMs records a synthesis-stage duration in milliseconds.
func ObserveSynthesisDurationMs(value float64) { synthesisDuration.Observe(nonNegative(value)) }

// ObserveTranscribeDurationMs records a transcription-stage duration in milliseconds.
func ObserveTranscribeDurationMs(value float64) { transcribeDuration.Observe(nonNegative(value)) }

func nonNegative(value float64) float64 {
	if value < 0 {
		return 0
	}
	return value
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
	writeCounter(&buf, "analysis_pipeline_started_total", "Total analysis pipelines started", pipelineStartedTotal.Load())
	writeCounter(&buf, "analysis_pipeline_completed_total", "Total analysis pipelines completed", pipelineCompletedTotal.Load())
	writeCounter(&buf, "analysis_pipeline_failed_total", "Total analysis pipelines failed", pipelineFailedTotal.Load())
	writeCounter(&buf, "analysis_transcript_fallback_total", "Runs completed with the fallback transcript", transcriptFallbackTotal.Load())
	writeCounter(&buf, "analysis_briefing_degraded_total", "Runs completed without an audio briefing", briefingDegradedTotal.Load())
	writeCounter(&buf, "analysis_jobs_received_total", "Queue messages received by the worker", jobsReceivedTotal.Load())
	writeCounter(&buf, "analysis_jobs_completed_total", "Queue jobs processed and deleted", jobsCompletedTotal.Load())
	writeCounter(&buf, "analysis_jobs_failed_total", "Queue jobs left for redelivery", jobsFailedTotal.Load())
	writeCounter(&buf, "analysis_jobs_deleted_unrecoverable_total", "Malformed queue messages dropped", jobsDeletedUnrecoverableTotal.Load())
	writeHistogram(&buf, "analysis_pipeline_duration_ms", "Pipeline duration in milliseconds", pipelineDuration.Snapshot())
	writeHistogram(&buf, "analysis_synthesis_duration_ms", "Synthesis stage duration in milliseconds", synthesisDuration.Snapshot())
	writeHistogram(&buf, "analysis_transcribe_duration_ms", "Transcription stage duration in milliseconds", transcribeDuration.Snapshot())
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
