// Package metrics exposes Prometheus instrumentation for the recorder.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the recorder.
type Metrics struct {
	// Capture metrics
	FramesCaptured  prometheus.Counter
	SamplesCaptured prometheus.Counter
	RingEvictions   prometheus.Counter
	DeviceFailures  prometheus.Counter

	// Session metrics
	SessionsStarted prometheus.Counter
	SessionsFailed  prometheus.Counter
	SessionDuration prometheus.Histogram

	// VAD metrics
	VADWindowsProcessed prometheus.Counter
	VADVoiceDetected    prometheus.Counter

	// Segmenter metrics
	SegmentsEmitted prometheus.Counter
	SegmentsDropped prometheus.Counter
	NoiseDiscarded  prometheus.Counter
	SegmentDuration prometheus.Histogram

	// Pipeline metrics
	TranscriptionQueueDepth prometheus.Gauge
	TranslationQueueDepth   prometheus.Gauge
	ShutdownTimeouts        prometheus.Counter

	// Engine metrics
	TranscriptionSuccesses prometheus.Counter
	TranscriptionFailures  prometheus.Counter
	TranslationSuccesses   prometheus.Counter
	TranslationFailures    prometheus.Counter

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		FramesCaptured: promauto.NewCounter(prometheus.CounterOpts{
			Name: "recorder_frames_captured_total",
			Help: "Total number of audio frames captured",
		}),
		SamplesCaptured: promauto.NewCounter(prometheus.CounterOpts{
			Name: "recorder_samples_captured_total",
			Help: "Total number of PCM samples captured",
		}),
		RingEvictions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "recorder_ring_evicted_samples_total",
			Help: "Total number of samples evicted from the ring buffer",
		}),
		DeviceFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "recorder_device_failures_total",
			Help: "Total number of capture device failures",
		}),

		SessionsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "recorder_sessions_started_total",
			Help: "Total number of recording sessions started",
		}),
		SessionsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "recorder_sessions_failed_total",
			Help: "Total number of recording sessions that failed",
		}),
		SessionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "recorder_session_duration_seconds",
			Help:    "Duration of completed recording sessions",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~68 minutes
		}),

		VADWindowsProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "recorder_vad_windows_processed_total",
			Help: "Total number of VAD analysis windows processed",
		}),
		VADVoiceDetected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "recorder_vad_voice_detected_total",
			Help: "Total number of VAD windows containing voice",
		}),

		SegmentsEmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "recorder_segments_emitted_total",
			Help: "Total number of speech segments emitted",
		}),
		SegmentsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "recorder_segments_dropped_total",
			Help: "Total number of segments dropped due to queue saturation",
		}),
		NoiseDiscarded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "recorder_noise_bursts_discarded_total",
			Help: "Total number of sub-minimum speech bursts discarded",
		}),
		SegmentDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "recorder_segment_duration_seconds",
			Help:    "Duration of emitted speech segments",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 9), // 0.25s to ~1 minute
		}),

		TranscriptionQueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "recorder_transcription_queue_depth",
			Help: "Current number of segments awaiting transcription",
		}),
		TranslationQueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "recorder_translation_queue_depth",
			Help: "Current number of transcripts awaiting translation",
		}),
		ShutdownTimeouts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "recorder_shutdown_timeouts_total",
			Help: "Total number of pipeline drain timeouts during stop",
		}),

		TranscriptionSuccesses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "recorder_transcription_successes_total",
			Help: "Total number of successfully transcribed segments",
		}),
		TranscriptionFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "recorder_transcription_failures_total",
			Help: "Total number of failed transcription placeholders",
		}),
		TranslationSuccesses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "recorder_translation_successes_total",
			Help: "Total number of successfully translated segments",
		}),
		TranslationFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "recorder_translation_failures_total",
			Help: "Total number of failed translation placeholders",
		}),

		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "recorder_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "recorder_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
	}
}

// RecordFrame records one captured frame of the given sample count.
func (m *Metrics) RecordFrame(samples int) {
	m.FramesCaptured.Inc()
	m.SamplesCaptured.Add(float64(samples))
}

// RecordEvictions adds to the ring eviction counter.
func (m *Metrics) RecordEvictions(samples int64) {
	m.RingEvictions.Add(float64(samples))
}

// RecordDeviceFailure increments the device failure counter.
func (m *Metrics) RecordDeviceFailure() {
	m.DeviceFailures.Inc()
}

// RecordSessionStarted increments the session start counter.
func (m *Metrics) RecordSessionStarted() {
	m.SessionsStarted.Inc()
}

// RecordSessionFailed increments the session failure counter.
func (m *Metrics) RecordSessionFailed() {
	m.SessionsFailed.Inc()
}

// RecordSessionStopped records a completed session duration.
func (m *Metrics) RecordSessionStopped(durationSeconds float64) {
	m.SessionDuration.Observe(durationSeconds)
}

// RecordVADWindow records one processed analysis window.
func (m *Metrics) RecordVADWindow(hasVoice bool) {
	m.VADWindowsProcessed.Inc()
	if hasVoice {
		m.VADVoiceDetected.Inc()
	}
}

// RecordSegmentEmitted records an emitted speech segment.
func (m *Metrics) RecordSegmentEmitted(durationSeconds float64) {
	m.SegmentsEmitted.Inc()
	m.SegmentDuration.Observe(durationSeconds)
}

// RecordSegmentDropped increments the saturation drop counter.
func (m *Metrics) RecordSegmentDropped() {
	m.SegmentsDropped.Inc()
}

// RecordNoiseDiscarded adds to the discarded noise burst counter.
func (m *Metrics) RecordNoiseDiscarded(count int64) {
	m.NoiseDiscarded.Add(float64(count))
}

// SetQueueDepths updates both pipeline queue gauges.
func (m *Metrics) SetQueueDepths(transcription, translation int) {
	m.TranscriptionQueueDepth.Set(float64(transcription))
	m.TranslationQueueDepth.Set(float64(translation))
}

// RecordShutdownTimeout increments the drain timeout counter.
func (m *Metrics) RecordShutdownTimeout() {
	m.ShutdownTimeouts.Inc()
}

// RecordTranscription records a transcription outcome.
func (m *Metrics) RecordTranscription(failed bool) {
	if failed {
		m.TranscriptionFailures.Inc()
	} else {
		m.TranscriptionSuccesses.Inc()
	}
}

// RecordTranslation records a translation outcome.
func (m *Metrics) RecordTranslation(failed bool) {
	if failed {
		m.TranslationFailures.Inc()
	} else {
		m.TranslationSuccesses.Inc()
	}
}

// RecordHTTPRequest records an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}
