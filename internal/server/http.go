// Package server exposes the HTTP monitoring API for the recorder.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/johnnyzhao5619/echonote-recorder/internal/config"
	"github.com/johnnyzhao5619/echonote-recorder/internal/metrics"
	"github.com/johnnyzhao5619/echonote-recorder/internal/session"
)

// EngineStats exposes engine client counters to the monitoring API.
type EngineStats interface {
	Stats() map[string]interface{}
}

// HTTPServer provides HTTP API endpoints for monitoring.
type HTTPServer struct {
	server   *http.Server
	logger   *slog.Logger
	config   *config.Config
	recorder *session.Recorder
	engines  EngineStats
	metrics  *metrics.Metrics

	startTime time.Time
}

// NewHTTPServer creates the monitoring server. engines may be nil.
func NewHTTPServer(cfg config.HTTPConfig, logger *slog.Logger,
	appConfig *config.Config, recorder *session.Recorder, engines EngineStats, m *metrics.Metrics) *HTTPServer {

	h := &HTTPServer{
		logger:    logger,
		config:    appConfig,
		recorder:  recorder,
		engines:   engines,
		metrics:   m,
		startTime: time.Now(),
	}

	mux := http.NewServeMux()
	h.setupRoutes(mux)

	h.server = &http.Server{
		Addr:         cfg.Address(),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return h
}

// setupRoutes configures HTTP API routes.
func (h *HTTPServer) setupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.withMetrics("/health", h.handleHealth))
	mux.HandleFunc("/session", h.withMetrics("/session", h.handleSession))
	mux.HandleFunc("/config", h.withMetrics("/config", h.handleConfig))
	mux.HandleFunc("/stats", h.withMetrics("/stats", h.handleStats))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/", h.withMetrics("/", h.handleRoot))
}

// withMetrics wraps an HTTP handler with metrics collection.
func (h *HTTPServer) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		ww := &responseWriter{ResponseWriter: w, statusCode: 200}
		handler(ww, r)

		if h.metrics != nil {
			h.metrics.RecordHTTPRequest(r.Method, endpoint,
				fmt.Sprintf("%d", ww.statusCode), time.Since(startTime).Seconds())
		}
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Start begins serving in the background.
func (h *HTTPServer) Start() error {
	h.logger.Info("Starting HTTP API server",
		slog.String("address", h.server.Addr),
	)

	go func() {
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			h.logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully stops the HTTP server.
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("Stopping HTTP API server...")
	return h.server.Shutdown(ctx)
}

// handleHealth implements the /health endpoint.
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(h.startTime).String(),
		"service": map[string]interface{}{
			"name":    "echonote-recorder",
			"version": "1.0.0",
		},
		"session": map[string]interface{}{
			"status": h.recorder.Status().String(),
			"id":     h.recorder.SessionID(),
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(health)
}

// handleSession implements the /session endpoint.
func (h *HTTPServer) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.recorder.Stats())
}

// handleConfig implements the /config endpoint with sensitive fields
// omitted.
func (h *HTTPServer) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sanitized := map[string]interface{}{
		"audio": map[string]interface{}{
			"sample_rate":           h.config.Audio.SampleRate,
			"ring_capacity_seconds": h.config.Audio.RingCapacitySeconds,
			"window_duration_ms":    h.config.Audio.WindowDurationMs,
			"window_overlap_ms":     h.config.Audio.WindowOverlapMs,
		},
		"vad": map[string]interface{}{
			"threshold":         h.config.VAD.Threshold,
			"frame_duration_ms": h.config.VAD.FrameDurationMs,
		},
		"segmenter": map[string]interface{}{
			"silence_duration_ms":     h.config.Segmenter.SilenceDurationMs,
			"min_speech_duration_ms":  h.config.Segmenter.MinSpeechDurationMs,
			"max_segment_duration_ms": h.config.Segmenter.MaxSegmentDurationMs,
			"lookback_ms":             h.config.Segmenter.LookbackMs,
		},
		"pipeline": map[string]interface{}{
			"transcription_queue_size": h.config.Pipeline.TranscriptionQueueSize,
			"translation_queue_size":   h.config.Pipeline.TranslationQueueSize,
			"shutdown_timeout_seconds": h.config.Pipeline.ShutdownTimeoutSeconds,
		},
		"transcription": map[string]interface{}{
			"endpoint":       h.config.Transcription.Endpoint,
			"model":          h.config.Transcription.Model,
			"language":       h.config.Transcription.Language,
			"max_retries":    h.config.Transcription.MaxRetries,
			"max_concurrent": h.config.Transcription.MaxConcurrent,
			// API key intentionally omitted
		},
		"translation": map[string]interface{}{
			"enabled":         h.config.Translation.Enabled,
			"endpoint":        h.config.Translation.Endpoint,
			"target_language": h.config.Translation.TargetLanguage,
		},
		"output": map[string]interface{}{
			"directory":        h.config.Output.Directory,
			"prefix":           h.config.Output.Prefix,
			"recording_format": h.config.Output.RecordingFormat,
		},
		"logging": map[string]interface{}{
			"level":  h.config.Logging.Level,
			"format": h.config.Logging.Format,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sanitized)
}

// handleStats implements the /stats endpoint.
func (h *HTTPServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stats := map[string]interface{}{
		"uptime":    time.Since(h.startTime).String(),
		"timestamp": time.Now().UTC(),
		"session":   h.recorder.Stats(),
	}
	if h.engines != nil {
		stats["engines"] = h.engines.Stats()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

// handleRoot implements the / endpoint with API documentation.
func (h *HTTPServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	apiDoc := map[string]interface{}{
		"service": "EchoNote Recorder",
		"version": "1.0.0",
		"endpoints": map[string]interface{}{
			"GET /":        "API documentation",
			"GET /health":  "Service health check",
			"GET /session": "Current session state",
			"GET /config":  "Service configuration",
			"GET /stats":   "Service statistics",
			"GET /metrics": "Prometheus metrics",
		},
		"timestamp": time.Now().UTC(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(apiDoc)
}
