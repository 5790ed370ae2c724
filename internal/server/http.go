package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/voxnote/trim-audio-service/internal/audio"
	"github.com/voxnote/trim-audio-service/internal/config"
	"github.com/voxnote/trim-audio-service/internal/engine"
	"github.com/voxnote/trim-audio-service/internal/media"
	"github.com/voxnote/trim-audio-service/internal/metrics"
	"github.com/voxnote/trim-audio-service/internal/transcription"
)

// maxUploadBytes bounds multipart request bodies. 500MB covers several
// hours of 16-bit 48kHz mono.
const maxUploadBytes = 500 << 20

// HTTPServer exposes the trimming engine over HTTP plus monitoring
// endpoints. Materialized assets referenced in responses live in the
// pipeline temp dir; callers on the same host collect and delete them.
type HTTPServer struct {
	server      *http.Server
	logger      *slog.Logger
	config      *config.Config
	engine      *engine.Engine
	transcriber *transcription.Client
	metrics     *metrics.Metrics

	startTime time.Time
}

// NewHTTPServer creates the API server. The transcriber may be nil; the
// transcription endpoints then report 503.
func NewHTTPServer(cfg config.HTTPConfig, logger *slog.Logger,
	appConfig *config.Config, eng *engine.Engine, transcriber *transcription.Client, m *metrics.Metrics) *HTTPServer {

	h := &HTTPServer{
		logger:      logger,
		config:      appConfig,
		engine:      eng,
		transcriber: transcriber,
		metrics:     m,
		startTime:   time.Now(),
	}

	mux := http.NewServeMux()
	h.setupRoutes(mux)

	h.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Address, cfg.Port),
		Handler:      mux,
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	return h
}

// setupRoutes configures HTTP API routes
func (h *HTTPServer) setupRoutes(mux *http.ServeMux) {
	// Processing endpoints
	mux.HandleFunc("/v1/analyze", h.withMetrics("/v1/analyze", h.handleAnalyze))
	mux.HandleFunc("/v1/trim", h.withMetrics("/v1/trim", h.handleTrim))
	mux.HandleFunc("/v1/compress", h.withMetrics("/v1/compress", h.handleCompress))
	mux.HandleFunc("/v1/transcribe", h.withMetrics("/v1/transcribe", h.handleTranscribe))

	// Health check endpoint
	mux.HandleFunc("/health", h.withMetrics("/health", h.handleHealth))

	// Configuration endpoint
	mux.HandleFunc("/config", h.withMetrics("/config", h.handleConfig))

	// Statistics endpoint
	mux.HandleFunc("/stats", h.withMetrics("/stats", h.handleStats))

	// Prometheus metrics endpoint (no metrics needed for metrics endpoint)
	mux.Handle("/metrics", promhttp.Handler())

	// Root endpoint with API documentation
	mux.HandleFunc("/", h.withMetrics("/", h.handleRoot))
}

// withMetrics wraps an HTTP handler with metrics collection
func (h *HTTPServer) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		// Create a response writer wrapper to capture status code
		ww := &responseWriter{ResponseWriter: w, statusCode: 200}

		handler(ww, r)

		duration := time.Since(startTime).Seconds()
		statusCode := fmt.Sprintf("%d", ww.statusCode)

		if h.metrics != nil {
			h.metrics.RecordHTTPRequest(r.Method, endpoint, statusCode, duration)

			if ww.statusCode >= 400 {
				errorType := "client_error"
				if ww.statusCode >= 500 {
					errorType = "server_error"
				}
				h.metrics.RecordHTTPError(r.Method, endpoint, errorType)
			}
		}
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Start starts the HTTP server
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

// Stop gracefully stops the HTTP server
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("Stopping HTTP API server...")

	return h.server.Shutdown(ctx)
}

// Handler returns the underlying handler, for tests.
func (h *HTTPServer) Handler() http.Handler {
	return h.server.Handler
}

// decodeUpload reads the "file" part of a multipart upload and decodes it
// into a recording. It also resolves the detection preset from the
// optional "preset" form value, defaulting to the configured one.
func (h *HTTPServer) decodeUpload(w http.ResponseWriter, r *http.Request) (*audio.Recording, config.DetectionPreset, string, bool) {
	var zero config.DetectionPreset

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid multipart body: %v", err))
		return nil, zero, "", false
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "missing 'file' part")
		return nil, zero, "", false
	}
	defer file.Close()

	rec, err := audio.Decode(file)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to decode audio: %v", err))
		return nil, zero, "", false
	}

	presetName := r.FormValue("preset")
	if presetName == "" {
		presetName = h.config.Detection.Preset
	}

	preset, ok := h.config.Detection.ResolvePreset(presetName)
	if !ok {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown preset '%s'", presetName))
		return nil, zero, "", false
	}

	return rec, preset, presetName, true
}

// handleAnalyze implements POST /v1/analyze: detection and segment map
// construction with no asset produced.
func (h *HTTPServer) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rec, preset, presetName, ok := h.decodeUpload(w, r)
	if !ok {
		return
	}

	analysis, err := h.engine.Analyze(r.Context(), rec, preset, presetName)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, analysis)
}

// handleTrim implements POST /v1/trim: full pass, returning the asset
// handle and the segment map needed to invert its timestamps.
func (h *HTTPServer) handleTrim(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rec, preset, presetName, ok := h.decodeUpload(w, r)
	if !ok {
		return
	}

	result, err := h.engine.Process(r.Context(), rec, preset, presetName)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// handleCompress implements POST /v1/compress: the upload-compression
// path. No detection runs; the asset's timeline matches the source.
func (h *HTTPServer) handleCompress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rec, _, _, ok := h.decodeUpload(w, r)
	if !ok {
		return
	}

	asset, err := h.engine.CompressForUpload(r.Context(), rec)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, asset)
}

// handleTranscribe implements POST /v1/transcribe: the full round trip
// with remapped word timestamps.
func (h *HTTPServer) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if h.transcriber == nil {
		h.writeError(w, http.StatusServiceUnavailable, "transcription is not configured")
		return
	}

	rec, preset, presetName, ok := h.decodeUpload(w, r)
	if !ok {
		return
	}

	result, err := h.engine.TranscribeRecording(r.Context(), rec, preset, presetName)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// writeEngineError maps engine failures onto status codes. No-speech is a
// distinct recoverable condition; export failures are retryable without
// re-analysis; a cancelled request context gets the nginx 499 convention.
func (h *HTTPServer) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	var exportErr *media.ExportError

	switch {
	case errors.Is(err, engine.ErrNoSpeech):
		h.writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error":     "no speech detected",
			"no_speech": true,
		})
	case r.Context().Err() != nil:
		h.logger.Info("Request cancelled by client", slog.String("path", r.URL.Path))
		w.WriteHeader(499)
	case errors.As(err, &exportErr):
		h.writeJSON(w, http.StatusBadGateway, map[string]interface{}{
			"error":     exportErr.Error(),
			"retryable": true,
		})
	default:
		h.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (h *HTTPServer) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("Failed to encode response", slog.String("error", err.Error()))
	}
}

func (h *HTTPServer) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// handleHealth implements the /health endpoint
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(h.startTime)

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    uptime.String(),
		"service": map[string]interface{}{
			"name":    "trim-audio-service",
			"version": "1.0.0",
		},
		"components": map[string]interface{}{
			"engine": map[string]interface{}{
				"status":           "running",
				"speed_multiplier": h.config.Media.SpeedMultiplier,
			},
			"transcription": h.transcriptionHealth(),
		},
	}

	h.writeJSON(w, http.StatusOK, health)
}

func (h *HTTPServer) transcriptionHealth() map[string]interface{} {
	if h.transcriber == nil {
		return map[string]interface{}{"status": "disabled"}
	}

	stats := h.transcriber.GetStats()
	return map[string]interface{}{
		"status":          "running",
		"total_requests":  stats.TotalRequests,
		"success_rate":    stats.SuccessRate,
		"active_requests": stats.ActiveRequests,
	}
}

// handleConfig implements the /config endpoint
func (h *HTTPServer) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	activePreset, _ := h.config.Detection.ResolvePreset(h.config.Detection.Preset)

	// Return sanitized configuration (remove sensitive data)
	sanitizedConfig := map[string]interface{}{
		"http": map[string]interface{}{
			"port":    h.config.HTTP.Port,
			"address": h.config.HTTP.Address,
		},
		"detection": map[string]interface{}{
			"preset":       h.config.Detection.Preset,
			"active":       activePreset,
			"preset_names": h.config.Detection.PresetNames(),
		},
		"media": map[string]interface{}{
			"speed_multiplier":   h.config.Media.SpeedMultiplier,
			"upload_sample_rate": h.config.Media.UploadSampleRate,
			"temp_dir":           h.config.Media.TempDir,
		},
		"transcription": map[string]interface{}{
			"endpoint":       h.config.Transcription.Endpoint,
			"timeout":        h.config.Transcription.Timeout,
			"max_retries":    h.config.Transcription.MaxRetries,
			"max_concurrent": h.config.Transcription.MaxConcurrent,
			"language":       h.config.Transcription.Language,
			"model":          h.config.Transcription.Model,
			// Note: API key is intentionally omitted for security
		},
		"logging": map[string]interface{}{
			"level":  h.config.Logging.Level,
			"format": h.config.Logging.Format,
			"output": h.config.Logging.Output,
		},
	}

	h.writeJSON(w, http.StatusOK, sanitizedConfig)
}

// handleStats implements the /stats endpoint
func (h *HTTPServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(h.startTime)

	stats := map[string]interface{}{
		"uptime":    uptime.String(),
		"timestamp": time.Now().UTC(),
	}

	if h.transcriber != nil {
		stats["transcription"] = h.transcriber.GetStats()
	}

	h.writeJSON(w, http.StatusOK, stats)
}

// handleRoot implements the / endpoint with API documentation
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
		"service": "Silence Trimming Audio Service",
		"version": "1.0.0",
		"endpoints": map[string]interface{}{
			"POST /v1/analyze":    "Detect speech and build a segment map (no asset produced)",
			"POST /v1/trim":       "Full trimming pass; returns asset handle and segment map",
			"POST /v1/compress":   "Downsample for low-bandwidth upload; timeline unchanged",
			"POST /v1/transcribe": "Trim, transcribe and remap word timestamps to the original timeline",
			"GET /":               "API documentation",
			"GET /health":         "Service health check",
			"GET /config":         "Get service configuration",
			"GET /stats":          "Get service statistics",
			"GET /metrics":        "Prometheus metrics",
		},
		"timestamp": time.Now().UTC(),
	}

	h.writeJSON(w, http.StatusOK, apiDoc)
}
