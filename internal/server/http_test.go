package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/voxnote/trim-audio-service/internal/audio"
	"github.com/voxnote/trim-audio-service/internal/config"
	"github.com/voxnote/trim-audio-service/internal/engine"
	"github.com/voxnote/trim-audio-service/internal/media"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	return &config.Config{
		HTTP: config.HTTPConfig{Port: 8080, Address: "127.0.0.1"},
		Detection: config.DetectionConfig{
			Preset: "test",
			Presets: map[string]config.DetectionPreset{
				"test": {
					FrameDuration:      0.05,
					ThresholdSD:        1.0,
					MinSilenceDuration: 0.75,
					EdgeBuffer:         0,
				},
			},
		},
		Media: config.MediaConfig{
			SpeedMultiplier:  2.0,
			UploadSampleRate: 8000,
			TempDir:          t.TempDir(),
		},
		Transcription: config.TranscriptionConfig{
			Endpoint: "http://localhost:9999", APIKey: "secret-key",
			Timeout: 5, MaxConcurrent: 1,
		},
		Logging: config.LoggingConfig{Level: "info", Format: "text"},
	}
}

func newTestServer(t *testing.T) (*HTTPServer, *config.Config) {
	t.Helper()

	cfg := testConfig(t)
	pipeline, err := media.NewPipeline(cfg.Media.TempDir, cfg.Media.UploadSampleRate, nil)
	if err != nil {
		t.Fatalf("NewPipeline failed: %v", err)
	}

	eng, err := engine.NewEngine(nil, pipeline, nil, nil, cfg.Media.SpeedMultiplier)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewHTTPServer(cfg.HTTP, logger, cfg, eng, nil, nil), cfg
}

// wavUpload builds a multipart body with a WAV file of the given samples.
func wavUpload(t *testing.T, samples []float64, sampleRate int, preset string) (io.Reader, string) {
	t.Helper()

	wav, err := audio.EncodePCM16(samples, sampleRate)
	if err != nil {
		t.Fatalf("EncodePCM16 failed: %v", err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	part, err := mw.CreateFormFile("file", "recording.wav")
	if err != nil {
		t.Fatalf("CreateFormFile failed: %v", err)
	}
	if _, err := part.Write(wav); err != nil {
		t.Fatalf("Failed to write WAV part: %v", err)
	}

	if preset != "" {
		if err := mw.WriteField("preset", preset); err != nil {
			t.Fatalf("WriteField failed: %v", err)
		}
	}

	if err := mw.Close(); err != nil {
		t.Fatalf("Failed to close multipart writer: %v", err)
	}

	return &body, mw.FormDataContentType()
}

// burstSamples builds samples with 0.5-amplitude speech at the given
// second intervals and silence elsewhere.
func burstSamples(durationSec float64, sampleRate int, bursts ...[2]float64) []float64 {
	samples := make([]float64, int(durationSec*float64(sampleRate)))
	for _, b := range bursts {
		start := int(b[0] * float64(sampleRate))
		end := int(b[1] * float64(sampleRate))
		for i := start; i < end && i < len(samples); i++ {
			samples[i] = 0.5
		}
	}
	return samples
}

func TestHandleAnalyze(t *testing.T) {
	srv, _ := newTestServer(t)

	samples := burstSamples(10.0, 8000, [2]float64{1.0, 3.0}, [2]float64{5.0, 7.0})
	body, contentType := wavUpload(t, samples, 8000, "")

	req := httptest.NewRequest(http.MethodPost, "/v1/analyze", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var analysis engine.Analysis
	if err := json.Unmarshal(rr.Body.Bytes(), &analysis); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if analysis.PassID == "" {
		t.Error("Expected a pass ID")
	}
	if len(analysis.Map.Segments) != 2 {
		t.Errorf("Expected 2 segments, got %d", len(analysis.Map.Segments))
	}
}

func TestHandleAnalyzeNoSpeech(t *testing.T) {
	srv, _ := newTestServer(t)

	body, contentType := wavUpload(t, burstSamples(5.0, 8000), 8000, "")
	req := httptest.NewRequest(http.MethodPost, "/v1/analyze", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("Expected 422, got %d", rr.Code)
	}

	var resp struct {
		NoSpeech bool `json:"no_speech"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if !resp.NoSpeech {
		t.Error("Expected no_speech flag in response")
	}
}

func TestHandleAnalyzeUnknownPreset(t *testing.T) {
	srv, _ := newTestServer(t)

	body, contentType := wavUpload(t, burstSamples(5.0, 8000, [2]float64{1, 4}), 8000, "nonexistent")
	req := httptest.NewRequest(http.MethodPost, "/v1/analyze", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400 for unknown preset, got %d", rr.Code)
	}
}

func TestHandleAnalyzeRejectsGet(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/analyze", nil)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("Expected 405, got %d", rr.Code)
	}
}

func TestHandleAnalyzeBadBody(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/analyze", strings.NewReader("not multipart"))
	req.Header.Set("Content-Type", "text/plain")
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", rr.Code)
	}
}

func TestHandleTrim(t *testing.T) {
	srv, _ := newTestServer(t)

	samples := burstSamples(10.0, 8000, [2]float64{2.0, 6.0})
	body, contentType := wavUpload(t, samples, 8000, "")

	req := httptest.NewRequest(http.MethodPost, "/v1/trim", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var result engine.Result
	if err := json.Unmarshal(rr.Body.Bytes(), &result); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if !result.Trimmed {
		t.Error("Expected trimmed result")
	}
	if result.Asset == nil || result.Asset.Path == "" {
		t.Fatal("Expected asset handle in response")
	}
	// 4s of speech at 2x plays back in 2s.
	if result.Asset.Duration < 1.8 || result.Asset.Duration > 2.2 {
		t.Errorf("Expected ~2s asset, got %f", result.Asset.Duration)
	}
}

func TestHandleCompress(t *testing.T) {
	srv, _ := newTestServer(t)

	samples := burstSamples(4.0, 16000, [2]float64{0, 4.0})
	body, contentType := wavUpload(t, samples, 16000, "")

	req := httptest.NewRequest(http.MethodPost, "/v1/compress", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var asset media.Asset
	if err := json.Unmarshal(rr.Body.Bytes(), &asset); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if asset.SampleRate != 8000 {
		t.Errorf("Expected 8000 Hz asset, got %d", asset.SampleRate)
	}
}

func TestHandleTranscribeUnconfigured(t *testing.T) {
	srv, _ := newTestServer(t)

	samples := burstSamples(5.0, 8000, [2]float64{1, 4})
	body, contentType := wavUpload(t, samples, 8000, "")

	req := httptest.NewRequest(http.MethodPost, "/v1/transcribe", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("Expected 503 without a transcriber, got %d", rr.Code)
	}
}

func TestHandleHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rr.Code)
	}

	var health map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &health); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if health["status"] != "healthy" {
		t.Errorf("Expected healthy status, got %v", health["status"])
	}
}

func TestHandleConfigOmitsAPIKey(t *testing.T) {
	srv, cfg := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/config", nil)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rr.Code)
	}
	if strings.Contains(rr.Body.String(), cfg.Transcription.APIKey) {
		t.Error("Config response must not contain the API key")
	}
}

func TestHandleRootNotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("Expected 404, got %d", rr.Code)
	}
}
