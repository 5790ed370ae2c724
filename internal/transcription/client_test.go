package transcription

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/voxnote/trim-audio-service/internal/media"
)

func testAsset(t *testing.T) *media.Asset {
	t.Helper()

	path := filepath.Join(t.TempDir(), "chunk.wav")
	if err := os.WriteFile(path, []byte("RIFFfakewavdata"), 0644); err != nil {
		t.Fatalf("Failed to write test asset: %v", err)
	}
	return &media.Asset{ID: "test-asset", Path: path, SampleRate: 16000, Duration: 2.5}
}

func newTestClient(t *testing.T, endpoint string, maxRetries int) *Client {
	t.Helper()

	client, err := NewClient(Config{
		Endpoint:      endpoint,
		APIKey:        "test-key",
		Timeout:       5 * time.Second,
		MaxRetries:    maxRetries,
		MaxConcurrent: 2,
		Language:      "en",
	})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return client
}

func TestNewClientValidation(t *testing.T) {
	tests := []struct {
		name      string
		config    Config
		expectErr bool
	}{
		{
			name:      "valid config",
			config:    Config{Endpoint: "http://localhost:9000/v1/transcribe", APIKey: "key"},
			expectErr: false,
		},
		{
			name:      "missing endpoint",
			config:    Config{APIKey: "key"},
			expectErr: true,
		},
		{
			name:      "missing API key",
			config:    Config{Endpoint: "http://localhost:9000"},
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(tt.config)
			if tt.expectErr && err == nil {
				t.Error("Expected error but got none")
			}
			if !tt.expectErr && err != nil {
				t.Errorf("Expected no error but got: %v", err)
			}
		})
	}
}

func TestTranscribe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Expected bearer auth, got %q", got)
		}

		if err := r.ParseMultipartForm(10 << 20); err != nil {
			t.Errorf("Failed to parse multipart form: %v", err)
		}
		if _, _, err := r.FormFile("file"); err != nil {
			t.Errorf("Expected file part: %v", err)
		}
		if got := r.FormValue("timestamps"); got != "word" {
			t.Errorf("Expected word-level timestamps requested, got %q", got)
		}

		json.NewEncoder(w).Encode(Transcript{
			Text:     "hello world",
			Language: "en",
			Duration: 2.5,
			Words: []Word{
				{Text: "hello", Start: 0.1, End: 0.5, Speaker: "spk_0"},
				{Text: "world", Start: 0.6, End: 1.1, Speaker: "spk_0"},
			},
		})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 0)

	transcript, err := client.Transcribe(context.Background(), testAsset(t))
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}

	if transcript.Text != "hello world" {
		t.Errorf("Expected text %q, got %q", "hello world", transcript.Text)
	}
	if len(transcript.Words) != 2 {
		t.Fatalf("Expected 2 words, got %d", len(transcript.Words))
	}
	if transcript.Words[1].Start != 0.6 {
		t.Errorf("Expected second word start 0.6, got %f", transcript.Words[1].Start)
	}

	stats := client.GetStats()
	if stats.SuccessRequests != 1 {
		t.Errorf("Expected 1 success, got %d", stats.SuccessRequests)
	}
}

func TestTranscribeRetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			http.Error(w, "upstream overloaded", http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(Transcript{Text: "ok"})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 3)

	transcript, err := client.Transcribe(context.Background(), testAsset(t))
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if transcript.Text != "ok" {
		t.Errorf("Expected text %q, got %q", "ok", transcript.Text)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Errorf("Expected 3 attempts, got %d", calls)
	}

	stats := client.GetStats()
	if stats.TotalRetries != 2 {
		t.Errorf("Expected 2 retries, got %d", stats.TotalRetries)
	}
}

func TestTranscribeDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "unsupported audio format", http.StatusBadRequest)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 3)

	_, err := client.Transcribe(context.Background(), testAsset(t))
	if err == nil {
		t.Fatal("Expected error for 400 response")
	}
	if !strings.Contains(err.Error(), "HTTP error 400") {
		t.Errorf("Expected HTTP error 400 in message, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("Expected 1 attempt for non-retryable error, got %d", calls)
	}
}

func TestTranscribeCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 3)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Transcribe(ctx, testAsset(t))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected context.DeadlineExceeded, got %v", err)
	}
}

func TestTranscribeMissingAssetFile(t *testing.T) {
	client := newTestClient(t, "http://localhost:1/unused", 0)

	_, err := client.Transcribe(context.Background(), &media.Asset{ID: "gone", Path: "/nonexistent/gone.wav"})
	if err == nil {
		t.Fatal("Expected error for missing asset file")
	}
}
