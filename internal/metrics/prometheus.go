package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the trim audio service.
type Metrics struct {
	// Trimming pass metrics
	PassesStarted    prometheus.Counter
	PassesCompleted  prometheus.Counter
	PassesCancelled  prometheus.Counter
	NoSpeechPasses   prometheus.Counter
	AnalysisDuration prometheus.Histogram
	FramesAnalyzed   prometheus.Counter
	SpeechRatio      prometheus.Histogram
	TrimRatio        prometheus.Histogram
	SegmentsPerMap   prometheus.Histogram

	// Media pipeline metrics
	Exports        *prometheus.CounterVec
	ExportFailures *prometheus.CounterVec
	ExportDuration prometheus.Histogram
	AssetSizeBytes prometheus.Histogram

	// Transcription metrics
	TranscriptionRequests  prometheus.Counter
	TranscriptionSuccesses prometheus.Counter
	TranscriptionFailures  prometheus.Counter
	TranscriptionDuration  prometheus.Histogram
	WordsRemapped          prometheus.Counter

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		PassesStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trim_passes_started_total",
			Help: "Total number of trimming passes started",
		}),
		PassesCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trim_passes_completed_total",
			Help: "Total number of trimming passes completed successfully",
		}),
		PassesCancelled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trim_passes_cancelled_total",
			Help: "Total number of trimming passes cancelled by the caller",
		}),
		NoSpeechPasses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trim_no_speech_passes_total",
			Help: "Total number of passes that detected no speech at all",
		}),
		AnalysisDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "trim_analysis_duration_seconds",
			Help:    "Wall time of the analysis stage per pass",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		}),
		FramesAnalyzed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trim_frames_analyzed_total",
			Help: "Total number of energy frames analyzed",
		}),
		SpeechRatio: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "trim_speech_ratio",
			Help:    "Fraction of frames classified as speech per pass",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),
		TrimRatio: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "trim_compaction_ratio",
			Help:    "Compacted duration divided by original duration per pass",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),
		SegmentsPerMap: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "trim_segments_per_map",
			Help:    "Number of segments in built segment maps",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10), // 1 to 512
		}),

		Exports: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "trim_media_exports_total",
			Help: "Total number of media exports by kind",
		}, []string{"kind"}),
		ExportFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "trim_media_export_failures_total",
			Help: "Total number of failed media exports by kind",
		}, []string{"kind"}),
		ExportDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "trim_media_export_duration_seconds",
			Help:    "Wall time of media exports",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~2.5s
		}),
		AssetSizeBytes: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "trim_asset_size_bytes",
			Help:    "Size of materialized assets in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 10), // 1KB up
		}),

		TranscriptionRequests: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trim_transcription_requests_total",
			Help: "Total number of transcription requests sent",
		}),
		TranscriptionSuccesses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trim_transcription_successes_total",
			Help: "Total number of successful transcription requests",
		}),
		TranscriptionFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trim_transcription_failures_total",
			Help: "Total number of failed transcription requests",
		}),
		TranscriptionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "trim_transcription_duration_seconds",
			Help:    "Duration of transcription round trips",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~2 minutes
		}),
		WordsRemapped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trim_words_remapped_total",
			Help: "Total number of word timestamps remapped to the original timeline",
		}),

		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "trim_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "trim_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "trim_http_errors_total",
			Help: "Total number of HTTP errors",
		}, []string{"method", "endpoint", "error_type"}),
	}
}

// RecordPassStarted increments the passes started counter.
func (m *Metrics) RecordPassStarted() {
	m.PassesStarted.Inc()
}

// RecordPassCompleted records a completed pass and its outcome ratios.
func (m *Metrics) RecordPassCompleted(analysisSeconds, speechRatio, trimRatio float64, segments int) {
	m.PassesCompleted.Inc()
	m.AnalysisDuration.Observe(analysisSeconds)
	m.SpeechRatio.Observe(speechRatio)
	m.TrimRatio.Observe(trimRatio)
	m.SegmentsPerMap.Observe(float64(segments))
}

// RecordPassCancelled increments the cancelled passes counter.
func (m *Metrics) RecordPassCancelled() {
	m.PassesCancelled.Inc()
}

// RecordNoSpeech increments the no-speech outcome counter.
func (m *Metrics) RecordNoSpeech() {
	m.NoSpeechPasses.Inc()
}

// RecordFramesAnalyzed adds to the analyzed frame counter.
func (m *Metrics) RecordFramesAnalyzed(frames int) {
	m.FramesAnalyzed.Add(float64(frames))
}

// RecordExport records a media export and its duration and size.
func (m *Metrics) RecordExport(kind string, durationSeconds float64, sizeBytes int64) {
	m.Exports.WithLabelValues(kind).Inc()
	m.ExportDuration.Observe(durationSeconds)
	m.AssetSizeBytes.Observe(float64(sizeBytes))
}

// RecordExportFailure records a failed media export.
func (m *Metrics) RecordExportFailure(kind string) {
	m.ExportFailures.WithLabelValues(kind).Inc()
}

// RecordTranscriptionRequest increments the transcription requests counter.
func (m *Metrics) RecordTranscriptionRequest() {
	m.TranscriptionRequests.Inc()
}

// RecordTranscriptionSuccess records a successful transcription round trip.
func (m *Metrics) RecordTranscriptionSuccess(durationSeconds float64) {
	m.TranscriptionSuccesses.Inc()
	m.TranscriptionDuration.Observe(durationSeconds)
}

// RecordTranscriptionFailure records a failed transcription round trip.
func (m *Metrics) RecordTranscriptionFailure(durationSeconds float64) {
	m.TranscriptionFailures.Inc()
	m.TranscriptionDuration.Observe(durationSeconds)
}

// RecordWordsRemapped adds to the remapped word counter.
func (m *Metrics) RecordWordsRemapped(words int) {
	m.WordsRemapped.Add(float64(words))
}

// RecordHTTPRequest records an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordHTTPError records an HTTP error.
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}
