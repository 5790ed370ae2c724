package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/voxnote/trim-audio-service/internal/audio"
	"github.com/voxnote/trim-audio-service/internal/config"
	"github.com/voxnote/trim-audio-service/internal/media"
	"github.com/voxnote/trim-audio-service/internal/metrics"
	"github.com/voxnote/trim-audio-service/internal/timeline"
	"github.com/voxnote/trim-audio-service/internal/transcription"
	"github.com/voxnote/trim-audio-service/internal/vad"
)

// ErrNoSpeech is returned when the range builder finds no speech at all.
// It is a recoverable condition: callers are expected to fall back to the
// untrimmed recording rather than fail the whole operation.
var ErrNoSpeech = errors.New("no speech detected")

// Engine runs trimming passes. All methods are safe for concurrent use;
// the caller is responsible for not running two passes over the same
// recording at once.
type Engine struct {
	logger      *slog.Logger
	pipeline    *media.Pipeline
	transcriber *transcription.Client
	metrics     *metrics.Metrics
	speed       float64
}

// Analysis is the pure outcome of the analysis stage: the segment map plus
// the frame statistics it was derived from. No asset has been produced
// yet.
type Analysis struct {
	PassID       string               `json:"pass_id"`
	Map          *timeline.SegmentMap `json:"map"`
	Preset       string               `json:"preset"`
	FrameCount   int                  `json:"frame_count"`
	SpeechFrames int                  `json:"speech_frames"`
	AnalysisTime time.Duration        `json:"-"`
}

// Result is a materialized trimming pass: the compacted asset and the map
// needed to invert its timestamps. The asset is caller-owned.
type Result struct {
	PassID  string               `json:"pass_id"`
	Asset   *media.Asset         `json:"asset"`
	Map     *timeline.SegmentMap `json:"map"`
	Trimmed bool                 `json:"trimmed"`
}

// NewEngine creates a trimming engine. The transcriber may be nil when
// only analysis and materialization are needed; metrics may be nil in
// tests.
func NewEngine(logger *slog.Logger, pipeline *media.Pipeline, transcriber *transcription.Client, m *metrics.Metrics, speedMultiplier float64) (*Engine, error) {
	if pipeline == nil {
		return nil, fmt.Errorf("media pipeline is required")
	}

	if speedMultiplier <= 0 {
		return nil, fmt.Errorf("speed multiplier must be positive, got %f", speedMultiplier)
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		logger:      logger,
		pipeline:    pipeline,
		transcriber: transcriber,
		metrics:     m,
		speed:       speedMultiplier,
	}, nil
}

// Analyze runs the detection stages over a decoded recording and builds
// the segment map. Returns ErrNoSpeech when no speech range survives; a
// cancelled context surfaces as ctx.Err() with no partial map.
func (e *Engine) Analyze(ctx context.Context, rec *audio.Recording, preset config.DetectionPreset, presetName string) (*Analysis, error) {
	if rec == nil || len(rec.Samples) == 0 {
		return nil, fmt.Errorf("recording has no samples")
	}

	if err := preset.Validate(); err != nil {
		return nil, fmt.Errorf("invalid detection preset: %w", err)
	}

	passID := uuid.NewString()
	started := time.Now()

	if e.metrics != nil {
		e.metrics.RecordPassStarted()
	}

	energies, err := vad.Analyze(ctx, rec.Samples, rec.SampleRate, preset.FrameDuration)
	if err != nil {
		if ctx.Err() != nil {
			if e.metrics != nil {
				e.metrics.RecordPassCancelled()
			}
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("energy analysis failed: %w", err)
	}

	if e.metrics != nil {
		e.metrics.RecordFramesAnalyzed(len(energies))
	}

	labels := vad.Classify(energies, preset.ThresholdSD)
	speechFrames := 0
	for _, l := range labels {
		if l {
			speechFrames++
		}
	}

	ranges := vad.BuildRanges(labels, preset.FrameDuration, rec.Duration, preset.MinSilenceDuration, preset.EdgeBuffer)
	if len(ranges) == 0 {
		if e.metrics != nil {
			e.metrics.RecordNoSpeech()
		}
		e.logger.Info("No speech detected",
			slog.String("pass_id", passID),
			slog.Int("frames", len(energies)),
			slog.Float64("duration", rec.Duration),
		)
		return nil, ErrNoSpeech
	}

	segMap, err := timeline.BuildSegmentMap(ranges, rec.Duration, e.speed)
	if err != nil {
		return nil, fmt.Errorf("segment map construction failed: %w", err)
	}

	elapsed := time.Since(started)
	if e.metrics != nil {
		speechRatio := 0.0
		if len(labels) > 0 {
			speechRatio = float64(speechFrames) / float64(len(labels))
		}
		trimRatio := segMap.CompactedDuration / segMap.OriginalDuration
		e.metrics.RecordPassCompleted(elapsed.Seconds(), speechRatio, trimRatio, len(segMap.Segments))
	}

	e.logger.Info("Analysis complete",
		slog.String("pass_id", passID),
		slog.String("preset", presetName),
		slog.Int("frames", len(energies)),
		slog.Int("speech_frames", speechFrames),
		slog.Int("segments", len(segMap.Segments)),
		slog.Float64("original_duration", segMap.OriginalDuration),
		slog.Float64("compacted_duration", segMap.CompactedDuration),
		slog.Bool("has_trimming", segMap.HasTrimming()),
	)

	return &Analysis{
		PassID:       passID,
		Map:          segMap,
		Preset:       presetName,
		FrameCount:   len(energies),
		SpeechFrames: speechFrames,
		AnalysisTime: elapsed,
	}, nil
}

// Materialize produces the compacted asset for a prior analysis. Exposed
// separately from Analyze so a pipeline failure can be retried without
// re-running the analysis. Export failures surface as *media.ExportError.
func (e *Engine) Materialize(ctx context.Context, rec *audio.Recording, analysis *Analysis) (*Result, error) {
	if analysis == nil || analysis.Map == nil {
		return nil, fmt.Errorf("analysis with a segment map is required")
	}

	started := time.Now()

	var asset *media.Asset
	var err error
	trimmed := analysis.Map.HasTrimming()
	kind := "scaled"

	if trimmed {
		kind = "trimmed"
		asset, err = e.pipeline.ExportTrimmed(ctx, rec, analysis.Map.KeptRanges(), e.speed)
	} else {
		asset, err = e.pipeline.ExportScaled(ctx, rec, e.speed)
	}

	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if e.metrics != nil {
			e.metrics.RecordExportFailure(kind)
		}
		return nil, err
	}

	if e.metrics != nil {
		e.metrics.RecordExport(kind, time.Since(started).Seconds(), asset.SizeBytes)
	}

	return &Result{
		PassID:  analysis.PassID,
		Asset:   asset,
		Map:     analysis.Map,
		Trimmed: trimmed,
	}, nil
}

// Process runs a complete trimming pass: analysis plus materialization.
func (e *Engine) Process(ctx context.Context, rec *audio.Recording, preset config.DetectionPreset, presetName string) (*Result, error) {
	analysis, err := e.Analyze(ctx, rec, preset, presetName)
	if err != nil {
		return nil, err
	}

	return e.Materialize(ctx, rec, analysis)
}

// CompressForUpload produces the low-bitrate mono upload asset. Its
// timeline is identical to the recording's, so no remapping applies.
func (e *Engine) CompressForUpload(ctx context.Context, rec *audio.Recording) (*media.Asset, error) {
	started := time.Now()

	asset, err := e.pipeline.ExportCompressed(ctx, rec)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if e.metrics != nil {
			e.metrics.RecordExportFailure("compressed")
		}
		return nil, err
	}

	if e.metrics != nil {
		e.metrics.RecordExport("compressed", time.Since(started).Seconds(), asset.SizeBytes)
	}

	return asset, nil
}

// ReleaseAsset deletes a materialized asset once the caller is done with
// it.
func (e *Engine) ReleaseAsset(asset *media.Asset) error {
	return e.pipeline.Release(asset)
}
