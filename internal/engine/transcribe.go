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
	"github.com/voxnote/trim-audio-service/internal/timeline"
)

// RemappedWord is a transcribed word whose Start and End have been
// converted back to the original recording's timeline. The raw times in
// the uploaded asset's timeline are kept for debugging.
type RemappedWord struct {
	Text           string  `json:"text"`
	Start          float64 `json:"start"`
	End            float64 `json:"end"`
	Speaker        string  `json:"speaker,omitempty"`
	CompactedStart float64 `json:"compacted_start"`
	CompactedEnd   float64 `json:"compacted_end"`
}

// TranscriptResult is a completed transcription round trip. All word
// timestamps are in the original recording's timeline.
type TranscriptResult struct {
	PassID           string         `json:"pass_id"`
	Text             string         `json:"text"`
	Language         string         `json:"language,omitempty"`
	Words            []RemappedWord `json:"words"`
	Trimmed          bool           `json:"trimmed"`
	NoSpeechFallback bool           `json:"no_speech_fallback"`
	OriginalDuration float64        `json:"original_duration"`
	UploadedDuration float64        `json:"uploaded_duration"`
}

// TranscribeRecording runs the full round trip: trim, upload the compacted
// asset, remap every returned timestamp into the original timeline. When
// the pass detects no speech it falls back to uploading the speed-scaled
// original and reports the fallback explicitly. The temporary asset is
// released before returning.
func (e *Engine) TranscribeRecording(ctx context.Context, rec *audio.Recording, preset config.DetectionPreset, presetName string) (*TranscriptResult, error) {
	if e.transcriber == nil {
		return nil, fmt.Errorf("no transcription client configured")
	}

	result, err := e.Process(ctx, rec, preset, presetName)
	if errors.Is(err, ErrNoSpeech) {
		// Fall back to the untrimmed recording: a single segment covering
		// the whole duration keeps the remap path uniform.
		fallbackMap, mapErr := timeline.BuildSegmentMap(
			[]timeline.Range{{Start: 0, End: rec.Duration}}, rec.Duration, e.speed)
		if mapErr != nil {
			return nil, fmt.Errorf("fallback map construction failed: %w", mapErr)
		}

		asset, expErr := e.pipeline.ExportScaled(ctx, rec, e.speed)
		if expErr != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, expErr
		}

		e.logger.Warn("Falling back to untrimmed audio",
			slog.Float64("duration", rec.Duration),
		)

		return e.transcribeAsset(ctx, &Result{
			PassID: uuid.NewString(),
			Asset:  asset,
			Map:    fallbackMap,
		}, true)
	}
	if err != nil {
		return nil, err
	}

	return e.transcribeAsset(ctx, result, false)
}

// transcribeAsset uploads one materialized asset, remaps the transcript
// and releases the asset.
func (e *Engine) transcribeAsset(ctx context.Context, result *Result, fallback bool) (*TranscriptResult, error) {
	defer func() {
		if err := e.pipeline.Release(result.Asset); err != nil {
			e.logger.Warn("Failed to release asset",
				slog.String("asset_id", result.Asset.ID),
				slog.String("error", err.Error()),
			)
		}
	}()

	started := time.Now()
	if e.metrics != nil {
		e.metrics.RecordTranscriptionRequest()
	}

	transcript, err := e.transcriber.Transcribe(ctx, result.Asset)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if e.metrics != nil {
			e.metrics.RecordTranscriptionFailure(time.Since(started).Seconds())
		}
		return nil, fmt.Errorf("transcription round trip failed: %w", err)
	}

	if e.metrics != nil {
		e.metrics.RecordTranscriptionSuccess(time.Since(started).Seconds())
		e.metrics.RecordWordsRemapped(len(transcript.Words))
	}

	words := make([]RemappedWord, 0, len(transcript.Words))
	for _, w := range transcript.Words {
		words = append(words, RemappedWord{
			Text:           w.Text,
			Start:          result.Map.ToOriginal(w.Start),
			End:            result.Map.ToOriginal(w.End),
			Speaker:        w.Speaker,
			CompactedStart: w.Start,
			CompactedEnd:   w.End,
		})
	}

	e.logger.Info("Transcription complete",
		slog.String("pass_id", result.PassID),
		slog.Int("words", len(words)),
		slog.Bool("no_speech_fallback", fallback),
	)

	return &TranscriptResult{
		PassID:           result.PassID,
		Text:             transcript.Text,
		Language:         transcript.Language,
		Words:            words,
		Trimmed:          result.Trimmed,
		NoSpeechFallback: fallback,
		OriginalDuration: result.Map.OriginalDuration,
		UploadedDuration: result.Asset.Duration,
	}, nil
}
