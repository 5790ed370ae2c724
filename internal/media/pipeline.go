package media

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/voxnote/trim-audio-service/internal/audio"
	"github.com/voxnote/trim-audio-service/internal/timeline"
)

// Asset is a handle to a materialized audio file. Assets are owned by the
// caller, which must Release them once uploaded.
type Asset struct {
	ID         string  `json:"id"`
	Path       string  `json:"path"`
	SampleRate int     `json:"sample_rate"`
	Duration   float64 `json:"duration"`
	SizeBytes  int64   `json:"size_bytes"`
}

// ExportError wraps a materialization failure so callers can distinguish
// pipeline failures from analysis errors and retry only the export step.
type ExportError struct {
	Op  string
	Err error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("media export %s failed: %v", e.Op, e.Err)
}

func (e *ExportError) Unwrap() error {
	return e.Err
}

// Pipeline produces derived audio assets from decoded recordings. It never
// mutates a source recording and deletes only files it created.
type Pipeline struct {
	tempDir          string
	uploadSampleRate int
	logger           *slog.Logger
}

// NewPipeline creates a media pipeline writing assets under tempDir.
func NewPipeline(tempDir string, uploadSampleRate int, logger *slog.Logger) (*Pipeline, error) {
	if tempDir == "" {
		tempDir = os.TempDir()
	}

	if uploadSampleRate <= 0 {
		return nil, fmt.Errorf("upload sample rate must be positive, got %d", uploadSampleRate)
	}

	if err := os.MkdirAll(tempDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create temp dir %s: %w", tempDir, err)
	}

	return &Pipeline{
		tempDir:          tempDir,
		uploadSampleRate: uploadSampleRate,
		logger:           logger,
	}, nil
}

// ExportTrimmed concatenates the kept ranges of the recording in order and
// time-scales the result by speed, so its playback duration is the
// compacted duration divided by speed. Cancellation surfaces as ctx.Err(),
// not as an ExportError.
func (p *Pipeline) ExportTrimmed(ctx context.Context, rec *audio.Recording, ranges []timeline.Range, speed float64) (*Asset, error) {
	if len(ranges) == 0 {
		return nil, &ExportError{Op: "trim", Err: fmt.Errorf("no ranges to keep")}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var kept []float64
	for _, r := range ranges {
		start := int(r.Start * float64(rec.SampleRate))
		end := int(r.End * float64(rec.SampleRate))
		if start < 0 {
			start = 0
		}
		if end > len(rec.Samples) {
			end = len(rec.Samples)
		}
		if end <= start {
			continue
		}
		kept = append(kept, rec.Samples[start:end]...)
	}

	if len(kept) == 0 {
		return nil, &ExportError{Op: "trim", Err: fmt.Errorf("kept ranges contain no samples")}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	scaled, err := audio.TimeScale(kept, speed)
	if err != nil {
		return nil, &ExportError{Op: "trim", Err: err}
	}

	return p.writeAsset(ctx, "trimmed", scaled, rec.SampleRate)
}

// ExportScaled time-scales the whole recording by speed with no
// concatenation; the no-trimming path.
func (p *Pipeline) ExportScaled(ctx context.Context, rec *audio.Recording, speed float64) (*Asset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	scaled, err := audio.TimeScale(rec.Samples, speed)
	if err != nil {
		return nil, &ExportError{Op: "scale", Err: err}
	}

	return p.writeAsset(ctx, "scaled", scaled, rec.SampleRate)
}

// ExportCompressed produces a low-sample-rate mono asset sized for
// low-bandwidth upload. Its timeline is identical to the source's, so
// timestamps from it need no remapping.
func (p *Pipeline) ExportCompressed(ctx context.Context, rec *audio.Recording) (*Asset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := rec.Samples
	rate := rec.SampleRate

	if rate > p.uploadSampleRate {
		// Integer decimation when the ratio allows, for its built-in
		// averaging; linear resampling otherwise.
		if rate%p.uploadSampleRate == 0 {
			decimated, err := audio.Decimate(out, rate/p.uploadSampleRate)
			if err != nil {
				return nil, &ExportError{Op: "compress", Err: err}
			}
			out = decimated
		} else {
			resampled, err := audio.Resample(out, rate, p.uploadSampleRate)
			if err != nil {
				return nil, &ExportError{Op: "compress", Err: err}
			}
			out = resampled
		}
		rate = p.uploadSampleRate
	}

	return p.writeAsset(ctx, "compressed", out, rate)
}

// Release deletes a materialized asset file. Safe to call once the asset
// has been uploaded; the pipeline only ever deletes files it created.
func (p *Pipeline) Release(asset *Asset) error {
	if asset == nil || asset.Path == "" {
		return nil
	}

	if filepath.Dir(asset.Path) != filepath.Clean(p.tempDir) {
		return fmt.Errorf("asset %s is outside the pipeline temp dir", asset.Path)
	}

	if err := os.Remove(asset.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to release asset %s: %w", asset.ID, err)
	}
	return nil
}

// writeAsset encodes samples to a WAV file in the temp dir and returns its
// handle.
func (p *Pipeline) writeAsset(ctx context.Context, kind string, samples []float64, sampleRate int) (*Asset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	path := filepath.Join(p.tempDir, fmt.Sprintf("%s_%s.wav", kind, id))

	if err := audio.WriteWAVFile(path, samples, sampleRate); err != nil {
		return nil, &ExportError{Op: kind, Err: err}
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, &ExportError{Op: kind, Err: err}
	}

	asset := &Asset{
		ID:         id,
		Path:       path,
		SampleRate: sampleRate,
		Duration:   float64(len(samples)) / float64(sampleRate),
		SizeBytes:  info.Size(),
	}

	if p.logger != nil {
		p.logger.Debug("Materialized asset",
			slog.String("kind", kind),
			slog.String("asset_id", asset.ID),
			slog.Float64("duration", asset.Duration),
			slog.Int64("size_bytes", asset.SizeBytes),
		)
	}

	return asset, nil
}
