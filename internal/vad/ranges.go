package vad

import (
	"github.com/voxnote/trim-audio-service/internal/timeline"
)

// BuildRanges run-length-encodes speech labels into candidate time ranges,
// merges ranges separated by gaps shorter than minSilence, then pads each
// survivor with edgeBuffer clamped to [0, totalDuration]. Buffered ranges
// that overlap or touch are merged again so the result stays
// non-overlapping and ascending. An empty result means no speech was
// detected; the caller decides how to surface that.
func BuildRanges(labels []bool, frameDuration, totalDuration, minSilence, edgeBuffer float64) []timeline.Range {
	candidates := encodeRuns(labels, frameDuration, totalDuration)
	merged := mergeClose(candidates, minSilence)
	buffered := applyEdgeBuffer(merged, edgeBuffer, totalDuration)

	// Buffering two ranges that stayed distinct can make them overlap.
	return mergeClose(buffered, 0)
}

// encodeRuns converts each maximal run of speech labels into a candidate
// range. A run open at the end of the label array extends to totalDuration
// rather than the last frame boundary, so trailing speech inside the
// dropped partial frame is not lost.
func encodeRuns(labels []bool, frameDuration, totalDuration float64) []timeline.Range {
	var ranges []timeline.Range
	runStart := -1

	for i, speech := range labels {
		if speech && runStart < 0 {
			runStart = i
		}
		if !speech && runStart >= 0 {
			ranges = append(ranges, timeline.Range{
				Start: float64(runStart) * frameDuration,
				End:   float64(i) * frameDuration,
			})
			runStart = -1
		}
	}

	if runStart >= 0 {
		ranges = append(ranges, timeline.Range{
			Start: float64(runStart) * frameDuration,
			End:   totalDuration,
		})
	}

	return ranges
}

// mergeClose walks ranges in order and fuses any pair whose separating gap
// is strictly less than minGap. With minGap zero it still fuses ranges
// that overlap or touch, which keeps the non-overlap invariant after edge
// buffering. Idempotent on already-merged input.
func mergeClose(ranges []timeline.Range, minGap float64) []timeline.Range {
	if len(ranges) == 0 {
		return nil
	}

	merged := make([]timeline.Range, 0, len(ranges))
	current := ranges[0]

	for _, r := range ranges[1:] {
		if r.Start-current.End < minGap || r.Start <= current.End {
			if r.End > current.End {
				current.End = r.End
			}
			continue
		}
		merged = append(merged, current)
		current = r
	}

	return append(merged, current)
}

// applyEdgeBuffer pads each range to avoid clipping word onsets and
// offsets. Ranges are clamped to [0, totalDuration] even with no padding:
// boundaries here are multiples of the nominal frame duration while the
// analyzer frames by whole samples, so when the frame sample count rounds
// the two clocks drift and a closed run's end can land past the
// recording's real end. Ranges left empty by the clamp are dropped.
func applyEdgeBuffer(ranges []timeline.Range, edgeBuffer, totalDuration float64) []timeline.Range {
	if edgeBuffer < 0 {
		edgeBuffer = 0
	}

	buffered := make([]timeline.Range, 0, len(ranges))
	for _, r := range ranges {
		start := r.Start - edgeBuffer
		if start < 0 {
			start = 0
		}
		end := r.End + edgeBuffer
		if end > totalDuration {
			end = totalDuration
		}
		if end <= start {
			continue
		}
		buffered = append(buffered, timeline.Range{Start: start, End: end})
	}
	return buffered
}
