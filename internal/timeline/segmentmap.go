package timeline

import (
	"fmt"
)

// Range represents a contiguous time interval in the original recording,
// in seconds. Start is inclusive, End exclusive.
type Range struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Duration returns the length of the range in seconds.
func (r Range) Duration() float64 {
	return r.End - r.Start
}

// Segment pairs a span of the compacted timeline with its span in the
// original recording. Durations are pre-speed-multiplier seconds.
type Segment struct {
	CompactedStart float64 `json:"compacted_start"`
	OriginalStart  float64 `json:"original_start"`
	Duration       float64 `json:"duration"`
}

// SegmentMap describes how the compacted audio sent for transcription maps
// back onto the original recording. Immutable once built; one map is built
// per trimming pass and discarded after its batch of timestamps has been
// remapped.
type SegmentMap struct {
	Segments          []Segment `json:"segments"`
	OriginalDuration  float64   `json:"original_duration"`
	CompactedDuration float64   `json:"compacted_duration"`
	SpeedMultiplier   float64   `json:"speed_multiplier"`
}

// hasTrimmingTolerance distinguishes "meaningfully trimmed" from "trimming
// found nothing worth removing". 100ms.
const hasTrimmingTolerance = 0.1

// BuildSegmentMap lays the given speech ranges end-to-end into a compacted
// timeline and records the per-range mapping back to the original one.
// Ranges must be non-overlapping and ascending, each within
// [0, originalDuration].
func BuildSegmentMap(ranges []Range, originalDuration, speedMultiplier float64) (*SegmentMap, error) {
	if originalDuration <= 0 {
		return nil, fmt.Errorf("original duration must be positive, got %f", originalDuration)
	}

	if speedMultiplier <= 0 {
		return nil, fmt.Errorf("speed multiplier must be positive, got %f", speedMultiplier)
	}

	segments := make([]Segment, 0, len(ranges))
	compactedOffset := 0.0

	for i, r := range ranges {
		if r.End <= r.Start {
			return nil, fmt.Errorf("range %d is empty or inverted: [%f, %f]", i, r.Start, r.End)
		}

		if r.Start < 0 || r.End > originalDuration {
			return nil, fmt.Errorf("range %d [%f, %f] exceeds original duration %f", i, r.Start, r.End, originalDuration)
		}

		if i > 0 && r.Start < ranges[i-1].End {
			return nil, fmt.Errorf("range %d starts at %f before previous range ends at %f", i, r.Start, ranges[i-1].End)
		}

		segments = append(segments, Segment{
			CompactedStart: compactedOffset,
			OriginalStart:  r.Start,
			Duration:       r.Duration(),
		})
		compactedOffset += r.Duration()
	}

	return &SegmentMap{
		Segments:          segments,
		OriginalDuration:  originalDuration,
		CompactedDuration: compactedOffset,
		SpeedMultiplier:   speedMultiplier,
	}, nil
}

// HasTrimming reports whether the compacted timeline is meaningfully
// shorter than the original. Governs whether materialization does
// range-extraction-plus-speed-up or speed-up only.
func (m *SegmentMap) HasTrimming() bool {
	diff := m.OriginalDuration - m.CompactedDuration
	if diff < 0 {
		diff = -diff
	}
	return diff > hasTrimmingTolerance
}

// KeptRanges returns the original-timeline ranges the map was built from.
func (m *SegmentMap) KeptRanges() []Range {
	ranges := make([]Range, 0, len(m.Segments))
	for _, s := range m.Segments {
		ranges = append(ranges, Range{Start: s.OriginalStart, End: s.OriginalStart + s.Duration})
	}
	return ranges
}
