package vad

import (
	"math"
	"testing"

	"github.com/voxnote/trim-audio-service/internal/timeline"
)

// labelsForRanges builds a label series with speech in the given frame
// index intervals (start inclusive, end exclusive).
func labelsForRanges(frameCount int, speech ...[2]int) []bool {
	labels := make([]bool, frameCount)
	for _, s := range speech {
		for i := s[0]; i < s[1]; i++ {
			labels[i] = true
		}
	}
	return labels
}

func rangesEqual(t *testing.T, got, want []timeline.Range) {
	t.Helper()

	if len(got) != len(want) {
		t.Fatalf("Expected %d ranges, got %d: %+v", len(want), len(got), got)
	}
	for i := range want {
		if math.Abs(got[i].Start-want[i].Start) > 1e-9 || math.Abs(got[i].End-want[i].End) > 1e-9 {
			t.Errorf("Range %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
}

func TestBuildRangesAllSilence(t *testing.T) {
	// Scenario: 10s of silence yields no ranges at all.
	labels := make([]bool, 100)

	got := BuildRanges(labels, 0.1, 10.0, 0.75, 0)
	if len(got) != 0 {
		t.Errorf("Expected no ranges for all-silence input, got %+v", got)
	}
}

func TestBuildRangesShortGapMerges(t *testing.T) {
	// Speech at [1.0, 3.0] and [3.4, 5.0] with a 0.4s gap, below the
	// 0.75s minimum silence: one merged range.
	labels := labelsForRanges(60, [2]int{10, 30}, [2]int{34, 50})

	got := BuildRanges(labels, 0.1, 6.0, 0.75, 0)
	rangesEqual(t, got, []timeline.Range{{Start: 1.0, End: 5.0}})
}

func TestBuildRangesLongGapStaysSplit(t *testing.T) {
	// Speech at [1.0, 3.0] and [5.0, 7.0] with a 2.0s gap, at or above
	// the minimum silence: two distinct ranges.
	labels := labelsForRanges(80, [2]int{10, 30}, [2]int{50, 70})

	got := BuildRanges(labels, 0.1, 8.0, 0.75, 0)
	rangesEqual(t, got, []timeline.Range{
		{Start: 1.0, End: 3.0},
		{Start: 5.0, End: 7.0},
	})
}

func TestBuildRangesGapExactlyAtThreshold(t *testing.T) {
	// The merge rule is strict: a gap equal to the minimum silence does
	// not merge.
	labels := labelsForRanges(40, [2]int{0, 10}, [2]int{15, 25})

	got := BuildRanges(labels, 0.1, 4.0, 0.5, 0)
	if len(got) != 2 {
		t.Fatalf("Expected 2 ranges for gap equal to threshold, got %+v", got)
	}

	gotMerged := BuildRanges(labels, 0.1, 4.0, 0.51, 0)
	if len(gotMerged) != 1 {
		t.Fatalf("Expected 1 range for gap below threshold, got %+v", gotMerged)
	}
}

func TestBuildRangesTrailingRunExtendsToTotalDuration(t *testing.T) {
	// A run open at the end of the label array extends to the full
	// duration, not the last frame boundary, so speech inside the dropped
	// partial frame is kept.
	labels := labelsForRanges(30, [2]int{20, 30})

	got := BuildRanges(labels, 0.1, 3.07, 0.75, 0)
	rangesEqual(t, got, []timeline.Range{{Start: 2.0, End: 3.07}})
}

func TestBuildRangesEdgeBufferClamps(t *testing.T) {
	labels := labelsForRanges(50, [2]int{0, 10}, [2]int{40, 50})

	got := BuildRanges(labels, 0.1, 5.0, 0.75, 0.3)
	rangesEqual(t, got, []timeline.Range{
		{Start: 0.0, End: 1.3},
		{Start: 3.7, End: 5.0},
	})
}

func TestBuildRangesClampsWithoutEdgeBuffer(t *testing.T) {
	// The analyzer frames by whole samples, so with a frame duration whose
	// sample count rounds the nominal frame clock runs fast: 100 one-sample
	// frames at a nominal 0.14s cover a nominal 14s against a real 10s
	// recording. A closed run's end must still be clamped to the recording
	// even when no edge buffer is configured.
	labels := labelsForRanges(100, [2]int{0, 95})

	got := BuildRanges(labels, 0.14, 10.0, 0.75, 0)
	rangesEqual(t, got, []timeline.Range{{Start: 0.0, End: 10.0}})
}

func TestBuildRangesDropsRunPastRecordingEnd(t *testing.T) {
	// A run whose nominal start already lies past the recording's real end
	// clamps to nothing and is dropped.
	labels := labelsForRanges(100, [2]int{0, 10}, [2]int{80, 90})

	got := BuildRanges(labels, 0.14, 10.0, 0.5, 0)
	rangesEqual(t, got, []timeline.Range{{Start: 0.0, End: 1.4}})
}

func TestBuildRangesPostBufferOverlapMerges(t *testing.T) {
	// Two runs separated by 1.0s stay distinct at minSilence 0.8, but a
	// 0.6s edge buffer makes them overlap; they must be merged again to
	// keep the non-overlap invariant.
	labels := labelsForRanges(50, [2]int{10, 20}, [2]int{30, 40})

	got := BuildRanges(labels, 0.1, 5.0, 0.8, 0.6)
	rangesEqual(t, got, []timeline.Range{{Start: 0.4, End: 4.6}})
}

func TestBuildRangesPostBufferTouchMerges(t *testing.T) {
	// Buffered ranges that exactly touch also merge.
	labels := labelsForRanges(50, [2]int{10, 20}, [2]int{30, 40})

	got := BuildRanges(labels, 0.1, 5.0, 0.8, 0.5)
	rangesEqual(t, got, []timeline.Range{{Start: 0.5, End: 4.5}})
}

func TestMergeCloseIdempotent(t *testing.T) {
	ranges := []timeline.Range{
		{Start: 0.0, End: 1.0},
		{Start: 1.5, End: 2.5},
		{Start: 4.0, End: 5.0},
	}

	once := mergeClose(ranges, 0.75)
	twice := mergeClose(once, 0.75)
	rangesEqual(t, twice, once)
}

func TestBuildRangesNonOverlappingAscending(t *testing.T) {
	labels := labelsForRanges(200,
		[2]int{5, 20}, [2]int{25, 40}, [2]int{60, 90}, [2]int{95, 120}, [2]int{180, 200})

	got := BuildRanges(labels, 0.05, 10.0, 0.4, 0.25)
	for i := range got {
		if got[i].End <= got[i].Start {
			t.Errorf("Range %d is empty or inverted: %+v", i, got[i])
		}
		if i > 0 && got[i].Start <= got[i-1].End {
			t.Errorf("Range %d overlaps or touches previous: %+v then %+v", i, got[i-1], got[i])
		}
	}
}
