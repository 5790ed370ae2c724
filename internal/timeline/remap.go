package timeline

import "sort"

// ToOriginal converts a playback time in the compacted, sped-up asset back
// to the corresponding time in the original recording. Pure and total: out
// of range inputs fall back to linear extrapolation (past the last
// segment) or are returned unchanged (negative input or empty map).
func (m *SegmentMap) ToOriginal(compactedPlaybackTime float64) float64 {
	// Undo the speed multiplier first; segment offsets are pre-speed.
	t := compactedPlaybackTime * m.SpeedMultiplier

	if len(m.Segments) == 0 || t < 0 {
		return t
	}

	last := m.Segments[len(m.Segments)-1]
	if t >= last.CompactedStart+last.Duration {
		// Transcript timestamps can land slightly past end-of-audio due to
		// rounding; extrapolate from the last segment.
		return last.OriginalStart + last.Duration + (t - (last.CompactedStart + last.Duration))
	}

	// First segment starting strictly after t, minus one, is the segment
	// containing t.
	idx := sort.Search(len(m.Segments), func(i int) bool {
		return m.Segments[i].CompactedStart > t
	}) - 1
	if idx < 0 {
		idx = 0
	}

	seg := m.Segments[idx]
	return seg.OriginalStart + (t - seg.CompactedStart)
}
