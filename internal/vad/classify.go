package vad

import "math"

// silenceFloor is the energy below which a frame is treated as true
// digital silence (muted capture gaps). Such frames are excluded from the
// threshold statistics so they cannot bias the mean and deviation low and
// make the threshold too permissive.
const silenceFloor = 1e-4

// Classify labels each frame speech or silence using a single static
// threshold derived from the energy population: T = max(0, mean -
// thresholdSD*stddev) over frames above the silence floor. A frame is
// speech iff its energy >= T.
func Classify(energies []float64, thresholdSD float64) []bool {
	labels := make([]bool, len(energies))

	var sum float64
	var count int
	for _, e := range energies {
		if e < silenceFloor {
			continue
		}
		sum += e
		count++
	}

	// No frame above the floor means the clip contains no speech at all.
	if count == 0 {
		return labels
	}

	mean := sum / float64(count)

	var variance float64
	for _, e := range energies {
		if e < silenceFloor {
			continue
		}
		d := e - mean
		variance += d * d
	}
	variance /= float64(count)
	stddev := math.Sqrt(variance)

	threshold := mean - thresholdSD*stddev
	if threshold < 0 {
		threshold = 0
	}

	for i, e := range energies {
		labels[i] = e >= threshold
	}

	return labels
}
