package vad

import (
	"context"
	"fmt"
	"math"
)

// cancelCheckInterval is the number of frames processed between context
// cancellation checks during analysis.
const cancelCheckInterval = 1024

// Analyze computes short-time RMS energy per fixed-duration frame over a
// mono waveform with amplitudes in [-1, 1]. The trailing partial frame
// shorter than the frame size is dropped; this is a boundary rule, not an
// error. Cancellation is checked at frame-batch granularity so long
// recordings can be abandoned promptly.
func Analyze(ctx context.Context, samples []float64, sampleRate int, frameDuration float64) ([]float64, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	frameSize := int(math.Round(float64(sampleRate) * frameDuration))
	if frameSize < 1 {
		return nil, fmt.Errorf("frame duration %f too short for sample rate %d", frameDuration, sampleRate)
	}

	frameCount := len(samples) / frameSize
	energies := make([]float64, frameCount)

	for i := 0; i < frameCount; i++ {
		if i%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		frame := samples[i*frameSize : (i+1)*frameSize]
		var sum float64
		for _, s := range frame {
			sum += s * s
		}
		energies[i] = math.Sqrt(sum / float64(frameSize))
	}

	return energies, nil
}

// DownmixMono averages interleaved multi-channel samples into a mono
// waveform. A simple arithmetic mean per sample position, not
// power-weighted. Trailing samples that do not fill a full sample position
// across all channels are dropped.
func DownmixMono(interleaved []float64, channels int) []float64 {
	if channels <= 1 {
		return interleaved
	}

	n := len(interleaved) / channels
	mono := make([]float64, n)
	for i := 0; i < n; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += interleaved[i*channels+c]
		}
		mono[i] = sum / float64(channels)
	}
	return mono
}
