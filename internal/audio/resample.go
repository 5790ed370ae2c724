package audio

import "fmt"

// Resample converts a mono waveform from srcRate to dstRate using linear
// interpolation. Adequate for speech destined for transcription; no
// anti-alias filtering beyond the averaging done by Decimate.
func Resample(samples []float64, srcRate, dstRate int) ([]float64, error) {
	if srcRate <= 0 || dstRate <= 0 {
		return nil, fmt.Errorf("sample rates must be positive, got %d -> %d", srcRate, dstRate)
	}

	if srcRate == dstRate || len(samples) == 0 {
		out := make([]float64, len(samples))
		copy(out, samples)
		return out, nil
	}

	ratio := float64(srcRate) / float64(dstRate)
	outLen := int(float64(len(samples)) / ratio)
	if outLen < 1 {
		outLen = 1
	}

	out := make([]float64, outLen)
	for i := range out {
		pos := float64(i) * ratio
		idx := int(pos)
		if idx >= len(samples)-1 {
			out[i] = samples[len(samples)-1]
			continue
		}
		frac := pos - float64(idx)
		out[i] = samples[idx]*(1-frac) + samples[idx+1]*frac
	}

	return out, nil
}

// Decimate downsamples by an integer factor, averaging each window of
// factor samples. The averaging doubles as a crude low-pass filter.
func Decimate(samples []float64, factor int) ([]float64, error) {
	if factor < 1 {
		return nil, fmt.Errorf("decimation factor must be at least 1, got %d", factor)
	}

	if factor == 1 {
		out := make([]float64, len(samples))
		copy(out, samples)
		return out, nil
	}

	n := len(samples) / factor
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		var sum float64
		for j := 0; j < factor; j++ {
			sum += samples[i*factor+j]
		}
		out[i] = sum / float64(factor)
	}

	return out, nil
}

// TimeScale compresses a waveform in time by the given speed factor: the
// output holds len(samples)/speed samples played back at the original
// rate. Implemented by resampling, so pitch shifts with speed; the remote
// transcriber tolerates that, human listeners never hear this asset.
func TimeScale(samples []float64, speed float64) ([]float64, error) {
	if speed <= 0 {
		return nil, fmt.Errorf("speed must be positive, got %f", speed)
	}

	if speed == 1 || len(samples) == 0 {
		out := make([]float64, len(samples))
		copy(out, samples)
		return out, nil
	}

	outLen := int(float64(len(samples)) / speed)
	if outLen < 1 {
		outLen = 1
	}

	out := make([]float64, outLen)
	for i := range out {
		pos := float64(i) * speed
		idx := int(pos)
		if idx >= len(samples)-1 {
			out[i] = samples[len(samples)-1]
			continue
		}
		frac := pos - float64(idx)
		out[i] = samples[idx]*(1-frac) + samples[idx+1]*frac
	}

	return out, nil
}
