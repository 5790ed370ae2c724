package vad

import "testing"

func TestClassifyAllDigitalSilence(t *testing.T) {
	// Every frame below the silence floor: empty statistics population,
	// everything labeled silence.
	energies := []float64{0, 1e-5, 5e-5, 0, 9e-5}

	labels := Classify(energies, 1.0)
	for i, l := range labels {
		if l {
			t.Errorf("Frame %d: expected silence, got speech", i)
		}
	}
}

func TestClassifyEmptyInput(t *testing.T) {
	labels := Classify(nil, 1.0)
	if len(labels) != 0 {
		t.Errorf("Expected empty label series, got %d labels", len(labels))
	}
}

func TestClassifySeparatesSpeechFromSilence(t *testing.T) {
	// Loud frames well above the mean-minus-sigma threshold, quiet frames
	// well below it.
	energies := []float64{0.5, 0.5, 0.01, 0.5, 0.01, 0.5, 0.5}

	labels := Classify(energies, 1.0)
	want := []bool{true, true, false, true, false, true, true}
	for i := range want {
		if labels[i] != want[i] {
			t.Errorf("Frame %d (energy %f): expected %v, got %v", i, energies[i], want[i], labels[i])
		}
	}
}

func TestClassifyUniformEnergyIsAllSpeech(t *testing.T) {
	// Zero deviation: threshold equals the mean, every frame passes.
	energies := []float64{0.3, 0.3, 0.3, 0.3}

	labels := Classify(energies, 1.5)
	for i, l := range labels {
		if !l {
			t.Errorf("Frame %d: expected speech, got silence", i)
		}
	}
}

func TestClassifyDigitalSilenceDoesNotBiasThreshold(t *testing.T) {
	// Half the frames are true digital silence. They must not enter the
	// statistics population; the quiet-but-audible frames stay below the
	// threshold either way, and the zeros themselves stay silent.
	energies := []float64{0, 0, 0, 0, 0.04, 0.5, 0.5, 0.5, 0.5, 0.04}

	labels := Classify(energies, 0.5)

	for _, i := range []int{5, 6, 7, 8} {
		if !labels[i] {
			t.Errorf("Frame %d: expected speech", i)
		}
	}
	for _, i := range []int{0, 1, 2, 3, 4, 9} {
		if labels[i] {
			t.Errorf("Frame %d: expected silence", i)
		}
	}
}

func TestClassifyThresholdClampedAtZero(t *testing.T) {
	// Large deviation multiplier drives mean - k*sigma negative; the
	// threshold clamps to zero and every frame, including digital
	// silence, is labeled speech.
	energies := []float64{0.001, 0.9, 0.001, 0.9}

	labels := Classify(energies, 10.0)
	for i, l := range labels {
		if !l {
			t.Errorf("Frame %d: expected speech with clamped threshold", i)
		}
	}
}
