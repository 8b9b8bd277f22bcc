package audio

import (
	"math"
	"testing"
)

func sine(durationSec float64, freq float64, amp float64, sampleRate int) []float64 {
	n := int(durationSec * float64(sampleRate))
	out := make([]float64, n)
	for i := range out {
		out[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	return out
}

func silence(durationSec float64, sampleRate int) []float64 {
	return make([]float64, int(durationSec*float64(sampleRate)))
}

func TestRMSEnvelope(t *testing.T) {
	const sr = 8000
	samples := sine(2.0, 440, 0.5, sr)

	env := RMSEnvelope(samples, EnvelopeHop)

	expected := (len(samples) + EnvelopeHop - 1) / EnvelopeHop
	if len(env) != expected {
		t.Fatalf("envelope length = %d, expected %d", len(env), expected)
	}

	// RMS of a sine is amp/sqrt(2)
	want := 0.5 / math.Sqrt2
	for i, e := range env[1 : len(env)-1] {
		if math.Abs(e-want) > 0.05 {
			t.Errorf("frame %d: RMS = %f, expected ~%f", i+1, e, want)
		}
	}
}

func TestRMSEnvelopeEmpty(t *testing.T) {
	if env := RMSEnvelope(nil, EnvelopeHop); env != nil {
		t.Errorf("expected nil envelope for empty input, got %d frames", len(env))
	}
}

func TestTrimSilenceLeading(t *testing.T) {
	const sr = 8000
	samples := append(silence(2.0, sr), sine(8.0, 440, 0.5, sr)...)

	res := TrimSilence(samples, sr)

	if !res.Applied {
		t.Fatal("expected trim to be applied")
	}
	if math.Abs(res.OffsetSec-2.0) > 0.2 {
		t.Errorf("trim offset = %f, expected ~2.0", res.OffsetSec)
	}
	if len(res.Samples) >= len(samples) {
		t.Error("trimmed signal should be shorter than input")
	}
}

func TestTrimSilenceRejectsBadTrim(t *testing.T) {
	const sr = 8000
	// 8s of silence around 2s of tone: trimming would remove 80%
	samples := append(silence(7.0, sr), sine(2.0, 440, 0.5, sr)...)
	samples = append(samples, silence(1.0, sr)...)

	res := TrimSilence(samples, sr)

	if res.Applied {
		t.Error("trim removing >60% of the track must be rejected")
	}
	if res.OffsetSec != 0 {
		t.Errorf("rejected trim must report zero offset, got %f", res.OffsetSec)
	}
	if len(res.Samples) != len(samples) {
		t.Error("rejected trim must return the full signal")
	}
}

func TestTrimSilenceAllSilent(t *testing.T) {
	const sr = 8000
	samples := silence(5.0, sr)

	res := TrimSilence(samples, sr)

	if res.Applied || res.OffsetSec != 0 {
		t.Error("all-silent input must not be trimmed")
	}
}

func TestTrimSilenceNoSilence(t *testing.T) {
	const sr = 8000
	samples := sine(5.0, 440, 0.5, sr)

	res := TrimSilence(samples, sr)

	if res.Applied {
		t.Error("tone with no silence should not be trimmed")
	}
}

func TestFindFadeOutStart(t *testing.T) {
	const hopSec = 0.1

	// 10s plateau followed by a 5s linear fade to zero
	env := make([]float64, 150)
	for i := 0; i < 100; i++ {
		env[i] = 0.5
	}
	for i := 100; i < 150; i++ {
		env[i] = 0.5 * float64(150-i) / 50.0
	}

	start, ok := FindFadeOutStart(env, hopSec)
	if !ok {
		t.Fatal("expected a fade-out to be detected")
	}
	if start < 9.0 || start > 11.5 {
		t.Errorf("fade onset = %fs, expected near 10s", start)
	}
}

func TestFindFadeOutStartFlat(t *testing.T) {
	env := make([]float64, 100)
	for i := range env {
		env[i] = 0.5
	}
	if _, ok := FindFadeOutStart(env, 0.1); ok {
		t.Error("flat envelope must not register a fade")
	}
}

func TestFindFadeOutStartTooShort(t *testing.T) {
	// 1s decay is below the minimum fade length
	env := make([]float64, 100)
	for i := 0; i < 90; i++ {
		env[i] = 0.5
	}
	for i := 90; i < 100; i++ {
		env[i] = 0.5 * float64(100-i) / 10.0
	}
	if _, ok := FindFadeOutStart(env, 0.1); ok {
		t.Error("sub-minimum decay must not register as a fade")
	}
}
