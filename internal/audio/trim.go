package audio

import "math"

// Tunables
const (
	// hop used for the internally computed loudness envelope
	EnvelopeHop = 512
	// frames quieter than this fraction of the peak RMS count as silence
	silenceRelThreshold = 0.02
	// a trim removing more than this fraction of the track is rejected
	maxTrimFraction = 0.6
	// minimum length of a monotonic decay to count as a fade-out
	minFadeSec = 3.0
	// the fade must end at least this far below its onset level
	fadeDropRatio = 0.35
)

// RMSEnvelope computes a per-hop root-mean-square loudness envelope.
// The last partial frame is included so short tails are not dropped.
func RMSEnvelope(samples []float64, hop int) []float64 {
	if hop <= 0 {
		hop = EnvelopeHop
	}
	if len(samples) == 0 {
		return nil
	}

	n := (len(samples) + hop - 1) / hop
	env := make([]float64, n)
	for i := 0; i < n; i++ {
		start := i * hop
		end := start + hop
		if end > len(samples) {
			end = len(samples)
		}
		var sum float64
		for _, s := range samples[start:end] {
			sum += s * s
		}
		env[i] = math.Sqrt(sum / float64(end-start))
	}
	return env
}

// TrimResult is the outcome of silence trimming. Samples is a subslice of the
// input; OffsetSec maps trimmed ("work") time back to the original timeline.
type TrimResult struct {
	Samples   []float64
	OffsetSec float64
	Applied   bool
}

// TrimSilence strips near-silent audio from both ends using a threshold
// relative to the peak RMS. If trimming would remove more than 60% of the
// track (near-silent input, broken decode) the trim is rejected and the
// full signal is returned with zero offset.
func TrimSilence(samples []float64, sampleRate int) TrimResult {
	full := TrimResult{Samples: samples}
	if len(samples) == 0 || sampleRate <= 0 {
		return full
	}

	env := RMSEnvelope(samples, EnvelopeHop)
	var peak float64
	for _, e := range env {
		if e > peak {
			peak = e
		}
	}
	if peak <= 0 {
		return full
	}
	threshold := peak * silenceRelThreshold

	first, last := -1, -1
	for i, e := range env {
		if e >= threshold {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	if first < 0 {
		// all silence: nothing usable to trim around
		return full
	}

	startSample := first * EnvelopeHop
	endSample := (last + 1) * EnvelopeHop
	if endSample > len(samples) {
		endSample = len(samples)
	}

	kept := float64(endSample - startSample)
	if kept < float64(len(samples))*(1.0-maxTrimFraction) {
		return full
	}
	if startSample == 0 && endSample == len(samples) {
		return full
	}

	return TrimResult{
		Samples:   samples[startSample:endSample],
		OffsetSec: float64(startSample) / float64(sampleRate),
		Applied:   true,
	}
}

// FindFadeOutStart scans the loudness envelope backward from the end looking
// for a sustained monotonic decay. On success it returns the onset time of
// the fade in envelope time (seconds from the start of the envelope).
func FindFadeOutStart(env []float64, hopSec float64) (float64, bool) {
	if len(env) < 8 || hopSec <= 0 {
		return 0, false
	}

	sm := movingAverage(env, 5)
	n := len(sm)

	// walk left from the tail while the envelope strictly rises; plateaus
	// belong to the sustained section, not the fade
	i := n - 1
	for i > 0 && sm[i-1] >= sm[i]*1.001 {
		i--
	}

	fadeLen := float64(n-1-i) * hopSec
	if fadeLen < minFadeSec {
		return 0, false
	}
	if sm[i] <= 0 {
		return 0, false
	}

	// tail must actually land well below the fade onset level
	tail := sm[n-1]
	if tail > sm[i]*fadeDropRatio {
		return 0, false
	}

	return float64(i) * hopSec, true
}

func movingAverage(x []float64, w int) []float64 {
	if w < 2 || len(x) < w {
		out := make([]float64, len(x))
		copy(out, x)
		return out
	}
	out := make([]float64, len(x))
	half := w / 2
	for i := range x {
		lo := i - half
		if lo < 0 {
			lo = 0
		}
		hi := i + half + 1
		if hi > len(x) {
			hi = len(x)
		}
		var sum float64
		for _, v := range x[lo:hi] {
			sum += v
		}
		out[i] = sum / float64(hi-lo)
	}
	return out
}
