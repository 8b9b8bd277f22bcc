package beatgrid

import (
	"math"
	"math/cmplx"

	dspfft "github.com/mjibson/go-dsp/fft"
	scifft "scientificgo.org/fft"
)

// Estimator tunables
const (
	estWindowSize = 1024
	estHopSize    = 512
)

// estimateBeats is the fallback beat tracker used when no usable external
// beats are supplied. It computes a spectral-flux onset envelope, estimates
// the dominant period by autocorrelation, and places beats greedily on flux
// maxima starting from the strongest early onset.
func estimateBeats(samples []float64, sampleRate int) []float64 {
	if sampleRate <= 0 || len(samples) < estWindowSize*2 {
		return nil
	}

	flux := onsetEnvelope(samples)
	if len(flux) < 8 {
		return nil
	}
	hopSec := float64(estHopSize) / float64(sampleRate)

	period := dominantPeriod(flux, hopSec)
	if period <= 0 {
		return nil
	}
	periodFrames := period / hopSec

	return placeBeats(flux, periodFrames, hopSec)
}

// onsetEnvelope computes half-wave rectified spectral flux per STFT frame.
func onsetEnvelope(samples []float64) []float64 {
	window := hamming(estWindowSize)

	var prev []float64
	var flux []float64
	frame := make([]float64, estWindowSize)

	for start := 0; start+estWindowSize <= len(samples); start += estHopSize {
		for i := 0; i < estWindowSize; i++ {
			frame[i] = samples[start+i] * window[i]
		}
		spec := dspfft.FFTReal(frame)
		mag := make([]float64, estWindowSize/2)
		for i := range mag {
			mag[i] = cmplx.Abs(spec[i])
		}

		if prev != nil {
			var f float64
			for i := range mag {
				if d := mag[i] - prev[i]; d > 0 {
					f += d
				}
			}
			flux = append(flux, f)
		} else {
			flux = append(flux, 0)
		}
		prev = mag
	}

	// normalize to [0,1] so the autocorrelation is scale free; a near-zero
	// peak means there are no onsets worth tracking at all
	var peak float64
	for _, f := range flux {
		if f > peak {
			peak = f
		}
	}
	if peak < 1e-6 {
		return nil
	}
	for i := range flux {
		flux[i] /= peak
	}
	return flux
}

// dominantPeriod estimates the beat period in seconds via FFT-based
// autocorrelation of the onset envelope, searching the plausible tempo range.
func dominantPeriod(flux []float64, hopSec float64) float64 {
	n := len(flux)
	size := nextPow2(2 * n)

	buf := make([]complex128, size)
	mean := 0.0
	for _, f := range flux {
		mean += f
	}
	mean /= float64(n)
	for i, f := range flux {
		buf[i] = complex(f-mean, 0)
	}

	spec := scifft.Fft(buf, false)
	for i := range spec {
		spec[i] = spec[i] * cmplx.Conj(spec[i])
	}
	ac := scifft.Fft(spec, true)

	minLag := int(60.0 / maxTempoBPM / hopSec)
	maxLag := int(60.0 / minTempoBPM / hopSec)
	if minLag < 1 {
		minLag = 1
	}
	if maxLag >= n {
		maxLag = n - 1
	}
	if maxLag <= minLag {
		return 0
	}

	bestLag, bestVal := 0, 0.0
	for lag := minLag; lag <= maxLag; lag++ {
		v := real(ac[lag])
		if v > bestVal {
			bestVal = v
			bestLag = lag
		}
	}
	if bestLag == 0 || bestVal <= 0 {
		return 0
	}
	return float64(bestLag) * hopSec
}

// placeBeats walks the onset envelope in steps of one period, snapping each
// step to the local flux maximum within a small search radius.
func placeBeats(flux []float64, periodFrames, hopSec float64) []float64 {
	n := len(flux)
	radius := int(periodFrames * 0.12)
	if radius < 1 {
		radius = 1
	}

	// anchor on the strongest onset within the first two periods
	anchorLimit := int(periodFrames * 2)
	if anchorLimit > n {
		anchorLimit = n
	}
	anchor := 0
	for i := 1; i < anchorLimit; i++ {
		if flux[i] > flux[anchor] {
			anchor = i
		}
	}

	var beats []float64
	pos := float64(anchor)
	// back up to the first beat before the anchor
	for pos-periodFrames >= 0 {
		pos -= periodFrames
	}
	for pos < float64(n) {
		idx := snapToMax(flux, int(math.Round(pos)), radius)
		beats = append(beats, float64(idx)*hopSec)
		pos += periodFrames
	}
	return filterTimestamps(beats, float64(n)*hopSec)
}

func snapToMax(flux []float64, center, radius int) int {
	lo := center - radius
	if lo < 0 {
		lo = 0
	}
	hi := center + radius + 1
	if hi > len(flux) {
		hi = len(flux)
	}
	best := center
	if best < lo {
		best = lo
	}
	if best >= hi {
		best = hi - 1
	}
	for i := lo; i < hi; i++ {
		if flux[i] > flux[best] {
			best = i
		}
	}
	return best
}

func hamming(n int) []float64 {
	w := make([]float64, n)
	for i := 0; i < n; i++ {
		w[i] = 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
