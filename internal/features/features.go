// Package features builds the normalized beat-synchronous feature matrix the
// structure analysis runs on. Each beat gets one fused row of timbral,
// harmonic, dynamic, onset and brightness descriptors.
package features

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// Tunables
const (
	WindowSize = 2048
	HopSize    = 512

	// spectral rolloff keeps this fraction of total magnitude below it
	rolloffFraction = 0.85
)

// frameDescriptors is one STFT frame reduced to scalar descriptors.
type frameDescriptors struct {
	rms       float64 // dynamic
	centroid  float64 // brightness
	rolloff   float64 // timbral
	flux      float64 // onset
	zcr       float64 // noisiness
	lowRatio  float64 // coarse harmonic-timbral band balance
	midRatio  float64
	highRatio float64
}

const baseColumns = 8

// BuildBeatSync computes the fused per-beat feature matrix. When an external
// chroma matrix is supplied (rows aligned to chromaHopSec), its columns are
// appended to each row before normalization. The returned matrix always has
// exactly len(beats) rows.
func BuildBeatSync(samples []float64, sampleRate int, beats []float64, chroma [][]float64, chromaHopSec float64) [][]float64 {
	if len(beats) == 0 {
		return nil
	}

	frames := analyzeFrames(samples, sampleRate)
	hopSec := float64(HopSize) / float64(sampleRate)

	chromaCols := 0
	if len(chroma) > 0 && chromaHopSec > 0 {
		chromaCols = len(chroma[0])
	}
	cols := baseColumns + chromaCols

	duration := float64(len(samples)) / float64(sampleRate)
	matrix := make([][]float64, len(beats))
	for i := range beats {
		start := beats[i]
		end := duration
		if i+1 < len(beats) {
			end = beats[i+1]
		}
		row := make([]float64, cols)
		aggregateFrames(row, frames, hopSec, start, end)
		if chromaCols > 0 {
			aggregateChroma(row[baseColumns:], chroma, chromaHopSec, start, end)
		}
		matrix[i] = row
	}

	normalizeColumns(matrix)
	return matrix
}

// analyzeFrames runs the STFT and reduces each frame to its descriptors.
func analyzeFrames(samples []float64, sampleRate int) []frameDescriptors {
	if len(samples) < WindowSize {
		return nil
	}
	window := hammingWindow(WindowSize)
	freqRes := float64(sampleRate) / float64(WindowSize)
	nBins := WindowSize / 2

	lowCut := int(250.0 / freqRes)
	midCut := int(2000.0 / freqRes)
	if lowCut < 1 {
		lowCut = 1
	}
	if midCut <= lowCut {
		midCut = lowCut + 1
	}
	if midCut > nBins {
		midCut = nBins
	}

	var out []frameDescriptors
	var prevMag []float64
	frame := make([]float64, WindowSize)

	for start := 0; start+WindowSize <= len(samples); start += HopSize {
		var sumSq float64
		zc := 0
		for i := 0; i < WindowSize; i++ {
			s := samples[start+i]
			sumSq += s * s
			if i > 0 && (s >= 0) != (samples[start+i-1] >= 0) {
				zc++
			}
			frame[i] = s * window[i]
		}

		spec := fft.FFTReal(frame)
		mag := make([]float64, nBins)
		var total, weighted, low, mid, high, flux float64
		for k := 0; k < nBins; k++ {
			m := cmplx.Abs(spec[k])
			mag[k] = m
			total += m
			weighted += m * float64(k) * freqRes
			switch {
			case k < lowCut:
				low += m
			case k < midCut:
				mid += m
			default:
				high += m
			}
			if prevMag != nil {
				if d := m - prevMag[k]; d > 0 {
					flux += d
				}
			}
		}

		d := frameDescriptors{
			rms: math.Sqrt(sumSq / float64(WindowSize)),
			zcr: float64(zc) / float64(WindowSize),
		}
		if total > 0 {
			d.centroid = weighted / total
			d.rolloff = rolloffFreq(mag, total, freqRes)
			d.lowRatio = low / total
			d.midRatio = mid / total
			d.highRatio = high / total
		}
		d.flux = flux
		out = append(out, d)
		prevMag = mag
	}
	return out
}

func rolloffFreq(mag []float64, total, freqRes float64) float64 {
	target := total * rolloffFraction
	var acc float64
	for k, m := range mag {
		acc += m
		if acc >= target {
			return float64(k) * freqRes
		}
	}
	return float64(len(mag)-1) * freqRes
}

// aggregateFrames averages frame descriptors over [start, end) into row.
func aggregateFrames(row []float64, frames []frameDescriptors, hopSec, start, end float64) {
	lo := int(start / hopSec)
	hi := int(end / hopSec)
	if lo < 0 {
		lo = 0
	}
	if hi <= lo {
		hi = lo + 1
	}
	if hi > len(frames) {
		hi = len(frames)
	}
	if lo >= len(frames) {
		return
	}

	n := float64(hi - lo)
	for _, f := range frames[lo:hi] {
		row[0] += f.rms
		row[1] += f.centroid
		row[2] += f.rolloff
		row[3] += f.flux
		row[4] += f.zcr
		row[5] += f.lowRatio
		row[6] += f.midRatio
		row[7] += f.highRatio
	}
	for i := 0; i < baseColumns; i++ {
		row[i] /= n
	}
}

func aggregateChroma(dst []float64, chroma [][]float64, hopSec, start, end float64) {
	lo := int(start / hopSec)
	hi := int(end / hopSec)
	if lo < 0 {
		lo = 0
	}
	if hi <= lo {
		hi = lo + 1
	}
	if hi > len(chroma) {
		hi = len(chroma)
	}
	if lo >= len(chroma) {
		return
	}

	n := float64(hi - lo)
	for _, frame := range chroma[lo:hi] {
		for c := 0; c < len(dst) && c < len(frame); c++ {
			dst[c] += frame[c]
		}
	}
	for c := range dst {
		dst[c] /= n
	}
}

// normalizeColumns applies per-column z-score normalization in place.
// Constant columns are zeroed rather than divided by a zero deviation.
func normalizeColumns(matrix [][]float64) {
	if len(matrix) == 0 {
		return
	}
	cols := len(matrix[0])
	n := float64(len(matrix))

	for c := 0; c < cols; c++ {
		var mean float64
		for _, row := range matrix {
			mean += row[c]
		}
		mean /= n

		var variance float64
		for _, row := range matrix {
			d := row[c] - mean
			variance += d * d
		}
		std := math.Sqrt(variance / n)

		for _, row := range matrix {
			if std > 1e-12 {
				row[c] = (row[c] - mean) / std
			} else {
				row[c] = 0
			}
		}
	}
}

func hammingWindow(n int) []float64 {
	w := make([]float64, n)
	for i := 0; i < n; i++ {
		w[i] = 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}
