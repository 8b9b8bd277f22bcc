// Package beatgrid derives a usable beat grid for beat-synchronous analysis.
// It prefers externally supplied beat/bar timestamps and falls back to an
// internal onset-strength estimator, substituting a synthetic uniform grid
// when everything else fails. Build never returns a degenerate grid.
package beatgrid

import (
	"math"
	"sort"
)

// Tunables
const (
	// beats closer together than this are treated as duplicates
	dedupeGapSec = 0.010
	// below this many beats the grid is replaced by a synthetic one
	minUsableBeats = 8
	// synthetic grid density, points per second
	syntheticRate = 2.0

	minTempoBPM     = 40.0
	maxTempoBPM     = 220.0
	defaultTempoBPM = 120.0

	defaultBeatsPerBar = 4
)

// Grid is an ordered beat timeline with a derived tempo.
type Grid struct {
	Beats       []float64 // strictly increasing timestamps, seconds; len >= 2
	Bars        []float64 // bar (downbeat) timestamps, may be empty
	Tempo       float64   // BPM in [minTempoBPM, maxTempoBPM]
	BeatsPerBar int
	Synthetic   bool // true when the uniform fallback grid was substituted
	Estimated   bool // true when beats came from the internal estimator
}

// BeatDuration returns the median beat interval in seconds.
func (g Grid) BeatDuration() float64 {
	return 60.0 / g.Tempo
}

// Build derives a beat grid from optional external beat/bar arrays and the
// raw audio. It never fails: degenerate inputs produce a synthetic grid.
func Build(beats, bars []float64, samples []float64, sampleRate int) Grid {
	duration := 0.0
	if sampleRate > 0 {
		duration = float64(len(samples)) / float64(sampleRate)
	}

	g := Grid{BeatsPerBar: defaultBeatsPerBar}

	usable := filterTimestamps(beats, duration)
	if len(usable) < 2 {
		if est := estimateBeats(samples, sampleRate); len(est) >= 2 {
			usable = est
			g.Estimated = true
		}
	}

	if len(usable) < minUsableBeats {
		usable = syntheticGrid(duration)
		g.Synthetic = true
		g.Estimated = false
	}

	g.Beats = usable
	g.Bars = filterTimestamps(bars, duration)
	g.Tempo = deriveTempo(usable)

	if bpb := deriveBeatsPerBar(g.Beats, g.Bars); bpb > 0 {
		g.BeatsPerBar = bpb
	}
	return g
}

// NearestBeat returns the beat timestamp closest to t.
func (g Grid) NearestBeat(t float64) float64 {
	return nearest(g.Beats, t)
}

// NearestBar returns the bar timestamp closest to t and whether bars exist.
func (g Grid) NearestBar(t float64) (float64, bool) {
	if len(g.Bars) == 0 {
		return 0, false
	}
	return nearest(g.Bars, t), true
}

func nearest(sorted []float64, t float64) float64 {
	i := sort.SearchFloat64s(sorted, t)
	if i == 0 {
		return sorted[0]
	}
	if i == len(sorted) {
		return sorted[len(sorted)-1]
	}
	if t-sorted[i-1] <= sorted[i]-t {
		return sorted[i-1]
	}
	return sorted[i]
}

// filterTimestamps keeps finite timestamps inside [0, duration], sorted and
// deduplicated. A zero duration disables the upper bound (beats supplied
// without audio).
func filterTimestamps(ts []float64, duration float64) []float64 {
	if len(ts) == 0 {
		return nil
	}
	out := make([]float64, 0, len(ts))
	for _, t := range ts {
		if math.IsNaN(t) || math.IsInf(t, 0) || t < 0 {
			continue
		}
		if duration > 0 && t > duration {
			continue
		}
		out = append(out, t)
	}
	sort.Float64s(out)

	deduped := out[:0]
	for _, t := range out {
		if len(deduped) == 0 || t-deduped[len(deduped)-1] >= dedupeGapSec {
			deduped = append(deduped, t)
		}
	}
	return deduped
}

func syntheticGrid(duration float64) []float64 {
	if duration <= 0 {
		return []float64{0, 0.5}
	}
	step := 1.0 / syntheticRate
	n := int(duration/step) + 1
	if n < 2 {
		n = 2
		step = duration / 2
		if step <= 0 {
			step = 0.5
		}
	}
	grid := make([]float64, 0, n)
	for t := 0.0; t < duration && len(grid) < n; t += step {
		grid = append(grid, t)
	}
	if len(grid) < 2 {
		grid = append(grid, duration)
	}
	return grid
}

// deriveTempo computes 60/median(interval), clamped to the plausible BPM
// range. Unusable intervals fall back to the default tempo.
func deriveTempo(beats []float64) float64 {
	if len(beats) < 2 {
		return defaultTempoBPM
	}
	intervals := make([]float64, 0, len(beats)-1)
	for i := 1; i < len(beats); i++ {
		d := beats[i] - beats[i-1]
		if d > 0 {
			intervals = append(intervals, d)
		}
	}
	if len(intervals) == 0 {
		return defaultTempoBPM
	}
	sort.Float64s(intervals)
	med := intervals[len(intervals)/2]
	if len(intervals)%2 == 0 {
		med = (intervals[len(intervals)/2-1] + intervals[len(intervals)/2]) / 2
	}
	if med <= 0 {
		return defaultTempoBPM
	}
	bpm := 60.0 / med
	if bpm < minTempoBPM {
		return minTempoBPM
	}
	if bpm > maxTempoBPM {
		return maxTempoBPM
	}
	return bpm
}

// deriveBeatsPerBar infers the meter from the ratio of bar to beat spacing.
func deriveBeatsPerBar(beats, bars []float64) int {
	if len(bars) < 2 || len(beats) < 2 {
		return 0
	}
	beatMed := medianInterval(beats)
	barMed := medianInterval(bars)
	if beatMed <= 0 || barMed <= 0 {
		return 0
	}
	bpb := int(math.Round(barMed / beatMed))
	if bpb < 2 || bpb > 12 {
		return 0
	}
	return bpb
}

func medianInterval(ts []float64) float64 {
	if len(ts) < 2 {
		return 0
	}
	intervals := make([]float64, 0, len(ts)-1)
	for i := 1; i < len(ts); i++ {
		if d := ts[i] - ts[i-1]; d > 0 {
			intervals = append(intervals, d)
		}
	}
	if len(intervals) == 0 {
		return 0
	}
	sort.Float64s(intervals)
	return intervals[len(intervals)/2]
}
