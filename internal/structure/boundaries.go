package structure

import (
	"math"
	"sort"

	"github.com/soundsmith/sectional/internal/beatgrid"
)

// Tunables
const (
	// target one baseline section per this many seconds
	baselineSectionSec = 12.0
	// boundaries snap to a bar when within this distance
	barSnapToleranceSec = 2.0
	// boundaries this close to the track edges are trim/snap artifacts
	edgeSuppressSec = 0.35
	// two boundaries closer than this are the same boundary
	dedupeEpsSec = 0.010
	// multiplier applied to the preset minimum length in beats
	minLenFactor = 1.5
)

// BoundaryParams carries everything DetectBoundaries needs beyond the
// novelty curve and the beat grid.
type BoundaryParams struct {
	Preset              Preset
	CallerMinSectionSec float64
	OffsetSec           float64 // work-to-original timeline shift
	WorkDurationSec     float64
	TotalDurationSec    float64 // original, untrimmed
	FadeStartSec        float64 // work time; negative when no fade found
}

// DetectBoundaries runs the full hybrid pass: novelty peaks unioned with a
// baseline grid and the fade-start, then short-section merging, bar
// alignment, a second merge, mapping back to the original timeline and
// micro-edge suppression. It returns the ordered boundary list in original
// time (first entry 0, last entry the original duration) and the effective
// minimum section length that was applied.
//
// The pass order (merge, bar-align, merge, map, edge-suppress) is fixed;
// golden tests pin it down.
func DetectBoundaries(novelty []float64, grid beatgrid.Grid, p BoundaryParams) ([]float64, float64) {
	beatDur := grid.BeatDuration()
	effMin := minLenFactor * float64(p.Preset.MinLenBeats) * beatDur
	if p.CallerMinSectionSec > effMin {
		effMin = p.CallerMinSectionSec
	}

	// source 1: adaptive novelty peaks
	var candidates []float64
	for _, idx := range pickPeaks(novelty, p.Preset) {
		if idx < len(grid.Beats) {
			candidates = append(candidates, grid.Beats[idx])
		}
	}

	// source 2: baseline grid snapped to beats
	candidates = append(candidates, baselineGrid(p.WorkDurationSec, grid, p.Preset)...)

	candidates = append(candidates, 0, p.WorkDurationSec)

	protected := map[float64]bool{0: true, p.WorkDurationSec: true}
	if p.FadeStartSec > 0 && p.FadeStartSec < p.WorkDurationSec {
		candidates = append(candidates, p.FadeStartSec)
		protected[p.FadeStartSec] = true
	}

	bounds := dedupeSorted(candidates)
	bounds = mergeShort(bounds, effMin, protected)
	bounds = alignToBars(bounds, grid, p.WorkDurationSec, protected)
	bounds = mergeShort(bounds, effMin, protected)
	bounds = mapToOriginal(bounds, p, effMin)
	bounds = suppressEdges(bounds, p.TotalDurationSec)

	return bounds, effMin
}

// pickPeaks performs adaptive peak-picking on the novelty curve: a peak must
// be a local maximum, exceed the mean of its surrounding window by PeakDelta,
// and be at least MinLenBeats away from any stronger accepted peak.
func pickPeaks(novelty []float64, preset Preset) []int {
	n := len(novelty)
	if n == 0 {
		return nil
	}

	var cands []int
	for i := 0; i < n; i++ {
		if i > 0 && novelty[i] < novelty[i-1] {
			continue
		}
		if i+1 < n && novelty[i] <= novelty[i+1] {
			continue
		}

		lo := i - preset.PreAvg
		if lo < 0 {
			lo = 0
		}
		hi := i + preset.PostAvg + 1
		if hi > n {
			hi = n
		}
		var mean float64
		for _, v := range novelty[lo:hi] {
			mean += v
		}
		mean /= float64(hi - lo)

		if novelty[i] >= mean+preset.PeakDelta {
			cands = append(cands, i)
		}
	}

	// strongest first, then greedily enforce the minimum separation
	sort.Slice(cands, func(a, b int) bool {
		if novelty[cands[a]] == novelty[cands[b]] {
			return cands[a] < cands[b]
		}
		return novelty[cands[a]] > novelty[cands[b]]
	})

	var picked []int
	for _, c := range cands {
		ok := true
		for _, p := range picked {
			if abs(c-p) < preset.MinLenBeats {
				ok = false
				break
			}
		}
		if ok {
			picked = append(picked, c)
		}
	}
	sort.Ints(picked)
	return picked
}

// baselineGrid generates a uniform boundary grid guaranteeing a floor of
// structural coverage, each point snapped to its nearest beat.
func baselineGrid(duration float64, grid beatgrid.Grid, preset Preset) []float64 {
	if duration <= 0 {
		return nil
	}
	target := int(math.Round(duration / baselineSectionSec))
	if target < preset.MinSections {
		target = preset.MinSections
	}
	if target > preset.MaxSections {
		target = preset.MaxSections
	}
	if target < 2 {
		return nil
	}

	out := make([]float64, 0, target-1)
	step := duration / float64(target)
	for i := 1; i < target; i++ {
		out = append(out, grid.NearestBeat(float64(i)*step))
	}
	return out
}

// mergeShort drops interior boundaries until no two neighbors are closer
// than effMin. Protected boundaries (track edges, fade start) survive; when
// both neighbors of a short gap are protected the gap is left alone.
func mergeShort(bounds []float64, effMin float64, protected map[float64]bool) []float64 {
	for {
		merged := false
		for i := 0; i+1 < len(bounds); i++ {
			if bounds[i+1]-bounds[i] >= effMin {
				continue
			}
			var drop int
			switch {
			case !protected[bounds[i+1]]:
				drop = i + 1
			case !protected[bounds[i]]:
				drop = i
			default:
				continue // both protected, e.g. a fade right before the end
			}
			bounds = append(bounds[:drop], bounds[drop+1:]...)
			merged = true
			break
		}
		if !merged {
			return bounds
		}
	}
}

// alignToBars snaps interior boundaries to the nearest bar line within
// tolerance. Snapping can create fresh short sections; the caller re-merges.
func alignToBars(bounds []float64, grid beatgrid.Grid, duration float64, protected map[float64]bool) []float64 {
	if len(grid.Bars) == 0 {
		return bounds
	}
	out := make([]float64, 0, len(bounds))
	for _, b := range bounds {
		if protected[b] {
			out = append(out, b)
			continue
		}
		if bar, ok := grid.NearestBar(b); ok && math.Abs(bar-b) <= barSnapToleranceSec && bar > 0 && bar < duration {
			out = append(out, bar)
			continue
		}
		out = append(out, b)
	}
	return dedupeSorted(out)
}

// mapToOriginal shifts work-time boundaries by the trim offset, clamps into
// [0, total] and pins the endpoints of the original timeline. The images of
// the work-time edges are dropped when trimming leaves them stranded within
// effMin of an endpoint, so trims never manufacture short edge sections.
func mapToOriginal(bounds []float64, p BoundaryParams, effMin float64) []float64 {
	total := p.TotalDurationSec
	out := make([]float64, 0, len(bounds)+2)
	out = append(out, 0, total)
	for _, b := range bounds {
		t := b + p.OffsetSec
		if t < 0 {
			t = 0
		}
		if t > total {
			t = total
		}
		if t < dedupeEpsSec || total-t < dedupeEpsSec {
			continue // coincides with a pinned endpoint
		}
		if b == 0 && t < effMin {
			continue
		}
		if b == p.WorkDurationSec && t < total && total-t < effMin {
			continue
		}
		out = append(out, t)
	}
	return dedupeSorted(out)
}

// suppressEdges removes sub-beat artifacts hugging the track edges: any
// boundary within edgeSuppressSec of 0 or the total duration, other than
// the endpoints themselves.
func suppressEdges(bounds []float64, total float64) []float64 {
	out := bounds[:0]
	for _, b := range bounds {
		if b != 0 && b != total && (b < edgeSuppressSec || b > total-edgeSuppressSec) {
			continue
		}
		out = append(out, b)
	}
	return out
}

func dedupeSorted(ts []float64) []float64 {
	if len(ts) == 0 {
		return ts
	}
	sorted := make([]float64, len(ts))
	copy(sorted, ts)
	sort.Float64s(sorted)

	out := sorted[:1]
	for _, t := range sorted[1:] {
		if t-out[len(out)-1] > dedupeEpsSec {
			out = append(out, t)
		}
	}
	return out
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
