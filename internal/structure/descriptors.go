package structure

import (
	"math"
	"sort"
)

// Descriptor tunables
const (
	// confidence mix; boundary evidence and discrimination power dominate
	wBoundary = 0.35
	wDiscrim  = 0.30
	wRepeat   = 0.20
	wEnergy   = 0.15

	// harmonic complexity saturates at this many chord changes per second
	maxChordRatePerSec = 0.5
)

// DescribeInput bundles everything the descriptor engine consumes. Spans and
// boundaries are in original time; beats, envelope and prominence are in
// work time, related by OffsetSec.
type DescribeInput struct {
	Boundaries []float64 // ordered, len = sections+1, original time
	OffsetSec  float64

	Features   [][]float64 // one row per beat
	SSM        [][]float64 // beat-by-beat similarity
	Beats      []float64   // work time
	Prominence []float64   // per beat

	Envelope  []float64 // loudness envelope, work time
	EnvHopSec float64

	Vocals []TimeSpan   // original time
	Chords []ChordEvent // original time
}

// DescribeSections computes energy, repetition, similarity, confidence,
// vocal density and harmonic complexity for every interval between
// consecutive boundaries. It returns the sections plus the measured
// discrimination power (how separable the sections are), which the caller
// records and which already scales each section's confidence.
func DescribeSections(in DescribeInput) ([]Section, float64) {
	nSec := len(in.Boundaries) - 1
	if nSec < 1 {
		return nil, 0
	}

	sections := make([]Section, nSec)
	for i := 0; i < nSec; i++ {
		sections[i] = Section{Start: in.Boundaries[i], End: in.Boundaries[i+1]}
	}

	beatRanges := sectionBeatRanges(sections, in.Beats, in.OffsetSec)

	// raw per-section energy from the loudness envelope
	rawEnergy := make([]float64, nSec)
	for i, s := range sections {
		rawEnergy[i] = meanEnvelope(in.Envelope, in.EnvHopSec, s.Start-in.OffsetSec, s.End-in.OffsetSec)
	}
	maxE := maxOf(rawEnergy)
	for i := range sections {
		if maxE > 0 {
			sections[i].Energy = clamp01(rawEnergy[i] / maxE)
		}
	}

	// section-to-section similarity from feature centroids
	secSim := sectionSimilarity(in.Features, beatRanges)
	simRaw := make([]float64, nSec)
	repRaw := make([]float64, nSec)
	for i := 0; i < nSec; i++ {
		for j := 0; j < nSec; j++ {
			if j != i && secSim[i][j] > simRaw[i] {
				simRaw[i] = secSim[i][j]
			}
		}
		repRaw[i] = beatRepetition(in.SSM, beatRanges, i)
	}

	simNorm, _ := robustSigmoid(simRaw)
	repNorm, discrim := robustSigmoid(repRaw)

	cutoff := repeatCutoff(secSim)
	for i := 0; i < nSec; i++ {
		sections[i].Similarity = clamp01(simNorm[i])
		sections[i].Repetition = clamp01(repNorm[i])
		count := 0
		for j := 0; j < nSec; j++ {
			if j != i && secSim[i][j] >= cutoff {
				count++
			}
		}
		sections[i].RepeatCount = count
	}

	// boundary strength from the prominence curve
	promMax := maxOf(in.Prominence)
	energyRank := rankNormalized(rawEnergy)
	for i := range sections {
		bin, bout := boundaryStrengths(in, beatRanges[i], i == 0, i == nSec-1, promMax)
		sections[i].BoundaryIn = bin
		sections[i].BoundaryOut = bout

		evidence := boundaryEvidence(bin, bout, i == 0, i == nSec-1)
		conf := wBoundary*evidence + wDiscrim*discrim + wRepeat*sections[i].Repetition + wEnergy*energyRank[i]
		sections[i].Confidence = clamp01(conf)

		sections[i].VocalDensity = vocalDensity(sections[i], in.Vocals)
		if hc, ok := harmonicComplexity(sections[i], in.Chords); ok {
			sections[i].HarmonicComplexity = hc
			sections[i].HasHarmonic = true
		}
	}

	return sections, discrim
}

// sectionBeatRanges maps each section to its [lo, hi) range of beat indices.
// Every section gets at least one beat so centroids are always defined.
func sectionBeatRanges(sections []Section, beats []float64, offset float64) [][2]int {
	ranges := make([][2]int, len(sections))
	for i, s := range sections {
		start := s.Start - offset
		end := s.End - offset
		lo := sort.SearchFloat64s(beats, start)
		hi := sort.SearchFloat64s(beats, end)
		if lo >= len(beats) {
			lo = len(beats) - 1
		}
		if hi <= lo {
			hi = lo + 1
		}
		if hi > len(beats) {
			hi = len(beats)
		}
		ranges[i] = [2]int{lo, hi}
	}
	return ranges
}

func meanEnvelope(env []float64, hopSec, start, end float64) float64 {
	if len(env) == 0 || hopSec <= 0 || end <= start {
		return 0
	}
	lo := int(start / hopSec)
	hi := int(end / hopSec)
	if lo < 0 {
		lo = 0
	}
	if hi <= lo {
		hi = lo + 1
	}
	if hi > len(env) {
		hi = len(env)
	}
	if lo >= len(env) {
		return 0
	}
	var sum float64
	for _, v := range env[lo:hi] {
		sum += v
	}
	return sum / float64(hi-lo)
}

// sectionSimilarity computes cosine similarity (mapped to [0,1]) between
// per-section feature centroids.
func sectionSimilarity(features [][]float64, ranges [][2]int) [][]float64 {
	n := len(ranges)
	centroids := make([][]float64, n)
	for i, r := range ranges {
		centroids[i] = centroid(features, r[0], r[1])
	}
	return SelfSimilarity(centroids)
}

func centroid(features [][]float64, lo, hi int) []float64 {
	if len(features) == 0 {
		return nil
	}
	cols := len(features[0])
	c := make([]float64, cols)
	if lo >= len(features) {
		return c
	}
	if hi > len(features) {
		hi = len(features)
	}
	for _, row := range features[lo:hi] {
		for k, v := range row {
			c[k] += v
		}
	}
	for k := range c {
		c[k] /= float64(hi - lo)
	}
	return c
}

// beatRepetition measures how strongly a section's beats recur elsewhere in
// the track: the mean, over the section's beats, of each beat's maximum
// similarity to any beat outside the section.
func beatRepetition(ssm [][]float64, ranges [][2]int, sec int) float64 {
	if len(ssm) == 0 {
		return 0
	}
	lo, hi := ranges[sec][0], ranges[sec][1]
	if hi > len(ssm) {
		hi = len(ssm)
	}
	var sum float64
	count := 0
	for b := lo; b < hi; b++ {
		best := 0.0
		for j := range ssm[b] {
			if j >= lo && j < hi {
				continue
			}
			if ssm[b][j] > best {
				best = ssm[b][j]
			}
		}
		sum += best
		count++
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// robustSigmoid maps raw scores into [0,1] through a logistic centered on
// the median and scaled by the MAD, and returns a discrimination power
// measuring how separable the values are. Flat inputs map to 0.5 with zero
// discrimination.
func robustSigmoid(raw []float64) ([]float64, float64) {
	n := len(raw)
	out := make([]float64, n)
	if n == 0 {
		return out, 0
	}

	med := median(raw)
	devs := make([]float64, n)
	for i, v := range raw {
		devs[i] = math.Abs(v - med)
	}
	mad := median(devs)

	if mad < 1e-9 {
		for i := range out {
			out[i] = 0.5
		}
		return out, 0
	}

	scale := 1.4826 * mad
	for i, v := range raw {
		out[i] = 1.0 / (1.0 + math.Exp(-(v-med)/scale))
	}

	// separability: spread of the raw scores relative to their center
	spread := 0.0
	for _, v := range raw {
		if d := math.Abs(v - med); d > spread {
			spread = d
		}
	}
	discrim := clamp01(spread / (scale * 3.0))
	return out, discrim
}

// repeatCutoff derives the similarity threshold above which two sections
// count as repeats of one another: the midpoint between the median and the
// maximum of the off-diagonal similarities.
func repeatCutoff(secSim [][]float64) float64 {
	var off []float64
	for i := range secSim {
		for j := range secSim[i] {
			if i != j {
				off = append(off, secSim[i][j])
			}
		}
	}
	if len(off) == 0 {
		return 1.1 // nothing can repeat
	}
	med := median(off)
	max := maxOf(off)
	cut := med + (max-med)*0.5
	if cut >= max {
		cut = max // degenerate flat case: everything at max counts
	}
	return cut
}

// boundaryStrengths reads the prominence curve at the section's first and
// last beat, normalized by the curve maximum. The track's absolute start
// and end carry no real boundary and report zero.
func boundaryStrengths(in DescribeInput, r [2]int, first, last bool, promMax float64) (float64, float64) {
	if promMax <= 0 || len(in.Prominence) == 0 {
		return 0, 0
	}
	bin, bout := 0.0, 0.0
	if !first && r[0] < len(in.Prominence) {
		bin = in.Prominence[r[0]] / promMax
	}
	if !last {
		idx := r[1]
		if idx >= len(in.Prominence) {
			idx = len(in.Prominence) - 1
		}
		bout = in.Prominence[idx] / promMax
	}
	return bin, bout
}

// boundaryEvidence averages the section's real boundary strengths, skipping
// the synthetic ones at the track edges.
func boundaryEvidence(bin, bout float64, first, last bool) float64 {
	switch {
	case first && last:
		return 0
	case first:
		return bout
	case last:
		return bin
	default:
		return (bin + bout) / 2
	}
}

// vocalDensity is the fraction of the section covered by vocal activity.
func vocalDensity(s Section, vocals []TimeSpan) float64 {
	dur := s.Duration()
	if dur <= 0 || len(vocals) == 0 {
		return 0
	}
	span := TimeSpan{Start: s.Start, End: s.End}
	var covered float64
	for _, v := range vocals {
		covered += span.Overlap(v)
	}
	return clamp01(covered / dur)
}

// harmonicComplexity is the section's chord-change rate normalized into
// [0,1]. Returns false when no chord data covers the analysis.
func harmonicComplexity(s Section, chords []ChordEvent) (float64, bool) {
	if len(chords) == 0 {
		return 0, false
	}
	dur := s.Duration()
	if dur <= 0 {
		return 0, true
	}

	changes := 0
	prev := ""
	for _, c := range chords {
		if c.Time < s.Start || c.Time >= s.End {
			if c.Time < s.Start && c.Chord != "N" {
				prev = c.Chord // track the chord active when the section begins
			}
			continue
		}
		if c.Chord != "N" && c.Chord != prev {
			changes++
		}
		prev = c.Chord
	}

	rate := float64(changes) / dur
	return clamp01(rate / maxChordRatePerSec), true
}

func median(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := make([]float64, len(xs))
	copy(sorted, xs)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func maxOf(xs []float64) float64 {
	var m float64
	for _, x := range xs {
		if x > m {
			m = x
		}
	}
	return m
}

// rankNormalized returns each value's rank scaled into [0,1], with the
// largest value at 1. Ties share the lower rank so output is deterministic.
func rankNormalized(xs []float64) []float64 {
	n := len(xs)
	out := make([]float64, n)
	if n < 2 {
		for i := range out {
			out[i] = 1
		}
		return out
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		if xs[idx[a]] == xs[idx[b]] {
			return idx[a] < idx[b]
		}
		return xs[idx[a]] < xs[idx[b]]
	})
	for rank, i := range idx {
		out[i] = float64(rank) / float64(n-1)
	}
	return out
}
