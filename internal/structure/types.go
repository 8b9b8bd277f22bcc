package structure

import "fmt"

// Preset is the tuning bundle for one genre family. It is read-only for the
// duration of a detection run.
type Preset struct {
	Genre              string  `json:"genre"`
	MinSections        int     `json:"min_sections"`
	MaxSections        int     `json:"max_sections"`
	MinLenBeats        int     `json:"min_len_beats"`
	NoveltyKernelBeats int     `json:"novelty_kernel_beats"`
	PeakDelta          float64 `json:"peak_delta"`
	PreAvg             int     `json:"pre_avg"`
	PostAvg            int     `json:"post_avg"`
}

// Validate rejects contradictory tuning parameters. Invalid presets are a
// programmer error and must fail at construction time, not mid-detection.
func (p Preset) Validate() error {
	if p.MinSections < 1 {
		return fmt.Errorf("preset %q: min_sections must be >= 1, got %d", p.Genre, p.MinSections)
	}
	if p.MaxSections < p.MinSections {
		return fmt.Errorf("preset %q: max_sections %d < min_sections %d", p.Genre, p.MaxSections, p.MinSections)
	}
	if p.MinLenBeats < 1 {
		return fmt.Errorf("preset %q: min_len_beats must be >= 1, got %d", p.Genre, p.MinLenBeats)
	}
	if p.NoveltyKernelBeats < 2 {
		return fmt.Errorf("preset %q: novelty_kernel_beats must be >= 2, got %d", p.Genre, p.NoveltyKernelBeats)
	}
	if p.PeakDelta < 0 {
		return fmt.Errorf("preset %q: peak_delta must be >= 0, got %g", p.Genre, p.PeakDelta)
	}
	if p.PreAvg < 1 || p.PostAvg < 1 {
		return fmt.Errorf("preset %q: pre_avg/post_avg must be >= 1", p.Genre)
	}
	return nil
}

// TimeSpan is a half-open [Start, End) interval in seconds.
type TimeSpan struct {
	Start float64
	End   float64
}

func (s TimeSpan) Duration() float64 {
	if s.End <= s.Start {
		return 0
	}
	return s.End - s.Start
}

// Overlap returns the length of the intersection with other, in seconds.
func (s TimeSpan) Overlap(other TimeSpan) float64 {
	lo := s.Start
	if other.Start > lo {
		lo = other.Start
	}
	hi := s.End
	if other.End < hi {
		hi = other.End
	}
	if hi <= lo {
		return 0
	}
	return hi - lo
}

// EnergyEvent is a build or drop detection from an upstream detector,
// normalized to a span (instant events get a zero-length span at Time).
type EnergyEvent struct {
	Span     TimeSpan
	Strength float64
}

// ChordEvent marks a chord change at a point in time. Chord "N" means
// no chord (silence or noise) and does not count as harmonic activity.
type ChordEvent struct {
	Time  float64
	Chord string
}

// Section is one labeled region of the track. All scalar scores live in
// their declared ranges by the time DescribeSections/LabelSections return.
type Section struct {
	Start              float64
	End                float64
	Energy             float64 // [0,1]
	Repetition         float64 // [0,1]
	Confidence         float64 // [0,1]
	Label              string
	LabelConfidence    float64 // [0,1]
	BoundaryIn         float64 // >= 0
	BoundaryOut        float64 // >= 0
	VocalDensity       float64 // [0,1]
	HarmonicComplexity float64 // [0,1], valid only when HasHarmonic
	HasHarmonic        bool
	Similarity         float64 // [0,1]
	RepeatCount        int     // >= 0
}

func (s Section) Duration() float64 {
	return s.End - s.Start
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
