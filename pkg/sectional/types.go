package sectional

import (
	"sort"

	"github.com/soundsmith/sectional/internal/structure"
)

// Event is a build or drop detection supplied by an upstream detector.
// Either TimeSec (instant) or StartSec/EndSec (span) must be set.
type Event struct {
	TimeSec  float64 `json:"time_s,omitempty"`
	StartSec float64 `json:"start_s,omitempty"`
	EndSec   float64 `json:"end_s,omitempty"`
	Strength float64 `json:"strength,omitempty"`
}

// VocalSegment is a region of detected vocal activity.
type VocalSegment struct {
	StartSec float64 `json:"start_s"`
	EndSec   float64 `json:"end_s"`
}

// Chord marks a chord symbol becoming active at a point in time. The
// symbol "N" means no chord.
type Chord struct {
	TimeSec float64 `json:"time_s"`
	Chord   string  `json:"chord"`
}

// AnalysisInput is everything the engine consumes for one detection run.
// Only Samples and SampleRate are required; all collaborator detections are
// optional and the engine degrades gracefully without them.
type AnalysisInput struct {
	Samples    []float64
	SampleRate int

	// external beat/downbeat tracking, seconds on the original timeline
	Beats []float64
	Bars  []float64

	// pre-computed loudness envelope; when absent the engine computes its own
	RMSEnvelope []float64
	RMSHopSec   float64

	// optional harmonic feature matrix appended to the fused features
	Chroma       [][]float64
	ChromaHopSec float64

	Builds        []Event
	Drops         []Event
	VocalSegments []VocalSegment
	Chords        []Chord

	// Genre selects a tuning preset; empty selects the default preset.
	Genre string
	// Preset overrides genre lookup entirely when non-nil.
	Preset *Preset

	// caller floor for the minimum section length, seconds
	MinSectionSec float64

	// Diagnostics arrays are O(beats^2); only computed when requested.
	WantDiagnostics bool
}

// Section is one labeled region of the analyzed track.
type Section struct {
	ID                  int      `json:"id"`
	StartSec            float64  `json:"start_s"`
	EndSec              float64  `json:"end_s"`
	DurationSec         float64  `json:"duration_s"`
	Energy              float64  `json:"energy"`
	Repetition          float64  `json:"repetition"`
	Confidence          float64  `json:"confidence"`
	Label               string   `json:"label"`
	LabelConfidence     float64  `json:"label_confidence"`
	BoundaryStrengthIn  float64  `json:"boundary_strength_in"`
	BoundaryStrengthOut float64  `json:"boundary_strength_out"`
	VocalDensity        float64  `json:"vocal_density"`
	HarmonicComplexity  *float64 `json:"harmonic_complexity"` // null without chord data
	Similarity          float64  `json:"similarity"`
	RepeatCount         int      `json:"repeat_count"`
}

// Meta records provenance for one detection run.
type Meta struct {
	Method                 string  `json:"method"`
	RunID                  string  `json:"run_id"`
	Preset                 Preset  `json:"preset"`
	PresetSource           string  `json:"preset_source"` // "override", "genre" or "default"
	TempoBPM               float64 `json:"tempo_bpm"`
	BeatCount              int     `json:"beat_count"`
	BeatSource             string  `json:"beat_source"` // "external", "estimated" or "synthetic"
	TrimApplied            bool    `json:"trim_applied"`
	TrimOffsetSec          float64 `json:"trim_offset_s"`
	DurationSec            float64 `json:"duration_s"`
	EffectiveMinSectionSec float64 `json:"effective_min_section_s"`
	Discrimination         float64 `json:"discrimination"`
	CacheHit               bool    `json:"cache_hit,omitempty"`
	Error                  string  `json:"error,omitempty"`
}

// Diagnostics holds the heavy intermediate arrays, populated only on request.
type Diagnostics struct {
	BeatsSec   []float64   `json:"beats_s"`
	SSM        [][]float64 `json:"ssm"`
	Novelty    []float64   `json:"novelty"`
	Prominence []float64   `json:"prominence"`
}

// DetectionResult is the engine output. Sections and BoundaryTimesSec are
// always mutually consistent: the boundary list is sorted, starts at 0, ends
// at the original duration and has exactly len(Sections)+1 entries.
type DetectionResult struct {
	Sections         []Section    `json:"sections"`
	BoundaryTimesSec []float64    `json:"boundary_times_s"`
	Meta             Meta         `json:"meta"`
	Diagnostics      *Diagnostics `json:"diagnostics,omitempty"`
}

// normalizeEvents validates loose event payloads once at the boundary and
// converts them into the typed spans the core works with.
func normalizeEvents(events []Event) []structure.EnergyEvent {
	out := make([]structure.EnergyEvent, 0, len(events))
	for _, e := range events {
		var span structure.TimeSpan
		switch {
		case e.EndSec > e.StartSec:
			span = structure.TimeSpan{Start: e.StartSec, End: e.EndSec}
		case e.TimeSec > 0:
			span = structure.TimeSpan{Start: e.TimeSec, End: e.TimeSec}
		case e.StartSec > 0:
			span = structure.TimeSpan{Start: e.StartSec, End: e.StartSec}
		default:
			continue
		}
		if span.Start < 0 {
			continue
		}
		out = append(out, structure.EnergyEvent{Span: span, Strength: e.Strength})
	}
	return out
}

func normalizeVocals(segments []VocalSegment) []structure.TimeSpan {
	out := make([]structure.TimeSpan, 0, len(segments))
	for _, v := range segments {
		if v.EndSec <= v.StartSec || v.StartSec < 0 {
			continue
		}
		out = append(out, structure.TimeSpan{Start: v.StartSec, End: v.EndSec})
	}
	return out
}

func normalizeChords(chords []Chord) []structure.ChordEvent {
	out := make([]structure.ChordEvent, 0, len(chords))
	for _, c := range chords {
		if c.TimeSec < 0 || c.Chord == "" {
			continue
		}
		out = append(out, structure.ChordEvent{Time: c.TimeSec, Chord: c.Chord})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	return out
}

// toPublicSections converts core sections into serializable records with
// stable 1-based ids.
func toPublicSections(sections []structure.Section) []Section {
	out := make([]Section, len(sections))
	for i, s := range sections {
		pub := Section{
			ID:                  i + 1,
			StartSec:            s.Start,
			EndSec:              s.End,
			DurationSec:         s.End - s.Start,
			Energy:              s.Energy,
			Repetition:          s.Repetition,
			Confidence:          s.Confidence,
			Label:               s.Label,
			LabelConfidence:     s.LabelConfidence,
			BoundaryStrengthIn:  s.BoundaryIn,
			BoundaryStrengthOut: s.BoundaryOut,
			VocalDensity:        s.VocalDensity,
			Similarity:          s.Similarity,
			RepeatCount:         s.RepeatCount,
		}
		if s.HasHarmonic {
			hc := s.HarmonicComplexity
			pub.HarmonicComplexity = &hc
		}
		out[i] = pub
	}
	return out
}
