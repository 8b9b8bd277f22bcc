package structure

// Section labels. Best-effort heuristics; the engine never claims ground truth.
const (
	LabelFull   = "full"
	LabelIntro  = "intro"
	LabelOutro  = "outro"
	LabelVerse  = "verse"
	LabelChorus = "chorus"
	LabelDrop   = "drop"
	LabelBuild  = "build"
	LabelBridge = "bridge"
	LabelBreak  = "break"
)

// base confidences per label before scaling by the section's own confidence
var labelBaseConfidence = map[string]float64{
	LabelFull:   1.0,
	LabelIntro:  0.70,
	LabelOutro:  0.70,
	LabelVerse:  0.60,
	LabelChorus: 0.75,
	LabelDrop:   0.85,
	LabelBuild:  0.70,
	LabelBridge: 0.50,
	LabelBreak:  0.55,
}

// LabelEvents carries the auxiliary detections the labeler consults.
type LabelEvents struct {
	Builds []EnergyEvent
	Drops  []EnergyEvent
}

// LabelSections assigns a semantic label and label confidence to each
// section in place, using relative position, energy rank, repetition and
// overlap with build/drop events. Assignment walks sections in index order,
// so ties resolve deterministically toward the earlier section.
func LabelSections(sections []Section, events LabelEvents) {
	n := len(sections)
	if n == 0 {
		return
	}
	if n == 1 {
		apply(&sections[0], LabelFull)
		return
	}

	energies := make([]float64, n)
	for i, s := range sections {
		energies[i] = s.Energy
	}

	// index of the loudest non-edge section, earliest wins ties
	peakIdx := -1
	for i := 1; i < n-1; i++ {
		if peakIdx < 0 || energies[i] > energies[peakIdx] {
			peakIdx = i
		}
	}

	for i := range sections {
		s := &sections[i]
		span := TimeSpan{Start: s.Start, End: s.End}

		dropHit := overlapsEvent(span, events.Drops)
		buildHit := overlapsEvent(span, events.Builds)
		postBuildJump := i > 0 && overlapsEvent(TimeSpan{Start: sections[i-1].Start, End: sections[i-1].End}, events.Builds) &&
			s.Energy > sections[i-1].Energy+0.15

		switch {
		case dropHit:
			apply(s, LabelDrop)
			if postBuildJump {
				// abrupt jump out of a build reinforces the drop call
				s.LabelConfidence = clamp01(s.LabelConfidence * 1.1)
			}
		case i == 0:
			apply(s, LabelIntro)
		case i == n-1:
			apply(s, LabelOutro)
		case buildHit:
			apply(s, LabelBuild)
		case i == peakIdx && postBuildJump:
			apply(s, LabelDrop)
		case i == peakIdx:
			apply(s, LabelChorus)
		case s.RepeatCount >= 2 && s.Energy >= 0.6:
			apply(s, LabelChorus)
		case s.RepeatCount >= 1 || s.VocalDensity >= 0.5:
			apply(s, LabelVerse)
		case s.Energy < 0.35:
			apply(s, LabelBreak)
		default:
			apply(s, LabelBridge)
		}
	}
}

func apply(s *Section, label string) {
	s.Label = label
	base := labelBaseConfidence[label]
	s.LabelConfidence = clamp01(base * (0.5 + 0.5*s.Confidence))
}

func overlapsEvent(span TimeSpan, events []EnergyEvent) bool {
	for _, e := range events {
		if span.Overlap(e.Span) > 0 {
			return true
		}
		// instant events carry a zero-length span
		if e.Span.Duration() == 0 && e.Span.Start >= span.Start && e.Span.Start < span.End {
			return true
		}
	}
	return false
}
