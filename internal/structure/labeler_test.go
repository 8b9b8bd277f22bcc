package structure

import "testing"

// sec builds a labeled-input section covering [start,end) with the given
// energy and full confidence, so label confidences are easy to predict.
func sec(start, end, energy float64) Section {
	return Section{Start: start, End: end, Energy: energy, Confidence: 1}
}

func TestLabelSectionsSingle(t *testing.T) {
	sections := []Section{sec(0, 20, 0.5)}
	LabelSections(sections, LabelEvents{})

	if sections[0].Label != LabelFull {
		t.Fatalf("single section label = %q, expected %q", sections[0].Label, LabelFull)
	}
	if sections[0].LabelConfidence != 1 {
		t.Errorf("full label at confidence 1 should score 1, got %f", sections[0].LabelConfidence)
	}
}

func TestLabelSectionsEdges(t *testing.T) {
	sections := []Section{
		sec(0, 20, 0.3),
		sec(20, 40, 0.9),
		sec(40, 60, 0.4),
	}
	LabelSections(sections, LabelEvents{})

	if sections[0].Label != LabelIntro {
		t.Errorf("first section label = %q, expected %q", sections[0].Label, LabelIntro)
	}
	if sections[2].Label != LabelOutro {
		t.Errorf("last section label = %q, expected %q", sections[2].Label, LabelOutro)
	}
	if sections[1].Label != LabelChorus {
		t.Errorf("energy peak label = %q, expected %q", sections[1].Label, LabelChorus)
	}
}

func TestLabelSectionsDropEvent(t *testing.T) {
	sections := []Section{
		sec(0, 30, 0.3),
		sec(30, 60, 0.5),
		sec(60, 90, 1.0),
		sec(90, 120, 0.4),
	}
	events := LabelEvents{
		Builds: []EnergyEvent{{Span: TimeSpan{Start: 40, End: 58}}},
		Drops:  []EnergyEvent{{Span: TimeSpan{Start: 60, End: 60}}}, // instant
	}
	LabelSections(sections, events)

	if sections[1].Label != LabelBuild {
		t.Errorf("section 1 label = %q, expected %q", sections[1].Label, LabelBuild)
	}
	if sections[2].Label != LabelDrop {
		t.Errorf("section 2 label = %q, expected %q", sections[2].Label, LabelDrop)
	}
	// a drop event overrides the positional intro/outro rules too
	sections2 := []Section{sec(0, 30, 1.0), sec(30, 60, 0.4)}
	LabelSections(sections2, LabelEvents{Drops: []EnergyEvent{{Span: TimeSpan{Start: 5, End: 10}}}})
	if sections2[0].Label != LabelDrop {
		t.Errorf("drop overlap should beat the intro rule, got %q", sections2[0].Label)
	}
}

func TestLabelSectionsPostBuildJump(t *testing.T) {
	// no explicit drop event: the energy peak right after a build still
	// reads as a drop
	sections := []Section{
		sec(0, 30, 0.3),
		sec(30, 60, 0.4),
		sec(60, 90, 1.0),
		sec(90, 120, 0.4),
	}
	events := LabelEvents{Builds: []EnergyEvent{{Span: TimeSpan{Start: 40, End: 58}}}}
	LabelSections(sections, events)

	if sections[2].Label != LabelDrop {
		t.Errorf("post-build energy peak label = %q, expected %q", sections[2].Label, LabelDrop)
	}
}

func TestLabelSectionsHeuristics(t *testing.T) {
	sections := []Section{
		sec(0, 30, 0.3),
		{Start: 30, End: 60, Energy: 0.7, RepeatCount: 2, Confidence: 1},  // repeated and loud
		{Start: 60, End: 90, Energy: 1.0, Confidence: 1},                  // peak
		{Start: 90, End: 120, Energy: 0.5, RepeatCount: 1, Confidence: 1}, // repeated
		{Start: 120, End: 150, Energy: 0.2, Confidence: 1},                // quiet
		{Start: 150, End: 180, Energy: 0.45, Confidence: 1},               // nothing special
		sec(180, 210, 0.3),
	}
	LabelSections(sections, LabelEvents{})

	want := []string{LabelIntro, LabelChorus, LabelChorus, LabelVerse, LabelBreak, LabelBridge, LabelOutro}
	for i, s := range sections {
		if s.Label != want[i] {
			t.Errorf("section %d label = %q, expected %q", i, s.Label, want[i])
		}
	}
}

func TestLabelSectionsVocalVerse(t *testing.T) {
	sections := []Section{
		sec(0, 30, 0.9),
		{Start: 30, End: 60, Energy: 0.5, VocalDensity: 0.8, Confidence: 1},
		sec(60, 90, 1.0),
		sec(90, 120, 0.3),
	}
	LabelSections(sections, LabelEvents{})

	if sections[1].Label != LabelVerse {
		t.Errorf("vocal-dense section label = %q, expected %q", sections[1].Label, LabelVerse)
	}
}

func TestLabelConfidenceScaling(t *testing.T) {
	low := []Section{
		{Start: 0, End: 30, Energy: 0.3, Confidence: 0},
		{Start: 30, End: 60, Energy: 1.0, Confidence: 0},
		{Start: 60, End: 90, Energy: 0.3, Confidence: 0},
	}
	high := []Section{
		{Start: 0, End: 30, Energy: 0.3, Confidence: 1},
		{Start: 30, End: 60, Energy: 1.0, Confidence: 1},
		{Start: 60, End: 90, Energy: 0.3, Confidence: 1},
	}
	LabelSections(low, LabelEvents{})
	LabelSections(high, LabelEvents{})

	for i := range low {
		if low[i].Label != high[i].Label {
			t.Fatalf("section confidence must not change the label itself: %q vs %q", low[i].Label, high[i].Label)
		}
		if low[i].LabelConfidence >= high[i].LabelConfidence {
			t.Errorf("section %d: label confidence %f at zero section confidence should undercut %f at full",
				i, low[i].LabelConfidence, high[i].LabelConfidence)
		}
		base := labelBaseConfidence[low[i].Label]
		if low[i].LabelConfidence != base*0.5 {
			t.Errorf("section %d: zero-confidence scaling gave %f, expected %f", i, low[i].LabelConfidence, base*0.5)
		}
	}
}

func TestOverlapsEvent(t *testing.T) {
	span := TimeSpan{Start: 10, End: 20}

	if !overlapsEvent(span, []EnergyEvent{{Span: TimeSpan{Start: 15, End: 25}}}) {
		t.Error("overlapping span not detected")
	}
	if !overlapsEvent(span, []EnergyEvent{{Span: TimeSpan{Start: 12, End: 12}}}) {
		t.Error("instant event inside the span not detected")
	}
	if overlapsEvent(span, []EnergyEvent{{Span: TimeSpan{Start: 20, End: 20}}}) {
		t.Error("instant event at the exclusive end must not count")
	}
	if overlapsEvent(span, []EnergyEvent{{Span: TimeSpan{Start: 0, End: 10}}}) {
		t.Error("touching span must not count as overlap")
	}
}
