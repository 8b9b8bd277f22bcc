package sectional

import "testing"

func TestDefaultPresetsAllValid(t *testing.T) {
	presets := DefaultPresets()
	if err := validatePresets(presets); err != nil {
		t.Fatalf("built-in preset table invalid: %v", err)
	}
	for key, p := range presets {
		if p.Genre != key {
			t.Errorf("preset %q carries genre %q; keys and genres must agree", key, p.Genre)
		}
	}
}

func TestResolvePreset(t *testing.T) {
	presets := DefaultPresets()

	p, src := resolvePreset(presets, nil, "")
	if src != "default" || p.Genre != "default" {
		t.Errorf("empty genre resolved to %q/%q", src, p.Genre)
	}

	p, src = resolvePreset(presets, nil, "Techno")
	if src != "genre" || p.Genre != "techno" {
		t.Errorf("case-insensitive lookup gave %q/%q", src, p.Genre)
	}

	p, src = resolvePreset(presets, nil, "shoegaze")
	if src != "default" {
		t.Errorf("unknown genre resolved to %q", src)
	}

	override := presets["pop"]
	override.MinLenBeats = 24
	p, src = resolvePreset(presets, &override, "edm")
	if src != "override" || p.MinLenBeats != 24 {
		t.Errorf("override lost: %q/%d", src, p.MinLenBeats)
	}
}

func TestNormalizeEvents(t *testing.T) {
	events := normalizeEvents([]Event{
		{StartSec: 10, EndSec: 20},   // span
		{TimeSec: 35},                // instant
		{StartSec: 42},               // start-only instant
		{},                           // empty, dropped
		{StartSec: -5, EndSec: -1},   // negative, dropped
		{StartSec: 50, EndSec: 50.0}, // zero-length span, kept as an instant
	})

	if len(events) != 4 {
		t.Fatalf("normalized %d events, expected 4: %+v", len(events), events)
	}
	if events[0].Span.Duration() != 10 {
		t.Errorf("span event duration = %f, expected 10", events[0].Span.Duration())
	}
	if events[1].Span.Start != 35 || events[1].Span.Duration() != 0 {
		t.Errorf("instant event mangled: %+v", events[1])
	}
	if events[2].Span.Start != 42 {
		t.Errorf("start-only event mangled: %+v", events[2])
	}
	if events[3].Span.Start != 50 {
		t.Errorf("start-only fallback mangled: %+v", events[3])
	}
}

func TestNormalizeVocalsAndChords(t *testing.T) {
	vocals := normalizeVocals([]VocalSegment{
		{StartSec: 1, EndSec: 5},
		{StartSec: 8, EndSec: 8}, // empty
		{StartSec: -2, EndSec: 3},
	})
	if len(vocals) != 1 || vocals[0].Start != 1 {
		t.Errorf("normalized vocals = %+v, expected the single [1,5] span", vocals)
	}

	chords := normalizeChords([]Chord{
		{TimeSec: 12, Chord: "G"},
		{TimeSec: 4, Chord: "C"},
		{TimeSec: 8, Chord: ""}, // dropped
	})
	if len(chords) != 2 {
		t.Fatalf("normalized %d chords, expected 2", len(chords))
	}
	if chords[0].Time != 4 || chords[1].Time != 12 {
		t.Errorf("chords not sorted by time: %+v", chords)
	}
}
