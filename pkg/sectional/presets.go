package sectional

import (
	"fmt"
	"strings"

	"github.com/soundsmith/sectional/internal/structure"
)

// Preset is the tuning bundle resolved per run; see DefaultPresets for the
// built-in table. Custom presets must pass Validate.
type Preset = structure.Preset

const defaultPresetKey = "default"

// DefaultPresets returns the built-in preset table keyed by genre. The table
// is a plain value: callers may copy and modify it before handing it to
// NewService, and the service never mutates it.
func DefaultPresets() map[string]Preset {
	return map[string]Preset{
		defaultPresetKey: {
			Genre: defaultPresetKey, MinSections: 3, MaxSections: 12,
			MinLenBeats: 16, NoveltyKernelBeats: 16,
			PeakDelta: 0.030, PreAvg: 8, PostAvg: 8,
		},
		"edm": {
			Genre: "edm", MinSections: 4, MaxSections: 16,
			MinLenBeats: 16, NoveltyKernelBeats: 8,
			PeakDelta: 0.020, PreAvg: 6, PostAvg: 6,
		},
		"house": {
			Genre: "house", MinSections: 4, MaxSections: 14,
			MinLenBeats: 16, NoveltyKernelBeats: 8,
			PeakDelta: 0.022, PreAvg: 6, PostAvg: 6,
		},
		"techno": {
			Genre: "techno", MinSections: 3, MaxSections: 12,
			MinLenBeats: 32, NoveltyKernelBeats: 12,
			PeakDelta: 0.026, PreAvg: 8, PostAvg: 8,
		},
		"pop": {
			Genre: "pop", MinSections: 4, MaxSections: 12,
			MinLenBeats: 12, NoveltyKernelBeats: 12,
			PeakDelta: 0.028, PreAvg: 8, PostAvg: 8,
		},
		"rock": {
			Genre: "rock", MinSections: 4, MaxSections: 12,
			MinLenBeats: 12, NoveltyKernelBeats: 12,
			PeakDelta: 0.028, PreAvg: 8, PostAvg: 8,
		},
		"hiphop": {
			Genre: "hiphop", MinSections: 3, MaxSections: 10,
			MinLenBeats: 16, NoveltyKernelBeats: 16,
			PeakDelta: 0.032, PreAvg: 8, PostAvg: 8,
		},
		"ambient": {
			Genre: "ambient", MinSections: 2, MaxSections: 6,
			MinLenBeats: 32, NoveltyKernelBeats: 32,
			PeakDelta: 0.040, PreAvg: 12, PostAvg: 12,
		},
	}
}

// resolvePreset picks the preset for a run: explicit override first, then
// genre lookup, then the default entry. It reports where the preset came
// from for the provenance metadata.
func resolvePreset(presets map[string]Preset, override *Preset, genre string) (Preset, string) {
	if override != nil {
		return *override, "override"
	}
	if genre != "" {
		if p, ok := presets[strings.ToLower(strings.TrimSpace(genre))]; ok {
			return p, "genre"
		}
	}
	return presets[defaultPresetKey], "default"
}

// validatePresets checks the whole table up front so bad tuning fails at
// construction, never mid-detection.
func validatePresets(presets map[string]Preset) error {
	if _, ok := presets[defaultPresetKey]; !ok {
		return fmt.Errorf("preset table has no %q entry", defaultPresetKey)
	}
	for key, p := range presets {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("preset table entry %q: %w", key, err)
		}
	}
	return nil
}
