package sectional

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/soundsmith/sectional/internal/audio"
	"github.com/soundsmith/sectional/internal/beatgrid"
	"github.com/soundsmith/sectional/internal/features"
	"github.com/soundsmith/sectional/internal/structure"
	"github.com/soundsmith/sectional/pkg/logger"
)

// DetectionMethod identifies the pipeline in result metadata.
const DetectionMethod = "hybrid-novelty-v1"

// tracks shorter than this bypass segmentation entirely
const shortTrackSec = 15.0

// sectionService is the default implementation of the Service interface.
type sectionService struct {
	storage Storage
	log     Logger
	config  *Config
	presets map[string]Preset
}

func NewService(opts ...Option) (Service, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger()
	}

	if err := validatePresets(cfg.Presets); err != nil {
		return nil, fmt.Errorf("invalid preset table: %w", err)
	}
	// private copy so later mutation of the caller's map cannot leak in
	presets := make(map[string]Preset, len(cfg.Presets))
	for k, v := range cfg.Presets {
		presets[k] = v
	}

	stor := cfg.Storage
	if stor == nil && cfg.DBPath != "" {
		var err error
		stor, err = NewSQLiteStorage(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage: %w", err)
		}
	}

	return &sectionService{
		storage: stor,
		log:     cfg.Logger,
		config:  cfg,
		presets: presets,
	}, nil
}

func (s *sectionService) Close() error {
	if s.storage != nil {
		return s.storage.Close()
	}
	return nil
}

// Analyze runs the segmentation pipeline. Degenerate inputs and internal
// pipeline failures are recovered into a minimal single-section result with
// the failure recorded in Meta.Error; the error return is reserved for
// unusable API calls.
func (s *sectionService) Analyze(ctx context.Context, input AnalysisInput) (*DetectionResult, error) {
	if input.SampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", input.SampleRate)
	}
	if len(input.Samples) == 0 {
		return nil, errors.New("no audio samples supplied")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	duration := float64(len(input.Samples)) / float64(input.SampleRate)
	preset, presetSource := resolvePreset(s.presets, input.Preset, input.Genre)
	if input.Preset != nil {
		if err := preset.Validate(); err != nil {
			return nil, fmt.Errorf("invalid preset override: %w", err)
		}
	}

	if duration < shortTrackSec {
		s.log.Debugf("track too short for segmentation (%.2fs), returning full-track section", duration)
		return s.minimalResult(duration, preset, presetSource, ""), nil
	}

	hash := ""
	if s.storage != nil && !input.WantDiagnostics {
		hash = contentHash(input, preset)
		if cached, err := s.storage.GetResult(hash); err != nil {
			s.log.Warnf("result cache lookup failed: %v", err)
		} else if cached != nil {
			s.log.Infof("result cache hit for %s", hash[:12])
			cached.Meta.CacheHit = true
			return cached, nil
		}
	}

	result, err := s.runPipeline(input, duration, preset, presetSource)
	if err != nil {
		// explicit recovery branch: callers always get a valid partition
		s.log.Errorf("segmentation pipeline failed, returning minimal result: %v", err)
		return s.minimalResult(duration, preset, presetSource, err.Error()), nil
	}

	if hash != "" && result.Meta.Error == "" {
		if err := s.storage.PutResult(hash, result); err != nil {
			s.log.Warnf("result cache store failed: %v", err)
		}
	}
	return result, nil
}

// runPipeline is the happy path: trim, beat grid, features, SSM/novelty,
// hybrid boundary detection, descriptors, labeling, assembly.
func (s *sectionService) runPipeline(input AnalysisInput, duration float64, preset Preset, presetSource string) (*DetectionResult, error) {
	sr := input.SampleRate

	// 1. Trim analysis-only silence, keeping the offset for mapping back.
	trim := audio.TrimSilence(input.Samples, sr)
	work := trim.Samples
	offset := trim.OffsetSec
	workDur := float64(len(work)) / float64(sr)

	// 2. Beat grid from external beats or the fallback estimator.
	grid := beatgrid.Build(
		shiftToWork(input.Beats, offset, workDur),
		shiftToWork(input.Bars, offset, workDur),
		work, sr,
	)
	s.log.Debugf("beat grid: %d beats, %.1f BPM (synthetic=%v estimated=%v)",
		len(grid.Beats), grid.Tempo, grid.Synthetic, grid.Estimated)

	// 3. Loudness envelope: supplied or computed.
	workEnv, envHopSec := s.workEnvelope(input, work, sr, offset, workDur)

	// 4. Beat-synchronous fused feature matrix.
	chroma := sliceRows(input.Chroma, input.ChromaHopSec, offset, workDur)
	feats := features.BuildBeatSync(work, sr, grid.Beats, chroma, input.ChromaHopSec)
	if len(feats) != len(grid.Beats) {
		return nil, fmt.Errorf("feature matrix rows (%d) != beat count (%d)", len(feats), len(grid.Beats))
	}

	// 5. Self-similarity, novelty and boundary prominence.
	ssm := structure.SelfSimilarity(feats)
	novelty := structure.FooteNovelty(ssm, preset.NoveltyKernelBeats)
	promWindow := preset.PreAvg
	if preset.PostAvg > promWindow {
		promWindow = preset.PostAvg
	}
	prominence := structure.Prominence(novelty, promWindow)

	// 6. Fade-out onset, injected as a protected boundary when present.
	fadeStart := -1.0
	if t, ok := audio.FindFadeOutStart(workEnv, envHopSec); ok {
		fadeStart = t
		s.log.Debugf("fade-out onset detected at %.2fs (work time)", t)
	}

	// 7. Hybrid boundary detection.
	bounds, effMin := structure.DetectBoundaries(novelty, grid, structure.BoundaryParams{
		Preset:              preset,
		CallerMinSectionSec: input.MinSectionSec,
		OffsetSec:           offset,
		WorkDurationSec:     workDur,
		TotalDurationSec:    duration,
		FadeStartSec:        fadeStart,
	})
	if len(bounds) < 2 || bounds[0] != 0 || bounds[len(bounds)-1] != duration {
		return nil, fmt.Errorf("boundary detection produced an invalid partition (%d entries)", len(bounds))
	}

	// 8. Section descriptors.
	sections, discrim := structure.DescribeSections(structure.DescribeInput{
		Boundaries: bounds,
		OffsetSec:  offset,
		Features:   feats,
		SSM:        ssm,
		Beats:      grid.Beats,
		Prominence: prominence,
		Envelope:   workEnv,
		EnvHopSec:  envHopSec,
		Vocals:     normalizeVocals(input.VocalSegments),
		Chords:     normalizeChords(input.Chords),
	})

	// 9. Contextual labeling.
	structure.LabelSections(sections, structure.LabelEvents{
		Builds: normalizeEvents(input.Builds),
		Drops:  normalizeEvents(input.Drops),
	})

	// 10. Assemble the result.
	result := &DetectionResult{
		Sections:         toPublicSections(sections),
		BoundaryTimesSec: bounds,
		Meta: Meta{
			Method:                 DetectionMethod,
			RunID:                  uuid.NewString(),
			Preset:                 preset,
			PresetSource:           presetSource,
			TempoBPM:               grid.Tempo,
			BeatCount:              len(grid.Beats),
			BeatSource:             beatSource(grid),
			TrimApplied:            trim.Applied,
			TrimOffsetSec:          offset,
			DurationSec:            duration,
			EffectiveMinSectionSec: effMin,
			Discrimination:         discrim,
		},
	}
	if input.WantDiagnostics {
		result.Diagnostics = &Diagnostics{
			BeatsSec:   grid.Beats,
			SSM:        ssm,
			Novelty:    novelty,
			Prominence: prominence,
		}
	}

	s.log.Infof("segmented %.1fs of audio into %d sections (%s preset, %.1f BPM)",
		duration, len(result.Sections), preset.Genre, grid.Tempo)
	return result, nil
}

// AnalyzeFile loads an audio file and analyzes it. Non-WAV input is first
// converted to mono PCM WAV through ffmpeg.
func (s *sectionService) AnalyzeFile(ctx context.Context, path string, opts FileOptions) (*DetectionResult, error) {
	wavPath := path
	if !strings.EqualFold(filepath.Ext(path), ".wav") {
		converted, err := audio.ConvertToMonoWAV(ctx, path, s.config.TempDir, audio.ConvertConfig{
			SampleRate: s.config.SampleRate,
		})
		if err != nil {
			return nil, fmt.Errorf("audio conversion failed: %w", err)
		}
		wavPath = converted
	}

	samples, sr, err := audio.ReadWAVAsFloat64(wavPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read WAV file: %w", err)
	}

	return s.Analyze(ctx, AnalysisInput{
		Samples:         samples,
		SampleRate:      sr,
		Genre:           opts.Genre,
		MinSectionSec:   opts.MinSectionSec,
		WantDiagnostics: opts.WantDiagnostics,
	})
}

// minimalResult builds the fallback single-section result used for very
// short tracks and for pipeline failure recovery.
func (s *sectionService) minimalResult(duration float64, preset Preset, presetSource, errMsg string) *DetectionResult {
	section := structure.Section{
		Start:           0,
		End:             duration,
		Label:           structure.LabelFull,
		LabelConfidence: 0.5,
	}
	pub := toPublicSections([]structure.Section{section})
	return &DetectionResult{
		Sections:         pub,
		BoundaryTimesSec: []float64{0, duration},
		Meta: Meta{
			Method:       DetectionMethod,
			RunID:        uuid.NewString(),
			Preset:       preset,
			PresetSource: presetSource,
			DurationSec:  duration,
			Error:        errMsg,
		},
	}
}

// workEnvelope returns the loudness envelope on the work timeline, from the
// caller-supplied envelope when present or computed from the raw audio.
func (s *sectionService) workEnvelope(input AnalysisInput, work []float64, sr int, offset, workDur float64) ([]float64, float64) {
	if len(input.RMSEnvelope) > 0 && input.RMSHopSec > 0 {
		env := sliceByTime(input.RMSEnvelope, input.RMSHopSec, offset, workDur)
		if len(env) > 0 {
			return env, input.RMSHopSec
		}
	}
	return audio.RMSEnvelope(work, audio.EnvelopeHop), float64(audio.EnvelopeHop) / float64(sr)
}

func shiftToWork(ts []float64, offset, workDur float64) []float64 {
	if len(ts) == 0 {
		return nil
	}
	out := make([]float64, 0, len(ts))
	for _, t := range ts {
		w := t - offset
		if w >= 0 && w <= workDur {
			out = append(out, w)
		}
	}
	return out
}

func sliceByTime(xs []float64, hopSec, offset, workDur float64) []float64 {
	lo := int(offset / hopSec)
	hi := int(math.Ceil((offset + workDur) / hopSec))
	if lo < 0 {
		lo = 0
	}
	if hi > len(xs) {
		hi = len(xs)
	}
	if lo >= hi {
		return nil
	}
	return xs[lo:hi]
}

func sliceRows(rows [][]float64, hopSec, offset, workDur float64) [][]float64 {
	if len(rows) == 0 || hopSec <= 0 {
		return nil
	}
	lo := int(offset / hopSec)
	hi := int(math.Ceil((offset + workDur) / hopSec))
	if lo < 0 {
		lo = 0
	}
	if hi > len(rows) {
		hi = len(rows)
	}
	if lo >= hi {
		return nil
	}
	return rows[lo:hi]
}

func beatSource(grid beatgrid.Grid) string {
	switch {
	case grid.Synthetic:
		return "synthetic"
	case grid.Estimated:
		return "estimated"
	default:
		return "external"
	}
}

// contentHash fingerprints everything a run consumes: the audio, the caller
// knobs, the full resolved preset and all collaborator detections. Any input
// that can change the output keys the cache, so it never serves a result
// computed under different knobs.
func contentHash(input AnalysisInput, preset Preset) string {
	h := sha256.New()
	var buf [8]byte

	u64 := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		h.Write(buf[:])
	}
	f64 := func(v float64) { u64(math.Float64bits(v)) }
	// length-prefixed so adjacent arrays cannot alias each other
	f64s := func(xs []float64) {
		u64(uint64(len(xs)))
		for _, v := range xs {
			f64(v)
		}
	}

	u64(uint64(input.SampleRate))
	f64(input.MinSectionSec)

	// the whole preset, not just its name: an override may reuse a genre
	// label while tuning every knob differently
	u64(uint64(len(preset.Genre)))
	h.Write([]byte(preset.Genre))
	u64(uint64(preset.MinSections))
	u64(uint64(preset.MaxSections))
	u64(uint64(preset.MinLenBeats))
	u64(uint64(preset.NoveltyKernelBeats))
	f64(preset.PeakDelta)
	u64(uint64(preset.PreAvg))
	u64(uint64(preset.PostAvg))

	f64s(input.Beats)
	f64s(input.Bars)
	f64s(input.RMSEnvelope)
	f64(input.RMSHopSec)
	u64(uint64(len(input.Chroma)))
	for _, row := range input.Chroma {
		f64s(row)
	}
	f64(input.ChromaHopSec)

	events := func(evs []Event) {
		u64(uint64(len(evs)))
		for _, e := range evs {
			f64(e.TimeSec)
			f64(e.StartSec)
			f64(e.EndSec)
			f64(e.Strength)
		}
	}
	events(input.Builds)
	events(input.Drops)

	u64(uint64(len(input.VocalSegments)))
	for _, v := range input.VocalSegments {
		f64(v.StartSec)
		f64(v.EndSec)
	}
	u64(uint64(len(input.Chords)))
	for _, c := range input.Chords {
		f64(c.TimeSec)
		u64(uint64(len(c.Chord)))
		h.Write([]byte(c.Chord))
	}

	f64s(input.Samples)
	return hex.EncodeToString(h.Sum(nil))
}
