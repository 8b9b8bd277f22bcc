package sectional

import "context"

// Service is the public segmentation engine surface.
type Service interface {
	// Analyze runs the full segmentation pipeline on in-memory audio.
	// Degenerate inputs and internal failures come back as a structurally
	// valid minimal result, never as an error; the error return covers
	// invalid API usage only (no audio, bad sample rate).
	Analyze(ctx context.Context, input AnalysisInput) (*DetectionResult, error)

	// AnalyzeFile loads an audio file (converting to mono WAV via ffmpeg
	// when needed) and analyzes it.
	AnalyzeFile(ctx context.Context, path string, opts FileOptions) (*DetectionResult, error)

	Close() error
}

// FileOptions mirrors the optional AnalysisInput knobs for file analysis.
type FileOptions struct {
	Genre           string
	MinSectionSec   float64
	WantDiagnostics bool
}

// Storage caches detection results keyed by audio content hash.
type Storage interface {
	GetResult(contentHash string) (*DetectionResult, error) // (nil, nil) on miss
	PutResult(contentHash string, result *DetectionResult) error
	Close() error
}

// Logger is the narrow logging surface the engine writes to.
type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Debugf(format string, args ...any)
}
