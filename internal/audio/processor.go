package audio

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/soundsmith/sectional/pkg/utils"
)

// Conversion tunables
const (
	// DefaultAnalysisRate is the sample rate the analysis runs at; the
	// feature windows are sized for it.
	DefaultAnalysisRate = 22050
	// full tracks through ffmpeg rarely take more than a few seconds,
	// but fetched files can be long mixes
	convertTimeout = 2 * time.Minute
)

// ConvertConfig controls the decode step that feeds the analysis.
type ConvertConfig struct {
	SampleRate int // target rate; 0 means DefaultAnalysisRate
}

// ConvertToMonoWAV decodes any ffmpeg-readable input into the mono PCM WAV
// the analysis consumes, writing it under outputDir. The output name carries
// the target rate so conversions at different rates never clobber each other.
func ConvertToMonoWAV(ctx context.Context, inputPath, outputDir string, cfg ConvertConfig) (string, error) {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = DefaultAnalysisRate
	}
	if _, err := os.Stat(inputPath); err != nil {
		return "", fmt.Errorf("input audio: %w", err)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, convertTimeout)
		defer cancel()
	}

	if err := utils.MakeDir(outputDir); err != nil {
		return "", err
	}

	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	outputPath := filepath.Join(outputDir, fmt.Sprintf("%s.%d.mono.wav", base, cfg.SampleRate))
	tmpPath := outputPath + ".tmp"
	defer os.Remove(tmpPath)

	cmd := exec.CommandContext(ctx, "ffmpeg", convertArgs(inputPath, tmpPath, cfg.SampleRate)...)
	if out, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("ffmpeg failed: %v (%s)", err, out)
	}

	if err := utils.MoveFile(tmpPath, outputPath); err != nil {
		return "", err
	}
	return outputPath, nil
}

// convertArgs builds the ffmpeg invocation: first audio stream only (fetched
// files often carry cover art as a video stream), metadata stripped, mono
// 16-bit PCM at the analysis rate. The explicit -f wav matters because the
// temp file has no .wav extension.
func convertArgs(inputPath, tmpPath string, rate int) []string {
	return []string{
		"-y",
		"-v", "error",
		"-i", inputPath,
		"-map", "0:a:0",
		"-vn", "-sn", "-dn",
		"-map_metadata", "-1",
		"-ac", "1",
		"-ar", strconv.Itoa(rate),
		"-c:a", "pcm_s16le",
		"-f", "wav",
		tmpPath,
	}
}
