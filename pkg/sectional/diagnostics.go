package sectional

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/soundsmith/sectional/internal/diag"
	"github.com/soundsmith/sectional/pkg/utils"
)

// RenderDiagnostics writes the result's diagnostic arrays as PNGs into dir
// (ssm.png, novelty.png, and spectrogram.png when raw samples are supplied).
// The result must have been produced with WantDiagnostics set.
func RenderDiagnostics(result *DetectionResult, samples []float64, sampleRate int, dir string) error {
	if result == nil || result.Diagnostics == nil {
		return errors.New("result carries no diagnostics; analyze with WantDiagnostics")
	}
	if err := utils.MakeDir(dir); err != nil {
		return fmt.Errorf("creating diagnostics dir: %w", err)
	}

	if err := diag.RenderSSM(result.Diagnostics.SSM, filepath.Join(dir, "ssm.png")); err != nil {
		return fmt.Errorf("rendering SSM: %w", err)
	}
	if err := diag.RenderNovelty(result.Diagnostics.Novelty, filepath.Join(dir, "novelty.png")); err != nil {
		return fmt.Errorf("rendering novelty curve: %w", err)
	}
	if len(samples) > 0 && sampleRate > 0 {
		if err := diag.RenderSpectrogram(samples, sampleRate, filepath.Join(dir, "spectrogram.png")); err != nil {
			return fmt.Errorf("rendering spectrogram: %w", err)
		}
	}
	return nil
}
