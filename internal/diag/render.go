// Package diag renders heavy analysis intermediates (SSM, novelty curve,
// spectrogram) to PNG for offline inspection. Nothing here runs unless
// diagnostics are explicitly requested.
package diag

import (
	"errors"
	"image"
	"image/color"
	"image/draw"

	"github.com/eligwz/spectrogram"
)

const noveltyStripHeight = 160

// RenderSSM writes the self-similarity matrix as a grayscale PNG, one pixel
// per beat pair, white = identical.
func RenderSSM(ssm [][]float64, path string) error {
	n := len(ssm)
	if n == 0 {
		return errors.New("empty similarity matrix")
	}

	img := spectrogram.NewImage128(image.Rect(0, 0, n, n))
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			v := ssm[y][x]
			if v < 0 {
				v = 0
			} else if v > 1 {
				v = 1
			}
			g := uint8(v * 255)
			img.Set(x, y, color.RGBA{R: g, G: g, B: g, A: 255})
		}
	}
	return spectrogram.SavePng(img, path)
}

// RenderNovelty writes the novelty curve as a bar strip, one column per beat.
func RenderNovelty(novelty []float64, path string) error {
	n := len(novelty)
	if n == 0 {
		return errors.New("empty novelty curve")
	}

	var peak float64
	for _, v := range novelty {
		if v > peak {
			peak = v
		}
	}

	img := spectrogram.NewImage128(image.Rect(0, 0, n, noveltyStripHeight))
	bg := spectrogram.ParseColor("000000")
	draw.Draw(img, img.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)

	bar := spectrogram.ParseColor("30b0ff")
	for x, v := range novelty {
		h := 0
		if peak > 0 {
			h = int(v / peak * float64(noveltyStripHeight-1))
		}
		for y := 0; y < h; y++ {
			img.Set(x, noveltyStripHeight-1-y, bar)
		}
	}
	return spectrogram.SavePng(img, path)
}

// RenderSpectrogram writes a magnitude spectrogram of the analyzed audio.
func RenderSpectrogram(samples []float64, sampleRate int, path string) error {
	if len(samples) == 0 || sampleRate <= 0 {
		return errors.New("no audio to render")
	}

	const (
		width  = 2048
		height = 512
	)
	img := spectrogram.NewImage128(image.Rect(0, 0, width, height))
	bg := spectrogram.ParseColor("000000")
	draw.Draw(img, img.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)

	// Hamming window, FFT, linear magnitude
	spectrogram.Drawfft(img, samples, uint32(sampleRate), uint32(height), false, false, true, false)

	return spectrogram.SavePng(img, path)
}
