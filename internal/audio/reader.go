package audio

import (
	"errors"
	"fmt"
	"os"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ReadWAVAsFloat64 reads a PCM WAV file and returns mono samples normalized
// to [-1,1] and the sample rate. Multi-channel audio is mixed down by
// averaging channels.
func ReadWAVAsFloat64(path string) ([]float64, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return nil, 0, fmt.Errorf("not a valid WAV file: %s", path)
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("reading PCM data: %w", err)
	}
	if buf == nil || len(buf.Data) == 0 {
		return nil, 0, errors.New("WAV file contains no samples")
	}

	return mixToMono(buf, int(decoder.BitDepth)), int(decoder.SampleRate), nil
}

// mixToMono converts an interleaved integer PCM buffer to normalized mono
// float64 samples.
func mixToMono(buf *gaudio.IntBuffer, bitDepth int) []float64 {
	channels := buf.Format.NumChannels
	if channels < 1 {
		channels = 1
	}
	if bitDepth <= 0 {
		bitDepth = 16
	}
	scale := 1.0 / float64(int(1)<<uint(bitDepth-1))

	frames := len(buf.Data) / channels
	out := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var acc float64
		for c := 0; c < channels; c++ {
			acc += float64(buf.Data[i*channels+c]) * scale
		}
		out[i] = acc / float64(channels)
	}
	return out
}
