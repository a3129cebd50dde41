package ffmpeg

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"os/exec"
	"strconv"

	"github.com/tejashwikalptaru/govis/internal/ports"
)

// Decoder decodes any format ffmpeg understands to float32 PCM.
type Decoder struct {
	binary string
}

// NewDecoder creates a decoder running binary ("" selects DefaultBinary).
func NewDecoder(binary string) *Decoder {
	if binary == "" {
		binary = DefaultBinary
	}
	return &Decoder{binary: binary}
}

// DecodeArgs returns the ffmpeg command line used to decode path.
func DecodeArgs(path string, sampleRate, channels int) []string {
	return []string{
		"-i", path,
		"-f", "f32le",
		"-acodec", "pcm_f32le",
		"-ar", strconv.Itoa(sampleRate),
		"-ac", strconv.Itoa(channels),
		"-loglevel", "error",
		"pipe:1",
	}
}

// DecodePCM implements ports.PCMDecoder.
func (d *Decoder) DecodePCM(ctx context.Context, path string, sampleRate, channels int) ([]float32, error) {
	cmd := exec.CommandContext(ctx, d.binary, DecodeArgs(path, sampleRate, channels)...)
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg decode %s: %w", path, err)
	}
	return float32LE(out), nil
}

// float32LE converts little-endian float32 bytes, dropping a trailing partial sample.
func float32LE(raw []byte) []float32 {
	out := make([]float32, len(raw)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[4*i:]))
	}
	return out
}

var _ ports.PCMDecoder = (*Decoder)(nil)
