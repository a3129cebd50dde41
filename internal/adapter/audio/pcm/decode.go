package pcm

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/dh1tw/gosamplerate"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"

	"github.com/tejashwikalptaru/govis/internal/domain"
	"github.com/tejashwikalptaru/govis/internal/ports"
)

// outputChannels is the channel layout every track is converted to.
const outputChannels = 2

// buffer is decoded interleaved audio.
type buffer struct {
	samples    []float32
	channels   int
	sampleRate int
}

func (b *buffer) frames() int {
	if b.channels == 0 {
		return 0
	}
	return len(b.samples) / b.channels
}

// decodeFile decodes path to stereo float32 at sampleRate. MP3 and WAV are
// decoded natively; other formats go through fallback when it is set.
func decodeFile(ctx context.Context, logger *slog.Logger, path string, sampleRate int, fallback ports.PCMDecoder) (*buffer, error) {
	ext := strings.ToLower(filepath.Ext(path))

	var (
		buf *buffer
		err error
	)
	switch ext {
	case ".mp3":
		buf, err = decodeMP3File(path)
	case ".wav", ".wave":
		buf, err = decodeWAVFile(path)
	default:
		if fallback == nil {
			return nil, domain.ErrUnsupportedFormat
		}
		samples, ferr := fallback.DecodePCM(ctx, path, sampleRate, outputChannels)
		if ferr != nil {
			return nil, ferr
		}
		return &buffer{samples: samples, channels: outputChannels, sampleRate: sampleRate}, nil
	}
	if err != nil {
		return nil, err
	}

	logger.Debug("decoded audio file",
		slog.String("path", path),
		slog.Int("sampleRate", buf.sampleRate),
		slog.Int("channels", buf.channels),
		slog.Int("frames", buf.frames()),
	)

	buf = toStereo(buf)
	if buf.sampleRate != sampleRate {
		logger.Debug("resampling audio", slog.String("path", path), slog.Int("from", buf.sampleRate), slog.Int("to", sampleRate))
		buf, err = resample(buf, sampleRate)
		if err != nil {
			return nil, err
		}
	}
	return buf, nil
}

func decodeMP3File(path string) (*buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return decodeMP3(f)
}

// decodeMP3 decodes an MP3 stream. go-mp3 always yields 16-bit stereo.
func decodeMP3(r io.Reader) (*buffer, error) {
	decoder, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("mp3: %w", err)
	}
	raw, err := io.ReadAll(decoder)
	if err != nil {
		return nil, fmt.Errorf("mp3: %w", err)
	}
	return &buffer{
		samples:    int16LEToFloat(raw),
		channels:   2,
		sampleRate: decoder.SampleRate(),
	}, nil
}

func decodeWAVFile(path string) (*buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return decodeWAV(f)
}

// decodeWAV decodes a PCM WAV stream of any integer bit depth.
func decodeWAV(r io.ReadSeeker) (*buffer, error) {
	decoder := wav.NewDecoder(r)
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("wav: %w", domain.ErrUnsupportedFormat)
	}
	if err := decoder.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("wav: %w", err)
	}

	format := decoder.Format()
	bitDepth := int(decoder.SampleBitDepth())
	if bitDepth == 0 || format == nil || format.NumChannels == 0 {
		return nil, fmt.Errorf("wav: unknown sample format: %w", domain.ErrUnsupportedFormat)
	}
	bytesPerSample := (bitDepth-1)/8 + 1
	nsamples := int(decoder.PCMLen()) / bytesPerSample

	ib := &audio.IntBuffer{
		Format:         format,
		Data:           make([]int, nsamples),
		SourceBitDepth: bitDepth,
	}
	n, err := decoder.PCMBuffer(ib)
	if err != nil {
		return nil, fmt.Errorf("wav: %w", err)
	}
	ib.Data = ib.Data[:n]

	fb := ib.AsFloatBuffer()
	factor := math.Pow(2, float64(bitDepth-1))
	samples := make([]float32, len(fb.Data))
	for i, v := range fb.Data {
		samples[i] = float32(v / factor)
	}
	return &buffer{samples: samples, channels: format.NumChannels, sampleRate: format.SampleRate}, nil
}

// toStereo duplicates mono and drops channels beyond the first two.
func toStereo(b *buffer) *buffer {
	switch b.channels {
	case outputChannels:
		return b
	case 1:
		out := make([]float32, len(b.samples)*2)
		for i, v := range b.samples {
			out[2*i] = v
			out[2*i+1] = v
		}
		return &buffer{samples: out, channels: outputChannels, sampleRate: b.sampleRate}
	default:
		frames := b.frames()
		out := make([]float32, frames*2)
		for i := 0; i < frames; i++ {
			out[2*i] = b.samples[i*b.channels]
			out[2*i+1] = b.samples[i*b.channels+1]
		}
		return &buffer{samples: out, channels: outputChannels, sampleRate: b.sampleRate}
	}
}

func resample(b *buffer, sampleRate int) (*buffer, error) {
	if len(b.samples) == 0 || b.sampleRate <= 0 {
		return &buffer{channels: b.channels, sampleRate: sampleRate}, nil
	}
	ratio := float64(sampleRate) / float64(b.sampleRate)
	out, err := gosamplerate.Simple(b.samples, ratio, b.channels, gosamplerate.SRC_SINC_FASTEST)
	if err != nil {
		return nil, fmt.Errorf("resample %d -> %d: %w", b.sampleRate, sampleRate, err)
	}
	return &buffer{samples: out, channels: b.channels, sampleRate: sampleRate}, nil
}

// int16LEToFloat converts signed 16-bit little-endian PCM to [-1, 1).
func int16LEToFloat(raw []byte) []float32 {
	out := make([]float32, len(raw)/2)
	for i := range out {
		out[i] = float32(int16(binary.LittleEndian.Uint16(raw[2*i:]))) / 32768
	}
	return out
}

// mixdown averages stereo frames into mono.
func mixdown(b *buffer) []float64 {
	frames := b.frames()
	out := make([]float64, frames)
	for i := 0; i < frames; i++ {
		out[i] = (float64(b.samples[2*i]) + float64(b.samples[2*i+1])) / 2
	}
	return out
}
