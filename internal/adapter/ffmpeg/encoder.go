// Package ffmpeg drives the ffmpeg binary for video encoding and as a
// fallback audio decoder.
package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"sync"

	"github.com/tejashwikalptaru/govis/internal/domain"
	"github.com/tejashwikalptaru/govis/internal/ports"
)

// DefaultBinary is the ffmpeg executable looked up on PATH.
const DefaultBinary = "ffmpeg"

// stderrLimit caps how much ffmpeg diagnostic output is kept for errors.
const stderrLimit = 4096

// ErrFrameSize is returned when a frame does not match the job size.
var ErrFrameSize = errors.New("frame size does not match encoder")

// Encoder pipes raw RGBA frames into ffmpeg, which muxes them with the audio track.
type Encoder struct {
	logger *slog.Logger
	binary string
}

// NewEncoder creates an encoder running binary ("" selects DefaultBinary).
func NewEncoder(logger *slog.Logger, binary string) *Encoder {
	if binary == "" {
		binary = DefaultBinary
	}
	return &Encoder{logger: logger, binary: binary}
}

// Args returns the ffmpeg command line for job.
func (e *Encoder) Args(job ports.EncodeJob) []string {
	args := []string{
		"-y",
		"-loglevel", "error",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", job.Width, job.Height),
		"-r", strconv.Itoa(job.FPS),
		"-i", "pipe:0",
	}
	if job.AudioPath != "" {
		args = append(args, "-i", job.AudioPath, "-c:a", "aac", "-shortest")
	}
	return append(args,
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-movflags", "+faststart",
		job.Output,
	)
}

// Start launches ffmpeg for job and returns a writer for its frames.
func (e *Encoder) Start(ctx context.Context, job ports.EncodeJob) (ports.FrameWriter, error) {
	if job.Width <= 0 || job.Height <= 0 || job.FPS <= 0 {
		return nil, domain.NewValidationError("job", job, "width, height and fps must be positive")
	}
	if job.Output == "" {
		return nil, domain.ErrInvalidFilePath
	}

	cmd := exec.CommandContext(ctx, e.binary, e.Args(job)...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stdin: %w", err)
	}
	stderr := &tailBuffer{limit: stderrLimit}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", e.binary, err)
	}
	e.logger.Debug("ffmpeg started", slog.String("output", job.Output), slog.Int("fps", job.FPS))

	return &frameWriter{
		logger: e.logger,
		cmd:    cmd,
		stdin:  stdin,
		stderr: stderr,
		output: job.Output,
		width:  job.Width,
		height: job.Height,
	}, nil
}

type frameWriter struct {
	logger *slog.Logger
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr *tailBuffer
	output string
	width  int
	height int

	once sync.Once
	err  error
}

// WriteFrame writes one frame. The image must be exactly the job size.
func (w *frameWriter) WriteFrame(img *image.RGBA) error {
	b := img.Bounds()
	if b.Dx() != w.width || b.Dy() != w.height {
		return fmt.Errorf("%w: got %dx%d, want %dx%d", ErrFrameSize, b.Dx(), b.Dy(), w.width, w.height)
	}

	rowBytes := 4 * w.width
	if img.Stride == rowBytes && b.Min == (image.Point{}) {
		_, err := w.stdin.Write(img.Pix[:rowBytes*w.height])
		return w.wrap(err)
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		off := img.PixOffset(b.Min.X, y)
		if _, err := w.stdin.Write(img.Pix[off : off+rowBytes]); err != nil {
			return w.wrap(err)
		}
	}
	return nil
}

// Close flushes the pipe and waits for ffmpeg to finish the file.
func (w *frameWriter) Close() error {
	w.once.Do(func() {
		_ = w.stdin.Close()
		w.err = w.wrap(w.cmd.Wait())
	})
	return w.err
}

// Abort kills ffmpeg and removes the partial output.
func (w *frameWriter) Abort() {
	w.once.Do(func() {
		_ = w.stdin.Close()
		if w.cmd.Process != nil {
			_ = w.cmd.Process.Kill()
		}
		_ = w.cmd.Wait()
		if err := os.Remove(w.output); err != nil && !os.IsNotExist(err) {
			w.logger.Warn("could not remove partial export", slog.String("path", w.output), slog.Any("error", err))
		}
		w.err = domain.ErrExportCancelled
	})
}

func (w *frameWriter) wrap(err error) error {
	if err == nil {
		return nil
	}
	if msg := w.stderr.String(); msg != "" {
		return fmt.Errorf("ffmpeg: %w: %s", err, msg)
	}
	return fmt.Errorf("ffmpeg: %w", err)
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	buf   bytes.Buffer
	limit int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf.Write(p)
	if over := t.buf.Len() - t.limit; over > 0 {
		t.buf.Next(over)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(bytes.TrimSpace(t.buf.Bytes()))
}

var _ ports.VideoEncoder = (*Encoder)(nil)
