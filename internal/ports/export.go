package ports

import (
	"context"
	"image"
)

// EncodeJob describes one video encoding run.
type EncodeJob struct {
	// Output is the destination video file
	Output string

	// AudioPath is muxed as the soundtrack ("" for a silent video)
	AudioPath string

	// Width, Height and FPS describe the raw frames written to the encoder
	Width  int
	Height int
	FPS    int
}

// VideoEncoder turns a sequence of frames into a video file.
type VideoEncoder interface {
	// Start launches an encoder for job. Cancelling ctx aborts the encoder.
	Start(ctx context.Context, job EncodeJob) (FrameWriter, error)
}

// FrameWriter receives frames for a running encode.
type FrameWriter interface {
	// WriteFrame appends one frame. The image bounds must match the job size.
	WriteFrame(frame *image.RGBA) error

	// Close flushes the encoder and waits for the output file to be complete.
	Close() error

	// Abort stops the encoder and discards the output.
	Abort()
}

// ExportSink publishes a finished export.
type ExportSink interface {
	// Name identifies the sink in logs (e.g., "local", "minio").
	Name() string

	// Publish stores the file at path and returns where it can be found.
	Publish(ctx context.Context, jobID, path string) (string, error)
}
