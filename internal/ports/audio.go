// Package ports define interfaces for dependency inversion.
// These interfaces allow the core pipeline to remain independent of external frameworks.
package ports

import (
	"context"
	"io"
	"time"

	"github.com/tejashwikalptaru/govis/internal/domain"
)

// AudioEngine is the interface for audio playback engines.
// This abstracts decoding, the playback clock and sample access, and allows for testing with mocks.
//
// Implementations must be thread-safe as they may be called from the render ticker,
// the UI and the playback service concurrently.
type AudioEngine interface {
	SampleSource

	// Lifecycle methods

	// Initialize sets up the audio engine.
	// sampleRate: Engine sample rate in Hz (e.g., 44100); decoded tracks are converted to it
	//
	// Returns an error if initialization fails.
	Initialize(sampleRate int) error

	// Shutdown releases all audio engine resources, including loaded tracks.
	Shutdown() error

	// IsInitialized returns true if the engine has been successfully initialized.
	IsInitialized() bool

	// Track loading methods

	// Load decodes an audio file and returns a handle to it.
	// The track stays loaded until Unload or Shutdown.
	Load(filePath string) (domain.TrackHandle, error)

	// Unload releases resources for a previously loaded track.
	Unload(handle domain.TrackHandle) error

	// Playback control methods

	// Play starts or resumes playback of the specified track.
	// A track that played to its end restarts from the beginning.
	Play(handle domain.TrackHandle) error

	// Pause pauses playback, preserving the position.
	Pause(handle domain.TrackHandle) error

	// Stop stops playback and rewinds to the start. The track stays loaded.
	Stop(handle domain.TrackHandle) error

	// State query methods

	// Status returns the current playback status of the specified track.
	// A track that reached its end reports StatusStopped.
	Status(handle domain.TrackHandle) (domain.PlaybackStatus, error)

	// Position returns the current playback position within the track.
	Position(handle domain.TrackHandle) (time.Duration, error)

	// Duration returns the total duration of the specified track.
	Duration(handle domain.TrackHandle) (time.Duration, error)

	// Seek sets the playback position. The position must be within [0, Duration].
	Seek(handle domain.TrackHandle, position time.Duration) error

	// Volume control methods

	// SetVolume sets the track volume from 0.0 (silent) to 1.0 (full volume).
	SetVolume(handle domain.TrackHandle, volume float64) error

	// GetVolume returns the current volume level for the specified track.
	GetVolume(handle domain.TrackHandle) (float64, error)

	// Metadata methods

	// GetMetadata reads tag metadata from an audio file without loading it for playback.
	GetMetadata(filePath string) (*domain.TrackInfo, error)
}

// SampleSource gives read access to decoded audio for analysis.
// It is split from AudioEngine so offline export can sample at arbitrary times.
type SampleSource interface {
	// SamplesAt fills dst with the mono mixdown of the len(dst) samples that end at
	// position at. Samples before the start of the track are zero.
	//
	// Returns the number of samples that came from the track, or an error if the
	// handle is invalid.
	SamplesAt(handle domain.TrackHandle, at time.Duration, dst []float64) (int, error)

	// SampleRate returns the engine sample rate in Hz.
	SampleRate() int
}

// AudioOutput is the monitoring output stage: a device stream with a gain control.
// Output starts suspended and is resumed by the first user-initiated play.
//
// Thread-safety: Implementations must be thread-safe.
type AudioOutput interface {
	// SampleRate returns the output sample rate in Hz.
	SampleRate() int

	// Channels returns the number of interleaved output channels.
	Channels() int

	// Start replaces the current stream with r, which yields interleaved
	// float32 little-endian samples at SampleRate.
	Start(r io.Reader) error

	// Halt stops the current stream, if any.
	Halt()

	// SetGain sets the output gain (0.0 to 1.0) applied after track volume.
	SetGain(gain float64)

	// Gain returns the current output gain.
	Gain() float64

	// State returns the context state.
	State() domain.ContextState

	// Resume moves a suspended context to running. It is a no-op when running.
	Resume() error

	// Suspend pauses the device without releasing it.
	Suspend() error

	// Close releases the device.
	Close() error
}

// PCMDecoder decodes an audio file to interleaved float32 samples at the given
// rate and channel count.
type PCMDecoder interface {
	DecodePCM(ctx context.Context, path string, sampleRate, channels int) ([]float32, error)
}

// AudioEngineConfig contains configuration for creating an audio engine.
type AudioEngineConfig struct {
	// SampleRate is the engine sample rate in Hz
	SampleRate int

	// Fallback decodes formats without a native Go decoder (nil disables them)
	Fallback PCMDecoder

	// Output is the monitoring output (nil for silent/headless engines)
	Output AudioOutput
}
