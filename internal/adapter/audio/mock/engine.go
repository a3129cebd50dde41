// Package mock provides a mock implementation of the AudioEngine interface.
// This is used for testing services without decoding real audio.
package mock

import (
	"errors"
	"log/slog"
	"math"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/tejashwikalptaru/govis/internal/domain"
	"github.com/tejashwikalptaru/govis/internal/ports"
)

// DefaultDuration is the length of every mock track unless overridden.
const DefaultDuration = 3 * time.Minute

// Signal produces the mono sample value at time t (seconds into the track).
type Signal func(t float64) float64

// Sine returns a full-scale sine signal at hz.
func Sine(hz float64) Signal {
	return func(t float64) float64 { return math.Sin(2 * math.Pi * hz * t) }
}

// Engine is a mock implementation of the AudioEngine interface.
// It simulates audio playback in memory without actually playing audio.
// Positions only move through Seek and SimulateProgress.
//
// Thread-safety: This implementation is thread-safe.
type Engine struct {
	// Dependencies
	logger *slog.Logger

	// Configuration
	initialized bool
	sampleRate  int
	duration    time.Duration
	signal      Signal

	// Track state
	tracks     map[domain.TrackHandle]*mockTrack
	nextHandle domain.TrackHandle
	mu         sync.RWMutex

	// Behavior configuration (for testing error scenarios)
	failInitialize bool
	failLoad       bool
	failPlay       bool
	failSamples    bool

	playCalls int
}

// mockTrack represents a loaded track in the mock engine.
type mockTrack struct {
	handle   domain.TrackHandle
	filePath string
	duration time.Duration
	position time.Duration
	volume   float64
	status   domain.PlaybackStatus
}

// NewEngine creates a new mock audio engine.
func NewEngine() *Engine {
	return &Engine{
		tracks:     make(map[domain.TrackHandle]*mockTrack),
		nextHandle: 1,
		duration:   DefaultDuration,
	}
}

// SetLogger sets the logger for this engine.
// This should be called after construction before using the engine.
func (m *Engine) SetLogger(logger *slog.Logger) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logger = logger
}

// SetFailInitialize configures the mock to fail initialization (for testing).
func (m *Engine) SetFailInitialize(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failInitialize = fail
}

// SetFailLoad configures the mock to fail loading tracks (for testing).
func (m *Engine) SetFailLoad(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failLoad = fail
}

// SetFailPlay configures the mock to fail playback (for testing).
func (m *Engine) SetFailPlay(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failPlay = fail
}

// SetFailSamples configures SamplesAt to fail (for testing).
func (m *Engine) SetFailSamples(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failSamples = fail
}

// SetSignal sets the waveform returned by SamplesAt. nil means silence.
func (m *Engine) SetSignal(s Signal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signal = s
}

// SetTrackDuration sets the duration of tracks loaded afterwards.
func (m *Engine) SetTrackDuration(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.duration = d
}

// Initialize initializes the mock audio engine.
func (m *Engine) Initialize(sampleRate int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failInitialize {
		return domain.NewAudioEngineError("initialize", "", "mock initialization failed", nil)
	}

	if m.initialized {
		return domain.ErrAlreadyInitialized
	}

	if sampleRate <= 0 {
		sampleRate = 44100
	}
	m.initialized = true
	m.sampleRate = sampleRate

	return nil
}

// Shutdown shuts down the mock audio engine.
func (m *Engine) Shutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		return domain.ErrNotInitialized
	}

	m.initialized = false
	m.tracks = make(map[domain.TrackHandle]*mockTrack)

	return nil
}

// IsInitialized returns true if the engine is initialized.
func (m *Engine) IsInitialized() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.initialized
}

// SampleRate returns the engine sample rate.
func (m *Engine) SampleRate() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sampleRate
}

// Load loads an audio file and returns a handle.
func (m *Engine) Load(filePath string) (domain.TrackHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		return domain.InvalidTrackHandle, domain.ErrNotInitialized
	}

	if m.failLoad {
		return domain.InvalidTrackHandle, domain.NewAudioEngineError("load", filePath, "mock load failed", nil)
	}

	if filePath == "" {
		return domain.InvalidTrackHandle, domain.ErrInvalidFilePath
	}

	handle := m.nextHandle
	m.nextHandle++

	m.tracks[handle] = &mockTrack{
		handle:   handle,
		filePath: filePath,
		duration: m.duration,
		volume:   1.0,
		status:   domain.StatusStopped,
	}

	return handle, nil
}

// Unload unloads a previously loaded track.
func (m *Engine) Unload(handle domain.TrackHandle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.track(handle); err != nil {
		return err
	}
	delete(m.tracks, handle)
	return nil
}

// Play starts or resumes playback. A track at its end restarts from zero.
func (m *Engine) Play(handle domain.TrackHandle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failPlay {
		return domain.ErrPlaybackFailed
	}

	track, err := m.track(handle)
	if err != nil {
		return err
	}

	if track.position >= track.duration {
		track.position = 0
	}
	track.status = domain.StatusPlaying
	m.playCalls++
	return nil
}

// Pause pauses playback.
func (m *Engine) Pause(handle domain.TrackHandle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	track, err := m.track(handle)
	if err != nil {
		return err
	}
	if track.status == domain.StatusPlaying {
		track.status = domain.StatusPaused
	}
	return nil
}

// Stop stops playback and rewinds. The track stays loaded.
func (m *Engine) Stop(handle domain.TrackHandle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	track, err := m.track(handle)
	if err != nil {
		return err
	}
	track.status = domain.StatusStopped
	track.position = 0
	return nil
}

// Status returns the playback status.
func (m *Engine) Status(handle domain.TrackHandle) (domain.PlaybackStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	track, err := m.track(handle)
	if err != nil {
		return domain.StatusStopped, err
	}
	return track.status, nil
}

// Position returns the current playback position.
func (m *Engine) Position(handle domain.TrackHandle) (time.Duration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	track, err := m.track(handle)
	if err != nil {
		return 0, err
	}
	return track.position, nil
}

// Duration returns the total track duration.
func (m *Engine) Duration(handle domain.TrackHandle) (time.Duration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	track, err := m.track(handle)
	if err != nil {
		return 0, err
	}
	return track.duration, nil
}

// Seek sets the playback position.
func (m *Engine) Seek(handle domain.TrackHandle, position time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	track, err := m.track(handle)
	if err != nil {
		return err
	}
	if position < 0 || position > track.duration {
		return domain.ErrInvalidPosition
	}
	track.position = position
	return nil
}

// SetVolume sets the playback volume.
func (m *Engine) SetVolume(handle domain.TrackHandle, volume float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	track, err := m.track(handle)
	if err != nil {
		return err
	}
	if volume < 0.0 || volume > 1.0 {
		return domain.ErrInvalidVolume
	}
	track.volume = volume
	return nil
}

// GetVolume returns the current volume.
func (m *Engine) GetVolume(handle domain.TrackHandle) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	track, err := m.track(handle)
	if err != nil {
		return 0, err
	}
	return track.volume, nil
}

// SamplesAt fills dst from the configured signal. Samples before zero are silent.
func (m *Engine) SamplesAt(handle domain.TrackHandle, at time.Duration, dst []float64) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.failSamples {
		return 0, errors.New("mock samples failed")
	}
	if _, err := m.track(handle); err != nil {
		return 0, err
	}

	end := int(math.Round(at.Seconds() * float64(m.sampleRate)))
	start := end - len(dst)
	n := 0
	for i := range dst {
		idx := start + i
		if idx < 0 {
			dst[i] = 0
			continue
		}
		n++
		if m.signal == nil {
			dst[i] = 0
			continue
		}
		dst[i] = m.signal(float64(idx) / float64(m.sampleRate))
	}
	return n, nil
}

// GetMetadata derives mock metadata from the file name.
func (m *Engine) GetMetadata(filePath string) (*domain.TrackInfo, error) {
	if filePath == "" {
		return nil, domain.ErrInvalidFilePath
	}

	filename := filepath.Base(filePath)
	ext := filepath.Ext(filename)

	return &domain.TrackInfo{
		FilePath: filePath,
		Title:    strings.TrimSuffix(filename, ext),
		Artist:   "Mock Artist",
		Album:    "Mock Album",
		Format:   strings.TrimPrefix(ext, "."),
	}, nil
}

// GetLoadedTracks returns the number of currently loaded tracks (for testing).
func (m *Engine) GetLoadedTracks() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tracks)
}

// PlayCalls returns how many times Play succeeded (for testing).
func (m *Engine) PlayCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.playCalls
}

// SimulateProgress simulates playback progress (for testing).
// This advances the position by the specified duration. A track that reaches
// its end is stopped with the position at the duration.
func (m *Engine) SimulateProgress(handle domain.TrackHandle, delta time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	track, err := m.track(handle)
	if err != nil {
		return err
	}

	if track.status != domain.StatusPlaying {
		return errors.New("track is not playing")
	}

	track.position += delta
	if track.position >= track.duration {
		track.position = track.duration
		track.status = domain.StatusStopped
	}

	return nil
}

func (m *Engine) track(handle domain.TrackHandle) (*mockTrack, error) {
	if !m.initialized {
		return nil, domain.ErrNotInitialized
	}
	track, exists := m.tracks[handle]
	if !exists {
		return nil, domain.ErrInvalidTrackHandle
	}
	return track, nil
}

// Verify that Engine implements the AudioEngine interface
var _ ports.AudioEngine = (*Engine)(nil)
