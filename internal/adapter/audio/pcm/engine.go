// Package pcm provides an AudioEngine that decodes whole tracks into memory.
//
// The playback clock is wall-clock based so the renderer and the analyser see
// the same position whether or not a monitoring output is attached. When an
// output is configured, the engine streams the decoded track to it.
package pcm

import (
	"context"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dhowden/tag"

	"github.com/tejashwikalptaru/govis/internal/domain"
	"github.com/tejashwikalptaru/govis/internal/ports"
)

// DefaultSampleRate is used when Initialize is called with a non-positive rate.
const DefaultSampleRate = 44100

// Engine is the in-memory PCM implementation of ports.AudioEngine.
//
// Thread-safety: This implementation is thread-safe.
type Engine struct {
	logger   *slog.Logger
	fallback ports.PCMDecoder
	output   ports.AudioOutput

	mu          sync.RWMutex
	now         func() time.Time
	initialized bool
	sampleRate  int
	tracks      map[domain.TrackHandle]*track
	nextHandle  domain.TrackHandle
	streaming   domain.TrackHandle
}

// track is a decoded track with its playback clock.
type track struct {
	path     string
	pcm      *buffer
	mono     []float64
	duration time.Duration
	volume   float64
	status   domain.PlaybackStatus

	// offset is the position when the clock last started or stopped.
	offset    time.Duration
	startedAt time.Time
}

// NewEngine creates an engine. cfg.Output and cfg.Fallback may be nil.
func NewEngine(logger *slog.Logger, cfg ports.AudioEngineConfig) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		logger:     logger,
		fallback:   cfg.Fallback,
		output:     cfg.Output,
		now:        time.Now,
		sampleRate: cfg.SampleRate,
		tracks:     make(map[domain.TrackHandle]*track),
		nextHandle: 1,
	}
}

// SetClock replaces the wall clock (for testing).
func (e *Engine) SetClock(now func() time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.now = now
}

// Initialize prepares the engine at the given sample rate.
func (e *Engine) Initialize(sampleRate int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.initialized {
		return domain.ErrAlreadyInitialized
	}
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	if e.output != nil && e.output.SampleRate() != sampleRate {
		return domain.NewAudioEngineError("initialize", "", "output sample rate does not match engine", nil)
	}

	e.sampleRate = sampleRate
	e.initialized = true
	e.logger.Info("audio engine initialized", slog.Int("sampleRate", sampleRate), slog.Bool("monitor", e.output != nil))
	return nil
}

// Shutdown halts output and releases all tracks.
func (e *Engine) Shutdown() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized {
		return domain.ErrNotInitialized
	}
	e.haltLocked()
	e.tracks = make(map[domain.TrackHandle]*track)
	e.initialized = false
	return nil
}

// IsInitialized returns true if the engine is initialized.
func (e *Engine) IsInitialized() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.initialized
}

// SampleRate implements ports.SampleSource.
func (e *Engine) SampleRate() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.sampleRate
}

// Load decodes filePath fully into memory.
func (e *Engine) Load(filePath string) (domain.TrackHandle, error) {
	if filePath == "" {
		return domain.InvalidTrackHandle, domain.ErrInvalidFilePath
	}

	e.mu.RLock()
	initialized, sampleRate := e.initialized, e.sampleRate
	e.mu.RUnlock()
	if !initialized {
		return domain.InvalidTrackHandle, domain.ErrNotInitialized
	}

	if _, err := os.Stat(filePath); err != nil {
		if os.IsNotExist(err) {
			return domain.InvalidTrackHandle, domain.ErrFileNotFound
		}
		return domain.InvalidTrackHandle, domain.NewAudioEngineError("load", filePath, "cannot stat file", err)
	}

	// Decoding happens outside the lock; it can take a while for long tracks.
	buf, err := decodeFile(context.Background(), e.logger, filePath, sampleRate, e.fallback)
	if err != nil {
		return domain.InvalidTrackHandle, domain.NewAudioEngineError("load", filePath, "failed to decode audio", err)
	}

	t := &track{
		path:     filePath,
		pcm:      buf,
		mono:     mixdown(buf),
		duration: framesToDuration(buf.frames(), sampleRate),
		volume:   1.0,
		status:   domain.StatusStopped,
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.initialized {
		return domain.InvalidTrackHandle, domain.ErrNotInitialized
	}
	handle := e.nextHandle
	e.nextHandle++
	e.tracks[handle] = t

	e.logger.Debug("track loaded", slog.String("path", filePath), slog.Duration("duration", t.duration))
	return handle, nil
}

// Unload releases a track, halting output if it was streaming.
func (e *Engine) Unload(handle domain.TrackHandle) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.trackLocked(handle); err != nil {
		return err
	}
	if e.streaming == handle {
		e.haltLocked()
	}
	delete(e.tracks, handle)
	return nil
}

// Play starts or resumes the clock. A track that reached its end restarts at zero.
func (e *Engine) Play(handle domain.TrackHandle) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, err := e.trackLocked(handle)
	if err != nil {
		return err
	}
	now := e.now()
	e.settleLocked(t, now)
	if t.status == domain.StatusPlaying {
		return nil
	}
	if t.offset >= t.duration {
		t.offset = 0
	}
	t.status = domain.StatusPlaying
	t.startedAt = now

	return e.streamLocked(handle, t)
}

// Pause freezes the clock at the current position.
func (e *Engine) Pause(handle domain.TrackHandle) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, err := e.trackLocked(handle)
	if err != nil {
		return err
	}
	now := e.now()
	e.settleLocked(t, now)
	if t.status != domain.StatusPlaying {
		return nil
	}
	t.offset = e.positionLocked(t, now)
	t.status = domain.StatusPaused
	if e.streaming == handle {
		e.haltLocked()
	}
	return nil
}

// Stop halts playback and rewinds. The track stays loaded.
func (e *Engine) Stop(handle domain.TrackHandle) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, err := e.trackLocked(handle)
	if err != nil {
		return err
	}
	t.status = domain.StatusStopped
	t.offset = 0
	if e.streaming == handle {
		e.haltLocked()
	}
	return nil
}

// Status reports the track status. A track that played to its end is stopped.
func (e *Engine) Status(handle domain.TrackHandle) (domain.PlaybackStatus, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, err := e.trackLocked(handle)
	if err != nil {
		return domain.StatusStopped, err
	}
	e.settleLocked(t, e.now())
	return t.status, nil
}

// Position returns the clock position, capped at the duration.
func (e *Engine) Position(handle domain.TrackHandle) (time.Duration, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, err := e.trackLocked(handle)
	if err != nil {
		return 0, err
	}
	now := e.now()
	e.settleLocked(t, now)
	return e.positionLocked(t, now), nil
}

// Duration returns the decoded length.
func (e *Engine) Duration(handle domain.TrackHandle) (time.Duration, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	t, err := e.trackLocked(handle)
	if err != nil {
		return 0, err
	}
	return t.duration, nil
}

// Seek moves the clock. A playing track keeps playing from the new position.
func (e *Engine) Seek(handle domain.TrackHandle, position time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, err := e.trackLocked(handle)
	if err != nil {
		return err
	}
	if position < 0 || position > t.duration {
		return domain.ErrInvalidPosition
	}

	now := e.now()
	e.settleLocked(t, now)
	t.offset = position
	t.startedAt = now
	if t.status == domain.StatusPlaying {
		return e.streamLocked(handle, t)
	}
	return nil
}

// SetVolume sets the track volume applied to the monitor stream.
func (e *Engine) SetVolume(handle domain.TrackHandle, volume float64) error {
	if math.IsNaN(volume) || volume < 0 || volume > 1 {
		return domain.ErrInvalidVolume
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	t, err := e.trackLocked(handle)
	if err != nil {
		return err
	}
	t.volume = volume
	return nil
}

// GetVolume returns the track volume.
func (e *Engine) GetVolume(handle domain.TrackHandle) (float64, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	t, err := e.trackLocked(handle)
	if err != nil {
		return 0, err
	}
	return t.volume, nil
}

// SamplesAt implements ports.SampleSource on the mono mixdown.
func (e *Engine) SamplesAt(handle domain.TrackHandle, at time.Duration, dst []float64) (int, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	t, err := e.trackLocked(handle)
	if err != nil {
		return 0, err
	}
	return window(t.mono, durationToFrames(at, e.sampleRate), dst), nil
}

// window copies the len(dst) samples ending at frame end, zero-filling outside src.
func window(src []float64, end int, dst []float64) int {
	start := end - len(dst)
	n := 0
	for i := range dst {
		idx := start + i
		if idx < 0 || idx >= len(src) {
			dst[i] = 0
			continue
		}
		dst[i] = src[idx]
		n++
	}
	return n
}

// GetMetadata reads tags with dhowden/tag. Untagged files fall back to the file name.
func (e *Engine) GetMetadata(filePath string) (*domain.TrackInfo, error) {
	return ReadMetadata(filePath)
}

// ReadMetadata reads tag metadata and embedded cover art from an audio file.
func ReadMetadata(filePath string) (*domain.TrackInfo, error) {
	if filePath == "" {
		return nil, domain.ErrInvalidFilePath
	}
	f, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrFileNotFound
		}
		return nil, err
	}
	defer f.Close()

	base := filepath.Base(filePath)
	ext := filepath.Ext(base)
	info := &domain.TrackInfo{
		FilePath: filePath,
		Title:    strings.TrimSuffix(base, ext),
		Format:   strings.TrimPrefix(strings.ToLower(ext), "."),
	}

	m, err := tag.ReadFrom(f)
	if err != nil {
		// Missing or unreadable tags are not fatal; the file may still decode.
		return info, nil
	}

	if title := strings.TrimSpace(m.Title()); title != "" {
		info.Title = title
	}
	info.Artist = strings.TrimSpace(m.Artist())
	info.Album = strings.TrimSpace(m.Album())
	if ft := string(m.FileType()); ft != "" {
		info.Format = strings.ToLower(ft)
	}
	if pic := m.Picture(); pic != nil && len(pic.Data) > 0 {
		info.Picture = pic.Data
	}
	return info, nil
}

// LoadedTracks returns the number of loaded tracks.
func (e *Engine) LoadedTracks() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.tracks)
}

func (e *Engine) trackLocked(handle domain.TrackHandle) (*track, error) {
	if !e.initialized {
		return nil, domain.ErrNotInitialized
	}
	t, ok := e.tracks[handle]
	if !ok {
		return nil, domain.ErrInvalidTrackHandle
	}
	return t, nil
}

// positionLocked computes the clock position at now.
func (e *Engine) positionLocked(t *track, now time.Time) time.Duration {
	pos := t.offset
	if t.status == domain.StatusPlaying {
		pos += now.Sub(t.startedAt)
	}
	if pos > t.duration {
		pos = t.duration
	}
	if pos < 0 {
		pos = 0
	}
	return pos
}

// settleLocked moves a playing track that ran past its end to stopped.
func (e *Engine) settleLocked(t *track, now time.Time) {
	if t.status != domain.StatusPlaying {
		return
	}
	if e.positionLocked(t, now) < t.duration {
		return
	}
	t.status = domain.StatusStopped
	t.offset = t.duration
	e.logger.Debug("track reached end", slog.String("path", t.path))
}

// streamLocked (re)starts the monitor stream at the track's current offset.
func (e *Engine) streamLocked(handle domain.TrackHandle, t *track) error {
	if e.output == nil {
		return nil
	}
	channels := e.output.Channels()
	if channels < 1 {
		channels = outputChannels
	}
	r := &streamReader{
		engine:   e,
		track:    t,
		frame:    durationToFrames(t.offset, e.sampleRate),
		channels: channels,
	}
	if err := e.output.Start(r); err != nil {
		return domain.NewAudioEngineError("play", t.path, "failed to start output stream", err)
	}
	e.streaming = handle
	return nil
}

func (e *Engine) haltLocked() {
	if e.output != nil && e.streaming != domain.InvalidTrackHandle {
		e.output.Halt()
	}
	e.streaming = domain.InvalidTrackHandle
}

func framesToDuration(frames, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(int64(frames) * int64(time.Second) / int64(sampleRate))
}

func durationToFrames(d time.Duration, sampleRate int) int {
	return int(math.Round(d.Seconds() * float64(sampleRate)))
}

var (
	_ ports.AudioEngine  = (*Engine)(nil)
	_ ports.SampleSource = (*Engine)(nil)
)
