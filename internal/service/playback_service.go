// Package service provides the application logic of the GoVis visualizer.
package service

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/tejashwikalptaru/govis/internal/domain"
	"github.com/tejashwikalptaru/govis/internal/ports"
)

// ProgressInterval is how often the progress routine publishes position updates.
const ProgressInterval = 250 * time.Millisecond

// FirstPlayHook runs on every user-initiated play. Hooks must be idempotent.
type FirstPlayHook func() error

type firstPlayHook struct {
	id   domain.SubscriptionID
	hook FirstPlayHook
}

// PlaybackService is the playback clock the renderer and the UI follow.
// It owns the loaded track, volume and mute state and the output unlock.
// All operations are thread-safe via sync.RWMutex.
type PlaybackService struct {
	// Dependencies (injected)
	logger *slog.Logger
	engine ports.AudioEngine
	bus    ports.EventBus
	output ports.AudioOutput

	// State
	source        string
	currentHandle domain.TrackHandle
	volume        float64
	isMuted       bool
	unlocked      bool // set by the first user Play
	hooks         []firstPlayHook
	nextHookID    uint64

	// Concurrency control
	mu             sync.RWMutex
	updateInterval time.Duration
	stopUpdate     chan struct{}
	updateRunning  bool
	updateWg       sync.WaitGroup
	manualStop     bool // True if the user explicitly stopped playback
	hasPlayed      bool // True if the current track has been played
}

// NewPlaybackService creates a new playback service and starts its progress routine.
// output may be nil for headless use. When set, the default first-play hook resumes it.
func NewPlaybackService(
	logger *slog.Logger,
	engine ports.AudioEngine,
	bus ports.EventBus,
	output ports.AudioOutput,
) *PlaybackService {
	s := &PlaybackService{
		logger:         logger,
		engine:         engine,
		bus:            bus,
		output:         output,
		currentHandle:  domain.InvalidTrackHandle,
		volume:         0.8,
		updateInterval: ProgressInterval,
		stopUpdate:     make(chan struct{}),
	}

	if output != nil {
		s.OnFirstPlay(s.resumeOutput)
	}

	logger.Debug("playback service initialized")
	s.startUpdateRoutine()
	return s
}

func (s *PlaybackService) resumeOutput() error {
	if s.output.State() == domain.ContextRunning {
		return nil
	}
	return s.output.Resume()
}

// OnFirstPlay registers a hook that runs on each user Play before playback starts.
func (s *PlaybackService) OnFirstPlay(hook FirstPlayHook) domain.SubscriptionID {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextHookID++
	id := domain.SubscriptionID(fmt.Sprintf("first-play-%d", s.nextHookID))
	s.hooks = append(s.hooks, firstPlayHook{id: id, hook: hook})
	return id
}

// RemoveFirstPlayHook unregisters a hook. Unknown IDs are ignored.
func (s *PlaybackService) RemoveFirstPlayHook(id domain.SubscriptionID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, h := range s.hooks {
		if h.id == id {
			s.hooks = append(s.hooks[:i], s.hooks[i+1:]...)
			return
		}
	}
}

// LoadTrack decodes the audio file at path and makes it the current track.
// The previous track, if any, is stopped and released.
func (s *PlaybackService) LoadTrack(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Debug("loading track", slog.String("file_path", path))

	if s.currentHandle != domain.InvalidTrackHandle {
		s.releaseInternal()
	}

	handle, err := s.engine.Load(path)
	if err != nil {
		s.logger.Debug("failed to load track", slog.Any("error", err))
		s.bus.Publish(domain.NewTrackErrorEvent(path, err))
		return err
	}

	if err := s.engine.SetVolume(handle, s.effectiveVolume()); err != nil {
		if unloadErr := s.engine.Unload(handle); unloadErr != nil {
			s.logger.Warn("failed to unload track after volume error", slog.Any("error", unloadErr))
		}
		return err
	}

	duration, err := s.engine.Duration(handle)
	if err != nil {
		if unloadErr := s.engine.Unload(handle); unloadErr != nil {
			s.logger.Warn("failed to unload track after duration error", slog.Any("error", unloadErr))
		}
		return err
	}

	s.source = path
	s.currentHandle = handle
	s.manualStop = false
	s.hasPlayed = false

	s.logger.Debug("track loaded", slog.Int64("handle", int64(handle)), slog.Duration("duration", duration))
	s.bus.Publish(domain.NewTrackLoadedEvent(path, handle, duration))
	return nil
}

// releaseInternal stops and unloads the current track (caller must hold lock).
func (s *PlaybackService) releaseInternal() {
	if err := s.engine.Stop(s.currentHandle); err != nil {
		s.logger.Warn("failed to stop current track", slog.Any("error", err))
	}
	if err := s.engine.Unload(s.currentHandle); err != nil {
		s.logger.Warn("failed to unload current track", slog.Any("error", err))
	}
	s.currentHandle = domain.InvalidTrackHandle
	s.source = ""
	s.hasPlayed = false
}

// Play is the user-initiated play. It unlocks the output context, runs the
// first-play hooks and then starts or resumes the current track.
func (s *PlaybackService) Play() error {
	s.mu.Lock()
	s.unlocked = true
	hooks := make([]firstPlayHook, len(s.hooks))
	copy(hooks, s.hooks)
	s.mu.Unlock()

	for _, h := range hooks {
		if err := h.hook(); err != nil {
			s.logger.Warn("first play hook failed", slog.String("hook", string(h.id)), slog.Any("error", err))
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playInternal(false)
}

// TriggerPlay is a programmatic play, used by realtime export.
// It returns ErrContextLocked until the user has pressed play once.
func (s *PlaybackService) TriggerPlay() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.unlocked {
		return domain.ErrContextLocked
	}
	return s.playInternal(true)
}

// playInternal starts playback (caller must hold lock).
func (s *PlaybackService) playInternal(synthetic bool) error {
	if s.currentHandle == domain.InvalidTrackHandle {
		s.logger.Debug("play failed - no track loaded")
		return domain.ErrNoTrackLoaded
	}

	status, err := s.engine.Status(s.currentHandle)
	if err != nil {
		return err
	}
	if status == domain.StatusPlaying {
		return nil
	}

	if err := s.engine.Play(s.currentHandle); err != nil {
		s.logger.Debug("play failed - engine.Play error", slog.Any("error", err))
		s.bus.Publish(domain.NewTrackErrorEvent(s.source, err))
		return err
	}
	s.manualStop = false
	s.hasPlayed = true

	position, err := s.engine.Position(s.currentHandle)
	if err != nil {
		position = 0
	}
	s.bus.Publish(domain.NewTrackStartedEvent(s.source, position, synthetic))
	return nil
}

// Pause pauses playback of the current track.
func (s *PlaybackService) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.currentHandle == domain.InvalidTrackHandle {
		return domain.ErrNoTrackLoaded
	}

	position, err := s.engine.Position(s.currentHandle)
	if err != nil {
		position = 0
	}

	if err := s.engine.Pause(s.currentHandle); err != nil {
		return err
	}

	s.bus.Publish(domain.NewTrackPausedEvent(s.source, position))
	return nil
}

// Stop stops playback and rewinds. The track stays loaded.
func (s *PlaybackService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.currentHandle == domain.InvalidTrackHandle {
		return nil
	}

	s.manualStop = true
	s.hasPlayed = false
	if err := s.engine.Stop(s.currentHandle); err != nil {
		return err
	}

	s.bus.Publish(domain.NewTrackStoppedEvent(s.source))
	return nil
}

// Seek sets the playback position.
func (s *PlaybackService) Seek(position time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.seekInternal(position)
}

// SeekFraction seeks to fraction f of the track, as mapped from a progress bar.
// It is a no-op while the duration is unknown.
func (s *PlaybackService) SeekFraction(f float64) error {
	if math.IsNaN(f) || f < 0 || f > 1 {
		return domain.ErrInvalidPosition
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.currentHandle == domain.InvalidTrackHandle {
		return domain.ErrNoTrackLoaded
	}

	duration, err := s.engine.Duration(s.currentHandle)
	if err != nil {
		return err
	}
	if duration <= 0 {
		return nil
	}
	return s.seekInternal(time.Duration(f * float64(duration)))
}

func (s *PlaybackService) seekInternal(position time.Duration) error {
	if s.currentHandle == domain.InvalidTrackHandle {
		return domain.ErrNoTrackLoaded
	}

	if err := s.engine.Seek(s.currentHandle, position); err != nil {
		return err
	}

	duration, err := s.engine.Duration(s.currentHandle)
	if err != nil {
		duration = 0
	}
	s.bus.Publish(domain.NewTrackProgressEvent(position, duration))
	return nil
}

// SetVolume sets the playback volume (0.0 to 1.0).
func (s *PlaybackService) SetVolume(volume float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if math.IsNaN(volume) || volume < 0.0 || volume > 1.0 {
		return domain.ErrInvalidVolume
	}

	s.volume = volume

	// While muted the new volume is only remembered
	if !s.isMuted && s.currentHandle != domain.InvalidTrackHandle {
		if err := s.engine.SetVolume(s.currentHandle, volume); err != nil {
			return err
		}
	}

	s.bus.Publish(domain.NewVolumeChangedEvent(volume))
	return nil
}

// GetVolume returns the current volume (0.0 to 1.0).
func (s *PlaybackService) GetVolume() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.volume
}

// Mute mutes or unmutes playback. The volume setting is kept.
func (s *PlaybackService) Mute(mute bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isMuted == mute {
		return nil
	}

	s.isMuted = mute
	if s.currentHandle != domain.InvalidTrackHandle {
		if err := s.engine.SetVolume(s.currentHandle, s.effectiveVolume()); err != nil {
			return err
		}
	}

	s.bus.Publish(domain.NewMuteToggledEvent(s.isMuted))
	return nil
}

// IsMuted returns true if playback is muted.
func (s *PlaybackService) IsMuted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.isMuted
}

func (s *PlaybackService) effectiveVolume() float64 {
	if s.isMuted {
		return 0
	}
	return s.volume
}

// SuspendMonitor silences the monitoring output while leaving the track volume,
// and therefore the analysed signal, untouched. The returned func restores the
// previous gain; calling it more than once is harmless.
func (s *PlaybackService) SuspendMonitor() (restore func()) {
	if s.output == nil {
		return func() {}
	}

	previous := s.output.Gain()
	s.output.SetGain(0)
	s.logger.Debug("monitor suspended", slog.Float64("gain", previous))

	var once sync.Once
	return func() {
		once.Do(func() {
			s.output.SetGain(previous)
			s.logger.Debug("monitor restored", slog.Float64("gain", previous))
		})
	}
}

// IsPlaying reports whether the playback clock is advancing.
func (s *PlaybackService) IsPlaying() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.currentHandle == domain.InvalidTrackHandle {
		return false
	}
	status, err := s.engine.Status(s.currentHandle)
	return err == nil && status == domain.StatusPlaying
}

// CurrentTime returns the playhead, or 0 when nothing is loaded.
func (s *PlaybackService) CurrentTime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.currentHandle == domain.InvalidTrackHandle {
		return 0
	}
	position, err := s.engine.Position(s.currentHandle)
	if err != nil {
		return 0
	}
	return position
}

// Duration returns the length of the loaded track, or 0 when nothing is loaded.
func (s *PlaybackService) Duration() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.currentHandle == domain.InvalidTrackHandle {
		return 0
	}
	duration, err := s.engine.Duration(s.currentHandle)
	if err != nil {
		return 0
	}
	return duration
}

// Handle returns the engine handle of the loaded track.
func (s *PlaybackService) Handle() domain.TrackHandle {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.currentHandle
}

// Unlocked reports whether the user has pressed play at least once.
func (s *PlaybackService) Unlocked() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.unlocked
}

// GetState returns the current playback state.
func (s *PlaybackService) GetState() domain.PlaybackState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state := domain.PlaybackState{
		Source:  s.source,
		Status:  domain.StatusStopped,
		Volume:  s.volume,
		IsMuted: s.isMuted,
	}

	if s.currentHandle != domain.InvalidTrackHandle {
		if status, err := s.engine.Status(s.currentHandle); err == nil {
			state.Status = status
		}
		if position, err := s.engine.Position(s.currentHandle); err == nil {
			state.Position = position
		}
		if duration, err := s.engine.Duration(s.currentHandle); err == nil {
			state.Duration = duration
		}
	}

	return state
}

// Shutdown stops the progress routine and releases the current track.
func (s *PlaybackService) Shutdown() error {
	s.mu.Lock()
	if s.updateRunning {
		close(s.stopUpdate)
		s.updateRunning = false
	}
	// Release lock before waiting for goroutine to exit (to avoid deadlock)
	s.mu.Unlock()

	s.updateWg.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.currentHandle != domain.InvalidTrackHandle {
		s.manualStop = true
		s.releaseInternal()
	}
	return nil
}

// startUpdateRoutine starts a goroutine that periodically publishes progress events.
func (s *PlaybackService) startUpdateRoutine() {
	s.mu.Lock()
	if s.updateRunning {
		s.mu.Unlock()
		return
	}
	s.updateRunning = true
	s.updateWg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.updateWg.Done()
		ticker := time.NewTicker(s.updateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-s.stopUpdate:
				return
			case <-ticker.C:
				s.publishProgressUpdate()
			}
		}
	}()
}

// publishProgressUpdate publishes a progress event and detects the natural end of the track.
func (s *PlaybackService) publishProgressUpdate() {
	s.mu.RLock()

	if s.currentHandle == domain.InvalidTrackHandle {
		s.mu.RUnlock()
		return
	}

	status, err := s.engine.Status(s.currentHandle)
	if err != nil {
		s.mu.RUnlock()
		return
	}
	position, err := s.engine.Position(s.currentHandle)
	if err != nil {
		s.mu.RUnlock()
		return
	}
	duration, err := s.engine.Duration(s.currentHandle)
	if err != nil {
		s.mu.RUnlock()
		return
	}

	shouldFinish := status == domain.StatusStopped && !s.manualStop && s.hasPlayed
	handle := s.currentHandle
	s.mu.RUnlock()

	if status == domain.StatusPlaying || shouldFinish {
		s.bus.Publish(domain.NewTrackProgressEvent(position, duration))
	}

	if shouldFinish {
		s.handleTrackFinished(handle)
	}
}

// handleTrackFinished moves a naturally ended track to Stopped and reports it once.
func (s *PlaybackService) handleTrackFinished(handle domain.TrackHandle) {
	s.mu.Lock()
	// The track may have been replaced or replayed while unlocked
	if s.currentHandle != handle || !s.hasPlayed {
		s.mu.Unlock()
		return
	}
	s.hasPlayed = false
	source := s.source
	s.mu.Unlock()

	s.logger.Debug("track completed", slog.String("source", source))
	s.bus.Publish(domain.NewTrackCompletedEvent(source))
}

// Verify that PlaybackService implements the interfaces the renderer and export depend on
var (
	_ ports.PlaybackGate = (*PlaybackService)(nil)
	_ interface {
		LoadTrack(string) error
		Play() error
		TriggerPlay() error
		Pause() error
		Stop() error
		Seek(time.Duration) error
		SeekFraction(float64) error
		SetVolume(float64) error
		GetVolume() float64
		Mute(bool) error
		IsMuted() bool
		CurrentTime() time.Duration
		Duration() time.Duration
		GetState() domain.PlaybackState
		SuspendMonitor() func()
		Shutdown() error
	} = (*PlaybackService)(nil)
)
