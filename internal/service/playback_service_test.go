package service

import (
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tejashwikalptaru/govis/internal/domain"
	"github.com/tejashwikalptaru/govis/internal/testutil"
)

func TestPlaybackService_LoadTrack(t *testing.T) {
	service, _, bus, _ := newTestPlaybackService(t)
	defer service.Shutdown()

	var loaded domain.TrackLoadedEvent
	bus.Subscribe(domain.EventTrackLoaded, func(e domain.Event) {
		loaded = e.(domain.TrackLoadedEvent)
	})

	require.NoError(t, service.LoadTrack("/test/song.mp3"))

	state := service.GetState()
	assert.Equal(t, "/test/song.mp3", state.Source)
	assert.Equal(t, domain.StatusStopped, state.Status)
	assert.Equal(t, 3*time.Minute, state.Duration)

	assert.Equal(t, "/test/song.mp3", loaded.Source)
	assert.NotEqual(t, domain.InvalidTrackHandle, loaded.Handle)
	assert.Equal(t, loaded.Handle, service.Handle())
}

func TestPlaybackService_LoadTrack_Failure(t *testing.T) {
	service, engine, bus, _ := newTestPlaybackService(t)
	defer service.Shutdown()

	var errorEvent domain.TrackErrorEvent
	bus.Subscribe(domain.EventTrackError, func(e domain.Event) {
		errorEvent = e.(domain.TrackErrorEvent)
	})

	engine.SetFailLoad(true)
	err := service.LoadTrack("/nonexistent/file.mp3")
	require.Error(t, err)

	var engineErr *domain.AudioEngineError
	assert.True(t, errors.As(err, &engineErr))
	assert.Equal(t, "/nonexistent/file.mp3", errorEvent.Source)
	assert.Error(t, errorEvent.Err)
	assert.Equal(t, domain.InvalidTrackHandle, service.Handle())
}

func TestPlaybackService_LoadTrack_ReplacesCurrentTrack(t *testing.T) {
	service, engine, _, _ := newTestPlaybackService(t)
	defer service.Shutdown()

	require.NoError(t, service.LoadTrack("/test/one.mp3"))
	require.NoError(t, service.Play())
	require.NoError(t, service.LoadTrack("/test/two.mp3"))

	state := service.GetState()
	assert.Equal(t, "/test/two.mp3", state.Source)
	assert.Equal(t, domain.StatusStopped, state.Status)
	assert.Equal(t, 1, engine.GetLoadedTracks())
}

func TestPlaybackService_Play(t *testing.T) {
	service, _, bus, output := newTestPlaybackService(t)
	defer service.Shutdown()

	var started domain.TrackStartedEvent
	bus.Subscribe(domain.EventTrackStarted, func(e domain.Event) {
		started = e.(domain.TrackStartedEvent)
	})

	require.NoError(t, service.LoadTrack("/test/song.mp3"))
	require.NoError(t, service.Play())

	assert.True(t, service.IsPlaying())
	assert.Equal(t, domain.StatusPlaying, service.GetState().Status)
	assert.Equal(t, "/test/song.mp3", started.Source)
	assert.False(t, started.Synthetic)

	// The default hook resumes the output context
	assert.Equal(t, domain.ContextRunning, output.State())
	assert.Equal(t, 1, output.Resumes())
}

func TestPlaybackService_Play_NoTrackLoaded(t *testing.T) {
	service, _, _, output := newTestPlaybackService(t)
	defer service.Shutdown()

	err := service.Play()
	assert.ErrorIs(t, err, domain.ErrNoTrackLoaded)

	// The press still unlocks the context
	assert.True(t, service.Unlocked())
	assert.Equal(t, domain.ContextRunning, output.State())
}

func TestPlaybackService_Play_AlreadyPlaying(t *testing.T) {
	service, _, bus, output := newTestPlaybackService(t)
	defer service.Shutdown()

	count := 0
	bus.Subscribe(domain.EventTrackStarted, func(domain.Event) { count++ })

	require.NoError(t, service.LoadTrack("/test/song.mp3"))
	require.NoError(t, service.Play())
	require.NoError(t, service.Play())

	assert.Equal(t, 1, count)
	// Resume only runs while the context is suspended
	assert.Equal(t, 1, output.Resumes())
}

func TestPlaybackService_Play_EngineFailure(t *testing.T) {
	service, engine, bus, _ := newTestPlaybackService(t)
	defer service.Shutdown()

	errorCount := 0
	bus.Subscribe(domain.EventTrackError, func(domain.Event) { errorCount++ })

	require.NoError(t, service.LoadTrack("/test/song.mp3"))
	engine.SetFailPlay(true)

	err := service.Play()
	assert.ErrorIs(t, err, domain.ErrPlaybackFailed)
	assert.Equal(t, 1, errorCount)
	assert.False(t, service.IsPlaying())
}

func TestPlaybackService_TriggerPlay_LockedUntilUserPlay(t *testing.T) {
	service, _, bus, _ := newTestPlaybackService(t)
	defer service.Shutdown()

	var events []domain.TrackStartedEvent
	bus.Subscribe(domain.EventTrackStarted, func(e domain.Event) {
		events = append(events, e.(domain.TrackStartedEvent))
	})

	require.NoError(t, service.LoadTrack("/test/song.mp3"))

	err := service.TriggerPlay()
	assert.ErrorIs(t, err, domain.ErrContextLocked)
	assert.False(t, service.IsPlaying())

	require.NoError(t, service.Play())
	require.NoError(t, service.Pause())
	require.NoError(t, service.TriggerPlay())
	assert.True(t, service.IsPlaying())

	require.Len(t, events, 2)
	assert.False(t, events[0].Synthetic)
	assert.True(t, events[1].Synthetic)
}

func TestPlaybackService_FirstPlayHooks(t *testing.T) {
	service, _, _, _ := newTestPlaybackService(t)
	defer service.Shutdown()

	calls := 0
	id := service.OnFirstPlay(func() error {
		calls++
		return errors.New("hook failure does not block play")
	})

	require.NoError(t, service.LoadTrack("/test/song.mp3"))
	require.NoError(t, service.Play())
	require.NoError(t, service.Pause())
	require.NoError(t, service.Play())
	assert.Equal(t, 2, calls)

	// Synthetic plays skip the hooks
	require.NoError(t, service.Pause())
	require.NoError(t, service.TriggerPlay())
	assert.Equal(t, 2, calls)

	service.RemoveFirstPlayHook(id)
	service.RemoveFirstPlayHook("unknown")
	require.NoError(t, service.Pause())
	require.NoError(t, service.Play())
	assert.Equal(t, 2, calls)
}

func TestPlaybackService_Pause(t *testing.T) {
	service, engine, bus, _ := newTestPlaybackService(t)
	defer service.Shutdown()

	var paused domain.TrackPausedEvent
	bus.Subscribe(domain.EventTrackPaused, func(e domain.Event) {
		paused = e.(domain.TrackPausedEvent)
	})

	require.NoError(t, service.LoadTrack("/test/song.mp3"))
	require.NoError(t, service.Play())
	require.NoError(t, engine.SimulateProgress(service.Handle(), 5*time.Second))
	require.NoError(t, service.Pause())

	assert.Equal(t, domain.StatusPaused, service.GetState().Status)
	assert.Equal(t, 5*time.Second, paused.Position)
	assert.Equal(t, 5*time.Second, service.CurrentTime())

	require.NoError(t, service.Play())
	assert.Equal(t, 5*time.Second, service.CurrentTime())
}

func TestPlaybackService_Pause_NoTrack(t *testing.T) {
	service, _, _, _ := newTestPlaybackService(t)
	defer service.Shutdown()

	assert.ErrorIs(t, service.Pause(), domain.ErrNoTrackLoaded)
}

func TestPlaybackService_Stop(t *testing.T) {
	service, engine, bus, _ := newTestPlaybackService(t)
	defer service.Shutdown()

	stopped := 0
	bus.Subscribe(domain.EventTrackStopped, func(domain.Event) { stopped++ })

	require.NoError(t, service.LoadTrack("/test/song.mp3"))
	require.NoError(t, service.Play())
	require.NoError(t, engine.SimulateProgress(service.Handle(), 10*time.Second))
	require.NoError(t, service.Stop())

	state := service.GetState()
	assert.Equal(t, domain.StatusStopped, state.Status)
	assert.Equal(t, time.Duration(0), state.Position)
	assert.Equal(t, "/test/song.mp3", state.Source, "stop keeps the track loaded")
	assert.Equal(t, 1, stopped)

	// Stopping is not a natural end
	completed := 0
	bus.Subscribe(domain.EventTrackCompleted, func(domain.Event) { completed++ })
	service.publishProgressUpdate()
	assert.Equal(t, 0, completed)
}

func TestPlaybackService_Seek(t *testing.T) {
	service, _, bus, _ := newTestPlaybackService(t)
	defer service.Shutdown()

	var progress domain.TrackProgressEvent
	bus.Subscribe(domain.EventTrackProgress, func(e domain.Event) {
		progress = e.(domain.TrackProgressEvent)
	})

	require.NoError(t, service.LoadTrack("/test/song.mp3"))
	require.NoError(t, service.Seek(30*time.Second))

	assert.Equal(t, 30*time.Second, service.CurrentTime())
	assert.Equal(t, 30*time.Second, progress.Position)
	assert.Equal(t, 3*time.Minute, progress.Duration)

	assert.ErrorIs(t, service.Seek(10*time.Minute), domain.ErrInvalidPosition)
}

func TestPlaybackService_SeekFraction(t *testing.T) {
	service, engine, _, _ := newTestPlaybackService(t)
	defer service.Shutdown()

	assert.ErrorIs(t, service.SeekFraction(0.5), domain.ErrNoTrackLoaded)

	require.NoError(t, service.LoadTrack("/test/song.mp3"))
	require.NoError(t, service.SeekFraction(0.5))
	assert.Equal(t, 90*time.Second, service.CurrentTime())

	require.NoError(t, service.SeekFraction(1))
	assert.Equal(t, 3*time.Minute, service.CurrentTime())

	for _, f := range []float64{-0.1, 1.5, math.NaN()} {
		assert.ErrorIs(t, service.SeekFraction(f), domain.ErrInvalidPosition)
	}

	// Zero duration is a no-op rather than a division by zero
	engine.SetTrackDuration(0)
	require.NoError(t, service.LoadTrack("/test/empty.mp3"))
	require.NoError(t, service.SeekFraction(0.5))
	assert.Equal(t, time.Duration(0), service.CurrentTime())
}

func TestPlaybackService_SetVolume(t *testing.T) {
	service, engine, bus, _ := newTestPlaybackService(t)
	defer service.Shutdown()

	var changed domain.VolumeChangedEvent
	bus.Subscribe(domain.EventVolumeChanged, func(e domain.Event) {
		changed = e.(domain.VolumeChangedEvent)
	})

	require.NoError(t, service.LoadTrack("/test/song.mp3"))
	require.NoError(t, service.SetVolume(0.5))

	assert.Equal(t, 0.5, service.GetVolume())
	assert.Equal(t, 0.5, changed.Volume)

	engineVolume, err := engine.GetVolume(service.Handle())
	require.NoError(t, err)
	assert.Equal(t, 0.5, engineVolume)
}

func TestPlaybackService_SetVolume_InvalidRange(t *testing.T) {
	service, _, _, _ := newTestPlaybackService(t)
	defer service.Shutdown()

	for _, v := range []float64{-0.1, 1.1, math.NaN()} {
		assert.ErrorIs(t, service.SetVolume(v), domain.ErrInvalidVolume)
	}
	assert.Equal(t, 0.8, service.GetVolume())

	require.NoError(t, service.SetVolume(0))
	require.NoError(t, service.SetVolume(1))
}

func TestPlaybackService_Mute(t *testing.T) {
	service, engine, bus, _ := newTestPlaybackService(t)
	defer service.Shutdown()

	var toggles []bool
	bus.Subscribe(domain.EventMuteToggled, func(e domain.Event) {
		toggles = append(toggles, e.(domain.MuteToggledEvent).Muted)
	})

	require.NoError(t, service.LoadTrack("/test/song.mp3"))
	require.NoError(t, service.SetVolume(0.6))
	require.NoError(t, service.Mute(true))
	require.NoError(t, service.Mute(true))

	assert.True(t, service.IsMuted())
	engineVolume, _ := engine.GetVolume(service.Handle())
	assert.Equal(t, 0.0, engineVolume)

	// Volume changes while muted are remembered, not applied
	require.NoError(t, service.SetVolume(0.3))
	engineVolume, _ = engine.GetVolume(service.Handle())
	assert.Equal(t, 0.0, engineVolume)

	require.NoError(t, service.Mute(false))
	engineVolume, _ = engine.GetVolume(service.Handle())
	assert.Equal(t, 0.3, engineVolume)

	assert.Equal(t, []bool{true, false}, toggles)
}

func TestPlaybackService_Mute_AppliesToNextTrack(t *testing.T) {
	service, engine, _, _ := newTestPlaybackService(t)
	defer service.Shutdown()

	require.NoError(t, service.Mute(true))
	require.NoError(t, service.LoadTrack("/test/song.mp3"))

	engineVolume, err := engine.GetVolume(service.Handle())
	require.NoError(t, err)
	assert.Equal(t, 0.0, engineVolume)
}

func TestPlaybackService_SuspendMonitor(t *testing.T) {
	service, engine, _, output := newTestPlaybackService(t)
	defer service.Shutdown()

	require.NoError(t, service.LoadTrack("/test/song.mp3"))
	output.SetGain(0.7)

	restore := service.SuspendMonitor()
	assert.Equal(t, 0.0, output.Gain())

	// The track volume, which feeds analysis, is untouched
	engineVolume, _ := engine.GetVolume(service.Handle())
	assert.Equal(t, 0.8, engineVolume)
	assert.False(t, service.IsMuted())

	restore()
	assert.Equal(t, 0.7, output.Gain())

	output.SetGain(0.2)
	restore()
	assert.Equal(t, 0.2, output.Gain(), "restore runs once")
}

func TestPlaybackService_SuspendMonitor_Headless(t *testing.T) {
	service, engine, bus, _ := newTestPlaybackService(t)
	defer service.Shutdown()

	headless := NewPlaybackService(service.logger, engine, bus, nil)
	defer headless.Shutdown()

	restore := headless.SuspendMonitor()
	require.NotNil(t, restore)
	restore()
}

func TestPlaybackService_GetState(t *testing.T) {
	service, _, _, _ := newTestPlaybackService(t)
	defer service.Shutdown()

	state := service.GetState()
	assert.Equal(t, domain.StatusStopped, state.Status)
	assert.Equal(t, "", state.Source)
	assert.Equal(t, 0.0, state.Progress())
	assert.Equal(t, time.Duration(0), service.Duration())
	assert.Equal(t, time.Duration(0), service.CurrentTime())

	require.NoError(t, service.LoadTrack("/test/song.mp3"))
	require.NoError(t, service.Seek(45*time.Second))

	state = service.GetState()
	assert.Equal(t, 45*time.Second, state.Position)
	assert.Equal(t, 3*time.Minute, state.Duration)
	assert.InDelta(t, 0.25, state.Progress(), 1e-9)
	assert.Equal(t, 0.8, state.Volume)
}

func TestPlaybackService_ProgressEvents(t *testing.T) {
	service, engine, bus, _ := newTestPlaybackService(t)
	defer service.Shutdown()

	var (
		mu     sync.Mutex
		events []domain.TrackProgressEvent
	)
	bus.Subscribe(domain.EventTrackProgress, func(e domain.Event) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, e.(domain.TrackProgressEvent))
	})

	require.NoError(t, service.LoadTrack("/test/song.mp3"))
	require.NoError(t, service.Play())
	require.NoError(t, engine.SimulateProgress(service.Handle(), 20*time.Second))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) > 0
	}, 2*time.Second, 20*time.Millisecond)

	mu.Lock()
	last := events[len(events)-1]
	mu.Unlock()
	assert.Equal(t, 20*time.Second, last.Position)
	assert.Equal(t, 3*time.Minute, last.Duration)
}

func TestPlaybackService_ProgressSilentWhilePaused(t *testing.T) {
	service, _, bus, _ := newTestPlaybackService(t)
	defer service.Shutdown()

	count := 0
	bus.Subscribe(domain.EventTrackProgress, func(domain.Event) { count++ })

	require.NoError(t, service.LoadTrack("/test/song.mp3"))
	service.publishProgressUpdate()
	assert.Equal(t, 0, count)
}

func TestPlaybackService_TrackCompleted(t *testing.T) {
	service, engine, bus, _ := newTestPlaybackService(t)
	defer service.Shutdown()

	var (
		mu        sync.Mutex
		completed []domain.TrackCompletedEvent
	)
	bus.Subscribe(domain.EventTrackCompleted, func(e domain.Event) {
		mu.Lock()
		defer mu.Unlock()
		completed = append(completed, e.(domain.TrackCompletedEvent))
	})

	require.NoError(t, service.LoadTrack("/test/song.mp3"))
	require.NoError(t, service.Play())
	require.NoError(t, engine.SimulateProgress(service.Handle(), 4*time.Minute))

	service.publishProgressUpdate()
	service.publishProgressUpdate()

	mu.Lock()
	require.Len(t, completed, 1, "natural end is reported once")
	assert.Equal(t, "/test/song.mp3", completed[0].Source)
	mu.Unlock()
	assert.False(t, service.IsPlaying())
	assert.Equal(t, 3*time.Minute, service.CurrentTime())

	// Playing again restarts from the beginning
	require.NoError(t, service.Play())
	assert.Equal(t, time.Duration(0), service.CurrentTime())
}

func TestPlaybackService_ConcurrentAccess(t *testing.T) {
	service, _, _, _ := newTestPlaybackService(t)
	defer service.Shutdown()

	require.NoError(t, service.LoadTrack("/test/song.mp3"))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(3)
		go func(v float64) {
			defer wg.Done()
			_ = service.SetVolume(v)
		}(float64(i) / 10)
		go func() {
			defer wg.Done()
			_ = service.Play()
			_ = service.Pause()
		}()
		go func() {
			defer wg.Done()
			_ = service.GetState()
			_ = service.IsPlaying()
		}()
	}
	wg.Wait()

	v := service.GetVolume()
	assert.True(t, v >= 0 && v <= 1)
}

func TestPlaybackService_Shutdown(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	service, engine, _, _ := newTestPlaybackService(t)
	require.NoError(t, service.LoadTrack("/test/song.mp3"))
	require.NoError(t, service.Play())

	require.NoError(t, service.Shutdown())
	assert.Equal(t, 0, engine.GetLoadedTracks())
	assert.Equal(t, domain.InvalidTrackHandle, service.Handle())

	// Idempotent
	require.NoError(t, service.Shutdown())
}
