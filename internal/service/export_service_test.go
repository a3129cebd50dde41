package service

import (
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tejashwikalptaru/govis/internal/adapter/audio/mock"
	"github.com/tejashwikalptaru/govis/internal/adapter/eventbus"
	"github.com/tejashwikalptaru/govis/internal/adapter/storage"
	"github.com/tejashwikalptaru/govis/internal/domain"
	"github.com/tejashwikalptaru/govis/internal/logger"
	"github.com/tejashwikalptaru/govis/internal/ports"
	"github.com/tejashwikalptaru/govis/internal/visual"
)

var errDiskFull = errors.New("disk full")

type fakeFrameWriter struct {
	mu        sync.Mutex
	job       ports.EncodeJob
	frames    int
	failAfter int
	closed    bool
	aborted   bool
}

func (w *fakeFrameWriter) WriteFrame(frame *image.RGBA) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if frame.Bounds() != image.Rect(0, 0, w.job.Width, w.job.Height) {
		return errors.New("bad frame size")
	}
	if w.failAfter > 0 && w.frames >= w.failAfter {
		return errDiskFull
	}
	w.frames++
	return nil
}

func (w *fakeFrameWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return os.WriteFile(w.job.Output, []byte("video"), 0o600)
}

func (w *fakeFrameWriter) Abort() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.aborted = true
}

func (w *fakeFrameWriter) Frames() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.frames
}

type fakeEncoder struct {
	mu        sync.Mutex
	writer    *fakeFrameWriter
	failAfter int
	startErr  error
	release   chan struct{} // Start blocks until closed when set
}

func (e *fakeEncoder) Start(_ context.Context, job ports.EncodeJob) (ports.FrameWriter, error) {
	if e.release != nil {
		<-e.release
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.startErr != nil {
		return nil, e.startErr
	}
	e.writer = &fakeFrameWriter{job: job, failAfter: e.failAfter}
	return e.writer, nil
}

func (e *fakeEncoder) Writer() *fakeFrameWriter {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.writer
}

type exportFixture struct {
	service *ExportService
	engine  *mock.Engine
	encoder *fakeEncoder
	bus     *eventbus.SyncEventBus
	outDir  string
	events  *eventLog
}

// eventLog collects export events from any goroutine.
type eventLog struct {
	mu     sync.Mutex
	events []domain.Event
}

func (l *eventLog) add(e domain.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) ofType(t domain.EventType) []domain.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []domain.Event
	for _, e := range l.events {
		if e.Type() == t {
			out = append(out, e)
		}
	}
	return out
}

func newExportFixture(t *testing.T) *exportFixture {
	t.Helper()

	engine := mock.NewEngine()
	require.NoError(t, engine.Initialize(44100))
	engine.SetSignal(mock.Sine(440))
	engine.SetTrackDuration(time.Second)

	bus := eventbus.NewSyncEventBus(nil)
	log := &eventLog{}
	for _, et := range []domain.EventType{
		domain.EventExportStarted, domain.EventExportProgress,
		domain.EventExportCompleted, domain.EventExportFailed,
	} {
		bus.Subscribe(et, log.add)
	}

	cfg := visual.DefaultSceneConfig()
	cfg.Dust.Count = 16

	outDir := t.TempDir()
	encoder := &fakeEncoder{}
	service := NewExportService(logger.NewTestLogger(), bus, encoder, storage.NewLocalSink(outDir), engine, nil,
		ExportConfig{Scene: cfg, FFTSize: 128, WorkDir: t.TempDir()})

	return &exportFixture{service: service, engine: engine, encoder: encoder, bus: bus, outDir: outDir, events: log}
}

func smallSettings(mode domain.ExportMode) domain.ExportSettings {
	return domain.ExportSettings{Width: 1280, Height: 720, FPS: 24, Mode: mode}
}

func TestValidateSettings(t *testing.T) {
	def, err := ValidateSettings(domain.ExportSettings{})
	require.NoError(t, err)
	assert.Equal(t, DefaultExportSettings(), def)
	assert.Equal(t, 1920, def.Width)
	assert.Equal(t, 1080, def.Height)

	derived, err := ValidateSettings(domain.ExportSettings{Width: 1280, FPS: 30})
	require.NoError(t, err)
	assert.Equal(t, 720, derived.Height)

	tests := []struct {
		name     string
		settings domain.ExportSettings
		field    string
	}{
		{"fps too low", domain.ExportSettings{FPS: 12}, "fps"},
		{"fps too high", domain.ExportSettings{FPS: 120}, "fps"},
		{"too wide", domain.ExportSettings{Width: 3840}, "width"},
		{"too narrow", domain.ExportSettings{Width: 640}, "width"},
		{"wrong aspect", domain.ExportSettings{Width: 1920, Height: 1200}, "height"},
		{"odd height", domain.ExportSettings{Width: 1100}, "width"},
		{"unknown mode", domain.ExportSettings{Mode: "turbo"}, "mode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateSettings(tt.settings)
			var validationErr *domain.ValidationError
			require.True(t, errors.As(err, &validationErr), "got %v", err)
			assert.Equal(t, tt.field, validationErr.Field)
		})
	}
}

func TestExportService_Offline(t *testing.T) {
	f := newExportFixture(t)

	result, err := f.service.Export(context.Background(),
		domain.SceneAssets{AudioPath: "/music/song.mp3", Title: "Song", Author: "Band"},
		smallSettings(domain.ExportOffline))
	require.NoError(t, err)

	assert.NotEmpty(t, result.JobID)
	assert.Equal(t, 24, result.Frames, "one second at 24 fps")
	assert.Equal(t, filepath.Join(f.outDir, "govis-"+result.JobID+".mp4"), result.Location)
	assert.FileExists(t, result.Location)

	w := f.encoder.Writer()
	require.NotNil(t, w)
	assert.Equal(t, 24, w.Frames())
	assert.True(t, w.closed)
	assert.False(t, w.aborted)
	assert.Equal(t, "/music/song.mp3", w.job.AudioPath)
	assert.Equal(t, 1280, w.job.Width)
	assert.Equal(t, 720, w.job.Height)
	assert.Equal(t, 24, w.job.FPS)

	require.Len(t, f.events.ofType(domain.EventExportStarted), 1)
	progress := f.events.ofType(domain.EventExportProgress)
	require.NotEmpty(t, progress)
	last := progress[len(progress)-1].(domain.ExportProgressEvent).Progress
	assert.Equal(t, 100.0, last.Percentage())
	completed := f.events.ofType(domain.EventExportCompleted)
	require.Len(t, completed, 1)
	assert.Equal(t, result.JobID, completed[0].(domain.ExportCompletedEvent).Result.JobID)
	assert.Empty(t, f.events.ofType(domain.EventExportFailed))

	// The export track is released
	assert.Equal(t, 0, f.engine.GetLoadedTracks())
	assert.False(t, f.service.Running())
}

func TestExportService_OfflineExplicitOutput(t *testing.T) {
	f := newExportFixture(t)
	settings := smallSettings(domain.ExportOffline)
	settings.Output = filepath.Join(t.TempDir(), "clip.mp4")

	result, err := f.service.Export(context.Background(), domain.SceneAssets{AudioPath: "/music/song.mp3"}, settings)
	require.NoError(t, err)
	assert.Equal(t, settings.Output, result.Path)
	assert.Equal(t, filepath.Join(f.outDir, "clip.mp4"), result.Location)
}

func TestExportService_RequiresAudio(t *testing.T) {
	f := newExportFixture(t)

	_, err := f.service.Export(context.Background(), domain.SceneAssets{Title: "x"}, smallSettings(domain.ExportOffline))
	var validationErr *domain.ValidationError
	assert.True(t, errors.As(err, &validationErr))
	assert.Empty(t, f.events.ofType(domain.EventExportStarted))
}

func TestExportService_LoadFailure(t *testing.T) {
	f := newExportFixture(t)
	f.engine.SetFailLoad(true)

	_, err := f.service.Export(context.Background(), domain.SceneAssets{AudioPath: "/music/bad.mp3"}, smallSettings(domain.ExportOffline))

	var exportErr *domain.ExportError
	require.True(t, errors.As(err, &exportErr))
	assert.Equal(t, "load", exportErr.Stage)
	assert.Len(t, f.events.ofType(domain.EventExportFailed), 1)
	assert.Nil(t, f.encoder.Writer(), "encoder never started")
}

func TestExportService_EncoderStartFailure(t *testing.T) {
	f := newExportFixture(t)
	f.encoder.startErr = errors.New("ffmpeg not found")

	_, err := f.service.Export(context.Background(), domain.SceneAssets{AudioPath: "/music/song.mp3"}, smallSettings(domain.ExportOffline))

	var exportErr *domain.ExportError
	require.True(t, errors.As(err, &exportErr))
	assert.Equal(t, "encode", exportErr.Stage)
	assert.Equal(t, 0, f.engine.GetLoadedTracks())
}

func TestExportService_WriteFailureAborts(t *testing.T) {
	f := newExportFixture(t)
	f.encoder.failAfter = 5

	_, err := f.service.Export(context.Background(), domain.SceneAssets{AudioPath: "/music/song.mp3"}, smallSettings(domain.ExportOffline))
	assert.ErrorIs(t, err, errDiskFull)

	w := f.encoder.Writer()
	assert.True(t, w.aborted)
	assert.False(t, w.closed)
	assert.Len(t, f.events.ofType(domain.EventExportFailed), 1)
}

func TestExportService_CancelledContext(t *testing.T) {
	f := newExportFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.service.Export(ctx, domain.SceneAssets{AudioPath: "/music/song.mp3"}, smallSettings(domain.ExportOffline))
	assert.True(t, IsCancelled(err))
	assert.ErrorIs(t, err, domain.ErrExportCancelled)
	assert.True(t, f.encoder.Writer().aborted)
}

func TestExportService_OneJobAtATime(t *testing.T) {
	f := newExportFixture(t)
	f.encoder.release = make(chan struct{})

	errs := make(chan error, 1)
	go func() {
		_, err := f.service.Export(context.Background(), domain.SceneAssets{AudioPath: "/music/song.mp3"}, smallSettings(domain.ExportOffline))
		errs <- err
	}()

	require.Eventually(t, f.service.Running, 2*time.Second, 5*time.Millisecond)

	_, err := f.service.Export(context.Background(), domain.SceneAssets{AudioPath: "/music/other.mp3"}, smallSettings(domain.ExportOffline))
	assert.ErrorIs(t, err, domain.ErrExportInProgress)

	close(f.encoder.release)
	require.NoError(t, <-errs)
	assert.False(t, f.service.Running())
}

func TestExportService_Cancel(t *testing.T) {
	f := newExportFixture(t)
	f.encoder.release = make(chan struct{})

	errs := make(chan error, 1)
	go func() {
		_, err := f.service.Export(context.Background(), domain.SceneAssets{AudioPath: "/music/song.mp3"}, smallSettings(domain.ExportOffline))
		errs <- err
	}()

	require.Eventually(t, f.service.Running, 2*time.Second, 5*time.Millisecond)
	f.service.Cancel()
	close(f.encoder.release)

	assert.True(t, IsCancelled(<-errs))
	f.service.Cancel() // no job: no-op
}

// liveFixture wires a running preview for realtime exports.
type liveFixture struct {
	*exportFixture
	playback *PlaybackService
	render   *RenderService
	output   *fakeOutput
}

func newLiveFixture(t *testing.T) *liveFixture {
	t.Helper()

	f := newExportFixture(t)
	f.engine.SetTrackDuration(3 * time.Minute)

	output := newFakeOutput()
	output.SetGain(0.9)
	playback := NewPlaybackService(logger.NewTestLogger(), f.engine, f.bus, output)
	t.Cleanup(func() { _ = playback.Shutdown() })

	require.NoError(t, playback.LoadTrack("/music/live.mp3"))

	cfg := visual.DefaultSceneConfig()
	cfg.Dust.Count = 16
	cfg.Width = 1054
	scene, err := visual.NewScene(logger.NewTestLogger(), silentSource{}, playback, nil, f.bus, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = scene.Close() })

	render := NewRenderService(logger.NewTestLogger(), scene, 60)
	t.Cleanup(render.Stop)

	f.service.AttachLive(playback, render)
	return &liveFixture{exportFixture: f, playback: playback, render: render, output: output}
}

func TestExportService_Realtime(t *testing.T) {
	f := newLiveFixture(t)
	require.NoError(t, f.render.Start(context.Background()))

	// The user unlocks the context once
	require.NoError(t, f.playback.Play())
	require.NoError(t, f.playback.Pause())
	require.NoError(t, f.playback.Seek(30*time.Second))

	go func() {
		// Let a few frames through, then run the track to its end
		for {
			if w := f.encoder.Writer(); w != nil && w.Frames() >= 3 && f.playback.IsPlaying() {
				assert.Equal(t, 0.0, f.output.Gain(), "monitor is muted while capturing")
				_ = f.engine.SimulateProgress(f.playback.Handle(), 4*time.Minute)
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
	}()

	result, err := f.service.Export(context.Background(), domain.SceneAssets{AudioPath: "/music/live.mp3"}, smallSettings(domain.ExportRealtime))
	require.NoError(t, err)

	assert.GreaterOrEqual(t, result.Frames, 3)
	assert.FileExists(t, result.Location)

	w := f.encoder.Writer()
	assert.True(t, w.closed)
	assert.Equal(t, 60, w.job.FPS, "frames arrive at the render rate")
	assert.Equal(t, 0.9, f.output.Gain(), "monitor gain restored")
	assert.Len(t, f.events.ofType(domain.EventExportCompleted), 1)
}

func TestExportService_RealtimeLockedContext(t *testing.T) {
	f := newLiveFixture(t)
	require.NoError(t, f.render.Start(context.Background()))

	_, err := f.service.Export(context.Background(), domain.SceneAssets{AudioPath: "/music/live.mp3"}, smallSettings(domain.ExportRealtime))
	assert.ErrorIs(t, err, domain.ErrContextLocked)

	assert.True(t, f.encoder.Writer().aborted)
	assert.Equal(t, 0.9, f.output.Gain())
	assert.False(t, f.playback.IsPlaying())
}

func TestExportService_RealtimeNeedsLivePreview(t *testing.T) {
	f := newLiveFixture(t)

	_, err := f.service.Export(context.Background(), domain.SceneAssets{AudioPath: "/music/live.mp3"}, smallSettings(domain.ExportRealtime))
	assert.ErrorIs(t, err, domain.ErrNotInitialized)
	assert.Nil(t, f.encoder.Writer())
}

func TestExportService_RealtimeCancel(t *testing.T) {
	f := newLiveFixture(t)
	require.NoError(t, f.render.Start(context.Background()))
	require.NoError(t, f.playback.Play())
	require.NoError(t, f.playback.Pause())

	go func() {
		for {
			if w := f.encoder.Writer(); w != nil && w.Frames() >= 2 {
				f.service.Cancel()
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
	}()

	_, err := f.service.Export(context.Background(), domain.SceneAssets{AudioPath: "/music/live.mp3"}, smallSettings(domain.ExportRealtime))
	assert.True(t, IsCancelled(err))
	assert.True(t, f.encoder.Writer().aborted)
	assert.False(t, f.playback.IsPlaying())
	assert.Equal(t, 0.9, f.output.Gain())
}
