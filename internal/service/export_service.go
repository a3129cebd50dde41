package service

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tejashwikalptaru/govis/internal/analysis"
	"github.com/tejashwikalptaru/govis/internal/domain"
	"github.com/tejashwikalptaru/govis/internal/ports"
	"github.com/tejashwikalptaru/govis/internal/visual"
)

// Export frame rate bounds.
const (
	MinExportFPS = 24
	MaxExportFPS = 60
)

// ExportConfig holds what the export service needs besides its collaborators.
type ExportConfig struct {
	// Scene is the composition used for offline renders; Width is overridden
	// by the export settings.
	Scene visual.SceneConfig

	// FFTSize is the analyser size for offline renders
	FFTSize int

	// WorkDir receives encoder output before it is handed to the sink
	// ("" selects the system temp directory)
	WorkDir string
}

// DefaultExportSettings returns the canonical 1920x1080 offline export at 60 fps.
func DefaultExportSettings() domain.ExportSettings {
	return domain.ExportSettings{
		Width:  int(visual.CanonicalWidth),
		Height: int(math.Round(visual.CanonicalWidth * visual.AspectRatio)),
		FPS:    MaxExportFPS,
		Mode:   domain.ExportOffline,
	}
}

// ExportService renders the composition to a video file.
//
// Offline exports run a private scene on a frame clock, so they are
// deterministic and faster than real time. Realtime exports capture the live
// preview while the track plays with the monitor muted.
// One job runs at a time.
type ExportService struct {
	logger  *slog.Logger
	bus     ports.EventBus
	encoder ports.VideoEncoder
	sink    ports.ExportSink
	engine  ports.AudioEngine
	images  ports.ImageLoader
	cfg     ExportConfig

	// realtime collaborators, set by AttachLive
	playback *PlaybackService
	render   *RenderService

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
}

// NewExportService creates an export service. images may be nil.
func NewExportService(
	logger *slog.Logger,
	bus ports.EventBus,
	encoder ports.VideoEncoder,
	sink ports.ExportSink,
	engine ports.AudioEngine,
	images ports.ImageLoader,
	cfg ExportConfig,
) *ExportService {
	if cfg.FFTSize == 0 {
		cfg.FFTSize = 128
	}
	if cfg.Scene.Layout.Specs == nil {
		cfg.Scene = visual.DefaultSceneConfig()
	}
	return &ExportService{
		logger:  logger,
		bus:     bus,
		encoder: encoder,
		sink:    sink,
		engine:  engine,
		images:  images,
		cfg:     cfg,
	}
}

// AttachLive enables realtime exports from the live playback and render loop.
func (s *ExportService) AttachLive(playback *PlaybackService, render *RenderService) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playback = playback
	s.render = render
}

// Running reports whether an export is in progress.
func (s *ExportService) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Cancel aborts the running export, if any.
func (s *ExportService) Cancel() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// ValidateSettings fills zero values from DefaultExportSettings and checks the rest.
func ValidateSettings(settings domain.ExportSettings) (domain.ExportSettings, error) {
	def := DefaultExportSettings()
	if settings.Width == 0 {
		settings.Width = def.Width
	}
	if settings.Height == 0 {
		settings.Height = int(math.Round(float64(settings.Width) * visual.AspectRatio))
	}
	if settings.FPS == 0 {
		settings.FPS = def.FPS
	}
	if settings.Mode == "" {
		settings.Mode = def.Mode
	}

	switch {
	case settings.FPS < MinExportFPS || settings.FPS > MaxExportFPS:
		return settings, domain.NewValidationError("fps", settings.FPS, fmt.Sprintf("must be between %d and %d", MinExportFPS, MaxExportFPS))
	case settings.Width < int(visual.DefaultMinWidth) || settings.Width > int(visual.CanonicalWidth):
		return settings, domain.NewValidationError("width", settings.Width, "outside the supported range")
	case settings.Height != int(math.Round(float64(settings.Width)*visual.AspectRatio)):
		return settings, domain.NewValidationError("height", settings.Height, "must keep the 16:9 aspect ratio")
	case settings.Width%2 != 0 || settings.Height%2 != 0:
		return settings, domain.NewValidationError("width", settings.Width, "yuv420p needs even dimensions")
	case settings.Mode != domain.ExportOffline && settings.Mode != domain.ExportRealtime:
		return settings, domain.NewValidationError("mode", settings.Mode, "must be offline or realtime")
	}
	return settings, nil
}

// Export renders assets to a video according to settings and hands the file to the sink.
func (s *ExportService) Export(ctx context.Context, assets domain.SceneAssets, settings domain.ExportSettings) (domain.ExportResult, error) {
	settings, err := ValidateSettings(settings)
	if err != nil {
		return domain.ExportResult{}, err
	}
	if assets.AudioPath == "" {
		return domain.ExportResult{}, domain.NewValidationError("audio", assets.AudioPath, "an audio track is required")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return domain.ExportResult{}, domain.ErrExportInProgress
	}
	s.running = true
	s.cancel = cancel
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.cancel = nil
		s.mu.Unlock()
	}()

	jobID := uuid.NewString()
	if settings.Output == "" {
		settings.Output = filepath.Join(s.workDir(), "govis-"+jobID+".mp4")
	}

	logger := s.logger.With(slog.String("job", jobID), slog.String("mode", string(settings.Mode)))
	logger.Info("export started",
		slog.String("audio", assets.AudioPath),
		slog.Int("width", settings.Width),
		slog.Int("fps", settings.FPS))
	s.bus.Publish(domain.NewExportStartedEvent(jobID, settings))

	started := time.Now()
	var frames int
	if settings.Mode == domain.ExportRealtime {
		frames, err = s.realtime(ctx, logger, jobID, assets, settings)
	} else {
		frames, err = s.offline(ctx, logger, jobID, assets, settings)
	}
	if err != nil {
		return s.fail(logger, jobID, err)
	}

	location, err := s.sink.Publish(ctx, jobID, settings.Output)
	if err != nil {
		return s.fail(logger, jobID, domain.NewExportError(jobID, "publish", err))
	}

	result := domain.ExportResult{
		JobID:    jobID,
		Path:     settings.Output,
		Location: location,
		Frames:   frames,
		Duration: time.Since(started),
	}
	logger.Info("export completed",
		slog.String("sink", s.sink.Name()),
		slog.String("location", location),
		slog.Int("frames", frames),
		slog.Duration("took", result.Duration))
	s.bus.Publish(domain.NewExportCompletedEvent(result))
	return result, nil
}

func (s *ExportService) fail(logger *slog.Logger, jobID string, err error) (domain.ExportResult, error) {
	logger.Error("export failed", slog.Any("error", err))
	s.bus.Publish(domain.NewExportFailedEvent(jobID, err))
	return domain.ExportResult{JobID: jobID}, err
}

func (s *ExportService) workDir() string {
	if s.cfg.WorkDir != "" {
		return s.cfg.WorkDir
	}
	return os.TempDir()
}

// totalFrames is the number of frames covering duration at fps.
func totalFrames(duration time.Duration, fps int) int {
	return int(math.Ceil(duration.Seconds() * float64(fps)))
}

// frameTime is the media time of frame k.
func frameTime(k, fps int) time.Duration {
	return time.Duration(k) * time.Second / time.Duration(fps)
}

// offline renders every frame from a private scene driven by the frame clock.
func (s *ExportService) offline(ctx context.Context, logger *slog.Logger, jobID string, assets domain.SceneAssets, settings domain.ExportSettings) (int, error) {
	if s.engine == nil {
		return 0, domain.NewExportError(jobID, "load", domain.ErrNotInitialized)
	}

	handle, err := s.engine.Load(assets.AudioPath)
	if err != nil {
		return 0, domain.NewExportError(jobID, "load", err)
	}
	defer func() {
		if err := s.engine.Unload(handle); err != nil {
			logger.Warn("failed to unload export track", slog.Any("error", err))
		}
	}()

	duration, err := s.engine.Duration(handle)
	if err != nil {
		return 0, domain.NewExportError(jobID, "load", err)
	}
	total := totalFrames(duration, settings.FPS)

	adapter, err := analysis.NewAdapter(logger, s.cfg.FFTSize)
	if err != nil {
		return 0, domain.NewExportError(jobID, "analyse", err)
	}
	var clock time.Duration
	adapter.Connect(s.engine, handle, func() (time.Duration, error) { return clock, nil })
	defer adapter.Disconnect()

	sceneCfg := s.cfg.Scene
	sceneCfg.Width = float64(settings.Width)
	scene, err := visual.NewScene(logger, adapter, visual.AlwaysPlaying{}, s.images, nil, sceneCfg)
	if err != nil {
		return 0, domain.NewExportError(jobID, "render", err)
	}
	defer func() { _ = scene.Close() }()

	// The asset service resolves tag defaults and cover art exactly as the preview does
	assetSvc := NewAssetService(logger, scene, TrackLoaderFunc(func(string) error { return nil }), s.engine, nil, nil, nil)
	if _, err := assetSvc.Apply(assets); err != nil {
		return 0, domain.NewExportError(jobID, "assets", err)
	}
	scene.WaitTextures()

	writer, err := s.encoder.Start(ctx, ports.EncodeJob{
		Output:    settings.Output,
		AudioPath: assets.AudioPath,
		Width:     settings.Width,
		Height:    settings.Height,
		FPS:       settings.FPS,
	})
	if err != nil {
		return 0, domain.NewExportError(jobID, "encode", err)
	}

	frame := image.NewRGBA(image.Rect(0, 0, settings.Width, settings.Height))
	for k := 0; k < total; k++ {
		if err := ctx.Err(); err != nil {
			writer.Abort()
			return k, domain.NewExportError(jobID, "render", domain.ErrExportCancelled)
		}

		clock = frameTime(k, settings.FPS)
		scene.Tick()
		scene.Render(frame)
		if err := writer.WriteFrame(frame); err != nil {
			writer.Abort()
			return k, domain.NewExportError(jobID, "encode", err)
		}

		if done := k + 1; done%settings.FPS == 0 || done == total {
			s.bus.Publish(domain.NewExportProgressEvent(domain.ExportProgress{JobID: jobID, Frame: done, TotalFrames: total}))
		}
	}

	if err := writer.Close(); err != nil {
		return total, domain.NewExportError(jobID, "encode", err)
	}
	return total, nil
}

// capture writes live frames to the encoder from the render loop.
type capture struct {
	mu     sync.Mutex
	scene  *visual.Scene
	writer ports.FrameWriter
	frame  *image.RGBA
	count  int
	err    error
	closed bool
	failed chan struct{}
}

func (c *capture) onFrame(uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.err != nil {
		return
	}
	c.scene.Render(c.frame)
	if err := c.writer.WriteFrame(c.frame); err != nil {
		c.err = err
		close(c.failed)
		return
	}
	c.count++
}

// stop prevents further writes and returns the frame count and write error.
func (c *capture) stop() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return c.count, c.err
}

// realtime records the live scene while the track plays from the start with the monitor muted.
func (s *ExportService) realtime(ctx context.Context, logger *slog.Logger, jobID string, assets domain.SceneAssets, settings domain.ExportSettings) (int, error) {
	s.mu.Lock()
	playback, render := s.playback, s.render
	s.mu.Unlock()

	if playback == nil || render == nil || !render.Running() {
		return 0, domain.NewExportError(jobID, "capture", domain.NewServiceError("ExportService", "realtime", "no live preview to capture", domain.ErrNotInitialized))
	}
	if playback.Duration() <= 0 {
		return 0, domain.NewExportError(jobID, "capture", domain.ErrNoTrackLoaded)
	}

	fps := render.FPS()
	total := totalFrames(playback.Duration(), fps)

	writer, err := s.encoder.Start(ctx, ports.EncodeJob{
		Output:    settings.Output,
		AudioPath: assets.AudioPath,
		Width:     settings.Width,
		Height:    settings.Height,
		FPS:       fps,
	})
	if err != nil {
		return 0, domain.NewExportError(jobID, "encode", err)
	}

	finished := make(chan struct{})
	var once sync.Once
	subID := s.bus.Subscribe(domain.EventTrackCompleted, func(domain.Event) {
		once.Do(func() { close(finished) })
	})
	defer s.bus.Unsubscribe(subID)

	c := &capture{
		scene:  render.Scene(),
		writer: writer,
		frame:  image.NewRGBA(image.Rect(0, 0, settings.Width, settings.Height)),
		failed: make(chan struct{}),
	}

	if err := playback.Seek(0); err != nil {
		writer.Abort()
		return 0, domain.NewExportError(jobID, "capture", err)
	}
	restore := playback.SuspendMonitor()
	defer restore()

	remove := render.OnFrame(c.onFrame)
	defer remove()

	if err := playback.TriggerPlay(); err != nil {
		c.stop()
		writer.Abort()
		return 0, domain.NewExportError(jobID, "capture", err)
	}

	progress := time.NewTicker(time.Second)
	defer progress.Stop()

	for {
		select {
		case <-finished:
			remove()
			frames, _ := c.stop()
			if err := writer.Close(); err != nil {
				return frames, domain.NewExportError(jobID, "encode", err)
			}
			return frames, nil

		case <-c.failed:
			remove()
			frames, werr := c.stop()
			_ = playback.Pause()
			writer.Abort()
			return frames, domain.NewExportError(jobID, "encode", werr)

		case <-ctx.Done():
			remove()
			frames, _ := c.stop()
			_ = playback.Pause()
			writer.Abort()
			return frames, domain.NewExportError(jobID, "capture", domain.ErrExportCancelled)

		case <-progress.C:
			c.mu.Lock()
			done := c.count
			c.mu.Unlock()
			s.bus.Publish(domain.NewExportProgressEvent(domain.ExportProgress{JobID: jobID, Frame: done, TotalFrames: total}))
			logger.Debug("capturing", slog.Int("frame", done), slog.Int("total", total))
		}
	}
}

// TrackLoaderFunc adapts a function to TrackLoader.
type TrackLoaderFunc func(path string) error

// LoadTrack implements TrackLoader.
func (f TrackLoaderFunc) LoadTrack(path string) error { return f(path) }

// IsCancelled reports whether err came from a cancelled export.
func IsCancelled(err error) bool {
	return errors.Is(err, domain.ErrExportCancelled) || errors.Is(err, context.Canceled)
}
