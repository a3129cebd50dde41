// Package app provides application-level orchestration and dependency injection.
// This package wires together all components and manages the application lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	fyneapp "fyne.io/fyne/v2/app"

	"github.com/tejashwikalptaru/govis/internal/adapter/audio/mock"
	otoout "github.com/tejashwikalptaru/govis/internal/adapter/audio/oto"
	"github.com/tejashwikalptaru/govis/internal/adapter/audio/pcm"
	"github.com/tejashwikalptaru/govis/internal/adapter/eventbus"
	"github.com/tejashwikalptaru/govis/internal/adapter/ffmpeg"
	"github.com/tejashwikalptaru/govis/internal/adapter/repository/memory"
	"github.com/tejashwikalptaru/govis/internal/adapter/storage"
	fyneui "github.com/tejashwikalptaru/govis/internal/adapter/ui/fyne"
	"github.com/tejashwikalptaru/govis/internal/adapter/watch"
	"github.com/tejashwikalptaru/govis/internal/analysis"
	"github.com/tejashwikalptaru/govis/internal/config"
	"github.com/tejashwikalptaru/govis/internal/domain"
	"github.com/tejashwikalptaru/govis/internal/logger"
	"github.com/tejashwikalptaru/govis/internal/ports"
	"github.com/tejashwikalptaru/govis/internal/service"
	"github.com/tejashwikalptaru/govis/internal/visual"
)

// audioEngine is an engine the analyser can read samples from.
type audioEngine interface {
	ports.AudioEngine
	ports.SampleSource
}

// Application is the root application structure that holds all dependencies.
// It follows the Dependency Injection pattern with constructor-based injection.
//
// The Application struct is responsible for:
// - Creating and wiring all dependencies
// - Managing the application lifecycle (startup, shutdown)
// - Providing a clean entry point for the command line
type Application struct {
	// Core dependencies
	logger   *slog.Logger
	fyneApp  fyne.App
	settings config.Config
	headless bool

	// Infrastructure
	eventBus    *eventbus.SyncEventBus
	audioEngine audioEngine
	monitor     ports.AudioOutput
	analyser    *analysis.Adapter
	scene       *visual.Scene
	watcher     *watch.Watcher

	// Repositories
	preferencesRepo ports.PreferencesRepository

	// Services
	playbackService   *service.PlaybackService
	renderService     *service.RenderService
	assetService      *service.AssetService
	preferenceService *service.PreferenceService
	exportService     *service.ExportService

	// UI (nil when headless)
	presenter     *fyneui.Presenter
	previewWindow *fyneui.PreviewWindow

	subs         []domain.SubscriptionID
	cancelRender context.CancelFunc
	shutdownOnce sync.Once
	shutdownErr  error
}

// Config holds application configuration.
type Config struct {
	// AppID is the unique application identifier
	AppID string

	// AppName is the display name
	AppName string

	// Settings is the runtime configuration loaded from the environment
	Settings config.Config

	// UseMockAudio determines whether to use a mock audio engine (for testing)
	UseMockAudio bool

	// Headless skips the window, the monitor output and the stored preferences.
	// Headless applications can only export.
	Headless bool

	// TestFyneApp allows injecting a test Fyne app for testing (nil for production)
	TestFyneApp fyne.App
}

// DefaultConfig returns the default application configuration.
func DefaultConfig() Config {
	return Config{
		AppID:    "com.govis.app",
		AppName:  "GoVis",
		Settings: config.Default(),
	}
}

// NewApplication creates a new application with all dependencies wired.
// This is the main dependency injection function.
func NewApplication(cfg Config) (*Application, error) {
	settings := cfg.Settings
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	app := &Application{
		settings: settings,
		headless: cfg.Headless,
	}

	// Step 1: Create logger
	loggerCfg := logger.DefaultConfig()
	if level, ok := logger.ParseLevel(settings.LogLevel); ok {
		loggerCfg.Level = level
	}
	if settings.LogFormat != "" {
		loggerCfg.Format = settings.LogFormat
	}
	loggerCfg.File = settings.LogFile
	app.logger = logger.NewLogger(loggerCfg)
	app.logger.Info("initializing application",
		slog.String("app_id", cfg.AppID),
		slog.String("app_name", cfg.AppName),
		slog.String("version", GetVersionInfo().FullString()),
		slog.Bool("headless", cfg.Headless))

	// Step 2: Create Fyne application
	if !cfg.Headless {
		if cfg.TestFyneApp != nil {
			app.fyneApp = cfg.TestFyneApp
		} else {
			app.fyneApp = fyneapp.NewWithID(cfg.AppID)
		}
	}

	// Step 3: Create an event bus
	app.eventBus = eventbus.NewSyncEventBus(app.logger.With(slog.String("component", "eventbus")))

	// Step 4: Create the audio engine and the monitor output
	if err := app.initAudio(cfg.UseMockAudio); err != nil {
		app.closeInfrastructure()
		return nil, err
	}

	// Step 5: Create the analyser feeding the scene
	analyser, err := analysis.NewAdapter(app.logger.With(slog.String("component", "analysis")), settings.FFTSize)
	if err != nil {
		app.closeInfrastructure()
		return nil, fmt.Errorf("failed to create analyser: %w", err)
	}
	app.analyser = analyser

	// Step 6: Create the playback service
	app.playbackService = service.NewPlaybackService(
		app.logger.With(slog.String("service", "playback")),
		app.audioEngine,
		app.eventBus,
		app.monitor,
	)
	app.subs = append(app.subs, app.eventBus.Subscribe(domain.EventTrackLoaded, app.onTrackLoaded))

	// Step 7: Create the scene and its render loop
	sceneCfg, err := SceneConfig(settings)
	if err != nil {
		app.closeInfrastructure()
		return nil, err
	}
	app.scene, err = visual.NewScene(
		app.logger.With(slog.String("component", "scene")),
		app.analyser,
		app.playbackService,
		visual.FileImageLoader{},
		app.eventBus,
		sceneCfg,
	)
	if err != nil {
		app.closeInfrastructure()
		return nil, fmt.Errorf("failed to create scene: %w", err)
	}
	app.renderService = service.NewRenderService(
		app.logger.With(slog.String("service", "render")),
		app.scene,
		settings.PreviewFPS,
	)

	// Step 8: Create repositories
	var projects service.ProjectStore
	if app.fyneApp != nil {
		app.preferencesRepo = memory.NewPreferencesRepository(app.fyneApp.Preferences())
		app.preferenceService = service.NewPreferenceService(
			app.logger.With(slog.String("service", "preference")),
			app.preferencesRepo,
			app.eventBus,
		)
		projects = app.preferenceService
	}

	// Step 9: Create the asset service, following asset files on disk
	var watcher ports.AssetWatcher
	if !cfg.Headless {
		debounce := time.Duration(settings.WatchDebounce * float64(time.Second))
		w, err := watch.NewWatcher(app.logger.With(slog.String("component", "watcher")), app.eventBus, debounce)
		if err != nil {
			app.logger.Warn("asset files will not be followed", slog.Any("error", err))
		} else {
			app.watcher = w
			watcher = w
		}
	}
	app.assetService = service.NewAssetService(
		app.logger.With(slog.String("service", "asset")),
		app.scene,
		app.playbackService,
		app.audioEngine,
		app.eventBus,
		watcher,
		projects,
	)

	// Step 10: Create the export service
	sink, err := app.newSink()
	if err != nil {
		app.closeInfrastructure()
		return nil, err
	}
	app.exportService = service.NewExportService(
		app.logger.With(slog.String("service", "export")),
		app.eventBus,
		ffmpeg.NewEncoder(app.logger.With(slog.String("component", "ffmpeg")), settings.FFmpegPath),
		sink,
		app.audioEngine,
		visual.FileImageLoader{},
		service.ExportConfig{Scene: sceneCfg, FFTSize: settings.FFTSize},
	)
	app.exportService.AttachLive(app.playbackService, app.renderService)

	if cfg.Headless {
		return app, nil
	}

	// Step 11: Load saved state
	app.loadSavedState()

	// Step 12: Create UI and wire the presenter
	app.previewWindow = fyneui.NewPreviewWindow(app.fyneApp, app.logger.With(slog.String("component", "window")), app.scene)
	app.presenter = fyneui.NewPresenter(
		app.logger.With(slog.String("component", "presenter")),
		app.playbackService,
		app.renderService,
		app.assetService,
		app.exportService,
		app.eventBus,
		app.previewWindow,
	)
	app.previewWindow.SetPresenter(app.presenter)
	app.previewWindow.SetAssets(app.assetService.Current())

	// Stop background work before the window goes away, even on Cmd+Q.
	app.previewWindow.SetOnBeforeClose(func() {
		app.presenter.Shutdown()
		app.renderService.Stop()
	})

	return app, nil
}

// SceneConfig builds the scene composition from the runtime settings.
func SceneConfig(settings config.Config) (visual.SceneConfig, error) {
	cfg := visual.DefaultSceneConfig()
	palette, err := visual.ParsePalette(settings.LowColor, settings.HighColor)
	if err != nil {
		return cfg, fmt.Errorf("invalid palette: %w", err)
	}
	cfg.Palette = palette
	cfg.Layout = cfg.Layout.WithBounds(float64(settings.MinWidth), float64(settings.MaxWidth))
	cfg.Dust.Count = settings.DustCount
	cfg.Width = float64(settings.MinWidth)
	return cfg, nil
}

// initAudio creates the audio engine. The monitor output is optional: when
// the device cannot be opened the preview runs silently.
func (a *Application) initAudio(useMock bool) error {
	if useMock {
		engine := mock.NewEngine()
		engine.SetLogger(a.logger.With(slog.String("engine", "mock")))
		if err := engine.Initialize(a.settings.SampleRate); err != nil {
			return fmt.Errorf("failed to initialize audio engine: %w", err)
		}
		a.audioEngine = engine
		return nil
	}

	if !a.headless && a.settings.Monitor {
		monitor, err := otoout.NewMonitor(a.logger.With(slog.String("component", "monitor")), a.settings.SampleRate, 2)
		if err != nil {
			a.logger.Warn("audio monitor unavailable, previewing silently", slog.Any("error", err))
		} else {
			a.monitor = monitor
		}
	}

	engine := pcm.NewEngine(a.logger.With(slog.String("engine", "pcm")), ports.AudioEngineConfig{
		SampleRate: a.settings.SampleRate,
		Fallback:   ffmpeg.NewDecoder(a.settings.FFmpegPath),
		Output:     a.monitor,
	})
	if err := engine.Initialize(a.settings.SampleRate); err != nil {
		return fmt.Errorf("failed to initialize audio engine: %w", err)
	}
	a.audioEngine = engine
	return nil
}

// newSink selects where finished exports go.
func (a *Application) newSink() (ports.ExportSink, error) {
	if !a.settings.MinioEnabled() {
		return storage.NewLocalSink(a.settings.OutputDir), nil
	}
	sink, err := storage.NewMinioSink(a.logger.With(slog.String("component", "minio")), storage.MinioConfig{
		Endpoint:  a.settings.MinioEndpoint,
		AccessKey: a.settings.MinioAccessKey,
		SecretKey: a.settings.MinioSecretKey,
		Bucket:    a.settings.MinioBucket,
		Region:    a.settings.MinioRegion,
		UseSSL:    a.settings.MinioUseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio sink: %w", err)
	}
	return sink, nil
}

// onTrackLoaded points the analyser at the new track. It runs while the
// playback service holds its lock, so it reads the playhead from the engine.
func (a *Application) onTrackLoaded(event domain.Event) {
	e, ok := event.(domain.TrackLoadedEvent)
	if !ok {
		return
	}
	engine, handle := a.audioEngine, e.Handle
	a.analyser.Connect(engine, handle, func() (time.Duration, error) {
		return engine.Position(handle)
	})
}

// loadSavedState restores the volume and the last project from the previous session.
func (a *Application) loadSavedState() {
	if a.preferenceService != nil {
		if err := a.playbackService.SetVolume(a.preferenceService.GetVolume()); err != nil {
			a.logger.Warn("failed to set volume", slog.Any("error", err))
		}
	}

	restored, err := a.assetService.Restore()
	if err != nil {
		// Non-fatal - the form just starts empty
		a.logger.Warn("failed to restore last project", slog.Any("error", err))
		return
	}
	if restored.AudioPath != "" {
		a.logger.Info("restored last project", slog.String("audio", restored.AudioPath))
	}
}

// Run starts the render loop and shows the preview window.
// It blocks until the window is closed.
func (a *Application) Run() error {
	if a.previewWindow == nil {
		return errors.New("application is headless")
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.cancelRender = cancel
	if err := a.renderService.Start(ctx); err != nil {
		cancel()
		return fmt.Errorf("failed to start render loop: %w", err)
	}

	a.logger.Info("GoVis started")
	a.previewWindow.ShowAndRun()
	return nil
}

// Export renders assets to a video file. It loads the soundtrack itself, so
// it also works on a headless application.
func (a *Application) Export(ctx context.Context, assets domain.SceneAssets, settings domain.ExportSettings) (domain.ExportResult, error) {
	return a.exportService.Export(ctx, assets, settings)
}

// Shutdown gracefully shuts down the application.
// It's safe to call multiple times (idempotent).
func (a *Application) Shutdown() error {
	a.shutdownOnce.Do(func() {
		a.logger.Info("shutting down application")

		// Shutdown UI and presenter
		if a.presenter != nil {
			a.presenter.Shutdown()
		}
		if a.cancelRender != nil {
			a.cancelRender()
		}
		a.renderService.Stop()
		a.exportService.Cancel()

		var errs []error
		a.assetService.Close()
		if a.watcher != nil {
			if err := a.watcher.Close(); err != nil {
				errs = append(errs, fmt.Errorf("watcher: %w", err))
			}
		}
		if a.preferenceService != nil {
			if err := a.preferenceService.Shutdown(); err != nil {
				errs = append(errs, fmt.Errorf("preference service: %w", err))
			}
		}
		for _, id := range a.subs {
			a.eventBus.Unsubscribe(id)
		}
		if err := a.playbackService.Shutdown(); err != nil {
			errs = append(errs, fmt.Errorf("playback service: %w", err))
		}

		a.closeInfrastructure()
		a.shutdownErr = errors.Join(errs...)
		a.logger.Info("application shutdown complete")
	})
	return a.shutdownErr
}

// closeInfrastructure releases what the services sit on. It tolerates a
// partially constructed application.
func (a *Application) closeInfrastructure() {
	if a.analyser != nil {
		a.analyser.Disconnect()
	}
	if a.scene != nil {
		if err := a.scene.Close(); err != nil {
			a.logger.Warn("failed to close scene", slog.Any("error", err))
		}
	}
	if a.audioEngine != nil {
		if err := a.audioEngine.Shutdown(); err != nil {
			a.logger.Warn("failed to shutdown audio engine", slog.Any("error", err))
		}
	}
	if a.monitor != nil {
		if err := a.monitor.Close(); err != nil {
			a.logger.Warn("failed to close monitor", slog.Any("error", err))
		}
	}
	if err := a.eventBus.Close(); err != nil {
		a.logger.Warn("failed to close event bus", slog.Any("error", err))
	}
}

// GetServices returns the application services.
func (a *Application) GetServices() (*service.PlaybackService, *service.AssetService, *service.ExportService, *service.PreferenceService) {
	return a.playbackService, a.assetService, a.exportService, a.preferenceService
}

// GetRenderService returns the render service.
func (a *Application) GetRenderService() *service.RenderService {
	return a.renderService
}

// GetEventBus returns the event bus.
func (a *Application) GetEventBus() ports.EventBus {
	return a.eventBus
}

// GetFyneApp returns the Fyne application (nil when headless).
func (a *Application) GetFyneApp() fyne.App {
	return a.fyneApp
}

// GetLogger returns the application logger.
func (a *Application) GetLogger() *slog.Logger {
	return a.logger
}
