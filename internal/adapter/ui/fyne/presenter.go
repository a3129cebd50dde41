// Package fyne provides Fyne UI adapter implementations.
// This package implements the preview window using the Fyne toolkit.
package fyne

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/tejashwikalptaru/govis/internal/domain"
	"github.com/tejashwikalptaru/govis/internal/ports"
	"github.com/tejashwikalptaru/govis/internal/service"
)

// Presenter implements the Presenter pattern (MVP architecture).
// It coordinates between services and the preview window, handling all
// event-driven updates.
//
// Responsibilities:
// - Subscribe to events from the event bus
// - Map domain events to view updates
// - Translate view commands to service method calls
//
// Thread-safety: All operations are thread-safe via sync.Mutex.
type Presenter struct {
	logger *slog.Logger

	// Services (injected)
	playback *service.PlaybackService
	render   *service.RenderService
	assets   *service.AssetService
	export   *service.ExportService

	bus  ports.EventBus
	view ports.PreviewView

	// Presentation state
	subs         []domain.SubscriptionID
	duration     time.Duration
	lastWidth    int
	exportCancel context.CancelFunc
	exportDone   chan struct{}

	mu           sync.Mutex
	shutdownOnce sync.Once
}

// NewPresenter creates a presenter and syncs the view with the current state.
// export may be nil, in which case export requests are rejected.
func NewPresenter(
	logger *slog.Logger,
	playback *service.PlaybackService,
	render *service.RenderService,
	assets *service.AssetService,
	export *service.ExportService,
	bus ports.EventBus,
	view ports.PreviewView,
) *Presenter {
	p := &Presenter{
		logger:   logger,
		playback: playback,
		render:   render,
		assets:   assets,
		export:   export,
		bus:      bus,
		view:     view,
	}

	p.subscribeToEvents()
	p.syncInitialState()

	return p
}

// subscribeToEvents subscribes to all relevant events from the event bus.
func (p *Presenter) subscribeToEvents() {
	subscriptions := map[domain.EventType]domain.EventHandler{
		// Playback events
		domain.EventTrackLoaded:    p.onTrackLoaded,
		domain.EventTrackStarted:   p.onTrackStarted,
		domain.EventTrackPaused:    p.onTrackPaused,
		domain.EventTrackStopped:   p.onTrackStopped,
		domain.EventTrackCompleted: p.onTrackCompleted,
		domain.EventTrackProgress:  p.onTrackProgress,
		domain.EventTrackError:     p.onTrackError,

		// Volume events
		domain.EventVolumeChanged: p.onVolumeChanged,
		domain.EventMuteToggled:   p.onMuteToggled,

		// Scene events
		domain.EventAssetsApplied: p.onAssetsApplied,
		domain.EventTextureFailed: p.onTextureFailed,

		// Export events
		domain.EventExportStarted:   p.onExportStarted,
		domain.EventExportProgress:  p.onExportProgress,
		domain.EventExportCompleted: p.onExportCompleted,
		domain.EventExportFailed:    p.onExportFailed,
	}

	for eventType, handler := range subscriptions {
		p.subs = append(p.subs, p.bus.Subscribe(eventType, handler))
	}
}

// syncInitialState synchronizes the view with the current application state.
func (p *Presenter) syncInitialState() {
	state := p.playback.GetState()
	p.mu.Lock()
	p.duration = state.Duration
	p.mu.Unlock()

	p.view.SetVolume(state.Volume)
	p.view.SetMuteState(state.IsMuted)
	p.view.SetPlayState(state.IsPlaying())
	p.showProgress(state.Position, state.Duration)

	current := p.assets.Current()
	p.view.SetTrackInfo(current.Title, current.Author)
	p.view.SetExportState(false, 0)
}

// Event handlers
//
// Playback events may be published while the playback service holds its
// lock, so handlers must not call back into it.

func (p *Presenter) onTrackLoaded(event domain.Event) {
	e, ok := event.(domain.TrackLoadedEvent)
	if !ok {
		return
	}
	p.mu.Lock()
	p.duration = e.Duration
	p.mu.Unlock()

	p.view.SetPlayState(false)
	p.showProgress(0, e.Duration)
}

func (p *Presenter) onTrackStarted(domain.Event) {
	p.view.SetPlayState(true)
}

func (p *Presenter) onTrackPaused(domain.Event) {
	p.view.SetPlayState(false)
}

func (p *Presenter) onTrackStopped(domain.Event) {
	p.mu.Lock()
	duration := p.duration
	p.mu.Unlock()

	p.view.SetPlayState(false)
	p.showProgress(0, duration)
}

func (p *Presenter) onTrackCompleted(domain.Event) {
	p.view.SetPlayState(false)
}

func (p *Presenter) onTrackProgress(event domain.Event) {
	e, ok := event.(domain.TrackProgressEvent)
	if !ok {
		return
	}
	p.showProgress(e.Position, e.Duration)
}

func (p *Presenter) onTrackError(event domain.Event) {
	e, ok := event.(domain.TrackErrorEvent)
	if !ok {
		return
	}
	p.view.ShowError("Playback Error", fmt.Sprintf("%s: %v", e.Source, e.Err))
}

func (p *Presenter) onVolumeChanged(event domain.Event) {
	e, ok := event.(domain.VolumeChangedEvent)
	if !ok {
		return
	}
	p.view.SetVolume(e.Volume)
}

func (p *Presenter) onMuteToggled(event domain.Event) {
	e, ok := event.(domain.MuteToggledEvent)
	if !ok {
		return
	}
	p.view.SetMuteState(e.Muted)
}

func (p *Presenter) onAssetsApplied(event domain.Event) {
	e, ok := event.(domain.AssetsAppliedEvent)
	if !ok {
		return
	}
	p.view.SetTrackInfo(e.Assets.Title, e.Assets.Author)
}

func (p *Presenter) onTextureFailed(event domain.Event) {
	e, ok := event.(domain.TextureFailedEvent)
	if !ok {
		return
	}
	p.view.ShowNotification("Image not loaded", fmt.Sprintf("%s: %v", e.Source, e.Err))
}

func (p *Presenter) onExportStarted(domain.Event) {
	p.view.SetExportState(true, 0)
}

func (p *Presenter) onExportProgress(event domain.Event) {
	e, ok := event.(domain.ExportProgressEvent)
	if !ok {
		return
	}
	fraction := e.Progress.Percentage()
	if fraction >= 0 {
		fraction /= 100
	}
	p.view.SetExportState(true, fraction)
}

func (p *Presenter) onExportCompleted(event domain.Event) {
	e, ok := event.(domain.ExportCompletedEvent)
	if !ok {
		return
	}
	p.view.SetExportState(false, 1)
	p.view.ShowNotification("Export Complete", e.Result.Location)
}

func (p *Presenter) onExportFailed(event domain.Event) {
	e, ok := event.(domain.ExportFailedEvent)
	if !ok {
		return
	}
	p.view.SetExportState(false, 0)
	if service.IsCancelled(e.Err) {
		p.view.ShowNotification("Export Cancelled", "The video was not saved")
		return
	}
	p.view.ShowError("Export Failed", e.Err.Error())
}

func (p *Presenter) showProgress(position, duration time.Duration) {
	fraction := 0.0
	if duration > 0 {
		fraction = math.Min(1, position.Seconds()/duration.Seconds())
	}
	p.view.SetProgress(FormatTime(position.Seconds()), FormatTime(duration.Seconds()), fraction)
}

// View command handlers

// OnPlayClicked toggles between play and pause. The first click also
// unlocks the audio output.
func (p *Presenter) OnPlayClicked() {
	var err error
	if p.playback.IsPlaying() {
		err = p.playback.Pause()
	} else {
		err = p.playback.Play()
	}
	if err != nil {
		p.logger.Error("play/pause failed", slog.Any("error", err))
		p.view.ShowNotification("Playback Error", fmt.Sprintf("Failed to start playback: %v", err))
	}
}

// OnStopClicked handles the stop button click.
func (p *Presenter) OnStopClicked() {
	if err := p.playback.Stop(); err != nil && !errors.Is(err, domain.ErrNoTrackLoaded) {
		p.logger.Error("stop failed", slog.Any("error", err))
		p.view.ShowNotification("Playback Error", fmt.Sprintf("Failed to stop playback: %v", err))
	}
}

// OnMuteClicked handles the mute button click.
func (p *Presenter) OnMuteClicked() {
	if err := p.playback.Mute(!p.playback.IsMuted()); err != nil {
		p.logger.Error("mute failed", slog.Any("error", err))
	}
}

// OnVolumeChanged handles volume slider changes (0.0 to 1.0).
func (p *Presenter) OnVolumeChanged(volume float64) {
	if err := p.playback.SetVolume(volume); err != nil {
		p.logger.Error("volume change failed", slog.Any("error", err))
	}
}

// OnSeekRequested maps a progress bar fraction to a position in the track.
func (p *Presenter) OnSeekRequested(fraction float64) {
	err := p.playback.SeekFraction(fraction)
	if err != nil && !errors.Is(err, domain.ErrNoTrackLoaded) {
		p.logger.Error("seek failed", slog.Any("error", err))
		p.view.ShowNotification("Seek Error", fmt.Sprintf("Failed to seek: %v", err))
	}
}

// OnAssetsSubmitted applies the form inputs to the scene.
func (p *Presenter) OnAssetsSubmitted(assets domain.SceneAssets) {
	if _, err := p.assets.Apply(assets); err != nil {
		p.logger.Error("apply assets failed", slog.Any("error", err))
		p.view.ShowError("Could not load track", err.Error())
	}
}

// OnViewportResized forwards a new preview width to the scene, which
// announces the resulting geometry. Repeated widths are ignored.
func (p *Presenter) OnViewportResized(width int) {
	p.mu.Lock()
	if width <= 0 || width == p.lastWidth {
		p.mu.Unlock()
		return
	}
	p.lastWidth = width
	p.mu.Unlock()

	p.render.Resize(float64(width))
}

// OnExportClicked records the playing scene to output in real time.
// The job runs in the background; progress arrives through export events.
func (p *Presenter) OnExportClicked(output string) {
	if p.export == nil {
		p.view.ShowError("Export Unavailable", "ffmpeg is not configured")
		return
	}

	p.mu.Lock()
	if p.exportCancel != nil {
		p.mu.Unlock()
		p.view.ShowNotification("Export Running", "Wait for the current export to finish")
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	p.exportCancel = cancel
	p.exportDone = done
	p.mu.Unlock()

	settings := service.DefaultExportSettings()
	settings.Mode = domain.ExportRealtime
	settings.FPS = p.render.FPS()
	settings.Output = output

	go func() {
		defer close(done)
		defer func() {
			p.mu.Lock()
			p.exportCancel = nil
			p.mu.Unlock()
			cancel()
		}()

		if _, err := p.export.Export(ctx, p.assets.Current(), settings); err != nil {
			p.logger.Warn("export ended with error", slog.Any("error", err))
			var verr *domain.ValidationError
			if errors.As(err, &verr) || errors.Is(err, domain.ErrExportInProgress) {
				// Rejected before a job started, so no failure event was published.
				p.view.ShowError("Export Failed", err.Error())
			}
		}
	}()
}

// OnCancelExportClicked stops a running export.
func (p *Presenter) OnCancelExportClicked() {
	p.mu.Lock()
	cancel := p.exportCancel
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Shutdown unsubscribes from the bus and waits for a running export to stop.
// It's safe to call multiple times (idempotent).
func (p *Presenter) Shutdown() {
	p.shutdownOnce.Do(func() {
		for _, id := range p.subs {
			p.bus.Unsubscribe(id)
		}

		p.mu.Lock()
		cancel, done := p.exportCancel, p.exportDone
		p.mu.Unlock()
		if cancel != nil {
			cancel()
			<-done
		}
	})
}

// FormatTime renders seconds as m:ss. NaN, infinite and negative inputs show 0:00.
func FormatTime(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		seconds = 0
	}
	total := int(math.Floor(seconds))
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
