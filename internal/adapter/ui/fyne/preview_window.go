package fyne

import (
	"image"
	"log/slog"
	"sync"
	"time"

	fyneapp "fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"github.com/tejashwikalptaru/govis/internal/domain"
	"github.com/tejashwikalptaru/govis/internal/ports"
	"github.com/tejashwikalptaru/govis/res"
)

// Window constants
const (
	APPNAME = "GoVis"
	WIDTH   = 1054
	HEIGHT  = 820
)

// FrameRenderer draws the scene into a caller-owned frame.
type FrameRenderer interface {
	Render(dst *image.RGBA)
}

// PreviewWindow is the main UI window implementing ports.PreviewView.
//
// The PreviewWindow follows the MVP pattern:
// - It's a "dumb view" that just displays data
// - All business logic is in the Presenter
// - User interactions are forwarded to the Presenter
type PreviewWindow struct {
	app      fyneapp.App
	window   fyneapp.Window
	logger   *slog.Logger
	renderer FrameRenderer

	// Scene surface
	raster  *canvas.Raster
	redraw  *fyneapp.Animation
	frameMu sync.Mutex
	frame   *image.RGBA

	// Transport controls
	playButton  *widget.Button
	stopButton  *widget.Button
	muteButton  *widget.Button
	trackInfo   *widget.Label
	currentTime *widget.Label
	endTime     *widget.Label
	progress    *widget.Slider
	volume      *widget.Slider

	// Scene inputs
	audioEntry      *widget.Entry
	titleEntry      *widget.Entry
	authorEntry     *widget.Entry
	emblemEntry     *widget.Entry
	backgroundEntry *widget.Entry
	applyButton     *widget.Button

	// Export
	exportButton   *widget.Button
	cancelButton   *widget.Button
	exportProgress *widget.ProgressBar

	// Lifecycle management
	closeOnce     sync.Once
	onBeforeClose func()

	// Presenter (set after construction)
	presenter *Presenter
}

// NewPreviewWindow creates the preview window drawing frames from renderer.
func NewPreviewWindow(app fyneapp.App, logger *slog.Logger, renderer FrameRenderer) *PreviewWindow {
	w := &PreviewWindow{
		app:      app,
		logger:   logger,
		renderer: renderer,
	}

	w.window = app.NewWindow(APPNAME)
	w.buildUI()

	w.window.Resize(fyneapp.NewSize(WIDTH, HEIGHT))
	w.window.SetCloseIntercept(func() {
		if w.onBeforeClose != nil {
			w.onBeforeClose()
		}
		w.Close()
	})

	return w
}

// SetPresenter connects the presenter to this view.
// This must be called before showing the window.
func (w *PreviewWindow) SetPresenter(presenter *Presenter) {
	w.presenter = presenter
	w.wirePresenterHandlers()
	w.addShortcuts()
}

// SetOnBeforeClose registers a callback run before the window closes.
func (w *PreviewWindow) SetOnBeforeClose(fn func()) {
	w.onBeforeClose = fn
}

// SetAssets fills the form, e.g. with the restored last project.
func (w *PreviewWindow) SetAssets(assets domain.SceneAssets) {
	w.audioEntry.SetText(assets.AudioPath)
	w.titleEntry.SetText(assets.Title)
	w.authorEntry.SetText(assets.Author)
	w.emblemEntry.SetText(assets.EmblemPath)
	w.backgroundEntry.SetText(assets.BackgroundPath)
}

// Assets returns the form contents.
func (w *PreviewWindow) Assets() domain.SceneAssets {
	return domain.SceneAssets{
		AudioPath:      w.audioEntry.Text,
		Title:          w.titleEntry.Text,
		Author:         w.authorEntry.Text,
		EmblemPath:     w.emblemEntry.Text,
		BackgroundPath: w.backgroundEntry.Text,
	}
}

// buildUI constructs the UI components.
func (w *PreviewWindow) buildUI() {
	w.raster = canvas.NewRaster(w.draw)
	w.raster.SetMinSize(fyneapp.NewSize(WIDTH/2, WIDTH/2*9/16))
	w.redraw = fyneapp.NewAnimation(time.Second, func(float32) {
		w.raster.Refresh()
	})
	w.redraw.RepeatCount = fyneapp.AnimationRepeatForever
	w.redraw.Curve = fyneapp.AnimationLinear

	// Control buttons
	w.playButton = widget.NewButtonWithIcon("", theme.MediaPlayIcon(), nil)
	w.stopButton = widget.NewButtonWithIcon("", theme.MediaStopIcon(), nil)
	w.muteButton = widget.NewButtonWithIcon("", theme.VolumeUpIcon(), nil)

	w.trackInfo = widget.NewLabel("")
	w.trackInfo.Truncation = fyneapp.TextTruncateEllipsis
	w.trackInfo.TextStyle = fyneapp.TextStyle{Bold: true, Italic: true}

	w.volume = widget.NewSlider(0, 1)
	w.volume.Step = 0.01
	volIcon := canvas.NewImageFromResource(theme.VolumeUpIcon())
	volIcon.SetMinSize(fyneapp.NewSize(20, 20))
	volumeHolder := container.NewBorder(nil, nil, volIcon, nil, w.volume)

	buttons := container.NewHBox(w.playButton, w.stopButton, w.muteButton)
	buttonsHolder := container.NewBorder(nil, nil, buttons, container.NewGridWrap(fyneapp.NewSize(160, 36), volumeHolder), w.trackInfo)

	w.progress = widget.NewSlider(0, 1)
	w.progress.Step = 0.001
	w.currentTime = widget.NewLabel("0:00")
	w.endTime = widget.NewLabel("0:00")
	sliderHolder := container.NewBorder(nil, nil, w.currentTime, w.endTime, w.progress)

	// Scene inputs
	w.audioEntry = widget.NewEntry()
	w.titleEntry = widget.NewEntry()
	w.authorEntry = widget.NewEntry()
	w.emblemEntry = widget.NewEntry()
	w.backgroundEntry = widget.NewEntry()
	w.titleEntry.SetPlaceHolder("from the track tags")
	w.authorEntry.SetPlaceHolder("from the track tags")
	w.emblemEntry.SetPlaceHolder("embedded cover art")
	w.applyButton = widget.NewButtonWithIcon("Apply", theme.ConfirmIcon(), nil)

	form := container.New(layout.NewFormLayout(),
		widget.NewLabel("Audio"), w.browseRow(w.audioEntry, audioExtensions),
		widget.NewLabel("Title"), w.titleEntry,
		widget.NewLabel("Author"), w.authorEntry,
		widget.NewLabel("Emblem"), w.browseRow(w.emblemEntry, imageExtensions),
		widget.NewLabel("Background"), w.browseRow(w.backgroundEntry, imageExtensions),
	)

	// Export
	w.exportButton = widget.NewButtonWithIcon("Export video", theme.MediaRecordIcon(), nil)
	w.cancelButton = widget.NewButtonWithIcon("Cancel", theme.CancelIcon(), nil)
	w.cancelButton.Disable()
	w.exportProgress = widget.NewProgressBar()
	exportRow := container.NewBorder(nil, nil, container.NewHBox(w.applyButton, w.exportButton), w.cancelButton, w.exportProgress)

	controls := container.NewVBox(buttonsHolder, sliderHolder, widget.NewSeparator(), form, exportRow)
	w.window.SetContent(container.NewPadded(container.NewBorder(nil, controls, nil, nil, w.raster)))

	w.window.SetMainMenu(fyneapp.NewMainMenu(w.createMenu()...))
}

// browseRow places a Browse button next to entry.
func (w *PreviewWindow) browseRow(entry *widget.Entry, extensions []string) fyneapp.CanvasObject {
	browse := widget.NewButtonWithIcon("", theme.FolderOpenIcon(), func() {
		NewFileDialog(w.window, extensions, entry.SetText, w.logger).Show()
	})
	return container.NewBorder(nil, nil, nil, browse, entry)
}

// draw renders the scene at the raster's pixel size, reusing one frame buffer.
func (w *PreviewWindow) draw(width, height int) image.Image {
	if w.presenter != nil {
		w.presenter.OnViewportResized(width)
	}

	w.frameMu.Lock()
	defer w.frameMu.Unlock()

	if w.frame == nil || w.frame.Bounds().Dx() != width || w.frame.Bounds().Dy() != height {
		w.frame = image.NewRGBA(image.Rect(0, 0, width, height))
	}
	if w.renderer != nil {
		w.renderer.Render(w.frame)
	}
	return w.frame
}

// wirePresenterHandlers connects UI events to presenter handlers.
func (w *PreviewWindow) wirePresenterHandlers() {
	if w.presenter == nil {
		return
	}

	w.playButton.OnTapped = w.presenter.OnPlayClicked
	w.stopButton.OnTapped = w.presenter.OnStopClicked
	w.muteButton.OnTapped = w.presenter.OnMuteClicked

	w.volume.OnChanged = w.presenter.OnVolumeChanged
	// Seek only once the user lets go; programmatic updates set Value directly.
	w.progress.OnChangeEnded = w.presenter.OnSeekRequested

	w.applyButton.OnTapped = func() {
		w.presenter.OnAssetsSubmitted(w.Assets())
	}
	w.exportButton.OnTapped = w.handleExport
	w.cancelButton.OnTapped = w.presenter.OnCancelExportClicked
}

// createMenu creates the application menu.
func (w *PreviewWindow) createMenu() []*fyneapp.Menu {
	exportItem := fyneapp.NewMenuItem("Export Video...", w.handleExport)
	exitItem := fyneapp.NewMenuItem("Exit", func() {
		if w.onBeforeClose != nil {
			w.onBeforeClose()
		}
		w.Close()
	})

	aboutItem := fyneapp.NewMenuItem("About", func() {
		about := widget.NewRichTextFromMarkdown(res.AboutContent)
		about.Wrapping = fyneapp.TextWrapWord
		d := dialog.NewCustom("About "+APPNAME, "Close", about, w.window)
		d.Resize(fyneapp.NewSize(420, 300))
		d.Show()
	})

	return []*fyneapp.Menu{
		fyneapp.NewMenu("File", exportItem, fyneapp.NewMenuItemSeparator(), exitItem),
		fyneapp.NewMenu("Help", aboutItem),
	}
}

func (w *PreviewWindow) handleExport() {
	if w.presenter == nil {
		return
	}
	NewSaveDialog(w.window, w.presenter.OnExportClicked, w.logger).Show()
}

// addShortcuts adds keyboard shortcuts.
func (w *PreviewWindow) addShortcuts() {
	w.window.Canvas().AddShortcut(&desktop.CustomShortcut{
		KeyName:  fyneapp.KeyUp,
		Modifier: fyneapp.KeyModifierAlt,
	}, func(fyneapp.Shortcut) {
		w.volume.SetValue(min(w.volume.Value+0.05, 1))
	})

	w.window.Canvas().AddShortcut(&desktop.CustomShortcut{
		KeyName:  fyneapp.KeyDown,
		Modifier: fyneapp.KeyModifierAlt,
	}, func(fyneapp.Shortcut) {
		w.volume.SetValue(max(w.volume.Value-0.05, 0))
	})

	w.window.Canvas().SetOnTypedKey(func(ev *fyneapp.KeyEvent) {
		if ev.Name == fyneapp.KeySpace && w.presenter != nil {
			w.presenter.OnPlayClicked()
		}
	})
}

// ShowAndRun shows the window, starts redrawing and runs the application.
func (w *PreviewWindow) ShowAndRun() {
	w.redraw.Start()
	w.window.ShowAndRun()
}

// Close stops redrawing and closes the window.
// It's safe to call multiple times (idempotent).
func (w *PreviewWindow) Close() {
	w.closeOnce.Do(func() {
		w.redraw.Stop()
		w.window.Close()
	})
}

// GetWindow returns the underlying Fyne window.
func (w *PreviewWindow) GetWindow() fyneapp.Window {
	return w.window
}

// ports.PreviewView implementation. Calls may come from any goroutine.

// SetTrackInfo updates the displayed label text.
func (w *PreviewWindow) SetTrackInfo(title, author string) {
	text := title
	switch {
	case title != "" && author != "":
		text = title + " - " + author
	case title == "":
		text = author
	}
	fyneapp.Do(func() {
		w.trackInfo.SetText(text)
	})
}

// SetPlayState updates the play/pause button state.
func (w *PreviewWindow) SetPlayState(playing bool) {
	fyneapp.Do(func() {
		if playing {
			w.playButton.SetIcon(theme.MediaPauseIcon())
		} else {
			w.playButton.SetIcon(theme.MediaPlayIcon())
		}
	})
}

// SetProgress updates the progress slider and time labels.
func (w *PreviewWindow) SetProgress(current, total string, fraction float64) {
	fyneapp.Do(func() {
		w.currentTime.SetText(current)
		w.endTime.SetText(total)
		w.progress.Value = fraction
		w.progress.Refresh()
	})
}

// SetVolume updates the volume slider.
func (w *PreviewWindow) SetVolume(volume float64) {
	fyneapp.Do(func() {
		w.volume.Value = volume
		w.volume.Refresh()
	})
}

// SetMuteState updates the mute button state.
func (w *PreviewWindow) SetMuteState(muted bool) {
	fyneapp.Do(func() {
		if muted {
			w.muteButton.SetIcon(theme.VolumeMuteIcon())
		} else {
			w.muteButton.SetIcon(theme.VolumeUpIcon())
		}
	})
}

// SetExportState toggles the export controls and shows job progress.
func (w *PreviewWindow) SetExportState(running bool, fraction float64) {
	fyneapp.Do(func() {
		if running {
			w.exportButton.Disable()
			w.applyButton.Disable()
			w.cancelButton.Enable()
		} else {
			w.exportButton.Enable()
			w.applyButton.Enable()
			w.cancelButton.Disable()
		}
		if fraction >= 0 {
			w.exportProgress.SetValue(fraction)
		}
	})
}

// ShowNotification displays a system notification.
func (w *PreviewWindow) ShowNotification(title, message string) {
	w.app.SendNotification(fyneapp.NewNotification(title, message))
}

// ShowError displays an error dialog.
func (w *PreviewWindow) ShowError(title, message string) {
	fyneapp.Do(func() {
		dialog.ShowInformation(title, message, w.window)
	})
}

// Verify PreviewView implementation
var _ ports.PreviewView = (*PreviewWindow)(nil)
