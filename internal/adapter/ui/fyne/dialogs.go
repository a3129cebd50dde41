package fyne

import (
	"log/slog"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
)

// Extensions accepted by the open dialogs.
var (
	audioExtensions = []string{".mp3", ".wav", ".flac", ".ogg", ".m4a", ".aac"}
	imageExtensions = []string{".png", ".jpg", ".jpeg"}
)

// FileDialog is a helper for creating file open dialogs.
type FileDialog struct {
	window     fyne.Window
	callback   func(string)
	logger     *slog.Logger
	extensions []string
}

// NewFileDialog creates a new file dialog limited to extensions (nil for any file).
func NewFileDialog(window fyne.Window, extensions []string, callback func(string), logger *slog.Logger) *FileDialog {
	return &FileDialog{
		window:     window,
		callback:   callback,
		logger:     logger,
		extensions: extensions,
	}
}

// Show displays the file dialog.
func (d *FileDialog) Show() {
	open := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil {
			d.logger.Error("file dialog error", slog.Any("error", err))
			return
		}
		if reader == nil {
			return // User cancelled
		}
		defer reader.Close()

		if d.callback != nil {
			d.callback(reader.URI().Path())
		}
	}, d.window)
	if len(d.extensions) > 0 {
		open.SetFilter(storage.NewExtensionFileFilter(d.extensions))
	}
	open.Show()
}

// SaveDialog asks for the destination of an exported video.
type SaveDialog struct {
	window   fyne.Window
	callback func(string)
	logger   *slog.Logger
}

// NewSaveDialog creates a new save dialog.
func NewSaveDialog(window fyne.Window, callback func(string), logger *slog.Logger) *SaveDialog {
	return &SaveDialog{
		window:   window,
		callback: callback,
		logger:   logger,
	}
}

// Show displays the save dialog.
func (d *SaveDialog) Show() {
	save := dialog.NewFileSave(func(writer fyne.URIWriteCloser, err error) {
		if err != nil {
			d.logger.Error("save dialog error", slog.Any("error", err))
			return
		}
		if writer == nil {
			return // User cancelled
		}
		path := writer.URI().Path()
		// ffmpeg writes the file itself
		_ = writer.Close()

		if d.callback != nil {
			d.callback(path)
		}
	}, d.window)
	save.SetFileName("govis.mp4")
	save.SetFilter(storage.NewExtensionFileFilter([]string{".mp4"}))
	save.Show()
}
