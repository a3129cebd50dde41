// Package ports define the UI interface for view abstraction.
// This interface allows the presenter to update the UI without depending on Fyne directly.
package ports

// PreviewView is the preview window as seen by the presenter.
//
// The presenter receives events from the event bus and calls these methods
// from whatever goroutine delivered the event. Implementations hand the
// widget updates to the UI thread themselves.
type PreviewView interface {
	// SetTrackInfo shows the label text of the current scene.
	SetTrackInfo(title, author string)

	// SetPlayState switches the play button between play and pause.
	SetPlayState(playing bool)

	// SetProgress moves the progress bar and updates both time labels.
	// Times are formatted as m:ss.
	SetProgress(current, total string, fraction float64)

	// SetVolume updates the volume slider (0.0 to 1.0).
	SetVolume(volume float64)

	// SetMuteState updates the mute button.
	SetMuteState(muted bool)

	// SetExportState enables the export controls and shows job progress.
	// fraction is in [0, 1], or negative when the total is unknown.
	SetExportState(running bool, fraction float64)

	// ShowNotification displays a temporary notification to the user.
	ShowNotification(title, message string)

	// ShowError displays an error dialog to the user.
	ShowError(title, message string)
}
