// Package domain defines events for the event-driven architecture.
// Events let services, the renderer and the UI react to each other without direct references.
package domain

import (
	"time"
)

// Event is the base interface for all events in the system.
// All events must implement this interface to be published via the event bus.
type Event interface {
	// Type returns the event type identifier
	Type() EventType

	// Timestamp returns when the event occurred
	Timestamp() time.Time
}

// EventType is a string identifier for different event types.
type EventType string

// Event type constants define all possible events in the system.
const (
	// Playback events
	EventTrackLoaded    EventType = "track.loaded"
	EventTrackStarted   EventType = "track.started"
	EventTrackPaused    EventType = "track.paused"
	EventTrackStopped   EventType = "track.stopped"
	EventTrackCompleted EventType = "track.completed"
	EventTrackProgress  EventType = "track.progress"
	EventTrackError     EventType = "track.error"

	// Volume events
	EventVolumeChanged EventType = "volume.changed"
	EventMuteToggled   EventType = "mute.toggled"

	// Scene events
	EventAssetsApplied   EventType = "scene.assets_applied"
	EventTextureSwapped  EventType = "scene.texture_swapped"
	EventTextureFailed   EventType = "scene.texture_failed"
	EventViewportResized EventType = "scene.viewport_resized"
	EventAssetChanged    EventType = "asset.changed"

	// Export events
	EventExportStarted   EventType = "export.started"
	EventExportProgress  EventType = "export.progress"
	EventExportCompleted EventType = "export.completed"
	EventExportFailed    EventType = "export.failed"
)

// EventHandler is a function that handles events.
type EventHandler func(event Event)

// SubscriptionID uniquely identifies an event subscription.
type SubscriptionID string

// baseEvent provides common event functionality.
// All concrete events should embed this struct.
type baseEvent struct {
	timestamp time.Time
}

// Timestamp returns when the event occurred.
func (e baseEvent) Timestamp() time.Time {
	return e.timestamp
}

// newBaseEvent creates a new base event with the current timestamp.
func newBaseEvent() baseEvent {
	return baseEvent{timestamp: time.Now()}
}

// TrackLoadedEvent is published when an audio track is successfully loaded.
type TrackLoadedEvent struct {
	baseEvent
	Source   string
	Handle   TrackHandle
	Duration time.Duration
}

// Type returns the event type.
func (e TrackLoadedEvent) Type() EventType {
	return EventTrackLoaded
}

// NewTrackLoadedEvent creates a new TrackLoadedEvent.
func NewTrackLoadedEvent(source string, handle TrackHandle, duration time.Duration) TrackLoadedEvent {
	return TrackLoadedEvent{
		baseEvent: newBaseEvent(),
		Source:    source,
		Handle:    handle,
		Duration:  duration,
	}
}

// TrackStartedEvent is published when playback starts or resumes.
type TrackStartedEvent struct {
	baseEvent
	Source    string
	Position  time.Duration
	Synthetic bool // true when triggered programmatically rather than by the user
}

// Type returns the event type.
func (e TrackStartedEvent) Type() EventType {
	return EventTrackStarted
}

// NewTrackStartedEvent creates a new TrackStartedEvent.
func NewTrackStartedEvent(source string, position time.Duration, synthetic bool) TrackStartedEvent {
	return TrackStartedEvent{
		baseEvent: newBaseEvent(),
		Source:    source,
		Position:  position,
		Synthetic: synthetic,
	}
}

// TrackPausedEvent is published when playback is paused.
type TrackPausedEvent struct {
	baseEvent
	Source   string
	Position time.Duration
}

// Type returns the event type.
func (e TrackPausedEvent) Type() EventType {
	return EventTrackPaused
}

// NewTrackPausedEvent creates a new TrackPausedEvent.
func NewTrackPausedEvent(source string, position time.Duration) TrackPausedEvent {
	return TrackPausedEvent{
		baseEvent: newBaseEvent(),
		Source:    source,
		Position:  position,
	}
}

// TrackStoppedEvent is published when playback is stopped by the user.
type TrackStoppedEvent struct {
	baseEvent
	Source string
}

// Type returns the event type.
func (e TrackStoppedEvent) Type() EventType {
	return EventTrackStopped
}

// NewTrackStoppedEvent creates a new TrackStoppedEvent.
func NewTrackStoppedEvent(source string) TrackStoppedEvent {
	return TrackStoppedEvent{
		baseEvent: newBaseEvent(),
		Source:    source,
	}
}

// TrackCompletedEvent is published when a track reaches its natural end.
type TrackCompletedEvent struct {
	baseEvent
	Source string
}

// Type returns the event type.
func (e TrackCompletedEvent) Type() EventType {
	return EventTrackCompleted
}

// NewTrackCompletedEvent creates a new TrackCompletedEvent.
func NewTrackCompletedEvent(source string) TrackCompletedEvent {
	return TrackCompletedEvent{
		baseEvent: newBaseEvent(),
		Source:    source,
	}
}

// TrackProgressEvent is published periodically during playback and after seeks.
type TrackProgressEvent struct {
	baseEvent
	Position time.Duration
	Duration time.Duration
}

// Type returns the event type.
func (e TrackProgressEvent) Type() EventType {
	return EventTrackProgress
}

// NewTrackProgressEvent creates a new TrackProgressEvent.
func NewTrackProgressEvent(position, duration time.Duration) TrackProgressEvent {
	return TrackProgressEvent{
		baseEvent: newBaseEvent(),
		Position:  position,
		Duration:  duration,
	}
}

// TrackErrorEvent is published when a track fails to load or play.
type TrackErrorEvent struct {
	baseEvent
	Source string
	Err    error
}

// Type returns the event type.
func (e TrackErrorEvent) Type() EventType {
	return EventTrackError
}

// NewTrackErrorEvent creates a new TrackErrorEvent.
func NewTrackErrorEvent(source string, err error) TrackErrorEvent {
	return TrackErrorEvent{
		baseEvent: newBaseEvent(),
		Source:    source,
		Err:       err,
	}
}

// VolumeChangedEvent is published when the volume changes.
type VolumeChangedEvent struct {
	baseEvent
	Volume float64 // 0.0 to 1.0
}

// Type returns the event type.
func (e VolumeChangedEvent) Type() EventType {
	return EventVolumeChanged
}

// NewVolumeChangedEvent creates a new VolumeChangedEvent.
func NewVolumeChangedEvent(volume float64) VolumeChangedEvent {
	return VolumeChangedEvent{
		baseEvent: newBaseEvent(),
		Volume:    volume,
	}
}

// MuteToggledEvent is published when mute is toggled.
type MuteToggledEvent struct {
	baseEvent
	Muted bool
}

// Type returns the event type.
func (e MuteToggledEvent) Type() EventType {
	return EventMuteToggled
}

// NewMuteToggledEvent creates a new MuteToggledEvent.
func NewMuteToggledEvent(muted bool) MuteToggledEvent {
	return MuteToggledEvent{
		baseEvent: newBaseEvent(),
		Muted:     muted,
	}
}

// AssetsAppliedEvent is published after a set of scene inputs has been applied.
// Assets holds the effective values, including tag-derived defaults.
type AssetsAppliedEvent struct {
	baseEvent
	Assets SceneAssets
}

// Type returns the event type.
func (e AssetsAppliedEvent) Type() EventType {
	return EventAssetsApplied
}

// NewAssetsAppliedEvent creates a new AssetsAppliedEvent.
func NewAssetsAppliedEvent(assets SceneAssets) AssetsAppliedEvent {
	return AssetsAppliedEvent{
		baseEvent: newBaseEvent(),
		Assets:    assets,
	}
}

// TextureSwappedEvent is published when a texture load completes and is installed.
type TextureSwappedEvent struct {
	baseEvent
	Element Element
	Source  string
}

// Type returns the event type.
func (e TextureSwappedEvent) Type() EventType {
	return EventTextureSwapped
}

// NewTextureSwappedEvent creates a new TextureSwappedEvent.
func NewTextureSwappedEvent(element Element, source string) TextureSwappedEvent {
	return TextureSwappedEvent{
		baseEvent: newBaseEvent(),
		Element:   element,
		Source:    source,
	}
}

// TextureFailedEvent is published when a texture load fails.
// The previous texture stays in place.
type TextureFailedEvent struct {
	baseEvent
	Element Element
	Source  string
	Err     error
}

// Type returns the event type.
func (e TextureFailedEvent) Type() EventType {
	return EventTextureFailed
}

// NewTextureFailedEvent creates a new TextureFailedEvent.
func NewTextureFailedEvent(element Element, source string, err error) TextureFailedEvent {
	return TextureFailedEvent{
		baseEvent: newBaseEvent(),
		Element:   element,
		Source:    source,
		Err:       err,
	}
}

// ViewportResizedEvent is published when the reference width changes.
type ViewportResizedEvent struct {
	baseEvent
	Width  float64
	Height float64
}

// Type returns the event type.
func (e ViewportResizedEvent) Type() EventType {
	return EventViewportResized
}

// NewViewportResizedEvent creates a new ViewportResizedEvent.
func NewViewportResizedEvent(width, height float64) ViewportResizedEvent {
	return ViewportResizedEvent{
		baseEvent: newBaseEvent(),
		Width:     width,
		Height:    height,
	}
}

// AssetChangedEvent is published when a watched asset file changes on disk.
type AssetChangedEvent struct {
	baseEvent
	Element Element
	Path    string
}

// Type returns the event type.
func (e AssetChangedEvent) Type() EventType {
	return EventAssetChanged
}

// NewAssetChangedEvent creates a new AssetChangedEvent.
func NewAssetChangedEvent(element Element, path string) AssetChangedEvent {
	return AssetChangedEvent{
		baseEvent: newBaseEvent(),
		Element:   element,
		Path:      path,
	}
}

// ExportStartedEvent is published when an export job begins.
type ExportStartedEvent struct {
	baseEvent
	JobID    string
	Settings ExportSettings
}

// Type returns the event type.
func (e ExportStartedEvent) Type() EventType {
	return EventExportStarted
}

// NewExportStartedEvent creates a new ExportStartedEvent.
func NewExportStartedEvent(jobID string, settings ExportSettings) ExportStartedEvent {
	return ExportStartedEvent{
		baseEvent: newBaseEvent(),
		JobID:     jobID,
		Settings:  settings,
	}
}

// ExportProgressEvent is published as frames are encoded.
type ExportProgressEvent struct {
	baseEvent
	Progress ExportProgress
}

// Type returns the event type.
func (e ExportProgressEvent) Type() EventType {
	return EventExportProgress
}

// NewExportProgressEvent creates a new ExportProgressEvent.
func NewExportProgressEvent(progress ExportProgress) ExportProgressEvent {
	return ExportProgressEvent{
		baseEvent: newBaseEvent(),
		Progress:  progress,
	}
}

// ExportCompletedEvent is published when an export job finishes successfully.
type ExportCompletedEvent struct {
	baseEvent
	Result ExportResult
}

// Type returns the event type.
func (e ExportCompletedEvent) Type() EventType {
	return EventExportCompleted
}

// NewExportCompletedEvent creates a new ExportCompletedEvent.
func NewExportCompletedEvent(result ExportResult) ExportCompletedEvent {
	return ExportCompletedEvent{
		baseEvent: newBaseEvent(),
		Result:    result,
	}
}

// ExportFailedEvent is published when an export job fails.
type ExportFailedEvent struct {
	baseEvent
	JobID string
	Err   error
}

// Type returns the event type.
func (e ExportFailedEvent) Type() EventType {
	return EventExportFailed
}

// NewExportFailedEvent creates a new ExportFailedEvent.
func NewExportFailedEvent(jobID string, err error) ExportFailedEvent {
	return ExportFailedEvent{
		baseEvent: newBaseEvent(),
		JobID:     jobID,
		Err:       err,
	}
}
