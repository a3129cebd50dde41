package ports

import (
	"image"

	"github.com/tejashwikalptaru/govis/internal/domain"
)

// FrequencySource yields one spectrum snapshot per call.
// Implementations never fail: when no audio is connected they return silence.
type FrequencySource interface {
	Snapshot() domain.FrequencySnapshot
}

// PlaybackGate reports whether the playback clock is advancing.
// The renderer consults it once per tick and freezes while it reports false.
type PlaybackGate interface {
	IsPlaying() bool
}

// ImageLoader decodes an image file.
type ImageLoader interface {
	LoadImage(path string) (image.Image, error)
}

// AssetWatcher notifies when watched asset files change on disk.
//
// Thread-safety: Implementations must be thread-safe.
type AssetWatcher interface {
	// Watch starts watching path for the given element, replacing any previous
	// path watched for that element.
	Watch(element domain.Element, path string) error

	// Unwatch stops watching the element's path.
	Unwatch(element domain.Element)

	// Close stops the watcher and releases its goroutine.
	Close() error
}
