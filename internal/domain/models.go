// Package domain contains core models and logic with no external dependencies.
// This package defines the fundamental entities of the GoVis visualizer.
package domain

import (
	"math"
	"time"
)

// Element identifies one of the fixed visual elements of the composition.
type Element string

const (
	// ElementBackground is the full-canvas background image.
	ElementBackground Element = "background"

	// ElementEmblem is the circular "major" image in the middle of the visualizer.
	ElementEmblem Element = "emblem"

	// ElementVisualizer is the radial frequency bar ring.
	ElementVisualizer Element = "visualizer"

	// ElementParticles is the ambient dust layer.
	ElementParticles Element = "particles"

	// ElementLabel is the "title - author" text label.
	ElementLabel Element = "label"
)

// LayoutSpec holds the fractional attributes of a visual element.
// All four values are fractions of the single reference width, including
// YFrac and HeightFrac, so the composition scales uniformly.
type LayoutSpec struct {
	XFrac      float64
	YFrac      float64
	WidthFrac  float64
	HeightFrac float64
}

// Point is a position in canvas pixels.
type Point struct {
	X float64
	Y float64
}

// Rect is an axis-aligned rectangle in canvas pixels.
type Rect struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Max returns the bottom-right corner of the rectangle.
func (r Rect) Max() Point {
	return Point{X: r.X + r.Width, Y: r.Y + r.Height}
}

// Center returns the center point of the rectangle.
func (r Rect) Center() Point {
	return Point{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

// Contains reports whether the point lies inside the rectangle (edges inclusive).
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X <= r.X+r.Width && p.Y >= r.Y && p.Y <= r.Y+r.Height
}

// SilenceDB is the magnitude reported for bins with no energy.
const SilenceDB = -100.0

// FrequencySnapshot is a single sampling of the spectrum, in decibels.
// Snapshots are produced once per tick and are never retained.
type FrequencySnapshot struct {
	Bins []float32
}

// NewSilentSnapshot returns a snapshot of n bins all at SilenceDB.
func NewSilentSnapshot(n int) FrequencySnapshot {
	bins := make([]float32, n)
	for i := range bins {
		bins[i] = SilenceDB
	}
	return FrequencySnapshot{Bins: bins}
}

// Len returns the number of bins in the snapshot.
func (s FrequencySnapshot) Len() int {
	return len(s.Bins)
}

// TrackHandle represents a handle to an audio track in the audio engine.
// This is an opaque identifier used by the audio engine to reference loaded tracks.
type TrackHandle int64

const (
	// InvalidTrackHandle represents an invalid or uninitialized track handle
	InvalidTrackHandle TrackHandle = 0
)

// PlaybackStatus represents the current playback state.
type PlaybackStatus int

const (
	// StatusStopped indicates playback is stopped
	StatusStopped PlaybackStatus = iota

	// StatusPlaying indicates playback is active
	StatusPlaying

	// StatusPaused indicates playback is paused
	StatusPaused
)

// String returns a human-readable representation of the playback status.
func (s PlaybackStatus) String() string {
	switch s {
	case StatusStopped:
		return "stopped"
	case StatusPlaying:
		return "playing"
	case StatusPaused:
		return "paused"
	default:
		return "unknown"
	}
}

// ContextState is the state of the audio output context.
// Output starts suspended until the first user-initiated play resumes it.
type ContextState int

const (
	// ContextSuspended means the output is not producing sound yet.
	ContextSuspended ContextState = iota

	// ContextRunning means the output is live.
	ContextRunning

	// ContextClosed means the output has been released.
	ContextClosed
)

// String returns a human-readable representation of the context state.
func (s ContextState) String() string {
	switch s {
	case ContextSuspended:
		return "suspended"
	case ContextRunning:
		return "running"
	case ContextClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// PlaybackState is the snapshot of the playback clock exposed to the UI and renderer.
type PlaybackState struct {
	// Source is the path of the loaded audio file ("" if none)
	Source string

	// Status is the current playback status
	Status PlaybackStatus

	// Position is the current playback position within the track
	Position time.Duration

	// Duration is the total length of the loaded track
	Duration time.Duration

	// Volume is the current volume level (0.0 to 1.0)
	Volume float64

	// IsMuted indicates if audio is muted
	IsMuted bool
}

// IsPlaying reports whether the clock is advancing.
func (s PlaybackState) IsPlaying() bool {
	return s.Status == StatusPlaying
}

// Progress returns Position/Duration in [0, 1], or 0 when the duration is unknown.
func (s PlaybackState) Progress() float64 {
	if s.Duration <= 0 {
		return 0
	}
	p := float64(s.Position) / float64(s.Duration)
	if math.IsNaN(p) || p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// SceneAssets is the set of user inputs driving the composition.
// Empty fields mean "unchanged" when applied to a running scene.
type SceneAssets struct {
	AudioPath      string
	Title          string
	Author         string
	EmblemPath     string
	BackgroundPath string
}

// Label returns the text shown under the visualizer.
func (a SceneAssets) Label() string {
	switch {
	case a.Title != "" && a.Author != "":
		return a.Title + " - " + a.Author
	case a.Title != "":
		return a.Title
	default:
		return a.Author
	}
}

// TrackInfo is the tag metadata extracted from an audio file.
type TrackInfo struct {
	FilePath string
	Title    string
	Artist   string
	Album    string
	Format   string

	// Picture is the embedded cover art as raw bytes (nil if absent)
	Picture []byte
}

// ExportMode selects how frames are produced during export.
type ExportMode string

const (
	// ExportOffline renders frames from a dedicated frame clock, faster than real time.
	ExportOffline ExportMode = "offline"

	// ExportRealtime captures the live scene while the track plays muted.
	ExportRealtime ExportMode = "realtime"
)

// ExportSettings configures a video export job.
type ExportSettings struct {
	// Width and Height are the output frame size in pixels (canonically 1920x1080)
	Width  int
	Height int

	// FPS is the output frame rate (24-60)
	FPS int

	// Output is the destination file path; empty selects a generated name
	Output string

	// Mode selects offline or realtime capture
	Mode ExportMode
}

// ExportResult describes a finished export job.
type ExportResult struct {
	JobID    string
	Path     string
	Location string
	Frames   int
	Duration time.Duration
}

// ExportProgress reports the progress of a running export job.
type ExportProgress struct {
	JobID       string
	Frame       int
	TotalFrames int
}

// Percentage returns the completion percentage (0-100), or -1 if the total is unknown.
func (p ExportProgress) Percentage() float64 {
	if p.TotalFrames <= 0 {
		return -1
	}
	return float64(p.Frame) / float64(p.TotalFrames) * 100.0
}

// Preferences contain user preferences and settings.
type Preferences struct {
	// Volume is the saved volume level (0.0 to 1.0)
	Volume float64

	// LastProject is the last applied set of scene inputs
	LastProject SceneAssets
}
