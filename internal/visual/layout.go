// Package visual renders the audio-reactive scene: layout, signal conditioning,
// the radial bar ring, ambient dust, textures and the label.
package visual

import (
	"math"

	"github.com/tejashwikalptaru/govis/internal/domain"
)

const (
	// CanonicalWidth is the export width; Geometry.Scale is relative to it.
	CanonicalWidth = 1920.0

	// AspectRatio is height/width of the canvas.
	AspectRatio = 9.0 / 16.0

	// DefaultMinWidth is the narrowest preview width.
	DefaultMinWidth = 1054.0

	// DefaultMaxWidth is the widest reference width.
	DefaultMaxWidth = CanonicalWidth
)

// Layout maps each element to its fractional attributes and clamps the reference width.
type Layout struct {
	Specs    map[domain.Element]domain.LayoutSpec
	MinWidth float64
	MaxWidth float64
}

// DefaultLayout returns the fixed composition.
func DefaultLayout() Layout {
	return Layout{
		Specs: map[domain.Element]domain.LayoutSpec{
			domain.ElementBackground: {XFrac: 0, YFrac: 0, WidthFrac: 1, HeightFrac: AspectRatio},
			domain.ElementEmblem:     {XFrac: 0.425, YFrac: 0.085, WidthFrac: 0.15, HeightFrac: 0.15},
			domain.ElementVisualizer: {XFrac: 0.5, YFrac: 0.16, WidthFrac: 0.08, HeightFrac: 0.5},
			domain.ElementParticles:  {XFrac: 0.5, YFrac: 0.16, WidthFrac: 0.01, HeightFrac: 0.01},
			domain.ElementLabel:      {XFrac: 0.5, YFrac: 0.32, WidthFrac: 1, HeightFrac: 0.5},
		},
		MinWidth: DefaultMinWidth,
		MaxWidth: DefaultMaxWidth,
	}
}

// WithBounds returns a copy of the layout with a different width range.
func (l Layout) WithBounds(minWidth, maxWidth float64) Layout {
	l.MinWidth = minWidth
	l.MaxWidth = maxWidth
	return l
}

// ClampWidth clamps w into [MinWidth, MaxWidth]. Non-finite input maps to MinWidth.
func (l Layout) ClampWidth(w float64) float64 {
	if math.IsNaN(w) || math.IsInf(w, 0) {
		return l.MinWidth
	}
	return math.Max(l.MinWidth, math.Min(l.MaxWidth, w))
}

// Geometry is the resolved pixel layout for one reference width.
type Geometry struct {
	Width  float64
	Height float64
	Scale  float64

	Background domain.Rect
	Emblem     domain.Rect

	EmblemCenter domain.Point
	EmblemRadius float64

	VisualizerCenter domain.Point
	BaseRadius       float64

	ParticleOrigin domain.Point
	LabelAnchor    domain.Point
}

// Resolve computes pixel geometry for the clamped reference width.
func (l Layout) Resolve(referenceWidth float64) Geometry {
	w := l.ClampWidth(referenceWidth)

	rect := func(e domain.Element) domain.Rect {
		s := l.Specs[e]
		return domain.Rect{X: s.XFrac * w, Y: s.YFrac * w, Width: s.WidthFrac * w, Height: s.HeightFrac * w}
	}
	anchor := func(e domain.Element) domain.Point {
		s := l.Specs[e]
		return domain.Point{X: s.XFrac * w, Y: s.YFrac * w}
	}

	emblem := rect(domain.ElementEmblem)
	return Geometry{
		Width:            w,
		Height:           w * AspectRatio,
		Scale:            w / CanonicalWidth,
		Background:       rect(domain.ElementBackground),
		Emblem:           emblem,
		EmblemCenter:     emblem.Center(),
		EmblemRadius:     emblem.Width / 2,
		VisualizerCenter: anchor(domain.ElementVisualizer),
		BaseRadius:       l.Specs[domain.ElementVisualizer].WidthFrac * w,
		ParticleOrigin:   anchor(domain.ElementParticles),
		LabelAnchor:      anchor(domain.ElementLabel),
	}
}

// Bounds is the canvas rectangle.
func (g Geometry) Bounds() domain.Rect {
	return domain.Rect{Width: g.Width, Height: g.Height}
}

// LabelOrigin returns the top-left origin that horizontally centers a label of
// the given width on the label anchor.
func (g Geometry) LabelOrigin(textWidth float64) domain.Point {
	return domain.Point{X: g.LabelAnchor.X - textWidth/2, Y: g.LabelAnchor.Y}
}

// PixelSize returns the canvas size rounded to whole pixels.
func (g Geometry) PixelSize() (int, int) {
	return int(math.Round(g.Width)), int(math.Round(g.Height))
}
