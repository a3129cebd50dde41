package visual

import (
	"image/color"
	"math"

	"github.com/fogleman/gg"

	"github.com/tejashwikalptaru/govis/internal/domain"
)

// BarStrokeWidth is the bar line width at the layout's minimum width.
const BarStrokeWidth = 2.2

// BarSegment is one radial line of the visualizer ring.
type BarSegment struct {
	Inner domain.Point
	Outer domain.Point
	Color color.RGBA
}

// RadialBars is the bar ring drawable. It is cleared and fully rebuilt every tick.
type RadialBars struct {
	segments    [BandCount]BarSegment
	count       int
	strokeWidth float64
}

// Clear removes all segments.
func (r *RadialBars) Clear() {
	r.count = 0
}

// Rebuild lays out one segment per band: from radius to radius+height at
// angle i*2π/BandCount, coloured from palette.Low to palette.High.
func (r *RadialBars) Rebuild(center domain.Point, radius float64, heights [BandCount]float64, palette Palette, strokeWidth float64) {
	r.Clear()
	r.strokeWidth = strokeWidth
	for i := 0; i < BandCount; i++ {
		angle := float64(i) * 2 * math.Pi / BandCount
		cos, sin := math.Cos(angle), math.Sin(angle)
		h := heights[i]
		if math.IsNaN(h) || h < 0 {
			h = 0
		}
		r.segments[i] = BarSegment{
			Inner: domain.Point{X: center.X + cos*radius, Y: center.Y + sin*radius},
			Outer: domain.Point{X: center.X + cos*(radius+h), Y: center.Y + sin*(radius+h)},
			Color: LerpColor(palette.Low, palette.High, float64(i)/BandCount),
		}
	}
	r.count = BandCount
}

// Segments returns a copy of the current segments.
func (r *RadialBars) Segments() []BarSegment {
	out := make([]BarSegment, r.count)
	copy(out, r.segments[:r.count])
	return out
}

func (r *RadialBars) draw(dc *gg.Context) {
	if r.count == 0 {
		return
	}
	dc.SetLineWidth(r.strokeWidth)
	for _, seg := range r.segments[:r.count] {
		dc.SetColor(seg.Color)
		dc.DrawLine(seg.Inner.X, seg.Inner.Y, seg.Outer.X, seg.Outer.Y)
		dc.Stroke()
	}
}
