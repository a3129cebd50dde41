package visual

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tejashwikalptaru/govis/internal/domain"
)

func TestLayout_ClampWidth(t *testing.T) {
	l := DefaultLayout()

	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{"below minimum", 800, DefaultMinWidth},
		{"at minimum", DefaultMinWidth, DefaultMinWidth},
		{"inside range", 1500, 1500},
		{"above maximum", 4000, DefaultMaxWidth},
		{"NaN", math.NaN(), DefaultMinWidth},
		{"infinite", math.Inf(1), DefaultMinWidth},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, l.ClampWidth(tt.in))
		})
	}
}

func TestLayout_ResolveCanonical(t *testing.T) {
	g := DefaultLayout().Resolve(1920)

	assert.Equal(t, 1920.0, g.Width)
	assert.Equal(t, 1080.0, g.Height)
	assert.Equal(t, 1.0, g.Scale)

	assert.Equal(t, domain.Rect{Width: 1920, Height: 1080}, g.Background)
	assert.InDelta(t, 816, g.Emblem.X, 1e-9)
	assert.InDelta(t, 163.2, g.Emblem.Y, 1e-9)
	assert.InDelta(t, 288, g.Emblem.Width, 1e-9)
	assert.InDelta(t, 144, g.EmblemRadius, 1e-9)
	assert.InDelta(t, 960, g.EmblemCenter.X, 1e-9)
	assert.InDelta(t, 307.2, g.EmblemCenter.Y, 1e-9)

	assert.InDelta(t, 960, g.VisualizerCenter.X, 1e-9)
	assert.InDelta(t, 307.2, g.VisualizerCenter.Y, 1e-9)
	assert.InDelta(t, 153.6, g.BaseRadius, 1e-9)

	assert.InDelta(t, 960, g.LabelAnchor.X, 1e-9)
	assert.InDelta(t, 614.4, g.LabelAnchor.Y, 1e-9)

	w, h := g.PixelSize()
	assert.Equal(t, 1920, w)
	assert.Equal(t, 1080, h)
}

func TestLayout_EmblemAndRingShareCenter(t *testing.T) {
	for _, w := range []float64{1054, 1280, 1600, 1920} {
		g := DefaultLayout().Resolve(w)
		assert.InDelta(t, g.EmblemCenter.X, g.VisualizerCenter.X, 1e-9, "width %v", w)
		assert.InDelta(t, g.EmblemCenter.Y, g.VisualizerCenter.Y, 1e-9, "width %v", w)
	}
}

func TestLayout_ScalesUniformly(t *testing.T) {
	l := DefaultLayout()
	small := l.Resolve(1054)
	large := l.Resolve(1920)

	ratio := large.Width / small.Width
	assert.InDelta(t, small.BaseRadius*ratio, large.BaseRadius, 1e-9)
	assert.InDelta(t, small.Emblem.Width*ratio, large.Emblem.Width, 1e-9)
	assert.InDelta(t, small.LabelAnchor.Y*ratio, large.LabelAnchor.Y, 1e-9)
	assert.InDelta(t, small.Width*AspectRatio, small.Height, 1e-9)
}

func TestLayout_ElementsInsideCanvas(t *testing.T) {
	for _, w := range []float64{1054, 1500, 1920} {
		g := DefaultLayout().Resolve(w)
		bounds := g.Bounds()
		assert.True(t, bounds.Contains(g.Emblem.Max()))
		assert.True(t, bounds.Contains(g.VisualizerCenter))
		assert.True(t, bounds.Contains(g.LabelAnchor))
	}
}

func TestGeometry_LabelOrigin(t *testing.T) {
	g := DefaultLayout().Resolve(1920)

	origin := g.LabelOrigin(200)
	assert.InDelta(t, 860, origin.X, 1e-9)
	assert.Equal(t, g.LabelAnchor.Y, origin.Y)

	assert.Equal(t, g.LabelAnchor, g.LabelOrigin(0))
}

func TestLayout_WithBounds(t *testing.T) {
	l := DefaultLayout().WithBounds(320, 640)

	g := l.Resolve(1920)
	assert.Equal(t, 640.0, g.Width)
	assert.InDelta(t, 640.0/CanonicalWidth, g.Scale, 1e-12)
}
