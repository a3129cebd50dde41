package visual

import (
	"fmt"
	"image/color"
	"math"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// Palette holds the scene colours.
type Palette struct {
	Low      color.RGBA // first radial bar
	High     color.RGBA // last radial bar
	Label    color.RGBA
	Backdrop color.RGBA // drawn where no background texture is loaded
	Dust     color.RGBA
}

// DefaultPalette returns cyan-to-magenta bars on black with white text.
func DefaultPalette() Palette {
	return Palette{
		Low:      HexColor(0x00cfff),
		High:     HexColor(0xff0055),
		Label:    color.RGBA{R: 255, G: 255, B: 255, A: 255},
		Backdrop: color.RGBA{A: 255},
		Dust:     color.RGBA{R: 255, G: 255, B: 255, A: 255},
	}
}

// ParsePalette returns the default palette with the bar colours replaced by
// the given hex strings ("#00cfff" form).
func ParsePalette(low, high string) (Palette, error) {
	p := DefaultPalette()

	lc, err := colorful.Hex(low)
	if err != nil {
		return p, fmt.Errorf("parse low colour %q: %w", low, err)
	}
	hc, err := colorful.Hex(high)
	if err != nil {
		return p, fmt.Errorf("parse high colour %q: %w", high, err)
	}

	p.Low = toRGBA(lc)
	p.High = toRGBA(hc)
	return p, nil
}

// HexColor converts 0xRRGGBB to an opaque colour.
func HexColor(rgb uint32) color.RGBA {
	return color.RGBA{R: uint8(rgb >> 16), G: uint8(rgb >> 8), B: uint8(rgb), A: 255}
}

// LerpColor interpolates each channel linearly and rounds to the nearest integer.
// t is clamped to [0, 1]; NaN counts as 0.
func LerpColor(a, b color.RGBA, t float64) color.RGBA {
	if math.IsNaN(t) || t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	c := fromRGBA(a).BlendRgb(fromRGBA(b), t)
	out := toRGBA(c)
	out.A = uint8(math.Round(float64(a.A) + (float64(b.A)-float64(a.A))*t))
	return out
}

func fromRGBA(c color.RGBA) colorful.Color {
	return colorful.Color{R: float64(c.R) / 255, G: float64(c.G) / 255, B: float64(c.B) / 255}
}

func toRGBA(c colorful.Color) color.RGBA {
	r, g, b := c.RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}
}
