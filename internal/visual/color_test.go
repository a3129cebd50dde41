package visual

import (
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHexColor(t *testing.T) {
	assert.Equal(t, color.RGBA{R: 0x00, G: 0xcf, B: 0xff, A: 0xff}, HexColor(0x00cfff))
	assert.Equal(t, color.RGBA{R: 0xff, G: 0x00, B: 0x55, A: 0xff}, HexColor(0xff0055))
}

func TestLerpColor_Endpoints(t *testing.T) {
	low, high := HexColor(0x00cfff), HexColor(0xff0055)

	assert.Equal(t, low, LerpColor(low, high, 0))
	assert.Equal(t, high, LerpColor(low, high, 1))
	assert.Equal(t, low, LerpColor(low, high, -3))
	assert.Equal(t, high, LerpColor(low, high, 7))
	assert.Equal(t, low, LerpColor(low, high, math.NaN()))
}

func TestLerpColor_Midpoint(t *testing.T) {
	black := color.RGBA{A: 255}
	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}

	mid := LerpColor(black, white, 0.5)
	assert.Equal(t, uint8(128), mid.R)
	assert.Equal(t, uint8(128), mid.G)
	assert.Equal(t, uint8(128), mid.B)
	assert.Equal(t, uint8(255), mid.A)
}

func TestLerpColor_Monotonic(t *testing.T) {
	low, high := HexColor(0x00cfff), HexColor(0xff0055)

	prev := LerpColor(low, high, 0)
	for i := 1; i <= BandCount; i++ {
		c := LerpColor(low, high, float64(i)/BandCount)
		assert.GreaterOrEqual(t, c.R, prev.R, "red must rise at step %d", i)
		assert.LessOrEqual(t, c.G, prev.G, "green must fall at step %d", i)
		assert.LessOrEqual(t, c.B, prev.B, "blue must fall at step %d", i)
		prev = c
	}
}

func TestParsePalette(t *testing.T) {
	p, err := ParsePalette("#112233", "#aabbcc")
	require.NoError(t, err)
	assert.Equal(t, HexColor(0x112233), p.Low)
	assert.Equal(t, HexColor(0xaabbcc), p.High)
	assert.Equal(t, DefaultPalette().Label, p.Label)

	_, err = ParsePalette("nope", "#aabbcc")
	assert.Error(t, err)

	_, err = ParsePalette("#112233", "")
	assert.Error(t, err)
}
