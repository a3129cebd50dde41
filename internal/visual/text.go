package visual

import (
	"fmt"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

// LabelFontSize is the label size in points at the layout's minimum width.
const LabelFontSize = 32.0

// labelText is the label string plus a font face sized for the current geometry.
type labelText struct {
	font  *truetype.Font
	face  font.Face
	size  float64
	text  string
	width float64
}

func newLabelText() (*labelText, error) {
	f, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse label font: %w", err)
	}
	return &labelText{font: f}, nil
}

// setSize rebuilds the face if the size changed and re-measures the text.
func (l *labelText) setSize(size float64) {
	if l.face != nil && size == l.size {
		return
	}
	if l.face != nil {
		_ = l.face.Close()
	}
	l.size = size
	l.face = truetype.NewFace(l.font, &truetype.Options{Size: size, Hinting: font.HintingFull})
	l.measure()
}

// setText replaces the text and re-measures it.
func (l *labelText) setText(text string) {
	l.text = text
	l.measure()
}

func (l *labelText) measure() {
	if l.face == nil || l.text == "" {
		l.width = 0
		return
	}
	l.width = float64(font.MeasureString(l.face, l.text)) / 64
}
