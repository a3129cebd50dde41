package visual

import (
	"errors"
	"image"
	"log/slog"
	"math"
	"math/rand"
	"sync"

	"github.com/fogleman/gg"

	"github.com/tejashwikalptaru/govis/internal/domain"
	"github.com/tejashwikalptaru/govis/internal/ports"
)

// SceneConfig configures a Scene.
type SceneConfig struct {
	Layout      Layout
	Palette     Palette
	Conditioner ConditionerConfig
	Dust        DustConfig

	// Width is the initial reference width (clamped by the layout).
	Width float64

	// Seed seeds the dust field; equal seeds give equal dust.
	Seed int64
}

// DefaultSceneConfig returns the standard composition at the canonical width.
func DefaultSceneConfig() SceneConfig {
	return SceneConfig{
		Layout:      DefaultLayout(),
		Palette:     DefaultPalette(),
		Conditioner: DefaultConditionerConfig(),
		Dust:        DefaultDustConfig(),
		Width:       CanonicalWidth,
		Seed:        1,
	}
}

// AlwaysPlaying is a PlaybackGate for offline rendering.
type AlwaysPlaying struct{}

// IsPlaying implements ports.PlaybackGate.
func (AlwaysPlaying) IsPlaying() bool { return true }

// Scene owns every visual element and advances them once per tick.
//
// Ticks, resizes, texture swaps and rendering may come from different goroutines;
// they are serialized by one mutex so a tick always sees a consistent scene.
type Scene struct {
	logger *slog.Logger
	source ports.FrequencySource
	gate   ports.PlaybackGate
	bus    ports.EventBus
	loader *TextureLoader

	mu         sync.Mutex
	cfg        SceneConfig
	geometry   Geometry
	cond       *Conditioner
	signals    Signals
	bars       RadialBars
	dust       *DustField
	background textureSlot
	emblem     textureSlot
	label      *labelText
	ticks      uint64
	closed     bool
}

// NewScene creates a scene sampling source and gated by gate.
// bus may be nil; when set, texture swaps and failures are published on it.
func NewScene(
	logger *slog.Logger,
	source ports.FrequencySource,
	gate ports.PlaybackGate,
	images ports.ImageLoader,
	bus ports.EventBus,
	cfg SceneConfig,
) (*Scene, error) {
	if source == nil || gate == nil {
		return nil, errors.New("scene requires a frequency source and a playback gate")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if images == nil {
		images = FileImageLoader{}
	}
	if cfg.Layout.Specs == nil {
		cfg.Layout = DefaultLayout()
	}

	label, err := newLabelText()
	if err != nil {
		return nil, err
	}

	g := cfg.Layout.Resolve(cfg.Width)
	s := &Scene{
		logger: logger,
		source: source,
		gate:   gate,
		bus:    bus,
		loader: NewTextureLoader(logger, images),
		cfg:    cfg,
		cond:   NewConditioner(cfg.Conditioner),
		label:  label,
		// nolint:gosec // G404 - weak random is fine for visual effects
		dust: NewDustField(cfg.Dust, g.Width, g.Height, rand.New(rand.NewSource(cfg.Seed))),
	}
	s.applyGeometry(g)
	s.signals.DynamicRadius = g.BaseRadius
	s.signals.ParticleSpeed = 1
	s.rebuildBars()

	return s, nil
}

// Tick samples the spectrum, conditions it, rebuilds the bar ring and advances the dust.
// It does nothing after Close or while the playback gate reports not playing. Panics are
// recovered and logged so a bad frame never stops the ticker.
func (s *Scene) Tick() {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scene tick panicked", slog.Any("panic", r))
		}
	}()

	s.mu.Lock()
	source, gate := s.source, s.gate
	s.mu.Unlock()
	if source == nil || gate == nil || !gate.IsPlaying() {
		return
	}
	snap := source.Snapshot()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.signals = s.cond.Step(snap, s.geometry.BaseRadius)
	s.rebuildBars()
	s.dust.Advance(s.signals.ParticleSpeed)
	s.ticks++
}

// rebuildBars redraws the ring from the current signals (caller holds mu).
func (s *Scene) rebuildBars() {
	stroke := BarStrokeWidth * s.sizeScale()
	s.bars.Rebuild(s.geometry.VisualizerCenter, s.signals.DynamicRadius, s.signals.Bands, s.cfg.Palette, stroke)
}

// Resize recomputes geometry for a new reference width. Smoothing state and
// pending texture loads are kept.
func (s *Scene) Resize(width float64) Geometry {
	s.mu.Lock()
	g := s.cfg.Layout.Resolve(width)
	if g == s.geometry {
		s.mu.Unlock()
		return g
	}
	s.applyGeometry(g)
	s.dust.Resize(g.Width, g.Height)
	s.signals.DynamicRadius = g.BaseRadius * (1 + s.signals.Energy*s.cfg.Conditioner.RadiusPulse)
	s.rebuildBars()
	s.mu.Unlock()

	if s.bus != nil {
		s.bus.Publish(domain.NewViewportResizedEvent(g.Width, g.Height))
	}
	return g
}

// applyGeometry installs g and rescales everything sized from it (caller holds mu).
func (s *Scene) applyGeometry(g Geometry) {
	s.geometry = g
	s.rescaleBackground()
	s.rescaleEmblem()
	s.label.setSize(LabelFontSize * s.sizeScale())
}

// sizeScale is the current width relative to the narrowest preview width.
// Strokes, dust and the label are sized for that width.
func (s *Scene) sizeScale() float64 {
	minWidth := s.cfg.Layout.MinWidth
	if minWidth <= 0 {
		minWidth = DefaultMinWidth
	}
	return s.geometry.Width / minWidth
}

func (s *Scene) rescaleBackground() {
	r := s.geometry.Background
	s.background.rescale(int(math.Round(r.Width)), int(math.Round(r.Height)), false)
}

// rescaleEmblem rescales the emblem and recomputes its circular mask.
func (s *Scene) rescaleEmblem() {
	r := s.geometry.Emblem
	s.emblem.rescale(int(math.Round(r.Width)), int(math.Round(r.Height)), true)
}

// SetLabel sets the label to "title - author", re-measures it and re-centers it.
// Either part may be empty.
func (s *Scene) SetLabel(title, author string) {
	text := domain.SceneAssets{Title: title, Author: author}.Label()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.label.setText(text)
}

// Label returns the label text and its top-left origin.
func (s *Scene) Label() (string, domain.Point) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.label.text, s.geometry.LabelOrigin(s.label.width)
}

// ReplaceBackground loads a new background texture asynchronously.
// On failure the current texture stays.
func (s *Scene) ReplaceBackground(path string) {
	s.replace(domain.ElementBackground, path)
}

// ReplaceEmblem loads a new emblem texture asynchronously and re-masks it.
// On failure the current texture stays.
func (s *Scene) ReplaceEmblem(path string) {
	s.replace(domain.ElementEmblem, path)
}

func (s *Scene) replace(element domain.Element, path string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	slot := s.slot(element)
	slot.latest++
	gen := slot.latest
	s.mu.Unlock()

	s.loader.Load(path, func(img image.Image, err error) {
		s.install(element, gen, path, img, err)
	})
}

// SetBackgroundImage installs an already decoded background.
func (s *Scene) SetBackgroundImage(img image.Image, source string) {
	s.installNow(domain.ElementBackground, img, source)
}

// SetEmblemImage installs an already decoded emblem, such as embedded cover art.
func (s *Scene) SetEmblemImage(img image.Image, source string) {
	s.installNow(domain.ElementEmblem, img, source)
}

func (s *Scene) installNow(element domain.Element, img image.Image, source string) {
	s.mu.Lock()
	slot := s.slot(element)
	slot.latest++
	gen := slot.latest
	s.mu.Unlock()

	s.install(element, gen, source, img, nil)
}

// install swaps a loaded texture in, unless a newer request superseded it.
func (s *Scene) install(element domain.Element, gen uint64, source string, img image.Image, err error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	slot := s.slot(element)
	if gen != slot.latest {
		s.mu.Unlock()
		s.logger.Debug("discarding superseded texture", slog.String("element", string(element)), slog.String("source", source))
		return
	}
	if err == nil && img == nil {
		err = domain.ErrUnsupportedFormat
	}
	if err == nil {
		slot.img = img
		slot.source = source
		if element == domain.ElementEmblem {
			s.rescaleEmblem()
		} else {
			s.rescaleBackground()
		}
	}
	s.mu.Unlock()

	if s.bus == nil {
		return
	}
	if err != nil {
		s.bus.Publish(domain.NewTextureFailedEvent(element, source, err))
		return
	}
	s.bus.Publish(domain.NewTextureSwappedEvent(element, source))
}

func (s *Scene) slot(element domain.Element) *textureSlot {
	if element == domain.ElementEmblem {
		return &s.emblem
	}
	return &s.background
}

// TextureSource returns the source of the element's current texture ("" if none).
func (s *Scene) TextureSource(element domain.Element) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.slot(element).source
}

// EmblemMask returns the center and radius of the emblem clip circle.
func (s *Scene) EmblemMask() (domain.Point, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.geometry.EmblemCenter, s.geometry.EmblemRadius
}

// Geometry returns the current resolved layout.
func (s *Scene) Geometry() Geometry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.geometry
}

// Signals returns the signals computed by the last tick.
func (s *Scene) Signals() Signals {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.signals
}

// SmoothingState returns the conditioner state.
func (s *Scene) SmoothingState() SmoothingState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cond.State()
}

// Bars returns the current bar segments.
func (s *Scene) Bars() []BarSegment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bars.Segments()
}

// Dust returns a copy of the dust particles.
func (s *Scene) Dust() []DustParticle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dust.Particles()
}

// Ticks returns the number of ticks that advanced the scene.
func (s *Scene) Ticks() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ticks
}

// Frame renders the scene into a new image at the current geometry size.
func (s *Scene) Frame() *image.RGBA {
	s.mu.Lock()
	w, h := s.geometry.PixelSize()
	s.mu.Unlock()

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	s.Render(dst)
	return dst
}

// Render draws the scene into dst. The composition keeps its 16:9 aspect: it
// is scaled uniformly to fit dst and centred, and the rest is backdrop.
func (s *Scene) Render(dst *image.RGBA) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := dst.Bounds()
	if b.Empty() || s.geometry.Width <= 0 {
		return
	}

	dc := gg.NewContextForRGBA(dst)
	dc.SetColor(s.cfg.Palette.Backdrop)
	dc.Clear()
	dx, dy := float64(b.Dx()), float64(b.Dy())
	k := math.Min(dx/s.geometry.Width, dy/s.geometry.Height)
	dc.Translate((dx-s.geometry.Width*k)/2, (dy-s.geometry.Height*k)/2)
	dc.Scale(k, k)

	if s.background.scaled != nil {
		r := s.geometry.Background
		dc.DrawImage(s.background.scaled, int(math.Round(r.X)), int(math.Round(r.Y)))
	}

	s.drawDust(dc)

	if s.emblem.scaled != nil {
		r := s.geometry.Emblem
		dc.DrawImage(s.emblem.scaled, int(math.Round(r.X)), int(math.Round(r.Y)))
	}

	s.bars.draw(dc)
	s.drawLabel(dc)
}

func (s *Scene) drawDust(dc *gg.Context) {
	c := s.cfg.Palette.Dust
	sizeScale := s.sizeScale()
	s.dust.each(func(p DustParticle) {
		x, y, scale := s.dust.Project(p)
		if x < 0 || y < 0 || x > s.geometry.Width || y > s.geometry.Height {
			return
		}
		dc.SetRGBA255(int(c.R), int(c.G), int(c.B), int(p.Alpha*255))
		dc.DrawCircle(x, y, p.Size*scale*sizeScale)
		dc.Fill()
	})
}

func (s *Scene) drawLabel(dc *gg.Context) {
	if s.label.text == "" || s.label.face == nil {
		return
	}
	origin := s.geometry.LabelOrigin(s.label.width)
	dc.SetFontFace(s.label.face)
	dc.SetColor(s.cfg.Palette.Label)
	dc.DrawStringAnchored(s.label.text, origin.X, origin.Y, 0, 1)
}

// WaitTextures blocks until in-flight texture loads have been installed.
func (s *Scene) WaitTextures() {
	s.loader.Wait()
}

// Close releases the frequency source and the playback gate, stops accepting
// texture loads and waits for in-flight ones. Later ticks do nothing.
func (s *Scene) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.ErrSceneClosed
	}
	s.closed = true
	s.source, s.gate = nil, nil
	s.mu.Unlock()

	s.loader.Close()
	return nil
}
