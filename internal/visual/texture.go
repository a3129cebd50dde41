package visual

import (
	"image"
	"log/slog"
	"sync"

	"github.com/fogleman/gg"
	"golang.org/x/image/draw"

	// Extra decoders accepted for user images.
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/tejashwikalptaru/govis/internal/domain"
	"github.com/tejashwikalptaru/govis/internal/ports"
)

// FileImageLoader decodes images from disk (PNG, JPEG, GIF, BMP, WebP).
type FileImageLoader struct{}

// LoadImage implements ports.ImageLoader.
func (FileImageLoader) LoadImage(path string) (image.Image, error) {
	if path == "" {
		return nil, domain.ErrInvalidFilePath
	}
	return gg.LoadImage(path)
}

var _ ports.ImageLoader = FileImageLoader{}

// TextureLoader decodes images on background goroutines.
type TextureLoader struct {
	logger *slog.Logger
	images ports.ImageLoader

	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

// NewTextureLoader creates a loader backed by images.
func NewTextureLoader(logger *slog.Logger, images ports.ImageLoader) *TextureLoader {
	return &TextureLoader{logger: logger, images: images}
}

// Load decodes path asynchronously and calls done with the result.
// It returns false if the loader is closed.
func (l *TextureLoader) Load(path string, done func(image.Image, error)) bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.wg.Add(1)
	l.mu.Unlock()

	go func() {
		defer l.wg.Done()
		img, err := l.images.LoadImage(path)
		if err != nil {
			l.logger.Warn("texture load failed", slog.String("path", path), slog.Any("error", err))
		}
		done(img, err)
	}()
	return true
}

// Wait blocks until all in-flight loads have completed.
func (l *TextureLoader) Wait() {
	l.wg.Wait()
}

// Close rejects new loads and waits for in-flight ones.
func (l *TextureLoader) Close() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	l.wg.Wait()
}

// textureSlot is a swappable texture with its scaled copy for the current geometry.
type textureSlot struct {
	source string
	img    image.Image
	scaled *image.RGBA
	latest uint64 // generation of the most recent load request
}

// rescale scales the texture into a w x h image. circular applies a circular
// alpha mask inscribed in the rectangle.
func (t *textureSlot) rescale(w, h int, circular bool) {
	if t.img == nil || w <= 0 || h <= 0 {
		t.scaled = nil
		return
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.BiLinear.Scale(dst, dst.Bounds(), t.img, t.img.Bounds(), draw.Src, nil)
	if !circular {
		t.scaled = dst
		return
	}

	dc := gg.NewContext(w, h)
	dc.DrawCircle(float64(w)/2, float64(h)/2, float64(min(w, h))/2)
	dc.Clip()
	dc.DrawImage(dst, 0, 0)
	t.scaled = dc.Image().(*image.RGBA)
}
