package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/tejashwikalptaru/govis/internal/visual"
)

// ErrRenderRunning is returned by Start when the loop is already running.
var ErrRenderRunning = errors.New("render loop already running")

// FrameFunc is called after every tick with the tick count of the scene.
type FrameFunc func(tick uint64)

// RenderService drives Scene.Tick from the display clock.
//
// Thread-safety: All operations are protected by a mutex. The frame callback
// runs on the ticker goroutine, outside the lock.
type RenderService struct {
	logger *slog.Logger
	scene  *visual.Scene
	fps    int

	mu       sync.Mutex
	onFrame  FrameFunc
	frameGen uint64
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewRenderService creates a render loop for scene at fps ticks per second.
// A non-positive fps selects 60.
func NewRenderService(logger *slog.Logger, scene *visual.Scene, fps int) *RenderService {
	if fps <= 0 {
		fps = 60
	}
	return &RenderService{
		logger: logger,
		scene:  scene,
		fps:    fps,
	}
}

// FPS returns the tick rate.
func (r *RenderService) FPS() int {
	return r.fps
}

// Scene returns the driven scene.
func (r *RenderService) Scene() *visual.Scene {
	return r.scene
}

// Start launches the ticker goroutine. It stops when ctx is cancelled or Stop is called.
func (r *RenderService) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancel != nil {
		return ErrRenderRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	r.cancel = cancel
	r.done = done

	interval := time.Second / time.Duration(r.fps)
	go r.loop(ctx, interval, done)

	r.logger.Debug("render loop started", slog.Int("fps", r.fps))
	return nil
}

func (r *RenderService) loop(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Step()
		}
	}
}

// Stop halts the ticker and waits for the goroutine to exit. It is a no-op when stopped.
func (r *RenderService) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	r.logger.Debug("render loop stopped")
}

// Running reports whether the ticker goroutine is active.
func (r *RenderService) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancel != nil
}

// Step runs exactly one tick and then the frame callback.
func (r *RenderService) Step() {
	r.scene.Tick()

	r.mu.Lock()
	cb := r.onFrame
	r.mu.Unlock()

	if cb != nil {
		cb(r.scene.Ticks())
	}
}

// OnFrame installs the per-tick callback, replacing any previous one.
// The returned func removes it, unless it has been replaced in the meantime.
func (r *RenderService) OnFrame(cb FrameFunc) (remove func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.frameGen++
	gen := r.frameGen
	r.onFrame = cb

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.frameGen == gen {
			r.onFrame = nil
		}
	}
}

// Resize forwards the reference width to the scene.
func (r *RenderService) Resize(width float64) visual.Geometry {
	return r.scene.Resize(width)
}
