// Package oto provides the monitoring output stage on top of oto/v2.
package oto

import (
	"errors"
	"io"
	"log/slog"
	"math"
	"sync"
	"time"

	oto "github.com/hajimehoshi/oto/v2"

	"github.com/tejashwikalptaru/govis/internal/domain"
	"github.com/tejashwikalptaru/govis/internal/ports"
)

// readyTimeout bounds how long Start waits for the device to come up.
const readyTimeout = 3 * time.Second

// errDeviceNotReady is returned when the device did not become ready in time.
var errDeviceNotReady = errors.New("audio device not ready")

// Monitor is a float32 stereo output with a gain stage.
// The context starts suspended; Resume is called on the first user play.
type Monitor struct {
	logger     *slog.Logger
	ctx        *oto.Context
	ready      chan struct{}
	sampleRate int
	channels   int

	mu     sync.Mutex
	player oto.Player
	gain   float64
	state  domain.ContextState
}

// NewMonitor opens the default output device.
func NewMonitor(logger *slog.Logger, sampleRate, channels int) (*Monitor, error) {
	ctx, ready, err := oto.NewContext(sampleRate, channels, oto.FormatFloat32LE)
	if err != nil {
		return nil, domain.NewAudioEngineError("open output", "", "failed to create audio context", err)
	}
	m := &Monitor{
		logger:     logger,
		ctx:        ctx,
		ready:      ready,
		sampleRate: sampleRate,
		channels:   channels,
		gain:       1,
		state:      domain.ContextSuspended,
	}
	if err := ctx.Suspend(); err != nil {
		logger.Warn("could not suspend new audio context", slog.Any("error", err))
	}
	return m, nil
}

// SampleRate implements ports.AudioOutput.
func (m *Monitor) SampleRate() int { return m.sampleRate }

// Channels implements ports.AudioOutput.
func (m *Monitor) Channels() int { return m.channels }

// Start replaces the current player with one reading r.
func (m *Monitor) Start(r io.Reader) error {
	select {
	case <-m.ready:
	case <-time.After(readyTimeout):
		return errDeviceNotReady
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == domain.ContextClosed {
		return domain.ErrNotInitialized
	}
	m.haltLocked()
	p := m.ctx.NewPlayer(r)
	p.SetVolume(m.gain)
	p.Play()
	m.player = p
	return nil
}

// Halt stops the current player.
func (m *Monitor) Halt() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.haltLocked()
}

func (m *Monitor) haltLocked() {
	if m.player == nil {
		return
	}
	m.player.Pause()
	if err := m.player.Close(); err != nil {
		m.logger.Debug("closing player", slog.Any("error", err))
	}
	m.player = nil
}

// SetGain sets the output gain, clamped to [0, 1].
func (m *Monitor) SetGain(gain float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gain = clampGain(gain)
	if m.player != nil {
		m.player.SetVolume(m.gain)
	}
}

// Gain returns the output gain.
func (m *Monitor) Gain() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gain
}

// State implements ports.AudioOutput.
func (m *Monitor) State() domain.ContextState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Resume starts the device. It is a no-op when already running.
func (m *Monitor) Resume() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case domain.ContextRunning:
		return nil
	case domain.ContextClosed:
		return domain.ErrNotInitialized
	}
	if err := m.ctx.Resume(); err != nil {
		return domain.NewAudioEngineError("resume", "", "failed to resume audio context", err)
	}
	m.state = domain.ContextRunning
	m.logger.Debug("audio output resumed")
	return nil
}

// Suspend pauses the device without releasing it.
func (m *Monitor) Suspend() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != domain.ContextRunning {
		return nil
	}
	if err := m.ctx.Suspend(); err != nil {
		return domain.NewAudioEngineError("suspend", "", "failed to suspend audio context", err)
	}
	m.state = domain.ContextSuspended
	return nil
}

// Close halts output. oto keeps the device for the life of the process, so
// the context is only suspended.
func (m *Monitor) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == domain.ContextClosed {
		return nil
	}
	m.haltLocked()
	if m.state == domain.ContextRunning {
		_ = m.ctx.Suspend()
	}
	m.state = domain.ContextClosed
	return nil
}

func clampGain(g float64) float64 {
	if math.IsNaN(g) || g < 0 {
		return 0
	}
	return math.Min(g, 1)
}

var _ ports.AudioOutput = (*Monitor)(nil)
