package service

import (
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tejashwikalptaru/govis/internal/adapter/audio/mock"
	"github.com/tejashwikalptaru/govis/internal/adapter/eventbus"
	"github.com/tejashwikalptaru/govis/internal/domain"
	"github.com/tejashwikalptaru/govis/internal/logger"
	"github.com/tejashwikalptaru/govis/internal/ports"
)

// fakeOutput records gain and context changes without touching a device.
type fakeOutput struct {
	mu        sync.Mutex
	gain      float64
	state     domain.ContextState
	resumes   int
	failStart bool
}

func newFakeOutput() *fakeOutput {
	return &fakeOutput{gain: 1, state: domain.ContextSuspended}
}

func (o *fakeOutput) SampleRate() int { return 44100 }
func (o *fakeOutput) Channels() int   { return 2 }
func (o *fakeOutput) Halt()           {}
func (o *fakeOutput) Close() error    { return nil }

func (o *fakeOutput) Start(io.Reader) error {
	if o.failStart {
		return errors.New("device unavailable")
	}
	return nil
}

func (o *fakeOutput) SetGain(gain float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.gain = gain
}

func (o *fakeOutput) Gain() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.gain
}

func (o *fakeOutput) State() domain.ContextState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *fakeOutput) Resume() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.resumes++
	o.state = domain.ContextRunning
	return nil
}

func (o *fakeOutput) Suspend() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state = domain.ContextSuspended
	return nil
}

func (o *fakeOutput) Resumes() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.resumes
}

var _ ports.AudioOutput = (*fakeOutput)(nil)

// newTestPlaybackService creates a playback service over an initialized mock engine.
func newTestPlaybackService(t *testing.T) (*PlaybackService, *mock.Engine, *eventbus.SyncEventBus, *fakeOutput) {
	t.Helper()

	engine := mock.NewEngine()
	require.NoError(t, engine.Initialize(44100))

	bus := eventbus.NewSyncEventBus(logger.NewTestLogger())
	output := newFakeOutput()
	service := NewPlaybackService(logger.NewTestLogger(), engine, bus, output)
	return service, engine, bus, output
}
