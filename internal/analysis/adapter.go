// Package analysis connects a decoded audio source to the spectrum analyser and
// hands the renderer one frequency snapshot per tick.
package analysis

import (
	"log/slog"
	"sync"
	"time"

	"github.com/tejashwikalptaru/govis/internal/domain"
	"github.com/tejashwikalptaru/govis/internal/dsp"
	"github.com/tejashwikalptaru/govis/internal/ports"
)

// PositionFunc returns the playhead the analysis window should end at.
type PositionFunc func() (time.Duration, error)

// Adapter pulls frequency snapshots from an audio source.
// It never fails: when nothing is connected, or the source errors, it reports silence.
//
// Thread-safety: All operations are protected by a mutex.
type Adapter struct {
	logger *slog.Logger

	mu       sync.Mutex
	analyser *dsp.Analyser
	source   ports.SampleSource
	handle   domain.TrackHandle
	position PositionFunc

	window  []float64
	bins    []float32
	lastPos time.Duration
	hasLast bool
}

// NewAdapter creates an unconnected adapter with the given FFT size.
func NewAdapter(logger *slog.Logger, fftSize int) (*Adapter, error) {
	analyser, err := dsp.NewAnalyser(fftSize)
	if err != nil {
		return nil, err
	}
	return &Adapter{
		logger:   logger,
		analyser: analyser,
		window:   make([]float64, fftSize),
		bins:     domain.NewSilentSnapshot(analyser.BinCount()).Bins,
	}, nil
}

// Connect attaches the adapter to a loaded track. position supplies the playhead
// for each snapshot; live playback passes the engine position, export passes its frame clock.
func (a *Adapter) Connect(source ports.SampleSource, handle domain.TrackHandle, position PositionFunc) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.source = source
	a.handle = handle
	a.position = position
	a.hasLast = false
	a.analyser.Reset()
	a.logger.Debug("analyser connected", slog.Int64("handle", int64(handle)))
}

// Disconnect detaches the adapter. Later snapshots report silence.
func (a *Adapter) Disconnect() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.source = nil
	a.handle = domain.InvalidTrackHandle
	a.position = nil
	a.hasLast = false
	a.silence()
}

// Connected reports whether a source is attached.
func (a *Adapter) Connected() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.source != nil
}

// SetFFTSize replaces the analyser. Smoothing history is discarded.
func (a *Adapter) SetFFTSize(n int) error {
	analyser, err := dsp.NewAnalyser(n)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	_ = analyser.SetSmoothing(a.analyser.Smoothing())
	a.analyser = analyser
	a.window = make([]float64, n)
	a.bins = domain.NewSilentSnapshot(analyser.BinCount()).Bins
	a.hasLast = false
	return nil
}

// FFTSize returns the current transform size.
func (a *Adapter) FFTSize() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.analyser.FFTSize()
}

// BinCount returns the number of bins in each snapshot.
func (a *Adapter) BinCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.analyser.BinCount()
}

// SetSmoothing sets the analyser time-smoothing constant.
func (a *Adapter) SetSmoothing(tc float64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.analyser.SetSmoothing(tc)
}

// Snapshot returns the current spectrum in decibels.
// If the playhead has not moved since the previous call, the previous snapshot is reused.
func (a *Adapter) Snapshot() (snap domain.FrequencySnapshot) {
	a.mu.Lock()
	defer a.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("frequency snapshot panicked", slog.Any("panic", r))
			a.hasLast = false
			a.silence()
			snap = a.copyBins()
		}
	}()

	if a.source == nil || a.position == nil {
		a.silence()
		return a.copyBins()
	}

	pos, err := a.position()
	if err != nil {
		a.logger.Debug("playhead unavailable, reporting silence", slog.Any("error", err))
		a.hasLast = false
		a.silence()
		return a.copyBins()
	}

	if a.hasLast && pos == a.lastPos {
		return a.copyBins()
	}

	if _, err := a.source.SamplesAt(a.handle, pos, a.window); err != nil {
		a.logger.Debug("samples unavailable, reporting silence", slog.Any("error", err))
		a.hasLast = false
		a.silence()
		return a.copyBins()
	}

	a.analyser.FloatFrequencyData(a.window, a.bins)
	a.lastPos = pos
	a.hasLast = true
	return a.copyBins()
}

func (a *Adapter) silence() {
	for i := range a.bins {
		a.bins[i] = domain.SilenceDB
	}
}

func (a *Adapter) copyBins() domain.FrequencySnapshot {
	out := make([]float32, len(a.bins))
	copy(out, a.bins)
	return domain.FrequencySnapshot{Bins: out}
}

var _ ports.FrequencySource = (*Adapter)(nil)
