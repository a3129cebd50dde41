// Package dsp implements the spectrum analyser used to drive the visualizer.
//
// The analyser follows the usual real-time analyser node model: the most recent
// FFTSize samples are Blackman-windowed, transformed with a real FFT, normalised
// by the FFT size, smoothed over time and converted to decibels.
package dsp

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"

	"github.com/tejashwikalptaru/govis/internal/domain"
)

const (
	// MinFFTSize and MaxFFTSize bound the accepted transform sizes.
	MinFFTSize = 32
	MaxFFTSize = 32768

	// DefaultFFTSize yields 64 frequency bins.
	DefaultFFTSize = 128

	// DefaultSmoothing is the time-smoothing constant between consecutive analyses.
	DefaultSmoothing = 0.8
)

// ValidFFTSize reports whether n is a power of two in [MinFFTSize, MaxFFTSize].
func ValidFFTSize(n int) bool {
	return n >= MinFFTSize && n <= MaxFFTSize && n&(n-1) == 0
}

// Analyser converts time-domain samples to smoothed decibel magnitudes.
// An Analyser is not safe for concurrent use.
type Analyser struct {
	size      int
	smoothing float64
	minDB     float64

	fft      *fourier.FFT
	window   []float64
	windowed []float64
	coeffs   []complex128
	smoothed []float64
}

// NewAnalyser creates an analyser for the given FFT size.
func NewAnalyser(fftSize int) (*Analyser, error) {
	if !ValidFFTSize(fftSize) {
		return nil, fmt.Errorf("%w: %d", domain.ErrInvalidFFTSize, fftSize)
	}

	coeffs := make([]float64, fftSize)
	for i := range coeffs {
		coeffs[i] = 1
	}

	return &Analyser{
		size:      fftSize,
		smoothing: DefaultSmoothing,
		minDB:     domain.SilenceDB,
		fft:       fourier.NewFFT(fftSize),
		window:    window.Blackman(coeffs),
		windowed:  make([]float64, fftSize),
		coeffs:    make([]complex128, fftSize/2+1),
		smoothed:  make([]float64, fftSize/2),
	}, nil
}

// FFTSize returns the transform size.
func (a *Analyser) FFTSize() int { return a.size }

// BinCount returns the number of frequency bins, FFTSize/2.
func (a *Analyser) BinCount() int { return a.size / 2 }

// Smoothing returns the time-smoothing constant.
func (a *Analyser) Smoothing() float64 { return a.smoothing }

// SetSmoothing sets the time-smoothing constant in [0, 1].
func (a *Analyser) SetSmoothing(tc float64) error {
	if math.IsNaN(tc) || tc < 0 || tc > 1 {
		return domain.NewValidationError("smoothing", tc, "must be between 0 and 1")
	}
	a.smoothing = tc
	return nil
}

// MinDecibels returns the floor reported for bins without energy.
func (a *Analyser) MinDecibels() float64 { return a.minDB }

// SetMinDecibels sets the floor reported for bins without energy.
func (a *Analyser) SetMinDecibels(db float64) {
	a.minDB = db
}

// Reset clears the smoothing history.
func (a *Analyser) Reset() {
	for i := range a.smoothed {
		a.smoothed[i] = 0
	}
}

// FloatFrequencyData analyses the last FFTSize values of samples and writes up to
// BinCount decibel magnitudes to dst. Shorter input is zero-padded at the front.
// Non-finite samples are treated as zero. It returns the number of bins written.
func (a *Analyser) FloatFrequencyData(samples []float64, dst []float32) int {
	if len(samples) > a.size {
		samples = samples[len(samples)-a.size:]
	}
	pad := a.size - len(samples)
	for i := 0; i < pad; i++ {
		a.windowed[i] = 0
	}
	for i, s := range samples {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			s = 0
		}
		a.windowed[pad+i] = s * a.window[pad+i]
	}

	a.coeffs = a.fft.Coefficients(a.coeffs, a.windowed)

	n := a.BinCount()
	if len(dst) < n {
		n = len(dst)
	}
	scale := 1 / float64(a.size)
	for k := 0; k < a.BinCount(); k++ {
		mag := cmplx.Abs(a.coeffs[k]) * scale
		a.smoothed[k] = a.smoothing*a.smoothed[k] + (1-a.smoothing)*mag
		if k < n {
			dst[k] = float32(a.toDecibels(a.smoothed[k]))
		}
	}
	return n
}

func (a *Analyser) toDecibels(mag float64) float64 {
	if mag <= 0 || math.IsNaN(mag) {
		return a.minDB
	}
	db := 20 * math.Log10(mag)
	if db < a.minDB {
		return a.minDB
	}
	return db
}
