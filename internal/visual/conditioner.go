package visual

import (
	"math"

	"github.com/tejashwikalptaru/govis/internal/domain"
)

// BandCount is the number of radial bars.
const BandCount = 48

// ConditionerConfig holds the signal conditioning constants.
type ConditionerConfig struct {
	FloorDB         float64 // dB mapped to zero height
	BandExponent    float64 // emphasis exponent on the normalised band level
	BandHeightScale float64 // max bar height as a fraction of the base radius
	BandSmoothing   float64 // per-tick approach coefficient for bar heights
	EnergySmoothing float64 // per-tick approach coefficient for global energy
	RadiusPulse     float64 // radius growth at full energy, as a fraction of the base radius
	SpeedGain       float64 // particle speed added at full power
}

// DefaultConditionerConfig returns the tuned constants.
func DefaultConditionerConfig() ConditionerConfig {
	return ConditionerConfig{
		FloorDB:         domain.SilenceDB,
		BandExponent:    1.5,
		BandHeightScale: 0.7,
		BandSmoothing:   0.2,
		EnergySmoothing: 0.05,
		RadiusPulse:     0.4,
		SpeedGain:       4,
	}
}

// SmoothingState is the state carried between ticks.
type SmoothingState struct {
	Bands  [BandCount]float64
	Energy float64
}

// Signals are the per-tick values that drive the scene.
type Signals struct {
	Bands         [BandCount]float64 // smoothed bar heights in pixels
	Energy        float64            // smoothed global energy in [0, 1]
	DynamicRadius float64            // base radius pulsed by energy
	ParticleSpeed float64            // dust speed multiplier, 1 at silence
}

// Condition turns one snapshot into bar heights, energy and derived signals.
// It is pure: the returned state must be passed back in on the next tick.
func Condition(snap domain.FrequencySnapshot, prev SmoothingState, baseRadius float64, cfg ConditionerConfig) (SmoothingState, Signals) {
	if math.IsNaN(baseRadius) || baseRadius < 0 {
		baseRadius = 0
	}

	bins := snap.Bins
	n := len(bins)
	span := -cfg.FloorDB

	next := prev
	var sig Signals

	perBand := n / BandCount
	if perBand < 1 {
		perBand = 1
	}
	for i := 0; i < BandCount; i++ {
		target := 0.0
		if n > 0 {
			sum := 0.0
			for j := 0; j < perBand; j++ {
				idx := i*perBand + j
				if idx >= n {
					idx = n - 1
				}
				sum += clampDB(float64(bins[idx]), cfg.FloorDB)
			}
			norm := (sum/float64(perBand) - cfg.FloorDB) / span
			target = math.Pow(norm, cfg.BandExponent) * baseRadius * cfg.BandHeightScale
		}
		next.Bands[i] = approach(sanitize(prev.Bands[i]), target, cfg.BandSmoothing)
		sig.Bands[i] = next.Bands[i]
	}

	energy := 0.0
	meanDB := cfg.FloorDB
	if n > 0 {
		levelSum, dbSum := 0.0, 0.0
		for _, b := range bins {
			db := clampDB(float64(b), cfg.FloorDB)
			levelSum += db - cfg.FloorDB
			dbSum += db
		}
		energy = levelSum / float64(n) / span
		meanDB = dbSum / float64(n)
	}
	next.Energy = approach(sanitize(prev.Energy), energy, cfg.EnergySmoothing)

	sig.Energy = next.Energy
	sig.DynamicRadius = baseRadius * (1 + next.Energy*cfg.RadiusPulse)

	power := math.Pow(10, meanDB/10) - math.Pow(10, cfg.FloorDB/10)
	sig.ParticleSpeed = 1 + cfg.SpeedGain*math.Max(0, power)

	return next, sig
}

// Conditioner owns the smoothing state of one scene.
type Conditioner struct {
	cfg   ConditionerConfig
	state SmoothingState
}

// NewConditioner creates a conditioner with zeroed state.
func NewConditioner(cfg ConditionerConfig) *Conditioner {
	return &Conditioner{cfg: cfg}
}

// Step conditions one snapshot and advances the state.
func (c *Conditioner) Step(snap domain.FrequencySnapshot, baseRadius float64) Signals {
	var sig Signals
	c.state, sig = Condition(snap, c.state, baseRadius, c.cfg)
	return sig
}

// State returns the current smoothing state.
func (c *Conditioner) State() SmoothingState {
	return c.state
}

// Reset zeroes the smoothing state.
func (c *Conditioner) Reset() {
	c.state = SmoothingState{}
}

// clampDB maps NaN and -Inf to the floor and clamps to [floor, 0].
func clampDB(db, floor float64) float64 {
	if math.IsNaN(db) || db < floor {
		return floor
	}
	if db > 0 {
		return 0
	}
	return db
}

func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func approach(cur, target, coeff float64) float64 {
	return cur + (target-cur)*coeff
}
