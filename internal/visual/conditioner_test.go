package visual

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tejashwikalptaru/govis/internal/domain"
)

func fullScale(n int) domain.FrequencySnapshot {
	return domain.FrequencySnapshot{Bins: make([]float32, n)}
}

func TestCondition_SilenceIsAtRest(t *testing.T) {
	cfg := DefaultConditionerConfig()
	state, sig := Condition(domain.NewSilentSnapshot(64), SmoothingState{}, 100, cfg)

	for i := range sig.Bands {
		assert.Zero(t, sig.Bands[i])
	}
	assert.Zero(t, state.Energy)
	assert.Equal(t, 100.0, sig.DynamicRadius)
	assert.Equal(t, 1.0, sig.ParticleSpeed)
}

func TestCondition_EmptySnapshot(t *testing.T) {
	_, sig := Condition(domain.FrequencySnapshot{}, SmoothingState{}, 100, DefaultConditionerConfig())

	assert.Equal(t, 100.0, sig.DynamicRadius)
	assert.Equal(t, 1.0, sig.ParticleSpeed)
}

func TestConditioner_ConvergesToTarget(t *testing.T) {
	const base = 100.0
	cfg := DefaultConditionerConfig()
	c := NewConditioner(cfg)

	target := base * cfg.BandHeightScale
	eps := 0.01
	ticks := int(math.Ceil(math.Log(eps) / math.Log(1-cfg.BandSmoothing)))

	// Every tick moves toward the target without overshooting it.
	step := func(tick int) Signals {
		prev := c.State()
		sig := c.Step(fullScale(64), base)
		cur := c.State()
		for i := range cur.Bands {
			assert.GreaterOrEqual(t, cur.Bands[i], prev.Bands[i], "tick %d band %d", tick, i)
			assert.LessOrEqual(t, cur.Bands[i], target+1e-9, "tick %d band %d", tick, i)
		}
		assert.GreaterOrEqual(t, cur.Energy, prev.Energy, "tick %d energy", tick)
		assert.LessOrEqual(t, cur.Energy, 1+1e-9, "tick %d energy", tick)
		return sig
	}

	var sig Signals
	for i := 0; i < ticks; i++ {
		sig = step(i)
	}
	for i := range sig.Bands {
		assert.InDelta(t, target, sig.Bands[i], target*eps, "band %d", i)
	}

	for i := 0; i < 400; i++ {
		sig = step(ticks + i)
	}
	assert.InDelta(t, 1.0, sig.Energy, 1e-6)
	assert.InDelta(t, base*(1+cfg.RadiusPulse), sig.DynamicRadius, 1e-4)
	assert.InDelta(t, 1+cfg.SpeedGain, sig.ParticleSpeed, 1e-6)
}

func TestConditioner_DecaysOnSilence(t *testing.T) {
	c := NewConditioner(DefaultConditionerConfig())
	for i := 0; i < 50; i++ {
		c.Step(fullScale(64), 100)
	}
	peak := c.State()

	c.Step(domain.NewSilentSnapshot(64), 100)
	after := c.State()
	for i := range after.Bands {
		assert.Less(t, after.Bands[i], peak.Bands[i])
		assert.InDelta(t, peak.Bands[i]*0.8, after.Bands[i], 1e-9)
	}
	assert.Less(t, after.Energy, peak.Energy)

	c.Reset()
	assert.Equal(t, SmoothingState{}, c.State())
}

func TestCondition_BandsBoundedByBase(t *testing.T) {
	cfg := DefaultConditionerConfig()
	loud := domain.FrequencySnapshot{Bins: make([]float32, 64)}
	for i := range loud.Bins {
		loud.Bins[i] = 30 // above 0 dB is clamped
	}

	state := SmoothingState{}
	var sig Signals
	for i := 0; i < 200; i++ {
		state, sig = Condition(loud, state, 100, cfg)
	}
	for _, h := range sig.Bands {
		assert.LessOrEqual(t, h, 100*cfg.BandHeightScale+1e-9)
		assert.GreaterOrEqual(t, h, 0.0)
	}
	assert.LessOrEqual(t, sig.Energy, 1.0)
}

func TestCondition_NonFiniteInput(t *testing.T) {
	snap := domain.FrequencySnapshot{Bins: []float32{
		float32(math.NaN()), float32(math.Inf(-1)), float32(math.Inf(1)), -40,
	}}
	prev := SmoothingState{Energy: math.NaN()}
	prev.Bands[0] = math.Inf(1)

	state, sig := Condition(snap, prev, 100, DefaultConditionerConfig())

	assert.False(t, math.IsNaN(state.Energy))
	for i := range sig.Bands {
		assert.False(t, math.IsNaN(sig.Bands[i]), "band %d", i)
		assert.False(t, math.IsInf(sig.Bands[i], 0), "band %d", i)
	}
	assert.False(t, math.IsNaN(sig.DynamicRadius))
	assert.False(t, math.IsNaN(sig.ParticleSpeed))
	assert.GreaterOrEqual(t, sig.ParticleSpeed, 1.0)
}

func TestCondition_FewerBinsThanBands(t *testing.T) {
	// With 16 bins, bands past the end reuse the last bin.
	snap := domain.NewSilentSnapshot(16)
	snap.Bins[15] = 0

	state := SmoothingState{}
	var sig Signals
	for i := 0; i < 100; i++ {
		state, sig = Condition(snap, state, 100, DefaultConditionerConfig())
	}
	assert.Zero(t, sig.Bands[0])
	assert.InDelta(t, 70, sig.Bands[15], 1e-3)
	assert.InDelta(t, 70, sig.Bands[47], 1e-3)
}

func TestCondition_AveragesAdjacentBins(t *testing.T) {
	// 96 bins give two bins per band.
	snap := domain.NewSilentSnapshot(96)
	snap.Bins[0] = 0 // band 0 averages 0 and -100: norm 0.5

	state := SmoothingState{}
	var sig Signals
	for i := 0; i < 200; i++ {
		state, sig = Condition(snap, state, 100, DefaultConditionerConfig())
	}
	assert.InDelta(t, math.Pow(0.5, 1.5)*70, sig.Bands[0], 1e-3)
	assert.Zero(t, sig.Bands[1])
}
