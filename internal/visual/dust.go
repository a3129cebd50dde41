package visual

import (
	"math"
	"math/rand"
)

// DustConfig holds the dust field constants.
type DustConfig struct {
	Count       int
	Perspective float64 // focal distance P in scale = P/(P-z)
	Depth       float64 // far plane at z = -Depth
	NearZ       float64 // particles past this z are recycled; must be < Perspective
	BaseStep    float64 // z advance per tick at speed 1
	MinSize     float64 // radius in pixels at scale 1 on the canonical width
	MaxSize     float64
}

// DefaultDustConfig returns the tuned dust constants.
func DefaultDustConfig() DustConfig {
	return DustConfig{
		Count:       160,
		Perspective: 600,
		Depth:       1200,
		NearZ:       450,
		BaseStep:    1.5,
		MinSize:     0.6,
		MaxSize:     1.8,
	}
}

// DustParticle is one point of ambient dust in a perspective volume.
type DustParticle struct {
	X, Y, Z float64
	Size    float64
	Alpha   float64
}

// DustField is a fixed-size pool of dust particles drifting toward the viewer.
// The pool never grows or shrinks and every particle's depth stays within
// [-Depth, NearZ]. A DustField is not safe for concurrent use.
type DustField struct {
	cfg       DustConfig
	width     float64
	height    float64
	particles []DustParticle
	rng       *rand.Rand
}

// NewDustField creates a field of cfg.Count particles spread through the volume.
func NewDustField(cfg DustConfig, width, height float64, rng *rand.Rand) *DustField {
	if cfg.Count < 0 {
		cfg.Count = 0
	}
	if cfg.NearZ >= cfg.Perspective {
		cfg.NearZ = cfg.Perspective * 0.75
	}
	f := &DustField{
		cfg:       cfg,
		width:     width,
		height:    height,
		particles: make([]DustParticle, cfg.Count),
		rng:       rng,
	}
	for i := range f.particles {
		f.spawn(&f.particles[i], true)
	}
	return f
}

// spawn places p at a random x, y. Initial particles get a random depth,
// recycled ones start on the far plane.
// nolint:gosec // G404 - weak random is fine for visual effects
func (f *DustField) spawn(p *DustParticle, anyDepth bool) {
	p.X = f.rng.Float64() * f.width
	p.Y = f.rng.Float64() * f.height
	if anyDepth {
		p.Z = -f.cfg.Depth + f.rng.Float64()*(f.cfg.Depth+f.cfg.NearZ)
	} else {
		p.Z = -f.cfg.Depth
	}
	p.Size = f.cfg.MinSize + f.rng.Float64()*(f.cfg.MaxSize-f.cfg.MinSize)
	p.Alpha = 0.25 + f.rng.Float64()*0.55
}

// Advance moves every particle toward the viewer by BaseStep*speed.
// Particles that pass NearZ are recycled to the far plane.
func (f *DustField) Advance(speed float64) {
	if speed < 0 || math.IsNaN(speed) {
		speed = 0
	}
	step := f.cfg.BaseStep * speed
	for i := range f.particles {
		p := &f.particles[i]
		p.Z += step
		if p.Z > f.cfg.NearZ {
			f.spawn(p, false)
		}
	}
}

// Resize rescales particle x and y to a new canvas size.
func (f *DustField) Resize(width, height float64) {
	if f.width > 0 && f.height > 0 {
		sx, sy := width/f.width, height/f.height
		for i := range f.particles {
			f.particles[i].X *= sx
			f.particles[i].Y *= sy
		}
	}
	f.width = width
	f.height = height
}

// Project maps a particle to screen space: scale = P/(P-z) and
// x2d = (x - W/2)*scale + W/2, likewise for y.
func (f *DustField) Project(p DustParticle) (x, y, scale float64) {
	scale = f.cfg.Perspective / (f.cfg.Perspective - p.Z)
	x = (p.X-f.width/2)*scale + f.width/2
	y = (p.Y-f.height/2)*scale + f.height/2
	return x, y, scale
}

// Len returns the pool size.
func (f *DustField) Len() int {
	return len(f.particles)
}

// Particles returns a copy of the pool.
func (f *DustField) Particles() []DustParticle {
	out := make([]DustParticle, len(f.particles))
	copy(out, f.particles)
	return out
}

// Config returns the field configuration.
func (f *DustField) Config() DustConfig {
	return f.cfg
}

// each calls fn for every particle in pool order.
func (f *DustField) each(fn func(p DustParticle)) {
	for _, p := range f.particles {
		fn(p)
	}
}
