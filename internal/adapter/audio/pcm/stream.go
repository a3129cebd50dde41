package pcm

import (
	"encoding/binary"
	"io"
	"math"
)

// streamReader feeds a track to the monitor output as float32 little-endian
// frames, applying the track volume as it reads.
type streamReader struct {
	engine   *Engine
	track    *track
	frame    int
	channels int
}

// Read implements io.Reader.
func (r *streamReader) Read(p []byte) (int, error) {
	r.engine.mu.RLock()
	volume := float32(r.track.volume)
	r.engine.mu.RUnlock()

	src := r.track.pcm
	total := src.frames()
	if r.frame >= total {
		return 0, io.EOF
	}

	frameBytes := 4 * r.channels
	n := 0
	for n+frameBytes <= len(p) && r.frame < total {
		left := src.samples[2*r.frame] * volume
		right := src.samples[2*r.frame+1] * volume
		if r.channels == 1 {
			putFloat32(p[n:], (left+right)/2)
		} else {
			putFloat32(p[n:], left)
			putFloat32(p[n+4:], right)
			for c := 2; c < r.channels; c++ {
				putFloat32(p[n+4*c:], 0)
			}
		}
		n += frameBytes
		r.frame++
	}
	return n, nil
}

func putFloat32(b []byte, v float32) {
	binary.LittleEndian.PutUint32(b, math.Float32bits(v))
}
