package audio

import "time"

// DefaultRampDuration is how long a gain change takes to settle.
const DefaultRampDuration = 100 * time.Millisecond

// Smoothstep returns the smoothstep interpolation for t in [0,1].
// Formula: 3t^2 - 2t^3.
func Smoothstep(t float64) float64 {
	if t <= 0 {
		return 0
	}
	if t >= 1 {
		return 1
	}
	return t * t * (3 - 2*t)
}

// Ramp is a smoothed gain stage. A new target restarts the curve from the
// current gain, so redirecting mid-ramp never jumps.
type Ramp struct {
	from    float64
	target  float64
	current float64
	pos     int
	length  int
}

// NewRamp returns a settled ramp at gain 0 that takes d to reach new targets.
func NewRamp(d time.Duration) *Ramp {
	length := SamplesFor(d)
	if length < 1 {
		length = 1
	}
	return &Ramp{length: length, pos: length}
}

// SetTarget starts a ramp from the current gain toward target.
func (r *Ramp) SetTarget(target float64) {
	r.from = r.current
	r.target = target
	r.pos = 0
}

// Target returns the last requested gain.
func (r *Ramp) Target() float64 {
	return r.target
}

// Value returns the gain applied to the most recent sample.
func (r *Ramp) Value() float64 {
	return r.current
}

// Settled reports whether the ramp has reached its target.
func (r *Ramp) Settled() bool {
	return r.pos >= r.length
}

// Next advances one sample and returns the gain for it.
func (r *Ramp) Next() float64 {
	if r.pos >= r.length {
		r.current = r.target
		return r.current
	}
	r.pos++
	r.current = r.from + (r.target-r.from)*Smoothstep(float64(r.pos)/float64(r.length))
	return r.current
}
