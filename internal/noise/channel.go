package noise

import (
	"sync"
	"time"

	"github.com/satindergrewal/stillroom/internal/audio"
)

// seamFade is the crossfade length hiding the loop seam of pink and brown.
const seamFade = 10 * time.Millisecond

// Channel is one band's looped generator and gain stage. It owns its
// synthesis memory; no two channels share state.
type Channel struct {
	band     Band
	gen      generator
	loopLen  int
	fadeLen  int
	rampTime time.Duration

	mu       sync.Mutex
	ramp     *audio.Ramp
	buf      []float32
	pos      int
	running  bool
	stopping bool
	detach   func()
	loops    int
}

func newChannel(b Band, gen generator, loop, ramp time.Duration) *Channel {
	fade := 0
	if b != White {
		fade = audio.SamplesFor(seamFade)
	}
	return &Channel{
		band:     b,
		gen:      gen,
		loopLen:  audio.SamplesFor(loop),
		fadeLen:  fade,
		rampTime: ramp,
		ramp:     audio.NewRamp(ramp),
	}
}

// Band returns the channel's band.
func (c *Channel) Band() Band {
	return c.band
}

// Running reports whether the channel is connected to the output mix.
func (c *Channel) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Generations returns how many loop buffers have been generated.
func (c *Channel) Generations() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loops
}

// Process implements audio.Source.
func (c *Channel) Process(mix []float32) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return false
	}

	for i := range mix {
		mix[i] += c.buf[c.pos] * float32(c.ramp.Next())
		c.pos++
		if c.pos == len(c.buf) {
			c.pos = 0
		}
	}

	if c.stopping && c.ramp.Settled() {
		c.stopLocked()
		return false
	}
	return true
}

// begin ramps toward gain, starting the generator at gain 0 first if it is
// not running. It reports whether the caller must connect the channel.
func (c *Channel) begin(gain float64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopping = false
	if c.running {
		c.ramp.SetTarget(gain)
		return false
	}
	if gain <= 0 {
		return false
	}

	c.buf = renderLoop(c.gen, c.loopLen, c.fadeLen)
	c.loops++
	c.pos = 0
	c.ramp = audio.NewRamp(c.rampTime)
	c.ramp.SetTarget(gain)
	c.running = true
	return true
}

func (c *Channel) attach(detach func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.detach = detach
}

// fadeOut ramps to silence; the channel detaches itself once it gets there.
func (c *Channel) fadeOut() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return
	}
	c.stopping = true
	c.ramp.SetTarget(0)
}

// halt stops the channel immediately and disconnects it.
func (c *Channel) halt() {
	c.mu.Lock()
	detach := c.detach
	c.stopLocked()
	c.mu.Unlock()

	if detach != nil {
		detach()
	}
}

func (c *Channel) stopLocked() {
	c.running = false
	c.stopping = false
	c.buf = nil
	c.detach = nil
}
