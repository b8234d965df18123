package noise

import (
	"math/rand/v2"

	"github.com/satindergrewal/stillroom/internal/audio"
)

// generator continues a noise signal from its own private state.
type generator interface {
	fill(buf []float32)
}

func newGenerator(b Band, rng *rand.Rand) generator {
	switch b {
	case Pink:
		return &pinkGen{rng: rng}
	case Brown:
		return &brownGen{rng: rng}
	default:
		return &whiteGen{rng: rng}
	}
}

func whiteSample(rng *rand.Rand) float64 {
	return rng.Float64()*2 - 1
}

type whiteGen struct {
	rng *rand.Rand
}

func (g *whiteGen) fill(buf []float32) {
	for i := range buf {
		buf[i] = float32(whiteSample(g.rng))
	}
}

// pinkGen is Paul Kellet's refined pink noise filter.
type pinkGen struct {
	rng                        *rand.Rand
	b0, b1, b2, b3, b4, b5, b6 float64
}

func (g *pinkGen) fill(buf []float32) {
	for i := range buf {
		w := whiteSample(g.rng)
		g.b0 = 0.99886*g.b0 + w*0.0555179
		g.b1 = 0.99332*g.b1 + w*0.0750759
		g.b2 = 0.96900*g.b2 + w*0.1538520
		g.b3 = 0.86650*g.b3 + w*0.3104856
		g.b4 = 0.55000*g.b4 + w*0.5329522
		g.b5 = -0.7616*g.b5 - w*0.0168980
		out := g.b0 + g.b1 + g.b2 + g.b3 + g.b4 + g.b5 + g.b6 + w*0.5362
		buf[i] = float32(out * 0.11)
		g.b6 = w * 0.115926
	}
}

// brownGen is a leaky random-walk integrator.
type brownGen struct {
	rng     *rand.Rand
	lastOut float64
}

func (g *brownGen) fill(buf []float32) {
	for i := range buf {
		w := whiteSample(g.rng)
		g.lastOut = (g.lastOut + 0.02*w) / 1.02
		// compensate for the integrator's attenuation
		buf[i] = float32(g.lastOut * 3.5)
	}
}

// renderLoop produces length samples that loop back on themselves. With a
// non-zero fade the head is crossfaded from the signal's continuation, so
// the sample after the last one is the one the generator would have made
// next.
func renderLoop(gen generator, length, fade int) []float32 {
	if fade > length {
		fade = length
	}
	buf := make([]float32, length+fade)
	gen.fill(buf)

	out := buf[:length:length]
	tail := buf[length:]
	for i := 0; i < fade; i++ {
		w := float32(audio.Smoothstep(float64(i) / float64(fade)))
		out[i] = tail[i]*(1-w) + out[i]*w
	}
	return out
}
