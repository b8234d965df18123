package audio

import "time"

const (
	SampleRate    = 48000
	Channels      = 2
	BitDepth      = 16
	FrameDuration = 20 * time.Millisecond
	FrameSize     = 960                  // samples per channel per 20ms frame
	FrameSamples  = FrameSize * Channels // total interleaved samples per frame
	FrameBytes    = FrameSamples * 2     // bytes per frame (int16 = 2 bytes)
)

// Source renders mono samples into the graph's mix bus.
type Source interface {
	// Process adds len(mix) samples into mix. Returning false detaches the
	// source from the graph after this frame.
	Process(mix []float32) bool
}

// SamplesFor returns the number of samples per channel covering d.
func SamplesFor(d time.Duration) int {
	return int(int64(d) * SampleRate / int64(time.Second))
}
