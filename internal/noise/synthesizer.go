package noise

import (
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/satindergrewal/stillroom/internal/audio"
	"github.com/satindergrewal/stillroom/internal/logger"
)

// ErrClosed is returned by operations on a released synthesizer.
var ErrClosed = errors.New("synthesizer closed")

// DefaultLoopDuration is the length of each band's looped buffer.
const DefaultLoopDuration = 2 * time.Second

// Graph is the real-time output the synthesizer renders into.
type Graph interface {
	Connect(src audio.Source) (func(), error)
	State() audio.State
	Resume() error
	Close() error
}

// Acquirer obtains the output graph. It is only called from SetVolume, so
// acquisition always follows an explicit caller action.
type Acquirer func() (Graph, error)

// Config contains options for the Synthesizer.
type Config struct {
	Acquire      Acquirer
	RampDuration time.Duration
	LoopDuration time.Duration
	// Seed makes channel noise reproducible; 0 picks a random seed.
	Seed uint64
	Log  *logger.Logger
}

// Status reports whether sound can actually be produced.
type Status struct {
	Acquired bool   `json:"acquired"`
	Degraded bool   `json:"degraded"`
	Error    string `json:"error,omitempty"`
}

// Synthesizer mixes white, pink and brown noise channels into a shared
// output graph that it acquires lazily and owns exclusively.
type Synthesizer struct {
	mu       sync.Mutex
	acquire  Acquirer
	channels [len(Bands)]*Channel
	volumes  Volumes
	graph    Graph
	degraded error
	closed   bool
	log      *logger.Logger
}

// New creates a synthesizer. No audio resources are touched until the first
// SetVolume call.
func New(cfg Config) *Synthesizer {
	if cfg.RampDuration <= 0 {
		cfg.RampDuration = audio.DefaultRampDuration
	}
	if cfg.LoopDuration < audio.FrameDuration {
		cfg.LoopDuration = DefaultLoopDuration
	}
	if cfg.Seed == 0 {
		cfg.Seed = rand.Uint64()
	}
	log := logger.OrNop(cfg.Log).Named("noise")
	if cfg.Acquire == nil {
		cfg.Acquire = DefaultAcquirer(log)
	}

	s := &Synthesizer{acquire: cfg.Acquire, log: log}
	for i, band := range Bands {
		rng := rand.New(rand.NewPCG(cfg.Seed, uint64(i)+1))
		s.channels[i] = newChannel(band, newGenerator(band, rng), cfg.LoopDuration, cfg.RampDuration)
	}
	return s
}

// DefaultAcquirer acquires the process-wide audio graph.
func DefaultAcquirer(log *logger.Logger) Acquirer {
	return func() (Graph, error) {
		g, err := audio.Acquire(audio.GraphConfig{Log: log})
		if err != nil {
			return nil, err
		}
		return g, nil
	}
}

// SetVolume clamps value to [0,1], records it and ramps the band toward it.
// Without an audio device it only records the value.
func (s *Synthesizer) SetVolume(band Band, value float64) error {
	idx, ok := band.index()
	if !ok {
		return ErrUnknownBand
	}
	value = ClampGain(value)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.volumes.set(band, value)

	g := s.graphLocked()
	if g == nil {
		return nil
	}
	if g.State() == audio.StateSuspended {
		if err := g.Resume(); err != nil {
			s.log.Warnw("resume audio graph failed", "err", err)
		}
	}

	ch := s.channels[idx]
	if !ch.begin(value) {
		return nil
	}
	detach, err := g.Connect(ch)
	if err != nil {
		s.dropGraphLocked()
		s.degradeLocked(err)
		return nil
	}
	ch.attach(detach)
	s.log.Debugw("noise channel started", "band", band, "gain", value)
	return nil
}

// Stop fades a band to silence and disconnects its generator.
func (s *Synthesizer) Stop(band Band) error {
	idx, ok := band.index()
	if !ok {
		return ErrUnknownBand
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.volumes.set(band, 0)
	s.channels[idx].fadeOut()
	return nil
}

// Volumes returns the last requested gain per band.
func (s *Synthesizer) Volumes() Volumes {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volumes
}

// Running reports whether band's generator is connected to the mix.
func (s *Synthesizer) Running(band Band) bool {
	idx, ok := band.index()
	if !ok {
		return false
	}
	return s.channels[idx].Running()
}

// Status reports acquisition state and any degradation.
func (s *Synthesizer) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{Acquired: s.graph != nil}
	if s.degraded != nil {
		st.Degraded = true
		st.Error = s.degraded.Error()
	}
	return st
}

// Close stops every channel, disconnects it and releases the output graph.
func (s *Synthesizer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	for _, ch := range s.channels {
		ch.halt()
	}
	if s.graph == nil {
		return nil
	}
	err := s.graph.Close()
	s.graph = nil
	return err
}

func (s *Synthesizer) graphLocked() Graph {
	if s.graph != nil && s.graph.State() == audio.StateClosed {
		s.log.Warnw("audio graph closed underneath the mixer, reacquiring")
		s.dropGraphLocked()
	}
	if s.graph != nil {
		return s.graph
	}
	if errors.Is(s.degraded, audio.ErrUnavailable) {
		return nil
	}

	g, err := s.acquire()
	if err != nil {
		if g != nil {
			g.Close()
		}
		s.degradeLocked(err)
		return nil
	}
	s.graph = g
	s.degraded = nil
	return g
}

// dropGraphLocked forgets the current graph and halts every channel, so the
// next SetVolume on a band regenerates it against a fresh graph.
func (s *Synthesizer) dropGraphLocked() {
	for _, ch := range s.channels {
		ch.halt()
	}
	s.graph = nil
}

func (s *Synthesizer) degradeLocked(err error) {
	if s.degraded == nil {
		s.log.Warnw("audio output unavailable, continuing silently", "err", err)
	}
	s.degraded = err
}
