package audio

import (
	"errors"
	"sync"
	"time"

	"github.com/satindergrewal/stillroom/internal/logger"
)

var (
	// ErrUnavailable indicates the host has no real-time audio capability.
	ErrUnavailable = errors.New("real-time audio unavailable")
	// ErrClosed is returned when operating on a released graph.
	ErrClosed = errors.New("audio graph closed")
)

// State is the lifecycle state of a Graph.
type State string

const (
	StateRunning   State = "running"
	StateSuspended State = "suspended"
	StateClosed    State = "closed"
)

// GraphConfig controls how a graph is created.
type GraphConfig struct {
	// Disabled reports the host as having no audio output.
	Disabled bool
	// Manual creates a graph without a render loop; the caller drives
	// RenderFrame (offline rendering, tests).
	Manual bool
	Log    *logger.Logger
}

var (
	sharedMu sync.Mutex
	shared   *Graph
)

// Acquire returns the process-wide graph, creating it on first use. While a
// graph is open every caller gets the same instance.
func Acquire(cfg GraphConfig) (*Graph, error) {
	if cfg.Disabled {
		return nil, ErrUnavailable
	}

	sharedMu.Lock()
	defer sharedMu.Unlock()
	if shared != nil && shared.State() != StateClosed {
		return shared, nil
	}
	shared = newGraph(cfg)
	return shared, nil
}

// NewOffline creates a manually clocked graph separate from the
// process-wide instance, for rendering to files.
func NewOffline(log *logger.Logger) *Graph {
	return newGraph(GraphConfig{Manual: true, Log: log})
}

type connection struct {
	src Source
}

// Graph mixes connected sources into 20ms PCM frames on its own render
// goroutine. Sources are pulled, never pushed.
type Graph struct {
	mu      sync.Mutex
	state   State
	conns   []*connection
	mix     []float32
	frameCh chan []int16
	stopCh  chan struct{}
	done    chan struct{}
	log     *logger.Logger

	rendered uint64
}

func newGraph(cfg GraphConfig) *Graph {
	g := &Graph{
		state:   StateRunning,
		mix:     make([]float32, FrameSize),
		frameCh: make(chan []int16, 8),
		log:     logger.OrNop(cfg.Log).Named("graph"),
	}
	if !cfg.Manual {
		g.stopCh = make(chan struct{})
		g.done = make(chan struct{})
		go g.run()
	}
	g.log.Infow("audio graph acquired", "sample_rate", SampleRate, "manual", cfg.Manual)
	return g
}

// SampleRate returns the rendering sample rate.
func (g *Graph) SampleRate() int {
	return SampleRate
}

// Frames returns the channel of rendered PCM frames (20ms each). Frames are
// dropped when nobody reads; the channel closes when the graph closes.
func (g *Graph) Frames() <-chan []int16 {
	return g.frameCh
}

// State returns the current lifecycle state.
func (g *Graph) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Connect attaches src to the mix bus. The returned function detaches it and
// is safe to call more than once.
func (g *Graph) Connect(src Source) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == StateClosed {
		return nil, ErrClosed
	}
	c := &connection{src: src}
	g.conns = append(g.conns, c)
	return func() { g.disconnect(c) }, nil
}

// Connected returns the number of attached sources.
func (g *Graph) Connected() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.conns)
}

// Rendered returns the number of frames rendered so far.
func (g *Graph) Rendered() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rendered
}

// Suspend stops rendering without releasing the graph.
func (g *Graph) Suspend() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == StateClosed {
		return ErrClosed
	}
	g.state = StateSuspended
	return nil
}

// Resume restarts rendering after Suspend.
func (g *Graph) Resume() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == StateClosed {
		return ErrClosed
	}
	if g.state == StateSuspended {
		g.state = StateRunning
		g.log.Debugw("audio graph resumed")
	}
	return nil
}

// RenderFrame pulls one frame from every connected source and returns it as
// interleaved PCM. It returns nil unless the graph is running.
func (g *Graph) RenderFrame() []int16 {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != StateRunning {
		return nil
	}

	clear(g.mix)
	kept := g.conns[:0]
	for _, c := range g.conns {
		if c.src.Process(g.mix) {
			kept = append(kept, c)
		}
	}
	clear(g.conns[len(kept):])
	g.conns = kept
	g.rendered++
	return MixToPCM(g.mix, Channels)
}

// Close stops every source, halts the render loop and waits for it to exit.
// No frame renders after Close returns.
func (g *Graph) Close() error {
	g.mu.Lock()
	if g.state == StateClosed {
		g.mu.Unlock()
		return nil
	}
	g.state = StateClosed
	g.conns = nil
	stop := g.stopCh
	g.mu.Unlock()

	if stop != nil {
		close(stop)
		<-g.done
	} else {
		close(g.frameCh)
	}

	sharedMu.Lock()
	if shared == g {
		shared = nil
	}
	sharedMu.Unlock()

	g.log.Infow("audio graph released")
	return nil
}

func (g *Graph) disconnect(c *connection) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i, conn := range g.conns {
		if conn == c {
			g.conns = append(g.conns[:i], g.conns[i+1:]...)
			return
		}
	}
}

func (g *Graph) run() {
	defer close(g.done)
	defer close(g.frameCh)

	ticker := time.NewTicker(FrameDuration)
	defer ticker.Stop()

	for {
		select {
		case <-g.stopCh:
			return
		case <-ticker.C:
			frame := g.RenderFrame()
			if frame == nil {
				continue
			}
			select {
			case g.frameCh <- frame:
			default:
				// nobody listening fast enough; real-time output never waits
			}
		}
	}
}
