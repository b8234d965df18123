package clock

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/satindergrewal/stillroom/internal/logger"
)

// ErrUnavailable indicates no clock source could produce a reading.
var ErrUnavailable = errors.New("clock unavailable")

// Source produces wall-clock readings.
type Source interface {
	Now() (time.Time, error)
}

// System reads time.Now, which carries a monotonic component.
type System struct{}

// Now implements Source.
func (System) Now() (time.Time, error) {
	return time.Now(), nil
}

// Coarse reads wall time truncated to Resolution, without the monotonic
// component. It is the lower-resolution fallback for System.
type Coarse struct {
	Resolution time.Duration
}

// Now implements Source.
func (c Coarse) Now() (time.Time, error) {
	res := c.Resolution
	if res <= 0 {
		res = time.Millisecond
	}
	return time.Now().Round(0).Truncate(res), nil
}

// Fallback tries sources in order. Once a source fails it is skipped for the
// rest of the process lifetime.
type Fallback struct {
	mu      sync.Mutex
	sources []Source
	active  int
	log     *logger.Logger
}

// WithFallback returns a Source that reads primary and falls back to the
// remaining sources when it fails.
func WithFallback(log *logger.Logger, primary Source, fallbacks ...Source) *Fallback {
	return &Fallback{
		sources: append([]Source{primary}, fallbacks...),
		log:     logger.OrNop(log),
	}
}

// Default returns the system clock backed by a millisecond coarse clock.
func Default(log *logger.Logger) *Fallback {
	return WithFallback(log, System{}, Coarse{Resolution: time.Millisecond})
}

// Now implements Source.
func (f *Fallback) Now() (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var lastErr error
	for f.active < len(f.sources) {
		now, err := f.sources[f.active].Now()
		if err == nil {
			return now, nil
		}
		lastErr = err
		f.log.Warnw("clock source failed, falling back", "source", f.active, "err", err)
		f.active++
	}
	if lastErr == nil {
		return time.Time{}, ErrUnavailable
	}
	return time.Time{}, fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

// Manual is a hand-driven clock for tests and offline rendering.
type Manual struct {
	mu  sync.Mutex
	now time.Time
	err error
}

// NewManual returns a manual clock reading start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

// Now implements Source.
func (m *Manual) Now() (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return time.Time{}, m.err
	}
	return m.now, nil
}

// Advance moves the clock forward by d.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}

// Set moves the clock to t.
func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	m.now = t
	m.mu.Unlock()
}

// Fail makes subsequent reads return err. Pass nil to recover.
func (m *Manual) Fail(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}
