package presets

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/satindergrewal/stillroom/internal/clock"
	"github.com/satindergrewal/stillroom/internal/logger"
	"github.com/satindergrewal/stillroom/internal/noise"
)

// ErrUnknownPreset is returned when applying a preset that does not exist.
var ErrUnknownPreset = errors.New("unknown preset")

const (
	DefaultDwellMin     = 10 * time.Minute
	DefaultDwellMax     = 20 * time.Minute
	DefaultPollInterval = time.Second
)

// Mixer receives the per-band gains of a preset.
type Mixer interface {
	SetVolume(band noise.Band, value float64) error
}

// Config holds autopilot parameters.
type Config struct {
	DwellMin     time.Duration
	DwellMax     time.Duration
	PollInterval time.Duration
	Clock        clock.Source
	Log          *logger.Logger
}

// Status is the current state of the autopilot.
type Status struct {
	Preset         string  `json:"preset"`
	Enabled        bool    `json:"enabled"`
	DwellRemaining float64 `json:"dwell_remaining"` // seconds
}

// Autopilot applies presets to a mixer and, when enabled, drifts to an
// adjacent preset after a random dwell.
type Autopilot struct {
	mixer Mixer
	cfg   Config
	log   *logger.Logger

	mu       sync.RWMutex
	current  string
	enabled  bool
	dwellEnd time.Time
}

// NewAutopilot creates an autopilot. It starts disabled with no preset.
func NewAutopilot(m Mixer, cfg Config) *Autopilot {
	if cfg.DwellMin <= 0 {
		cfg.DwellMin = DefaultDwellMin
	}
	if cfg.DwellMax < cfg.DwellMin {
		cfg.DwellMax = cfg.DwellMin
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.System{}
	}
	return &Autopilot{
		mixer: m,
		cfg:   cfg,
		log:   logger.OrNop(cfg.Log).Named("autopilot"),
	}
}

// Apply switches the mixer to the named preset and restarts the dwell.
func (a *Autopilot) Apply(name string) error {
	p, ok := Graph[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPreset, name)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	err := a.applyLocked(p)
	a.resetDwell()
	return err
}

// SetEnabled enables or disables automatic preset transitions.
func (a *Autopilot) SetEnabled(enabled bool) {
	a.mu.Lock()
	a.enabled = enabled
	if enabled {
		a.resetDwell()
	}
	a.mu.Unlock()
	a.log.Infow("autopilot toggled", "enabled", enabled)
}

// Status returns the current autopilot state.
func (a *Autopilot) Status() Status {
	a.mu.RLock()
	defer a.mu.RUnlock()
	st := Status{Preset: a.current, Enabled: a.enabled}
	if now, err := a.cfg.Clock.Now(); err == nil && a.enabled {
		if remaining := a.dwellEnd.Sub(now).Seconds(); remaining > 0 {
			st.DwellRemaining = remaining
		}
	}
	return st
}

// Step transitions to an adjacent preset if the autopilot is enabled and
// the dwell has expired. It reports whether a transition happened.
func (a *Autopilot) Step() bool {
	now, err := a.cfg.Clock.Now()
	if err != nil {
		a.log.Warnw("autopilot clock read failed", "err", err)
		return false
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.enabled || now.Before(a.dwellEnd) {
		return false
	}

	p, ok := Graph[a.current]
	if !ok || len(p.Adjacent) == 0 {
		a.resetDwell()
		return false
	}

	next := Graph[p.Adjacent[rand.IntN(len(p.Adjacent))]]
	a.log.Infow("autopilot transition", "from", a.current, "to", next.Name)
	if err := a.applyLocked(next); err != nil {
		a.log.Warnw("autopilot apply failed", "preset", next.Name, "err", err)
	}
	a.resetDwell()
	return true
}

// Run drives Step until ctx is cancelled.
func (a *Autopilot) Run(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.Step()
		}
	}
}

func (a *Autopilot) applyLocked(p *Preset) error {
	var errs []error
	for _, band := range noise.Bands {
		if err := a.mixer.SetVolume(band, p.Mix.Get(band)); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", band, err))
		}
	}
	a.current = p.Name
	return errors.Join(errs...)
}

// resetDwell sets a new random dwell timer. Must be called with mu held.
func (a *Autopilot) resetDwell() {
	now, err := a.cfg.Clock.Now()
	if err != nil {
		return
	}
	dwell := a.cfg.DwellMin
	if spread := a.cfg.DwellMax - a.cfg.DwellMin; spread > 0 {
		dwell += rand.N(spread)
	}
	a.dwellEnd = now.Add(dwell)
}
