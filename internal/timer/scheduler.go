package timer

import (
	"sync"
	"time"

	"github.com/satindergrewal/stillroom/internal/clock"
	"github.com/satindergrewal/stillroom/internal/logger"
)

// Default nominal durations and frame interval.
const (
	DefaultFocus         = 25 * time.Minute
	DefaultBreak         = 5 * time.Minute
	DefaultFrameInterval = 16 * time.Millisecond
)

// Config contains runtime options for the Scheduler.
type Config struct {
	Focus         time.Duration
	Break         time.Duration
	FrameInterval time.Duration
	Clock         clock.Source
	Log           *logger.Logger
}

// Scheduler is a FOCUS/BREAK countdown anchored to an absolute deadline.
// Remaining time is always recomputed from the deadline, never decremented,
// so skipped or late frames cannot accumulate drift.
type Scheduler struct {
	mu       sync.Mutex
	cfg      Config
	clock    clock.Source
	log      *logger.Logger
	mode     Mode
	phase    Phase
	remain   int
	initial  int
	progress float64
	anchor   time.Time
	clockErr error
	lastRead time.Time

	// gen identifies the live update loop; ticks from older loops are dropped.
	gen    uint64
	stopCh chan struct{}
	loops  sync.WaitGroup

	events []chan Event
	closed bool
}

// New creates an idle Scheduler in FOCUS mode.
func New(cfg Config) *Scheduler {
	if cfg.Focus < time.Second {
		cfg.Focus = DefaultFocus
	}
	if cfg.Break < time.Second {
		cfg.Break = DefaultBreak
	}
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = DefaultFrameInterval
	}
	log := logger.OrNop(cfg.Log).Named("timer")
	if cfg.Clock == nil {
		cfg.Clock = clock.Default(log)
	}

	s := &Scheduler{
		cfg:   cfg,
		clock: cfg.Clock,
		log:   log,
		mode:  ModeFocus,
	}
	s.resetLocked()
	return s
}

// Subscribe registers a new observer channel. Slow observers miss events
// rather than stall the countdown.
func (s *Scheduler) Subscribe(buffer int) <-chan Event {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan Event, buffer)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		close(ch)
		return ch
	}
	s.events = append(s.events, ch)
	return ch
}

// Unsubscribe removes and closes an observer channel.
func (s *Scheduler) Unsubscribe(ch <-chan Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range s.events {
		if c == ch {
			s.events = append(s.events[:i], s.events[i+1:]...)
			close(c)
			return
		}
	}
}

// Start begins or resumes the countdown. It is a no-op while running and
// after expiry; Reset or SwitchMode start a new run.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startLocked()
}

// Resume is Start; it exists so callers can name the paused case.
func (s *Scheduler) Resume() {
	s.Start()
}

// Pause freezes the countdown at its current remaining time.
func (s *Scheduler) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pauseLocked()
}

// Toggle pauses a running countdown or resumes a stopped one.
func (s *Scheduler) Toggle() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == PhaseRunning {
		s.pauseLocked()
		return
	}
	s.startLocked()
}

// Reset stops the countdown and restores the nominal duration of the
// current mode.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.resetLocked()
	s.emitLocked(EventStateChange)
}

// SwitchMode stops the countdown, toggles FOCUS/BREAK and resets to the new
// mode's nominal duration.
func (s *Scheduler) SwitchMode() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.mode = s.mode.Next()
	s.resetLocked()
	s.emitLocked(EventStateChange)
}

// Tick runs one scheduling callback against the current clock reading.
// The internal frame loop calls it; hosts with their own frame source may
// call it too.
func (s *Scheduler) Tick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseRunning {
		return
	}
	s.updateLocked()
}

// Snapshot returns the current observable state.
func (s *Scheduler) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Nominal returns the configured duration for mode in whole seconds.
func (s *Scheduler) Nominal(mode Mode) int {
	return s.nominal(mode)
}

// Close stops the update loop, waits for it to exit and closes observers.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.phase == PhaseRunning {
		s.freezeLocked(PhasePaused)
	}
	s.stopLoopLocked()
	events := s.events
	s.events = nil
	s.mu.Unlock()

	s.loops.Wait()
	for _, ch := range events {
		close(ch)
	}
}

func (s *Scheduler) startLocked() {
	if s.closed || s.phase == PhaseRunning || s.phase == PhaseExpired {
		return
	}
	now, err := s.clock.Now()
	if err != nil {
		s.clockFailedLocked(err)
		return
	}
	if s.remain == s.nominal(s.mode) {
		s.initial = s.remain
	}
	s.clockErr = nil
	s.anchor = now.Add(time.Duration(s.remain) * time.Second)
	s.phase = PhaseRunning
	s.progress = progressOf(s.remain, s.initial)
	s.startLoopLocked()
	s.emitLocked(EventStateChange)
}

func (s *Scheduler) pauseLocked() {
	if s.phase != PhaseRunning {
		return
	}
	if !s.updateLocked() {
		return
	}
	s.freezeLocked(PhasePaused)
	s.emitLocked(EventStateChange)
}

// updateLocked recomputes remaining time from the anchor. It returns false
// if the countdown is no longer running afterwards.
func (s *Scheduler) updateLocked() bool {
	now, err := s.clock.Now()
	if err != nil {
		s.clockFailedLocked(err)
		return false
	}

	remain := ceilSeconds(s.anchor.Sub(now))
	if remain <= 0 {
		s.remain = 0
		s.progress = 0
		s.freezeLocked(PhaseExpired)
		s.log.Infow("countdown expired", "mode", s.mode)
		s.emitLocked(EventExpired)
		return false
	}

	changed := remain != s.remain
	s.remain = remain
	s.progress = progressOf(remain, s.initial)
	if changed {
		s.emitLocked(EventProgress)
	}
	return true
}

func (s *Scheduler) freezeLocked(phase Phase) {
	s.phase = phase
	s.anchor = time.Time{}
	s.stopLoopLocked()
}

func (s *Scheduler) resetLocked() {
	s.stopLoopLocked()
	s.phase = PhaseIdle
	s.remain = s.nominal(s.mode)
	s.initial = s.remain
	s.progress = 100
	s.anchor = time.Time{}
	s.clockErr = nil
}

// clockFailedLocked freezes a running countdown at its last computed value.
func (s *Scheduler) clockFailedLocked(err error) {
	s.clockErr = err
	s.log.Errorw("clock read failed, timer frozen", "err", err)
	if s.phase == PhaseRunning {
		s.freezeLocked(PhasePaused)
	}
	s.emitLocked(EventClockError)
}

func (s *Scheduler) startLoopLocked() {
	s.stopLoopLocked()
	gen := s.gen
	stop := make(chan struct{})
	s.stopCh = stop
	s.loops.Add(1)
	go s.run(gen, stop)
}

// stopLoopLocked retires the current loop. The goroutine may still be
// waiting on mu; the generation bump makes its pending tick a no-op.
func (s *Scheduler) stopLoopLocked() {
	s.gen++
	if s.stopCh != nil {
		close(s.stopCh)
		s.stopCh = nil
	}
}

func (s *Scheduler) run(gen uint64, stop <-chan struct{}) {
	defer s.loops.Done()
	ticker := time.NewTicker(s.cfg.FrameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if !s.tickGen(gen) {
				return
			}
		}
	}
}

func (s *Scheduler) tickGen(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen || s.phase != PhaseRunning {
		return false
	}
	return s.updateLocked()
}

func (s *Scheduler) nominal(mode Mode) int {
	if mode == ModeBreak {
		return int(s.cfg.Break / time.Second)
	}
	return int(s.cfg.Focus / time.Second)
}

func (s *Scheduler) snapshotLocked() Snapshot {
	snap := Snapshot{
		Mode:        s.mode,
		Phase:       s.phase,
		Active:      s.phase == PhaseRunning,
		Remaining:   s.remain,
		Initial:     s.initial,
		Progress:    s.progress,
		DisplayTime: FormatClock(s.remain),
	}
	if s.clockErr != nil {
		snap.ClockError = s.clockErr.Error()
	}
	return snap
}

// emitLocked stamps events with the scheduler's clock; a failed read reuses
// the last good one.
func (s *Scheduler) emitLocked(eventType EventType) {
	if now, err := s.clock.Now(); err == nil {
		s.lastRead = now
	}
	event := Event{Type: eventType, Snapshot: s.snapshotLocked(), At: s.lastRead}
	for _, ch := range s.events {
		select {
		case ch <- event:
		default:
		}
	}
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}

func progressOf(remain, initial int) float64 {
	if initial <= 0 {
		return 0
	}
	p := 100 * float64(remain) / float64(initial)
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
