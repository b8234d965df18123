package timer

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/satindergrewal/stillroom/internal/clock"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var epoch = time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

// newManual returns a scheduler whose own frame loop effectively never
// fires, so tests drive it with Tick.
func newManual(t *testing.T) (*Scheduler, *clock.Manual) {
	t.Helper()
	clk := clock.NewManual(epoch)
	s := New(Config{Clock: clk, FrameInterval: time.Hour})
	t.Cleanup(s.Close)
	return s, clk
}

// --- FormatClock ---

func TestFormatClock(t *testing.T) {
	tests := []struct {
		seconds int
		want    string
	}{
		{1500, "25:00"},
		{300, "05:00"},
		{61, "01:01"},
		{9, "00:09"},
		{0, "00:00"},
		{-4, "00:00"},
		{6000, "100:00"},
	}
	for _, tt := range tests {
		if got := FormatClock(tt.seconds); got != tt.want {
			t.Errorf("FormatClock(%d) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}

func TestCeilSeconds(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want int
	}{
		{-time.Second, 0},
		{0, 0},
		{time.Millisecond, 1},
		{time.Second, 1},
		{time.Second + time.Nanosecond, 2},
		{1500 * time.Second, 1500},
	}
	for _, tt := range tests {
		if got := ceilSeconds(tt.d); got != tt.want {
			t.Errorf("ceilSeconds(%v) = %d, want %d", tt.d, got, tt.want)
		}
	}
}

// --- State machine ---

func TestNewDefaults(t *testing.T) {
	s, _ := newManual(t)
	snap := s.Snapshot()
	if snap.Mode != ModeFocus {
		t.Errorf("Mode = %q, want FOCUS", snap.Mode)
	}
	if snap.Phase != PhaseIdle || snap.Active {
		t.Errorf("Phase = %q active=%v, want idle/inactive", snap.Phase, snap.Active)
	}
	if snap.Remaining != 1500 || snap.Initial != 1500 {
		t.Errorf("Remaining/Initial = %d/%d, want 1500/1500", snap.Remaining, snap.Initial)
	}
	if snap.Progress != 100 {
		t.Errorf("Progress = %v, want 100", snap.Progress)
	}
	if snap.DisplayTime != "25:00" {
		t.Errorf("DisplayTime = %q, want 25:00", snap.DisplayTime)
	}
}

func TestExpiryScenario(t *testing.T) {
	s, clk := newManual(t)
	s.Start()

	clk.Set(epoch.Add(1500*time.Second - time.Millisecond))
	s.Tick()
	snap := s.Snapshot()
	if snap.Remaining != 1 || !snap.Active {
		t.Fatalf("1ms before expiry: remaining=%d active=%v, want 1/true", snap.Remaining, snap.Active)
	}

	clk.Set(epoch.Add(1500 * time.Second))
	s.Tick()
	snap = s.Snapshot()
	if snap.Remaining != 0 || snap.Active {
		t.Errorf("at expiry: remaining=%d active=%v, want 0/false", snap.Remaining, snap.Active)
	}
	if snap.Phase != PhaseExpired {
		t.Errorf("Phase = %q, want expired", snap.Phase)
	}
	if snap.Progress != 0 {
		t.Errorf("Progress = %v, want 0", snap.Progress)
	}
	if snap.Mode != ModeFocus {
		t.Errorf("Mode = %q, expiry must not auto-advance", snap.Mode)
	}
}

func TestDriftInvariant(t *testing.T) {
	s, clk := newManual(t)
	s.Start()
	deadline := epoch.Add(1500 * time.Second)
	rng := rand.New(rand.NewPCG(1, 2))

	now := epoch
	for i := 0; i < 500; i++ {
		// Irregular gaps: mostly frame-sized, sometimes a throttled
		// background tab worth of silence.
		gap := time.Duration(rng.IntN(40)) * time.Millisecond
		if rng.IntN(20) == 0 {
			gap = time.Duration(rng.IntN(30_000)) * time.Millisecond
		}
		now = now.Add(gap)
		clk.Set(now)
		// Skip roughly half of the callbacks entirely.
		if rng.IntN(2) == 0 {
			continue
		}
		s.Tick()

		want := int(math.Ceil(float64(deadline.Sub(now)) / float64(time.Second)))
		if want < 0 {
			want = 0
		}
		if got := s.Snapshot().Remaining; got != want {
			t.Fatalf("step %d at +%v: remaining = %d, want %d", i, now.Sub(epoch), got, want)
		}
	}
}

func TestPauseResumeIdempotence(t *testing.T) {
	s, clk := newManual(t)
	s.Start()
	clk.Advance(10*time.Second + 400*time.Millisecond)
	s.Pause()
	before := s.Snapshot()
	if before.Active || before.Phase != PhasePaused {
		t.Fatalf("after Pause: active=%v phase=%q", before.Active, before.Phase)
	}

	clk.Advance(time.Hour)
	s.Resume()
	s.Tick()
	after := s.Snapshot()

	if diff := before.Remaining - after.Remaining; diff < 0 || diff > 1 {
		t.Errorf("pause/resume changed remaining by %d (before %d, after %d)", diff, before.Remaining, after.Remaining)
	}
	if !after.Active {
		t.Error("Resume did not reactivate the countdown")
	}
}

func TestResumeKeepsInitialDuration(t *testing.T) {
	s, clk := newManual(t)
	s.Start()
	clk.Advance(100 * time.Second)
	s.Pause()
	s.Resume()

	snap := s.Snapshot()
	if snap.Initial != 1500 {
		t.Errorf("Initial = %d, want 1500 after partial resume", snap.Initial)
	}
	want := 100 * 1400.0 / 1500.0
	if math.Abs(snap.Progress-want) > 1e-9 {
		t.Errorf("Progress = %v, want %v", snap.Progress, want)
	}
}

func TestStartWhileActiveIsNoop(t *testing.T) {
	s, clk := newManual(t)
	s.Start()
	clk.Advance(5 * time.Second)
	s.Start()
	s.Tick()
	if got := s.Snapshot().Remaining; got != 1495 {
		t.Errorf("Remaining = %d, want 1495 (second Start must not re-anchor)", got)
	}
}

func TestPauseWhenIdleIsNoop(t *testing.T) {
	s, _ := newManual(t)
	s.Pause()
	if got := s.Snapshot().Phase; got != PhaseIdle {
		t.Errorf("Phase = %q, want idle", got)
	}
}

func TestProgressMonotonic(t *testing.T) {
	s, clk := newManual(t)
	s.SwitchMode()
	s.Start()

	prev := s.Snapshot().Progress
	for i := 0; i < 400; i++ {
		clk.Advance(777 * time.Millisecond)
		s.Tick()
		snap := s.Snapshot()
		if snap.Progress > prev {
			t.Fatalf("progress increased from %v to %v at step %d", prev, snap.Progress, i)
		}
		if snap.Remaining == 0 && snap.Progress != 0 {
			t.Fatalf("remaining hit 0 with progress %v", snap.Progress)
		}
		prev = snap.Progress
	}
	if s.Snapshot().Phase != PhaseExpired {
		t.Error("BREAK run should have expired after 310s")
	}
}

func TestSwitchModeIsolation(t *testing.T) {
	setups := map[string]func(*Scheduler, *clock.Manual){
		"idle": func(*Scheduler, *clock.Manual) {},
		"running": func(s *Scheduler, clk *clock.Manual) {
			s.Start()
			clk.Advance(42 * time.Second)
			s.Tick()
		},
		"paused": func(s *Scheduler, clk *clock.Manual) {
			s.Start()
			clk.Advance(42 * time.Second)
			s.Pause()
		},
		"expired": func(s *Scheduler, clk *clock.Manual) {
			s.Start()
			clk.Advance(2 * time.Hour)
			s.Tick()
		},
	}
	for name, setup := range setups {
		t.Run(name, func(t *testing.T) {
			s, clk := newManual(t)
			setup(s, clk)
			from := s.Snapshot().Mode

			s.SwitchMode()
			snap := s.Snapshot()
			if snap.Mode == from {
				t.Fatalf("mode did not toggle from %q", from)
			}
			if snap.Remaining != s.Nominal(snap.Mode) {
				t.Errorf("Remaining = %d, want nominal %d", snap.Remaining, s.Nominal(snap.Mode))
			}
			if snap.Progress != 100 || snap.Active || snap.Phase != PhaseIdle {
				t.Errorf("after SwitchMode: progress=%v active=%v phase=%q", snap.Progress, snap.Active, snap.Phase)
			}
		})
	}
}

func TestResetRestoresNominal(t *testing.T) {
	s, clk := newManual(t)
	s.Start()
	clk.Advance(90 * time.Second)
	s.Reset()
	snap := s.Snapshot()
	if snap.Remaining != 1500 || snap.Progress != 100 || snap.Active {
		t.Errorf("after Reset: %+v", snap)
	}
}

func TestStartAfterExpiryIsNoop(t *testing.T) {
	s, clk := newManual(t)
	s.Start()
	clk.Advance(1500 * time.Second)
	s.Tick()
	s.Start()
	if snap := s.Snapshot(); snap.Active || snap.Phase != PhaseExpired {
		t.Errorf("Start after expiry: active=%v phase=%q", snap.Active, snap.Phase)
	}
}

func TestToggle(t *testing.T) {
	s, clk := newManual(t)
	s.Toggle()
	if !s.Snapshot().Active {
		t.Fatal("Toggle from idle should start")
	}
	clk.Advance(3 * time.Second)
	s.Toggle()
	snap := s.Snapshot()
	if snap.Active || snap.Remaining != 1497 {
		t.Errorf("Toggle from running: active=%v remaining=%d, want false/1497", snap.Active, snap.Remaining)
	}
}

func TestCustomDurations(t *testing.T) {
	s := New(Config{
		Focus:         50 * time.Minute,
		Break:         10 * time.Minute,
		Clock:         clock.NewManual(epoch),
		FrameInterval: time.Hour,
	})
	defer s.Close()
	if got := s.Snapshot().Remaining; got != 3000 {
		t.Errorf("focus remaining = %d, want 3000", got)
	}
	s.SwitchMode()
	if got := s.Snapshot().Remaining; got != 600 {
		t.Errorf("break remaining = %d, want 600", got)
	}
}

// --- Clock failure ---

func TestClockFailureFreezesTimer(t *testing.T) {
	s, clk := newManual(t)
	events := s.Subscribe(8)
	s.Start()
	clk.Advance(20 * time.Second)
	s.Tick()

	clk.Fail(errors.New("clock gone"))
	s.Tick()

	snap := s.Snapshot()
	if snap.Active {
		t.Error("timer should freeze when the clock fails")
	}
	if snap.Remaining != 1480 {
		t.Errorf("Remaining = %d, want frozen 1480", snap.Remaining)
	}
	if snap.ClockError == "" {
		t.Error("ClockError should be reported in the snapshot")
	}

	sawClockErr := false
	for len(events) > 0 {
		if ev := <-events; ev.Type == EventClockError {
			sawClockErr = true
		}
	}
	if !sawClockErr {
		t.Error("no clock_error event emitted")
	}

	clk.Fail(nil)
	s.Resume()
	if snap := s.Snapshot(); !snap.Active || snap.ClockError != "" {
		t.Errorf("after clock recovery: active=%v err=%q", snap.Active, snap.ClockError)
	}
}

func TestEventsUseSchedulerClock(t *testing.T) {
	s, clk := newManual(t)
	events := s.Subscribe(8)

	s.Start()
	if ev := <-events; !ev.At.Equal(epoch) {
		t.Errorf("start event At = %v, want %v", ev.At, epoch)
	}

	clk.Advance(3 * time.Second)
	s.Tick()
	if ev := <-events; !ev.At.Equal(epoch.Add(3 * time.Second)) {
		t.Errorf("progress event At = %v, want %v", ev.At, epoch.Add(3*time.Second))
	}

	clk.Fail(errors.New("clock gone"))
	s.Tick()
	ev := <-events
	if ev.Type != EventClockError {
		t.Fatalf("event type = %s, want clock_error", ev.Type)
	}
	if !ev.At.Equal(epoch.Add(3 * time.Second)) {
		t.Errorf("clock_error At = %v, want last good reading", ev.At)
	}
}

// --- Update loop ---

func TestLoopDrivesExpiry(t *testing.T) {
	clk := clock.NewManual(epoch)
	s := New(Config{Clock: clk, FrameInterval: time.Millisecond})
	defer s.Close()
	events := s.Subscribe(64)

	s.Start()
	clk.Advance(1501 * time.Second)

	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev := <-events:
			if ev.Type == EventExpired {
				if ev.Snapshot.Remaining != 0 || ev.Snapshot.Active {
					t.Errorf("expired event snapshot = %+v", ev.Snapshot)
				}
				return
			}
		case <-timeout:
			t.Fatal("frame loop never expired the countdown")
		}
	}
}

func TestNoTickAfterPause(t *testing.T) {
	clk := clock.NewManual(epoch)
	s := New(Config{Clock: clk, FrameInterval: time.Millisecond})
	defer s.Close()

	s.Start()
	clk.Advance(2 * time.Second)
	s.Pause()
	frozen := s.Snapshot()

	clk.Advance(time.Hour)
	time.Sleep(20 * time.Millisecond)

	if got := s.Snapshot(); got != frozen {
		t.Errorf("state changed after Pause returned: %+v -> %+v", frozen, got)
	}
}

func TestCloseClosesObservers(t *testing.T) {
	s := New(Config{Clock: clock.NewManual(epoch), FrameInterval: time.Millisecond})
	ch := s.Subscribe(1)
	s.Start()
	s.Close()

	for range ch {
	}
	s.Close() // second Close must not panic

	late := s.Subscribe(1)
	if _, ok := <-late; ok {
		t.Error("Subscribe after Close should return a closed channel")
	}
}

func TestUnsubscribe(t *testing.T) {
	s, _ := newManual(t)
	ch := s.Subscribe(4)
	s.Unsubscribe(ch)
	s.Reset()
	if _, ok := <-ch; ok {
		t.Error("unsubscribed channel should be closed and receive nothing")
	}
}
