package main

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/satindergrewal/stillroom/internal/clock"
	"github.com/satindergrewal/stillroom/internal/timer"
	"github.com/spf13/cobra"
)

var countdownMode string

var countdownCmd = &cobra.Command{
	Use:   "countdown",
	Short: "Run one focus or break countdown in the terminal",
	Args:  cobra.NoArgs,
	RunE:  runCountdown,
}

func init() {
	countdownCmd.Flags().StringVar(&countdownMode, "mode", "focus", "countdown mode: focus or break")
}

func runCountdown(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Sync()

	var mode timer.Mode
	switch strings.ToLower(countdownMode) {
	case "focus":
		mode = timer.ModeFocus
	case "break":
		mode = timer.ModeBreak
	default:
		return fmt.Errorf("unknown mode %q", countdownMode)
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sched := timer.New(timer.Config{
		Focus:         cfg.FocusDuration,
		Break:         cfg.BreakDuration,
		FrameInterval: cfg.FrameInterval,
		Clock:         clock.Default(log),
		Log:           log,
	})
	defer sched.Close()
	if mode != timer.ModeFocus {
		sched.SwitchMode()
	}

	events := sched.Subscribe(4)
	out := cmd.OutOrStdout()
	sched.Start()

	for {
		select {
		case <-ctx.Done():
			snap := sched.Snapshot()
			fmt.Fprintf(out, "\n%s stopped at %s\n", snap.Mode, snap.DisplayTime)
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			fmt.Fprintf(out, "\r%-5s %s", ev.Snapshot.Mode, ev.Snapshot.DisplayTime)
			switch ev.Type {
			case timer.EventExpired:
				fmt.Fprintf(out, "\n%s complete\n", ev.Snapshot.Mode)
				return nil
			case timer.EventClockError:
				return fmt.Errorf("clock failed: %s", ev.Snapshot.ClockError)
			}
		}
	}
}
