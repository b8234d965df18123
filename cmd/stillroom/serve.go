package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/satindergrewal/stillroom/internal/api"
	"github.com/satindergrewal/stillroom/internal/audio"
	"github.com/satindergrewal/stillroom/internal/clock"
	"github.com/satindergrewal/stillroom/internal/noise"
	"github.com/satindergrewal/stillroom/internal/presets"
	"github.com/satindergrewal/stillroom/internal/stream"
	"github.com/satindergrewal/stillroom/internal/timer"
	"github.com/spf13/cobra"
)

const (
	readHeaderTimeout = 10 * time.Second
	idleTimeout       = 60 * time.Second
	shutdownTimeout   = 5 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the timer, mixer and audio streams over HTTP",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Infow("stillroom starting up", "config_file", cfg.File, "audio", cfg.Audio)

	clk := clock.Default(log)
	sched := timer.New(timer.Config{
		Focus:         cfg.FocusDuration,
		Break:         cfg.BreakDuration,
		FrameInterval: cfg.FrameInterval,
		Clock:         clk,
		Log:           log,
	})

	// Broadcaster: fan-out PCM frames to all listeners once the graph exists
	broadcaster := stream.NewBroadcaster()
	var feeding *audio.Graph
	acquire := func() (noise.Graph, error) {
		g, err := audio.Acquire(audio.GraphConfig{Disabled: !cfg.Audio, Log: log})
		if err != nil {
			return nil, err
		}
		if g != feeding {
			feeding = g
			go broadcaster.Run(ctx, g.Frames())
		}
		return g, nil
	}

	mixer := noise.New(noise.Config{
		Acquire:      acquire,
		RampDuration: cfg.RampDuration,
		LoopDuration: cfg.LoopDuration,
		Log:          log,
	})

	pilot := presets.NewAutopilot(mixer, presets.Config{
		DwellMin: cfg.DwellMin,
		DwellMax: cfg.DwellMax,
		Clock:    clk,
		Log:      log,
	})
	go pilot.Run(ctx)

	webrtcHandler := stream.NewWebRTCHandler(broadcaster, log)

	gin.SetMode(gin.ReleaseMode)
	handler := api.NewHandler(api.Services{
		Timer:     sched,
		Mixer:     mixer,
		Autopilot: pilot,
		Stream:    stream.NewHTTPHandler(broadcaster, log),
		Offer:     webrtcHandler,
		Listeners: func() int {
			return broadcaster.ListenerCount() + webrtcHandler.PeerCount()
		},
	}, log)

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           handler.InitRoutes(),
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infow("stillroom live", "addr", addr)
		errCh <- server.ListenAndServe()
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = fmt.Errorf("http server: %w", err)
		}
	}

	log.Infow("shutting down")
	// Closing the mixer releases the graph, which ends every stream.
	sched.Close()
	mixer.Close()
	webrtcHandler.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("shutdown: %w", err)
	}
	return serveErr
}
