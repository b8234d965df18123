package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all runtime configuration: defaults, then an optional YAML
// file, then environment variables.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// Countdown
	FocusDuration time.Duration
	BreakDuration time.Duration
	FrameInterval time.Duration // display refresh period

	// Noise
	Audio        bool          // false runs the mixer silently
	RampDuration time.Duration // gain transition length
	LoopDuration time.Duration // length of each band's loop buffer

	// Preset autopilot
	DwellMin time.Duration
	DwellMax time.Duration

	// File is the YAML file that was applied, if any.
	File string
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Port:          8080,
		LogLevel:      "info",
		FocusDuration: 25 * time.Minute,
		BreakDuration: 5 * time.Minute,
		FrameInterval: 16 * time.Millisecond,
		Audio:         true,
		RampDuration:  100 * time.Millisecond,
		LoopDuration:  2 * time.Second,
		DwellMin:      10 * time.Minute,
		DwellMax:      20 * time.Minute,
	}
}

// Load reads configuration with sane defaults. STILLROOM_CONFIG names an
// optional YAML file; environment variables win over it.
func Load() (Config, error) {
	return LoadFrom("")
}

// LoadFrom is Load with an explicit YAML file that takes the place of
// STILLROOM_CONFIG. An empty path falls back to the variable.
func LoadFrom(path string) (Config, error) {
	cfg := Defaults()
	if path == "" {
		path = envStr("STILLROOM_CONFIG", "")
	}
	if path != "" {
		if err := LoadFile(path, &cfg); err != nil {
			return cfg, err
		}
	}

	cfg.Port = envInt("STILLROOM_PORT", cfg.Port)
	cfg.LogLevel = envStr("STILLROOM_LOG_LEVEL", cfg.LogLevel)
	cfg.FocusDuration = envSeconds("STILLROOM_FOCUS_SECONDS", cfg.FocusDuration)
	cfg.BreakDuration = envSeconds("STILLROOM_BREAK_SECONDS", cfg.BreakDuration)
	cfg.FrameInterval = envMillis("STILLROOM_FRAME_INTERVAL_MS", cfg.FrameInterval)
	cfg.Audio = envBool("STILLROOM_AUDIO", cfg.Audio)
	cfg.RampDuration = envMillis("STILLROOM_RAMP_MS", cfg.RampDuration)
	if secs := envFloat("STILLROOM_LOOP_SECONDS", 0); secs > 0 {
		cfg.LoopDuration = time.Duration(secs * float64(time.Second))
	}
	cfg.DwellMin = envSeconds("STILLROOM_PRESET_DWELL_MIN", cfg.DwellMin)
	cfg.DwellMax = envSeconds("STILLROOM_PRESET_DWELL_MAX", cfg.DwellMax)
	if cfg.DwellMax < cfg.DwellMin {
		cfg.DwellMax = cfg.DwellMin
	}
	return cfg, nil
}

type yamlConfig struct {
	Port            int     `yaml:"port"`
	LogLevel        string  `yaml:"log_level"`
	FocusSeconds    int     `yaml:"focus_seconds"`
	BreakSeconds    int     `yaml:"break_seconds"`
	FrameIntervalMS int     `yaml:"frame_interval_ms"`
	Audio           *bool   `yaml:"audio"`
	RampMS          int     `yaml:"ramp_ms"`
	LoopSeconds     float64 `yaml:"loop_seconds"`
	DwellMinSeconds int     `yaml:"preset_dwell_min"`
	DwellMaxSeconds int     `yaml:"preset_dwell_max"`
}

// LoadFile overlays a YAML file onto cfg. Only valid positive values are
// applied; a missing file is an error.
func LoadFile(path string, cfg *Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("config file %s: %w", path, err)
		}
		return fmt.Errorf("read config file: %w", err)
	}

	var fileData yamlConfig
	if err := yaml.Unmarshal(raw, &fileData); err != nil {
		return fmt.Errorf("parse config yaml: %w", err)
	}

	applyYaml(cfg, fileData)
	cfg.File = path
	return nil
}

func applyYaml(cfg *Config, f yamlConfig) {
	if f.Port > 0 && f.Port <= 65535 {
		cfg.Port = f.Port
	}
	if f.LogLevel != "" {
		cfg.LogLevel = f.LogLevel
	}
	if f.FocusSeconds > 0 {
		cfg.FocusDuration = time.Duration(f.FocusSeconds) * time.Second
	}
	if f.BreakSeconds > 0 {
		cfg.BreakDuration = time.Duration(f.BreakSeconds) * time.Second
	}
	if f.FrameIntervalMS > 0 {
		cfg.FrameInterval = time.Duration(f.FrameIntervalMS) * time.Millisecond
	}
	if f.Audio != nil {
		cfg.Audio = *f.Audio
	}
	if f.RampMS > 0 {
		cfg.RampDuration = time.Duration(f.RampMS) * time.Millisecond
	}
	if f.LoopSeconds > 0 {
		cfg.LoopDuration = time.Duration(f.LoopSeconds * float64(time.Second))
	}
	if f.DwellMinSeconds > 0 {
		cfg.DwellMin = time.Duration(f.DwellMinSeconds) * time.Second
	}
	if f.DwellMaxSeconds > 0 {
		cfg.DwellMax = time.Duration(f.DwellMaxSeconds) * time.Second
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return fallback
}

// envSeconds reads a positive whole number of seconds.
func envSeconds(key string, fallback time.Duration) time.Duration {
	if n := envInt(key, 0); n > 0 {
		return time.Duration(n) * time.Second
	}
	return fallback
}

func envMillis(key string, fallback time.Duration) time.Duration {
	if n := envInt(key, 0); n > 0 {
		return time.Duration(n) * time.Millisecond
	}
	return fallback
}
