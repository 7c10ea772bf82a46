// Package logging configures the zerolog loggers used across luahook.
package logging

import (
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Environment variables that override a profile.
const (
	// EnvLogLevel sets the minimum level by name, e.g. "debug".
	EnvLogLevel = "LUAHOOK_LOG_LEVEL"
	// EnvLogTimestamp turns timestamps on or off.
	EnvLogTimestamp = "LUAHOOK_LOG_TIMESTAMP"
	// EnvLogNoColor disables colored console output.
	EnvLogNoColor = "LUAHOOK_LOG_NOCOLOR"
)

// Profile selects the default logger settings.
type Profile int

const (
	// ProfileRuntime logs at info with timestamps, for the running service.
	ProfileRuntime Profile = iota
	// ProfileTest logs at debug without timestamps or color.
	ProfileTest
)

// Config controls logger construction.
type Config struct {
	Level     zerolog.Level
	Timestamp bool
	NoColor   bool
}

// New builds a console logger for the profile, applying environment overrides.
func New(profile Profile, out io.Writer) zerolog.Logger {
	cfg := defaultConfig(profile)
	applyEnvOverrides(&cfg, os.Getenv)
	return build(cfg, out)
}

func build(cfg Config, out io.Writer) zerolog.Logger {
	w := zerolog.ConsoleWriter{
		Out:        out,
		NoColor:    cfg.NoColor,
		TimeFormat: time.RFC3339,
	}
	ctx := zerolog.New(w).Level(cfg.Level).With()
	if cfg.Timestamp {
		ctx = ctx.Timestamp()
	}
	return ctx.Logger()
}

func defaultConfig(profile Profile) Config {
	switch profile {
	case ProfileTest:
		return Config{Level: zerolog.DebugLevel, Timestamp: false, NoColor: true}
	default:
		return Config{Level: zerolog.InfoLevel, Timestamp: true}
	}
}

func applyEnvOverrides(cfg *Config, getenv func(string) string) {
	if lvl, ok := parseLevel(getenv(EnvLogLevel)); ok {
		cfg.Level = lvl
	}
	if v, ok := parseBool(getenv(EnvLogTimestamp)); ok {
		cfg.Timestamp = v
	}
	if v, ok := parseBool(getenv(EnvLogNoColor)); ok {
		cfg.NoColor = v
	}
}

func parseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return zerolog.InfoLevel, false
	case "trace":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "disable", "off", "none":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}

func parseBool(raw string) (bool, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
