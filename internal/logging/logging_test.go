package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		raw    string
		want   zerolog.Level
		wantOK bool
	}{
		{"", zerolog.InfoLevel, false},
		{"debug", zerolog.DebugLevel, true},
		{" WARN ", zerolog.WarnLevel, true},
		{"warning", zerolog.WarnLevel, true},
		{"off", zerolog.Disabled, true},
		{"loud", zerolog.InfoLevel, false},
	}
	for _, tt := range tests {
		got, ok := parseLevel(tt.raw)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("parseLevel(%q) = (%v, %v), want (%v, %v)", tt.raw, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	env := map[string]string{
		EnvLogLevel:     "error",
		EnvLogTimestamp: "false",
		EnvLogNoColor:   "yes", // not a bool, ignored
	}
	cfg := defaultConfig(ProfileRuntime)
	applyEnvOverrides(&cfg, func(k string) string { return env[k] })

	if cfg.Level != zerolog.ErrorLevel {
		t.Errorf("Level = %v, want error", cfg.Level)
	}
	if cfg.Timestamp {
		t.Error("Timestamp override ignored")
	}
	if cfg.NoColor {
		t.Error("invalid NoColor value should be ignored")
	}
}

func TestTestProfile(t *testing.T) {
	var buf bytes.Buffer
	log := build(defaultConfig(ProfileTest), &buf)

	log.Debug().Str("component", "engine").Msg("loaded")
	out := buf.String()
	if !strings.Contains(out, "loaded") || !strings.Contains(out, "component=engine") {
		t.Errorf("debug output = %q", out)
	}
}

func TestRuntimeProfileFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	log := build(defaultConfig(ProfileRuntime), &buf)

	log.Debug().Msg("hidden")
	if buf.Len() != 0 {
		t.Errorf("runtime profile wrote debug output: %q", buf.String())
	}
}

func TestProfileDefaults(t *testing.T) {
	tests := []struct {
		profile Profile
		want    Config
	}{
		{ProfileRuntime, Config{Level: zerolog.InfoLevel, Timestamp: true}},
		{ProfileTest, Config{Level: zerolog.DebugLevel, NoColor: true}},
	}
	for _, tt := range tests {
		if got := defaultConfig(tt.profile); got != tt.want {
			t.Errorf("defaultConfig(%d) = %+v, want %+v", tt.profile, got, tt.want)
		}
	}
}
