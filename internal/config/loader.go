package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// File is the on-disk layout of a config file. Unset fields keep the layer
// below them; environment variables are applied on top of the decoded file.
type File struct {
	Scripting ScriptingSection `toml:"scripting" yaml:"scripting"`
}

// ScriptingSection holds the [scripting] table.
type ScriptingSection struct {
	Enabled            *bool   `toml:"enabled" yaml:"enabled" env:"LUAHOOK_ENABLED"`
	TraceBack          *bool   `toml:"traceback" yaml:"traceback" env:"LUAHOOK_TRACEBACK"`
	AutoReload         *bool   `toml:"autoreload" yaml:"autoreload" env:"LUAHOOK_AUTORELOAD"`
	BytecodeCache      *bool   `toml:"bytecode_cache" yaml:"bytecode_cache" env:"LUAHOOK_BYTECODE_CACHE"`
	ScriptPath         *string `toml:"script_path" yaml:"script_path" env:"LUAHOOK_SCRIPT_PATH"`
	RequirePaths       *string `toml:"require_paths" yaml:"require_paths" env:"LUAHOOK_REQUIRE_PATHS"`
	RequireCPaths      *string `toml:"require_cpaths" yaml:"require_cpaths" env:"LUAHOOK_REQUIRE_CPATHS"`
	AutoReloadInterval *int64  `toml:"autoreload_interval" yaml:"autoreload_interval" env:"LUAHOOK_AUTORELOAD_INTERVAL"`
}

// loadFile decodes path into f. A missing file is not an error.
func loadFile(path string, f *File) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config file %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(data, f); err != nil {
			perr := &ParseError{Path: path, Message: err.Error(), Err: err}
			var derr *toml.DecodeError
			if errors.As(err, &derr) {
				perr.Line, perr.Column = derr.Position()
			}
			return perr
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, f); err != nil {
			return &ParseError{Path: path, Message: err.Error(), Err: err}
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	return nil
}

// applyEnv overlays environment variables onto f. A nil environ reads the
// process environment.
func applyEnv(f *File, environ map[string]string) error {
	opts := env.Options{}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(f, opts); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// values flattens the file layers onto the defaults.
func (f *File) values() snapshot {
	snap := defaults()
	s := f.Scripting

	setBool := func(k Key, v *bool) {
		if v != nil {
			snap.bools[k] = *v
		}
	}
	setString := func(k Key, v *string) {
		if v != nil {
			snap.strings[k] = *v
		}
	}
	setInt := func(k Key, v *int64) {
		if v != nil {
			snap.ints[k] = *v
		}
	}

	setBool(Enabled, s.Enabled)
	setBool(TraceBack, s.TraceBack)
	setBool(AutoReload, s.AutoReload)
	setBool(BytecodeCache, s.BytecodeCache)
	setString(ScriptPath, s.ScriptPath)
	setString(RequirePaths, s.RequirePaths)
	setString(RequireCPaths, s.RequireCPaths)
	setInt(AutoReloadInterval, s.AutoReloadInterval)

	return snap
}
