package cli

import (
	"io"

	"github.com/rs/zerolog"

	"github.com/dshills/luahook/internal/config"
	"github.com/dshills/luahook/internal/engine"
	"github.com/dshills/luahook/internal/logging"
)

func newLogger(opts *RootOptions, w io.Writer) zerolog.Logger {
	log := logging.New(logging.ProfileRuntime, w)
	if opts.Verbose {
		log = log.Level(zerolog.DebugLevel)
	}
	return log
}

// loadConfig reads the config file named by --config. A missing file leaves
// the defaults and environment in effect.
func loadConfig(opts *RootOptions, log zerolog.Logger) (*config.Cache, error) {
	cfg := config.New(config.WithFile(opts.Config), config.WithLogger(log))
	if err := cfg.Initialize(false); err != nil {
		return nil, &ExitError{Code: ExitCommandError, Message: "loading config", Err: err}
	}
	return cfg, nil
}

// oneShot forces scripting on and auto reload off, for commands that load
// the scripts once and exit.
type oneShot struct {
	engine.Config
}

func (c oneShot) Bool(k config.Key) bool {
	switch k {
	case config.Enabled:
		return true
	case config.AutoReload:
		return false
	}
	return c.Config.Bool(k)
}

// startOneShot builds and starts an engine for check and fire.
func startOneShot(opts *RootOptions, w io.Writer) (*engine.Engine, *config.Cache, error) {
	log := newLogger(opts, w)
	cfg, err := loadConfig(opts, log)
	if err != nil {
		return nil, nil, err
	}
	eng := engine.New(oneShot{cfg}, engine.WithLogger(log))
	if err := eng.Start(); err != nil {
		return nil, nil, &ExitError{Code: ExitCommandError, Message: "starting engine", Err: err}
	}
	return eng, cfg, nil
}
