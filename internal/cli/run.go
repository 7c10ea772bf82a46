package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dshills/luahook/internal/config"
	"github.com/dshills/luahook/internal/engine"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Notify bool
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Load scripts and serve until interrupted",
		Long: `Load the script tree and keep the runtime alive.

SIGHUP re-reads the config file and reloads every script. SIGINT or SIGTERM
closes the runtime. With scripting.autoreload enabled, script changes are
picked up automatically.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Notify, "notify", false, "use filesystem notifications to pick up changes between polls")

	return cmd
}

func runServe(ctx context.Context, opts *RunOptions, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	log := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	cfg, err := loadConfig(opts.RootOptions, log)
	if err != nil {
		return err
	}

	eng := engine.New(cfg, engine.WithLogger(log), engine.WithWatchNotify(opts.Notify))
	if err := eng.Start(); err != nil {
		return &ExitError{Code: ExitCommandError, Message: "starting engine", Err: err}
	}
	defer eng.Close()
	eng.OnConfigLoad(false)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	serve(ctx, cfg, eng, hup, log)
	return nil
}

// serve blocks until ctx is done, reloading on every value from hup.
func serve(ctx context.Context, cfg *config.Cache, eng *engine.Engine, hup <-chan os.Signal, log zerolog.Logger) {
	log.Info().Str("generation", eng.Generation().String()).Msg("running")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("shutting down")
			return
		case <-hup:
			reloadAll(cfg, eng, log)
		}
	}
}

// reloadAll re-reads configuration, then rebuilds the runtime and applies
// the auto reload settings. A config error keeps the previous values and the
// scripts are reloaded anyway.
func reloadAll(cfg *config.Cache, eng *engine.Engine, log zerolog.Logger) {
	if err := cfg.Initialize(true); err != nil {
		log.Error().Err(err).Msg("config reload failed, keeping previous values")
	}
	reloadErr := eng.Reload()
	if err := eng.Reconfigure(); err != nil {
		log.Error().Err(err).Msg("auto reload reconfigure failed")
	}
	if reloadErr != nil {
		log.Error().Err(reloadErr).Msg("reload failed")
		return
	}
	eng.OnConfigLoad(true)
}
