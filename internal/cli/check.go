package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dshills/luahook/internal/config"
	"github.com/dshills/luahook/internal/engine"
)

// BindingCount is the number of bindings on one event key.
type BindingCount struct {
	Key      string `json:"key"`
	Category string `json:"category"`
	Event    uint32 `json:"event"`
	Count    int    `json:"count"`
}

// CheckReport summarizes a one-time script load.
type CheckReport struct {
	ScriptPath string         `json:"script_path"`
	Generation string         `json:"generation"`
	Bindings   []BindingCount `json:"bindings"`
	Errors     []string       `json:"errors,omitempty"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Load scripts once and report their bindings",
		Long: `Load every script under the script path and print the bindings they
registered per event key. Exits non-zero when any script fails to load.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(rootOpts, cmd)
		},
	}
}

func runCheck(opts *RootOptions, cmd *cobra.Command) error {
	eng, cfg, err := startOneShot(opts, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer eng.Close()

	report := buildReport(eng, cfg)
	if opts.Format == "json" {
		if err := writeJSON(cmd.OutOrStdout(), report); err != nil {
			return err
		}
	} else {
		writeReport(cmd.OutOrStdout(), report)
	}

	if n := len(report.Errors); n > 0 {
		return &ExitError{Code: ExitFailure, Message: fmt.Sprintf("%d script(s) failed to load", n)}
	}
	return nil
}

func buildReport(eng *engine.Engine, cfg *config.Cache) CheckReport {
	reg := eng.Registry()
	report := CheckReport{
		ScriptPath: cfg.String(config.ScriptPath),
		Generation: eng.Generation().String(),
		Bindings:   []BindingCount{},
	}
	for _, key := range reg.Keys() {
		report.Bindings = append(report.Bindings, BindingCount{
			Key:      key.String(),
			Category: key.Category.String(),
			Event:    key.Event,
			Count:    reg.Count(key),
		})
	}
	for _, serr := range eng.LoadErrors() {
		report.Errors = append(report.Errors, serr.Error())
	}
	return report
}

func writeReport(w io.Writer, r CheckReport) {
	fmt.Fprintf(w, "script path: %s\n", r.ScriptPath)
	fmt.Fprintf(w, "generation:  %s\n", r.Generation)
	if len(r.Bindings) == 0 {
		fmt.Fprintln(w, "no bindings")
	}
	for _, b := range r.Bindings {
		fmt.Fprintf(w, "  %-20s %d\n", b.Key, b.Count)
	}
	for _, e := range r.Errors {
		fmt.Fprintf(w, "error: %s\n", e)
	}
}
