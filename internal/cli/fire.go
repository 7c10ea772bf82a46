package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/luahook/internal/entity"
)

// FireOptions holds flags for the fire commands.
type FireOptions struct {
	*RootOptions

	Entry    uint32
	GUID     uint64
	Level    uint8
	MinLevel uint8
	MaxLevel uint8
	Name     string

	Motd string
}

// NewFireCommand creates the fire command and its hook subcommands.
func NewFireCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FireOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "fire",
		Short: "Dispatch a single hook against the loaded scripts",
	}
	cmd.AddCommand(newFireLevelCommand(opts))
	cmd.AddCommand(newFireMotdCommand(opts))
	return cmd
}

// LevelResult is the outcome of a level override chain.
type LevelResult struct {
	Entry uint32 `json:"entry"`
	GUID  uint64 `json:"guid"`
	From  uint8  `json:"from"`
	To    uint8  `json:"to"`
}

func newFireLevelCommand(opts *FireOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "level",
		Short:         "Run the before-select-level override chain for a synthetic creature",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFireLevel(opts, cmd)
		},
	}

	cmd.Flags().Uint32Var(&opts.Entry, "entry", 1, "creature template entry")
	cmd.Flags().Uint64Var(&opts.GUID, "guid", 1, "creature guid")
	cmd.Flags().Uint8Var(&opts.Level, "level", 1, "level chosen by the host")
	cmd.Flags().Uint8Var(&opts.MinLevel, "min", 1, "template minimum level")
	cmd.Flags().Uint8Var(&opts.MaxLevel, "max", 1, "template maximum level")
	cmd.Flags().StringVar(&opts.Name, "name", "Creature", "creature name")
	return cmd
}

func runFireLevel(opts *FireOptions, cmd *cobra.Command) error {
	eng, _, err := startOneShot(opts.RootOptions, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer eng.Close()

	tmpl := &entity.CreatureTemplate{
		Entry:    opts.Entry,
		Name:     opts.Name,
		MinLevel: opts.MinLevel,
		MaxLevel: opts.MaxLevel,
	}
	c := &entity.Creature{
		GUID:  opts.GUID,
		Entry: opts.Entry,
		Name:  opts.Name,
		Level: opts.Level,
	}

	level := opts.Level
	eng.OnAllCreatureBeforeSelectLevel(tmpl, c, &level)
	c.Level = level
	eng.OnAllCreatureSelectLevel(tmpl, c)

	res := LevelResult{Entry: opts.Entry, GUID: opts.GUID, From: opts.Level, To: level}
	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), res)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "level %d -> %d\n", res.From, res.To)
	return nil
}

// MotdResult is the outcome of a message-of-the-day override chain.
type MotdResult struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Error string `json:"error,omitempty"`
}

func newFireMotdCommand(opts *FireOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "motd",
		Short:         "Run the message-of-the-day override chain",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFireMotd(opts, cmd)
		},
	}
	cmd.Flags().StringVar(&opts.Motd, "text", "", "current message of the day")
	return cmd
}

func runFireMotd(opts *FireOptions, cmd *cobra.Command) error {
	eng, _, err := startOneShot(opts.RootOptions, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer eng.Close()

	motd := opts.Motd
	chainErr := eng.OnMotdChange(&motd)

	res := MotdResult{From: opts.Motd, To: motd}
	if chainErr != nil {
		res.Error = chainErr.Error()
	}
	if opts.Format == "json" {
		if err := writeJSON(cmd.OutOrStdout(), res); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "motd %q -> %q\n", res.From, res.To)
	}
	if chainErr != nil {
		return &ExitError{Code: ExitFailure, Message: "override rejected", Err: chainErr}
	}
	return nil
}
