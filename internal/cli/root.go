package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/vrtb/internal/bench"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	// Logger is configured before any subcommand runs.
	Logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the vrtb CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "vrtb",
		Short: "vrtb - valid/ready test benches",
		Long:  "Run valid/ready bench scenarios, inspect bit layouts and stored transfer logs.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			logger, err := newLogger(cmd.ErrOrStderr(), opts.Verbose)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid environment", err)
			}
			opts.Logger = logger
			slog.SetDefault(logger)
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))
	cmd.AddCommand(NewSchemaCommand(opts))
	cmd.AddCommand(NewEncodeCommand(opts))
	cmd.AddCommand(NewDecodeCommand(opts))
	cmd.AddCommand(NewTraceCommand(opts))

	return cmd
}

// newLogger builds the process logger. The level comes from VRTB_LOG_LEVEL
// and --verbose forces debug.
func newLogger(w io.Writer, verbose bool) (*slog.Logger, error) {
	cfg, err := bench.LoadConfig()
	if err != nil {
		return nil, err
	}
	level := cfg.LogLevel
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})), nil
}

// benchLogger is the logger handed to scenario runs: silent unless
// --verbose is set.
func (o *RootOptions) benchLogger() *slog.Logger {
	if o.Verbose && o.Logger != nil {
		return o.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
