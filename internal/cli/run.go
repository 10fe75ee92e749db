package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/vrtb/internal/harness"
	"github.com/roach88/vrtb/internal/store"
	"github.com/roach88/vrtb/internal/trace"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string // optional - record the run in this SQLite file
	Trace    bool   // print every transfer

	// RunIDs overrides run ID generation when --db is set (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDs store.RunIDGenerator
}

// RunResult is the JSON payload of the run command.
type RunResult struct {
	Scenario string           `json:"scenario"`
	Pass     bool             `json:"pass"`
	RunID    string           `json:"run_id"`
	Errors   []string         `json:"errors,omitempty"`
	Trace    []map[string]any `json:"trace,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run one bench scenario",
		Long: `Run a single scenario and report its outcome.

With --db the run and its transfers are stored for later inspection with
"vrtb trace" or "vrtb replay". Ctrl-C stops the simulation.

Examples:
  vrtb run ./scenarios/relay.yaml
  vrtb run ./scenarios/relay.yaml --trace
  vrtb run ./scenarios/relay.yaml --db runs.db --verbose`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarioFile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "record the run in a SQLite database")
	cmd.Flags().BoolVar(&opts.Trace, "trace", false, "print every observed transfer")

	return cmd
}

func runScenarioFile(opts *RunOptions, path string, cmd *cobra.Command) error {
	logger := opts.benchLogger()

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}

	runOpts := []harness.Option{harness.WithLogger(logger)}
	if opts.Database != "" {
		st, err := store.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				slog.Error("error closing database", "error", closeErr)
			}
		}()
		gen := opts.RunIDs
		if gen == nil {
			gen = store.UUIDv7Generator{}
		}
		runOpts = append(runOpts, harness.WithStore(st), harness.WithRunIDGenerator(gen))
	}

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	slog.Debug("running scenario", "scenario", scenario.Name, "path", path)
	result, err := harness.RunContext(ctx, scenario, runOpts...)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build scenario", err)
	}

	if opts.Format == "json" {
		out := RunResult{
			Scenario: scenario.Name,
			Pass:     result.Pass,
			RunID:    result.RunID,
			Errors:   result.Errors,
		}
		if opts.Trace {
			for _, t := range result.Trace {
				out.Trace = append(out.Trace, t.Object())
			}
		}
		status := "ok"
		if !result.Pass {
			status = "error"
		}
		if err := writeJSON(cmd.OutOrStdout(), CLIResponse{Status: status, Data: out, RunID: result.RunID}); err != nil {
			return err
		}
	} else {
		w := cmd.OutOrStdout()
		if opts.Trace {
			for _, t := range result.Trace {
				fmt.Fprintln(w, formatTransfer(t))
			}
		}
		if result.Pass {
			fmt.Fprintf(w, "✓ %s passed (%d transfers, run %s)\n", scenario.Name, len(result.Trace), result.RunID)
		} else {
			fmt.Fprintf(w, "✗ %s failed (run %s)\n", scenario.Name, result.RunID)
			for _, e := range result.Errors {
				fmt.Fprintf(w, "  %s\n", e)
			}
		}
	}

	if !result.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", scenario.Name))
	}
	return nil
}

// formatTransfer renders one transfer on a single line.
func formatTransfer(t trace.Transfer) string {
	return fmt.Sprintf("[%d] %d ps %s %s -> %s %s", t.Seq, t.TimePS, t.Link, t.Producer, t.Consumer, t.Bits)
}
