package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/vrtb/internal/harness"
	"github.com/roach88/vrtb/internal/store"
	"github.com/roach88/vrtb/internal/trace"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	RunID    string
}

// ReplayResult reports whether a re-run reproduced a stored trace.
type ReplayResult struct {
	RunID         string `json:"run_id"`
	Scenario      string `json:"scenario"`
	Stored        int    `json:"stored"`
	Replayed      int    `json:"replayed"`
	Deterministic bool   `json:"deterministic"`
	Difference    string `json:"difference,omitempty"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay <scenario.yaml>",
		Short: "Re-run a scenario and verify it reproduces a stored run",
		Long: `Run a scenario again in memory and compare its transfer trace with a
run stored by "vrtb run --db". Every transfer must match in order, time,
link, endpoints and bits.

Exit codes:
  0 - The trace was reproduced
  1 - The traces differ
  2 - Command error (database not found, unknown run, etc.)

Examples:
  vrtb replay ./scenarios/relay.yaml --db runs.db --run 0190a6c2-...`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "stored run to compare against (required)")
	_ = cmd.MarkFlagRequired("run")

	return cmd
}

func runReplay(opts *ReplayOptions, path string, cmd *cobra.Command) error {
	ctx := context.Background()

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	run, err := st.ReadRun(ctx, opts.RunID)
	if errors.Is(err, store.ErrRunNotFound) {
		return NewExitError(ExitCommandError, fmt.Sprintf("run not found: %s", opts.RunID))
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}
	stored, err := st.ReadTransfers(ctx, run.ID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read transfers", err)
	}

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}
	if scenario.Name != run.Scenario {
		return NewExitError(ExitCommandError,
			fmt.Sprintf("run %s belongs to scenario %q, not %q", run.ID, run.Scenario, scenario.Name))
	}

	replayed, err := harness.RunContext(ctx, scenario, harness.WithLogger(opts.benchLogger()))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build scenario", err)
	}

	result := ReplayResult{
		RunID:    run.ID,
		Scenario: run.Scenario,
		Stored:   len(stored),
		Replayed: len(replayed.Trace),
	}
	result.Difference = compareTraces(stored, replayed.Trace)
	result.Deterministic = result.Difference == ""

	if opts.Format == "json" {
		status := "ok"
		if !result.Deterministic {
			status = "error"
		}
		if err := writeJSON(cmd.OutOrStdout(), CLIResponse{Status: status, Data: result, RunID: run.ID}); err != nil {
			return err
		}
	} else {
		w := cmd.OutOrStdout()
		if result.Deterministic {
			fmt.Fprintf(w, "✓ %s reproduced run %s (%d transfers)\n", run.Scenario, run.ID, result.Stored)
		} else {
			fmt.Fprintf(w, "✗ %s diverged from run %s\n", run.Scenario, run.ID)
			fmt.Fprintf(w, "  %s\n", result.Difference)
		}
	}

	if !result.Deterministic {
		return NewExitError(ExitFailure, "replay differs from stored run")
	}
	return nil
}

// compareTraces returns a description of the first difference between two
// traces, or "" when they match.
func compareTraces(stored, replayed []trace.Transfer) string {
	for i := 0; i < len(stored) && i < len(replayed); i++ {
		a, b := stored[i], replayed[i]
		idA, errA := a.ID()
		idB, errB := b.ID()
		if errA != nil || errB != nil {
			return fmt.Sprintf("transfer %d: cannot hash: %v", i+1, errors.Join(errA, errB))
		}
		if a.Seq != b.Seq || idA != idB {
			return fmt.Sprintf("transfer %d: stored %s, replayed %s", i+1, formatTransfer(a), formatTransfer(b))
		}
	}
	if len(stored) != len(replayed) {
		return fmt.Sprintf("stored %d transfers, replayed %d", len(stored), len(replayed))
	}
	return ""
}
