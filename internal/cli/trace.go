package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/vrtb/internal/store"
	"github.com/roach88/vrtb/internal/trace"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	RunID    string // optional - list runs when empty
	Link     string // optional - filter to one link
}

// TraceResult holds the transfers of one stored run.
type TraceResult struct {
	Run       store.Run        `json:"run"`
	Transfers []map[string]any `json:"transfers"`
	Stats     TraceStats       `json:"stats"`
}

// TraceStats holds summary statistics for a trace.
type TraceStats struct {
	Total   int            `json:"total"`
	PerLink map[string]int `json:"per_link"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Inspect stored runs and transfers",
		Long: `Read the transfer log written by "vrtb run --db" or "vrtb test --db".

Without --run every stored run is listed. With --run the run's transfers are
printed in sequence order.

Examples:
  vrtb trace --db runs.db
  vrtb trace --db runs.db --run 0190a6c2-...
  vrtb trace --db runs.db --run 0190a6c2-... --link egress --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run ID to show")
	cmd.Flags().StringVar(&opts.Link, "link", "", "show one link only")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	if opts.RunID == "" {
		return listRuns(ctx, opts, st, cmd)
	}

	run, err := st.ReadRun(ctx, opts.RunID)
	if errors.Is(err, store.ErrRunNotFound) {
		return NewExitError(ExitCommandError, fmt.Sprintf("run not found: %s", opts.RunID))
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	var transfers []trace.Transfer
	if opts.Link != "" {
		transfers, err = st.ReadLink(ctx, run.ID, opts.Link)
	} else {
		transfers, err = st.ReadTransfers(ctx, run.ID)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read transfers", err)
	}

	result := TraceResult{
		Run:       run,
		Transfers: make([]map[string]any, 0, len(transfers)),
		Stats:     TraceStats{Total: len(transfers), PerLink: make(map[string]int)},
	}
	for _, t := range transfers {
		result.Transfers = append(result.Transfers, t.Object())
		result.Stats.PerLink[t.Link]++
	}

	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), CLIResponse{Status: "ok", Data: result, RunID: run.ID})
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Run %s (%s, %s)\n", run.ID, run.Scenario, run.Status)
	if run.Failure != "" && opts.Verbose {
		fmt.Fprintf(w, "Failure:\n%s\n", run.Failure)
	}
	for _, t := range transfers {
		fmt.Fprintln(w, formatTransfer(t))
		if opts.Verbose {
			for _, f := range t.Fields {
				fmt.Fprintf(w, "      %s = %s\n", f.Name, f.Value)
			}
		}
	}
	fmt.Fprintf(w, "%d transfer(s)\n", len(transfers))
	return nil
}

func listRuns(ctx context.Context, opts *TraceOptions, st *store.Store, cmd *cobra.Command) error {
	runs, err := st.ListRuns(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}

	if opts.Format == "json" {
		if runs == nil {
			runs = []store.Run{}
		}
		return writeJSON(cmd.OutOrStdout(), CLIResponse{Status: "ok", Data: runs})
	}

	w := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs found in database.")
		return nil
	}
	for _, r := range runs {
		n, err := st.CountTransfers(ctx, r.ID)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to count transfers", err)
		}
		fmt.Fprintf(w, "%d  %s  %-7s  %s (%d transfers)\n", r.Seq, r.ID, r.Status, r.Scenario, n)
	}
	return nil
}
