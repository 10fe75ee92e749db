package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/vrtb/internal/codec"
	"github.com/roach88/vrtb/internal/compiler"
)

// SchemaOptions holds flags for the schema command.
type SchemaOptions struct {
	*RootOptions
	Name string // optional - show one schema only
}

// LeafInfo describes one flattened leaf of a schema.
type LeafInfo struct {
	Name  string `json:"name"`
	Width int    `json:"width"`
	High  int    `json:"high"` // most significant bit in the packed vector
	Low   int    `json:"low"`
}

// SchemaInfo describes a compiled schema.
type SchemaInfo struct {
	Name   string     `json:"name"`
	Width  int        `json:"width"`
	Quick  []string   `json:"quick,omitempty"`
	Leaves []LeafInfo `json:"leaves"`
}

// NewSchemaCommand creates the schema command.
func NewSchemaCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SchemaOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "schema [cue-dir]",
		Short: "Compile and list bit layouts",
		Long: `Compile the CUE schema declarations in a directory and list every
schema with its width, quick order and leaf bit ranges.

Without a directory the built-in layouts are listed.

Examples:
  vrtb schema
  vrtb schema ./schemas --name Message
  vrtb schema ./schemas --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ""
			if len(args) == 1 {
				dir = args[0]
			}
			return runSchema(opts, dir, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Name, "name", "", "show a single schema")

	return cmd
}

func runSchema(opts *SchemaOptions, dir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	reg, err := LoadRegistry(dir)
	if err != nil {
		_ = formatter.Error(loadErrorCode(err), err.Error(), nil)
		return WrapExitError(ExitFailure, "schema compilation failed", err)
	}
	formatter.VerboseLog("Compiled %d schema(s)", reg.Len())

	names := reg.Declared()
	if opts.Name != "" {
		if _, ok := reg.Lookup(opts.Name); !ok {
			_ = formatter.Error(ErrCodeUnknownSchema, fmt.Sprintf("unknown schema %q", opts.Name), reg.Names())
			return NewExitError(ExitCommandError, fmt.Sprintf("unknown schema %q", opts.Name))
		}
		names = []string{opts.Name}
	}

	infos := make([]SchemaInfo, 0, len(names))
	for _, name := range names {
		info, err := describeSchema(reg, name)
		if err != nil {
			return WrapExitError(ExitFailure, "describe schema", err)
		}
		infos = append(infos, info)
	}

	if opts.Format == "json" {
		return formatter.Success(infos)
	}

	w := cmd.OutOrStdout()
	for _, info := range infos {
		fmt.Fprintf(w, "%s (%d bits)\n", info.Name, info.Width)
		if len(info.Quick) > 0 {
			fmt.Fprintf(w, "  quick: %s\n", strings.Join(info.Quick, ", "))
		}
		for _, l := range info.Leaves {
			fmt.Fprintf(w, "  [%d:%d] %s\n", l.High, l.Low, l.Name)
		}
	}
	return nil
}

// describeSchema lists the leaves of a schema with their bit ranges. The
// first leaf holds the most significant bits.
func describeSchema(reg *compiler.Registry, name string) (SchemaInfo, error) {
	s := reg.MustLookup(name)
	width, err := codec.BitWidth(s)
	if err != nil {
		return SchemaInfo{}, err
	}

	info := SchemaInfo{Name: name, Width: width, Quick: s.QuickOrder(), Leaves: []LeafInfo{}}
	hi := width - 1
	for _, f := range codec.Zeroed(s).Flatten() {
		w := f.Bits.Width()
		info.Leaves = append(info.Leaves, LeafInfo{Name: f.Name, Width: w, High: hi, Low: hi - w + 1})
		hi -= w
	}
	return info, nil
}
