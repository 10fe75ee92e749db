package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/vrtb/internal/codec"
)

// CodecOptions holds flags for the encode and decode commands.
type CodecOptions struct {
	*RootOptions
	Schemas string   // CUE schema directory; built-in layouts when empty
	Fields  []string // name=value pairs (encode only)
}

// FieldValue is one flattened leaf of an encoded value.
type FieldValue struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// CodecResult is the output of encode and decode.
type CodecResult struct {
	Schema string       `json:"schema"`
	Width  int          `json:"width"`
	Hex    string       `json:"hex"`
	Bin    string       `json:"bin"`
	Fields []FieldValue `json:"fields"`
}

// String renders the result for text output.
func (r CodecResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%d bits)\n", r.Schema, r.Width)
	fmt.Fprintf(&b, "  hex: %s\n", r.Hex)
	fmt.Fprintf(&b, "  bin: %s\n", r.Bin)
	for _, f := range r.Fields {
		fmt.Fprintf(&b, "  %s = %s\n", f.Name, f.Value)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// NewEncodeCommand creates the encode command.
func NewEncodeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CodecOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "encode <schema> [values...]",
		Short: "Pack a value into its bit vector",
		Long: `Pack a value of a schema. Positional values follow the schema's quick
order; --field sets flattened leaves by name instead.

Values are decimal or prefixed 0x, 0o, 0b.

Examples:
  vrtb encode Message 0x10 1 0xcafe
  vrtb encode Message --field meta-address=0x10 --field meta-tag=1 --field data=0xcafe
  vrtb encode Word 3 7 --schemas ./schemas --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEncode(opts, args[0], args[1:], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Schemas, "schemas", "", "CUE schema directory (default: built-in layouts)")
	cmd.Flags().StringArrayVar(&opts.Fields, "field", nil, "leaf value as name=value (repeatable)")

	return cmd
}

// NewDecodeCommand creates the decode command.
func NewDecodeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CodecOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "decode <schema> <bits>",
		Short: "Split a bit vector into the fields of a schema",
		Long: `Decode a packed vector, given as decimal or prefixed 0x, 0o, 0b, into
the leaves of a schema.

Examples:
  vrtb decode Message 0x0000000100000010000000000000cafe`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDecode(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Schemas, "schemas", "", "CUE schema directory (default: built-in layouts)")

	return cmd
}

func (o *CodecOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// lookupSchema loads the registry and finds one schema in it.
func (o *CodecOptions) lookupSchema(f *OutputFormatter, name string) (*codec.Schema, error) {
	reg, err := LoadRegistry(o.Schemas)
	if err != nil {
		_ = f.Error(loadErrorCode(err), err.Error(), nil)
		return nil, WrapExitError(ExitCommandError, "failed to load schemas", err)
	}
	s, ok := reg.Lookup(name)
	if !ok {
		_ = f.Error(ErrCodeUnknownSchema, fmt.Sprintf("unknown schema %q", name), reg.Names())
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("unknown schema %q", name))
	}
	return s, nil
}

func runEncode(opts *CodecOptions, name string, values []string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	s, err := opts.lookupSchema(f, name)
	if err != nil {
		return err
	}

	var v codec.Value
	switch {
	case len(opts.Fields) > 0 && len(values) > 0:
		return NewExitError(ExitCommandError, "give either positional values or --field, not both")
	case len(opts.Fields) > 0:
		kv := make(map[string]any, len(opts.Fields))
		for _, pair := range opts.Fields {
			k, val, ok := strings.Cut(pair, "=")
			if !ok {
				return NewExitError(ExitCommandError, fmt.Sprintf("--field %q: want name=value", pair))
			}
			kv[k] = val
		}
		v, err = codec.FromFlat(s, kv)
	default:
		args := make([]any, len(values))
		for i, x := range values {
			args[i] = x
		}
		v, err = codec.Quick(s, args...)
	}
	if err != nil {
		_ = f.Error(ErrCodeBadValue, err.Error(), nil)
		return WrapExitError(ExitFailure, "encode failed", err)
	}

	return f.Success(codecResult(name, v))
}

func runDecode(opts *CodecOptions, name, bits string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	s, err := opts.lookupSchema(f, name)
	if err != nil {
		return err
	}

	width, err := codec.BitWidth(s)
	if err != nil {
		return WrapExitError(ExitFailure, "decode failed", err)
	}
	vec, err := codec.ParseVector(width, bits)
	if err != nil {
		_ = f.Error(ErrCodeBadValue, err.Error(), nil)
		return WrapExitError(ExitFailure, "decode failed", err)
	}
	v, err := codec.FromBits(s, vec)
	if err != nil {
		_ = f.Error(ErrCodeBadValue, err.Error(), nil)
		return WrapExitError(ExitFailure, "decode failed", err)
	}

	return f.Success(codecResult(name, v))
}

func codecResult(name string, v codec.Value) CodecResult {
	bits := v.Bits()
	r := CodecResult{
		Schema: name,
		Width:  bits.Width(),
		Hex:    bits.Hex(),
		Bin:    bits.Bin(),
		Fields: []FieldValue{},
	}
	for _, fl := range v.Flatten() {
		r.Fields = append(r.Fields, FieldValue{Name: fl.Name, Value: fl.Bits.Hex()})
	}
	return r
}

