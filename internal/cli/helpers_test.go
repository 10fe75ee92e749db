package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vrtb/internal/testutil"
)

const passingScenario = `
name: echo
description: "Two messages over one link"
links:
  - name: loop
    schema: Message
steps:
  - send:
      link: loop
      values: [[0x10, 1, 0xcafe], [0x11, 2, 0xbeef]]
  - expect:
      link: loop
      values: [[0x10, 1, 0xcafe], [0x11, 2, 0xbeef]]
assertions:
  - type: transfer_count
    link: loop
    count: 2
`

const failingScenario = `
name: broken
description: "Expects a value that is never sent"
links:
  - name: loop
    schema: Message
steps:
  - expect:
      link: loop
      values: [[1, 2, 3]]
      within: 2
`

// writeFile writes content to dir/name and returns the path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// execute runs cmd with args and returns its standard output.
func execute(cmd *cobra.Command, args ...string) (string, error) {
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// recordRun stores one run of the scenario at path in dbPath under runID.
func recordRun(t *testing.T, path, dbPath, runID string) {
	t.Helper()
	cmd := NewRunCommand(&RootOptions{Format: "text"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetContext(context.Background())
	opts := &RunOptions{
		RootOptions: &RootOptions{Format: "text"},
		Database:    dbPath,
		RunIDs:      testutil.NewFixedRunIDGenerator(runID),
	}
	require.NoError(t, runScenarioFile(opts, path, cmd))
}
