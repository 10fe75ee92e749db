package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vrtb/internal/trace"
)

func TestReplayCommand_Deterministic(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "relay.yaml", relayScenario)
	dbPath := filepath.Join(dir, "runs.db")
	recordRun(t, path, dbPath, "run-1")

	out, err := execute(NewReplayCommand(&RootOptions{Format: "text"}), path, "--db", dbPath, "--run", "run-1")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ relayed reproduced run run-1 (2 transfers)")
}

func TestReplayCommand_JSON(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "relay.yaml", relayScenario)
	dbPath := filepath.Join(dir, "runs.db")
	recordRun(t, path, dbPath, "run-1")

	out, err := execute(NewReplayCommand(&RootOptions{Format: "json"}), path, "--db", dbPath, "--run", "run-1")
	require.NoError(t, err)

	var resp struct {
		Status string       `json:"status"`
		Data   ReplayResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Deterministic)
	assert.Equal(t, 2, resp.Data.Stored)
	assert.Equal(t, 2, resp.Data.Replayed)
	assert.Empty(t, resp.Data.Difference)
}

func TestReplayCommand_Diverged(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "relay.yaml", relayScenario)
	dbPath := filepath.Join(dir, "runs.db")
	recordRun(t, path, dbPath, "run-1")

	changed := `
name: relayed
description: "One message through a relay"
links:
  - name: ingress
    schema: Message
  - name: egress
    schema: Message
relays:
  - name: fwd
    from: ingress
    to: egress
steps:
  - send:
      link: ingress
      values: [[1, 2, 4]]
  - expect:
      link: egress
      values: [[1, 2, 4]]
`
	require.NoError(t, os.WriteFile(path, []byte(changed), 0o644))

	out, err := execute(NewReplayCommand(&RootOptions{Format: "text"}), path, "--db", dbPath, "--run", "run-1")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ relayed diverged from run run-1")
	assert.Contains(t, out, "transfer 1:")
}

func TestReplayCommand_CommandErrors(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "relay.yaml", relayScenario)
	other := writeFile(t, dir, "echo.yaml", passingScenario)
	dbPath := filepath.Join(dir, "runs.db")
	recordRun(t, path, dbPath, "run-1")

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"unknown run", []string{path, "--db", dbPath, "--run", "nope"}, "run not found: nope"},
		{"other scenario", []string{other, "--db", dbPath, "--run", "run-1"}, `belongs to scenario "relayed"`},
		{"missing scenario", []string{filepath.Join(dir, "missing.yaml"), "--db", dbPath, "--run", "run-1"}, "failed to load scenario"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(NewReplayCommand(&RootOptions{Format: "text"}), tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCompareTraces(t *testing.T) {
	a := trace.Transfer{Seq: 1, TimePS: 10000, Link: "l", Producer: "TB", Consumer: "TB", Bits: "0x1"}
	b := a
	b.Bits = "0x2"

	assert.Empty(t, compareTraces([]trace.Transfer{a}, []trace.Transfer{a}))
	assert.Contains(t, compareTraces([]trace.Transfer{a}, []trace.Transfer{b}), "transfer 1: stored [1]")
	assert.Equal(t, "stored 1 transfers, replayed 0", compareTraces([]trace.Transfer{a}, nil))
}
