package harness

import (
	"bytes"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/vrtb/internal/trace"
)

// TraceSnapshot captures the complete trace for a scenario execution.
type TraceSnapshot struct {
	ScenarioName string
	RunID        string
	Trace        []trace.Transfer
}

// MarshalSnapshot renders a snapshot as canonical JSON lines: a header
// object with the scenario name and run ID, then one line per transfer.
func (s *TraceSnapshot) MarshalSnapshot() ([]byte, error) {
	header := map[string]any{
		"scenario_name": s.ScenarioName,
		"transfers":     int64(len(s.Trace)),
	}
	if s.RunID != "" {
		header["run_id"] = s.RunID
	}
	line, err := trace.MarshalCanonical(header)
	if err != nil {
		return nil, err
	}
	body, err := trace.Snapshot(s.Trace)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Write(line)
	buf.WriteByte('\n')
	buf.Write(body)
	return buf.Bytes(), nil
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if the scenario cannot be built.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...goldie.Option) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result, opts...); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the given result's trace against a golden file
// without re-running the scenario. opts override the fixture defaults.
func AssertGolden(t *testing.T, scenarioName string, result *Result, opts ...goldie.Option) error {
	t.Helper()

	snapshot := TraceSnapshot{
		ScenarioName: scenarioName,
		RunID:        result.RunID,
		Trace:        result.Trace,
	}
	data, err := snapshot.MarshalSnapshot()
	if err != nil {
		return err
	}

	g := goldie.New(t, append([]goldie.Option{
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	}, opts...)...)
	g.Assert(t, scenarioName, data)

	return nil
}
