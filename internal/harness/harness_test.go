package harness

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vrtb/internal/store"
	"github.com/roach88/vrtb/internal/testutil"
)

func mustParse(t *testing.T, src string) *Scenario {
	t.Helper()
	s, err := ParseScenario([]byte(src))
	require.NoError(t, err)
	return s
}

func requirePass(t *testing.T, result *Result) {
	t.Helper()
	require.True(t, result.Pass, "errors:\n%s", strings.Join(result.Errors, "\n"))
}

func TestRun_Minimal(t *testing.T) {
	result, err := Run(mustParse(t, minimalScenario))
	require.NoError(t, err)
	requirePass(t, result)

	assert.Equal(t, testutil.DefaultRunID, result.RunID)
	require.Len(t, result.Trace, 1)

	tr := result.Trace[0]
	assert.Equal(t, int64(1), tr.Seq)
	assert.Equal(t, "a", tr.Link)
	assert.Equal(t, TBEndpoint, tr.Producer)
	assert.Equal(t, TBEndpoint, tr.Consumer)
	assert.Equal(t, "Message", tr.Schema)
	assert.Equal(t, "0x00000002000000010000000000000003", tr.Bits)

	addr, ok := tr.Field("meta-address")
	require.True(t, ok)
	assert.Equal(t, "0x00000001", addr)
}

func TestRun_OneTransferPerCycle(t *testing.T) {
	result, err := Run(mustParse(t, `
name: burst
description: "Back-to-back values"
clock: {period_ns: 10}
links: [{name: a, schema: Message}]
steps:
  - send: {link: a, values: [[1, 0, 0], [2, 0, 0], [3, 0, 0]]}
  - expect: {link: a, values: [[1, 0, 0], [2, 0, 0], [3, 0, 0]]}
`))
	require.NoError(t, err)
	requirePass(t, result)

	require.Len(t, result.Trace, 3)
	for i := 1; i < len(result.Trace); i++ {
		assert.Equal(t, result.Trace[i-1].Seq+1, result.Trace[i].Seq)
		assert.Equal(t, int64(10_000), result.Trace[i].TimePS-result.Trace[i-1].TimePS)
	}
}

func TestRun_Relay(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/relay.yaml")
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	requirePass(t, result)

	in := result.OnLink("ingress")
	out := result.OnLink("egress")
	require.Len(t, in, 2)
	require.Len(t, out, 2)
	for i := range in {
		assert.Equal(t, TBEndpoint, in[i].Producer)
		assert.Equal(t, "fwd", in[i].Consumer)
		assert.Equal(t, "fwd", out[i].Producer)
		assert.Equal(t, TBEndpoint, out[i].Consumer)
		assert.Equal(t, in[i].Bits, out[i].Bits)
		assert.Less(t, in[i].Seq, out[i].Seq)
	}
}

func TestRun_Backpressure(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/backpressure.yaml")
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	requirePass(t, result)

	require.Len(t, result.Trace, 4)
	// Nothing moves while the consumer is held off for 5 cycles.
	assert.GreaterOrEqual(t, result.Trace[0].TimePS, int64(5*10_000))
}

func TestRun_ExpectMismatch(t *testing.T) {
	result, err := Run(mustParse(t, `
name: mismatch
description: "Wrong expectation"
links: [{name: a, schema: Message}]
steps:
  - send: {link: a, values: [[1, 2, 3]]}
  - expect: {link: a, values: [[1, 2, 4]]}
`))
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0], "a: value 0 is")
	assert.Contains(t, result.Errors[0], "in step 1")
}

func TestRun_ExpectTimeout(t *testing.T) {
	result, err := Run(mustParse(t, `
name: timeout
description: "Nothing arrives"
links: [{name: a, schema: Message}]
steps:
  - expect: {link: a, values: [[1, 2, 3]], within: 3}
`))
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0], "did not arrive within 3 cycles")
	assert.Empty(t, result.Trace)
}

func TestRun_LeftoverValuesFailCleanup(t *testing.T) {
	result, err := Run(mustParse(t, `
name: leftover
description: "One value is never dequeued"
links: [{name: a, schema: Message}]
steps:
  - send: {link: a, values: [[1, 2, 3], [4, 5, 6]]}
  - expect: {link: a, values: [[1, 2, 3]]}
  - wait: 5
`))
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "there are elements left")
	assert.Len(t, result.Trace, 2)
}

func TestRun_BadValue(t *testing.T) {
	result, err := Run(mustParse(t, `
name: bad_value
description: "Value does not fit its field"
links: [{name: a, schema: Message}]
steps:
  - send: {link: a, values: [[1, 2]]}
`))
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0], "send on a")
}

func TestRun_UnknownSchema(t *testing.T) {
	_, err := Run(mustParse(t, `
name: unknown_schema
description: "Schema does not exist"
links: [{name: a, schema: Nope}]
steps: [{wait: 1}]
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown schema "Nope"`)
}

func TestRun_TaskIDCollision(t *testing.T) {
	_, err := Run(mustParse(t, `
name: collision
description: "Relay named like a link"
links: [{name: a, schema: Message}, {name: b, schema: Message}]
relays: [{name: b, from: a, to: b}]
steps: [{wait: 1}]
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already in use")
}

func TestRun_FailedAssertion(t *testing.T) {
	s := mustParse(t, minimalScenario)
	s.Assertions = []Assertion{{Type: AssertTransferCount, Link: "a", Count: 2}}

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "Assertion failed: transfer_count")
}

func TestRun_WithStore(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	gen := testutil.NewSequenceRunIDGenerator("run")
	pass := mustParse(t, minimalScenario)
	fail := mustParse(t, minimalScenario)
	fail.Assertions = []Assertion{{Type: AssertTransferCount, Link: "a", Count: 5}}

	r1, err := Run(pass, WithStore(st), WithRunIDGenerator(gen))
	require.NoError(t, err)
	r2, err := Run(fail, WithStore(st), WithRunIDGenerator(gen))
	require.NoError(t, err)
	assert.NotEqual(t, r1.RunID, r2.RunID)

	ctx := t.Context()
	runs, err := st.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, store.StatusPassed, runs[0].Status)
	assert.Equal(t, store.StatusFailed, runs[1].Status)
	assert.Contains(t, runs[1].Failure, "transfer_count")

	stored, err := st.ReadTransfers(ctx, r1.RunID)
	require.NoError(t, err)
	assert.Equal(t, r1.Trace, stored)
}

func TestRun_FixedRunIDWinsOverGenerator(t *testing.T) {
	s := mustParse(t, minimalScenario)
	s.RunID = "pinned"

	result, err := Run(s, WithRunIDGenerator(testutil.NewSequenceRunIDGenerator("gen")))
	require.NoError(t, err)
	assert.Equal(t, "pinned", result.RunID)
}

func TestRun_Deterministic(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/relay.yaml")
	require.NoError(t, err)

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	assert.Equal(t, first.Trace, second.Trace)
}

func TestRun_Testdata(t *testing.T) {
	files, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)

	for _, f := range files {
		t.Run(filepath.Base(f), func(t *testing.T) {
			scenario, err := LoadScenario(f)
			require.NoError(t, err)
			result, err := Run(scenario)
			require.NoError(t, err)
			requirePass(t, result)
		})
	}
}

func TestRun_SplitDataSignals(t *testing.T) {
	result, err := Run(mustParse(t, `
name: split
description: "Data fields on separate wires"
links:
  - name: a
    schema: Message
    signals:
      meta: {tag: a_tag, address: a_addr}
      data: a_payload
steps:
  - send: {link: a, values: [[7, 8, 9]]}
  - expect: {link: a, values: [[7, 8, 9]]}
`))
	require.NoError(t, err)
	requirePass(t, result)
	require.Len(t, result.Trace, 1)
	assert.Equal(t, "0x00000008000000070000000000000009", result.Trace[0].Bits)
}

func TestRun_SplitDataSignalsUnknownField(t *testing.T) {
	_, err := Run(mustParse(t, `
name: split_bad
description: "Mapping names a missing field"
links:
  - name: a
    schema: Message
    signals: {payload: a_payload}
steps: [{wait: 1}]
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `no field "payload"`)
}
