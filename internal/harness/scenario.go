package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a bench scenario.
// A scenario declares valid/ready links, optional relay tasks between them,
// a sequence of steps driven from the bench, and assertions over the
// resulting transfer trace.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Schemas is an optional directory of CUE schema declarations, relative
	// to the scenario file. The embedded layouts are used when empty.
	Schemas string `yaml:"schemas,omitempty"`

	// Clock configures the bench clock.
	Clock ClockSpec `yaml:"clock,omitempty"`

	// Links declares the valid/ready interfaces of the design.
	Links []LinkSpec `yaml:"links"`

	// Relays forward every value accepted on one link to another.
	Relays []RelaySpec `yaml:"relays,omitempty"`

	// Steps run in order inside the bench.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and the stored run.
	// Supported types: transfer_contains, transfer_order, transfer_count, stored
	Assertions []Assertion `yaml:"assertions"`

	// RunID is an optional fixed run ID for deterministic tests.
	// If empty, defaults to "test-run-default" for deterministic golden file comparison.
	RunID string `yaml:"run_id,omitempty"`
}

// ClockSpec configures the bench clock.
type ClockSpec struct {
	// PeriodNS is the clock period in nanoseconds. Zero means the default.
	PeriodNS int `yaml:"period_ns,omitempty"`

	// Physical declares a clk signal so the clock drives a real wire.
	Physical bool `yaml:"physical,omitempty"`
}

// LinkSpec declares one valid/ready interface. Its signals are named
// <name>_valid, <name>_ready and <name>_data.
type LinkSpec struct {
	Name       string `yaml:"name"`
	Schema     string `yaml:"schema"`
	ReadyIsAck bool   `yaml:"ready_is_ack,omitempty"`

	// Capacity bounds the consumer queue. Zero is unbounded.
	Capacity int `yaml:"capacity,omitempty"`

	// Signals splits the data bus: it maps record fields (nested for
	// nested records) to signal names, replacing <name>_data.
	Signals map[string]any `yaml:"signals,omitempty"`
}

// RelaySpec moves values from one link to another, once per cycle.
// Both links must carry the same schema.
type RelaySpec struct {
	Name string `yaml:"name"`
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// Step is one bench action. Exactly one field is set.
type Step struct {
	// Send queues values on a link's producer.
	Send *SendStep `yaml:"send,omitempty"`

	// Wait waits a number of rising edges.
	Wait int `yaml:"wait,omitempty"`

	// Disable holds a link's consumer off for a number of cycles.
	Disable *DisableStep `yaml:"disable,omitempty"`

	// Expect dequeues values from a link's consumer and compares them.
	Expect *ExpectStep `yaml:"expect,omitempty"`
}

// SendStep queues values on a link.
type SendStep struct {
	Link string `yaml:"link"`

	// Values are either positional lists in the schema's quick order or
	// maps of flattened field names.
	Values []any `yaml:"values"`
}

// DisableStep deasserts ready on a link for Cycles rising edges.
type DisableStep struct {
	Link   string `yaml:"link"`
	Cycles int    `yaml:"cycles"`
}

// ExpectStep waits for values on a link, in order.
type ExpectStep struct {
	Link   string `yaml:"link"`
	Values []any  `yaml:"values"`

	// Within bounds the wait for each value, in cycles. Zero means
	// DefaultWithin.
	Within int `yaml:"within,omitempty"`
}

// DefaultWithin is the per-value cycle bound of an expect step.
const DefaultWithin = 100

// Assertion validates the trace or the stored run.
type Assertion struct {
	// Type specifies the assertion type:
	// - "transfer_contains": some transfer on Link matches Fields
	// - "transfer_order": the first transfers of Links appear in order
	// - "transfer_count": Link carried exactly Count transfers
	// - "stored": exactly one stored transfer matches Where and has Expect
	Type string `yaml:"type"`

	// Link is the monitored link (transfer_contains, transfer_count).
	Link string `yaml:"link,omitempty"`

	// Fields are expected leaf values by flattened name (transfer_contains).
	// Subset match - only specified fields are validated.
	Fields map[string]any `yaml:"fields,omitempty"`

	// Links is the expected link order (transfer_order).
	Links []string `yaml:"links,omitempty"`

	// Count is the expected number of transfers (transfer_count).
	Count int `yaml:"count,omitempty"`

	// Where filters stored transfer columns (stored).
	// All fields must match exactly.
	Where map[string]any `yaml:"where,omitempty"`

	// Expect contains expected column values (stored).
	// Subset match - only specified columns are validated.
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertTransferContains = "transfer_contains"
	AssertTransferOrder    = "transfer_order"
	AssertTransferCount    = "transfer_count"
	AssertStored           = "stored"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// A relative schemas directory is resolved against the file's directory.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving the schemas directory relative to the provided base path.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if scenario.Schemas != "" && !filepath.IsAbs(scenario.Schemas) && basePath != "" {
		scenario.Schemas = filepath.Join(basePath, scenario.Schemas)
		if _, err := os.Stat(scenario.Schemas); err != nil {
			return nil, fmt.Errorf("invalid scenario: schema directory not found: %s", scenario.Schemas)
		}
	}
	return scenario, nil
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and that every
// reference names a declared link.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Links) == 0 {
		return fmt.Errorf("links list is required and must be non-empty")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if s.Clock.PeriodNS < 0 {
		return fmt.Errorf("clock.period_ns must be non-negative")
	}

	links := make(map[string]bool, len(s.Links))
	for i, l := range s.Links {
		if !validIdentifier.MatchString(l.Name) {
			return fmt.Errorf("links[%d]: invalid name %q", i, l.Name)
		}
		if links[l.Name] {
			return fmt.Errorf("links[%d]: duplicate link %q", i, l.Name)
		}
		if l.Schema == "" {
			return fmt.Errorf("links[%d]: schema is required", i)
		}
		if l.Capacity < 0 {
			return fmt.Errorf("links[%d]: capacity must be non-negative", i)
		}
		links[l.Name] = true
	}

	sources := make(map[string]string)
	sinks := make(map[string]string)
	for i, r := range s.Relays {
		if r.Name == "" {
			return fmt.Errorf("relays[%d]: name is required", i)
		}
		if !links[r.From] || !links[r.To] {
			return fmt.Errorf("relays[%d]: %s -> %s references an undeclared link", i, r.From, r.To)
		}
		if r.From == r.To {
			return fmt.Errorf("relays[%d]: relay %s loops on link %s", i, r.Name, r.From)
		}
		if other, dup := sources[r.From]; dup {
			return fmt.Errorf("relays[%d]: link %s is already consumed by relay %s", i, r.From, other)
		}
		if other, dup := sinks[r.To]; dup {
			return fmt.Errorf("relays[%d]: link %s is already driven by relay %s", i, r.To, other)
		}
		sources[r.From] = r.Name
		sinks[r.To] = r.Name
	}

	for i, step := range s.Steps {
		if err := validateStep(i, step, links, sources, sinks); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion, links); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(i int, step Step, links map[string]bool, sources, sinks map[string]string) error {
	set := 0
	if step.Send != nil {
		set++
	}
	if step.Wait != 0 {
		set++
	}
	if step.Disable != nil {
		set++
	}
	if step.Expect != nil {
		set++
	}
	if set != 1 {
		return fmt.Errorf("steps[%d]: exactly one of send, wait, disable, expect is required", i)
	}

	switch {
	case step.Wait < 0:
		return fmt.Errorf("steps[%d]: wait must be positive", i)
	case step.Send != nil:
		if !links[step.Send.Link] {
			return fmt.Errorf("steps[%d]: send to undeclared link %q", i, step.Send.Link)
		}
		if r, driven := sinks[step.Send.Link]; driven {
			return fmt.Errorf("steps[%d]: link %s is driven by relay %s", i, step.Send.Link, r)
		}
		if len(step.Send.Values) == 0 {
			return fmt.Errorf("steps[%d]: send needs at least one value", i)
		}
	case step.Disable != nil:
		if !links[step.Disable.Link] {
			return fmt.Errorf("steps[%d]: disable of undeclared link %q", i, step.Disable.Link)
		}
		if step.Disable.Cycles <= 0 {
			return fmt.Errorf("steps[%d]: disable cycles must be positive", i)
		}
	case step.Expect != nil:
		if !links[step.Expect.Link] {
			return fmt.Errorf("steps[%d]: expect on undeclared link %q", i, step.Expect.Link)
		}
		if r, consumed := sources[step.Expect.Link]; consumed {
			return fmt.Errorf("steps[%d]: link %s is consumed by relay %s", i, step.Expect.Link, r)
		}
		if len(step.Expect.Values) == 0 {
			return fmt.Errorf("steps[%d]: expect needs at least one value", i)
		}
		if step.Expect.Within < 0 {
			return fmt.Errorf("steps[%d]: within must be non-negative", i)
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, links map[string]bool) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTransferContains:
		if !links[a.Link] {
			return fmt.Errorf("assertions[%d]: a declared link is required for transfer_contains", index)
		}
	case AssertTransferOrder:
		if len(a.Links) == 0 {
			return fmt.Errorf("assertions[%d]: links list is required for transfer_order", index)
		}
	case AssertTransferCount:
		if !links[a.Link] {
			return fmt.Errorf("assertions[%d]: a declared link is required for transfer_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for transfer_count", index)
		}
	case AssertStored:
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for stored", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
