package testutil

import (
	"fmt"
	"sync/atomic"
)

// DefaultRunID is the run ID of scenarios that do not pin one.
const DefaultRunID = "test-run-default"

// FixedRunIDGenerator generates the same run ID every time.
//
// This enables deterministic test execution and golden snapshot comparison.
// The same scenario with the same FixedRunIDGenerator produces byte-identical
// transfer logs.
//
// Thread-safety: FixedRunIDGenerator is stateless and safe for concurrent use.
type FixedRunIDGenerator struct {
	id string
}

// NewFixedRunIDGenerator creates a new fixed run ID generator.
//
// The ID is typically set in the scenario YAML:
//
//	run_id: "test-run-00000000-0000-0000-0000-000000000001"
//
// If id is empty, Generate() returns DefaultRunID.
func NewFixedRunIDGenerator(id string) *FixedRunIDGenerator {
	if id == "" {
		id = DefaultRunID
	}
	return &FixedRunIDGenerator{id: id}
}

// Generate returns the fixed run ID.
//
// Implements store.RunIDGenerator.
func (g *FixedRunIDGenerator) Generate() string {
	return g.id
}

// SequenceRunIDGenerator returns prefix-1, prefix-2, ... for tests that
// store several runs.
type SequenceRunIDGenerator struct {
	prefix string
	n      atomic.Int64
}

// NewSequenceRunIDGenerator creates a generator counting from 1.
func NewSequenceRunIDGenerator(prefix string) *SequenceRunIDGenerator {
	return &SequenceRunIDGenerator{prefix: prefix}
}

// Generate returns the next ID in sequence.
func (g *SequenceRunIDGenerator) Generate() string {
	return fmt.Sprintf("%s-%d", g.prefix, g.n.Add(1))
}
