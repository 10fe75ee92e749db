package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/vrtb/internal/trace"
)

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// fixedID always returns the same run ID.
type fixedID string

func (f fixedID) Generate() string { return string(f) }

// beginTestRun starts a run with a fixed ID.
func beginTestRun(t *testing.T, s *Store, id string) Run {
	t.Helper()
	run, err := s.BeginRun(context.Background(), Run{Scenario: "echo", Network: "bus"}, fixedID(id))
	require.NoError(t, err)
	return run
}

// createTestTransfer creates a two-field Message transfer.
func createTestTransfer(seq int64, link, tag string) trace.Transfer {
	return trace.Transfer{
		Seq:      seq,
		TimePS:   seq * 10_000,
		Link:     link,
		Producer: "Loopback Interceptor",
		Consumer: "C2C Network",
		Schema:   "Message",
		Bits:     "0x" + tag,
		Fields: []trace.Field{
			{Name: "meta-tag", Value: "0x" + tag},
			{Name: "data", Value: "0x05"},
		},
	}
}
