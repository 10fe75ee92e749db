package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/roach88/vrtb/internal/trace"
)

// Run status values.
const (
	StatusRunning = "running"
	StatusPassed  = "passed"
	StatusFailed  = "failed"
)

// Run is one execution of a scenario.
type Run struct {
	ID       string `json:"id"`
	Scenario string `json:"scenario"`
	Seq      int64  `json:"seq"`
	Network  string `json:"network,omitempty"`
	Status   string `json:"status"`
	Failure  string `json:"failure,omitempty"`
}

// RunIDGenerator produces run identifiers.
type RunIDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-ordered UUIDv7 run IDs.
type UUIDv7Generator struct{}

// Generate returns a new UUIDv7 string.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// BeginRun records a new run in the running state. An empty run.ID is
// filled from gen (UUIDv7 when gen is nil). The stored run is returned with
// its assigned seq.
func (s *Store) BeginRun(ctx context.Context, run Run, gen RunIDGenerator) (Run, error) {
	if run.ID == "" {
		if gen == nil {
			gen = UUIDv7Generator{}
		}
		run.ID = gen.Generate()
	}
	run.Status = StatusRunning
	run.Failure = ""

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO runs (id, scenario, seq, network, status)
		VALUES (?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM runs), ?, ?)
		RETURNING seq
	`, run.ID, run.Scenario, run.Network, run.Status).Scan(&run.Seq)
	if err != nil {
		return Run{}, fmt.Errorf("begin run: %w", err)
	}
	return run, nil
}

// FinishRun marks a run passed (failure == nil) or failed.
func (s *Store) FinishRun(ctx context.Context, id string, failure error) error {
	status, text := StatusPassed, ""
	if failure != nil {
		status, text = StatusFailed, failure.Error()
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, failure = ? WHERE id = ?
	`, status, text, id)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish run: unknown run %s", id)
	}
	return nil
}

// WriteTransfer appends a transfer to a run. Rewriting the same (run, seq)
// is ignored.
func (s *Store) WriteTransfer(ctx context.Context, runID string, t trace.Transfer) error {
	id, err := t.ID()
	if err != nil {
		return fmt.Errorf("write transfer: %w", err)
	}
	fields, err := marshalFields(t.Fields)
	if err != nil {
		return fmt.Errorf("write transfer: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO transfers
		(run_id, seq, id, time_ps, link, producer, consumer, schema_name, bits, fields)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, seq) DO NOTHING
	`,
		runID,
		t.Seq,
		id,
		t.TimePS,
		t.Link,
		t.Producer,
		t.Consumer,
		t.Schema,
		t.Bits,
		fields,
	)
	if err != nil {
		return fmt.Errorf("write transfer: %w", err)
	}
	return nil
}

// Sink returns a trace.Sink appending to the given run. Put it behind a
// trace.Recorder so transfers carry sequence numbers.
func (s *Store) Sink(ctx context.Context, runID string) trace.Sink {
	return trace.SinkFunc(func(t trace.Transfer) error {
		return s.WriteTransfer(ctx, runID, t)
	})
}
