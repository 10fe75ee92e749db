package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/vrtb/internal/trace"
)

// ErrRunNotFound is returned by ReadRun for an unknown run ID.
var ErrRunNotFound = errors.New("run not found")

// ReadRun returns one run by ID.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, scenario, seq, network, status, failure
		FROM runs
		WHERE id = ?
	`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return run, err
}

// ListRuns returns every run in the order it was begun.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, scenario, seq, network, status, failure
		FROM runs
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadTransfers returns a run's transfers ordered by seq.
//
// Returns an empty slice (not nil) if the run has none.
func (s *Store) ReadTransfers(ctx context.Context, runID string) ([]trace.Transfer, error) {
	return s.queryTransfers(ctx, `
		SELECT seq, time_ps, link, producer, consumer, schema_name, bits, fields
		FROM transfers
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
}

// ReadLink returns the transfers of one link in a run, ordered by seq.
func (s *Store) ReadLink(ctx context.Context, runID, link string) ([]trace.Transfer, error) {
	return s.queryTransfers(ctx, `
		SELECT seq, time_ps, link, producer, consumer, schema_name, bits, fields
		FROM transfers
		WHERE run_id = ? AND link = ?
		ORDER BY seq ASC
	`, runID, link)
}

// CountTransfers returns the number of transfers stored for a run.
func (s *Store) CountTransfers(ctx context.Context, runID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM transfers WHERE run_id = ?
	`, runID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count transfers: %w", err)
	}
	return n, nil
}

func (s *Store) queryTransfers(ctx context.Context, query string, args ...any) ([]trace.Transfer, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transfers: %w", err)
	}
	defer rows.Close()

	transfers := []trace.Transfer{}
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		transfers = append(transfers, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transfers: %w", err)
	}
	return transfers, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var run Run
	err := row.Scan(&run.ID, &run.Scenario, &run.Seq, &run.Network, &run.Status, &run.Failure)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, err
	}
	if err != nil {
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	return run, nil
}

func scanTransfer(row scanner) (trace.Transfer, error) {
	var (
		t      trace.Transfer
		fields string
	)
	err := row.Scan(&t.Seq, &t.TimePS, &t.Link, &t.Producer, &t.Consumer, &t.Schema, &t.Bits, &fields)
	if err != nil {
		return trace.Transfer{}, fmt.Errorf("scan transfer: %w", err)
	}
	if t.Fields, err = unmarshalFields(fields); err != nil {
		return trace.Transfer{}, err
	}
	return t, nil
}
