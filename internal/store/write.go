package store

import (
	"context"
	"fmt"
)

// BeginRun inserts a run record with status running.
// Uses ON CONFLICT(id) DO NOTHING for idempotency.
func (s *Store) BeginRun(ctx context.Context, run Run) error {
	status := run.Status
	if status == "" {
		status = StatusRunning
	}
	register := run.Register
	if register == "" {
		register = "{}"
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, reel, seq, status, error, register)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, run.ID, run.Reel, run.Seq, status, run.Error, register)
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}
	return nil
}

// FinishRun records the outcome and final register of a run.
func (s *Store) FinishRun(ctx context.Context, id, status, errMsg, register string) error {
	if register == "" {
		register = "{}"
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, error = ?, register = ? WHERE id = ?
	`, status, errMsg, register, id)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finish run: unknown run %q", id)
	}
	return nil
}

// WriteTake appends a take. The run must exist (foreign key constraint).
// Duplicate (run_id, position) pairs are silently ignored.
func (s *Store) WriteTake(ctx context.Context, t Take) error {
	req, err := marshalDoc(t.Request)
	if err != nil {
		return fmt.Errorf("write take: %w", err)
	}
	resp, err := marshalDoc(t.Response)
	if err != nil {
		return fmt.Errorf("write take: %w", err)
	}
	register := t.Register
	if register == "" {
		register = "{}"
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO takes (run_id, seq, frame, position, state, request, response, register, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`, t.RunID, t.Seq, t.Frame, t.Position, t.State, req, resp, register, t.Error)
	if err != nil {
		return fmt.Errorf("write take: %w", err)
	}
	return nil
}
