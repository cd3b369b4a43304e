package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a requested run does not exist.
var ErrNotFound = errors.New("not found")

// ListRuns returns runs in seq order. A positive limit keeps the most recent
// runs only.
//
// Returns an empty slice (not nil) for an empty log.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `
		SELECT id, reel, seq, status, error, register FROM runs
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`
	var args []any
	if limit > 0 {
		query = `
			SELECT id, reel, seq, status, error, register FROM (
				SELECT * FROM runs ORDER BY seq DESC, id COLLATE BINARY DESC LIMIT ?
			) ORDER BY seq ASC, id COLLATE BINARY ASC
		`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Reel, &r.Seq, &r.Status, &r.Error, &r.Register); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// GetRun returns a single run, or ErrNotFound.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	var r Run
	err := s.db.QueryRowContext(ctx, `
		SELECT id, reel, seq, status, error, register FROM runs WHERE id = ?
	`, id).Scan(&r.ID, &r.Reel, &r.Seq, &r.Status, &r.Error, &r.Register)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("run %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

// RunTakes returns the takes of a run ordered by seq.
//
// Returns an empty slice (not nil) if the run recorded no takes.
func (s *Store) RunTakes(ctx context.Context, runID string) ([]Take, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, seq, frame, position, state, request, response, register, error
		FROM takes
		WHERE run_id = ?
		ORDER BY seq ASC, position ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query takes: %w", err)
	}
	defer rows.Close()

	takes := []Take{}
	for rows.Next() {
		var (
			t         Take
			req, resp string
		)
		if err := rows.Scan(&t.RunID, &t.Seq, &t.Frame, &t.Position, &t.State, &req, &resp, &t.Register, &t.Error); err != nil {
			return nil, fmt.Errorf("scan take: %w", err)
		}
		if t.Request, err = unmarshalDoc(req); err != nil {
			return nil, fmt.Errorf("take %s/%d request: %w", t.RunID, t.Position, err)
		}
		if t.Response, err = unmarshalDoc(resp); err != nil {
			return nil, fmt.Errorf("take %s/%d response: %w", t.RunID, t.Position, err)
		}
		takes = append(takes, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate takes: %w", err)
	}
	return takes, nil
}
