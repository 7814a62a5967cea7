package indexdb

import (
	"context"
	"database/sql"
)

type AssignmentRow struct {
	Tick     uint64 `json:"tick"`
	Seq      int    `json:"seq"`
	Source   string `json:"source"`
	WorkerID string `json:"worker_id"`
	Team     int    `json:"team"`
	Kind     string `json:"kind"`
	TargetID string `json:"target_id"`
	DistSq   int    `json:"dist_sq"`
}

type LedgerPoint struct {
	Tick      uint64 `json:"tick"`
	Stored    int    `json:"stored"`
	Capacity  int    `json:"capacity"`
	Reserved  int    `json:"reserved"`
	Available int    `json:"available"`
}

const assignmentCols = `tick,seq,source,worker_id,team,kind,target_id,dist_sq`

// WorkerAssignments returns the worker's most recent assignments, newest first.
func (s *SQLiteIndex) WorkerAssignments(ctx context.Context, workerID string, limit int) ([]AssignmentRow, error) {
	return s.assignments(ctx, `SELECT `+assignmentCols+` FROM assignments WHERE worker_id=? ORDER BY tick DESC, seq DESC LIMIT ?`, workerID, clampLimit(limit))
}

// TargetAssignments returns the most recent assignments to a node, site or
// building, newest first.
func (s *SQLiteIndex) TargetAssignments(ctx context.Context, targetID string, limit int) ([]AssignmentRow, error) {
	return s.assignments(ctx, `SELECT `+assignmentCols+` FROM assignments WHERE target_id=? ORDER BY tick DESC, seq DESC LIMIT ?`, targetID, clampLimit(limit))
}

func (s *SQLiteIndex) assignments(ctx context.Context, q string, args ...any) ([]AssignmentRow, error) {
	rows, err := s.reader.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AssignmentRow
	for rows.Next() {
		var a AssignmentRow
		if err := rows.Scan(&a.Tick, &a.Seq, &a.Source, &a.WorkerID, &a.Team, &a.Kind, &a.TargetID, &a.DistSq); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// LedgerSeries returns the indexed totals of one team resource between two
// ticks, inclusive, oldest first. A zero toTick means no upper bound.
func (s *SQLiteIndex) LedgerSeries(ctx context.Context, team int, resource string, fromTick, toTick uint64) ([]LedgerPoint, error) {
	var (
		rows *sql.Rows
		err  error
	)
	const q = `SELECT tick,stored,capacity,reserved,available FROM ledger_totals WHERE team=? AND resource=? AND tick>=?`
	if toTick == 0 {
		rows, err = s.reader.QueryContext(ctx, q+` ORDER BY tick`, team, resource, int64(fromTick))
	} else {
		rows, err = s.reader.QueryContext(ctx, q+` AND tick<=? ORDER BY tick`, team, resource, int64(fromTick), int64(toTick))
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []LedgerPoint
	for rows.Next() {
		var p LedgerPoint
		if err := rows.Scan(&p.Tick, &p.Stored, &p.Capacity, &p.Reserved, &p.Available); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func clampLimit(n int) int {
	switch {
	case n <= 0:
		return 100
	case n > 1000:
		return 1000
	}
	return n
}
