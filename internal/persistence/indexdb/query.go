package indexdb

import (
	"context"
	"database/sql"
)

type SessionRow struct {
	ID            string  `json:"id"`
	Seed          string  `json:"seed"`
	CatalogDigest string  `json:"catalog_digest"`
	StartedAt     string  `json:"started_at"`
	FinishedAt    string  `json:"finished_at,omitempty"`
	Outcome       string  `json:"outcome,omitempty"`
	DefeatReason  string  `json:"defeat_reason,omitempty"`
	Rounds        int     `json:"rounds"`
	Score         int     `json:"score"`
	AverageTrust  float64 `json:"average_trust"`
}

// TopSessions returns finished sessions by descending score.
func (s *SQLiteIndex) TopSessions(ctx context.Context, limit int) ([]SessionRow, error) {
	return QueryTopSessions(ctx, s.db, limit)
}

// QueryTopSessions runs against any handle on an index database (e.g. a read-only one
// opened by the admin tool).
func QueryTopSessions(ctx context.Context, db *sql.DB, limit int) ([]SessionRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.QueryContext(ctx, `SELECT id,seed,catalog_digest,started_at,
		COALESCE(finished_at,''),COALESCE(outcome,''),COALESCE(defeat_reason,''),
		COALESCE(rounds,0),COALESCE(score,0),COALESCE(average_trust,0)
		FROM sessions WHERE finished_at IS NOT NULL ORDER BY score DESC, started_at ASC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SessionRow
	for rows.Next() {
		var r SessionRow
		if err := rows.Scan(&r.ID, &r.Seed, &r.CatalogDigest, &r.StartedAt, &r.FinishedAt,
			&r.Outcome, &r.DefeatReason, &r.Rounds, &r.Score, &r.AverageTrust); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type IntentRow struct {
	Seq    int    `json:"seq"`
	Round  int    `json:"round"`
	Kind   string `json:"kind"`
	OK     bool   `json:"ok"`
	Digest string `json:"digest"`
}

func QueryIntents(ctx context.Context, db *sql.DB, sessionID string) ([]IntentRow, error) {
	rows, err := db.QueryContext(ctx, `SELECT seq,round,kind,ok,digest FROM intents WHERE session_id=? ORDER BY seq`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []IntentRow
	for rows.Next() {
		var r IntentRow
		if err := rows.Scan(&r.Seq, &r.Round, &r.Kind, &r.OK, &r.Digest); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type SnapshotRow struct {
	Round       int    `json:"round"`
	IntentSeq   int    `json:"intent_seq"`
	Path        string `json:"path"`
	StateDigest string `json:"state_digest"`
}

// QueryLatestSnapshot returns the most recent snapshot recorded for a session.
func QueryLatestSnapshot(ctx context.Context, db *sql.DB, sessionID string) (SnapshotRow, bool, error) {
	var r SnapshotRow
	err := db.QueryRowContext(ctx, `SELECT round,intent_seq,path,state_digest FROM snapshots
		WHERE session_id=? ORDER BY intent_seq DESC LIMIT 1`, sessionID).Scan(&r.Round, &r.IntentSeq, &r.Path, &r.StateDigest)
	if err == sql.ErrNoRows {
		return r, false, nil
	}
	if err != nil {
		return r, false, err
	}
	return r, true, nil
}
