package indexdb

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"whisperwire.ai/internal/persistence/snapshot"
	"whisperwire.ai/internal/sim/game"
	"whisperwire.ai/internal/sim/model"
)

func TestSQLiteIndex_QueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1)}
	s.ch <- req{kind: reqAudit}

	s.RecordSessionStart("s", "ABCDEFGH", "c", "t")
	s.RecordRound("s", game.RoundReport{Round: 1}, game.Statistics{})
	_ = s.Session("s").WriteIntent(game.Intent{Seq: 1})
	s.RecordSnapshot("/tmp/s.snap.zst", snapshot.SnapshotV1{})
	s.RecordAudit("s", "E_BAD_REQUEST", "x")

	st := s.Stats()
	if st.DropSessionTotal != 1 || st.DropRoundTotal != 1 || st.DropIntentTotal != 1 ||
		st.DropSnapshotTotal != 1 || st.DropAuditTotal != 1 {
		t.Fatalf("drop counters mismatch: %+v", st)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
}

func TestSQLiteIndex_NilIsNoop(t *testing.T) {
	var s *SQLiteIndex
	s.RecordSessionStart("s", "x", "c", "t")
	s.RecordAudit("s", "E", "m")
	if s.Stats() != (Stats{}) {
		t.Fatalf("nil index should report zero stats")
	}
}

func TestSQLiteIndex_WritesSessionRows(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "index.sqlite")
	idx, err := OpenSQLite(dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	idx.RecordSessionStart("s1", "AAAABBBB", "cat", "tun")
	idx.RecordSessionStart("s2", "CCCCDDDD", "cat", "tun")
	log := idx.Session("s1")
	_ = log.WriteIntent(game.Intent{Seq: 1, Round: 1, Kind: game.IntentAbility, OK: true, Digest: "d1"})
	_ = log.WriteIntent(game.Intent{Seq: 2, Round: 1, Kind: game.IntentAdvance, OK: true, Digest: "d2"})
	idx.RecordRound("s1", game.RoundReport{Round: 1, Phase: model.PhasePlaying}, game.Statistics{
		Resources: model.Resources{Money: 160},
	})
	snap := snapshot.SnapshotV1{Header: snapshot.Header{Version: snapshot.Version, SessionID: "s1", Round: 2, IntentSeq: 2}, StateDigest: "d2"}
	idx.RecordSnapshot("/data/s1.snap.zst", snap)
	idx.RecordSessionEnd("s1", game.Summary{Outcome: model.PhaseVictory, Rounds: 9, Score: 1900})
	idx.RecordSessionEnd("s2", game.Summary{Outcome: model.PhaseDefeat, DefeatReason: model.DefeatExposure, Rounds: 4, Score: 300})

	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if st := idx.Stats(); st.WriteErrorTotal != 0 {
		t.Fatalf("write errors: %+v", st)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()
	ctx := context.Background()

	top, err := QueryTopSessions(ctx, db, 10)
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	if len(top) != 2 || top[0].ID != "s1" || top[0].Score != 1900 || top[1].DefeatReason != "exposure" {
		t.Fatalf("unexpected ranking: %+v", top)
	}

	intents, err := QueryIntents(ctx, db, "s1")
	if err != nil {
		t.Fatalf("intents: %v", err)
	}
	if len(intents) != 2 || intents[1].Kind != "advance" || !intents[1].OK {
		t.Fatalf("unexpected intents: %+v", intents)
	}

	sn, ok, err := QueryLatestSnapshot(ctx, db, "s1")
	if err != nil || !ok || sn.IntentSeq != 2 || sn.StateDigest != "d2" {
		t.Fatalf("latest snapshot: %+v ok=%v err=%v", sn, ok, err)
	}

	var money float64
	if err := db.QueryRow(`SELECT money FROM rounds WHERE session_id='s1' AND round=1`).Scan(&money); err != nil || money != 160 {
		t.Fatalf("round row: money=%v err=%v", money, err)
	}
}
