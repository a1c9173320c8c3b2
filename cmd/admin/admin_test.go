package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"whisperwire.ai/internal/persistence/indexdb"
	persistlog "whisperwire.ai/internal/persistence/log"
	"whisperwire.ai/internal/persistence/snapshot"
	"whisperwire.ai/internal/sim/catalogs"
	"whisperwire.ai/internal/sim/game"
	"whisperwire.ai/internal/sim/tuning"
)

func playLogged(t *testing.T, dir, id string) (*catalogs.Catalogs, []game.Intent) {
	t.Helper()
	cats, err := catalogs.Load("../../configs")
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}
	m := game.New(tuning.Defaults(), nil)
	m.UseCatalogs(cats)
	if err := m.StartGame("ADMINFORK001"); err != nil {
		t.Fatalf("start: %v", err)
	}
	sl, err := persistlog.CreateSessionLog(dir, persistlog.SessionHeader{
		SessionID:     id,
		Seed:          "ADMINFORK001",
		CatalogDigest: cats.Digest,
		Tuning:        m.Tuning(),
	})
	if err != nil {
		t.Fatalf("session log: %v", err)
	}
	m.SetIntentLogger(sl)
	for r := 0; r < 4; r++ {
		ids := m.State().Network.IDs()
		m.ApplyAbility("rumor", ids[0], []string{ids[1]})
		_, _ = m.AdvanceRound()
	}
	if err := sl.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	_, intents, err := persistlog.ReadSessionLog(sl.Path())
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	return cats, intents
}

func TestForkSessionAtSeq(t *testing.T) {
	dir := t.TempDir()
	cats, orig := playLogged(t, dir, "orig")
	if len(orig) < 5 {
		t.Fatalf("short session: %d intents", len(orig))
	}

	res, err := forkSession(dir, cats, "orig", 4, "forked")
	if err != nil {
		t.Fatalf("fork: %v", err)
	}
	if res.SessionID != "forked" || res.Seq != 4 {
		t.Fatalf("result: %+v", res)
	}

	hdr, got, err := persistlog.ReadSessionLog(persistlog.SessionPath(dir, "forked"))
	if err != nil {
		t.Fatalf("read fork log: %v", err)
	}
	if hdr.Seed != "ADMINFORK001" || len(got) != 4 {
		t.Fatalf("fork log: seed=%s intents=%d", hdr.Seed, len(got))
	}
	for i := range got {
		if got[i].Digest != orig[i].Digest || got[i].Seq != orig[i].Seq {
			t.Fatalf("intent %d diverged: %+v vs %+v", i, got[i], orig[i])
		}
	}

	snap, err := snapshot.ReadSnapshot(res.SnapshotPath)
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if snap.Header.IntentSeq != 4 || snap.StateDigest != orig[3].Digest {
		t.Fatalf("snapshot: seq=%d digest=%s want %s", snap.Header.IntentSeq, snap.StateDigest, orig[3].Digest)
	}

	rep, err := inspect(dir, "forked")
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if !rep.InSync || rep.LastSeq != 4 || rep.Snapshot == nil {
		t.Fatalf("inspect: %+v", rep)
	}

	ids, err := listSessions(dir)
	if err != nil || len(ids) != 2 || ids[0] != "forked" || ids[1] != "orig" {
		t.Fatalf("list: %v %v", ids, err)
	}
}

func TestForkRejectsForeignCatalogs(t *testing.T) {
	dir := t.TempDir()
	cats, _ := playLogged(t, dir, "orig")
	other := *cats
	other.Digest = "different"
	if _, err := forkSession(dir, &other, "orig", 0, "x"); !errors.Is(err, errCatalogMismatch) {
		t.Fatalf("expected catalog mismatch, got %v", err)
	}
}

func TestRunQuery(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index", "sessions.sqlite")
	idx, err := indexdb.OpenSQLite(path)
	if err != nil {
		t.Fatalf("open index: %v", err)
	}
	idx.RecordSessionStart("s1", "ADMINFORK001", "cat", "tun")
	idx.RecordSessionEnd("s1", game.Summary{Outcome: "victory", Rounds: 9, Score: 1200})
	if err := idx.Close(); err != nil {
		t.Fatalf("close index: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	ctx := context.Background()

	var buf bytes.Buffer
	if err := runQuery(ctx, db, "top", "", 5, json.NewEncoder(&buf)); err != nil {
		t.Fatalf("top: %v", err)
	}
	if !strings.Contains(buf.String(), `"id":"s1"`) {
		t.Fatalf("top output: %s", buf.String())
	}
	if err := runQuery(ctx, db, "intents", "", 5, json.NewEncoder(&buf)); err == nil {
		t.Fatalf("intents without -session should fail")
	}
	if err := runQuery(ctx, db, "snapshot", "s1", 5, json.NewEncoder(&buf)); err == nil {
		t.Fatalf("expected no indexed snapshot")
	}
	if err := runQuery(ctx, db, "bogus", "", 5, json.NewEncoder(&buf)); err == nil {
		t.Fatalf("unknown query accepted")
	}
}
