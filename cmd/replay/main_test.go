package main

import (
	"errors"
	"strings"
	"testing"

	persistlog "whisperwire.ai/internal/persistence/log"
	"whisperwire.ai/internal/persistence/snapshot"
	"whisperwire.ai/internal/sim/catalogs"
	"whisperwire.ai/internal/sim/game"
	"whisperwire.ai/internal/sim/tuning"
)

type recorded struct {
	hdr     persistlog.SessionHeader
	intents []game.Intent
	cats    *catalogs.Catalogs
	mid     snapshot.SnapshotV1
	final   string
}

// record plays a short session through a real session log and reads it back.
func record(t *testing.T) recorded {
	t.Helper()
	cats, err := catalogs.Load("../../configs")
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}
	tun := tuning.Defaults()
	m := game.New(tun, nil)
	m.UseCatalogs(cats)
	if err := m.StartGame("REPLAYME0001"); err != nil {
		t.Fatalf("start: %v", err)
	}

	dir := t.TempDir()
	sl, err := persistlog.CreateSessionLog(dir, persistlog.SessionHeader{
		SessionID:     "sess",
		Seed:          "REPLAYME0001",
		CatalogDigest: cats.Digest,
		Tuning:        m.Tuning(),
	})
	if err != nil {
		t.Fatalf("session log: %v", err)
	}
	m.SetIntentLogger(sl)

	var out recorded
	for r := 0; r < 6; r++ {
		st := m.State()
		if st.Phase.Terminal() {
			break
		}
		ids := st.Network.IDs()
		m.ApplyAbility("rumor", ids[0], []string{ids[(r+1)%len(ids)]})
		m.ApplyAbility("rumor", ids[0], []string{ids[0]})
		for _, p := range m.PendingChoices() {
			m.ApplyChoice(p.ChainID, p.Choices[0].ID)
		}
		_, _ = m.AdvanceRound()
		if r == 2 {
			snap := snapshot.Capture("sess", m.IntentSeq(), m.State())
			snap.StateDigest = m.Digest()
			out.mid = snap
		}
	}
	m.Undo()
	out.final = m.Digest()
	if err := sl.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	out.hdr, out.intents, err = persistlog.ReadSessionLog(sl.Path())
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	out.cats = cats
	return out
}

func TestVerifyFromStart(t *testing.T) {
	rec := record(t)
	res, err := verify(rec.hdr, rec.intents, rec.cats, nil, options{})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if res.Checked != len(rec.intents) {
		t.Fatalf("checked %d of %d", res.Checked, len(rec.intents))
	}
	if res.Summary.StateDigest != rec.final {
		t.Fatalf("final digest mismatch")
	}
}

func TestVerifyFromSnapshot(t *testing.T) {
	rec := record(t)
	res, err := verify(rec.hdr, rec.intents, rec.cats, &rec.mid, options{})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if res.FromSeq != rec.mid.Header.IntentSeq || res.Checked != len(rec.intents)-res.FromSeq {
		t.Fatalf("from=%d checked=%d total=%d", res.FromSeq, res.Checked, len(rec.intents))
	}
}

func TestVerifyDetectsTampering(t *testing.T) {
	rec := record(t)
	rec.intents[len(rec.intents)/2].Digest = "deadbeef"
	_, err := verify(rec.hdr, rec.intents, rec.cats, nil, options{})
	if err == nil || !strings.Contains(err.Error(), "digest mismatch") {
		t.Fatalf("expected digest mismatch, got %v", err)
	}
}

func TestVerifyStopsAtSeq(t *testing.T) {
	rec := record(t)
	res, err := verify(rec.hdr, rec.intents, rec.cats, nil, options{ToSeq: 3})
	if err != nil || res.Checked != 3 {
		t.Fatalf("checked=%d err=%v", res.Checked, err)
	}
}

func TestVerifyCatalogMismatch(t *testing.T) {
	rec := record(t)
	rec.hdr.CatalogDigest = "other"
	if _, err := verify(rec.hdr, rec.intents, rec.cats, nil, options{}); !errors.Is(err, errCatalogMismatch) {
		t.Fatalf("expected catalog mismatch, got %v", err)
	}
	if _, err := verify(rec.hdr, rec.intents, rec.cats, nil, options{AllowCatalogMismatch: true}); err != nil {
		t.Fatalf("override should replay: %v", err)
	}
}
