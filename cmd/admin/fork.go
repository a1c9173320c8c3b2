package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	persistlog "whisperwire.ai/internal/persistence/log"
	"whisperwire.ai/internal/persistence/snapshot"
	"whisperwire.ai/internal/protocol"
	"whisperwire.ai/internal/sim/catalogs"
	"whisperwire.ai/internal/sim/game"
)

var errCatalogMismatch = errors.New("catalog digest mismatch")

func forkCmd(args []string) {
	fs := flag.NewFlagSet("fork", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	configDir := fs.String("configs", "./configs", "config directory")
	sessionID := fs.String("session", "", "session id to fork")
	toSeq := fs.Int("to_seq", 0, "last intent seq carried into the fork (0: all)")
	newID := fs.String("id", "", "id of the new session (default: random)")
	_ = fs.Parse(args)

	if strings.TrimSpace(*sessionID) == "" {
		fmt.Fprintln(os.Stderr, "missing -session")
		os.Exit(2)
	}
	cats, err := catalogs.Load(*configDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load catalogs:", err)
		os.Exit(1)
	}
	res, err := forkSession(*dataDir, cats, *sessionID, *toSeq, *newID)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fork:", err)
		os.Exit(1)
	}
	fmt.Printf("fork ok: from=%s to_seq=%d new=%s round=%d snapshot=%s\n", *sessionID, res.Seq, res.SessionID, res.Round, res.SnapshotPath)
}

type forkResult struct {
	SessionID    string
	Seq          int
	Round        int
	SnapshotPath string
}

// forkSession replays a logged session up to toSeq into a new session log and writes a
// snapshot for it, so the fork can be resumed over the websocket API.
func forkSession(dataDir string, cats *catalogs.Catalogs, sessionID string, toSeq int, newID string) (forkResult, error) {
	var res forkResult
	hdr, intents, err := persistlog.ReadSessionLog(persistlog.SessionPath(dataDir, sessionID))
	if err != nil {
		return res, err
	}
	if hdr.CatalogDigest != cats.Digest {
		return res, fmt.Errorf("%w: log=%s configs=%s", errCatalogMismatch, hdr.CatalogDigest, cats.Digest)
	}
	if strings.TrimSpace(newID) == "" {
		newID = uuid.NewString()
	}

	out, err := persistlog.CreateSessionLog(dataDir, persistlog.SessionHeader{
		SessionID:       newID,
		Seed:            hdr.Seed,
		CatalogDigest:   cats.Digest,
		Tuning:          hdr.Tuning,
		ProtocolVersion: protocol.Version,
		StartedAt:       time.Now().UTC(),
	})
	if err != nil {
		return res, err
	}
	defer out.Close()

	m := game.New(hdr.Tuning, nil)
	m.UseCatalogs(cats)
	if err := m.StartGame(hdr.Seed); err != nil {
		return res, err
	}
	m.SetIntentLogger(out)
	for _, in := range intents {
		if toSeq > 0 && in.Seq > toSeq {
			break
		}
		digest, _, err := m.Replay(in)
		if err != nil {
			return res, fmt.Errorf("seq %d: %w", in.Seq, err)
		}
		if digest != in.Digest {
			return res, fmt.Errorf("digest mismatch at seq %d", in.Seq)
		}
	}

	snap := snapshot.Capture(newID, m.IntentSeq(), m.State())
	snap.CatalogDigest = cats.Digest
	snap.TuningDigest = hdr.Tuning.Digest()
	snap.StateDigest = m.Digest()
	path := snapshot.Path(dataDir, newID)
	if err := snapshot.WriteSnapshot(path, snap); err != nil {
		return res, err
	}
	return forkResult{SessionID: newID, Seq: m.IntentSeq(), Round: m.State().Round, SnapshotPath: path}, nil
}
