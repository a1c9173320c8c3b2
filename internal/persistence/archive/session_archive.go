package archive

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"time"

	persistlog "whisperwire.ai/internal/persistence/log"
	"whisperwire.ai/internal/persistence/snapshot"
	"whisperwire.ai/internal/sim/game"
)

type SessionArchiveMeta struct {
	SessionID    string `json:"session_id"`
	Seed         string `json:"seed"`
	Outcome      string `json:"outcome"`
	DefeatReason string `json:"defeat_reason,omitempty"`
	Rounds       int    `json:"rounds"`
	Score        int    `json:"score"`
	IntentSeq    int    `json:"intent_seq"`
	StateDigest  string `json:"state_digest"`
	Snapshot     string `json:"snapshot"`
	Log          string `json:"log"`
	CreatedAt    string `json:"created_at"`
}

// Dir is where a finished session is archived: dataDir/archives/<outcome>/<session id>/.
func Dir(dataDir, outcome, sessionID string) string {
	return filepath.Join(dataDir, "archives", outcome, sessionID)
}

// ArchiveFinishedSession copies the final snapshot and the replay log of a session into
// its archive dir next to a meta.json. Sessions that are still playing are skipped.
func ArchiveFinishedSession(dataDir string, snap snapshot.SnapshotV1, sum game.Summary) (dir string, archived bool, err error) {
	if !sum.Outcome.Terminal() {
		return "", false, nil
	}
	id := snap.Header.SessionID
	dir = Dir(dataDir, string(sum.Outcome), id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", false, err
	}

	snapSrc := snapshot.Path(dataDir, id)
	logSrc := persistlog.SessionPath(dataDir, id)
	for _, src := range []string{snapSrc, logSrc} {
		if err := copyFile(src, filepath.Join(dir, filepath.Base(src))); err != nil {
			return "", false, err
		}
	}

	meta := SessionArchiveMeta{
		SessionID:    id,
		Seed:         snap.Header.Seed,
		Outcome:      string(sum.Outcome),
		DefeatReason: string(sum.DefeatReason),
		Rounds:       sum.Rounds,
		Score:        sum.Score,
		IntentSeq:    snap.Header.IntentSeq,
		StateDigest:  snap.StateDigest,
		Snapshot:     filepath.Base(snapSrc),
		Log:          filepath.Base(logSrc),
		CreatedAt:    time.Now().UTC().Format(time.RFC3339Nano),
	}
	if b, err := json.MarshalIndent(meta, "", "  "); err == nil {
		_ = os.WriteFile(filepath.Join(dir, "meta.json"), b, 0o644)
	}
	return dir, true, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
