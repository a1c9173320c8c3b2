package log

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"

	"whisperwire.ai/internal/sim/game"
	"whisperwire.ai/internal/sim/tuning"
)

var ErrNoHeader = errors.New("session log: missing header")

// SessionHeader is the first line of a session log; every following line is a game.Intent.
type SessionHeader struct {
	Type            string        `json:"type"`
	SessionID       string        `json:"session_id"`
	Seed            string        `json:"seed"`
	CatalogDigest   string        `json:"catalog_digest"`
	Tuning          tuning.Tuning `json:"tuning"`
	TuningDigest    string        `json:"tuning_digest"`
	ProtocolVersion string        `json:"protocol_version"`
	StartedAt       time.Time     `json:"started_at"`
}

// SessionLog is the replay log of one session. It implements game.IntentLogger.
type SessionLog struct {
	path string
	w    *JSONLZstdWriter
}

func SessionPath(dataDir, sessionID string) string {
	return filepath.Join(dataDir, "sessions", sessionID+".jsonl.zst")
}

// CreateSessionLog truncates any previous log at the session path and writes the header.
func CreateSessionLog(dataDir string, h SessionHeader) (*SessionLog, error) {
	path := SessionPath(dataDir, h.SessionID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	h.Type = "session"
	if h.TuningDigest == "" {
		h.TuningDigest = h.Tuning.Digest()
	}
	l := &SessionLog{path: path, w: NewJSONLZstdFile(path)}
	if err := l.w.Write(h); err != nil {
		_ = l.w.Close()
		return nil, err
	}
	return l, nil
}

func (l *SessionLog) Path() string { return l.path }

func (l *SessionLog) WriteIntent(in game.Intent) error { return l.w.Write(in) }

func (l *SessionLog) Close() error { return l.w.Close() }

// ReadSessionLog decodes a whole session log. A stream cut off mid-block (a crashed
// writer) yields the intents read so far.
func ReadSessionLog(path string) (SessionHeader, []game.Intent, error) {
	var h SessionHeader
	f, err := os.Open(path)
	if err != nil {
		return h, nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, nil, err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)

	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return h, nil, err
		}
		return h, nil, ErrNoHeader
	}
	if err := json.Unmarshal(sc.Bytes(), &h); err != nil || h.Type != "session" {
		return h, nil, ErrNoHeader
	}

	var out []game.Intent
	line := 1
	for sc.Scan() {
		line++
		var in game.Intent
		if err := json.Unmarshal(sc.Bytes(), &in); err != nil {
			return h, out, fmt.Errorf("%s:%d: %w", filepath.Base(path), line, err)
		}
		out = append(out, in)
	}
	if err := sc.Err(); err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return h, out, err
	}
	return h, out, nil
}

// AppendSessionLog continues an existing log; the header is not rewritten.
func AppendSessionLog(dataDir, sessionID string) *SessionLog {
	path := SessionPath(dataDir, sessionID)
	return &SessionLog{path: path, w: NewJSONLZstdFile(path)}
}
