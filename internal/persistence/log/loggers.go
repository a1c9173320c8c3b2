package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"whisperwire.ai/internal/sim/game"
)

// JSONLZstdWriter appends one JSON document per line to a zstd stream. In hourly mode it
// rotates to <baseDir>/<prefix>-YYYY-MM-DD-HH.jsonl.zst; in file mode it writes a single
// fixed path.
type JSONLZstdWriter struct {
	baseDir string
	prefix  string
	fixed   string

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func NewJSONLZstdWriter(baseDir, prefix string) *JSONLZstdWriter {
	return &JSONLZstdWriter{
		baseDir: baseDir,
		prefix:  prefix,
	}
}

func NewJSONLZstdFile(path string) *JSONLZstdWriter {
	return &JSONLZstdWriter{fixed: path}
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *JSONLZstdWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.fixed != "" {
		if w.w == nil {
			if err := w.openLocked(w.fixed); err != nil {
				return err
			}
		}
	} else if hour := time.Now().UTC().Format("2006-01-02-15"); hour != w.curHour {
		if err := w.closeLocked(); err != nil {
			return err
		}
		if err := w.openLocked(w.pathForHour(hour)); err != nil {
			return err
		}
		w.curHour = hour
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	if err := w.w.Flush(); err != nil {
		return err
	}
	// Complete a zstd block per line so a crashed session still leaves a readable log.
	return w.enc.Flush()
}

func (w *JSONLZstdWriter) openLocked(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 128*1024)
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	return err1
}

func (w *JSONLZstdWriter) pathForHour(hour string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}

// ResultLogger writes one summary per finished session (compressed, hourly files).
type ResultLogger struct{ w *JSONLZstdWriter }

func NewResultLogger(dataDir string) *ResultLogger {
	return &ResultLogger{w: NewJSONLZstdWriter(filepath.Join(dataDir, "results"), "results")}
}

type ResultEntry struct {
	SessionID  string       `json:"session_id"`
	FinishedAt time.Time    `json:"finished_at"`
	Summary    game.Summary `json:"summary"`
}

func (l *ResultLogger) WriteResult(v ResultEntry) error { return l.w.Write(v) }

func (l *ResultLogger) Close() error { return l.w.Close() }

// AuditLogger records rejected or malformed client commands.
type AuditLogger struct{ w *JSONLZstdWriter }

func NewAuditLogger(dataDir string) *AuditLogger {
	return &AuditLogger{w: NewJSONLZstdWriter(filepath.Join(dataDir, "audit"), "audit")}
}

type AuditEntry struct {
	At        time.Time `json:"at"`
	SessionID string    `json:"session_id,omitempty"`
	Remote    string    `json:"remote,omitempty"`
	Code      string    `json:"code"`
	Message   string    `json:"message"`
}

func (l *AuditLogger) WriteAudit(v AuditEntry) error { return l.w.Write(v) }

func (l *AuditLogger) Close() error { return l.w.Close() }
