package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"whisperwire.ai/internal/persistence/snapshot"
	"whisperwire.ai/internal/sim/catalogs"
	"whisperwire.ai/internal/sim/game"
	"whisperwire.ai/internal/sim/tuning"
)

// SQLiteIndex is a queryable secondary index over sessions. The zstd logs stay the source
// of truth: writes are queued to a single writer goroutine and dropped when it falls
// behind.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropSession  atomic.Uint64
	dropRound    atomic.Uint64
	dropIntent   atomic.Uint64
	dropSnapshot atomic.Uint64
	dropAudit    atomic.Uint64
	writeErrors  atomic.Uint64
}

type reqKind int

const (
	reqSessionStart reqKind = iota + 1
	reqSessionEnd
	reqRound
	reqIntent
	reqSnapshot
	reqAudit
)

type req struct {
	kind reqKind

	session  sessionRow
	round    roundRow
	intent   intentRow
	snapshot snapshotRow
	audit    auditRow
}

type sessionRow struct {
	ID            string
	Seed          string
	CatalogDigest string
	TuningDigest  string
	At            string

	Summary game.Summary
}

type roundRow struct {
	SessionID string
	Report    game.RoundReport
	Resources [3]float64
	Risk      float64
}

type intentRow struct {
	SessionID string
	Intent    game.Intent
}

type snapshotRow struct {
	SessionID   string
	Round       int
	IntentSeq   int
	Path        string
	StateDigest string
	Actors      int
	Chains      int
	History     int
}

type auditRow struct {
	At        string
	SessionID string
	Code      string
	Message   string
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			seed TEXT NOT NULL,
			catalog_digest TEXT NOT NULL,
			tuning_digest TEXT NOT NULL,
			started_at TEXT NOT NULL,
			finished_at TEXT,
			outcome TEXT,
			defeat_reason TEXT,
			rounds INTEGER,
			score INTEGER,
			average_trust REAL,
			state_digest TEXT,
			summary_json TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_score ON sessions(score);`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_seed ON sessions(seed);`,
		`CREATE TABLE IF NOT EXISTS rounds (
			session_id TEXT NOT NULL,
			round INTEGER NOT NULL,
			money REAL NOT NULL,
			attention REAL NOT NULL,
			infrastructure REAL NOT NULL,
			detection_risk REAL NOT NULL,
			average_trust REAL NOT NULL,
			polarization REAL NOT NULL,
			low_trust INTEGER NOT NULL,
			events INTEGER NOT NULL,
			phase TEXT NOT NULL,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (session_id, round)
		);`,
		`CREATE TABLE IF NOT EXISTS intents (
			session_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			round INTEGER NOT NULL,
			kind TEXT NOT NULL,
			ok INTEGER NOT NULL,
			digest TEXT NOT NULL,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (session_id, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_intents_kind ON intents(kind, ok);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			session_id TEXT NOT NULL,
			round INTEGER NOT NULL,
			intent_seq INTEGER NOT NULL,
			path TEXT NOT NULL,
			state_digest TEXT NOT NULL,
			actors INTEGER NOT NULL,
			chains INTEGER NOT NULL,
			history INTEGER NOT NULL,
			PRIMARY KEY (session_id, intent_seq)
		);`,
		`CREATE TABLE IF NOT EXISTS audits (
			at TEXT NOT NULL,
			session_id TEXT NOT NULL,
			code TEXT NOT NULL,
			message TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_audits_code ON audits(code, at);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) enqueue(r req, drops *atomic.Uint64) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- r:
	default:
		drops.Add(1)
	}
}

func (s *SQLiteIndex) RecordSessionStart(id, seed, catalogDigest, tuningDigest string) {
	if s == nil {
		return
	}
	s.enqueue(req{kind: reqSessionStart, session: sessionRow{
		ID:            id,
		Seed:          seed,
		CatalogDigest: catalogDigest,
		TuningDigest:  tuningDigest,
		At:            time.Now().UTC().Format(time.RFC3339Nano),
	}}, &s.dropSession)
}

func (s *SQLiteIndex) RecordSessionEnd(id string, sum game.Summary) {
	if s == nil {
		return
	}
	s.enqueue(req{kind: reqSessionEnd, session: sessionRow{
		ID:      id,
		At:      time.Now().UTC().Format(time.RFC3339Nano),
		Summary: sum,
	}}, &s.dropSession)
}

func (s *SQLiteIndex) RecordRound(sessionID string, rep game.RoundReport, st game.Statistics) {
	if s == nil {
		return
	}
	s.enqueue(req{kind: reqRound, round: roundRow{
		SessionID: sessionID,
		Report:    rep,
		Resources: [3]float64{st.Resources.Money, st.Resources.Attention, st.Resources.Infrastructure},
		Risk:      st.DetectionRisk,
	}}, &s.dropRound)
}

func (s *SQLiteIndex) RecordIntent(sessionID string, in game.Intent) {
	if s == nil {
		return
	}
	s.enqueue(req{kind: reqIntent, intent: intentRow{SessionID: sessionID, Intent: in}}, &s.dropIntent)
}

func (s *SQLiteIndex) RecordSnapshot(path string, snap snapshot.SnapshotV1) {
	if s == nil {
		return
	}
	s.enqueue(req{kind: reqSnapshot, snapshot: snapshotRow{
		SessionID:   snap.Header.SessionID,
		Round:       snap.Header.Round,
		IntentSeq:   snap.Header.IntentSeq,
		Path:        path,
		StateDigest: snap.StateDigest,
		Actors:      len(snap.State.Actors),
		Chains:      len(snap.State.Chains),
		History:     len(snap.History),
	}}, &s.dropSnapshot)
}

func (s *SQLiteIndex) RecordAudit(sessionID, code, message string) {
	if s == nil {
		return
	}
	s.enqueue(req{kind: reqAudit, audit: auditRow{
		At:        time.Now().UTC().Format(time.RFC3339Nano),
		SessionID: sessionID,
		Code:      code,
		Message:   message,
	}}, &s.dropAudit)
}

// Session binds the index to one session as a game.IntentLogger.
func (s *SQLiteIndex) Session(id string) game.IntentLogger {
	return sessionIntents{s: s, id: id}
}

type sessionIntents struct {
	s  *SQLiteIndex
	id string
}

func (l sessionIntents) WriteIntent(in game.Intent) error {
	l.s.RecordIntent(l.id, in)
	return nil
}

type Stats struct {
	QueueDepth    int `json:"queue_depth"`
	QueueCapacity int `json:"queue_capacity"`

	DropSessionTotal  uint64 `json:"drop_session_total"`
	DropRoundTotal    uint64 `json:"drop_round_total"`
	DropIntentTotal   uint64 `json:"drop_intent_total"`
	DropSnapshotTotal uint64 `json:"drop_snapshot_total"`
	DropAuditTotal    uint64 `json:"drop_audit_total"`
	WriteErrorTotal   uint64 `json:"write_error_total"`
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:        len(s.ch),
		QueueCapacity:     cap(s.ch),
		DropSessionTotal:  s.dropSession.Load(),
		DropRoundTotal:    s.dropRound.Load(),
		DropIntentTotal:   s.dropIntent.Load(),
		DropSnapshotTotal: s.dropSnapshot.Load(),
		DropAuditTotal:    s.dropAudit.Load(),
		WriteErrorTotal:   s.writeErrors.Load(),
	}
}

// UpsertCatalogs stores the raw definition files next to the digests sessions reference.
func (s *SQLiteIndex) UpsertCatalogs(configDir string, cats *catalogs.Catalogs, tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	type kv struct {
		name   string
		digest string
		json   []byte
	}
	var rows []kv
	if cats != nil {
		for _, name := range []string{"actors", "abilities", "combos", "links"} {
			b, err := os.ReadFile(filepath.Join(configDir, name+".json"))
			if err != nil || len(b) == 0 {
				continue
			}
			rows = append(rows, kv{name: name, digest: cats.Digest, json: b})
		}
		evs := make([]catalogs.EventDef, 0, len(cats.EventOrder))
		for _, id := range cats.EventOrder {
			evs = append(evs, cats.Events[id])
		}
		if b, _ := json.Marshal(evs); len(b) > 0 {
			rows = append(rows, kv{name: "events", digest: cats.Digest, json: b})
		}
	}
	if b, _ := json.Marshal(tune); len(b) > 0 {
		rows = append(rows, kv{name: "tuning", digest: tune.Digest(), json: b})
	}

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		if _, err := stmt.Exec(r.name, r.digest, string(r.json), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	startSession, _ := s.db.Prepare(`INSERT OR REPLACE INTO sessions(id,seed,catalog_digest,tuning_digest,started_at) VALUES(?,?,?,?,?)`)
	endSession, _ := s.db.Prepare(`UPDATE sessions SET finished_at=?,outcome=?,defeat_reason=?,rounds=?,score=?,average_trust=?,state_digest=?,summary_json=? WHERE id=?`)
	insertRound, _ := s.db.Prepare(`INSERT OR REPLACE INTO rounds(session_id,round,money,attention,infrastructure,detection_risk,average_trust,polarization,low_trust,events,phase,raw_json) VALUES(?,?,?,?,?,?,?,?,?,?,?,?)`)
	insertIntent, _ := s.db.Prepare(`INSERT OR REPLACE INTO intents(session_id,seq,round,kind,ok,digest,raw_json) VALUES(?,?,?,?,?,?,?)`)
	insertSnapshot, _ := s.db.Prepare(`INSERT OR REPLACE INTO snapshots(session_id,round,intent_seq,path,state_digest,actors,chains,history) VALUES(?,?,?,?,?,?,?,?)`)
	insertAudit, _ := s.db.Prepare(`INSERT INTO audits(at,session_id,code,message) VALUES(?,?,?,?)`)
	stmts := []*sql.Stmt{startSession, endSession, insertRound, insertIntent, insertSnapshot, insertAudit}
	defer func() {
		for _, st := range stmts {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		if err := tx.Commit(); err != nil {
			s.writeErrors.Add(1)
		}
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
		s.writeErrors.Add(1)
	}
	exec := func(st *sql.Stmt, args ...any) {
		if st == nil || tx == nil {
			return
		}
		if _, err := tx.Stmt(st).Exec(args...); err != nil {
			rollback()
			return
		}
		opCount++
	}

	// A quiet session still gets its rows committed within commitMaxWait.
	ticker := time.NewTicker(commitMaxWait)
	defer ticker.Stop()

	for {
		var r req
		select {
		case <-ticker.C:
			if tx != nil && time.Since(lastCommit) >= commitMaxWait {
				commit()
			}
			continue
		case rr, ok := <-s.ch:
			if !ok {
				commit()
				return
			}
			r = rr
		}

		begin()
		if tx == nil {
			s.writeErrors.Add(1)
			continue
		}
		switch r.kind {
		case reqSessionStart:
			se := r.session
			exec(startSession, se.ID, se.Seed, se.CatalogDigest, se.TuningDigest, se.At)

		case reqSessionEnd:
			se := r.session
			raw, _ := json.Marshal(se.Summary)
			exec(endSession,
				se.At,
				string(se.Summary.Outcome),
				string(se.Summary.DefeatReason),
				se.Summary.Rounds,
				se.Summary.Score,
				se.Summary.AverageTrust,
				se.Summary.StateDigest,
				string(raw),
				se.ID,
			)

		case reqRound:
			ro := r.round
			raw, _ := json.Marshal(ro.Report)
			exec(insertRound,
				ro.SessionID,
				ro.Report.Round,
				ro.Resources[0], ro.Resources[1], ro.Resources[2],
				ro.Risk,
				ro.Report.Metrics.AverageTrust,
				ro.Report.Metrics.Polarization,
				ro.Report.Metrics.LowTrust,
				len(ro.Report.Events),
				string(ro.Report.Phase),
				string(raw),
			)

		case reqIntent:
			in := r.intent.Intent
			raw, _ := json.Marshal(in)
			exec(insertIntent, r.intent.SessionID, in.Seq, in.Round, string(in.Kind), in.OK, in.Digest, string(raw))

		case reqSnapshot:
			sn := r.snapshot
			exec(insertSnapshot, sn.SessionID, sn.Round, sn.IntentSeq, sn.Path, sn.StateDigest, sn.Actors, sn.Chains, sn.History)

		case reqAudit:
			a := r.audit
			exec(insertAudit, a.At, a.SessionID, a.Code, a.Message)
		}
		if tx != nil && (opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait) {
			commit()
		}
	}
}
