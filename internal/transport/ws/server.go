package ws

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"whisperwire.ai/internal/persistence/indexdb"
	persistlog "whisperwire.ai/internal/persistence/log"
	"whisperwire.ai/internal/protocol"
	"whisperwire.ai/internal/sim/catalogs"
	"whisperwire.ai/internal/sim/tuning"
	"whisperwire.ai/internal/transport/observer"
)

type Config struct {
	Catalogs *catalogs.Catalogs
	Tuning   tuning.Tuning

	// DataDir receives session logs and snapshots. Empty disables both (and resume).
	DataDir             string
	SnapshotEveryRounds int

	Index   *indexdb.SQLiteIndex
	Results *persistlog.ResultLogger
	Audit   *persistlog.AuditLogger
	// Feed relays live session frames to observers; nil disables it.
	Feed *observer.Hub

	MaxSessions   int
	ActsPerSecond int
}

// Server runs one game session per websocket connection.
type Server struct {
	cfg Config
	log *log.Logger

	upgrader websocket.Upgrader

	active atomic.Int64
	total  atomic.Uint64
}

func NewServer(cfg Config, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if cfg.SnapshotEveryRounds <= 0 {
		cfg.SnapshotEveryRounds = 5
	}
	if cfg.ActsPerSecond <= 0 {
		cfg.ActsPerSecond = 20
	}
	return &Server{
		cfg: cfg,
		log: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

type Stats struct {
	ActiveSessions int64  `json:"active_sessions"`
	TotalSessions  uint64 `json:"total_sessions"`
}

func (s *Server) Stats() Stats {
	return Stats{ActiveSessions: s.active.Load(), TotalSessions: s.total.Load()}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if max := s.cfg.MaxSessions; max > 0 && s.active.Load() >= int64(max) {
			http.Error(rw, "too many sessions", http.StatusServiceUnavailable)
			return
		}
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		s.active.Add(1)
		defer s.active.Add(-1)

		sess := s.handshake(conn, r.RemoteAddr)
		if sess == nil {
			return
		}
		s.total.Add(1)
		defer sess.close()

		// Commands are handled inline: every response is a direct consequence of one ACT.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(5 * time.Minute))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := sess.handle(msg); err != nil {
				return
			}
		}
	}
}

func (s *Server) handshake(conn *websocket.Conn, remote string) *session {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		closeWith(conn, "expected HELLO")
		return nil
	}
	if base.ProtocolVersion != protocol.Version {
		closeWith(conn, "bad protocol_version")
		return nil
	}
	if err := protocol.ValidateInbound(protocol.TypeHello, msg); err != nil {
		s.audit("", remote, protocol.ErrProtoBadRequest, err.Error())
		closeWith(conn, "bad HELLO")
		return nil
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return nil
	}

	sess, err := s.openSession(conn, remote, hello)
	if err != nil {
		s.log.Printf("session open (%s): %v", remote, err)
		closeWith(conn, err.Error())
		return nil
	}
	if err := sess.greet(); err != nil {
		sess.close()
		return nil
	}
	return sess
}

func (s *Server) audit(sessionID, remote, code, message string) {
	if s.cfg.Audit != nil {
		_ = s.cfg.Audit.WriteAudit(persistlog.AuditEntry{
			At:        time.Now().UTC(),
			SessionID: sessionID,
			Remote:    remote,
			Code:      code,
			Message:   message,
		})
	}
	s.cfg.Index.RecordAudit(sessionID, code, message)
}

func closeWith(conn *websocket.Conn, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason), time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return writeFrame(conn, b)
}

func writeFrame(conn *websocket.Conn, b []byte) error {
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
