package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"whisperwire.ai/internal/persistence/archive"
	persistlog "whisperwire.ai/internal/persistence/log"
	"whisperwire.ai/internal/persistence/snapshot"
	"whisperwire.ai/internal/protocol"
	"whisperwire.ai/internal/sim/ability"
	"whisperwire.ai/internal/sim/game"
	"whisperwire.ai/internal/sim/model"
)

var (
	errResumeDisabled = errors.New("resume requires a data directory")
	errResumeStale    = errors.New("session log is ahead of its snapshot")
)

type session struct {
	srv    *Server
	conn   *websocket.Conn
	remote string

	id      string
	m       *game.Manager
	slog    *persistlog.SessionLog
	resumed bool

	finished bool

	windowStart time.Time
	windowActs  int
}

func (s *Server) openSession(conn *websocket.Conn, remote string, hello protocol.HelloMsg) (*session, error) {
	if s.cfg.Catalogs == nil {
		return nil, game.ErrNotLoaded
	}
	sess := &session{srv: s, conn: conn, remote: remote}
	sess.m = game.New(s.cfg.Tuning, s.log)
	sess.m.UseCatalogs(s.cfg.Catalogs)

	if hello.Resume != "" {
		if err := sess.resume(hello.Resume); err != nil {
			return nil, err
		}
	} else {
		sess.id = uuid.NewString()
		if err := sess.m.StartGame(hello.Seed); err != nil {
			return nil, err
		}
		if s.cfg.DataDir != "" {
			l, err := persistlog.CreateSessionLog(s.cfg.DataDir, persistlog.SessionHeader{
				SessionID:       sess.id,
				Seed:            sess.m.State().Seed,
				CatalogDigest:   s.cfg.Catalogs.Digest,
				Tuning:          sess.m.Tuning(),
				ProtocolVersion: protocol.Version,
				StartedAt:       time.Now().UTC(),
			})
			if err != nil {
				return nil, fmt.Errorf("session log: %w", err)
			}
			sess.slog = l
		}
	}

	var sinks game.MultiIntentLogger
	if sess.slog != nil {
		sinks = append(sinks, sess.slog)
	}
	if s.cfg.Index != nil {
		sinks = append(sinks, s.cfg.Index.Session(sess.id))
	}
	sess.m.SetIntentLogger(sinks)

	seed := sess.m.State().Seed
	if !sess.resumed {
		s.cfg.Index.RecordSessionStart(sess.id, seed, s.cfg.Catalogs.Digest, sess.m.Tuning().Digest())
	}
	s.log.Printf("session %s: opened by %s (%s) seed=%s resumed=%v", sess.id, hello.PlayerName, remote, seed, sess.resumed)
	return sess, nil
}

// resume restores the latest snapshot of a previous session and appends to its log. The
// snapshot must cover every logged intent, otherwise the log could not be replayed.
func (sess *session) resume(id string) error {
	s := sess.srv
	if s.cfg.DataDir == "" {
		return errResumeDisabled
	}
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("resume: %w", err)
	}
	snap, err := snapshot.ReadSnapshot(snapshot.Path(s.cfg.DataDir, id))
	if err != nil {
		return fmt.Errorf("resume: %w", err)
	}
	if snap.CatalogDigest != s.cfg.Catalogs.Digest {
		return fmt.Errorf("resume: catalog digest changed")
	}
	hdr, intents, err := persistlog.ReadSessionLog(persistlog.SessionPath(s.cfg.DataDir, id))
	if err != nil {
		return fmt.Errorf("resume: %w", err)
	}
	if n := len(intents); n > 0 && intents[n-1].Seq != snap.Header.IntentSeq {
		return errResumeStale
	}
	// The log header fixes the tuning for the whole session.
	sess.m = game.New(hdr.Tuning, s.log)
	sess.m.UseCatalogs(s.cfg.Catalogs)
	if err := sess.m.Restore(snap.Restore()); err != nil {
		return fmt.Errorf("resume: %w", err)
	}
	sess.m.SetIntentSeq(snap.Header.IntentSeq)
	sess.id = id
	sess.resumed = true
	sess.finished = sess.m.State().Phase.Terminal()
	sess.slog = persistlog.AppendSessionLog(s.cfg.DataDir, id)
	return nil
}

func (sess *session) greet() error {
	tun := sess.m.Tuning()
	cats := sess.srv.cfg.Catalogs
	st := sess.m.State()
	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       sess.id,
		Seed:            st.Seed,
		Resumed:         sess.resumed,
		Params: protocol.GameParams{
			MaxRounds:             tun.MaxRounds,
			ExposureThreshold:     tun.ExposureThreshold,
			VictoryTrustThreshold: tun.VictoryTrustThreshold,
			VictoryPercentage:     tun.VictoryPercentage,
			HistoryCap:            tun.HistoryCap,
		},
		Catalogs: protocol.CatalogDigests{
			Definitions: protocol.DigestRef{Digest: cats.Digest, Count: len(cats.Actors) + len(cats.Abilities) + len(cats.Events) + len(cats.Combos)},
			Tuning:      tun.Digest(),
		},
	}
	if err := writeJSON(sess.conn, welcome); err != nil {
		return err
	}
	for _, c := range catalogMsgs(cats) {
		if err := writeJSON(sess.conn, c); err != nil {
			return err
		}
	}
	sess.srv.cfg.Feed.Open(sess.id, st.Seed)
	return sess.send(stateMsg(sess.id, sess.m, true))
}

// send writes v to the player and relays session frames to observers.
func (sess *session) send(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := writeFrame(sess.conn, b); err != nil {
		return err
	}
	switch m := v.(type) {
	case protocol.StateMsg:
		sess.srv.cfg.Feed.PublishState(sess.id, m.Round, m.Phase, b)
	case protocol.RoundMsg, protocol.SummaryMsg:
		sess.srv.cfg.Feed.Publish(sess.id, b)
	}
	return nil
}

// handle processes one client message. A returned error ends the connection.
func (sess *session) handle(msg []byte) error {
	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeAct {
		return sess.reject("", protocol.ErrProtoBadRequest, "expected ACT")
	}
	if base.ProtocolVersion != protocol.Version {
		return sess.reject("", protocol.ErrProtoVersion, "bad protocol_version")
	}
	if err := protocol.ValidateInbound(protocol.TypeAct, msg); err != nil {
		return sess.reject("", protocol.ErrProtoBadRequest, err.Error())
	}
	var act protocol.ActMsg
	if err := json.Unmarshal(msg, &act); err != nil {
		return sess.reject("", protocol.ErrProtoBadRequest, err.Error())
	}
	if !sess.allow() {
		return sess.reject(act.ReqID, protocol.ErrRateLimit, "too many commands")
	}

	ack := protocol.AckMsg{Type: protocol.TypeAck, ProtocolVersion: protocol.Version, AckFor: act.ReqID}
	var follow []any

	switch act.Command {
	case protocol.CmdState:
		ack.Accepted = true

	case protocol.CmdAbility:
		out, ok := sess.m.UseAbility(act.Ability, act.Source, act.Targets)
		ack.Accepted = ok
		if ok {
			ack.Ability = abilityResult(out)
		} else {
			ack.Code, ack.Message = codeForReason(out.Result.Reason), string(out.Result.Reason)
		}

	case protocol.CmdChoice:
		ack.Accepted = sess.m.ApplyChoice(act.Chain, act.Choice)
		if !ack.Accepted {
			ack.Code, ack.Message = sess.choiceRejection(act.Chain, act.Choice)
		}

	case protocol.CmdAdvance:
		rep, err := sess.m.AdvanceRound()
		if err != nil {
			ack.Code, ack.Message = protocol.ErrNotPlaying, err.Error()
			break
		}
		ack.Accepted = true
		follow = append(follow, roundMsg(rep))
		sess.srv.cfg.Index.RecordRound(sess.id, rep, sess.m.Statistics())
		if rep.Round%sess.srv.cfg.SnapshotEveryRounds == 0 {
			sess.writeSnapshot()
		}

	case protocol.CmdUndo:
		ack.Accepted = sess.m.Undo()
		if !ack.Accepted {
			ack.Code, ack.Message = protocol.ErrNoHistory, "nothing to undo"
		}
	}

	ack.Round = sess.m.State().Round
	if err := writeJSON(sess.conn, ack); err != nil {
		return err
	}
	for _, f := range follow {
		if err := sess.send(f); err != nil {
			return err
		}
	}
	if err := sess.send(stateMsg(sess.id, sess.m, false)); err != nil {
		return err
	}
	return sess.maybeFinish()
}

func (sess *session) reject(reqID, code, message string) error {
	sess.srv.audit(sess.id, sess.remote, code, message)
	return writeJSON(sess.conn, protocol.AckMsg{
		Type:            protocol.TypeAck,
		ProtocolVersion: protocol.Version,
		AckFor:          reqID,
		Code:            code,
		Message:         message,
		Round:           sess.m.State().Round,
	})
}

// allow applies a fixed one-second window to ACT messages.
func (sess *session) allow() bool {
	now := time.Now()
	if now.Sub(sess.windowStart) >= time.Second {
		sess.windowStart = now
		sess.windowActs = 0
	}
	sess.windowActs++
	return sess.windowActs <= sess.srv.cfg.ActsPerSecond
}

func (sess *session) choiceRejection(chainID, choiceID string) (string, string) {
	if sess.m.State().Phase != model.PhasePlaying {
		return protocol.ErrNotPlaying, "game not in progress"
	}
	for _, p := range sess.m.PendingChoices() {
		if p.ChainID != chainID {
			continue
		}
		for _, c := range p.Choices {
			if c.ID == choiceID && !c.Affordable {
				return protocol.ErrNoResource, "choice not affordable"
			}
		}
	}
	return protocol.ErrUnknownChoice, "no such pending choice"
}

// maybeFinish reports the outcome the first time the session turns terminal.
func (sess *session) maybeFinish() error {
	if sess.finished || !sess.m.State().Phase.Terminal() {
		return nil
	}
	sess.finished = true
	sum := sess.m.Summary()
	sess.srv.cfg.Index.RecordSessionEnd(sess.id, sum)
	if r := sess.srv.cfg.Results; r != nil {
		if err := r.WriteResult(persistlog.ResultEntry{SessionID: sess.id, FinishedAt: time.Now().UTC(), Summary: sum}); err != nil {
			sess.srv.log.Printf("session %s: result log: %v", sess.id, err)
		}
	}
	if snap, ok := sess.writeSnapshot(); ok {
		if dir, archived, err := archive.ArchiveFinishedSession(sess.srv.cfg.DataDir, snap, sum); err != nil {
			sess.srv.log.Printf("session %s: archive: %v", sess.id, err)
		} else if archived {
			sess.srv.log.Printf("session %s: %s score=%d archived to %s", sess.id, sum.Outcome, sum.Score, dir)
		}
	}
	return sess.send(summaryMsg(sess.id, sum))
}

func (sess *session) writeSnapshot() (snapshot.SnapshotV1, bool) {
	dir := sess.srv.cfg.DataDir
	if dir == "" {
		return snapshot.SnapshotV1{}, false
	}
	snap := snapshot.Capture(sess.id, sess.m.IntentSeq(), sess.m.State())
	snap.CatalogDigest = sess.srv.cfg.Catalogs.Digest
	snap.TuningDigest = sess.m.Tuning().Digest()
	snap.StateDigest = sess.m.Digest()
	path := snapshot.Path(dir, sess.id)
	if err := snapshot.WriteSnapshot(path, snap); err != nil {
		sess.srv.log.Printf("session %s: snapshot write: %v", sess.id, err)
		return snap, false
	}
	sess.srv.cfg.Index.RecordSnapshot(path, snap)
	return snap, true
}

// close persists an abandoned session so it can be resumed.
func (sess *session) close() {
	if !sess.finished {
		sess.writeSnapshot()
	}
	sess.srv.cfg.Feed.Close(sess.id)
	if sess.slog != nil {
		if err := sess.slog.Close(); err != nil {
			sess.srv.log.Printf("session %s: close log: %v", sess.id, err)
		}
	}
	sess.srv.log.Printf("session %s: closed at round %d (%s)", sess.id, sess.m.State().Round, sess.m.State().Phase)
}

func codeForReason(r ability.Reason) string {
	switch r {
	case ability.ReasonUnknownAbility:
		return protocol.ErrUnknownAbility
	case ability.ReasonNotPlaying:
		return protocol.ErrNotPlaying
	case ability.ReasonUnknownSource:
		return protocol.ErrUnknownActor
	case ability.ReasonCooldown:
		return protocol.ErrCooldown
	case ability.ReasonInsufficientMoney, ability.ReasonInsufficientInfrastructure:
		return protocol.ErrNoResource
	case ability.ReasonInvalidTarget:
		return protocol.ErrInvalidTarget
	}
	return protocol.ErrBadRequest
}
