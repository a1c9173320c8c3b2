package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"

	"whisperwire.ai/internal/protocol"
)

func main() {
	var (
		url      = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name     = flag.String("name", "bot", "player name")
		seed     = flag.String("seed", "", "12-char base62 seed (empty: server generated)")
		resume   = flag.String("resume", "", "session id to resume")
		perRound = flag.Int("per_round", 2, "abilities to attempt per round")
		pace     = flag.Duration("pace", 60*time.Millisecond, "delay between commands")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		PlayerName:      *name,
		Seed:            *seed,
		Resume:          *resume,
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	p := newPlanner(*perRound)
	var lastKey string
	send := func(act protocol.ActMsg) bool {
		time.Sleep(*pace)
		return conn.WriteJSON(act) == nil
	}

	for {
		select {
		case <-stop:
			return
		default:
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeWelcome:
			var w protocol.WelcomeMsg
			if err := json.Unmarshal(msg, &w); err != nil {
				continue
			}
			logger.Printf("WELCOME session=%s seed=%s resumed=%v max_rounds=%d", w.SessionID, w.Seed, w.Resumed, w.Params.MaxRounds)

		case protocol.TypeCatalog:
			var c struct {
				Name string          `json:"name"`
				Data json.RawMessage `json:"data"`
			}
			if err := json.Unmarshal(msg, &c); err != nil || c.Name != "abilities" {
				continue
			}
			if err := json.Unmarshal(c.Data, &p.abilities); err != nil {
				logger.Printf("abilities catalog: %v", err)
			}

		case protocol.TypeAck:
			var ack protocol.AckMsg
			if err := json.Unmarshal(msg, &ack); err != nil || ack.Accepted {
				continue
			}
			p.rejected(lastKey)
			switch ack.Code {
			case protocol.ErrRateLimit, protocol.ErrProtoBadRequest:
				// No STATE follows these; ask for one.
				time.Sleep(time.Second)
				if !send(protocol.ActMsg{Type: protocol.TypeAct, ProtocolVersion: protocol.Version, ReqID: "resync", Command: protocol.CmdState}) {
					return
				}
			}

		case protocol.TypeRound:
			var r protocol.RoundMsg
			if err := json.Unmarshal(msg, &r); err == nil {
				logger.Printf("ROUND %d income=%.1f events=%d", r.Round, r.Income, len(r.Events))
			}

		case protocol.TypeState:
			var st protocol.StateMsg
			if err := json.Unmarshal(msg, &st); err != nil {
				continue
			}
			p.learnConnections(st.Connections)
			act, key, ok := p.next(st)
			if !ok {
				continue
			}
			lastKey = key
			if !send(act) {
				return
			}

		case protocol.TypeSummary:
			var s protocol.SummaryMsg
			if err := json.Unmarshal(msg, &s); err == nil {
				logger.Printf("SUMMARY outcome=%s reason=%s rounds=%d score=%d avg_trust=%.3f", s.Outcome, s.DefeatReason, s.Rounds, s.Score, s.AverageTrust)
			}
			return
		}
	}
}

