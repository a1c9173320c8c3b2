package observer

import (
	"encoding/json"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"whisperwire.ai/internal/observerproto"
	"whisperwire.ai/internal/protocol"
)

type Server struct {
	hub *Hub
	log *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(hub *Hub, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Server{
		hub: hub,
		log: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		resp := observerproto.BootstrapResponse{
			ProtocolVersion: observerproto.Version,
			PlayerProtocol:  protocol.Version,
			Sessions:        s.hub.Live(),
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		first, ok := decodeSubscribe(msg)
		if !ok {
			closeWith(conn, websocket.ClosePolicyViolation, "expected SUBSCRIBE")
			return
		}

		// Reader: later SUBSCRIBE messages switch the watched session.
		switches := make(chan string, 1)
		readDone := make(chan struct{})
		go func() {
			defer close(readDone)
			for {
				_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
				_, msg, err := conn.ReadMessage()
				if err != nil {
					return
				}
				sub, ok := decodeSubscribe(msg)
				if !ok {
					continue
				}
				select {
				case switches <- sub.SessionID:
				default:
					// Drop updates under load; the client may resend.
				}
			}
		}()

		current := first.SessionID
		for {
			frames, cancel, ok := s.hub.Subscribe(current, 64)
			if !ok {
				closeWith(conn, websocket.CloseNormalClosure, "no such live session")
				return
			}
			next, done := s.pump(conn, current, frames, switches, readDone)
			cancel()
			if done {
				closeWith(conn, websocket.CloseNormalClosure, "bye")
				return
			}
			current = next
		}
	}
}

// pump relays frames until the session ends, the client switches, or the reader stops.
func (s *Server) pump(conn *websocket.Conn, id string, frames <-chan []byte, switches <-chan string, readDone <-chan struct{}) (string, bool) {
	for {
		select {
		case <-readDone:
			return "", true
		case next := <-switches:
			return next, false
		case b, ok := <-frames:
			if !ok {
				end, _ := json.Marshal(observerproto.EndMsg{Type: observerproto.TypeEnd, ProtocolVersion: observerproto.Version, SessionID: id})
				_ = write(conn, end)
				// Keep the connection for a SUBSCRIBE to another session.
				select {
				case <-readDone:
					return "", true
				case next := <-switches:
					return next, false
				}
			}
			if err := write(conn, b); err != nil {
				s.log.Printf("observer %s: write: %v", id, err)
				return "", true
			}
		}
	}
}

func decodeSubscribe(msg []byte) (observerproto.SubscribeMsg, bool) {
	var sub observerproto.SubscribeMsg
	if err := json.Unmarshal(msg, &sub); err != nil {
		return sub, false
	}
	if sub.Type != observerproto.TypeSubscribe || sub.ProtocolVersion != observerproto.Version || strings.TrimSpace(sub.SessionID) == "" {
		return sub, false
	}
	return sub, true
}

func write(conn *websocket.Conn, b []byte) error {
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}

func closeWith(conn *websocket.Conn, code int, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
