package observer

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"whisperwire.ai/internal/observerproto"
)

func TestObserverStreamsUntilSessionEnds(t *testing.T) {
	hub := NewHub()
	hub.Open("s1", "SEEDSEED0001")
	hub.PublishState("s1", 1, "playing", []byte(`{"type":"STATE","round":1}`))

	srv := NewServer(hub, nil)
	mux := http.NewServeMux()
	mux.HandleFunc("/bootstrap", srv.BootstrapHandler())
	mux.HandleFunc("/ws", srv.WSHandler())
	hs := httptest.NewServer(mux)
	defer hs.Close()

	resp, err := http.Get(hs.URL + "/bootstrap")
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	var boot observerproto.BootstrapResponse
	_ = json.NewDecoder(resp.Body).Decode(&boot)
	resp.Body.Close()
	if len(boot.Sessions) != 1 || boot.Sessions[0].SessionID != "s1" {
		t.Fatalf("bootstrap sessions: %+v", boot.Sessions)
	}

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(hs.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if err := conn.WriteJSON(observerproto.SubscribeMsg{Type: observerproto.TypeSubscribe, ProtocolVersion: observerproto.Version, SessionID: "s1"}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	read := func() string {
		t.Helper()
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, b, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		return string(b)
	}
	if got := read(); !strings.Contains(got, `"round":1`) {
		t.Fatalf("primed state: %s", got)
	}

	// The subscription is registered before the primed frame is written.
	hub.Publish("s1", []byte(`{"type":"ROUND","round":2}`))
	if got := read(); !strings.Contains(got, `"ROUND"`) {
		t.Fatalf("round frame: %s", got)
	}
	hub.Close("s1")
	if got := read(); !strings.Contains(got, `"END"`) {
		t.Fatalf("end frame: %s", got)
	}
}

func TestObserverRejectsUnknownSession(t *testing.T) {
	srv := NewServer(NewHub(), nil)
	hs := httptest.NewServer(srv.WSHandler())
	defer hs.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(hs.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.WriteJSON(observerproto.SubscribeMsg{Type: observerproto.TypeSubscribe, ProtocolVersion: observerproto.Version, SessionID: "ghost"})
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatalf("expected the connection to close")
	}
}

func TestObserverRemoteForbidden(t *testing.T) {
	srv := NewServer(NewHub(), nil)
	rec := httptest.NewRecorder()
	srv.BootstrapHandler()(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("code=%d", rec.Code)
	}
}
