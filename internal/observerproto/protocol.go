package observerproto

// Version is the observer protocol version (separate from the player WS protocol).
const Version = "0.1"

// Message types.
const (
	TypeSubscribe = "SUBSCRIBE"
	TypeEnd       = "END"
)

// Client -> Server. First message on the observer WS connection; re-sending it switches
// to another session.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	SessionID       string `json:"session_id"`
}

// HTTP response for GET /admin/v1/observer/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string        `json:"protocol_version"`
	PlayerProtocol  string        `json:"player_protocol"`
	Sessions        []LiveSession `json:"sessions"`
}

type LiveSession struct {
	SessionID string `json:"session_id"`
	Seed      string `json:"seed"`
	Round     int    `json:"round"`
	Phase     string `json:"phase"`
}

// Server -> Client once the watched session closes. Every other frame is a player protocol
// message (STATE, ROUND, SUMMARY) relayed verbatim.
type EndMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	SessionID       string `json:"session_id"`
}
