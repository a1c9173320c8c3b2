package protocol

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	TypeHello   = "HELLO"
	TypeWelcome = "WELCOME"
	TypeCatalog = "CATALOG"
	TypeAct     = "ACT"
	TypeAck     = "ACK"
	TypeState   = "STATE"
	TypeRound   = "ROUND"
	TypeSummary = "SUMMARY"
)

// ACT commands.
const (
	CmdAbility = "ABILITY"
	CmdChoice  = "CHOICE"
	CmdAdvance = "ADVANCE"
	CmdUndo    = "UNDO"
	CmdState   = "STATE"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
