package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	PlayerName      string `json:"player_name"`
	// Seed is optional; the server generates one when empty.
	Seed string `json:"seed,omitempty"`
	// Resume names a previous session whose latest snapshot should be loaded.
	Resume string `json:"resume,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	SessionID       string         `json:"session_id"`
	Seed            string         `json:"seed"`
	Resumed         bool           `json:"resumed,omitempty"`
	Params          GameParams     `json:"params"`
	Catalogs        CatalogDigests `json:"catalogs"`
}

type GameParams struct {
	MaxRounds             int     `json:"max_rounds"`
	ExposureThreshold     float64 `json:"exposure_threshold"`
	VictoryTrustThreshold float64 `json:"victory_trust_threshold"`
	VictoryPercentage     float64 `json:"victory_percentage"`
	HistoryCap            int     `json:"history_cap"`
}

type CatalogDigests struct {
	Definitions DigestRef `json:"definitions"`
	Tuning      string    `json:"tuning"`
}

type DigestRef struct {
	Digest string `json:"digest"`
	Count  int    `json:"count"`
}

// CATALOG (server -> client): one catalog per message.
type CatalogMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	Name            string      `json:"name"` // "abilities", "combos", "events"
	Digest          string      `json:"digest"`
	Data            interface{} `json:"data"`
}

// ACT (client -> server)
type ActMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	ReqID           string   `json:"req_id"`
	Command         string   `json:"command"`
	Ability         string   `json:"ability,omitempty"`
	Source          string   `json:"source,omitempty"`
	Targets         []string `json:"targets,omitempty"`
	Chain           string   `json:"chain,omitempty"`
	Choice          string   `json:"choice,omitempty"`
}

// ACK (server -> client) answers one ACT.
type AckMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	AckFor          string         `json:"ack_for"`
	Accepted        bool           `json:"accepted"`
	Code            string         `json:"code,omitempty"`
	Message         string         `json:"message,omitempty"`
	Round           int            `json:"round"`
	Ability         *AbilityResult `json:"ability,omitempty"`
}

type AbilityResult struct {
	Ability       string             `json:"ability"`
	Source        string             `json:"source"`
	Targets       []string           `json:"targets"`
	TrustChanges  map[string]float64 `json:"trust_changes"`
	Propagated    map[string]float64 `json:"propagated,omitempty"`
	DetectionRisk float64            `json:"detection_risk"`
	Combos        []string           `json:"combos,omitempty"`
}
