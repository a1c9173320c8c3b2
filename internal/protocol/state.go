package protocol

// STATE (server -> client): the full observable session.
type StateMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	SessionID       string `json:"session_id"`

	Round        int    `json:"round"`
	Phase        string `json:"phase"`
	DefeatReason string `json:"defeat_reason,omitempty"`

	Resources     ResourcesObs `json:"resources"`
	DetectionRisk float64      `json:"detection_risk"`
	Metrics       MetricsObs   `json:"metrics"`

	Actors      []ActorObs      `json:"actors"`
	Connections []ConnectionObs `json:"connections,omitempty"`
	Pending     []PendingObs    `json:"pending,omitempty"`

	CombosInProgress int    `json:"combos_in_progress"`
	HistoryLen       int    `json:"history_len"`
	Digest           string `json:"digest"`
}

type ResourcesObs struct {
	Money          float64 `json:"money"`
	Attention      float64 `json:"attention"`
	Infrastructure float64 `json:"infrastructure"`
}

type MetricsObs struct {
	AverageTrust     float64 `json:"average_trust"`
	Polarization     float64 `json:"polarization"`
	LowTrust         int     `json:"low_trust"`
	HighTrust        int     `json:"high_trust"`
	LowTrustFraction float64 `json:"low_trust_fraction"`
}

type ActorObs struct {
	ID         string         `json:"id"`
	Name       string         `json:"name,omitempty"`
	Category   string         `json:"category"`
	Tier       int            `json:"tier"`
	Trust      float64        `json:"trust"`
	Resilience float64        `json:"resilience"`
	Emotional  float64        `json:"emotional"`
	Cooldowns  map[string]int `json:"cooldowns,omitempty"`
	Pos        [2]float64     `json:"pos"`
}

type ConnectionObs struct {
	Source   string  `json:"source"`
	Target   string  `json:"target"`
	Strength float64 `json:"strength"`
}

type PendingObs struct {
	ChainID  string      `json:"chain_id"`
	EventID  string      `json:"event_id"`
	Title    string      `json:"title,omitempty"`
	Deadline int         `json:"deadline"`
	Choices  []ChoiceObs `json:"choices"`
}

type ChoiceObs struct {
	ID         string `json:"id"`
	Label      string `json:"label,omitempty"`
	Affordable bool   `json:"affordable"`
}

// ROUND (server -> client) after every accepted ADVANCE.
type RoundMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`

	Round          int     `json:"round"`
	Income         float64 `json:"income"`
	AttentionDecay float64 `json:"attention_decay"`
	Recovered      int     `json:"recovered"`

	ExpiredCombos []string   `json:"expired_combos,omitempty"`
	Events        []EventObs `json:"events,omitempty"`
	ExpiredChains []EventObs `json:"expired_chains,omitempty"`
}

type EventObs struct {
	ChainID string `json:"chain_id"`
	EventID string `json:"event_id"`
	Status  string `json:"status"`
	Choice  string `json:"choice,omitempty"`
}

// SUMMARY (server -> client) once the session reaches a terminal phase.
type SummaryMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	SessionID       string `json:"session_id"`

	Outcome      string  `json:"outcome"`
	DefeatReason string  `json:"defeat_reason,omitempty"`
	Rounds       int     `json:"rounds"`
	Score        int     `json:"score"`
	AverageTrust float64 `json:"average_trust"`
	Polarization float64 `json:"polarization"`
	LowTrust     int     `json:"low_trust"`
	StateDigest  string  `json:"state_digest"`
}
