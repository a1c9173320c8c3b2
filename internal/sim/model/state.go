// Package model holds the session state shared by the resolution components. Only the
// game manager keeps a long-lived handle on a State; everything else receives it per call.
package model

import (
	"strconv"

	"whisperwire.ai/internal/sim/network"
)

type Phase string

const (
	PhaseSetup   Phase = "setup"
	PhasePlaying Phase = "playing"
	PhaseVictory Phase = "victory"
	PhaseDefeat  Phase = "defeat"
)

func (p Phase) Terminal() bool { return p == PhaseVictory || p == PhaseDefeat }

type DefeatReason string

const (
	DefeatNone     DefeatReason = ""
	DefeatExposure DefeatReason = "exposure"
	DefeatTimeout  DefeatReason = "timeout"
	DefeatEvent    DefeatReason = "event"
)

type Resources struct {
	Money          float64 `json:"money"`
	Attention      float64 `json:"attention"`
	Infrastructure float64 `json:"infrastructure"`
}

// ComboProgress tracks one in-flight combo: Step abilities of its sequence have matched.
type ComboProgress struct {
	ComboID      string `json:"combo_id"`
	Step         int    `json:"step"`
	StartedRound int    `json:"started_round"`
	ExpiresRound int    `json:"expires_round"`
}

type ChainStatus string

const (
	ChainScheduled      ChainStatus = "scheduled"
	ChainAwaitingChoice ChainStatus = "awaiting_choice"
	ChainResolved       ChainStatus = "resolved"
	ChainExpired        ChainStatus = "expired"
)

type Chain struct {
	ID        string      `json:"id"`
	EventID   string      `json:"event_id"`
	Status    ChainStatus `json:"status"`
	FireRound int         `json:"fire_round"`
	Deadline  int         `json:"deadline,omitempty"`
	// Origin is "root" or the id of the event that scheduled this one.
	Origin string `json:"origin"`
}

func (c Chain) Active() bool {
	return c.Status == ChainScheduled || c.Status == ChainAwaitingChoice
}

// Usage counts applications of one (ability, target) pair for diminishing returns.
type Usage struct {
	Count     int `json:"count"`
	LastRound int `json:"last_round"`
}

func UsageKey(abilityID, targetID string) string { return abilityID + "|" + targetID }

type Stats struct {
	AbilitiesUsed   int            `json:"abilities_used"`
	AbilityUses     map[string]int `json:"ability_uses,omitempty"`
	CombosCompleted int            `json:"combos_completed"`
	EventsFired     int            `json:"events_fired"`
	EventsResolved  int            `json:"events_resolved"`
	ChoicesMade     int            `json:"choices_made"`
	ChainsExpired   int            `json:"chains_expired"`
	PeakRisk        float64        `json:"peak_risk"`
}

type State struct {
	Seed  string `json:"seed"`
	Phase Phase  `json:"phase"`
	Round int    `json:"round"`

	Resources     Resources        `json:"resources"`
	Network       *network.Network `json:"network"`
	DetectionRisk float64          `json:"detection_risk"`

	Combos []ComboProgress `json:"combos,omitempty"`

	Chains   []Chain          `json:"chains,omitempty"`
	ChainSeq int              `json:"chain_seq"`
	Fired    map[string]int   `json:"fired,omitempty"`
	Usage    map[string]Usage `json:"usage,omitempty"`
	// Holds maps actor id to rounds of suspended recovery left.
	Holds map[string]int `json:"holds,omitempty"`
	RNG   uint32         `json:"rng"`

	DefeatReason DefeatReason `json:"defeat_reason,omitempty"`
	ForcedDefeat bool         `json:"forced_defeat,omitempty"`

	Stats Stats `json:"stats"`

	// History holds prior snapshots, oldest first. Snapshots carry no history of their own.
	History []State `json:"-"`
}

func NewState(seed string, net *network.Network, start Resources) *State {
	return &State{
		Seed:      seed,
		Phase:     PhasePlaying,
		Round:     1,
		Resources: start,
		Network:   net,
		Fired:     map[string]int{},
		Usage:     map[string]Usage{},
		Holds:     map[string]int{},
	}
}

// RecomputeRisk sets DetectionRisk from attention.
func (s *State) RecomputeRisk(attentionPerRisk float64) {
	if attentionPerRisk <= 0 {
		attentionPerRisk = 100
	}
	s.DetectionRisk = network.Clamp01(s.Resources.Attention / attentionPerRisk)
	if s.DetectionRisk > s.Stats.PeakRisk {
		s.Stats.PeakRisk = s.DetectionRisk
	}
}

// NextChainID returns a fresh chain id, stable across replays.
func (s *State) NextChainID() string {
	s.ChainSeq++
	return "C" + strconv.Itoa(s.ChainSeq)
}

// Snapshot returns a deep copy without history.
func (s *State) Snapshot() State {
	out := *s
	out.History = nil
	out.Network = s.Network.Clone()
	out.Combos = append([]ComboProgress(nil), s.Combos...)
	out.Chains = append([]Chain(nil), s.Chains...)
	out.Fired = copyMap(s.Fired)
	out.Usage = copyMap(s.Usage)
	out.Holds = copyMap(s.Holds)
	out.Stats.AbilityUses = copyMap(s.Stats.AbilityUses)
	return out
}

// Clone returns a deep copy including history.
func (s *State) Clone() *State {
	out := s.Snapshot()
	if len(s.History) > 0 {
		out.History = make([]State, len(s.History))
		for i := range s.History {
			out.History[i] = s.History[i].Snapshot()
		}
	}
	return &out
}

// PushHistory appends snap and keeps at most limit entries (limit <= 0 means unbounded).
func (s *State) PushHistory(snap State, limit int) {
	s.History = append(s.History, snap)
	if limit > 0 && len(s.History) > limit {
		drop := len(s.History) - limit
		s.History = append([]State(nil), s.History[drop:]...)
	}
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	if m == nil {
		return nil
	}
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
