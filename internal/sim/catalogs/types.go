package catalogs

import (
	"encoding/json"
	"fmt"
)

// TargetType is the closed set of ability targeting shapes.
type TargetType uint8

const (
	TargetSingle TargetType = iota + 1
	TargetAdjacent
	TargetNetwork
)

func ParseTargetType(s string) (TargetType, error) {
	switch s {
	case "single":
		return TargetSingle, nil
	case "adjacent":
		return TargetAdjacent, nil
	case "network":
		return TargetNetwork, nil
	}
	return 0, fmt.Errorf("unknown target_type %q", s)
}

func (t TargetType) String() string {
	switch t {
	case TargetSingle:
		return "single"
	case TargetAdjacent:
		return "adjacent"
	case TargetNetwork:
		return "network"
	}
	return "invalid"
}

func (t TargetType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TargetType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := ParseTargetType(s)
	if err != nil {
		return err
	}
	*t = v
	return nil
}

type Cost struct {
	Money          float64 `json:"money,omitempty"`
	Attention      float64 `json:"attention,omitempty"`
	Infrastructure float64 `json:"infrastructure,omitempty"`
}

type ActorDef struct {
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	Category string `json:"category"`
	Tier     int    `json:"tier"`

	Trust          float64 `json:"trust"`
	Resilience     float64 `json:"resilience"`
	EmotionalState float64 `json:"emotional_state"`
	RecoveryRate   float64 `json:"recovery_rate,omitempty"`

	Vulnerabilities []string    `json:"vulnerabilities,omitempty"`
	Resistances     []string    `json:"resistances,omitempty"`
	Position        *[2]float64 `json:"position,omitempty"`
	Connections     []LinkDef   `json:"connections,omitempty"`
}

type LinkDef struct {
	Target   string  `json:"target"`
	Strength float64 `json:"strength"`
	Type     string  `json:"type,omitempty"`
}

// CategoryLink connects every (From, To) category pair with the given probability,
// rolled on the session generator at game start.
type CategoryLink struct {
	From        string  `json:"from"`
	To          string  `json:"to"`
	Strength    float64 `json:"strength"`
	Type        string  `json:"type,omitempty"`
	Probability float64 `json:"probability"`
}

type AbilityEffect struct {
	TrustDelta      float64 `json:"trust_delta,omitempty"`
	EmotionalDelta  float64 `json:"emotional_delta,omitempty"`
	ResilienceDelta float64 `json:"resilience_delta,omitempty"`
	Duration        int     `json:"duration,omitempty"`
	Propagates      bool    `json:"propagates,omitempty"`
}

type AbilityDef struct {
	ID                string        `json:"id"`
	Name              string        `json:"name,omitempty"`
	TargetType        TargetType    `json:"target_type"`
	Cost              Cost          `json:"cost"`
	Cooldown          int           `json:"cooldown"`
	Effect            AbilityEffect `json:"effect"`
	DiminishingFactor float64       `json:"diminishing_factor"`
	BasedOn           []string      `json:"based_on,omitempty"`
}

// Effect is a world mutation carried by events and choices. Actor deltas go to the
// listed actors, else to the category, else to every actor.
type Effect struct {
	Actors   []string `json:"actors,omitempty"`
	Category string   `json:"category,omitempty"`

	TrustDelta      float64 `json:"trust_delta,omitempty"`
	EmotionalDelta  float64 `json:"emotional_delta,omitempty"`
	ResilienceDelta float64 `json:"resilience_delta,omitempty"`

	Money          float64 `json:"money,omitempty"`
	Attention      float64 `json:"attention,omitempty"`
	Infrastructure float64 `json:"infrastructure,omitempty"`

	Defeat bool `json:"defeat,omitempty"`
}

type ChoiceDef struct {
	ID        string   `json:"id"`
	Label     string   `json:"label,omitempty"`
	Cost      Cost     `json:"cost"`
	Condition string   `json:"condition,omitempty"`
	Effects   []Effect `json:"effects,omitempty"`
	Unlocks   []string `json:"unlocks,omitempty"`
}

type EventDef struct {
	ID          string `json:"id"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`

	Root          bool    `json:"root,omitempty"`
	Trigger       string  `json:"trigger,omitempty"`
	EarliestRound int     `json:"earliest_round,omitempty"`
	Chance        float64 `json:"chance,omitempty"` // omitted = always
	Repeatable    bool    `json:"repeatable,omitempty"`

	Effects []Effect    `json:"effects,omitempty"`
	Choices []ChoiceDef `json:"choices,omitempty"`

	Next  []string `json:"next,omitempty"`
	Delay int      `json:"delay,omitempty"`

	ExpiresAfter  int      `json:"expires_after,omitempty"`
	DefaultChoice string   `json:"default_choice,omitempty"`
	Forfeit       []Effect `json:"forfeit,omitempty"`
}

func (e EventDef) Choice(id string) (ChoiceDef, bool) {
	for _, c := range e.Choices {
		if c.ID == id {
			return c, true
		}
	}
	return ChoiceDef{}, false
}

type ComboBonus struct {
	Money           float64 `json:"money,omitempty"`
	AttentionRelief float64 `json:"attention_relief,omitempty"`
	TrustDelta      float64 `json:"trust_delta,omitempty"`
}

type ComboDef struct {
	ID        string     `json:"id"`
	Name      string     `json:"name,omitempty"`
	Sequence  []string   `json:"sequence"`
	Window    int        `json:"window,omitempty"`
	Condition string     `json:"condition,omitempty"`
	Bonus     ComboBonus `json:"bonus"`
}

// Definitions is the raw configuration handed to the engine.
type Definitions struct {
	Actors    []ActorDef     `json:"actors"`
	Abilities []AbilityDef   `json:"abilities"`
	Events    []EventDef     `json:"events"`
	Combos    []ComboDef     `json:"combos,omitempty"`
	Links     []CategoryLink `json:"links,omitempty"`
}
