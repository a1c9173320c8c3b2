// Package network holds the actor graph of a session and the pure math applied to it.
//
// Actors are referenced by id only. Connections are unordered pairs and never change
// after the network is built.
package network

import "sort"

type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Actor struct {
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	Category string `json:"category"`
	Tier     int    `json:"tier"`

	Trust          float64 `json:"trust"`
	BaseTrust      float64 `json:"base_trust"`
	Resilience     float64 `json:"resilience"`
	EmotionalState float64 `json:"emotional_state"`
	RecoveryRate   float64 `json:"recovery_rate"`

	// Cooldowns maps ability id to remaining rounds. Zero entries are removed.
	Cooldowns map[string]int `json:"cooldowns,omitempty"`

	Vulnerabilities []string `json:"vulnerabilities,omitempty"`
	Resistances     []string `json:"resistances,omitempty"`
	Position        Position `json:"position"`
}

// Cooldown returns the remaining cooldown for abilityID.
func (a *Actor) Cooldown(abilityID string) int {
	return a.Cooldowns[abilityID]
}

func (a *Actor) SetCooldown(abilityID string, rounds int) {
	if rounds <= 0 {
		delete(a.Cooldowns, abilityID)
		return
	}
	if a.Cooldowns == nil {
		a.Cooldowns = map[string]int{}
	}
	a.Cooldowns[abilityID] = rounds
}

// TickCooldowns decrements every positive cooldown by one.
func (a *Actor) TickCooldowns() {
	for id, left := range a.Cooldowns {
		if left <= 1 {
			delete(a.Cooldowns, id)
			continue
		}
		a.Cooldowns[id] = left - 1
	}
}

// Clamp01 keeps the actor's unit fields in [0,1].
func (a *Actor) Clamp01() {
	a.Trust = Clamp01(a.Trust)
	a.Resilience = Clamp01(a.Resilience)
	a.EmotionalState = Clamp01(a.EmotionalState)
}

// Clone returns a copy sharing no maps or slices with a.
func (a Actor) Clone() Actor {
	out := a
	if a.Cooldowns != nil {
		out.Cooldowns = make(map[string]int, len(a.Cooldowns))
		for k, v := range a.Cooldowns {
			out.Cooldowns[k] = v
		}
	}
	out.Vulnerabilities = append([]string(nil), a.Vulnerabilities...)
	out.Resistances = append([]string(nil), a.Resistances...)
	return out
}

type Connection struct {
	Source   string  `json:"source"`
	Target   string  `json:"target"`
	Strength float64 `json:"strength"`
	Type     string  `json:"type,omitempty"`
}

// Other returns the far end of c seen from id, or "" when id is not an endpoint.
func (c Connection) Other(id string) string {
	switch id {
	case c.Source:
		return c.Target
	case c.Target:
		return c.Source
	}
	return ""
}

type Network struct {
	Actors      []Actor      `json:"actors"`
	Connections []Connection `json:"connections"`

	index map[string]int
}

func New(actors []Actor, conns []Connection) *Network {
	n := &Network{Actors: actors, Connections: conns}
	n.reindex()
	return n
}

func (n *Network) reindex() {
	n.index = make(map[string]int, len(n.Actors))
	for i := range n.Actors {
		n.index[n.Actors[i].ID] = i
	}
}

func (n *Network) indexOf(id string) (int, bool) {
	if n.index == nil || len(n.index) != len(n.Actors) {
		n.reindex()
	}
	i, ok := n.index[id]
	return i, ok
}

// Actor returns a pointer into the network's actor slice, or nil.
func (n *Network) Actor(id string) *Actor {
	i, ok := n.indexOf(id)
	if !ok {
		return nil
	}
	return &n.Actors[i]
}

func (n *Network) Has(id string) bool {
	_, ok := n.indexOf(id)
	return ok
}

func (n *Network) IDs() []string {
	out := make([]string, len(n.Actors))
	for i := range n.Actors {
		out[i] = n.Actors[i].ID
	}
	return out
}

// Connected reports whether a and b share a connection, in either direction.
func (n *Network) Connected(a, b string) bool {
	_, ok := n.connection(a, b)
	return ok
}

func (n *Network) connection(a, b string) (Connection, bool) {
	for _, c := range n.Connections {
		if (c.Source == a && c.Target == b) || (c.Source == b && c.Target == a) {
			return c, true
		}
	}
	return Connection{}, false
}

// Neighbors returns the ids connected to id, sorted.
func (n *Network) Neighbors(id string) []string {
	seen := map[string]struct{}{}
	for _, c := range n.Connections {
		if o := c.Other(id); o != "" && o != id {
			seen[o] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for o := range seen {
		out = append(out, o)
	}
	sort.Strings(out)
	return out
}

// Clone returns a deep copy that shares nothing with n.
func (n *Network) Clone() *Network {
	if n == nil {
		return nil
	}
	actors := make([]Actor, len(n.Actors))
	for i := range n.Actors {
		actors[i] = n.Actors[i].Clone()
	}
	conns := append([]Connection(nil), n.Connections...)
	return New(actors, conns)
}

func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
