package network

import "sort"

// Modifiers scale a raw trust delta for one target. All factors are multiplicative and
// are applied before clamping.
type Modifiers struct {
	ResilienceDampening     float64
	EmotionalThreshold      float64
	EmotionalMultiplier     float64
	VulnerabilityMultiplier float64
	ResistanceMultiplier    float64
}

func DefaultModifiers() Modifiers {
	return Modifiers{
		ResilienceDampening:     0.5,
		EmotionalThreshold:      0.7,
		EmotionalMultiplier:     1.2,
		VulnerabilityMultiplier: 1.5,
		ResistanceMultiplier:    0.5,
	}
}

// Application describes one ability hitting one target.
type Application struct {
	Delta   float64
	BasedOn []string

	// Prior is how many times the same (ability, target) pair was applied before.
	Prior             int
	DiminishingFactor float64
}

// TrustDelta returns the modified delta for target a.
func (m Modifiers) TrustDelta(a *Actor, app Application) float64 {
	d := app.Delta * (1 - a.Resilience*m.ResilienceDampening)
	if a.EmotionalState > m.EmotionalThreshold {
		d *= m.EmotionalMultiplier
	}
	if matchesAny(a.Vulnerabilities, app.BasedOn) {
		d *= m.VulnerabilityMultiplier
	}
	if matchesAny(a.Resistances, app.BasedOn) {
		d *= m.ResistanceMultiplier
	}
	if app.Prior > 0 && app.DiminishingFactor > 0 && app.DiminishingFactor < 1 {
		f := 1.0
		for i := 0; i < app.Prior; i++ {
			f *= app.DiminishingFactor
		}
		d *= f
	}
	return d
}

func matchesAny(tags, basedOn []string) bool {
	for _, t := range tags {
		for _, b := range basedOn {
			if t == b {
				return true
			}
		}
	}
	return false
}

// Propagate spreads direct trust deltas exactly one hop: each neighbour of a direct
// target gains factor·delta·strength per connection. Direct targets that neighbour each
// other receive the spill as well. The network is not mutated.
func (n *Network) Propagate(direct map[string]float64, factor float64) map[string]float64 {
	out := map[string]float64{}
	if factor == 0 || len(direct) == 0 {
		return out
	}
	for _, c := range n.Connections {
		if d, ok := direct[c.Source]; ok && d != 0 {
			out[c.Target] += factor * d * c.Strength
		}
		if d, ok := direct[c.Target]; ok && d != 0 {
			out[c.Source] += factor * d * c.Strength
		}
	}
	return out
}

// ApplyTrust adds deltas to actor trust in definition order and clamps.
// It returns the effective (post-clamp) change per actor.
func (n *Network) ApplyTrust(deltas map[string]float64) map[string]float64 {
	applied := make(map[string]float64, len(deltas))
	for i := range n.Actors {
		a := &n.Actors[i]
		d, ok := deltas[a.ID]
		if !ok {
			continue
		}
		before := a.Trust
		a.Trust = Clamp01(a.Trust + d)
		applied[a.ID] = a.Trust - before
	}
	return applied
}

// SortedKeys returns the keys of m in ascending order.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
