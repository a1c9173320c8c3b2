package model

import "whisperwire.ai/internal/sim/catalogs"

// EffectTargets lists the actors an effect touches: the listed actors, else the
// category, else everyone. Definition order is preserved.
func (s *State) EffectTargets(e catalogs.Effect) []string {
	if len(e.Actors) > 0 {
		out := make([]string, 0, len(e.Actors))
		for _, id := range e.Actors {
			if s.Network.Has(id) {
				out = append(out, id)
			}
		}
		return out
	}
	var out []string
	for i := range s.Network.Actors {
		a := &s.Network.Actors[i]
		if e.Category == "" || a.Category == e.Category {
			out = append(out, a.ID)
		}
	}
	return out
}

// ApplyEffect applies an event or choice effect. Actor deltas are applied raw and
// clamped; resources never go negative.
func (s *State) ApplyEffect(e catalogs.Effect, attentionPerRisk float64) {
	if e.TrustDelta != 0 || e.EmotionalDelta != 0 || e.ResilienceDelta != 0 {
		for _, id := range s.EffectTargets(e) {
			a := s.Network.Actor(id)
			a.Trust += e.TrustDelta
			a.EmotionalState += e.EmotionalDelta
			a.Resilience += e.ResilienceDelta
			a.Clamp01()
		}
	}
	s.Resources.Money = nonNegative(s.Resources.Money + e.Money)
	s.Resources.Attention = nonNegative(s.Resources.Attention + e.Attention)
	s.Resources.Infrastructure = nonNegative(s.Resources.Infrastructure + e.Infrastructure)
	if e.Defeat {
		s.ForcedDefeat = true
	}
	s.RecomputeRisk(attentionPerRisk)
}

func (s *State) ApplyEffects(effects []catalogs.Effect, attentionPerRisk float64) {
	for _, e := range effects {
		s.ApplyEffect(e, attentionPerRisk)
	}
}

// CanAfford reports whether money and infrastructure cover c. Attention is never a gate.
func (r Resources) CanAfford(c catalogs.Cost) bool {
	return r.Money >= c.Money && r.Infrastructure >= c.Infrastructure
}

// Pay deducts c; attention accumulates. Callers check CanAfford first.
func (r *Resources) Pay(c catalogs.Cost) {
	r.Money -= c.Money
	r.Infrastructure -= c.Infrastructure
	r.Attention += c.Attention
}

func nonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

