package model

import (
	"log"

	"whisperwire.ai/internal/sim/catalogs"
	"whisperwire.ai/internal/sim/condition"
)

type env struct {
	s     *State
	lowTh float64
}

// Env exposes the state to condition expressions. lowTrustThreshold feeds
// low_trust_fraction.
func (s *State) Env(lowTrustThreshold float64) condition.Env {
	return env{s: s, lowTh: lowTrustThreshold}
}

func (e env) Lookup(name string) (float64, bool) {
	s := e.s
	switch name {
	case catalogs.VarRound:
		return float64(s.Round), true
	case catalogs.VarMoney:
		return s.Resources.Money, true
	case catalogs.VarAttention:
		return s.Resources.Attention, true
	case catalogs.VarInfrastructure:
		return s.Resources.Infrastructure, true
	case catalogs.VarDetectionRisk:
		return s.DetectionRisk, true
	case catalogs.VarAverageTrust:
		return s.Network.AverageTrust(), true
	case catalogs.VarPolarization:
		return s.Network.Polarization(), true
	case catalogs.VarLowTrustFraction:
		if len(s.Network.Actors) == 0 {
			return 0, true
		}
		return float64(s.Network.CountAtOrBelow(e.lowTh)) / float64(len(s.Network.Actors)), true
	case catalogs.VarCombosCompleted:
		return float64(s.Stats.CombosCompleted), true
	case catalogs.VarEventsResolved:
		return float64(s.Stats.EventsResolved), true
	}
	id, field, ok := catalogs.SplitActorVar(name)
	if !ok {
		return 0, false
	}
	a := s.Network.Actor(id)
	if a == nil {
		return 0, false
	}
	switch field {
	case "trust":
		return a.Trust, true
	case "resilience":
		return a.Resilience, true
	case "emotional":
		return a.EmotionalState, true
	}
	return 0, false
}

// Check evaluates expr against env. A nil expression holds; an evaluation error is
// logged and counts as false.
func Check(expr *condition.Expr, env condition.Env, logger *log.Logger, where string) bool {
	if expr == nil {
		return true
	}
	ok, err := expr.Eval(env)
	if err != nil {
		if logger != nil {
			logger.Printf("warn: %s: condition %q: %v", where, expr.String(), err)
		}
		return false
	}
	return ok
}
