package catalogs

import "strings"

// Condition variables resolvable at evaluation time.
const (
	VarRound            = "round"
	VarMoney            = "money"
	VarAttention        = "attention"
	VarInfrastructure   = "infrastructure"
	VarDetectionRisk    = "detection_risk"
	VarAverageTrust     = "average_trust"
	VarPolarization     = "polarization"
	VarLowTrustFraction = "low_trust_fraction"
	VarCombosCompleted  = "combos_completed"
	VarEventsResolved   = "events_resolved"
)

var globalVars = map[string]struct{}{
	VarRound:            {},
	VarMoney:            {},
	VarAttention:        {},
	VarInfrastructure:   {},
	VarDetectionRisk:    {},
	VarAverageTrust:     {},
	VarPolarization:     {},
	VarLowTrustFraction: {},
	VarCombosCompleted:  {},
	VarEventsResolved:   {},
}

var actorFields = map[string]struct{}{
	"trust":      {},
	"resilience": {},
	"emotional":  {},
}

// ActorVar names a per-actor variable, e.g. actor.mayor.trust.
func ActorVar(actorID, field string) string {
	return "actor." + actorID + "." + field
}

// SplitActorVar reverses ActorVar. Actor ids may contain dots; the field is the
// last segment.
func SplitActorVar(name string) (actorID, field string, ok bool) {
	if !strings.HasPrefix(name, "actor.") {
		return "", "", false
	}
	rest := name[len("actor."):]
	i := strings.LastIndexByte(rest, '.')
	if i <= 0 || i == len(rest)-1 {
		return "", "", false
	}
	actorID, field = rest[:i], rest[i+1:]
	if _, known := actorFields[field]; !known {
		return "", "", false
	}
	return actorID, field, true
}

// IsGlobalVar reports whether name is one of the fixed session variables.
func IsGlobalVar(name string) bool {
	_, ok := globalVars[name]
	return ok
}
