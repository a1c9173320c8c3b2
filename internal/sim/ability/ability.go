// Package ability validates and applies a single player action to the session state.
package ability

import (
	"whisperwire.ai/internal/sim/catalogs"
	"whisperwire.ai/internal/sim/model"
	"whisperwire.ai/internal/sim/network"
	"whisperwire.ai/internal/sim/tuning"
)

// Reason codes why an ability use was rejected.
type Reason string

const (
	ReasonNone                       Reason = ""
	ReasonUnknownAbility             Reason = "unknown_ability"
	ReasonNotPlaying                 Reason = "not_playing"
	ReasonUnknownSource              Reason = "unknown_source"
	ReasonCooldown                   Reason = "cooldown"
	ReasonInsufficientMoney          Reason = "insufficient_money"
	ReasonInsufficientInfrastructure Reason = "insufficient_infrastructure"
	ReasonInvalidTarget              Reason = "invalid_target"
)

type Result struct {
	AbilityID string   `json:"ability_id"`
	SourceID  string   `json:"source_id"`
	Targets   []string `json:"targets"`

	Reason Reason        `json:"reason,omitempty"`
	Cost   catalogs.Cost `json:"cost"`

	// TrustChanges is the effective change per actor, direct and propagated combined.
	TrustChanges  map[string]float64 `json:"trust_changes,omitempty"`
	Propagated    map[string]float64 `json:"propagated,omitempty"`
	DetectionRisk float64            `json:"detection_risk"`
}

type Resolver struct {
	cats *catalogs.Catalogs
	tun  tuning.Tuning
	mods network.Modifiers
}

func NewResolver(cats *catalogs.Catalogs, tun tuning.Tuning) *Resolver {
	return &Resolver{
		cats: cats,
		tun:  tun,
		mods: network.Modifiers{
			ResilienceDampening:     tun.Effects.ResilienceDampening,
			EmotionalThreshold:      tun.Effects.EmotionalThreshold,
			EmotionalMultiplier:     tun.Effects.EmotionalMultiplier,
			VulnerabilityMultiplier: tun.Effects.VulnerabilityMultiplier,
			ResistanceMultiplier:    tun.Effects.ResistanceMultiplier,
		},
	}
}

func (r *Resolver) Modifiers() network.Modifiers { return r.mods }

// Validate checks every precondition without touching st. On success it returns the
// ability and the resolved target list.
func (r *Resolver) Validate(st *model.State, abilityID, sourceID string, targetIDs []string) (catalogs.AbilityDef, []string, Reason) {
	ab, ok := r.cats.Abilities[abilityID]
	if !ok {
		return ab, nil, ReasonUnknownAbility
	}
	if st == nil || st.Phase != model.PhasePlaying {
		return ab, nil, ReasonNotPlaying
	}
	src := st.Network.Actor(sourceID)
	if src == nil {
		return ab, nil, ReasonUnknownSource
	}
	if src.Cooldown(abilityID) > 0 {
		return ab, nil, ReasonCooldown
	}
	if st.Resources.Money < ab.Cost.Money {
		return ab, nil, ReasonInsufficientMoney
	}
	if st.Resources.Infrastructure < ab.Cost.Infrastructure {
		return ab, nil, ReasonInsufficientInfrastructure
	}
	targets, ok := r.resolveTargets(st.Network, ab.TargetType, sourceID, targetIDs)
	if !ok {
		return ab, nil, ReasonInvalidTarget
	}
	return ab, targets, ReasonNone
}

func (r *Resolver) resolveTargets(n *network.Network, tt catalogs.TargetType, sourceID string, ids []string) ([]string, bool) {
	if hasDuplicates(ids) {
		return nil, false
	}
	switch tt {
	case catalogs.TargetSingle:
		if len(ids) != 1 || !n.Has(ids[0]) {
			return nil, false
		}
	case catalogs.TargetAdjacent:
		if len(ids) == 0 {
			return nil, false
		}
		for _, id := range ids {
			if !n.Has(id) || !n.Connected(sourceID, id) {
				return nil, false
			}
		}
	case catalogs.TargetNetwork:
		if len(ids) == 0 {
			return n.IDs(), true
		}
		for _, id := range ids {
			if !n.Has(id) {
				return nil, false
			}
		}
	default:
		return nil, false
	}
	return append([]string(nil), ids...), true
}

func hasDuplicates(ids []string) bool {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return true
		}
		seen[id] = struct{}{}
	}
	return false
}

// Apply validates and, on success, applies the ability to st. A rejected call leaves st
// untouched and reports the reason.
func (r *Resolver) Apply(st *model.State, abilityID, sourceID string, targetIDs []string) (Result, bool) {
	res := Result{AbilityID: abilityID, SourceID: sourceID, Targets: append([]string(nil), targetIDs...)}
	ab, targets, reason := r.Validate(st, abilityID, sourceID, targetIDs)
	if reason != ReasonNone {
		res.Reason = reason
		if st != nil {
			res.DetectionRisk = st.DetectionRisk
		}
		return res, false
	}
	res.Targets = targets
	res.Cost = ab.Cost

	st.Resources.Pay(ab.Cost)

	eff := r.tun.Effects
	direct := make(map[string]float64, len(targets))
	for _, id := range targets {
		key := model.UsageKey(abilityID, id)
		u := st.Usage[key]
		if u.Count > 0 && eff.DiminishingResetRounds > 0 && st.Round-u.LastRound >= eff.DiminishingResetRounds {
			u.Count = 0
		}
		if ab.Effect.TrustDelta != 0 {
			direct[id] = r.mods.TrustDelta(st.Network.Actor(id), network.Application{
				Delta:             ab.Effect.TrustDelta,
				BasedOn:           ab.BasedOn,
				Prior:             u.Count,
				DiminishingFactor: ab.DiminishingFactor,
			})
		}
		u.Count++
		u.LastRound = st.Round
		if st.Usage == nil {
			st.Usage = map[string]model.Usage{}
		}
		st.Usage[key] = u
	}

	total := make(map[string]float64, len(direct))
	for id, d := range direct {
		total[id] += d
	}
	if ab.Effect.Propagates {
		res.Propagated = st.Network.Propagate(direct, eff.PropagationFactor)
		for id, d := range res.Propagated {
			total[id] += d
		}
	}
	res.TrustChanges = st.Network.ApplyTrust(total)

	for _, id := range targets {
		a := st.Network.Actor(id)
		a.EmotionalState += ab.Effect.EmotionalDelta
		a.Resilience += ab.Effect.ResilienceDelta
		a.Clamp01()
		if ab.Effect.Duration > 0 {
			if st.Holds == nil {
				st.Holds = map[string]int{}
			}
			if st.Holds[id] < ab.Effect.Duration {
				st.Holds[id] = ab.Effect.Duration
			}
		}
	}

	st.RecomputeRisk(r.tun.AttentionPerRisk)
	st.Network.Actor(sourceID).SetCooldown(abilityID, ab.Cooldown)

	st.Stats.AbilitiesUsed++
	if st.Stats.AbilityUses == nil {
		st.Stats.AbilityUses = map[string]int{}
	}
	st.Stats.AbilityUses[abilityID]++

	res.DetectionRisk = st.DetectionRisk
	return res, true
}
