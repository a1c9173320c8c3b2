package main

import (
	"fmt"
	"sort"

	"whisperwire.ai/internal/protocol"
	"whisperwire.ai/internal/sim/catalogs"
)

// planner picks one command per observed STATE: answer open events first, then spend
// on abilities until the per-round budget or the money runs out, then advance.
type planner struct {
	abilities []catalogs.AbilityDef
	links     map[string][]string
	perRound  int

	round    int
	used     int
	tried    map[string]bool
	answered map[string]bool
	seq      int
}

func newPlanner(perRound int) *planner {
	if perRound <= 0 {
		perRound = 2
	}
	return &planner{
		links:    map[string][]string{},
		perRound: perRound,
		tried:    map[string]bool{},
		answered: map[string]bool{},
	}
}

func (p *planner) learnConnections(conns []protocol.ConnectionObs) {
	for _, c := range conns {
		p.links[c.Source] = append(p.links[c.Source], c.Target)
	}
}

// rejected marks the last ability attempt so it is not retried this round.
func (p *planner) rejected(key string) {
	if key != "" {
		p.tried[key] = true
	}
}

// next returns the command to send and, for abilities, the key identifying the attempt.
func (p *planner) next(st protocol.StateMsg) (protocol.ActMsg, string, bool) {
	if st.Phase != "playing" {
		return protocol.ActMsg{}, "", false
	}
	if st.Round != p.round {
		p.round, p.used = st.Round, 0
		p.tried = map[string]bool{}
	}

	for _, pe := range st.Pending {
		if p.answered[pe.ChainID] {
			continue
		}
		p.answered[pe.ChainID] = true
		for _, ch := range pe.Choices {
			if ch.Affordable {
				act := p.act(protocol.CmdChoice)
				act.Chain, act.Choice = pe.ChainID, ch.ID
				return act, "", true
			}
		}
	}

	if p.used < p.perRound {
		actors := byTrustDesc(st.Actors)
		for _, ab := range p.abilities {
			if ab.Cost.Money > st.Resources.Money || ab.Cost.Infrastructure > st.Resources.Infrastructure {
				continue
			}
			for _, src := range actors {
				if src.Cooldowns[ab.ID] > 0 {
					continue
				}
				key := ab.ID + "/" + src.ID
				if p.tried[key] {
					continue
				}
				targets, ok := p.targets(ab, src.ID, actors)
				if !ok {
					continue
				}
				p.used++
				p.tried[key] = true
				act := p.act(protocol.CmdAbility)
				act.Ability, act.Source, act.Targets = ab.ID, src.ID, targets
				return act, key, true
			}
		}
	}
	return p.act(protocol.CmdAdvance), "", true
}

func (p *planner) targets(ab catalogs.AbilityDef, source string, actors []protocol.ActorObs) ([]string, bool) {
	switch ab.TargetType {
	case catalogs.TargetSingle:
		for _, a := range actors {
			if a.ID != source {
				return []string{a.ID}, true
			}
		}
		return nil, false
	case catalogs.TargetAdjacent:
		ns := p.links[source]
		if len(ns) == 0 {
			return nil, false
		}
		return append([]string(nil), ns...), true
	case catalogs.TargetNetwork:
		return nil, true
	}
	return nil, false
}

func (p *planner) act(cmd string) protocol.ActMsg {
	p.seq++
	return protocol.ActMsg{
		Type:            protocol.TypeAct,
		ProtocolVersion: protocol.Version,
		ReqID:           fmt.Sprintf("R%d", p.seq),
		Command:         cmd,
	}
}

func byTrustDesc(actors []protocol.ActorObs) []protocol.ActorObs {
	out := append([]protocol.ActorObs(nil), actors...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Trust != out[j].Trust {
			return out[i].Trust > out[j].Trust
		}
		return out[i].ID < out[j].ID
	})
	return out
}
