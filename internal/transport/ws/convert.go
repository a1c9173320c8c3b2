package ws

import (
	"whisperwire.ai/internal/protocol"
	"whisperwire.ai/internal/sim/catalogs"
	"whisperwire.ai/internal/sim/game"
)

func catalogMsgs(cats *catalogs.Catalogs) []protocol.CatalogMsg {
	abilities := make([]catalogs.AbilityDef, 0, len(cats.AbilityOrder))
	for _, id := range cats.AbilityOrder {
		abilities = append(abilities, cats.Abilities[id])
	}
	events := make([]catalogs.EventDef, 0, len(cats.EventOrder))
	for _, id := range cats.EventOrder {
		events = append(events, cats.Events[id])
	}
	mk := func(name string, data any) protocol.CatalogMsg {
		return protocol.CatalogMsg{
			Type:            protocol.TypeCatalog,
			ProtocolVersion: protocol.Version,
			Name:            name,
			Digest:          cats.Digest,
			Data:            data,
		}
	}
	return []protocol.CatalogMsg{
		mk("abilities", abilities),
		mk("combos", cats.Combos),
		mk("events", events),
	}
}

// stateMsg renders the observable session. Connections are static after start and only
// sent when full is set.
func stateMsg(sessionID string, m *game.Manager, full bool) protocol.StateMsg {
	st := m.State()
	stats := m.Statistics()
	out := protocol.StateMsg{
		Type:            protocol.TypeState,
		ProtocolVersion: protocol.Version,
		SessionID:       sessionID,
		Round:           st.Round,
		Phase:           string(st.Phase),
		DefeatReason:    string(st.DefeatReason),
		Resources: protocol.ResourcesObs{
			Money:          st.Resources.Money,
			Attention:      st.Resources.Attention,
			Infrastructure: st.Resources.Infrastructure,
		},
		DetectionRisk: st.DetectionRisk,
		Metrics: protocol.MetricsObs{
			AverageTrust:     stats.Metrics.AverageTrust,
			Polarization:     stats.Metrics.Polarization,
			LowTrust:         stats.Metrics.LowTrust,
			HighTrust:        stats.Metrics.HighTrust,
			LowTrustFraction: stats.Metrics.LowTrustFraction,
		},
		CombosInProgress: stats.CombosInProgress,
		HistoryLen:       stats.HistoryLen,
		Digest:           m.Digest(),
	}
	for _, a := range st.Network.Actors {
		out.Actors = append(out.Actors, protocol.ActorObs{
			ID:         a.ID,
			Name:       a.Name,
			Category:   a.Category,
			Tier:       a.Tier,
			Trust:      a.Trust,
			Resilience: a.Resilience,
			Emotional:  a.EmotionalState,
			Cooldowns:  a.Cooldowns,
			Pos:        [2]float64{a.Position.X, a.Position.Y},
		})
	}
	if full {
		for _, c := range st.Network.Connections {
			out.Connections = append(out.Connections, protocol.ConnectionObs{Source: c.Source, Target: c.Target, Strength: c.Strength})
		}
	}
	for _, p := range stats.Pending {
		po := protocol.PendingObs{ChainID: p.ChainID, EventID: p.EventID, Title: p.Title, Deadline: p.Deadline}
		for _, c := range p.Choices {
			po.Choices = append(po.Choices, protocol.ChoiceObs{ID: c.ID, Label: c.Label, Affordable: c.Affordable})
		}
		out.Pending = append(out.Pending, po)
	}
	return out
}

func roundMsg(rep game.RoundReport) protocol.RoundMsg {
	out := protocol.RoundMsg{
		Type:            protocol.TypeRound,
		ProtocolVersion: protocol.Version,
		Round:           rep.Round,
		Income:          rep.Income,
		AttentionDecay:  rep.AttentionDecay,
		Recovered:       rep.Recovered,
		ExpiredCombos:   rep.ExpiredCombos,
	}
	for _, e := range rep.Events {
		out.Events = append(out.Events, protocol.EventObs{ChainID: e.ChainID, EventID: e.EventID, Status: string(e.Status), Choice: e.Choice})
	}
	for _, e := range rep.ExpiredChains {
		out.ExpiredChains = append(out.ExpiredChains, protocol.EventObs{ChainID: e.ChainID, EventID: e.EventID, Status: string(e.Status), Choice: e.Choice})
	}
	return out
}

func abilityResult(out game.AbilityOutcome) *protocol.AbilityResult {
	r := out.Result
	res := &protocol.AbilityResult{
		Ability:       r.AbilityID,
		Source:        r.SourceID,
		Targets:       r.Targets,
		TrustChanges:  r.TrustChanges,
		Propagated:    r.Propagated,
		DetectionRisk: r.DetectionRisk,
	}
	for _, c := range out.Combos {
		res.Combos = append(res.Combos, c.ComboID)
	}
	return res
}

func summaryMsg(sessionID string, s game.Summary) protocol.SummaryMsg {
	return protocol.SummaryMsg{
		Type:            protocol.TypeSummary,
		ProtocolVersion: protocol.Version,
		SessionID:       sessionID,
		Outcome:         string(s.Outcome),
		DefeatReason:    string(s.DefeatReason),
		Rounds:          s.Rounds,
		Score:           s.Score,
		AverageTrust:    s.AverageTrust,
		Polarization:    s.Polarization,
		LowTrust:        s.LowTrust,
		StateDigest:     s.StateDigest,
	}
}
