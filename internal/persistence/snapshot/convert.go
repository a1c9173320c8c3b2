package snapshot

import (
	"sort"

	"whisperwire.ai/internal/sim/model"
	"whisperwire.ai/internal/sim/network"
)

// Capture builds a snapshot of st, history included.
func Capture(sessionID string, intentSeq int, st *model.State) SnapshotV1 {
	snap := SnapshotV1{
		Header: Header{
			Version:   Version,
			SessionID: sessionID,
			Seed:      st.Seed,
			Round:     st.Round,
			IntentSeq: intentSeq,
		},
		State: ExportState(st),
	}
	for i := range st.History {
		snap.History = append(snap.History, ExportState(&st.History[i]))
	}
	return snap
}

// Restore rebuilds the live state with its history.
func (s SnapshotV1) Restore() *model.State {
	st := s.State.Import()
	for _, h := range s.History {
		st.History = append(st.History, *h.Import())
	}
	return st
}

func ExportState(st *model.State) StateV1 {
	out := StateV1{
		Seed:           st.Seed,
		Phase:          string(st.Phase),
		Round:          st.Round,
		Money:          st.Resources.Money,
		Attention:      st.Resources.Attention,
		Infrastructure: st.Resources.Infrastructure,
		DetectionRisk:  st.DetectionRisk,
		RNG:            st.RNG,
		ChainSeq:       st.ChainSeq,
		Fired:          copyInts(st.Fired),
		Holds:          copyInts(st.Holds),
		DefeatReason:   string(st.DefeatReason),
		ForcedDefeat:   st.ForcedDefeat,
		Stats: StatsV1{
			AbilitiesUsed:   st.Stats.AbilitiesUsed,
			AbilityUses:     copyInts(st.Stats.AbilityUses),
			CombosCompleted: st.Stats.CombosCompleted,
			EventsFired:     st.Stats.EventsFired,
			EventsResolved:  st.Stats.EventsResolved,
			ChoicesMade:     st.Stats.ChoicesMade,
			ChainsExpired:   st.Stats.ChainsExpired,
			PeakRisk:        st.Stats.PeakRisk,
		},
	}
	if st.Network != nil {
		for _, a := range st.Network.Actors {
			out.Actors = append(out.Actors, ActorV1{
				ID:              a.ID,
				Name:            a.Name,
				Category:        a.Category,
				Tier:            a.Tier,
				Trust:           a.Trust,
				BaseTrust:       a.BaseTrust,
				Resilience:      a.Resilience,
				EmotionalState:  a.EmotionalState,
				RecoveryRate:    a.RecoveryRate,
				Cooldowns:       copyInts(a.Cooldowns),
				Vulnerabilities: append([]string(nil), a.Vulnerabilities...),
				Resistances:     append([]string(nil), a.Resistances...),
				Pos:             [2]float64{a.Position.X, a.Position.Y},
			})
		}
		for _, c := range st.Network.Connections {
			out.Connections = append(out.Connections, ConnectionV1{Source: c.Source, Target: c.Target, Strength: c.Strength, Type: c.Type})
		}
	}
	for _, p := range st.Combos {
		out.Combos = append(out.Combos, ComboV1{ComboID: p.ComboID, Step: p.Step, StartedRound: p.StartedRound, ExpiresRound: p.ExpiresRound})
	}
	for _, c := range st.Chains {
		out.Chains = append(out.Chains, ChainV1{
			ID:        c.ID,
			EventID:   c.EventID,
			Status:    string(c.Status),
			FireRound: c.FireRound,
			Deadline:  c.Deadline,
			Origin:    c.Origin,
		})
	}
	keys := make([]string, 0, len(st.Usage))
	for k := range st.Usage {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		u := st.Usage[k]
		out.Usage = append(out.Usage, UsageV1{Key: k, Count: u.Count, LastRound: u.LastRound})
	}
	return out
}

func (s StateV1) Import() *model.State {
	actors := make([]network.Actor, 0, len(s.Actors))
	for _, a := range s.Actors {
		actors = append(actors, network.Actor{
			ID:              a.ID,
			Name:            a.Name,
			Category:        a.Category,
			Tier:            a.Tier,
			Trust:           a.Trust,
			BaseTrust:       a.BaseTrust,
			Resilience:      a.Resilience,
			EmotionalState:  a.EmotionalState,
			RecoveryRate:    a.RecoveryRate,
			Cooldowns:       copyInts(a.Cooldowns),
			Vulnerabilities: append([]string(nil), a.Vulnerabilities...),
			Resistances:     append([]string(nil), a.Resistances...),
			Position:        network.Position{X: a.Pos[0], Y: a.Pos[1]},
		})
	}
	conns := make([]network.Connection, 0, len(s.Connections))
	for _, c := range s.Connections {
		conns = append(conns, network.Connection{Source: c.Source, Target: c.Target, Strength: c.Strength, Type: c.Type})
	}
	st := &model.State{
		Seed:          s.Seed,
		Phase:         model.Phase(s.Phase),
		Round:         s.Round,
		Resources:     model.Resources{Money: s.Money, Attention: s.Attention, Infrastructure: s.Infrastructure},
		Network:       network.New(actors, conns),
		DetectionRisk: s.DetectionRisk,
		ChainSeq:      s.ChainSeq,
		Fired:         copyInts(s.Fired),
		Usage:         make(map[string]model.Usage, len(s.Usage)),
		Holds:         copyInts(s.Holds),
		RNG:           s.RNG,
		DefeatReason:  model.DefeatReason(s.DefeatReason),
		ForcedDefeat:  s.ForcedDefeat,
		Stats: model.Stats{
			AbilitiesUsed:   s.Stats.AbilitiesUsed,
			AbilityUses:     copyInts(s.Stats.AbilityUses),
			CombosCompleted: s.Stats.CombosCompleted,
			EventsFired:     s.Stats.EventsFired,
			EventsResolved:  s.Stats.EventsResolved,
			ChoicesMade:     s.Stats.ChoicesMade,
			ChainsExpired:   s.Stats.ChainsExpired,
			PeakRisk:        s.Stats.PeakRisk,
		},
	}
	if st.Fired == nil {
		st.Fired = map[string]int{}
	}
	if st.Holds == nil {
		st.Holds = map[string]int{}
	}
	for _, p := range s.Combos {
		st.Combos = append(st.Combos, model.ComboProgress{ComboID: p.ComboID, Step: p.Step, StartedRound: p.StartedRound, ExpiresRound: p.ExpiresRound})
	}
	for _, c := range s.Chains {
		st.Chains = append(st.Chains, model.Chain{
			ID:        c.ID,
			EventID:   c.EventID,
			Status:    model.ChainStatus(c.Status),
			FireRound: c.FireRound,
			Deadline:  c.Deadline,
			Origin:    c.Origin,
		})
	}
	for _, u := range s.Usage {
		st.Usage[u.Key] = model.Usage{Count: u.Count, LastRound: u.LastRound}
	}
	return st
}

func copyInts(m map[string]int) map[string]int {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
