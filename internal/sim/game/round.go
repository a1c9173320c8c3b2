package game

import (
	"whisperwire.ai/internal/sim/events"
	"whisperwire.ai/internal/sim/model"
	"whisperwire.ai/internal/sim/network"
)

type RoundReport struct {
	// Round is the round that just completed.
	Round int `json:"round"`

	Income         float64 `json:"income"`
	AttentionDecay float64 `json:"attention_decay"`
	Recovered      int     `json:"recovered"`

	ExpiredCombos []string         `json:"expired_combos,omitempty"`
	Events        []events.Outcome `json:"events,omitempty"`
	ExpiredChains []events.Outcome `json:"expired_chains,omitempty"`

	Phase        model.Phase        `json:"phase"`
	DefeatReason model.DefeatReason `json:"defeat_reason,omitempty"`
	Metrics      network.Metrics    `json:"metrics"`
}

// AdvanceRound resolves the end of the current round in fixed order: recovery, income,
// attention decay, cooldowns, combo expiry, event chains, chain expiry. The pre-advance
// state is pushed onto history once all of that succeeded; then the round counter moves
// and terminal conditions are checked.
func (m *Manager) AdvanceRound() (RoundReport, error) {
	st := m.st
	if st.Phase != model.PhasePlaying {
		m.record(Intent{Kind: IntentAdvance})
		return RoundReport{Phase: st.Phase, DefeatReason: st.DefeatReason}, ErrNotPlaying
	}
	st.RNG = m.gen.State()
	pre := st.Snapshot()
	rep := RoundReport{Round: st.Round}

	for i := range st.Network.Actors {
		a := &st.Network.Actors[i]
		if left := st.Holds[a.ID]; left > 0 {
			if left == 1 {
				delete(st.Holds, a.ID)
			} else {
				st.Holds[a.ID] = left - 1
			}
			continue
		}
		if a.RecoveryRate > 0 && a.Trust != a.BaseTrust {
			a.Trust += (a.BaseTrust - a.Trust) * a.RecoveryRate
			a.Clamp01()
			rep.Recovered++
		}
	}

	rep.Income = m.tun.Income.Base + m.tun.Income.PerInfrastructure*st.Resources.Infrastructure
	st.Resources.Money += rep.Income

	decayed := st.Resources.Attention * (1 - m.tun.AttentionDecay)
	if decayed < 0 {
		decayed = 0
	}
	rep.AttentionDecay = st.Resources.Attention - decayed
	st.Resources.Attention = decayed
	st.RecomputeRisk(m.tun.AttentionPerRisk)

	for i := range st.Network.Actors {
		st.Network.Actors[i].TickCooldowns()
	}

	rep.ExpiredCombos = m.combos.Expire(st, st.Round+1)
	rep.Events = m.events.ProcessEventChains(st, m.gen, st.Round)
	rep.ExpiredChains = m.events.CleanupExpiredChains(st, st.Round)
	st.RNG = m.gen.State()

	st.PushHistory(pre, m.tun.HistoryCap)
	st.Round++
	m.settle()

	rep.Phase = st.Phase
	rep.DefeatReason = st.DefeatReason
	rep.Metrics = st.Network.Metrics(m.tun.VictoryTrustThreshold, m.tun.HighTrustThreshold)
	m.record(Intent{Kind: IntentAdvance, OK: true})
	return rep, nil
}
