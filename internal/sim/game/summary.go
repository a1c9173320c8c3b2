package game

import (
	"math"

	"whisperwire.ai/internal/sim/catalogs"
	"whisperwire.ai/internal/sim/events"
	"whisperwire.ai/internal/sim/model"
	"whisperwire.ai/internal/sim/network"
)

type PendingChoice struct {
	ChainID  string         `json:"chain_id"`
	EventID  string         `json:"event_id"`
	Title    string         `json:"title,omitempty"`
	Deadline int            `json:"deadline"`
	Choices  []ChoiceOption `json:"choices"`
}

type ChoiceOption struct {
	ID         string        `json:"id"`
	Label      string        `json:"label,omitempty"`
	Cost       catalogs.Cost `json:"cost"`
	Affordable bool          `json:"affordable"`
}

type Statistics struct {
	Seed          string          `json:"seed"`
	Phase         model.Phase     `json:"phase"`
	Round         int             `json:"round"`
	Resources     model.Resources `json:"resources"`
	DetectionRisk float64         `json:"detection_risk"`
	Metrics       network.Metrics `json:"metrics"`
	Stats         model.Stats     `json:"stats"`

	CombosInProgress int             `json:"combos_in_progress"`
	Pending          []PendingChoice `json:"pending,omitempty"`
	HistoryLen       int             `json:"history_len"`
}

func (m *Manager) Statistics() Statistics {
	st := m.st.Snapshot()
	return Statistics{
		Seed:             st.Seed,
		Phase:            st.Phase,
		Round:            st.Round,
		Resources:        st.Resources,
		DetectionRisk:    st.DetectionRisk,
		Metrics:          st.Network.Metrics(m.tun.VictoryTrustThreshold, m.tun.HighTrustThreshold),
		Stats:            st.Stats,
		CombosInProgress: len(st.Combos),
		Pending:          m.PendingChoices(),
		HistoryLen:       len(m.st.History),
	}
}

// PendingChoices lists chains waiting for the player, in activation order.
func (m *Manager) PendingChoices() []PendingChoice {
	if m.cats == nil {
		return nil
	}
	var out []PendingChoice
	for _, c := range m.st.Chains {
		if c.Status != model.ChainAwaitingChoice {
			continue
		}
		ev := m.cats.Events[c.EventID]
		p := PendingChoice{ChainID: c.ID, EventID: ev.ID, Title: ev.Title, Deadline: c.Deadline}
		for _, ch := range ev.Choices {
			p.Choices = append(p.Choices, ChoiceOption{
				ID:         ch.ID,
				Label:      ch.Label,
				Cost:       ch.Cost,
				Affordable: events.CanAffordChoice(ch, m.st.Resources),
			})
		}
		out = append(out, p)
	}
	return out
}

// Summary is what the persistence layer stores for a finished (or abandoned) session.
type Summary struct {
	Seed          string             `json:"seed"`
	Outcome       model.Phase        `json:"outcome"`
	DefeatReason  model.DefeatReason `json:"defeat_reason,omitempty"`
	Rounds        int                `json:"rounds"`
	Score         int                `json:"score"`
	AverageTrust  float64            `json:"average_trust"`
	Polarization  float64            `json:"polarization"`
	LowTrust      int                `json:"low_trust"`
	Stats         model.Stats        `json:"stats"`
	CatalogDigest string             `json:"catalog_digest,omitempty"`
	StateDigest   string             `json:"state_digest"`
}

func (m *Manager) Summary() Summary {
	st := m.st
	metrics := st.Network.Metrics(m.tun.VictoryTrustThreshold, m.tun.HighTrustThreshold)
	s := Summary{
		Seed:         st.Seed,
		Outcome:      st.Phase,
		DefeatReason: st.DefeatReason,
		Rounds:       st.Round - 1,
		AverageTrust: metrics.AverageTrust,
		Polarization: metrics.Polarization,
		LowTrust:     metrics.LowTrust,
		Stats:        st.Snapshot().Stats,
		StateDigest:  m.Digest(),
	}
	if s.Rounds < 0 {
		s.Rounds = 0
	}
	if m.cats != nil {
		s.CatalogDigest = m.cats.Digest
	}
	s.Score = Score(s, st.Resources, m.tun.MaxRounds)
	return s
}

// Score rewards eroded trust, spare money and speed:
//
//	(1-avg trust)·1000 + 50·low-trust actors + money/2
//	victory: +500 and +25 per unused round
//	exposure: halved
func Score(s Summary, r model.Resources, maxRounds int) int {
	v := (1-s.AverageTrust)*1000 + float64(s.LowTrust)*50 + r.Money/2
	switch {
	case s.Outcome == model.PhaseVictory:
		v += 500
		if left := maxRounds - s.Rounds; left > 0 {
			v += float64(left) * 25
		}
	case s.DefeatReason == model.DefeatExposure:
		v /= 2
	}
	return int(math.Round(v))
}
