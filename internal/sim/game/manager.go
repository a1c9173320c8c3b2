// Package game owns a session's state and drives its lifecycle:
// setup -> playing -> victory | defeat.
//
// A Manager is not safe for concurrent use; callers serialize access (the websocket
// transport runs one session per connection goroutine).
package game

import (
	"errors"
	"fmt"
	"io"
	"log"

	"whisperwire.ai/internal/sim/ability"
	"whisperwire.ai/internal/sim/catalogs"
	"whisperwire.ai/internal/sim/combo"
	"whisperwire.ai/internal/sim/events"
	"whisperwire.ai/internal/sim/model"
	"whisperwire.ai/internal/sim/network"
	"whisperwire.ai/internal/sim/rng"
	"whisperwire.ai/internal/sim/tuning"
)

var (
	ErrNotLoaded   = errors.New("definitions not loaded")
	ErrDefinitions = errors.New("definitions rejected")
	ErrInvalidSeed = errors.New("invalid seed")
	ErrNotPlaying  = errors.New("game not in progress")
)

type Manager struct {
	tun    tuning.Tuning
	logger *log.Logger

	cats     *catalogs.Catalogs
	loadErrs []error

	resolver *ability.Resolver
	combos   *combo.Tracker
	events   *events.Engine

	gen *rng.Generator
	st  *model.State

	intents IntentLogger
	seq     int
}

func New(tun tuning.Tuning, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	tun.Normalize()
	return &Manager{
		tun:    tun,
		logger: logger,
		st:     &model.State{Phase: model.PhaseSetup, Network: network.New(nil, nil)},
	}
}

func (m *Manager) Tuning() tuning.Tuning { return m.tun }

func (m *Manager) Catalogs() *catalogs.Catalogs { return m.cats }

// SetIntentLogger installs the sink for the replay log. Nil disables it.
func (m *Manager) SetIntentLogger(l IntentLogger) { m.intents = l }

// LoadDefinitions validates defs and installs them. Every problem is returned; while any
// remain, StartGame refuses to run.
func (m *Manager) LoadDefinitions(defs catalogs.Definitions) []error {
	cats, errs := catalogs.Compile(defs)
	if len(errs) > 0 {
		m.cats = nil
		m.loadErrs = errs
		m.logger.Printf("definitions rejected: %d error(s)", len(errs))
		return []error(errs)
	}
	m.UseCatalogs(cats)
	return nil
}

// UseCatalogs installs catalogs that were compiled elsewhere (e.g. shared by a server).
func (m *Manager) UseCatalogs(cats *catalogs.Catalogs) {
	m.cats = cats
	m.loadErrs = nil
	m.resolver = ability.NewResolver(cats, m.tun)
	m.combos = combo.NewTracker(cats, m.tun.ComboWindowRounds, m.tun.VictoryTrustThreshold, m.logger)
	m.events = events.NewEngine(cats, m.tun, m.logger)
}

// StartGame builds a fresh session. An empty seed is replaced by a generated one.
func (m *Manager) StartGame(seed string) error {
	if m.cats == nil {
		if len(m.loadErrs) > 0 {
			return fmt.Errorf("%w: %d error(s)", ErrDefinitions, len(m.loadErrs))
		}
		return ErrNotLoaded
	}
	if seed == "" {
		s, err := rng.GenerateSeedString(rng.SeedLength)
		if err != nil {
			return err
		}
		seed = s
	}
	if !rng.IsValidSeed(seed) {
		return fmt.Errorf("%w: %q", ErrInvalidSeed, seed)
	}
	m.gen = rng.New(seed)
	net := network.Build(m.cats.Actors, m.cats.Links, m.gen)
	start := model.Resources{
		Money:          m.tun.Start.Money,
		Attention:      m.tun.Start.Attention,
		Infrastructure: m.tun.Start.Infrastructure,
	}
	m.st = model.NewState(seed, net, start)
	m.st.RecomputeRisk(m.tun.AttentionPerRisk)
	m.st.RNG = m.gen.State()
	m.seq = 0
	m.logger.Printf("session %s: started with %d actors, %d connections", seed, len(net.Actors), len(net.Connections))
	return nil
}

// Restore resumes from a previously captured state. Catalogs must already be loaded.
func (m *Manager) Restore(st *model.State) error {
	if m.cats == nil {
		return ErrNotLoaded
	}
	if !rng.IsValidSeed(st.Seed) {
		return fmt.Errorf("%w: %q", ErrInvalidSeed, st.Seed)
	}
	m.st = st.Clone()
	m.gen = rng.New(st.Seed)
	m.gen.SetState(st.RNG)
	return nil
}

// AbilityOutcome is the full report of one ability use.
type AbilityOutcome struct {
	Result ability.Result     `json:"result"`
	Combos []combo.Completion `json:"combos,omitempty"`
}

// ApplyAbility resolves one ability use and feeds it to the combo tracker.
func (m *Manager) ApplyAbility(abilityID, sourceID string, targetIDs []string) bool {
	_, ok := m.UseAbility(abilityID, sourceID, targetIDs)
	return ok
}

func (m *Manager) UseAbility(abilityID, sourceID string, targetIDs []string) (AbilityOutcome, bool) {
	var out AbilityOutcome
	if m.resolver == nil {
		out.Result = ability.Result{AbilityID: abilityID, SourceID: sourceID, Reason: ability.ReasonNotPlaying}
		return out, false
	}
	res, ok := m.resolver.Apply(m.st, abilityID, sourceID, targetIDs)
	out.Result = res
	if ok {
		out.Combos = m.combos.Notify(m.st, abilityID, m.st.Round)
		for _, c := range out.Combos {
			m.applyComboBonus(c, res.Targets)
		}
		out.Result.DetectionRisk = m.st.DetectionRisk
	}
	m.record(Intent{Kind: IntentAbility, Ability: abilityID, Source: sourceID, Targets: targetIDs, OK: ok})
	return out, ok
}

func (m *Manager) applyComboBonus(c combo.Completion, targets []string) {
	st := m.st
	st.Resources.Money += c.Bonus.Money
	st.Resources.Attention -= c.Bonus.AttentionRelief
	if st.Resources.Attention < 0 {
		st.Resources.Attention = 0
	}
	if c.Bonus.TrustDelta != 0 {
		deltas := make(map[string]float64, len(targets))
		for _, id := range targets {
			deltas[id] = c.Bonus.TrustDelta
		}
		st.Network.ApplyTrust(deltas)
	}
	st.RecomputeRisk(m.tun.AttentionPerRisk)
	m.logger.Printf("session %s: combo %s completed in round %d", st.Seed, c.ComboID, c.Round)
}

// ApplyChoice answers an awaiting event chain.
func (m *Manager) ApplyChoice(chainID, choiceID string) bool {
	ok := false
	if m.events != nil && m.st.Phase == model.PhasePlaying {
		_, ok = m.events.ApplyPlayerChoice(m.st, chainID, choiceID, m.st.Round)
	}
	m.record(Intent{Kind: IntentChoice, Chain: chainID, Choice: choiceID, OK: ok})
	return ok
}

// Undo restores the most recent pre-advance snapshot exactly.
func (m *Manager) Undo() bool {
	h := m.st.History
	ok := len(h) > 0
	if ok {
		prev := h[len(h)-1]
		prev.History = append([]model.State(nil), h[:len(h)-1]...)
		m.st = &prev
		if m.gen != nil {
			m.gen.SetState(prev.RNG)
		}
	}
	m.record(Intent{Kind: IntentUndo, OK: ok})
	return ok
}

// CheckVictory reports whether enough actors sit at or below the trust threshold
// within the round limit.
func (m *Manager) CheckVictory() bool {
	st := m.st
	if st.Phase == model.PhaseSetup || len(st.Network.Actors) == 0 {
		return false
	}
	if st.Round-1 > m.tun.MaxRounds {
		return false
	}
	low := st.Network.CountAtOrBelow(m.tun.VictoryTrustThreshold)
	return float64(low)/float64(len(st.Network.Actors)) >= m.tun.VictoryPercentage
}

// CheckDefeat returns the highest-priority defeat reason: exposure, then timeout, then an
// event-forced defeat.
func (m *Manager) CheckDefeat() (model.DefeatReason, bool) {
	st := m.st
	if st.Phase == model.PhaseSetup {
		return model.DefeatNone, false
	}
	switch {
	case st.DetectionRisk >= m.tun.ExposureThreshold:
		return model.DefeatExposure, true
	case st.Round > m.tun.MaxRounds:
		return model.DefeatTimeout, true
	case st.ForcedDefeat:
		return model.DefeatEvent, true
	}
	return model.DefeatNone, false
}

// settle moves a playing session into a terminal phase. Exposure and event defeats win
// over victory; victory wins over timeout.
func (m *Manager) settle() {
	st := m.st
	if st.Phase != model.PhasePlaying {
		return
	}
	reason, lost := m.CheckDefeat()
	won := m.CheckVictory()
	switch {
	case lost && (reason != model.DefeatTimeout || !won):
		st.Phase = model.PhaseDefeat
		st.DefeatReason = reason
	case won:
		st.Phase = model.PhaseVictory
	default:
		return
	}
	m.logger.Printf("session %s: %s after round %d %s", st.Seed, st.Phase, st.Round-1, st.DefeatReason)
}

// State returns a deep copy of the live state, history included.
func (m *Manager) State() *model.State { return m.st.Clone() }

func (m *Manager) Actor(id string) (network.Actor, bool) {
	a := m.st.Network.Actor(id)
	if a == nil {
		return network.Actor{}, false
	}
	return a.Clone(), true
}
