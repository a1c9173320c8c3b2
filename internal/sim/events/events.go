// Package events schedules world events, resolves player choices and expires chains
// left waiting past their deadline.
package events

import (
	"fmt"
	"io"
	"log"

	"whisperwire.ai/internal/sim/catalogs"
	"whisperwire.ai/internal/sim/model"
	"whisperwire.ai/internal/sim/rng"
	"whisperwire.ai/internal/sim/tuning"
)

// Outcome is one chain transition observed during processing.
type Outcome struct {
	ChainID string            `json:"chain_id"`
	EventID string            `json:"event_id"`
	Status  model.ChainStatus `json:"status"`
	Choice  string            `json:"choice,omitempty"`
	Round   int               `json:"round"`
}

type Engine struct {
	cats   *catalogs.Catalogs
	tun    tuning.Tuning
	logger *log.Logger
}

func NewEngine(cats *catalogs.Catalogs, tun tuning.Tuning, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Engine{cats: cats, tun: tun, logger: logger}
}

func (e *Engine) holds(st *model.State, src, where string) bool {
	return model.Check(e.cats.Condition(src), st.Env(e.tun.VictoryTrustThreshold), e.logger, where)
}

// RequiresPlayerChoice reports whether ev waits for the player once active.
func RequiresPlayerChoice(ev catalogs.EventDef) bool { return len(ev.Choices) > 0 }

// CanAffordChoice checks money and infrastructure against the choice cost.
func CanAffordChoice(ch catalogs.ChoiceDef, r model.Resources) bool {
	return r.CanAfford(ch.Cost)
}

// ProcessEventChains rolls root events whose triggers hold and then activates every
// scheduled chain that is due. g is the session generator.
func (e *Engine) ProcessEventChains(st *model.State, g *rng.Generator, round int) []Outcome {
	var out []Outcome

	for _, id := range e.cats.EventOrder {
		ev := e.cats.Events[id]
		if !ev.Root || round < ev.EarliestRound {
			continue
		}
		if !ev.Repeatable && st.Fired[id] > 0 {
			continue
		}
		if hasActiveChain(st, id) {
			continue
		}
		if !e.holds(st, ev.Trigger, "event "+id+" trigger") {
			continue
		}
		if ev.Chance > 0 && ev.Chance < 1 && !g.Chance(ev.Chance) {
			continue
		}
		c := model.Chain{ID: st.NextChainID(), EventID: id, Status: model.ChainScheduled, FireRound: round, Origin: "root"}
		st.Chains = append(st.Chains, c)
		out = append(out, Outcome{ChainID: c.ID, EventID: id, Status: c.Status, Round: round})
	}

	// Follow-ups scheduled while activating wait for the next pass.
	due := len(st.Chains)
	for i := 0; i < due; i++ {
		c := &st.Chains[i]
		if c.Status != model.ChainScheduled || c.FireRound > round {
			continue
		}
		ev, ok := e.cats.Events[c.EventID]
		if !ok {
			c.Status = model.ChainExpired
			continue
		}
		if c.Origin != "root" && !e.holds(st, ev.Trigger, "event "+ev.ID+" trigger") {
			continue
		}
		st.Fired[ev.ID]++
		st.Stats.EventsFired++
		st.ApplyEffects(ev.Effects, e.tun.AttentionPerRisk)
		if RequiresPlayerChoice(ev) {
			c.Status = model.ChainAwaitingChoice
			c.Deadline = round + e.window(ev)
			out = append(out, Outcome{ChainID: c.ID, EventID: ev.ID, Status: c.Status, Round: round})
			continue
		}
		c.Status = model.ChainResolved
		st.Stats.EventsResolved++
		out = append(out, Outcome{ChainID: c.ID, EventID: ev.ID, Status: c.Status, Round: round})
		e.schedule(st, ev.ID, ev.Next, round+ev.Delay)
	}

	compact(st)
	return out
}

// ApplyPlayerChoice resolves an awaiting chain with choiceID. It is rejected, with st
// untouched, unless the chain awaits a choice of its event, round is not past the chain's
// deadline, the choice condition holds and the cost is affordable.
func (e *Engine) ApplyPlayerChoice(st *model.State, chainID, choiceID string, round int) (Outcome, bool) {
	idx := -1
	for i := range st.Chains {
		if st.Chains[i].ID == chainID {
			idx = i
			break
		}
	}
	if idx < 0 || st.Chains[idx].Status != model.ChainAwaitingChoice || round > st.Chains[idx].Deadline {
		return Outcome{}, false
	}
	ev, ok := e.cats.Events[st.Chains[idx].EventID]
	if !ok {
		return Outcome{}, false
	}
	ch, ok := ev.Choice(choiceID)
	if !ok {
		return Outcome{}, false
	}
	where := fmt.Sprintf("event %s choice %s", ev.ID, ch.ID)
	if !e.holds(st, ch.Condition, where) || !CanAffordChoice(ch, st.Resources) {
		return Outcome{}, false
	}

	st.Resources.Pay(ch.Cost)
	st.RecomputeRisk(e.tun.AttentionPerRisk)
	st.ApplyEffects(ch.Effects, e.tun.AttentionPerRisk)
	st.Chains[idx].Status = model.ChainResolved
	st.Stats.ChoicesMade++
	st.Stats.EventsResolved++
	o := Outcome{ChainID: chainID, EventID: ev.ID, Status: model.ChainResolved, Choice: ch.ID, Round: round}

	e.schedule(st, ev.ID, ch.Unlocks, round)
	e.schedule(st, ev.ID, ev.Next, round+ev.Delay)
	compact(st)
	return o, true
}

// CleanupExpiredChains runs at the end of round. Awaiting chains whose deadline is round
// or earlier are settled: the default choice applies without cost, else the forfeit
// effects. Follow-ups still scheduled at their deadline are dropped without effects.
// Settled chains leave the active list.
func (e *Engine) CleanupExpiredChains(st *model.State, round int) []Outcome {
	var out []Outcome
	n := len(st.Chains)
	for i := 0; i < n; i++ {
		c := &st.Chains[i]
		if c.Deadline <= 0 || c.Deadline > round {
			continue
		}
		if c.Status == model.ChainScheduled {
			c.Status = model.ChainExpired
			st.Stats.ChainsExpired++
			out = append(out, Outcome{ChainID: c.ID, EventID: c.EventID, Status: model.ChainExpired, Round: round})
			continue
		}
		if c.Status != model.ChainAwaitingChoice {
			continue
		}
		ev := e.cats.Events[c.EventID]
		o := Outcome{ChainID: c.ID, EventID: c.EventID, Status: model.ChainExpired, Round: round}
		if ch, ok := ev.Choice(ev.DefaultChoice); ok && ev.DefaultChoice != "" {
			st.ApplyEffects(ch.Effects, e.tun.AttentionPerRisk)
			e.schedule(st, ev.ID, ch.Unlocks, round)
			o.Choice = ch.ID
		} else {
			st.ApplyEffects(ev.Forfeit, e.tun.AttentionPerRisk)
		}
		c = &st.Chains[i]
		c.Status = model.ChainExpired
		st.Stats.ChainsExpired++
		out = append(out, o)
	}
	compact(st)
	return out
}

// window is how many rounds a chain of ev may wait, for a choice or for its trigger.
func (e *Engine) window(ev catalogs.EventDef) int {
	if ev.ExpiresAfter > 0 {
		return ev.ExpiresAfter
	}
	return e.tun.ChoiceWindowRounds
}

// schedule queues follow-ups of origin. A follow-up whose trigger still fails at
// fireRound + window is dropped by CleanupExpiredChains.
func (e *Engine) schedule(st *model.State, origin string, ids []string, fireRound int) {
	for _, id := range ids {
		ev, ok := e.cats.Events[id]
		if !ok {
			continue
		}
		st.Chains = append(st.Chains, model.Chain{
			ID:        st.NextChainID(),
			EventID:   id,
			Status:    model.ChainScheduled,
			FireRound: fireRound,
			Deadline:  fireRound + e.window(ev),
			Origin:    origin,
		})
	}
}

func hasActiveChain(st *model.State, eventID string) bool {
	for _, c := range st.Chains {
		if c.EventID == eventID && c.Active() {
			return true
		}
	}
	return false
}

func compact(st *model.State) {
	kept := st.Chains[:0:0]
	for _, c := range st.Chains {
		if c.Active() {
			kept = append(kept, c)
		}
	}
	st.Chains = kept
}
