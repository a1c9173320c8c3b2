// Package combo detects ordered ability sequences across rounds.
package combo

import (
	"fmt"
	"io"
	"log"

	"whisperwire.ai/internal/sim/catalogs"
	"whisperwire.ai/internal/sim/model"
)

type Completion struct {
	ComboID string              `json:"combo_id"`
	Round   int                 `json:"round"`
	Bonus   catalogs.ComboBonus `json:"bonus"`
}

// Tracker holds combo definitions; progress lives in the state it is handed.
type Tracker struct {
	cats          *catalogs.Catalogs
	defaultWindow int
	lowTrust      float64
	logger        *log.Logger
}

func NewTracker(cats *catalogs.Catalogs, defaultWindow int, lowTrustThreshold float64, logger *log.Logger) *Tracker {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if defaultWindow <= 0 {
		defaultWindow = 3
	}
	return &Tracker{cats: cats, defaultWindow: defaultWindow, lowTrust: lowTrustThreshold, logger: logger}
}

func (t *Tracker) window(def catalogs.ComboDef) int {
	if def.Window > 0 {
		return def.Window
	}
	return t.defaultWindow
}

func (t *Tracker) def(id string) (catalogs.ComboDef, bool) {
	for _, d := range t.cats.Combos {
		if d.ID == id {
			return d, true
		}
	}
	return catalogs.ComboDef{}, false
}

// Notify records a successful use of abilityID. In-progress combos whose next step
// matches advance; combos not in progress whose first step matches start. Completed
// combos leave the progress list and are returned in definition order.
func (t *Tracker) Notify(st *model.State, abilityID string, round int) []Completion {
	var done []Completion
	inProgress := make(map[string]struct{}, len(st.Combos))
	kept := st.Combos[:0:0]
	for _, p := range st.Combos {
		inProgress[p.ComboID] = struct{}{}
		def, ok := t.def(p.ComboID)
		if !ok {
			continue
		}
		if p.Step < len(def.Sequence) && def.Sequence[p.Step] == abilityID {
			p.Step++
			p.ExpiresRound = round + t.window(def)
			if p.Step == len(def.Sequence) {
				done = append(done, Completion{ComboID: def.ID, Round: round, Bonus: def.Bonus})
				continue
			}
		}
		kept = append(kept, p)
	}

	for _, def := range t.cats.Combos {
		if _, busy := inProgress[def.ID]; busy {
			continue
		}
		if len(def.Sequence) == 0 || def.Sequence[0] != abilityID {
			continue
		}
		where := fmt.Sprintf("combo %s", def.ID)
		if !model.Check(t.cats.Condition(def.Condition), st.Env(t.lowTrust), t.logger, where) {
			continue
		}
		if len(def.Sequence) == 1 {
			done = append(done, Completion{ComboID: def.ID, Round: round, Bonus: def.Bonus})
			continue
		}
		kept = append(kept, model.ComboProgress{
			ComboID:      def.ID,
			Step:         1,
			StartedRound: round,
			ExpiresRound: round + t.window(def),
		})
	}
	st.Combos = kept
	st.Stats.CombosCompleted += len(done)
	return done
}

// Expire drops progress whose window closed before round.
func (t *Tracker) Expire(st *model.State, round int) []string {
	var dropped []string
	kept := st.Combos[:0:0]
	for _, p := range st.Combos {
		if p.ExpiresRound < round {
			dropped = append(dropped, p.ComboID)
			continue
		}
		kept = append(kept, p)
	}
	st.Combos = kept
	return dropped
}
