package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"whisperwire.ai/internal/sim/condition"
)

var (
	ErrDuplicateID  = errors.New("duplicate id")
	ErrUnknownRef   = errors.New("unknown reference")
	ErrBadCondition = errors.New("malformed condition")
	ErrBadValue     = errors.New("invalid value")
	ErrSchema       = errors.New("schema violation")
)

// LoadErrors collects every problem found while loading definitions.
type LoadErrors []error

func (e LoadErrors) Error() string {
	parts := make([]string, 0, len(e))
	for _, err := range e {
		parts = append(parts, err.Error())
	}
	return fmt.Sprintf("%d definition error(s): %s", len(e), strings.Join(parts, "; "))
}

func (e LoadErrors) Unwrap() []error { return e }

// Err returns nil for an empty list.
func (e LoadErrors) Err() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

// Catalogs is the validated, indexed form of Definitions. It is immutable once built.
type Catalogs struct {
	Actors    []ActorDef
	Abilities map[string]AbilityDef
	Events    map[string]EventDef
	Combos    []ComboDef
	Links     []CategoryLink

	AbilityOrder []string
	EventOrder   []string

	actorIndex map[string]int
	conditions map[string]*condition.Expr

	Digest string
}

func (c *Catalogs) Actor(id string) (ActorDef, bool) {
	i, ok := c.actorIndex[id]
	if !ok {
		return ActorDef{}, false
	}
	return c.Actors[i], true
}

// Condition returns the compiled form of a condition source seen at compile time.
// Unknown or empty sources yield nil (always true).
func (c *Catalogs) Condition(src string) *condition.Expr {
	if c == nil || strings.TrimSpace(src) == "" {
		return nil
	}
	return c.conditions[src]
}

// Compile validates defs and builds the indexed catalogs. Every problem is reported;
// the catalogs are only returned when the list is empty.
func Compile(defs Definitions) (*Catalogs, LoadErrors) {
	c := &Catalogs{
		Abilities:  map[string]AbilityDef{},
		Events:     map[string]EventDef{},
		actorIndex: map[string]int{},
		conditions: map[string]*condition.Expr{},
	}
	var errs LoadErrors
	add := func(err error) { errs = append(errs, err) }

	categories := map[string]struct{}{}
	for i, a := range defs.Actors {
		if strings.TrimSpace(a.ID) == "" {
			add(fmt.Errorf("actor #%d: empty id: %w", i, ErrBadValue))
			continue
		}
		if _, dup := c.actorIndex[a.ID]; dup {
			add(fmt.Errorf("actor %q: %w", a.ID, ErrDuplicateID))
			continue
		}
		unit := []struct {
			name string
			v    float64
		}{{"trust", a.Trust}, {"resilience", a.Resilience}, {"emotional_state", a.EmotionalState}}
		for _, u := range unit {
			if u.v < 0 || u.v > 1 {
				add(fmt.Errorf("actor %q: %s %v outside [0,1]: %w", a.ID, u.name, u.v, ErrBadValue))
			}
		}
		if a.RecoveryRate < 0 {
			add(fmt.Errorf("actor %q: negative recovery_rate: %w", a.ID, ErrBadValue))
		}
		c.actorIndex[a.ID] = len(c.Actors)
		c.Actors = append(c.Actors, a)
		categories[a.Category] = struct{}{}
	}
	for _, a := range c.Actors {
		for _, l := range a.Connections {
			if _, ok := c.actorIndex[l.Target]; !ok {
				add(fmt.Errorf("actor %q: connection to %q: %w", a.ID, l.Target, ErrUnknownRef))
			} else if l.Target == a.ID {
				add(fmt.Errorf("actor %q: self connection: %w", a.ID, ErrBadValue))
			}
			if l.Strength < 0 || l.Strength > 1 {
				add(fmt.Errorf("actor %q: connection strength %v outside [0,1]: %w", a.ID, l.Strength, ErrBadValue))
			}
		}
	}

	for i, l := range defs.Links {
		for _, cat := range []string{l.From, l.To} {
			if _, ok := categories[cat]; !ok {
				add(fmt.Errorf("link #%d: category %q: %w", i, cat, ErrUnknownRef))
			}
		}
		if l.Strength < 0 || l.Strength > 1 || l.Probability < 0 || l.Probability > 1 {
			add(fmt.Errorf("link #%d: strength/probability outside [0,1]: %w", i, ErrBadValue))
		}
	}
	c.Links = append(c.Links, defs.Links...)

	for i, ab := range defs.Abilities {
		if strings.TrimSpace(ab.ID) == "" {
			add(fmt.Errorf("ability #%d: empty id: %w", i, ErrBadValue))
			continue
		}
		if _, dup := c.Abilities[ab.ID]; dup {
			add(fmt.Errorf("ability %q: %w", ab.ID, ErrDuplicateID))
			continue
		}
		if ab.TargetType < TargetSingle || ab.TargetType > TargetNetwork {
			add(fmt.Errorf("ability %q: missing target_type: %w", ab.ID, ErrBadValue))
		}
		if ab.DiminishingFactor <= 0 || ab.DiminishingFactor > 1 {
			add(fmt.Errorf("ability %q: diminishing_factor %v outside (0,1]: %w", ab.ID, ab.DiminishingFactor, ErrBadValue))
		}
		if ab.Cooldown < 0 || ab.Effect.Duration < 0 {
			add(fmt.Errorf("ability %q: negative cooldown/duration: %w", ab.ID, ErrBadValue))
		}
		if ab.Cost.Money < 0 || ab.Cost.Attention < 0 || ab.Cost.Infrastructure < 0 {
			add(fmt.Errorf("ability %q: negative cost: %w", ab.ID, ErrBadValue))
		}
		c.Abilities[ab.ID] = ab
		c.AbilityOrder = append(c.AbilityOrder, ab.ID)
	}

	for i, ev := range defs.Events {
		if strings.TrimSpace(ev.ID) == "" {
			add(fmt.Errorf("event #%d: empty id: %w", i, ErrBadValue))
			continue
		}
		if _, dup := c.Events[ev.ID]; dup {
			add(fmt.Errorf("event %q: %w", ev.ID, ErrDuplicateID))
			continue
		}
		c.Events[ev.ID] = ev
		c.EventOrder = append(c.EventOrder, ev.ID)
	}
	for _, id := range c.EventOrder {
		ev := c.Events[id]
		where := fmt.Sprintf("event %q", id)
		for _, n := range ev.Next {
			if _, ok := c.Events[n]; !ok {
				add(fmt.Errorf("%s: next %q: %w", where, n, ErrUnknownRef))
			}
		}
		if ev.Chance < 0 || ev.Chance > 1 {
			add(fmt.Errorf("%s: chance %v outside [0,1]: %w", where, ev.Chance, ErrBadValue))
		}
		errs = append(errs, c.compileCondition(where+" trigger", ev.Trigger)...)
		errs = append(errs, c.checkEffects(where, ev.Effects)...)
		errs = append(errs, c.checkEffects(where+" forfeit", ev.Forfeit)...)
		seen := map[string]struct{}{}
		for _, ch := range ev.Choices {
			cw := fmt.Sprintf("%s choice %q", where, ch.ID)
			if _, dup := seen[ch.ID]; dup || ch.ID == "" {
				add(fmt.Errorf("%s: %w", cw, ErrDuplicateID))
			}
			seen[ch.ID] = struct{}{}
			for _, u := range ch.Unlocks {
				if _, ok := c.Events[u]; !ok {
					add(fmt.Errorf("%s: unlock %q: %w", cw, u, ErrUnknownRef))
				}
			}
			errs = append(errs, c.compileCondition(cw, ch.Condition)...)
			errs = append(errs, c.checkEffects(cw, ch.Effects)...)
		}
		if ev.DefaultChoice != "" {
			if _, ok := seen[ev.DefaultChoice]; !ok {
				add(fmt.Errorf("%s: default_choice %q: %w", where, ev.DefaultChoice, ErrUnknownRef))
			}
		}
	}

	comboIDs := map[string]struct{}{}
	for i, cb := range defs.Combos {
		if strings.TrimSpace(cb.ID) == "" {
			add(fmt.Errorf("combo #%d: empty id: %w", i, ErrBadValue))
			continue
		}
		if _, dup := comboIDs[cb.ID]; dup {
			add(fmt.Errorf("combo %q: %w", cb.ID, ErrDuplicateID))
			continue
		}
		comboIDs[cb.ID] = struct{}{}
		if len(cb.Sequence) == 0 {
			add(fmt.Errorf("combo %q: empty sequence: %w", cb.ID, ErrBadValue))
		}
		for _, step := range cb.Sequence {
			if _, ok := c.Abilities[step]; !ok {
				add(fmt.Errorf("combo %q: step %q: %w", cb.ID, step, ErrUnknownRef))
			}
		}
		errs = append(errs, c.compileCondition(fmt.Sprintf("combo %q", cb.ID), cb.Condition)...)
		c.Combos = append(c.Combos, cb)
	}

	if len(errs) > 0 {
		return nil, errs
	}
	raw, _ := json.Marshal(defs)
	sum := sha256.Sum256(raw)
	c.Digest = hex.EncodeToString(sum[:])
	return c, nil
}

func (c *Catalogs) compileCondition(where, src string) LoadErrors {
	if strings.TrimSpace(src) == "" {
		return nil
	}
	if _, done := c.conditions[src]; done {
		return nil
	}
	expr, err := condition.Parse(src)
	if err != nil {
		return LoadErrors{fmt.Errorf("%s: %q: %v: %w", where, src, err, ErrBadCondition)}
	}
	var errs LoadErrors
	for _, name := range expr.Identifiers() {
		if IsGlobalVar(name) {
			continue
		}
		if actorID, _, ok := SplitActorVar(name); ok {
			if _, known := c.actorIndex[actorID]; known {
				continue
			}
		}
		errs = append(errs, fmt.Errorf("%s: identifier %q: %w", where, name, ErrUnknownRef))
	}
	if len(errs) == 0 {
		c.conditions[src] = expr
	}
	return errs
}

func (c *Catalogs) checkEffects(where string, effects []Effect) LoadErrors {
	var errs LoadErrors
	for _, e := range effects {
		for _, id := range e.Actors {
			if _, ok := c.actorIndex[id]; !ok {
				errs = append(errs, fmt.Errorf("%s: effect actor %q: %w", where, id, ErrUnknownRef))
			}
		}
	}
	return errs
}
