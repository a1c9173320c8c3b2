package combo

import (
	"testing"

	"whisperwire.ai/internal/sim/catalogs"
	"whisperwire.ai/internal/sim/model"
	"whisperwire.ai/internal/sim/network"
)

func setup(t *testing.T, combos []catalogs.ComboDef) (*Tracker, *model.State) {
	t.Helper()
	defs := catalogs.Definitions{
		Actors: []catalogs.ActorDef{{ID: "a", Category: "citizen", Trust: 0.5}},
		Abilities: []catalogs.AbilityDef{
			{ID: "rumor", TargetType: catalogs.TargetSingle, DiminishingFactor: 1},
			{ID: "smear", TargetType: catalogs.TargetSingle, DiminishingFactor: 1},
			{ID: "swarm", TargetType: catalogs.TargetNetwork, DiminishingFactor: 1},
		},
		Combos: combos,
	}
	cats, errs := catalogs.Compile(defs)
	if len(errs) != 0 {
		t.Fatalf("compile: %v", errs)
	}
	st := model.NewState("SEEDSEEDSEED", network.Build(cats.Actors, nil, nil), model.Resources{Money: 150})
	return NewTracker(cats, 3, 0.3, nil), st
}

func TestSequenceCompletes(t *testing.T) {
	tr, st := setup(t, []catalogs.ComboDef{
		{ID: "whisper", Sequence: []string{"rumor", "smear"}, Window: 2, Bonus: catalogs.ComboBonus{Money: 20}},
	})
	if done := tr.Notify(st, "rumor", 1); len(done) != 0 {
		t.Fatalf("completed too early: %v", done)
	}
	if len(st.Combos) != 1 || st.Combos[0].Step != 1 || st.Combos[0].ExpiresRound != 3 {
		t.Fatalf("progress: %+v", st.Combos)
	}
	tr.Notify(st, "swarm", 2)
	if len(st.Combos) != 1 || st.Combos[0].Step != 1 {
		t.Fatalf("unrelated ability changed progress: %+v", st.Combos)
	}
	done := tr.Notify(st, "smear", 2)
	if len(done) != 1 || done[0].ComboID != "whisper" || done[0].Bonus.Money != 20 {
		t.Fatalf("completion: %+v", done)
	}
	if len(st.Combos) != 0 || st.Stats.CombosCompleted != 1 {
		t.Fatalf("completed combo should leave progress: %+v", st.Combos)
	}
}

func TestConcurrentCombosFromSameAbility(t *testing.T) {
	tr, st := setup(t, []catalogs.ComboDef{
		{ID: "one", Sequence: []string{"rumor", "smear"}},
		{ID: "two", Sequence: []string{"rumor", "swarm"}},
	})
	tr.Notify(st, "rumor", 1)
	if len(st.Combos) != 2 {
		t.Fatalf("both combos should start: %+v", st.Combos)
	}
	done := tr.Notify(st, "swarm", 1)
	if len(done) != 1 || done[0].ComboID != "two" {
		t.Fatalf("completion: %+v", done)
	}
	if len(st.Combos) != 1 || st.Combos[0].ComboID != "one" {
		t.Fatalf("remaining progress: %+v", st.Combos)
	}
}

func TestRepeatedStepDoesNotRestart(t *testing.T) {
	tr, st := setup(t, []catalogs.ComboDef{
		{ID: "echo", Sequence: []string{"rumor", "rumor"}},
	})
	tr.Notify(st, "rumor", 1)
	done := tr.Notify(st, "rumor", 1)
	if len(done) != 1 {
		t.Fatalf("echo should complete on second rumor: %+v", done)
	}
	if len(st.Combos) != 0 {
		t.Fatalf("completed combo restarted: %+v", st.Combos)
	}
}

func TestExpire(t *testing.T) {
	tr, st := setup(t, []catalogs.ComboDef{
		{ID: "whisper", Sequence: []string{"rumor", "smear"}, Window: 2},
	})
	tr.Notify(st, "rumor", 1)
	if dropped := tr.Expire(st, 3); len(dropped) != 0 {
		t.Fatalf("expired inside window: %v", dropped)
	}
	dropped := tr.Expire(st, 4)
	if len(dropped) != 1 || len(st.Combos) != 0 {
		t.Fatalf("should expire after window: %v %+v", dropped, st.Combos)
	}
}

func TestConditionGatesStart(t *testing.T) {
	tr, st := setup(t, []catalogs.ComboDef{
		{ID: "quiet", Sequence: []string{"rumor", "smear"}, Condition: "attention < 10"},
	})
	st.Resources.Attention = 20
	tr.Notify(st, "rumor", 1)
	if len(st.Combos) != 0 {
		t.Fatalf("condition should block start")
	}
	st.Resources.Attention = 5
	tr.Notify(st, "rumor", 1)
	if len(st.Combos) != 1 {
		t.Fatalf("condition should allow start")
	}
}
