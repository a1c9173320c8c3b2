package main

import (
	"testing"

	"whisperwire.ai/internal/protocol"
	"whisperwire.ai/internal/sim/catalogs"
)

func testState() protocol.StateMsg {
	return protocol.StateMsg{
		Round:     1,
		Phase:     "playing",
		Resources: protocol.ResourcesObs{Money: 100, Infrastructure: 1},
		Actors: []protocol.ActorObs{
			{ID: "a", Trust: 0.4},
			{ID: "b", Trust: 0.9},
			{ID: "c", Trust: 0.7, Cooldowns: map[string]int{"rumor": 1}},
		},
		Connections: []protocol.ConnectionObs{{Source: "b", Target: "c", Strength: 0.5}},
	}
}

func TestPlannerAnswersEventsFirst(t *testing.T) {
	p := newPlanner(2)
	p.abilities = []catalogs.AbilityDef{{ID: "rumor", TargetType: catalogs.TargetSingle}}
	st := testState()
	st.Pending = []protocol.PendingObs{{ChainID: "ch1", Choices: []protocol.ChoiceObs{{ID: "x"}, {ID: "y", Affordable: true}}}}

	act, _, ok := p.next(st)
	if !ok || act.Command != protocol.CmdChoice || act.Chain != "ch1" || act.Choice != "y" {
		t.Fatalf("expected CHOICE y, got %+v", act)
	}
	act, _, _ = p.next(st)
	if act.Command != protocol.CmdAbility {
		t.Fatalf("chain answered twice: %+v", act)
	}
}

func TestPlannerSpendsThenAdvances(t *testing.T) {
	p := newPlanner(2)
	p.abilities = []catalogs.AbilityDef{
		{ID: "pricey", TargetType: catalogs.TargetSingle, Cost: catalogs.Cost{Money: 500}},
		{ID: "rumor", TargetType: catalogs.TargetSingle},
		{ID: "echo", TargetType: catalogs.TargetAdjacent},
	}
	st := testState()
	p.learnConnections(st.Connections)

	act, key, _ := p.next(st)
	if act.Command != protocol.CmdAbility || act.Ability != "rumor" || act.Source != "b" || len(act.Targets) != 1 || act.Targets[0] != "c" {
		t.Fatalf("first pick: %+v", act)
	}
	if key != "rumor/b" {
		t.Fatalf("key %q", key)
	}

	// c is cooling down on rumor; a is next by trust.
	act, _, _ = p.next(st)
	if act.Ability != "rumor" || act.Source != "a" {
		t.Fatalf("second pick: %+v", act)
	}

	act, _, _ = p.next(st)
	if act.Command != protocol.CmdAdvance {
		t.Fatalf("budget exhausted, expected ADVANCE: %+v", act)
	}

	st.Round = 2
	act, _, _ = p.next(st)
	if act.Command != protocol.CmdAbility {
		t.Fatalf("new round should reset budget: %+v", act)
	}
	if act.ReqID == "" {
		t.Fatalf("missing req id")
	}
}

func TestPlannerAdjacentUsesKnownLinks(t *testing.T) {
	p := newPlanner(1)
	p.abilities = []catalogs.AbilityDef{{ID: "echo", TargetType: catalogs.TargetAdjacent}}
	st := testState()
	p.learnConnections(st.Connections)

	act, _, _ := p.next(st)
	if act.Source != "b" || len(act.Targets) != 1 || act.Targets[0] != "c" {
		t.Fatalf("adjacent pick: %+v", act)
	}
}

func TestPlannerIdleWhenFinished(t *testing.T) {
	p := newPlanner(1)
	st := testState()
	st.Phase = "victory"
	if _, _, ok := p.next(st); ok {
		t.Fatalf("no command expected after the game ends")
	}
}
