package model

import (
	"bytes"
	"log"
	"strings"
	"testing"

	"whisperwire.ai/internal/sim/catalogs"
	"whisperwire.ai/internal/sim/condition"
	"whisperwire.ai/internal/sim/network"
)

func testState() *State {
	net := network.New([]network.Actor{
		{ID: "a", Category: "media", Trust: 0.5},
		{ID: "b", Category: "citizen", Trust: 0.2},
	}, []network.Connection{{Source: "a", Target: "b", Strength: 0.5}})
	return NewState("SEEDSEEDSEED", net, Resources{Money: 150})
}

func TestSnapshotIsDeep(t *testing.T) {
	s := testState()
	s.Network.Actor("a").SetCooldown("rumor", 2)
	s.Usage[UsageKey("rumor", "a")] = Usage{Count: 1, LastRound: 1}
	s.Combos = append(s.Combos, ComboProgress{ComboID: "c", Step: 1})
	snap := s.Snapshot()

	s.Network.Actor("a").Trust = 0
	s.Network.Actor("a").SetCooldown("rumor", 9)
	s.Usage[UsageKey("rumor", "a")] = Usage{Count: 5}
	s.Combos[0].Step = 2

	if snap.Network.Actor("a").Trust != 0.5 || snap.Network.Actor("a").Cooldown("rumor") != 2 {
		t.Fatalf("snapshot network shares memory")
	}
	if snap.Usage[UsageKey("rumor", "a")].Count != 1 || snap.Combos[0].Step != 1 {
		t.Fatalf("snapshot maps/slices share memory")
	}
}

func TestPushHistoryCap(t *testing.T) {
	s := testState()
	for i := 1; i <= 5; i++ {
		s.Round = i
		s.PushHistory(s.Snapshot(), 3)
	}
	if len(s.History) != 3 || s.History[0].Round != 3 || s.History[2].Round != 5 {
		t.Fatalf("history: len=%d first=%d", len(s.History), s.History[0].Round)
	}
}

func TestApplyEffectTargets(t *testing.T) {
	s := testState()
	s.ApplyEffect(catalogs.Effect{Category: "citizen", TrustDelta: -0.5, Attention: 30, Money: -500}, 100)
	if s.Network.Actor("b").Trust != 0 || s.Network.Actor("a").Trust != 0.5 {
		t.Fatalf("category effect misapplied")
	}
	if s.Resources.Money != 0 || s.Resources.Attention != 30 || s.DetectionRisk != 0.3 {
		t.Fatalf("resources: %+v risk=%v", s.Resources, s.DetectionRisk)
	}
	s.ApplyEffect(catalogs.Effect{Defeat: true}, 100)
	if !s.ForcedDefeat {
		t.Fatalf("defeat flag not set")
	}
}

func TestEnvLookup(t *testing.T) {
	s := testState()
	s.Round = 4
	env := s.Env(0.3)
	cases := map[string]float64{
		"round":              4,
		"money":              150,
		"low_trust_fraction": 0.5,
		"actor.b.trust":      0.2,
	}
	for name, want := range cases {
		got, ok := env.Lookup(name)
		if !ok || got != want {
			t.Fatalf("%s: got %v,%v want %v", name, got, ok, want)
		}
	}
	if _, ok := env.Lookup("actor.zz.trust"); ok {
		t.Fatalf("unknown actor resolved")
	}
}

func TestCheckLogsAndFails(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&buf, "", 0)
	s := testState()
	expr := condition.MustParse("ghost > 1")
	if Check(expr, s.Env(0.3), logger, "event x") {
		t.Fatalf("unbound identifier should evaluate false")
	}
	if !strings.Contains(buf.String(), "warn: event x") {
		t.Fatalf("missing warning: %q", buf.String())
	}
	if !Check(nil, s.Env(0.3), logger, "") {
		t.Fatalf("nil condition should hold")
	}
}

func TestResourcesAfford(t *testing.T) {
	r := Resources{Money: 20, Infrastructure: 1}
	if !r.CanAfford(catalogs.Cost{Money: 20, Attention: 500}) {
		t.Fatalf("attention must not gate affordability")
	}
	if r.CanAfford(catalogs.Cost{Infrastructure: 2}) {
		t.Fatalf("infrastructure gate missing")
	}
	r.Pay(catalogs.Cost{Money: 20, Attention: 5, Infrastructure: 1})
	if r.Money != 0 || r.Attention != 5 || r.Infrastructure != 0 {
		t.Fatalf("pay: %+v", r)
	}
}
