package network

import (
	"math"
	"testing"

	"whisperwire.ai/internal/sim/catalogs"
	"whisperwire.ai/internal/sim/rng"
)

func lineNetwork() *Network {
	// a - b - c, and d isolated.
	return New([]Actor{
		{ID: "a", Trust: 0.8, Resilience: 0.3},
		{ID: "b", Trust: 0.6, Resilience: 0.6},
		{ID: "c", Trust: 0.4},
		{ID: "d", Trust: 0.2},
	}, []Connection{
		{Source: "a", Target: "b", Strength: 0.5},
		{Source: "c", Target: "b", Strength: 1},
	})
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestMetrics(t *testing.T) {
	n := lineNetwork()
	if got := n.AverageTrust(); !approx(got, 0.5) {
		t.Fatalf("average trust: got %v", got)
	}
	if got := n.CountAtOrBelow(0.4); got != 2 {
		t.Fatalf("count at or below: got %d", got)
	}
	if got := n.CountAbove(0.6); got != 1 {
		t.Fatalf("count above: got %d", got)
	}
	// |0.3|+|0.1|+|0.1|+|0.3| = 0.8, mean 0.2, doubled 0.4
	if got := n.Polarization(); !approx(got, 0.4) {
		t.Fatalf("polarization: got %v", got)
	}
	m := n.Metrics(0.4, 0.6)
	if m.LowTrust != 2 || m.HighTrust != 1 || !approx(m.LowTrustFraction, 0.5) {
		t.Fatalf("metrics: %+v", m)
	}
	empty := New(nil, nil)
	if empty.AverageTrust() != 0 || empty.Polarization() != 0 {
		t.Fatalf("empty network metrics should be zero")
	}
}

func TestNeighborsAndConnected(t *testing.T) {
	n := lineNetwork()
	got := n.Neighbors("b")
	if len(got) != 2 || got[0] != "a" || got[1] != "c" {
		t.Fatalf("neighbors of b: %v", got)
	}
	if !n.Connected("b", "a") || n.Connected("a", "c") || n.Connected("a", "d") {
		t.Fatalf("connected mismatch")
	}
}

func TestResilienceDampens(t *testing.T) {
	m := DefaultModifiers()
	low := &Actor{Resilience: 0.3}
	high := &Actor{Resilience: 0.6}
	app := Application{Delta: -0.2, DiminishingFactor: 0.7}
	dl := m.TrustDelta(low, app)
	dh := m.TrustDelta(high, app)
	if !(math.Abs(dh) < math.Abs(dl)) {
		t.Fatalf("resilience 0.6 should dampen more: low=%v high=%v", dl, dh)
	}
	if !approx(dl, -0.2*(1-0.15)) {
		t.Fatalf("dampened delta: got %v", dl)
	}
}

func TestModifiersCompose(t *testing.T) {
	m := DefaultModifiers()
	a := &Actor{EmotionalState: 0.8, Vulnerabilities: []string{"fear"}, Resistances: []string{"authority"}}
	got := m.TrustDelta(a, Application{Delta: -0.1, BasedOn: []string{"fear"}, Prior: 2, DiminishingFactor: 0.5})
	want := -0.1 * 1.2 * 1.5 * 0.25
	if !approx(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
	got = m.TrustDelta(a, Application{Delta: -0.1, BasedOn: []string{"authority"}, DiminishingFactor: 1})
	if !approx(got, -0.1*1.2*0.5) {
		t.Fatalf("resistance: got %v", got)
	}
	calm := &Actor{EmotionalState: 0.7}
	if got := m.TrustDelta(calm, Application{Delta: -0.1}); !approx(got, -0.1) {
		t.Fatalf("emotional threshold is exclusive: got %v", got)
	}
}

func TestPropagateIsOneHop(t *testing.T) {
	n := lineNetwork()
	spill := n.Propagate(map[string]float64{"a": -0.2}, 0.5)
	if !approx(spill["b"], -0.2*0.5*0.5) {
		t.Fatalf("b spill: got %v", spill["b"])
	}
	if _, ok := spill["c"]; ok {
		t.Fatalf("propagation must not reach c (two hops)")
	}
	if len(spill) != 1 {
		t.Fatalf("unexpected spill: %v", spill)
	}
	if n.Actors[1].Trust != 0.6 {
		t.Fatalf("Propagate must not mutate")
	}
}

func TestApplyTrustClamps(t *testing.T) {
	n := lineNetwork()
	applied := n.ApplyTrust(map[string]float64{"d": -0.5, "a": 0.5})
	if n.Actor("d").Trust != 0 || n.Actor("a").Trust != 1 {
		t.Fatalf("clamp failed: d=%v a=%v", n.Actor("d").Trust, n.Actor("a").Trust)
	}
	if !approx(applied["d"], -0.2) || !approx(applied["a"], 0.2) {
		t.Fatalf("applied: %v", applied)
	}
}

func TestCooldowns(t *testing.T) {
	a := &Actor{}
	a.SetCooldown("rumor", 2)
	a.SetCooldown("smear", 1)
	a.TickCooldowns()
	if a.Cooldown("rumor") != 1 || a.Cooldown("smear") != 0 {
		t.Fatalf("tick: %v", a.Cooldowns)
	}
	if _, ok := a.Cooldowns["smear"]; ok {
		t.Fatalf("expired cooldown should be removed")
	}
}

func TestCloneIsDeep(t *testing.T) {
	n := lineNetwork()
	n.Actor("a").SetCooldown("rumor", 2)
	c := n.Clone()
	c.Actor("a").Trust = 0
	c.Actor("a").SetCooldown("rumor", 5)
	c.Connections[0].Strength = 0
	if n.Actor("a").Trust != 0.8 || n.Actor("a").Cooldown("rumor") != 2 || n.Connections[0].Strength != 0.5 {
		t.Fatalf("clone shares state with original")
	}
}

func TestBuildDeterministic(t *testing.T) {
	defs := []catalogs.ActorDef{
		{ID: "m", Category: "media", Trust: 0.6, Connections: []catalogs.LinkDef{{Target: "x", Strength: 0.4}}},
		{ID: "x", Category: "citizen", Trust: 0.5, Connections: []catalogs.LinkDef{{Target: "m", Strength: 0.9}}},
		{ID: "y", Category: "citizen", Trust: 0.5},
		{ID: "z", Category: "citizen", Trust: 0.5},
	}
	links := []catalogs.CategoryLink{{From: "citizen", To: "media", Strength: 0.3, Probability: 0.5}}
	a := Build(defs, links, rng.New("SEEDSEEDSEED"))
	b := Build(defs, links, rng.New("SEEDSEEDSEED"))
	if len(a.Connections) != len(b.Connections) {
		t.Fatalf("connection count differs: %d vs %d", len(a.Connections), len(b.Connections))
	}
	for i := range a.Connections {
		if a.Connections[i] != b.Connections[i] {
			t.Fatalf("connection %d differs", i)
		}
	}
	for i := range a.Actors {
		if a.Actors[i].Position != b.Actors[i].Position {
			t.Fatalf("position %d differs", i)
		}
	}
	// the reverse link from x to m is the same unordered pair
	if a.Connections[0].Strength != 0.4 {
		t.Fatalf("first definition wins: %+v", a.Connections[0])
	}
	count := 0
	for _, c := range a.Connections {
		if c.Other("m") == "x" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("duplicate m-x connection")
	}
	if a.Actor("x").BaseTrust != 0.5 {
		t.Fatalf("base trust not recorded")
	}
}
