package game

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"whisperwire.ai/internal/sim/catalogs"
	"whisperwire.ai/internal/sim/model"
	"whisperwire.ai/internal/sim/rng"
	"whisperwire.ai/internal/sim/tuning"
)

const testSeed = "Abc123Xyz789"

func testDefs() catalogs.Definitions {
	return catalogs.Definitions{
		Actors: []catalogs.ActorDef{
			{ID: "boss", Category: "official", Trust: 0.6, Resilience: 0.5,
				Connections: []catalogs.LinkDef{{Target: "anna", Strength: 0.7}, {Target: "ben", Strength: 0.4}}},
			{ID: "anna", Category: "citizen", Trust: 0.7, Resilience: 0.3, RecoveryRate: 0.1},
			{ID: "ben", Category: "citizen", Trust: 0.65, Resilience: 0.6},
		},
		Abilities: []catalogs.AbilityDef{
			{ID: "rumor", TargetType: catalogs.TargetSingle, Cost: catalogs.Cost{Money: 20, Attention: 5},
				Cooldown: 2, Effect: catalogs.AbilityEffect{TrustDelta: -0.2}, DiminishingFactor: 0.7},
			{ID: "leak", TargetType: catalogs.TargetSingle, Cost: catalogs.Cost{Attention: 25},
				Effect: catalogs.AbilityEffect{TrustDelta: -0.01}, DiminishingFactor: 1},
			{ID: "smear", TargetType: catalogs.TargetAdjacent, Cost: catalogs.Cost{Money: 10, Attention: 2},
				Cooldown: 1, Effect: catalogs.AbilityEffect{TrustDelta: -0.1}, DiminishingFactor: 0.9},
		},
		Combos: []catalogs.ComboDef{
			{ID: "whisper", Sequence: []string{"rumor", "smear"}, Window: 2,
				Bonus: catalogs.ComboBonus{Money: 20, AttentionRelief: 3}},
		},
		Events: []catalogs.EventDef{
			{ID: "audit", Root: true, Trigger: "round >= 2", Chance: 0.5,
				Choices: []catalogs.ChoiceDef{{ID: "pay", Cost: catalogs.Cost{Money: 10}}, {ID: "stall"}},
				DefaultChoice: "stall", ExpiresAfter: 1},
		},
	}
}

func newManager(t *testing.T, tun tuning.Tuning) *Manager {
	t.Helper()
	m := New(tun, nil)
	if errs := m.LoadDefinitions(testDefs()); len(errs) != 0 {
		t.Fatalf("load: %v", errs)
	}
	if err := m.StartGame(testSeed); err != nil {
		t.Fatalf("start: %v", err)
	}
	return m
}

func TestStartGameDefaults(t *testing.T) {
	m := newManager(t, tuning.Defaults())
	st := m.State()
	if st.Resources != (model.Resources{Money: 150}) {
		t.Fatalf("resources: %+v", st.Resources)
	}
	if st.Round != 1 || st.DetectionRisk != 0 || st.Phase != model.PhasePlaying {
		t.Fatalf("round=%d risk=%v phase=%s", st.Round, st.DetectionRisk, st.Phase)
	}
	if st.Seed != testSeed {
		t.Fatalf("seed: %q", st.Seed)
	}
}

func TestStartGameSeeds(t *testing.T) {
	m := New(tuning.Defaults(), nil)
	if err := m.StartGame(testSeed); !errors.Is(err, ErrNotLoaded) {
		t.Fatalf("start before load: %v", err)
	}
	m.LoadDefinitions(testDefs())
	if err := m.StartGame("bad seed!"); !errors.Is(err, ErrInvalidSeed) {
		t.Fatalf("invalid seed: %v", err)
	}
	if err := m.StartGame(""); err != nil {
		t.Fatalf("generated seed: %v", err)
	}
	if !rng.IsValidSeed(m.State().Seed) {
		t.Fatalf("generated seed invalid: %q", m.State().Seed)
	}
}

func TestLoadErrorsBlockStart(t *testing.T) {
	defs := testDefs()
	defs.Actors = append(defs.Actors, defs.Actors[0])
	defs.Combos[0].Sequence = []string{"rumor", "ghost"}
	defs.Events[0].Trigger = "round >="

	m := New(tuning.Defaults(), nil)
	errs := m.LoadDefinitions(defs)
	if len(errs) != 3 {
		t.Fatalf("expected 3 errors, got %v", errs)
	}
	if err := m.StartGame(testSeed); !errors.Is(err, ErrDefinitions) {
		t.Fatalf("start after rejected load: %v", err)
	}
	if m.State().Phase != model.PhaseSetup {
		t.Fatalf("phase should stay setup")
	}
}

func TestExposureBeatsTimeout(t *testing.T) {
	m := newManager(t, tuning.Defaults())
	for i := 0; i < 4; i++ {
		if !m.ApplyAbility("leak", "boss", []string{"anna"}) {
			t.Fatalf("leak %d rejected", i+1)
		}
	}
	if m.State().DetectionRisk < 0.85 {
		t.Fatalf("risk %v below exposure", m.State().DetectionRisk)
	}
	m.st.Round = m.tun.MaxRounds + 3
	reason, lost := m.CheckDefeat()
	if !lost || reason != model.DefeatExposure {
		t.Fatalf("got %q,%v want exposure", reason, lost)
	}
}

func TestAdvanceRound(t *testing.T) {
	m := newManager(t, tuning.Defaults())
	if !m.ApplyAbility("rumor", "boss", []string{"ben"}) {
		t.Fatalf("rumor rejected")
	}
	before := m.State()
	rep, err := m.AdvanceRound()
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	after := m.State()
	if math.Abs(after.Resources.Attention-before.Resources.Attention*0.85) > 1e-9 {
		t.Fatalf("attention %v -> %v", before.Resources.Attention, after.Resources.Attention)
	}
	if after.Resources.Money < before.Resources.Money+m.tun.Income.Base {
		t.Fatalf("money %v -> %v", before.Resources.Money, after.Resources.Money)
	}
	boss, _ := m.Actor("boss")
	if boss.Cooldown("rumor") != 1 {
		t.Fatalf("cooldown after advance: %d", boss.Cooldown("rumor"))
	}
	if after.Round != before.Round+1 || rep.Round != before.Round {
		t.Fatalf("round %d -> %d (report %d)", before.Round, after.Round, rep.Round)
	}
	if len(after.History) != 1 {
		t.Fatalf("history len %d", len(after.History))
	}
	if math.Abs(after.DetectionRisk-after.Resources.Attention/100) > 1e-12 {
		t.Fatalf("risk not recomputed")
	}
}

func TestRecoveryAndHold(t *testing.T) {
	m := newManager(t, tuning.Defaults())
	m.ApplyAbility("rumor", "boss", []string{"anna"})
	hit, _ := m.Actor("anna")
	m.AdvanceRound()
	healed, _ := m.Actor("anna")
	if !(healed.Trust > hit.Trust && healed.Trust < healed.BaseTrust) {
		t.Fatalf("recovery toward base: %v -> %v (base %v)", hit.Trust, healed.Trust, healed.BaseTrust)
	}

	m.st.Holds["anna"] = 1
	held, _ := m.Actor("anna")
	m.AdvanceRound()
	after, _ := m.Actor("anna")
	if after.Trust != held.Trust {
		t.Fatalf("held actor recovered: %v -> %v", held.Trust, after.Trust)
	}
	if _, ok := m.st.Holds["anna"]; ok {
		t.Fatalf("hold should be consumed")
	}
}

func TestUndoRestoresPreAdvance(t *testing.T) {
	m := newManager(t, tuning.Defaults())
	m.ApplyAbility("rumor", "boss", []string{"anna"})
	m.ApplyAbility("smear", "boss", []string{"anna", "ben"})
	before := m.State()
	digest := m.Digest()

	if _, err := m.AdvanceRound(); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if m.Digest() == digest {
		t.Fatalf("advance did not change state")
	}
	if !m.Undo() {
		t.Fatalf("undo rejected")
	}
	if m.Digest() != digest {
		t.Fatalf("digest after undo differs")
	}
	after := m.State()
	if !reflect.DeepEqual(before.Snapshot(), after.Snapshot()) {
		t.Fatalf("undo did not restore exactly:\nbefore %+v\nafter  %+v", before.Resources, after.Resources)
	}
	if m.Undo() {
		t.Fatalf("undo with empty history should fail")
	}
}

func TestUndoRestoresGenerator(t *testing.T) {
	m := newManager(t, tuning.Defaults())
	m.AdvanceRound()
	d1 := m.Digest()
	m.AdvanceRound()
	want := m.Digest()
	m.Undo()
	if m.Digest() != d1 {
		t.Fatalf("undo digest mismatch")
	}
	m.AdvanceRound()
	if m.Digest() != want {
		t.Fatalf("re-advancing after undo diverged: event rolls must reuse the restored generator state")
	}
}

func TestTimeoutDefeat(t *testing.T) {
	tun := tuning.Defaults()
	tun.MaxRounds = 2
	m := newManager(t, tun)
	m.AdvanceRound()
	if m.State().Phase != model.PhasePlaying {
		t.Fatalf("ended early")
	}
	rep, _ := m.AdvanceRound()
	if rep.Phase != model.PhaseDefeat || rep.DefeatReason != model.DefeatTimeout {
		t.Fatalf("report: %s %s", rep.Phase, rep.DefeatReason)
	}
	if _, err := m.AdvanceRound(); !errors.Is(err, ErrNotPlaying) {
		t.Fatalf("advance after defeat: %v", err)
	}
	if m.ApplyAbility("rumor", "boss", []string{"anna"}) {
		t.Fatalf("ability accepted after defeat")
	}
}

func TestVictory(t *testing.T) {
	tun := tuning.Defaults()
	tun.VictoryTrustThreshold = 0.62
	tun.VictoryPercentage = 0.6
	m := newManager(t, tun)
	if m.CheckVictory() {
		t.Fatalf("victory before any play")
	}
	m.ApplyAbility("rumor", "boss", []string{"anna"})
	if !m.CheckVictory() {
		t.Fatalf("two of three actors at or below 0.62 should win")
	}
	m.st.Network.Actor("anna").RecoveryRate = 0
	rep, _ := m.AdvanceRound()
	if rep.Phase != model.PhaseVictory {
		t.Fatalf("phase %s", rep.Phase)
	}
	sum := m.Summary()
	if sum.Outcome != model.PhaseVictory || sum.Rounds != 1 || sum.Score <= 0 {
		t.Fatalf("summary: %+v", sum)
	}
}

func TestComboBonusThroughManager(t *testing.T) {
	m := newManager(t, tuning.Defaults())
	m.ApplyAbility("rumor", "boss", []string{"anna"})
	out, ok := m.UseAbility("smear", "boss", []string{"ben"})
	if !ok || len(out.Combos) != 1 || out.Combos[0].ComboID != "whisper" {
		t.Fatalf("combo: ok=%v %+v", ok, out.Combos)
	}
	st := m.State()
	// 150 - 20 - 10 + 20
	if st.Resources.Money != 140 || st.Resources.Attention != 4 {
		t.Fatalf("bonus not applied: %+v", st.Resources)
	}
	if st.Stats.CombosCompleted != 1 {
		t.Fatalf("stats: %+v", st.Stats)
	}
}

func TestStateIsACopy(t *testing.T) {
	m := newManager(t, tuning.Defaults())
	st := m.State()
	st.Resources.Money = 0
	st.Network.Actor("anna").Trust = 0
	a, _ := m.Actor("anna")
	a.Trust = 0
	if m.State().Resources.Money != 150 || m.st.Network.Actor("anna").Trust != 0.7 {
		t.Fatalf("accessor leaked live state")
	}
}

func TestHistoryCap(t *testing.T) {
	tun := tuning.Defaults()
	tun.HistoryCap = 3
	m := newManager(t, tun)
	for i := 0; i < 6; i++ {
		m.AdvanceRound()
	}
	if got := len(m.State().History); got != 3 {
		t.Fatalf("history len %d", got)
	}
}

func TestInvariantsHoldUnderPlay(t *testing.T) {
	m := newManager(t, tuning.Defaults())
	script := []func(){
		func() { m.ApplyAbility("rumor", "boss", []string{"anna"}) },
		func() { m.ApplyAbility("smear", "boss", []string{"anna", "ben"}) },
		func() { m.AdvanceRound() },
		func() { m.ApplyAbility("rumor", "boss", []string{"ben"}) },
		func() { m.AdvanceRound() },
		func() { m.AdvanceRound() },
	}
	for round := 0; round < 3; round++ {
		for _, step := range script {
			step()
			st := m.State()
			for _, a := range st.Network.Actors {
				for _, v := range []float64{a.Trust, a.Resilience, a.EmotionalState} {
					if v < 0 || v > 1 {
						t.Fatalf("%s out of range: %+v", a.ID, a)
					}
				}
				for id, cd := range a.Cooldowns {
					if cd < 0 {
						t.Fatalf("negative cooldown %s=%d", id, cd)
					}
				}
			}
			if st.Resources.Money < 0 || st.Resources.Attention < 0 || st.Resources.Infrastructure < 0 {
				t.Fatalf("negative resources: %+v", st.Resources)
			}
			if st.DetectionRisk < 0 || st.DetectionRisk > 1 {
				t.Fatalf("risk out of range: %v", st.DetectionRisk)
			}
		}
	}
}

func TestChoiceClosesWhenDeadlineRoundEnds(t *testing.T) {
	untilPending := func() (*Manager, PendingChoice) {
		m := newManager(t, tuning.Defaults())
		for i := 0; i < 15; i++ {
			if p := m.PendingChoices(); len(p) > 0 {
				return m, p[0]
			}
			if _, err := m.AdvanceRound(); err != nil {
				t.Fatalf("advance: %v", err)
			}
		}
		t.Fatalf("audit never became pending")
		return nil, PendingChoice{}
	}

	m, p := untilPending()
	if r := m.State().Round; r != p.Deadline {
		t.Fatalf("round %d, deadline %d", r, p.Deadline)
	}
	if !m.ApplyChoice(p.ChainID, "stall") {
		t.Fatalf("choice rejected within deadline round %d", p.Deadline)
	}

	m, p = untilPending()
	if _, err := m.AdvanceRound(); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if got := m.PendingChoices(); len(got) != 0 {
		t.Fatalf("still pending after deadline round: %+v", got)
	}
	if m.ApplyChoice(p.ChainID, "stall") {
		t.Fatalf("choice accepted in round %d after deadline %d", m.State().Round, p.Deadline)
	}
	if st := m.State(); st.Stats.ChainsExpired != 1 {
		t.Fatalf("expired chains: %+v", st.Stats)
	}
}
