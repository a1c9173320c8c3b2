package tuning

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	Start  StartingResources `yaml:"start"`
	Income Income            `yaml:"income"`

	AttentionDecay    float64 `yaml:"attention_decay"`
	AttentionPerRisk  float64 `yaml:"attention_per_risk"`
	ExposureThreshold float64 `yaml:"exposure_threshold"`

	VictoryTrustThreshold float64 `yaml:"victory_trust_threshold"`
	VictoryPercentage     float64 `yaml:"victory_percentage"`
	HighTrustThreshold    float64 `yaml:"high_trust_threshold"`
	MaxRounds             int     `yaml:"max_rounds"`
	HistoryCap            int     `yaml:"history_cap"`

	Effects Effects `yaml:"effects"`

	ComboWindowRounds  int `yaml:"combo_window_rounds"`
	ChoiceWindowRounds int `yaml:"choice_window_rounds"`
}

type StartingResources struct {
	Money          float64 `yaml:"money"`
	Attention      float64 `yaml:"attention"`
	Infrastructure float64 `yaml:"infrastructure"`
}

type Income struct {
	Base              float64 `yaml:"base"`
	PerInfrastructure float64 `yaml:"per_infrastructure"`
}

// Effects are the numeric modifiers of ability resolution.
type Effects struct {
	PropagationFactor       float64 `yaml:"propagation_factor"`
	ResilienceDampening     float64 `yaml:"resilience_dampening"`
	EmotionalThreshold      float64 `yaml:"emotional_threshold"`
	EmotionalMultiplier     float64 `yaml:"emotional_multiplier"`
	VulnerabilityMultiplier float64 `yaml:"vulnerability_multiplier"`
	ResistanceMultiplier    float64 `yaml:"resistance_multiplier"`
	DiminishingResetRounds  int     `yaml:"diminishing_reset_rounds"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion: "1.0",
		Start: StartingResources{
			Money: 150,
		},
		Income: Income{
			Base:              10,
			PerInfrastructure: 2,
		},
		AttentionDecay:        0.15,
		AttentionPerRisk:      100,
		ExposureThreshold:     0.85,
		VictoryTrustThreshold: 0.3,
		VictoryPercentage:     0.6,
		HighTrustThreshold:    0.7,
		MaxRounds:             20,
		HistoryCap:            100,
		Effects: Effects{
			PropagationFactor:       0.5,
			ResilienceDampening:     0.5,
			EmotionalThreshold:      0.7,
			EmotionalMultiplier:     1.2,
			VulnerabilityMultiplier: 1.5,
			ResistanceMultiplier:    0.5,
			DiminishingResetRounds:  4,
		},
		ComboWindowRounds:  3,
		ChoiceWindowRounds: 2,
	}
}

// Load reads a tuning file on top of Defaults; keys absent from the file keep their
// default values.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.Normalize()
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

// Normalize fills zero values that would make the engine degenerate.
func (t *Tuning) Normalize() {
	d := Defaults()
	if t.AttentionPerRisk <= 0 {
		t.AttentionPerRisk = d.AttentionPerRisk
	}
	if t.MaxRounds <= 0 {
		t.MaxRounds = d.MaxRounds
	}
	if t.HistoryCap < 0 {
		t.HistoryCap = 0
	}
	if t.Effects.EmotionalMultiplier == 0 {
		t.Effects.EmotionalMultiplier = d.Effects.EmotionalMultiplier
	}
	if t.Effects.VulnerabilityMultiplier == 0 {
		t.Effects.VulnerabilityMultiplier = d.Effects.VulnerabilityMultiplier
	}
	if t.Effects.ResistanceMultiplier == 0 {
		t.Effects.ResistanceMultiplier = d.Effects.ResistanceMultiplier
	}
	if t.ComboWindowRounds <= 0 {
		t.ComboWindowRounds = d.ComboWindowRounds
	}
	if t.ChoiceWindowRounds <= 0 {
		t.ChoiceWindowRounds = d.ChoiceWindowRounds
	}
}

func (t Tuning) Validate() error {
	var errs []error
	unit := func(name string, v float64) {
		if v < 0 || v > 1 {
			errs = append(errs, fmt.Errorf("%s must be in [0,1], got %v", name, v))
		}
	}
	unit("attention_decay", t.AttentionDecay)
	unit("exposure_threshold", t.ExposureThreshold)
	unit("victory_trust_threshold", t.VictoryTrustThreshold)
	unit("victory_percentage", t.VictoryPercentage)
	unit("high_trust_threshold", t.HighTrustThreshold)
	unit("effects.propagation_factor", t.Effects.PropagationFactor)
	unit("effects.resilience_dampening", t.Effects.ResilienceDampening)
	unit("effects.emotional_threshold", t.Effects.EmotionalThreshold)
	if t.Start.Money < 0 || t.Start.Attention < 0 || t.Start.Infrastructure < 0 {
		errs = append(errs, fmt.Errorf("start resources must be non-negative"))
	}
	if t.Income.Base < 0 || t.Income.PerInfrastructure < 0 {
		errs = append(errs, fmt.Errorf("income must be non-negative"))
	}
	return errors.Join(errs...)
}

// Digest fingerprints the values so a replay can detect a tuning mismatch.
func (t Tuning) Digest() string {
	b, _ := json.Marshal(t)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
