/*
Package factory provides JSON/YAML to Go allocation-policy conversion.

PURPOSE:
  Converts serialized policy definitions into engine.AllocationPolicy values.
  This enables tuning without code changes - coordinators can define scoring
  weights, capacity rules, and squad defaults in a config file, and the
  factory overlays them on the built-in defaults.

WHY A CONFIG FILE?
  - Non-developers can retune weights between wars
  - Version control for policy definitions
  - Per-deployment calibration without a rebuild

DOCUMENT SCHEMA (every field optional, defaults from engine.DefaultPolicy):
  {
    "base_offensive_slots": 3,
    "capacity_projects": ["pirate_economy", "advanced_pirate_economy"],
    "senior_ranks": ["leader", "heir"],
    "offensive_war_ceiling": 6,
    "relative_power_weight": 0.7,
    "priority_weight": 0.3,
    "manual_power_floor": 0.05,
    "offensive_load_penalty": 0.05,
    "defensive_load_penalty": 0.10,
    "penalty_floor_fraction": 0.5,
    "score_range": {"min": 0.75, "max": 2.5},
    "max_recommendations": 10,
    "default_team_size": 3,
    "default_max_squad_size": 4
  }

USAGE:
  factory := NewPolicyFactory()

  policy, err := factory.ParseJSON(jsonBytes)
  policy, err := factory.ParseYAML(yamlBytes)
  policy, err := factory.LoadFile("policy.yaml") // extension picks the codec

SEE ALSO:
  - engine/policy.go: AllocationPolicy definition and defaults
  - cmd/server/main.go: Loads the policy file at startup
*/
package factory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/warp/strike-engine/engine"
)

// =============================================================================
// DOCUMENT SCHEMA TYPES
// =============================================================================

// PolicyDoc is the serialized representation of an allocation policy. Every
// field is a pointer (or nil-able slice) so absence means "keep the default".
type PolicyDoc struct {
	BaseOffensiveSlots *int     `json:"base_offensive_slots,omitempty" yaml:"base_offensive_slots"`
	CapacityProjects   []string `json:"capacity_projects,omitempty" yaml:"capacity_projects"`
	SeniorRanks        []string `json:"senior_ranks,omitempty" yaml:"senior_ranks"`
	OffensiveWarCeiling *int    `json:"offensive_war_ceiling,omitempty" yaml:"offensive_war_ceiling"`

	RelativePowerWeight *float64 `json:"relative_power_weight,omitempty" yaml:"relative_power_weight"`
	PriorityWeight      *float64 `json:"priority_weight,omitempty" yaml:"priority_weight"`
	RelativePowerScale  *float64 `json:"relative_power_scale,omitempty" yaml:"relative_power_scale"`
	ManualPowerFloor    *float64 `json:"manual_power_floor,omitempty" yaml:"manual_power_floor"`

	OffensiveLoadPenalty *float64 `json:"offensive_load_penalty,omitempty" yaml:"offensive_load_penalty"`
	DefensiveLoadPenalty *float64 `json:"defensive_load_penalty,omitempty" yaml:"defensive_load_penalty"`
	PenaltyFloorFraction *float64 `json:"penalty_floor_fraction,omitempty" yaml:"penalty_floor_fraction"`

	ScoreRange *ScoreRangeDoc `json:"score_range,omitempty" yaml:"score_range"`

	MaxRecommendations        *int     `json:"max_recommendations,omitempty" yaml:"max_recommendations"`
	DefaultTeamSize           *int     `json:"default_team_size,omitempty" yaml:"default_team_size"`
	DefaultTargetsPerFriendly *int     `json:"default_targets_per_friendly,omitempty" yaml:"default_targets_per_friendly"`
	DefaultActivityWindow     *int     `json:"default_activity_window_hours,omitempty" yaml:"default_activity_window_hours"`
	DefaultMaxSquadSize       *int     `json:"default_max_squad_size,omitempty" yaml:"default_max_squad_size"`
	DefaultCohesionTolerance  *float64 `json:"default_cohesion_tolerance,omitempty" yaml:"default_cohesion_tolerance"`

	PriorityStrengthPivot *float64 `json:"priority_strength_pivot,omitempty" yaml:"priority_strength_pivot"`
}

// ScoreRangeDoc bounds the declare-range gate.
type ScoreRangeDoc struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

// =============================================================================
// POLICY FACTORY
// =============================================================================

// PolicyFactory overlays serialized policy documents on the defaults.
type PolicyFactory struct{}

func NewPolicyFactory() *PolicyFactory {
	return &PolicyFactory{}
}

// ParseJSON parses a JSON policy document.
func (f *PolicyFactory) ParseJSON(data []byte) (engine.AllocationPolicy, error) {
	var doc PolicyDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return engine.AllocationPolicy{}, fmt.Errorf("failed to parse policy JSON: %w", err)
	}
	return f.FromDoc(doc)
}

// ParseYAML parses a YAML policy document.
func (f *PolicyFactory) ParseYAML(data []byte) (engine.AllocationPolicy, error) {
	var doc PolicyDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return engine.AllocationPolicy{}, fmt.Errorf("failed to parse policy YAML: %w", err)
	}
	return f.FromDoc(doc)
}

// LoadFile reads a policy document from disk. The extension picks the codec:
// .yaml/.yml for YAML, anything else for JSON.
func (f *PolicyFactory) LoadFile(path string) (engine.AllocationPolicy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return engine.AllocationPolicy{}, fmt.Errorf("failed to read policy file: %w", err)
	}
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		return f.ParseYAML(data)
	default:
		return f.ParseJSON(data)
	}
}

// FromDoc overlays the document on engine.DefaultPolicy and validates the
// result.
func (f *PolicyFactory) FromDoc(doc PolicyDoc) (engine.AllocationPolicy, error) {
	policy := engine.DefaultPolicy()

	if doc.BaseOffensiveSlots != nil {
		policy.BaseOffensiveSlots = *doc.BaseOffensiveSlots
	}
	if doc.CapacityProjects != nil {
		policy.CapacityProjects = doc.CapacityProjects
	}
	if doc.SeniorRanks != nil {
		policy.SeniorRanks = doc.SeniorRanks
	}
	if doc.OffensiveWarCeiling != nil {
		policy.OffensiveWarCeiling = *doc.OffensiveWarCeiling
	}

	if doc.RelativePowerWeight != nil {
		policy.RelativePowerWeight = engine.NewScore(*doc.RelativePowerWeight)
	}
	if doc.PriorityWeight != nil {
		policy.PriorityWeight = engine.NewScore(*doc.PriorityWeight)
	}
	if doc.RelativePowerScale != nil {
		policy.RelativePowerScale = engine.NewScore(*doc.RelativePowerScale)
	}
	if doc.ManualPowerFloor != nil {
		policy.ManualPowerFloor = engine.NewScore(*doc.ManualPowerFloor)
	}

	if doc.OffensiveLoadPenalty != nil {
		policy.OffensiveLoadPenalty = engine.NewScore(*doc.OffensiveLoadPenalty)
	}
	if doc.DefensiveLoadPenalty != nil {
		policy.DefensiveLoadPenalty = engine.NewScore(*doc.DefensiveLoadPenalty)
	}
	if doc.PenaltyFloorFraction != nil {
		policy.PenaltyFloorFraction = engine.NewScore(*doc.PenaltyFloorFraction)
	}

	if doc.ScoreRange != nil {
		policy.ScoreRangeMin = engine.NewScore(doc.ScoreRange.Min)
		policy.ScoreRangeMax = engine.NewScore(doc.ScoreRange.Max)
	}

	if doc.MaxRecommendations != nil {
		policy.MaxRecommendations = *doc.MaxRecommendations
	}
	if doc.DefaultTeamSize != nil {
		policy.DefaultTeamSize = *doc.DefaultTeamSize
	}
	if doc.DefaultTargetsPerFriendly != nil {
		policy.DefaultTargetsPerFriendly = *doc.DefaultTargetsPerFriendly
	}
	if doc.DefaultActivityWindow != nil {
		policy.DefaultActivityWindow = *doc.DefaultActivityWindow
	}
	if doc.DefaultMaxSquadSize != nil {
		policy.DefaultMaxSquadSize = *doc.DefaultMaxSquadSize
	}
	if doc.DefaultCohesionTolerance != nil {
		policy.DefaultCohesionTolerance = engine.NewScore(*doc.DefaultCohesionTolerance)
	}

	if doc.PriorityStrengthPivot != nil {
		policy.PriorityStrengthPivot = engine.NewScore(*doc.PriorityStrengthPivot)
	}

	if err := validate(policy); err != nil {
		return engine.AllocationPolicy{}, err
	}
	return policy, nil
}

// ToDoc serializes a policy back into the document form, every field set.
func (f *PolicyFactory) ToDoc(policy engine.AllocationPolicy) PolicyDoc {
	fp := func(v float64) *float64 { return &v }
	ip := func(v int) *int { return &v }

	return PolicyDoc{
		BaseOffensiveSlots:  ip(policy.BaseOffensiveSlots),
		CapacityProjects:    policy.CapacityProjects,
		SeniorRanks:         policy.SeniorRanks,
		OffensiveWarCeiling: ip(policy.OffensiveWarCeiling),

		RelativePowerWeight: fp(policy.RelativePowerWeight.Float()),
		PriorityWeight:      fp(policy.PriorityWeight.Float()),
		RelativePowerScale:  fp(policy.RelativePowerScale.Float()),
		ManualPowerFloor:    fp(policy.ManualPowerFloor.Float()),

		OffensiveLoadPenalty: fp(policy.OffensiveLoadPenalty.Float()),
		DefensiveLoadPenalty: fp(policy.DefensiveLoadPenalty.Float()),
		PenaltyFloorFraction: fp(policy.PenaltyFloorFraction.Float()),

		ScoreRange: &ScoreRangeDoc{
			Min: policy.ScoreRangeMin.Float(),
			Max: policy.ScoreRangeMax.Float(),
		},

		MaxRecommendations:        ip(policy.MaxRecommendations),
		DefaultTeamSize:           ip(policy.DefaultTeamSize),
		DefaultTargetsPerFriendly: ip(policy.DefaultTargetsPerFriendly),
		DefaultActivityWindow:     ip(policy.DefaultActivityWindow),
		DefaultMaxSquadSize:       ip(policy.DefaultMaxSquadSize),
		DefaultCohesionTolerance:  fp(policy.DefaultCohesionTolerance.Float()),

		PriorityStrengthPivot: fp(policy.PriorityStrengthPivot.Float()),
	}
}

func validate(p engine.AllocationPolicy) error {
	if p.BaseOffensiveSlots < 0 {
		return fmt.Errorf("base_offensive_slots must be non-negative")
	}
	if p.OffensiveWarCeiling <= 0 {
		return fmt.Errorf("offensive_war_ceiling must be positive")
	}
	if p.RelativePowerWeight.IsNegative() || p.PriorityWeight.IsNegative() {
		return fmt.Errorf("scoring weights must be non-negative")
	}
	one := engine.NewScoreFromInt(1)
	if !p.RelativePowerWeight.Add(p.PriorityWeight).Equal(one) {
		return fmt.Errorf("relative_power_weight and priority_weight must sum to 1")
	}
	if p.PenaltyFloorFraction.IsNegative() || p.PenaltyFloorFraction.GreaterThan(one) {
		return fmt.Errorf("penalty_floor_fraction must be within [0, 1]")
	}
	if p.ScoreRangeMin.GreaterThan(p.ScoreRangeMax) {
		return fmt.Errorf("score_range min must not exceed max")
	}
	if p.MaxRecommendations <= 0 {
		return fmt.Errorf("max_recommendations must be positive")
	}
	if p.DefaultTeamSize <= 0 || p.DefaultMaxSquadSize <= 0 {
		return fmt.Errorf("team and squad sizes must be positive")
	}
	return nil
}

// =============================================================================
// PRESETS
// =============================================================================

// RaidPolicyJSON is a preset tuned for pirate raids: wide declare range,
// lighter load penalties, bigger squads.
func RaidPolicyJSON() string {
	return `{
		"score_range": {"min": 0.60, "max": 2.50},
		"offensive_load_penalty": 0.03,
		"defensive_load_penalty": 0.06,
		"default_max_squad_size": 5
	}`
}

// AttritionPolicyJSON is a preset tuned for attrition warfare: narrow
// declare range, heavier penalties so fresh nations rotate in.
func AttritionPolicyJSON() string {
	return `{
		"score_range": {"min": 0.85, "max": 1.75},
		"offensive_load_penalty": 0.08,
		"defensive_load_penalty": 0.15,
		"default_team_size": 4
	}`
}
