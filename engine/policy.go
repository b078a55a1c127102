/*
policy.go - AllocationPolicy: every tunable the engine reads

PURPOSE:
  One explicit struct holding the base slot count, project modifiers, penalty
  weights, relative-power floor, and squad defaults. The capacity ledger and
  candidate scorer receive this as a parameter - never from ambient global
  configuration.

TUNING NOTE:
  The penalty weights and the manual power floor are empirically tuned, not
  derived. They are parameters precisely so operators can adjust them without
  code changes (see factory/policy.go for JSON/YAML presets).

SEE ALSO:
  - capacity.go: Reads slot/project/rank fields
  - scoring.go: Reads weight/penalty/floor fields
  - factory/policy.go: Builds policies from presets
*/
package engine

// =============================================================================
// ALLOCATION POLICY
// =============================================================================

type AllocationPolicy struct {
	// --- Capacity ledger ---

	// BaseOffensiveSlots is the slot count every nation starts with.
	BaseOffensiveSlots int

	// CapacityProjects each add one offensive slot when the nation has the
	// project flag enabled.
	CapacityProjects []string

	// SeniorRanks lose one slot relative to the configured maximum, because
	// leadership is expected to hold capacity in reserve.
	SeniorRanks []string

	// OffensiveWarCeiling caps total simultaneous offensive commitments
	// (active wars + new load).
	OffensiveWarCeiling int

	// --- Candidate scorer ---

	// RelativePowerWeight and PriorityWeight combine the bounded factors into
	// the base score.
	RelativePowerWeight Score
	PriorityWeight      Score

	// RelativePowerScale multiplies the raw strength ratio before clamping
	// into [0, 1].
	RelativePowerScale Score

	// ManualPowerFloor excludes pairs below this relative power when the
	// evaluation runs in manual (human-reviewed) mode.
	ManualPowerFloor Score

	// OffensiveLoadPenalty is charged per active offensive war and per
	// already-proposed assignment. DefensiveLoadPenalty is charged per active
	// defensive war; it is larger because a defending nation is a worse
	// offensive candidate.
	OffensiveLoadPenalty Score
	DefensiveLoadPenalty Score

	// PenaltyFloorFraction of the unpenalized bounded score is substituted
	// when load penalties drive a score to zero or below, so a candidate is
	// never silently dropped - it sorts behind lightly-loaded candidates
	// instead.
	PenaltyFloorFraction Score

	// ScoreRangeMin/Max bound the declare range: a friendly can engage a
	// target whose strength falls within [own*Min, own*Max].
	ScoreRangeMin Score
	ScoreRangeMax Score

	// --- Allocator / squads ---

	// MaxRecommendations caps candidates returned per target when the plan
	// does not derive its own cap.
	MaxRecommendations int

	// DefaultTeamSize is the counter team size when the operator gives none.
	DefaultTeamSize int

	// Defaults applied to new plans.
	DefaultTargetsPerFriendly int
	DefaultActivityWindow     int // hours
	DefaultMaxSquadSize       int
	DefaultCohesionTolerance  Score

	// PriorityStrengthPivot normalizes target strength when computing
	// priority scores: weaker targets rank higher.
	PriorityStrengthPivot Score
}

// DefaultPolicy returns the tuned defaults. Every value here is overridable
// via factory presets.
func DefaultPolicy() AllocationPolicy {
	return AllocationPolicy{
		BaseOffensiveSlots:  3,
		CapacityProjects:    []string{"pirate_economy", "advanced_pirate_economy"},
		SeniorRanks:         []string{"leader", "heir"},
		OffensiveWarCeiling: 6,

		RelativePowerWeight:  NewScore(0.7),
		PriorityWeight:       NewScore(0.3),
		RelativePowerScale:   NewScore(1.0),
		ManualPowerFloor:     NewScore(0.05),
		OffensiveLoadPenalty: NewScore(0.05),
		DefensiveLoadPenalty: NewScore(0.10),
		PenaltyFloorFraction: NewScore(0.5),
		ScoreRangeMin:        NewScore(0.75),
		ScoreRangeMax:        NewScore(2.5),

		MaxRecommendations:        10,
		DefaultTeamSize:           3,
		DefaultTargetsPerFriendly: 2,
		DefaultActivityWindow:     72,
		DefaultMaxSquadSize:       4,
		DefaultCohesionTolerance:  NewScore(0.15),

		PriorityStrengthPivot: NewScore(5000),
	}
}

// TunablesForNewPlan derives plan tunables from policy defaults.
func (p AllocationPolicy) TunablesForNewPlan() PlanTunables {
	return PlanTunables{
		PreferredTargetsPerFriendly: p.DefaultTargetsPerFriendly,
		ActivityWindowHours:         p.DefaultActivityWindow,
		MaxSquadSize:                p.DefaultMaxSquadSize,
		SquadCohesionTolerance:      p.DefaultCohesionTolerance,
		SuppressCountersWhenActive:  true,
	}
}

// IsSeniorRank reports whether the rank loses one slot.
func (p AllocationPolicy) IsSeniorRank(rank string) bool {
	for _, r := range p.SeniorRanks {
		if r == rank {
			return true
		}
	}
	return false
}
