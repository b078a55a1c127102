/*
scoring.go - Candidate scorer: match quality between one friendly and one target

PURPOSE:
  Produces a numeric match score for a (friendly, target) pair, plus a factor
  breakdown for diagnostics. Three stages:

  1. Eligibility gate:
     CanAttack checks declare-range compatibility. Ineligible pairs are
     excluded before any scoring. Manual mode additionally enforces a
     relative-power floor.

  2. Base score:
     A weighted combination of the bounded relative-power factor and the
     target's bounded priority factor.

  3. Load penalty:
     (offensive wars + assignment load) x offensive penalty weight, plus
     defensive wars x defensive penalty weight (larger - a defending nation
     is a worse offensive candidate). A score driven to zero or below is
     replaced by a floor derived from the unpenalized bounded score so the
     candidate sorts behind lightly-loaded peers instead of vanishing.

FAILURE MODE:
  A friendly with absent project data is scored with defaults; evaluation
  never returns an error.

SEE ALSO:
  - policy.go: All weights and floors
  - allocator.go: Ranks evaluations per target
*/
package engine

// =============================================================================
// EVALUATION CONTEXT
// =============================================================================

type EvaluationMode string

const (
	// EvalAuto is the fully automated pass (bulk auto-pick jobs).
	EvalAuto EvaluationMode = "auto"

	// EvalManual is the human-reviewed pass; it enforces the relative-power
	// floor so reviewers are not shown hopeless pairings.
	EvalManual EvaluationMode = "manual"
)

// EvalContext bundles the per-pass inputs that are not properties of either
// nation.
type EvalContext struct {
	AvailableSlots int
	AssignmentLoad int
	MaxAssignments int

	// CohesionReference and CohesionTolerance come from the owning plan; the
	// scorer records affinity as a diagnostic factor only.
	CohesionReference Score
	CohesionTolerance Score

	TargetPriority Score
	Mode           EvaluationMode
}

// Evaluation is a score plus a factor breakdown. The breakdown is diagnostic
// metadata, not authoritative.
type Evaluation struct {
	Score    Score
	Factors  map[string]Score
	Eligible bool
	Floored  bool
	Reason   string
}

// =============================================================================
// SCORER
// =============================================================================

type Scorer struct {
	Policy AllocationPolicy
}

func NewScorer(policy AllocationPolicy) *Scorer {
	return &Scorer{Policy: policy}
}

// CanAttack reports whether the friendly may engage the target at all:
// the target's strength must fall within the friendly's declare range.
func (s *Scorer) CanAttack(friendly, target NationSnapshot) bool {
	if friendly.Score.IsZero() || !friendly.Score.IsPositive() {
		return false
	}
	low := friendly.Score.Mul(s.Policy.ScoreRangeMin)
	high := friendly.Score.Mul(s.Policy.ScoreRangeMax)
	return !target.Score.LessThan(low) && !target.Score.GreaterThan(high)
}

// Evaluate scores one (friendly, target) pair. Ineligible pairs come back
// with Eligible=false and a reason; they carry a zero score.
func (s *Scorer) Evaluate(friendly, target NationSnapshot, ctx EvalContext) Evaluation {
	factors := make(map[string]Score)

	if !s.CanAttack(friendly, target) {
		return Evaluation{Factors: factors, Eligible: false, Reason: "target outside declare range"}
	}

	// Relative power, bounded into [0, 1] before weighting.
	relPower := ZeroScore()
	if target.Score.IsPositive() {
		relPower = friendly.Score.Div(target.Score).Mul(s.Policy.RelativePowerScale).Clamp01()
	}
	factors["relative_power"] = relPower

	// Manual review mode refuses pairs below the power floor even when the
	// declare range allows them.
	if ctx.Mode == EvalManual && relPower.LessThan(s.Policy.ManualPowerFloor) {
		return Evaluation{Factors: factors, Eligible: false, Reason: "below manual relative-power floor"}
	}

	priority := ctx.TargetPriority.Div(NewScoreFromInt(100)).Clamp01()
	factors["target_priority"] = priority

	base := s.Policy.RelativePowerWeight.Mul(relPower).
		Add(s.Policy.PriorityWeight.Mul(priority))
	factors["base"] = base

	// Cohesion affinity is recorded for diagnostics only; the squad builder
	// owns cohesion, not the scorer.
	if ctx.CohesionTolerance.IsPositive() && ctx.CohesionReference.IsPositive() {
		drift := base.Sub(ctx.CohesionReference).Abs()
		affinity := NewScoreFromInt(1).Sub(drift.Div(ctx.CohesionTolerance)).Clamp01()
		factors["cohesion_affinity"] = affinity
	}

	offensiveLoad := NewScoreFromInt(friendly.OffensiveWars + ctx.AssignmentLoad).
		Mul(s.Policy.OffensiveLoadPenalty)
	defensiveLoad := NewScoreFromInt(friendly.DefensiveWars).
		Mul(s.Policy.DefensiveLoadPenalty)
	penalty := offensiveLoad.Add(defensiveLoad)
	factors["load_penalty"] = penalty

	score := base.Sub(penalty)
	floored := false
	if !score.IsPositive() {
		// Penalty would silently drop the candidate; substitute the floor so
		// it sorts last among viable candidates instead.
		score = base.Clamp01().Mul(s.Policy.PenaltyFloorFraction)
		floored = true
		factors["penalty_floor"] = score
	}

	return Evaluation{
		Score:    score,
		Factors:  factors,
		Eligible: true,
		Floored:  floored,
	}
}
