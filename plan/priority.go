/*
priority.go - Target priority score (TPS) computation

PURPOSE:
  Ranks how valuable a target is to engage, on a 0-100 scale, from the
  nation directory snapshot alone:

  - open defensive slots: a target already defending three wars is saturated
  - inverse strength:     weaker targets are cheaper to pile onto
  - activity recency:     targets active within the plan's activity window
                          are worth hitting before they can respond

  The score is recomputed by the bulk recompute job and stamped with
  computed_at; between runs it is read as-is (staleness is visible, not
  hidden).

SEE ALSO:
  - service.go: RecomputePriorities job handler
  - engine/scoring.go: Consumes the priority as a bounded factor
*/
package plan

import (
	"time"

	"github.com/warp/strike-engine/engine"
)

// Component weights sum to 100. They are deliberately simple; the allocator
// re-bounds the result, so absolute calibration matters less than ordering.
var (
	weightOpenSlots = engine.NewScoreFromInt(40)
	weightStrength  = engine.NewScoreFromInt(30)
	weightActivity  = engine.NewScoreFromInt(30)
)

// defensiveSaturation is the defensive war count at which a target stops
// being worth additional attackers.
const defensiveSaturation = 3

// ComputePriority derives the TPS for one target snapshot.
func ComputePriority(snap engine.NationSnapshot, policy engine.AllocationPolicy, activityWindowHours int, now time.Time) engine.Score {
	// Open defensive slots, as a fraction of saturation.
	open := defensiveSaturation - snap.DefensiveWars
	if open < 0 {
		open = 0
	}
	openFactor := engine.NewScoreFromInt(open).Div(engine.NewScoreFromInt(defensiveSaturation)).Clamp01()

	// Inverse strength around the policy pivot: a target at the pivot scores
	// 0.5, weaker targets trend toward 1.
	strengthFactor := engine.NewScoreFromInt(1).Sub(
		snap.Score.Div(snap.Score.Add(policy.PriorityStrengthPivot)),
	).Clamp01()

	// Activity recency within the plan's window.
	activityFactor := engine.ZeroScore()
	if activityWindowHours > 0 && !snap.LastActiveAt.IsZero() {
		age := now.Sub(snap.LastActiveAt)
		window := time.Duration(activityWindowHours) * time.Hour
		if age < 0 {
			age = 0
		}
		if age < window {
			remaining := window - age
			activityFactor = engine.NewScore(remaining.Hours()).
				Div(engine.NewScore(window.Hours())).Clamp01()
		}
	}

	return weightOpenSlots.Mul(openFactor).
		Add(weightStrength.Mul(strengthFactor)).
		Add(weightActivity.Mul(activityFactor))
}
