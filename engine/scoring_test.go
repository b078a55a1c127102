package engine_test

import (
	"testing"

	"github.com/warp/strike-engine/engine"
)

func scoreEq(t *testing.T, got engine.Score, want float64, label string) {
	t.Helper()
	if !got.Equal(engine.NewScore(want)) {
		t.Errorf("%s: expected %v, got %v", label, want, got.Float())
	}
}

// =============================================================================
// DECLARE RANGE TESTS
// =============================================================================

func TestCanAttack_WithinDeclareRange(t *testing.T) {
	// GIVEN: Friendly at 2000 strength, declare range [0.75, 2.5]
	// WHEN: Checking targets around the [1500, 5000] window
	// THEN: Boundary values are inclusive, outside values are refused

	scorer := engine.NewScorer(engine.DefaultPolicy())
	friendly := nation(1, 2000)

	cases := []struct {
		targetScore int
		want        bool
	}{
		{1499, false},
		{1500, true},
		{2000, true},
		{5000, true},
		{5001, false},
	}
	for _, tc := range cases {
		if got := scorer.CanAttack(friendly, nation(2, tc.targetScore)); got != tc.want {
			t.Errorf("target %d: expected CanAttack=%v, got %v", tc.targetScore, tc.want, got)
		}
	}
}

func TestCanAttack_ZeroStrengthFriendly_Refused(t *testing.T) {
	scorer := engine.NewScorer(engine.DefaultPolicy())
	if scorer.CanAttack(nation(1, 0), nation(2, 0)) {
		t.Error("expected zero-strength friendly to be refused")
	}
}

// =============================================================================
// EVALUATION TESTS
// =============================================================================

func TestEvaluate_EvenMatch_FullScore(t *testing.T) {
	// GIVEN: Friendly and target at equal strength, target at max priority
	// WHEN: Evaluating with no wars and no load
	// THEN: Both factors saturate and the score is exactly 1.0

	scorer := engine.NewScorer(engine.DefaultPolicy())
	eval := scorer.Evaluate(nation(1, 2000), nation(2, 2000), engine.EvalContext{
		TargetPriority: engine.NewScoreFromInt(100),
		Mode:           engine.EvalAuto,
	})

	if !eval.Eligible {
		t.Fatalf("expected eligible, got reason %q", eval.Reason)
	}
	scoreEq(t, eval.Score, 1.0, "score")
	scoreEq(t, eval.Factors["relative_power"], 1.0, "relative_power")
	scoreEq(t, eval.Factors["target_priority"], 1.0, "target_priority")
	if eval.Floored {
		t.Error("expected no floor substitution")
	}
}

func TestEvaluate_OutsideDeclareRange_Ineligible(t *testing.T) {
	scorer := engine.NewScorer(engine.DefaultPolicy())
	eval := scorer.Evaluate(nation(1, 2000), nation(2, 100), engine.EvalContext{
		TargetPriority: engine.NewScoreFromInt(50),
		Mode:           engine.EvalAuto,
	})

	if eval.Eligible {
		t.Error("expected out-of-range target to be ineligible")
	}
	if eval.Reason == "" {
		t.Error("expected a reason on the ineligible evaluation")
	}
	if !eval.Score.IsZero() {
		t.Errorf("expected zero score, got %v", eval.Score.Float())
	}
}

func TestEvaluate_WeightedBaseScore(t *testing.T) {
	// GIVEN: Friendly at half the target's strength, priority 50
	// WHEN: Evaluating
	// THEN: base = 0.7*0.5 + 0.3*0.5 = 0.5

	scorer := engine.NewScorer(engine.DefaultPolicy())
	eval := scorer.Evaluate(nation(1, 1000), nation(2, 2000), engine.EvalContext{
		TargetPriority: engine.NewScoreFromInt(50),
		Mode:           engine.EvalAuto,
	})

	if !eval.Eligible {
		t.Fatalf("expected eligible, got reason %q", eval.Reason)
	}
	scoreEq(t, eval.Factors["relative_power"], 0.5, "relative_power")
	scoreEq(t, eval.Factors["target_priority"], 0.5, "target_priority")
	scoreEq(t, eval.Score, 0.5, "score")
}

func TestEvaluate_LoadPenalties_Charged(t *testing.T) {
	// GIVEN: Two offensive wars, one defensive war, one proposed assignment
	// WHEN: Evaluating an otherwise perfect match
	// THEN: Penalty = (2+1)*0.05 + 1*0.10 = 0.25, score 0.75

	scorer := engine.NewScorer(engine.DefaultPolicy())
	friendly := nation(1, 2000)
	friendly.OffensiveWars = 2
	friendly.DefensiveWars = 1

	eval := scorer.Evaluate(friendly, nation(2, 2000), engine.EvalContext{
		AssignmentLoad: 1,
		TargetPriority: engine.NewScoreFromInt(100),
		Mode:           engine.EvalAuto,
	})

	if !eval.Eligible {
		t.Fatalf("expected eligible, got reason %q", eval.Reason)
	}
	scoreEq(t, eval.Factors["load_penalty"], 0.25, "load_penalty")
	scoreEq(t, eval.Score, 0.75, "score")
}

func TestEvaluate_CrushingPenalty_FloorSubstituted(t *testing.T) {
	// GIVEN: A friendly so overloaded the penalty consumes the whole base
	// WHEN: Evaluating
	// THEN: The floor (half the bounded base) replaces the non-positive score

	scorer := engine.NewScorer(engine.DefaultPolicy())
	friendly := nation(1, 2000)
	friendly.OffensiveWars = 10
	friendly.DefensiveWars = 5

	eval := scorer.Evaluate(friendly, nation(2, 2000), engine.EvalContext{
		TargetPriority: engine.NewScoreFromInt(100),
		Mode:           engine.EvalAuto,
	})

	if !eval.Eligible {
		t.Fatalf("expected eligible, got reason %q", eval.Reason)
	}
	if !eval.Floored {
		t.Fatal("expected floor substitution")
	}
	scoreEq(t, eval.Score, 0.5, "floored score")
}

func TestEvaluate_ManualMode_EnforcesPowerFloor(t *testing.T) {
	// GIVEN: A policy with a wide declare range so a hopeless pairing passes
	//        the range gate, and a manual power floor of 0.05
	// WHEN: Evaluating the same pair in auto and manual mode
	// THEN: Auto scores it; manual refuses it

	policy := engine.DefaultPolicy()
	policy.ScoreRangeMax = engine.NewScoreFromInt(30)

	scorer := engine.NewScorer(policy)
	friendly := nation(1, 100)
	target := nation(2, 2400) // relative power 100/2400 < 0.05

	auto := scorer.Evaluate(friendly, target, engine.EvalContext{
		TargetPriority: engine.NewScoreFromInt(50),
		Mode:           engine.EvalAuto,
	})
	if !auto.Eligible {
		t.Fatalf("expected auto mode to accept, got reason %q", auto.Reason)
	}

	manual := scorer.Evaluate(friendly, target, engine.EvalContext{
		TargetPriority: engine.NewScoreFromInt(50),
		Mode:           engine.EvalManual,
	})
	if manual.Eligible {
		t.Error("expected manual mode to refuse the pairing")
	}
}

func TestEvaluate_CohesionAffinity_DiagnosticOnly(t *testing.T) {
	// GIVEN: A cohesion reference matching the pair's base score exactly
	// WHEN: Evaluating with and without the reference
	// THEN: The affinity factor appears but the score is unchanged

	scorer := engine.NewScorer(engine.DefaultPolicy())
	plain := scorer.Evaluate(nation(1, 2000), nation(2, 2000), engine.EvalContext{
		TargetPriority: engine.NewScoreFromInt(100),
		Mode:           engine.EvalAuto,
	})

	withRef := scorer.Evaluate(nation(1, 2000), nation(2, 2000), engine.EvalContext{
		TargetPriority:    engine.NewScoreFromInt(100),
		Mode:              engine.EvalAuto,
		CohesionReference: engine.NewScoreFromInt(1),
		CohesionTolerance: engine.NewScore(0.15),
	})

	if !plain.Score.Equal(withRef.Score) {
		t.Errorf("cohesion reference changed the score: %v vs %v", plain.Score.Float(), withRef.Score.Float())
	}
	affinity, ok := withRef.Factors["cohesion_affinity"]
	if !ok {
		t.Fatal("expected cohesion_affinity factor")
	}
	scoreEq(t, affinity, 1.0, "cohesion_affinity")
}
