package engine_test

import (
	"testing"

	"github.com/warp/strike-engine/engine"
)

// =============================================================================
// ALLOCATOR TESTS
// =============================================================================

func TestRecommend_RanksByScoreDescending(t *testing.T) {
	// GIVEN: Three eligible friendlies of varying strength and load
	// WHEN: Running one allocation pass
	// THEN: Candidates come back ordered by descending match score

	allocator := engine.NewAllocator(engine.DefaultPolicy())

	strong := nation(1, 2000)
	loaded := nation(2, 2000)
	loaded.OffensiveWars = 1
	weak := nation(3, 1000) // relative power 0.5 vs the 2000 target

	candidates := allocator.Recommend(engine.RecommendInput{
		Target:   nation(99, 2000),
		Priority: engine.NewScoreFromInt(50),
		Pool:     []engine.NationSnapshot{weak, loaded, strong},
		Mode:     engine.EvalAuto,
	})

	if len(candidates) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(candidates))
	}
	wantOrder := []engine.NationID{1, 2, 3}
	for i, want := range wantOrder {
		if candidates[i].Nation.NationID != want {
			t.Errorf("position %d: expected nation %d, got %d", i, want, candidates[i].Nation.NationID)
		}
	}
	for i := 1; i < len(candidates); i++ {
		if candidates[i].Evaluation.Score.GreaterThan(candidates[i-1].Evaluation.Score) {
			t.Error("candidates not sorted by descending score")
		}
	}
}

func TestRecommend_ExcludesAlreadyAssigned(t *testing.T) {
	allocator := engine.NewAllocator(engine.DefaultPolicy())

	candidates := allocator.Recommend(engine.RecommendInput{
		Target:          nation(99, 2000),
		Priority:        engine.NewScoreFromInt(50),
		Pool:            []engine.NationSnapshot{nation(1, 2000), nation(2, 2000)},
		AlreadyAssigned: map[engine.NationID]bool{1: true},
		Mode:            engine.EvalAuto,
	})

	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(candidates))
	}
	if candidates[0].Nation.NationID != 2 {
		t.Errorf("expected nation 2, got %d", candidates[0].Nation.NationID)
	}
}

func TestRecommend_ExcludesCapacityIneligible(t *testing.T) {
	// GIVEN: A friendly at the offensive war ceiling
	// WHEN: Running the pass
	// THEN: The friendly is excluded before scoring

	allocator := engine.NewAllocator(engine.DefaultPolicy())
	exhausted := nation(1, 2000)
	exhausted.OffensiveWars = 6

	candidates := allocator.Recommend(engine.RecommendInput{
		Target:   nation(99, 2000),
		Priority: engine.NewScoreFromInt(50),
		Pool:     []engine.NationSnapshot{exhausted, nation(2, 2000)},
		Mode:     engine.EvalAuto,
	})

	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(candidates))
	}
	if candidates[0].Nation.NationID != 2 {
		t.Errorf("expected nation 2, got %d", candidates[0].Nation.NationID)
	}
}

func TestRecommend_ExcludesOutOfRangeTargets(t *testing.T) {
	allocator := engine.NewAllocator(engine.DefaultPolicy())

	candidates := allocator.Recommend(engine.RecommendInput{
		Target:   nation(99, 10000),
		Priority: engine.NewScoreFromInt(50),
		Pool:     []engine.NationSnapshot{nation(1, 2000)},
		Mode:     engine.EvalAuto,
	})

	if len(candidates) != 0 {
		t.Fatalf("expected no candidates, got %d", len(candidates))
	}
}

func TestRecommend_LimitCapsResults(t *testing.T) {
	allocator := engine.NewAllocator(engine.DefaultPolicy())

	pool := []engine.NationSnapshot{
		nation(1, 2000), nation(2, 1900), nation(3, 1800), nation(4, 1700),
	}
	candidates := allocator.Recommend(engine.RecommendInput{
		Target:   nation(99, 2000),
		Priority: engine.NewScoreFromInt(50),
		Pool:     pool,
		Limit:    2,
		Mode:     engine.EvalAuto,
	})

	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(candidates))
	}
	if candidates[0].Nation.NationID != 1 || candidates[1].Nation.NationID != 2 {
		t.Errorf("expected the two strongest, got %d and %d",
			candidates[0].Nation.NationID, candidates[1].Nation.NationID)
	}
}

func TestRecommend_TieBreak_LowerLoadThenLowerID(t *testing.T) {
	// GIVEN: Identical friendlies, one carrying an extra assignment
	// WHEN: Scores tie after penalties are equalized via identical wars
	// THEN: Ties break by lower load, then by lower nation id

	allocator := engine.NewAllocator(engine.DefaultPolicy())

	// Same strength, same war counts. Load differs only via the Load map for
	// the middle one; the other two tie completely.
	a := nation(3, 2000)
	b := nation(1, 2000)
	c := nation(2, 2000)

	candidates := allocator.Recommend(engine.RecommendInput{
		Target:   nation(99, 4000),
		Priority: engine.NewScoreFromInt(50),
		Pool:     []engine.NationSnapshot{a, b, c},
		Mode:     engine.EvalAuto,
	})

	if len(candidates) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(candidates))
	}
	wantOrder := []engine.NationID{1, 2, 3}
	for i, want := range wantOrder {
		if candidates[i].Nation.NationID != want {
			t.Errorf("position %d: expected nation %d, got %d", i, want, candidates[i].Nation.NationID)
		}
	}
}

func TestRecommend_LoadPenaltyAffectsRanking(t *testing.T) {
	// GIVEN: Two identical friendlies, one with existing assignment load
	// WHEN: Running the pass with a Load map
	// THEN: The unloaded friendly ranks first (penalty pushes the other down)

	allocator := engine.NewAllocator(engine.DefaultPolicy())

	candidates := allocator.Recommend(engine.RecommendInput{
		Target:   nation(99, 2000),
		Priority: engine.NewScoreFromInt(50),
		Pool:     []engine.NationSnapshot{nation(1, 2000), nation(2, 2000)},
		Load:     map[engine.NationID]int{1: 2},
		Mode:     engine.EvalAuto,
	})

	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(candidates))
	}
	if candidates[0].Nation.NationID != 2 {
		t.Errorf("expected unloaded nation 2 first, got %d", candidates[0].Nation.NationID)
	}
	if candidates[1].Load != 2 {
		t.Errorf("expected loaded candidate to report load 2, got %d", candidates[1].Load)
	}
}
