/*
allocator.go - Ranks eligible friendlies per target and proposes the top N

PURPOSE:
  For one target (a plan target, or a counter's aggressor), the allocator:
  1. Bounds the pool to capacity-eligible friendlies not already assigned
  2. Scores each survivor via the candidate scorer
  3. Discards candidates scoring <= 0 after all floors
  4. Sorts descending by score, ties broken by lower existing load, then by
     nation identifier for determinism
  5. Returns the top N as recommendations

  Recommendations are advisory: an operator confirms them, or an auto-pick
  job persists them as proposed assignments. Persistence lives in the plan/
  and counter/ services - the allocator itself is pure.

SEE ALSO:
  - capacity.go: Eligibility bound
  - scoring.go: Per-pair evaluation
  - plan/service.go, counter/service.go: Auto-pick persistence
*/
package engine

import "sort"

// =============================================================================
// CANDIDATE
// =============================================================================

// Candidate is one ranked recommendation.
type Candidate struct {
	Nation     NationSnapshot
	Capacity   Capacity
	Evaluation Evaluation

	// Load is the nation's assignment count going into this pass; used as
	// the first tie-breaker.
	Load int
}

// =============================================================================
// ALLOCATOR
// =============================================================================

type Allocator struct {
	Policy AllocationPolicy
	Scorer *Scorer
}

func NewAllocator(policy AllocationPolicy) *Allocator {
	return &Allocator{Policy: policy, Scorer: NewScorer(policy)}
}

// RecommendInput carries everything one allocation pass needs. The caller
// (service layer) is responsible for collecting the pool and load counts.
type RecommendInput struct {
	// Target is the enemy nation snapshot being matched against.
	Target NationSnapshot

	// Priority is the target's priority score (TPS).
	Priority Score

	// Pool is the friendly candidates (alliance members of the friendly side).
	Pool []NationSnapshot

	// Load maps nation id to current proposed/confirmed assignment count.
	Load map[NationID]int

	// AlreadyAssigned excludes friendlies that hold a non-archived assignment
	// against this target already.
	AlreadyAssigned map[NationID]bool

	// Limit caps the recommendations; zero falls back to the policy default.
	Limit int

	Mode EvaluationMode

	CohesionReference Score
	CohesionTolerance Score
}

// Recommend runs one allocation pass and returns ranked candidates.
func (a *Allocator) Recommend(in RecommendInput) []Candidate {
	limit := in.Limit
	if limit <= 0 {
		limit = a.Policy.MaxRecommendations
	}

	var candidates []Candidate
	for _, friendly := range in.Pool {
		if in.AlreadyAssigned[friendly.NationID] {
			continue
		}

		load := in.Load[friendly.NationID]
		capacity := ComputeCapacity(friendly, load, a.Policy)
		if !capacity.Eligible() {
			continue
		}

		eval := a.Scorer.Evaluate(friendly, in.Target, EvalContext{
			AvailableSlots:    capacity.AvailableSlots,
			AssignmentLoad:    load,
			MaxAssignments:    limit,
			CohesionReference: in.CohesionReference,
			CohesionTolerance: in.CohesionTolerance,
			TargetPriority:    in.Priority,
			Mode:              in.Mode,
		})
		if !eval.Eligible || !eval.Score.IsPositive() {
			continue
		}

		candidates = append(candidates, Candidate{
			Nation:     friendly,
			Capacity:   capacity,
			Evaluation: eval,
			Load:       load,
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		ci, cj := candidates[i], candidates[j]
		if cmp := ci.Evaluation.Score.Cmp(cj.Evaluation.Score); cmp != 0 {
			return cmp > 0
		}
		if ci.Load != cj.Load {
			return ci.Load < cj.Load
		}
		return ci.Nation.NationID < cj.Nation.NationID
	})

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates
}
