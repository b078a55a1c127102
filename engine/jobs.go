/*
jobs.go - Task queue contract for long-running recomputation

PURPOSE:
  Bulk operations (target priority recomputation, bulk auto-pick) are
  enqueued and return immediately. Execution is at-least-once, so every
  consuming handler must be idempotent - which the uniqueness invariants
  already guarantee: re-running an auto-pick upserts by (target, friendly)
  and never duplicates rows.

SEE ALSO:
  - api/runner.go: In-process queue + worker implementation
  - plan/service.go, counter/service.go: Job handlers
*/
package engine

import (
	"context"
	"encoding/json"
)

// =============================================================================
// JOB KINDS + PAYLOADS
// =============================================================================

type JobKind string

const (
	JobRecomputePriorities JobKind = "recompute_priorities"
	JobAutoPickPlan        JobKind = "auto_pick_plan"
	JobAutoPickCounter     JobKind = "auto_pick_counter"
)

type RecomputePrioritiesPayload struct {
	PlanID PlanID `json:"plan_id"`
}

type AutoPickPlanPayload struct {
	PlanID PlanID `json:"plan_id"`

	// TargetID narrows the pass to one target; empty means all targets.
	TargetID TargetID       `json:"target_id,omitempty"`
	Mode     EvaluationMode `json:"mode,omitempty"`
}

type AutoPickCounterPayload struct {
	CounterID CounterID `json:"counter_id"`
}

// MarshalPayload is a convenience for enqueue call sites.
func MarshalPayload(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}

// =============================================================================
// TASK QUEUE - Fire-and-forget enqueue, at-least-once execution
// =============================================================================

type TaskQueue interface {
	Enqueue(ctx context.Context, kind JobKind, payload []byte) error
}
