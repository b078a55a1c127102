/*
suppression.go - Blocks reactive counters covered by an active plan

PURPOSE:
  Maintains the set of alliance identifiers currently enrolled as enemy on
  any ACTIVE plan that has suppress_counters_when_active set. Counter
  creation checks the aggressor's alliance against this set; a match is
  refused with the blocking plan surfaced to the operator.

CACHING:
  SuppressionIndex is an explicit value recomputed from current plans - no
  hidden process-wide state. SuppressionCache memoizes it and is invalidated
  synchronously on every write that could affect it (plan activation or
  archival, alliance-link addition or removal). There is no asynchronous
  invalidation, so the staleness window is zero.

SEE ALSO:
  - counter/service.go: Consults the cache before creating a counter
  - plan/service.go: Invalidates the cache on relevant mutations
*/
package engine

import (
	"context"
	"sync"
)

// =============================================================================
// SUPPRESSION INDEX - Explicit value, recomputed on demand
// =============================================================================

type SuppressionIndex struct {
	byAlliance map[AllianceID]PlanID
}

// Blocks returns the blocking plan for an alliance, if any.
func (i SuppressionIndex) Blocks(alliance AllianceID) (PlanID, bool) {
	planID, ok := i.byAlliance[alliance]
	return planID, ok
}

// Size returns the number of suppressed alliances.
func (i SuppressionIndex) Size() int { return len(i.byAlliance) }

// BuildSuppressionIndex derives the index from the given plans and their
// alliance links. Only active plans with the suppression flag contribute,
// and only their enemy-role links.
func BuildSuppressionIndex(plans []Plan, linksByPlan map[PlanID][]AllianceLink) SuppressionIndex {
	index := SuppressionIndex{byAlliance: make(map[AllianceID]PlanID)}
	for _, p := range plans {
		if p.Status != PlanActive || !p.Tunables.SuppressCountersWhenActive {
			continue
		}
		for _, link := range linksByPlan[p.ID] {
			if link.Role != RoleEnemy {
				continue
			}
			if _, taken := index.byAlliance[link.AllianceID]; !taken {
				index.byAlliance[link.AllianceID] = p.ID
			}
		}
	}
	return index
}

// =============================================================================
// SUPPRESSION CACHE - Refreshed synchronously on relevant writes
// =============================================================================

type SuppressionCache struct {
	mu    sync.Mutex
	index SuppressionIndex
	valid bool
}

func NewSuppressionCache() *SuppressionCache {
	return &SuppressionCache{}
}

// Invalidate marks the cache dirty. Called by the plan service after any
// mutation that could change the suppressed set.
func (c *SuppressionCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.valid = false
}

// Current returns the index, recomputing it from the repositories if a
// relevant write invalidated it.
func (c *SuppressionCache) Current(ctx context.Context, plans PlanRepository, links AllianceLinkRepository) (SuppressionIndex, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.valid {
		return c.index, nil
	}

	active, err := plans.ListPlansByStatus(ctx, PlanActive)
	if err != nil {
		return SuppressionIndex{}, err
	}

	linksByPlan := make(map[PlanID][]AllianceLink, len(active))
	for _, p := range active {
		planLinks, err := links.ListLinksByPlan(ctx, p.ID)
		if err != nil {
			return SuppressionIndex{}, err
		}
		linksByPlan[p.ID] = planLinks
	}

	c.index = BuildSuppressionIndex(active, linksByPlan)
	c.valid = true
	return c.index, nil
}
