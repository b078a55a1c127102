/*
capacity.go - Capacity ledger: how many new assignments a nation may accept

PURPOSE:
  Computes two independent figures per friendly nation:

  RemainingSlots:
    available slots (base + capacity projects, minus one for senior ranks)
    minus the nation's assignment load in the current allocation pass.

  RemainingOffensiveCapacity:
    a fixed ceiling on total simultaneous offensive commitments, minus
    (active offensive wars + assignment load). This is the figure that
    accounts for wars already underway.

  A nation with either figure at zero is excluded from candidacy.

FAILURE MODE:
  No errors. Unknown or missing project data degrades to the unmodified base
  slot count - an explicit default substitution, not a failure.

SEE ALSO:
  - policy.go: BaseOffensiveSlots, CapacityProjects, SeniorRanks, ceiling
  - allocator.go: Uses Eligible() to bound candidate pools
*/
package engine

// =============================================================================
// CAPACITY
// =============================================================================

type Capacity struct {
	// AvailableSlots is the nation's configured maximum for this pass.
	AvailableSlots int

	// RemainingSlots = AvailableSlots - assignment load, floored at zero.
	RemainingSlots int

	// RemainingOffensiveCapacity = ceiling - (active offensive wars + load),
	// floored at zero.
	RemainingOffensiveCapacity int
}

// Eligible reports whether the nation can accept a new assignment.
func (c Capacity) Eligible() bool {
	return c.RemainingSlots > 0 && c.RemainingOffensiveCapacity > 0
}

// ComputeCapacity derives the capacity figures for one friendly nation.
// assignmentLoad is the count of assignments already proposed or confirmed
// for the nation within the current allocation pass.
func ComputeCapacity(snap NationSnapshot, assignmentLoad int, policy AllocationPolicy) Capacity {
	available := policy.BaseOffensiveSlots
	for _, project := range policy.CapacityProjects {
		if snap.HasProject(project) {
			available++
		}
	}

	// Leadership keeps one slot in reserve.
	if policy.IsSeniorRank(snap.AllianceRank) {
		available--
	}
	if available < 0 {
		available = 0
	}

	remaining := available - assignmentLoad
	if remaining < 0 {
		remaining = 0
	}

	offensive := policy.OffensiveWarCeiling - (snap.OffensiveWars + assignmentLoad)
	if offensive < 0 {
		offensive = 0
	}

	return Capacity{
		AvailableSlots:             available,
		RemainingSlots:             remaining,
		RemainingOffensiveCapacity: offensive,
	}
}
