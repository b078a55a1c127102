/*
directory.go - Read contract against the nation directory

PURPOSE:
  The engine never owns nation data. It reads point-in-time snapshots of
  combat-relevant stats from a directory collaborator: alliance membership,
  rank, active war counts, project flags, and a combat-strength score.

FAILURE MODE:
  A nation with missing project data is NOT an error - the capacity ledger
  degrades to the unmodified base slot count (see capacity.go).

SEE ALSO:
  - directory/static.go: In-memory implementation (dev/demo roster)
  - capacity.go, scoring.go: Consumers of NationSnapshot
*/
package engine

import (
	"context"
	"time"
)

// =============================================================================
// NATION SNAPSHOT
// =============================================================================

// Alliance ranks as the directory reports them. Which ranks count as senior
// is an AllocationPolicy concern, not hard-coded here.
const (
	RankApplicant = "applicant"
	RankMember    = "member"
	RankOfficer   = "officer"
	RankHeir      = "heir"
	RankLeader    = "leader"
)

// NationSnapshot is a read-only view of one nation's combat-relevant stats.
type NationSnapshot struct {
	NationID     NationID
	Name         string
	AllianceID   AllianceID
	AllianceRank string

	// Score is the combat-strength figure used for declare-range and
	// relative-power computation.
	Score Score

	OffensiveWars int
	DefensiveWars int

	// Projects maps project flag names to enabled state. May be nil when the
	// directory has no project data for the nation.
	Projects map[string]bool

	LastActiveAt time.Time
}

// HasProject reports an enabled project flag; missing data reads as false.
func (n NationSnapshot) HasProject(name string) bool {
	if n.Projects == nil {
		return false
	}
	return n.Projects[name]
}

// =============================================================================
// DIRECTORY - External collaborator, read-only
// =============================================================================

type NationDirectory interface {
	// Nation returns the snapshot for one nation, or nil when the directory
	// does not know it.
	Nation(ctx context.Context, id NationID) (*NationSnapshot, error)

	// AllianceMembers returns snapshots for every member of an alliance.
	AllianceMembers(ctx context.Context, id AllianceID) ([]NationSnapshot, error)
}
