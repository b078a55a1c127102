/*
Package engine provides the core war-coordination engine.

PURPOSE:
  This package contains the domain types and algorithms for matching friendly
  nations against prioritized enemy targets: capacity accounting, candidate
  scoring, assignment allocation, squad grouping, and counter suppression.
  It knows nothing about HTTP, SQL, or job runners - those live in api/ and
  store/.

KEY CONCEPTS IN THIS FILE (types.go):
  - Score: A decimal-backed match/priority quantity (avoids float drift)
  - Plan: A proactive, multi-target campaign with tunables and lifecycle
  - Counter: A reactive, single-aggressor operation
  - Target: An enemy nation tracked within a Plan, with a priority score
  - Assignment: A friendly-to-target pairing (proposed/confirmed/published)
  - Squad: A derived, bounded-size grouping of assignments per target

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal for every score so ordering is stable
  2. Type Safety: Strong typing for IDs prevents mixing plan/counter/target IDs
  3. Derived views: Squads are rebuilt, never edited in place
  4. Archival: Plans and Counters are never deleted, only archived

SEE ALSO:
  - policy.go: AllocationPolicy tunables
  - capacity.go: Offensive slot accounting
  - scoring.go: Candidate evaluation
  - squads.go: Squad rebuild algorithm
*/
package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SCORE - Decimal-backed quantity used for match/priority/cohesion values
// =============================================================================

type Score struct {
	Value decimal.Decimal
}

func NewScore(value float64) Score {
	return Score{Value: decimal.NewFromFloat(value)}
}

func NewScoreFromInt(value int) Score {
	return Score{Value: decimal.NewFromInt(int64(value))}
}

func ZeroScore() Score { return Score{Value: decimal.Zero} }

func MustParseScore(s string) Score {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return ZeroScore()
	}
	return Score{Value: d}
}

func (s Score) Add(b Score) Score            { return Score{Value: s.Value.Add(b.Value)} }
func (s Score) Sub(b Score) Score            { return Score{Value: s.Value.Sub(b.Value)} }
func (s Score) Mul(b Score) Score            { return Score{Value: s.Value.Mul(b.Value)} }
func (s Score) Div(b Score) Score            { return Score{Value: s.Value.Div(b.Value)} }
func (s Score) Neg() Score                   { return Score{Value: s.Value.Neg()} }
func (s Score) Abs() Score                   { return Score{Value: s.Value.Abs()} }
func (s Score) IsZero() bool                 { return s.Value.IsZero() }
func (s Score) IsNegative() bool             { return s.Value.IsNegative() }
func (s Score) IsPositive() bool             { return s.Value.IsPositive() }
func (s Score) GreaterThan(b Score) bool     { return s.Value.GreaterThan(b.Value) }
func (s Score) LessThan(b Score) bool        { return s.Value.LessThan(b.Value) }
func (s Score) Equal(b Score) bool           { return s.Value.Equal(b.Value) }
func (s Score) Cmp(b Score) int              { return s.Value.Cmp(b.Value) }
func (s Score) Float() float64               { f, _ := s.Value.Float64(); return f }

func (s Score) Min(b Score) Score {
	if s.LessThan(b) {
		return s
	}
	return b
}

func (s Score) Max(b Score) Score {
	if s.GreaterThan(b) {
		return s
	}
	return b
}

// Clamp01 bounds a score into [0, 1].
func (s Score) Clamp01() Score {
	one := NewScoreFromInt(1)
	if s.IsNegative() {
		return ZeroScore()
	}
	if s.GreaterThan(one) {
		return one
	}
	return s
}

// MeanScore returns the arithmetic mean of the given scores (zero for empty).
func MeanScore(scores []Score) Score {
	if len(scores) == 0 {
		return ZeroScore()
	}
	sum := ZeroScore()
	for _, s := range scores {
		sum = sum.Add(s)
	}
	return sum.Div(NewScoreFromInt(len(scores)))
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type PlanID string
type CounterID string
type TargetID string
type AssignmentID string
type SquadID string
type LinkID string

// NationID and AllianceID are numeric because the nation directory and the
// transfer document use integer identifiers on the wire.
type NationID int64
type AllianceID int64

// =============================================================================
// ENGAGEMENT TYPES
// =============================================================================

type EngagementType string

const (
	EngagementRaid      EngagementType = "raid"
	EngagementOrdinary  EngagementType = "ordinary"
	EngagementAttrition EngagementType = "attrition"
)

func (e EngagementType) Valid() bool {
	switch e {
	case EngagementRaid, EngagementOrdinary, EngagementAttrition:
		return true
	}
	return false
}

// =============================================================================
// PLAN - Proactive, alliance-wide campaign
// =============================================================================

type PlanStatus string

const (
	PlanPlanning PlanStatus = "planning"
	PlanActive   PlanStatus = "active"
	PlanArchived PlanStatus = "archived"
)

// PlanTunables are the per-plan knobs the allocator and squad builder read.
// Defaults come from AllocationPolicy when a plan is created.
type PlanTunables struct {
	PreferredTargetsPerFriendly int
	ActivityWindowHours         int
	MaxSquadSize                int
	SquadCohesionTolerance      Score
	SuppressCountersWhenActive  bool
}

type Plan struct {
	ID                PlanID
	Name              string
	DefaultEngagement EngagementType
	Status            PlanStatus
	Tunables          PlanTunables
	Options           map[string]string

	ActivatedAt            *time.Time
	ArchivedAt             *time.Time
	AssignmentsPublishedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (p Plan) IsArchived() bool { return p.Status == PlanArchived }

// =============================================================================
// COUNTER - Reactive, single-aggressor operation
// =============================================================================

type CounterStatus string

const (
	CounterDraft    CounterStatus = "draft"
	CounterActive   CounterStatus = "active"
	CounterArchived CounterStatus = "archived"
)

type Counter struct {
	ID         CounterID
	AggressorID NationID

	// AllianceID is the defending alliance whose members form the friendly
	// pool for this counter.
	AllianceID AllianceID

	Status              CounterStatus
	TeamSize            int
	PreferredEngagement EngagementType

	// SuppressedByPlanID is set when an active plan starts covering the
	// aggressor's alliance after this counter already existed.
	SuppressedByPlanID *PlanID

	Settings map[string]string

	FinalizedAt       *time.Time
	ArchivedAt        *time.Time
	LastWarDeclaredAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (c Counter) IsArchived() bool { return c.Status == CounterArchived }

// =============================================================================
// ALLIANCE LINK - Ties a plan to an alliance as friendly pool or enemy side
// =============================================================================

type AllianceRole string

const (
	RoleFriendly AllianceRole = "friendly"
	RoleEnemy    AllianceRole = "enemy"
)

func (r AllianceRole) Valid() bool { return r == RoleFriendly || r == RoleEnemy }

type AllianceLink struct {
	ID         LinkID
	PlanID     PlanID
	AllianceID AllianceID
	Role       AllianceRole
	CreatedAt  time.Time
}

// =============================================================================
// TARGET - Enemy nation tracked within a plan
// =============================================================================

type Target struct {
	ID       TargetID
	PlanID   PlanID
	NationID NationID

	// PriorityScore (TPS) ranks how valuable this target is to engage.
	PriorityScore       Score
	PreferredEngagement EngagementType
	Meta                map[string]string
	ComputedAt          time.Time

	CreatedAt time.Time
}

// =============================================================================
// ASSIGNMENT - One friendly nation paired to one target (or counter aggressor)
// =============================================================================

type AssignmentStatus string

const (
	AssignmentProposed  AssignmentStatus = "proposed"
	AssignmentConfirmed AssignmentStatus = "confirmed"
	AssignmentPublished AssignmentStatus = "published"
	AssignmentFinalized AssignmentStatus = "finalized" // counter assignments only
)

// Assignment belongs to exactly one plan OR one counter. Plan assignments
// reference a target; counter assignments reference the counter's aggressor
// implicitly, so TargetID is empty for them.
type Assignment struct {
	ID        AssignmentID
	PlanID    *PlanID
	CounterID *CounterID
	TargetID  TargetID

	FriendlyNationID NationID
	MatchScore       Score
	Status           AssignmentStatus

	// IsOverridden marks manually created assignments; IsLocked excludes an
	// assignment from automatic re-allocation passes.
	IsOverridden bool
	IsLocked     bool

	SquadID *SquadID
	Meta    map[string]string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// =============================================================================
// SQUAD - Derived, bounded-size grouping of assignments per target
// =============================================================================

type Squad struct {
	ID       SquadID
	PlanID   PlanID
	TargetID TargetID
	Label    string
	Round    int

	// CohesionScore is the mean match score of members. Derived, not
	// independently authoritative.
	CohesionScore Score

	CreatedAt time.Time
}
