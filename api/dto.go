/*
dto.go - Request/response data structures for the HTTP API

PURPOSE:
  Wire types for the REST surface. DTOs are flat JSON shapes decoupled from
  the engine types so the engine can evolve without breaking API clients.
  Scores cross the wire as float64; the engine keeps them decimal.

SEE ALSO:
  - handlers.go: Serialization call sites
  - plan/transfer.go: The transfer document has its own wire schema
*/
package api

import (
	"time"

	"github.com/warp/strike-engine/engine"
)

// =============================================================================
// ERROR RESPONSE
// =============================================================================

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`

	// BlockingPlanID is set on suppression conflicts so the client can point
	// the operator at the covering plan.
	BlockingPlanID string `json:"blocking_plan_id,omitempty"`
}

// =============================================================================
// PLAN DTOs
// =============================================================================

type PlanDTO struct {
	ID                string            `json:"id"`
	Name              string            `json:"name"`
	DefaultEngagement string            `json:"default_engagement"`
	Status            string            `json:"status"`
	Tunables          PlanTunablesDTO   `json:"tunables"`
	Options           map[string]string `json:"options,omitempty"`

	ActivatedAt            *string `json:"activated_at,omitempty"`
	ArchivedAt             *string `json:"archived_at,omitempty"`
	AssignmentsPublishedAt *string `json:"assignments_published_at,omitempty"`

	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type PlanTunablesDTO struct {
	PreferredTargetsPerFriendly int     `json:"preferred_targets_per_friendly"`
	ActivityWindowHours         int     `json:"activity_window_hours"`
	MaxSquadSize                int     `json:"max_squad_size"`
	SquadCohesionTolerance      float64 `json:"squad_cohesion_tolerance"`
	SuppressCountersWhenActive  bool    `json:"suppress_counters_when_active"`
}

type CreatePlanRequest struct {
	Name              string            `json:"name"`
	DefaultEngagement string            `json:"default_engagement,omitempty"`
	Tunables          *PlanTunablesDTO  `json:"tunables,omitempty"`
	Options           map[string]string `json:"options,omitempty"`
}

type AllianceLinkDTO struct {
	ID         string `json:"id"`
	AllianceID int64  `json:"alliance_id"`
	Role       string `json:"role"`
	CreatedAt  string `json:"created_at"`
}

type AddAllianceRequest struct {
	AllianceID int64  `json:"alliance_id"`
	Role       string `json:"role"`
}

type TargetDTO struct {
	ID                  string            `json:"id"`
	NationID            int64             `json:"nation_id"`
	PriorityScore       float64           `json:"priority_score"`
	PreferredEngagement string            `json:"preferred_engagement"`
	Meta                map[string]string `json:"meta,omitempty"`
	ComputedAt          string            `json:"computed_at"`
	CreatedAt           string            `json:"created_at"`
}

type AddTargetRequest struct {
	NationID            int64  `json:"nation_id"`
	PreferredEngagement string `json:"preferred_engagement,omitempty"`
}

type AssignmentDTO struct {
	ID               string            `json:"id"`
	PlanID           string            `json:"plan_id,omitempty"`
	CounterID        string            `json:"counter_id,omitempty"`
	TargetID         string            `json:"target_id,omitempty"`
	FriendlyNationID int64             `json:"friendly_nation_id"`
	MatchScore       float64           `json:"match_score"`
	Status           string            `json:"status"`
	IsOverridden     bool              `json:"is_overridden"`
	IsLocked         bool              `json:"is_locked"`
	SquadID          string            `json:"squad_id,omitempty"`
	Meta             map[string]string `json:"meta,omitempty"`
	CreatedAt        string            `json:"created_at"`
	UpdatedAt        string            `json:"updated_at"`
}

type ManualAssignRequest struct {
	FriendlyNationID int64 `json:"friendly_nation_id"`
}

type CandidateDTO struct {
	NationID                   int64              `json:"nation_id"`
	Name                       string             `json:"name"`
	Score                      float64            `json:"score"`
	Factors                    map[string]float64 `json:"factors,omitempty"`
	Floored                    bool               `json:"floored,omitempty"`
	Load                       int                `json:"load"`
	AvailableSlots             int                `json:"available_slots"`
	RemainingSlots             int                `json:"remaining_slots"`
	RemainingOffensiveCapacity int                `json:"remaining_offensive_capacity"`
}

type SquadDTO struct {
	ID            string  `json:"id"`
	TargetID      string  `json:"target_id"`
	Label         string  `json:"label"`
	Round         int     `json:"round"`
	CohesionScore float64 `json:"cohesion_score"`
	CreatedAt     string  `json:"created_at"`
}

type PublishRequest struct {
	InGame               bool `json:"in_game"`
	ExternalAlert        bool `json:"external_alert"`
	CreateDiscussionRoom bool `json:"create_discussion_room"`
}

type AutoPickRequest struct {
	TargetID string `json:"target_id,omitempty"`
	Mode     string `json:"mode,omitempty"` // "auto" (default) or "manual"
}

// =============================================================================
// COUNTER DTOs
// =============================================================================

type CounterDTO struct {
	ID                  string            `json:"id"`
	AggressorID         int64             `json:"aggressor_id"`
	AllianceID          int64             `json:"alliance_id"`
	Status              string            `json:"status"`
	TeamSize            int               `json:"team_size"`
	PreferredEngagement string            `json:"preferred_engagement"`
	SuppressedByPlanID  string            `json:"suppressed_by_plan_id,omitempty"`
	Settings            map[string]string `json:"settings,omitempty"`

	FinalizedAt       *string `json:"finalized_at,omitempty"`
	ArchivedAt        *string `json:"archived_at,omitempty"`
	LastWarDeclaredAt *string `json:"last_war_declared_at,omitempty"`

	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type CreateCounterRequest struct {
	AggressorID         int64             `json:"aggressor_id"`
	AllianceID          int64             `json:"alliance_id"`
	TeamSize            int               `json:"team_size,omitempty"`
	PreferredEngagement string            `json:"preferred_engagement,omitempty"`
	Settings            map[string]string `json:"settings,omitempty"`
}

// =============================================================================
// NATION DTOs
// =============================================================================

type NationDTO struct {
	NationID      int64           `json:"nation_id"`
	Name          string          `json:"name"`
	AllianceID    int64           `json:"alliance_id"`
	AllianceRank  string          `json:"alliance_rank"`
	Score         float64         `json:"score"`
	OffensiveWars int             `json:"offensive_wars"`
	DefensiveWars int             `json:"defensive_wars"`
	Projects      map[string]bool `json:"projects,omitempty"`
	LastActiveAt  string          `json:"last_active_at,omitempty"`

	Capacity CapacityDTO `json:"capacity"`
}

type CapacityDTO struct {
	AvailableSlots             int  `json:"available_slots"`
	RemainingSlots             int  `json:"remaining_slots"`
	RemainingOffensiveCapacity int  `json:"remaining_offensive_capacity"`
	Eligible                   bool `json:"eligible"`
}

// =============================================================================
// SCENARIO DTOs
// =============================================================================

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toPlanDTO(p engine.Plan) PlanDTO {
	return PlanDTO{
		ID:                string(p.ID),
		Name:              p.Name,
		DefaultEngagement: string(p.DefaultEngagement),
		Status:            string(p.Status),
		Tunables: PlanTunablesDTO{
			PreferredTargetsPerFriendly: p.Tunables.PreferredTargetsPerFriendly,
			ActivityWindowHours:         p.Tunables.ActivityWindowHours,
			MaxSquadSize:                p.Tunables.MaxSquadSize,
			SquadCohesionTolerance:      p.Tunables.SquadCohesionTolerance.Float(),
			SuppressCountersWhenActive:  p.Tunables.SuppressCountersWhenActive,
		},
		Options:                p.Options,
		ActivatedAt:            formatTimePtr(p.ActivatedAt),
		ArchivedAt:             formatTimePtr(p.ArchivedAt),
		AssignmentsPublishedAt: formatTimePtr(p.AssignmentsPublishedAt),
		CreatedAt:              p.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:              p.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func toCounterDTO(c engine.Counter) CounterDTO {
	dto := CounterDTO{
		ID:                  string(c.ID),
		AggressorID:         int64(c.AggressorID),
		AllianceID:          int64(c.AllianceID),
		Status:              string(c.Status),
		TeamSize:            c.TeamSize,
		PreferredEngagement: string(c.PreferredEngagement),
		Settings:            c.Settings,
		FinalizedAt:         formatTimePtr(c.FinalizedAt),
		ArchivedAt:          formatTimePtr(c.ArchivedAt),
		LastWarDeclaredAt:   formatTimePtr(c.LastWarDeclaredAt),
		CreatedAt:           c.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:           c.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if c.SuppressedByPlanID != nil {
		dto.SuppressedByPlanID = string(*c.SuppressedByPlanID)
	}
	return dto
}

func toTargetDTO(t engine.Target) TargetDTO {
	return TargetDTO{
		ID:                  string(t.ID),
		NationID:            int64(t.NationID),
		PriorityScore:       t.PriorityScore.Float(),
		PreferredEngagement: string(t.PreferredEngagement),
		Meta:                t.Meta,
		ComputedAt:          t.ComputedAt.UTC().Format(time.RFC3339),
		CreatedAt:           t.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func toAssignmentDTO(a engine.Assignment) AssignmentDTO {
	dto := AssignmentDTO{
		ID:               string(a.ID),
		TargetID:         string(a.TargetID),
		FriendlyNationID: int64(a.FriendlyNationID),
		MatchScore:       a.MatchScore.Float(),
		Status:           string(a.Status),
		IsOverridden:     a.IsOverridden,
		IsLocked:         a.IsLocked,
		Meta:             a.Meta,
		CreatedAt:        a.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:        a.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if a.PlanID != nil {
		dto.PlanID = string(*a.PlanID)
	}
	if a.CounterID != nil {
		dto.CounterID = string(*a.CounterID)
	}
	if a.SquadID != nil {
		dto.SquadID = string(*a.SquadID)
	}
	return dto
}

func toCandidateDTO(c engine.Candidate) CandidateDTO {
	factors := make(map[string]float64, len(c.Evaluation.Factors))
	for name, score := range c.Evaluation.Factors {
		factors[name] = score.Float()
	}
	return CandidateDTO{
		NationID:                   int64(c.Nation.NationID),
		Name:                       c.Nation.Name,
		Score:                      c.Evaluation.Score.Float(),
		Factors:                    factors,
		Floored:                    c.Evaluation.Floored,
		Load:                       c.Load,
		AvailableSlots:             c.Capacity.AvailableSlots,
		RemainingSlots:             c.Capacity.RemainingSlots,
		RemainingOffensiveCapacity: c.Capacity.RemainingOffensiveCapacity,
	}
}

func toSquadDTO(sq engine.Squad) SquadDTO {
	return SquadDTO{
		ID:            string(sq.ID),
		TargetID:      string(sq.TargetID),
		Label:         sq.Label,
		Round:         sq.Round,
		CohesionScore: sq.CohesionScore.Float(),
		CreatedAt:     sq.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func toNationDTO(snap engine.NationSnapshot, capacity engine.Capacity) NationDTO {
	dto := NationDTO{
		NationID:      int64(snap.NationID),
		Name:          snap.Name,
		AllianceID:    int64(snap.AllianceID),
		AllianceRank:  snap.AllianceRank,
		Score:         snap.Score.Float(),
		OffensiveWars: snap.OffensiveWars,
		DefensiveWars: snap.DefensiveWars,
		Projects:      snap.Projects,
		Capacity: CapacityDTO{
			AvailableSlots:             capacity.AvailableSlots,
			RemainingSlots:             capacity.RemainingSlots,
			RemainingOffensiveCapacity: capacity.RemainingOffensiveCapacity,
			Eligible:                   capacity.Eligible(),
		},
	}
	if !snap.LastActiveAt.IsZero() {
		dto.LastActiveAt = snap.LastActiveAt.UTC().Format(time.RFC3339)
	}
	return dto
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}
