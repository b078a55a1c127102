/*
transfer.go - Versioned transfer document: export, import, dry-run diff

PURPOSE:
  A plan's full configuration (metadata, tunables, alliance links, targets
  with priority scores, assignments) serializes to a schema-versioned JSON
  document and can be re-imported into a plan on another system.

SCHEMA:
  Only schema_version 1 is accepted. Any other value is rejected wholesale -
  no partial application, the target plan's state is untouched.

IMPORT SEMANTICS:
  dry_run=true  : compute and return a diff (name change, tunable changes,
                  target additions/removals, alliance-role differences,
                  assignment delta) with zero mutations.
  dry_run=false : apply metadata/tunables, upsert alliance links, upsert
                  targets keyed by (plan, nation), upsert assignments keyed
                  by (plan, target nation, friendly), then unconditionally
                  rebuild squads. Targets absent from the document are
                  reported in the diff but never deleted.

SEE ALSO:
  - service.go: Squad rebuild triggered after import
*/
package plan

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/warp/strike-engine/engine"
)

// SchemaVersion is the only accepted transfer document version.
const SchemaVersion = 1

// =============================================================================
// DOCUMENT TYPES
// =============================================================================

type Document struct {
	SchemaVersion int              `json:"schema_version"`
	Metadata      DocumentMetadata `json:"metadata"`
	Options       DocumentOptions  `json:"options"`
	Alliances     DocumentAlliances `json:"alliances"`

	// Targets and Assignments are omitted for an options-only export.
	Targets     []DocumentTarget     `json:"targets,omitempty"`
	Assignments []DocumentAssignment `json:"assignments,omitempty"`
}

type DocumentMetadata struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	PlanType   string `json:"plan_type"`
	Status     string `json:"status"`
	ExportedAt string `json:"exported_at"`
}

type DocumentOptions struct {
	PreferredTargetsPerFriendly int               `json:"preferred_targets_per_friendly"`
	ActivityWindowHours         int               `json:"activity_window_hours"`
	MaxSquadSize                int               `json:"max_squad_size"`
	SquadCohesionTolerance      float64           `json:"squad_cohesion_tolerance"`
	SuppressCountersWhenActive  bool              `json:"suppress_counters_when_active"`
	Custom                      map[string]string `json:"custom,omitempty"`
}

type DocumentAlliances struct {
	Friendly []int64 `json:"friendly"`
	Enemy    []int64 `json:"enemy"`
}

type DocumentTarget struct {
	NationID                int64             `json:"nation_id"`
	TPS                     float64           `json:"tps"`
	PreferredEngagementType string            `json:"preferred_engagement_type"`
	Meta                    map[string]string `json:"meta,omitempty"`
	ComputedAt              string            `json:"computed_at"`
}

type DocumentAssignment struct {
	FriendlyNationID int64             `json:"friendly_nation_id"`
	TargetID         int64             `json:"target_id"` // target's nation id, the stable cross-system key
	MatchScore       float64           `json:"match_score"`
	Status           string            `json:"status"`
	Meta             map[string]string `json:"meta,omitempty"`
	SquadID          string            `json:"squad_id,omitempty"`
}

// =============================================================================
// EXPORT
// =============================================================================

// Export serializes the plan. optionsOnly omits targets and assignments.
func (s *Service) Export(ctx context.Context, planID engine.PlanID, optionsOnly bool) (*Document, error) {
	p, err := s.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}

	doc := &Document{
		SchemaVersion: SchemaVersion,
		Metadata: DocumentMetadata{
			ID:         string(p.ID),
			Name:       p.Name,
			PlanType:   string(p.DefaultEngagement),
			Status:     string(p.Status),
			ExportedAt: s.Clock().UTC().Format(time.RFC3339),
		},
		Options: DocumentOptions{
			PreferredTargetsPerFriendly: p.Tunables.PreferredTargetsPerFriendly,
			ActivityWindowHours:         p.Tunables.ActivityWindowHours,
			MaxSquadSize:                p.Tunables.MaxSquadSize,
			SquadCohesionTolerance:      p.Tunables.SquadCohesionTolerance.Float(),
			SuppressCountersWhenActive:  p.Tunables.SuppressCountersWhenActive,
			Custom:                      p.Options,
		},
	}

	links, err := s.Repos.ListLinksByPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	for _, l := range links {
		switch l.Role {
		case engine.RoleFriendly:
			doc.Alliances.Friendly = append(doc.Alliances.Friendly, int64(l.AllianceID))
		case engine.RoleEnemy:
			doc.Alliances.Enemy = append(doc.Alliances.Enemy, int64(l.AllianceID))
		}
	}

	if optionsOnly {
		return doc, nil
	}

	targets, err := s.Repos.ListTargetsByPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	targetNation := make(map[engine.TargetID]engine.NationID, len(targets))
	for _, t := range targets {
		targetNation[t.ID] = t.NationID
		doc.Targets = append(doc.Targets, DocumentTarget{
			NationID:                int64(t.NationID),
			TPS:                     t.PriorityScore.Float(),
			PreferredEngagementType: string(t.PreferredEngagement),
			Meta:                    t.Meta,
			ComputedAt:              t.ComputedAt.UTC().Format(time.RFC3339),
		})
	}

	assignments, err := s.Repos.ListByPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	for _, a := range assignments {
		da := DocumentAssignment{
			FriendlyNationID: int64(a.FriendlyNationID),
			TargetID:         int64(targetNation[a.TargetID]),
			MatchScore:       a.MatchScore.Float(),
			Status:           string(a.Status),
			Meta:             a.Meta,
		}
		if a.SquadID != nil {
			da.SquadID = string(*a.SquadID)
		}
		doc.Assignments = append(doc.Assignments, da)
	}

	return doc, nil
}

// =============================================================================
// DIFF
// =============================================================================

// Diff describes what a non-dry-run import would change.
type Diff struct {
	NameChange      *FieldChange   `json:"name_change,omitempty"`
	TunableChanges  []FieldChange  `json:"tunable_changes,omitempty"`
	TargetsAdded    []int64        `json:"targets_added,omitempty"`
	TargetsRemoved  []int64        `json:"targets_removed,omitempty"`
	AllianceChanges []RoleChange   `json:"alliance_changes,omitempty"`
	AssignmentsIn   int            `json:"assignments_in_document"`
	AssignmentsNow  int            `json:"assignments_current"`
}

type FieldChange struct {
	Field string `json:"field"`
	From  string `json:"from"`
	To    string `json:"to"`
}

type RoleChange struct {
	AllianceID int64  `json:"alliance_id"`
	From       string `json:"from"` // "" when newly enrolled
	To         string `json:"to"`   // "" when absent from document
}

// ImportResult is the diff plus whether it was applied.
type ImportResult struct {
	Diff    Diff `json:"diff"`
	Applied bool `json:"applied"`
}

// =============================================================================
// IMPORT
// =============================================================================

// Import validates the document, computes the diff, and - unless dryRun -
// applies it and rebuilds squads. Schema rejection happens before anything
// else, so a bad version never touches state.
func (s *Service) Import(ctx context.Context, planID engine.PlanID, doc Document, dryRun bool) (*ImportResult, error) {
	if doc.SchemaVersion != SchemaVersion {
		return nil, &engine.SchemaError{Got: doc.SchemaVersion, Want: SchemaVersion}
	}

	p, err := s.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	if p.IsArchived() {
		return nil, engine.ErrPlanArchived
	}

	diff, err := s.computeDiff(ctx, *p, doc)
	if err != nil {
		return nil, err
	}
	if dryRun {
		return &ImportResult{Diff: *diff, Applied: false}, nil
	}

	err = s.Repos.WithTx(ctx, func(repos engine.Repositories) error {
		if err := s.applyMetadata(ctx, repos, p, doc); err != nil {
			return err
		}
		if err := s.applyAlliances(ctx, repos, *p, doc); err != nil {
			return err
		}
		targetByNation, err := s.applyTargets(ctx, repos, *p, doc)
		if err != nil {
			return err
		}
		if err := s.applyAssignments(ctx, repos, *p, doc, targetByNation); err != nil {
			return err
		}
		return s.rebuildSquadsTx(ctx, repos, planID, p.Tunables.MaxSquadSize)
	})
	if err != nil {
		return nil, err
	}

	s.Suppression.Invalidate()
	return &ImportResult{Diff: *diff, Applied: true}, nil
}

func (s *Service) computeDiff(ctx context.Context, p engine.Plan, doc Document) (*Diff, error) {
	diff := &Diff{AssignmentsIn: len(doc.Assignments)}

	if doc.Metadata.Name != "" && doc.Metadata.Name != p.Name {
		diff.NameChange = &FieldChange{Field: "name", From: p.Name, To: doc.Metadata.Name}
	}
	diff.TunableChanges = tunableChanges(p.Tunables, doc.Options)

	current, err := s.Repos.ListTargetsByPlan(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	currentNations := make(map[engine.NationID]bool, len(current))
	for _, t := range current {
		currentNations[t.NationID] = true
	}
	docNations := make(map[engine.NationID]bool, len(doc.Targets))
	for _, dt := range doc.Targets {
		docNations[engine.NationID(dt.NationID)] = true
		if !currentNations[engine.NationID(dt.NationID)] {
			diff.TargetsAdded = append(diff.TargetsAdded, dt.NationID)
		}
	}
	for _, t := range current {
		if !docNations[t.NationID] {
			diff.TargetsRemoved = append(diff.TargetsRemoved, int64(t.NationID))
		}
	}

	links, err := s.Repos.ListLinksByPlan(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	currentRoles := make(map[engine.AllianceID]engine.AllianceRole, len(links))
	for _, l := range links {
		currentRoles[l.AllianceID] = l.Role
	}
	docRoles := make(map[engine.AllianceID]engine.AllianceRole)
	for _, id := range doc.Alliances.Friendly {
		docRoles[engine.AllianceID(id)] = engine.RoleFriendly
	}
	for _, id := range doc.Alliances.Enemy {
		docRoles[engine.AllianceID(id)] = engine.RoleEnemy
	}
	for id, role := range docRoles {
		if currentRoles[id] != role {
			diff.AllianceChanges = append(diff.AllianceChanges, RoleChange{
				AllianceID: int64(id), From: string(currentRoles[id]), To: string(role),
			})
		}
	}
	for id, role := range currentRoles {
		if _, inDoc := docRoles[id]; !inDoc {
			diff.AllianceChanges = append(diff.AllianceChanges, RoleChange{
				AllianceID: int64(id), From: string(role), To: "",
			})
		}
	}

	assignments, err := s.Repos.ListByPlan(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	diff.AssignmentsNow = len(assignments)
	return diff, nil
}

func tunableChanges(current engine.PlanTunables, opts DocumentOptions) []FieldChange {
	var changes []FieldChange
	add := func(field string, from, to any) {
		changes = append(changes, FieldChange{
			Field: field,
			From:  stringify(from),
			To:    stringify(to),
		})
	}
	if opts.PreferredTargetsPerFriendly != current.PreferredTargetsPerFriendly {
		add("preferred_targets_per_friendly", current.PreferredTargetsPerFriendly, opts.PreferredTargetsPerFriendly)
	}
	if opts.ActivityWindowHours != current.ActivityWindowHours {
		add("activity_window_hours", current.ActivityWindowHours, opts.ActivityWindowHours)
	}
	if opts.MaxSquadSize != current.MaxSquadSize {
		add("max_squad_size", current.MaxSquadSize, opts.MaxSquadSize)
	}
	if !engine.NewScore(opts.SquadCohesionTolerance).Equal(current.SquadCohesionTolerance) {
		add("squad_cohesion_tolerance", current.SquadCohesionTolerance.Float(), opts.SquadCohesionTolerance)
	}
	if opts.SuppressCountersWhenActive != current.SuppressCountersWhenActive {
		add("suppress_counters_when_active", current.SuppressCountersWhenActive, opts.SuppressCountersWhenActive)
	}
	return changes
}

func stringify(v any) string { return fmt.Sprint(v) }

// =============================================================================
// APPLY STEPS
// =============================================================================

func (s *Service) applyMetadata(ctx context.Context, repos engine.Repositories, p *engine.Plan, doc Document) error {
	if doc.Metadata.Name != "" {
		p.Name = doc.Metadata.Name
	}
	p.Tunables.PreferredTargetsPerFriendly = doc.Options.PreferredTargetsPerFriendly
	p.Tunables.ActivityWindowHours = doc.Options.ActivityWindowHours
	if doc.Options.MaxSquadSize > 0 {
		p.Tunables.MaxSquadSize = doc.Options.MaxSquadSize
	}
	p.Tunables.SquadCohesionTolerance = engine.NewScore(doc.Options.SquadCohesionTolerance)
	p.Tunables.SuppressCountersWhenActive = doc.Options.SuppressCountersWhenActive
	if doc.Options.Custom != nil {
		p.Options = doc.Options.Custom
	}
	p.UpdatedAt = s.Clock()
	return repos.SavePlan(ctx, *p)
}

func (s *Service) applyAlliances(ctx context.Context, repos engine.Repositories, p engine.Plan, doc Document) error {
	links, err := repos.ListLinksByPlan(ctx, p.ID)
	if err != nil {
		return err
	}
	existing := make(map[engine.AllianceID]engine.AllianceLink, len(links))
	for _, l := range links {
		existing[l.AllianceID] = l
	}

	upsert := func(id engine.AllianceID, role engine.AllianceRole) error {
		if link, ok := existing[id]; ok {
			if link.Role == role {
				return nil
			}
			link.Role = role
			return repos.SaveLink(ctx, link)
		}
		return repos.SaveLink(ctx, engine.AllianceLink{
			ID:         engine.LinkID(uuid.NewString()),
			PlanID:     p.ID,
			AllianceID: id,
			Role:       role,
			CreatedAt:  s.Clock(),
		})
	}

	for _, id := range doc.Alliances.Friendly {
		if err := upsert(engine.AllianceID(id), engine.RoleFriendly); err != nil {
			return err
		}
	}
	for _, id := range doc.Alliances.Enemy {
		if err := upsert(engine.AllianceID(id), engine.RoleEnemy); err != nil {
			return err
		}
	}
	return nil
}

// applyTargets upserts targets keyed by (plan, nation) and returns the
// nation -> target index used to resolve document assignments.
func (s *Service) applyTargets(ctx context.Context, repos engine.Repositories, p engine.Plan, doc Document) (map[engine.NationID]engine.Target, error) {
	now := s.Clock()
	index := make(map[engine.NationID]engine.Target)

	current, err := repos.ListTargetsByPlan(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	for _, t := range current {
		index[t.NationID] = t
	}

	for _, dt := range doc.Targets {
		nation := engine.NationID(dt.NationID)
		computedAt := now
		if ts, err := time.Parse(time.RFC3339, dt.ComputedAt); err == nil {
			computedAt = ts
		}

		if t, ok := index[nation]; ok {
			t.PriorityScore = engine.NewScore(dt.TPS)
			t.PreferredEngagement = engine.EngagementType(dt.PreferredEngagementType)
			t.Meta = dt.Meta
			t.ComputedAt = computedAt
			if err := repos.SaveTarget(ctx, t); err != nil {
				return nil, err
			}
			index[nation] = t
			continue
		}

		t := engine.Target{
			ID:                  engine.TargetID(uuid.NewString()),
			PlanID:              p.ID,
			NationID:            nation,
			PriorityScore:       engine.NewScore(dt.TPS),
			PreferredEngagement: engine.EngagementType(dt.PreferredEngagementType),
			Meta:                dt.Meta,
			ComputedAt:          computedAt,
			CreatedAt:           now,
		}
		if err := repos.SaveTarget(ctx, t); err != nil {
			return nil, err
		}
		index[nation] = t
	}
	return index, nil
}

// applyAssignments upserts assignments keyed by (plan, target nation,
// friendly). Locked assignments keep their lock.
func (s *Service) applyAssignments(ctx context.Context, repos engine.Repositories, p engine.Plan, doc Document, targets map[engine.NationID]engine.Target) error {
	now := s.Clock()
	for _, da := range doc.Assignments {
		target, ok := targets[engine.NationID(da.TargetID)]
		if !ok {
			continue // assignment references a target the document never declared
		}
		friendly := engine.NationID(da.FriendlyNationID)

		existing, err := repos.FindByTargetAndNation(ctx, target.ID, friendly)
		if err != nil {
			return err
		}
		if existing != nil {
			existing.MatchScore = engine.NewScore(da.MatchScore)
			if !existing.IsLocked {
				existing.Status = importedStatus(da.Status)
			}
			existing.Meta = da.Meta
			existing.UpdatedAt = now
			if err := repos.SaveAssignment(ctx, *existing); err != nil {
				return err
			}
			continue
		}

		planID := p.ID
		a := engine.Assignment{
			ID:               engine.AssignmentID(uuid.NewString()),
			PlanID:           &planID,
			TargetID:         target.ID,
			FriendlyNationID: friendly,
			MatchScore:       engine.NewScore(da.MatchScore),
			Status:           importedStatus(da.Status),
			Meta:             da.Meta,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := repos.SaveAssignment(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

func importedStatus(s string) engine.AssignmentStatus {
	switch engine.AssignmentStatus(s) {
	case engine.AssignmentConfirmed:
		return engine.AssignmentConfirmed
	case engine.AssignmentPublished:
		return engine.AssignmentPublished
	default:
		return engine.AssignmentProposed
	}
}
