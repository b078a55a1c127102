/*
Package plan implements the proactive, alliance-wide campaign lifecycle.

PURPOSE:
  A Plan enumerates enemy targets, bounds candidate pools by capacity, ranks
  friendlies per target, and groups confirmed assignments into squads. This
  package owns the Plan state machine (planning -> active -> archived), target
  and alliance-link management, manual and automatic assignment, priority
  recomputation, squad rebuilds, publication, and the versioned transfer
  document (transfer.go).

STATE MACHINE:
  create   : plan starts in `planning`
  activate : planning -> active, refreshes the counter-suppression cache
  archive  : any non-archived state -> archived (terminal, no re-activation)
  publish  : stamps assignments_published_at, proposed/confirmed -> published,
             rebuilds squads, hands the assignment set to the dispatcher once

CONCURRENCY:
  Bulk passes (auto-pick, recompute) are job handlers and idempotent: they
  upsert by the (target, friendly) uniqueness key, so at-least-once execution
  never duplicates rows. Squad rebuilds run inside one transaction per plan.

SEE ALSO:
  - engine/allocator.go: The pure allocation pass
  - transfer.go: Export/import with dry-run diff
  - counter/service.go: The reactive sibling lifecycle
*/
package plan

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/warp/strike-engine/engine"
)

// =============================================================================
// SERVICE
// =============================================================================

type Service struct {
	Repos       engine.TxRepositories
	Directory   engine.NationDirectory
	Policy      engine.AllocationPolicy
	Allocator   *engine.Allocator
	Suppression *engine.SuppressionCache
	Dispatcher  engine.Dispatcher
	Queue       engine.TaskQueue

	// Clock is swappable for tests.
	Clock func() time.Time
}

func NewService(repos engine.TxRepositories, dir engine.NationDirectory, policy engine.AllocationPolicy,
	cache *engine.SuppressionCache, dispatcher engine.Dispatcher, queue engine.TaskQueue) *Service {
	return &Service{
		Repos:       repos,
		Directory:   dir,
		Policy:      policy,
		Allocator:   engine.NewAllocator(policy),
		Suppression: cache,
		Dispatcher:  dispatcher,
		Queue:       queue,
		Clock:       time.Now,
	}
}

// =============================================================================
// LIFECYCLE
// =============================================================================

type CreatePlanInput struct {
	Name              string
	DefaultEngagement engine.EngagementType
	Tunables          *engine.PlanTunables
	Options           map[string]string
}

func (s *Service) CreatePlan(ctx context.Context, in CreatePlanInput) (*engine.Plan, error) {
	if in.Name == "" {
		return nil, &engine.ValidationError{Field: "name", Message: "required"}
	}
	engagement := in.DefaultEngagement
	if engagement == "" {
		engagement = engine.EngagementOrdinary
	}
	if !engagement.Valid() {
		return nil, &engine.ValidationError{Field: "default_engagement", Message: "unknown engagement type"}
	}

	tunables := s.Policy.TunablesForNewPlan()
	if in.Tunables != nil {
		tunables = *in.Tunables
	}
	if tunables.MaxSquadSize <= 0 {
		return nil, &engine.ValidationError{Field: "max_squad_size", Message: "must be positive"}
	}

	now := s.Clock()
	p := engine.Plan{
		ID:                engine.PlanID(uuid.NewString()),
		Name:              in.Name,
		DefaultEngagement: engagement,
		Status:            engine.PlanPlanning,
		Tunables:          tunables,
		Options:           in.Options,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.Repos.SavePlan(ctx, p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Service) GetPlan(ctx context.Context, id engine.PlanID) (*engine.Plan, error) {
	p, err := s.Repos.GetPlan(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, engine.ErrPlanNotFound
	}
	return p, nil
}

func (s *Service) ListPlans(ctx context.Context) ([]engine.Plan, error) {
	return s.Repos.ListPlans(ctx)
}

// Activate transitions planning -> active and refreshes the suppression
// cache. Existing non-archived counters whose aggressor's alliance is now
// covered get their suppressed-by reference stamped.
func (s *Service) Activate(ctx context.Context, id engine.PlanID) (*engine.Plan, error) {
	p, err := s.GetPlan(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status != engine.PlanPlanning {
		return nil, &engine.TransitionError{Entity: "plan", From: string(p.Status), To: string(engine.PlanActive)}
	}

	now := s.Clock()
	p.Status = engine.PlanActive
	p.ActivatedAt = &now
	p.UpdatedAt = now
	if err := s.Repos.SavePlan(ctx, *p); err != nil {
		return nil, err
	}

	s.Suppression.Invalidate()
	if err := s.markSuppressedCounters(ctx, *p); err != nil {
		return nil, err
	}
	return p, nil
}

// markSuppressedCounters stamps the suppressed-by reference on live counters
// whose aggressor belongs to an alliance this plan now covers.
func (s *Service) markSuppressedCounters(ctx context.Context, p engine.Plan) error {
	if !p.Tunables.SuppressCountersWhenActive || p.Status != engine.PlanActive {
		return nil
	}

	enemies, err := s.Repos.ListLinksByRole(ctx, p.ID, engine.RoleEnemy)
	if err != nil {
		return err
	}
	covered := make(map[engine.AllianceID]bool, len(enemies))
	for _, l := range enemies {
		covered[l.AllianceID] = true
	}
	if len(covered) == 0 {
		return nil
	}

	counters, err := s.Repos.ListCounters(ctx)
	if err != nil {
		return err
	}
	for _, c := range counters {
		if c.IsArchived() || c.SuppressedByPlanID != nil {
			continue
		}
		snap, err := s.Directory.Nation(ctx, c.AggressorID)
		if err != nil || snap == nil {
			continue
		}
		if covered[snap.AllianceID] {
			planID := p.ID
			c.SuppressedByPlanID = &planID
			c.UpdatedAt = s.Clock()
			if err := s.Repos.SaveCounter(ctx, c); err != nil {
				return err
			}
		}
	}
	return nil
}

// Archive is terminal: any non-archived state -> archived. The plan is kept
// (soft archival), only its derived squads remain disposable.
func (s *Service) Archive(ctx context.Context, id engine.PlanID) (*engine.Plan, error) {
	p, err := s.GetPlan(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.IsArchived() {
		return nil, &engine.TransitionError{Entity: "plan", From: string(p.Status), To: string(engine.PlanArchived)}
	}

	now := s.Clock()
	p.Status = engine.PlanArchived
	p.ArchivedAt = &now
	p.UpdatedAt = now
	if err := s.Repos.SavePlan(ctx, *p); err != nil {
		return nil, err
	}

	s.Suppression.Invalidate()
	return p, nil
}

// =============================================================================
// ALLIANCE LINKS
// =============================================================================

func (s *Service) AddAlliance(ctx context.Context, planID engine.PlanID, alliance engine.AllianceID, role engine.AllianceRole) (*engine.AllianceLink, error) {
	if !role.Valid() {
		return nil, &engine.ValidationError{Field: "role", Message: "must be friendly or enemy"}
	}
	p, err := s.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	if p.IsArchived() {
		return nil, engine.ErrPlanArchived
	}

	existing, err := s.Repos.ListLinksByRole(ctx, planID, role)
	if err != nil {
		return nil, err
	}
	for _, l := range existing {
		if l.AllianceID == alliance {
			return nil, engine.ErrDuplicateAllianceLink
		}
	}

	link := engine.AllianceLink{
		ID:         engine.LinkID(uuid.NewString()),
		PlanID:     planID,
		AllianceID: alliance,
		Role:       role,
		CreatedAt:  s.Clock(),
	}
	if err := s.Repos.SaveLink(ctx, link); err != nil {
		return nil, err
	}

	s.Suppression.Invalidate()
	if err := s.markSuppressedCounters(ctx, *p); err != nil {
		return nil, err
	}
	return &link, nil
}

func (s *Service) RemoveAlliance(ctx context.Context, planID engine.PlanID, linkID engine.LinkID) error {
	links, err := s.Repos.ListLinksByPlan(ctx, planID)
	if err != nil {
		return err
	}
	for _, l := range links {
		if l.ID == linkID {
			if err := s.Repos.DeleteLink(ctx, linkID); err != nil {
				return err
			}
			s.Suppression.Invalidate()
			return nil
		}
	}
	return engine.ErrValidation
}

// =============================================================================
// TARGETS
// =============================================================================

func (s *Service) AddTarget(ctx context.Context, planID engine.PlanID, nation engine.NationID, engagement engine.EngagementType) (*engine.Target, error) {
	p, err := s.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	if p.IsArchived() {
		return nil, engine.ErrPlanArchived
	}

	if existing, err := s.Repos.FindTargetByPlanAndNation(ctx, planID, nation); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, engine.ErrDuplicateTarget
	}

	snap, err := s.Directory.Nation(ctx, nation)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, engine.ErrNationNotFound
	}

	if engagement == "" {
		engagement = p.DefaultEngagement
	}

	now := s.Clock()
	t := engine.Target{
		ID:                  engine.TargetID(uuid.NewString()),
		PlanID:              planID,
		NationID:            nation,
		PriorityScore:       ComputePriority(*snap, s.Policy, p.Tunables.ActivityWindowHours, now),
		PreferredEngagement: engagement,
		ComputedAt:          now,
		CreatedAt:           now,
	}
	if err := s.Repos.SaveTarget(ctx, t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Service) ListTargets(ctx context.Context, planID engine.PlanID) ([]engine.Target, error) {
	if _, err := s.GetPlan(ctx, planID); err != nil {
		return nil, err
	}
	return s.Repos.ListTargetsByPlan(ctx, planID)
}

func (s *Service) RemoveTarget(ctx context.Context, planID engine.PlanID, targetID engine.TargetID) error {
	t, err := s.target(ctx, planID, targetID)
	if err != nil {
		return err
	}
	return s.Repos.DeleteTarget(ctx, t.ID)
}

// target loads a target and verifies plan ownership.
func (s *Service) target(ctx context.Context, planID engine.PlanID, targetID engine.TargetID) (*engine.Target, error) {
	t, err := s.Repos.GetTarget(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if t == nil || t.PlanID != planID {
		return nil, engine.ErrTargetNotFound
	}
	return t, nil
}

// RecomputePriorities refreshes every target's priority score from current
// directory snapshots. Idempotent; runs as a job handler.
func (s *Service) RecomputePriorities(ctx context.Context, planID engine.PlanID) error {
	p, err := s.GetPlan(ctx, planID)
	if err != nil {
		return err
	}

	targets, err := s.Repos.ListTargetsByPlan(ctx, planID)
	if err != nil {
		return err
	}

	now := s.Clock()
	for _, t := range targets {
		snap, err := s.Directory.Nation(ctx, t.NationID)
		if err != nil || snap == nil {
			continue // directory gap degrades to the stale score
		}
		t.PriorityScore = ComputePriority(*snap, s.Policy, p.Tunables.ActivityWindowHours, now)
		t.ComputedAt = now
		if err := s.Repos.SaveTarget(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

// EnqueueRecompute submits the bulk recompute job and returns immediately.
func (s *Service) EnqueueRecompute(ctx context.Context, planID engine.PlanID) error {
	if _, err := s.GetPlan(ctx, planID); err != nil {
		return err
	}
	payload := engine.MarshalPayload(engine.RecomputePrioritiesPayload{PlanID: planID})
	return s.Queue.Enqueue(ctx, engine.JobRecomputePriorities, payload)
}

// =============================================================================
// RECOMMENDATIONS + ASSIGNMENT
// =============================================================================

// Recommendations runs one advisory allocation pass for a target.
func (s *Service) Recommendations(ctx context.Context, planID engine.PlanID, targetID engine.TargetID, mode engine.EvaluationMode) ([]engine.Candidate, error) {
	p, err := s.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	t, err := s.target(ctx, planID, targetID)
	if err != nil {
		return nil, err
	}

	in, err := s.recommendInput(ctx, s.Repos, *p, *t, mode)
	if err != nil {
		return nil, err
	}
	return s.Allocator.Recommend(*in), nil
}

// recommendInput reads through the given repository view so callers inside a
// transaction see their own writes (load and already-assigned must reflect
// assignments persisted earlier in the same pass).
func (s *Service) recommendInput(ctx context.Context, repos engine.Repositories, p engine.Plan, t engine.Target, mode engine.EvaluationMode) (*engine.RecommendInput, error) {
	enemy, err := s.Directory.Nation(ctx, t.NationID)
	if err != nil {
		return nil, err
	}
	if enemy == nil {
		return nil, engine.ErrNationNotFound
	}

	pool, err := s.friendlyPool(ctx, repos, p.ID)
	if err != nil {
		return nil, err
	}

	load, err := s.assignmentLoad(ctx, repos, p.ID)
	if err != nil {
		return nil, err
	}

	assigned, err := assignedNations(ctx, repos, t.ID)
	if err != nil {
		return nil, err
	}

	limit := s.Policy.MaxRecommendations
	if p.Tunables.PreferredTargetsPerFriendly > 0 {
		// The per-friendly preference bounds how wide a single target's
		// recommendation list should be.
		limit = p.Tunables.PreferredTargetsPerFriendly * s.Policy.DefaultMaxSquadSize
		if limit > s.Policy.MaxRecommendations {
			limit = s.Policy.MaxRecommendations
		}
	}

	return &engine.RecommendInput{
		Target:            *enemy,
		Priority:          t.PriorityScore,
		Pool:              pool,
		Load:              load,
		AlreadyAssigned:   assigned,
		Limit:             limit,
		Mode:              mode,
		CohesionTolerance: p.Tunables.SquadCohesionTolerance,
	}, nil
}

// friendlyPool collects members of every friendly-linked alliance.
func (s *Service) friendlyPool(ctx context.Context, repos engine.Repositories, planID engine.PlanID) ([]engine.NationSnapshot, error) {
	links, err := repos.ListLinksByRole(ctx, planID, engine.RoleFriendly)
	if err != nil {
		return nil, err
	}
	var pool []engine.NationSnapshot
	seen := make(map[engine.NationID]bool)
	for _, l := range links {
		members, err := s.Directory.AllianceMembers(ctx, l.AllianceID)
		if err != nil {
			return nil, err
		}
		for _, m := range members {
			if !seen[m.NationID] {
				seen[m.NationID] = true
				pool = append(pool, m)
			}
		}
	}
	return pool, nil
}

// assignmentLoad counts proposed/confirmed assignments per nation within the
// plan - the load figure the capacity ledger and scorer read.
func (s *Service) assignmentLoad(ctx context.Context, repos engine.Repositories, planID engine.PlanID) (map[engine.NationID]int, error) {
	assignments, err := repos.ListByPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	load := make(map[engine.NationID]int)
	for _, a := range assignments {
		load[a.FriendlyNationID]++
	}
	return load, nil
}

func assignedNations(ctx context.Context, repos engine.Repositories, targetID engine.TargetID) (map[engine.NationID]bool, error) {
	assignments, err := repos.ListByTarget(ctx, targetID)
	if err != nil {
		return nil, err
	}
	assigned := make(map[engine.NationID]bool, len(assignments))
	for _, a := range assignments {
		assigned[a.FriendlyNationID] = true
	}
	return assigned, nil
}

// ManualAssign creates an operator-chosen assignment. It bypasses scoring
// entirely but still enforces the (target, friendly) uniqueness invariant,
// and is marked overridden + locked so automated passes never displace it.
func (s *Service) ManualAssign(ctx context.Context, planID engine.PlanID, targetID engine.TargetID, nation engine.NationID) (*engine.Assignment, error) {
	p, err := s.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	if p.IsArchived() {
		return nil, engine.ErrPlanArchived
	}
	t, err := s.target(ctx, planID, targetID)
	if err != nil {
		return nil, err
	}

	if existing, err := s.Repos.FindByTargetAndNation(ctx, t.ID, nation); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, &engine.DuplicateAssignmentError{TargetID: t.ID, NationID: nation, ExistingID: existing.ID}
	}

	now := s.Clock()
	a := engine.Assignment{
		ID:               engine.AssignmentID(uuid.NewString()),
		PlanID:           &planID,
		TargetID:         t.ID,
		FriendlyNationID: nation,
		Status:           engine.AssignmentProposed,
		IsOverridden:     true,
		IsLocked:         true,
		Meta:             map[string]string{"source": "manual"},
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.Repos.SaveAssignment(ctx, a); err != nil {
		return nil, err
	}
	return &a, nil
}

// ConfirmAssignment promotes proposed -> confirmed.
func (s *Service) ConfirmAssignment(ctx context.Context, planID engine.PlanID, id engine.AssignmentID) (*engine.Assignment, error) {
	a, err := s.assignment(ctx, planID, id)
	if err != nil {
		return nil, err
	}
	if a.Status != engine.AssignmentProposed {
		return nil, &engine.TransitionError{Entity: "assignment", From: string(a.Status), To: string(engine.AssignmentConfirmed)}
	}
	a.Status = engine.AssignmentConfirmed
	a.UpdatedAt = s.Clock()
	if err := s.Repos.SaveAssignment(ctx, *a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) RemoveAssignment(ctx context.Context, planID engine.PlanID, id engine.AssignmentID) error {
	a, err := s.assignment(ctx, planID, id)
	if err != nil {
		return err
	}
	return s.Repos.DeleteAssignment(ctx, a.ID)
}

func (s *Service) assignment(ctx context.Context, planID engine.PlanID, id engine.AssignmentID) (*engine.Assignment, error) {
	a, err := s.Repos.GetAssignment(ctx, id)
	if err != nil {
		return nil, err
	}
	if a == nil || a.PlanID == nil || *a.PlanID != planID {
		return nil, engine.ErrAssignmentNotFound
	}
	return a, nil
}

// =============================================================================
// AUTO-PICK - Persist top recommendations as proposed assignments
// =============================================================================

// AutoPick persists the top recommendations for one target (or every target
// when targetID is empty) as proposed assignments, then rebuilds squads.
// Locked assignments are never displaced. Idempotent under re-runs.
func (s *Service) AutoPick(ctx context.Context, planID engine.PlanID, targetID engine.TargetID, mode engine.EvaluationMode) error {
	p, err := s.GetPlan(ctx, planID)
	if err != nil {
		return err
	}
	if p.IsArchived() {
		return engine.ErrPlanArchived
	}
	if mode == "" {
		mode = engine.EvalAuto
	}

	var targets []engine.Target
	if targetID != "" {
		t, err := s.target(ctx, planID, targetID)
		if err != nil {
			return err
		}
		targets = []engine.Target{*t}
	} else {
		targets, err = s.Repos.ListTargetsByPlan(ctx, planID)
		if err != nil {
			return err
		}
	}

	return s.Repos.WithTx(ctx, func(repos engine.Repositories) error {
		for _, t := range targets {
			in, err := s.recommendInput(ctx, repos, *p, t, mode)
			if err != nil {
				if err == engine.ErrNationNotFound {
					continue // target vanished from the directory; skip
				}
				return err
			}
			candidates := s.Allocator.Recommend(*in)

			now := s.Clock()
			for _, c := range candidates {
				existing, err := repos.FindByTargetAndNation(ctx, t.ID, c.Nation.NationID)
				if err != nil {
					return err
				}
				if existing != nil {
					if existing.IsLocked {
						continue
					}
					existing.MatchScore = c.Evaluation.Score
					existing.UpdatedAt = now
					if err := repos.SaveAssignment(ctx, *existing); err != nil {
						return err
					}
					continue
				}
				a := engine.Assignment{
					ID:               engine.AssignmentID(uuid.NewString()),
					PlanID:           &planID,
					TargetID:         t.ID,
					FriendlyNationID: c.Nation.NationID,
					MatchScore:       c.Evaluation.Score,
					Status:           engine.AssignmentProposed,
					Meta:             map[string]string{"source": "auto"},
					CreatedAt:        now,
					UpdatedAt:        now,
				}
				if err := repos.SaveAssignment(ctx, a); err != nil {
					return err
				}
			}
		}
		return s.rebuildSquadsTx(ctx, repos, planID, p.Tunables.MaxSquadSize)
	})
}

// EnqueueAutoPick submits the bulk auto-pick job and returns immediately.
func (s *Service) EnqueueAutoPick(ctx context.Context, planID engine.PlanID, targetID engine.TargetID, mode engine.EvaluationMode) error {
	if _, err := s.GetPlan(ctx, planID); err != nil {
		return err
	}
	payload := engine.MarshalPayload(engine.AutoPickPlanPayload{PlanID: planID, TargetID: targetID, Mode: mode})
	return s.Queue.Enqueue(ctx, engine.JobAutoPickPlan, payload)
}

// =============================================================================
// SQUADS
// =============================================================================

// RebuildSquads destroys and recreates the plan's squads in one transaction.
func (s *Service) RebuildSquads(ctx context.Context, planID engine.PlanID) error {
	p, err := s.GetPlan(ctx, planID)
	if err != nil {
		return err
	}
	return s.Repos.WithTx(ctx, func(repos engine.Repositories) error {
		return s.rebuildSquadsTx(ctx, repos, planID, p.Tunables.MaxSquadSize)
	})
}

func (s *Service) rebuildSquadsTx(ctx context.Context, repos engine.Repositories, planID engine.PlanID, maxSize int) error {
	previous, err := repos.ListSquadsByPlan(ctx, planID)
	if err != nil {
		return err
	}
	round := 1
	for _, sq := range previous {
		if sq.Round >= round {
			round = sq.Round + 1
		}
	}

	if err := repos.DeleteSquadsByPlan(ctx, planID); err != nil {
		return err
	}

	assignments, err := repos.ListByPlan(ctx, planID)
	if err != nil {
		return err
	}

	build := engine.BuildSquads(planID, assignments, maxSize, round, s.Clock())
	for _, sq := range build.Squads {
		if err := repos.SaveSquad(ctx, sq); err != nil {
			return err
		}
	}
	for _, a := range assignments {
		squadID, ok := build.Membership[a.ID]
		if !ok {
			if a.SquadID == nil {
				continue
			}
			a.SquadID = nil
		} else {
			id := squadID
			a.SquadID = &id
		}
		if err := repos.SaveAssignment(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) ListSquads(ctx context.Context, planID engine.PlanID) ([]engine.Squad, error) {
	if _, err := s.GetPlan(ctx, planID); err != nil {
		return nil, err
	}
	return s.Repos.ListSquadsByPlan(ctx, planID)
}

func (s *Service) ListAssignments(ctx context.Context, planID engine.PlanID) ([]engine.Assignment, error) {
	if _, err := s.GetPlan(ctx, planID); err != nil {
		return nil, err
	}
	return s.Repos.ListByPlan(ctx, planID)
}

// =============================================================================
// PUBLISH
// =============================================================================

// Publish stamps the publication timestamp, promotes proposed/confirmed
// assignments to published, rebuilds squads - all in one transaction - then
// hands the published set to the dispatcher exactly once.
func (s *Service) Publish(ctx context.Context, planID engine.PlanID, channels engine.ChannelSelection) (*engine.Plan, error) {
	p, err := s.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	if p.IsArchived() {
		return nil, engine.ErrPlanArchived
	}

	now := s.Clock()
	var published []engine.Assignment

	err = s.Repos.WithTx(ctx, func(repos engine.Repositories) error {
		assignments, err := repos.ListByPlan(ctx, planID)
		if err != nil {
			return err
		}
		for _, a := range assignments {
			if a.Status == engine.AssignmentProposed || a.Status == engine.AssignmentConfirmed {
				a.Status = engine.AssignmentPublished
				a.UpdatedAt = now
				if err := repos.SaveAssignment(ctx, a); err != nil {
					return err
				}
			}
			if a.Status == engine.AssignmentPublished {
				published = append(published, a)
			}
		}

		p.AssignmentsPublishedAt = &now
		p.UpdatedAt = now
		if err := repos.SavePlan(ctx, *p); err != nil {
			return err
		}

		return s.rebuildSquadsTx(ctx, repos, planID, p.Tunables.MaxSquadSize)
	})
	if err != nil {
		return nil, err
	}

	if s.Dispatcher != nil && channels.Any() {
		notification := engine.Notification{
			PlanID:      &planID,
			Subject:     fmt.Sprintf("Plan %q assignments published", p.Name),
			Assignments: published,
			Channels:    channels,
			SentAt:      now,
		}
		if err := s.Dispatcher.Dispatch(ctx, notification); err != nil {
			// Delivery is the dispatcher's concern; publication stands.
			return p, nil
		}
	}
	return p, nil
}
