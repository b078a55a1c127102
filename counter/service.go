/*
Package counter implements the reactive, single-aggressor operation lifecycle.

PURPOSE:
  A Counter forms a bounded response team against one aggressor nation. It is
  the reactive sibling of a Plan: no target list, no alliance enrollment - the
  aggressor is the sole target and the defending alliance's members are the
  candidate pool. This package owns the Counter state machine
  (draft -> active -> archived), the aggressor uniqueness invariant, the
  suppression check against active plans, team assembly (manual and
  auto-pick), finalization, and war-declaration tracking.

SUPPRESSION:
  Creation consults the suppression index before anything else. If an active
  plan with the suppression flag covers the aggressor's alliance, creation is
  refused and the blocking plan is surfaced so the operator joins the plan
  instead of fragmenting the effort.

SEE ALSO:
  - engine/suppression.go: The index consulted at creation
  - plan/service.go: The proactive sibling lifecycle
*/
package counter

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

// aggressorPriority feeds the scorer's priority factor. A reactive counter
// exists because the aggressor already struck, so the priority is pinned to
// the top of the scale rather than recomputed from the directory.
var aggressorPriority = engine.NewScoreFromInt(100)

// =============================================================================
// LIFECYCLE
// =============================================================================

type CreateCounterInput struct {
	AggressorID engine.NationID

	// AllianceID is the defending alliance whose members form the pool.
	AllianceID engine.AllianceID

	TeamSize            int
	PreferredEngagement engine.EngagementType
	Settings            map[string]string
}

// Create starts a counter in draft. It enforces the one-live-counter-per-
// aggressor invariant and refuses creation when an active plan already covers
// the aggressor's alliance.
func (s *Service) Create(ctx context.Context, in CreateCounterInput) (*engine.Counter, error) {
	if in.AggressorID == 0 {
		return nil, &engine.ValidationError{Field: "aggressor_id", Message: "required"}
	}
	if in.AllianceID == 0 {
		return nil, &engine.ValidationError{Field: "alliance_id", Message: "required"}
	}
	engagement := in.PreferredEngagement
	if engagement == "" {
		engagement = engine.EngagementOrdinary
	}
	if !engagement.Valid() {
		return nil, &engine.ValidationError{Field: "preferred_engagement", Message: "unknown engagement type"}
	}

	snap, err := s.Directory.Nation(ctx, in.AggressorID)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, engine.ErrNationNotFound
	}

	if existing, err := s.Repos.FindActiveCounterByAggressor(ctx, in.AggressorID); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, &engine.DuplicateCounterError{AggressorID: in.AggressorID, ExistingID: existing.ID}
	}

	index, err := s.Suppression.Current(ctx, s.Repos, s.Repos)
	if err != nil {
		return nil, err
	}
	if planID, blocked := index.Blocks(snap.AllianceID); blocked {
		return nil, &engine.SuppressionError{
			AggressorID: in.AggressorID,
			AllianceID:  snap.AllianceID,
			PlanID:      planID,
		}
	}

	teamSize := in.TeamSize
	if teamSize <= 0 {
		teamSize = s.Policy.DefaultTeamSize
	}

	now := s.Clock()
	c := engine.Counter{
		ID:                  engine.CounterID(uuid.NewString()),
		AggressorID:         in.AggressorID,
		AllianceID:          in.AllianceID,
		Status:              engine.CounterDraft,
		TeamSize:            teamSize,
		PreferredEngagement: engagement,
		Settings:            in.Settings,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := s.Repos.SaveCounter(ctx, c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Service) Get(ctx context.Context, id engine.CounterID) (*engine.Counter, error) {
	c, err := s.Repos.GetCounter(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, engine.ErrCounterNotFound
	}
	return c, nil
}

func (s *Service) List(ctx context.Context) ([]engine.Counter, error) {
	return s.Repos.ListCounters(ctx)
}

// Archive is terminal. The counter is kept, and its aggressor becomes free
// for a future counter.
func (s *Service) Archive(ctx context.Context, id engine.CounterID) (*engine.Counter, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.IsArchived() {
		return nil, &engine.TransitionError{Entity: "counter", From: string(c.Status), To: string(engine.CounterArchived)}
	}

	now := s.Clock()
	c.Status = engine.CounterArchived
	c.ArchivedAt = &now
	c.UpdatedAt = now
	if err := s.Repos.SaveCounter(ctx, *c); err != nil {
		return nil, err
	}
	return c, nil
}

// RecordWarDeclared stamps the last in-game declaration against the
// aggressor under this counter.
func (s *Service) RecordWarDeclared(ctx context.Context, id engine.CounterID) (*engine.Counter, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.IsArchived() {
		return nil, &engine.TransitionError{Entity: "counter", From: string(c.Status), To: string(c.Status)}
	}

	now := s.Clock()
	c.LastWarDeclaredAt = &now
	c.UpdatedAt = now
	if err := s.Repos.SaveCounter(ctx, *c); err != nil {
		return nil, err
	}
	return c, nil
}

// =============================================================================
// RECOMMENDATIONS + ASSIGNMENT
// =============================================================================

// Recommend runs one advisory allocation pass against the aggressor.
func (s *Service) Recommend(ctx context.Context, id engine.CounterID, mode engine.EvaluationMode) ([]engine.Candidate, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	in, err := s.recommendInput(ctx, s.Repos, *c, mode)
	if err != nil {
		return nil, err
	}
	return s.Allocator.Recommend(*in), nil
}

// recommendInput reads through the given repository view so callers inside a
// transaction see their own writes (the deletions of the displaced proposals
// must be reflected in the load and already-assigned sets).
func (s *Service) recommendInput(ctx context.Context, repos engine.Repositories, c engine.Counter, mode engine.EvaluationMode) (*engine.RecommendInput, error) {
	aggressor, err := s.Directory.Nation(ctx, c.AggressorID)
	if err != nil {
		return nil, err
	}
	if aggressor == nil {
		return nil, engine.ErrNationNotFound
	}

	pool, err := s.Directory.AllianceMembers(ctx, c.AllianceID)
	if err != nil {
		return nil, err
	}

	assignments, err := repos.ListByCounter(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	assigned := make(map[engine.NationID]bool, len(assignments))
	load := make(map[engine.NationID]int, len(assignments))
	for _, a := range assignments {
		assigned[a.FriendlyNationID] = true
		load[a.FriendlyNationID]++
	}

	return &engine.RecommendInput{
		Target:          *aggressor,
		Priority:        aggressorPriority,
		Pool:            pool,
		Load:            load,
		AlreadyAssigned: assigned,
		Limit:           c.TeamSize,
		Mode:            mode,
	}, nil
}

// ManualAssign adds an operator-chosen member. Bypasses scoring but still
// enforces the (counter, friendly) uniqueness invariant; marked overridden
// and locked so auto-pick never displaces it.
func (s *Service) ManualAssign(ctx context.Context, id engine.CounterID, nation engine.NationID) (*engine.Assignment, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.IsArchived() {
		return nil, &engine.TransitionError{Entity: "counter", From: string(c.Status), To: string(c.Status)}
	}

	if existing, err := s.Repos.FindByCounterAndNation(ctx, c.ID, nation); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, &engine.DuplicateAssignmentError{CounterID: c.ID, NationID: nation, ExistingID: existing.ID}
	}

	now := s.Clock()
	counterID := c.ID
	a := engine.Assignment{
		ID:               engine.AssignmentID(uuid.NewString()),
		CounterID:        &counterID,
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

func (s *Service) RemoveAssignment(ctx context.Context, id engine.CounterID, assignmentID engine.AssignmentID) error {
	a, err := s.assignment(ctx, id, assignmentID)
	if err != nil {
		return err
	}
	return s.Repos.DeleteAssignment(ctx, a.ID)
}

func (s *Service) ListAssignments(ctx context.Context, id engine.CounterID) ([]engine.Assignment, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.Repos.ListByCounter(ctx, id)
}

func (s *Service) assignment(ctx context.Context, id engine.CounterID, assignmentID engine.AssignmentID) (*engine.Assignment, error) {
	a, err := s.Repos.GetAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if a == nil || a.CounterID == nil || *a.CounterID != id {
		return nil, engine.ErrAssignmentNotFound
	}
	return a, nil
}

// =============================================================================
// AUTO-PICK - Assemble the team from the top recommendations
// =============================================================================

// AutoPick replaces the counter's non-locked proposals with the current top
// recommendations, up to TeamSize minus locked members. Locked (manual)
// members always survive. Idempotent under re-runs.
func (s *Service) AutoPick(ctx context.Context, id engine.CounterID, mode engine.EvaluationMode) error {
	c, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if c.IsArchived() {
		return &engine.TransitionError{Entity: "counter", From: string(c.Status), To: string(c.Status)}
	}
	if mode == "" {
		mode = engine.EvalAuto
	}

	return s.Repos.WithTx(ctx, func(repos engine.Repositories) error {
		existing, err := repos.ListByCounter(ctx, c.ID)
		if err != nil {
			return err
		}

		locked := 0
		for _, a := range existing {
			if a.IsLocked || a.Status == engine.AssignmentFinalized {
				locked++
				continue
			}
			if err := repos.DeleteAssignment(ctx, a.ID); err != nil {
				return err
			}
		}

		slots := c.TeamSize - locked
		if slots <= 0 {
			return nil
		}

		in, err := s.recommendInput(ctx, repos, *c, mode)
		if err != nil {
			return err
		}
		in.Limit = slots
		candidates := s.Allocator.Recommend(*in)

		now := s.Clock()
		counterID := c.ID
		for _, cand := range candidates {
			a := engine.Assignment{
				ID:               engine.AssignmentID(uuid.NewString()),
				CounterID:        &counterID,
				FriendlyNationID: cand.Nation.NationID,
				MatchScore:       cand.Evaluation.Score,
				Status:           engine.AssignmentProposed,
				Meta:             map[string]string{"source": "auto"},
				CreatedAt:        now,
				UpdatedAt:        now,
			}
			if err := repos.SaveAssignment(ctx, a); err != nil {
				return err
			}
		}
		return nil
	})
}

// EnqueueAutoPick submits the team assembly job and returns immediately.
func (s *Service) EnqueueAutoPick(ctx context.Context, id engine.CounterID) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	payload := engine.MarshalPayload(engine.AutoPickCounterPayload{CounterID: id})
	return s.Queue.Enqueue(ctx, engine.JobAutoPickCounter, payload)
}

// =============================================================================
// FINALIZE
// =============================================================================

// Finalize promotes draft -> active: the team's assignments become finalized,
// the timestamp is stamped, and the roster is handed to the dispatcher once.
func (s *Service) Finalize(ctx context.Context, id engine.CounterID, channels engine.ChannelSelection) (*engine.Counter, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status != engine.CounterDraft {
		return nil, &engine.TransitionError{Entity: "counter", From: string(c.Status), To: string(engine.CounterActive)}
	}

	now := s.Clock()
	var finalized []engine.Assignment

	err = s.Repos.WithTx(ctx, func(repos engine.Repositories) error {
		assignments, err := repos.ListByCounter(ctx, c.ID)
		if err != nil {
			return err
		}
		for _, a := range assignments {
			if a.Status == engine.AssignmentProposed {
				a.Status = engine.AssignmentFinalized
				a.UpdatedAt = now
				if err := repos.SaveAssignment(ctx, a); err != nil {
					return err
				}
			}
			if a.Status == engine.AssignmentFinalized {
				finalized = append(finalized, a)
			}
		}

		c.Status = engine.CounterActive
		c.FinalizedAt = &now
		c.UpdatedAt = now
		return repos.SaveCounter(ctx, *c)
	})
	if err != nil {
		return nil, err
	}

	if s.Dispatcher != nil && channels.Any() {
		counterID := c.ID
		notification := engine.Notification{
			CounterID:   &counterID,
			Subject:     fmt.Sprintf("Counter team finalized against nation %d", c.AggressorID),
			Assignments: finalized,
			Channels:    channels,
			SentAt:      now,
		}
		if err := s.Dispatcher.Dispatch(ctx, notification); err != nil {
			// Delivery is the dispatcher's concern; finalization stands.
			return c, nil
		}
	}
	return c, nil
}
