/*
Package sqlite provides a SQLite-backed implementation of the repositories.

PURPOSE:
  Implements engine.TxRepositories over SQLite. In production the same
  patterns apply to PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  plans:          Campaign records with inline tunables
  counters:       Reactive operations (one live per aggressor)
  alliance_links: Plan-to-alliance enrollment with a role
  targets:        Enemy nations tracked per plan
  assignments:    Friendly-to-target (or counter) pairings
  squads:         Derived groupings, destroyed and recreated per rebuild

UNIQUENESS INVARIANTS (enforced at the schema level):
  idx_targets_plan_nation:        One target row per (plan, nation)
  idx_assignments_target_nation:  One assignment per (target, friendly)
  idx_assignments_counter_nation: One assignment per (counter, friendly)
  idx_counters_live_aggressor:    One non-archived counter per aggressor

  Services check these invariants before writing so operators get typed
  errors; the indexes are the backstop that makes at-least-once job
  execution safe under concurrency.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/strike.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - engine/store.go: Interface definitions
  - engine/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/strike-engine/engine"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx, so the same query code
// serves direct calls and transactional views.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements engine.TxRepositories using SQLite.
type Store struct {
	queries
	db *sql.DB
}

var _ engine.TxRepositories = (*Store)(nil)

// New creates a SQLite store at the given path. Use ":memory:" for an
// in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Each pooled connection to :memory: would get its own database, so the
	// pool must be pinned to a single connection there.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	store := &Store{queries: queries{db: db}, db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Reset clears every table. Intended for demo scenario loads and tests.
func (s *Store) Reset(ctx context.Context) error {
	for _, table := range []string{"assignments", "squads", "targets", "alliance_links", "counters", "plans"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to reset %s: %w", table, err)
		}
	}
	return nil
}

// WithTx executes fn against a transactional view of the repositories.
func (s *Store) WithTx(ctx context.Context, fn func(engine.Repositories) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&queries{db: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Plans (never deleted, only archived)
	CREATE TABLE IF NOT EXISTS plans (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		default_engagement TEXT NOT NULL,
		status TEXT NOT NULL,
		targets_per_friendly INTEGER NOT NULL,
		activity_window_hours INTEGER NOT NULL,
		max_squad_size INTEGER NOT NULL,
		cohesion_tolerance TEXT NOT NULL,
		suppress_counters BOOLEAN NOT NULL,
		options_json TEXT,
		activated_at TEXT,
		archived_at TEXT,
		assignments_published_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_plans_status ON plans(status);

	-- Counters (never deleted, only archived)
	CREATE TABLE IF NOT EXISTS counters (
		id TEXT PRIMARY KEY,
		aggressor_id INTEGER NOT NULL,
		alliance_id INTEGER NOT NULL,
		status TEXT NOT NULL,
		team_size INTEGER NOT NULL,
		preferred_engagement TEXT NOT NULL,
		suppressed_by_plan_id TEXT,
		settings_json TEXT,
		finalized_at TEXT,
		archived_at TEXT,
		last_war_declared_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- CRITICAL: At most one live counter per aggressor
	CREATE UNIQUE INDEX IF NOT EXISTS idx_counters_live_aggressor
		ON counters(aggressor_id) WHERE status != 'archived';

	CREATE INDEX IF NOT EXISTS idx_counters_status ON counters(status);

	-- Alliance links
	CREATE TABLE IF NOT EXISTS alliance_links (
		id TEXT PRIMARY KEY,
		plan_id TEXT NOT NULL,
		alliance_id INTEGER NOT NULL,
		role TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_links_plan_alliance_role
		ON alliance_links(plan_id, alliance_id, role);
	CREATE INDEX IF NOT EXISTS idx_links_plan ON alliance_links(plan_id);

	-- Targets
	CREATE TABLE IF NOT EXISTS targets (
		id TEXT PRIMARY KEY,
		plan_id TEXT NOT NULL,
		nation_id INTEGER NOT NULL,
		priority_score TEXT NOT NULL,
		preferred_engagement TEXT NOT NULL,
		meta_json TEXT,
		computed_at TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	-- CRITICAL: One target row per (plan, nation)
	CREATE UNIQUE INDEX IF NOT EXISTS idx_targets_plan_nation
		ON targets(plan_id, nation_id);
	CREATE INDEX IF NOT EXISTS idx_targets_plan ON targets(plan_id);

	-- Assignments
	CREATE TABLE IF NOT EXISTS assignments (
		id TEXT PRIMARY KEY,
		plan_id TEXT,
		counter_id TEXT,
		target_id TEXT NOT NULL DEFAULT '',
		friendly_nation_id INTEGER NOT NULL,
		match_score TEXT NOT NULL,
		status TEXT NOT NULL,
		is_overridden BOOLEAN NOT NULL DEFAULT FALSE,
		is_locked BOOLEAN NOT NULL DEFAULT FALSE,
		squad_id TEXT,
		meta_json TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- CRITICAL: One assignment per pair
	CREATE UNIQUE INDEX IF NOT EXISTS idx_assignments_target_nation
		ON assignments(target_id, friendly_nation_id) WHERE target_id != '';
	CREATE UNIQUE INDEX IF NOT EXISTS idx_assignments_counter_nation
		ON assignments(counter_id, friendly_nation_id) WHERE counter_id IS NOT NULL;

	CREATE INDEX IF NOT EXISTS idx_assignments_plan ON assignments(plan_id);
	CREATE INDEX IF NOT EXISTS idx_assignments_counter ON assignments(counter_id);

	-- Squads (derived, destroyed and recreated per rebuild)
	CREATE TABLE IF NOT EXISTS squads (
		id TEXT PRIMARY KEY,
		plan_id TEXT NOT NULL,
		target_id TEXT NOT NULL,
		label TEXT NOT NULL,
		round INTEGER NOT NULL,
		cohesion_score TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_squads_plan ON squads(plan_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// QUERIES - Shared between the store and its transactional view
// =============================================================================

type queries struct {
	db dbtx
}

var _ engine.Repositories = (*queries)(nil)

// =============================================================================
// PLAN REPOSITORY
// =============================================================================

func (q *queries) SavePlan(ctx context.Context, p engine.Plan) error {
	optionsJSON, _ := json.Marshal(p.Options)

	query := `
		INSERT INTO plans
		(id, name, default_engagement, status, targets_per_friendly, activity_window_hours,
		 max_squad_size, cohesion_tolerance, suppress_counters, options_json,
		 activated_at, archived_at, assignments_published_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			default_engagement = excluded.default_engagement,
			status = excluded.status,
			targets_per_friendly = excluded.targets_per_friendly,
			activity_window_hours = excluded.activity_window_hours,
			max_squad_size = excluded.max_squad_size,
			cohesion_tolerance = excluded.cohesion_tolerance,
			suppress_counters = excluded.suppress_counters,
			options_json = excluded.options_json,
			activated_at = excluded.activated_at,
			archived_at = excluded.archived_at,
			assignments_published_at = excluded.assignments_published_at,
			updated_at = excluded.updated_at
	`

	_, err := q.db.ExecContext(ctx, query,
		p.ID, p.Name, p.DefaultEngagement, p.Status,
		p.Tunables.PreferredTargetsPerFriendly,
		p.Tunables.ActivityWindowHours,
		p.Tunables.MaxSquadSize,
		p.Tunables.SquadCohesionTolerance.Value.String(),
		p.Tunables.SuppressCountersWhenActive,
		string(optionsJSON),
		nullTime(p.ActivatedAt), nullTime(p.ArchivedAt), nullTime(p.AssignmentsPublishedAt),
		p.CreatedAt.UTC().Format(time.RFC3339Nano),
		p.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to save plan: %w", err)
	}
	return nil
}

const planColumns = `id, name, default_engagement, status, targets_per_friendly,
	activity_window_hours, max_squad_size, cohesion_tolerance, suppress_counters,
	options_json, activated_at, archived_at, assignments_published_at, created_at, updated_at`

func (q *queries) GetPlan(ctx context.Context, id engine.PlanID) (*engine.Plan, error) {
	row := q.db.QueryRowContext(ctx,
		"SELECT "+planColumns+" FROM plans WHERE id = ?", id)
	p, err := scanPlan(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (q *queries) ListPlans(ctx context.Context) ([]engine.Plan, error) {
	return q.queryPlans(ctx,
		"SELECT "+planColumns+" FROM plans ORDER BY created_at ASC, id ASC")
}

func (q *queries) ListPlansByStatus(ctx context.Context, status engine.PlanStatus) ([]engine.Plan, error) {
	return q.queryPlans(ctx,
		"SELECT "+planColumns+" FROM plans WHERE status = ? ORDER BY created_at ASC, id ASC", status)
}

func (q *queries) queryPlans(ctx context.Context, query string, args ...any) ([]engine.Plan, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query plans: %w", err)
	}
	defer rows.Close()

	var plans []engine.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, *p)
	}
	return plans, rows.Err()
}

type scannable interface {
	Scan(dest ...any) error
}

func scanPlan(row scannable) (*engine.Plan, error) {
	var (
		p            engine.Plan
		tolerance    string
		optionsJSON  sql.NullString
		activatedAt  sql.NullString
		archivedAt   sql.NullString
		publishedAt  sql.NullString
		createdAt    string
		updatedAt    string
	)

	err := row.Scan(
		&p.ID, &p.Name, &p.DefaultEngagement, &p.Status,
		&p.Tunables.PreferredTargetsPerFriendly,
		&p.Tunables.ActivityWindowHours,
		&p.Tunables.MaxSquadSize,
		&tolerance,
		&p.Tunables.SuppressCountersWhenActive,
		&optionsJSON, &activatedAt, &archivedAt, &publishedAt, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.Tunables.SquadCohesionTolerance = engine.MustParseScore(tolerance)
	if optionsJSON.Valid && optionsJSON.String != "" && optionsJSON.String != "null" {
		json.Unmarshal([]byte(optionsJSON.String), &p.Options)
	}
	p.ActivatedAt = parseNullTime(activatedAt)
	p.ArchivedAt = parseNullTime(archivedAt)
	p.AssignmentsPublishedAt = parseNullTime(publishedAt)
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return &p, nil
}

// =============================================================================
// COUNTER REPOSITORY
// =============================================================================

func (q *queries) SaveCounter(ctx context.Context, c engine.Counter) error {
	settingsJSON, _ := json.Marshal(c.Settings)

	var suppressedBy *string
	if c.SuppressedByPlanID != nil {
		s := string(*c.SuppressedByPlanID)
		suppressedBy = &s
	}

	query := `
		INSERT INTO counters
		(id, aggressor_id, alliance_id, status, team_size, preferred_engagement,
		 suppressed_by_plan_id, settings_json, finalized_at, archived_at,
		 last_war_declared_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			team_size = excluded.team_size,
			preferred_engagement = excluded.preferred_engagement,
			suppressed_by_plan_id = excluded.suppressed_by_plan_id,
			settings_json = excluded.settings_json,
			finalized_at = excluded.finalized_at,
			archived_at = excluded.archived_at,
			last_war_declared_at = excluded.last_war_declared_at,
			updated_at = excluded.updated_at
	`

	_, err := q.db.ExecContext(ctx, query,
		c.ID, c.AggressorID, c.AllianceID, c.Status, c.TeamSize, c.PreferredEngagement,
		suppressedBy, string(settingsJSON),
		nullTime(c.FinalizedAt), nullTime(c.ArchivedAt), nullTime(c.LastWarDeclaredAt),
		c.CreatedAt.UTC().Format(time.RFC3339Nano),
		c.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return engine.ErrDuplicateCounter
		}
		return fmt.Errorf("failed to save counter: %w", err)
	}
	return nil
}

const counterColumns = `id, aggressor_id, alliance_id, status, team_size, preferred_engagement,
	suppressed_by_plan_id, settings_json, finalized_at, archived_at, last_war_declared_at,
	created_at, updated_at`

func (q *queries) GetCounter(ctx context.Context, id engine.CounterID) (*engine.Counter, error) {
	row := q.db.QueryRowContext(ctx,
		"SELECT "+counterColumns+" FROM counters WHERE id = ?", id)
	c, err := scanCounter(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (q *queries) ListCounters(ctx context.Context) ([]engine.Counter, error) {
	rows, err := q.db.QueryContext(ctx,
		"SELECT "+counterColumns+" FROM counters ORDER BY created_at ASC, id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query counters: %w", err)
	}
	defer rows.Close()

	var counters []engine.Counter
	for rows.Next() {
		c, err := scanCounter(rows)
		if err != nil {
			return nil, err
		}
		counters = append(counters, *c)
	}
	return counters, rows.Err()
}

func (q *queries) FindActiveCounterByAggressor(ctx context.Context, aggressor engine.NationID) (*engine.Counter, error) {
	row := q.db.QueryRowContext(ctx,
		"SELECT "+counterColumns+" FROM counters WHERE aggressor_id = ? AND status != 'archived'",
		aggressor)
	c, err := scanCounter(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func scanCounter(row scannable) (*engine.Counter, error) {
	var (
		c            engine.Counter
		suppressedBy sql.NullString
		settingsJSON sql.NullString
		finalizedAt  sql.NullString
		archivedAt   sql.NullString
		lastWarAt    sql.NullString
		createdAt    string
		updatedAt    string
	)

	err := row.Scan(
		&c.ID, &c.AggressorID, &c.AllianceID, &c.Status, &c.TeamSize, &c.PreferredEngagement,
		&suppressedBy, &settingsJSON, &finalizedAt, &archivedAt, &lastWarAt,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if suppressedBy.Valid {
		planID := engine.PlanID(suppressedBy.String)
		c.SuppressedByPlanID = &planID
	}
	if settingsJSON.Valid && settingsJSON.String != "" && settingsJSON.String != "null" {
		json.Unmarshal([]byte(settingsJSON.String), &c.Settings)
	}
	c.FinalizedAt = parseNullTime(finalizedAt)
	c.ArchivedAt = parseNullTime(archivedAt)
	c.LastWarDeclaredAt = parseNullTime(lastWarAt)
	c.CreatedAt = parseTime(createdAt)
	c.UpdatedAt = parseTime(updatedAt)
	return &c, nil
}

// =============================================================================
// ALLIANCE LINK REPOSITORY
// =============================================================================

func (q *queries) SaveLink(ctx context.Context, link engine.AllianceLink) error {
	query := `
		INSERT INTO alliance_links (id, plan_id, alliance_id, role, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			role = excluded.role
	`
	_, err := q.db.ExecContext(ctx, query,
		link.ID, link.PlanID, link.AllianceID, link.Role,
		link.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return engine.ErrDuplicateAllianceLink
		}
		return fmt.Errorf("failed to save alliance link: %w", err)
	}
	return nil
}

func (q *queries) DeleteLink(ctx context.Context, id engine.LinkID) error {
	_, err := q.db.ExecContext(ctx, "DELETE FROM alliance_links WHERE id = ?", id)
	return err
}

func (q *queries) ListLinksByPlan(ctx context.Context, planID engine.PlanID) ([]engine.AllianceLink, error) {
	return q.queryLinks(ctx,
		"SELECT id, plan_id, alliance_id, role, created_at FROM alliance_links WHERE plan_id = ? ORDER BY created_at ASC, id ASC",
		planID)
}

func (q *queries) ListLinksByRole(ctx context.Context, planID engine.PlanID, role engine.AllianceRole) ([]engine.AllianceLink, error) {
	return q.queryLinks(ctx,
		"SELECT id, plan_id, alliance_id, role, created_at FROM alliance_links WHERE plan_id = ? AND role = ? ORDER BY created_at ASC, id ASC",
		planID, role)
}

func (q *queries) queryLinks(ctx context.Context, query string, args ...any) ([]engine.AllianceLink, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query alliance links: %w", err)
	}
	defer rows.Close()

	var links []engine.AllianceLink
	for rows.Next() {
		var l engine.AllianceLink
		var createdAt string
		if err := rows.Scan(&l.ID, &l.PlanID, &l.AllianceID, &l.Role, &createdAt); err != nil {
			return nil, err
		}
		l.CreatedAt = parseTime(createdAt)
		links = append(links, l)
	}
	return links, rows.Err()
}

// =============================================================================
// TARGET REPOSITORY
// =============================================================================

func (q *queries) SaveTarget(ctx context.Context, t engine.Target) error {
	metaJSON, _ := json.Marshal(t.Meta)

	query := `
		INSERT INTO targets
		(id, plan_id, nation_id, priority_score, preferred_engagement, meta_json, computed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			priority_score = excluded.priority_score,
			preferred_engagement = excluded.preferred_engagement,
			meta_json = excluded.meta_json,
			computed_at = excluded.computed_at
	`

	_, err := q.db.ExecContext(ctx, query,
		t.ID, t.PlanID, t.NationID,
		t.PriorityScore.Value.String(),
		t.PreferredEngagement,
		string(metaJSON),
		t.ComputedAt.UTC().Format(time.RFC3339Nano),
		t.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return engine.ErrDuplicateTarget
		}
		return fmt.Errorf("failed to save target: %w", err)
	}
	return nil
}

const targetColumns = `id, plan_id, nation_id, priority_score, preferred_engagement,
	meta_json, computed_at, created_at`

func (q *queries) GetTarget(ctx context.Context, id engine.TargetID) (*engine.Target, error) {
	row := q.db.QueryRowContext(ctx,
		"SELECT "+targetColumns+" FROM targets WHERE id = ?", id)
	t, err := scanTarget(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (q *queries) FindTargetByPlanAndNation(ctx context.Context, planID engine.PlanID, nation engine.NationID) (*engine.Target, error) {
	row := q.db.QueryRowContext(ctx,
		"SELECT "+targetColumns+" FROM targets WHERE plan_id = ? AND nation_id = ?",
		planID, nation)
	t, err := scanTarget(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (q *queries) ListTargetsByPlan(ctx context.Context, planID engine.PlanID) ([]engine.Target, error) {
	rows, err := q.db.QueryContext(ctx,
		"SELECT "+targetColumns+" FROM targets WHERE plan_id = ? ORDER BY id ASC", planID)
	if err != nil {
		return nil, fmt.Errorf("failed to query targets: %w", err)
	}
	defer rows.Close()

	var targets []engine.Target
	for rows.Next() {
		t, err := scanTarget(rows)
		if err != nil {
			return nil, err
		}
		targets = append(targets, *t)
	}
	return targets, rows.Err()
}

func (q *queries) DeleteTarget(ctx context.Context, id engine.TargetID) error {
	_, err := q.db.ExecContext(ctx, "DELETE FROM targets WHERE id = ?", id)
	return err
}

func scanTarget(row scannable) (*engine.Target, error) {
	var (
		t          engine.Target
		score      string
		metaJSON   sql.NullString
		computedAt string
		createdAt  string
	)

	err := row.Scan(&t.ID, &t.PlanID, &t.NationID, &score, &t.PreferredEngagement,
		&metaJSON, &computedAt, &createdAt)
	if err != nil {
		return nil, err
	}

	t.PriorityScore = engine.MustParseScore(score)
	if metaJSON.Valid && metaJSON.String != "" && metaJSON.String != "null" {
		json.Unmarshal([]byte(metaJSON.String), &t.Meta)
	}
	t.ComputedAt = parseTime(computedAt)
	t.CreatedAt = parseTime(createdAt)
	return &t, nil
}

// =============================================================================
// ASSIGNMENT REPOSITORY
// =============================================================================

func (q *queries) SaveAssignment(ctx context.Context, a engine.Assignment) error {
	metaJSON, _ := json.Marshal(a.Meta)

	var planID, counterID, squadID *string
	if a.PlanID != nil {
		s := string(*a.PlanID)
		planID = &s
	}
	if a.CounterID != nil {
		s := string(*a.CounterID)
		counterID = &s
	}
	if a.SquadID != nil {
		s := string(*a.SquadID)
		squadID = &s
	}

	query := `
		INSERT INTO assignments
		(id, plan_id, counter_id, target_id, friendly_nation_id, match_score, status,
		 is_overridden, is_locked, squad_id, meta_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			match_score = excluded.match_score,
			status = excluded.status,
			is_overridden = excluded.is_overridden,
			is_locked = excluded.is_locked,
			squad_id = excluded.squad_id,
			meta_json = excluded.meta_json,
			updated_at = excluded.updated_at
	`

	_, err := q.db.ExecContext(ctx, query,
		a.ID, planID, counterID, a.TargetID, a.FriendlyNationID,
		a.MatchScore.Value.String(), a.Status,
		a.IsOverridden, a.IsLocked, squadID, string(metaJSON),
		a.CreatedAt.UTC().Format(time.RFC3339Nano),
		a.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return engine.ErrDuplicateAssignment
		}
		return fmt.Errorf("failed to save assignment: %w", err)
	}
	return nil
}

const assignmentColumns = `id, plan_id, counter_id, target_id, friendly_nation_id,
	match_score, status, is_overridden, is_locked, squad_id, meta_json, created_at, updated_at`

func (q *queries) GetAssignment(ctx context.Context, id engine.AssignmentID) (*engine.Assignment, error) {
	row := q.db.QueryRowContext(ctx,
		"SELECT "+assignmentColumns+" FROM assignments WHERE id = ?", id)
	a, err := scanAssignment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (q *queries) FindByTargetAndNation(ctx context.Context, targetID engine.TargetID, nation engine.NationID) (*engine.Assignment, error) {
	row := q.db.QueryRowContext(ctx,
		"SELECT "+assignmentColumns+" FROM assignments WHERE target_id = ? AND friendly_nation_id = ?",
		targetID, nation)
	a, err := scanAssignment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (q *queries) FindByCounterAndNation(ctx context.Context, counterID engine.CounterID, nation engine.NationID) (*engine.Assignment, error) {
	row := q.db.QueryRowContext(ctx,
		"SELECT "+assignmentColumns+" FROM assignments WHERE counter_id = ? AND friendly_nation_id = ?",
		counterID, nation)
	a, err := scanAssignment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (q *queries) ListByPlan(ctx context.Context, planID engine.PlanID) ([]engine.Assignment, error) {
	return q.queryAssignments(ctx,
		"SELECT "+assignmentColumns+" FROM assignments WHERE plan_id = ? ORDER BY id ASC", planID)
}

func (q *queries) ListByTarget(ctx context.Context, targetID engine.TargetID) ([]engine.Assignment, error) {
	return q.queryAssignments(ctx,
		"SELECT "+assignmentColumns+" FROM assignments WHERE target_id = ? ORDER BY id ASC", targetID)
}

func (q *queries) ListByCounter(ctx context.Context, counterID engine.CounterID) ([]engine.Assignment, error) {
	return q.queryAssignments(ctx,
		"SELECT "+assignmentColumns+" FROM assignments WHERE counter_id = ? ORDER BY id ASC", counterID)
}

func (q *queries) DeleteAssignment(ctx context.Context, id engine.AssignmentID) error {
	_, err := q.db.ExecContext(ctx, "DELETE FROM assignments WHERE id = ?", id)
	return err
}

func (q *queries) queryAssignments(ctx context.Context, query string, args ...any) ([]engine.Assignment, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query assignments: %w", err)
	}
	defer rows.Close()

	var assignments []engine.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		assignments = append(assignments, *a)
	}
	return assignments, rows.Err()
}

func scanAssignment(row scannable) (*engine.Assignment, error) {
	var (
		a         engine.Assignment
		planID    sql.NullString
		counterID sql.NullString
		score     string
		squadID   sql.NullString
		metaJSON  sql.NullString
		createdAt string
		updatedAt string
	)

	err := row.Scan(&a.ID, &planID, &counterID, &a.TargetID, &a.FriendlyNationID,
		&score, &a.Status, &a.IsOverridden, &a.IsLocked, &squadID, &metaJSON,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if planID.Valid {
		id := engine.PlanID(planID.String)
		a.PlanID = &id
	}
	if counterID.Valid {
		id := engine.CounterID(counterID.String)
		a.CounterID = &id
	}
	if squadID.Valid {
		id := engine.SquadID(squadID.String)
		a.SquadID = &id
	}
	a.MatchScore = engine.MustParseScore(score)
	if metaJSON.Valid && metaJSON.String != "" && metaJSON.String != "null" {
		json.Unmarshal([]byte(metaJSON.String), &a.Meta)
	}
	a.CreatedAt = parseTime(createdAt)
	a.UpdatedAt = parseTime(updatedAt)
	return &a, nil
}

// =============================================================================
// SQUAD REPOSITORY
// =============================================================================

func (q *queries) SaveSquad(ctx context.Context, sq engine.Squad) error {
	query := `
		INSERT INTO squads (id, plan_id, target_id, label, round, cohesion_score, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			label = excluded.label,
			round = excluded.round,
			cohesion_score = excluded.cohesion_score
	`
	_, err := q.db.ExecContext(ctx, query,
		sq.ID, sq.PlanID, sq.TargetID, sq.Label, sq.Round,
		sq.CohesionScore.Value.String(),
		sq.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to save squad: %w", err)
	}
	return nil
}

func (q *queries) ListSquadsByPlan(ctx context.Context, planID engine.PlanID) ([]engine.Squad, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, plan_id, target_id, label, round, cohesion_score, created_at
		 FROM squads WHERE plan_id = ? ORDER BY target_id ASC, label ASC`, planID)
	if err != nil {
		return nil, fmt.Errorf("failed to query squads: %w", err)
	}
	defer rows.Close()

	var squads []engine.Squad
	for rows.Next() {
		var sq engine.Squad
		var score, createdAt string
		if err := rows.Scan(&sq.ID, &sq.PlanID, &sq.TargetID, &sq.Label, &sq.Round,
			&score, &createdAt); err != nil {
			return nil, err
		}
		sq.CohesionScore = engine.MustParseScore(score)
		sq.CreatedAt = parseTime(createdAt)
		squads = append(squads, sq)
	}
	return squads, rows.Err()
}

func (q *queries) DeleteSquadsByPlan(ctx context.Context, planID engine.PlanID) error {
	_, err := q.db.ExecContext(ctx, "DELETE FROM squads WHERE plan_id = ?", planID)
	return err
}

// =============================================================================
// HELPERS
// =============================================================================

func nullTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339Nano)
	return &s
}

func parseNullTime(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t := parseTime(ns.String)
	return &t
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
