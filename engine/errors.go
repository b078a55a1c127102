/*
errors.go - Centralized error types for the coordination engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  The HTTP layer maps these categories onto status codes; domain packages
  wrap them with additional context.

ERROR CATEGORIES:
  1. Validation - malformed input, rejected before any state change
  2. Conflict   - uniqueness invariant violated (duplicate counter/assignment)
  3. Suppression - counter creation blocked by an active plan
  4. Not-found  - referenced entity missing or owned by a different parent
  5. Schema     - transfer document version mismatch or unparseable

USAGE:
  if errors.Is(err, engine.ErrCounterSuppressed) {
      var supErr *engine.SuppressionError
      errors.As(err, &supErr) // supErr.PlanID names the blocking plan
  }

SEE ALSO:
  - suppression.go: Produces SuppressionError
  - plan/transfer.go: Produces SchemaError
*/
package engine

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrPlanNotFound is returned when a referenced plan doesn't exist.
	ErrPlanNotFound = errors.New("plan not found")

	// ErrCounterNotFound is returned when a referenced counter doesn't exist.
	ErrCounterNotFound = errors.New("counter not found")

	// ErrTargetNotFound is returned when a referenced target doesn't exist or
	// belongs to a different plan.
	ErrTargetNotFound = errors.New("target not found")

	// ErrAssignmentNotFound is returned when a referenced assignment doesn't exist.
	ErrAssignmentNotFound = errors.New("assignment not found")

	// ErrNationNotFound is returned when the nation directory has no snapshot
	// for a referenced nation.
	ErrNationNotFound = errors.New("nation not found in directory")

	// ErrDuplicateTarget is returned when a plan already tracks the nation.
	ErrDuplicateTarget = errors.New("target already exists for nation")

	// ErrDuplicateAssignment is returned when the (target, friendly) or
	// (counter, friendly) pair already holds a non-archived assignment.
	ErrDuplicateAssignment = errors.New("assignment already exists for pair")

	// ErrDuplicateCounter is returned when a non-archived counter already
	// targets the aggressor.
	ErrDuplicateCounter = errors.New("counter already exists for aggressor")

	// ErrDuplicateAllianceLink is returned when the plan already links the
	// alliance with the same role.
	ErrDuplicateAllianceLink = errors.New("alliance already linked with role")

	// ErrCounterSuppressed is returned when counter creation is blocked by an
	// active plan covering the aggressor's alliance.
	ErrCounterSuppressed = errors.New("counter suppressed by active plan")

	// ErrInvalidTransition is returned on an illegal lifecycle transition
	// (e.g., activating an archived plan).
	ErrInvalidTransition = errors.New("invalid lifecycle transition")

	// ErrPlanArchived is returned when mutating an archived plan.
	ErrPlanArchived = errors.New("plan is archived")

	// ErrValidation is returned for malformed input.
	ErrValidation = errors.New("validation failed")

	// ErrSchemaVersion is returned when a transfer document carries an
	// unsupported schema version. The import is rejected wholesale.
	ErrSchemaVersion = errors.New("unsupported transfer schema version")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError describes a malformed input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// DuplicateAssignmentError references the existing assignment for the pair.
type DuplicateAssignmentError struct {
	TargetID   TargetID
	CounterID  CounterID
	NationID   NationID
	ExistingID AssignmentID
}

func (e *DuplicateAssignmentError) Error() string {
	if e.CounterID != "" {
		return fmt.Sprintf("nation %d already assigned on counter %s (assignment: %s)",
			e.NationID, e.CounterID, e.ExistingID)
	}
	return fmt.Sprintf("nation %d already assigned to target %s (assignment: %s)",
		e.NationID, e.TargetID, e.ExistingID)
}

func (e *DuplicateAssignmentError) Unwrap() error { return ErrDuplicateAssignment }

// DuplicateCounterError references the existing non-archived counter.
type DuplicateCounterError struct {
	AggressorID NationID
	ExistingID  CounterID
}

func (e *DuplicateCounterError) Error() string {
	return fmt.Sprintf("aggressor %d already has counter %s", e.AggressorID, e.ExistingID)
}

func (e *DuplicateCounterError) Unwrap() error { return ErrDuplicateCounter }

// SuppressionError surfaces the blocking plan to the caller so the operator
// knows a plan already covers that alliance.
type SuppressionError struct {
	AggressorID NationID
	AllianceID  AllianceID
	PlanID      PlanID
}

func (e *SuppressionError) Error() string {
	return fmt.Sprintf("counter against nation %d blocked: plan %s already covers alliance %d",
		e.AggressorID, e.PlanID, e.AllianceID)
}

func (e *SuppressionError) Unwrap() error { return ErrCounterSuppressed }

// TransitionError describes an illegal lifecycle transition.
type TransitionError struct {
	Entity string // "plan" or "counter"
	From   string
	To     string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s cannot transition %s -> %s", e.Entity, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// SchemaError describes a transfer document rejection.
type SchemaError struct {
	Got  int
	Want int
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("transfer document schema version %d not supported (want %d)", e.Got, e.Want)
}

func (e *SchemaError) Unwrap() error { return ErrSchemaVersion }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPlanNotFound) ||
		errors.Is(err, ErrCounterNotFound) ||
		errors.Is(err, ErrTargetNotFound) ||
		errors.Is(err, ErrAssignmentNotFound) ||
		errors.Is(err, ErrNationNotFound)
}

// IsConflict returns true if the error indicates a uniqueness violation.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicateTarget) ||
		errors.Is(err, ErrDuplicateAssignment) ||
		errors.Is(err, ErrDuplicateCounter) ||
		errors.Is(err, ErrDuplicateAllianceLink)
}

// IsSuppression returns true if counter creation was blocked by a plan.
func IsSuppression(err error) bool {
	return errors.Is(err, ErrCounterSuppressed)
}

// IsSchema returns true if a transfer document was rejected wholesale.
func IsSchema(err error) bool {
	return errors.Is(err, ErrSchemaVersion)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrPlanArchived) ||
		IsConflict(err) || IsSuppression(err) || IsSchema(err)
}
