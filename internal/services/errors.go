// Package services defines the business logic for goals and schedules.
// This file centralizes common service-level error values so that they can be
// consistently returned by service methods and checked by callers.
//
// These errors are intended for internal use by the service layer and translation
// into user-facing messages or HTTP status codes should be performed at the
// handler/controller layer.
package services

import (
	"errors"
	"strings"
)

// Goal-related errors.
var (
	// ErrGoalNotFound indicates that the requested goal does not exist or is
	// not accessible to the current user.
	ErrGoalNotFound = errors.New("goal not found")

	// ErrEmptyText is returned when a goal creation request carries no text.
	ErrEmptyText = errors.New("goal text is empty")

	// ErrGoalNotActive is returned when an operation requires an ACTIVE goal
	// (schedule generation, abandonment) but the goal is in a terminal state.
	ErrGoalNotActive = errors.New("goal is not active")

	// ErrNonMonotonicBatch is returned by the materializer when a requested
	// batch start does not advance past already-persisted schedules. It marks
	// a stale or looping client cursor and aborts generation.
	ErrNonMonotonicBatch = errors.New("batch start date does not advance")
)

// Schedule-related errors.
var (
	// ErrScheduleNotFound indicates that the requested schedule does not exist
	// or is not accessible to the current user.
	ErrScheduleNotFound = errors.New("schedule not found")

	// ErrEmptyTitle is returned when a standalone schedule is created without
	// a title.
	ErrEmptyTitle = errors.New("schedule title is empty")

	// ErrInvalidStatus is returned when a schedule status update names a value
	// outside the allowed set.
	ErrInvalidStatus = errors.New("invalid schedule status")
)

// StepValidationError carries the complete list of violations found in a
// generated step batch. All violations are reported together so a caller can
// see everything that was wrong with the payload, not just the first problem.
type StepValidationError struct {
	Violations []string
}

// Error joins the violations into a single diagnostic string.
func (e *StepValidationError) Error() string {
	return "jadwal tidak valid: " + strings.Join(e.Violations, "; ")
}
