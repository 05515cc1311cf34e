package dispatch

import "errors"

// Sentinel errors returned by the assignment coordinator and the
// transition engine. Handlers map these onto HTTP status codes; every one
// of them corresponds to a dispatcher action that must be visibly
// acknowledged or rejected.
var (
	// ErrNotFound is returned when the referenced emergency or team does not exist
	ErrNotFound = errors.New("not found")

	// ErrInvalidTransition is returned when the requested status is not a
	// legal successor of the emergency's current status
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrActorRequired is returned when a mutation arrives without an
	// acting user id for the audit trail
	ErrActorRequired = errors.New("actor is required")

	// ErrNotPending is returned when an assignment loses the race on a
	// pending emergency: the compare-and-set observed a status other than
	// pending and the transaction was aborted without mutating anything
	ErrNotPending = errors.New("emergency is no longer pending")

	// ErrDepartmentMismatch is returned when the team belongs to a
	// different department than the emergency
	ErrDepartmentMismatch = errors.New("team department does not match emergency department")

	// ErrEmptyTeam is returned when the team has no members to dispatch
	ErrEmptyTeam = errors.New("team has no members")
)
