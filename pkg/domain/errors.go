package domain

import (
	"errors"
	"fmt"
)

// Error classes. Callers match these with errors.Is.
var (
	ErrValidation  = errors.New("validation failed")
	ErrPolicy      = errors.New("refused by membership policy")
	ErrPersistence = errors.New("persistence failed")
)

// Store and policy errors.
var (
	ErrMemberNotFound        = errors.New("member not found")
	ErrMemberStillActive     = errors.New("member is still active")
	ErrPlanChangeWhileActive = errors.New("plan type cannot change while membership is active")
	ErrCapacityReached       = errors.New("member capacity reached")
	ErrDuplicateID           = errors.New("duplicate member id")
)

// ValidationError reports a single rejected field.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NotFoundError identifies the id that could not be resolved.
type NotFoundError struct {
	ID int
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("member %d not found", e.ID)
}

func (e NotFoundError) Unwrap() error { return ErrMemberNotFound }

// PolicyError carries the refused rule and a reason suitable for the operator.
type PolicyError struct {
	ID     int
	Rule   error
	Reason string
}

func (e *PolicyError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("member %d: %v", e.ID, e.Rule)
	}
	return fmt.Sprintf("member %d: %v: %s", e.ID, e.Rule, e.Reason)
}

// Unwrap exposes both the specific rule and the ErrPolicy class.
func (e *PolicyError) Unwrap() []error { return []error{e.Rule, ErrPolicy} }

// PersistenceError wraps a failed load or save. The in-memory store is not
// rolled back when a save fails.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap exposes the cause and the ErrPersistence class.
func (e *PersistenceError) Unwrap() []error { return []error{e.Err, ErrPersistence} }
