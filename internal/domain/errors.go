package domain

import (
	"fmt"
	"strings"
)

// Error types for consistent error handling across the service.

// ErrNotFound indicates a resource was not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrExternalService indicates a failure in an external service call.
type ErrExternalService struct {
	Service string
	Err     error
}

func (e *ErrExternalService) Error() string {
	return fmt.Sprintf("external service error [%s]: %v", e.Service, e.Err)
}

func (e *ErrExternalService) Unwrap() error {
	return e.Err
}

// ErrCircuitOpen indicates the circuit breaker is open.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("circuit breaker open for service: %s", e.Service)
}

// ErrValidation indicates a single-field validation error (bad input).
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrInvalidForm carries the per-field errors of a wizard step or of the
// final full-schema check. Advancement is blocked while it is non-empty.
type ErrInvalidForm struct {
	Step   StepID
	Fields []FieldError
}

func (e *ErrInvalidForm) Error() string {
	names := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		names = append(names, f.Field)
	}
	return fmt.Sprintf("invalid fields on step %s: %s", e.Step, strings.Join(names, ", "))
}

// ErrDuplicateAccount indicates a guest signup with an already registered
// email. Surfaced with an actionable message and no side effects.
type ErrDuplicateAccount struct {
	Email string
}

func (e *ErrDuplicateAccount) Error() string {
	return "an account with this email already exists, log in instead"
}

// ErrConfiguration indicates a missing or malformed server credential.
// Fatal to the request; surfaced as a generic configuration message.
type ErrConfiguration struct {
	Setting string
}

func (e *ErrConfiguration) Error() string {
	return "server configuration error"
}

// ErrUnauthorized indicates invalid credentials or token.
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}

// ErrForbidden indicates the principal lacks permission for the operation.
type ErrForbidden struct {
	Action string
}

func (e *ErrForbidden) Error() string {
	return fmt.Sprintf("forbidden: %s", e.Action)
}

// ErrConflict indicates an illegal state change (e.g. a status transition
// outside the lifecycle map).
type ErrConflict struct {
	Message string
}

func (e *ErrConflict) Error() string {
	return e.Message
}
