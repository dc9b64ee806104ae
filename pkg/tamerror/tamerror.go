// Package tamerror defines the TAM's error kinds (§7). Each kind is a
// sentinel that callers match with errors.Is; Error additionally wraps the
// lower-level cause so %w-chains still reach it.
package tamerror

import (
	"errors"
	"fmt"
)

// Kind identifies one of the error kinds from §7.
type Kind string

const (
	DuplicateAllocation Kind = "DuplicateAllocation"
	UnknownWorker       Kind = "UnknownWorker"
	ContainerAllocation Kind = "ContainerAllocation"
	AllocationFitMiss   Kind = "AllocationFitMiss"
	TaskFault           Kind = "TaskFault"
	ContainerFault      Kind = "ContainerFault"
	TMFault             Kind = "TMFault"
)

// Error pairs a Kind with the underlying cause, if any.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is a *Error of the same Kind, so callers can
// write errors.Is(err, tamerror.New(tamerror.UnknownWorker, nil)) or,
// more conveniently, use the Kind-matching helper Is below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New constructs an *Error of the given kind wrapping err (which may be
// nil).
func New(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// Is reports whether err is (or wraps) a tamerror.Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}
