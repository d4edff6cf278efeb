// Copyright (c) 2026 Armature Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package armature

import (
	"errors"
	"fmt"

	"github.com/armaturelabs/armature/container"
)

// PanicError reports a panic recovered from a lifecycle hook or a
// binding source. Value holds the value panicked with.
type PanicError = container.PanicError

// LifecycleStateError occurs when a start or stop is requested while
// the opposite transition is in flight. Requesting a transition that is
// already in flight, or already complete, is never an error.
type LifecycleStateError struct {
	Op     string
	Status Status
}

// Error implements the [builtin.error] interface.
func (e LifecycleStateError) Error() string {
	return fmt.Sprintf("armature: can not %s application while it is %s", e.Op, e.Status)
}

// ParticipantError reports a failed lifecycle hook of a single
// participant.
type ParticipantError struct {
	// Key is the binding key of the participant.
	Key string

	// Op is the hook that failed, one of "init", "start" or "stop".
	Op string

	Cause error
}

// Error implements the [builtin.error] interface.
func (e ParticipantError) Error() string {
	return fmt.Sprintf("armature: lifecycle participant %q failed to %s: %s", e.Key, e.Op, e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e ParticipantError) Unwrap() error {
	return e.Cause
}

// StartError reports an aborted start transition. Participant is the
// failure that aborted it. Rollback aggregates stop failures from
// rolling already started participants back, it never masks the
// original failure.
type StartError struct {
	Participant ParticipantError
	Rollback    error
}

// Error implements the [builtin.error] interface.
func (e StartError) Error() string {
	if e.Rollback == nil {
		return fmt.Sprintf("armature: failed to start application: %s", e.Participant)
	}
	return fmt.Sprintf("armature: failed to start application: %s (rollback: %s)", e.Participant, e.Rollback)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e StartError) Unwrap() error {
	return e.Participant
}

// StopError aggregates the hook failures of a stop transition. Every
// participant is attempted and the application reaches [StatusStopped]
// regardless of failures.
type StopError struct {
	Failures []error
}

// Error implements the [builtin.error] interface.
func (e StopError) Error() string {
	return fmt.Sprintf(
		"armature: failed to stop %d lifecycle participant(s): %s",
		len(e.Failures),
		errors.Join(e.Failures...),
	)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e StopError) Unwrap() []error {
	return e.Failures
}

// ComponentError reports a failed component constructor.
type ComponentError struct {
	Name  string
	Cause error
}

// Error implements the [builtin.error] interface.
func (e ComponentError) Error() string {
	return fmt.Sprintf("armature: failed to build component %q: %s", e.Name, e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e ComponentError) Unwrap() error {
	return e.Cause
}
