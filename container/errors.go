// Copyright (c) 2026 Armature Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package container

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/armaturelabs/armature/internal/try"
)

// PanicError reports a panic recovered from a binding source during
// resolution. Value holds the value the source panicked with.
type PanicError = try.PanicError

var (
	// ErrNilBinding is returned by [Container.Add] for a nil binding.
	ErrNilBinding = errors.New("container: binding must not be nil")

	// ErrEmptyKey is returned when registering a binding without a key.
	ErrEmptyKey = errors.New("container: binding key must not be empty")
)

// BindingNotFoundError occurs when a key is resolved but no binding for
// it exists in the container chain. Requester is the key of the binding
// whose dependency resolution triggered the lookup, if any.
type BindingNotFoundError struct {
	Key       string
	Requester string
}

// Error implements the [builtin.error] interface.
func (e BindingNotFoundError) Error() string {
	if e.Requester == "" {
		return fmt.Sprintf("container: binding %q not found", e.Key)
	}
	return fmt.Sprintf("container: binding %q required by %q not found", e.Key, e.Requester)
}

// DuplicateBindingError occurs when [Container.Bind] or [Container.Add]
// would overwrite an existing binding. Replacing a binding must be an
// explicit choice, via [Container.Rebind].
type DuplicateBindingError struct {
	Key string
}

// Error implements the [builtin.error] interface.
func (e DuplicateBindingError) Error() string {
	return fmt.Sprintf("container: binding %q already exists, use Rebind to replace it", e.Key)
}

// CircularDependencyError occurs when resolving a binding requires, via
// any number of intermediate dependencies, resolving itself. Chain lists
// the binding keys along the cycle, ending with the repeated key.
type CircularDependencyError struct {
	Chain []string
}

// Error implements the [builtin.error] interface.
func (e CircularDependencyError) Error() string {
	return fmt.Sprintf("container: circular dependency detected: %s", strings.Join(e.Chain, " -> "))
}

// AsyncResolutionError occurs when [Container.GetSync] reaches a binding
// that can not be resolved synchronously, either because its source may
// suspend or because another resolution of it is still in flight.
type AsyncResolutionError struct {
	Key string
}

// Error implements the [builtin.error] interface.
func (e AsyncResolutionError) Error() string {
	return fmt.Sprintf("container: binding %q can not be resolved synchronously, use Get", e.Key)
}

// SealedError occurs when a binding is registered on a sealed container.
// Containers are sealed while a lifecycle transition is in flight.
type SealedError struct {
	Key string
}

// Error implements the [builtin.error] interface.
func (e SealedError) Error() string {
	return fmt.Sprintf("container: registry is sealed, binding %q rejected", e.Key)
}

// TypeMismatchError occurs when a resolved value does not have the type
// the caller asserted, for example via [Resolve].
type TypeMismatchError struct {
	Key  string
	Want reflect.Type
	Got  reflect.Type
}

// Error implements the [builtin.error] interface.
func (e TypeMismatchError) Error() string {
	return fmt.Sprintf("container: value bound under %q is %s, not %s", e.Key, e.Got, e.Want)
}

// InjectionError occurs when a resolved dependency value can not be
// injected into the target binding's constructor parameter or struct
// field. Key is the binding being built and Dep the dependency key.
type InjectionError struct {
	Key   string
	Dep   string
	Cause error
}

// Error implements the [builtin.error] interface.
func (e InjectionError) Error() string {
	return fmt.Sprintf("container: failed to inject %q into %q: %s", e.Dep, e.Key, e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e InjectionError) Unwrap() error {
	return e.Cause
}

func assertType[T any](key string, v any) (T, error) {
	t, ok := v.(T)
	if !ok {
		return t, TypeMismatchError{
			Key:  key,
			Want: reflect.TypeOf((*T)(nil)).Elem(),
			Got:  reflect.TypeOf(v),
		}
	}
	return t, nil
}
