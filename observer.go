// Copyright (c) 2026 Armature Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package armature

import (
	"context"
	"fmt"

	"github.com/armaturelabs/armature/container"
)

// Starter is started during [Application.Start]. A participant may
// implement it without implementing [Stopper], and vice versa.
type Starter interface {
	Start(ctx context.Context) error
}

// Stopper is stopped during [Application.Stop], and during the rollback
// of a failed start.
type Stopper interface {
	Stop(ctx context.Context) error
}

// Initializer runs before the participant's first start. Init is called
// at most once per binding key over the application's lifetime, however
// many start and stop cycles occur.
type Initializer interface {
	Init(ctx context.Context) error
}

// LifeCycleObserver participates in application start and stop.
type LifeCycleObserver interface {
	Starter
	Stopper
}

// ObserverFuncs adapts plain functions to the [LifeCycleObserver]
// interface. A nil function is a no-op.
type ObserverFuncs struct {
	OnStart func(ctx context.Context) error
	OnStop  func(ctx context.Context) error
}

// Start implements the [Starter] interface.
func (o ObserverFuncs) Start(ctx context.Context) error {
	if o.OnStart == nil {
		return nil
	}
	return o.OnStart(ctx)
}

// Stop implements the [Stopper] interface.
func (o ObserverFuncs) Stop(ctx context.Context) error {
	if o.OnStop == nil {
		return nil
	}
	return o.OnStop(ctx)
}

// ObserverConstructor builds a lifecycle observer. The running
// [Application] is injected so constructors can resolve further
// bindings from it.
type ObserverConstructor func(app *Application) (LifeCycleObserver, error)

// ObserverOption configures an observer or server registration.
type ObserverOption func(*observerOptions)

type observerOptions struct {
	group string
}

// InGroup places the participant in the named ordering group. See
// [TagLifeCycleObserverGroup] for the ordering rules.
func InGroup(group string) ObserverOption {
	return func(o *observerOptions) {
		o.group = group
	}
}

// LifeCycleObserver registers an observer constructor under
// [NamespaceLifeCycleObservers].name. The binding is a singleton
// tagged [TagLifeCycleObserver]: the observer is constructed once, on
// first start, and the same instance participates in every later
// cycle.
func (app *Application) LifeCycleObserver(name string, ctor ObserverConstructor, opts ...ObserverOption) error {
	if ctor == nil {
		return fmt.Errorf("armature: observer constructor for %q must not be nil", name)
	}

	bb := app.Container.Bind(ObserverKey(name)).
		Tag(TagLifeCycleObserver).
		InScope(container.ScopeSingleton)

	_, err := applyObserverOptions(bb, opts).ToConstructor(ctor, KeyApplication)
	return err
}

func applyObserverOptions(bb *container.BindingBuilder, opts []ObserverOption) *container.BindingBuilder {
	var o observerOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.group != "" {
		bb = bb.TagValue(TagLifeCycleObserverGroup, o.group)
	}
	return bb
}
