// Copyright (c) 2026 Armature Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package armature

import (
	"fmt"
	"sort"

	"github.com/armaturelabs/armature/container"
)

// Component is a registration time bundle of servers, observers and
// bindings. Any value can act as one: the [Application] probes it for
// the optional [ServerProvider], [ObserverProvider] and
// [BindingProvider] capabilities, and tracks the component itself as a
// lifecycle participant when it implements [Starter], [Stopper] or
// [Initializer].
type Component = any

// ComponentConstructor builds a component. The running [Application] is
// injected so constructors can resolve further bindings from it.
type ComponentConstructor func(app *Application) (Component, error)

// ServerProvider contributes named servers. Each entry is registered as
// if by [Application.Server], so every entry resolves to its own
// instance even when entries share a constructor.
type ServerProvider interface {
	Servers() map[string]ServerConstructor
}

// ObserverProvider contributes named lifecycle observers, registered as
// if by [Application.LifeCycleObserver].
type ObserverProvider interface {
	LifeCycleObservers() map[string]ObserverConstructor
}

// BindingProvider contributes arbitrary bindings, built detached via
// [container.NewBinding].
type BindingProvider interface {
	Bindings() []*container.Binding
}

// Component builds and mounts a component: the instance is bound under
// [NamespaceComponents].name and its contributed bindings, servers and
// observers are registered. Contributed entries are registered in
// lexical name order.
func (app *Application) Component(name string, ctor ComponentConstructor) error {
	if ctor == nil {
		return fmt.Errorf("armature: component constructor for %q must not be nil", name)
	}
	if err := app.registrable(ComponentKey(name)); err != nil {
		return err
	}

	comp, err := ctor(app)
	if err != nil {
		return ComponentError{Name: name, Cause: err}
	}

	if _, err := app.Container.Bind(ComponentKey(name)).ToValue(comp); err != nil {
		return err
	}

	if bp, ok := comp.(BindingProvider); ok {
		for _, b := range bp.Bindings() {
			if err := app.Container.Add(b); err != nil {
				return err
			}
		}
	}

	if sp, ok := comp.(ServerProvider); ok {
		servers := sp.Servers()
		for _, entry := range sortedNames(servers) {
			if err := app.Server(entry, servers[entry]); err != nil {
				return err
			}
		}
	}

	if op, ok := comp.(ObserverProvider); ok {
		observers := op.LifeCycleObservers()
		for _, entry := range sortedNames(observers) {
			if err := app.LifeCycleObserver(entry, observers[entry]); err != nil {
				return err
			}
		}
	}

	if isParticipant(comp) {
		app.mu.Lock()
		app.tracked = append(app.tracked, &participant{key: ComponentKey(name), value: comp})
		app.mu.Unlock()
	}
	return nil
}

func isParticipant(v any) bool {
	switch v.(type) {
	case Starter, Stopper, Initializer:
		return true
	}
	return false
}

func sortedNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
