// Copyright (c) 2026 Armature Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package armature

import (
	"context"
	"fmt"
	"reflect"

	"github.com/armaturelabs/armature/container"
)

// Server is a lifecycle participant that accepts outside work while the
// application is started, for example by listening on a socket or
// consuming a queue.
type Server interface {
	LifeCycleObserver

	// Listening reports whether the server is currently accepting
	// work.
	Listening() bool
}

// ServerConstructor builds a server. The running [Application] is
// injected so constructors can resolve further bindings from it.
type ServerConstructor func(app *Application) (Server, error)

// Server registers a server constructor under [NamespaceServers].name.
// The binding is a singleton tagged [TagLifeCycleObserver] and
// [TagServer], so the server starts and stops with the application.
// Each registered name resolves to its own instance, two names sharing
// one constructor produce two servers.
func (app *Application) Server(name string, ctor ServerConstructor, opts ...ObserverOption) error {
	if ctor == nil {
		return fmt.Errorf("armature: server constructor for %q must not be nil", name)
	}

	bb := app.Container.Bind(ServerKey(name)).
		Tag(TagLifeCycleObserver, TagServer).
		InScope(container.ScopeSingleton)

	_, err := applyObserverOptions(bb, opts).ToConstructor(ctor, KeyApplication)
	return err
}

// GetServer resolves the server registered under name, constructing it
// if it has not been resolved yet.
func (app *Application) GetServer(ctx context.Context, name string) (Server, error) {
	return container.Resolve[Server](ctx, app.Container, ServerKey(name))
}

// ServerOf resolves the server whose registered name matches T's type
// name, following the convention of registering a server under the name
// of its implementation type.
func ServerOf[T Server](ctx context.Context, app *Application) (T, error) {
	return container.Resolve[T](ctx, app.Container, ServerKey(typeName[T]()))
}

func typeName[T any]() string {
	t := reflect.TypeOf((*T)(nil)).Elem()
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name()
}
