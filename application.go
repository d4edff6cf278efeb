// Copyright (c) 2026 Armature Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package armature

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/armaturelabs/armature/config"
	"github.com/armaturelabs/armature/container"
	"github.com/armaturelabs/armature/internal/noop"
)

// Application is a [container.Container] paired with a lifecycle
// orchestrator. Bindings registered on it, directly or through
// [Application.Server], [Application.LifeCycleObserver] and
// [Application.Component], are discovered by tag and driven through
// ordered start and stop transitions.
//
// All methods are safe for concurrent use.
type Application struct {
	*container.Container

	name           string
	log            *slog.Logger
	tracerProvider trace.TracerProvider
	groupOrder     []string

	mu         sync.Mutex
	status     Status
	transition *transition
	cycle      []*participant
	batch      int
	tracked    []*participant
	inited     map[string]struct{}
}

// Option configures an [Application].
type Option func(*Application)

// Name sets the application name reported in logs.
func Name(name string) Option {
	return func(app *Application) {
		app.name = name
	}
}

// LogHandler sets the [slog.Handler] which lifecycle events are logged
// to. The default handler discards all records.
func LogHandler(h slog.Handler) Option {
	return func(app *Application) {
		app.log = slog.New(h)
	}
}

// TracerProvider sets the [trace.TracerProvider] used for tracing
// lifecycle transitions. The default is the globally registered
// provider.
func TracerProvider(tp trace.TracerProvider) Option {
	return func(app *Application) {
		app.tracerProvider = tp
	}
}

// GroupOrder pins the start order of the named observer groups. Groups
// not named here follow the pinned ones, ordered by their first
// registration. Stop order is always the reverse of start order.
func GroupOrder(groups ...string) Option {
	return func(app *Application) {
		app.groupOrder = append(app.groupOrder, groups...)
	}
}

// New returns an [Application] in [StatusCreated], with itself bound
// under [KeyApplication].
func New(opts ...Option) *Application {
	app := &Application{
		Container: container.New(),
		log:       slog.New(noop.LogHandler{}),
		status:    StatusCreated,
		inited:    make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(app)
	}

	_, err := app.Container.Bind(KeyApplication).ToValue(app)
	if err != nil {
		panic(err)
	}
	return app
}

// Status returns the application's current lifecycle status.
func (app *Application) Status() Status {
	app.mu.Lock()
	defer app.mu.Unlock()
	return app.status
}

// Configure returns a builder for the configuration slot of key, see
// [ConfigKey]. Bind a [*config.Manager] to hand the target binding a
// layered configuration, or any plain value to hand it over as is.
func (app *Application) Configure(key string) *container.BindingBuilder {
	return app.Container.Bind(ConfigKey(key))
}

// UnmarshalConfig resolves the configuration slot of key into v, which
// must be a non nil pointer. A slot holding a [*config.Manager] is
// unmarshaled via [config.Manager.Unmarshal], any other value must be
// assignable to the target of v.
func (app *Application) UnmarshalConfig(ctx context.Context, key string, v any) error {
	raw, err := app.Container.Get(ctx, ConfigKey(key))
	if err != nil {
		return err
	}
	if m, ok := raw.(*config.Manager); ok {
		return m.Unmarshal(v)
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("armature: config target must be a non nil pointer, got %T", v)
	}

	target := rv.Elem()
	if raw == nil {
		target.SetZero()
		return nil
	}

	sv := reflect.ValueOf(raw)
	if !sv.Type().AssignableTo(target.Type()) {
		return container.TypeMismatchError{
			Key:  ConfigKey(key),
			Want: target.Type(),
			Got:  sv.Type(),
		}
	}
	target.Set(sv)
	return nil
}

// registrable rejects compound registrations while a lifecycle
// transition is in flight. Plain binds are backstopped by the sealed
// container itself.
func (app *Application) registrable(key string) error {
	app.mu.Lock()
	defer app.mu.Unlock()

	switch app.status {
	case StatusStarting, StatusStopping:
		return container.SealedError{Key: key}
	}
	return nil
}

func (app *Application) tracer() trace.Tracer {
	tp := app.tracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return tp.Tracer("github.com/armaturelabs/armature")
}
