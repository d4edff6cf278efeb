// Copyright (c) 2026 Armature Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package container

import (
	"context"
	"fmt"
	"reflect"
)

// Spec is declarative binding metadata. Applying a Spec to a builder via
// [BindingBuilder.ApplySpec] is equivalent to calling the corresponding
// fluent methods by hand, both paths funnel into the same builder state.
type Spec struct {
	// Key overrides the builder's binding key when non-empty.
	Key string

	// Scope overrides the builder's scope when non-empty.
	Scope Scope

	// Tags are merged over the builder's tags.
	Tags map[string]string
}

// SpecProvider is implemented by types that carry their own binding
// metadata. [BindingBuilder.ApplySpecOf] consults it.
type SpecProvider interface {
	BindingSpec() Spec
}

// BindingBuilder accumulates binding metadata fluently. A terminal To
// method attaches the value source, builds the [Binding] and, for
// builders obtained from [Container.Bind] or [Container.Rebind],
// registers it.
type BindingBuilder struct {
	container *Container
	rebind    bool

	key   string
	scope Scope
	tags  map[string]string
}

// NewBinding returns a detached builder whose terminal To method only
// builds the [Binding], for later registration via [Container.Add].
func NewBinding(key string) *BindingBuilder {
	return &BindingBuilder{key: key, scope: ScopeTransient}
}

// Tag attaches the named tags without values.
func (bb *BindingBuilder) Tag(names ...string) *BindingBuilder {
	for _, name := range names {
		bb.tag(name, "")
	}
	return bb
}

// TagValue attaches the named tag with a value.
func (bb *BindingBuilder) TagValue(name, value string) *BindingBuilder {
	bb.tag(name, value)
	return bb
}

// InScope sets the binding's [Scope]. The default is [ScopeTransient].
func (bb *BindingBuilder) InScope(scope Scope) *BindingBuilder {
	bb.scope = scope
	return bb
}

// ApplySpec merges declarative metadata into the builder. Set fields
// override, tags merge.
func (bb *BindingBuilder) ApplySpec(spec Spec) *BindingBuilder {
	if spec.Key != "" {
		bb.key = spec.Key
	}
	if spec.Scope != "" {
		bb.scope = spec.Scope
	}
	for name, value := range spec.Tags {
		bb.tag(name, value)
	}
	return bb
}

// ApplySpecOf merges the declarative metadata of v, if v implements
// [SpecProvider]. Otherwise it leaves the builder unchanged.
func (bb *BindingBuilder) ApplySpecOf(v any) *BindingBuilder {
	sp, ok := v.(SpecProvider)
	if !ok {
		return bb
	}
	return bb.ApplySpec(sp.BindingSpec())
}

// ToValue binds an already constructed value. The value is returned
// as-is by every resolution, regardless of scope.
func (bb *BindingBuilder) ToValue(v any) (*Binding, error) {
	return bb.finish(valueSource{v: v})
}

// ToConstructor binds a function to be called with resolved dependency
// values. deps[i] names the binding key resolved for fn's i'th parameter.
// fn must return a single value, optionally followed by an error.
//
// Constructors are synchronous sources: bindings built from them resolve
// via [Container.GetSync] as long as their dependencies do.
func (bb *BindingBuilder) ToConstructor(fn any, deps ...string) (*Binding, error) {
	src, err := bb.funcSource(fn, deps, false)
	if err != nil {
		return nil, err
	}
	return bb.finish(src)
}

// ToProvider is [BindingBuilder.ToConstructor] for functions taking a
// leading [context.Context]. The context marks the source as
// suspendable, so the binding resolves only via [Container.Get].
func (bb *BindingBuilder) ToProvider(fn any, deps ...string) (*Binding, error) {
	src, err := bb.funcSource(fn, deps, true)
	if err != nil {
		return nil, err
	}
	return bb.finish(providerSource{constructorSource: src})
}

// ToFactory binds a closure with full access to the resolving container.
// The closure should resolve any dependencies through [Container.Get]
// with the context it is given, which carries the resolution state used
// for circular dependency detection. Like [BindingBuilder.ToProvider],
// factory bindings resolve only via [Container.Get].
func (bb *BindingBuilder) ToFactory(fn func(context.Context, *Container) (any, error)) (*Binding, error) {
	if fn == nil {
		return nil, fmt.Errorf("container: factory for %q must not be nil", bb.key)
	}
	return bb.finish(factorySource{fn: fn})
}

// ToStruct binds a struct prototype whose `inject` tagged fields name
// binding keys. Each resolution clones the prototype and fills the
// tagged fields with resolved values. A pointer prototype produces
// pointer values, a plain struct produces struct values.
func (bb *BindingBuilder) ToStruct(prototype any) (*Binding, error) {
	rv := reflect.ValueOf(prototype)
	ptr := false
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, fmt.Errorf("container: struct prototype for %q must not be nil", bb.key)
		}
		ptr = true
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, fmt.Errorf("container: source for %q must be a struct or pointer to struct, got %T", bb.key, prototype)
	}

	typ := rv.Type()
	var fields []structDep
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		depKey, ok := field.Tag.Lookup("inject")
		if !ok {
			continue
		}
		if depKey == "" {
			return nil, fmt.Errorf("container: inject tag on %s.%s must name a binding key", typ, field.Name)
		}
		if !field.IsExported() {
			return nil, fmt.Errorf("container: inject tagged field %s.%s must be exported", typ, field.Name)
		}
		fields = append(fields, structDep{index: i, key: depKey})
	}

	// Snapshot the prototype so later caller mutations are not observed.
	proto := reflect.New(typ).Elem()
	proto.Set(rv)

	return bb.finish(structSource{typ: typ, proto: proto, fields: fields, ptr: ptr})
}

func (bb *BindingBuilder) tag(name, value string) {
	if bb.tags == nil {
		bb.tags = make(map[string]string)
	}
	bb.tags[name] = value
}

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

func (bb *BindingBuilder) funcSource(fn any, deps []string, provider bool) (constructorSource, error) {
	var src constructorSource

	rv := reflect.ValueOf(fn)
	if !rv.IsValid() || rv.Kind() != reflect.Func {
		return src, fmt.Errorf("container: source for %q must be a function, got %T", bb.key, fn)
	}
	if rv.IsNil() {
		return src, fmt.Errorf("container: source function for %q must not be nil", bb.key)
	}

	ft := rv.Type()
	if ft.IsVariadic() {
		return src, fmt.Errorf("container: source function for %q must not be variadic", bb.key)
	}

	in := len(deps)
	if provider {
		in++
	}
	if ft.NumIn() != in {
		return src, fmt.Errorf(
			"container: source function for %q takes %d parameters, but %d dependency keys were given",
			bb.key, ft.NumIn(), len(deps),
		)
	}
	if provider && ft.In(0) != contextType {
		return src, fmt.Errorf("container: provider for %q must take a context.Context as its first parameter", bb.key)
	}

	switch ft.NumOut() {
	case 1:
	case 2:
		if ft.Out(1) != errorType {
			return src, fmt.Errorf("container: source function for %q must return an error as its second value", bb.key)
		}
		src.hasErr = true
	default:
		return src, fmt.Errorf("container: source function for %q must return a value, or a value and an error", bb.key)
	}

	src.fn = rv
	src.deps = deps
	src.out = ft.Out(0)
	return src, nil
}

func (bb *BindingBuilder) finish(src source) (*Binding, error) {
	b := &Binding{
		key:   bb.key,
		scope: bb.scope,
		tags:  make(map[string]string, len(bb.tags)),
		src:   src,
	}
	for name, value := range bb.tags {
		b.tags[name] = value
	}

	if bb.container == nil {
		if b.key == "" {
			return nil, ErrEmptyKey
		}
		return b, nil
	}
	if err := bb.container.register(b, bb.rebind); err != nil {
		return nil, err
	}
	return b, nil
}
