// Copyright (c) 2026 Armature Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package container

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// Scope controls how often a [Binding] produces a new value.
type Scope string

const (
	// ScopeTransient produces a fresh value on every resolution.
	// It is the default scope.
	ScopeTransient Scope = "Transient"

	// ScopeSingleton produces a single value shared by every container
	// in the chain. The first resolution constructs it, all later and
	// concurrent resolutions observe the same value.
	ScopeSingleton Scope = "Singleton"

	// ScopeContainer produces one value per resolving container. Two
	// containers resolving the same inherited binding each cache their
	// own value.
	ScopeContainer Scope = "Container"
)

// String implements the [fmt.Stringer] interface.
func (s Scope) String() string {
	return string(s)
}

// Binding associates a key with a value source, a [Scope] and a set of
// tags. Bindings are immutable once built; use [Container.Rebind] to
// replace one.
type Binding struct {
	key   string
	scope Scope
	tags  map[string]string
	src   source

	single cell
}

// Key returns the key the binding was built for.
func (b *Binding) Key() string {
	return b.key
}

// Scope returns the binding's [Scope].
func (b *Binding) Scope() Scope {
	return b.scope
}

// Tag returns the value of the named tag and whether the tag is present.
// Tags attached without a value report ok with an empty string.
func (b *Binding) Tag(name string) (string, bool) {
	v, ok := b.tags[name]
	return v, ok
}

// Tags returns a copy of the binding's tag set.
func (b *Binding) Tags() map[string]string {
	tags := make(map[string]string, len(b.tags))
	for name, value := range b.tags {
		tags[name] = value
	}
	return tags
}

// Type returns the statically known type of the bound value, or nil if
// the source is opaque, as with [BindingBuilder.ToFactory].
func (b *Binding) Type() reflect.Type {
	return b.src.resultType()
}

// String implements the [fmt.Stringer] interface.
func (b *Binding) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s [%s]", b.key, b.scope)

	if len(b.tags) > 0 {
		names := make([]string, 0, len(b.tags))
		for name := range b.tags {
			names = append(names, name)
		}
		sort.Strings(names)

		sb.WriteString(" {")
		for i, name := range names {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(name)
			if v := b.tags[name]; v != "" {
				sb.WriteString("=")
				sb.WriteString(v)
			}
		}
		sb.WriteString("}")
	}
	return sb.String()
}

// source produces the value behind a [Binding].
type source interface {
	// async reports whether producing a value may suspend, which
	// excludes the source from [Container.GetSync] resolution.
	async() bool

	// resultType is the statically known produced type, or nil.
	resultType() reflect.Type
}

type valueSource struct {
	v any
}

func (s valueSource) async() bool { return false }

func (s valueSource) resultType() reflect.Type { return reflect.TypeOf(s.v) }

// constructorSource calls a plain function with resolved dependency
// values. deps[i] is the binding key for the function's i'th parameter.
type constructorSource struct {
	fn     reflect.Value
	deps   []string
	out    reflect.Type
	hasErr bool
}

func (s constructorSource) async() bool { return false }

func (s constructorSource) resultType() reflect.Type { return s.out }

// providerSource is a [constructorSource] whose function takes a leading
// [context.Context], marking the step as suspendable.
type providerSource struct {
	constructorSource
}

func (s providerSource) async() bool { return true }

type factorySource struct {
	fn func(context.Context, *Container) (any, error)
}

func (s factorySource) async() bool { return true }

func (s factorySource) resultType() reflect.Type { return nil }

// structSource clones a prototype struct and fills its `inject` tagged
// fields with resolved dependency values.
type structSource struct {
	typ    reflect.Type
	proto  reflect.Value
	fields []structDep
	ptr    bool
}

type structDep struct {
	index int
	key   string
}

func (s structSource) async() bool { return false }

func (s structSource) resultType() reflect.Type {
	if s.ptr {
		return reflect.PointerTo(s.typ)
	}
	return s.typ
}
