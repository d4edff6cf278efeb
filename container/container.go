// Copyright (c) 2026 Armature Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package container provides a string keyed binding registry with scoped,
// dependency aware value resolution.
//
// Values are registered as [Binding]s via a fluent [BindingBuilder] and
// resolved with [Container.Get] or [Container.GetSync]. Containers form
// chains: a child container resolves keys it does not bind itself through
// its parent, while its own bindings shadow the parent's. Bindings carry
// tags which higher layers use for discovery, never key naming patterns.
package container

import (
	"context"
	"sync"
)

// Container is a registry of [Binding]s, optionally chained to a parent
// container for fallback lookup.
//
// A Container owns its bindings exclusively. It only references, never
// owns, its parent. All methods are safe for concurrent use.
type Container struct {
	parent *Container

	mu       sync.RWMutex
	bindings map[string]*Binding
	order    []string
	sealed   bool
	scoped   map[*Binding]*cell
}

// New returns an empty root Container.
func New() *Container {
	return &Container{
		bindings: make(map[string]*Binding),
		scoped:   make(map[*Binding]*cell),
	}
}

// NewChild returns an empty Container whose lookups fall back to c.
func (c *Container) NewChild() *Container {
	child := New()
	child.parent = c
	return child
}

// Parent returns the parent Container, or nil for a root.
func (c *Container) Parent() *Container {
	return c.parent
}

// Bind returns a fluent builder for registering a new [Binding] under key.
// The binding is registered by the builder's terminal To method, which
// fails with a [DuplicateBindingError] if key is already bound locally.
func (c *Container) Bind(key string) *BindingBuilder {
	return &BindingBuilder{container: c, key: key, scope: ScopeTransient}
}

// Rebind is like [Container.Bind] but explicitly replaces any existing
// local binding for key. The previous binding, including its tags, scope
// and cached value, is discarded entirely.
func (c *Container) Rebind(key string) *BindingBuilder {
	return &BindingBuilder{container: c, key: key, scope: ScopeTransient, rebind: true}
}

// Add registers a fully formed [Binding], typically built detached via
// [NewBinding]. Registering a key that is already bound locally fails
// with a [DuplicateBindingError].
func (c *Container) Add(b *Binding) error {
	return c.register(b, false)
}

// Unbind removes the local binding for key, reporting whether a binding
// was removed. Inherited bindings are not affected.
func (c *Container) Unbind(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	b, ok := c.bindings[key]
	if !ok {
		return false
	}

	delete(c.bindings, key)
	delete(c.scoped, b)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return true
}

// IsBound reports whether key is bound in c or any of its ancestors.
func (c *Container) IsBound(key string) bool {
	_, ok := c.lookup(key)
	return ok
}

// Binding returns the binding for key, local or inherited, the nearest
// container's binding winning.
func (c *Container) Binding(key string) (*Binding, bool) {
	return c.lookup(key)
}

// Seal causes all registrations on c to fail with a [SealedError] until
// [Container.Unseal] is called. Lookup and resolution remain available.
func (c *Container) Seal() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sealed = true
}

// Unseal lifts a previous [Container.Seal].
func (c *Container) Unseal() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sealed = false
}

// Find returns all bindings, local and inherited, matching the given
// filter. A local binding shadows an inherited binding for the same key.
// Bindings are returned in registration order, outermost ancestor first.
// The order is not guaranteed to be stable across rebinding.
func (c *Container) Find(filter func(*Binding) bool) []*Binding {
	var levels []*Container
	for cur := c; cur != nil; cur = cur.parent {
		levels = append(levels, cur)
	}

	// Nearest container binding a key owns it.
	owner := make(map[string]*Container)
	for _, level := range levels {
		level.mu.RLock()
		for key := range level.bindings {
			if _, ok := owner[key]; !ok {
				owner[key] = level
			}
		}
		level.mu.RUnlock()
	}

	var out []*Binding
	for i := len(levels) - 1; i >= 0; i-- {
		level := levels[i]
		level.mu.RLock()
		for _, key := range level.order {
			b := level.bindings[key]
			if owner[key] != level {
				continue
			}
			if filter(b) {
				out = append(out, b)
			}
		}
		level.mu.RUnlock()
	}
	return out
}

// FindByTag returns all bindings carrying the named tag, with any value.
// See [Container.Find] for ordering and shadowing semantics.
func (c *Container) FindByTag(name string) []*Binding {
	return c.Find(func(b *Binding) bool {
		_, ok := b.Tag(name)
		return ok
	})
}

// FindByTagValue returns all bindings carrying the named tag with the
// given value. See [Container.Find] for ordering and shadowing semantics.
func (c *Container) FindByTagValue(name, value string) []*Binding {
	return c.Find(func(b *Binding) bool {
		v, ok := b.Tag(name)
		return ok && v == value
	})
}

func (c *Container) register(b *Binding, rebind bool) error {
	if b == nil {
		return ErrNilBinding
	}
	if b.key == "" {
		return ErrEmptyKey
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sealed {
		return SealedError{Key: b.key}
	}

	old, bound := c.bindings[b.key]
	if bound && !rebind {
		return DuplicateBindingError{Key: b.key}
	}
	if bound {
		delete(c.scoped, old)
		for i, k := range c.order {
			if k == b.key {
				c.order = append(c.order[:i], c.order[i+1:]...)
				break
			}
		}
	}

	c.bindings[b.key] = b
	c.order = append(c.order, b.key)
	return nil
}

// lookup walks the container chain, nearest container first.
func (c *Container) lookup(key string) (*Binding, bool) {
	for cur := c; cur != nil; cur = cur.parent {
		cur.mu.RLock()
		b, ok := cur.bindings[key]
		cur.mu.RUnlock()
		if ok {
			return b, true
		}
	}
	return nil, false
}

// scopedCell returns the [ScopeContainer] cache slot for b on c,
// creating it if necessary.
func (c *Container) scopedCell(b *Binding) *cell {
	c.mu.Lock()
	defer c.mu.Unlock()

	cl, ok := c.scoped[b]
	if !ok {
		cl = new(cell)
		c.scoped[b] = cl
	}
	return cl
}

// Resolve resolves key on c and asserts the value to T. It fails with a
// [TypeMismatchError] if the bound value is not a T.
func Resolve[T any](ctx context.Context, c *Container, key string) (T, error) {
	v, err := c.Get(ctx, key)
	if err != nil {
		var zero T
		return zero, err
	}
	return assertType[T](key, v)
}

// ResolveSync is the [Container.GetSync] counterpart of [Resolve].
func ResolveSync[T any](c *Container, key string) (T, error) {
	v, err := c.GetSync(key)
	if err != nil {
		var zero T
		return zero, err
	}
	return assertType[T](key, v)
}
