// Copyright (c) 2026 Armature Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package container

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/armaturelabs/armature/internal/try"
)

// Get resolves the value bound under key, constructing dependencies as
// needed. For [ScopeSingleton] and [ScopeContainer] bindings, concurrent
// resolutions share a single construction: the first caller builds,
// every other caller observes the same outcome. A caller whose ctx is
// done stops waiting, but a construction already under way runs to
// completion and is cached.
//
// Resolution state travels through ctx. Factory and provider sources
// must resolve further keys with the context they are given, otherwise
// circular dependencies across them go undetected.
//
// A source that panics is reported as an error satisfying
// [errors.As] for [PanicError], not propagated as a panic.
func (c *Container) Get(ctx context.Context, key string) (any, error) {
	return c.resolve(ctx, key)
}

// GetSync is [Container.Get] restricted to synchronous sources. It never
// waits: reaching a provider or factory binding, or a construction still
// in flight on another goroutine, fails with an [AsyncResolutionError]
// rather than blocking. An already memoized value is returned directly.
func (c *Container) GetSync(key string) (any, error) {
	ctx := withSession(context.Background(), &session{sync: true})
	return c.resolve(ctx, key)
}

// session tracks a single resolution chain. Sessions are immutable,
// each dependency step derives a child, so branches forked onto other
// goroutines by a factory never share mutable state.
type session struct {
	sync  bool
	chain []string
}

type sessionContextKey struct{}

func sessionFrom(ctx context.Context) *session {
	s, _ := ctx.Value(sessionContextKey{}).(*session)
	return s
}

func withSession(ctx context.Context, s *session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, s)
}

func (s *session) isSync() bool {
	return s != nil && s.sync
}

// current returns the key whose dependencies are being resolved.
func (s *session) current() string {
	if s == nil || len(s.chain) == 0 {
		return ""
	}
	return s.chain[len(s.chain)-1]
}

func (s *session) contains(key string) bool {
	if s == nil {
		return false
	}
	for _, k := range s.chain {
		if k == key {
			return true
		}
	}
	return false
}

func (s *session) push(key string) *session {
	child := &session{sync: s.isSync()}
	if s != nil {
		child.chain = make([]string, len(s.chain), len(s.chain)+1)
		copy(child.chain, s.chain)
	}
	child.chain = append(child.chain, key)
	return child
}

func (s *session) cycle(key string) []string {
	out := make([]string, 0, len(s.chain)+1)
	out = append(out, s.chain...)
	return append(out, key)
}

// cell is a memoization slot holding at most one in-flight or completed
// construction.
type cell struct {
	mu sync.Mutex
	f  *future
}

type future struct {
	done chan struct{}
	val  any
	err  error
}

func (cl *cell) loadOrCreate() (f *future, leader bool) {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	if cl.f != nil {
		return cl.f, false
	}
	f = &future{done: make(chan struct{})}
	cl.f = f
	return f, true
}

// clear drops f so a later resolution retries, unless the slot was
// already repopulated.
func (cl *cell) clear(f *future) {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	if cl.f == f {
		cl.f = nil
	}
}

func (c *Container) resolve(ctx context.Context, key string) (any, error) {
	sess := sessionFrom(ctx)

	b, ok := c.lookup(key)
	if !ok {
		return nil, BindingNotFoundError{Key: key, Requester: sess.current()}
	}
	if sess.contains(key) {
		return nil, CircularDependencyError{Chain: sess.cycle(key)}
	}
	if sess.isSync() && b.src.async() {
		return nil, AsyncResolutionError{Key: key}
	}

	sess = sess.push(key)
	ctx = withSession(ctx, sess)

	switch b.scope {
	case ScopeSingleton:
		return c.await(ctx, sess, b, &b.single)
	case ScopeContainer:
		return c.await(ctx, sess, b, c.scopedCell(b))
	default:
		return c.build(ctx, b)
	}
}

// await returns the memoized value for b from cl, constructing it if
// this caller is first. A failed construction is not cached, the next
// resolution retries it.
func (c *Container) await(ctx context.Context, sess *session, b *Binding, cl *cell) (any, error) {
	f, leader := cl.loadOrCreate()
	if !leader {
		if sess.isSync() {
			select {
			case <-f.done:
				return f.val, f.err
			default:
				return nil, AsyncResolutionError{Key: b.key}
			}
		}
		select {
		case <-f.done:
			return f.val, f.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	val, err := c.build(ctx, b)
	f.val, f.err = val, err
	if err != nil {
		cl.clear(f)
	}
	close(f.done)
	return val, err
}

func (c *Container) build(ctx context.Context, b *Binding) (any, error) {
	switch src := b.src.(type) {
	case valueSource:
		return src.v, nil
	case constructorSource:
		return c.call(ctx, b, src, nil)
	case providerSource:
		return c.call(ctx, b, src.constructorSource, []reflect.Value{reflect.ValueOf(ctx)})
	case factorySource:
		return c.produce(ctx, src)
	case structSource:
		return c.fill(ctx, b, src)
	default:
		return nil, fmt.Errorf("container: binding %q has no source", b.key)
	}
}

func (c *Container) call(ctx context.Context, b *Binding, src constructorSource, in []reflect.Value) (v any, err error) {
	defer try.Recover(&err)

	ft := src.fn.Type()
	offset := ft.NumIn() - len(src.deps)

	for i, dep := range src.deps {
		dv, rerr := c.resolve(ctx, dep)
		if rerr != nil {
			return nil, rerr
		}
		rv, cerr := conform(dv, ft.In(offset+i))
		if cerr != nil {
			return nil, InjectionError{Key: b.key, Dep: dep, Cause: cerr}
		}
		in = append(in, rv)
	}

	out := src.fn.Call(in)
	if src.hasErr && !out[1].IsNil() {
		return nil, out[1].Interface().(error)
	}
	return out[0].Interface(), nil
}

func (c *Container) produce(ctx context.Context, src factorySource) (v any, err error) {
	defer try.Recover(&err)
	return src.fn(ctx, c)
}

func (c *Container) fill(ctx context.Context, b *Binding, src structSource) (v any, err error) {
	defer try.Recover(&err)

	inst := reflect.New(src.typ)
	inst.Elem().Set(src.proto)

	for _, dep := range src.fields {
		dv, rerr := c.resolve(ctx, dep.key)
		if rerr != nil {
			return nil, rerr
		}
		field := inst.Elem().Field(dep.index)
		rv, cerr := conform(dv, field.Type())
		if cerr != nil {
			return nil, InjectionError{Key: b.key, Dep: dep.key, Cause: cerr}
		}
		field.Set(rv)
	}

	if src.ptr {
		return inst.Interface(), nil
	}
	return inst.Elem().Interface(), nil
}

// conform adapts a resolved dependency value to the target parameter or
// field type.
func conform(v any, target reflect.Type) (reflect.Value, error) {
	if v == nil {
		switch target.Kind() {
		case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func:
			return reflect.Zero(target), nil
		}
		return reflect.Value{}, fmt.Errorf("nil value is not assignable to %s", target)
	}

	rv := reflect.ValueOf(v)
	if !rv.Type().AssignableTo(target) {
		return reflect.Value{}, fmt.Errorf("value of type %s is not assignable to %s", rv.Type(), target)
	}
	return rv, nil
}
