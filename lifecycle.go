// Copyright (c) 2026 Armature Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package armature

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/armaturelabs/armature/internal/slogfield"
	"github.com/armaturelabs/armature/internal/try"
)

// Status is the lifecycle state of an [Application].
type Status string

const (
	// StatusCreated is the state of a [New] application that has never
	// been started.
	StatusCreated Status = "created"

	// StatusStarting is the state while a start transition is in
	// flight.
	StatusStarting Status = "starting"

	// StatusStarted is the state after a successful start.
	StatusStarted Status = "started"

	// StatusStopping is the state while a stop transition is in
	// flight.
	StatusStopping Status = "stopping"

	// StatusStopped is the state after a stop, and after a failed
	// start.
	StatusStopped Status = "stopped"
)

// String implements the [fmt.Stringer] interface.
func (s Status) String() string {
	return string(s)
}

// participant is one member of the current lifecycle cycle.
type participant struct {
	key   string
	group string
	value any
}

// transition lets late callers join an in-flight start or stop and
// observe its outcome.
type transition struct {
	done chan struct{}
	err  error
}

func (t *transition) wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start transitions the application to [StatusStarted]. Participants
// are discovered by [TagLifeCycleObserver], resolved, initialized where
// they implement [Initializer], and started: grouped participants group
// by group in registration order, then the unordered batch in parallel.
//
// On the first failure the remaining participants are not started, the
// already started ones are rolled back in reverse, and a [StartError]
// is returned with the application back in [StatusStopped].
//
// Calling Start while a start is in flight joins it and returns its
// outcome. Calling it on a started application is a no-op. Calling it
// while the application is stopping fails with a
// [LifecycleStateError].
//
// The discovered participant set is pinned for the matching [Application.Stop]:
// registrations made while the application is running join the next
// cycle, not the current one.
func (app *Application) Start(ctx context.Context) error {
	app.mu.Lock()
	switch app.status {
	case StatusStarted:
		app.mu.Unlock()
		return nil
	case StatusStarting:
		t := app.transition
		app.mu.Unlock()
		return t.wait(ctx)
	case StatusStopping:
		app.mu.Unlock()
		return LifecycleStateError{Op: "start", Status: StatusStopping}
	}

	t := &transition{done: make(chan struct{})}
	app.transition = t
	app.status = StatusStarting
	app.Container.Seal()
	app.mu.Unlock()

	parts, batch, err := app.runStart(ctx)

	app.mu.Lock()
	app.Container.Unseal()
	app.transition = nil
	if err != nil {
		app.status = StatusStopped
	} else {
		app.status = StatusStarted
		app.cycle, app.batch = parts, batch
	}
	app.mu.Unlock()

	t.err = err
	close(t.done)
	return err
}

// Stop transitions the application to [StatusStopped], stopping the
// participant set pinned by the matching [Application.Start] in reverse
// order: first the unordered batch in parallel, then the groups in
// reverse. Every participant is attempted. Failures are aggregated
// into a [StopError] and the application reaches [StatusStopped]
// regardless.
//
// Calling Stop while a stop is in flight joins it and returns its
// outcome. Calling it on a created or stopped application is a no-op.
// Calling it while the application is starting fails with a
// [LifecycleStateError].
func (app *Application) Stop(ctx context.Context) error {
	app.mu.Lock()
	switch app.status {
	case StatusCreated, StatusStopped:
		app.mu.Unlock()
		return nil
	case StatusStopping:
		t := app.transition
		app.mu.Unlock()
		return t.wait(ctx)
	case StatusStarting:
		app.mu.Unlock()
		return LifecycleStateError{Op: "stop", Status: StatusStarting}
	}

	t := &transition{done: make(chan struct{})}
	app.transition = t
	app.status = StatusStopping
	app.Container.Seal()
	parts, batch := app.cycle, app.batch
	app.mu.Unlock()

	err := app.runStop(ctx, parts, batch)

	app.mu.Lock()
	app.Container.Unseal()
	app.transition = nil
	app.status = StatusStopped
	app.cycle, app.batch = nil, 0
	app.mu.Unlock()

	t.err = err
	close(t.done)
	return err
}

func (app *Application) runStart(ctx context.Context) (parts []*participant, batch int, err error) {
	ctx, span := app.tracer().Start(ctx, "Application.Start")
	defer span.End()
	defer func() {
		if err != nil {
			span.RecordError(err)
		}
	}()

	parts, batch, err = app.discover(ctx)
	if err != nil {
		return nil, 0, err
	}
	if err := app.initialize(ctx, parts); err != nil {
		return nil, 0, err
	}

	app.log.InfoContext(ctx, "starting application",
		slogfield.String("name", app.name),
		slogfield.Int("participants", len(parts)),
	)

	var started []*participant

	for _, p := range parts[:batch] {
		if herr := app.startOne(ctx, p); herr != nil {
			cause := ParticipantError{Key: p.key, Op: "start", Cause: herr}
			return nil, 0, app.abortStart(ctx, cause, started)
		}
		started = append(started, p)
	}

	var startedMu sync.Mutex

	g := new(errgroup.Group)
	for _, p := range parts[batch:] {
		p := p
		g.Go(func() error {
			if herr := app.startOne(ctx, p); herr != nil {
				return ParticipantError{Key: p.key, Op: "start", Cause: herr}
			}
			startedMu.Lock()
			started = append(started, p)
			startedMu.Unlock()
			return nil
		})
	}
	if gerr := g.Wait(); gerr != nil {
		var cause ParticipantError
		if !errors.As(gerr, &cause) {
			cause = ParticipantError{Op: "start", Cause: gerr}
		}
		return nil, 0, app.abortStart(ctx, cause, started)
	}

	app.log.InfoContext(ctx, "application started", slogfield.String("name", app.name))
	return parts, batch, nil
}

func (app *Application) runStop(ctx context.Context, parts []*participant, batch int) (err error) {
	ctx, span := app.tracer().Start(ctx, "Application.Stop")
	defer span.End()
	defer func() {
		if err != nil {
			span.RecordError(err)
		}
	}()

	app.log.InfoContext(ctx, "stopping application",
		slogfield.String("name", app.name),
		slogfield.Int("participants", len(parts)),
	)

	var mu sync.Mutex
	var failures []error

	record := func(p *participant, herr error) {
		mu.Lock()
		failures = append(failures, ParticipantError{Key: p.key, Op: "stop", Cause: herr})
		mu.Unlock()
	}

	// The unordered batch started last, so it stops first.
	var wg sync.WaitGroup
	for _, p := range parts[batch:] {
		p := p
		wg.Add(1)
		go func() {
			defer wg.Done()
			if herr := app.stopOne(ctx, p); herr != nil {
				record(p, herr)
			}
		}()
	}
	wg.Wait()

	for i := batch - 1; i >= 0; i-- {
		if herr := app.stopOne(ctx, parts[i]); herr != nil {
			record(parts[i], herr)
		}
	}

	if len(failures) > 0 {
		return StopError{Failures: failures}
	}

	app.log.InfoContext(ctx, "application stopped", slogfield.String("name", app.name))
	return nil
}

// discover resolves the participant set for this cycle: every binding
// tagged [TagLifeCycleObserver], in registration order, plus directly
// tracked components.
func (app *Application) discover(ctx context.Context) ([]*participant, int, error) {
	var parts []*participant
	for _, b := range app.Container.FindByTag(TagLifeCycleObserver) {
		v, err := app.Container.Get(ctx, b.Key())
		if err != nil {
			return nil, 0, err
		}
		group, _ := b.Tag(TagLifeCycleObserverGroup)
		parts = append(parts, &participant{key: b.Key(), group: group, value: v})
	}

	app.mu.Lock()
	parts = append(parts, app.tracked...)
	app.mu.Unlock()

	ordered, batch := order(parts, app.groupOrder)
	return ordered, batch, nil
}

// order arranges participants into the grouped prefix followed by the
// unordered batch, returning the batch offset. Pinned groups lead,
// remaining groups follow in first registration order, members keep
// registration order within their group.
func order(parts []*participant, pinned []string) ([]*participant, int) {
	groups := make(map[string][]*participant)
	var names []string
	var batch []*participant

	for _, p := range parts {
		if p.group == "" {
			batch = append(batch, p)
			continue
		}
		if _, ok := groups[p.group]; !ok {
			names = append(names, p.group)
		}
		groups[p.group] = append(groups[p.group], p)
	}

	var ordered []*participant
	taken := make(map[string]struct{}, len(groups))
	take := func(group string) {
		if _, ok := taken[group]; ok {
			return
		}
		taken[group] = struct{}{}
		ordered = append(ordered, groups[group]...)
	}
	for _, group := range pinned {
		if _, ok := groups[group]; ok {
			take(group)
		}
	}
	for _, group := range names {
		take(group)
	}

	offset := len(ordered)
	return append(ordered, batch...), offset
}

// initialize runs the Init hook of participants not seen by an earlier
// start of this application.
func (app *Application) initialize(ctx context.Context, parts []*participant) error {
	for _, p := range parts {
		ini, ok := p.value.(Initializer)
		if !ok {
			continue
		}
		if _, done := app.inited[p.key]; done {
			continue
		}
		if err := app.hook(ctx, p, "init", ini.Init); err != nil {
			return StartError{Participant: ParticipantError{Key: p.key, Op: "init", Cause: err}}
		}
		app.inited[p.key] = struct{}{}
	}
	return nil
}

func (app *Application) abortStart(ctx context.Context, cause ParticipantError, started []*participant) error {
	app.log.ErrorContext(ctx, "start failed, rolling back",
		slogfield.BindingKey(cause.Key),
		slogfield.Error(cause.Cause),
	)
	return StartError{Participant: cause, Rollback: app.rollback(ctx, started)}
}

// rollback stops already started participants in reverse order. Every
// stop is attempted, failures are collected rather than rethrown.
func (app *Application) rollback(ctx context.Context, started []*participant) error {
	var errs []error
	for i := len(started) - 1; i >= 0; i-- {
		p := started[i]
		if err := app.stopOne(ctx, p); err != nil {
			errs = append(errs, ParticipantError{Key: p.key, Op: "stop", Cause: err})
		}
	}
	return errors.Join(errs...)
}

func (app *Application) startOne(ctx context.Context, p *participant) error {
	s, ok := p.value.(Starter)
	if !ok {
		return nil
	}
	return app.hook(ctx, p, "start", s.Start)
}

func (app *Application) stopOne(ctx context.Context, p *participant) error {
	s, ok := p.value.(Stopper)
	if !ok {
		return nil
	}
	return app.hook(ctx, p, "stop", s.Stop)
}

// hook runs a single lifecycle callback with tracing, logging and panic
// recovery.
func (app *Application) hook(ctx context.Context, p *participant, op string, fn func(context.Context) error) (err error) {
	ctx, span := app.tracer().Start(ctx, op+" "+p.key)
	defer span.End()
	defer func() {
		if err == nil {
			return
		}
		span.RecordError(err)
		app.log.ErrorContext(ctx, "lifecycle hook failed",
			slogfield.String("op", op),
			slogfield.BindingKey(p.key),
			slogfield.Error(err),
		)
	}()
	defer try.Recover(&err)

	app.log.DebugContext(ctx, "running lifecycle hook",
		slogfield.String("op", op),
		slogfield.BindingKey(p.key),
		slogfield.Group(p.group),
	)
	return fn(ctx)
}
