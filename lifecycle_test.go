// Copyright (c) 2026 Armature Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package armature

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/armaturelabs/armature/container"
)

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) record(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recorder) log() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

type testObserver struct {
	name     string
	rec      *recorder
	startErr error
	stopErr  error
}

func (o *testObserver) Start(ctx context.Context) error {
	o.rec.record("start " + o.name)
	return o.startErr
}

func (o *testObserver) Stop(ctx context.Context) error {
	o.rec.record("stop " + o.name)
	return o.stopErr
}

type initObserver struct {
	testObserver
	inits   atomic.Int32
	initErr error
}

func (o *initObserver) Init(ctx context.Context) error {
	o.inits.Add(1)
	o.rec.record("init " + o.name)
	return o.initErr
}

func fixed(o LifeCycleObserver) ObserverConstructor {
	return func(*Application) (LifeCycleObserver, error) {
		return o, nil
	}
}

func TestApplication_Start(t *testing.T) {
	t.Run("will discover participants by tag alone", func(t *testing.T) {
		rec := new(recorder)
		app := New()

		// A lifecycle looking key without the tag stays out.
		bystander := &testObserver{name: "bystander", rec: rec}
		_, err := app.Bind("servers.bystander").ToValue(bystander)
		require.NoError(t, err)

		// A tagged binding under an arbitrary key joins.
		odd := &testObserver{name: "odd", rec: rec}
		_, err = app.Bind("some.random.key").Tag(TagLifeCycleObserver).ToValue(odd)
		require.NoError(t, err)

		require.NoError(t, app.Start(context.Background()))

		assert.Equal(t, []string{"start odd"}, rec.log())
		assert.Equal(t, StatusStarted, app.Status())
	})

	t.Run("will start groups before the unordered batch", func(t *testing.T) {
		rec := new(recorder)
		app := New(GroupOrder("g2"))

		add := func(name, group string) {
			var opts []ObserverOption
			if group != "" {
				opts = append(opts, InGroup(group))
			}
			o := &testObserver{name: name, rec: rec}
			require.NoError(t, app.LifeCycleObserver(name, fixed(o), opts...))
		}

		add("a", "g1")
		add("b", "g2")
		add("c", "g1")
		add("d", "")
		add("e", "g2")

		require.NoError(t, app.Start(context.Background()))

		// Pinned g2 leads, g1 follows by first registration, the
		// batch runs last. Members keep registration order.
		assert.Equal(t, []string{"start b", "start e", "start a", "start c", "start d"}, rec.log())

		require.NoError(t, app.Stop(context.Background()))

		assert.Equal(t, []string{"stop d", "stop c", "stop a", "stop e", "stop b"}, rec.log()[5:])
	})

	t.Run("will run the unordered batch in parallel", func(t *testing.T) {
		app := New()

		var entered atomic.Int32
		release := make(chan struct{})

		peer := func(ctx context.Context) error {
			if entered.Add(1) == 2 {
				close(release)
			}
			select {
			case <-release:
				return nil
			case <-time.After(2 * time.Second):
				return errors.New("peer never started")
			}
		}

		require.NoError(t, app.LifeCycleObserver("p1", fixed(ObserverFuncs{OnStart: peer})))
		require.NoError(t, app.LifeCycleObserver("p2", fixed(ObserverFuncs{OnStart: peer})))

		assert.Nil(t, app.Start(context.Background()))
	})

	t.Run("will roll back started participants on failure", func(t *testing.T) {
		t.Run("in reverse order", func(t *testing.T) {
			rec := new(recorder)
			app := New()

			bindErr := errors.New("bind: address already in use")

			a := &testObserver{name: "a", rec: rec}
			b := &testObserver{name: "b", rec: rec}
			c := &testObserver{name: "c", rec: rec, startErr: bindErr}

			require.NoError(t, app.LifeCycleObserver("a", fixed(a), InGroup("g1")))
			require.NoError(t, app.LifeCycleObserver("b", fixed(b), InGroup("g2")))
			require.NoError(t, app.LifeCycleObserver("c", fixed(c), InGroup("g3")))

			err := app.Start(context.Background())

			var serr StartError
			if !assert.ErrorAs(t, err, &serr) {
				return
			}
			assert.Equal(t, ObserverKey("c"), serr.Participant.Key)
			assert.Equal(t, "start", serr.Participant.Op)
			assert.ErrorIs(t, err, bindErr)
			assert.Nil(t, serr.Rollback)

			assert.Equal(t, []string{"start a", "start b", "start c", "stop b", "stop a"}, rec.log())
			assert.Equal(t, StatusStopped, app.Status())
		})

		t.Run("collecting rollback failures without masking the cause", func(t *testing.T) {
			rec := new(recorder)
			app := New()

			bindErr := errors.New("bind: address already in use")
			flushErr := errors.New("flush failed")

			a := &testObserver{name: "a", rec: rec, stopErr: flushErr}
			b := &testObserver{name: "b", rec: rec, startErr: bindErr}

			require.NoError(t, app.LifeCycleObserver("a", fixed(a), InGroup("g1")))
			require.NoError(t, app.LifeCycleObserver("b", fixed(b), InGroup("g2")))

			err := app.Start(context.Background())

			var serr StartError
			if !assert.ErrorAs(t, err, &serr) {
				return
			}
			assert.Equal(t, ObserverKey("b"), serr.Participant.Key)
			assert.ErrorIs(t, err, bindErr)

			var perr ParticipantError
			if !assert.ErrorAs(t, serr.Rollback, &perr) {
				return
			}
			assert.Equal(t, ObserverKey("a"), perr.Key)
			assert.Equal(t, "stop", perr.Op)
			assert.ErrorIs(t, perr, flushErr)
		})

		t.Run("when the failure comes from the parallel batch", func(t *testing.T) {
			rec := new(recorder)
			app := New()

			bindErr := errors.New("bind: address already in use")

			a := &testObserver{name: "a", rec: rec}
			d := &testObserver{name: "d", rec: rec, startErr: bindErr}

			require.NoError(t, app.LifeCycleObserver("a", fixed(a), InGroup("g1")))
			require.NoError(t, app.LifeCycleObserver("d", fixed(d)))

			err := app.Start(context.Background())

			var serr StartError
			if !assert.ErrorAs(t, err, &serr) {
				return
			}
			assert.Equal(t, ObserverKey("d"), serr.Participant.Key)
			assert.Contains(t, rec.log(), "stop a")
			assert.Equal(t, StatusStopped, app.Status())
		})
	})

	t.Run("will recover a panicking hook", func(t *testing.T) {
		app := New()

		require.NoError(t, app.LifeCycleObserver("boom", fixed(ObserverFuncs{
			OnStart: func(context.Context) error {
				panic("kaboom")
			},
		})))

		err := app.Start(context.Background())

		var serr StartError
		if !assert.ErrorAs(t, err, &serr) {
			return
		}
		assert.Equal(t, ObserverKey("boom"), serr.Participant.Key)

		var perr PanicError
		if !assert.ErrorAs(t, err, &perr) {
			return
		}
		assert.Equal(t, "kaboom", perr.Value)
		assert.Equal(t, StatusStopped, app.Status())
	})

	t.Run("will initialize participants before their first start", func(t *testing.T) {
		t.Run("running init at most once across cycles", func(t *testing.T) {
			rec := new(recorder)
			app := New()

			o := &initObserver{testObserver: testObserver{name: "a", rec: rec}}

			require.NoError(t, app.LifeCycleObserver("a", fixed(o)))

			ctx := context.Background()
			require.NoError(t, app.Start(ctx))
			require.NoError(t, app.Stop(ctx))
			require.NoError(t, app.Start(ctx))

			assert.EqualValues(t, 1, o.inits.Load())
			assert.Equal(t, []string{"init a", "start a", "stop a", "start a"}, rec.log())
		})

		t.Run("aborting the start when init fails", func(t *testing.T) {
			rec := new(recorder)
			app := New()

			initErr := errors.New("migration failed")

			o := &initObserver{
				testObserver: testObserver{name: "a", rec: rec},
				initErr:      initErr,
			}

			require.NoError(t, app.LifeCycleObserver("a", fixed(o)))

			err := app.Start(context.Background())

			var serr StartError
			if !assert.ErrorAs(t, err, &serr) {
				return
			}
			assert.Equal(t, "init", serr.Participant.Op)
			assert.ErrorIs(t, err, initErr)

			assert.Equal(t, []string{"init a"}, rec.log())
			assert.Equal(t, StatusStopped, app.Status())
		})
	})

	t.Run("will construct singleton participants once across cycles", func(t *testing.T) {
		rec := new(recorder)
		app := New()

		var built atomic.Int32

		require.NoError(t, app.LifeCycleObserver("a", func(*Application) (LifeCycleObserver, error) {
			built.Add(1)
			return &testObserver{name: "a", rec: rec}, nil
		}))

		ctx := context.Background()
		require.NoError(t, app.Start(ctx))
		require.NoError(t, app.Stop(ctx))
		require.NoError(t, app.Start(ctx))

		assert.EqualValues(t, 1, built.Load())
		assert.Equal(t, []string{"start a", "stop a", "start a"}, rec.log())
	})

	t.Run("will surface participant resolution failures", func(t *testing.T) {
		app := New()

		ctorErr := errors.New("no database url")

		require.NoError(t, app.LifeCycleObserver("a", func(*Application) (LifeCycleObserver, error) {
			return nil, ctorErr
		}))

		err := app.Start(context.Background())
		assert.ErrorIs(t, err, ctorErr)
		assert.Equal(t, StatusStopped, app.Status())
	})

	t.Run("will seal registrations while transitioning", func(t *testing.T) {
		rec := new(recorder)
		app := New()

		var bindErr, compErr error

		require.NoError(t, app.LifeCycleObserver("probe", fixed(ObserverFuncs{
			OnStart: func(context.Context) error {
				_, bindErr = app.Bind("late.binding").ToValue(1)
				compErr = app.Component("late", func(*Application) (Component, error) {
					return struct{}{}, nil
				})
				rec.record("probe ran")
				return nil
			},
		})))

		require.NoError(t, app.Start(context.Background()))
		require.Equal(t, []string{"probe ran"}, rec.log())

		var serr container.SealedError
		if assert.ErrorAs(t, bindErr, &serr) {
			assert.Equal(t, "late.binding", serr.Key)
		}
		assert.ErrorAs(t, compErr, &serr)

		// Between cycles registration opens up again.
		_, err := app.Bind("late.binding").ToValue(1)
		assert.Nil(t, err)
	})
}

func TestApplication_Stop(t *testing.T) {
	t.Run("will aggregate hook failures", func(t *testing.T) {
		t.Run("attempting every participant regardless", func(t *testing.T) {
			rec := new(recorder)
			app := New()

			closeErrA := errors.New("close failed: a")
			closeErrC := errors.New("close failed: c")

			a := &testObserver{name: "a", rec: rec, stopErr: closeErrA}
			b := &testObserver{name: "b", rec: rec}
			c := &testObserver{name: "c", rec: rec, stopErr: closeErrC}

			require.NoError(t, app.LifeCycleObserver("a", fixed(a), InGroup("g1")))
			require.NoError(t, app.LifeCycleObserver("b", fixed(b), InGroup("g2")))
			require.NoError(t, app.LifeCycleObserver("c", fixed(c), InGroup("g3")))

			ctx := context.Background()
			require.NoError(t, app.Start(ctx))

			err := app.Stop(ctx)

			var sperr StopError
			if !assert.ErrorAs(t, err, &sperr) {
				return
			}
			assert.Len(t, sperr.Failures, 2)
			assert.ErrorIs(t, err, closeErrA)
			assert.ErrorIs(t, err, closeErrC)

			assert.Equal(t, []string{"stop c", "stop b", "stop a"}, rec.log()[3:])
			assert.Equal(t, StatusStopped, app.Status())
		})
	})

	t.Run("will pin the participant set per cycle", func(t *testing.T) {
		rec := new(recorder)
		app := New()

		a := &testObserver{name: "a", rec: rec}
		require.NoError(t, app.LifeCycleObserver("a", fixed(a), InGroup("g1")))

		ctx := context.Background()
		require.NoError(t, app.Start(ctx))

		// Registered while running: joins the next cycle, not this one.
		x := &testObserver{name: "x", rec: rec}
		require.NoError(t, app.LifeCycleObserver("x", fixed(x), InGroup("g2")))

		require.NoError(t, app.Stop(ctx))
		require.NoError(t, app.Start(ctx))

		assert.Equal(t, []string{"start a", "stop a", "start a", "start x"}, rec.log())
	})

	t.Run("will ignore a stop before any start", func(t *testing.T) {
		app := New()

		assert.Nil(t, app.Stop(context.Background()))
		assert.Equal(t, StatusCreated, app.Status())
	})
}

func TestApplication_Transitions(t *testing.T) {
	t.Run("will treat a repeated start as a no-op", func(t *testing.T) {
		rec := new(recorder)
		app := New()

		a := &testObserver{name: "a", rec: rec}
		require.NoError(t, app.LifeCycleObserver("a", fixed(a)))

		ctx := context.Background()
		require.NoError(t, app.Start(ctx))
		require.NoError(t, app.Start(ctx))

		assert.Equal(t, []string{"start a"}, rec.log())
	})

	t.Run("will join a start already in flight", func(t *testing.T) {
		rec := new(recorder)
		app := New()

		release := make(chan struct{})
		entered := make(chan struct{})
		var once sync.Once

		require.NoError(t, app.LifeCycleObserver("slow", fixed(ObserverFuncs{
			OnStart: func(context.Context) error {
				once.Do(func() { close(entered) })
				<-release
				rec.record("started")
				return nil
			},
		})))

		errs := make(chan error, 2)
		go func() { errs <- app.Start(context.Background()) }()
		<-entered
		go func() { errs <- app.Start(context.Background()) }()

		close(release)

		require.NoError(t, <-errs)
		require.NoError(t, <-errs)
		assert.Equal(t, []string{"started"}, rec.log())
	})

	t.Run("will reject a stop while starting", func(t *testing.T) {
		app := New()

		release := make(chan struct{})
		entered := make(chan struct{})

		require.NoError(t, app.LifeCycleObserver("slow", fixed(ObserverFuncs{
			OnStart: func(context.Context) error {
				close(entered)
				<-release
				return nil
			},
		})))

		started := make(chan error, 1)
		go func() { started <- app.Start(context.Background()) }()
		<-entered

		err := app.Stop(context.Background())

		var lerr LifecycleStateError
		if assert.ErrorAs(t, err, &lerr) {
			assert.Equal(t, "stop", lerr.Op)
			assert.Equal(t, StatusStarting, lerr.Status)
		}

		close(release)
		require.NoError(t, <-started)
	})

	t.Run("will reject a start while stopping", func(t *testing.T) {
		app := New()

		release := make(chan struct{})
		entered := make(chan struct{})

		require.NoError(t, app.LifeCycleObserver("slow", fixed(ObserverFuncs{
			OnStop: func(context.Context) error {
				close(entered)
				<-release
				return nil
			},
		})))

		ctx := context.Background()
		require.NoError(t, app.Start(ctx))

		stopped := make(chan error, 1)
		go func() { stopped <- app.Stop(ctx) }()
		<-entered

		err := app.Start(ctx)

		var lerr LifecycleStateError
		if assert.ErrorAs(t, err, &lerr) {
			assert.Equal(t, "start", lerr.Op)
			assert.Equal(t, StatusStopping, lerr.Status)
		}

		close(release)
		require.NoError(t, <-stopped)
	})

	t.Run("will join a stop already in flight", func(t *testing.T) {
		rec := new(recorder)
		app := New()

		release := make(chan struct{})
		entered := make(chan struct{})

		require.NoError(t, app.LifeCycleObserver("slow", fixed(ObserverFuncs{
			OnStop: func(context.Context) error {
				close(entered)
				<-release
				rec.record("stopped")
				return nil
			},
		})))

		ctx := context.Background()
		require.NoError(t, app.Start(ctx))

		errs := make(chan error, 2)
		go func() { errs <- app.Stop(ctx) }()
		<-entered
		go func() { errs <- app.Stop(ctx) }()

		close(release)

		require.NoError(t, <-errs)
		require.NoError(t, <-errs)
		assert.Equal(t, []string{"stopped"}, rec.log())
	})
}

type specObserver struct {
	testObserver
}

func (*specObserver) BindingSpec() container.Spec {
	return container.Spec{
		Key:   ObserverKey("declared"),
		Scope: container.ScopeSingleton,
		Tags: map[string]string{
			TagLifeCycleObserver:      "",
			TagLifeCycleObserverGroup: "g1",
		},
	}
}

func TestApplication_DeclarativeRegistration(t *testing.T) {
	t.Run("will behave like the fluent registration", func(t *testing.T) {
		rec := new(recorder)
		app := New()

		declared := &specObserver{testObserver: testObserver{name: "declared", rec: rec}}

		b, err := container.NewBinding("").
			ApplySpecOf(declared).
			ToConstructor(func(*Application) (LifeCycleObserver, error) {
				return declared, nil
			}, KeyApplication)
		require.NoError(t, err)
		require.NoError(t, app.Add(b))

		fluent := &testObserver{name: "fluent", rec: rec}
		require.NoError(t, app.LifeCycleObserver("fluent", fixed(fluent), InGroup("g1")))

		// Metadata funnels into the same binding shape either way.
		fb, ok := app.Binding(ObserverKey("fluent"))
		require.True(t, ok)
		assert.Equal(t, fb.Scope(), b.Scope())
		assert.Equal(t, fb.Tags(), b.Tags())

		found := app.FindByTagValue(TagLifeCycleObserverGroup, "g1")
		require.Len(t, found, 2)
		assert.Equal(t, ObserverKey("declared"), found[0].Key())
		assert.Equal(t, ObserverKey("fluent"), found[1].Key())

		ctx := context.Background()
		require.NoError(t, app.Start(ctx))
		require.NoError(t, app.Stop(ctx))
		assert.Equal(t, []string{
			"start declared", "start fluent",
			"stop fluent", "stop declared",
		}, rec.log())
	})
}

func TestApplication_Tracing(t *testing.T) {
	t.Run("will trace transitions and hooks", func(t *testing.T) {
		sr := tracetest.NewSpanRecorder()
		tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

		rec := new(recorder)
		app := New(TracerProvider(tp))

		a := &testObserver{name: "a", rec: rec}
		require.NoError(t, app.LifeCycleObserver("a", fixed(a), InGroup("g1")))

		ctx := context.Background()
		require.NoError(t, app.Start(ctx))
		require.NoError(t, app.Stop(ctx))

		var names []string
		for _, span := range sr.Ended() {
			names = append(names, span.Name())
		}

		assert.Contains(t, names, "Application.Start")
		assert.Contains(t, names, "start "+ObserverKey("a"))
		assert.Contains(t, names, "Application.Stop")
		assert.Contains(t, names, "stop "+ObserverKey("a"))
	})
}
