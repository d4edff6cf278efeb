// Copyright (c) 2026 Armature Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package armature provides an inversion of control container paired
// with a lifecycle orchestrator for composing long running
// applications.
//
// The package is built around three core abstractions:
//
//   - container.Container: a string keyed binding registry with scoped,
//     dependency aware resolution
//   - Application: a container that discovers lifecycle participants
//     among its bindings and drives them through ordered start and stop
//     transitions
//   - Server and LifeCycleObserver: the contracts lifecycle
//     participants implement
//
// # Bindings
//
// Values, constructors and factories are bound under string keys and
// resolved on demand:
//
//	app := armature.New()
//	_, err := app.Bind("datasources.primary").
//	    InScope(container.ScopeSingleton).
//	    ToProvider(openPrimary)
//
// Dependencies are declared by key, and the container resolves them,
// detecting cycles and memoizing singletons across concurrent callers.
//
// # Lifecycle
//
// Participation is a matter of tagging, not naming. Servers and
// observers registered through the Application carry the right tags
// already:
//
//	err := app.Server("api", newAPIServer)
//	err = app.LifeCycleObserver("migrations", newMigrations,
//	    armature.InGroup("datasources"),
//	)
//
// Starting the application resolves every tagged binding, starts the
// ordered groups first and the rest in parallel, and rolls back on
// failure. Stopping reverses the same set.
//
// # Running
//
// Run ties a lifecycle to process signals:
//
//	if err := armature.Run(context.Background(), app, os.Interrupt); err != nil {
//	    log.Fatal(err)
//	}
package armature
