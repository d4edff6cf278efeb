// Copyright (c) 2026 Armature Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"context"
	"expvar"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/armaturelabs/armature"
	"github.com/armaturelabs/armature/container"
	"github.com/armaturelabs/armature/httpserver"
)

// opsComponent bundles the operational endpoints and startup work that
// every service in a fleet shares. Mounting it contributes an admin
// server, a cache warming observer and a version binding.
type opsComponent struct {
	log      *slog.Logger
	bindings []*container.Binding
}

func newOpsComponent(logHandler slog.Handler) armature.ComponentConstructor {
	return func(*armature.Application) (armature.Component, error) {
		version, err := container.NewBinding("ops.version").ToValue("v1.2.3")
		if err != nil {
			return nil, err
		}
		return &opsComponent{
			log:      slog.New(logHandler),
			bindings: []*container.Binding{version},
		}, nil
	}
}

func (c *opsComponent) Bindings() []*container.Binding {
	return c.bindings
}

func (c *opsComponent) Servers() map[string]armature.ServerConstructor {
	return map[string]armature.ServerConstructor{
		"ops": func(*armature.Application) (armature.Server, error) {
			srv := httpserver.New(
				httpserver.Addr(":9090"),
				httpserver.LogHandler(c.log.Handler()),
				httpserver.Handle("/debug/vars", expvar.Handler()),
			)
			return srv, nil
		},
	}
}

func (c *opsComponent) LifeCycleObservers() map[string]armature.ObserverConstructor {
	return map[string]armature.ObserverConstructor{
		"cache-warm": func(*armature.Application) (armature.LifeCycleObserver, error) {
			return armature.ObserverFuncs{
				OnStart: func(ctx context.Context) error {
					c.log.InfoContext(ctx, "warming caches")
					return nil
				},
			}, nil
		},
	}
}

func main() {
	logHandler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{})
	log := slog.New(logHandler)

	app := armature.New(
		armature.Name("component"),
		armature.LogHandler(logHandler),
	)

	err := app.Component("ops", newOpsComponent(logHandler))
	if err != nil {
		log.Error("failed to mount component", slog.Any("error", err))
		os.Exit(1)
	}

	err = app.Server("api", func(app *armature.Application) (armature.Server, error) {
		version, err := container.ResolveSync[string](app.Container, "ops.version")
		if err != nil {
			return nil, err
		}
		srv := httpserver.New(
			httpserver.Addr(":8080"),
			httpserver.LogHandler(logHandler),
			httpserver.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, version)
			}),
		)
		return srv, nil
	})
	if err != nil {
		log.Error("failed to register server", slog.Any("error", err))
		os.Exit(1)
	}

	err = armature.Run(context.Background(), app, os.Interrupt)
	if err != nil {
		log.Error("application failed", slog.Any("error", err))
		os.Exit(1)
	}
}
