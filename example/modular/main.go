// Copyright (c) 2026 Armature Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/armaturelabs/armature"
	"github.com/armaturelabs/armature/config"
	"github.com/armaturelabs/armature/httpserver"
)

//go:embed config.yaml
var configFS embed.FS

type httpConfig struct {
	Addr string `config:"addr"`
}

type datastoreConfig struct {
	DSN string `config:"dsn"`
}

type datastore struct {
	dsn string
	log *slog.Logger
}

func (d *datastore) Start(ctx context.Context) error {
	d.log.InfoContext(ctx, "connecting to datastore", slog.String("dsn", d.dsn))
	return nil
}

func (d *datastore) Stop(ctx context.Context) error {
	d.log.InfoContext(ctx, "closing datastore")
	return nil
}

func main() {
	logHandler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{})
	log := slog.New(logHandler)

	m, err := config.Read(
		config.FromYaml(
			config.RenderTextTemplate(
				config.NewFileReader(configFS, "config.yaml"),
				config.TemplateFunc("env", os.Getenv),
				config.TemplateFunc("default", func(def, s string) string {
					if s == "" {
						return def
					}
					return s
				}),
			),
		),
	)
	if err != nil {
		log.Error("failed to read config", slog.Any("error", err))
		os.Exit(1)
	}

	app := armature.New(
		armature.Name("modular"),
		armature.LogHandler(logHandler),
		armature.GroupOrder("datasources", "servers"),
	)

	// Both slots share one manager, each consumer decodes its own view.
	if _, err := app.Configure("datastore").ToValue(m); err != nil {
		log.Error("failed to bind config", slog.Any("error", err))
		os.Exit(1)
	}
	if _, err := app.Configure("http").ToValue(m); err != nil {
		log.Error("failed to bind config", slog.Any("error", err))
		os.Exit(1)
	}

	err = app.LifeCycleObserver("datastore", func(app *armature.Application) (armature.LifeCycleObserver, error) {
		var cfg struct {
			Datastore datastoreConfig `config:"datastore"`
		}
		if err := app.UnmarshalConfig(context.Background(), "datastore", &cfg); err != nil {
			return nil, err
		}
		return &datastore{dsn: cfg.Datastore.DSN, log: log}, nil
	}, armature.InGroup("datasources"))
	if err != nil {
		log.Error("failed to register observer", slog.Any("error", err))
		os.Exit(1)
	}

	err = app.Server("api", func(app *armature.Application) (armature.Server, error) {
		var cfg struct {
			HTTP httpConfig `config:"http"`
		}
		if err := app.UnmarshalConfig(context.Background(), "http", &cfg); err != nil {
			return nil, err
		}
		srv := httpserver.New(
			httpserver.Addr(cfg.HTTP.Addr),
			httpserver.LogHandler(logHandler),
			httpserver.HandleFunc("/greet", func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, "hello")
			}),
		)
		return srv, nil
	}, armature.InGroup("servers"))
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
