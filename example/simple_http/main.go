// Copyright (c) 2026 Armature Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/armaturelabs/armature"
	"github.com/armaturelabs/armature/httpserver"
)

func main() {
	logHandler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{AddSource: true})
	log := slog.New(logHandler)

	app := armature.New(
		armature.Name("simple-http"),
		armature.LogHandler(logHandler),
	)

	err := app.Server("api", func(*armature.Application) (armature.Server, error) {
		srv := httpserver.New(
			httpserver.Addr(":8080"),
			httpserver.LogHandler(logHandler),
			httpserver.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, "Hello, world")
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
