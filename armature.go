// Copyright (c) 2026 Armature Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package armature

import (
	"context"
	"os"
	"os/signal"
)

// Run starts app and blocks until ctx is done or, when signals are
// given, until the process receives one of them. The application is
// then stopped. Run returns the start failure, the stop failure, or
// nil.
func Run(ctx context.Context, app *Application, signals ...os.Signal) error {
	if len(signals) > 0 {
		var stop context.CancelFunc
		ctx, stop = signal.NotifyContext(ctx, signals...)
		defer stop()
	}

	if err := app.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()

	// Stopping must proceed even though ctx is already done.
	return app.Stop(context.WithoutCancel(ctx))
}
