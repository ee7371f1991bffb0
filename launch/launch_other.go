//go:build !windows

package launch

import (
	"context"

	"go.uber.org/zap"
)

// StartProgramme has no tray outside Windows: it serves the viewer, opens it
// in the browser and blocks until ctx is done.
func StartProgramme(ctx context.Context, app *App) {
	app.Logger.Info("tray icon not supported on this platform, using the web viewer")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := app.Server(ctx).Serve(ctx, app.Config.ListenAddr); err != nil {
			app.Logger.Error("viewer stopped", zap.Error(err))
			cancel()
		}
	}()
	if err := Open("http://" + app.Config.ListenAddr); err != nil {
		app.Logger.Warn("cannot open browser", zap.Error(err))
	}

	<-ctx.Done()
	if _, err := app.StopTracking(); err != nil {
		app.Logger.Error("tracking ended with an error", zap.Error(err))
	}
	<-done
}
