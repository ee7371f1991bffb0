package launch

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"windowtracker/config"
	"windowtracker/manager"
	"windowtracker/probe"
	"windowtracker/query"
	"windowtracker/report"
	"windowtracker/sample"
	"windowtracker/status"
	"windowtracker/tracker"
	"windowtracker/web"
)

// App holds every component of a running tracker, wired once at startup.
type App struct {
	Config  *config.Config
	Logger  *zap.Logger
	DB      *query.Database
	Feed    *status.Feed
	History *status.History
	Icons   *manager.IconIndex
	Reports *report.Generator
	Sampler *sample.Generator
	// Tracker is nil when no foreground probe works on this machine;
	// ProbeErr then says why.
	Tracker  *tracker.Tracker
	ProbeErr error

	stopHistory func()
}

type AppOption func(*appOptions)

type appOptions struct {
	prober  probe.Prober
	noProbe bool
}

// WithProber replaces the platform prober.
func WithProber(p probe.Prober) AppOption {
	return func(o *appOptions) { o.prober = p }
}

// WithoutProbe skips the tracker, for commands that only read or fill the log.
func WithoutProbe() AppOption {
	return func(o *appOptions) { o.noProbe = true }
}

func NewApp(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts ...AppOption) (*App, error) {
	var o appOptions
	for _, opt := range opts {
		opt(&o)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := query.Open(cfg.DBDriver, cfg.DBPath())
	if err != nil {
		return nil, err
	}
	if err := db.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	icons, err := manager.NewIconIndex(ctx, db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("NewApp: %w", err)
	}

	app := &App{
		Config:  cfg,
		Logger:  logger,
		DB:      db,
		Feed:    status.NewFeed(),
		History: status.NewHistory(0),
		Icons:   icons,
	}
	app.stopHistory = app.History.Follow(app.Feed)
	app.Reports = report.NewGenerator(db, app.Feed, logger)
	app.Sampler = sample.NewGenerator(db, app.Feed, logger)

	if o.noProbe {
		return app.ready(ctx), nil
	}
	prober := o.prober
	if prober == nil {
		prober, err = probe.New()
	}
	if err != nil {
		app.ProbeErr = err
		logger.Warn("foreground probe unavailable, tracking disabled", zap.Error(err))
	} else {
		app.Tracker = tracker.New(prober, db, icons, app.Reports, app.Feed, tracker.Options{
			IntervalMs:     cfg.PollIntervalMs,
			ReportPath:     cfg.ReportPath(),
			FinalizeOnStop: cfg.FinalizeOnStop,
			Logger:         logger,
		})
	}

	return app.ready(ctx), nil
}

func (a *App) ready(ctx context.Context) *App {
	rows, err := a.DB.CountActivities(ctx)
	if err != nil {
		a.Logger.Warn("cannot count log lines", zap.Error(err))
	}
	a.Logger.Info("database ready",
		zap.String("path", a.DB.Path()),
		zap.Int("rows", rows),
		zap.String("driver", a.Config.DBDriver),
		zap.Int("icons", a.Icons.Len()),
		zap.Bool("tracking", a.Tracker != nil),
	)
	return a
}

// Server returns the web viewer. Sessions started from it live as long as ctx.
func (a *App) Server(ctx context.Context) *web.Server {
	var ctl web.Controller
	if a.Tracker != nil {
		ctl = a.Tracker
	}
	return web.NewServer(a.DB, ctl, a.Sampler, a.History, web.Options{
		ReportPath:     a.Config.ReportPath(),
		SessionContext: ctx,
		Logger:         a.Logger,
	})
}

// StopTracking stops a running session and waits for its report.
func (a *App) StopTracking() (tracker.Result, error) {
	if a.Tracker == nil {
		return tracker.Result{}, nil
	}
	if err := a.Tracker.Stop(); err != nil {
		if errors.Is(err, tracker.ErrNotRunning) {
			return tracker.Result{}, nil
		}
		return tracker.Result{}, err
	}
	return a.Tracker.Wait()
}

// Close stops tracking if needed and releases the database.
func (a *App) Close() error {
	if _, err := a.StopTracking(); err != nil {
		a.Logger.Warn("tracking ended with an error", zap.Error(err))
	}
	a.stopHistory()
	a.Feed.Close()
	return a.DB.Close()
}
