//go:build windows

package launch

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/getlantern/systray"
	"go.uber.org/zap"
)

// StartProgramme runs the tray shell until the user quits or ctx is done.
// It blocks, and must be called from the main goroutine.
func StartProgramme(ctx context.Context, app *App) {
	ctx, cancel := context.WithCancel(ctx)
	t := &tray{app: app, ctx: ctx, cancel: cancel}
	systray.Run(t.onReady, t.onExit)
}

type tray struct {
	app    *App
	ctx    context.Context
	cancel context.CancelFunc
	state  trayState
}

func (t *tray) onReady() {
	// Définir l'icône de l'application, à côté de l'exécutable
	if exe, err := os.Executable(); err == nil {
		if icon, err := os.ReadFile(filepath.Join(filepath.Dir(exe), "icon.ico")); err == nil {
			systray.SetIcon(icon)
		}
	}
	systray.SetTitle("Window Tracker")
	systray.SetTooltip("Window Tracker")

	t.state = newTrayState(t.app.Tracker != nil)
	if _, err := os.Stat(t.app.Config.ReportPath()); err == nil {
		t.state.report = t.app.Config.ReportPath()
	}

	mStart := systray.AddMenuItem("Start tracking", "Log every change of the focused window")
	mStop := systray.AddMenuItem("Stop tracking", "Stop and write the HTML report")
	systray.AddSeparator()
	mReport := systray.AddMenuItem("Show report", "Show the last HTML report in the file manager")
	mOpenWeb := systray.AddMenuItem("Open viewer", "Open http://"+t.app.Config.ListenAddr+" in the browser")
	systray.AddSeparator()
	mSample := systray.AddMenuItem("Add sample data", "Append three synthetic days to the log")
	mFlush := systray.AddMenuItem("Clear log", "Delete every logged line")
	systray.AddSeparator()
	mQuit := systray.AddMenuItem("Quit", "Stop tracking and quit")

	render := func() {
		setEnabled(mStart, t.state.canStart)
		setEnabled(mStop, t.state.canStop)
		setEnabled(mReport, t.state.report != "")
		setEnabled(mSample, !t.state.canStop)
		setEnabled(mFlush, !t.state.canStop)
		systray.SetTooltip(t.state.tooltip)
	}
	render()

	msgs, unsubscribe := t.app.Feed.Subscribe()
	server := t.app.Server(t.ctx)
	go func() {
		if err := server.Serve(t.ctx, t.app.Config.ListenAddr); err != nil {
			t.app.Logger.Error("viewer stopped", zap.Error(err))
		}
	}()

	go func() {
		defer unsubscribe()
		for {
			select {
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				t.state.apply(msg)
				render()
			case <-mStart.ClickedCh:
				if t.app.Tracker == nil {
					t.app.Logger.Warn("tracking unavailable", zap.Error(t.app.ProbeErr))
					continue
				}
				if err := t.app.Tracker.Start(t.ctx); err != nil {
					t.app.Logger.Warn("start refused", zap.Error(err))
				}
			case <-mStop.ClickedCh:
				if t.app.Tracker == nil {
					continue
				}
				if err := t.app.Tracker.Stop(); err != nil {
					t.app.Logger.Warn("stop refused", zap.Error(err))
				}
			case <-mReport.ClickedCh:
				if err := Reveal(t.state.report); err != nil {
					t.app.Logger.Warn("cannot show report", zap.String("path", t.state.report), zap.Error(err))
				}
			case <-mOpenWeb.ClickedCh:
				if err := Open("http://" + t.app.Config.ListenAddr); err != nil {
					t.app.Logger.Warn("cannot open browser", zap.Error(err))
				}
			case <-mSample.ClickedCh:
				go t.populate(true, false)
			case <-mFlush.ClickedCh:
				go t.populate(false, true)
			case <-mQuit.ClickedCh:
				systray.Quit()
				return
			case <-t.ctx.Done():
				systray.Quit()
				return
			}
		}
	}()
}

func (t *tray) populate(fill, flush bool) {
	if _, err := t.app.Sampler.Populate(t.ctx, fill, flush); err != nil {
		t.app.Logger.Error("sample data failed", zap.Error(err))
		t.app.Feed.Failure(err)
	}
}

func (t *tray) onExit() {
	// laisser le temps au rapport d'être écrit
	done := make(chan struct{})
	go func() {
		if _, err := t.app.StopTracking(); err != nil {
			t.app.Logger.Error("tracking ended with an error", zap.Error(err))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(30 * time.Second):
		t.app.Logger.Warn("gave up waiting for the report")
	}
	t.cancel()
}

func setEnabled(item *systray.MenuItem, enabled bool) {
	if enabled {
		item.Enable()
	} else {
		item.Disable()
	}
}
