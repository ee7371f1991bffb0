package launch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"windowtracker/config"
	"windowtracker/probe"
	"windowtracker/status"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		DataDir:        filepath.Join(t.TempDir(), "WindowTracker"),
		DBFile:         "WindowLog.db",
		ReportFile:     "WindowLog.html",
		DBDriver:       "sqlite",
		PollIntervalMs: 10,
		ListenAddr:     "127.0.0.1:0",
	}
}

func TestTrayStateFollowsFeed(t *testing.T) {
	s := newTrayState(true)
	assert.True(t, s.canStart)
	assert.False(t, s.canStop)

	s.apply(status.Message{Kind: status.KindState, CanStart: false, CanStop: true})
	assert.False(t, s.canStart)
	assert.True(t, s.canStop)

	s.apply(status.Message{Kind: status.KindText, Text: "Line logged: 2024-03-05, 10:00:00, code, main.go"})
	assert.Equal(t, "Line logged: 2024-03-05, 10:00:00, code, main.go", s.tooltip)

	s.apply(status.Message{Kind: status.KindReport, Text: status.ReportPrefix + "/data/WindowLog.html"})
	assert.Equal(t, "/data/WindowLog.html", s.report)

	s.apply(status.Message{Kind: status.KindFailure, Text: strings.Repeat("x", 300)})
	assert.Len(t, []rune(s.tooltip), tooltipMax)
	assert.True(t, strings.HasPrefix(s.tooltip, "Error: "))
	assert.Equal(t, "/data/WindowLog.html", s.report)
}

func TestTrayStateWithoutProbe(t *testing.T) {
	s := newTrayState(false)
	assert.False(t, s.canStart)
}

func TestOpenCommands(t *testing.T) {
	name, args := openCommand("windows", "http://127.0.0.1:8080")
	assert.Equal(t, "rundll32", name)
	assert.Equal(t, []string{"url.dll,FileProtocolHandler", "http://127.0.0.1:8080"}, args)

	name, args = openCommand("linux", "http://127.0.0.1:8080")
	assert.Equal(t, "xdg-open", name)
	assert.Equal(t, []string{"http://127.0.0.1:8080"}, args)

	name, args = revealCommand("windows", `C:\Users\me\Documents\WindowTracker\WindowLog.html`)
	assert.Equal(t, "explorer", name)
	assert.Equal(t, []string{`/select,C:\Users\me\Documents\WindowTracker\WindowLog.html`}, args)

	name, args = revealCommand("darwin", "/Users/me/WindowLog.html")
	assert.Equal(t, "open", name)
	assert.Equal(t, []string{"-R", "/Users/me/WindowLog.html"}, args)
}

func TestNewAppRunsASession(t *testing.T) {
	cfg := testConfig(t)
	script := probe.Titles("A", "B", "C")
	app, err := NewApp(context.Background(), cfg, nil, WithProber(script))
	require.NoError(t, err)
	defer app.Close()
	require.NotNil(t, app.Tracker)
	assert.NoError(t, app.ProbeErr)

	require.NoError(t, app.Tracker.Start(context.Background()))
	select {
	case <-script.Exhausted():
	case <-time.After(5 * time.Second):
		t.Fatal("script not consumed")
	}
	res, err := app.StopTracking()
	require.NoError(t, err)
	assert.Equal(t, 3, res.Records)
	assert.Equal(t, cfg.ReportPath(), res.ReportPath)
	assert.FileExists(t, cfg.ReportPath())

	require.Eventually(t, func() bool { return app.History.LastReport() == cfg.ReportPath() }, 2*time.Second, 10*time.Millisecond)

	rec := httptest.NewRecorder()
	app.Server(context.Background()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/report", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Summary by Program")
}

func TestStopTrackingWhenIdle(t *testing.T) {
	app, err := NewApp(context.Background(), testConfig(t), nil, WithProber(probe.NewScripted()))
	require.NoError(t, err)
	defer app.Close()

	res, err := app.StopTracking()
	require.NoError(t, err)
	assert.Empty(t, res.SessionID)
}
