package web

import (
	"context"
	"encoding/json"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"windowtracker/entity"
	"windowtracker/probe"
	"windowtracker/query"
	"windowtracker/sample"
	"windowtracker/status"
	"windowtracker/tracker"
)

type fixture struct {
	db      *query.Database
	tracker *tracker.Tracker
	feed    *status.Feed
	server  *Server
	report  string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	db, err := query.Open(query.DriverModernc, filepath.Join(dir, "WindowLog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	ctx := context.Background()
	require.NoError(t, db.EnsureSchema(ctx))

	ts := time.Date(2024, 3, 5, 10, 0, 0, 0, time.Local)
	a, b := 2.0, 5.5
	require.NoError(t, db.AppendActivities(ctx, []entity.ActivityRecord{
		entity.NewActivityRecord(ts, "code", "main.go", nil),
		entity.NewActivityRecord(ts.Add(2*time.Second), "firefox", "Inbox", &a),
		entity.NewActivityRecord(ts.Add(7*time.Second), "code", "main.go", &b),
	}))
	require.NoError(t, db.UpsertIcon(ctx, "Inbox", []byte{0x89, 'P', 'N', 'G'}))

	feed := status.NewFeed()
	t.Cleanup(feed.Close)
	history := status.NewHistory(50)
	t.Cleanup(history.Follow(feed))

	tr := tracker.New(probe.NewScripted(), db, nil, nil, feed, tracker.Options{IntervalMs: 10})
	sampler := sample.NewGenerator(db, feed, nil, sample.WithRand(rand.New(rand.NewPCG(3, 4))))

	report := filepath.Join(dir, "WindowLog.html")
	srv := NewServer(db, tr, sampler, history, Options{ReportPath: report})
	return &fixture{db: db, tracker: tr, feed: feed, server: srv, report: report}
}

func (f *fixture) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

type logResponse struct {
	Cutoff float64  `json:"cutoff"`
	Rows   []logRow `json:"rows"`
}

func TestIndex(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Window Tracker")

	rec = f.do(t, http.MethodGet, "/static/app.js", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLogCutoff(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/log", "")
	require.Equal(t, http.StatusOK, rec.Code)
	all := decode[logResponse](t, rec)
	require.Len(t, all.Rows, 3)
	assert.Nil(t, all.Rows[0].Duration)
	assert.Equal(t, "", all.Rows[0].DurationText)
	assert.Equal(t, "0:02", all.Rows[1].DurationText)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, all.Rows[1].Icon)

	rec = f.do(t, http.MethodGet, "/api/log?cutoff=3,5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	some := decode[logResponse](t, rec)
	assert.InDelta(t, 3.5, some.Cutoff, 1e-9)
	require.Len(t, some.Rows, 1)
	assert.Equal(t, "0:05", some.Rows[0].DurationText)

	rec = f.do(t, http.MethodGet, "/api/log?cutoff=-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = f.do(t, http.MethodGet, "/api/log?cutoff=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSummary(t *testing.T) {
	f := newFixture(t)

	type summary struct {
		By    string              `json:"by"`
		Items []query.SummaryItem `json:"items"`
	}
	rec := f.do(t, http.MethodGet, "/api/summary", "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[summary](t, rec)
	assert.Equal(t, "program", got.By)
	assert.Equal(t, []query.SummaryItem{{Name: "code", Seconds: 5.5}, {Name: "firefox", Seconds: 2}}, got.Items)

	rec = f.do(t, http.MethodGet, "/api/summary?by=title", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[summary](t, rec).Items, 2)

	rec = f.do(t, http.MethodGet, "/api/summary?by=date", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDays(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/days", "")
	require.Equal(t, http.StatusOK, rec.Code)
	days := decode[[]query.DayTotal](t, rec)
	require.Len(t, days, 1)
	assert.Equal(t, 3, days[0].Records)
}

func TestIcon(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/icon?title=Inbox", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, rec.Body.Bytes())

	rec = f.do(t, http.MethodGet, "/api/icon?title=main.go", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = f.do(t, http.MethodGet, "/api/icon", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatusCounts(t *testing.T) {
	f := newFixture(t)

	type resp struct {
		Rows  int `json:"rows"`
		Icons int `json:"icons"`
	}
	rec := f.do(t, http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, resp{Rows: 3, Icons: 1}, decode[resp](t, rec))
}

func TestReport(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/report", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	require.NoError(t, os.WriteFile(f.report, []byte("<html>report</html>"), 0o644))
	rec = f.do(t, http.MethodGet, "/report", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "report")
}

func TestInterval(t *testing.T) {
	f := newFixture(t)

	type resp struct {
		IntervalMs int  `json:"interval_ms"`
		Clamped    bool `json:"clamped"`
	}
	rec := f.do(t, http.MethodPost, "/api/interval", `{"interval_ms": 250}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, resp{IntervalMs: 250}, decode[resp](t, rec))

	rec = f.do(t, http.MethodPost, "/api/interval", `{"interval_ms": "5"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, resp{IntervalMs: 10, Clamped: true}, decode[resp](t, rec))
	assert.Equal(t, 10, f.tracker.PollingInterval())

	rec = f.do(t, http.MethodPost, "/api/interval", `{"interval_ms": "fast"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 10, f.tracker.PollingInterval())
}

func TestStartStop(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/stop", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/start", "")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = f.do(t, http.MethodPost, "/api/start", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/sample", `{"fill": true}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/stop", "")
	require.Equal(t, http.StatusOK, rec.Code)
	_, err := f.tracker.Wait()
	require.NoError(t, err)

	type statusResp struct {
		CanStart bool             `json:"can_start"`
		CanStop  bool             `json:"can_stop"`
		Interval int              `json:"interval_ms"`
		Messages []status.Message `json:"messages"`
	}
	require.Eventually(t, func() bool {
		got := decode[statusResp](t, f.do(t, http.MethodGet, "/api/status", ""))
		for _, m := range got.Messages {
			if m.Text == "Leaving tracking loop..." {
				return got.CanStart && !got.CanStop && got.Interval == 10
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSample(t *testing.T) {
	f := newFixture(t)

	type resp struct {
		Deleted  int64 `json:"deleted"`
		Inserted int   `json:"inserted"`
	}
	rec := f.do(t, http.MethodPost, "/api/sample", `{"fill": true, "flush": true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[resp](t, rec)
	assert.EqualValues(t, 3, got.Deleted)
	assert.Positive(t, got.Inserted)

	n, err := f.db.CountActivities(context.Background())
	require.NoError(t, err)
	assert.Equal(t, got.Inserted, n)

	rec = f.do(t, http.MethodPost, "/api/sample", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestControlEndpointsWithoutTracker(t *testing.T) {
	f := newFixture(t)
	srv := NewServer(f.db, nil, nil, nil, Options{})
	for _, path := range []string{"/api/start", "/api/stop", "/api/sample"} {
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, strings.NewReader("{}")))
		assert.Equal(t, http.StatusNotImplemented, rec.Code, path)
	}
}
