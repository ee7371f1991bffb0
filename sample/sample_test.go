package sample

import (
	"context"
	"math/rand/v2"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"windowtracker/entity"
	"windowtracker/query"
	"windowtracker/status"
)

func newTestDatabase(t *testing.T) *query.Database {
	t.Helper()
	db, err := query.Open(query.DriverModernc, filepath.Join(t.TempDir(), "WindowLog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.EnsureSchema(context.Background()))
	return db
}

func allActivities(t *testing.T, db *query.Database) []entity.ActivityRecord {
	t.Helper()
	var recs []entity.ActivityRecord
	require.NoError(t, db.EachActivity(context.Background(), func(rec entity.ActivityRecord) error {
		recs = append(recs, rec)
		return nil
	}))
	return recs
}

func fixedNow() time.Time {
	return time.Date(2024, 3, 7, 15, 30, 0, 0, time.Local)
}

func newTestGenerator(db *query.Database, feed *status.Feed) *Generator {
	return NewGenerator(db, feed, nil,
		WithRand(rand.New(rand.NewPCG(1, 2))),
		WithClock(fixedNow),
	)
}

func TestPopulateFillsThreeWorkdays(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	st, err := newTestGenerator(db, nil).Populate(ctx, true, false)
	require.NoError(t, err)
	assert.Positive(t, st.Inserted)

	totals, err := db.DayTotals(ctx)
	require.NoError(t, err)
	require.Len(t, totals, 3)
	assert.Equal(t, "2024-03-05", totals[0].Date)
	assert.Equal(t, "2024-03-06", totals[1].Date)
	assert.Equal(t, "2024-03-07", totals[2].Date)

	sum := 0
	for _, d := range totals {
		assert.GreaterOrEqual(t, d.Seconds, float64(SecondsPerDay), d.Date)
		sum += d.Records
	}
	assert.Equal(t, st.Inserted, sum)

	recs := allActivities(t, db)
	assert.Equal(t, "08:00:00", recs[0].Time)
	for _, r := range recs {
		require.True(t, r.Duration.Valid)
		assert.GreaterOrEqual(t, r.Duration.Float64, MinDuration)
		assert.LessOrEqual(t, r.Duration.Float64, MaxDuration)
		assert.Contains(t, Vocabulary, Window{Program: r.Program, Title: r.Title})
	}
}

func TestRecordsStopOnceDayIsFull(t *testing.T) {
	recs := newTestGenerator(nil, nil).Records()

	perDay := map[string][]entity.ActivityRecord{}
	for _, r := range recs {
		perDay[r.Date] = append(perDay[r.Date], r)
	}
	require.Len(t, perDay, 3)
	for date, day := range perDay {
		// the total minus the last dwell is still under eight hours
		total := 0.0
		for _, r := range day {
			total += r.Duration.Float64
		}
		last := day[len(day)-1].Duration.Float64
		assert.Less(t, total-last, float64(SecondsPerDay), date)
	}
}

func TestPopulateFlush(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()
	feed := status.NewFeed()
	ch, cancel := feed.Subscribe()
	defer cancel()

	first, err := newTestGenerator(db, feed).Populate(ctx, true, false)
	require.NoError(t, err)
	<-ch

	st, err := newTestGenerator(db, feed).Populate(ctx, false, true)
	require.NoError(t, err)
	assert.EqualValues(t, first.Inserted, st.Deleted)
	assert.Zero(t, st.Inserted)

	n, err := db.CountActivities(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	msg := <-ch
	assert.Contains(t, msg.Text, "Deleted")
}

func TestPopulateReplace(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()
	gen := newTestGenerator(db, nil)

	_, err := gen.Populate(ctx, true, false)
	require.NoError(t, err)
	st, err := gen.Populate(ctx, true, true)
	require.NoError(t, err)

	n, err := db.CountActivities(ctx)
	require.NoError(t, err)
	assert.Equal(t, st.Inserted, n)
}

func TestPopulateNothing(t *testing.T) {
	st, err := NewGenerator(nil, nil, nil).Populate(context.Background(), false, false)
	require.NoError(t, err)
	assert.Equal(t, Stats{}, st)
}
