// Package sample fills window_log with synthetic days for demos and manual testing.
package sample

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"windowtracker/entity"
	"windowtracker/status"
)

const (
	Days           = 3
	DayStartHour   = 8
	SecondsPerDay  = 8 * 60 * 60
	MinDuration    = 0.01
	MaxDuration    = 1200.0
	skewExponent   = 7
	sampleRowsHint = 1024
)

// Window is one program/title pair of the vocabulary.
type Window struct {
	Program string
	Title   string
}

var Vocabulary = []Window{
	{"explorer", "Documents"},
	{"firefox", "Inbox - Mail"},
	{"firefox", "Pull requests"},
	{"code", "main.go - windowtracker"},
	{"code", "tracker.go - windowtracker"},
	{"WINWORD", "Quarterly report.docx - Word"},
	{"EXCEL", "Budget 2024.xlsx - Excel"},
	{"Teams", "Daily standup | Microsoft Teams"},
	{"slack", "general - Slack"},
	{"WindowsTerminal", "PowerShell"},
}

type Store interface {
	AppendActivities(ctx context.Context, recs []entity.ActivityRecord) error
	DeleteAllActivities(ctx context.Context) (int64, error)
}

type Stats struct {
	Deleted  int64
	Inserted int
	Seconds  float64
}

type Generator struct {
	store  Store
	feed   *status.Feed
	logger *zap.Logger
	rnd    *rand.Rand
	now    func() time.Time
}

type Option func(*Generator)

// WithRand makes the generated log reproducible.
func WithRand(r *rand.Rand) Option {
	return func(g *Generator) { g.rnd = r }
}

func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

func NewGenerator(store Store, feed *status.Feed, logger *zap.Logger, opts ...Option) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Generator{
		store:  store,
		feed:   feed,
		logger: logger.Named("sample"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.rnd == nil {
		g.rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return g
}

// Populate optionally empties window_log, then optionally writes three
// synthetic days ending today. The inserts go in a single transaction.
func (g *Generator) Populate(ctx context.Context, fill, flush bool) (Stats, error) {
	var st Stats
	if flush {
		n, err := g.store.DeleteAllActivities(ctx)
		if err != nil {
			return st, err
		}
		st.Deleted = n
		g.text("Deleted %s log lines", humanize.Comma(n))
	}
	if !fill {
		return st, nil
	}

	recs := g.Records()
	if err := g.store.AppendActivities(ctx, recs); err != nil {
		return st, err
	}
	st.Inserted = len(recs)
	for _, r := range recs {
		if d := r.Seconds(); d != nil {
			st.Seconds += *d
		}
	}

	g.text("Inserted %s sample log lines", humanize.Comma(int64(st.Inserted)))
	g.logger.Info("sample data written",
		zap.Int64("deleted", st.Deleted),
		zap.Int("inserted", st.Inserted),
		zap.Float64("seconds", st.Seconds),
	)
	return st, nil
}

// Records builds the synthetic log without touching the store.
func (g *Generator) Records() []entity.ActivityRecord {
	now := g.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	recs := make([]entity.ActivityRecord, 0, sampleRowsHint)
	for day := 0; day < Days; day++ {
		start := today.AddDate(0, 0, day-(Days-1)).Add(DayStartHour * time.Hour)
		elapsed := 0.0
		for elapsed < SecondsPerDay {
			w := Vocabulary[g.rnd.IntN(len(Vocabulary))]
			d := g.duration()
			ts := start.Add(time.Duration(elapsed * float64(time.Second)))
			recs = append(recs, entity.NewActivityRecord(ts, w.Program, w.Title, &d))
			elapsed += d
		}
	}
	return recs
}

// duration is heavily skewed toward short dwells.
func (g *Generator) duration() float64 {
	return math.Pow(g.rnd.Float64(), skewExponent)*(MaxDuration-MinDuration) + MinDuration
}

func (g *Generator) text(format string, args ...any) {
	if g.feed != nil {
		g.feed.Text(format, args...)
	}
}
