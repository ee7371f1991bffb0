// Package tracker runs the polling loop that turns focus changes into
// window_log rows.
package tracker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"windowtracker/entity"
	"windowtracker/probe"
	"windowtracker/status"
	"windowtracker/validate"
)

const DefaultIntervalMs = 500

// Program and title of the closing record written when FinalizeOnStop is set.
const (
	StopProgram = "windowtracker"
	StopTitle   = "(tracking stopped)"
)

var (
	ErrAlreadyRunning = errors.New("tracking already running")
	ErrNotRunning     = errors.New("tracking not running")
)

type Store interface {
	EnsureSchema(ctx context.Context) error
	AppendActivity(ctx context.Context, rec entity.ActivityRecord) error
}

type IconCache interface {
	Remember(ctx context.Context, title string, icon []byte) error
}

type Reporter interface {
	Generate(ctx context.Context, outputPath string) error
}

type Options struct {
	IntervalMs int
	// ReportPath is where the report is written when a session ends.
	// Empty disables the report.
	ReportPath string
	// FinalizeOnStop appends a closing record with the dwell time of the last
	// focused window when the session stops.
	FinalizeOnStop bool
	Now            func() time.Time
	Logger         *zap.Logger
}

// Result sums up a finished session.
type Result struct {
	SessionID  string
	Records    int
	ReportPath string
}

type Tracker struct {
	probe    probe.Prober
	store    Store
	icons    IconCache
	reporter Reporter
	feed     *status.Feed
	logger   *zap.Logger
	now      func() time.Time

	reportPath     string
	finalizeOnStop bool

	interval atomic.Int64
	running  atomic.Bool
	stopping atomic.Bool

	mu     sync.Mutex
	stopCh chan struct{}
	done   chan struct{}
	result Result
	err    error
}

// sessionState lives on the loop goroutine only.
type sessionState struct {
	lastTitle     string
	hasTitle      bool
	lastTimestamp time.Time
	hasTimestamp  bool
}

// New wires a tracker. icons and reporter may be nil.
func New(p probe.Prober, store Store, icons IconCache, reporter Reporter, feed *status.Feed, opts Options) *Tracker {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.IntervalMs == 0 {
		opts.IntervalMs = DefaultIntervalMs
	}
	if feed == nil {
		feed = status.NewFeed()
	}
	t := &Tracker{
		probe:          p,
		store:          store,
		icons:          icons,
		reporter:       reporter,
		feed:           feed,
		logger:         opts.Logger.Named("tracker"),
		now:            opts.Now,
		reportPath:     opts.ReportPath,
		finalizeOnStop: opts.FinalizeOnStop,
	}
	t.SetPollingInterval(opts.IntervalMs)
	return t
}

// SetPollingInterval clamps ms to [10, 2000] and returns the value in effect.
// A running loop picks it up at its next sleep.
func (t *Tracker) SetPollingInterval(ms int) int {
	v := validate.ClampInterval(ms)
	t.interval.Store(int64(v))
	return v
}

func (t *Tracker) PollingInterval() int {
	return int(t.interval.Load())
}

func (t *Tracker) Running() bool {
	return t.running.Load()
}

func (t *Tracker) CanStart() bool {
	return !t.running.Load()
}

func (t *Tracker) CanStop() bool {
	return t.running.Load() && !t.stopping.Load()
}

// Start launches a session in the background. Cancelling ctx stops it like Stop.
func (t *Tracker) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running.Load() {
		return ErrAlreadyRunning
	}
	t.running.Store(true)
	t.stopping.Store(false)
	t.stopCh = make(chan struct{})
	t.done = make(chan struct{})
	t.result, t.err = Result{}, nil

	stopCh, done := t.stopCh, t.done
	t.feed.State(false, true)

	go func() {
		res, err := t.session(ctx, stopCh)

		// publié sous mu, avant qu'un nouveau Start puisse annoncer le sien
		t.mu.Lock()
		t.result, t.err = res, err
		t.feed.State(true, false)
		t.running.Store(false)
		t.mu.Unlock()

		close(done)
	}()
	return nil
}

// Stop asks the loop to finish. The loop notices at its next tick, writes the
// report and then returns to the stopped state; use Wait to block until then.
func (t *Tracker) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running.Load() {
		return ErrNotRunning
	}
	if t.stopping.CompareAndSwap(false, true) {
		close(t.stopCh)
	}
	return nil
}

// Wait blocks until the current or last session is over.
func (t *Tracker) Wait() (Result, error) {
	t.mu.Lock()
	done := t.done
	t.mu.Unlock()
	if done == nil {
		return Result{}, ErrNotRunning
	}
	<-done

	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result, t.err
}

// Run is Start followed by Wait.
func (t *Tracker) Run(ctx context.Context) (Result, error) {
	if err := t.Start(ctx); err != nil {
		return Result{}, err
	}
	return t.Wait()
}

func (t *Tracker) session(ctx context.Context, stopCh <-chan struct{}) (Result, error) {
	res := Result{SessionID: uuid.NewString()}
	log := t.logger.With(zap.String("session", res.SessionID))
	// ticks run to completion even if ctx is cancelled meanwhile
	opCtx := context.WithoutCancel(ctx)
	var st sessionState

	if err := t.store.EnsureSchema(opCtx); err != nil {
		return res, t.fail(log, err)
	}
	t.feed.Text("Tracking started...")
	log.Info("tracking started", zap.Int("interval_ms", t.PollingInterval()))

	for !t.stopRequested(ctx) {
		written, err := t.tick(opCtx, log, &st)
		if err != nil {
			return res, t.fail(log, err)
		}
		if written {
			res.Records++
		}
		t.sleep(ctx, stopCh)
	}

	t.feed.Text("Leaving tracking loop...")

	if t.finalizeOnStop && st.hasTimestamp {
		now := t.now()
		rec := entity.NewActivityRecord(now, StopProgram, StopTitle, dwell(now, st.lastTimestamp))
		if err := t.store.AppendActivity(opCtx, rec); err != nil {
			return res, t.fail(log, err)
		}
		res.Records++
	}

	if t.reporter != nil && t.reportPath != "" {
		if err := t.reporter.Generate(opCtx, t.reportPath); err != nil {
			return res, t.fail(log, err)
		}
		res.ReportPath = t.reportPath
	}
	log.Info("tracking stopped", zap.Int("records", res.Records), zap.String("report", res.ReportPath))
	return res, nil
}

func (t *Tracker) stopRequested(ctx context.Context) bool {
	return t.stopping.Load() || ctx.Err() != nil
}

// tick polls once and logs a record when the title changed.
func (t *Tracker) tick(ctx context.Context, log *zap.Logger, st *sessionState) (bool, error) {
	smp, err := t.probe.Sample(ctx)
	if err != nil {
		log.Debug("poll skipped", zap.Error(err))
		return false, nil
	}
	if st.hasTitle && smp.Title == st.lastTitle {
		return false, nil
	}

	now := t.now()
	var duration *float64
	if st.hasTimestamp {
		duration = dwell(now, st.lastTimestamp)
	}

	if t.icons != nil {
		if err := t.icons.Remember(ctx, smp.Title, smp.Icon); err != nil {
			log.Warn("icon cache insert failed", zap.String("title", smp.Title), zap.Error(err))
		}
	}

	rec := entity.NewActivityRecord(now, smp.Program, smp.Title, duration)
	if err := t.store.AppendActivity(ctx, rec); err != nil {
		return false, err
	}

	st.lastTitle, st.hasTitle = smp.Title, true
	st.lastTimestamp, st.hasTimestamp = now, true

	t.feed.Text("Line logged: %s, %s, %s, %s", rec.Date, rec.Time, rec.Program, rec.Title)
	return true, nil
}

func (t *Tracker) sleep(ctx context.Context, stopCh <-chan struct{}) {
	timer := time.NewTimer(time.Duration(t.interval.Load()) * time.Millisecond)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-stopCh:
	case <-ctx.Done():
	}
}

func (t *Tracker) fail(log *zap.Logger, err error) error {
	log.Error("tracking session failed", zap.Error(err))
	t.feed.Failure(err)
	return err
}

func dwell(now, since time.Time) *float64 {
	d := now.Sub(since).Seconds()
	if d < 0 {
		d = 0
	}
	return &d
}
