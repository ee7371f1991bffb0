// Package report renders window_log into a standalone HTML page.
package report

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"windowtracker/entity"
	"windowtracker/query"
	"windowtracker/status"
)

// Store is what the generator reads. It never writes.
type Store interface {
	EachActivity(ctx context.Context, fn func(entity.ActivityRecord) error) error
	Summary(ctx context.Context, dim query.Dimension) ([]query.SummaryItem, error)
}

// Error is returned when the report file cannot be produced.
type Error struct {
	Path string
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("report %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

type Result struct {
	Path  string
	Rows  int
	Bytes int64
}

type Generator struct {
	store  Store
	feed   *status.Feed
	logger *zap.Logger
}

func NewGenerator(store Store, feed *status.Feed, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{store: store, feed: feed, logger: logger.Named("report")}
}

// Generate writes the report to outputPath, replacing any previous one.
func (g *Generator) Generate(ctx context.Context, outputPath string) error {
	_, err := g.Build(ctx, outputPath)
	return err
}

// Build is Generate returning what was written.
func (g *Generator) Build(ctx context.Context, outputPath string) (Result, error) {
	res := Result{Path: outputPath}

	byProgram, err := g.store.Summary(ctx, query.DimensionProgram)
	if err != nil {
		return res, err
	}
	byTitle, err := g.store.Summary(ctx, query.DimensionTitle)
	if err != nil {
		return res, err
	}

	g.text("Generating HTML report...")
	start := time.Now()

	dir := filepath.Dir(outputPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return res, &Error{Path: outputPath, Op: "mkdir", Err: err}
	}
	// le fichier final n'est remplacé qu'une fois complet
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(outputPath)+"-*")
	if err != nil {
		return res, &Error{Path: outputPath, Op: "create", Err: err}
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	rows, err := render(ctx, g.store, tmp, byProgram, byTitle)
	if err != nil {
		var rerr *Error
		if errors.As(err, &rerr) {
			rerr.Path = outputPath
		}
		return res, err
	}
	if err := tmp.Chmod(0o644); err != nil {
		return res, &Error{Path: outputPath, Op: "chmod", Err: err}
	}
	if err := tmp.Close(); err != nil {
		return res, &Error{Path: outputPath, Op: "close", Err: err}
	}
	if err := os.Rename(tmpPath, outputPath); err != nil {
		os.Remove(tmpPath)
		committed = true
		return res, &Error{Path: outputPath, Op: "rename", Err: err}
	}
	committed = true

	res.Rows = rows
	if fi, err := os.Stat(outputPath); err == nil {
		res.Bytes = fi.Size()
	}

	g.logger.Info("report written",
		zap.String("path", outputPath),
		zap.Int("rows", rows),
		zap.String("size", humanize.Bytes(uint64(res.Bytes))),
		zap.Duration("took", time.Since(start)),
	)
	if g.feed != nil {
		g.feed.Report(outputPath)
	}
	return res, nil
}

func (g *Generator) text(format string, args ...any) {
	if g.feed != nil {
		g.feed.Text(format, args...)
	}
}

type detailRow struct {
	Date     string
	Time     string
	Duration string
	Program  string
	Title    string
}

type summaryTable struct {
	Heading string
	Label   string
	Items   []summaryRow
}

type summaryRow struct {
	Name    string
	Seconds string
}

// render streams the page into w and returns the number of detail rows.
func render(ctx context.Context, store Store, w io.Writer, byProgram, byTitle []query.SummaryItem) (int, error) {
	bw := bufio.NewWriter(w)
	if err := page.ExecuteTemplate(bw, "head", nil); err != nil {
		return 0, &Error{Op: "write", Err: err}
	}

	rows := 0
	err := store.EachActivity(ctx, func(rec entity.ActivityRecord) error {
		row := detailRow{
			Date:     rec.Date,
			Time:     rec.Time,
			Duration: FormatDuration(rec.Seconds()),
			Program:  rec.Program,
			Title:    rec.Title,
		}
		if err := page.ExecuteTemplate(bw, "row", row); err != nil {
			return &Error{Op: "write", Err: err}
		}
		rows++
		return nil
	})
	if err != nil {
		return rows, err
	}

	tables := []summaryTable{
		{Heading: "Summary by Program", Label: "Program", Items: summaryRows(byProgram)},
		{Heading: "Summary by Window Title", Label: "Window Title", Items: summaryRows(byTitle)},
	}
	if err := page.ExecuteTemplate(bw, "tail", tables); err != nil {
		return rows, &Error{Op: "write", Err: err}
	}
	if err := bw.Flush(); err != nil {
		return rows, &Error{Op: "write", Err: err}
	}
	return rows, nil
}

func summaryRows(items []query.SummaryItem) []summaryRow {
	out := make([]summaryRow, len(items))
	for i, it := range items {
		out[i] = summaryRow{Name: it.Name, Seconds: FormatSeconds(it.Seconds)}
	}
	return out
}

// FormatDuration renders seconds as minutes:seconds, e.g. 75.4 -> "1:15".
// A missing duration renders empty.
func FormatDuration(seconds *float64) string {
	if seconds == nil {
		return ""
	}
	// tronqué, jamais arrondi à la minute ou seconde suivante
	d := time.Duration(*seconds * float64(time.Second))
	return fmt.Sprintf("%d:%02d", int(d/time.Minute), int(d%time.Minute/time.Second))
}

// FormatSeconds renders a total with two decimals.
func FormatSeconds(seconds float64) string {
	return fmt.Sprintf("%.2f", seconds)
}
