package query

import (
	"context"
	"fmt"

	"windowtracker/entity"
)

// Dimension is a window_log column durations can be grouped by.
type Dimension string

const (
	DimensionProgram Dimension = "program"
	DimensionTitle   Dimension = "title"
)

// NullKey names the group of rows whose key column is NULL.
const NullKey = "NULL"

type SummaryItem struct {
	Name    string  `db:"name" json:"name"`
	Seconds float64 `db:"seconds" json:"seconds"`
}

func (d Dimension) column() (string, error) {
	switch d {
	case DimensionProgram:
		return "program", nil
	case DimensionTitle:
		return "title", nil
	default:
		return "", fmt.Errorf("unknown dimension %q", string(d))
	}
}

// Summary sums durations per distinct value of dim, ordered by that value.
// NULL durations count as zero.
func (db *Database) Summary(ctx context.Context, dim Dimension) ([]SummaryItem, error) {
	col, err := dim.column()
	if err != nil {
		return nil, storeErr("Summary", err)
	}
	items := []SummaryItem{}
	q := fmt.Sprintf(`
	SELECT COALESCE(%[1]s, '%[2]s') AS name,
	       COALESCE(SUM(duration), 0) AS seconds
	FROM window_log
	GROUP BY %[1]s
	ORDER BY %[1]s`, col, NullKey)
	if err := db.SelectContext(ctx, &items, q); err != nil {
		return nil, storeErr("Summary", err)
	}
	return items, nil
}

// AggregateBy is Summary as a mapping.
func (db *Database) AggregateBy(ctx context.Context, dim Dimension) (map[string]float64, error) {
	items, err := db.Summary(ctx, dim)
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(items))
	for _, it := range items {
		out[it.Name] += it.Seconds
	}
	return out, nil
}

// FetchAllJoinedWithIcons returns rows with duration >= cutoff joined with
// their icon. With a zero cutoff the rows without duration are included too,
// so the first record of a session stays visible.
func (db *Database) FetchAllJoinedWithIcons(ctx context.Context, cutoff float64) ([]entity.LogRow, error) {
	rows := []entity.LogRow{}
	q := `
	SELECT w.id, w.date, w.time, w.program, w.title, w.duration, i.icon_data
	FROM window_log w
	LEFT JOIN icons i ON w.title = i.title
	WHERE w.duration >= ?
	   OR (CASE WHEN ? = 0 THEN w.duration IS NULL ELSE 0 END)
	ORDER BY w.id`
	if err := db.SelectContext(ctx, &rows, q, cutoff, cutoff); err != nil {
		return nil, storeErr("FetchAllJoinedWithIcons", err)
	}
	return rows, nil
}

// EachActivity streams every row in id order without loading the log in memory.
func (db *Database) EachActivity(ctx context.Context, fn func(entity.ActivityRecord) error) error {
	rows, err := db.QueryxContext(ctx, `SELECT id, date, time, program, title, duration FROM window_log ORDER BY id`)
	if err != nil {
		return storeErr("EachActivity", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rec entity.ActivityRecord
		if err := rows.StructScan(&rec); err != nil {
			return storeErr("EachActivity", err)
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return storeErr("EachActivity", rows.Err())
}

// DayTotal is the tracked time of one calendar day.
type DayTotal struct {
	Date    string  `db:"date" json:"date"`
	Records int     `db:"records" json:"records"`
	Seconds float64 `db:"seconds" json:"seconds"`
}

func (db *Database) DayTotals(ctx context.Context) ([]DayTotal, error) {
	items := []DayTotal{}
	q := `
	SELECT date, COUNT(*) AS records, COALESCE(SUM(duration), 0) AS seconds
	FROM window_log
	GROUP BY date
	ORDER BY date`
	if err := db.SelectContext(ctx, &items, q); err != nil {
		return nil, storeErr("DayTotals", err)
	}
	return items, nil
}
