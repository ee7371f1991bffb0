package entity

import (
	"database/sql"
	"time"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04:05"
)

// ActivityRecord is one row of window_log: a focus transition and the dwell time
// of the window that held focus before it.
type ActivityRecord struct {
	ID       int64           `db:"id" json:"id"`
	Date     string          `db:"date" json:"date"`
	Time     string          `db:"time" json:"time"`
	Program  string          `db:"program" json:"program"`
	Title    string          `db:"title" json:"title"`
	Duration sql.NullFloat64 `db:"duration" json:"-"`
}

// NewActivityRecord stamps a record with the local date and time of ts.
// A nil duration is stored as NULL.
func NewActivityRecord(ts time.Time, program, title string, duration *float64) ActivityRecord {
	local := ts.Local()
	rec := ActivityRecord{
		Date:    local.Format(DateLayout),
		Time:    local.Format(TimeLayout),
		Program: program,
		Title:   title,
	}
	if duration != nil {
		rec.Duration = sql.NullFloat64{Float64: *duration, Valid: true}
	}
	return rec
}

// Seconds returns the duration, or nil when the row has none.
func (r ActivityRecord) Seconds() *float64 {
	if !r.Duration.Valid {
		return nil
	}
	d := r.Duration.Float64
	return &d
}

// LogRow is an activity joined with its cached icon, if any.
type LogRow struct {
	ActivityRecord
	IconData []byte `db:"icon_data" json:"icon,omitempty"`
}
