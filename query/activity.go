package query

import (
	"context"
	"fmt"

	"windowtracker/entity"
)

const insertActivity = `
	INSERT INTO window_log (date, time, program, title, duration)
	VALUES (:date, :time, :program, :title, :duration)`

// AppendActivity writes one row in a single statement. An invalid Duration is
// stored as NULL, not zero.
func (db *Database) AppendActivity(ctx context.Context, rec entity.ActivityRecord) error {
	if _, err := db.NamedExecContext(ctx, insertActivity, rec); err != nil {
		return storeErr("AppendActivity", err)
	}
	return nil
}

// AppendActivities writes all rows in one transaction, committed once.
func (db *Database) AppendActivities(ctx context.Context, recs []entity.ActivityRecord) error {
	if len(recs) == 0 {
		return nil
	}
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return storeErr("AppendActivities", err)
	}
	stmt, err := tx.PrepareNamedContext(ctx, insertActivity)
	if err != nil {
		tx.Rollback()
		return storeErr("AppendActivities", err)
	}
	defer stmt.Close()

	for i, rec := range recs {
		if _, err := stmt.ExecContext(ctx, rec); err != nil {
			tx.Rollback()
			return storeErr("AppendActivities", fmt.Errorf("row %d: %w", i, err))
		}
	}
	if err := tx.Commit(); err != nil {
		tx.Rollback()
		return storeErr("AppendActivities", err)
	}
	return nil
}

// DeleteAllActivities empties window_log in one transaction. The icon cache is kept.
func (db *Database) DeleteAllActivities(ctx context.Context) (int64, error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, storeErr("DeleteAllActivities", err)
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM window_log")
	if err != nil {
		tx.Rollback()
		return 0, storeErr("DeleteAllActivities", err)
	}
	if err := tx.Commit(); err != nil {
		tx.Rollback()
		return 0, storeErr("DeleteAllActivities", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (db *Database) CountActivities(ctx context.Context) (int, error) {
	var n int
	if err := db.GetContext(ctx, &n, "SELECT COUNT(*) FROM window_log"); err != nil {
		return 0, storeErr("CountActivities", err)
	}
	return n, nil
}
