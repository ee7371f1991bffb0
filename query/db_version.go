package query

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

const (
	TableDatabaseVersion = "database_version"
	TableWindowLog       = "window_log"
	TableIcons           = "icons"
)

const schema = `
CREATE TABLE IF NOT EXISTS window_log (
    id INTEGER PRIMARY KEY,
    date TEXT,
    time TEXT,
    program TEXT,
    title TEXT,
    duration REAL
);

CREATE TABLE IF NOT EXISTS icons (
    id INTEGER PRIMARY KEY,
    title TEXT UNIQUE,
    icon_data BLOB
);

CREATE TABLE IF NOT EXISTS database_version (
    db_version INTEGER DEFAULT 0
);
`

// migrations[i] brings the schema from version i to i+1.
var migrations = []string{
	`CREATE INDEX IF NOT EXISTS idx_window_log_date ON window_log(date)`,
	`CREATE INDEX IF NOT EXISTS idx_window_log_title ON window_log(title)`,
}

// SchemaVersion is the version EnsureSchema leaves the database at.
var SchemaVersion = len(migrations)

func (db *Database) GetDbVersion(ctx context.Context) (int, error) {
	var dbVersion int
	err := db.GetContext(ctx, &dbVersion, "SELECT db_version FROM database_version LIMIT 1")
	if err != nil {
		return 0, storeErr("GetDbVersion", err)
	}
	return dbVersion, nil
}

// EnsureSchema creates the storage directory and the tables if they are missing,
// then applies pending migrations. Safe to call at every session start.
func (db *Database) EnsureSchema(ctx context.Context) error {
	if db.path != "" && db.path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(db.path), 0o755); err != nil {
			return storeErr("EnsureSchema", fmt.Errorf("create db dir: %w", err))
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return storeErr("EnsureSchema", err)
	}

	var rows int
	if err := db.GetContext(ctx, &rows, "SELECT COUNT(*) FROM database_version"); err != nil {
		return storeErr("EnsureSchema", err)
	}
	if rows == 0 {
		if _, err := db.ExecContext(ctx, "INSERT INTO database_version VALUES(0)"); err != nil {
			return storeErr("EnsureSchema", err)
		}
	}
	return db.updateDb(ctx)
}

func (db *Database) updateDb(ctx context.Context) error {
	dbVersion, err := db.GetDbVersion(ctx)
	if err != nil {
		return err
	}
	if dbVersion >= SchemaVersion {
		return nil
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return storeErr("updateDb", err)
	}
	for v := dbVersion; v < SchemaVersion; v++ {
		if _, err := tx.ExecContext(ctx, migrations[v]); err != nil {
			tx.Rollback()
			return storeErr("updateDb", fmt.Errorf("version %d: %w", v+1, err))
		}
	}
	if _, err := tx.ExecContext(ctx, "UPDATE database_version SET db_version=?", SchemaVersion); err != nil {
		tx.Rollback()
		return storeErr("updateDb", err)
	}
	if err := tx.Commit(); err != nil {
		tx.Rollback()
		return storeErr("updateDb", fmt.Errorf("commit: %w", err))
	}
	return nil
}
