package query

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

const (
	// DriverModernc is the pure Go driver, used by default.
	DriverModernc = "sqlite"
	// DriverMattn needs cgo.
	DriverMattn = "sqlite3"

	busyTimeoutMs = 5000
)

// StoreError reports a failed open, schema or query operation.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}

type Database struct {
	*sqlx.DB
	path string
}

func NewDatabase(db *sqlx.DB) *Database {
	return &Database{DB: db}
}

// Open creates the parent directory of path and opens the SQLite file with the
// given driver. The schema is not touched, see EnsureSchema.
func Open(driver, path string) (*Database, error) {
	if path == "" {
		return nil, storeErr("open", errors.New("db path is required"))
	}
	if driver == "" {
		driver = DriverModernc
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, storeErr("open", fmt.Errorf("create db dir: %w", err))
		}
	}
	dsn, err := dataSourceName(driver, path)
	if err != nil {
		return nil, storeErr("open", err)
	}
	dbTemp, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, storeErr("open", err)
	}
	if path == ":memory:" {
		// chaque connexion aurait sa propre base en mémoire
		dbTemp.SetMaxOpenConns(1)
	}
	if err := dbTemp.Ping(); err != nil {
		dbTemp.Close()
		return nil, storeErr("open", err)
	}
	db := NewDatabase(dbTemp)
	db.path = path
	return db, nil
}

// Path returns the file the database was opened from.
func (db *Database) Path() string {
	return db.path
}

// WAL lets icon inserts proceed while a report is streaming rows.
func dataSourceName(driver, path string) (string, error) {
	if path == ":memory:" {
		return path, nil
	}
	switch driver {
	case DriverModernc:
		return fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)", filepath.ToSlash(path), busyTimeoutMs), nil
	case DriverMattn:
		return fmt.Sprintf("file:%s?_busy_timeout=%d&_journal_mode=WAL", filepath.ToSlash(path), busyTimeoutMs), nil
	default:
		return "", fmt.Errorf("unknown sqlite driver %q", driver)
	}
}
