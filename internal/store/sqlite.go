package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// sqliteTimeLayout is fixed width so TEXT timestamps sort chronologically.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type SQLiteOptions struct {
	MigrationsDir string
	BusyTimeout   time.Duration
}

type SQLiteStore struct {
	sqlStore
}

// NewSQLiteStore opens path with foreign keys on and write transactions taken
// with BEGIN IMMEDIATE. A single connection is used, so transactions never
// interleave inside the process.
func NewSQLiteStore(path string, opts SQLiteOptions) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	busy := opts.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	db, err := sql.Open("sqlite", sqliteDSN(path, busy))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	d := sqliteDialect()
	fsys, err := migrationsFS(opts.MigrationsDir, d.name)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := applyMigrations(db, d, fsys); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{sqlStore{db: db, d: d}}, nil
}

func sqliteDSN(path string, busy time.Duration) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	if !strings.HasPrefix(path, "file:") {
		path = "file:" + path
	}
	return fmt.Sprintf("%s%s_pragma=foreign_keys(1)&_pragma=busy_timeout(%d)&_txlock=immediate",
		path, sep, busy.Milliseconds())
}

func sqliteDialect() dialect {
	return dialect{
		name: "sqlite",
		migrationsTableDDL: `
CREATE TABLE IF NOT EXISTS schema_migrations (
  filename TEXT PRIMARY KEY,
  installed_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);`,
		timeArg: func(t time.Time) any {
			if t.IsZero() {
				return nil
			}
			return t.UTC().Format(sqliteTimeLayout)
		},
		classify: classifySQLite,
	}
}

func classifySQLite(err error) error {
	var se *sqlite.Error
	if errors.As(err, &se) {
		code := se.Code()
		switch {
		case code == sqlite3.SQLITE_CONSTRAINT_UNIQUE, code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return fmt.Errorf("%w: %v", ErrConflict, err)
		case code == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return fmt.Errorf("%w: %v", ErrNotFound, err)
		case code&0xff == sqlite3.SQLITE_BUSY, code&0xff == sqlite3.SQLITE_LOCKED:
			return fmt.Errorf("%w: %v", ErrTransactionFailed, err)
		}
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "unique"):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	case strings.Contains(msg, "foreign key"):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return err
}
