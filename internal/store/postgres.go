package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

type PostgresOptions struct {
	MigrationsDir string
	MaxOpenConns  int
}

type PostgresStore struct {
	sqlStore
}

func NewPostgresStore(dsn string, opts PostgresOptions) (*PostgresStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("postgres dsn is required")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	d := postgresDialect()
	fsys, err := migrationsFS(opts.MigrationsDir, d.name)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := applyMigrations(db, d, fsys); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresStore{sqlStore{db: db, d: d}}, nil
}

func postgresDialect() dialect {
	return dialect{
		name:       "postgres",
		numbered:   true,
		lockSuffix: " FOR UPDATE",
		viewOpts:   &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true},
		migrationsTableDDL: `
CREATE TABLE IF NOT EXISTS schema_migrations (
  filename TEXT PRIMARY KEY,
  installed_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
		timeArg: func(t time.Time) any {
			if t.IsZero() {
				return nil
			}
			return t
		},
		classify: classifyPostgres,
	}
}

func classifyPostgres(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "23505":
		return fmt.Errorf("%w: %v", ErrConflict, err)
	case "23503":
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case "40001", "40P01", "55P03":
		return fmt.Errorf("%w: %v", ErrTransactionFailed, err)
	}
	return err
}
