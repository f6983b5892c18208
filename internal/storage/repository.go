package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"

	"crm/internal/core"
)

// Dialect selects the SQL driver and the embedded migration set.
type Dialect string

const (
	DialectSQLite Dialect = "sqlite"
	DialectMySQL  Dialect = "mysql"
)

func (d Dialect) driverName() string {
	return string(d)
}

// sqlitePragmas are applied to every connection opened by the sqlite driver.
const sqlitePragmas = "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"

// Repository is the persistence store. All methods return typed errors from
// package core: NotFoundError for missing rows and StorageError for anything
// the driver reports.
type Repository struct {
	db      *sql.DB
	queries *Queries
	dialect Dialect
}

func NewSQLiteRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	dsn := dbPath + sqlitePragmas

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single connection serialises writers; busy_timeout covers other processes.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(DialectSQLite, dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db, queries: New(db), dialect: DialectSQLite}, nil
}

// NewMySQLRepository connects to MySQL. Example DSN:
// user:pass@tcp(host:3306)/crm
func NewMySQLRepository(ctx context.Context, dsn string) (*Repository, error) {
	if dsn == "" {
		return nil, errors.New("mysql: DSN is required")
	}
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse mysql dsn: %w", err)
	}
	// Migration files hold several statements each; RowsAffected must count
	// matched rows so an update with unchanged values is not reported missing.
	cfg.MultiStatements = true
	cfg.ClientFoundRows = true
	dsn = cfg.FormatDSN()

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(DialectMySQL, dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db, queries: New(db), dialect: DialectMySQL}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Dialect reports which SQL backend the repository talks to.
func (r *Repository) Dialect() Dialect {
	return r.dialect
}

// Ping checks the connection; used by the readiness probe.
func (r *Repository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return core.Storage("ping", err)
	}
	return nil
}

// inTx runs fn inside a transaction, rolling back when fn fails.
func (r *Repository) inTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Storage("begin transaction", err)
	}
	if err := fn(r.queries.WithTx(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.ErrorContext(ctx, "Transaction rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return core.Storage("commit transaction", err)
	}
	return nil
}

// rowErr maps sql.ErrNoRows to NotFoundError and wraps anything else.
func rowErr(op, entity string, id int64, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return core.NotFound(entity, id)
	}
	return core.Storage(op, err)
}

// affected turns a zero-row update or delete into NotFoundError.
func affected(op, entity string, id int64, n int64, err error) error {
	if err != nil {
		return core.Storage(op, err)
	}
	if n == 0 {
		return core.NotFound(entity, id)
	}
	return nil
}

func (r *Repository) requireExists(ctx context.Context, q *Queries, table, entity string, id int64) error {
	ok, err := q.exists(ctx, table, id)
	if err != nil {
		return core.Storage("lookup "+entity, err)
	}
	if !ok {
		return core.NotFound(entity, id)
	}
	return nil
}

func (r *Repository) requireOptional(ctx context.Context, q *Queries, table, entity string, id *int64) error {
	if id == nil {
		return nil
	}
	return r.requireExists(ctx, q, table, entity, *id)
}
