// Package sqlstore implements store.Store on database/sql. SQLite (modernc) and
// PostgreSQL (pgx) share one schema, applied with goose.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"thumbexpert/internal/model"
	"thumbexpert/internal/store"
	"thumbexpert/internal/store/sqlstore/migrations"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Options struct {
	// Driver is DriverSQLite or DriverPostgres.
	Driver     string
	DSN        string
	MaxHistory int
}

type DB struct {
	conn       *sql.DB
	postgres   bool
	maxHistory int
}

var _ store.Store = (*DB)(nil)

// goose keeps its base FS and dialect in package globals.
var gooseMu sync.Mutex

func Open(ctx context.Context, opts Options) (*DB, error) {
	var (
		driverName string
		dialect    string
		postgres   bool
	)
	switch opts.Driver {
	case DriverSQLite, "":
		driverName, dialect = "sqlite", "sqlite3"
	case DriverPostgres:
		driverName, dialect, postgres = "pgx", "pgx", true
	default:
		return nil, fmt.Errorf("sqlstore: unsupported driver %q", opts.Driver)
	}

	dsn := opts.DSN
	if !postgres {
		dsn = sqliteDSN(dsn)
	}

	conn, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: opening database: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlstore: pinging database: %w", err)
	}

	if err := migrate(ctx, conn, dialect); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlstore: running migrations: %w", err)
	}

	maxHistory := opts.MaxHistory
	if maxHistory <= 0 {
		maxHistory = model.MaxHistory
	}
	return &DB{conn: conn, postgres: postgres, maxHistory: maxHistory}, nil
}

func migrate(ctx context.Context, conn *sql.DB, dialect string) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect(dialect); err != nil {
		return err
	}
	return goose.UpContext(ctx, conn, ".")
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// sqliteDSN appends the connection pragmas so every pooled connection gets them.
func sqliteDSN(dsn string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (db *DB) rebind(query string) string {
	if !db.postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (db *DB) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return db.conn.ExecContext(ctx, db.rebind(query), args...)
}

func (db *DB) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return db.conn.QueryRowContext(ctx, db.rebind(query), args...)
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
