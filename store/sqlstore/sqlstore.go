// Package sqlstore implements the store interfaces on database/sql.
//
// Two drivers are supported: modernc.org/sqlite (pure Go, used by tests and
// single-node deployments) and jackc/pgx through its database/sql adapter.
// Queries are written with '?' placeholders and rebound to $n for pgx.
// Times are stored as unix milliseconds.
package sqlstore

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx"
	_ "modernc.org/sqlite"             // registers "sqlite"
)

const (
	DriverSQLite = "sqlite"
	DriverPgx    = "pgx"

	sqlitePragmas = "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
)

//go:embed schema/*.sql
var schemaFS embed.FS

type Config struct {
	Driver       string // "sqlite" (default) or "pgx"
	DSN          string // file path for sqlite, URL for pgx
	MaxOpenConns int    // pgx only; sqlite always uses one connection
	// EnsureSchema creates the tables if missing. Meant for tests and the
	// demo; production schemas are managed elsewhere.
	EnsureSchema bool
}

// Store persists shops, promotions and orders.
type Store struct {
	db     *sql.DB
	driver string
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open connects, pings and optionally applies the embedded schema.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, fmt.Errorf("sqlstore: dsn is required")
	}

	driver := cfg.Driver
	switch driver {
	case DriverSQLite, "":
		driver = DriverSQLite
		if !strings.Contains(dsn, "?") {
			dsn += "?" + sqlitePragmas
		}
	case DriverPgx, "postgres":
		driver = DriverPgx
	default:
		return nil, fmt.Errorf("sqlstore: unsupported driver %q", cfg.Driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s db: %w", driver, err)
	}
	if driver == DriverSQLite {
		// one writer at a time; transactions queue on the connection
		// instead of failing with SQLITE_BUSY
		db.SetMaxOpenConns(1)
	} else if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s db: %w", driver, err)
	}

	s := &Store{db: db, driver: driver}
	if cfg.EnsureSchema {
		if err := s.ensureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return s, nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) ensureSchema(ctx context.Context) error {
	name := "schema/sqlite.sql"
	if s.driver == DriverPgx {
		name = "schema/postgres.sql"
	}
	ddl, err := schemaFS.ReadFile(name)
	if err != nil {
		return fmt.Errorf("read schema: %w", err)
	}
	for _, stmt := range strings.Split(string(ddl), ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

func (s *Store) q(query string) string { return rebind(s.driver, query) }

// rebind rewrites '?' placeholders to $1..$n for pgx.
func rebind(driver, query string) string {
	if driver != DriverPgx {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}
