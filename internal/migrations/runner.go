// Package migrations applies the embedded SQL schema to Postgres at startup.
//
// Files are named NNN_description.sql and run in lexicographic order. Each
// applied file is recorded in schema_migrations, so Run can be called on every
// boot.
package migrations

import (
	"context"
	"embed"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed *.sql
var sqlFiles embed.FS

// lockKey is the advisory lock held while migrations run, so that two
// replicas booting together do not race on the same file.
const lockKey int64 = 0x524f444f56

// RequiredTables lists the tables the service reads and writes.
var RequiredTables = []string{
	"shipments",
	"drivers",
	"users",
	"settings",
	"refresh_tokens",
	"reverse_geocode_cache",
}

type migration struct {
	version string
	sql     string
}

// Run applies every pending migration inside its own transaction.
func Run(ctx context.Context, pool *pgxpool.Pool) error {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("migrations: acquire: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, `SELECT pg_advisory_lock($1)`, lockKey); err != nil {
		return fmt.Errorf("migrations: lock: %w", err)
	}
	defer func() {
		unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, _ = conn.Exec(unlockCtx, `SELECT pg_advisory_unlock($1)`, lockKey)
	}()

	if _, err := conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`); err != nil {
		return fmt.Errorf("migrations: ensure tracking table: %w", err)
	}

	all, err := load()
	if err != nil {
		return fmt.Errorf("migrations: load files: %w", err)
	}

	done, err := applied(ctx, conn.Conn())
	if err != nil {
		return fmt.Errorf("migrations: read applied versions: %w", err)
	}

	n := 0
	for _, m := range all {
		if done[m.version] {
			continue
		}
		if err := apply(ctx, conn.Conn(), m); err != nil {
			return fmt.Errorf("migrations: apply %q: %w", m.version, err)
		}
		log.Printf("migrations: applied %q", m.version)
		n++
	}

	if n == 0 {
		log.Println("migrations: schema is up to date")
	} else {
		log.Printf("migrations: %d migration(s) applied", n)
	}
	return nil
}

// CheckSchema returns an error naming the first required table that is
// missing from the public schema.
func CheckSchema(ctx context.Context, pool *pgxpool.Pool) error {
	rows, err := pool.Query(ctx, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'public'
		  AND table_name = ANY($1)`, RequiredTables)
	if err != nil {
		return fmt.Errorf("migrations: check schema: %w", err)
	}
	defer rows.Close()

	present := make(map[string]bool, len(RequiredTables))
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("migrations: check schema: %w", err)
		}
		present[name] = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("migrations: check schema: %w", err)
	}

	if missing := Missing(present); len(missing) > 0 {
		return fmt.Errorf("migrations: required table %q is missing", missing[0])
	}
	return nil
}

// Missing returns the required tables absent from present, in declaration order.
func Missing(present map[string]bool) []string {
	var out []string
	for _, t := range RequiredTables {
		if !present[t] {
			out = append(out, t)
		}
	}
	return out
}

func applied(ctx context.Context, conn *pgx.Conn) (map[string]bool, error) {
	rows, err := conn.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	versions, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(versions))
	for _, v := range versions {
		seen[v] = true
	}
	return seen, nil
}

func load() ([]migration, error) {
	entries, err := sqlFiles.ReadDir(".")
	if err != nil {
		return nil, fmt.Errorf("read embedded dir: %w", err)
	}

	out := make([]migration, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		body, err := sqlFiles.ReadFile(e.Name())
		if err != nil {
			return nil, fmt.Errorf("read %q: %w", e.Name(), err)
		}
		out = append(out, migration{version: e.Name(), sql: string(body)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].version < out[j].version })
	return out, nil
}

func apply(ctx context.Context, conn *pgx.Conn, m migration) error {
	return pgx.BeginFunc(ctx, conn, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("exec sql: %w", err)
		}
		if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, m.version); err != nil {
			return fmt.Errorf("record version: %w", err)
		}
		return nil
	})
}
