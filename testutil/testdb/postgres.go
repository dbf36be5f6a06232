// Package testdb starts a disposable PostgreSQL with the ledger schema applied
// for integration tests.
package testdb

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const defaultImage = "postgres:16-alpine"

// DB is a running container plus a pool connected to it
type DB struct {
	Pool    *pgxpool.Pool
	ConnStr string

	container *postgres.PostgresContainer
}

type settings struct {
	image   string
	name    string
	timeout time.Duration
}

// Option tweaks the container
type Option func(*settings)

// WithImage overrides the PostgreSQL image
func WithImage(image string) Option {
	return func(s *settings) { s.image = image }
}

// WithStartupTimeout bounds how long Start waits for the server
func WithStartupTimeout(d time.Duration) Option {
	return func(s *settings) { s.timeout = d }
}

// Start runs every migrations/*.up.sql as an init script and returns a ready pool
func Start(ctx context.Context, opts ...Option) (*DB, error) {
	s := settings{image: defaultImage, name: "grandlivre_test", timeout: 2 * time.Minute}
	for _, opt := range opts {
		opt(&s)
	}

	scripts, err := migrations()
	if err != nil {
		return nil, err
	}

	container, err := postgres.Run(ctx, s.image,
		postgres.WithDatabase(s.name),
		postgres.WithUsername("ledger"),
		postgres.WithPassword("ledger"),
		postgres.WithInitScripts(scripts...),
		testcontainers.WithWaitStrategy(
			// the server restarts once after init scripts
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(s.timeout),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("start postgres: %w", err)
	}

	db := &DB{container: container}
	if err := db.connect(ctx); err != nil {
		return nil, errors.Join(err, container.Terminate(ctx))
	}
	return db, nil
}

func (db *DB) connect(ctx context.Context) error {
	connStr, err := db.container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return fmt.Errorf("connection string: %w", err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return fmt.Errorf("open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("ping: %w", err)
	}

	db.Pool = pool
	db.ConnStr = connStr
	return nil
}

// tables in dependency order, dependents first
var tables = []string{
	"bank_statement_lines", "bank_statements",
	"payment_term_lines", "payment_terms", "payments",
	"budget_lines", "budgets", "budget_posts",
	"analytic_lines", "analytic_accounts",
	"fiscal_positions", "fiscal_periods", "fiscal_years",
	"partial_settlements", "entry_lines", "full_settlements", "entries",
	"sequences", "taxes", "journals", "accounts",
}

// Reset empties every table and restarts identities
func (db *DB) Reset(ctx context.Context) error {
	stmt := "TRUNCATE " + strings.Join(tables, ", ") + " RESTART IDENTITY CASCADE"
	if _, err := db.Pool.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	return nil
}

// Close releases the pool and removes the container
func (db *DB) Close(ctx context.Context) error {
	if db.Pool != nil {
		db.Pool.Close()
	}
	if db.container == nil {
		return nil
	}
	return db.container.Terminate(ctx)
}

// migrations lists the repository's up migrations in version order
func migrations() ([]string, error) {
	_, self, _, ok := runtime.Caller(0)
	if !ok {
		return nil, errors.New("locate testdb source")
	}
	root := filepath.Join(filepath.Dir(self), "..", "..")

	scripts, err := filepath.Glob(filepath.Join(root, "migrations", "*.up.sql"))
	if err != nil {
		return nil, fmt.Errorf("glob migrations: %w", err)
	}
	if len(scripts) == 0 {
		return nil, fmt.Errorf("no migrations under %s", filepath.Join(root, "migrations"))
	}
	sort.Strings(scripts)
	return scripts, nil
}
