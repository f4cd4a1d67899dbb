package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"TuxLetter/internal/domain"
	"TuxLetter/internal/ports"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// PostgresArchive keeps a history of delivered items in Postgres.
type PostgresArchive struct {
	db  *sql.DB
	now func() time.Time
}

var _ ports.ItemArchive = (*PostgresArchive)(nil)

// NewPostgresArchive wires a sql.DB implementation.
func NewPostgresArchive(db *sql.DB) *PostgresArchive {
	return &PostgresArchive{db: db, now: time.Now}
}

// Migrate applies the embedded schema migrations.
func (r *PostgresArchive) Migrate() error {
	if r.db == nil {
		return nil
	}

	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	driver, err := postgres.WithInstance(r.db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create postgres driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// Record inserts the delivered items; links that are already archived are kept as they are.
func (r *PostgresArchive) Record(ctx context.Context, runID string, items []domain.Item) error {
	if r.db == nil || len(items) == 0 {
		return nil
	}

	query, args, err := recordQuery(runID, items, r.now().UTC())
	if err != nil {
		return fmt.Errorf("build archive insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("archive items: %w", err)
	}
	return nil
}

func recordQuery(runID string, items []domain.Item, at time.Time) (string, []interface{}, error) {
	builder := sq.Insert("delivered_items").
		Columns("link", "run_id", "source", "item_type", "title", "author", "item_date", "delivered_at").
		PlaceholderFormat(sq.Dollar)

	for _, item := range items {
		builder = builder.Values(item.Link, runID, item.Source, string(item.Type), item.Title, item.Author, item.Date, at)
	}

	return builder.Suffix("ON CONFLICT (link) DO NOTHING").ToSql()
}
