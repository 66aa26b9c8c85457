// Package postgres stores the catalog and ledger in PostgreSQL through a
// pgx connection pool.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"

	"contabils/internal/core"
	"contabils/internal/ports"
	"contabils/internal/storage"

	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type Repository struct {
	pool *pgxpool.Pool
}

var _ ports.Store = (*Repository)(nil)

// New connects, migrates and returns a repository. maxConns <= 0 keeps the
// pgx default.
func New(ctx context.Context, databaseURL string, maxConns int) (*Repository, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = int32(maxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(databaseURL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{pool: pool}, nil
}

func runMigrations(databaseURL string) error {
	// Separate connection so the migrator can close it without touching the pool
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("open migration database: %w", err)
	}
	driver, err := pgxmigrate.WithInstance(db, &pgxmigrate.Config{})
	if err != nil {
		db.Close()
		return fmt.Errorf("create pgx driver: %w", err)
	}
	_, err = storage.Migrate(migrationsFS, "migrations", "pgx5", driver)
	return err
}

func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	if err := r.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}
	return nil
}

func (r *Repository) ListCategories(ctx context.Context, kind core.Kind) ([]core.Category, error) {
	query := `SELECT name, emoji, kind, is_active FROM categories WHERE is_active = TRUE`
	var args []any
	if kind != "" {
		query += ` AND (kind = $1 OR kind = 'both')`
		args = append(args, string(kind))
	}
	query += ` ORDER BY name COLLATE "C" ASC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var c core.Category
		var k string
		if err := rows.Scan(&c.Name, &c.Emoji, &k, &c.IsActive); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		c.Kind = core.Kind(k)
		out = append(out, c)
	}
	return out, rows.Err()
}

const insertCategory = `INSERT INTO categories (name, emoji, kind, is_active) VALUES ($1, $2, $3, TRUE) ON CONFLICT (name) DO NOTHING`

func (r *Repository) CreateCategory(ctx context.Context, c core.Category) error {
	tag, err := r.pool.Exec(ctx, insertCategory, c.Name, c.Emoji, string(c.Kind))
	if err != nil {
		return fmt.Errorf("create category: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrDuplicateName
	}
	return nil
}

func (r *Repository) SeedCategories(ctx context.Context, cats []core.Category) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin seed: %w", err)
	}
	defer tx.Rollback(ctx)

	var inserted int64
	for _, c := range cats {
		tag, err := tx.Exec(ctx, insertCategory, c.Name, c.Emoji, string(c.Kind))
		if err != nil {
			return fmt.Errorf("seed category %s: %w", c.Name, err)
		}
		inserted += tag.RowsAffected()
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit seed: %w", err)
	}
	slog.InfoContext(ctx, "Category catalog seeded", "inserted", inserted, "catalog_size", len(cats))
	return nil
}

func (r *Repository) CreateTransaction(ctx context.Context, t core.Transaction) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO transactions (owner_id, type, amount_cents, category, description, date_iso, month_key)
		 VALUES ($1, $2, $3, $4, $5, $6::date, $7) RETURNING id`,
		t.OwnerID, string(t.Type), t.Amount.Cents, t.Category, t.Description, t.Date, t.MonthKey).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved to Postgres",
		"id", id,
		"type", t.Type,
		"amount_cents", t.Amount.Cents,
		"month_key", t.MonthKey)

	return id, nil
}

func (r *Repository) ListTransactions(ctx context.Context, q ports.TransactionQuery) ([]core.Transaction, error) {
	query := `SELECT id, owner_id, type, amount_cents, category, description, to_char(date_iso, 'YYYY-MM-DD'), month_key
		FROM transactions WHERE owner_id = $1 AND month_key = $2`
	args := []any{q.OwnerID, q.Month}
	if q.Category != "" {
		query += ` AND category = $3`
		args = append(args, q.Category)
	}
	if q.Order == ports.Chronological {
		query += ` ORDER BY date_iso ASC, id ASC`
	} else {
		query += ` ORDER BY date_iso DESC, id DESC`
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		var t core.Transaction
		var typ string
		var desc sql.NullString
		if err := rows.Scan(&t.ID, &t.OwnerID, &typ, &t.Amount.Cents, &t.Category, &desc, &t.Date, &t.MonthKey); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t.Type = core.TxType(typ)
		t.Description = desc.String
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *Repository) DeleteTransaction(ctx context.Context, ownerID string, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM transactions WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFoundOrForbidden
	}
	return nil
}

func (r *Repository) MonthTotals(ctx context.Context, ownerID, month string) (int64, int64, error) {
	var income, expense int64
	err := r.pool.QueryRow(ctx,
		`SELECT
			COALESCE(SUM(amount_cents) FILTER (WHERE type = 'income'), 0)::bigint,
			COALESCE(SUM(amount_cents) FILTER (WHERE type = 'expense'), 0)::bigint
		 FROM transactions WHERE owner_id = $1 AND month_key = $2`,
		ownerID, month).Scan(&income, &expense)
	if err != nil {
		return 0, 0, fmt.Errorf("month totals: %w", err)
	}
	return income, expense, nil
}
