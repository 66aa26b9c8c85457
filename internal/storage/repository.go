package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"contabils/internal/core"
	"contabils/internal/ports"

	_ "modernc.org/sqlite"
)

// SQLiteRepository stores the catalog and ledger in a local SQLite file.
type SQLiteRepository struct {
	db      *sql.DB
	version uint
}

var _ ports.Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := migrateSQLite(dsn)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, version: version}, nil
}

// SchemaVersion is the migration version the database was left at.
func (r *SQLiteRepository) SchemaVersion() uint { return r.version }

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	var one int
	if err := r.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}
	return nil
}

func (r *SQLiteRepository) ListCategories(ctx context.Context, kind core.Kind) ([]core.Category, error) {
	query := `SELECT name, emoji, kind, is_active FROM categories WHERE is_active = 1`
	var args []any
	if kind != "" {
		query += ` AND (kind = ? OR kind = 'both')`
		args = append(args, string(kind))
	}
	query += ` ORDER BY name ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
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

func (r *SQLiteRepository) CreateCategory(ctx context.Context, c core.Category) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (name, emoji, kind, is_active) VALUES (?, ?, ?, 1) ON CONFLICT(name) DO NOTHING`,
		c.Name, c.Emoji, string(c.Kind))
	if err != nil {
		return fmt.Errorf("create category: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("create category: %w", err)
	}
	if n == 0 {
		return core.ErrDuplicateName
	}
	return nil
}

func (r *SQLiteRepository) SeedCategories(ctx context.Context, cats []core.Category) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed: %w", err)
	}
	defer tx.Rollback()

	inserted := 0
	for _, c := range cats {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO categories (name, emoji, kind, is_active) VALUES (?, ?, ?, 1) ON CONFLICT(name) DO NOTHING`,
			c.Name, c.Emoji, string(c.Kind))
		if err != nil {
			return fmt.Errorf("seed category %s: %w", c.Name, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seed: %w", err)
	}
	slog.InfoContext(ctx, "Category catalog seeded", "inserted", inserted, "catalog_size", len(cats))
	return nil
}

func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t core.Transaction) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (owner_id, type, amount_cents, category, description, date_iso, month_key)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.OwnerID, string(t.Type), t.Amount.Cents, t.Category, t.Description, t.Date, t.MonthKey)
	if err != nil {
		return 0, fmt.Errorf("create transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read transaction id: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved to SQLite",
		"id", id,
		"type", t.Type,
		"amount_cents", t.Amount.Cents,
		"month_key", t.MonthKey)

	return id, nil
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context, q ports.TransactionQuery) ([]core.Transaction, error) {
	query := `SELECT id, owner_id, type, amount_cents, category, description, date_iso, month_key
		FROM transactions WHERE owner_id = ? AND month_key = ?`
	args := []any{q.OwnerID, q.Month}
	if q.Category != "" {
		query += ` AND category = ?`
		args = append(args, q.Category)
	}
	if q.Order == ports.Chronological {
		query += ` ORDER BY date_iso ASC, id ASC`
	} else {
		query += ` ORDER BY date_iso DESC, id DESC`
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		var t core.Transaction
		var typ string
		if err := rows.Scan(&t.ID, &t.OwnerID, &typ, &t.Amount.Cents, &t.Category, &t.Description, &t.Date, &t.MonthKey); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t.Type = core.TxType(typ)
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, ownerID string, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if n == 0 {
		return core.ErrNotFoundOrForbidden
	}
	return nil
}

func (r *SQLiteRepository) MonthTotals(ctx context.Context, ownerID, month string) (int64, int64, error) {
	var income, expense int64
	err := r.db.QueryRowContext(ctx,
		`SELECT
			COALESCE(SUM(CASE WHEN type = 'income' THEN amount_cents END), 0),
			COALESCE(SUM(CASE WHEN type = 'expense' THEN amount_cents END), 0)
		 FROM transactions WHERE owner_id = ? AND month_key = ?`,
		ownerID, month).Scan(&income, &expense)
	if err != nil {
		return 0, 0, fmt.Errorf("month totals: %w", err)
	}
	return income, expense, nil
}
