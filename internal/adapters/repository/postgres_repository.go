package repository

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mikey/mail-ledger/internal/core"
	"go.uber.org/zap"
)

// pgUniqueViolation is SQLSTATE unique_violation
const pgUniqueViolation = "23505"

const pgSelectColumns = `id, to_char(date AT TIME ZONE 'UTC', 'YYYY-MM-DD"T"HH24:MI:SS.US"Z"'), value::text, currency, business, business_type, bank, expense_priority, expense_type, body`

// PostgresRepository stores transactions in PostgreSQL through a pgx pool
type PostgresRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresRepository connects to connString and creates the schema
func NewPostgresRepository(ctx context.Context, connString string, logger *zap.Logger) (*PostgresRepository, error) {
	if connString == "" {
		return nil, fmt.Errorf("storage.postgres_url not configured")
	}

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS transactions (
			id TEXT PRIMARY KEY,
			date TIMESTAMPTZ NOT NULL,
			value NUMERIC(15,2) NOT NULL,
			currency TEXT NOT NULL,
			business TEXT NOT NULL,
			business_type TEXT,
			bank TEXT NOT NULL,
			expense_priority TEXT,
			expense_type TEXT,
			body TEXT NOT NULL
		)
	`)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	_, err = pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_transactions_date ON transactions(date)`)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	return &PostgresRepository{pool: pool, logger: logger}, nil
}

func (r *PostgresRepository) Create(ctx context.Context, tx *core.Transaction) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO transactions (`+transactionColumns+`)
		VALUES ($1, $2, $3::numeric, $4, $5, $6, $7, $8, $9, $10)
	`,
		tx.ID,
		tx.Date.UTC(),
		tx.Value.StringFixed(2),
		tx.Currency,
		tx.Business,
		tx.BusinessType,
		string(tx.Bank),
		nullPriority(tx.ExpensePriority),
		nullExpenseType(tx.ExpenseType),
		tx.Body,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return core.ErrDuplicateTransaction
		}
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*core.Transaction, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+pgSelectColumns+` FROM transactions WHERE id = $1`, id)
	tx, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to query transaction: %w", err)
	}
	return tx, nil
}

func (r *PostgresRepository) List(ctx context.Context, query core.TransactionQuery) ([]*core.Transaction, error) {
	var where []string
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if query.Start != nil {
		where = append(where, "date >= "+arg(query.Start.UTC()))
	}
	if query.End != nil {
		where = append(where, "date <= "+arg(query.End.UTC()))
	}
	if query.Bank != nil {
		where = append(where, "bank = "+arg(string(*query.Bank)))
	}

	limit := query.Limit
	if limit <= 0 {
		limit = math.MaxInt32
	}

	stmt := "SELECT " + pgSelectColumns + " FROM transactions"
	if len(where) > 0 {
		stmt += " WHERE " + strings.Join(where, " AND ")
	}
	stmt += " ORDER BY date DESC, id ASC LIMIT " + arg(limit) + " OFFSET " + arg(query.Offset)

	rows, err := r.pool.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	out := []*core.Transaction{}
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) UpdateClassification(ctx context.Context, id string, priority *core.ExpensePriority, expenseType *core.ExpenseType) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE transactions
		SET expense_priority = COALESCE($1, expense_priority),
		    expense_type = COALESCE($2, expense_type)
		WHERE id = $3
	`, nullPriority(priority), nullExpenseType(expenseType), id)
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrTransactionNotFound
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM transactions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrTransactionNotFound
	}
	return nil
}

func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}
