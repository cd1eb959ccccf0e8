// Package repository implements core.TransactionRepository over memory and SQL stores.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/mikey/mail-ledger/internal/core"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// storedTimeLayout keeps lexical and chronological order identical for text columns
const storedTimeLayout = "2006-01-02T15:04:05.000000Z"

var readTimeLayouts = []string{
	storedTimeLayout,
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05",
}

const transactionColumns = `id, date, value, currency, business, business_type, bank, expense_priority, expense_type, body`

// dialect captures what differs between the database/sql backends
type dialect struct {
	name        string
	bindTime    func(time.Time) interface{}
	isDuplicate func(error) bool
}

// sqlRepository is the database/sql implementation shared by SQLite and MySQL.
// Both drivers use ? placeholders.
type sqlRepository struct {
	db      *sql.DB
	logger  *zap.Logger
	dialect dialect
}

func (r *sqlRepository) Create(ctx context.Context, tx *core.Transaction) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions (`+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		tx.ID,
		r.dialect.bindTime(tx.Date),
		tx.Value.StringFixed(2),
		tx.Currency,
		tx.Business,
		nullString(tx.BusinessType),
		string(tx.Bank),
		nullPriority(tx.ExpensePriority),
		nullExpenseType(tx.ExpenseType),
		tx.Body,
	)
	if err != nil {
		if r.dialect.isDuplicate(err) {
			return core.ErrDuplicateTransaction
		}
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

func (r *sqlRepository) Get(ctx context.Context, id string) (*core.Transaction, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE id = ?
	`, id)

	tx, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to query transaction: %w", err)
	}
	return tx, nil
}

func (r *sqlRepository) List(ctx context.Context, query core.TransactionQuery) ([]*core.Transaction, error) {
	var where []string
	var args []interface{}
	if query.Start != nil {
		where = append(where, "date >= ?")
		args = append(args, r.dialect.bindTime(*query.Start))
	}
	if query.End != nil {
		where = append(where, "date <= ?")
		args = append(args, r.dialect.bindTime(*query.End))
	}
	if query.Bank != nil {
		where = append(where, "bank = ?")
		args = append(args, string(*query.Bank))
	}

	stmt := "SELECT " + transactionColumns + " FROM transactions"
	if len(where) > 0 {
		stmt += " WHERE " + strings.Join(where, " AND ")
	}
	stmt += " ORDER BY date DESC, id ASC LIMIT ? OFFSET ?"

	limit := query.Limit
	if limit <= 0 {
		limit = math.MaxInt32
	}
	args = append(args, limit, query.Offset)

	rows, err := r.db.QueryContext(ctx, stmt, args...)
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

func (r *sqlRepository) UpdateClassification(ctx context.Context, id string, priority *core.ExpensePriority, expenseType *core.ExpenseType) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE transactions
		SET expense_priority = COALESCE(?, expense_priority),
		    expense_type = COALESCE(?, expense_type)
		WHERE id = ?
	`, nullPriority(priority), nullExpenseType(expenseType), id)
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}
	return r.requireRow(ctx, res, id)
}

func (r *sqlRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrTransactionNotFound
	}
	return nil
}

func (r *sqlRepository) Close() error {
	if err := r.db.Close(); err != nil {
		r.logger.Error("Failed to close database", zap.String("driver", r.dialect.name), zap.Error(err))
		return err
	}
	return nil
}

// requireRow maps an UPDATE that touched nothing to ErrTransactionNotFound.
// MySQL reports zero affected rows when values are unchanged, so existence is rechecked.
func (r *sqlRepository) requireRow(ctx context.Context, res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}
	var one int
	err = r.db.QueryRowContext(ctx, `SELECT 1 FROM transactions WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ErrTransactionNotFound
	}
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(row rowScanner) (*core.Transaction, error) {
	var (
		tx                                  core.Transaction
		date, value, bank                   string
		businessType, priority, expenseType sql.NullString
	)
	err := row.Scan(&tx.ID, &date, &value, &tx.Currency, &tx.Business,
		&businessType, &bank, &priority, &expenseType, &tx.Body)
	if err != nil {
		return nil, err
	}

	if tx.Date, err = parseStoredTime(date); err != nil {
		return nil, err
	}
	if tx.Value, err = decimal.NewFromString(value); err != nil {
		return nil, fmt.Errorf("invalid stored value %q: %w", value, err)
	}
	tx.Bank = core.Bank(bank)
	if businessType.Valid {
		tx.BusinessType = &businessType.String
	}
	if priority.Valid {
		p := core.ExpensePriority(priority.String)
		tx.ExpensePriority = &p
	}
	if expenseType.Valid {
		t := core.ExpenseType(expenseType.String)
		tx.ExpenseType = &t
	}
	return &tx, nil
}

func parseStoredTime(s string) (time.Time, error) {
	for _, layout := range readTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid stored date %q", s)
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullPriority(p *core.ExpensePriority) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*p), Valid: true}
}

func nullExpenseType(t *core.ExpenseType) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*t), Valid: true}
}
