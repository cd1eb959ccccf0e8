package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
)

// mysqlDuplicateEntry is ER_DUP_ENTRY
const mysqlDuplicateEntry = 1062

// MySQLRepository stores transactions in MySQL
type MySQLRepository struct {
	sqlRepository
}

// NewMySQLRepository connects to dsn and creates the schema
func NewMySQLRepository(dsn string, logger *zap.Logger) (*MySQLRepository, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	// Create table if it doesn't exist
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS transactions (
			id CHAR(64) PRIMARY KEY,
			date DATETIME(6) NOT NULL,
			value DECIMAL(15,2) NOT NULL,
			currency VARCHAR(8) NOT NULL,
			business VARCHAR(255) NOT NULL,
			business_type VARCHAR(255) NULL,
			bank VARCHAR(32) NOT NULL,
			expense_priority VARCHAR(16) NULL,
			expense_type VARCHAR(32) NULL,
			body MEDIUMTEXT NOT NULL,
			INDEX idx_transactions_date (date)
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &MySQLRepository{sqlRepository{
		db:     db,
		logger: logger,
		dialect: dialect{
			name: "mysql",
			bindTime: func(t time.Time) interface{} {
				return t.UTC()
			},
			isDuplicate: isMySQLDuplicate,
		},
	}}, nil
}

func isMySQLDuplicate(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry
}
