package core

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionID derives the dedup key from bank, value and timestamp.
// Merchant name is not part of the key.
func TransactionID(bank Bank, value decimal.Decimal, date time.Time) string {
	key := strings.Join([]string{
		string(bank),
		value.StringFixed(2),
		date.UTC().Format(time.RFC3339Nano),
	}, "|")
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// AssignID sets tx.ID from its identity fields
func AssignID(tx *Transaction) {
	tx.ID = TransactionID(tx.Bank, tx.Value, tx.Date)
}
