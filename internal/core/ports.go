package core

import (
	"context"
	"time"

	"github.com/mikey/mail-ledger/internal/imapquery"
	"github.com/shopspring/decimal"
)

// MailStoreState is the connection lifecycle of a MailStore
type MailStoreState int

const (
	StateDisconnected MailStoreState = iota
	StateConnected
	StateMailboxSelected
)

func (s MailStoreState) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateMailboxSelected:
		return "mailbox_selected"
	default:
		return "disconnected"
	}
}

// MailStore is a single, exclusively owned connection to a mail server
type MailStore interface {
	// Connect authenticates against the server
	Connect(ctx context.Context) error

	// SelectMailbox opens a mailbox for searching
	SelectMailbox(ctx context.Context, name string) error

	// Search returns the ids of messages matching the criteria
	Search(ctx context.Context, criteria imapquery.Criteria) ([]uint32, error)

	// Fetch retrieves each id independently, skipping ids that fail
	Fetch(ctx context.Context, ids []uint32) ([]*RawMessage, error)

	// Disconnect logs out. It is a no-op when already disconnected.
	Disconnect() error

	// State reports the current lifecycle state
	State() MailStoreState
}

// MailStoreFactory opens a fresh MailStore for one ingestion run
type MailStoreFactory func() (MailStore, error)

// BodyExtractor turns a raw message into plain text
type BodyExtractor interface {
	Extract(msg *RawMessage) (string, error)
}

// BankParser extracts transaction fields from one bank's notification template
type BankParser interface {
	Bank() Bank
	ParseBusiness(body string) (string, error)
	ParseBusinessType(body string) *string
	ParseValueAndCurrency(body string) (decimal.Decimal, string, error)
	ParseDate(body string, dateHeader string) (time.Time, error)
}

// BankSource describes how to search the mailbox for one bank
type BankSource struct {
	Bank    Bank
	Sender  string
	Subject string
}

// ParserRegistry dispatches messages to bank parsers by sender
type ParserRegistry interface {
	Lookup(from string) (BankParser, bool)
	Parser(bank Bank) (BankParser, bool)
	Sources() []BankSource
}

// TransactionRepository persists transactions keyed by their deterministic id
type TransactionRepository interface {
	// Create stores a new transaction or returns ErrDuplicateTransaction
	Create(ctx context.Context, tx *Transaction) error

	// Get retrieves a transaction by id
	Get(ctx context.Context, id string) (*Transaction, error)

	// List returns transactions ordered by date, newest first
	List(ctx context.Context, query TransactionQuery) ([]*Transaction, error)

	// UpdateClassification sets the user-assigned expense fields
	UpdateClassification(ctx context.Context, id string, priority *ExpensePriority, expenseType *ExpenseType) error

	// Delete removes a transaction
	Delete(ctx context.Context, id string) error

	// Close releases the underlying storage
	Close() error
}

// MerchantClassifier proposes a merchant category when the bank does not report one
type MerchantClassifier interface {
	ClassifyMerchant(ctx context.Context, tx *Transaction) (string, error)
}
