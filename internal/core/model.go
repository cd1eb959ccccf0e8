package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Bank identifies the institution that sent a notification
type Bank string

const (
	BankBAC       Bank = "BAC"
	BankPromerica Bank = "Promerica"
)

// Banks lists every supported bank in search order
var Banks = []Bank{BankBAC, BankPromerica}

// ParseBank resolves a bank tag case-insensitively
func ParseBank(s string) (Bank, bool) {
	for _, b := range Banks {
		if strings.EqualFold(string(b), strings.TrimSpace(s)) {
			return b, true
		}
	}
	return "", false
}

// ExpensePriority is a user-assigned priority bucket
type ExpensePriority string

const (
	PriorityMust ExpensePriority = "MUST"
	PriorityWant ExpensePriority = "WANT"
	PriorityNeed ExpensePriority = "NEED"
)

// ExpenseType is a user-assigned spending category
type ExpenseType string

const (
	ExpenseTaxes         ExpenseType = "TAXES"
	ExpenseGroceries     ExpenseType = "GROCERIES"
	ExpenseEatingOut     ExpenseType = "EATING_OUT"
	ExpenseEntertainment ExpenseType = "ENTERTAINMENT"
	ExpenseTransport     ExpenseType = "TRANSPORT"
	ExpenseSelfCare      ExpenseType = "SELF_CARE"
	ExpensePet           ExpenseType = "PET"
	ExpenseGift          ExpenseType = "GIFT"
)

var expensePriorities = []ExpensePriority{PriorityMust, PriorityWant, PriorityNeed}

var expenseTypes = []ExpenseType{
	ExpenseTaxes, ExpenseGroceries, ExpenseEatingOut, ExpenseEntertainment,
	ExpenseTransport, ExpenseSelfCare, ExpensePet, ExpenseGift,
}

// ParseExpensePriority validates a priority name
func ParseExpensePriority(s string) (ExpensePriority, bool) {
	for _, p := range expensePriorities {
		if strings.EqualFold(string(p), strings.TrimSpace(s)) {
			return p, true
		}
	}
	return "", false
}

// ParseExpenseType validates an expense type name
func ParseExpenseType(s string) (ExpenseType, bool) {
	for _, t := range expenseTypes {
		if strings.EqualFold(string(t), strings.TrimSpace(s)) {
			return t, true
		}
	}
	return "", false
}

// RawMessage is a message as fetched from the mail store. It is never persisted.
type RawMessage struct {
	UID     uint32
	From    string
	Subject string
	Date    string
	Literal []byte
}

// Transaction is the persisted record extracted from a notification
type Transaction struct {
	ID              string
	Date            time.Time
	Value           decimal.Decimal
	Currency        string
	Business        string
	BusinessType    *string
	Bank            Bank
	ExpensePriority *ExpensePriority
	ExpenseType     *ExpenseType
	Body            string
}

// TransactionQuery bounds a repository listing
type TransactionQuery struct {
	Start  *time.Time
	End    *time.Time
	Bank   *Bank
	Offset int
	Limit  int
}

// BatchSummary counts the outcome of one ingestion run
type BatchSummary struct {
	Fetched      int `json:"fetched"`
	Parsed       int `json:"parsed"`
	Created      int `json:"created"`
	Duplicates   int `json:"duplicates"`
	Failed       int `json:"failed"`
	SearchErrors int `json:"search_errors"`
}

// Add folds another summary into s
func (s *BatchSummary) Add(o BatchSummary) {
	s.Fetched += o.Fetched
	s.Parsed += o.Parsed
	s.Created += o.Created
	s.Duplicates += o.Duplicates
	s.Failed += o.Failed
	s.SearchErrors += o.SearchErrors
}

// Outcome is the result of ingesting a single message
type Outcome int

const (
	OutcomeFailed Outcome = iota
	OutcomeCreated
	OutcomeDuplicate
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeDuplicate:
		return "duplicate"
	default:
		return "failed"
	}
}
