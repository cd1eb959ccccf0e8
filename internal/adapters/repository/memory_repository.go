package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/mikey/mail-ledger/internal/core"
	"go.uber.org/zap"
)

// MemoryRepository is an in-memory implementation of core.TransactionRepository
type MemoryRepository struct {
	transactions map[string]*core.Transaction
	mu           sync.RWMutex
	logger       *zap.Logger
}

// NewMemoryRepository creates a new in-memory repository
func NewMemoryRepository(logger *zap.Logger) *MemoryRepository {
	return &MemoryRepository{
		transactions: make(map[string]*core.Transaction),
		logger:       logger,
	}
}

// Create stores a copy of tx
func (r *MemoryRepository) Create(ctx context.Context, tx *core.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.transactions[tx.ID]; ok {
		return core.ErrDuplicateTransaction
	}
	r.transactions[tx.ID] = cloneTransaction(tx)
	return nil
}

// Get retrieves a transaction by id
func (r *MemoryRepository) Get(ctx context.Context, id string) (*core.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tx, ok := r.transactions[id]
	if !ok {
		return nil, core.ErrTransactionNotFound
	}
	return cloneTransaction(tx), nil
}

// List returns matching transactions, newest first
func (r *MemoryRepository) List(ctx context.Context, query core.TransactionQuery) ([]*core.Transaction, error) {
	r.mu.RLock()
	matches := make([]*core.Transaction, 0, len(r.transactions))
	for _, tx := range r.transactions {
		if query.Start != nil && tx.Date.Before(*query.Start) {
			continue
		}
		if query.End != nil && tx.Date.After(*query.End) {
			continue
		}
		if query.Bank != nil && tx.Bank != *query.Bank {
			continue
		}
		matches = append(matches, cloneTransaction(tx))
	}
	r.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Date.Equal(matches[j].Date) {
			return matches[i].ID < matches[j].ID
		}
		return matches[i].Date.After(matches[j].Date)
	})

	if query.Offset >= len(matches) {
		return []*core.Transaction{}, nil
	}
	matches = matches[query.Offset:]
	if query.Limit > 0 && query.Limit < len(matches) {
		matches = matches[:query.Limit]
	}
	return matches, nil
}

// UpdateClassification sets the non-nil expense fields
func (r *MemoryRepository) UpdateClassification(ctx context.Context, id string, priority *core.ExpensePriority, expenseType *core.ExpenseType) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, ok := r.transactions[id]
	if !ok {
		return core.ErrTransactionNotFound
	}
	if priority != nil {
		p := *priority
		tx.ExpensePriority = &p
	}
	if expenseType != nil {
		t := *expenseType
		tx.ExpenseType = &t
	}
	return nil
}

// Delete removes a transaction
func (r *MemoryRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.transactions[id]; !ok {
		return core.ErrTransactionNotFound
	}
	delete(r.transactions, id)
	r.logger.Debug("Deleted transaction", zap.String("id", id))
	return nil
}

// Close is a no-op
func (r *MemoryRepository) Close() error {
	return nil
}

func cloneTransaction(tx *core.Transaction) *core.Transaction {
	c := *tx
	if tx.BusinessType != nil {
		v := *tx.BusinessType
		c.BusinessType = &v
	}
	if tx.ExpensePriority != nil {
		v := *tx.ExpensePriority
		c.ExpensePriority = &v
	}
	if tx.ExpenseType != nil {
		v := *tx.ExpenseType
		c.ExpenseType = &v
	}
	return &c
}
