package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mikey/mail-ledger/internal/imapquery"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// fakeStore serves canned search results keyed by sender
type fakeStore struct {
	state       MailStoreState
	connectErr  error
	searchErrs  map[string]error
	results     map[string][]uint32
	messages    map[uint32]*RawMessage
	queries     []string
	disconnects int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		searchErrs: map[string]error{},
		results:    map[string][]uint32{},
		messages:   map[uint32]*RawMessage{},
	}
}

func (f *fakeStore) add(sender string, msg *RawMessage) {
	msg.From = sender
	f.results[sender] = append(f.results[sender], msg.UID)
	f.messages[msg.UID] = msg
}

func (f *fakeStore) Connect(context.Context) error {
	if f.connectErr != nil {
		return f.connectErr
	}
	f.state = StateConnected
	return nil
}

func (f *fakeStore) SelectMailbox(context.Context, string) error {
	if f.state == StateDisconnected {
		return ErrNotConnected
	}
	f.state = StateMailboxSelected
	return nil
}

func (f *fakeStore) Search(_ context.Context, c imapquery.Criteria) ([]uint32, error) {
	if f.state != StateMailboxSelected {
		return nil, ErrMailboxNotSelected
	}
	q := c.Build()
	f.queries = append(f.queries, q)
	for sender, err := range f.searchErrs {
		if strings.Contains(q, imapquery.Quote(sender)) {
			return nil, err
		}
	}
	for sender, ids := range f.results {
		if strings.Contains(q, imapquery.Quote(sender)) {
			return ids, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) Fetch(_ context.Context, ids []uint32) ([]*RawMessage, error) {
	if f.state != StateMailboxSelected {
		return nil, ErrMailboxNotSelected
	}
	var out []*RawMessage
	for _, id := range ids {
		if m, ok := f.messages[id]; ok {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeStore) Disconnect() error {
	f.disconnects++
	f.state = StateDisconnected
	return nil
}

func (f *fakeStore) State() MailStoreState { return f.state }

// literalExtractor treats the literal as the body
type literalExtractor struct{}

func (literalExtractor) Extract(msg *RawMessage) (string, error) {
	body := string(msg.Literal)
	switch body {
	case "BROKEN":
		return "", errors.New("malformed mime")
	case "PANIC":
		panic("boom")
	}
	return body, nil
}

// lineParser reads "merchant;amount;RFC3339 date" bodies
type lineParser struct{ bank Bank }

func (p lineParser) Bank() Bank { return p.bank }

func (p lineParser) fields(body string) []string {
	return strings.Split(body, ";")
}

func (p lineParser) ParseBusiness(body string) (string, error) {
	f := p.fields(body)
	if f[0] == "" {
		return "", errors.New("no merchant")
	}
	return f[0], nil
}

func (p lineParser) ParseBusinessType(string) *string { return nil }

func (p lineParser) ParseValueAndCurrency(body string) (decimal.Decimal, string, error) {
	f := p.fields(body)
	if len(f) < 2 {
		return decimal.Zero, "", errors.New("no amount")
	}
	v, err := decimal.NewFromString(f[1])
	return v, "CRC", err
}

func (p lineParser) ParseDate(body string, _ string) (time.Time, error) {
	f := p.fields(body)
	if len(f) < 3 {
		return time.Time{}, errors.New("no date")
	}
	return time.Parse(time.RFC3339, f[2])
}

type fakeRegistry struct {
	sources []BankSource
	parsers map[Bank]BankParser
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		sources: []BankSource{
			{Bank: BankBAC, Sender: "bac@example.com"},
			{Bank: BankPromerica, Sender: "promerica@example.com", Subject: "Comprobante de"},
		},
		parsers: map[Bank]BankParser{
			BankBAC:       lineParser{bank: BankBAC},
			BankPromerica: lineParser{bank: BankPromerica},
		},
	}
}

func (r *fakeRegistry) Lookup(from string) (BankParser, bool) {
	for _, s := range r.sources {
		if s.Sender == from {
			return r.parsers[s.Bank], true
		}
	}
	return nil, false
}

func (r *fakeRegistry) Parser(bank Bank) (BankParser, bool) {
	p, ok := r.parsers[bank]
	return p, ok
}

func (r *fakeRegistry) Sources() []BankSource { return r.sources }

type fakeRepo struct {
	mu        sync.Mutex
	rows      map[string]*Transaction
	createErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{rows: map[string]*Transaction{}}
}

func (r *fakeRepo) Create(_ context.Context, tx *Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	if _, ok := r.rows[tx.ID]; ok {
		return ErrDuplicateTransaction
	}
	r.rows[tx.ID] = tx
	return nil
}

func (r *fakeRepo) Get(_ context.Context, id string) (*Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if tx, ok := r.rows[id]; ok {
		return tx, nil
	}
	return nil, ErrTransactionNotFound
}

func (r *fakeRepo) List(context.Context, TransactionQuery) ([]*Transaction, error) { return nil, nil }

func (r *fakeRepo) UpdateClassification(context.Context, string, *ExpensePriority, *ExpenseType) error {
	return nil
}

func (r *fakeRepo) Delete(context.Context, string) error { return nil }
func (r *fakeRepo) Close() error                         { return nil }

type fakeClassifier struct {
	category string
	err      error
	calls    int
}

func (c *fakeClassifier) ClassifyMerchant(context.Context, *Transaction) (string, error) {
	c.calls++
	return c.category, c.err
}

func body(merchant string, amount string, day int) []byte {
	return []byte(fmt.Sprintf("%s;%s;2024-03-%02dT14:35:00-06:00", merchant, amount, day))
}

func testRange(t *testing.T) DateRange {
	r, err := Between(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return r
}

func newTestService(store *fakeStore, repo *fakeRepo, classifier MerchantClassifier, logger *zap.Logger) *IngestionService {
	return NewIngestionService(
		func() (MailStore, error) { return store, nil },
		newFakeRegistry(),
		literalExtractor{},
		repo,
		classifier,
		logger,
		"",
	)
}

func TestRefresh_IsIdempotent(t *testing.T) {
	store := newFakeStore()
	store.add("bac@example.com", &RawMessage{UID: 1, Literal: body("SUPER", "100.00", 2)})
	store.add("bac@example.com", &RawMessage{UID: 2, Literal: body("FARMACIA", "25.50", 3)})
	store.add("promerica@example.com", &RawMessage{UID: 3, Literal: body("AUTOMERCADO", "45123.67", 4)})
	repo := newFakeRepo()
	svc := newTestService(store, repo, nil, zap.NewNop())

	first, err := svc.Refresh(context.Background(), testRange(t))
	require.NoError(t, err)
	assert.Equal(t, BatchSummary{Fetched: 3, Parsed: 3, Created: 3}, *first)
	assert.Len(t, repo.rows, 3)

	second, err := svc.Refresh(context.Background(), testRange(t))
	require.NoError(t, err)
	assert.Equal(t, BatchSummary{Fetched: 3, Parsed: 3, Duplicates: 3}, *second)
	assert.Len(t, repo.rows, 3)

	assert.Equal(t, 2, store.disconnects)
	assert.Equal(t, StateDisconnected, store.State())
}

func TestRefresh_BuildsPerBankCriteria(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, newFakeRepo(), nil, zap.NewNop())

	_, err := svc.Refresh(context.Background(), testRange(t))
	require.NoError(t, err)

	require.Len(t, store.queries, 2)
	assert.Equal(t, `SINCE 01-Mar-2024 BEFORE 01-Apr-2024 FROM "bac@example.com"`, store.queries[0])
	assert.Equal(t, `SINCE 01-Mar-2024 BEFORE 01-Apr-2024 FROM "promerica@example.com" SUBJECT "Comprobante de"`, store.queries[1])
}

func TestRefresh_PartialBatch(t *testing.T) {
	store := newFakeStore()
	for i := 1; i <= 5; i++ {
		msg := &RawMessage{UID: uint32(i), Subject: "Notificacion", Literal: body("SHOP", fmt.Sprintf("%d.00", i), i)}
		if i == 3 {
			msg.Literal = []byte("BROKEN")
		}
		store.add("bac@example.com", msg)
	}
	obs, logs := observer.New(zapcore.DebugLevel)
	svc := newTestService(store, newFakeRepo(), nil, zap.New(obs))

	summary, err := svc.Refresh(context.Background(), testRange(t))
	require.NoError(t, err)
	assert.Equal(t, 5, summary.Fetched)
	assert.Equal(t, 4, summary.Parsed)
	assert.Equal(t, 4, summary.Created)
	assert.Equal(t, 1, summary.Failed)

	failures := logs.FilterMessage("Failed to process message").All()
	require.Len(t, failures, 1)
	fields := failures[0].ContextMap()
	assert.Equal(t, uint32(3), fields["uid"])
	assert.Equal(t, "bac@example.com", fields["from"])
	assert.Equal(t, "Notificacion", fields["subject"])
}

func TestRefresh_PanicIsRecovered(t *testing.T) {
	store := newFakeStore()
	store.add("bac@example.com", &RawMessage{UID: 1, Literal: []byte("PANIC")})
	store.add("bac@example.com", &RawMessage{UID: 2, Literal: body("SHOP", "1.00", 2)})
	svc := newTestService(store, newFakeRepo(), nil, zap.NewNop())

	summary, err := svc.Refresh(context.Background(), testRange(t))
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Created)
}

func TestRefresh_SearchFailureSkipsBank(t *testing.T) {
	store := newFakeStore()
	store.searchErrs["bac@example.com"] = &SearchFailedError{Status: "NO", Info: "bad charset"}
	store.add("promerica@example.com", &RawMessage{UID: 7, Literal: body("AUTOMERCADO", "10.00", 4)})
	svc := newTestService(store, newFakeRepo(), nil, zap.NewNop())

	summary, err := svc.Refresh(context.Background(), testRange(t))
	require.NoError(t, err)
	assert.Equal(t, 1, summary.SearchErrors)
	assert.Equal(t, 1, summary.Created)
}

func TestRefresh_ConnectionErrorPropagates(t *testing.T) {
	store := newFakeStore()
	store.connectErr = &ConnectionError{Op: "dial", Err: errors.New("connection refused")}
	svc := newTestService(store, newFakeRepo(), nil, zap.NewNop())

	_, err := svc.Refresh(context.Background(), testRange(t))
	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, "dial", connErr.Op)
}

func TestRefresh_ConnectionLostMidRunAborts(t *testing.T) {
	store := newFakeStore()
	store.searchErrs["bac@example.com"] = &ConnectionError{Op: "search", Err: errors.New("EOF")}
	store.add("promerica@example.com", &RawMessage{UID: 7, Literal: body("AUTOMERCADO", "10.00", 4)})
	svc := newTestService(store, newFakeRepo(), nil, zap.NewNop())

	summary, err := svc.Refresh(context.Background(), testRange(t))
	require.Error(t, err)
	assert.Equal(t, 0, summary.Created)
	assert.Equal(t, 1, store.disconnects)
}

func TestRefresh_StorageFailureIsCounted(t *testing.T) {
	store := newFakeStore()
	store.add("bac@example.com", &RawMessage{UID: 1, Literal: body("SHOP", "1.00", 2)})
	repo := newFakeRepo()
	repo.createErr = errors.New("disk full")
	svc := newTestService(store, repo, nil, zap.NewNop())

	summary, err := svc.Refresh(context.Background(), testRange(t))
	require.NoError(t, err)
	assert.Equal(t, BatchSummary{Fetched: 1, Parsed: 1, Failed: 1}, *summary)
}

func TestProcessMessage_Classifier(t *testing.T) {
	repo := newFakeRepo()
	classifier := &fakeClassifier{category: "SUPERMARKET"}
	svc := newTestService(newFakeStore(), repo, classifier, zap.NewNop())
	parser := lineParser{bank: BankBAC}

	tx, outcome, err := svc.ProcessMessage(context.Background(), parser, &RawMessage{UID: 1, Literal: body("SHOP", "1.00", 2)})
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, outcome)
	require.NotNil(t, tx.BusinessType)
	assert.Equal(t, "SUPERMARKET", *tx.BusinessType)

	classifier.err = errors.New("throttled")
	tx, outcome, err = svc.ProcessMessage(context.Background(), parser, &RawMessage{UID: 2, Literal: body("SHOP", "2.00", 2)})
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, outcome)
	assert.Nil(t, tx.BusinessType)
	assert.Equal(t, 2, classifier.calls)
}

func TestProcessRaw(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(newFakeStore(), repo, nil, zap.NewNop())

	tx, outcome, err := svc.ProcessRaw(context.Background(), &RawMessage{From: "promerica@example.com", Literal: body("SHOP", "1.00", 2)})
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, outcome)
	assert.Equal(t, BankPromerica, tx.Bank)

	_, outcome, err = svc.ProcessRaw(context.Background(), &RawMessage{From: "promerica@example.com", Literal: body("SHOP", "1.00", 2)})
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, outcome)

	_, _, err = svc.ProcessRaw(context.Background(), &RawMessage{From: "stranger@example.com"})
	assert.ErrorIs(t, err, ErrUnknownSender)
}

func TestIngest_DuplicateIsNotAnError(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(newFakeStore(), repo, nil, zap.NewNop())
	tx := &Transaction{Bank: BankBAC, Value: decimal.RequireFromString("10.00"), Date: time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), Business: "A"}

	outcome, err := svc.Ingest(context.Background(), tx)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, outcome)
	assert.NotEmpty(t, tx.ID)

	// A different merchant at the same bank, amount and instant shares the id
	other := &Transaction{Bank: BankBAC, Value: decimal.RequireFromString("10"), Date: tx.Date, Business: "B"}
	outcome, err = svc.Ingest(context.Background(), other)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, outcome)
}

func TestWithMailbox_DisconnectsOnPanic(t *testing.T) {
	store := newFakeStore()
	assert.Panics(t, func() {
		_ = WithMailbox(context.Background(), store, "INBOX", func(MailStore) error {
			panic("boom")
		})
	})
	assert.Equal(t, 1, store.disconnects)
	assert.Equal(t, StateDisconnected, store.State())
}

func TestWithMailbox_ReturnsCallbackError(t *testing.T) {
	store := newFakeStore()
	want := errors.New("nope")
	err := WithMailbox(context.Background(), store, "INBOX", func(s MailStore) error {
		assert.Equal(t, StateMailboxSelected, s.State())
		return want
	})
	assert.ErrorIs(t, err, want)
	assert.Equal(t, 1, store.disconnects)
}
