package core

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/mikey/mail-ledger/internal/imapquery"
	"go.uber.org/zap"
)

// IngestionService turns bank notifications into stored transactions
type IngestionService struct {
	openStore  MailStoreFactory
	registry   ParserRegistry
	extractor  BodyExtractor
	repo       TransactionRepository
	classifier MerchantClassifier
	logger     *zap.Logger
	mailbox    string

	// one run at a time; runs never share a mail store
	mu sync.Mutex
}

// NewIngestionService creates a new ingestion service. classifier may be nil.
func NewIngestionService(
	openStore MailStoreFactory,
	registry ParserRegistry,
	extractor BodyExtractor,
	repo TransactionRepository,
	classifier MerchantClassifier,
	logger *zap.Logger,
	mailbox string,
) *IngestionService {
	if mailbox == "" {
		mailbox = "INBOX"
	}
	return &IngestionService{
		openStore:  openStore,
		registry:   registry,
		extractor:  extractor,
		repo:       repo,
		classifier: classifier,
		logger:     logger,
		mailbox:    mailbox,
	}
}

// WithMailbox connects store, selects mailbox and runs fn. The store is
// disconnected on every exit path, panics included.
func WithMailbox(ctx context.Context, store MailStore, mailbox string, fn func(MailStore) error) (err error) {
	if err := store.Connect(ctx); err != nil {
		return err
	}
	defer func() {
		if derr := store.Disconnect(); derr != nil && err == nil {
			err = fmt.Errorf("disconnect: %w", derr)
		}
	}()

	if err := store.SelectMailbox(ctx, mailbox); err != nil {
		return err
	}
	return fn(store)
}

// Refresh searches every bank source for notifications inside r and ingests
// them. Connection errors abort the run; everything else is counted.
func (s *IngestionService) Refresh(ctx context.Context, r DateRange) (*BatchSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	logger := s.logger.With(zap.String("run_id", uuid.NewString()))
	logger.Info("Starting ingestion run", zap.Stringer("range", r))

	store, err := s.openStore()
	if err != nil {
		return nil, fmt.Errorf("failed to create mail store: %w", err)
	}

	summary := &BatchSummary{}
	base := imapquery.New().DateRange(r.Start, r.SearchEnd())

	err = WithMailbox(ctx, store, s.mailbox, func(store MailStore) error {
		for _, src := range s.registry.Sources() {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := s.refreshSource(ctx, logger, store, base, src, summary); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		logger.Error("Ingestion run aborted", zap.Error(err), zap.Any("summary", summary))
		return summary, err
	}

	logger.Info("Ingestion run finished",
		zap.Int("fetched", summary.Fetched),
		zap.Int("parsed", summary.Parsed),
		zap.Int("created", summary.Created),
		zap.Int("duplicates", summary.Duplicates),
		zap.Int("failed", summary.Failed),
		zap.Int("search_errors", summary.SearchErrors))
	return summary, nil
}

// refreshSource handles one bank sender. Only connection errors are returned.
func (s *IngestionService) refreshSource(
	ctx context.Context,
	logger *zap.Logger,
	store MailStore,
	base imapquery.Criteria,
	src BankSource,
	summary *BatchSummary,
) error {
	logger = logger.With(zap.String("bank", string(src.Bank)), zap.String("sender", src.Sender))

	parser, ok := s.registry.Parser(src.Bank)
	if !ok {
		logger.Error("No parser registered for bank")
		summary.SearchErrors++
		return nil
	}

	criteria := base.From(src.Sender).Subject(src.Subject)
	ids, err := store.Search(ctx, criteria)
	if err != nil {
		if isConnectionError(err) {
			return err
		}
		logger.Error("Search failed", zap.String("criteria", criteria.Build()), zap.Error(err))
		summary.SearchErrors++
		return nil
	}
	logger.Debug("Search matched messages", zap.Int("count", len(ids)))
	if len(ids) == 0 {
		return nil
	}

	msgs, err := store.Fetch(ctx, ids)
	if err != nil {
		if isConnectionError(err) {
			return err
		}
		logger.Error("Fetch failed", zap.Error(err))
	}
	if missing := len(ids) - len(msgs); missing > 0 {
		logger.Warn("Some messages could not be fetched", zap.Int("missing", missing))
		summary.Failed += missing
	}
	summary.Fetched += len(msgs)

	for _, msg := range msgs {
		tx, outcome, err := s.ProcessMessage(ctx, parser, msg)
		s.record(logger, summary, msg, tx, outcome, err)
	}
	return nil
}

func (s *IngestionService) record(logger *zap.Logger, summary *BatchSummary, msg *RawMessage, tx *Transaction, outcome Outcome, err error) {
	if tx != nil {
		summary.Parsed++
	}
	switch outcome {
	case OutcomeCreated:
		summary.Created++
		logger.Info("Stored transaction",
			zap.String("id", tx.ID),
			zap.String("business", tx.Business),
			zap.String("value", tx.Value.StringFixed(2)),
			zap.String("currency", tx.Currency))
	case OutcomeDuplicate:
		summary.Duplicates++
		logger.Debug("Skipping duplicate transaction", zap.String("id", tx.ID))
	default:
		summary.Failed++
		logger.Error("Failed to process message",
			zap.Uint32("uid", msg.UID),
			zap.String("from", msg.From),
			zap.String("subject", msg.Subject),
			zap.Error(err))
	}
}

// Parse extracts a candidate transaction from msg without storing it
func (s *IngestionService) Parse(parser BankParser, msg *RawMessage) (*Transaction, error) {
	body, err := s.extractor.Extract(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to extract body: %w", err)
	}
	return ExtractTransaction(parser, msg, body)
}

// ProcessMessage parses, enriches and ingests a single message. The returned
// transaction is nil when parsing failed. Panics are recovered as failures.
func (s *IngestionService) ProcessMessage(ctx context.Context, parser BankParser, msg *RawMessage) (tx *Transaction, outcome Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			outcome = OutcomeFailed
			err = fmt.Errorf("panic while processing message %d: %v", msg.UID, r)
		}
	}()

	tx, err = s.Parse(parser, msg)
	if err != nil {
		return nil, OutcomeFailed, err
	}
	s.classify(ctx, tx)

	outcome, err = s.Ingest(ctx, tx)
	return tx, outcome, err
}

// ProcessRaw dispatches a pushed message to its parser by sender
func (s *IngestionService) ProcessRaw(ctx context.Context, msg *RawMessage) (*Transaction, Outcome, error) {
	parser, ok := s.registry.Lookup(msg.From)
	if !ok {
		return nil, OutcomeFailed, fmt.Errorf("%w: %s", ErrUnknownSender, msg.From)
	}
	tx, outcome, err := s.ProcessMessage(ctx, parser, msg)

	logger := s.logger.With(zap.String("bank", string(parser.Bank())))
	s.record(logger, &BatchSummary{}, msg, tx, outcome, err)
	return tx, outcome, err
}

// Ingest stores tx unless a transaction with the same id already exists
func (s *IngestionService) Ingest(ctx context.Context, tx *Transaction) (Outcome, error) {
	if tx.ID == "" {
		AssignID(tx)
	}
	if err := s.repo.Create(ctx, tx); err != nil {
		if errors.Is(err, ErrDuplicateTransaction) {
			return OutcomeDuplicate, nil
		}
		return OutcomeFailed, fmt.Errorf("failed to store transaction %s: %w", tx.ID, err)
	}
	return OutcomeCreated, nil
}

// classify fills in a missing business type. Failures leave it unset.
func (s *IngestionService) classify(ctx context.Context, tx *Transaction) {
	if s.classifier == nil || tx.BusinessType != nil {
		return
	}
	businessType, err := s.classifier.ClassifyMerchant(ctx, tx)
	if err != nil {
		s.logger.Warn("Merchant classification failed",
			zap.String("business", tx.Business),
			zap.Error(err))
		return
	}
	if businessType != "" {
		tx.BusinessType = &businessType
	}
}

func isConnectionError(err error) bool {
	var connErr *ConnectionError
	return errors.As(err, &connErr) || errors.Is(err, ErrNotConnected)
}
