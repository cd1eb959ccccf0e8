// Package scheduler runs the mailbox refresh on a fixed interval.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/mikey/mail-ledger/internal/core"
	"go.uber.org/zap"
)

// Refresher runs one ingestion pass over a window
type Refresher interface {
	Refresh(ctx context.Context, r core.DateRange) (*core.BatchSummary, error)
}

// Options configures the refresh loop
type Options struct {
	Interval   time.Duration
	RunOnStart bool
	// Timeout bounds a single run; zero means the interval
	Timeout time.Duration
}

// Scheduler refreshes the window [now-interval, now] on every tick
type Scheduler struct {
	refresher Refresher
	logger    *zap.Logger
	opts      Options
	now       func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new scheduler
func New(refresher Refresher, logger *zap.Logger, opts Options) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = 15 * time.Minute
	}
	if opts.Timeout <= 0 {
		opts.Timeout = opts.Interval
	}
	return &Scheduler{
		refresher: refresher,
		logger:    logger,
		opts:      opts,
		now:       time.Now,
	}
}

// Start launches the loop. Calling Start twice is a no-op.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.logger.Info("Refresh scheduler starting",
		zap.Duration("interval", s.opts.Interval),
		zap.Bool("run_on_start", s.opts.RunOnStart))

	s.wg.Add(1)
	go s.loop(ctx)
	return nil
}

// Stop cancels the loop and waits for a run in progress to return
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		s.wg.Wait()
	}
	return nil
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	if s.opts.RunOnStart {
		s.RunOnce(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce refreshes the most recent interval. Errors are logged; the next
// tick retries.
func (s *Scheduler) RunOnce(ctx context.Context) {
	now := s.now()
	window, err := core.Between(now.Add(-s.opts.Interval), now)
	if err != nil {
		s.logger.Error("Failed to build refresh window", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	summary, err := s.refresher.Refresh(ctx, window)
	if err != nil {
		s.logger.Error("Scheduled refresh failed",
			zap.Stringer("window", window),
			zap.Error(err))
		return
	}
	s.logger.Debug("Scheduled refresh finished",
		zap.Stringer("window", window),
		zap.Int("created", summary.Created))
}
