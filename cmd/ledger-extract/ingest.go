package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mikey/mail-ledger/internal/core"
	"github.com/mikey/mail-ledger/internal/di"
	"github.com/mikey/mail-ledger/internal/factory"
)

func newIngestCommand(flags *di.CLIFlags) *cobra.Command {
	var daysAgo int
	var start, end string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Search the mailbox for notifications in a window and store new transactions",
		Example: `  ledger-extract ingest --days-ago 7
  ledger-extract ingest --start 2024-03-01 --end 2024-03-31`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := rangeOptions(cmd, daysAgo, start, end)
			if err != nil {
				return err
			}
			window, err := core.NewDateRange(opts, time.Now())
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return invoke(flags, func(
				svc *core.IngestionService,
				repo core.TransactionRepository,
				classifiers *factory.ClassifierFactory,
				logger *zap.Logger,
			) error {
				defer logger.Sync()
				defer repo.Close()
				defer classifiers.Close()
				return runIngest(ctx, cmd.OutOrStdout(), svc, window)
			})
		},
	}

	cmd.Flags().IntVar(&daysAgo, "days-ago", 0, "ingest from the start of the day N days ago through today")
	cmd.Flags().StringVar(&start, "start", "", "window start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "window end date (YYYY-MM-DD)")
	cmd.MarkFlagsMutuallyExclusive("days-ago", "start")
	cmd.MarkFlagsMutuallyExclusive("days-ago", "end")
	cmd.MarkFlagsRequiredTogether("start", "end")

	return cmd
}

// rangeOptions turns the window flags into DateRangeOptions. Dates are read in
// the local time zone.
func rangeOptions(cmd *cobra.Command, daysAgo int, start, end string) (core.DateRangeOptions, error) {
	var opts core.DateRangeOptions
	if cmd.Flags().Changed("days-ago") {
		opts.DaysAgo = &daysAgo
		return opts, nil
	}
	if start != "" {
		t, err := time.ParseInLocation(time.DateOnly, start, time.Local)
		if err != nil {
			return opts, fmt.Errorf("invalid --start: %w", err)
		}
		opts.Start = &t
	}
	if end != "" {
		t, err := time.ParseInLocation(time.DateOnly, end, time.Local)
		if err != nil {
			return opts, fmt.Errorf("invalid --end: %w", err)
		}
		opts.End = &t
	}
	return opts, nil
}

func runIngest(ctx context.Context, out io.Writer, svc *core.IngestionService, window core.DateRange) error {
	fmt.Fprintf(out, "Ingesting %s\n", window)

	summary, err := svc.Refresh(ctx, window)
	if summary != nil {
		fmt.Fprintf(out, "fetched=%d parsed=%d created=%d duplicates=%d failed=%d search_errors=%d\n",
			summary.Fetched, summary.Parsed, summary.Created,
			summary.Duplicates, summary.Failed, summary.SearchErrors)
	}
	return err
}
