package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mikey/mail-ledger/internal/core"
	"github.com/mikey/mail-ledger/internal/di"
)

func newListCommand(flags *di.CLIFlags) *cobra.Command {
	var start, end, bankName string
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored transactions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			query := core.TransactionQuery{Limit: limit, Offset: offset}
			if start != "" {
				t, err := time.ParseInLocation(time.DateOnly, start, time.Local)
				if err != nil {
					return fmt.Errorf("invalid --start: %w", err)
				}
				s := core.StartOfDay(t)
				query.Start = &s
			}
			if end != "" {
				t, err := time.ParseInLocation(time.DateOnly, end, time.Local)
				if err != nil {
					return fmt.Errorf("invalid --end: %w", err)
				}
				e := core.EndOfDay(t)
				query.End = &e
			}
			if bankName != "" {
				bank, ok := core.ParseBank(bankName)
				if !ok {
					return fmt.Errorf("unknown bank %q", bankName)
				}
				query.Bank = &bank
			}

			return invoke(flags, func(repo core.TransactionRepository, logger *zap.Logger) error {
				defer logger.Sync()
				defer repo.Close()
				return runList(cmd.Context(), cmd.OutOrStdout(), repo, query)
			})
		},
	}

	cmd.Flags().StringVar(&start, "start", "", "only transactions on or after this date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "only transactions on or before this date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&bankName, "bank", "", "only transactions from this bank")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum rows to print (0 for all)")
	cmd.Flags().IntVar(&offset, "offset", 0, "rows to skip")

	return cmd
}

func runList(ctx context.Context, out io.Writer, repo core.TransactionRepository, query core.TransactionQuery) error {
	txs, err := repo.List(ctx, query)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tBANK\tAMOUNT\tBUSINESS\tTYPE\tID")
	for _, tx := range txs {
		businessType := "-"
		if tx.BusinessType != nil {
			businessType = *tx.BusinessType
		}
		fmt.Fprintf(w, "%s\t%s\t%s %s\t%s\t%s\t%s\n",
			tx.Date.Local().Format("2006-01-02 15:04"),
			tx.Bank,
			tx.Currency, tx.Value.StringFixed(2),
			tx.Business,
			businessType,
			shortID(tx.ID))
	}
	return w.Flush()
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
