package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mikey/mail-ledger/internal/core"
	"github.com/mikey/mail-ledger/internal/di"
	"github.com/mikey/mail-ledger/internal/mailbody"
)

type parsedTransaction struct {
	ID           string  `json:"id"`
	Bank         string  `json:"bank"`
	Date         string  `json:"date"`
	Value        string  `json:"value"`
	Currency     string  `json:"currency"`
	Business     string  `json:"business"`
	BusinessType *string `json:"business_type"`
}

func newParseCommand(flags *di.CLIFlags) *cobra.Command {
	var bankName string

	cmd := &cobra.Command{
		Use:   "parse FILE.eml",
		Short: "Parse a single saved message without storing it (use - for stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			literal, err := readMessage(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			msg, err := mailbody.NewRawMessage(literal)
			if err != nil {
				return err
			}

			return invoke(flags, func(svc *core.IngestionService, registry core.ParserRegistry, logger *zap.Logger) error {
				defer logger.Sync()

				parser, err := pickParser(registry, msg, bankName)
				if err != nil {
					return err
				}
				tx, err := svc.Parse(parser, msg)
				if err != nil {
					return err
				}
				return writeParsed(cmd.OutOrStdout(), tx)
			})
		},
	}

	cmd.Flags().StringVar(&bankName, "bank", "", "force a parser (BAC, Promerica) instead of matching the sender")
	return cmd
}

func readMessage(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read message: %w", err)
	}
	return data, nil
}

func pickParser(registry core.ParserRegistry, msg *core.RawMessage, bankName string) (core.BankParser, error) {
	if bankName != "" {
		bank, ok := core.ParseBank(bankName)
		if !ok {
			return nil, fmt.Errorf("unknown bank %q", bankName)
		}
		parser, ok := registry.Parser(bank)
		if !ok {
			return nil, fmt.Errorf("no parser registered for %s", bank)
		}
		return parser, nil
	}

	parser, ok := registry.Lookup(msg.From)
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrUnknownSender, msg.From)
	}
	return parser, nil
}

func writeParsed(out io.Writer, tx *core.Transaction) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(parsedTransaction{
		ID:           tx.ID,
		Bank:         string(tx.Bank),
		Date:         tx.Date.Format(time.RFC3339),
		Value:        tx.Value.StringFixed(2),
		Currency:     tx.Currency,
		Business:     tx.Business,
		BusinessType: tx.BusinessType,
	})
}
