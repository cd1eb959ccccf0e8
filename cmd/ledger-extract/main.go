package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/mikey/mail-ledger/internal/di"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCommand creates the root CLI command with all subcommands registered
func newRootCommand() *cobra.Command {
	flags := &di.CLIFlags{}

	rootCmd := &cobra.Command{
		Use:   "ledger-extract",
		Short: "Extract card transactions from bank notification emails",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.ConfigFile, "config", "", "path to config file (default: search /etc/mail-ledger, $HOME/.mail-ledger, ./configs, .)")
	pf.BoolVarP(&flags.Verbose, "verbose", "v", false, "enable debug logging")
	pf.BoolVar(&flags.JSONLog, "json-log", false, "output logs in JSON format")
	di.RegisterOverrideFlags(pf)
	flags.Overrides = pf

	rootCmd.AddCommand(
		newIngestCommand(flags),
		newParseCommand(flags),
		newListCommand(flags),
	)

	return rootCmd
}

// invoke builds the CLI container and runs fn with its dependencies injected
func invoke(flags *di.CLIFlags, fn interface{}) error {
	container, err := di.BuildCLIContainer(flags)
	if err != nil {
		return err
	}
	return container.Invoke(fn)
}
