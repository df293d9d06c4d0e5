package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"saldo/internal/config"
	applog "saldo/internal/log"
	"saldo/internal/services"
)

var (
	version = "dev"
	commit  = "unknown"
)

// app holds the state shared by all subcommands.
type app struct {
	backend string
	verbose bool

	cfg    *config.Config
	logger *applog.Logger
}

// NewRootCommand builds the saldo-cli command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "saldo-cli",
		Short: "Inspect and maintain the saldo ledger",
		Long: `saldo-cli reads the same ledger as the saldo server and prints its
summaries, balances and categories as tables.

Examples:
  saldo-cli summary --period 2024-03
  saldo-cli balance --as-of 31/03/2024
  saldo-cli import --csv controle.csv
  saldo-cli refresh --reason "sheet edited"`,
		Version:       fmt.Sprintf("%s (commit %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			LoadEnvFile()
			a.logger = SetupLogger(cmd.ErrOrStderr(), a.verbose)
			cfg, err := LoadAndValidateConfig(a.backend)
			if err != nil {
				return err
			}
			a.cfg = cfg
			cmd.SetContext(applog.NewContext(cmd.Context(), a.logger))
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&a.backend, "backend", "b", "", "data backend: sheets, csv, sqlite or memory (default $DATA_BACKEND)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "verbose output")

	root.AddCommand(
		a.newSummaryCommand(),
		a.newPeriodsCommand(),
		a.newCategoriesCommand(),
		a.newBalanceCommand(),
		a.newExportCommand(),
		a.newImportCommand(),
		a.newRefreshCommand(),
		a.newStatusCommand(),
	)
	return root
}

// Execute runs the command tree with ctx.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

// SetVersionInfo sets the version reported by --version.
func SetVersionInfo(v, c string) {
	version = v
	commit = c
}

// withLedger loads the ledger once and passes the snapshot to fn.
func (a *app) withLedger(ctx context.Context, fn func(*services.Snapshot, *services.LedgerService) error) error {
	svc, cleanup, err := OpenLedger(ctx, a.cfg, a.logger)
	if err != nil {
		return err
	}
	defer cleanup()

	snap, err := svc.Ledger(ctx)
	if err != nil {
		return fmt.Errorf("load ledger from %s: %w", svc.Source(), err)
	}
	return fn(snap, svc)
}
