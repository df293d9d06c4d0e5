package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"saldo/internal/amqp"
	"saldo/internal/core"
	"saldo/internal/ledger"
	applog "saldo/internal/log"
	"saldo/internal/services"
	"saldo/internal/sheets/csvfile"
	"saldo/internal/storage"
)

// selection is the period and category filter shared by several commands.
type selection struct {
	period     string
	all        bool
	categories []string
}

func (s *selection) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&s.period, "period", "p", "", "period as YYYY-MM (default: latest)")
	cmd.Flags().BoolVar(&s.all, "all", false, "use the whole history")
	cmd.Flags().StringSliceVarP(&s.categories, "category", "c", nil, "only these categories (repeatable)")
}

// resolve returns the selected transactions and the period they cover.
func (s *selection) resolve(snap *services.Snapshot) ([]core.Transaction, core.Period, error) {
	txs := snap.Ledger.Transactions
	var period core.Period
	switch {
	case s.all:
		period = core.Period{Key: "all", Label: ledger.HistoryLabel}
	case s.period != "":
		p, err := core.ParsePeriodKey(s.period)
		if err != nil {
			return nil, core.Period{}, fmt.Errorf("invalid --period %q: expected YYYY-MM", s.period)
		}
		period = p
		txs = ledger.SelectPeriod(txs, p.Key)
	default:
		period = snap.Periods[0]
		txs = ledger.SelectPeriod(txs, period.Key)
	}
	if len(s.categories) > 0 {
		txs = ledger.FilterCategories(txs, s.categories)
	}
	return txs, period, nil
}

func (a *app) newSummaryCommand() *cobra.Command {
	var sel selection
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show inflow, outflow and net balance for a period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withLedger(cmd.Context(), func(snap *services.Snapshot, _ *services.LedgerService) error {
				txs, period, err := sel.resolve(snap)
				if err != nil {
					return err
				}
				sum := ledger.Summarize(txs, period)
				out := cmd.OutOrStdout()
				if err := renderTable(out, "Resumo "+period.Label,
					[]string{"Entradas", "Saídas", "Saldo", "Transações"},
					[][]string{{money(sum.Inflow), money(sum.Outflow), money(sum.Net), strconv.Itoa(sum.Count)}},
				); err != nil {
					return err
				}

				dist := ledger.OutflowByCategory(txs)
				if len(dist) == 0 {
					return nil
				}
				rows := make([][]string, len(dist))
				for i, c := range dist {
					name := c.Name
					if name == "" {
						name = "(sem categoria)"
					}
					rows[i] = []string{name, core.FormatAmount(c.Amount)}
				}
				return renderTable(out, "Saídas por categoria", []string{"Categoria", "Valor"}, rows)
			})
		},
	}
	sel.register(cmd)
	return cmd
}

func (a *app) newPeriodsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "periods",
		Short: "List the periods of the ledger, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withLedger(cmd.Context(), func(snap *services.Snapshot, _ *services.LedgerService) error {
				groups := ledger.GroupByPeriod(snap.Ledger.Transactions)
				counts := make(map[string]int, len(groups))
				for _, g := range groups {
					counts[g.Period.Key] = len(g.Transactions)
				}
				rows := make([][]string, len(snap.Periods))
				for i, p := range snap.Periods {
					rows[i] = []string{p.Key, p.Label, strconv.Itoa(counts[p.Key])}
				}
				return renderTable(cmd.OutOrStdout(), "", []string{"Período", "Mês", "Transações"}, rows)
			})
		},
	}
}

func (a *app) newCategoriesCommand() *cobra.Command {
	var sel selection
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "List categories with their totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withLedger(cmd.Context(), func(snap *services.Snapshot, _ *services.LedgerService) error {
				txs := snap.Ledger.Transactions
				if sel.period != "" {
					p, err := core.ParsePeriodKey(sel.period)
					if err != nil {
						return fmt.Errorf("invalid --period %q: expected YYYY-MM", sel.period)
					}
					txs = ledger.SelectPeriod(txs, p.Key)
				}
				var rows [][]string
				for _, name := range ledger.Categories(txs) {
					sub := ledger.FilterCategories(txs, []string{name})
					rows = append(rows, []string{name, strconv.Itoa(len(sub)), money(ledger.Total(sub))})
				}
				return renderTable(cmd.OutOrStdout(), "", []string{"Categoria", "Transações", "Total"}, rows)
			})
		},
	}
	cmd.Flags().StringVarP(&sel.period, "period", "p", "", "period as YYYY-MM (default: whole history)")
	return cmd
}

func (a *app) newBalanceCommand() *cobra.Command {
	var asOf string
	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Show the cumulative balance up to a date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withLedger(cmd.Context(), func(snap *services.Snapshot, _ *services.LedgerService) error {
				txs := snap.Ledger.Transactions
				var date core.Date
				if asOf != "" {
					d, err := core.ParseDayFirst(asOf)
					if err != nil {
						return fmt.Errorf("invalid --as-of %q: expected dd/mm/yyyy", asOf)
					}
					date = d
				} else {
					date = txs[len(txs)-1].Date
				}
				balance := ledger.CumulativeBalance(txs, date)
				return renderTable(cmd.OutOrStdout(), "", []string{"Data", "Saldo acumulado"},
					[][]string{{date.DayFirst(), money(balance)}})
			})
		},
	}
	cmd.Flags().StringVar(&asOf, "as-of", "", "date as dd/mm/yyyy (default: latest transaction)")
	return cmd
}

func (a *app) newExportCommand() *cobra.Command {
	var (
		sel    selection
		output string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export normalized transactions as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withLedger(cmd.Context(), func(snap *services.Snapshot, _ *services.LedgerService) error {
				if sel.period == "" {
					sel.all = true
				}
				txs, _, err := sel.resolve(snap)
				if err != nil {
					return err
				}
				var w io.Writer = cmd.OutOrStdout()
				if output != "" && output != "-" {
					f, err := os.Create(output)
					if err != nil {
						return fmt.Errorf("create output file: %w", err)
					}
					defer f.Close()
					w = f
				}
				if err := ledger.WriteCSV(w, txs); err != nil {
					return err
				}
				if output != "" && output != "-" {
					fmt.Fprintf(cmd.OutOrStdout(), "Exported %d transactions to %s\n", len(txs), output)
				}
				return nil
			})
		},
	}
	sel.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	return cmd
}

func (a *app) newImportCommand() *cobra.Command {
	var (
		csvPath   string
		delimiter string
		dbPath    string
	)
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Replace the SQLite ledger with the rows of a CSV export",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := validateFileExists(csvPath); err != nil {
				return err
			}
			comma := a.cfg.Delimiter()
			if delimiter != "" {
				if utf8.RuneCountInString(delimiter) != 1 {
					return fmt.Errorf("invalid --delimiter %q: must be a single character", delimiter)
				}
				comma, _ = utf8.DecodeRuneInString(delimiter)
			}
			if dbPath == "" {
				dbPath = a.cfg.SQLiteDBPath
			}

			src := csvfile.New(csvPath, comma)
			recs, err := src.Records(ctx)
			if err != nil {
				return err
			}
			// Reject files the server could not read before replacing anything.
			led, err := ledger.NewNormalizer(a.cfg.LedgerConfig(), a.logger.Slog()).Normalize(recs)
			if err != nil {
				return fmt.Errorf("%s: %w", src.Describe(), err)
			}
			if led.Empty() {
				return fmt.Errorf("%s: %w", src.Describe(), services.ErrNoData)
			}

			repo, err := storage.NewSQLiteRepository(dbPath)
			if err != nil {
				return err
			}
			defer repo.Close()

			imp, err := repo.ImportRecords(ctx, src.Describe(), recs)
			if err != nil {
				return err
			}
			a.logger.WithComponent(applog.ComponentStorage).Debug("Import finished",
				applog.FieldOperation, applog.OpImport,
				"import_id", imp.ID)
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d rows (%d transactions, %d dropped) into %s\n",
				imp.Rows, len(led.Transactions), led.DroppedRows, repo.Describe())
			return nil
		},
	}
	cmd.Flags().StringVar(&csvPath, "csv", "", "CSV export to import (required)")
	cmd.Flags().StringVarP(&delimiter, "delimiter", "d", "", "CSV delimiter (default: $CSV_DELIMITER or sniffed)")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database (default $SQLITE_DB_PATH)")
	_ = cmd.MarkFlagRequired("csv")
	return cmd
}

func (a *app) newRefreshCommand() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Ask running servers to reload the ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.AMQPURL == "" {
				return errors.New("AMQP_URL is not configured")
			}
			client, err := amqp.NewClient(a.cfg.AMQPURL, a.cfg.AMQPExchange, a.cfg.AMQPQueue)
			if err != nil {
				return err
			}
			defer client.Close()

			msg, err := client.PublishRefreshRequest(cmd.Context(), "saldo-cli", reason)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Refresh requested (%s)\n", msg.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "manual", "reason recorded in the request")
	return cmd
}

func (a *app) newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Load the ledger and report row counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withLedger(cmd.Context(), func(_ *services.Snapshot, svc *services.LedgerService) error {
				st := svc.Status()
				rows := [][]string{
					{"Fonte", st.Source},
					{"Linhas", strconv.Itoa(st.Rows)},
					{"Transações", strconv.Itoa(st.Transactions)},
					{"Linhas descartadas", strconv.Itoa(st.Dropped)},
					{"Valores zerados", strconv.Itoa(st.Coerced)},
					{"Tipos desconhecidos", strconv.Itoa(st.UnknownTypes)},
				}
				return renderTable(cmd.OutOrStdout(), "", []string{"Campo", "Valor"}, rows)
			})
		},
	}
}

func validateFileExists(path string) error {
	if path == "" {
		return errors.New("--csv is required")
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("cannot access %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	return nil
}
