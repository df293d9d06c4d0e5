// Package ledger turns raw spreadsheet rows into a typed, ordered ledger
// and computes the period and category views the dashboard consumes.
//
// Normalization policy per cell kind:
//   - amount: unparseable text becomes 0 (or drops the row with StrictAmounts)
//   - date: unparseable text drops the row
//   - missing required columns: *core.SchemaError, never an empty ledger
package ledger

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"saldo/internal/core"
)

// Ledger is the immutable result of one normalization run.
type Ledger struct {
	Transactions []core.Transaction
	// Rows is the number of records read from the source.
	Rows           int
	DroppedRows    int
	CoercedAmounts int
	// UnknownTypes counts type cells that fell back to the amount sign.
	UnknownTypes int
}

// Empty reports whether no usable transaction survived normalization.
func (l Ledger) Empty() bool {
	return len(l.Transactions) == 0
}

// Normalizer validates and cleans raw records.
type Normalizer struct {
	cfg    Config
	logger *slog.Logger
}

// NewNormalizer returns a normalizer for cfg. A nil logger uses slog.Default().
func NewNormalizer(cfg Config, logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{cfg: cfg, logger: logger}
}

// Config returns the normalizer configuration.
func (n *Normalizer) Config() Config {
	return n.cfg
}

type resolvedColumns struct {
	date, amount, category, typ, recurrence, description string
}

// resolve validates the schema once for the whole input.
func (n *Normalizer) resolve(rows []core.RawRecord) (resolvedColumns, error) {
	idx := indexColumns(rows)
	cols := n.cfg.Columns
	var (
		rc      resolvedColumns
		missing []string
		ok      bool
	)
	if rc.date, ok = idx.lookup(cols.Date); !ok {
		missing = append(missing, cols.Date)
	}
	if rc.amount, ok = idx.lookup(cols.Amount); !ok {
		missing = append(missing, cols.Amount)
	}
	if rc.category, ok = idx.lookup(cols.Category); !ok {
		missing = append(missing, cols.Category)
	}
	rc.typ, ok = idx.lookup(cols.Type)
	if !ok && n.cfg.DirectionSource == DirectionFromColumn {
		missing = append(missing, cols.Type)
	}
	rc.recurrence, _ = idx.lookup(cols.Recurrence)
	rc.description, _ = idx.lookup(cols.Description)
	if len(missing) > 0 {
		return rc, &core.SchemaError{Missing: missing}
	}
	return rc, nil
}

// Normalize converts raw records into a ledger sorted by date. Ties keep
// input order. Empty input yields an empty ledger and no error.
func (n *Normalizer) Normalize(rows []core.RawRecord) (Ledger, error) {
	out := Ledger{Rows: len(rows)}
	if len(rows) == 0 {
		return out, nil
	}
	cols, err := n.resolve(rows)
	if err != nil {
		return Ledger{}, err
	}

	txs := make([]core.Transaction, 0, len(rows))
	for i, rec := range rows {
		date, err := core.ParseDayFirst(rec[cols.date])
		if err != nil {
			out.DroppedRows++
			n.logger.Debug("Dropping row with unparseable date", "row", i, "value", rec[cols.date])
			continue
		}

		amount, err := core.ParseAmount(rec[cols.amount])
		if err != nil {
			if n.cfg.StrictAmounts {
				out.DroppedRows++
				n.logger.Debug("Dropping row with unparseable amount", "row", i, "value", rec[cols.amount])
				continue
			}
			out.CoercedAmounts++
			amount = decimal.Zero
		}

		direction := core.DirectionOf(amount)
		if n.cfg.DirectionSource == DirectionFromColumn {
			if d, ok := ParseDirection(rec[cols.typ]); ok {
				direction = d
				amount = alignSign(amount, d)
			} else {
				out.UnknownTypes++
				n.logger.Debug("Unknown type value, using amount sign", "row", i, "value", rec[cols.typ])
			}
		}

		tx := core.Transaction{
			Date:      date,
			Amount:    amount,
			Category:  strings.TrimSpace(rec[cols.category]),
			Direction: direction,
			Period:    date.Period(),
			Row:       i,
		}
		if cols.recurrence != "" {
			tx.Recurrence = strings.TrimSpace(rec[cols.recurrence])
		}
		if cols.description != "" {
			tx.Description = strings.TrimSpace(rec[cols.description])
		}
		txs = append(txs, tx)
	}

	sort.SliceStable(txs, func(a, b int) bool {
		return txs[a].Date.Before(txs[b].Date.Time)
	})
	out.Transactions = txs
	return out, nil
}

// alignSign makes the amount agree with an authoritative direction so that
// outflows are always negative.
func alignSign(amount decimal.Decimal, d core.Direction) decimal.Decimal {
	if d == core.Outflow {
		return amount.Abs().Neg()
	}
	return amount.Abs()
}

// Records renders the ledger back to raw string form using cfg's column
// names, in ledger order. Normalizing the result with the same cfg
// reproduces the ledger's transactions except for Row, which is not part of
// a transaction's identity and becomes the position in the sorted ledger.
func (l Ledger) Records(cfg Config) []core.RawRecord {
	out := make([]core.RawRecord, 0, len(l.Transactions))
	for _, tx := range l.Transactions {
		rec := core.RawRecord{
			cfg.Columns.Date:     tx.Date.DayFirst(),
			cfg.Columns.Amount:   core.FormatAmount(tx.Amount),
			cfg.Columns.Category: tx.Category,
		}
		if cfg.DirectionSource == DirectionFromColumn {
			rec[cfg.Columns.Type] = TypeLabel(tx.Direction)
		}
		if cfg.Columns.Recurrence != "" {
			rec[cfg.Columns.Recurrence] = tx.Recurrence
		}
		if cfg.Columns.Description != "" {
			rec[cfg.Columns.Description] = tx.Description
		}
		out = append(out, rec)
	}
	return out
}

// Categories returns the distinct non-empty category labels, sorted.
func Categories(txs []core.Transaction) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, tx := range txs {
		c := strings.TrimSpace(tx.Category)
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
