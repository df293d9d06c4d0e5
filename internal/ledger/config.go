package ledger

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"saldo/internal/core"
)

// DirectionSource selects where a transaction's direction comes from.
type DirectionSource string

const (
	// DirectionFromSign derives the direction from the amount's sign.
	DirectionFromSign DirectionSource = "sign"
	// DirectionFromColumn reads it from the type column (ENTRADA/SAÍDA).
	DirectionFromColumn DirectionSource = "column"
)

// Columns names the source columns. Matching against the source header
// ignores case, accents and surrounding whitespace.
type Columns struct {
	Date        string
	Amount      string
	Category    string
	Type        string
	Recurrence  string
	Description string
}

// Config controls normalization.
type Config struct {
	Columns         Columns
	DirectionSource DirectionSource
	// StrictAmounts drops rows with an unparseable amount instead of
	// coercing the amount to zero.
	StrictAmounts bool
}

// DefaultColumns returns the column names used by the finance spreadsheet.
func DefaultColumns() Columns {
	return Columns{
		Date:        "Data",
		Amount:      "Valor",
		Category:    "Categoria",
		Type:        "Tipo (Entrada/Saída)",
		Recurrence:  "Recorrência",
		Description: "Descrição",
	}
}

// DefaultConfig returns sign-derived direction with coerced amounts.
func DefaultConfig() Config {
	return Config{
		Columns:         DefaultColumns(),
		DirectionSource: DirectionFromSign,
	}
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	var problems []string
	switch c.DirectionSource {
	case DirectionFromSign:
	case DirectionFromColumn:
		if strings.TrimSpace(c.Columns.Type) == "" {
			problems = append(problems, "type column name is required when direction comes from the column")
		}
	default:
		problems = append(problems, fmt.Sprintf("invalid direction source %q: must be %q or %q", c.DirectionSource, DirectionFromSign, DirectionFromColumn))
	}
	if strings.TrimSpace(c.Columns.Date) == "" {
		problems = append(problems, "date column name is required")
	}
	if strings.TrimSpace(c.Columns.Amount) == "" {
		problems = append(problems, "amount column name is required")
	}
	if strings.TrimSpace(c.Columns.Category) == "" {
		problems = append(problems, "category column name is required")
	}
	if len(problems) > 0 {
		return fmt.Errorf("ledger config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// ParseDirection reads an explicit type cell. ENTRADA/INFLOW and
// SAÍDA/OUTFLOW are recognized in any case, with or without accents.
func ParseDirection(s string) (core.Direction, bool) {
	switch strings.ToUpper(fold(s)) {
	case "ENTRADA", "INFLOW":
		return core.Inflow, true
	case "SAIDA", "OUTFLOW":
		return core.Outflow, true
	}
	return "", false
}

// TypeLabel is the spreadsheet spelling of a direction.
func TypeLabel(d core.Direction) string {
	if d == core.Inflow {
		return "ENTRADA"
	}
	return "SAÍDA"
}

// fold lowercases s, strips accents and collapses whitespace.
func fold(s string) string {
	// A chained transformer keeps state, so each call builds its own.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.Join(strings.Fields(out), " "))
}

// columnIndex maps folded header names to the spelling used by the source.
type columnIndex map[string]string

func indexColumns(rows []core.RawRecord) columnIndex {
	idx := columnIndex{}
	for _, rec := range rows {
		for k := range rec {
			f := fold(k)
			if f == "" {
				continue
			}
			if _, ok := idx[f]; !ok {
				idx[f] = k
			}
		}
	}
	return idx
}

// lookup returns the source spelling of name, if present.
func (idx columnIndex) lookup(name string) (string, bool) {
	if strings.TrimSpace(name) == "" {
		return "", false
	}
	k, ok := idx[fold(name)]
	return k, ok
}
