package memory

import (
	"context"
	"sync"

	"saldo/internal/core"
	ports "saldo/internal/sheets"
)

var (
	_ ports.RowSource = (*Store)(nil)
	_ ports.Describer = (*Store)(nil)
)

// Store keeps raw records in memory. It serves tests, demos and the
// memory backend.
type Store struct {
	mu      sync.Mutex
	records []core.RawRecord
	err     error
	reads   int
}

func New(records []core.RawRecord) *Store {
	return &Store{records: copyRecords(records)}
}

// NewDemo returns a store seeded with a few months of sample rows.
func NewDemo() *Store {
	return New(DemoRecords())
}

// Records returns a copy of the stored rows, or the configured failure.
func (s *Store) Records(_ context.Context) ([]core.RawRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	if s.err != nil {
		return nil, &core.SourceError{Source: "memory", Err: s.err}
	}
	return copyRecords(s.records), nil
}

// Replace swaps the stored rows.
func (s *Store) Replace(records []core.RawRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = copyRecords(records)
}

// Append adds one row.
func (s *Store) Append(rec core.RawRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, copyRecord(rec))
}

// FailWith makes every following read fail with err; nil clears it.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Reads returns how many times Records was called.
func (s *Store) Reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

func (s *Store) Describe() string {
	return "memory"
}

// DemoRecords is a small ledger in the spreadsheet's own format.
func DemoRecords() []core.RawRecord {
	row := func(date, amount, category, typ, recurrence string) core.RawRecord {
		return core.RawRecord{
			"Data":                 date,
			"Valor":                amount,
			"Categoria":            category,
			"Tipo (Entrada/Saída)": typ,
			"Recorrência":          recurrence,
		}
	}
	return []core.RawRecord{
		row("01/02/2024", "R$ 5.000,00", "Salário", "ENTRADA", "Fixo"),
		row("05/02/2024", "-R$ 1.800,00", "Aluguel", "SAÍDA", "Fixo"),
		row("09/02/2024", "-R$ 612,35", "Mercado", "SAÍDA", "Variável"),
		row("15/02/2024", "-R$ 1.000,00", "Investimento Tesouro", "SAÍDA", "Fixo"),
		row("01/03/2024", "R$ 5.000,00", "Salário", "ENTRADA", "Fixo"),
		row("05/03/2024", "-R$ 1.800,00", "Aluguel", "SAÍDA", "Fixo"),
		row("05/03/2024", "-R$ 89,90", "Farmácia", "SAÍDA", "Variável"),
		row("12/03/2024", "-R$ 540,10", "Mercado", "SAÍDA", "Variável"),
		row("15/03/2024", "-R$ 1.500,00", "Investimento CDB", "SAÍDA", "Fixo"),
		row("20/03/2024", "R$ 350,00", "Freelance", "ENTRADA", "Variável"),
	}
}

func copyRecords(in []core.RawRecord) []core.RawRecord {
	if in == nil {
		return nil
	}
	out := make([]core.RawRecord, len(in))
	for i, r := range in {
		out[i] = copyRecord(r)
	}
	return out
}

func copyRecord(r core.RawRecord) core.RawRecord {
	c := make(core.RawRecord, len(r))
	for k, v := range r {
		c[k] = v
	}
	return c
}
