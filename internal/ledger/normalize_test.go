package ledger

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saldo/internal/core"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func scenarioRows() []core.RawRecord {
	return []core.RawRecord{
		{"Data": "01/03/2024", "Valor": "R$ 1.000,00", "Categoria": "Salário"},
		{"Data": "05/03/2024", "Valor": "R$ 200,00", "Categoria": "Investimento"},
		{"Data": "invalid", "Valor": "R$ 50,00", "Categoria": "X"},
	}
}

func TestNormalizeScenario(t *testing.T) {
	n := NewNormalizer(DefaultConfig(), nil)
	l, err := n.Normalize(scenarioRows())
	require.NoError(t, err)

	require.Len(t, l.Transactions, 2)
	assert.Equal(t, 3, l.Rows)
	assert.Equal(t, 1, l.DroppedRows)
	assert.True(t, TotalByDirection(l.Transactions, core.Inflow).Equal(dec("1200")))

	first := l.Transactions[0]
	assert.Equal(t, "Salário", first.Category)
	assert.Equal(t, core.Inflow, first.Direction)
	assert.Equal(t, core.Period{Key: "2024-03", Label: "03/2024"}, first.Period)
	assert.Equal(t, 0, first.Row)
}

func TestNormalizeSortsStably(t *testing.T) {
	rows := []core.RawRecord{
		{"Data": "10/03/2024", "Valor": "R$ 1,00", "Categoria": "c"},
		{"Data": "01/03/2024", "Valor": "R$ 2,00", "Categoria": "a"},
		{"Data": "10/03/2024", "Valor": "R$ 3,00", "Categoria": "d"},
		{"Data": "01/03/2024", "Valor": "R$ 4,00", "Categoria": "b"},
	}
	l, err := NewNormalizer(DefaultConfig(), nil).Normalize(rows)
	require.NoError(t, err)

	var got []int
	for _, tx := range l.Transactions {
		got = append(got, tx.Row)
	}
	assert.Equal(t, []int{1, 3, 0, 2}, got)
}

func TestNormalizeCoercesBadAmounts(t *testing.T) {
	rows := []core.RawRecord{
		{"Data": "01/03/2024", "Valor": "", "Categoria": "a"},
		{"Data": "02/03/2024", "Valor": "n/a", "Categoria": "b"},
		{"Data": "03/03/2024", "Valor": "-R$ 10,00", "Categoria": "c"},
	}
	l, err := NewNormalizer(DefaultConfig(), nil).Normalize(rows)
	require.NoError(t, err)
	require.Len(t, l.Transactions, 3)
	assert.Equal(t, 2, l.CoercedAmounts)
	assert.True(t, l.Transactions[0].Amount.IsZero())
	assert.True(t, l.Transactions[2].Amount.Equal(dec("-10")))
	assert.Equal(t, core.Outflow, l.Transactions[2].Direction)
}

func TestNormalizeStrictAmountsDrops(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StrictAmounts = true
	rows := []core.RawRecord{
		{"Data": "01/03/2024", "Valor": "n/a", "Categoria": "a"},
		{"Data": "02/03/2024", "Valor": "R$ 3,50", "Categoria": "b"},
	}
	l, err := NewNormalizer(cfg, nil).Normalize(rows)
	require.NoError(t, err)
	require.Len(t, l.Transactions, 1)
	assert.Equal(t, 1, l.DroppedRows)
	assert.Equal(t, 0, l.CoercedAmounts)
}

func TestNormalizeEmptyInput(t *testing.T) {
	l, err := NewNormalizer(DefaultConfig(), nil).Normalize(nil)
	require.NoError(t, err)
	assert.True(t, l.Empty())
}

func TestNormalizeAllDatesInvalidIsEmptyNotSchemaError(t *testing.T) {
	rows := []core.RawRecord{{"Data": "x", "Valor": "R$ 1,00", "Categoria": "a"}}
	l, err := NewNormalizer(DefaultConfig(), nil).Normalize(rows)
	require.NoError(t, err)
	assert.True(t, l.Empty())
	assert.Equal(t, 1, l.DroppedRows)
}

func TestNormalizeSchemaError(t *testing.T) {
	rows := []core.RawRecord{{"Date": "01/03/2024", "Amount": "1"}}
	_, err := NewNormalizer(DefaultConfig(), nil).Normalize(rows)

	var se *core.SchemaError
	require.True(t, errors.As(err, &se), "expected SchemaError, got %v", err)
	assert.Equal(t, []string{"Data", "Valor", "Categoria"}, se.Missing)
}

func TestNormalizeHeaderMatchingIgnoresCaseAndAccents(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DirectionSource = DirectionFromColumn
	rows := []core.RawRecord{
		{" data ": "01/03/2024", "VALOR": "R$ 10,00", "categoria": "Mercado", "Tipo (Entrada/Saida)": "saida", "Recorrencia": "Fixo"},
	}
	l, err := NewNormalizer(cfg, nil).Normalize(rows)
	require.NoError(t, err)
	require.Len(t, l.Transactions, 1)
	tx := l.Transactions[0]
	assert.Equal(t, core.Outflow, tx.Direction)
	assert.True(t, tx.Amount.Equal(dec("-10")))
	assert.Equal(t, "Fixo", tx.Recurrence)
}

func TestNormalizeDirectionFromColumn(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DirectionSource = DirectionFromColumn
	rows := []core.RawRecord{
		{"Data": "01/03/2024", "Valor": "R$ 100,00", "Categoria": "a", "Tipo (Entrada/Saída)": "ENTRADA"},
		{"Data": "02/03/2024", "Valor": "R$ 40,00", "Categoria": "b", "Tipo (Entrada/Saída)": "SAÍDA"},
		{"Data": "03/03/2024", "Valor": "-R$ 5,00", "Categoria": "c", "Tipo (Entrada/Saída)": "ENTRADA"},
		{"Data": "04/03/2024", "Valor": "-R$ 7,00", "Categoria": "d", "Tipo (Entrada/Saída)": "?"},
	}
	l, err := NewNormalizer(cfg, nil).Normalize(rows)
	require.NoError(t, err)
	require.Len(t, l.Transactions, 4)

	want := []struct {
		dir    core.Direction
		amount string
	}{
		{core.Inflow, "100"},
		{core.Outflow, "-40"},
		{core.Inflow, "5"},
		{core.Outflow, "-7"},
	}
	for i, w := range want {
		assert.Equal(t, w.dir, l.Transactions[i].Direction, "row %d", i)
		assert.True(t, l.Transactions[i].Amount.Equal(dec(w.amount)), "row %d amount %s", i, l.Transactions[i].Amount)
	}
	assert.Equal(t, 1, l.UnknownTypes)

	sum := Total(l.Transactions)
	assert.True(t, sum.Equal(TotalByDirection(l.Transactions, core.Inflow).Add(TotalByDirection(l.Transactions, core.Outflow))))
}

func TestNormalizeDirectionFromColumnRequiresTypeColumn(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DirectionSource = DirectionFromColumn
	_, err := NewNormalizer(cfg, nil).Normalize(scenarioRows())

	var se *core.SchemaError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, []string{"Tipo (Entrada/Saída)"}, se.Missing)
}

func TestNormalizeIdempotent(t *testing.T) {
	for _, source := range []DirectionSource{DirectionFromSign, DirectionFromColumn} {
		t.Run(string(source), func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.DirectionSource = source
			rows := []core.RawRecord{
				{"Data": "15/04/2024", "Valor": "-R$ 1.250,10", "Categoria": "Aluguel", "Tipo (Entrada/Saída)": "SAÍDA", "Recorrência": "Fixo"},
				{"Data": "01/03/2024", "Valor": "R$ 5.000,00", "Categoria": "Salário", "Tipo (Entrada/Saída)": "ENTRADA"},
				{"Data": "01/03/2024", "Valor": "R$ 0,99", "Categoria": "", "Tipo (Entrada/Saída)": "ENTRADA", "Descrição": "estorno"},
				{"Data": "01/03/2024", "Valor": "-R$ 10,005", "Categoria": "Tarifa", "Tipo (Entrada/Saída)": "SAÍDA"},
			}
			n := NewNormalizer(cfg, nil)
			first, err := n.Normalize(rows)
			require.NoError(t, err)

			second, err := n.Normalize(first.Records(cfg))
			require.NoError(t, err)

			require.Len(t, second.Transactions, len(first.Transactions))
			for i := range first.Transactions {
				a, b := first.Transactions[i], second.Transactions[i]
				assert.True(t, a.Date.Equal(b.Date.Time))
				assert.True(t, a.Amount.Equal(b.Amount), "amount %s vs %s", a.Amount, b.Amount)
				assert.Equal(t, a.Category, b.Category)
				assert.Equal(t, a.Direction, b.Direction)
				assert.Equal(t, a.Period, b.Period)
				assert.Equal(t, a.Recurrence, b.Recurrence)
				assert.Equal(t, a.Description, b.Description)
				// Records are written in ledger order, so Row becomes the sorted index.
				assert.Equal(t, i, b.Row)
			}
			assert.Equal(t, first.Records(cfg), second.Records(cfg))
		})
	}
}

func TestCategories(t *testing.T) {
	txs := []core.Transaction{
		{Category: "Mercado"}, {Category: ""}, {Category: "  "}, {Category: "Aluguel"}, {Category: "Mercado"},
	}
	assert.Equal(t, []string{"Aluguel", "Mercado"}, Categories(txs))
	assert.Empty(t, Categories(nil))
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	bad := DefaultConfig()
	bad.DirectionSource = "guess"
	assert.ErrorContains(t, bad.Validate(), "invalid direction source")

	noType := DefaultConfig()
	noType.DirectionSource = DirectionFromColumn
	noType.Columns.Type = ""
	assert.ErrorContains(t, noType.Validate(), "type column")
}

func TestParseDirection(t *testing.T) {
	for in, want := range map[string]core.Direction{
		"ENTRADA": core.Inflow, "entrada": core.Inflow, "INFLOW": core.Inflow,
		"SAÍDA": core.Outflow, "Saida": core.Outflow, " outflow ": core.Outflow,
	} {
		got, ok := ParseDirection(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := ParseDirection("transfer")
	assert.False(t, ok)
}
