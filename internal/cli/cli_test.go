package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saldo/internal/core"
)

// setEnv isolates the command from the caller's environment.
func setEnv(t *testing.T, backend string) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "saldo.db")
	t.Setenv("DATA_BACKEND", backend)
	t.Setenv("SQLITE_DB_PATH", dbPath)
	t.Setenv("AMQP_URL", "")
	t.Setenv("CSV_PATH", "")
	t.Setenv("CSV_DELIMITER", "")
	t.Setenv("DIRECTION_SOURCE", "")
	t.Setenv("STRICT_AMOUNTS", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("LOG_FORMAT", "")
	return dbPath
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSummaryCommand(t *testing.T) {
	setEnv(t, "memory")

	out, err := runCLI(t, "summary")
	require.NoError(t, err)
	assert.Contains(t, out, "Resumo 03/2024")
	assert.Contains(t, out, "R$ 5.350,00")
	assert.Contains(t, out, "-R$ 3.930,00")
	assert.Contains(t, out, "R$ 1.420,00")
	assert.Contains(t, out, "Saídas por categoria")
	assert.Contains(t, out, "Aluguel")

	out, err = runCLI(t, "summary", "--period", "2024-02", "--category", "Mercado")
	require.NoError(t, err)
	assert.Contains(t, out, "Resumo 02/2024")
	assert.Contains(t, out, "-R$ 612,35")
	assert.NotContains(t, out, "Aluguel")

	out, err = runCLI(t, "summary", "--all")
	require.NoError(t, err)
	assert.Contains(t, out, "Histórico Total")
	assert.Contains(t, out, "R$ 3.007,65")
}

func TestSummaryCommandRejectsBadPeriod(t *testing.T) {
	setEnv(t, "memory")

	_, err := runCLI(t, "summary", "--period", "03/2024")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected YYYY-MM")
}

func TestPeriodsCommand(t *testing.T) {
	setEnv(t, "memory")

	out, err := runCLI(t, "periods")
	require.NoError(t, err)
	march := strings.Index(out, "2024-03")
	february := strings.Index(out, "2024-02")
	require.True(t, march >= 0 && february >= 0, out)
	assert.Less(t, march, february, "most recent period first")
	assert.Contains(t, out, "03/2024")
}

func TestCategoriesCommand(t *testing.T) {
	setEnv(t, "memory")

	out, err := runCLI(t, "categories", "--period", "2024-03")
	require.NoError(t, err)
	assert.Contains(t, out, "Investimento CDB")
	assert.Contains(t, out, "Freelance")
	assert.NotContains(t, out, "Investimento Tesouro")
}

func TestBalanceCommand(t *testing.T) {
	setEnv(t, "memory")

	out, err := runCLI(t, "balance")
	require.NoError(t, err)
	assert.Contains(t, out, "20/03/2024")
	assert.Contains(t, out, "R$ 3.007,65")

	out, err = runCLI(t, "balance", "--as-of", "29/02/2024")
	require.NoError(t, err)
	assert.Contains(t, out, "R$ 1.587,65")

	_, err = runCLI(t, "balance", "--as-of", "31/02/2024")
	require.Error(t, err)
}

func TestExportCommand(t *testing.T) {
	setEnv(t, "memory")

	out, err := runCLI(t, "export", "--period", "2024-02")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Len(t, lines, 5, "header plus four February rows")

	path := filepath.Join(t.TempDir(), "all.csv")
	out, err = runCLI(t, "export", "--output", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Exported 10 transactions")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(string(data)), "\n"), 11)
}

func TestImportThenSummaryFromSQLite(t *testing.T) {
	dbPath := setEnv(t, "memory")

	csvPath := filepath.Join(t.TempDir(), "controle.csv")
	csv := "Data;Valor;Categoria;Tipo (Entrada/Saída)\n" +
		"01/03/2024;R$ 1.000,00;Salário;ENTRADA\n" +
		"05/03/2024;-R$ 200,50;Mercado;SAÍDA\n" +
		"sem data;R$ 1,00;Outros;SAÍDA\n"
	require.NoError(t, os.WriteFile(csvPath, []byte(csv), 0644))

	out, err := runCLI(t, "import", "--csv", csvPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 3 rows (2 transactions, 1 dropped)")
	assert.Contains(t, out, "sqlite:"+dbPath)

	out, err = runCLI(t, "summary", "--backend", "sqlite")
	require.NoError(t, err)
	assert.Contains(t, out, "R$ 1.000,00")
	assert.Contains(t, out, "-R$ 200,50")
	assert.Contains(t, out, "R$ 799,50")
}

func TestImportRejectsSchemaErrors(t *testing.T) {
	setEnv(t, "memory")

	csvPath := filepath.Join(t.TempDir(), "wrong.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("Date,Amount\n01/03/2024,10\n"), 0644))

	_, err := runCLI(t, "import", "--csv", csvPath)
	require.Error(t, err)
	var schemaErr *core.SchemaError
	assert.ErrorAs(t, err, &schemaErr)
}

func TestImportRequiresCSVFlag(t *testing.T) {
	setEnv(t, "memory")

	_, err := runCLI(t, "import")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "csv")
}

func TestRefreshRequiresAMQP(t *testing.T) {
	setEnv(t, "memory")

	_, err := runCLI(t, "refresh")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AMQP_URL is not configured")
}

func TestStatusCommand(t *testing.T) {
	setEnv(t, "memory")

	out, err := runCLI(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "memory")
	assert.Contains(t, out, "Transações")
}

func TestInvalidBackend(t *testing.T) {
	setEnv(t, "memory")

	_, err := runCLI(t, "summary", "--backend", "ftp")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid data backend 'ftp'")
}

func TestValidateFileExists(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "ledger.csv")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))

	assert.NoError(t, validateFileExists(file))
	assert.Error(t, validateFileExists(""))
	assert.Error(t, validateFileExists(filepath.Join(dir, "missing.csv")))
	assert.Error(t, validateFileExists(dir))
}
