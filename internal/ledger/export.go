package ledger

import (
	"fmt"
	"io"

	"github.com/gocarina/gocsv"

	"saldo/internal/core"
)

// ExportRow is one transaction in the spreadsheet's column layout.
type ExportRow struct {
	Date        string `csv:"Data"`
	Amount      string `csv:"Valor"`
	Category    string `csv:"Categoria"`
	Type        string `csv:"Tipo (Entrada/Saída)"`
	Recurrence  string `csv:"Recorrência"`
	Description string `csv:"Descrição"`
}

// ExportRows renders txs with the default column names.
func ExportRows(txs []core.Transaction) []*ExportRow {
	rows := make([]*ExportRow, 0, len(txs))
	for _, tx := range txs {
		rows = append(rows, &ExportRow{
			Date:        tx.Date.DayFirst(),
			Amount:      core.FormatAmount(tx.Amount),
			Category:    tx.Category,
			Type:        TypeLabel(tx.Direction),
			Recurrence:  tx.Recurrence,
			Description: tx.Description,
		})
	}
	return rows
}

// WriteCSV writes txs as CSV with a header row. The output reads back
// through the CSV source into the same transactions.
func WriteCSV(w io.Writer, txs []core.Transaction) error {
	if err := gocsv.Marshal(ExportRows(txs), w); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}
