// Package csvfile reads the ledger from a CSV export of the spreadsheet.
// The file is re-read on every fetch so edits show up after the cache TTL.
package csvfile

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"saldo/internal/core"
	ports "saldo/internal/sheets"
)

var (
	_ ports.RowSource = (*Source)(nil)
	_ ports.Describer = (*Source)(nil)
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Source is a CSV file row source.
type Source struct {
	path  string
	comma rune
}

// New returns a source for path. A zero comma sniffs the delimiter from the
// header line, choosing ';' when it appears more often than ','.
func New(path string, comma rune) *Source {
	return &Source{path: path, comma: comma}
}

func (s *Source) Describe() string {
	return "csv:" + s.path
}

// Records reads the whole file. The first line is the header.
func (s *Source) Records(ctx context.Context) ([]core.RawRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, &core.SourceError{Source: s.Describe(), Err: err}
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, &core.SourceError{Source: s.Describe(), Err: err}
	}
	recs, err := Parse(bytes.NewReader(data), s.comma)
	if err != nil {
		var schemaErr *core.SchemaError
		if errors.As(err, &schemaErr) {
			return nil, fmt.Errorf("%s: %w", s.Describe(), err)
		}
		return nil, &core.SourceError{Source: s.Describe(), Err: err}
	}
	slog.DebugContext(ctx, "Read CSV export", "component", "sheets", "path", s.path, "rows", len(recs))
	return recs, nil
}

// Parse reads CSV text into records. See New for comma.
func Parse(r io.Reader, comma rune) ([]core.RawRecord, error) {
	br := bufio.NewReader(r)
	if bom, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(bom, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}
	if comma == 0 {
		comma = sniffComma(br)
	}

	cr := csv.NewReader(br)
	cr.Comma = comma
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return core.RecordsFromTable(rows[0], rows[1:])
}

func sniffComma(br *bufio.Reader) rune {
	// Peek returns whatever is available when the file is shorter.
	line, _ := br.Peek(4096)
	if i := bytes.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	if bytes.Count(line, []byte{';'}) > bytes.Count(line, []byte{','}) {
		return ';'
	}
	return ','
}
