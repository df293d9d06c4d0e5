package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"saldo/internal/core"
	ports "saldo/internal/sheets"

	_ "modernc.org/sqlite"
)

var (
	_ ports.RowSource = (*SQLiteRepository)(nil)
	_ ports.Describer = (*SQLiteRepository)(nil)
)

// SQLiteRepository stores imported spreadsheet rows verbatim, one JSON
// object of cell text per row, and serves them back as a row source.
type SQLiteRepository struct {
	db   *sql.DB
	path string
}

// Import describes one replace-all import.
type Import struct {
	ID         string    `json:"id"`
	Source     string    `json:"source"`
	Rows       int       `json:"rows"`
	ImportedAt time.Time `json:"imported_at"`
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time; SQLite serializes writes anyway.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, path: dbPath}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Describe implements sheets.Describer
func (r *SQLiteRepository) Describe() string {
	return "sqlite:" + r.path
}

// Records implements sheets.RowSource. Rows come back in import order.
func (r *SQLiteRepository) Records(ctx context.Context) ([]core.RawRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT position, cells FROM ledger_rows ORDER BY position`)
	if err != nil {
		return nil, &core.SourceError{Source: r.Describe(), Err: fmt.Errorf("query rows: %w", err)}
	}
	defer rows.Close()

	var out []core.RawRecord
	for rows.Next() {
		var (
			pos   int64
			cells string
		)
		if err := rows.Scan(&pos, &cells); err != nil {
			return nil, &core.SourceError{Source: r.Describe(), Err: fmt.Errorf("scan row: %w", err)}
		}
		rec := core.RawRecord{}
		if err := json.Unmarshal([]byte(cells), &rec); err != nil {
			return nil, &core.SourceError{Source: r.Describe(), Err: fmt.Errorf("decode row %d: %w", pos, err)}
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &core.SourceError{Source: r.Describe(), Err: err}
	}
	return out, nil
}

// ImportRecords replaces the stored rows with recs in a single transaction.
func (r *SQLiteRepository) ImportRecords(ctx context.Context, source string, recs []core.RawRecord) (Import, error) {
	imp := Import{
		ID:         uuid.NewString(),
		Source:     source,
		Rows:       len(recs),
		ImportedAt: time.Now().UTC().Truncate(time.Second),
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Import{}, fmt.Errorf("begin import: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM ledger_rows`); err != nil {
		return Import{}, fmt.Errorf("clear rows: %w", err)
	}
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO imports (id, source, row_count, imported_at) VALUES (?, ?, ?, ?)`,
		imp.ID, imp.Source, imp.Rows, imp.ImportedAt); err != nil {
		return Import{}, fmt.Errorf("record import: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO ledger_rows (import_id, position, cells) VALUES (?, ?, ?)`)
	if err != nil {
		return Import{}, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, rec := range recs {
		var cells []byte
		cells, err = json.Marshal(rec)
		if err != nil {
			return Import{}, fmt.Errorf("encode row %d: %w", i, err)
		}
		if _, err = stmt.ExecContext(ctx, imp.ID, i, string(cells)); err != nil {
			return Import{}, fmt.Errorf("insert row %d: %w", i, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return Import{}, fmt.Errorf("commit import: %w", err)
	}

	slog.InfoContext(ctx, "Ledger rows imported",
		"component", "storage",
		"import_id", imp.ID,
		"source", source,
		"rows", imp.Rows)
	return imp, nil
}

// Count returns the number of stored rows.
func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ledger_rows`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count rows: %w", err)
	}
	return n, nil
}

// LastImport returns the most recent import; ok is false before the first one.
func (r *SQLiteRepository) LastImport(ctx context.Context) (imp Import, ok bool, err error) {
	err = r.db.QueryRowContext(ctx,
		`SELECT id, source, row_count, imported_at FROM imports ORDER BY imported_at DESC, rowid DESC LIMIT 1`).
		Scan(&imp.ID, &imp.Source, &imp.Rows, &imp.ImportedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Import{}, false, nil
	}
	if err != nil {
		return Import{}, false, fmt.Errorf("last import: %w", err)
	}
	return imp, true, nil
}
